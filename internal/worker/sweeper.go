package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/workflow"
)

// EscalationSweeper periodically drives the engine's escalation sweep,
// escalating or timing out instances whose SLA deadline has passed. The
// sweep itself is idempotent, so an overlapping or repeated run is harmless.
type EscalationSweeper struct {
	engine   workflow.Engine
	schedule string
	logger   *zap.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewEscalationSweeper creates a sweeper on a cron schedule
// (e.g. "@every 5m").
func NewEscalationSweeper(engine workflow.Engine, schedule string, logger *zap.Logger) *EscalationSweeper {
	return &EscalationSweeper{
		engine:   engine,
		schedule: schedule,
		logger:   logger,
	}
}

// Name implements Worker.
func (s *EscalationSweeper) Name() string {
	return "escalation-sweeper"
}

// Start registers the cron job and runs one sweep immediately so a restart
// never leaves overdue instances waiting for the first tick.
func (s *EscalationSweeper) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.sweep(runCtx)
	})
	if err != nil {
		cancel()
		return err
	}
	s.cron.Start()

	go s.sweep(runCtx)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *EscalationSweeper) Stop() {
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *EscalationSweeper) sweep(ctx context.Context) {
	report, err := s.engine.Sweep(ctx, time.Now())
	if err != nil {
		s.logger.Error("Escalation sweep pass failed", zap.Error(err))
		return
	}
	if report.Examined > 0 {
		s.logger.Debug("Escalation sweep pass finished",
			zap.Int("examined", report.Examined),
			zap.Int("escalated", report.Escalated),
			zap.Int("timed_out", report.TimedOut))
	}
}

// Verify interface compliance
var _ Worker = (*EscalationSweeper)(nil)
