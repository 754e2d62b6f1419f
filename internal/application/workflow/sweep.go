package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/domain/entity"
	"github.com/omc-erp/approval-engine/internal/domain/event"
)

// Sweep processes every active instance whose SLA deadline passed before
// now. Each instance is one transaction; a failing instance is logged and
// skipped, never blocking the rest of the batch. Every pass moves the
// deadline forward, so re-running the sweep is a no-op until time advances
// again. Escalation and timeout entries written here are the only SYSTEM
// actor entries in the audit trail besides auto-approval.
func (e *engineImpl) Sweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	overdue, err := e.instances.ListOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("listing overdue instances: %w", err)
	}

	report := &SweepReport{Examined: len(overdue)}
	for _, inst := range overdue {
		if err := e.sweepOne(ctx, inst, now, report); err != nil {
			report.Failed++
			e.logger.Error("Escalation sweep failed for instance",
				zap.String("instance_id", inst.InstanceID), zap.Error(err))
		}
	}

	if report.Examined > 0 {
		e.logger.Info("Escalation sweep completed",
			zap.Int("examined", report.Examined),
			zap.Int("escalated", report.Escalated),
			zap.Int("timed_out", report.TimedOut),
			zap.Int("forced_approved", report.ForcedApproved),
			zap.Int("forced_rejected", report.ForcedRejected),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}

func (e *engineImpl) sweepOne(ctx context.Context, inst *entity.WorkflowInstance, now time.Time, report *SweepReport) error {
	if inst.IsTerminal() || inst.Definition == nil {
		return nil
	}

	rule := inst.Definition.EscalationRuleFor(entity.TriggerTimeout)
	if rule == nil {
		return e.markTimeout(ctx, inst, now, report)
	}
	if inst.EscalationLevel >= rule.MaxEscalationLevel {
		return e.forceTerminal(ctx, inst, rule, now, report)
	}
	return e.escalate(ctx, inst, rule, now, report)
}

// markTimeout flags an overdue instance with no timeout rule. The deadline
// is pushed out by the default SLA so the instance is not reprocessed every
// pass; approvers can still act on it.
func (e *engineImpl) markTimeout(ctx context.Context, inst *entity.WorkflowInstance, now time.Time, report *SweepReport) error {
	deadline := now.Add(time.Duration(e.slaHours) * time.Hour)

	if inst.Status == entity.StatusTimeout {
		// Already flagged; just move the deadline.
		err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
			inst.SLADeadline = deadline
			inst.UpdatedAt = now
			return e.instances.UpdateState(ctx, inst, inst.Version)
		})
		return err
	}

	entry := entity.NewSystemEntry(inst.InstanceID, inst.CurrentStep(), entity.HistoryTimeout,
		"Approval deadline passed with no escalation rule configured", now)
	entry.EntryID = uuid.NewString()

	err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		inst.Status = entity.StatusTimeout
		inst.SLADeadline = deadline
		inst.UpdatedAt = now
		if err := e.history.Append(ctx, entry); err != nil {
			return err
		}
		return e.instances.UpdateState(ctx, inst, inst.Version)
	})
	if err != nil {
		return err
	}

	report.TimedOut++
	e.emit(ctx, event.New(event.TypeTimedOut, inst.InstanceID, inst.SourceDocumentID, map[string]interface{}{
		"sla_deadline": inst.SLADeadline,
	}))
	return nil
}

// escalate bumps the escalation level and runs the rule's actions in order.
// AUTO_APPROVE and AUTO_REJECT are reserved for the level cap; below it they
// are skipped so humans keep a window to respond.
func (e *engineImpl) escalate(ctx context.Context, inst *entity.WorkflowInstance, rule *entity.EscalationRule, now time.Time, report *SweepReport) error {
	hours := rule.EscalationTimeHours
	if hours <= 0 {
		hours = e.slaHours
	}

	entry := entity.NewSystemEntry(inst.InstanceID, inst.CurrentStep(), entity.HistoryEscalated,
		fmt.Sprintf("Escalated to level %d after missed deadline", inst.EscalationLevel+1), now)
	entry.EntryID = uuid.NewString()

	var notices []*entity.EscalationNotice
	err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		inst.EscalationLevel++
		inst.Status = entity.StatusEscalated
		inst.SLADeadline = now.Add(time.Duration(hours) * time.Hour)
		inst.UpdatedAt = now

		for _, action := range rule.Actions {
			switch action.ActionType {
			case entity.ActionNotify, entity.ActionEscalateToManager:
				notices = append(notices, &entity.EscalationNotice{
					InstanceID:      inst.InstanceID,
					EscalationLevel: inst.EscalationLevel,
					TargetUserID:    action.TargetUserID,
					TargetRoleID:    action.TargetRoleID,
					Template:        action.NotificationTemplate,
					Priority:        action.Priority,
					SLADeadline:     inst.SLADeadline,
				})
			case entity.ActionReassign:
				if action.TargetUserID == "" {
					continue
				}
				if step := inst.CurrentStep(); step != nil {
					if inst.Delegations == nil {
						inst.Delegations = make(map[string]string)
					}
					for _, a := range step.Approvers {
						inst.Delegations[a.ApproverID] = action.TargetUserID
					}
				}
			}
		}

		if err := e.history.Append(ctx, entry); err != nil {
			return err
		}
		return e.instances.UpdateState(ctx, inst, inst.Version)
	})
	if err != nil {
		return err
	}

	report.Escalated++
	for _, n := range notices {
		notice := n
		e.notify(ctx, func(ctx context.Context) error {
			return e.notifier.EscalationRaised(ctx, notice)
		})
	}
	e.emit(ctx, event.New(event.TypeEscalated, inst.InstanceID, inst.SourceDocumentID, map[string]interface{}{
		"escalation_level": inst.EscalationLevel,
		"sla_deadline":     inst.SLADeadline,
	}))
	return nil
}

// forceTerminal resolves an instance stuck at the escalation level cap. The
// rule's last configured action decides the outcome: AUTO_APPROVE approves
// on the system's authority, anything else rejects.
func (e *engineImpl) forceTerminal(ctx context.Context, inst *entity.WorkflowInstance, rule *entity.EscalationRule, now time.Time, report *SweepReport) error {
	approve := len(rule.Actions) > 0 &&
		rule.Actions[len(rule.Actions)-1].ActionType == entity.ActionAutoApprove

	var entry *entity.ApprovalHistoryEntry
	if approve {
		entry = entity.NewSystemEntry(inst.InstanceID, inst.CurrentStep(), entity.HistorySystemApproved,
			fmt.Sprintf("Auto-approved at escalation level cap %d", rule.MaxEscalationLevel), now)
	} else {
		entry = entity.NewSystemEntry(inst.InstanceID, inst.CurrentStep(), entity.HistoryRejected,
			fmt.Sprintf("Auto-rejected at escalation level cap %d", rule.MaxEscalationLevel), now)
	}
	entry.EntryID = uuid.NewString()

	err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		inst.UpdatedAt = now
		if approve {
			inst.Status = entity.StatusApproved
			inst.ApprovedBy = "SYSTEM"
			inst.ApprovalDate = &now
			inst.ApprovalComments = entry.Comments
		} else {
			inst.Status = entity.StatusRejected
			inst.ApprovalComments = entry.Comments
		}
		if err := e.history.Append(ctx, entry); err != nil {
			return err
		}
		return e.instances.UpdateState(ctx, inst, inst.Version)
	})
	if err != nil {
		return err
	}

	if approve {
		report.ForcedApproved++
	} else {
		report.ForcedRejected++
	}

	e.logger.Warn("Instance forced terminal at escalation cap",
		zap.String("instance_id", inst.InstanceID),
		zap.String("status", inst.Status),
		zap.Int("max_escalation_level", rule.MaxEscalationLevel))

	e.recordOutcome(ctx, inst)
	e.emit(ctx, event.New(event.TypeEscalated, inst.InstanceID, inst.SourceDocumentID, map[string]interface{}{
		"escalation_level": inst.EscalationLevel,
		"status":           inst.Status,
		"forced":           true,
	}))
	return nil
}
