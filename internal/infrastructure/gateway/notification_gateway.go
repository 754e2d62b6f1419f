package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/port"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
)

// NotificationGateway implements port.NotificationGateway against the
// notification service's REST API. Callers treat every method as
// fire-and-log; this client just reports failures honestly.
type NotificationGateway struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewNotificationGateway creates a notification service client.
func NewNotificationGateway(baseURL string, timeout time.Duration, logger *zap.Logger) *NotificationGateway {
	return &NotificationGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ApprovalRequested notifies the approvers of a newly pending instance.
func (g *NotificationGateway) ApprovalRequested(ctx context.Context, n *entity.ApprovalRequestNotice) error {
	return g.post(ctx, "/notifications/approval-requested", n)
}

// ActionProcessed notifies interested parties of a recorded decision.
func (g *NotificationGateway) ActionProcessed(ctx context.Context, n *entity.ActionNotice) error {
	return g.post(ctx, "/notifications/action-processed", n)
}

// EscalationRaised notifies the escalation target of a missed deadline.
func (g *NotificationGateway) EscalationRaised(ctx context.Context, n *entity.EscalationNotice) error {
	return g.post(ctx, "/notifications/escalation", n)
}

func (g *NotificationGateway) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: notification service unreachable: %v", port.ErrDependency, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: notification service returned %d", port.ErrDependency, resp.StatusCode)
	}

	g.logger.Debug("Notification dispatched", zap.String("path", path))
	return nil
}

// Verify interface compliance
var _ port.NotificationGateway = (*NotificationGateway)(nil)
