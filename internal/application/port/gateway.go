package port

import (
	"context"

	"github.com/omc-erp/approval-engine/internal/domain/entity"
)

// DocumentGateway reaches the domain service that owns the source
// transactions (deliveries, invoices, claims). Lookups return ErrNotFound for
// a missing document and ErrDependency when the service is unreachable.
type DocumentGateway interface {
	GetDocument(ctx context.Context, docType, docID string) (*entity.SourceDocument, error)
	GetDocuments(ctx context.Context, docType string, docIDs []string) ([]*entity.SourceDocument, error)

	// RecordOutcome reports the approval state back to the owning service.
	// Callers treat failures as fire-and-log; a workflow transition is never
	// rolled back because the owning service could not be reached.
	RecordOutcome(ctx context.Context, docType, docID string, outcome *entity.ApprovalOutcome) error
}

// NotificationGateway hands notification requests to the notification
// service. Delivery mechanics (email/SMS/in-app) are not this engine's
// concern; every method is fire-and-log for callers.
type NotificationGateway interface {
	ApprovalRequested(ctx context.Context, n *entity.ApprovalRequestNotice) error
	ActionProcessed(ctx context.Context, n *entity.ActionNotice) error
	EscalationRaised(ctx context.Context, n *entity.EscalationNotice) error
}
