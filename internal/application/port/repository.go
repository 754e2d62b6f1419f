package port

import (
	"context"
	"time"

	"github.com/omc-erp/approval-engine/internal/domain/entity"
)

// DefinitionRepository defines persistence operations for WorkflowDefinition.
// Definitions are authored out of band; the engine only reads them.
type DefinitionRepository interface {
	GetByID(ctx context.Context, workflowID string) (*entity.WorkflowDefinition, error)
	GetActiveByType(ctx context.Context, workflowType entity.WorkflowType) ([]*entity.WorkflowDefinition, error)
	Save(ctx context.Context, def *entity.WorkflowDefinition) error
}

// InstanceRepository defines persistence operations for WorkflowInstance.
// Reads return (nil, nil) when no row matches.
type InstanceRepository interface {
	Create(ctx context.Context, inst *entity.WorkflowInstance) error
	GetByID(ctx context.Context, instanceID string) (*entity.WorkflowInstance, error)

	// GetActiveBySource returns the non-terminal instance bound to a source
	// document, if one exists. At most one can be active at a time.
	GetActiveBySource(ctx context.Context, docType, docID string) (*entity.WorkflowInstance, error)

	// UpdateState persists a mutated instance if and only if the stored row
	// still carries expectedVersion; otherwise it returns ErrConflict and
	// writes nothing. The instance's Version is bumped on success.
	UpdateState(ctx context.Context, inst *entity.WorkflowInstance, expectedVersion int64) error

	ListByStatuses(ctx context.Context, statuses []string, workflowType entity.WorkflowType) ([]*entity.WorkflowInstance, error)

	// ListOverdue returns active instances whose SLA deadline passed before now.
	ListOverdue(ctx context.Context, now time.Time) ([]*entity.WorkflowInstance, error)
}

// HistoryRepository defines persistence for the append-only audit trail.
// Entries are never updated or deleted.
type HistoryRepository interface {
	Append(ctx context.Context, e *entity.ApprovalHistoryEntry) error
	ListByInstanceID(ctx context.Context, instanceID string) ([]*entity.ApprovalHistoryEntry, error)
}

// TransactionManager handles database transactions. The callback runs with a
// transaction bound to its context; repositories pick it up transparently.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
