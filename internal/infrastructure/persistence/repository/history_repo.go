package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/port"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
	"github.com/omc-erp/approval-engine/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository. The table is
// append-only; ordering comes from the rowid insertion sequence, so replays
// always see entries in the order decisions were committed.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one audit entry. Entries are validated before they hit the
// table and never updated afterwards.
func (r *HistoryRepository) Append(ctx context.Context, e *entity.ApprovalHistoryEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", port.ErrValidation, err)
	}
	attachments, err := json.Marshal(e.Attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	query := `
		INSERT INTO approval_history (
			entry_id, instance_id, step_id, step_name, approver_id, approver_name,
			actor_type, action, action_date, comments, attachments,
			delegated_to, original_approver_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		e.EntryID,
		e.InstanceID,
		e.StepID,
		e.StepName,
		e.ApproverID,
		e.ApproverName,
		string(e.ActorType),
		string(e.Action),
		e.ActionDate,
		e.Comments,
		string(attachments),
		e.DelegatedTo,
		e.OriginalApproverID,
	)
	if err != nil {
		r.logger.Error("Failed to append history entry",
			zap.String("instance_id", e.InstanceID), zap.String("action", string(e.Action)), zap.Error(err))
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// ListByInstanceID returns the full audit trail in insertion order.
func (r *HistoryRepository) ListByInstanceID(ctx context.Context, instanceID string) ([]*entity.ApprovalHistoryEntry, error) {
	query := `
		SELECT entry_id, instance_id, step_id, step_name, approver_id, approver_name,
			actor_type, action, action_date, comments, attachments,
			delegated_to, original_approver_id
		FROM approval_history
		WHERE instance_id = ?
		ORDER BY rowid ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.String("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.ApprovalHistoryEntry
	for rows.Next() {
		var e entity.ApprovalHistoryEntry
		var actorType, action, attachments string

		err := rows.Scan(
			&e.EntryID,
			&e.InstanceID,
			&e.StepID,
			&e.StepName,
			&e.ApproverID,
			&e.ApproverName,
			&actorType,
			&action,
			&e.ActionDate,
			&e.Comments,
			&attachments,
			&e.DelegatedTo,
			&e.OriginalApproverID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		e.ActorType = entity.ActorType(actorType)
		e.Action = entity.HistoryAction(action)
		if attachments != "" && attachments != "null" {
			if err := json.Unmarshal([]byte(attachments), &e.Attachments); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
