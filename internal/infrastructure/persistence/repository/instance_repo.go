package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/port"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
	"github.com/omc-erp/approval-engine/internal/infrastructure/persistence/sqlite"
)

// InstanceRepository implements port.InstanceRepository over SQLite. The
// metadata, definition snapshot, attachments and delegations are stored as
// JSON columns; the version column backs optimistic concurrency.
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `
	instance_id, workflow_id, workflow_type, source_document_id, source_document_type,
	requested_by, requested_at, current_step_id, current_step_order, status, priority,
	metadata, definition, attachments, delegations, sla_deadline, escalation_level,
	approved_by, approval_date, approval_comments, version, created_at, updated_at`

// Create inserts a new workflow instance at version 1.
func (r *InstanceRepository) Create(ctx context.Context, inst *entity.WorkflowInstance) error {
	metadata, err := json.Marshal(inst.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	definition, err := json.Marshal(inst.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}
	attachments, err := json.Marshal(inst.Attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}
	delegations, err := json.Marshal(inst.Delegations)
	if err != nil {
		return fmt.Errorf("failed to marshal delegations: %w", err)
	}

	query := `
		INSERT INTO workflow_instances (` + instanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	inst.Version = 1
	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		inst.InstanceID,
		inst.WorkflowID,
		string(inst.WorkflowType),
		inst.SourceDocumentID,
		inst.SourceDocumentType,
		inst.RequestedBy,
		inst.RequestedAt,
		inst.CurrentStepID,
		inst.CurrentStepOrder,
		inst.Status,
		string(inst.Priority),
		string(metadata),
		string(definition),
		string(attachments),
		string(delegations),
		inst.SLADeadline,
		inst.EscalationLevel,
		inst.ApprovedBy,
		inst.ApprovalDate,
		inst.ApprovalComments,
		inst.Version,
		inst.CreatedAt,
		inst.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow instance",
			zap.String("instance_id", inst.InstanceID), zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}
	return nil
}

// GetByID retrieves a workflow instance by its id, or (nil, nil).
func (r *InstanceRepository) GetByID(ctx context.Context, instanceID string) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE instance_id = ?`
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, instanceID)
	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.String("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return inst, nil
}

// GetActiveBySource returns the non-terminal instance for a source document,
// or (nil, nil).
func (r *InstanceRepository) GetActiveBySource(ctx context.Context, docType, docID string) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE source_document_type = ? AND source_document_id = ?
		AND status IN (` + statusPlaceholders(entity.ActiveStatuses) + `)
		LIMIT 1`

	args := []interface{}{docType, docID}
	for _, s := range entity.ActiveStatuses {
		args = append(args, s)
	}

	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, args...)
	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get active instance by source",
			zap.String("source_document_id", docID), zap.Error(err))
		return nil, fmt.Errorf("failed to get active instance: %w", err)
	}
	return inst, nil
}

// UpdateState persists the instance with a compare-and-swap on the version
// column. A zero rows-affected result means another writer won the race.
func (r *InstanceRepository) UpdateState(ctx context.Context, inst *entity.WorkflowInstance, expectedVersion int64) error {
	metadata, err := json.Marshal(inst.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	delegations, err := json.Marshal(inst.Delegations)
	if err != nil {
		return fmt.Errorf("failed to marshal delegations: %w", err)
	}

	query := `
		UPDATE workflow_instances SET
			current_step_id = ?, current_step_order = ?, status = ?, priority = ?,
			metadata = ?, delegations = ?, sla_deadline = ?, escalation_level = ?,
			approved_by = ?, approval_date = ?, approval_comments = ?,
			version = version + 1, updated_at = ?
		WHERE instance_id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		inst.CurrentStepID,
		inst.CurrentStepOrder,
		inst.Status,
		string(inst.Priority),
		string(metadata),
		string(delegations),
		inst.SLADeadline,
		inst.EscalationLevel,
		inst.ApprovedBy,
		inst.ApprovalDate,
		inst.ApprovalComments,
		inst.UpdatedAt,
		inst.InstanceID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update instance state",
			zap.String("instance_id", inst.InstanceID), zap.Error(err))
		return fmt.Errorf("failed to update instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: instance %s was modified concurrently (expected version %d)",
			port.ErrConflict, inst.InstanceID, expectedVersion)
	}

	inst.Version = expectedVersion + 1
	return nil
}

// ListByStatuses retrieves instances in any of the given statuses, newest
// first. workflowType narrows the result when non-empty.
func (r *InstanceRepository) ListByStatuses(ctx context.Context, statuses []string, workflowType entity.WorkflowType) ([]*entity.WorkflowInstance, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE status IN (` + statusPlaceholders(statuses) + `)`
	args := make([]interface{}, 0, len(statuses)+1)
	for _, s := range statuses {
		args = append(args, s)
	}
	if workflowType != "" {
		query += ` AND workflow_type = ?`
		args = append(args, string(workflowType))
	}
	query += ` ORDER BY created_at DESC`

	return r.queryInstances(ctx, query, args...)
}

// ListOverdue returns active instances whose SLA deadline passed before now.
func (r *InstanceRepository) ListOverdue(ctx context.Context, now time.Time) ([]*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE status IN (` + statusPlaceholders(entity.ActiveStatuses) + `)
		AND sla_deadline < ?
		ORDER BY sla_deadline ASC`

	args := make([]interface{}, 0, len(entity.ActiveStatuses)+1)
	for _, s := range entity.ActiveStatuses {
		args = append(args, s)
	}
	args = append(args, now)

	return r.queryInstances(ctx, query, args...)
}

func (r *InstanceRepository) queryInstances(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkflowInstance, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstance(row rowScanner) (*entity.WorkflowInstance, error) {
	var inst entity.WorkflowInstance
	var workflowType, priority string
	var metadata, definition, attachments, delegations string
	var approvedBy, approvalComments sql.NullString
	var approvalDate sql.NullTime

	err := row.Scan(
		&inst.InstanceID,
		&inst.WorkflowID,
		&workflowType,
		&inst.SourceDocumentID,
		&inst.SourceDocumentType,
		&inst.RequestedBy,
		&inst.RequestedAt,
		&inst.CurrentStepID,
		&inst.CurrentStepOrder,
		&inst.Status,
		&priority,
		&metadata,
		&definition,
		&attachments,
		&delegations,
		&inst.SLADeadline,
		&inst.EscalationLevel,
		&approvedBy,
		&approvalDate,
		&approvalComments,
		&inst.Version,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inst.WorkflowType = entity.WorkflowType(workflowType)
	inst.Priority = entity.Priority(priority)
	if approvedBy.Valid {
		inst.ApprovedBy = approvedBy.String
	}
	if approvalComments.Valid {
		inst.ApprovalComments = approvalComments.String
	}
	if approvalDate.Valid {
		inst.ApprovalDate = &approvalDate.Time
	}

	if err := json.Unmarshal([]byte(metadata), &inst.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if definition != "" && definition != "null" {
		inst.Definition = &entity.WorkflowDefinition{}
		if err := json.Unmarshal([]byte(definition), inst.Definition); err != nil {
			return nil, fmt.Errorf("failed to unmarshal definition snapshot: %w", err)
		}
	}
	if attachments != "" && attachments != "null" {
		if err := json.Unmarshal([]byte(attachments), &inst.Attachments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
		}
	}
	if delegations != "" && delegations != "null" {
		if err := json.Unmarshal([]byte(delegations), &inst.Delegations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal delegations: %w", err)
		}
	}

	return &inst, nil
}

func statusPlaceholders(statuses []string) string {
	return strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
