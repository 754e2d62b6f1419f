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

// DefinitionRepository implements port.DefinitionRepository. Definitions are
// stored whole as a JSON payload keyed by id; the type and active flag are
// lifted into columns for lookup.
type DefinitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sql.DB, logger *zap.Logger) port.DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a workflow definition, or (nil, nil).
func (r *DefinitionRepository) GetByID(ctx context.Context, workflowID string) (*entity.WorkflowDefinition, error) {
	query := `SELECT payload FROM workflow_definitions WHERE workflow_id = ?`

	var payload string
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, workflowID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get definition", zap.String("workflow_id", workflowID), zap.Error(err))
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	return unmarshalDefinition(payload)
}

// GetActiveByType retrieves all active definitions for a workflow type.
func (r *DefinitionRepository) GetActiveByType(ctx context.Context, workflowType entity.WorkflowType) ([]*entity.WorkflowDefinition, error) {
	query := `SELECT payload FROM workflow_definitions
		WHERE workflow_type = ? AND is_active = 1
		ORDER BY workflow_id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, string(workflowType))
	if err != nil {
		r.logger.Error("Failed to list definitions", zap.String("workflow_type", string(workflowType)), zap.Error(err))
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var defs []*entity.WorkflowDefinition
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		def, err := unmarshalDefinition(payload)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// Save upserts a workflow definition.
func (r *DefinitionRepository) Save(ctx context.Context, def *entity.WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %v", port.ErrValidation, err)
	}
	payload, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (workflow_id, workflow_type, is_active, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(workflow_id) DO UPDATE SET
			workflow_type = excluded.workflow_type,
			is_active = excluded.is_active,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		def.WorkflowID, string(def.WorkflowType), def.IsActive, string(payload))
	if err != nil {
		r.logger.Error("Failed to save definition", zap.String("workflow_id", def.WorkflowID), zap.Error(err))
		return fmt.Errorf("failed to save definition: %w", err)
	}
	return nil
}

func unmarshalDefinition(payload string) (*entity.WorkflowDefinition, error) {
	var def entity.WorkflowDefinition
	if err := json.Unmarshal([]byte(payload), &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	return &def, nil
}

// Verify interface compliance
var _ port.DefinitionRepository = (*DefinitionRepository)(nil)
