package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/port"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
	"github.com/omc-erp/approval-engine/internal/domain/rules"
)

// DefinitionResolver selects the workflow definition an instance will bind
// to. Candidates are the active definitions for the workflow type; the first
// whose selector conditions match the transaction context wins, then the
// first unconditional one. When nothing matches, or the repository itself
// fails, the resolver falls back to the built-in default definition and logs
// the degraded resolution, so a submission is never refused for lack of
// configuration.
type DefinitionResolver struct {
	repo   port.DefinitionRepository
	logger *zap.Logger
}

// NewDefinitionResolver creates a resolver over the definition repository.
func NewDefinitionResolver(repo port.DefinitionRepository, logger *zap.Logger) *DefinitionResolver {
	return &DefinitionResolver{repo: repo, logger: logger}
}

// Resolve picks the definition for a workflow type and transaction context.
func (r *DefinitionResolver) Resolve(ctx context.Context, t entity.WorkflowType, rctx rules.Context) *entity.WorkflowDefinition {
	defs, err := r.repo.GetActiveByType(ctx, t)
	if err != nil {
		r.logger.Warn("Definition lookup failed, using built-in default workflow",
			zap.String("workflow_type", string(t)), zap.Error(err))
		return DefaultDefinition(t)
	}

	var fallback *entity.WorkflowDefinition
	for _, def := range defs {
		if !def.IsActive {
			continue
		}
		if len(def.Selectors) == 0 {
			if fallback == nil {
				fallback = def
			}
			continue
		}
		ok, err := rules.Evaluate(def.Selectors, rctx)
		if err != nil {
			r.logger.Warn("Skipping definition with malformed selectors",
				zap.String("workflow_id", def.WorkflowID), zap.Error(err))
			continue
		}
		if ok {
			return def
		}
	}
	if fallback != nil {
		return fallback
	}

	r.logger.Warn("No workflow definition configured, using built-in default workflow",
		zap.String("workflow_type", string(t)))
	return DefaultDefinition(t)
}

// DefaultDefinition is the built-in single-step workflow used when no
// definition is configured: one role-based manager approval with a 24 hour
// timeout and a two-level timeout escalation.
func DefaultDefinition(t entity.WorkflowType) *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		WorkflowID:   "DEFAULT_" + string(t),
		WorkflowName: "Default Approval Workflow",
		WorkflowType: t,
		Description:  "Built-in fallback used when no workflow definition is configured",
		IsActive:     true,
		Steps: []entity.ApprovalStep{
			{
				StepID:            "STEP_1",
				StepName:          "Manager Approval",
				StepOrder:         1,
				StepType:          entity.StepTypeRoleBased,
				RequiredApprovers: 1,
				Approvers: []entity.ApproverInfo{
					{
						ApproverID:        "MANAGER",
						ApproverType:      entity.ApproverTypeRole,
						ApproverName:      "Manager",
						DelegationEnabled: true,
					},
				},
				TimeoutHours: 24,
			},
		},
		EscalationRules: []entity.EscalationRule{
			{
				RuleID:              "DEFAULT_TIMEOUT",
				Trigger:             entity.TriggerTimeout,
				EscalationTimeHours: 24,
				Actions: []entity.EscalationAction{
					{ActionType: entity.ActionNotify, TargetRoleID: "MANAGER", Priority: entity.PriorityHigh},
					{ActionType: entity.ActionEscalateToManager, TargetRoleID: "GENERAL_MANAGER", Priority: entity.PriorityCritical},
				},
				MaxEscalationLevel: 2,
			},
		},
	}
}
