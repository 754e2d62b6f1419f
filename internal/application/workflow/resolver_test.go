package workflow

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/domain/entity"
	"github.com/omc-erp/approval-engine/internal/domain/rules"
)

func TestResolver_SelectorMatchWins(t *testing.T) {
	highValue := twoStepDefinition()
	highValue.WorkflowID = "WF_HIGH_VALUE"
	highValue.Selectors = []entity.ApprovalCondition{
		{ConditionType: entity.ConditionAmountThreshold, Operator: entity.OpGT, Value: 100000.0},
	}
	standard := singleStepDefinition()

	repo := &mockDefinitionRepo{defs: []*entity.WorkflowDefinition{highValue, standard}}
	r := NewDefinitionResolver(repo, zap.NewNop())
	ctx := context.Background()

	got := r.Resolve(ctx, entity.WorkflowTypeDeliveryApproval, rules.Context{Amount: 250000})
	if got.WorkflowID != "WF_HIGH_VALUE" {
		t.Errorf("Resolve(high amount) = %s, want WF_HIGH_VALUE", got.WorkflowID)
	}

	got = r.Resolve(ctx, entity.WorkflowTypeDeliveryApproval, rules.Context{Amount: 500})
	if got.WorkflowID != "WF_DELIVERY_STD" {
		t.Errorf("Resolve(low amount) = %s, want unconditional WF_DELIVERY_STD", got.WorkflowID)
	}
}

func TestResolver_FallsBackToDefault(t *testing.T) {
	r := NewDefinitionResolver(&mockDefinitionRepo{}, zap.NewNop())

	got := r.Resolve(context.Background(), entity.WorkflowTypeUPPFClaim, rules.Context{})
	if got.WorkflowID != "DEFAULT_UPPF_CLAIM_APPROVAL" {
		t.Errorf("Resolve() = %s, want built-in default", got.WorkflowID)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("built-in default does not validate: %v", err)
	}
	if len(got.Steps) != 1 || got.Steps[0].Approvers[0].ApproverID != "MANAGER" {
		t.Errorf("default steps = %+v, want single MANAGER role step", got.Steps)
	}
	if got.EscalationRuleFor(entity.TriggerTimeout) == nil {
		t.Error("built-in default has no timeout escalation rule")
	}
}

func TestResolver_RepositoryErrorUsesDefault(t *testing.T) {
	repo := &mockDefinitionRepo{getErr: errors.New("connection refused")}
	r := NewDefinitionResolver(repo, zap.NewNop())

	got := r.Resolve(context.Background(), entity.WorkflowTypeDeliveryApproval, rules.Context{})
	if got.WorkflowID != "DEFAULT_DELIVERY_APPROVAL" {
		t.Errorf("Resolve() = %s, want built-in default", got.WorkflowID)
	}
}

func TestResolver_SkipsMalformedSelectors(t *testing.T) {
	broken := singleStepDefinition()
	broken.WorkflowID = "WF_BROKEN"
	broken.Selectors = []entity.ApprovalCondition{
		{ConditionType: entity.ConditionAmountThreshold, Operator: entity.OpIn, Value: 42},
	}
	standard := singleStepDefinition()

	repo := &mockDefinitionRepo{defs: []*entity.WorkflowDefinition{broken, standard}}
	r := NewDefinitionResolver(repo, zap.NewNop())

	got := r.Resolve(context.Background(), entity.WorkflowTypeDeliveryApproval, rules.Context{Amount: 42})
	if got.WorkflowID != "WF_DELIVERY_STD" {
		t.Errorf("Resolve() = %s, want WF_DELIVERY_STD past the malformed selector", got.WorkflowID)
	}
}
