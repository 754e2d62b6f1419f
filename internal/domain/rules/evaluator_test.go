package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omc-erp/approval-engine/internal/domain/entity"
)

func TestEvaluate_Operators(t *testing.T) {
	ctx := Context{
		Amount:          50000,
		CreditLimit:     200000,
		CustomerRating:  4.5,
		ProductType:     entity.ProductAGO,
		ComplianceScore: 85,
	}

	tests := []struct {
		name string
		cond entity.ApprovalCondition
		want bool
	}{
		{
			name: "GT true",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionAmountThreshold, Operator: entity.OpGT, Value: 10000.0},
			want: true,
		},
		{
			name: "GT false on equal",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionAmountThreshold, Operator: entity.OpGT, Value: 50000.0},
			want: false,
		},
		{
			name: "GTE true on equal",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionAmountThreshold, Operator: entity.OpGTE, Value: 50000.0},
			want: true,
		},
		{
			name: "LT true",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionComplianceScore, Operator: entity.OpLT, Value: 90},
			want: true,
		},
		{
			name: "LTE false",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionCreditLimit, Operator: entity.OpLTE, Value: 100000},
			want: false,
		},
		{
			name: "EQ on string attribute",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionProductType, Operator: entity.OpEQ, Value: "AGO"},
			want: true,
		},
		{
			name: "EQ numeric coercion from string",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionAmountThreshold, Operator: entity.OpEQ, Value: "50000"},
			want: true,
		},
		{
			name: "NEQ",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionProductType, Operator: entity.OpNEQ, Value: "LPG"},
			want: true,
		},
		{
			name: "IN with interface list",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionProductType, Operator: entity.OpIn, Value: []interface{}{"PMS", "AGO"}},
			want: true,
		},
		{
			name: "IN with string list miss",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionProductType, Operator: entity.OpIn, Value: []string{"LPG", "IFO"}},
			want: false,
		},
		{
			name: "NOT_IN",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionProductType, Operator: entity.OpNotIn, Value: []string{"LPG"}},
			want: true,
		},
		{
			name: "IN with numeric list",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionCustomerRating, Operator: entity.OpIn, Value: []float64{4.5, 5}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate([]entity.ApprovalCondition{tt.cond}, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_ListSemantics(t *testing.T) {
	ctx := Context{Amount: 50000, ProductType: entity.ProductAGO}

	// Empty list is vacuously satisfied.
	got, err := Evaluate(nil, ctx)
	require.NoError(t, err)
	assert.True(t, got)

	// Conditions are AND-combined: one miss fails the list.
	got, err = Evaluate([]entity.ApprovalCondition{
		{ConditionType: entity.ConditionAmountThreshold, Operator: entity.OpGT, Value: 10000.0},
		{ConditionType: entity.ConditionProductType, Operator: entity.OpEQ, Value: "LPG"},
	}, ctx)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Evaluate([]entity.ApprovalCondition{
		{ConditionType: entity.ConditionAmountThreshold, Operator: entity.OpGT, Value: 10000.0},
		{ConditionType: entity.ConditionProductType, Operator: entity.OpEQ, Value: "AGO"},
	}, ctx)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_FailsClosed(t *testing.T) {
	ctx := Context{Amount: 50000}

	tests := []struct {
		name string
		cond entity.ApprovalCondition
	}{
		{
			name: "unknown condition type",
			cond: entity.ApprovalCondition{ConditionType: "PHASE_OF_MOON", Operator: entity.OpEQ, Value: "full"},
		},
		{
			name: "unknown operator",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionAmountThreshold, Operator: "BETWEEN", Value: 1},
		},
		{
			name: "ordering operator on non-numeric value",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionAmountThreshold, Operator: entity.OpGT, Value: "lots"},
		},
		{
			name: "IN without a collection",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionAmountThreshold, Operator: entity.OpIn, Value: 50000.0},
		},
		{
			name: "NOT_IN without a collection",
			cond: entity.ApprovalCondition{ConditionType: entity.ConditionAmountThreshold, Operator: entity.OpNotIn, Value: 50000.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate([]entity.ApprovalCondition{tt.cond}, ctx)
			assert.Error(t, err)
			assert.False(t, got)
		})
	}
}

func TestContextFromMetadata(t *testing.T) {
	md := &entity.WorkflowMetadata{
		Amount:         125000,
		CreditLimit:    500000,
		CustomerRating: 3.2,
		ProductType:    entity.ProductLPG,
		Compliance:     &entity.ComplianceMetadata{ComplianceScore: 77},
	}

	ctx := ContextFromMetadata(md)
	assert.Equal(t, 125000.0, ctx.Amount)
	assert.Equal(t, 500000.0, ctx.CreditLimit)
	assert.Equal(t, 3.2, ctx.CustomerRating)
	assert.Equal(t, entity.ProductLPG, ctx.ProductType)
	assert.Equal(t, 77.0, ctx.ComplianceScore)

	// No compliance snapshot leaves the score zero.
	bare := ContextFromMetadata(&entity.WorkflowMetadata{Amount: 10})
	assert.Zero(t, bare.ComplianceScore)
}
