// Package rules evaluates approval conditions against a typed context
// snapshot. The condition vocabulary is a closed enumeration: an unknown
// condition type or operator fails closed instead of silently passing.
package rules

import "github.com/omc-erp/approval-engine/internal/domain/entity"

// Context is the typed evaluation context conditions are tested against.
type Context struct {
	Amount          float64
	CreditLimit     float64
	CustomerRating  float64
	ProductType     string
	ComplianceScore float64
}

// ContextFromDocument builds an evaluation context from a source document
// snapshot at submission time.
func ContextFromDocument(doc *entity.SourceDocument) Context {
	return Context{
		Amount:          doc.TotalValue,
		CreditLimit:     doc.CreditLimit,
		CustomerRating:  doc.CustomerRating,
		ProductType:     doc.ProductType,
		ComplianceScore: doc.ComplianceScore,
	}
}

// ContextFromMetadata rebuilds the evaluation context from an instance's
// metadata snapshot, for decisions taken after submission.
func ContextFromMetadata(md *entity.WorkflowMetadata) Context {
	c := Context{
		Amount:         md.Amount,
		CreditLimit:    md.CreditLimit,
		CustomerRating: md.CustomerRating,
		ProductType:    md.ProductType,
	}
	if md.Compliance != nil {
		c.ComplianceScore = md.Compliance.ComplianceScore
	}
	return c
}

// value returns the context attribute a condition type refers to. The second
// return is false for an unknown condition type.
func (c Context) value(t entity.ConditionType) (interface{}, bool) {
	switch t {
	case entity.ConditionAmountThreshold:
		return c.Amount, true
	case entity.ConditionCreditLimit:
		return c.CreditLimit, true
	case entity.ConditionCustomerRating:
		return c.CustomerRating, true
	case entity.ConditionProductType:
		return c.ProductType, true
	case entity.ConditionComplianceScore:
		return c.ComplianceScore, true
	default:
		return nil, false
	}
}
