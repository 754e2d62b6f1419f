package risk

import "github.com/omc-erp/approval-engine/internal/domain/entity"

// mitigationTable maps a factor type to its recommended actions.
var mitigationTable = map[entity.RiskFactorType][]string{
	entity.RiskFactorFinancial: {
		"Verify customer credit limit and payment history",
		"Consider requiring prepayment or letter of credit",
	},
	entity.RiskFactorCompliance: {
		"Obtain all required regulatory documents before delivery",
		"Perform compliance verification with NPA and Customs",
	},
	entity.RiskFactorOperational: {
		"Ensure proper safety protocols and insurance coverage",
		"Conduct pre-delivery safety inspection",
	},
	entity.RiskFactorCredit: {
		"Review outstanding receivables for the counterparty",
		"Escalate to credit control before fulfillment",
	},
}

// mitigationsFor collects the recommended actions for the triggered factors,
// deduplicated in first-seen order.
func mitigationsFor(factors []entity.RiskFactor) []string {
	var actions []string
	seen := make(map[string]bool)
	for _, f := range factors {
		for _, a := range mitigationTable[f.FactorType] {
			if seen[a] {
				continue
			}
			seen[a] = true
			actions = append(actions, a)
		}
	}
	return actions
}

// environmentalImpactTable maps product grades to their impact class.
var environmentalImpactTable = map[string]string{
	entity.ProductPMS:        "MEDIUM",
	entity.ProductAGO:        "MEDIUM",
	entity.ProductIFO:        "HIGH",
	entity.ProductLPG:        "HIGH",
	entity.ProductKerosene:   "MEDIUM",
	entity.ProductLubricants: "LOW",
}

// EnvironmentalImpact classifies a product grade; unknown grades default to
// MEDIUM.
func EnvironmentalImpact(productType string) string {
	if impact, ok := environmentalImpactTable[productType]; ok {
		return impact
	}
	return "MEDIUM"
}
