// Package risk derives a deterministic risk assessment from transaction
// attributes. Scores, weights and level bands are table-driven so they can be
// tuned through configuration without a code change.
package risk

import (
	"github.com/omc-erp/approval-engine/internal/domain/entity"
)

// Band maps a minimum (exclusive) score to a risk level. Bands are checked
// highest first; a score clearing no band is LOW.
type Band struct {
	Above int
	Level entity.RiskLevel
}

// Config holds the tunable scoring tables.
type Config struct {
	HighValueThreshold float64
	HighValueWeight    int
	HazardousProducts  []string
	HazardWeight       int
	MissingDocsWeight  int

	// Bulk runs carry an inherent coordination risk, reflected in a nonzero
	// base score and their own thresholds.
	BulkBaseScore          int
	BulkHighValueThreshold float64
	BulkHighValueWeight    int
	BulkCustomerFanOut     int
	BulkFanOutWeight       int

	Bands     []Band
	BulkBands []Band
}

// DefaultConfig returns the production scoring tables.
func DefaultConfig() Config {
	return Config{
		HighValueThreshold: 100000,
		HighValueWeight:    20,
		HazardousProducts:  []string{entity.ProductLPG},
		HazardWeight:       30,
		MissingDocsWeight:  25,

		BulkBaseScore:          10,
		BulkHighValueThreshold: 500000,
		BulkHighValueWeight:    30,
		BulkCustomerFanOut:     10,
		BulkFanOutWeight:       15,

		Bands:     []Band{{Above: 60, Level: entity.RiskHigh}, {Above: 30, Level: entity.RiskMedium}},
		BulkBands: []Band{{Above: 50, Level: entity.RiskHigh}, {Above: 25, Level: entity.RiskMedium}},
	}
}

// Assessor scores transactions against the configured tables.
type Assessor struct {
	cfg Config
}

// NewAssessor creates an assessor with the given tables.
func NewAssessor(cfg Config) *Assessor {
	return &Assessor{cfg: cfg}
}

// Assess scores a single source transaction.
func (a *Assessor) Assess(doc *entity.SourceDocument) *entity.RiskAssessment {
	var factors []entity.RiskFactor
	score := 0

	if doc.TotalValue > a.cfg.HighValueThreshold {
		factors = append(factors, entity.RiskFactor{
			FactorType:  entity.RiskFactorFinancial,
			FactorName:  "High Value Transaction",
			Severity:    entity.RiskMedium,
			Impact:      "Financial exposure due to high transaction value",
			Probability: 0.3,
		})
		score += a.cfg.HighValueWeight
	}

	if a.isHazardous(doc.ProductType) {
		factors = append(factors, entity.RiskFactor{
			FactorType:  entity.RiskFactorOperational,
			FactorName:  "Hazardous Material",
			Severity:    entity.RiskHigh,
			Impact:      "Safety and environmental risks",
			Probability: 0.2,
		})
		score += a.cfg.HazardWeight
	}

	if doc.NPAPermitNumber == "" || doc.CustomsEntryNumber == "" {
		factors = append(factors, entity.RiskFactor{
			FactorType:  entity.RiskFactorCompliance,
			FactorName:  "Missing Compliance Documents",
			Severity:    entity.RiskHigh,
			Impact:      "Regulatory non-compliance",
			Probability: 0.8,
		})
		score += a.cfg.MissingDocsWeight
	}

	return &entity.RiskAssessment{
		RiskLevel:         levelFor(score, a.cfg.Bands),
		RiskScore:         score,
		RiskFactors:       factors,
		MitigationActions: mitigationsFor(factors),
	}
}

// AssessBulk scores a bulk invoice run over many deliveries.
func (a *Assessor) AssessBulk(docs []*entity.SourceDocument) *entity.RiskAssessment {
	var factors []entity.RiskFactor
	score := a.cfg.BulkBaseScore

	total := 0.0
	customers := make(map[string]bool)
	for _, d := range docs {
		total += d.TotalValue
		if d.CustomerID != "" {
			customers[d.CustomerID] = true
		}
	}

	if total > a.cfg.BulkHighValueThreshold {
		factors = append(factors, entity.RiskFactor{
			FactorType:  entity.RiskFactorFinancial,
			FactorName:  "High Value Bulk Transaction",
			Severity:    entity.RiskHigh,
			Impact:      "Significant financial exposure",
			Probability: 0.4,
		})
		score += a.cfg.BulkHighValueWeight
	}

	if len(customers) > a.cfg.BulkCustomerFanOut {
		factors = append(factors, entity.RiskFactor{
			FactorType:  entity.RiskFactorOperational,
			FactorName:  "Multiple Customer Risk",
			Severity:    entity.RiskMedium,
			Impact:      "Complexity in delivery coordination",
			Probability: 0.3,
		})
		score += a.cfg.BulkFanOutWeight
	}

	return &entity.RiskAssessment{
		RiskLevel:         levelFor(score, a.cfg.BulkBands),
		RiskScore:         score,
		RiskFactors:       factors,
		MitigationActions: mitigationsFor(factors),
	}
}

func (a *Assessor) isHazardous(productType string) bool {
	for _, p := range a.cfg.HazardousProducts {
		if p == productType {
			return true
		}
	}
	return false
}

func levelFor(score int, bands []Band) entity.RiskLevel {
	for _, b := range bands {
		if score > b.Above {
			return b.Level
		}
	}
	return entity.RiskLow
}
