package entity

// RiskLevel classifies an assessment score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskFactorType categorizes a contributing risk factor.
type RiskFactorType string

const (
	RiskFactorCredit      RiskFactorType = "CREDIT_RISK"
	RiskFactorCompliance  RiskFactorType = "COMPLIANCE_RISK"
	RiskFactorOperational RiskFactorType = "OPERATIONAL_RISK"
	RiskFactorFinancial   RiskFactorType = "FINANCIAL_RISK"
)

// RiskFactor is one weighted contribution to a risk score.
type RiskFactor struct {
	FactorType  RiskFactorType `json:"factor_type"`
	FactorName  string         `json:"factor_name"`
	Severity    RiskLevel      `json:"severity"`
	Impact      string         `json:"impact"`
	Probability float64        `json:"probability"`
}

// RiskAssessment is the derived risk snapshot attached to workflow metadata.
// It is contextual input to approval conditions, never a control-flow driver.
type RiskAssessment struct {
	RiskLevel         RiskLevel    `json:"risk_level"`
	RiskScore         int          `json:"risk_score"`
	RiskFactors       []RiskFactor `json:"risk_factors"`
	MitigationActions []string     `json:"mitigation_actions"`
}
