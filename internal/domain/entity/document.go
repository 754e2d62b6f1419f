package entity

import "time"

// SourceDocument is the read-only snapshot of the business transaction being
// authorized. It is fetched from the owning domain service; the engine never
// persists or mutates these records beyond recording the approval outcome.
type SourceDocument struct {
	ID                 string     `json:"id"`
	Type               string     `json:"type"`
	Number             string     `json:"number,omitempty"`
	TotalValue         float64    `json:"total_value"`
	Currency           string     `json:"currency,omitempty"`
	CustomerID         string     `json:"customer_id,omitempty"`
	CustomerName       string     `json:"customer_name,omitempty"`
	SupplierID         string     `json:"supplier_id,omitempty"`
	SupplierName       string     `json:"supplier_name,omitempty"`
	ProductType        string     `json:"product_type,omitempty"`
	DeliveryDate       *time.Time `json:"delivery_date,omitempty"`
	DepotID            string     `json:"depot_id,omitempty"`
	CreditLimit        float64    `json:"credit_limit,omitempty"`
	CustomerRating     float64    `json:"customer_rating,omitempty"`
	NPAPermitNumber    string     `json:"npa_permit_number,omitempty"`
	CustomsEntryNumber string     `json:"customs_entry_number,omitempty"`
	UPPFLevy           float64    `json:"uppf_levy,omitempty"`
	PetroleumTaxAmount float64    `json:"petroleum_tax_amount,omitempty"`
	TotalTaxes         float64    `json:"total_taxes,omitempty"`
	ComplianceScore    float64    `json:"compliance_score,omitempty"`
}

// ApprovalOutcome is reported back to the owning domain service when a
// workflow reaches a decision (or is first submitted).
type ApprovalOutcome struct {
	Status     string    `json:"status"`
	DecidedBy  string    `json:"decided_by,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
	Comments   string    `json:"comments,omitempty"`
	InstanceID string    `json:"instance_id"`
}
