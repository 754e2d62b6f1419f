package entity

import "time"

// ComplianceMetadata carries the Ghana-specific regulatory snapshot of the
// source transaction at submission time.
type ComplianceMetadata struct {
	NPAPermitNumber     string  `json:"npa_permit_number,omitempty"`
	CustomsEntryNumber  string  `json:"customs_entry_number,omitempty"`
	UPPFEligible        bool    `json:"uppf_eligible"`
	PetroleumTaxAmount  float64 `json:"petroleum_tax_amount"`
	TotalTaxes          float64 `json:"total_taxes"`
	ComplianceScore     float64 `json:"compliance_score"`
	EnvironmentalImpact string  `json:"environmental_impact,omitempty"`
}

// WorkflowMetadata is the immutable context snapshot captured when an
// instance is created. Conditions and risk rules evaluate against it.
type WorkflowMetadata struct {
	Amount                float64             `json:"amount"`
	Currency              string              `json:"currency,omitempty"`
	CustomerID            string              `json:"customer_id,omitempty"`
	CustomerName          string              `json:"customer_name,omitempty"`
	SupplierID            string              `json:"supplier_id,omitempty"`
	SupplierName          string              `json:"supplier_name,omitempty"`
	ProductType           string              `json:"product_type,omitempty"`
	DeliveryDate          *time.Time          `json:"delivery_date,omitempty"`
	BusinessUnit          string              `json:"business_unit,omitempty"`
	CostCenter            string              `json:"cost_center,omitempty"`
	CreditLimit           float64             `json:"credit_limit,omitempty"`
	CustomerRating        float64             `json:"customer_rating,omitempty"`
	UrgentRequest         bool                `json:"urgent_request"`
	BusinessJustification string              `json:"business_justification,omitempty"`
	RiskAssessment        *RiskAssessment     `json:"risk_assessment,omitempty"`
	Compliance            *ComplianceMetadata `json:"compliance,omitempty"`
}

// WorkflowInstance is one live, auditable execution of a workflow definition
// against a source transaction. The bound Definition is a snapshot taken at
// creation; it is never re-resolved while the instance is in flight.
type WorkflowInstance struct {
	InstanceID         string              `json:"instance_id"`
	WorkflowID         string              `json:"workflow_id"`
	WorkflowType       WorkflowType        `json:"workflow_type"`
	SourceDocumentID   string              `json:"source_document_id"`
	SourceDocumentType string              `json:"source_document_type"`
	RequestedBy        string              `json:"requested_by"`
	RequestedAt        time.Time           `json:"requested_at"`
	CurrentStepID      string              `json:"current_step_id,omitempty"`
	CurrentStepOrder   int                 `json:"current_step_order"`
	Status             string              `json:"status"`
	Priority           Priority            `json:"priority"`
	Metadata           WorkflowMetadata    `json:"metadata"`
	Definition         *WorkflowDefinition `json:"definition"`
	Attachments        []string            `json:"attachments,omitempty"`
	// Delegations maps an original approver id to its current delegate for
	// the current step. Cleared whenever the instance advances a step.
	Delegations      map[string]string `json:"delegations,omitempty"`
	SLADeadline      time.Time         `json:"sla_deadline"`
	EscalationLevel  int               `json:"escalation_level"`
	ApprovedBy       string            `json:"approved_by,omitempty"`
	ApprovalDate     *time.Time        `json:"approval_date,omitempty"`
	ApprovalComments string            `json:"approval_comments,omitempty"`
	Version          int64             `json:"version"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// IsTerminal reports whether the instance reached a final status. Terminal
// instances are read-only; cancellation is a terminal status, not a delete.
func (w *WorkflowInstance) IsTerminal() bool {
	switch w.Status {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// CurrentStep resolves the current step from the bound definition snapshot.
func (w *WorkflowInstance) CurrentStep() *ApprovalStep {
	if w.Definition == nil {
		return nil
	}
	if w.CurrentStepID != "" {
		if s := w.Definition.Step(w.CurrentStepID); s != nil {
			return s
		}
	}
	return w.Definition.StepAtOrder(w.CurrentStepOrder)
}

// DelegateFor returns the delegate assigned for the given original approver
// on the current step, if any.
func (w *WorkflowInstance) DelegateFor(originalApproverID string) (string, bool) {
	d, ok := w.Delegations[originalApproverID]
	return d, ok
}
