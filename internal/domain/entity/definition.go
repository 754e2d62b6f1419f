package entity

import (
	"fmt"
	"sort"
	"time"
)

// WorkflowType identifies the transaction domain an approval workflow covers.
type WorkflowType string

const (
	WorkflowTypeDeliveryApproval WorkflowType = "DELIVERY_APPROVAL"
	WorkflowTypeSupplierInvoice  WorkflowType = "SUPPLIER_INVOICE_APPROVAL"
	WorkflowTypeCustomerInvoice  WorkflowType = "CUSTOMER_INVOICE_APPROVAL"
	WorkflowTypeBulkInvoice      WorkflowType = "BULK_INVOICE_APPROVAL"
	WorkflowTypeUPPFClaim        WorkflowType = "UPPF_CLAIM_APPROVAL"
)

// IsValid returns true if the workflow type is one of the defined domains.
func (t WorkflowType) IsValid() bool {
	switch t {
	case WorkflowTypeDeliveryApproval, WorkflowTypeSupplierInvoice,
		WorkflowTypeCustomerInvoice, WorkflowTypeBulkInvoice, WorkflowTypeUPPFClaim:
		return true
	default:
		return false
	}
}

// StepType identifies how approvers are resolved for a step.
type StepType string

const (
	StepTypeIndividual StepType = "INDIVIDUAL"
	StepTypeGroup      StepType = "GROUP"
	StepTypeRoleBased  StepType = "ROLE_BASED"
	StepTypeSystem     StepType = "SYSTEM"
)

// ApproverType identifies what an ApproverInfo entry refers to.
type ApproverType string

const (
	ApproverTypeUser   ApproverType = "USER"
	ApproverTypeRole   ApproverType = "ROLE"
	ApproverTypeSystem ApproverType = "SYSTEM"
)

// OnRejectPolicy controls what a rejection on an optional step does.
type OnRejectPolicy string

const (
	// OnRejectTerminate ends the workflow with a terminal REJECTED status.
	OnRejectTerminate OnRejectPolicy = "TERMINATE"
	// OnRejectSkip treats the rejection as skip-and-advance. Only honored on
	// optional steps; a non-optional step always terminates.
	OnRejectSkip OnRejectPolicy = "SKIP"
)

// ConditionType is the closed set of attributes an ApprovalCondition may test.
type ConditionType string

const (
	ConditionAmountThreshold ConditionType = "AMOUNT_THRESHOLD"
	ConditionCreditLimit     ConditionType = "CREDIT_LIMIT"
	ConditionCustomerRating  ConditionType = "CUSTOMER_RATING"
	ConditionProductType     ConditionType = "PRODUCT_TYPE"
	ConditionComplianceScore ConditionType = "COMPLIANCE_SCORE"
)

// Operator is the comparison applied by an ApprovalCondition.
type Operator string

const (
	OpGT    Operator = "GT"
	OpGTE   Operator = "GTE"
	OpLT    Operator = "LT"
	OpLTE   Operator = "LTE"
	OpEQ    Operator = "EQ"
	OpNEQ   Operator = "NEQ"
	OpIn    Operator = "IN"
	OpNotIn Operator = "NOT_IN"
)

// ApprovalCondition is a single predicate over the evaluation context.
// Conditions in one list are AND-combined; OR semantics are expressed as
// multiple rules or multiple steps.
type ApprovalCondition struct {
	ConditionType ConditionType `json:"condition_type"`
	Operator      Operator      `json:"operator"`
	Value         interface{}   `json:"value"`
	Description   string        `json:"description,omitempty"`
}

// ApproverInfo describes one approver assignment on a step.
type ApproverInfo struct {
	ApproverID          string       `json:"approver_id"`
	ApproverType        ApproverType `json:"approver_type"`
	ApproverName        string       `json:"approver_name"`
	Email               string       `json:"email,omitempty"`
	AlternateApproverID string       `json:"alternate_approver_id,omitempty"`
	DelegationEnabled   bool         `json:"delegation_enabled"`
}

// ApprovalStep is one ordered approval gate in a workflow definition.
type ApprovalStep struct {
	StepID            string              `json:"step_id"`
	StepName          string              `json:"step_name"`
	StepOrder         int                 `json:"step_order"`
	StepType          StepType            `json:"step_type"`
	RequiredApprovers int                 `json:"required_approvers"`
	Approvers         []ApproverInfo      `json:"approvers"`
	Conditions        []ApprovalCondition `json:"conditions,omitempty"`
	IsOptional        bool                `json:"is_optional"`
	OnReject          OnRejectPolicy      `json:"on_reject,omitempty"`
	TimeoutHours      int                 `json:"timeout_hours"`
	EscalationActions []EscalationAction  `json:"escalation_actions,omitempty"`
}

// RejectionTerminates reports whether a REJECT on this step ends the workflow.
func (s *ApprovalStep) RejectionTerminates() bool {
	if !s.IsOptional {
		return true
	}
	return s.OnReject != OnRejectSkip
}

// EscalationTrigger identifies the event an EscalationRule reacts to.
type EscalationTrigger string

const (
	TriggerTimeout           EscalationTrigger = "TIMEOUT"
	TriggerRejection         EscalationTrigger = "REJECTION"
	TriggerNonResponse       EscalationTrigger = "NON_RESPONSE"
	TriggerComplianceFailure EscalationTrigger = "COMPLIANCE_FAILURE"
)

// EscalationActionType identifies what an escalation action does.
type EscalationActionType string

const (
	ActionNotify            EscalationActionType = "NOTIFY"
	ActionReassign          EscalationActionType = "REASSIGN"
	ActionAutoApprove       EscalationActionType = "AUTO_APPROVE"
	ActionAutoReject        EscalationActionType = "AUTO_REJECT"
	ActionEscalateToManager EscalationActionType = "ESCALATE_TO_MANAGER"
)

// EscalationAction is one step of an escalation rule, executed in order.
type EscalationAction struct {
	ActionType           EscalationActionType `json:"action_type"`
	TargetUserID         string               `json:"target_user_id,omitempty"`
	TargetRoleID         string               `json:"target_role_id,omitempty"`
	NotificationTemplate string               `json:"notification_template,omitempty"`
	Priority             Priority             `json:"priority,omitempty"`
}

// EscalationRule configures forced progression for overdue or stuck steps.
type EscalationRule struct {
	RuleID              string             `json:"rule_id"`
	Trigger             EscalationTrigger  `json:"trigger"`
	EscalationTimeHours int                `json:"escalation_time_hours"`
	Actions             []EscalationAction `json:"actions"`
	MaxEscalationLevel  int                `json:"max_escalation_level"`
}

// AutoApprovalRule bypasses human approval when all of its conditions hold.
type AutoApprovalRule struct {
	RuleID                  string              `json:"rule_id"`
	RuleName                string              `json:"rule_name"`
	Conditions              []ApprovalCondition `json:"conditions"`
	ApplicableWorkflowTypes []WorkflowType      `json:"applicable_workflow_types,omitempty"`
	IsActive                bool                `json:"is_active"`
}

// AppliesTo reports whether the rule covers the given workflow type.
// An empty applicable list means the rule covers every type.
func (r *AutoApprovalRule) AppliesTo(t WorkflowType) bool {
	if len(r.ApplicableWorkflowTypes) == 0 {
		return true
	}
	for _, wt := range r.ApplicableWorkflowTypes {
		if wt == t {
			return true
		}
	}
	return false
}

// ComplianceConfig carries the regulatory thresholds and flags a definition
// enforces for Ghana petroleum transactions.
type ComplianceConfig struct {
	NPAApprovalRequired            bool    `json:"npa_approval_required"`
	CustomsApprovalRequired        bool    `json:"customs_approval_required"`
	UPPFValidationRequired         bool    `json:"uppf_validation_required"`
	VATApprovalThreshold           float64 `json:"vat_approval_threshold"`
	WithholdingTaxApprovalRequired bool    `json:"withholding_tax_approval_required"`
	ComplianceCheckMandatory       bool    `json:"compliance_check_mandatory"`
}

// WorkflowDefinition is the versioned template a WorkflowInstance executes.
// Instances bind to a snapshot of the definition at creation time; editing a
// definition never changes in-flight instances.
type WorkflowDefinition struct {
	WorkflowID        string              `json:"workflow_id"`
	WorkflowName      string              `json:"workflow_name"`
	WorkflowType      WorkflowType        `json:"workflow_type"`
	Description       string              `json:"description,omitempty"`
	IsActive          bool                `json:"is_active"`
	Steps             []ApprovalStep      `json:"steps"`
	EscalationRules   []EscalationRule    `json:"escalation_rules,omitempty"`
	AutoApprovalRules []AutoApprovalRule  `json:"auto_approval_rules,omitempty"`
	Selectors         []ApprovalCondition `json:"selectors,omitempty"`
	Compliance        ComplianceConfig    `json:"compliance"`
	CreatedAt         time.Time           `json:"created_at,omitempty"`
	UpdatedAt         time.Time           `json:"updated_at,omitempty"`
}

// Validate checks structural invariants: a type, at least one step, and
// unique ascending step orders.
func (d *WorkflowDefinition) Validate() error {
	if d.WorkflowID == "" {
		return fmt.Errorf("workflow definition has no id")
	}
	if !d.WorkflowType.IsValid() {
		return fmt.Errorf("invalid workflow type: %s", d.WorkflowType)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("workflow definition %s has no steps", d.WorkflowID)
	}
	seen := make(map[int]bool, len(d.Steps))
	for i := range d.Steps {
		s := &d.Steps[i]
		if s.StepID == "" {
			return fmt.Errorf("step %d of %s has no id", i, d.WorkflowID)
		}
		if seen[s.StepOrder] {
			return fmt.Errorf("duplicate step order %d in %s", s.StepOrder, d.WorkflowID)
		}
		seen[s.StepOrder] = true
		if s.RequiredApprovers < 1 {
			return fmt.Errorf("step %s requires at least one approver", s.StepID)
		}
	}
	return nil
}

// SortedSteps returns the steps ordered by StepOrder ascending.
func (d *WorkflowDefinition) SortedSteps() []ApprovalStep {
	steps := make([]ApprovalStep, len(d.Steps))
	copy(steps, d.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
	return steps
}

// Step returns the step with the given id, or nil.
func (d *WorkflowDefinition) Step(stepID string) *ApprovalStep {
	for i := range d.Steps {
		if d.Steps[i].StepID == stepID {
			return &d.Steps[i]
		}
	}
	return nil
}

// StepAtOrder returns the step with the given order, or nil.
func (d *WorkflowDefinition) StepAtOrder(order int) *ApprovalStep {
	for i := range d.Steps {
		if d.Steps[i].StepOrder == order {
			return &d.Steps[i]
		}
	}
	return nil
}

// StepAfter returns the next step in order after the given order, or nil if
// the given order is the last gate.
func (d *WorkflowDefinition) StepAfter(order int) *ApprovalStep {
	var next *ApprovalStep
	for i := range d.Steps {
		s := &d.Steps[i]
		if s.StepOrder <= order {
			continue
		}
		if next == nil || s.StepOrder < next.StepOrder {
			next = s
		}
	}
	return next
}

// EscalationRuleFor returns the first escalation rule matching the trigger,
// or nil if the definition configures none.
func (d *WorkflowDefinition) EscalationRuleFor(trigger EscalationTrigger) *EscalationRule {
	for i := range d.EscalationRules {
		if d.EscalationRules[i].Trigger == trigger {
			return &d.EscalationRules[i]
		}
	}
	return nil
}
