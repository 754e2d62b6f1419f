// Package workflow implements the approval engine: submission, decision
// processing, cancellation, bulk coordination and the escalation sweep. All
// state changes go through one SQL transaction per call and are validated
// against the approval state machine before anything is written.
package workflow

import (
	"context"
	"time"

	"github.com/omc-erp/approval-engine/internal/domain/entity"
)

// Action is a decision an approver can take on a pending instance.
type Action string

const (
	ActionApprove     Action = "APPROVE"
	ActionReject      Action = "REJECT"
	ActionDelegate    Action = "DELEGATE"
	ActionRequestInfo Action = "REQUEST_INFO"
)

// IsValid returns true for one of the defined decision actions.
func (a Action) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionDelegate, ActionRequestInfo:
		return true
	default:
		return false
	}
}

// SubmitRequest asks the engine to start an approval workflow for a source
// transaction owned by another service.
type SubmitRequest struct {
	WorkflowType       entity.WorkflowType `json:"workflow_type"`
	SourceDocumentID   string              `json:"source_document_id"`
	SourceDocumentType string              `json:"source_document_type"`
	RequestedBy        string              `json:"requested_by"`
	Priority           entity.Priority     `json:"priority,omitempty"`
	UrgentRequest      bool                `json:"urgent_request,omitempty"`
	Justification      string              `json:"business_justification,omitempty"`
	Attachments        []string            `json:"attachments,omitempty"`
}

// SubmitResult reports the created instance. AutoApproved is true when an
// auto-approval rule bypassed human review; the instance is then already
// terminal APPROVED and was never pending.
type SubmitResult struct {
	Instance     *entity.WorkflowInstance `json:"instance"`
	AutoApproved bool                     `json:"auto_approved"`
}

// BulkSubmitRequest starts one approval workflow covering an entire bulk
// invoice generation run over many deliveries.
type BulkSubmitRequest struct {
	DeliveryIDs   []string        `json:"delivery_ids"`
	RequestedBy   string          `json:"requested_by"`
	Priority      entity.Priority `json:"priority,omitempty"`
	Justification string          `json:"business_justification,omitempty"`
}

// ActionRequest records one approver decision on one instance.
type ActionRequest struct {
	InstanceID string `json:"instance_id"`
	// StepID optionally pins the decision to a step; a mismatch with the
	// instance's current step is a validation error.
	StepID       string   `json:"step_id,omitempty"`
	Action       Action   `json:"action"`
	ApproverID   string   `json:"approver_id"`
	ApproverName string   `json:"approver_name,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	Comments     string   `json:"comments,omitempty"`
	Attachments  []string `json:"attachments,omitempty"`
	// DelegateTo is required for DELEGATE and ignored otherwise.
	DelegateTo string `json:"delegate_to,omitempty"`
}

// BulkActionRequest applies the same decision to many instances. Each
// instance is processed in isolation; one failure never rolls back another.
type BulkActionRequest struct {
	InstanceIDs  []string `json:"instance_ids"`
	Action       Action   `json:"action"`
	ApproverID   string   `json:"approver_id"`
	ApproverName string   `json:"approver_name,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	Comments     string   `json:"comments,omitempty"`
}

// BulkItemResult is the outcome for one instance of a bulk action.
type BulkItemResult struct {
	InstanceID string `json:"instance_id"`
	Success    bool   `json:"success"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BulkActionResult aggregates a bulk action run.
type BulkActionResult struct {
	Total      int              `json:"total"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Results    []BulkItemResult `json:"results"`
}

// SweepReport summarizes one escalation sweep pass.
type SweepReport struct {
	Examined       int `json:"examined"`
	Escalated      int `json:"escalated"`
	TimedOut       int `json:"timed_out"`
	ForcedApproved int `json:"forced_approved"`
	ForcedRejected int `json:"forced_rejected"`
	Failed         int `json:"failed"`
}

// Engine is the approval workflow engine.
type Engine interface {
	// Submit starts a workflow for a source transaction. Fails with
	// ErrNotFound if the document does not exist and ErrConflict if it
	// already has an active instance.
	Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error)

	// SubmitBulkInvoiceRun starts one workflow covering a bulk invoice
	// generation run. All referenced deliveries must exist.
	SubmitBulkInvoiceRun(ctx context.Context, req *BulkSubmitRequest) (*SubmitResult, error)

	// Act records one approver decision and advances the instance.
	Act(ctx context.Context, req *ActionRequest) (*entity.WorkflowInstance, error)

	// Cancel terminates an instance from PENDING, IN_PROGRESS or ESCALATED.
	Cancel(ctx context.Context, instanceID, cancelledBy, reason string) (*entity.WorkflowInstance, error)

	// BulkAct applies one decision across many instances.
	BulkAct(ctx context.Context, req *BulkActionRequest) (*BulkActionResult, error)

	GetInstance(ctx context.Context, instanceID string) (*entity.WorkflowInstance, error)
	History(ctx context.Context, instanceID string) ([]*entity.ApprovalHistoryEntry, error)

	// ListPending returns active instances awaiting the given approver.
	// workflowType narrows the result when non-empty.
	ListPending(ctx context.Context, approverID string, workflowType entity.WorkflowType) ([]*entity.WorkflowInstance, error)

	// Sweep escalates or times out instances whose SLA deadline passed
	// before now. Safe to re-run: a swept instance is not touched again
	// until its refreshed deadline passes.
	Sweep(ctx context.Context, now time.Time) (*SweepReport, error)
}
