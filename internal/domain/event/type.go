package event

// Type identifies a domain event.
type Type string

const (
	TypeSubmittedForApproval     Type = "workflow.submitted_for_approval"
	TypeAutoApproved             Type = "workflow.auto_approved"
	TypeActionProcessed          Type = "approval_action.processed"
	TypeCancelled                Type = "workflow_instance.cancelled"
	TypeEscalated                Type = "workflow.escalated"
	TypeTimedOut                 Type = "workflow.timed_out"
	TypeBulkSubmittedForApproval Type = "bulk_invoice.submitted_for_approval"
	TypeBulkApprovalCompleted    Type = "bulk_approval.completed"
)

// String returns the string representation of the event type.
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants.
func (t Type) IsValid() bool {
	switch t {
	case TypeSubmittedForApproval, TypeAutoApproved, TypeActionProcessed,
		TypeCancelled, TypeEscalated, TypeTimedOut,
		TypeBulkSubmittedForApproval, TypeBulkApprovalCompleted:
		return true
	default:
		return false
	}
}
