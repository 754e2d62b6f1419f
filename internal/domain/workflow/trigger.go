package workflow

// Trigger is an event that can cause a state transition.
type Trigger string

const (
	// TriggerAdvance records step activity that leaves the instance pending
	// further approvals (first approval on a step, or moving to a new step).
	TriggerAdvance Trigger = "ADVANCE"
	// TriggerFinalApprove completes the last required approval.
	TriggerFinalApprove Trigger = "FINAL_APPROVE"
	TriggerReject       Trigger = "REJECT"
	TriggerDelegate     Trigger = "DELEGATE"
	TriggerRequestInfo  Trigger = "REQUEST_INFO"
	TriggerCancel       Trigger = "CANCEL"
	TriggerEscalate     Trigger = "ESCALATE"
	TriggerMarkTimeout  Trigger = "MARK_TIMEOUT"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
