package workflow

import (
	wf "github.com/omc-erp/approval-engine/internal/domain/workflow"
)

// approvalTransitions is the shared transition table for approval instances.
// Built once; machines share it read-only.
var approvalTransitions = newApprovalTransitions()

func newApprovalTransitions() *wf.Builder {
	b := wf.NewBuilder()

	b.Configure(wf.StatePending).
		Permit(wf.TriggerAdvance, wf.StateInProgress).
		Permit(wf.TriggerFinalApprove, wf.StateApproved).
		Permit(wf.TriggerReject, wf.StateRejected).
		Permit(wf.TriggerDelegate, wf.StatePending).
		Permit(wf.TriggerRequestInfo, wf.StatePending).
		Permit(wf.TriggerCancel, wf.StateCancelled).
		Permit(wf.TriggerEscalate, wf.StateEscalated).
		Permit(wf.TriggerMarkTimeout, wf.StateTimeout)

	b.Configure(wf.StateInProgress).
		Permit(wf.TriggerAdvance, wf.StateInProgress).
		Permit(wf.TriggerFinalApprove, wf.StateApproved).
		Permit(wf.TriggerReject, wf.StateRejected).
		Permit(wf.TriggerDelegate, wf.StateInProgress).
		Permit(wf.TriggerRequestInfo, wf.StateInProgress).
		Permit(wf.TriggerCancel, wf.StateCancelled).
		Permit(wf.TriggerEscalate, wf.StateEscalated).
		Permit(wf.TriggerMarkTimeout, wf.StateTimeout)

	// Escalated instances still accept decisions; a decision pulls them back
	// into the normal flow. Re-escalation bumps the level in place.
	b.Configure(wf.StateEscalated).
		Permit(wf.TriggerAdvance, wf.StateInProgress).
		Permit(wf.TriggerFinalApprove, wf.StateApproved).
		Permit(wf.TriggerReject, wf.StateRejected).
		Permit(wf.TriggerDelegate, wf.StateEscalated).
		Permit(wf.TriggerRequestInfo, wf.StateEscalated).
		Permit(wf.TriggerCancel, wf.StateCancelled).
		Permit(wf.TriggerEscalate, wf.StateEscalated).
		Permit(wf.TriggerMarkTimeout, wf.StateTimeout)

	// Timed-out instances accept decisions and escalation, but not
	// cancellation by the requester.
	b.Configure(wf.StateTimeout).
		Permit(wf.TriggerAdvance, wf.StateInProgress).
		Permit(wf.TriggerFinalApprove, wf.StateApproved).
		Permit(wf.TriggerReject, wf.StateRejected).
		Permit(wf.TriggerDelegate, wf.StateTimeout).
		Permit(wf.TriggerRequestInfo, wf.StateTimeout).
		Permit(wf.TriggerEscalate, wf.StateEscalated)

	return b
}

// machineAt returns an approval state machine positioned at the given status.
func machineAt(status string) wf.StateMachine {
	return approvalTransitions.Build(wf.State(status))
}

// actionTrigger maps a decision action to the state-machine trigger used to
// validate it from the current state. APPROVE maps to ADVANCE; whether the
// approval is final is decided by history replay, and FINAL_APPROVE is
// permitted everywhere ADVANCE is.
func actionTrigger(a Action) wf.Trigger {
	switch a {
	case ActionApprove:
		return wf.TriggerAdvance
	case ActionReject:
		return wf.TriggerReject
	case ActionDelegate:
		return wf.TriggerDelegate
	case ActionRequestInfo:
		return wf.TriggerRequestInfo
	default:
		return wf.Trigger(string(a))
	}
}
