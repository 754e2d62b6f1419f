package workflow

// State is a workflow instance status in the approval lifecycle.
type State string

const (
	StatePending    State = "PENDING"
	StateInProgress State = "IN_PROGRESS"
	StateApproved   State = "APPROVED"
	StateRejected   State = "REJECTED"
	StateCancelled  State = "CANCELLED"
	// StateEscalated and StateTimeout are non-terminal alert states: the
	// instance still accepts decisions until a human or an escalation action
	// forces a terminal outcome.
	StateEscalated State = "ESCALATED"
	StateTimeout   State = "TIMEOUT"
)

var validStates = map[State]bool{
	StatePending:    true,
	StateInProgress: true,
	StateApproved:   true,
	StateRejected:   true,
	StateCancelled:  true,
	StateEscalated:  true,
	StateTimeout:    true,
}

var terminalStates = map[State]bool{
	StateApproved:  true,
	StateRejected:  true,
	StateCancelled: true,
}

// IsValid returns true if the state is a defined workflow state.
func (s State) IsValid() bool {
	return validStates[s]
}

// IsTerminal returns true if no further transitions are allowed from s.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
