package workflow

import "context"

// StateMachine tracks the current state and validates transitions.
type StateMachine interface {
	// State returns the current state.
	State() State

	// CanFire returns true if the trigger is permitted in the current state.
	CanFire(trigger Trigger) bool

	// Fire executes the trigger, transitioning to the new state if allowed.
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state.
	PermittedTriggers() []Trigger
}
