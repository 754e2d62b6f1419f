package port

import "errors"

// Error taxonomy shared by the engine, repositories and gateways. Callers
// classify failures with errors.Is; the transport layer maps them to status
// codes.
var (
	// ErrNotFound: instance, source transaction or definition missing.
	ErrNotFound = errors.New("not found")

	// ErrConflict: duplicate active instance for a source document, a
	// duplicate approval, or a lost optimistic-concurrency race.
	ErrConflict = errors.New("conflict")

	// ErrForbidden: the acting approver is not authorized for the step.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState: action attempted from a state that forbids it.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation: malformed action payload or workflow configuration.
	ErrValidation = errors.New("validation failed")

	// ErrDependency: an external collaborator is unreachable or misbehaving.
	ErrDependency = errors.New("dependency failure")
)
