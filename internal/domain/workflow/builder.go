package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides whether a configured transition may fire.
type GuardFunc func(ctx context.Context) bool

// Builder assembles a state machine configuration. Configurations are
// reusable: Build may be called many times with different initial states.
type Builder struct {
	transitions map[State]map[Trigger][]transition
}

// StateConfiguration configures outgoing transitions for one state.
type StateConfiguration struct {
	builder *Builder
	from    State
}

type transition struct {
	to    State
	guard GuardFunc
}

// NewBuilder creates an empty state machine builder.
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[State]map[Trigger][]transition)}
}

// Configure returns the configuration for the given state, creating it on
// first use. Panics on an invalid state: a bad configuration is a programming
// error, not a runtime condition.
func (b *Builder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("workflow: configuring invalid state %q", state))
	}
	if b.transitions[state] == nil {
		b.transitions[state] = make(map[Trigger][]transition)
	}
	return StateConfiguration{builder: b, from: state}
}

// Permit allows the trigger to transition to the target state.
func (c StateConfiguration) Permit(trigger Trigger, to State) StateConfiguration {
	return c.PermitIf(trigger, to, nil)
}

// PermitIf allows the trigger to transition to the target state when the
// guard passes. Multiple transitions for one trigger are tried in order.
func (c StateConfiguration) PermitIf(trigger Trigger, to State, guard GuardFunc) StateConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("workflow: permitting transition to invalid state %q", to))
	}
	table := c.builder.transitions[c.from]
	table[trigger] = append(table[trigger], transition{to: to, guard: guard})
	return c
}

// Build creates a machine positioned at the initial state. The returned
// machine shares the builder's (immutable after Build) transition table.
func (b *Builder) Build(initial State) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("workflow: invalid initial state %q", initial))
	}
	return &machine{current: initial, transitions: b.transitions}
}

type machine struct {
	current     State
	transitions map[State]map[Trigger][]transition
}

func (m *machine) State() State {
	return m.current
}

func (m *machine) CanFire(trigger Trigger) bool {
	return len(m.transitions[m.current][trigger]) > 0
}

func (m *machine) Fire(ctx context.Context, trigger Trigger) error {
	candidates := m.transitions[m.current][trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: trigger %s from state %s", ErrInvalidTransition, trigger, m.current)
	}
	for _, t := range candidates {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}
	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.current)
}

func (m *machine) PermittedTriggers() []Trigger {
	table := m.transitions[m.current]
	triggers := make([]Trigger, 0, len(table))
	for t := range table {
		triggers = append(triggers, t)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
