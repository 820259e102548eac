package workflow

import "context"

// StateMachine tracks the status of one request and validates transitions against it
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire reports whether any transition is configured for the trigger in the current state
	CanFire(trigger Trigger) bool

	// Fire executes the first transition whose guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}
