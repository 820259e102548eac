package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation is illegal for the current status
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrNotFound is returned when a request, employee or service does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the actor may not perform the attempted action
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation is returned for missing notes and malformed payloads
	ErrValidation = errors.New("validation error")

	// ErrRouting is returned when the next assignee cannot be resolved
	ErrRouting = errors.New("routing error")

	// ErrConcurrencyConflict is returned when a competing write won the race
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

var (
	// ErrNoManagerAssigned is returned when a REPORTS_TO step meets a requester without a manager
	ErrNoManagerAssigned = fmt.Errorf("%w: no manager assigned", ErrRouting)

	// ErrNoRoleHolder is returned when no employee holds the role a SYSTEM_ROLE step requires
	ErrNoRoleHolder = fmt.Errorf("%w: no role holder found", ErrRouting)

	// ErrNoApprovalSteps is returned when a service defines an empty approval chain
	ErrNoApprovalSteps = fmt.Errorf("%w: service has no approval steps", ErrRouting)
)
