package workflow

import (
	"context"

	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

// BuildRequestStateMachine creates a state machine configured for the request lifecycle.
// chainComplete reports whether an approval finishes the chain; it selects the
// target of APPROVE and may be nil when APPROVE is not fired.
func BuildRequestStateMachine(initialState domainwf.State, chainComplete domainwf.GuardFunc) domainwf.StateMachine {
	if chainComplete == nil {
		chainComplete = func(ctx context.Context) bool { return false }
	}
	chainContinues := func(ctx context.Context) bool { return !chainComplete(ctx) }

	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StatePending).
		Permit(domainwf.TriggerEdit, domainwf.StateDraft)

	builder.Configure(domainwf.StateReturned).
		Permit(domainwf.TriggerSubmit, domainwf.StatePending).
		Permit(domainwf.TriggerEdit, domainwf.StateReturned)

	builder.Configure(domainwf.StatePending).
		PermitIf(domainwf.TriggerApprove, domainwf.StateApproved, chainComplete).
		PermitIf(domainwf.TriggerApprove, domainwf.StatePending, chainContinues).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerReturn, domainwf.StateReturned)

	// APPROVED and REJECTED are terminal

	return builder.Build(initialState)
}
