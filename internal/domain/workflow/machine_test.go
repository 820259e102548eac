package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, false},
		{StatePending, false},
		{StateReturned, false},
		{StateApproved, true},
		{StateRejected, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"draft", StateDraft, true},
		{"returned", StateReturned, true},
		{"unknown", State("CANCELLED"), false},
		{"empty", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsOwnerEditable(t *testing.T) {
	if !StateDraft.IsOwnerEditable() || !StateReturned.IsOwnerEditable() {
		t.Error("DRAFT and RETURNED should be owner editable")
	}
	if StatePending.IsOwnerEditable() || StateApproved.IsOwnerEditable() {
		t.Error("PENDING and APPROVED should not be owner editable")
	}
}

func TestRoutingErrorsWrapErrRouting(t *testing.T) {
	for _, err := range []error{ErrNoManagerAssigned, ErrNoRoleHolder, ErrNoApprovalSteps} {
		if !errors.Is(err, ErrRouting) {
			t.Errorf("%v should wrap ErrRouting", err)
		}
	}
}

func TestBuilder_ConfigureReturnsSameConfig(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StateDraft)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}
	if config != builder.Configure(StateDraft) {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_PanicsOnInvalidStates(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"configure", func() { NewBuilder().Configure(State("INVALID")) }},
		{"build", func() { NewBuilder().Build(State("INVALID")) }},
		{"permit target", func() { NewBuilder().Configure(StateDraft).Permit(TriggerSubmit, State("INVALID")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s should panic on invalid state", tt.name)
				}
			}()
			tt.fn()
		})
	}
}

func TestStateMachine_PermitAndFire(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).
		Permit(TriggerSubmit, StatePending)

	machine := builder.Build(StateDraft)

	if !machine.CanFire(TriggerSubmit) {
		t.Error("CanFire() should return true for permitted trigger")
	}
	if machine.CanFire(TriggerApprove) {
		t.Error("CanFire() should return false for unconfigured trigger")
	}
	if err := machine.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine.State() != StatePending {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StatePending)
	}
}

func TestStateMachine_PermitIf_GuardSelectsTarget(t *testing.T) {
	complete := false
	builder := NewBuilder()
	builder.Configure(StatePending).
		PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool { return complete }).
		PermitIf(TriggerApprove, StatePending, func(ctx context.Context) bool { return !complete })

	advancing := builder.Build(StatePending)
	if err := advancing.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if advancing.State() != StatePending {
		t.Errorf("State = %v, want %v", advancing.State(), StatePending)
	}

	complete = true
	finishing := builder.Build(StatePending)
	if err := finishing.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if finishing.State() != StateApproved {
		t.Errorf("State = %v, want %v", finishing.State(), StateApproved)
	}
}

func TestStateMachine_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).
		PermitIf(TriggerSubmit, StatePending, func(ctx context.Context) bool { return false })

	machine := builder.Build(StateDraft)

	err := machine.Fire(context.Background(), TriggerSubmit)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if machine.State() != StateDraft {
		t.Errorf("State should remain %v after failed Fire(), got %v", StateDraft, machine.State())
	}
}

func TestStateMachine_Fire_InvalidTransition(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).
		Permit(TriggerReject, StateRejected)

	machine := builder.Build(StateRejected)

	err := machine.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
	if machine.State() != StateRejected {
		t.Errorf("State should remain %v, got %v", StateRejected, machine.State())
	}
}

func TestStateMachine_PermittedTriggersSorted(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).
		Permit(TriggerReturn, StateReturned).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	triggers := builder.Build(StatePending).PermittedTriggers()
	want := []Trigger{TriggerApprove, TriggerReject, TriggerReturn}
	if len(triggers) != len(want) {
		t.Fatalf("PermittedTriggers() = %v, want %v", triggers, want)
	}
	for i := range want {
		if triggers[i] != want[i] {
			t.Errorf("PermittedTriggers()[%d] = %v, want %v", i, triggers[i], want[i])
		}
	}

	if got := builder.Build(StateApproved).PermittedTriggers(); len(got) != 0 {
		t.Errorf("terminal state should have 0 permitted triggers, got %v", got)
	}
}

func TestStateMachine_Independence(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).
		Permit(TriggerSubmit, StatePending)

	machine1 := builder.Build(StateDraft)
	machine2 := builder.Build(StateDraft)

	if err := machine1.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine2.State() != StateDraft {
		t.Errorf("machine2 state = %v, want %v (machines should be independent)", machine2.State(), StateDraft)
	}
}
