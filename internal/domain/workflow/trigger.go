package workflow

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	TriggerSubmit  Trigger = "SUBMIT"
	TriggerEdit    Trigger = "EDIT"
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
	TriggerReturn  Trigger = "RETURN"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
