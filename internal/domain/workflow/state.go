package workflow

// State represents a request status in the approval lifecycle
type State string

const (
	StateDraft    State = "DRAFT"
	StatePending  State = "PENDING"
	StateReturned State = "RETURNED"
	StateApproved State = "APPROVED"
	StateRejected State = "REJECTED"
)

var validStates = map[State]bool{
	StateDraft:    true,
	StatePending:  true,
	StateReturned: true,
	StateApproved: true,
	StateRejected: true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsOwnerEditable returns true while only the requester may act on the request
func (s State) IsOwnerEditable() bool {
	return s == StateDraft || s == StateReturned
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
