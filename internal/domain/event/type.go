package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestCreated   Type = "request.created"
	TypeRequestSubmitted Type = "request.submitted"
	TypeRequestApproved  Type = "request.approved"
	TypeRequestRejected  Type = "request.rejected"
	TypeRequestReturned  Type = "request.returned"
	TypeRequestAssigned  Type = "request.assigned"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestCreated,
		TypeRequestSubmitted,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestReturned,
		TypeRequestAssigned:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the event marks a final decision on a request
func (t Type) IsTerminal() bool {
	return t == TypeRequestApproved || t == TypeRequestRejected
}
