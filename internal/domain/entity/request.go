package entity

import (
	"time"

	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

// History actions recorded by the workflow engine
const (
	ActionCreatedAsDraft = "created as draft"
	ActionSubmitted      = "submitted"
	ActionApproved       = "approved"
	ActionRejected       = "rejected"
	ActionReturned       = "returned for edit"
)

// HistoryEntry is one audit record of a lifecycle transition
type HistoryEntry struct {
	ActorID        string    `json:"actor_id"`
	ActorName      string    `json:"actor_name"`
	Action         string    `json:"action"`
	Note           string    `json:"note,omitempty"`
	Time           time.Time `json:"time"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

// Request is an employee's submission for one catalog service
type Request struct {
	ID               string         `json:"id"`
	EmployeeID       string         `json:"employee_id"`
	EmployeeName     string         `json:"employee_name"`
	ServiceID        string         `json:"service_id"`
	ServiceTitle     string         `json:"service_title"`
	Payload          Payload        `json:"payload"`
	Status           domainwf.State `json:"status"`
	CurrentStepIndex int            `json:"current_step_index"`
	AssignedTo       string         `json:"assigned_to"`
	// Steps is the approval chain pinned at the latest submission
	Steps     []ApprovalStep `json:"steps"`
	History   []HistoryEntry `json:"history"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RequestFilter narrows request listings; empty fields match everything
type RequestFilter struct {
	AssigneeID string
	EmployeeID string
	ServiceID  string
	Status     domainwf.State
	Limit      int
}

// Matches reports whether the request satisfies the filter
func (f RequestFilter) Matches(r *Request) bool {
	if f.AssigneeID != "" && r.AssignedTo != f.AssigneeID {
		return false
	}
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.ServiceID != "" && r.ServiceID != f.ServiceID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// Clone returns a deep copy so callers cannot alias stored state
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	out.Payload = r.Payload.Clone()
	out.Steps = append([]ApprovalStep(nil), r.Steps...)
	out.History = append([]HistoryEntry(nil), r.History...)
	return &out
}

// LastHistoryTime returns the time of the newest history entry
func (r *Request) LastHistoryTime() time.Time {
	if len(r.History) == 0 {
		return time.Time{}
	}
	return r.History[len(r.History)-1].Time
}

// HasIdempotencyKey reports whether a transition with this key was already applied
func (r *Request) HasIdempotencyKey(key string) bool {
	_, ok := r.HistoryByIdempotencyKey(key)
	return ok
}

// HistoryByIdempotencyKey returns the entry recorded with key
func (r *Request) HistoryByIdempotencyKey(key string) (HistoryEntry, bool) {
	if key == "" {
		return HistoryEntry{}, false
	}
	for _, h := range r.History {
		if h.IdempotencyKey == key {
			return h, true
		}
	}
	return HistoryEntry{}, false
}
