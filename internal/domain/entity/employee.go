package entity

import "time"

// SystemRole is a capability tag, not a position in the reporting hierarchy
type SystemRole string

const (
	RoleEmployee SystemRole = "EMPLOYEE"
	RoleManager  SystemRole = "MANAGER"
	RoleDirector SystemRole = "DIRECTOR"
	RoleHRAdmin  SystemRole = "HR_ADMIN"
	RoleCFO      SystemRole = "CFO"
	RoleCEO      SystemRole = "CEO"
)

var validRoles = map[SystemRole]bool{
	RoleEmployee: true,
	RoleManager:  true,
	RoleDirector: true,
	RoleHRAdmin:  true,
	RoleCFO:      true,
	RoleCEO:      true,
}

// IsValid reports whether the role is one of the known system roles
func (r SystemRole) IsValid() bool {
	return validRoles[r]
}

func (r SystemRole) String() string {
	return string(r)
}

// Delegation temporarily redirects an employee's approvals to someone else
type Delegation struct {
	DelegateID   string    `json:"delegate_id" yaml:"delegate_id"`
	DelegateName string    `json:"delegate_name" yaml:"delegate_name"`
	Until        time.Time `json:"until" yaml:"until"`
}

// IsActive returns true while the delegation has not expired
func (d *Delegation) IsActive(now time.Time) bool {
	return d != nil && d.Until.After(now)
}

// Employee is a directory record
type Employee struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Department string      `json:"department"`
	JobTitle   string      `json:"job_title"`
	ReportsTo  *string     `json:"reports_to,omitempty"`
	SystemRole SystemRole  `json:"system_role"`
	Delegation *Delegation `json:"delegation,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// ActiveDelegate returns the delegate id if the employee is currently delegating
func (e *Employee) ActiveDelegate(now time.Time) (string, bool) {
	if e.Delegation.IsActive(now) {
		return e.Delegation.DelegateID, true
	}
	return "", false
}

// ManagerID returns the direct manager id or an empty string at the top of the hierarchy
func (e *Employee) ManagerID() string {
	if e.ReportsTo == nil {
		return ""
	}
	return *e.ReportsTo
}
