package entity

import (
	"sort"
	"time"
)

// FieldType is the input type of a form field
type FieldType string

const (
	FieldText     FieldType = "TEXT"
	FieldTextArea FieldType = "TEXTAREA"
	FieldNumber   FieldType = "NUMBER"
	FieldDate     FieldType = "DATE"
	FieldSelect   FieldType = "SELECT"
	FieldFile     FieldType = "FILE"
)

// StepKind selects how an approval step resolves to an employee
type StepKind string

const (
	StepReportsTo  StepKind = "REPORTS_TO"
	StepSystemRole StepKind = "SYSTEM_ROLE"
)

// FormField describes one payload entry of a service
type FormField struct {
	ID       string    `json:"id" yaml:"id"`
	Label    string    `json:"label" yaml:"label"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`
	Options  []string  `json:"options,omitempty" yaml:"options,omitempty"`
}

// ApprovalStep is one stage in a service's approval chain
type ApprovalStep struct {
	Order     int        `json:"order" yaml:"order"`
	Kind      StepKind   `json:"kind" yaml:"kind"`
	RoleValue SystemRole `json:"role_value,omitempty" yaml:"role_value,omitempty"`
}

// ServiceDefinition is a request type offered in the catalog
type ServiceDefinition struct {
	ID        string         `json:"id" yaml:"id"`
	Title     string         `json:"title" yaml:"title"`
	Icon      string         `json:"icon" yaml:"icon"`
	Fields    []FormField    `json:"fields" yaml:"fields"`
	Steps     []ApprovalStep `json:"steps" yaml:"steps"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"-"`
}

// OrderedSteps returns a copy of the approval steps sorted by Order
func (s *ServiceDefinition) OrderedSteps() []ApprovalStep {
	steps := append([]ApprovalStep(nil), s.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	return steps
}

// Field looks up a form field by id
func (s *ServiceDefinition) Field(id string) (FormField, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FormField{}, false
}
