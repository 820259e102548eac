package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
	"github.com/garyjia/employee-portal/pkg/utils"
)

// Payload maps form field ids to submitted values
type Payload map[string]interface{}

// Clone returns a shallow copy of the payload
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String returns a string value, or "" if absent or not a string
func (p Payload) String(key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

// Number returns a numeric value converted to float64
func (p Payload) Number(key string) (float64, bool) {
	return toNumber(p[key])
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ValidatePayload checks p against the service's field list.
// Drafts are only type-checked; submissions also require every required field.
func (s *ServiceDefinition) ValidatePayload(p Payload, requireComplete bool) error {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := p[key]
		field, ok := s.Field(key)
		if !ok {
			return fmt.Errorf("%w: unknown field %q for service %s", domainwf.ErrValidation, key, s.ID)
		}
		if value == nil {
			continue
		}
		if err := validateFieldValue(field, value); err != nil {
			return fmt.Errorf("%w: field %q: %v", domainwf.ErrValidation, key, err)
		}
	}

	if !requireComplete {
		return nil
	}

	for _, field := range s.Fields {
		if field.Required && isEmptyValue(p[field.ID]) {
			return fmt.Errorf("%w: field %q is required", domainwf.ErrValidation, field.ID)
		}
	}
	return nil
}

func validateFieldValue(field FormField, value interface{}) error {
	if field.Type == FieldNumber {
		if _, ok := toNumber(value); !ok {
			return fmt.Errorf("expected a number, got %T", value)
		}
		return nil
	}

	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected a string, got %T", value)
	}
	if str == "" {
		return nil
	}

	switch field.Type {
	case FieldText, FieldTextArea:
		return nil
	case FieldDate:
		_, err := utils.ParseDate(str)
		return err
	case FieldSelect:
		if len(field.Options) == 0 {
			return nil
		}
		for _, opt := range field.Options {
			if opt == str {
				return nil
			}
		}
		return fmt.Errorf("%q is not one of %v", str, field.Options)
	case FieldFile:
		return utils.ValidateAbsoluteURL(str)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type)
	}
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return utils.IsBlank(val)
	}
	return false
}
