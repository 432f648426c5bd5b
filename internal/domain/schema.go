package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// FieldType describes the wire format of a declared field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInteger
	FieldNumber
	FieldDate
	FieldDateTime
	FieldBool
	FieldEnum
)

const dateLayout = "2006-01-02"

// FieldSpec declares one field of a resource kind.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
	Options  []string
}

// Check is a cross-field rule. It returns the offending field and a message when violated.
type Check func(Fields) (field, message string, ok bool)

// Schema is the field and status declaration of one resource kind.
type Schema struct {
	Kind          Kind
	Collection    string
	Label         string
	Fields        []FieldSpec
	Statuses      []Status
	InitialStatus Status
	Defaults      Fields
	Checks        []Check
}

// Field looks up a declared field.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldNames returns declared field names in declaration order.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// HasStatus reports whether status belongs to the kind's enum.
func (s Schema) HasStatus(status Status) bool {
	return slices.Contains(s.Statuses, status)
}

// Validate runs required, format and cross-field checks. The result is empty when valid.
func (s Schema) Validate(fields Fields, status Status) map[string]string {
	errs := map[string]string{}
	if !s.HasStatus(status) {
		errs["status"] = fmt.Sprintf("must be one of %s", joinStatuses(s.Statuses))
	}
	for _, spec := range s.Fields {
		value, present := fields[spec.Name]
		if !present || isBlank(value) {
			if spec.Required {
				errs[spec.Name] = "is required"
			}
			continue
		}
		if msg := checkFormat(spec, value); msg != "" {
			errs[spec.Name] = msg
		}
	}
	if len(errs) == 0 {
		for _, check := range s.Checks {
			if field, msg, ok := check(fields); !ok {
				errs[field] = msg
			}
		}
	}
	return errs
}

// Declared drops attributes the schema does not declare.
func (s Schema) Declared(fields Fields) Fields {
	out := make(Fields, len(fields))
	for name, value := range fields {
		if _, ok := s.Field(name); ok {
			out[name] = value
		}
	}
	return out
}

// Coerce converts a textual value (CLI flag, form input) into the field's wire type.
func (s Schema) Coerce(name, raw string) (any, error) {
	spec, ok := s.Field(name)
	if !ok {
		return nil, fmt.Errorf("%s has no field %q", s.Label, name)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	switch spec.Type {
	case FieldInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", name)
		}
		return n, nil
	case FieldNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", name)
		}
		return n, nil
	case FieldBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", name)
		}
		return b, nil
	default:
		return raw, nil
	}
}

func checkFormat(spec FieldSpec, value any) string {
	switch spec.Type {
	case FieldString:
		if _, ok := value.(string); !ok {
			return "must be text"
		}
	case FieldEnum:
		str, ok := value.(string)
		if !ok || !slices.Contains(spec.Options, str) {
			return "must be one of " + strings.Join(spec.Options, ", ")
		}
	case FieldInteger:
		n, ok := AsNumber(value)
		if !ok || n != float64(int64(n)) {
			return "must be an integer"
		}
	case FieldNumber:
		if _, ok := AsNumber(value); !ok {
			return "must be a number"
		}
	case FieldBool:
		if _, ok := value.(bool); !ok {
			return "must be true or false"
		}
	case FieldDate:
		str, ok := value.(string)
		if !ok {
			return "must be a date (YYYY-MM-DD)"
		}
		if _, err := time.Parse(dateLayout, str); err != nil {
			return "must be a date (YYYY-MM-DD)"
		}
	case FieldDateTime:
		str, ok := value.(string)
		if !ok {
			return "must be an RFC 3339 timestamp"
		}
		if _, err := time.Parse(time.RFC3339, str); err != nil {
			return "must be an RFC 3339 timestamp"
		}
	}
	return ""
}

// isBlank mirrors the form guards: nil, empty text and numeric zero count as missing.
func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	if n, ok := AsNumber(value); ok {
		return n == 0
	}
	return false
}

// AsNumber normalizes the numeric types that appear in decoded JSON and coerced input.
func AsNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// ParseTime accepts RFC 3339 timestamps and plain dates.
func ParseTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
		if t, err := time.Parse(dateLayout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func joinStatuses(statuses []Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// after requires end to follow start; allowEqual also accepts the same instant.
func after(start, end string, allowEqual bool) Check {
	return func(f Fields) (string, string, bool) {
		from, ok1 := ParseTime(f[start])
		to, ok2 := ParseTime(f[end])
		if !ok1 || !ok2 {
			return "", "", true
		}
		if to.After(from) || (allowEqual && to.Equal(from)) {
			return "", "", true
		}
		return end, "must be after " + start, false
	}
}
