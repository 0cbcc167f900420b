// Package validation collects field-level request violations.
package validation

import (
	"sort"
	"strings"
)

// Violations maps a field name to a machine-readable reason.
type Violations map[string]string

// Empty reports whether no violation was recorded.
func (v Violations) Empty() bool { return len(v) == 0 }

// Add records reason for field unless the field already has one.
func (v Violations) Add(field, reason string) {
	if _, ok := v[field]; !ok {
		v[field] = reason
	}
}

// Err returns nil when there are no violations, otherwise an *Error.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &Error{Violations: v}
}

// Required flags blank strings.
func (v Violations) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

// MaxLen flags strings longer than n bytes.
func (v Violations) MaxLen(field, value string, n int) {
	if len(value) > n {
		v.Add(field, "too_long")
	}
}

// Error is returned by domain constructors when input is rejected.
type Error struct {
	Violations Violations
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("invalid request:")
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte(' ')
		b.WriteString(f)
		b.WriteByte(' ')
		b.WriteString(e.Violations[f])
	}
	return b.String()
}
