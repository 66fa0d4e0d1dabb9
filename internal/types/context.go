// Package types holds the value types shared by the binder, the session
// executor and the journal: the panel address (Context) and the decoded
// panel contents (Record).
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidContext is returned when a Context cannot address a panel.
var ErrInvalidContext = errors.New("invalid panel context")

// Context addresses one panel instance: case, footer month/year, and the
// optional member and instance references. It is a value; copies are
// independent.
type Context struct {
	CaseID   string `json:"case_id" yaml:"case"`
	Month    string `json:"month" yaml:"month"`
	Year     string `json:"year" yaml:"year"`
	Member   string `json:"member,omitempty" yaml:"member,omitempty"`
	Instance string `json:"instance,omitempty" yaml:"instance,omitempty"`
}

// Validate checks the context is usable. Member-level panels pass
// requireMember.
func (c Context) Validate(requireMember bool) error {
	if strings.TrimSpace(c.CaseID) == "" {
		return fmt.Errorf("%w: case number is required", ErrInvalidContext)
	}
	if !isRef(c.Month) {
		return fmt.Errorf("%w: footer month %q must be two digits", ErrInvalidContext, c.Month)
	}
	if !isRef(c.Year) {
		return fmt.Errorf("%w: footer year %q must be two digits", ErrInvalidContext, c.Year)
	}
	if requireMember && c.Member == "" {
		return fmt.Errorf("%w: member reference is required", ErrInvalidContext)
	}
	if c.Member != "" && !isRef(c.Member) {
		return fmt.Errorf("%w: member %q must be two digits", ErrInvalidContext, c.Member)
	}
	if c.Instance != "" && !isRef(c.Instance) {
		return fmt.Errorf("%w: instance %q must be two digits", ErrInvalidContext, c.Instance)
	}
	return nil
}

// WithInstance returns a copy of c addressing instance id.
func (c Context) WithInstance(id string) Context {
	c.Instance = id
	return c
}

func (c Context) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "case %s %s/%s", c.CaseID, c.Month, c.Year)
	if c.Member != "" {
		fmt.Fprintf(&b, " memb %s", c.Member)
	}
	if c.Instance != "" {
		fmt.Fprintf(&b, " inst %s", c.Instance)
	}
	return b.String()
}

// NormalizeRef zero-pads a one or two digit reference to two digits after
// trimming blanks. It reports false when s is not such a reference.
func NormalizeRef(s string) (string, bool) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case 1:
		s = "0" + s
	case 2:
	default:
		return "", false
	}
	if !isRef(s) {
		return "", false
	}
	return s, true
}

func isRef(s string) bool {
	return len(s) == 2 && s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}
