// Package schema describes MAXIS panel layouts as data.
//
// A Schema lists a panel's fields in read/write order, each bound to one or
// more fixed screen regions. Repeating sections (lists that continue across
// pages) are described by Groups. Schemas carry no behaviour beyond
// validation and value formatting; the binder package drives the host.
package schema

import "slices"

// Screen geometry of the MAXIS 3270 session.
const (
	ScreenRows = 24
	ScreenCols = 80
)

// Kind selects how a field's regions are decoded and encoded.
type Kind string

const (
	KindText         Kind = "text"          // sentinel stripped, spacing kept
	KindBlankTrimmed Kind = "blank_trimmed" // sentinel stripped, spaces trimmed
	KindDate         Kind = "date"          // segments joined with "/"
	KindComposite    Kind = "composite"     // segments joined with Joiner
	KindCoded        Kind = "coded"         // decoded through a codec table
	KindFlags        Kind = "flags"         // Y/N cells at explicit positions
)

// Scope says which selectors a panel needs.
type Scope string

const (
	ScopeCase   Scope = "case"
	ScopeMember Scope = "member"
)

// Segment is one contiguous screen region. Row and Col are 1-based.
type Segment struct {
	Row   int `yaml:"row" json:"row"`
	Col   int `yaml:"col" json:"col"`
	Width int `yaml:"width" json:"width"`
}

// Offset returns the segment moved by dr rows and dc columns.
func (s Segment) Offset(dr, dc int) Segment {
	return Segment{Row: s.Row + dr, Col: s.Col + dc, Width: s.Width}
}

// Flag is one labelled single-cell Y/N position of a flags field.
type Flag struct {
	Label string `yaml:"label" json:"label"`
	Row   int    `yaml:"row" json:"row"`
	Col   int    `yaml:"col" json:"col"`
}

// Condition gates a field on the decoded code of an earlier field.
// Exactly one of Is / Not is set.
type Condition struct {
	Field string  `yaml:"field" json:"field"`
	Is    *string `yaml:"is,omitempty" json:"is,omitempty"`
	Not   *string `yaml:"not,omitempty" json:"not,omitempty"`
}

// Holds reports whether the condition is met by the governing code.
func (c *Condition) Holds(code string) bool {
	if c.Is != nil {
		return code == *c.Is
	}
	return code != *c.Not
}

// Companion is a secondary field written alongside its owner. When the
// owner is written with a non-empty value, Value is written into Field.
// On create, when the owner is omitted, Otherwise (if set) is written.
type Companion struct {
	Field     string `yaml:"field" json:"field"`
	Value     string `yaml:"value" json:"value"`
	Otherwise string `yaml:"otherwise,omitempty" json:"otherwise,omitempty"`
}

// Field is one named value on a panel.
type Field struct {
	Name string `yaml:"name" json:"name"`
	Kind Kind   `yaml:"kind" json:"kind"`

	// Single-region shorthand; normalised into Segments.
	Row   int `yaml:"row,omitempty" json:"-"`
	Col   int `yaml:"col,omitempty" json:"-"`
	Width int `yaml:"width,omitempty" json:"-"`

	Segments []Segment `yaml:"segments,omitempty" json:"segments,omitempty"`
	Flags    []Flag    `yaml:"flags,omitempty" json:"flags,omitempty"`

	Table  string `yaml:"table,omitempty" json:"table,omitempty"`
	Joiner string `yaml:"joiner,omitempty" json:"joiner,omitempty"`

	When      *Condition `yaml:"when,omitempty" json:"when,omitempty"`
	Companion *Companion `yaml:"companion,omitempty" json:"companion,omitempty"`

	// Default replaces an empty decoded value.
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
	// Sensitive values are masked outside the record (journal, logs).
	Sensitive bool `yaml:"sensitive,omitempty" json:"sensitive,omitempty"`
}

// Regions returns every screen region the field occupies.
func (f *Field) Regions() []Segment {
	if f.Kind == KindFlags {
		out := make([]Segment, len(f.Flags))
		for i, fl := range f.Flags {
			out[i] = Segment{Row: fl.Row, Col: fl.Col, Width: 1}
		}
		return out
	}
	return f.Segments
}

func (f *Field) normalize() {
	if len(f.Segments) == 0 && f.Width > 0 {
		f.Segments = []Segment{{Row: f.Row, Col: f.Col, Width: f.Width}}
	}
	if f.Kind == KindDate && f.Joiner == "" {
		f.Joiner = "/"
	}
}

// Paging selects how a group finds its next page.
type Paging string

const (
	// PagingNone: the group is fully visible on one screen.
	PagingNone Paging = "none"
	// PagingLastPage: page forward when the window is full and stop when the
	// host shows the last-page marker.
	PagingLastPage Paging = "last_page"
	// PagingMore: page forward only while the more indicator is shown.
	PagingMore Paging = "more"
)

// BlankPolicy says what a blank key means inside the window.
type BlankPolicy string

const (
	BlankStop BlankPolicy = "stop" // end of list
	BlankSkip BlankPolicy = "skip" // empty slot, keep reading
)

// Group is a repeating section. Field coordinates are those of slot 0; slot i
// sits i*RowStride rows and i*ColStride columns further on.
type Group struct {
	Name      string      `yaml:"name" json:"name"`
	Slots     int         `yaml:"slots" json:"slots"`
	RowStride int         `yaml:"row_stride,omitempty" json:"row_stride,omitempty"`
	ColStride int         `yaml:"col_stride,omitempty" json:"col_stride,omitempty"`
	Key       string      `yaml:"key" json:"key"`
	OnBlank   BlankPolicy `yaml:"on_blank,omitempty" json:"on_blank,omitempty"`
	Paging    Paging      `yaml:"paging,omitempty" json:"paging,omitempty"`
	// More overrides the layout's more-indicator region for PagingMore.
	More   *Segment `yaml:"more,omitempty" json:"more,omitempty"`
	Fields []Field  `yaml:"fields" json:"fields"`
}

// SlotOffset returns the row/column shift of slot i.
func (g *Group) SlotOffset(i int) (int, int) {
	return i * g.RowStride, i * g.ColStride
}

// Field returns the named group field.
func (g *Group) Field(name string) (*Field, bool) {
	for i := range g.Fields {
		if g.Fields[i].Name == name {
			return &g.Fields[i], true
		}
	}
	return nil, false
}

// KeyField returns the field whose blankness ends or skips a slot.
func (g *Group) KeyField() *Field {
	f, _ := g.Field(g.Key)
	return f
}

func (g *Group) normalize() {
	if g.OnBlank == "" {
		g.OnBlank = BlankStop
	}
	if g.Paging == "" {
		g.Paging = PagingNone
	}
	for i := range g.Fields {
		g.Fields[i].normalize()
	}
}

// Selector holds the command-line regions used to pick a panel instance.
type Selector struct {
	Member   *Segment `yaml:"member,omitempty" json:"member,omitempty"`
	Instance *Segment `yaml:"instance,omitempty" json:"instance,omitempty"`
}

// Schema is the full description of one panel.
type Schema struct {
	Panel    string   `yaml:"panel" json:"panel"`
	Group    string   `yaml:"group" json:"group"`
	Scope    Scope    `yaml:"scope" json:"scope"`
	Selector Selector `yaml:"selector" json:"selector"`
	Fields   []Field  `yaml:"fields" json:"fields"`
	Groups   []Group  `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// Field returns the named panel-level field.
func (s *Schema) Field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// RepeatingGroup returns the named group.
func (s *Schema) RepeatingGroup(name string) (*Group, bool) {
	for i := range s.Groups {
		if s.Groups[i].Name == name {
			return &s.Groups[i], true
		}
	}
	return nil, false
}

// Sensitive reports whether the named panel or group field is sensitive.
func (s *Schema) Sensitive(name string) bool {
	if f, ok := s.Field(name); ok {
		return f.Sensitive
	}
	for i := range s.Groups {
		if f, ok := s.Groups[i].Field(name); ok {
			return f.Sensitive
		}
	}
	return false
}

// normalized returns a copy of s with defaults filled in. Field and group
// slices are copied; s itself is not changed.
func (s *Schema) normalized() *Schema {
	n := *s
	n.Fields = slices.Clone(s.Fields)
	n.Groups = slices.Clone(s.Groups)
	for i := range n.Groups {
		n.Groups[i].Fields = slices.Clone(n.Groups[i].Fields)
	}
	n.normalize()
	return &n
}

func (s *Schema) normalize() {
	if s.Group == "" {
		s.Group = "STAT"
	}
	if s.Scope == "" {
		s.Scope = ScopeCase
	}
	for i := range s.Fields {
		s.Fields[i].normalize()
	}
	for i := range s.Groups {
		s.Groups[i].normalize()
	}
}
