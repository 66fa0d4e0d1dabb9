package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaOverlap: two fields claim the same screen cell.
	ErrSchemaOverlap = errors.New("schema overlap")
	// ErrSchemaInvalid: any other structural fault in a schema.
	ErrSchemaInvalid = errors.New("invalid schema")
	// ErrUnknownPanel: no schema is registered for the panel.
	ErrUnknownPanel = errors.New("unknown panel")
	// ErrInvalidValue: a value cannot be written into a field's regions.
	ErrInvalidValue = errors.New("invalid value")
)

// SchemaOverlapError names the two fields sharing a cell.
type SchemaOverlapError struct {
	Panel  string
	First  string
	Second string
	Row    int
	Col    int
}

func (e *SchemaOverlapError) Error() string {
	return fmt.Sprintf("%s: fields %s and %s overlap at row %d col %d",
		e.Panel, e.First, e.Second, e.Row, e.Col)
}

func (e *SchemaOverlapError) Unwrap() error { return ErrSchemaOverlap }

// SchemaError is a structural fault tied to one field (or the whole panel
// when Field is empty).
type SchemaError struct {
	Panel string
	Field string
	Msg   string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s: %s", ErrSchemaInvalid, e.Panel, e.Msg)
	}
	return fmt.Sprintf("%s: %s.%s: %s", ErrSchemaInvalid, e.Panel, e.Field, e.Msg)
}

func (e *SchemaError) Unwrap() error { return ErrSchemaInvalid }

// ValueError reports a value that does not fit its field.
type ValueError struct {
	Field string
	Value string
	Msg   string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: field %s value %q: %s", ErrInvalidValue, e.Field, e.Value, e.Msg)
}

func (e *ValueError) Unwrap() error { return ErrInvalidValue }
