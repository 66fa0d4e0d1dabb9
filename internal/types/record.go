package types

// Values is a partial set of field values keyed by field name. A field
// missing from the map is left untouched on the host.
type Values map[string]string

// Value is one decoded field. Code is what the host shows with the blank
// fill stripped; Text is the description for coded fields and equal to Code
// for everything else.
type Value struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// Plain returns a Value whose description is its code.
func Plain(code string) Value { return Value{Code: code, Text: code} }

// Entry is one element of a repeating group.
type Entry map[string]Value

// Code returns the code of the named sub-field, or "".
func (e Entry) Code(name string) string { return e[name].Code }

// Codes returns the entry as a plain code map.
func (e Entry) Codes() Values {
	out := make(Values, len(e))
	for k, v := range e {
		out[k] = v.Code
	}
	return out
}

// Record is the decoded contents of one panel instance. The binder builds a
// fresh Record for every operation and never touches it afterwards.
type Record struct {
	Panel   string             `json:"panel"`
	Context Context            `json:"context"`
	Fields  map[string]Value   `json:"fields"`
	Groups  map[string][]Entry `json:"groups,omitempty"`
}

// NewRecord returns an empty record for panel at c.
func NewRecord(panel string, c Context) *Record {
	return &Record{
		Panel:   panel,
		Context: c,
		Fields:  make(map[string]Value),
		Groups:  make(map[string][]Entry),
	}
}

// Field returns the named field and whether it was read.
func (r *Record) Field(name string) (Value, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Has reports whether the named field is present. Conditional fields whose
// condition did not hold are absent.
func (r *Record) Has(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// Code returns the code of the named field, or "".
func (r *Record) Code(name string) string { return r.Fields[name].Code }

// Text returns the display text of the named field, or "".
func (r *Record) Text(name string) string { return r.Fields[name].Text }

// Group returns the entries of the named repeating group in screen order.
func (r *Record) Group(name string) []Entry { return r.Groups[name] }

// Codes returns the panel-level fields as a plain code map.
func (r *Record) Codes() Values {
	out := make(Values, len(r.Fields))
	for k, v := range r.Fields {
		out[k] = v.Code
	}
	return out
}
