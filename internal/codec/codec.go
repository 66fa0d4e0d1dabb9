// Package codec translates the short codes shown in coded MAXIS panel fields
// into their PF1 descriptions.
//
// Tables are plain data (tables.yaml, embedded) loaded once and never
// mutated afterwards, so a single *Tables may be shared by every session in
// the process. There is deliberately no encode direction: writers always
// supply the authoritative code and only read the description back.
package codec

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var embeddedTables []byte

// ErrUnknownCode is the sentinel wrapped by every *UnknownCodeError.
var ErrUnknownCode = errors.New("unknown code")

// UnknownCodeError reports a code (or table) with no entry. It usually means
// the field was read from the wrong coordinates.
type UnknownCodeError struct {
	Table string
	Code  string
	// NoTable is set when the table itself does not exist.
	NoTable bool
}

func (e *UnknownCodeError) Error() string {
	if e.NoTable {
		return fmt.Sprintf("unknown code table %q", e.Table)
	}
	return fmt.Sprintf("unknown code %q in table %q", e.Code, e.Table)
}

func (e *UnknownCodeError) Unwrap() error { return ErrUnknownCode }

// Table is one immutable code -> description mapping.
type Table struct {
	name    string
	blank   string
	width   int
	entries map[string]string
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Blank returns the description used for an empty field, or "" when an empty
// field is not a valid value for this table.
func (t *Table) Blank() string { return t.blank }

// Width returns the fixed code length shared by every entry.
func (t *Table) Width() int { return t.width }

// Len returns the number of codes.
func (t *Table) Len() int { return len(t.entries) }

// Lookup returns the description for code. The empty code resolves to the
// blank description when the table declares one.
func (t *Table) Lookup(code string) (string, bool) {
	if code == "" {
		return t.blank, t.blank != ""
	}
	desc, ok := t.entries[code]
	return desc, ok
}

// Codes returns the codes in sorted order.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.entries))
	for c := range t.entries {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Tables is an immutable set of named code tables.
type Tables struct {
	tables map[string]*Table
}

// Decode returns the description for code in the named table.
func (ts *Tables) Decode(table, code string) (string, error) {
	t, ok := ts.tables[table]
	if !ok {
		return "", &UnknownCodeError{Table: table, Code: code, NoTable: true}
	}
	desc, ok := t.Lookup(code)
	if !ok {
		return "", &UnknownCodeError{Table: table, Code: code}
	}
	return desc, nil
}

// Has reports whether code decodes in the named table.
func (ts *Tables) Has(table, code string) bool {
	_, err := ts.Decode(table, code)
	return err == nil
}

// Table returns the named table.
func (ts *Tables) Table(name string) (*Table, bool) {
	t, ok := ts.tables[name]
	return t, ok
}

// Names returns the table names in sorted order.
func (ts *Tables) Names() []string {
	names := make([]string, 0, len(ts.tables))
	for n := range ts.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// tableFile is the YAML shape of a tables document.
type tableFile struct {
	Tables map[string]struct {
		Blank string            `yaml:"blank"`
		Codes map[string]string `yaml:"codes"`
	} `yaml:"tables"`
}

// Parse builds a table set from a YAML document.
func Parse(data []byte) (*Tables, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse code tables: %w", err)
	}
	ts := &Tables{tables: make(map[string]*Table, len(tf.Tables))}
	for name, raw := range tf.Tables {
		t, err := newTable(name, raw.Blank, raw.Codes)
		if err != nil {
			return nil, err
		}
		ts.tables[name] = t
	}
	return ts, nil
}

func newTable(name, blank string, codes map[string]string) (*Table, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("code table %q has no codes", name)
	}
	t := &Table{name: name, blank: blank, entries: make(map[string]string, len(codes))}
	for code, desc := range codes {
		w := utf8.RuneCountInString(code)
		if w == 0 {
			return nil, fmt.Errorf("code table %q: empty code (use blank instead)", name)
		}
		if t.width == 0 {
			t.width = w
		} else if w != t.width {
			return nil, fmt.Errorf("code table %q: code %q is %d wide, expected %d", name, code, w, t.width)
		}
		t.entries[code] = desc
	}
	return t, nil
}

// Merge returns a new set holding base's tables overlaid by extra's. A table
// in extra replaces the same-named table in base as a whole.
func Merge(base, extra *Tables) *Tables {
	out := &Tables{tables: make(map[string]*Table, len(base.tables)+len(extra.tables))}
	for n, t := range base.tables {
		out.tables[n] = t
	}
	for n, t := range extra.tables {
		out.tables[n] = t
	}
	return out
}

// Load reads additional table files and merges them over base.
func Load(base *Tables, paths ...string) (*Tables, error) {
	out := base
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read code tables %s: %w", p, err)
		}
		extra, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = Merge(out, extra)
	}
	return out, nil
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// Default returns the embedded tables, parsed on first use.
func Default() *Tables {
	defaultOnce.Do(func() {
		ts, err := Parse(embeddedTables)
		if err != nil {
			panic(fmt.Sprintf("codec: embedded tables: %v", err))
		}
		defaultTables = ts
	})
	return defaultTables
}
