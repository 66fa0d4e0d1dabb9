package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"maxis/internal/schema"
	"maxis/internal/types"
)

// Fixture is a YAML description of host contents and behaviour.
//
//	options: {warnings: 1}
//	panels:
//	  - panel: ACCT
//	    case: "123456"
//	    month: "01"
//	    year: "24"
//	    member: "01"
//	    fields: {type: SV, balance: "1200"}
type Fixture struct {
	Options FixtureOptions `yaml:"options"`
	Panels  []PanelFixture `yaml:"panels"`
}

// FixtureOptions mirror the Host options.
type FixtureOptions struct {
	Warnings  int    `yaml:"warnings"`
	Reject    string `yaml:"reject"`
	PageLimit int    `yaml:"page_limit"`
}

// PanelFixture seeds one panel instance.
type PanelFixture struct {
	Panel   string                    `yaml:"panel"`
	Context types.Context             `yaml:",inline"`
	Fields  types.Values              `yaml:"fields"`
	Groups  map[string][]types.Values `yaml:"groups"`
	Cells   []Cell                    `yaml:"cells"`
}

// ParseFixture decodes a fixture document.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &f, nil
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return ParseFixture(data)
}

// HostOptions returns the host options the fixture asks for.
func (f *Fixture) HostOptions() []Option {
	var opts []Option
	if f.Options.Warnings > 0 {
		opts = append(opts, WithWarnings(f.Options.Warnings))
	}
	if f.Options.Reject != "" {
		opts = append(opts, WithRejection(f.Options.Reject))
	}
	if f.Options.PageLimit > 0 {
		opts = append(opts, WithPageLimit(f.Options.PageLimit))
	}
	return opts
}

// Apply seeds every panel of the fixture into h.
func (f *Fixture) Apply(h *Host) error {
	for i, p := range f.Panels {
		id, err := h.SeedRecord(p.Panel, p.Context, p.Fields, p.Groups)
		if err != nil {
			return fmt.Errorf("fixture panel %d (%s): %w", i, p.Panel, err)
		}
		if len(p.Cells) > 0 {
			if err := h.SeedCells(p.Panel, p.Context.WithInstance(id), 0, p.Cells...); err != nil {
				return fmt.Errorf("fixture panel %d (%s): %w", i, p.Panel, err)
			}
		}
	}
	return nil
}

// NewFromFixture builds a host seeded from f. Extra options override the
// fixture's.
func NewFromFixture(reg *schema.Registry, f *Fixture, opts ...Option) (*Host, error) {
	h := New(reg, append(f.HostOptions(), opts...)...)
	if err := f.Apply(h); err != nil {
		return nil, err
	}
	return h, nil
}
