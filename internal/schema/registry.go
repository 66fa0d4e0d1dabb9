package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"maxis/internal/codec"
)

//go:embed panels/*.yaml
var embeddedPanels embed.FS

// Parse decodes one panel schema document. The result is normalised but
// not validated; registries validate everything they hold.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse panel schema: %w", err)
	}
	s.Panel = strings.ToUpper(s.Panel)
	s.normalize()
	return &s, nil
}

// Registry maps panel names to validated schemas. It is read-only after
// construction.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry validates each schema and indexes a normalised copy by panel
// name. A later schema for the same panel replaces an earlier one.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		n := s.normalized()
		if err := n.validate(); err != nil {
			return nil, err
		}
		r.schemas[n.Panel] = n
	}
	return r, nil
}

// Get returns the schema for panel.
func (r *Registry) Get(panel string) (*Schema, error) {
	s, ok := r.schemas[strings.ToUpper(panel)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPanel, panel)
	}
	return s, nil
}

// Panels returns the registered panel names in sorted order.
func (r *Registry) Panels() []string {
	out := make([]string, 0, len(r.schemas))
	for p := range r.schemas {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Check verifies every schema against the code tables.
func (r *Registry) Check(ts *codec.Tables) error {
	for _, p := range r.Panels() {
		if err := r.schemas[p].Check(ts); err != nil {
			return err
		}
	}
	return nil
}

func parseFS(fsys fs.FS, dir string) ([]*Schema, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var out []*Schema
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		s, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Load builds a registry from the embedded panels plus extra schema files.
// Extra files override embedded panels of the same name.
func Load(paths ...string) (*Registry, error) {
	schemas, err := parseFS(embeddedPanels, "panels")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded panels: %w", err)
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read panel schema %s: %w", p, err)
		}
		s, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		schemas = append(schemas, s)
	}
	return NewRegistry(schemas...)
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of embedded panels.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Load()
		if err != nil {
			panic(fmt.Sprintf("schema: embedded panels: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}
