package schema

import (
	"fmt"

	"maxis/internal/codec"
)

type cell struct{ row, col int }

// cellMap records which field owns each screen cell.
type cellMap struct {
	panel  string
	owners map[cell]string
}

func (m *cellMap) claim(owner string, seg Segment) error {
	for c := seg.Col; c < seg.Col+seg.Width; c++ {
		k := cell{seg.Row, c}
		if prev, taken := m.owners[k]; taken {
			return &SchemaOverlapError{Panel: m.panel, First: prev, Second: owner, Row: seg.Row, Col: c}
		}
		m.owners[k] = owner
	}
	return nil
}

// Validate checks the schema's structure and that no two regions share a
// grid cell. Every slot of every group is claimed, so a group window that
// runs into another field is reported as an overlap. A normalised copy is
// checked, so hand-built schemas validate the same as parsed ones and s is
// left as it was.
func (s *Schema) Validate() error {
	return s.normalized().validate()
}

func (s *Schema) validate() error {
	if s.Panel == "" {
		return &SchemaError{Panel: "?", Msg: "panel name is required"}
	}
	if s.Scope != ScopeCase && s.Scope != ScopeMember {
		return &SchemaError{Panel: s.Panel, Msg: fmt.Sprintf("unknown scope %q", s.Scope)}
	}
	if s.Scope == ScopeMember && s.Selector.Member == nil {
		return &SchemaError{Panel: s.Panel, Msg: "member scope needs a member selector"}
	}

	cells := &cellMap{panel: s.Panel, owners: make(map[cell]string)}
	if sel := s.Selector.Member; sel != nil {
		if err := s.checkSegment("selector.member", *sel); err != nil {
			return err
		}
		if err := cells.claim("selector.member", *sel); err != nil {
			return err
		}
	}
	if sel := s.Selector.Instance; sel != nil {
		if err := s.checkSegment("selector.instance", *sel); err != nil {
			return err
		}
		if err := cells.claim("selector.instance", *sel); err != nil {
			return err
		}
	}

	names := make(map[string]bool)
	for i := range s.Fields {
		f := &s.Fields[i]
		if names[f.Name] {
			return &SchemaError{Panel: s.Panel, Field: f.Name, Msg: "duplicate field name"}
		}
		if err := s.checkField(f, s.Fields[:i]); err != nil {
			return err
		}
		for _, seg := range f.Regions() {
			if err := cells.claim(f.Name, seg); err != nil {
				return err
			}
		}
		names[f.Name] = true
	}

	for i := range s.Fields {
		if c := s.Fields[i].Companion; c != nil {
			if c.Field == s.Fields[i].Name {
				return &SchemaError{Panel: s.Panel, Field: s.Fields[i].Name, Msg: "companion cannot be the field itself"}
			}
			if _, ok := s.Field(c.Field); !ok {
				return &SchemaError{Panel: s.Panel, Field: s.Fields[i].Name, Msg: fmt.Sprintf("companion %q is not a panel field", c.Field)}
			}
		}
	}

	for gi := range s.Groups {
		g := &s.Groups[gi]
		// Paging moves the whole screen, so only the last group may page.
		if g.Paging != PagingNone && gi != len(s.Groups)-1 {
			return &SchemaError{Panel: s.Panel, Field: g.Name, Msg: "only the last group may page"}
		}
		if names[g.Name] {
			return &SchemaError{Panel: s.Panel, Field: g.Name, Msg: "group name clashes with a field"}
		}
		names[g.Name] = true
		if err := s.checkGroup(g, cells); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) checkGroup(g *Group, cells *cellMap) error {
	if g.Slots < 1 {
		return &SchemaError{Panel: s.Panel, Field: g.Name, Msg: "group needs at least one slot"}
	}
	if g.Slots > 1 && g.RowStride == 0 && g.ColStride == 0 {
		return &SchemaError{Panel: s.Panel, Field: g.Name, Msg: "multi-slot group needs a stride"}
	}
	switch g.Paging {
	case PagingNone, PagingLastPage, PagingMore:
	default:
		return &SchemaError{Panel: s.Panel, Field: g.Name, Msg: fmt.Sprintf("unknown paging %q", g.Paging)}
	}
	switch g.OnBlank {
	case BlankStop, BlankSkip:
	default:
		return &SchemaError{Panel: s.Panel, Field: g.Name, Msg: fmt.Sprintf("unknown on_blank %q", g.OnBlank)}
	}
	if g.KeyField() == nil {
		return &SchemaError{Panel: s.Panel, Field: g.Name, Msg: fmt.Sprintf("key %q is not a group field", g.Key)}
	}
	if g.KeyField().Kind == KindFlags {
		return &SchemaError{Panel: s.Panel, Field: g.Name, Msg: "key cannot be a flags field"}
	}

	seen := make(map[string]bool)
	for i := range g.Fields {
		f := &g.Fields[i]
		if seen[f.Name] {
			return &SchemaError{Panel: s.Panel, Field: g.Name + "." + f.Name, Msg: "duplicate field name"}
		}
		seen[f.Name] = true
		if f.Companion != nil {
			return &SchemaError{Panel: s.Panel, Field: g.Name + "." + f.Name, Msg: "group fields cannot have companions"}
		}
		if err := s.checkField(f, g.Fields[:i]); err != nil {
			return err
		}
	}

	for slot := 0; slot < g.Slots; slot++ {
		dr, dc := g.SlotOffset(slot)
		for i := range g.Fields {
			f := &g.Fields[i]
			owner := fmt.Sprintf("%s[%d].%s", g.Name, slot, f.Name)
			for _, seg := range f.Regions() {
				seg = seg.Offset(dr, dc)
				if err := s.checkSegment(owner, seg); err != nil {
					return err
				}
				if err := cells.claim(owner, seg); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// checkField validates one field against the fields that precede it.
func (s *Schema) checkField(f *Field, earlier []Field) error {
	if f.Name == "" {
		return &SchemaError{Panel: s.Panel, Msg: "field without a name"}
	}
	bad := func(msg string, args ...any) error {
		return &SchemaError{Panel: s.Panel, Field: f.Name, Msg: fmt.Sprintf(msg, args...)}
	}

	switch f.Kind {
	case KindText, KindBlankTrimmed:
		if len(f.Segments) != 1 {
			return bad("%s field needs exactly one region", f.Kind)
		}
	case KindCoded:
		if len(f.Segments) != 1 {
			return bad("coded field needs exactly one region")
		}
		if f.Table == "" {
			return bad("coded field needs a table")
		}
	case KindDate:
		if len(f.Segments) < 2 || len(f.Segments) > 3 {
			return bad("date field needs 2 or 3 segments")
		}
	case KindComposite:
		if len(f.Segments) < 2 {
			return bad("composite field needs at least 2 segments")
		}
		if f.Joiner == "" {
			return bad("composite field needs a joiner")
		}
	case KindFlags:
		if len(f.Flags) == 0 {
			return bad("flags field needs at least one flag")
		}
		labels := make(map[string]bool)
		for _, fl := range f.Flags {
			if fl.Label == "" || labels[fl.Label] {
				return bad("flag labels must be unique and non-empty")
			}
			labels[fl.Label] = true
		}
	default:
		return bad("unknown kind %q", f.Kind)
	}

	for _, seg := range f.Regions() {
		if err := s.checkSegment(f.Name, seg); err != nil {
			return err
		}
	}

	if w := f.When; w != nil {
		if (w.Is == nil) == (w.Not == nil) {
			return bad("condition needs exactly one of is / not")
		}
		found := false
		for i := range earlier {
			if earlier[i].Name == w.Field {
				found = true
				break
			}
		}
		if !found {
			return bad("condition field %q must be declared earlier", w.Field)
		}
	}
	return nil
}

func (s *Schema) checkSegment(owner string, seg Segment) error {
	if seg.Width < 1 {
		return &SchemaError{Panel: s.Panel, Field: owner, Msg: "width must be positive"}
	}
	if seg.Row < 1 || seg.Row > ScreenRows || seg.Col < 1 || seg.Col+seg.Width-1 > ScreenCols {
		return &SchemaError{Panel: s.Panel, Field: owner,
			Msg: fmt.Sprintf("region row %d col %d width %d is off screen", seg.Row, seg.Col, seg.Width)}
	}
	return nil
}

// Check verifies every coded field names a table present in ts, and that
// the codes a schema writes or defaults to on its own decode there.
func (s *Schema) Check(ts *codec.Tables) error {
	check := func(owner string, f *Field) error {
		if cp := f.Companion; cp != nil {
			if target, ok := s.Field(cp.Field); ok && target.Kind == KindCoded {
				for _, code := range []string{cp.Value, cp.Otherwise} {
					if code != "" && !ts.Has(target.Table, code) {
						return &SchemaError{Panel: s.Panel, Field: owner,
							Msg: fmt.Sprintf("companion writes %q, not a code of %s", code, target.Table)}
					}
				}
			}
		}
		if f.Kind != KindCoded {
			return nil
		}
		if _, ok := ts.Table(f.Table); !ok {
			return &SchemaError{Panel: s.Panel, Field: owner, Msg: fmt.Sprintf("unknown code table %q", f.Table)}
		}
		if f.Default != "" && !ts.Has(f.Table, f.Default) {
			return &SchemaError{Panel: s.Panel, Field: owner,
				Msg: fmt.Sprintf("default %q is not a code of %s", f.Default, f.Table)}
		}
		return nil
	}
	for i := range s.Fields {
		if err := check(s.Fields[i].Name, &s.Fields[i]); err != nil {
			return err
		}
	}
	for gi := range s.Groups {
		g := &s.Groups[gi]
		for i := range g.Fields {
			if err := check(g.Name+"."+g.Fields[i].Name, &g.Fields[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
