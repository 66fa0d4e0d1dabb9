package binder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"maxis/internal/logging"
	"maxis/internal/schema"
	"maxis/internal/types"
)

// write is one validated field write.
type write struct {
	field *schema.Field
	code  string   // canonical code the host will show
	parts []string // text per region
}

// Commit writes values into a panel instance and saves it. With create set
// a new instance is allocated first and its id is returned in the record's
// context; otherwise c must address an existing instance. Fields missing
// from values are left as the host has them.
//
// Every value is validated before the host is touched. Once writing starts
// any failure aborts the commit; the host screen is then in an unknown state
// and must be re-navigated.
func (b *Binder) Commit(ctx context.Context, c types.Context, s *schema.Schema, values types.Values, create bool) (*types.Record, error) {
	return b.commit(ctx, c, s, values, nil, create)
}

// Create allocates a new panel instance, writes values plus the initial
// entries of its repeating groups, and saves once. Entries fill each group
// from its first free slot, in the order given, turning pages as needed.
func (b *Binder) Create(ctx context.Context, c types.Context, s *schema.Schema, values types.Values, groups map[string][]types.Values) (*types.Record, error) {
	return b.commit(ctx, c, s, values, groups, true)
}

// groupPlan is the validated initial entries of one group.
type groupPlan struct {
	group   *schema.Group
	entries [][]write
}

func (b *Binder) commit(ctx context.Context, c types.Context, s *schema.Schema, values types.Values, groups map[string][]types.Values, create bool) (*types.Record, error) {
	timer := logging.StartTimer(b.logger, "commit "+s.Panel)
	if err := c.Validate(s.Scope == schema.ScopeMember); err != nil {
		return nil, err
	}
	if !create && s.Selector.Instance != nil && c.Instance == "" {
		return nil, fmt.Errorf("%w: updating %s needs an instance", types.ErrInvalidContext, s.Panel)
	}
	plan, err := b.plan(s, values, create)
	if err != nil {
		return nil, err
	}
	gplans, err := b.planGroups(s, groups)
	if err != nil {
		return nil, err
	}

	if create && s.Selector.Instance != nil {
		id, err := b.allocate(ctx, c, s)
		if err != nil {
			return nil, err
		}
		c = c.WithInstance(id)
	} else {
		if err := b.open(ctx, c, s, c.Instance); err != nil {
			return nil, err
		}
		if err := b.checkSelection(s.Panel); err != nil {
			return nil, err
		}
		if err := b.beginEdit(ctx, s.Panel); err != nil {
			return nil, err
		}
	}

	rec := types.NewRecord(s.Panel, c)
	for _, w := range plan {
		if err := b.writeField(s.Panel, w, 0, 0); err != nil {
			return nil, err
		}
		v, err := b.decode(w.field, w.code)
		if err != nil {
			return nil, err
		}
		rec.Fields[w.field.Name] = v
	}
	entries := 0
	for _, gp := range gplans {
		for _, ws := range gp.entries {
			decoded, err := b.writeEntry(ctx, s.Panel, gp.group, ws)
			if err != nil {
				return nil, err
			}
			rec.Groups[gp.group.Name] = append(rec.Groups[gp.group.Name], decoded)
			entries++
		}
	}
	if err := b.save(ctx, s.Panel); err != nil {
		return nil, err
	}

	b.logger.Info("panel committed",
		zap.String("panel", s.Panel),
		zap.String("case", c.CaseID),
		zap.String("member", c.Member),
		zap.String("instance", c.Instance),
		zap.Bool("create", create),
		zap.Int("fields", len(plan)),
		zap.Int("entries", entries),
		zap.Duration("duration", timer.StopWithThreshold(b.cfg.SlowOperation)),
	)
	return rec, nil
}

// plan validates values and orders the writes: schema order, each companion
// directly after its owner.
func (b *Binder) plan(s *schema.Schema, values types.Values, create bool) ([]write, error) {
	fill := b.cfg.Layout.BlankFill
	for name := range values {
		if _, ok := s.Field(name); ok {
			continue
		}
		if _, ok := s.RepeatingGroup(name); ok {
			return nil, &schema.ValueError{Field: name, Value: values[name], Msg: "repeating groups are written with Append or Create"}
		}
		return nil, &schema.ValueError{Field: name, Value: values[name], Msg: "not a field of " + s.Panel}
	}

	// Resolve companions into the effective value set.
	effective := make(types.Values, len(values))
	for k, v := range values {
		effective[k] = v
	}
	derived := make(map[string]bool)
	for i := range s.Fields {
		f := &s.Fields[i]
		cp := f.Companion
		if cp == nil {
			continue
		}
		v, given := values[f.Name]
		var want string
		switch {
		case given && v != "":
			want = cp.Value
		case !given && create && cp.Otherwise != "":
			if _, set := values[cp.Field]; set {
				continue
			}
			want = cp.Otherwise
		default:
			continue
		}
		if have, set := values[cp.Field]; set && !sameCode(s, cp.Field, have, want, fill) {
			return nil, &schema.ValueError{Field: cp.Field, Value: have,
				Msg: fmt.Sprintf("conflicts with %s, which sets it to %q", f.Name, want)}
		}
		effective[cp.Field] = want
		derived[cp.Field] = true
	}

	byName := make(map[string]write, len(effective))
	for i := range s.Fields {
		f := &s.Fields[i]
		v, ok := effective[f.Name]
		if !ok {
			continue
		}
		w, err := b.prepare(f, v, fill)
		if err != nil {
			return nil, err
		}
		byName[f.Name] = w
	}

	// A value for a conditional field must agree with its governing field
	// when both are being written.
	for name, w := range byName {
		when := w.field.When
		if when == nil || w.code == "" {
			continue
		}
		if gov, ok := byName[when.Field]; ok && !when.Holds(gov.code) {
			return nil, &schema.ValueError{Field: name, Value: w.code,
				Msg: fmt.Sprintf("does not apply when %s is %q", when.Field, gov.code)}
		}
	}

	var out []write
	for i := range s.Fields {
		f := &s.Fields[i]
		w, ok := byName[f.Name]
		if !ok || derived[f.Name] {
			continue
		}
		out = append(out, w)
		if cp := f.Companion; cp != nil && derived[cp.Field] {
			out = append(out, byName[cp.Field])
		}
	}
	// Companions whose owner was omitted (create defaults).
	for i := range s.Fields {
		f := &s.Fields[i]
		if derived[f.Name] && !contains(out, f.Name) {
			out = append(out, byName[f.Name])
		}
	}
	return out, nil
}

// planGroups validates initial group entries, in schema order. A group
// that cannot page must hold every entry in its window.
func (b *Binder) planGroups(s *schema.Schema, groups map[string][]types.Values) ([]groupPlan, error) {
	for name := range groups {
		if _, ok := s.RepeatingGroup(name); !ok {
			return nil, &schema.ValueError{Field: name, Msg: "not a repeating group of " + s.Panel}
		}
	}
	var out []groupPlan
	for i := range s.Groups {
		g := &s.Groups[i]
		entries := groups[g.Name]
		if len(entries) == 0 {
			continue
		}
		if g.Paging == schema.PagingNone && len(entries) > g.Slots {
			return nil, &schema.ValueError{Field: g.Name,
				Msg: fmt.Sprintf("%d entries do not fit %d slots", len(entries), g.Slots)}
		}
		gp := groupPlan{group: g}
		for _, entry := range entries {
			ws, err := b.planEntry(g, entry)
			if err != nil {
				return nil, err
			}
			gp.entries = append(gp.entries, ws)
		}
		out = append(out, gp)
	}
	return out, nil
}

// sameCode reports whether two values for the named field put the same
// code on screen. Values that do not encode are compared as text; prepare
// reports them later.
func sameCode(s *schema.Schema, name, a, b, fill string) bool {
	if f, ok := s.Field(name); ok {
		ca, errA := f.Canonical(a, fill)
		cb, errB := f.Canonical(b, fill)
		if errA == nil && errB == nil {
			return strings.EqualFold(ca, cb)
		}
	}
	return strings.EqualFold(a, b)
}

func contains(ws []write, name string) bool {
	for _, w := range ws {
		if w.field.Name == name {
			return true
		}
	}
	return false
}

// prepare encodes one value and checks coded values against their table.
func (b *Binder) prepare(f *schema.Field, value, fill string) (write, error) {
	parts, err := f.Encode(value, fill)
	if err != nil {
		return write{}, err
	}
	code := f.Join(parts, fill)
	if f.Kind == schema.KindCoded {
		if _, err := b.tables.Decode(f.Table, code); err != nil {
			return write{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return write{field: f, code: code, parts: parts}, nil
}

func (b *Binder) writeField(panel string, w write, dr, dc int) error {
	for i, seg := range w.field.Regions() {
		seg = seg.Offset(dr, dc)
		if err := b.screen.WriteRegion(w.parts[i], seg.Row, seg.Col); err != nil {
			return stepError(panel, "write "+w.field.Name, err)
		}
	}
	return nil
}

// allocate asks the host for a new instance and returns its two-digit id.
// The id is read back before anything else is written.
func (b *Binder) allocate(ctx context.Context, c types.Context, s *schema.Schema) (string, error) {
	l := b.cfg.Layout
	if err := b.open(ctx, c, s, l.NewInstance); err != nil {
		return "", err
	}
	msg, err := b.diagnostic(s.Panel)
	if err != nil {
		return "", err
	}
	if msg != "" && !b.isWarning(msg) {
		return "", &HostRejectedError{Panel: s.Panel, Step: "allocate", Message: msg}
	}

	e := l.InstanceEcho
	echo, err := b.screen.ReadRegion(e.Width, e.Row, e.Col)
	if err != nil {
		return "", stepError(s.Panel, "read instance", err)
	}
	id, ok := types.NormalizeRef(strings.ReplaceAll(echo, l.BlankFill, ""))
	if !ok || id == "00" {
		if msg == "" {
			msg = fmt.Sprintf("no instance number (read %q)", echo)
		}
		return "", &HostRejectedError{Panel: s.Panel, Step: "allocate", Message: msg}
	}
	b.logger.Debug("instance allocated", zap.String("panel", s.Panel), zap.String("instance", id))
	return id, nil
}

// save transmits the panel. A warning is acknowledged with exactly one more
// transmit; any other message, or a second warning, rejects the save.
func (b *Binder) save(ctx context.Context, panel string) error {
	if err := b.nav.Submit(ctx); err != nil {
		return stepError(panel, "save", err)
	}
	msg, err := b.diagnostic(panel)
	if err != nil {
		return err
	}
	if msg == "" {
		return nil
	}
	if !b.isWarning(msg) {
		return &HostRejectedError{Panel: panel, Step: "save", Message: msg}
	}

	b.logger.Debug("acknowledging warning", zap.String("panel", panel), zap.String("message", msg))
	if err := b.nav.Submit(ctx); err != nil {
		return stepError(panel, "acknowledge warning", err)
	}
	msg, err = b.diagnostic(panel)
	if err != nil {
		return err
	}
	if msg != "" {
		return &HostRejectedError{Panel: panel, Step: "acknowledge warning", Message: msg}
	}
	return nil
}
