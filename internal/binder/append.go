package binder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"maxis/internal/logging"
	"maxis/internal/schema"
	"maxis/internal/types"
)

// Append adds one entry to a repeating group of an existing panel instance.
// It writes into the first slot whose key is blank, turning pages as
// needed, and never overwrites an occupied slot. When every slot is taken
// it fails with a SlotOccupiedError.
func (b *Binder) Append(ctx context.Context, c types.Context, s *schema.Schema, group string, entry types.Values) (*types.Record, error) {
	timer := logging.StartTimer(b.logger, "append "+s.Panel)
	if err := c.Validate(s.Scope == schema.ScopeMember); err != nil {
		return nil, err
	}
	if s.Selector.Instance != nil && c.Instance == "" {
		return nil, fmt.Errorf("%w: appending to %s needs an instance", types.ErrInvalidContext, s.Panel)
	}
	g, ok := s.RepeatingGroup(group)
	if !ok {
		return nil, &schema.ValueError{Field: group, Msg: "not a repeating group of " + s.Panel}
	}
	plan, err := b.planEntry(g, entry)
	if err != nil {
		return nil, err
	}

	if err := b.open(ctx, c, s, c.Instance); err != nil {
		return nil, err
	}
	if err := b.checkSelection(s.Panel); err != nil {
		return nil, err
	}
	if err := b.beginEdit(ctx, s.Panel); err != nil {
		return nil, err
	}
	decoded, err := b.writeEntry(ctx, s.Panel, g, plan)
	if err != nil {
		return nil, err
	}
	if err := b.save(ctx, s.Panel); err != nil {
		return nil, err
	}

	rec := types.NewRecord(s.Panel, c)
	rec.Groups[g.Name] = []types.Entry{decoded}
	b.logger.Info("entry appended",
		zap.String("panel", s.Panel),
		zap.String("group", g.Name),
		zap.String("case", c.CaseID),
		zap.String("instance", c.Instance),
		zap.Duration("duration", timer.StopWithThreshold(b.cfg.SlowOperation)),
	)
	return rec, nil
}

// writeEntry writes one planned entry into the first free slot of g.
func (b *Binder) writeEntry(ctx context.Context, panel string, g *schema.Group, plan []write) (types.Entry, error) {
	p, err := b.freeSlot(ctx, panel, g)
	if err != nil {
		return nil, err
	}
	dr, dc := p.offset()
	decoded := make(types.Entry, len(plan))
	for _, w := range plan {
		if err := b.writeField(panel, w, dr, dc); err != nil {
			return nil, err
		}
		v, err := b.decode(w.field, w.code)
		if err != nil {
			return nil, err
		}
		decoded[w.field.Name] = v
	}
	b.logger.Debug("entry written", zap.String("panel", panel), zap.String("group", g.Name),
		zap.Int("slot", p.slot), zap.Int("page_turns", p.turns))
	return decoded, nil
}

// planEntry validates one group entry. The key must be present.
func (b *Binder) planEntry(g *schema.Group, entry types.Values) ([]write, error) {
	fill := b.cfg.Layout.BlankFill
	for name := range entry {
		if _, ok := g.Field(name); !ok {
			return nil, &schema.ValueError{Field: name, Value: entry[name], Msg: "not a field of group " + g.Name}
		}
	}
	out := make([]write, 0, len(entry))
	for i := range g.Fields {
		f := &g.Fields[i]
		v, ok := entry[f.Name]
		if !ok {
			continue
		}
		w, err := b.prepare(f, v, fill)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	key := g.KeyField()
	for _, w := range out {
		if w.field == key && w.code != "" {
			return out, nil
		}
	}
	return nil, &schema.ValueError{Field: key.Name, Value: entry[key.Name], Msg: "an entry needs its key"}
}
