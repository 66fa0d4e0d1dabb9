package binder

import (
	"context"

	"go.uber.org/zap"

	"maxis/internal/logging"
	"maxis/internal/schema"
	"maxis/internal/types"
)

// Load navigates to the panel instance addressed by c and decodes it. Fields
// are read in schema order; a conditional field is read only when its
// governing field holds the expected code. Every call reads the host afresh.
func (b *Binder) Load(ctx context.Context, c types.Context, s *schema.Schema) (*types.Record, error) {
	timer := logging.StartTimer(b.logger, "load "+s.Panel)
	if err := c.Validate(s.Scope == schema.ScopeMember); err != nil {
		return nil, err
	}
	if err := b.open(ctx, c, s, c.Instance); err != nil {
		return nil, err
	}
	if err := b.checkSelection(s.Panel); err != nil {
		return nil, err
	}

	rec := types.NewRecord(s.Panel, c)
	for i := range s.Fields {
		f := &s.Fields[i]
		if !applies(f, rec.Fields) {
			continue
		}
		v, err := b.readField(s.Panel, f, 0, 0)
		if err != nil {
			return nil, err
		}
		rec.Fields[f.Name] = v
	}

	turns := 0
	for gi := range s.Groups {
		g := &s.Groups[gi]
		entries, n, err := b.readGroup(ctx, s.Panel, g)
		turns += n
		if err != nil {
			return nil, err
		}
		rec.Groups[g.Name] = entries
	}

	b.logger.Info("panel loaded",
		zap.String("panel", s.Panel),
		zap.String("case", c.CaseID),
		zap.String("member", c.Member),
		zap.String("instance", c.Instance),
		zap.Int("page_turns", turns),
		zap.Duration("duration", timer.StopWithThreshold(b.cfg.SlowOperation)),
	)
	return rec, nil
}

// applies reports whether f should be read given the fields decoded so far.
// A field governed by a field that was itself skipped is skipped too.
func applies(f *schema.Field, decoded map[string]types.Value) bool {
	if f.When == nil {
		return true
	}
	gov, ok := decoded[f.When.Field]
	return ok && f.When.Holds(gov.Code)
}
