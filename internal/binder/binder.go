// Package binder drives MAXIS panels from their schemas.
//
// A Binder owns one terminal session for the length of each call. Load
// navigates to a panel instance and decodes it into a types.Record; Commit
// and Append write values back and run the host's save protocol. Panels are
// data: the binder knows nothing about any particular panel beyond its
// schema.
package binder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"maxis/internal/codec"
	"maxis/internal/host"
	"maxis/internal/schema"
	"maxis/internal/types"
)

const (
	// DefaultMaxPageTurns bounds paging within one group.
	DefaultMaxPageTurns = 50
	// DefaultSlowOperation is the duration past which an operation is
	// logged as slow.
	DefaultSlowOperation = 10 * time.Second
)

// Config tunes a Binder.
type Config struct {
	Layout        schema.Layout
	MaxPageTurns  int
	SlowOperation time.Duration
}

// DefaultConfig returns the MAXIS layout with the default page bound.
func DefaultConfig() Config {
	return Config{Layout: schema.DefaultLayout(), MaxPageTurns: DefaultMaxPageTurns, SlowOperation: DefaultSlowOperation}
}

// Binder binds panel schemas to one host session. It keeps no state between
// calls; the code tables are shared read-only.
type Binder struct {
	screen host.ScreenIO
	nav    host.Navigator
	tables *codec.Tables
	cfg    Config
	logger *zap.Logger
}

// New returns a Binder over the given session capabilities. A nil logger
// disables logging.
func New(screen host.ScreenIO, nav host.Navigator, tables *codec.Tables, cfg Config, logger *zap.Logger) *Binder {
	if cfg.MaxPageTurns <= 0 {
		cfg.MaxPageTurns = DefaultMaxPageTurns
	}
	if cfg.SlowOperation <= 0 {
		cfg.SlowOperation = DefaultSlowOperation
	}
	if cfg.Layout.BlankFill == "" {
		cfg.Layout = schema.DefaultLayout()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{screen: screen, nav: nav, tables: tables, cfg: cfg, logger: logger}
}

// NewForSession is New for a session value that provides both capabilities.
func NewForSession(s host.Session, tables *codec.Tables, cfg Config, logger *zap.Logger) *Binder {
	return New(s, s, tables, cfg, logger)
}

// open navigates to the panel and selects member and instance. An empty
// instance leaves the selection to the host.
func (b *Binder) open(ctx context.Context, c types.Context, s *schema.Schema, instance string) error {
	if err := b.nav.GotoPanel(ctx, c.CaseID, c.Month, c.Year, s.Group, s.Panel); err != nil {
		return stepError(s.Panel, "navigate", err)
	}
	if sel := s.Selector.Member; sel != nil && c.Member != "" {
		if err := b.screen.WriteRegion(c.Member, sel.Row, sel.Col); err != nil {
			return stepError(s.Panel, "select member", err)
		}
	}
	if sel := s.Selector.Instance; sel != nil && instance != "" {
		if err := b.screen.WriteRegion(instance, sel.Row, sel.Col); err != nil {
			return stepError(s.Panel, "select instance", err)
		}
	}
	if err := b.nav.Submit(ctx); err != nil {
		return stepError(s.Panel, "submit selection", err)
	}
	return nil
}

// beginEdit puts the panel in edit mode when the navigator needs it.
func (b *Binder) beginEdit(ctx context.Context, panel string) error {
	ed, ok := b.nav.(host.Editor)
	if !ok {
		return nil
	}
	if err := ed.BeginEdit(ctx); err != nil {
		return stepError(panel, "edit", err)
	}
	return nil
}

// readCode reads every region of f shifted by dr, dc and joins them into
// the field's code. Defaults are not applied.
func (b *Binder) readCode(panel string, f *schema.Field, dr, dc int) (string, error) {
	regions := f.Regions()
	raw := make([]string, len(regions))
	for i, seg := range regions {
		seg = seg.Offset(dr, dc)
		v, err := b.screen.ReadRegion(seg.Width, seg.Row, seg.Col)
		if err != nil {
			return "", stepError(panel, "read "+f.Name, err)
		}
		raw[i] = v
	}
	return f.Join(raw, b.cfg.Layout.BlankFill), nil
}

// readField reads and decodes one field.
func (b *Binder) readField(panel string, f *schema.Field, dr, dc int) (types.Value, error) {
	code, err := b.readCode(panel, f, dr, dc)
	if err != nil {
		return types.Value{}, err
	}
	return b.decode(f, code)
}

// decode turns a field code into its record value.
func (b *Binder) decode(f *schema.Field, code string) (types.Value, error) {
	if code == "" && f.Default != "" {
		code = f.Default
	}
	if f.Kind != schema.KindCoded {
		return types.Plain(code), nil
	}
	text, err := b.tables.Decode(f.Table, code)
	if err != nil {
		return types.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return types.Value{Code: code, Text: text}, nil
}

// diagnostic returns the trimmed message line.
func (b *Binder) diagnostic(panel string) (string, error) {
	d := b.cfg.Layout.Diagnostic
	v, err := b.screen.ReadRegion(d.Width, d.Row, d.Col)
	if err != nil {
		return "", stepError(panel, "read diagnostic", err)
	}
	return strings.TrimSpace(v), nil
}

func (b *Binder) isWarning(msg string) bool {
	return strings.HasPrefix(msg, b.cfg.Layout.WarningToken)
}

// checkSelection fails when the host refused the selection. Warnings are
// informational here.
func (b *Binder) checkSelection(panel string) error {
	msg, err := b.diagnostic(panel)
	if err != nil {
		return err
	}
	if msg != "" && !b.isWarning(msg) {
		return &HostRejectedError{Panel: panel, Step: "select", Message: msg}
	}
	return nil
}

// regionShown reports whether seg currently reads token.
func (b *Binder) regionShown(panel string, seg schema.Segment, token string) (bool, error) {
	v, err := b.screen.ReadRegion(seg.Width, seg.Row, seg.Col)
	if err != nil {
		return false, stepError(panel, "read page marker", err)
	}
	return strings.TrimSpace(v) == token, nil
}
