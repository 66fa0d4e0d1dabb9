package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"maxis/internal/binder"
	"maxis/internal/codec"
	"maxis/internal/host/sim"
	"maxis/internal/journal"
	"maxis/internal/logging"
	"maxis/internal/schema"
	"maxis/internal/session"
	"maxis/internal/types"
)

// cliLogger returns the logger for the command layer itself.
func cliLogger() *zap.Logger {
	return logging.For(logger, cfg.Logging, logging.CategoryCLI)
}

// loadCatalog returns the panel schemas and code tables, built-in plus the
// files named in config, checked against each other.
func loadCatalog() (*schema.Registry, *codec.Tables, error) {
	tables, err := codec.Load(codec.Default(), cfg.Codecs.Paths...)
	if err != nil {
		return nil, nil, err
	}
	reg, err := schema.Load(cfg.Schemas.Paths...)
	if err != nil {
		return nil, nil, err
	}
	if err := reg.Check(tables); err != nil {
		return nil, nil, err
	}
	cliLogger().Debug("catalog loaded",
		zap.Int("panels", len(reg.Panels())),
		zap.Strings("schema_files", cfg.Schemas.Paths),
		zap.Strings("codec_files", cfg.Codecs.Paths))
	return reg, tables, nil
}

// openJournal opens the configured journal, or returns nil when it is
// disabled.
func openJournal() (*journal.Journal, error) {
	if !cfg.IsJournalEnabled() {
		return nil, nil
	}
	return journal.Open(cfg.Journal.Path, logging.For(logger, cfg.Logging, logging.CategoryJournal))
}

func newExecutor(reg *schema.Registry, tables *codec.Tables, j *journal.Journal) *session.Executor {
	scfg := session.Config{
		Parallelism: cfg.Sessions.Parallelism,
		Timeout:     cfg.GetOperationTimeout(),
		Binder: binder.Config{
			Layout:        cfg.Layout(),
			MaxPageTurns:  cfg.Host.MaxPageTurns,
			SlowOperation: cfg.GetSlowOperation(),
		},
	}
	e := session.NewExecutor(reg, tables, j, scfg, logging.For(logger, cfg.Logging, logging.CategorySession))
	e.SetBinderLogger(logging.For(logger, cfg.Logging, logging.CategoryBinder))
	return e
}

// simHost builds a simulated session, seeded from a fixture file when one
// is given.
func simHost(reg *schema.Registry, fixture string) (*sim.Host, error) {
	opts := []sim.Option{
		sim.WithLayout(cfg.Layout()),
		sim.WithLogger(logging.For(logger, cfg.Logging, logging.CategoryHost)),
	}
	if fixture == "" {
		return sim.New(reg, opts...), nil
	}
	f, err := sim.LoadFixture(fixture)
	if err != nil {
		return nil, err
	}
	return sim.NewFromFixture(reg, f, opts...)
}

// contextFlags are the panel address flags shared by load and commit.
type contextFlags struct {
	caseID, month, year, member, instance string
}

func (f *contextFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.caseID, "case", "", "Case number (required)")
	cmd.Flags().StringVar(&f.month, "month", "", "Footer month, MM (required)")
	cmd.Flags().StringVar(&f.year, "year", "", "Footer year, YY (required)")
	cmd.Flags().StringVar(&f.member, "member", "", "Member reference")
	cmd.Flags().StringVar(&f.instance, "instance", "", "Panel instance")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("month")
	_ = cmd.MarkFlagRequired("year")
}

func (f *contextFlags) context() types.Context {
	c := types.Context{CaseID: f.caseID, Month: f.month, Year: f.year}
	// Accept "1" for "01"; anything else is left for validation to reject.
	if ref, ok := types.NormalizeRef(f.member); ok {
		c.Member = ref
	} else {
		c.Member = f.member
	}
	if ref, ok := types.NormalizeRef(f.instance); ok {
		c.Instance = ref
	} else {
		c.Instance = f.instance
	}
	return c
}

// parseAssignments turns name=value pairs into Values. An empty value
// clears the field.
func parseAssignments(pairs []string) (types.Values, error) {
	out := make(types.Values, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", p)
		}
		out[name] = value
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
