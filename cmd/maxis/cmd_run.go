package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"maxis/internal/session"
	"maxis/internal/types"
)

var runFixture string

// runCmd executes a batch of jobs
var runCmd = &cobra.Command{
	Use:   "run <jobs.yaml>",
	Short: "Run a batch of jobs across simulated sessions",
	Long: `Runs the jobs in a YAML file. Jobs naming the same session run in file
order; different sessions run in parallel (sessions.parallelism). The first
failure stops every job that has not started.

  jobs:
    - session: a
      op: create
      panel: ACCT
      case: "123456"
      month: "01"
      year: "24"
      member: "01"
      values: {type: SV, balance: "1200", balance_verif: "1"}
    - session: a
      op: create
      panel: ACCI
      case: "123456"
      month: "01"
      year: "24"
      member: "01"
      values: {type: "01", injury_date: 06/01/23}
      groups:
        hh_members: [{ref: "01"}, {ref: "03"}]

Each session is a simulated host seeded from --fixture.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobs,
}

func init() {
	runCmd.Flags().StringVar(&runFixture, "fixture", "", "Simulated host fixture (YAML) for every session")
}

// jobFile is the YAML shape of a job batch.
type jobFile struct {
	Jobs []jobSpec `yaml:"jobs"`
}

type jobSpec struct {
	Session string                    `yaml:"session"`
	Op      string                    `yaml:"op"`
	Panel   string                    `yaml:"panel"`
	Context types.Context             `yaml:",inline"`
	Values  types.Values              `yaml:"values"`
	Group   string                    `yaml:"group"`
	Groups  map[string][]types.Values `yaml:"groups"`
}

// jobReport is one line of run output.
type jobReport struct {
	ID       string        `json:"id"`
	Session  string        `json:"session"`
	Op       string        `json:"op"`
	Panel    string        `json:"panel"`
	Outcome  string        `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration string        `json:"duration,omitempty"`
	Record   *types.Record `json:"record,omitempty"`
}

func readJobs(path string) ([]session.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs: %w", err)
	}
	var f jobFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse jobs: %w", err)
	}
	jobs := make([]session.Job, 0, len(f.Jobs))
	for _, s := range f.Jobs {
		if s.Session == "" {
			s.Session = "default"
		}
		jobs = append(jobs, session.Job{
			Session: s.Session,
			Op:      session.Op(s.Op),
			Panel:   s.Panel,
			Context: s.Context,
			Values:  s.Values,
			Group:   s.Group,
			Groups:  s.Groups,
		})
	}
	return jobs, nil
}

func runJobs(cmd *cobra.Command, args []string) error {
	jobs, err := readJobs(args[0])
	if err != nil {
		return err
	}
	log := cliLogger()
	log.Info("jobs read", zap.String("file", args[0]), zap.Int("jobs", len(jobs)))
	reg, tables, err := loadCatalog()
	if err != nil {
		return err
	}
	j, err := openJournal()
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	e := newExecutor(reg, tables, j)
	for _, job := range jobs {
		if e.HasSession(job.Session) {
			continue
		}
		h, err := simHost(reg, runFixture)
		if err != nil {
			return err
		}
		if err := e.Attach(session.NewSession(job.Session, h)); err != nil {
			return err
		}
		log.Debug("simulated session attached", zap.String("session", job.Session), zap.String("fixture", runFixture))
	}

	log.Info("running jobs", zap.Int("jobs", len(jobs)), zap.Int("sessions", e.Sessions()))

	results, runErr := e.Run(cmd.Context(), jobs)
	if results == nil {
		return runErr
	}
	out := cmd.OutOrStdout()
	for _, r := range results {
		rep := jobReport{
			ID:      r.Job.ID,
			Session: r.Job.Session,
			Op:      string(r.Job.Op),
			Panel:   r.Job.Panel,
			Outcome: "ok",
			Record:  r.Record,
		}
		switch {
		case errors.Is(r.Err, session.ErrNotStarted):
			rep.Outcome = "skipped"
		case r.Err != nil:
			rep.Outcome = "error"
			rep.Error = r.Err.Error()
		}
		if r.Duration > 0 {
			rep.Duration = r.Duration.String()
		}
		if err := printJSON(out, rep); err != nil {
			return err
		}
	}
	return runErr
}
