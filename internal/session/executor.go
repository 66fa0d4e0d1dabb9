// Package session runs binder jobs against one or more host sessions.
//
// A terminal session has a single screen, so jobs for the same session run
// one after another in submission order. Different sessions run in
// parallel up to the configured limit. The first failing job stops every
// job that has not started yet; jobs already running are allowed to finish
// so no panel is left half written.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"maxis/internal/binder"
	"maxis/internal/codec"
	"maxis/internal/host"
	"maxis/internal/journal"
	"maxis/internal/logging"
	"maxis/internal/schema"
	"maxis/internal/types"
)

// ErrNotStarted marks a job skipped because an earlier job failed or the
// run was cancelled.
var ErrNotStarted = errors.New("job not started")

// Op is what a job does to its panel.
type Op string

const (
	OpLoad   Op = "load"
	OpCommit Op = "commit"
	OpCreate Op = "create"
	OpAppend Op = "append"
)

// Session is one attached host session.
type Session struct {
	ID     string
	Screen host.ScreenIO
	Nav    host.Navigator

	mu sync.Mutex
}

// NewSession wraps a value providing both host capabilities.
func NewSession(id string, s host.Session) *Session {
	return &Session{ID: id, Screen: s, Nav: s}
}

// Job is one binder operation.
type Job struct {
	ID      string
	Session string
	Op      Op
	Panel   string
	Context types.Context
	Values  types.Values
	Group   string                    // append only
	Groups  map[string][]types.Values // initial entries, create only
}

// Result is the outcome of one job.
type Result struct {
	Job      Job
	Record   *types.Record
	Err      error
	Duration time.Duration
}

// Config holds configuration for the executor.
type Config struct {
	// Parallelism bounds how many sessions run at once.
	Parallelism int

	// Timeout bounds one job. Zero means no limit.
	Timeout time.Duration

	Binder binder.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Parallelism: 2, Timeout: 2 * time.Minute, Binder: binder.DefaultConfig()}
}

// Executor dispatches jobs to attached sessions.
type Executor struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	registry *schema.Registry
	tables   *codec.Tables
	journal  *journal.Journal // optional
	config   Config
	logger   *zap.Logger
	binderLg *zap.Logger
}

// NewExecutor creates an executor. j may be nil to disable journaling.
func NewExecutor(reg *schema.Registry, tables *codec.Tables, j *journal.Journal, cfg Config, logger *zap.Logger) *Executor {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.Binder.SlowOperation <= 0 {
		cfg.Binder.SlowOperation = binder.DefaultSlowOperation
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		sessions: make(map[string]*Session),
		registry: reg,
		tables:   tables,
		journal:  j,
		config:   cfg,
		logger:   logger,
		binderLg: logger,
	}
}

// SetBinderLogger sets the logger handed to each job's binder.
func (e *Executor) SetBinderLogger(l *zap.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.binderLg = l
}

// Attach registers a session under its id.
func (e *Executor) Attach(s *Session) error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.sessions[s.ID]; dup {
		return fmt.Errorf("session %q already attached", s.ID)
	}
	e.sessions[s.ID] = s
	e.logger.Debug("session attached", zap.String("session", s.ID))
	return nil
}

// Sessions returns the number of attached sessions.
func (e *Executor) Sessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Run executes jobs and returns one result per job, in job order. Jobs are
// checked up front; a malformed job fails the run before any host I/O.
// Jobs without an ID get one in place. The returned error is the first job
// failure, if any.
func (e *Executor) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))
	queues := make(map[string][]int)
	var order []string
	for i := range jobs {
		j := &jobs[i]
		if j.ID == "" {
			j.ID = uuid.NewString()
		}
		if err := e.check(j); err != nil {
			return nil, fmt.Errorf("job %d (%s): %w", i, j.ID, err)
		}
		if _, seen := queues[j.Session]; !seen {
			order = append(order, j.Session)
		}
		queues[j.Session] = append(queues[j.Session], i)
		results[i] = Result{Job: *j, Err: ErrNotStarted}
	}

	e.mu.RLock()
	binderLg := e.binderLg
	e.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Parallelism)
	for _, id := range order {
		s := e.session(id)
		idx := queues[id]
		g.Go(func() error {
			s.mu.Lock()
			defer s.mu.Unlock()

			b := binder.New(s.Screen, s.Nav, e.tables, e.config.Binder, binderLg)
			for _, i := range idx {
				if gctx.Err() != nil {
					return nil
				}
				// The job context comes from the caller, not the group:
				// a sibling failure must not interrupt a write in progress.
				res := e.execute(ctx, b, jobs[i])
				results[i] = res
				if res.Err != nil {
					return res.Err
				}
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	e.logger.Info("run finished", zap.Int("jobs", len(jobs)), zap.Int("sessions", len(order)), zap.Error(err))
	return results, err
}

// HasSession reports whether a session is attached under id.
func (e *Executor) HasSession(id string) bool {
	return e.session(id) != nil
}

func (e *Executor) session(id string) *Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessions[id]
}

func (e *Executor) check(j *Job) error {
	if e.session(j.Session) == nil {
		return fmt.Errorf("unknown session %q", j.Session)
	}
	if _, err := e.registry.Get(j.Panel); err != nil {
		return err
	}
	switch j.Op {
	case OpLoad, OpCommit, OpCreate:
		if len(j.Groups) > 0 && j.Op != OpCreate {
			return fmt.Errorf("%s cannot carry group entries", j.Op)
		}
	case OpAppend:
		if j.Group == "" {
			return fmt.Errorf("append needs a group")
		}
	default:
		return fmt.Errorf("unknown op %q", j.Op)
	}
	return nil
}

// execute runs one job and journals it when it writes.
func (e *Executor) execute(ctx context.Context, b *binder.Binder, j Job) Result {
	timer := logging.StartTimer(e.logger, fmt.Sprintf("%s %s on %s", j.Op, j.Panel, j.Session))
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}
	s, err := e.registry.Get(j.Panel)
	if err != nil {
		return Result{Job: j, Err: err}
	}

	var entry *journal.Entry
	if e.journal != nil && j.Op != OpLoad {
		en := journal.NewEntry(journal.Op(j.Op), s, j.Context, j.Values)
		en.ID = j.ID
		en.Group = j.Group
		en.SetGroups(s, j.Groups)
		entry = &en
	}

	var rec *types.Record
	switch j.Op {
	case OpLoad:
		rec, err = b.Load(ctx, j.Context, s)
	case OpCommit:
		rec, err = b.Commit(ctx, j.Context, s, j.Values, false)
	case OpCreate:
		rec, err = b.Create(ctx, j.Context, s, j.Values, j.Groups)
	case OpAppend:
		rec, err = b.Append(ctx, j.Context, s, j.Group, j.Values)
	}

	if entry != nil {
		c := j.Context
		if rec != nil {
			c = rec.Context
		}
		entry.Finish(c, err)
		// Journal even when the caller has given up on the run.
		if jerr := e.journal.Record(context.WithoutCancel(ctx), *entry); jerr != nil {
			e.logger.Error("journal write failed", zap.String("job", j.ID), zap.Error(jerr))
			if err == nil {
				err = fmt.Errorf("%s %s: journal: %w", j.Op, s.Panel, jerr)
			}
		}
	}

	d := timer.StopWithThreshold(e.config.Binder.SlowOperation)
	if err != nil {
		e.logger.Warn("job failed", zap.String("job", j.ID), zap.String("session", j.Session),
			zap.String("op", string(j.Op)), zap.String("panel", s.Panel), zap.Error(err))
	} else {
		e.logger.Debug("job done", zap.String("job", j.ID), zap.String("session", j.Session),
			zap.String("op", string(j.Op)), zap.String("panel", s.Panel), zap.Duration("duration", d))
	}
	return Result{Job: j, Record: rec, Err: err, Duration: d}
}
