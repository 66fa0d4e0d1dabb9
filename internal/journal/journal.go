// Package journal keeps an audit trail of every write made to MAXIS: one
// row per commit, create or append, whatever its outcome. Values of
// sensitive fields are masked before they reach the database.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"maxis/internal/schema"
	"maxis/internal/types"
)

// Mask replaces sensitive values in the journal.
const Mask = "***"

// Op is the kind of write journaled.
type Op string

const (
	OpCommit Op = "commit"
	OpCreate Op = "create"
	OpAppend Op = "append"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Outcome of a journaled write.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Entry is one journaled write.
type Entry struct {
	ID        string                    `json:"id"`
	Op        Op                        `json:"op"`
	Panel     string                    `json:"panel"`
	Group     string                    `json:"group,omitempty"`
	Context   types.Context             `json:"context"`
	Values    types.Values              `json:"values"`
	Groups    map[string][]types.Values `json:"groups,omitempty"` // entries written on create
	Outcome   string                    `json:"outcome"`
	Error     string                    `json:"error,omitempty"`
	StartedAt time.Time                 `json:"started_at"`
	Duration  time.Duration             `json:"duration"`
}

// NewEntry starts an entry for a write of values to the panel described by
// s. Sensitive values are masked; blank ones stay blank so a cleared field
// is still visible.
func NewEntry(op Op, s *schema.Schema, c types.Context, values types.Values) Entry {
	masked := make(types.Values, len(values))
	for k, v := range values {
		if v != "" && s.Sensitive(k) {
			v = Mask
		}
		masked[k] = v
	}
	return Entry{
		ID:        uuid.NewString(),
		Op:        op,
		Panel:     s.Panel,
		Context:   c,
		Values:    masked,
		StartedAt: time.Now(),
	}
}

// SetGroups records the initial group entries of a create, masked like
// Values.
func (e *Entry) SetGroups(s *schema.Schema, groups map[string][]types.Values) {
	if len(groups) == 0 {
		return
	}
	e.Groups = make(map[string][]types.Values, len(groups))
	for name, entries := range groups {
		g, ok := s.RepeatingGroup(name)
		masked := make([]types.Values, 0, len(entries))
		for _, entry := range entries {
			m := make(types.Values, len(entry))
			for k, v := range entry {
				if ok && v != "" {
					if f, found := g.Field(k); found && f.Sensitive {
						v = Mask
					}
				}
				m[k] = v
			}
			masked = append(masked, m)
		}
		e.Groups[name] = masked
	}
}

// Finish records the outcome of the write.
func (e *Entry) Finish(c types.Context, err error) {
	e.Duration = time.Since(e.StartedAt)
	if c.Instance != "" {
		e.Context.Instance = c.Instance
	}
	if err != nil {
		e.Outcome = OutcomeError
		e.Error = err.Error()
		return
	}
	e.Outcome = OutcomeOK
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Case  string
	Panel string
	Limit int
}

// Journal is a SQLite-backed store of entries. It is safe for concurrent
// use.
type Journal struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	logger *zap.Logger
}

// Open creates or opens the journal database at path.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One writer; also keeps a :memory: database alive across calls.
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, dbPath: path, logger: logger}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	logger.Debug("journal opened", zap.String("path", path))
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		op TEXT NOT NULL,
		panel TEXT NOT NULL,
		grp TEXT,
		case_id TEXT NOT NULL,
		month TEXT NOT NULL,
		year TEXT NOT NULL,
		member TEXT,
		instance TEXT,
		values_json TEXT NOT NULL,
		groups_json TEXT,
		outcome TEXT NOT NULL,
		error TEXT,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_operations_case ON operations(case_id);
	CREATE INDEX IF NOT EXISTS idx_operations_panel ON operations(panel);
	CREATE INDEX IF NOT EXISTS idx_operations_started ON operations(started_at);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return err
	}
	return j.migrate()
}

// column is one column added after the first release of the table.
type column struct {
	Table  string
	Column string
	Def    string
}

// pendingColumns brings journals written by older builds up to date.
var pendingColumns = []column{
	{"operations", "groups_json", "TEXT"},
}

func (j *Journal) migrate() error {
	for _, c := range pendingColumns {
		exists, err := j.columnExists(c.Table, c.Column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.Table, c.Column, c.Def)
		if _, err := j.db.Exec(query); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", c.Table, c.Column, err)
		}
		j.logger.Info("journal migrated", zap.String("table", c.Table), zap.String("column", c.Column))
	}
	return nil
}

// columnExists checks a column using PRAGMA table_info.
func (j *Journal) columnExists(table, name string) (bool, error) {
	rows, err := j.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid      int
			col, typ string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &col, &typ, &notNull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("failed to inspect %s: %w", table, err)
		}
		if col == name {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.dbPath
}

// Record stores e. An entry without an id gets one.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeOK
	}
	valuesJSON, err := json.Marshal(e.Values)
	if err != nil {
		return fmt.Errorf("failed to encode values: %w", err)
	}
	var groupsJSON sql.NullString
	if len(e.Groups) > 0 {
		data, err := json.Marshal(e.Groups)
		if err != nil {
			return fmt.Errorf("failed to encode groups: %w", err)
		}
		groupsJSON = sql.NullString{String: string(data), Valid: true}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO operations
		(id, op, panel, grp, case_id, month, year, member, instance,
		 values_json, groups_json, outcome, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Op), e.Panel, e.Group,
		e.Context.CaseID, e.Context.Month, e.Context.Year, e.Context.Member, e.Context.Instance,
		string(valuesJSON), groupsJSON, e.Outcome, e.Error,
		e.StartedAt.UTC().Format(timeLayout), e.Duration.Milliseconds(),
	)
	if err != nil {
		j.logger.Error("failed to record operation", zap.String("id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to record operation: %w", err)
	}
	j.logger.Debug("operation recorded", zap.String("id", e.ID), zap.String("op", string(e.Op)), zap.String("outcome", e.Outcome))
	return nil
}

// List returns entries matching f, newest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	var where []string
	var args []any
	if f.Case != "" {
		where = append(where, "case_id = ?")
		args = append(args, f.Case)
	}
	if f.Panel != "" {
		where = append(where, "panel = ?")
		args = append(args, strings.ToUpper(f.Panel))
	}
	query := `SELECT id, op, panel, grp, case_id, month, year, member, instance,
		values_json, groups_json, outcome, error, started_at, duration_ms FROM operations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var op, valuesJSON, startedAt string
		var group, member, instance, errMsg, groupsJSON sql.NullString
		var durationMs int64
		if err := rows.Scan(&e.ID, &op, &e.Panel, &group, &e.Context.CaseID, &e.Context.Month, &e.Context.Year,
			&member, &instance, &valuesJSON, &groupsJSON, &e.Outcome, &errMsg, &startedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		e.Op = Op(op)
		e.Group = group.String
		e.Context.Member = member.String
		e.Context.Instance = instance.String
		e.Error = errMsg.String
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if e.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("operation %s: bad timestamp %q: %w", e.ID, startedAt, err)
		}
		if err := json.Unmarshal([]byte(valuesJSON), &e.Values); err != nil {
			return nil, fmt.Errorf("operation %s: bad values: %w", e.ID, err)
		}
		if groupsJSON.Valid && groupsJSON.String != "" {
			if err := json.Unmarshal([]byte(groupsJSON.String), &e.Groups); err != nil {
				return nil, fmt.Errorf("operation %s: bad groups: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
