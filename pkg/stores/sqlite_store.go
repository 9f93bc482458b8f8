package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openfroyo/installer/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path string

	// BusyTimeout is how long a writer waits for a lock held by another
	// installer process.
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: dsn(cfg)}, nil
}

func dsn(cfg Config) string {
	timeout := cfg.BusyTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", cfg.Path, timeout.Milliseconds())
}

// Init opens the database, creating its directory when needed.
func (s *SQLiteStore) Init(ctx context.Context) error {
	file, _, _ := strings.Cut(s.path, "?")
	if file != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One installer writes at a time; a single connection also keeps
	// in-memory databases alive across queries.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate brings the schema up to date.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// RunStarted inserts a run record.
func (s *SQLiteStore) RunStarted(ctx context.Context, run *engine.RunRecord) error {
	query := `
		INSERT INTO runs (id, workflow, tag, dry_run, platform, status, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Workflow,
		string(run.Tag),
		run.DryRun,
		run.Platform,
		string(run.Status),
		run.StartedAt.UTC(),
		utc(run.FinishedAt),
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// RunFinished stores the final status of a run.
func (s *SQLiteStore) RunFinished(ctx context.Context, run *engine.RunRecord) error {
	query := `
		UPDATE runs
		SET status = ?, finished_at = ?, error = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, string(run.Status), utc(run.FinishedAt), run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// StepFinished appends a step outcome to its run.
func (s *SQLiteStore) StepFinished(ctx context.Context, step *engine.StepRecord) error {
	query := `
		INSERT INTO step_executions (run_id, stage, job, step, kind, status, started_at, stopped_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		step.RunID,
		step.Stage,
		step.Job,
		step.Step,
		step.Kind,
		string(step.Status),
		step.StartedAt.UTC(),
		step.StoppedAt.UTC(),
		step.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record step %s: %w", step.Step, err)
	}
	return nil
}

// Event appends a run event.
func (s *SQLiteStore) Event(ctx context.Context, event *engine.EventRecord) error {
	query := `
		INSERT INTO events (run_id, phase, level, message, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.RunID,
		string(event.Phase),
		string(event.Level),
		event.Message,
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

const runColumns = `
	r.id, r.workflow, r.tag, r.dry_run, r.platform, r.status, r.started_at, r.finished_at, r.error,
	(SELECT COUNT(*) FROM step_executions s WHERE s.run_id = r.id),
	(SELECT COUNT(*) FROM step_executions s WHERE s.run_id = r.id AND s.status = 'error')
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunSummary, error) {
	run := &RunSummary{}
	err := row.Scan(
		&run.ID,
		&run.Workflow,
		&run.Tag,
		&run.DryRun,
		&run.Platform,
		&run.Status,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Error,
		&run.Steps,
		&run.FailedSteps,
	)
	return run, err
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs r WHERE r.id = ?`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT ` + runColumns + `
		FROM runs r
		WHERE (? = '' OR r.workflow = ?)
		  AND (? = '' OR r.status = ?)
		ORDER BY r.started_at DESC, r.id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		filter.Workflow, filter.Workflow,
		string(filter.Status), string(filter.Status),
		limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*RunSummary{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ListSteps returns the steps of a run in execution order.
func (s *SQLiteStore) ListSteps(ctx context.Context, runID string) ([]*StepExecution, error) {
	query := `
		SELECT id, run_id, stage, job, step, kind, status, started_at, stopped_at, error
		FROM step_executions
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	steps := []*StepExecution{}
	for rows.Next() {
		step := &StepExecution{}
		err := rows.Scan(
			&step.ID,
			&step.RunID,
			&step.Stage,
			&step.Job,
			&step.Step,
			&step.Kind,
			&step.Status,
			&step.StartedAt,
			&step.StoppedAt,
			&step.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}
	return steps, nil
}

// ListEvents returns the events of a run in the order they happened.
func (s *SQLiteStore) ListEvents(ctx context.Context, runID string) ([]*Event, error) {
	query := `
		SELECT id, run_id, phase, level, message, timestamp
		FROM events
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.Phase,
			&event.Level,
			&event.Message,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// PruneRuns deletes finished runs started before the given time, with their
// steps and events. Runs still marked running are kept.
func (s *SQLiteStore) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM runs WHERE started_at < ? AND status != 'running'`

	result, err := s.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
