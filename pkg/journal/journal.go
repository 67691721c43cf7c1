// Package journal records run history in a local SQLite database: each
// run, each payload's phases, and each deployment step's outcome. The
// journal exists for operators debugging an instance after the fact; the
// run itself never depends on it, and every recording method on a nil
// Journal is a no-op.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is one recorded orchestrator run.
type Run struct {
	ID          string
	Status      string
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// PayloadRun is one payload's recorded lifecycle phase within a run.
type PayloadRun struct {
	ID        string
	RunID     string
	Payload   string
	Phase     string
	Status    string
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

// StepRecord is one deployment step's recorded outcome.
type StepRecord struct {
	ID        string
	RunID     string
	Payload   string
	Handler   string
	Source    string
	Status    string
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

// Run and phase statuses written to the journal.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Journal is an open run-history database.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens the journal database at path, creating and migrating it as
// needed.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	j := &Journal{db: db, path: path}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the database. Safe on a nil Journal.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Path returns the journal database path.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

func (j *Journal) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(j.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// BeginRun records the start of a run and returns its id. Returns "" on
// a nil Journal.
func (j *Journal) BeginRun(ctx context.Context) (string, error) {
	if j == nil {
		return "", nil
	}
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, StatusRunning, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}
	return id, nil
}

// FinishRun records a run's final status. runErr may be nil.
func (j *Journal) FinishRun(ctx context.Context, runID string, runErr error) error {
	if j == nil || runID == "" {
		return nil
	}
	status := StatusCompleted
	msg := ""
	if runErr != nil {
		status = StatusFailed
		msg = runErr.Error()
	}
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, msg, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// RecordPayloadPhase records one payload's acquire or deploy outcome.
func (j *Journal) RecordPayloadPhase(ctx context.Context, runID, payload, phase string, duration time.Duration, phaseErr error) error {
	if j == nil || runID == "" {
		return nil
	}
	status := StatusCompleted
	msg := ""
	if phaseErr != nil {
		status = StatusFailed
		msg = phaseErr.Error()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO payload_runs (id, run_id, payload, phase, status, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), runID, payload, phase, status, msg,
		duration.Milliseconds(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record payload phase: %w", err)
	}
	return nil
}

// RecordStep records one deployment step's outcome.
func (j *Journal) RecordStep(ctx context.Context, runID, payload, handler, source, status string, duration time.Duration, stepErr error) error {
	if j == nil || runID == "" {
		return nil
	}
	msg := ""
	if stepErr != nil {
		msg = stepErr.Error()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO steps (id, run_id, payload, handler, source, status, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), runID, payload, handler, source, status, msg,
		duration.Milliseconds(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

// Runs lists recorded runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]*Run, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, status, error, started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.ID, &run.Status, &run.Error, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// PayloadRuns lists a run's recorded payload phases in recording order.
func (j *Journal) PayloadRuns(ctx context.Context, runID string) ([]*PayloadRun, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, run_id, payload, phase, status, error, duration_ms, created_at
		 FROM payload_runs WHERE run_id = ? ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payload runs: %w", err)
	}
	defer rows.Close()

	var prs []*PayloadRun
	for rows.Next() {
		pr := &PayloadRun{}
		var ms int64
		if err := rows.Scan(&pr.ID, &pr.RunID, &pr.Payload, &pr.Phase, &pr.Status, &pr.Error, &ms, &pr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payload run: %w", err)
		}
		pr.Duration = time.Duration(ms) * time.Millisecond
		prs = append(prs, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payload runs: %w", err)
	}
	return prs, nil
}

// Steps lists a run's recorded steps in recording order.
func (j *Journal) Steps(ctx context.Context, runID string) ([]*StepRecord, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, run_id, payload, handler, source, status, error, duration_ms, created_at
		 FROM steps WHERE run_id = ? ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []*StepRecord
	for rows.Next() {
		s := &StepRecord{}
		var ms int64
		if err := rows.Scan(&s.ID, &s.RunID, &s.Payload, &s.Handler, &s.Source, &s.Status, &s.Error, &ms, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		s.Duration = time.Duration(ms) * time.Millisecond
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}
	return steps, nil
}
