package stores

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

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned when the requested run is not journaled.
var ErrRunNotFound = errors.New("run not found")

// Journal is the SQLite-backed run history. It records run and task
// outcomes only; the in-memory run context is never persisted.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the journal at path, runs migrations, and
// enables WAL mode.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(ON)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging journal: %w", err)
	}

	j := &Journal{db: db, path: path}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(j.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("preparing migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// BeginRun journals the start of a run.
func (j *Journal) BeginRun(ctx context.Context, id, playbook string, tasksTotal int) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, playbook, status, started_at, tasks_total)
		VALUES (?, ?, ?, ?, ?)
	`, id, playbook, "running", time.Now().UTC(), tasksTotal)
	if err != nil {
		return fmt.Errorf("journaling run start: %w", err)
	}
	return nil
}

// FinishRun journals the run's terminal status and summary counters.
func (j *Journal) FinishRun(ctx context.Context, id, status string, attempted, succeeded, changed, failed int) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, completed_at = ?, attempted = ?, succeeded = ?, changed = ?, failed = ?
		WHERE id = ?
	`, status, time.Now().UTC(), attempted, succeeded, changed, failed, id)
	if err != nil {
		return fmt.Errorf("journaling run finish: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("journaling run finish: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// RecordTask journals one task result.
func (j *Journal) RecordTask(ctx context.Context, rec *TaskRecord) error {
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO task_results (run_id, task_index, description, module, succeeded, changed, error, output, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Index, rec.Description, rec.Module, rec.Succeeded, rec.Changed, rec.Error, rec.Output, recordedAt)
	if err != nil {
		return fmt.Errorf("journaling task result: %w", err)
	}
	return nil
}

// GetRun reads one run record.
func (j *Journal) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	run := &RunRecord{}
	err := j.db.QueryRowContext(ctx, `
		SELECT id, playbook, status, started_at, completed_at, tasks_total, attempted, succeeded, changed, failed
		FROM runs
		WHERE id = ?
	`, id).Scan(
		&run.ID, &run.Playbook, &run.Status, &run.StartedAt, &run.CompletedAt,
		&run.TasksTotal, &run.Attempted, &run.Succeeded, &run.Changed, &run.Failed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run: %w", err)
	}
	return run, nil
}

// ListRuns returns journaled runs, newest first.
func (j *Journal) ListRuns(ctx context.Context, limit, offset int) ([]*RunRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, playbook, status, started_at, completed_at, tasks_total, attempted, succeeded, changed, failed
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []*RunRecord{}
	for rows.Next() {
		run := &RunRecord{}
		if err := rows.Scan(
			&run.ID, &run.Playbook, &run.Status, &run.StartedAt, &run.CompletedAt,
			&run.TasksTotal, &run.Attempted, &run.Succeeded, &run.Changed, &run.Failed,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// ListTaskRecords returns a run's task results in execution order.
func (j *Journal) ListTaskRecords(ctx context.Context, runID string) ([]*TaskRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, task_index, description, module, succeeded, changed, error, output, recorded_at
		FROM task_results
		WHERE run_id = ?
		ORDER BY task_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing task results: %w", err)
	}
	defer rows.Close()

	records := []*TaskRecord{}
	for rows.Next() {
		rec := &TaskRecord{}
		if err := rows.Scan(
			&rec.RunID, &rec.Index, &rec.Description, &rec.Module,
			&rec.Succeeded, &rec.Changed, &rec.Error, &rec.Output, &rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning task result: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task results: %w", err)
	}
	return records, nil
}

// HealthCheck verifies the journal is reachable.
func (j *Journal) HealthCheck(ctx context.Context) error {
	return j.db.PingContext(ctx)
}
