// Package ledger keeps a local SQLite history of ingest runs: which project
// IDs were minted, for which source URLs, and how each run ended. The
// pipeline itself does not depend on it; orphaned objects from failed runs
// can be traced through it later.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded pipeline run.
type Run struct {
	ProjectID  string
	SourceURL  string
	Mode       string
	Status     string
	Error      string
	FrameCount int
	StartedAt  time.Time
	FinishedAt time.Time
}

type Ledger struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the ledger database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	l := &Ledger{conn: conn, logger: logger}

	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := l.markInterruptedRuns(); err != nil && logger != nil {
		logger.Warn("failed to mark interrupted runs", "error", err)
	}

	return l, nil
}

func (l *Ledger) Close() error {
	return l.conn.Close()
}

// Begin records a run as started.
func (l *Ledger) Begin(ctx context.Context, projectID, sourceURL, mode string) error {
	_, err := l.conn.ExecContext(ctx, `
		INSERT INTO runs (project_id, source_url, mode, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, projectID, sourceURL, mode, StatusRunning, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Complete marks a run as finished successfully with its frame count.
func (l *Ledger) Complete(ctx context.Context, projectID string, frameCount int) error {
	_, err := l.conn.ExecContext(ctx, `
		UPDATE runs SET status = ?, frame_count = ?, finished_at = ?
		WHERE project_id = ?
	`, StatusCompleted, frameCount, time.Now().UTC().Format(time.RFC3339), projectID)
	return err
}

// Fail marks a run as failed with its error message.
func (l *Ledger) Fail(ctx context.Context, projectID, errMsg string) error {
	_, err := l.conn.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE project_id = ?
	`, StatusFailed, errMsg, time.Now().UTC().Format(time.RFC3339), projectID)
	return err
}

// Get returns one recorded run.
func (l *Ledger) Get(ctx context.Context, projectID string) (*Run, error) {
	row := l.conn.QueryRowContext(ctx, `
		SELECT project_id, source_url, mode, status,
		       COALESCE(error, ''), COALESCE(frame_count, 0),
		       started_at, COALESCE(finished_at, '')
		FROM runs WHERE project_id = ?
	`, projectID)
	return scanRun(row)
}

// List returns the most recent runs, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := l.conn.QueryContext(ctx, `
		SELECT project_id, source_url, mode, status,
		       COALESCE(error, ''), COALESCE(frame_count, 0),
		       started_at, COALESCE(finished_at, '')
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var startedAt, finishedAt string
	if err := row.Scan(&r.ProjectID, &r.SourceURL, &r.Mode, &r.Status,
		&r.Error, &r.FrameCount, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if finishedAt != "" {
		r.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
	}
	return &r, nil
}

func (l *Ledger) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}

		name := m.Name()

		if l.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		if _, err := l.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}

		if _, err := l.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}

		if l.logger != nil {
			l.logger.Info("applied migration", "name", name)
		}
	}

	return nil
}

func (l *Ledger) isMigrationApplied(name string) bool {
	var exists int
	err := l.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}

	var applied int
	err = l.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

// markInterruptedRuns fails runs left in "running" by a crashed process.
func (l *Ledger) markInterruptedRuns() error {
	_, err := l.conn.ExecContext(context.Background(),
		`UPDATE runs SET status = ?, error = 'interrupted by restart', finished_at = datetime('now') WHERE status = ?`,
		StatusFailed, StatusRunning)
	return err
}
