// Package sqlite persists batch run history in a local SQLite database, so
// `feeddiff history` can show past runs without re-reading summary files.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
	"github.com/custodia-labs/feeddiff-cli/internal/core/ports/driven"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	started_at    TEXT NOT NULL,
	mode          TEXT NOT NULL,
	params_file   TEXT NOT NULL DEFAULT '',
	case_count    INTEGER NOT NULL,
	changed_cases INTEGER NOT NULL,
	error_cases   INTEGER NOT NULL,
	summary_path  TEXT NOT NULL DEFAULT '',
	runtime_secs  REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

// Ensure RunStore implements the port.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is a SQLite-backed implementation of driven.RunStore.
type RunStore struct {
	db   *sql.DB
	path string
}

// NewRunStore opens (creating if needed) the run history database.
// If dataDir is empty, defaults to ~/.feeddiff/data/history.db.
func NewRunStore(dataDir string) (*RunStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".feeddiff", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")

	// WAL mode so a running batch and a history query can coexist.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &RunStore{db: db, path: dbPath}, nil
}

// SaveRun implements driven.RunStore.
func (s *RunStore) SaveRun(ctx context.Context, rec domain.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, mode, params_file, case_count,
			changed_cases, error_cases, summary_path, runtime_secs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.Mode,
		rec.ParamsFile,
		rec.CaseCount,
		rec.ChangedCases,
		rec.ErrorCases,
		rec.SummaryPath,
		rec.RuntimeSecs,
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// ListRuns implements driven.RunStore.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, mode, params_file, case_count,
			changed_cases, error_cases, summary_path, runtime_secs
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var startedAt string
		if err := rows.Scan(&rec.ID, &startedAt, &rec.Mode, &rec.ParamsFile,
			&rec.CaseCount, &rec.ChangedCases, &rec.ErrorCases,
			&rec.SummaryPath, &rec.RuntimeSecs); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			rec.StartedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return records, nil
}

// Close implements driven.RunStore.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *RunStore) Path() string {
	return s.path
}
