package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run statuses and document outcomes recorded in the ledger.
const (
	RunRunning  = "running"
	RunFinished = "finished"

	DocumentFixed     = "fixed"
	DocumentUnchanged = "unchanged"
	DocumentFailed    = "failed"
	DocumentValid     = "valid"
	DocumentInvalid   = "invalid"
	DocumentError     = "error"
)

// Store is the SQLite-backed run ledger
type Store struct {
	db *sql.DB
}

// Run represents one invocation of a batch command over a directory
type Run struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	Dir        string    `json:"dir"`
	Status     string    `json:"status"`
	DryRun     bool      `json:"dry_run"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Document represents the outcome for a single file within a run
type Document struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id"`
	Path        string         `json:"path"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	Objects     int            `json:"objects"`
	Remapped    int            `json:"remapped"`
	Fixups      map[string]int `json:"fixups,omitempty"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// NewStore creates a new SQLite store instance
func NewStore(dbPath string) (*Store, error) {
	// Ensure target directory exists (e.g., ./data)
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps ":memory:" databases shared and serializes
	// writes from concurrent workers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate performs database migrations
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			dir TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running',
			dry_run INTEGER NOT NULL DEFAULT 0,
			processed INTEGER DEFAULT 0,
			failed INTEGER DEFAULT 0,
			started_at INTEGER NOT NULL,
			finished_at INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			objects INTEGER DEFAULT 0,
			remapped INTEGER DEFAULT 0,
			fixups TEXT,
			processed_at INTEGER NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_command ON runs(command)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_run_id ON documents(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// StartRun records a new run and returns its ID
func (s *Store) StartRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = "run_" + uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	query := `INSERT INTO runs (id, command, dir, status, dry_run, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Command, run.Dir, RunRunning, run.DryRun, run.StartedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}
	return run.ID, nil
}

// FinishRun stores final counters for a run
func (s *Store) FinishRun(ctx context.Context, runID string, processed, failed int) error {
	query := `UPDATE runs SET status = ?, processed = ?, failed = ?, finished_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, RunFinished, processed, failed, time.Now().UnixMilli(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// RecordDocument stores the outcome for one file
func (s *Store) RecordDocument(ctx context.Context, doc Document) (string, error) {
	if doc.ID == "" {
		doc.ID = "doc_" + uuid.NewString()
	}
	if doc.ProcessedAt.IsZero() {
		doc.ProcessedAt = time.Now()
	}

	var fixupsJSON []byte
	if len(doc.Fixups) > 0 {
		var err error
		fixupsJSON, err = json.Marshal(doc.Fixups)
		if err != nil {
			return "", fmt.Errorf("failed to marshal fixup counts: %w", err)
		}
	}

	query := `INSERT INTO documents (
		id, run_id, path, status, error, objects, remapped, fixups, processed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.RunID, doc.Path, doc.Status, doc.Error,
		doc.Objects, doc.Remapped, string(fixupsJSON), doc.ProcessedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to save document: %w", err)
	}
	return doc.ID, nil
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, command, dir, status, dry_run, processed, failed, started_at, finished_at
		FROM runs ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt int64
		var finishedAt sql.NullInt64

		err := rows.Scan(&run.ID, &run.Command, &run.Dir, &run.Status, &run.DryRun,
			&run.Processed, &run.Failed, &startedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt = time.UnixMilli(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = time.UnixMilli(finishedAt.Int64)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetDocuments returns recorded documents, optionally restricted to one run
// and/or one status. Without a run ID the most recent documents come first.
func (s *Store) GetDocuments(ctx context.Context, runID, status string, limit int) ([]Document, error) {
	query := `SELECT id, run_id, path, status, error, objects, remapped, fixups, processed_at
		FROM documents`
	var where []string
	var args []interface{}

	if runID != "" {
		where = append(where, "run_id = ?")
		args = append(args, runID)
	}
	if status != "" {
		where = append(where, "status = ?")
		args = append(args, status)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if runID != "" {
		query += " ORDER BY processed_at ASC, path ASC"
	} else {
		query += " ORDER BY processed_at DESC, path ASC"
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var errText, fixupsJSON sql.NullString
		var processedAt int64

		err := rows.Scan(&doc.ID, &doc.RunID, &doc.Path, &doc.Status, &errText,
			&doc.Objects, &doc.Remapped, &fixupsJSON, &processedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		doc.ProcessedAt = time.UnixMilli(processedAt)
		if errText.Valid {
			doc.Error = errText.String
		}
		if fixupsJSON.Valid && fixupsJSON.String != "" {
			if err := json.Unmarshal([]byte(fixupsJSON.String), &doc.Fixups); err != nil {
				return nil, fmt.Errorf("failed to decode fixup counts for %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteRunsBefore removes runs (and their documents) started before cutoff
func (s *Store) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ms := cutoff.UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, ms); err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, ms)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return n, nil
}
