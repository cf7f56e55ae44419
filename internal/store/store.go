// Package store persists extraction jobs and their reconciled results
// in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/schemati/schemati/constants"
	"github.com/schemati/schemati/internal/common"
	"github.com/schemati/schemati/internal/reconcile"
)

//go:embed schema.sql
var schemaSQL string

// Job is one document extraction job.
type Job struct {
	ID        string
	Path      string
	Status    constants.JobStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the SQLite-backed job and result store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database under dataDir. If dataDir is
// empty it defaults to ~/.schemati/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".schemati", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "schemati.db")

	// WAL mode keeps readers unblocked while page results stream in.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// CreateJob registers a new queued job for the document at path.
func (s *Store) CreateJob(ctx context.Context, path string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Path:      path,
		Status:    constants.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, path, status, error, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?)
	`, job.ID, job.Path, string(job.Status), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return job, nil
}

// SetStatus transitions a job to the given status. A non-empty errMsg
// is recorded alongside FAILED.
func (s *Store) SetStatus(ctx context.Context, id string, status constants.JobStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, string(status), errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, status, error, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)
	return scanJob(row)
}

// ListJobs returns all jobs, most recent first.
func (s *Store) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, status, error, created_at, updated_at
		FROM documents ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var status string
		if err := rows.Scan(&j.ID, &j.Path, &status, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		j.Status = constants.JobStatus(status)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// SaveResult stores the reconciled document result for a job and marks
// it COMPLETED. Page results and failures replace any previous run.
func (s *Store) SaveResult(ctx context.Context, id string, result reconcile.DocumentResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM page_results WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("clearing page results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM page_failures WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("clearing page failures: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO page_results (document_id, page_number, result) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, page := range result.Pages {
		payload, err := json.Marshal(page)
		if err != nil {
			return fmt.Errorf("marshalling page %d: %w", page.PageNumber, err)
		}
		if _, err := stmt.ExecContext(ctx, id, page.PageNumber, string(payload)); err != nil {
			return fmt.Errorf("saving page %d: %w", page.PageNumber, err)
		}
	}

	for _, f := range result.Failures {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO page_failures (document_id, page_number, error) VALUES (?, ?, ?)
		`, id, f.PageNumber, f.Error); err != nil {
			return fmt.Errorf("saving page failure %d: %w", f.PageNumber, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = '', updated_at = ? WHERE id = ?
	`, string(constants.JobStatusCompleted), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetResult reassembles the stored document result for a job, pages in
// page-number order.
func (s *Store) GetResult(ctx context.Context, id string) (reconcile.DocumentResult, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return reconcile.DocumentResult{}, err
	}
	out := reconcile.DocumentResult{Path: job.Path}

	rows, err := s.db.QueryContext(ctx, `
		SELECT result FROM page_results WHERE document_id = ? ORDER BY page_number
	`, id)
	if err != nil {
		return reconcile.DocumentResult{}, fmt.Errorf("querying page results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return reconcile.DocumentResult{}, fmt.Errorf("scanning page result: %w", err)
		}
		var page reconcile.PageResult
		if err := json.Unmarshal([]byte(payload), &page); err != nil {
			return reconcile.DocumentResult{}, fmt.Errorf("unmarshaling page result: %w", err)
		}
		out.Pages = append(out.Pages, page)
	}
	if err := rows.Err(); err != nil {
		return reconcile.DocumentResult{}, fmt.Errorf("iterating page results: %w", err)
	}

	frows, err := s.db.QueryContext(ctx, `
		SELECT page_number, error FROM page_failures WHERE document_id = ? ORDER BY page_number
	`, id)
	if err != nil {
		return reconcile.DocumentResult{}, fmt.Errorf("querying page failures: %w", err)
	}
	defer frows.Close()

	for frows.Next() {
		var f reconcile.PageFailure
		if err := frows.Scan(&f.PageNumber, &f.Error); err != nil {
			return reconcile.DocumentResult{}, fmt.Errorf("scanning page failure: %w", err)
		}
		out.Failures = append(out.Failures, f)
	}
	if err := frows.Err(); err != nil {
		return reconcile.DocumentResult{}, fmt.Errorf("iterating page failures: %w", err)
	}

	return out, nil
}

// RecoverStaleJobs fails every job left QUEUED or RUNNING by an unclean
// stop. Run once at daemon startup, before anything is submitted, so a
// job killed mid-flight cannot block its path forever. Returns the
// number of jobs transitioned.
func (s *Store) RecoverStaleJobs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = ?, updated_at = ?
		WHERE status IN (?, ?)
	`, string(constants.JobStatusFailed), "interrupted by shutdown", time.Now().UTC(),
		string(constants.JobStatusQueued), string(constants.JobStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("recovering stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recovering stale jobs: %w", err)
	}
	return n, nil
}

// FindJobByPath returns the most recent job for a path, or ErrNotFound.
func (s *Store) FindJobByPath(ctx context.Context, path string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, status, error, created_at, updated_at
		FROM documents WHERE path = ? ORDER BY created_at DESC LIMIT 1
	`, path)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var status string
	if err := row.Scan(&j.ID, &j.Path, &status, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	j.Status = constants.JobStatus(status)
	return &j, nil
}
