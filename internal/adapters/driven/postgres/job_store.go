package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.JobStore = (*JobStore)(nil)

// JobStore implements driven.JobStore using PostgreSQL. When an encryptor
// is configured, document payloads are encrypted before they reach the
// database; Get never returns the payload, only GetDocument does.
type JobStore struct {
	db        *DB
	encryptor *DocumentEncryptor // optional, nil stores plaintext
}

// NewJobStore creates a new JobStore. encryptor may be nil.
func NewJobStore(db *DB, encryptor *DocumentEncryptor) *JobStore {
	return &JobStore{db: db, encryptor: encryptor}
}

// Save creates or updates a job. The document payload is written on the
// initial insert only; updates never touch it.
func (s *JobStore) Save(ctx context.Context, job *domain.ImportJob) error {
	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	var result []byte
	if job.Result != nil {
		if result, err = json.Marshal(job.Result); err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}

	document := job.Document
	if document != nil && s.encryptor != nil {
		if document, err = s.encryptor.Encrypt(document); err != nil {
			return fmt.Errorf("encrypt document: %w", err)
		}
	}

	query := `
		INSERT INTO import_jobs (id, group_token, actor, options, status, document, result, error, created_at, updated_at, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID, job.Group, job.Actor, options, string(job.Status), document,
		nullBytes(result), job.Error, job.CreatedAt, job.UpdatedAt,
		NullTime(job.StartedAt), NullTime(job.EndedAt))
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID, without the document payload
func (s *JobStore) Get(ctx context.Context, id string) (*domain.ImportJob, error) {
	query := `
		SELECT id, group_token, actor, options, status, result, error, created_at, updated_at, started_at, ended_at
		FROM import_jobs WHERE id = $1
	`
	return scanJob(s.db.QueryRowContext(ctx, query, id))
}

// GetDocument retrieves and decrypts the uploaded document for a job
func (s *JobStore) GetDocument(ctx context.Context, id string) ([]byte, error) {
	var document []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM import_jobs WHERE id = $1`, id).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, domain.ErrNotFound
	}
	if s.encryptor != nil {
		if document, err = s.encryptor.Decrypt(document); err != nil {
			return nil, fmt.Errorf("decrypt document: %w", err)
		}
	}
	return document, nil
}

// List retrieves the most recent jobs for a group, newest first
func (s *JobStore) List(ctx context.Context, group string, limit int) ([]*domain.ImportJob, error) {
	query := `
		SELECT id, group_token, actor, options, status, result, error, created_at, updated_at, started_at, ended_at
		FROM import_jobs
		WHERE group_token = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, group, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.ImportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteFinishedBefore removes terminal jobs that ended before cutoff
func (s *JobStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM import_jobs
		WHERE status IN ($1, $2) AND ended_at < $3
	`, string(domain.JobStatusCompleted), string(domain.JobStatusFailed), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

func scanJob(row scanner) (*domain.ImportJob, error) {
	var job domain.ImportJob
	var status string
	var options, result []byte
	var startedAt, endedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.Group,
		&job.Actor,
		&options,
		&status,
		&result,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&endedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(status)
	if err := json.Unmarshal(options, &job.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	if result != nil {
		job.Result = &domain.ImportResult{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	job.StartedAt = TimePtr(startedAt)
	job.EndedAt = TimePtr(endedAt)
	return &job, nil
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
