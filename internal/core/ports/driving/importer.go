package driving

import (
	"context"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

// ImportService runs document imports against a drafting group
type ImportService interface {
	// Import runs the full pipeline synchronously: extract, map, resolve,
	// apply. Extraction failures return ErrUnreadableDocument; validation
	// problems are reported inside the result, not as an error.
	Import(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportResult, error)

	// ImportAsync stores the document as a job and enqueues it for a
	// worker. The returned job is in the queued state.
	ImportAsync(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportJob, error)

	// GetJob retrieves an import job by ID
	GetJob(ctx context.Context, id string) (*domain.ImportJob, error)

	// ListJobs retrieves recent import jobs for a group, newest first
	ListJobs(ctx context.Context, group string, limit int) ([]*domain.ImportJob, error)
}
