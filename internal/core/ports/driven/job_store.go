package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

// JobStore persists import jobs (PostgreSQL). The uploaded document is
// stored encrypted at rest and only surfaced through GetDocument.
type JobStore interface {
	// Save creates or updates a job, including its document payload on
	// first save.
	Save(ctx context.Context, job *domain.ImportJob) error

	// Get retrieves a job by ID, without the document payload.
	Get(ctx context.Context, id string) (*domain.ImportJob, error)

	// GetDocument retrieves and decrypts the uploaded document for a job.
	GetDocument(ctx context.Context, id string) ([]byte, error)

	// List retrieves the most recent jobs for a group, newest first.
	List(ctx context.Context, group string, limit int) ([]*domain.ImportJob, error)

	// DeleteFinishedBefore removes completed and failed jobs whose
	// finish time is before cutoff. Returns the number deleted.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
