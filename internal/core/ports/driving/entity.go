package driving

import (
	"context"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

// EntityService provides read access to entity records and their history
type EntityService interface {
	// Get retrieves the current version of an entity
	Get(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error)

	// List retrieves the current version of every entity in a group,
	// optionally filtered by kind (empty means all)
	List(ctx context.Context, group string, kind domain.EntityKind) ([]*domain.EntityRecord, error)

	// ListVersions retrieves the full history of an entity, oldest first
	ListVersions(ctx context.Context, ref domain.EntityIdentity) ([]*domain.EntityVersion, error)

	// GetVersion retrieves one historical version
	GetVersion(ctx context.Context, id domain.EntityIdentity) (*domain.EntityVersion, error)

	// ListSetupElements retrieves the setup elements of a group
	ListSetupElements(ctx context.Context, group string) ([]*domain.SetupElement, error)
}
