package driven

import (
	"context"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

// RecordStore handles entity record persistence (PostgreSQL).
// Reads outside a transaction see committed state only; all import writes
// go through a RecordTx so that a batch commits or rolls back as a unit.
type RecordStore interface {
	// BeginTx opens a write transaction for one import.
	BeginTx(ctx context.Context) (RecordTx, error)

	// GetEntity retrieves the current version of an entity.
	// The identity's Version field is ignored.
	GetEntity(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error)

	// ListEntities retrieves the current version of every entity in a group.
	// An empty kind means all kinds; results are ordered by kind then num.
	ListEntities(ctx context.Context, group string, kind domain.EntityKind) ([]*domain.EntityRecord, error)

	// ListVersions retrieves the full version history of an entity,
	// oldest first. The identity's Version field is ignored.
	ListVersions(ctx context.Context, ref domain.EntityIdentity) ([]*domain.EntityVersion, error)

	// GetVersion retrieves one historical version. The identity's Version
	// field selects which.
	GetVersion(ctx context.Context, id domain.EntityIdentity) (*domain.EntityVersion, error)

	// ListSetupElements retrieves all setup elements for a group.
	ListSetupElements(ctx context.Context, group string) ([]*domain.SetupElement, error)

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error
}

// RecordTx is one open import transaction. Writes are invisible to other
// readers until Commit; Rollback discards everything. Both are terminal.
type RecordTx interface {
	// GetEntity retrieves the current version as seen inside this
	// transaction, including rows written earlier in the same transaction.
	GetEntity(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error)

	// CreateEntity inserts a new entity at version 1, allocating the next
	// num within the group and kind. The allocated identity is returned.
	CreateEntity(ctx context.Context, group string, entity *domain.StructuredEntity, actor string) (domain.EntityIdentity, error)

	// UpdateEntity writes a new version of an existing entity. The write
	// succeeds only when the stored current version equals expectedVersion;
	// otherwise ErrVersionConflict is returned and nothing changes. The new
	// version number is returned.
	UpdateEntity(ctx context.Context, ref domain.EntityIdentity, expectedVersion int64, entity *domain.StructuredEntity, actor string) (int64, error)

	// CreateSetupElement inserts a setup element into the group.
	CreateSetupElement(ctx context.Context, group, name string) (*domain.SetupElement, error)

	// Commit makes all writes visible.
	Commit() error

	// Rollback discards all writes. Safe to call after Commit.
	Rollback() error
}
