package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driven"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driving"
)

// Ensure entityService implements EntityService
var _ driving.EntityService = (*entityService)(nil)

// entityService implements the EntityService interface
type entityService struct {
	recordStore driven.RecordStore
	registry    *domain.GroupRegistry
}

// NewEntityService creates a new EntityService
func NewEntityService(recordStore driven.RecordStore, registry *domain.GroupRegistry) driving.EntityService {
	return &entityService{recordStore: recordStore, registry: registry}
}

// Get retrieves the current version of an entity
func (s *entityService) Get(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error) {
	if err := s.checkRef(ref); err != nil {
		return nil, err
	}
	return s.recordStore.GetEntity(ctx, ref)
}

// List retrieves the current version of every entity in a group
func (s *entityService) List(ctx context.Context, group string, kind domain.EntityKind) ([]*domain.EntityRecord, error) {
	if !s.registry.Valid(group) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownGroup, group)
	}
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, kind)
	}
	return s.recordStore.ListEntities(ctx, group, kind)
}

// ListVersions retrieves the full history of an entity
func (s *entityService) ListVersions(ctx context.Context, ref domain.EntityIdentity) ([]*domain.EntityVersion, error) {
	if err := s.checkRef(ref); err != nil {
		return nil, err
	}
	return s.recordStore.ListVersions(ctx, ref)
}

// GetVersion retrieves one historical version
func (s *entityService) GetVersion(ctx context.Context, id domain.EntityIdentity) (*domain.EntityVersion, error) {
	if err := s.checkRef(id); err != nil {
		return nil, err
	}
	if !id.HasVersion() {
		return nil, fmt.Errorf("%w: version required", domain.ErrInvalidInput)
	}
	return s.recordStore.GetVersion(ctx, id)
}

// ListSetupElements retrieves the setup elements of a group
func (s *entityService) ListSetupElements(ctx context.Context, group string) ([]*domain.SetupElement, error) {
	if !s.registry.Valid(group) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownGroup, group)
	}
	return s.recordStore.ListSetupElements(ctx, group)
}

func (s *entityService) checkRef(ref domain.EntityIdentity) error {
	if !ref.Kind.Valid() || ref.Num <= 0 {
		return fmt.Errorf("%w: malformed entity reference", domain.ErrInvalidInput)
	}
	if !s.registry.Valid(ref.Group) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownGroup, ref.Group)
	}
	return nil
}
