package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driven"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driving"
	"github.com/custodia-labs/opreq-core/internal/docgen"
	"github.com/custodia-labs/opreq-core/internal/mapping"
)

// Ensure exportService implements ExportService
var _ driving.ExportService = (*exportService)(nil)

// exportService renders a group's entities as a document in the layout
// the importer parses back.
type exportService struct {
	recordStore driven.RecordStore
	registry    *domain.GroupRegistry
	logger      *slog.Logger
}

// NewExportService creates a new ExportService
func NewExportService(recordStore driven.RecordStore, registry *domain.GroupRegistry, logger *slog.Logger) driving.ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &exportService{recordStore: recordStore, registry: registry, logger: logger}
}

// Export produces a document containing every entity in the group
func (s *exportService) Export(ctx context.Context, group string) ([]byte, error) {
	if !s.registry.Valid(group) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownGroup, group)
	}

	tree := &domain.DocumentTree{}
	count := 0
	for _, kind := range domain.Kinds() {
		records, err := s.recordStore.ListEntities(ctx, group, kind)
		if err != nil {
			return nil, fmt.Errorf("list %s entities: %w", kind, err)
		}
		section := mapping.KindSection(kind, group)
		for _, record := range records {
			section.Subsections = append(section.Subsections, mapping.EntitySection(record))
		}
		tree.Sections = append(tree.Sections, section)
		count += len(records)
	}

	document, err := docgen.Generate(tree)
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}

	s.logger.Info("export finished", "group", group, "entities", count, "bytes", len(document))
	return document, nil
}
