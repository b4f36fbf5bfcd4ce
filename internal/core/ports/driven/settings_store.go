package driven

import (
	"context"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

// SettingsStore persists import policy settings
type SettingsStore interface {
	// GetImportSettings retrieves the import settings, or defaults when
	// none have been saved yet
	GetImportSettings(ctx context.Context) (*domain.ImportSettings, error)

	// SaveImportSettings persists import settings
	SaveImportSettings(ctx context.Context, settings *domain.ImportSettings) error
}
