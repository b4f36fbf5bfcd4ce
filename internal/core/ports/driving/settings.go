package driving

import (
	"context"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

// UpdateImportSettingsRequest represents a request to update import policies
type UpdateImportSettingsRequest struct {
	NoopUpdates          *domain.NoopUpdatePolicy   `json:"noop_updates,omitempty"`
	UnknownSetupElements *domain.SetupElementPolicy `json:"unknown_setup_elements,omitempty"`
}

// SettingsService manages import policy settings (admin only)
type SettingsService interface {
	// Get retrieves the current import settings
	Get(ctx context.Context) (*domain.ImportSettings, error)

	// Update updates import settings (admin only)
	Update(ctx context.Context, updaterID string, req UpdateImportSettingsRequest) (*domain.ImportSettings, error)
}
