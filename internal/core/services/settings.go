package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driven"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driving"
)

// Ensure settingsService implements SettingsService
var _ driving.SettingsService = (*settingsService)(nil)

// settingsService implements the SettingsService interface
type settingsService struct {
	store  driven.SettingsStore
	logger *slog.Logger
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(store driven.SettingsStore, logger *slog.Logger) driving.SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &settingsService{store: store, logger: logger}
}

// Get retrieves the current import settings
func (s *settingsService) Get(ctx context.Context) (*domain.ImportSettings, error) {
	return s.store.GetImportSettings(ctx)
}

// Update updates import settings
func (s *settingsService) Update(ctx context.Context, updaterID string, req driving.UpdateImportSettingsRequest) (*domain.ImportSettings, error) {
	settings, err := s.store.GetImportSettings(ctx)
	if err != nil {
		return nil, err
	}

	if req.NoopUpdates != nil {
		settings.NoopUpdates = *req.NoopUpdates
	}
	if req.UnknownSetupElements != nil {
		settings.UnknownSetupElements = *req.UnknownSetupElements
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	settings.UpdatedAt = time.Now()
	settings.UpdatedBy = updaterID
	if err := s.store.SaveImportSettings(ctx, settings); err != nil {
		return nil, err
	}

	s.logger.Info("import settings updated",
		"updater", updaterID,
		"noop_updates", settings.NoopUpdates,
		"unknown_setup_elements", settings.UnknownSetupElements,
	)
	return settings, nil
}
