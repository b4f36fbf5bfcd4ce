package postgres

import (
	"context"
	"database/sql"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SettingsStore = (*SettingsStore)(nil)

// SettingsStore implements driven.SettingsStore using PostgreSQL. The
// import_settings table holds a single row; reads before the first save
// return the defaults.
type SettingsStore struct {
	db *DB
}

// NewSettingsStore creates a new SettingsStore
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// GetImportSettings retrieves the import settings
func (s *SettingsStore) GetImportSettings(ctx context.Context) (*domain.ImportSettings, error) {
	query := `
		SELECT noop_updates, unknown_setup_elements, updated_at, updated_by
		FROM import_settings
		WHERE id = 1
	`

	var settings domain.ImportSettings
	var noopUpdates, unknownSetupElements string

	err := s.db.QueryRowContext(ctx, query).Scan(
		&noopUpdates,
		&unknownSetupElements,
		&settings.UpdatedAt,
		&settings.UpdatedBy,
	)
	if err == sql.ErrNoRows {
		return domain.DefaultImportSettings(), nil
	}
	if err != nil {
		return nil, err
	}

	settings.NoopUpdates = domain.NoopUpdatePolicy(noopUpdates)
	settings.UnknownSetupElements = domain.SetupElementPolicy(unknownSetupElements)
	return &settings, nil
}

// SaveImportSettings persists import settings
func (s *SettingsStore) SaveImportSettings(ctx context.Context, settings *domain.ImportSettings) error {
	query := `
		INSERT INTO import_settings (id, noop_updates, unknown_setup_elements, updated_at, updated_by)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			noop_updates = EXCLUDED.noop_updates,
			unknown_setup_elements = EXCLUDED.unknown_setup_elements,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`

	_, err := s.db.ExecContext(ctx, query,
		string(settings.NoopUpdates),
		string(settings.UnknownSetupElements),
		settings.UpdatedAt,
		settings.UpdatedBy,
	)
	return err
}
