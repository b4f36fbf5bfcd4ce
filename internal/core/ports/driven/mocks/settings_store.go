package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

// MockSettingsStore is a mock implementation of SettingsStore for testing
type MockSettingsStore struct {
	mu       sync.RWMutex
	settings *domain.ImportSettings
}

// NewMockSettingsStore creates a new MockSettingsStore
func NewMockSettingsStore() *MockSettingsStore {
	return &MockSettingsStore{}
}

func (m *MockSettingsStore) GetImportSettings(ctx context.Context) (*domain.ImportSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return domain.DefaultImportSettings(), nil
	}
	return m.settings, nil
}

func (m *MockSettingsStore) SaveImportSettings(ctx context.Context, settings *domain.ImportSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
	return nil
}

// Reset clears all data
func (m *MockSettingsStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = nil
}
