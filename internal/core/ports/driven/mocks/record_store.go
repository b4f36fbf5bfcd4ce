package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driven"
)

// MockRecordStore is an in-memory implementation of RecordStore for testing.
// Transactions stage writes and apply them to the shared state on Commit,
// so rollback tests observe genuinely untouched data.
type MockRecordStore struct {
	mu       sync.RWMutex
	entities map[string]*domain.EntityRecord    // ref -> current
	versions map[string][]*domain.EntityVersion // ref -> history, oldest first
	elements map[string][]*domain.SetupElement  // group -> elements
	nextNum  map[string]int64                   // kind:group -> next num
	nextElem int64

	// FailBeginTx makes BeginTx return an error (infrastructure failure).
	FailBeginTx bool
	// FailCommit makes Commit return an error.
	FailCommit bool
}

// NewMockRecordStore creates a new MockRecordStore
func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{
		entities: make(map[string]*domain.EntityRecord),
		versions: make(map[string][]*domain.EntityVersion),
		elements: make(map[string][]*domain.SetupElement),
		nextNum:  make(map[string]int64),
	}
}

func refKey(ref domain.EntityIdentity) string {
	return ref.Ref().Format(false)
}

// Seed inserts an entity directly, bypassing transactions. Test setup only.
func (m *MockRecordStore) Seed(record *domain.EntityRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := refKey(record.Identity)
	m.entities[key] = record
	m.versions[key] = append(m.versions[key], &domain.EntityVersion{
		Identity:      record.Identity,
		Title:         record.Title,
		Fields:        record.Fields,
		Relationships: record.Relationships,
		CreatedBy:     record.UpdatedBy,
		CreatedAt:     record.UpdatedAt,
	})
	seq := fmt.Sprintf("%s:%s", record.Identity.Kind, record.Identity.Group)
	if m.nextNum[seq] <= record.Identity.Num {
		m.nextNum[seq] = record.Identity.Num + 1
	}
}

// SeedSetupElement inserts a setup element directly. Test setup only.
func (m *MockRecordStore) SeedSetupElement(group, name string) *domain.SetupElement {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextElem++
	elem := &domain.SetupElement{ID: m.nextElem, Group: group, Name: name, CreatedAt: time.Now()}
	m.elements[group] = append(m.elements[group], elem)
	return elem
}

func (m *MockRecordStore) BeginTx(ctx context.Context) (driven.RecordTx, error) {
	if m.FailBeginTx {
		return nil, fmt.Errorf("begin tx: connection refused")
	}
	return &mockRecordTx{store: m, staged: make(map[string]*domain.EntityRecord)}, nil
}

func (m *MockRecordStore) GetEntity(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.entities[refKey(ref)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

func (m *MockRecordStore) ListEntities(ctx context.Context, group string, kind domain.EntityKind) ([]*domain.EntityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.EntityRecord
	for _, record := range m.entities {
		if record.Identity.Group != group {
			continue
		}
		if kind != "" && record.Identity.Kind != kind {
			continue
		}
		result = append(result, record)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Identity, result[j].Identity
		if a.Kind != b.Kind {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		return a.Num < b.Num
	})
	return result, nil
}

func kindOrder(k domain.EntityKind) int {
	for i, kk := range domain.Kinds() {
		if kk == k {
			return i
		}
	}
	return len(domain.Kinds())
}

func (m *MockRecordStore) ListVersions(ctx context.Context, ref domain.EntityIdentity) ([]*domain.EntityVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history, ok := m.versions[refKey(ref)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return history, nil
}

func (m *MockRecordStore) GetVersion(ctx context.Context, id domain.EntityIdentity) (*domain.EntityVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.versions[refKey(id)] {
		if v.Identity.Version == id.Version {
			return v, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockRecordStore) ListSetupElements(ctx context.Context, group string) ([]*domain.SetupElement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.elements[group], nil
}

func (m *MockRecordStore) Ping(ctx context.Context) error {
	return nil
}

// Reset clears all data
func (m *MockRecordStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = make(map[string]*domain.EntityRecord)
	m.versions = make(map[string][]*domain.EntityVersion)
	m.elements = make(map[string][]*domain.SetupElement)
	m.nextNum = make(map[string]int64)
	m.nextElem = 0
}

// mockRecordTx stages writes and applies them on Commit.
type mockRecordTx struct {
	store    *MockRecordStore
	mu       sync.Mutex
	staged   map[string]*domain.EntityRecord
	elements []*domain.SetupElement
	numUsed  map[string]int64
	done     bool
}

func (tx *mockRecordTx) GetEntity(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error) {
	tx.mu.Lock()
	if record, ok := tx.staged[refKey(ref)]; ok {
		tx.mu.Unlock()
		return record, nil
	}
	tx.mu.Unlock()
	return tx.store.GetEntity(ctx, ref)
}

func (tx *mockRecordTx) CreateEntity(ctx context.Context, group string, entity *domain.StructuredEntity, actor string) (domain.EntityIdentity, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.numUsed == nil {
		tx.numUsed = make(map[string]int64)
	}
	seq := fmt.Sprintf("%s:%s", entity.Kind, group)

	tx.store.mu.RLock()
	next := tx.store.nextNum[seq]
	tx.store.mu.RUnlock()
	if next == 0 {
		next = 1
	}
	if tx.numUsed[seq] >= next {
		next = tx.numUsed[seq] + 1
	}
	tx.numUsed[seq] = next

	id := domain.EntityIdentity{Kind: entity.Kind, Group: group, Num: next, Version: 1}
	now := time.Now()
	tx.staged[refKey(id)] = &domain.EntityRecord{
		Identity:      id,
		Title:         entity.Title,
		Fields:        entity.Fields,
		Relationships: entity.Relationships,
		CreatedBy:     actor,
		UpdatedBy:     actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return id, nil
}

func (tx *mockRecordTx) UpdateEntity(ctx context.Context, ref domain.EntityIdentity, expectedVersion int64, entity *domain.StructuredEntity, actor string) (int64, error) {
	current, err := tx.GetEntity(ctx, ref)
	if err != nil {
		return 0, err
	}
	if current.Identity.Version != expectedVersion {
		return 0, domain.ErrVersionConflict
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	newVersion := current.Identity.Version + 1
	id := ref.Ref()
	id.Version = newVersion
	tx.staged[refKey(ref)] = &domain.EntityRecord{
		Identity:      id,
		Title:         entity.Title,
		Fields:        entity.Fields,
		Relationships: entity.Relationships,
		CreatedBy:     current.CreatedBy,
		UpdatedBy:     actor,
		CreatedAt:     current.CreatedAt,
		UpdatedAt:     time.Now(),
	}
	return newVersion, nil
}

func (tx *mockRecordTx) CreateSetupElement(ctx context.Context, group, name string) (*domain.SetupElement, error) {
	// Ids come from a sequence, so one consumed by a rolled-back
	// transaction is never reused.
	tx.store.mu.Lock()
	tx.store.nextElem++
	id := tx.store.nextElem
	tx.store.mu.Unlock()

	tx.mu.Lock()
	defer tx.mu.Unlock()
	elem := &domain.SetupElement{ID: id, Group: group, Name: name, CreatedAt: time.Now()}
	tx.elements = append(tx.elements, elem)
	return elem, nil
}

func (tx *mockRecordTx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return fmt.Errorf("transaction already closed")
	}
	tx.done = true
	if tx.store.FailCommit {
		return fmt.Errorf("commit: connection reset")
	}

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for key, record := range tx.staged {
		tx.store.entities[key] = record
		tx.store.versions[key] = append(tx.store.versions[key], &domain.EntityVersion{
			Identity:      record.Identity,
			Title:         record.Title,
			Fields:        record.Fields,
			Relationships: record.Relationships,
			CreatedBy:     record.UpdatedBy,
			CreatedAt:     record.UpdatedAt,
		})
		seq := fmt.Sprintf("%s:%s", record.Identity.Kind, record.Identity.Group)
		if tx.store.nextNum[seq] <= record.Identity.Num {
			tx.store.nextNum[seq] = record.Identity.Num + 1
		}
	}
	for _, elem := range tx.elements {
		tx.store.elements[elem.Group] = append(tx.store.elements[elem.Group], elem)
	}
	return nil
}

func (tx *mockRecordTx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.done = true
	tx.staged = make(map[string]*domain.EntityRecord)
	tx.elements = nil
	return nil
}
