package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RecordStore = (*RecordStore)(nil)
var _ driven.RecordTx = (*recordTx)(nil)

// RecordStore implements driven.RecordStore using PostgreSQL. Entity
// fields and relationships are stored as JSONB; number allocation goes
// through the entity_sequences table so concurrent imports cannot hand
// out the same num.
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a new RecordStore
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

const entityColumns = `kind, group_token, num, version, title, fields, relationships, created_by, updated_by, created_at, updated_at`

// kindOrder orders rows by the canonical document order of kinds, not
// alphabetically.
const kindOrder = `CASE kind WHEN 'on' THEN 0 WHEN 'or' THEN 1 ELSE 2 END`

// BeginTx opens an import transaction
func (s *RecordStore) BeginTx(ctx context.Context) (driven.RecordTx, error) {
	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &recordTx{tx: tx}, nil
}

// GetEntity retrieves the current version of an entity
func (s *RecordStore) GetEntity(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE kind = $1 AND group_token = $2 AND num = $3`
	return scanEntity(s.db.QueryRowContext(ctx, query, string(ref.Kind), ref.Group, ref.Num))
}

// ListEntities retrieves a group's entities ordered by kind then num.
// An empty kind selects all kinds.
func (s *RecordStore) ListEntities(ctx context.Context, group string, kind domain.EntityKind) ([]*domain.EntityRecord, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE group_token = $1`
	args := []any{group}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, string(kind))
	}
	query += ` ORDER BY ` + kindOrder + `, num`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.EntityRecord
	for rows.Next() {
		record, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListVersions retrieves an entity's version history, oldest first
func (s *RecordStore) ListVersions(ctx context.Context, ref domain.EntityIdentity) ([]*domain.EntityVersion, error) {
	query := `
		SELECT kind, group_token, num, version, title, fields, relationships, created_by, created_at
		FROM entity_versions
		WHERE kind = $1 AND group_token = $2 AND num = $3
		ORDER BY version
	`
	rows, err := s.db.QueryContext(ctx, query, string(ref.Kind), ref.Group, ref.Num)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*domain.EntityVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, version)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, domain.ErrNotFound
	}
	return history, nil
}

// GetVersion retrieves one specific historical version
func (s *RecordStore) GetVersion(ctx context.Context, id domain.EntityIdentity) (*domain.EntityVersion, error) {
	query := `
		SELECT kind, group_token, num, version, title, fields, relationships, created_by, created_at
		FROM entity_versions
		WHERE kind = $1 AND group_token = $2 AND num = $3 AND version = $4
	`
	row := s.db.QueryRowContext(ctx, query, string(id.Kind), id.Group, id.Num, id.Version)
	version, err := scanVersion(row)
	if err != nil {
		return nil, err
	}
	return version, nil
}

// ListSetupElements retrieves a group's setup elements
func (s *RecordStore) ListSetupElements(ctx context.Context, group string) ([]*domain.SetupElement, error) {
	query := `SELECT id, group_token, name, created_at FROM setup_elements WHERE group_token = $1 ORDER BY LOWER(name)`
	rows, err := s.db.QueryContext(ctx, query, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elements []*domain.SetupElement
	for rows.Next() {
		var elem domain.SetupElement
		if err := rows.Scan(&elem.ID, &elem.Group, &elem.Name, &elem.CreatedAt); err != nil {
			return nil, err
		}
		elements = append(elements, &elem)
	}
	return elements, rows.Err()
}

// Ping checks database connectivity
func (s *RecordStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// recordTx wraps a database transaction. Reads within the transaction see
// its own uncommitted writes, which the importer relies on for duplicate
// detection and forward-reference checks.
type recordTx struct {
	tx *sql.Tx
}

func (t *recordTx) GetEntity(ctx context.Context, ref domain.EntityIdentity) (*domain.EntityRecord, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE kind = $1 AND group_token = $2 AND num = $3`
	return scanEntity(t.tx.QueryRowContext(ctx, query, string(ref.Kind), ref.Group, ref.Num))
}

// CreateEntity allocates the next num in the (kind, group) sequence and
// inserts the entity at version 1.
func (t *recordTx) CreateEntity(ctx context.Context, group string, entity *domain.StructuredEntity, actor string) (domain.EntityIdentity, error) {
	var num int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO entity_sequences (kind, group_token, next_num)
		VALUES ($1, $2, 2)
		ON CONFLICT (kind, group_token)
			DO UPDATE SET next_num = entity_sequences.next_num + 1
		RETURNING next_num - 1
	`, string(entity.Kind), group).Scan(&num)
	if err != nil {
		return domain.EntityIdentity{}, fmt.Errorf("allocate num: %w", err)
	}

	id := domain.EntityIdentity{Kind: entity.Kind, Group: group, Num: num, Version: 1}
	fields, relationships, err := marshalContent(entity.Fields, entity.Relationships)
	if err != nil {
		return domain.EntityIdentity{}, err
	}

	now := time.Now()
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO entities (kind, group_token, num, version, title, fields, relationships, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5, $6, $7, $7, $8, $8)
	`, string(id.Kind), id.Group, id.Num, entity.Title, fields, relationships, actor, now)
	if err != nil {
		return domain.EntityIdentity{}, fmt.Errorf("insert entity: %w", err)
	}

	if err := t.insertVersion(ctx, id, entity.Title, fields, relationships, actor, now); err != nil {
		return domain.EntityIdentity{}, err
	}
	return id, nil
}

// UpdateEntity applies a new version if the stored version matches
// expectedVersion, returning the new version number.
func (t *recordTx) UpdateEntity(ctx context.Context, ref domain.EntityIdentity, expectedVersion int64, entity *domain.StructuredEntity, actor string) (int64, error) {
	var current int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT version FROM entities
		WHERE kind = $1 AND group_token = $2 AND num = $3
		FOR UPDATE
	`, string(ref.Kind), ref.Group, ref.Num).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if current != expectedVersion {
		return 0, domain.ErrVersionConflict
	}

	fields, relationships, err := marshalContent(entity.Fields, entity.Relationships)
	if err != nil {
		return 0, err
	}

	newVersion := current + 1
	now := time.Now()
	_, err = t.tx.ExecContext(ctx, `
		UPDATE entities
		SET version = $4, title = $5, fields = $6, relationships = $7, updated_by = $8, updated_at = $9
		WHERE kind = $1 AND group_token = $2 AND num = $3
	`, string(ref.Kind), ref.Group, ref.Num, newVersion, entity.Title, fields, relationships, actor, now)
	if err != nil {
		return 0, fmt.Errorf("update entity: %w", err)
	}

	id := ref.Ref()
	id.Version = newVersion
	if err := t.insertVersion(ctx, id, entity.Title, fields, relationships, actor, now); err != nil {
		return 0, err
	}
	return newVersion, nil
}

// CreateSetupElement inserts a setup element, reusing an existing row when
// the name already exists case-insensitively.
func (t *recordTx) CreateSetupElement(ctx context.Context, group, name string) (*domain.SetupElement, error) {
	var elem domain.SetupElement
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, group_token, name, created_at FROM setup_elements
		WHERE group_token = $1 AND LOWER(name) = LOWER($2)
	`, group, name).Scan(&elem.ID, &elem.Group, &elem.Name, &elem.CreatedAt)
	if err == nil {
		return &elem, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	err = t.tx.QueryRowContext(ctx, `
		INSERT INTO setup_elements (group_token, name) VALUES ($1, $2)
		RETURNING id, group_token, name, created_at
	`, group, name).Scan(&elem.ID, &elem.Group, &elem.Name, &elem.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert setup element: %w", err)
	}
	return &elem, nil
}

func (t *recordTx) Commit() error {
	return t.tx.Commit()
}

// Rollback discards the transaction. Safe to call after Commit.
func (t *recordTx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func (t *recordTx) insertVersion(ctx context.Context, id domain.EntityIdentity, title string, fields, relationships []byte, actor string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO entity_versions (kind, group_token, num, version, title, fields, relationships, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, string(id.Kind), id.Group, id.Num, id.Version, title, fields, relationships, actor, at)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*domain.EntityRecord, error) {
	var record domain.EntityRecord
	var kind string
	var fields, relationships []byte

	err := row.Scan(
		&kind,
		&record.Identity.Group,
		&record.Identity.Num,
		&record.Identity.Version,
		&record.Title,
		&fields,
		&relationships,
		&record.CreatedBy,
		&record.UpdatedBy,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	record.Identity.Kind = domain.EntityKind(kind)
	if record.Fields, record.Relationships, err = unmarshalContent(fields, relationships); err != nil {
		return nil, err
	}
	return &record, nil
}

func scanVersion(row scanner) (*domain.EntityVersion, error) {
	var version domain.EntityVersion
	var kind string
	var fields, relationships []byte

	err := row.Scan(
		&kind,
		&version.Identity.Group,
		&version.Identity.Num,
		&version.Identity.Version,
		&version.Title,
		&fields,
		&relationships,
		&version.CreatedBy,
		&version.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	version.Identity.Kind = domain.EntityKind(kind)
	if version.Fields, version.Relationships, err = unmarshalContent(fields, relationships); err != nil {
		return nil, err
	}
	return &version, nil
}

func marshalContent(fields map[string]domain.FieldValue, relationships map[string][]domain.EntityReference) ([]byte, []byte, error) {
	f, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal fields: %w", err)
	}
	r, err := json.Marshal(relationships)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal relationships: %w", err)
	}
	return f, r, nil
}

func unmarshalContent(fields, relationships []byte) (map[string]domain.FieldValue, map[string][]domain.EntityReference, error) {
	var f map[string]domain.FieldValue
	if err := json.Unmarshal(fields, &f); err != nil {
		return nil, nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	var r map[string][]domain.EntityReference
	if err := json.Unmarshal(relationships, &r); err != nil {
		return nil, nil, fmt.Errorf("unmarshal relationships: %w", err)
	}
	return f, r, nil
}
