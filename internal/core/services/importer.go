package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driven"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driving"
	"github.com/custodia-labs/opreq-core/internal/docext"
	"github.com/custodia-labs/opreq-core/internal/mapping"
)

// Ensure importService implements ImportService
var _ driving.ImportService = (*importService)(nil)

// importService runs the import pipeline: extract, map, resolve, then a
// single transaction that either applies the whole batch or nothing.
type importService struct {
	recordStore   driven.RecordStore
	jobStore      driven.JobStore
	taskQueue     driven.TaskQueue
	settingsStore driven.SettingsStore
	registry      *domain.GroupRegistry
	logger        *slog.Logger
}

// ImportServiceConfig holds dependencies for the import service.
type ImportServiceConfig struct {
	RecordStore   driven.RecordStore
	JobStore      driven.JobStore
	TaskQueue     driven.TaskQueue
	SettingsStore driven.SettingsStore
	Registry      *domain.GroupRegistry
	Logger        *slog.Logger
}

// NewImportService creates a new ImportService
func NewImportService(cfg ImportServiceConfig) driving.ImportService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &importService{
		recordStore:   cfg.RecordStore,
		jobStore:      cfg.JobStore,
		taskQueue:     cfg.TaskQueue,
		settingsStore: cfg.SettingsStore,
		registry:      cfg.Registry,
		logger:        logger,
	}
}

// Import runs the full pipeline synchronously
func (s *importService) Import(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportResult, error) {
	if !s.registry.Valid(group) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownGroup, group)
	}
	if len(document) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrUnreadableDocument)
	}

	settings, err := s.settingsStore.GetImportSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load import settings: %w", err)
	}

	tree, err := docext.Extract(document)
	if err != nil {
		// Extraction failure is fatal: no entity-level reasoning happens.
		return nil, err
	}

	resolver, err := mapping.NewResolver(ctx, s.recordStore, group, settings.UnknownSetupElements)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImportFailed, err)
	}
	batch := mapping.MapTree(tree, group, resolver)

	return s.apply(ctx, batch, actor, opts, settings)
}

// apply is the transactional importer. Every entity is attempted even
// after earlier ones fail, so one pass reports the complete set of
// problems; only after the pass does a single commit-or-rollback decision
// fall.
func (s *importService) apply(ctx context.Context, batch *domain.ImportBatch, actor string, opts domain.ImportOptions, settings *domain.ImportSettings) (*domain.ImportResult, error) {
	start := time.Now()
	result := &domain.ImportResult{
		Group:   batch.Group,
		Created: []domain.EntityIdentity{},
		Updated: []domain.UpdatedEntity{},
		Errors:  []domain.ValidationIssue{},
	}
	issues := append([]domain.ValidationIssue{}, batch.Issues...)

	tx, err := s.recordStore.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", domain.ErrImportFailed, err)
	}
	defer tx.Rollback()

	allocated := make(map[int]int64)       // batch index -> created num
	createdElems := make(map[string]int64) // lowercased name -> created setup element id

	for i, entity := range batch.Entities {
		if err := ctx.Err(); err != nil {
			// Cancellation must roll back before returning; the deferred
			// rollback guarantees no partial state becomes visible.
			return nil, err
		}
		if batch.Blocked[i] {
			continue
		}

		issues = append(issues, s.materializeRefs(ctx, tx, batch.Group, entity, allocated, createdElems)...)

		if !entity.IsUpdate() {
			id, err := tx.CreateEntity(ctx, batch.Group, entity, actor)
			if err != nil {
				return nil, fmt.Errorf("%w: create %q: %v", domain.ErrImportFailed, entity.Title, err)
			}
			allocated[i] = id.Num
			result.Created = append(result.Created, id)
			continue
		}

		id := *entity.Identity
		current, err := tx.GetEntity(ctx, id.Ref())
		if errors.Is(err, domain.ErrNotFound) {
			issues = append(issues, domain.ValidationIssue{
				Severity:  domain.SeverityError,
				Kind:      domain.IssueNotFound,
				EntityRef: id.Format(true),
				Message:   fmt.Sprintf("entity %s does not exist", id.Format(false)),
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrImportFailed, id.Format(false), err)
		}

		if current.Identity.Version != id.Version && !opts.Force {
			issues = append(issues, domain.ValidationIssue{
				Severity:  domain.SeverityError,
				Kind:      domain.IssueVersionConflict,
				EntityRef: id.Format(true),
				Message: fmt.Sprintf("document asserts version %d but stored version is %d",
					id.Version, current.Identity.Version),
			})
			continue
		}

		if settings.NoopUpdates == domain.NoopUpdateSkip && current.ContentEquals(entity) {
			result.Skipped = append(result.Skipped, id.Ref())
			continue
		}

		// Under force the update applies against whatever is stored now.
		newVersion, err := tx.UpdateEntity(ctx, id.Ref(), current.Identity.Version, entity, actor)
		if err != nil {
			return nil, fmt.Errorf("%w: update %s: %v", domain.ErrImportFailed, id.Format(false), err)
		}
		result.Updated = append(result.Updated, domain.UpdatedEntity{Identity: id, NewVersion: newVersion})
	}

	for _, issue := range issues {
		if issue.Blocks() {
			result.Errors = append(result.Errors, issue)
		} else {
			result.Warnings = append(result.Warnings, issue)
		}
	}

	switch {
	case len(result.Errors) > 0:
		// Rollback leaves nothing applied; the result must not claim
		// otherwise.
		result.Created = []domain.EntityIdentity{}
		result.Updated = []domain.UpdatedEntity{}
		result.Skipped = nil
	case opts.DryRun:
		// Keep the would-have-happened lists, roll back via the defer.
	default:
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("%w: commit: %v", domain.ErrImportFailed, err)
		}
		result.Committed = true
	}

	result.Duration = time.Since(start).Seconds()
	s.logger.Info("import finished",
		"group", batch.Group,
		"committed", result.Committed,
		"created", len(result.Created),
		"updated", len(result.Updated),
		"skipped", len(result.Skipped),
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
		"dry_run", opts.DryRun,
		"force", opts.Force,
		"duration_seconds", result.Duration,
	)
	return result, nil
}

// materializeRefs substitutes pending references before the entity is
// written: entity references to creations earlier in the document get the
// freshly allocated num, and pending setup elements are created inside the
// transaction (once per name).
func (s *importService) materializeRefs(ctx context.Context, tx driven.RecordTx, group string, entity *domain.StructuredEntity, allocated map[int]int64, createdElems map[string]int64) []domain.ValidationIssue {
	var issues []domain.ValidationIssue

	for relation, refs := range entity.Relationships {
		for j := range refs {
			if !refs[j].Pending {
				continue
			}
			num, ok := allocated[refs[j].BatchIndex]
			if !ok {
				issues = append(issues, domain.ValidationIssue{
					Severity:  domain.SeverityError,
					Kind:      domain.IssueUnresolvedRef,
					EntityRef: entity.RefText(),
					Field:     relation,
					Message:   fmt.Sprintf("referenced entity %q was not created", refs[j].Title),
				})
				continue
			}
			refs[j].Num = num
			refs[j].Pending = false
		}
	}

	for name, value := range entity.Fields {
		if value.Kind != domain.FieldValueRefs {
			continue
		}
		for j := range value.Refs {
			if !value.Refs[j].Pending {
				continue
			}
			key := strings.ToLower(value.Refs[j].Name)
			id, ok := createdElems[key]
			if !ok {
				elem, err := tx.CreateSetupElement(ctx, group, value.Refs[j].Name)
				if err != nil {
					issues = append(issues, domain.ValidationIssue{
						Severity:  domain.SeverityError,
						Kind:      domain.IssueUnknownSetupElem,
						EntityRef: entity.RefText(),
						Field:     name,
						Message:   fmt.Sprintf("create setup element %q: %v", value.Refs[j].Name, err),
					})
					continue
				}
				id = elem.ID
				createdElems[key] = id
			}
			value.Refs[j].ID = id
			value.Refs[j].Pending = false
		}
		entity.Fields[name] = value
	}

	return issues
}

// ImportAsync stores the document and queues it for a worker
func (s *importService) ImportAsync(ctx context.Context, group string, document []byte, actor string, opts domain.ImportOptions) (*domain.ImportJob, error) {
	if !s.registry.Valid(group) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownGroup, group)
	}
	if len(document) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrUnreadableDocument)
	}

	now := time.Now()
	job := &domain.ImportJob{
		ID:        uuid.NewString(),
		Group:     group,
		Actor:     actor,
		Options:   opts,
		Status:    domain.JobStatusQueued,
		Document:  document,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobStore.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save import job: %w", err)
	}

	task := domain.NewImportDocumentTask(group, job.ID)
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		job.MarkFailed(fmt.Sprintf("enqueue: %v", err))
		_ = s.jobStore.Save(ctx, job)
		return nil, fmt.Errorf("enqueue import task: %w", err)
	}

	s.logger.Info("import job queued", "job_id", job.ID, "group", group, "task_id", task.ID)
	return job, nil
}

// GetJob retrieves an import job by ID
func (s *importService) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.jobStore.Get(ctx, id)
}

// ListJobs retrieves recent import jobs for a group
func (s *importService) ListJobs(ctx context.Context, group string, limit int) ([]*domain.ImportJob, error) {
	if !s.registry.Valid(group) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownGroup, group)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.jobStore.List(ctx, group, limit)
}
