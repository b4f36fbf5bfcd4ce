package domain

import "time"

// Severity ranks a validation issue. Blocking invalidates the entity it is
// attached to; Error prevents the batch from committing; Warning is
// advisory only and never blocks.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
)

// IssueKind classifies validation issues for callers that branch on them.
type IssueKind string

const (
	IssueExtraction       IssueKind = "extraction_warning"
	IssueNoBoundaries     IssueKind = "no_entity_boundaries"
	IssueBadIdentity      IssueKind = "bad_identity_line"
	IssueMissingField     IssueKind = "missing_required_field"
	IssueUnknownLabel     IssueKind = "unknown_field_label"
	IssueUnresolvedRef    IssueKind = "unresolved_reference"
	IssueForwardRef       IssueKind = "forward_reference"
	IssueLinkMismatch     IssueKind = "link_target_mismatch"
	IssueNotFound         IssueKind = "entity_not_found"
	IssueVersionConflict  IssueKind = "version_conflict"
	IssueKindMismatch     IssueKind = "kind_mismatch"
	IssueDuplicateEntity  IssueKind = "duplicate_entity"
	IssueUnknownSetupElem IssueKind = "unknown_setup_element"
)

// ValidationIssue is one accumulated problem. Issues are collected, never
// thrown: one entity's failure must not mask problems in the others.
type ValidationIssue struct {
	Severity  Severity  `json:"severity"`
	Kind      IssueKind `json:"kind"`
	EntityRef string    `json:"entity_ref,omitempty"` // identity or title of the entity concerned
	Field     string    `json:"field,omitempty"`
	Message   string    `json:"message"`
}

// Blocks reports whether the issue prevents the batch from committing.
func (i ValidationIssue) Blocks() bool {
	return i.Severity == SeverityBlocking || i.Severity == SeverityError
}

// ImportBatch is the mapper's output and the importer's input. It is built
// fresh per import call and holds no store handles. Blocked tracks the
// indices of entities invalidated by a blocking issue; the importer skips
// them but still attempts every other entity.
type ImportBatch struct {
	Group    string              `json:"group"`
	Entities []*StructuredEntity `json:"entities"`
	Issues   []ValidationIssue   `json:"issues,omitempty"`
	Blocked  map[int]bool        `json:"blocked,omitempty"`
}

// NewImportBatch builds an empty batch for a group.
func NewImportBatch(group string) *ImportBatch {
	return &ImportBatch{Group: group, Blocked: make(map[int]bool)}
}

// AddIssue appends an issue.
func (b *ImportBatch) AddIssue(issue ValidationIssue) {
	b.Issues = append(b.Issues, issue)
}

// BlockEntity marks the entity at index as invalidated and records why.
func (b *ImportBatch) BlockEntity(index int, issue ValidationIssue) {
	issue.Severity = SeverityBlocking
	b.Issues = append(b.Issues, issue)
	b.Blocked[index] = true
}

// HasBlockingIssues reports whether any issue would prevent a commit.
func (b *ImportBatch) HasBlockingIssues() bool {
	for _, i := range b.Issues {
		if i.Blocks() {
			return true
		}
	}
	return false
}

// ImportOptions controls one import invocation.
type ImportOptions struct {
	// Force applies updates even when the asserted version does not match
	// the stored one. It does not override any other kind of error.
	Force bool `json:"force"`
	// DryRun runs the whole pass and rolls back unconditionally, reporting
	// what would have happened.
	DryRun bool `json:"dry_run"`
}

// UpdatedEntity is one applied update in an ImportResult.
type UpdatedEntity struct {
	Identity   EntityIdentity `json:"identity"` // version as asserted by the document
	NewVersion int64          `json:"new_version"`
}

// ImportResult summarizes one import attempt. After a rollback Created and
// Updated are empty regardless of what was tentatively applied; the result
// is never partially populated across a failed transaction.
type ImportResult struct {
	Group     string            `json:"group"`
	Committed bool              `json:"committed"`
	Created   []EntityIdentity  `json:"created"`
	Updated   []UpdatedEntity   `json:"updated"`
	Skipped   []EntityIdentity  `json:"skipped,omitempty"` // no-op updates under the skip policy
	Errors    []ValidationIssue `json:"errors"`
	Warnings  []ValidationIssue `json:"warnings,omitempty"`
	Duration  float64           `json:"duration_seconds"`
}

// NoopUpdatePolicy decides what a content-identical update does.
type NoopUpdatePolicy string

const (
	// NoopUpdateVersion applies the update and consumes a version number.
	NoopUpdateVersion NoopUpdatePolicy = "version"
	// NoopUpdateSkip drops the unchanged entity from the update set.
	NoopUpdateSkip NoopUpdatePolicy = "skip"
)

// SetupElementPolicy decides what an unresolved setup-element name does.
type SetupElementPolicy string

const (
	// SetupElementReject reports an error-severity issue.
	SetupElementReject SetupElementPolicy = "reject"
	// SetupElementCreate creates the element inside the import transaction.
	SetupElementCreate SetupElementPolicy = "create"
)

// ImportSettings holds the persisted import policy configuration.
type ImportSettings struct {
	NoopUpdates          NoopUpdatePolicy   `json:"noop_updates"`
	UnknownSetupElements SetupElementPolicy `json:"unknown_setup_elements"`
	UpdatedAt            time.Time          `json:"updated_at"`
	UpdatedBy            string             `json:"updated_by,omitempty"`
}

// DefaultImportSettings returns the default policies: unchanged entities
// still consume a version, unknown setup elements are rejected.
func DefaultImportSettings() *ImportSettings {
	return &ImportSettings{
		NoopUpdates:          NoopUpdateVersion,
		UnknownSetupElements: SetupElementReject,
		UpdatedAt:            time.Now(),
	}
}

// Validate checks the policy values.
func (s *ImportSettings) Validate() error {
	switch s.NoopUpdates {
	case NoopUpdateVersion, NoopUpdateSkip:
	default:
		return ErrInvalidInput
	}
	switch s.UnknownSetupElements {
	case SetupElementReject, SetupElementCreate:
	default:
		return ErrInvalidInput
	}
	return nil
}
