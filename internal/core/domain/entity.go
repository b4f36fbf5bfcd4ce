package domain

import "time"

// Field names used across all kinds. The mapper's label table and the
// generator's layout both key off these.
const (
	FieldStatement    = "statement"
	FieldRationale    = "rationale"
	FieldVerification = "verification"
	FieldDescription  = "description"
	FieldMotivation   = "motivation"
	FieldPriority     = "priority"
	FieldStatus       = "status"
	FieldStakeholders = "stakeholders"
	FieldNotes        = "notes"
)

// Relationship names.
const (
	RelSatisfies = "satisfies"
	RelAffects   = "affects"
)

// FieldValueKind discriminates the three field value shapes.
type FieldValueKind string

const (
	FieldValueText FieldValueKind = "text" // single-line plain text
	FieldValueRich FieldValueKind = "rich" // multi-line text, list structure preserved line-wise
	FieldValueRefs FieldValueKind = "refs" // annotated setup-element references
)

// FieldValue is one extracted field. Text fields carry Text; refs fields
// carry Refs. Rich text keeps paragraph breaks as newlines; heavier
// formatting is not preserved.
type FieldValue struct {
	Kind FieldValueKind   `json:"kind"`
	Text string           `json:"text,omitempty"`
	Refs []SetupReference `json:"refs,omitempty"`
}

// TextValue builds a single-line text field value.
func TextValue(s string) FieldValue {
	return FieldValue{Kind: FieldValueText, Text: s}
}

// RichValue builds a multi-line text field value.
func RichValue(s string) FieldValue {
	return FieldValue{Kind: FieldValueRich, Text: s}
}

// RefsValue builds a setup-reference list field value.
func RefsValue(refs []SetupReference) FieldValue {
	return FieldValue{Kind: FieldValueRefs, Refs: refs}
}

// SetupReference points at a non-versioned setup element, optionally
// annotated. ID is zero while the element is only known by name (either
// still unresolved, or pending creation under the create policy).
type SetupReference struct {
	ID      int64  `json:"id,omitempty"`
	Name    string `json:"name"`
	Note    string `json:"note,omitempty"`
	Pending bool   `json:"pending,omitempty"` // create on import
}

// EntityReference points at another ON/OR/OC entity, version-agnostic.
// A pending reference targets an entity declared earlier in the same
// document that does not exist in the store yet; BatchIndex identifies it
// and the importer substitutes the real number after creation.
type EntityReference struct {
	Kind       EntityKind `json:"kind"`
	Group      string     `json:"group"`
	Num        int64      `json:"num,omitempty"`
	Title      string     `json:"title,omitempty"`
	Pending    bool       `json:"pending,omitempty"`
	BatchIndex int        `json:"batch_index,omitempty"`
}

// Identity returns the reference as a version-agnostic identity.
func (r EntityReference) Identity() EntityIdentity {
	return EntityIdentity{Kind: r.Kind, Group: r.Group, Num: r.Num}
}

// StructuredEntity is one entity recovered from a document (or assembled
// for export). Identity is nil for creations. Relationships is always
// non-nil: every import fully replaces field and relationship values, so
// an empty list means "no references", never "unchanged".
type StructuredEntity struct {
	Identity      *EntityIdentity              `json:"identity,omitempty"`
	Kind          EntityKind                   `json:"kind"`
	Title         string                       `json:"title"`
	Path          []string                     `json:"path,omitempty"`
	Anchor        string                       `json:"anchor,omitempty"`
	Fields        map[string]FieldValue        `json:"fields"`
	Relationships map[string][]EntityReference `json:"relationships"`
}

// NewStructuredEntity builds an empty entity of the given kind with
// initialized maps.
func NewStructuredEntity(kind EntityKind, title string) *StructuredEntity {
	return &StructuredEntity{
		Kind:          kind,
		Title:         title,
		Fields:        make(map[string]FieldValue),
		Relationships: make(map[string][]EntityReference),
	}
}

// IsUpdate reports whether the entity asserts an existing identity.
func (e *StructuredEntity) IsUpdate() bool {
	return e.Identity != nil
}

// RefText names the entity in diagnostics: the identity when asserted,
// otherwise the heading title.
func (e *StructuredEntity) RefText() string {
	if e.Identity != nil {
		return e.Identity.Format(false)
	}
	return e.Title
}

// FieldText returns the text of a field, or "" when absent.
func (e *StructuredEntity) FieldText(name string) string {
	return e.Fields[name].Text
}

// EntityRecord is the stored form of an entity at its current version.
type EntityRecord struct {
	Identity      EntityIdentity               `json:"identity"` // Version = current version
	Title         string                       `json:"title"`
	Fields        map[string]FieldValue        `json:"fields"`
	Relationships map[string][]EntityReference `json:"relationships"`
	CreatedBy     string                       `json:"created_by"`
	UpdatedBy     string                       `json:"updated_by"`
	CreatedAt     time.Time                    `json:"created_at"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// FieldText returns the text of a stored field, or "" when absent.
func (r *EntityRecord) FieldText(name string) string {
	return r.Fields[name].Text
}

// ContentEquals reports whether the record's title, fields, and
// relationships match the structured entity's. Used for the no-op update
// policy: an import that changes nothing may skip the version bump.
func (r *EntityRecord) ContentEquals(e *StructuredEntity) bool {
	if r.Title != e.Title {
		return false
	}
	if len(r.Fields) != len(e.Fields) || len(r.Relationships) != len(e.Relationships) {
		return false
	}
	for name, v := range e.Fields {
		stored, ok := r.Fields[name]
		if !ok || !fieldValuesEqual(stored, v) {
			return false
		}
	}
	for name, refs := range e.Relationships {
		stored, ok := r.Relationships[name]
		if !ok || len(stored) != len(refs) {
			return false
		}
		for i := range refs {
			if stored[i].Kind != refs[i].Kind ||
				stored[i].Group != refs[i].Group ||
				stored[i].Num != refs[i].Num {
				return false
			}
		}
	}
	return true
}

func fieldValuesEqual(a, b FieldValue) bool {
	if a.Kind != b.Kind || a.Text != b.Text || len(a.Refs) != len(b.Refs) {
		return false
	}
	for i := range a.Refs {
		if a.Refs[i].ID != b.Refs[i].ID ||
			a.Refs[i].Name != b.Refs[i].Name ||
			a.Refs[i].Note != b.Refs[i].Note {
			return false
		}
	}
	return true
}

// EntityVersion is one historical version of an entity.
type EntityVersion struct {
	Identity      EntityIdentity               `json:"identity"` // Version = this version
	Title         string                       `json:"title"`
	Fields        map[string]FieldValue        `json:"fields"`
	Relationships map[string][]EntityReference `json:"relationships"`
	CreatedBy     string                       `json:"created_by"`
	CreatedAt     time.Time                    `json:"created_at"`
}

// SetupElement is a non-versioned reference entity (for example a
// stakeholder category) scoped to a group.
type SetupElement struct {
	ID        int64     `json:"id"`
	Group     string    `json:"group"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
