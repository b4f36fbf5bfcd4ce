package mapping

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
	"github.com/custodia-labs/opreq-core/internal/core/ports/driven"
)

// Resolver resolves setup-element and entity references against a snapshot
// taken once per import. It is never shared between imports: concurrent
// imports must not observe each other's partial state, so every call to
// NewResolver builds a fresh instance from the store.
type Resolver struct {
	group  string
	policy domain.SetupElementPolicy

	existing map[string]*snapshotEntity // kind/num key -> stored entity
	byTitle  map[string][]*snapshotEntity
	setup    map[string]*domain.SetupElement // lowercased name -> element

	declared     map[string]declaredEntity // title -> earlier declaration
	declaredNew  map[string]declaredEntity // title -> earlier declaration, creations only
	pendingSetup map[string]bool
}

type snapshotEntity struct {
	identity domain.EntityIdentity
	title    string
}

type declaredEntity struct {
	index int
	kind  domain.EntityKind
}

// NewResolver fetches the group's entities and setup elements and builds a
// per-import resolver.
func NewResolver(ctx context.Context, store driven.RecordStore, group string, policy domain.SetupElementPolicy) (*Resolver, error) {
	records, err := store.ListEntities(ctx, group, "")
	if err != nil {
		return nil, fmt.Errorf("snapshot entities for %s: %w", group, err)
	}
	elements, err := store.ListSetupElements(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("snapshot setup elements for %s: %w", group, err)
	}

	r := &Resolver{
		group:        group,
		policy:       policy,
		existing:     make(map[string]*snapshotEntity, len(records)),
		byTitle:      make(map[string][]*snapshotEntity),
		setup:        make(map[string]*domain.SetupElement, len(elements)),
		declared:     make(map[string]declaredEntity),
		declaredNew:  make(map[string]declaredEntity),
		pendingSetup: make(map[string]bool),
	}
	for _, record := range records {
		entity := &snapshotEntity{identity: record.Identity, title: record.Title}
		r.existing[refKey(record.Identity)] = entity
		r.byTitle[record.Title] = append(r.byTitle[record.Title], entity)
	}
	for _, elem := range elements {
		r.setup[strings.ToLower(elem.Name)] = elem
	}
	return r, nil
}

func refKey(id domain.EntityIdentity) string {
	return fmt.Sprintf("%s/%d", id.Kind, id.Num)
}

// Declare registers an entity heading so later entities in the same
// document can reference it. Creations are referenced by title; updates
// additionally count as existing under their asserted identity.
func (r *Resolver) Declare(entity *domain.StructuredEntity, batchIndex int) {
	decl := declaredEntity{index: batchIndex, kind: entity.Kind}
	r.declared[entity.Title] = decl
	if entity.Identity == nil {
		r.declaredNew[entity.Title] = decl
	}
}

// KnownIdentity reports whether the identity names an entity in the
// snapshot.
func (r *Resolver) KnownIdentity(id domain.EntityIdentity) bool {
	_, ok := r.existing[refKey(id)]
	return ok
}

// ResolveIdentityRef resolves a reference written with an explicit
// identity, like "Core Infrastructure (or:idl/512)". References into other
// groups are passed through unverified; the snapshot only covers the
// import's own scope.
func (r *Resolver) ResolveIdentityRef(title string, id domain.EntityIdentity) (domain.EntityReference, bool) {
	ref := domain.EntityReference{Kind: id.Kind, Group: id.Group, Num: id.Num, Title: title}
	if id.Group != r.group {
		return ref, true
	}
	if _, ok := r.existing[refKey(id)]; ok {
		return ref, true
	}
	return ref, false
}

// ResolveTitleRef resolves a reference written without an identity. Only a
// creation declared earlier in the same document, or a unique title match
// in the snapshot, resolves; anything else is unresolved. The target's own
// kind wins, since a bare title carries none.
func (r *Resolver) ResolveTitleRef(title string) (domain.EntityReference, bool) {
	if decl, ok := r.declaredNew[title]; ok {
		return domain.EntityReference{
			Kind:       decl.kind,
			Group:      r.group,
			Title:      title,
			Pending:    true,
			BatchIndex: decl.index,
		}, true
	}
	matches := r.byTitle[title]
	if len(matches) == 1 {
		m := matches[0]
		return domain.EntityReference{Kind: m.identity.Kind, Group: r.group, Num: m.identity.Num, Title: title}, true
	}
	return domain.EntityReference{}, false
}

// ResolveSetupElement resolves a setup-element name, case-insensitively.
// Unknown names follow the configured policy: under create they come back
// pending (the importer creates them inside the transaction); under reject
// the second return is false and the caller records an error.
func (r *Resolver) ResolveSetupElement(name, note string) (domain.SetupReference, bool) {
	if elem, ok := r.setup[strings.ToLower(name)]; ok {
		return domain.SetupReference{ID: elem.ID, Name: elem.Name, Note: note}, true
	}
	if r.policy == domain.SetupElementCreate {
		r.pendingSetup[strings.ToLower(name)] = true
		return domain.SetupReference{Name: name, Note: note, Pending: true}, true
	}
	return domain.SetupReference{}, false
}

// ExpectedAnchor returns the heading anchor an exported document gives the
// referenced entity, used for the advisory hyperlink cross-check.
func (r *Resolver) ExpectedAnchor(ref domain.EntityReference) string {
	if ref.Num == 0 {
		return ""
	}
	return SectionAnchor(ref.Kind, ref.Group, ref.Num)
}

// SectionAnchor builds the stable per-entity heading anchor.
func SectionAnchor(kind domain.EntityKind, group string, num int64) string {
	return fmt.Sprintf("sec-%s-%s-%d", kind, group, num)
}
