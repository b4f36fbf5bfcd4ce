// Package mapping turns the generic section tree into a structured import
// batch. It owns entity boundary detection, identity and field extraction,
// and reference resolution; every problem it finds is accumulated as an
// issue on the batch, never returned as an error, so one bad entity cannot
// hide problems in the others.
package mapping

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

const identityLabel = "ID"

// MapTree walks the tree and produces the import batch for a group. The
// resolver must be freshly built for this import.
func MapTree(tree *domain.DocumentTree, group string, resolver *Resolver) *domain.ImportBatch {
	m := &mapper{
		group:    group,
		resolver: resolver,
		batch:    domain.NewImportBatch(group),
	}

	for _, warning := range tree.Warnings {
		m.batch.AddIssue(domain.ValidationIssue{
			Severity: domain.SeverityWarning,
			Kind:     domain.IssueExtraction,
			Message:  warning.Message,
		})
	}

	found := false
	for _, section := range tree.Sections {
		section.Walk(func(s *domain.Section) {
			kind, ok := kindSection(s.Title)
			if !ok {
				return
			}
			found = true
			for _, candidate := range s.Subsections {
				m.mapEntity(kind, candidate)
			}
		})
	}

	if !found {
		m.batch.AddIssue(domain.ValidationIssue{
			Severity: domain.SeverityBlocking,
			Kind:     domain.IssueNoBoundaries,
			Message:  "document contains no recognizable entity sections",
		})
	}

	m.reclassifyForwardRefs()
	return m.batch
}

type mapper struct {
	group    string
	resolver *Resolver
	batch    *domain.ImportBatch

	// unresolved title references kept for the post-pass: a reference that
	// turns out to target an entity declared later in the document is a
	// forward reference, which reads better in the report than a plain
	// unresolved one.
	titleRefs []pendingTitleRef

	seen map[string]int // identity ref -> batch index, duplicate detection
}

type pendingTitleRef struct {
	issueIndex int
	title      string
}

// kindSection matches a section title against the three kind headings.
// Leading outline numbering like "2." or "1.3" is tolerated.
func kindSection(title string) (domain.EntityKind, bool) {
	trimmed := strings.TrimSpace(stripNumbering(title))
	for _, kind := range domain.Kinds() {
		if strings.EqualFold(trimmed, kind.SectionTitle()) {
			return kind, true
		}
	}
	return "", false
}

func stripNumbering(title string) string {
	rest := strings.TrimLeft(title, "0123456789. \t")
	if rest == "" {
		return title
	}
	return rest
}

func (m *mapper) mapEntity(kind domain.EntityKind, section *domain.Section) {
	entity := domain.NewStructuredEntity(kind, strings.TrimSpace(section.Title))
	entity.Path = section.Path
	entity.Anchor = section.Anchor

	index := len(m.batch.Entities)
	m.batch.Entities = append(m.batch.Entities, entity)

	paragraphs := section.Paragraphs
	if len(paragraphs) > 0 {
		if idText, ok := labeledLine(paragraphs[0].Text, identityLabel); ok {
			paragraphs = paragraphs[1:]
			if !m.applyIdentity(entity, index, idText) {
				return
			}
		}
	}

	m.resolver.Declare(entity, index)
	m.extractFields(entity, index, paragraphs)
	m.checkRequired(entity)
}

// applyIdentity parses and validates the identity line. Any problem blocks
// this entity only.
func (m *mapper) applyIdentity(entity *domain.StructuredEntity, index int, text string) bool {
	id, err := domain.ParseIdentity(strings.TrimSpace(text))
	if err != nil {
		m.batch.BlockEntity(index, domain.ValidationIssue{
			Kind:      domain.IssueBadIdentity,
			EntityRef: entity.Title,
			Message:   fmt.Sprintf("identity line %q is not a valid identity", strings.TrimSpace(text)),
		})
		return false
	}
	if !id.HasVersion() {
		m.batch.BlockEntity(index, domain.ValidationIssue{
			Kind:      domain.IssueBadIdentity,
			EntityRef: entity.Title,
			Message:   fmt.Sprintf("identity %s asserts an update but carries no version", id.Format(false)),
		})
		return false
	}
	if id.Kind != entity.Kind {
		m.batch.BlockEntity(index, domain.ValidationIssue{
			Kind:      domain.IssueKindMismatch,
			EntityRef: id.Format(true),
			Message:   fmt.Sprintf("identity kind %s does not match the %s section", id.Kind, entity.Kind.SectionTitle()),
		})
		return false
	}
	if id.Group != m.group {
		m.batch.BlockEntity(index, domain.ValidationIssue{
			Kind:      domain.IssueBadIdentity,
			EntityRef: id.Format(true),
			Message:   fmt.Sprintf("identity group %s does not match import scope %s", id.Group, m.group),
		})
		return false
	}

	if m.seen == nil {
		m.seen = make(map[string]int)
	}
	key := id.Format(false)
	if _, dup := m.seen[key]; dup {
		m.batch.BlockEntity(index, domain.ValidationIssue{
			Kind:      domain.IssueDuplicateEntity,
			EntityRef: key,
			Message:   fmt.Sprintf("entity %s appears more than once in the document", key),
		})
		return false
	}
	m.seen[key] = index

	entity.Identity = &id
	return true
}

// extractFields runs the label-table pass over the entity's paragraphs.
func (m *mapper) extractFields(entity *domain.StructuredEntity, index int, paragraphs []*domain.Paragraph) {
	var open *fieldSpec
	var openText []string

	flush := func() {
		if open == nil {
			return
		}
		if open.Shape == shapeRich {
			entity.Fields[open.Name] = domain.RichValue(strings.Join(openText, "\n"))
		}
		open = nil
		openText = nil
	}

	for _, para := range paragraphs {
		label, rest, isLabeled := splitLabel(para.Text)

		if isLabeled {
			spec, known := lookupField(entity.Kind, label)
			if !known {
				flush()
				m.batch.AddIssue(domain.ValidationIssue{
					Severity:  domain.SeverityWarning,
					Kind:      domain.IssueUnknownLabel,
					EntityRef: entity.RefText(),
					Field:     label,
					Message:   fmt.Sprintf("unknown field label %q ignored", label),
				})
				continue
			}
			flush()
			switch spec.Shape {
			case shapeText:
				entity.Fields[spec.Name] = domain.TextValue(strings.TrimSpace(rest))
			case shapeRich:
				open = &spec
				if trimmed := strings.TrimSpace(rest); trimmed != "" {
					openText = append(openText, trimmed)
				}
			case shapeSetupRefs:
				entity.Fields[spec.Name] = domain.RefsValue(nil)
				open = &spec
			case shapeRelation:
				entity.Relationships[spec.Name] = []domain.EntityReference{}
				open = &spec
			}
			continue
		}

		if open == nil {
			continue
		}
		switch open.Shape {
		case shapeRich:
			openText = append(openText, para.Text)
		case shapeSetupRefs:
			if para.ListItem {
				m.appendSetupRef(entity, open.Name, para.Text)
			} else {
				flush()
			}
		case shapeRelation:
			if para.ListItem {
				m.appendEntityRef(entity, open.Name, para)
			} else {
				flush()
			}
		}
	}
	flush()
}

func (m *mapper) appendSetupRef(entity *domain.StructuredEntity, field, text string) {
	name, note := parseSetupEntry(text)
	if name == "" {
		return
	}
	ref, ok := m.resolver.ResolveSetupElement(name, note)
	if !ok {
		m.batch.AddIssue(domain.ValidationIssue{
			Severity:  domain.SeverityError,
			Kind:      domain.IssueUnknownSetupElem,
			EntityRef: entity.RefText(),
			Field:     field,
			Message:   fmt.Sprintf("setup element %q does not exist", name),
		})
		return
	}
	value := entity.Fields[field]
	value.Kind = domain.FieldValueRefs
	value.Refs = append(value.Refs, ref)
	entity.Fields[field] = value
}

func (m *mapper) appendEntityRef(entity *domain.StructuredEntity, relation string, para *domain.Paragraph) {
	title, id, err := parseEntityEntry(para.Text)
	if err != nil {
		m.batch.AddIssue(domain.ValidationIssue{
			Severity:  domain.SeverityError,
			Kind:      domain.IssueUnresolvedRef,
			EntityRef: entity.RefText(),
			Field:     relation,
			Message:   err.Error(),
		})
		return
	}

	var ref domain.EntityReference
	var resolved bool
	if id != nil {
		ref, resolved = m.resolver.ResolveIdentityRef(title, *id)
		if !resolved {
			m.batch.AddIssue(domain.ValidationIssue{
				Severity:  domain.SeverityError,
				Kind:      domain.IssueUnresolvedRef,
				EntityRef: entity.RefText(),
				Field:     relation,
				Message:   fmt.Sprintf("referenced entity %s does not exist", id.Format(false)),
			})
			return
		}
	} else {
		ref, resolved = m.resolver.ResolveTitleRef(title)
		if !resolved {
			m.batch.AddIssue(domain.ValidationIssue{
				Severity:  domain.SeverityError,
				Kind:      domain.IssueUnresolvedRef,
				EntityRef: entity.RefText(),
				Field:     relation,
				Message:   fmt.Sprintf("reference %q does not match any existing or earlier-declared entity", title),
			})
			m.titleRefs = append(m.titleRefs, pendingTitleRef{
				issueIndex: len(m.batch.Issues) - 1,
				title:      title,
			})
			return
		}
	}

	m.crossCheckLink(entity, relation, para, ref)
	entity.Relationships[relation] = append(entity.Relationships[relation], ref)
}

// crossCheckLink compares an embedded hyperlink against the anchor the
// textual reference implies. Advisory only: plenty of documents carry no
// live links at all.
func (m *mapper) crossCheckLink(entity *domain.StructuredEntity, relation string, para *domain.Paragraph, ref domain.EntityReference) {
	expected := m.resolver.ExpectedAnchor(ref)
	if expected == "" {
		return
	}
	for _, link := range para.Links {
		if !link.Internal {
			continue
		}
		if link.Target != expected {
			m.batch.AddIssue(domain.ValidationIssue{
				Severity:  domain.SeverityWarning,
				Kind:      domain.IssueLinkMismatch,
				EntityRef: entity.RefText(),
				Field:     relation,
				Message:   fmt.Sprintf("hyperlink points at %q but the reference text implies %q", link.Target, expected),
			})
		}
		return
	}
}

func (m *mapper) checkRequired(entity *domain.StructuredEntity) {
	for _, spec := range requiredFields(entity.Kind) {
		if value, ok := entity.Fields[spec.Name]; ok && strings.TrimSpace(value.Text) != "" {
			continue
		}
		m.batch.AddIssue(domain.ValidationIssue{
			Severity:  domain.SeverityError,
			Kind:      domain.IssueMissingField,
			EntityRef: entity.RefText(),
			Field:     spec.Name,
			Message:   fmt.Sprintf("required field %q is missing or empty", spec.Label),
		})
	}
}

// reclassifyForwardRefs upgrades unresolved title references that target an
// entity declared later in the same document to forward-reference errors.
func (m *mapper) reclassifyForwardRefs() {
	for _, pending := range m.titleRefs {
		if _, declaredLater := m.resolver.declaredNew[pending.title]; !declaredLater {
			continue
		}
		issue := &m.batch.Issues[pending.issueIndex]
		issue.Kind = domain.IssueForwardRef
		issue.Message = fmt.Sprintf("reference %q targets an entity declared later in the document; move the reference after its heading", pending.title)
	}
}

// labeledLine matches "Label: rest" for one specific label.
func labeledLine(text, label string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(text), label+":")
	if !ok {
		return "", false
	}
	return rest, true
}

// splitLabel recognizes the "Label: value" shape. The label must be a
// single capitalized word; ordinary prose with a colon does not count.
func splitLabel(text string) (label, rest string, ok bool) {
	trimmed := strings.TrimSpace(text)
	colon := strings.IndexByte(trimmed, ':')
	if colon <= 0 {
		return "", "", false
	}
	label = trimmed[:colon]
	if len(label) > 20 || strings.ContainsAny(label, " \t") {
		return "", "", false
	}
	if label[0] < 'A' || label[0] > 'Z' {
		return "", "", false
	}
	return label, trimmed[colon+1:], true
}

// parseSetupEntry splits "Name [note]" into its parts; the note is
// optional.
func parseSetupEntry(text string) (name, note string) {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "]") {
		if open := strings.LastIndexByte(trimmed, '['); open >= 0 {
			return strings.TrimSpace(trimmed[:open]), strings.TrimSpace(trimmed[open+1 : len(trimmed)-1])
		}
	}
	return trimmed, ""
}

// parseEntityEntry splits "Title (kind:group/num)" into title and identity.
// A bare title is legal (it resolves against earlier declarations); a
// malformed or versioned identity inside the parentheses is not.
func parseEntityEntry(text string) (string, *domain.EntityIdentity, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasSuffix(trimmed, ")") {
		return trimmed, nil, nil
	}
	open := strings.LastIndexByte(trimmed, '(')
	if open < 0 {
		return trimmed, nil, nil
	}

	inner := trimmed[open+1 : len(trimmed)-1]
	id, err := domain.ParseIdentity(strings.TrimSpace(inner))
	if err != nil {
		// Parenthesized text that is not an identity is part of the title.
		return trimmed, nil, nil
	}
	if id.HasVersion() {
		return "", nil, fmt.Errorf("reference %q must not assert a version", trimmed)
	}
	return strings.TrimSpace(trimmed[:open]), &id, nil
}
