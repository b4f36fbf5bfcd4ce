package mapping

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

// KindSection builds the top-level heading that opens a kind's entity
// list in an exported document.
func KindSection(kind domain.EntityKind, group string) *domain.Section {
	return &domain.Section{
		Level:  1,
		Title:  kind.SectionTitle(),
		Anchor: fmt.Sprintf("sec-%s-%s", kind, group),
	}
}

// EntitySection renders a stored record as the section MapTree parses
// back. Export and import share this vocabulary, which is what makes an
// unmodified re-import a no-op.
func EntitySection(record *domain.EntityRecord) *domain.Section {
	kind := record.Identity.Kind
	section := &domain.Section{
		Level:  2,
		Title:  record.Title,
		Anchor: SectionAnchor(kind, record.Identity.Group, record.Identity.Num),
		Path:   []string{kind.SectionTitle()},
	}
	section.Paragraphs = append(section.Paragraphs, &domain.Paragraph{
		Text: fmt.Sprintf("%s: %s", identityLabel, record.Identity.Format(true)),
	})

	for _, spec := range fieldTable(kind) {
		switch spec.Shape {
		case shapeText:
			if value, ok := record.Fields[spec.Name]; ok && value.Text != "" {
				section.Paragraphs = append(section.Paragraphs, &domain.Paragraph{
					Text: spec.Label + ": " + value.Text,
				})
			}
		case shapeRich:
			value, ok := record.Fields[spec.Name]
			if !ok || strings.TrimSpace(value.Text) == "" {
				continue
			}
			lines := strings.Split(value.Text, "\n")
			section.Paragraphs = append(section.Paragraphs, &domain.Paragraph{
				Text: spec.Label + ": " + lines[0],
			})
			for _, line := range lines[1:] {
				section.Paragraphs = append(section.Paragraphs, &domain.Paragraph{Text: line})
			}
		case shapeSetupRefs:
			value, ok := record.Fields[spec.Name]
			if !ok || len(value.Refs) == 0 {
				continue
			}
			section.Paragraphs = append(section.Paragraphs, &domain.Paragraph{Text: spec.Label + ":"})
			for _, ref := range value.Refs {
				section.Paragraphs = append(section.Paragraphs, &domain.Paragraph{
					Text:     setupEntryText(ref),
					ListItem: true,
				})
			}
		case shapeRelation:
			refs := record.Relationships[spec.Name]
			if len(refs) == 0 {
				continue
			}
			section.Paragraphs = append(section.Paragraphs, &domain.Paragraph{Text: spec.Label + ":"})
			for _, ref := range refs {
				section.Paragraphs = append(section.Paragraphs, relationEntry(ref))
			}
		}
	}
	return section
}

func setupEntryText(ref domain.SetupReference) string {
	if ref.Note != "" {
		return fmt.Sprintf("%s [%s]", ref.Name, ref.Note)
	}
	return ref.Name
}

// relationEntry renders "Title (kind:group/num)" with a live link on the
// title pointing at the target's heading anchor.
func relationEntry(ref domain.EntityReference) *domain.Paragraph {
	identity := ref.Identity().Format(false)
	title := ref.Title
	if title == "" {
		title = identity
	}
	text := fmt.Sprintf("%s (%s)", title, identity)
	return &domain.Paragraph{
		Text:     text,
		ListItem: true,
		Links: []*domain.Link{
			{
				Text:      title,
				Target:    SectionAnchor(ref.Kind, ref.Group, ref.Num),
				Internal:  true,
				StartChar: 0,
				EndChar:   len([]rune(title)),
			},
		},
	}
}
