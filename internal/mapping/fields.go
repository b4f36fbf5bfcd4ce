package mapping

import "github.com/custodia-labs/opreq-core/internal/core/domain"

// fieldShape says how a labeled field consumes paragraphs.
type fieldShape int

const (
	// shapeText takes the remainder of the label line only.
	shapeText fieldShape = iota
	// shapeRich takes the remainder plus every following free paragraph up
	// to the next recognized label.
	shapeRich
	// shapeSetupRefs takes following list items as setup-element references.
	shapeSetupRefs
	// shapeRelation takes following list items as entity references.
	shapeRelation
)

// fieldSpec binds one document label to a field or relationship name.
type fieldSpec struct {
	Label    string // label as written in the document, without the colon
	Name     string // domain field or relationship name
	Shape    fieldShape
	Required bool
}

// fieldTable returns the labeled fields a kind's entity section may carry,
// in their canonical document order.
func fieldTable(kind domain.EntityKind) []fieldSpec {
	switch kind {
	case domain.KindNeed:
		return []fieldSpec{
			{Label: "Statement", Name: domain.FieldStatement, Shape: shapeRich, Required: true},
			{Label: "Rationale", Name: domain.FieldRationale, Shape: shapeRich},
			{Label: "Priority", Name: domain.FieldPriority, Shape: shapeText},
			{Label: "Stakeholders", Name: domain.FieldStakeholders, Shape: shapeSetupRefs},
			{Label: "Notes", Name: domain.FieldNotes, Shape: shapeRich},
		}
	case domain.KindRequirement:
		return []fieldSpec{
			{Label: "Statement", Name: domain.FieldStatement, Shape: shapeRich, Required: true},
			{Label: "Rationale", Name: domain.FieldRationale, Shape: shapeRich},
			{Label: "Verification", Name: domain.FieldVerification, Shape: shapeRich},
			{Label: "Priority", Name: domain.FieldPriority, Shape: shapeText},
			{Label: "Stakeholders", Name: domain.FieldStakeholders, Shape: shapeSetupRefs},
			{Label: "Satisfies", Name: domain.RelSatisfies, Shape: shapeRelation},
			{Label: "Notes", Name: domain.FieldNotes, Shape: shapeRich},
		}
	case domain.KindChange:
		return []fieldSpec{
			{Label: "Description", Name: domain.FieldDescription, Shape: shapeRich, Required: true},
			{Label: "Motivation", Name: domain.FieldMotivation, Shape: shapeRich},
			{Label: "Priority", Name: domain.FieldPriority, Shape: shapeText},
			{Label: "Status", Name: domain.FieldStatus, Shape: shapeText},
			{Label: "Stakeholders", Name: domain.FieldStakeholders, Shape: shapeSetupRefs},
			{Label: "Affects", Name: domain.RelAffects, Shape: shapeRelation},
			{Label: "Notes", Name: domain.FieldNotes, Shape: shapeRich},
		}
	}
	return nil
}

// lookupField finds the spec for a label within a kind's table.
func lookupField(kind domain.EntityKind, label string) (fieldSpec, bool) {
	for _, spec := range fieldTable(kind) {
		if spec.Label == label {
			return spec, true
		}
	}
	return fieldSpec{}, false
}

// requiredFields lists the field names a kind cannot omit.
func requiredFields(kind domain.EntityKind) []fieldSpec {
	var required []fieldSpec
	for _, spec := range fieldTable(kind) {
		if spec.Required {
			required = append(required, spec)
		}
	}
	return required
}
