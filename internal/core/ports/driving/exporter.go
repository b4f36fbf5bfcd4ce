package driving

import "context"

// ExportService renders a drafting group's entities as a document
type ExportService interface {
	// Export produces a document containing every entity in the group,
	// ordered by kind then num, in the round-trip layout the importer
	// understands.
	Export(ctx context.Context, group string) ([]byte, error)
}
