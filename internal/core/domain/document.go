package domain

// DocumentTree is the generic, loss-tolerant rendering of a rich document's
// heading hierarchy. It carries no entity semantics; the mapper interprets
// it. The JSON form is the internal contract between extraction and mapping
// and is exercised by tests, but it is not a stable external format.
type DocumentTree struct {
	Sections []*Section          `json:"sections"`
	Warnings []ExtractionWarning `json:"warnings,omitempty"`
}

// Section is one heading and everything under it up to the next heading of
// the same or higher level.
type Section struct {
	Level       int          `json:"level"`
	Title       string       `json:"title"`
	Path        []string     `json:"path,omitempty"` // ancestor titles, outermost first
	Anchor      string       `json:"anchor,omitempty"`
	Paragraphs  []*Paragraph `json:"paragraphs,omitempty"`
	Subsections []*Section   `json:"subsections,omitempty"`
}

// Paragraph is one block of text under a section.
type Paragraph struct {
	Text     string  `json:"text"`
	ListItem bool    `json:"list_item,omitempty"`
	Links    []*Link `json:"links,omitempty"`
}

// Link is a hyperlink embedded in a paragraph. Target is either an internal
// anchor name or an external URL. StartChar/EndChar delimit the linked text
// within the paragraph, measured in runes.
type Link struct {
	Text      string `json:"text"`
	Target    string `json:"target"`
	Internal  bool   `json:"internal,omitempty"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// ExtractionWarning records a non-fatal irregularity seen while decoding a
// document, such as a skipped heading level or an unresolvable hyperlink
// relationship.
type ExtractionWarning struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// Walk visits s and all its subsections depth-first.
func (s *Section) Walk(fn func(*Section)) {
	fn(s)
	for _, sub := range s.Subsections {
		sub.Walk(fn)
	}
}

// TextLines returns the section's paragraph texts in order. Used for
// multi-line field accumulation and diagnostics.
func (s *Section) TextLines() []string {
	lines := make([]string, 0, len(s.Paragraphs))
	for _, p := range s.Paragraphs {
		lines = append(lines, p.Text)
	}
	return lines
}
