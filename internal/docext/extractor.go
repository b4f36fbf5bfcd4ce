// Package docext decodes OOXML word-processing documents into the generic
// section tree the mapper consumes. It knows nothing about entities: its
// only job is a faithful rendering of headings, paragraphs, list items,
// bookmarks, and hyperlinks. It must succeed, possibly with warnings, on
// any well-formed document; hard failure is reserved for input that is not
// a readable document at all.
package docext

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

const maxDocumentXMLSize = 64 << 20 // refuse absurd inflation from a tiny archive

// Extract decodes a .docx byte stream into a DocumentTree. Structural
// corruption (not a zip, no document part, malformed XML) returns
// ErrUnreadableDocument; everything recoverable becomes a warning on the
// tree instead.
func Extract(document []byte) (*domain.DocumentTree, error) {
	zr, err := zip.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a document archive: %v", domain.ErrUnreadableDocument, err)
	}

	docXML, err := readArchiveFile(zr, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableDocument, err)
	}

	// Hyperlink relationships are optional; a document without external
	// links has no use for them.
	relTargets := map[string]string{}
	if relsXML, err := readArchiveFile(zr, "word/_rels/document.xml.rels"); err == nil {
		relTargets, err = parseRelationships(relsXML)
		if err != nil {
			return nil, fmt.Errorf("%w: relationships part: %v", domain.ErrUnreadableDocument, err)
		}
	}

	tree, err := parseDocumentXML(docXML, relTargets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableDocument, err)
	}
	return tree, nil
}

func readArchiveFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxDocumentXMLSize))
		if err != nil {
			return nil, fmt.Errorf("read %s: %v", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("missing %s", name)
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func parseRelationships(data []byte) (map[string]string, error) {
	var rels relationshipsXML
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(rels.Relationships))
	for _, r := range rels.Relationships {
		targets[r.ID] = r.Target
	}
	return targets, nil
}

// docParser walks the document XML token stream and builds the tree. The
// WordprocessingML paragraph model is flat; heading paragraphs open
// sections and everything else attaches to the innermost open section.
type docParser struct {
	tree       *domain.DocumentTree
	relTargets map[string]string
	stack      []*domain.Section

	// per-paragraph state
	inParagraph bool
	inText      bool
	text        strings.Builder
	style       string
	listItem    bool
	anchor      string
	links       []*domain.Link

	// open hyperlink state
	inLink       bool
	linkText     strings.Builder
	linkTarget   string
	linkInternal bool
	linkStart    int

	tableDepth   int
	warnedTable  bool
	warnedOrphan bool
}

func parseDocumentXML(data []byte, relTargets map[string]string) (*domain.DocumentTree, error) {
	p := &docParser{
		tree:       &domain.DocumentTree{},
		relTargets: relTargets,
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document XML: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			p.startElement(t)
		case xml.EndElement:
			p.endElement(t)
		case xml.CharData:
			if p.inText {
				p.writeText(normalizeRun(string(t)))
			}
		}
	}
	return p.tree, nil
}

func (p *docParser) startElement(el xml.StartElement) {
	switch el.Name.Local {
	case "tbl":
		p.tableDepth++
		if !p.warnedTable {
			p.warnedTable = true
			p.tree.Warnings = append(p.tree.Warnings, domain.ExtractionWarning{
				Message: "table content flattened to plain paragraphs",
			})
		}
	case "p":
		p.resetParagraph()
		p.inParagraph = true
	case "pStyle":
		p.style = attr(el, "val")
		// Bullets styled without numbering still count as list items.
		if p.style == "ListParagraph" {
			p.listItem = true
		}
	case "numPr":
		p.listItem = true
	case "bookmarkStart":
		name := attr(el, "name")
		// Word injects service bookmarks like _GoBack; those are not anchors.
		if p.anchor == "" && name != "" && !strings.HasPrefix(name, "_") {
			p.anchor = name
		}
	case "hyperlink":
		if !p.inParagraph {
			return
		}
		p.inLink = true
		p.linkText.Reset()
		p.linkStart = utf8.RuneCountInString(p.text.String())
		if anchor := attr(el, "anchor"); anchor != "" {
			p.linkTarget = anchor
			p.linkInternal = true
		} else if id := attr(el, "id"); id != "" {
			p.linkTarget = p.relTargets[id]
			p.linkInternal = false
			if p.linkTarget == "" {
				p.tree.Warnings = append(p.tree.Warnings, domain.ExtractionWarning{
					Message: "hyperlink references a missing relationship",
					Context: id,
				})
			}
		}
	case "t":
		p.inText = true
	case "br", "cr":
		p.writeText("\n")
	case "tab":
		p.writeText("\t")
	}
}

func (p *docParser) endElement(el xml.EndElement) {
	switch el.Name.Local {
	case "tbl":
		if p.tableDepth > 0 {
			p.tableDepth--
		}
	case "t":
		p.inText = false
	case "hyperlink":
		if !p.inLink {
			return
		}
		p.inLink = false
		if p.linkTarget != "" {
			p.links = append(p.links, &domain.Link{
				Text:      p.linkText.String(),
				Target:    p.linkTarget,
				Internal:  p.linkInternal,
				StartChar: p.linkStart,
				EndChar:   utf8.RuneCountInString(p.text.String()),
			})
		}
		p.linkTarget = ""
		p.linkInternal = false
	case "p":
		p.flushParagraph()
	}
}

func (p *docParser) writeText(s string) {
	if !p.inParagraph {
		return
	}
	p.text.WriteString(s)
	if p.inLink {
		p.linkText.WriteString(s)
	}
}

func (p *docParser) resetParagraph() {
	p.text.Reset()
	p.style = ""
	p.listItem = false
	p.anchor = ""
	p.links = nil
	p.inLink = false
	p.linkTarget = ""
}

func (p *docParser) flushParagraph() {
	if !p.inParagraph {
		return
	}
	p.inParagraph = false

	text := p.text.String()
	if level, ok := headingLevel(p.style); ok {
		p.openSection(level, strings.TrimSpace(text), p.anchor)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	if len(p.stack) == 0 {
		// Title page or preamble text before the first heading carries no
		// entities; note it once and move on.
		if !p.warnedOrphan {
			p.warnedOrphan = true
			p.tree.Warnings = append(p.tree.Warnings, domain.ExtractionWarning{
				Message: "content before first heading ignored",
				Context: truncate(text, 60),
			})
		}
		return
	}

	current := p.stack[len(p.stack)-1]
	current.Paragraphs = append(current.Paragraphs, &domain.Paragraph{
		Text:     text,
		ListItem: p.listItem,
		Links:    p.links,
	})
}

func (p *docParser) openSection(level int, title, anchor string) {
	for len(p.stack) > 0 && p.stack[len(p.stack)-1].Level >= level {
		p.stack = p.stack[:len(p.stack)-1]
	}

	section := &domain.Section{Level: level, Title: title, Anchor: anchor}
	if len(p.stack) == 0 {
		p.tree.Sections = append(p.tree.Sections, section)
	} else {
		parent := p.stack[len(p.stack)-1]
		section.Path = append(append([]string{}, parent.Path...), parent.Title)
		parent.Subsections = append(parent.Subsections, section)
	}
	p.stack = append(p.stack, section)
}

func headingLevel(style string) (int, bool) {
	rest, ok := strings.CutPrefix(style, "Heading")
	if !ok || len(rest) != 1 || rest[0] < '1' || rest[0] > '6' {
		return 0, false
	}
	return int(rest[0] - '0'), true
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
