// Package docgen renders a generic section tree as an OOXML
// word-processing document. It is the mirror of docext: a tree produced
// here and decoded there comes back structurally identical, which is what
// makes the export/import round trip work.
package docgen

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

// Generate renders the tree as a .docx byte stream.
func Generate(tree *domain.DocumentTree) ([]byte, error) {
	w := newDocWriter()
	for _, section := range tree.Sections {
		w.writeSection(section)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/document.xml", w.documentXML()},
		{"word/_rels/document.xml.rels", w.relationshipsXML()},
		{"word/styles.xml", stylesXML},
		{"word/numbering.xml", numberingXML},
	}
	for _, part := range parts {
		f, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", part.name, err)
		}
		if _, err := f.Write([]byte(part.data)); err != nil {
			return nil, fmt.Errorf("write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// docWriter accumulates the document body and the hyperlink relationships
// external links need.
type docWriter struct {
	body       strings.Builder
	rels       []relEntry
	bookmarkID int
}

type relEntry struct {
	id     string
	target string
}

func newDocWriter() *docWriter {
	return &docWriter{}
}

func (w *docWriter) writeSection(section *domain.Section) {
	level := section.Level
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}

	w.body.WriteString(`<w:p><w:pPr><w:pStyle w:val="Heading`)
	fmt.Fprintf(&w.body, "%d", level)
	w.body.WriteString(`"/></w:pPr>`)
	if section.Anchor != "" {
		w.bookmarkID++
		fmt.Fprintf(&w.body, `<w:bookmarkStart w:id="%d" w:name="%s"/>`, w.bookmarkID, escapeAttr(section.Anchor))
	}
	w.writeRun(section.Title)
	if section.Anchor != "" {
		fmt.Fprintf(&w.body, `<w:bookmarkEnd w:id="%d"/>`, w.bookmarkID)
	}
	w.body.WriteString(`</w:p>`)

	for _, para := range section.Paragraphs {
		w.writeParagraph(para)
	}
	for _, sub := range section.Subsections {
		w.writeSection(sub)
	}
}

func (w *docWriter) writeParagraph(para *domain.Paragraph) {
	w.body.WriteString(`<w:p>`)
	if para.ListItem {
		w.body.WriteString(`<w:pPr><w:pStyle w:val="ListParagraph"/><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr>`)
	}

	runes := []rune(para.Text)
	pos := 0
	for _, link := range para.Links {
		start, end := link.StartChar, link.EndChar
		if start < pos || end > len(runes) || start > end {
			// Offsets that no longer fit the text are rendered as plain runs.
			continue
		}
		if start > pos {
			w.writeRun(string(runes[pos:start]))
		}
		w.writeHyperlink(link, string(runes[start:end]))
		pos = end
	}
	if pos < len(runes) {
		w.writeRun(string(runes[pos:]))
	}
	w.body.WriteString(`</w:p>`)
}

func (w *docWriter) writeHyperlink(link *domain.Link, text string) {
	if link.Internal {
		fmt.Fprintf(&w.body, `<w:hyperlink w:anchor="%s">`, escapeAttr(link.Target))
	} else {
		id := fmt.Sprintf("rId%d", len(w.rels)+100)
		w.rels = append(w.rels, relEntry{id: id, target: link.Target})
		fmt.Fprintf(&w.body, `<w:hyperlink r:id="%s">`, id)
	}
	w.body.WriteString(`<w:r><w:rPr><w:rStyle w:val="Hyperlink"/></w:rPr>`)
	w.writeTextElement(text)
	w.body.WriteString(`</w:r></w:hyperlink>`)
}

func (w *docWriter) writeRun(text string) {
	if text == "" {
		return
	}
	w.body.WriteString(`<w:r>`)
	w.writeTextElement(text)
	w.body.WriteString(`</w:r>`)
}

// writeTextElement splits on newlines so multi-line paragraph text survives
// as explicit breaks.
func (w *docWriter) writeTextElement(text string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 0 {
			w.body.WriteString(`<w:br/>`)
		}
		fmt.Fprintf(&w.body, `<w:t xml:space="preserve">%s</w:t>`, escapeText(line))
	}
}

func (w *docWriter) documentXML() string {
	var doc strings.Builder
	doc.WriteString(xml.Header)
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>`)
	doc.WriteString(w.body.String())
	doc.WriteString(`</w:body></w:document>`)
	return doc.String()
}

func (w *docWriter) relationshipsXML() string {
	var rels strings.Builder
	rels.WriteString(xml.Header)
	rels.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	rels.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>`)
	rels.WriteString(`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering" Target="numbering.xml"/>`)
	for _, rel := range w.rels {
		fmt.Fprintf(&rels, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="%s" TargetMode="External"/>`,
			rel.id, escapeAttr(rel.target))
	}
	rels.WriteString(`</Relationships>`)
	return rels.String()
}

func escapeText(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func escapeAttr(s string) string {
	return escapeText(s)
}

const stylesXML = xml.Header + `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:pPr><w:outlineLvl w:val="0"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:pPr><w:outlineLvl w:val="1"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:pPr><w:outlineLvl w:val="2"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading4"><w:name w:val="heading 4"/><w:pPr><w:outlineLvl w:val="3"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading5"><w:name w:val="heading 5"/><w:pPr><w:outlineLvl w:val="4"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading6"><w:name w:val="heading 6"/><w:pPr><w:outlineLvl w:val="5"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="ListParagraph"><w:name w:val="List Paragraph"/></w:style>` +
	`<w:style w:type="character" w:styleId="Hyperlink"><w:name w:val="Hyperlink"/></w:style>` +
	`</w:styles>`

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>` +
	`</Types>`

const packageRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const numberingXML = xml.Header + `<w:numbering xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:abstractNum w:abstractNumId="0"><w:lvl w:ilvl="0"><w:numFmt w:val="bullet"/><w:lvlText w:val="-"/></w:lvl></w:abstractNum>` +
	`<w:num w:numId="1"><w:abstractNumId w:val="0"/></w:num>` +
	`</w:numbering>`
