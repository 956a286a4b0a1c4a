package docs

import (
	"encoding/json"
	"unicode/utf16"
)

// Document is a snapshot of a remote document. Only the fields the
// coordinator reads are decoded; Raw keeps the full response.
type Document struct {
	DocumentID string                     `json:"documentId"`
	Title      string                     `json:"title"`
	RevisionID string                     `json:"revisionId"`
	Body       *Body                      `json:"body,omitempty"`
	Headers    map[string]json.RawMessage `json:"headers,omitempty"`
	Footers    map[string]json.RawMessage `json:"footers,omitempty"`
	Footnotes  map[string]json.RawMessage `json:"footnotes,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ParseDocument decodes a documents.get response.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	doc.Raw = append(json.RawMessage(nil), data...)
	return &doc, nil
}

func (d *Document) MarshalJSON() ([]byte, error) {
	if len(d.Raw) > 0 {
		return d.Raw, nil
	}
	type plain Document
	return json.Marshal((*plain)(d))
}

type Body struct {
	Content []StructuralElement `json:"content"`
}

type StructuralElement struct {
	StartIndex int        `json:"startIndex"`
	EndIndex   int        `json:"endIndex"`
	Paragraph  *Paragraph `json:"paragraph,omitempty"`
}

type Paragraph struct {
	Elements []ParagraphElement `json:"elements"`
}

type ParagraphElement struct {
	StartIndex int      `json:"startIndex"`
	EndIndex   int      `json:"endIndex"`
	TextRun    *TextRun `json:"textRun,omitempty"`
}

type TextRun struct {
	Content string `json:"content"`
}

// objectReplacement fills index positions held by non-text elements.
const objectReplacement = '\uFFFC'

// BodyText returns the body as a TextModel whose index 1 is the first
// addressable position. Tables, inline objects and other non-text elements
// are kept as U+FFFC so that indices line up with the remote document.
func (d *Document) BodyText() *TextModel {
	if d == nil || d.Body == nil {
		return NewTextModel("")
	}
	end := 1
	for _, el := range d.Body.Content {
		if el.EndIndex > end {
			end = el.EndIndex
		}
	}
	units := make([]uint16, end-1)
	for i := range units {
		units[i] = objectReplacement
	}
	for _, el := range d.Body.Content {
		if el.Paragraph == nil {
			continue
		}
		for _, pe := range el.Paragraph.Elements {
			if pe.TextRun == nil {
				continue
			}
			run := utf16.Encode([]rune(pe.TextRun.Content))
			for i, u := range run {
				pos := pe.StartIndex + i - 1
				if pos >= 0 && pos < len(units) {
					units[pos] = u
				}
			}
		}
	}
	return &TextModel{units: units}
}
