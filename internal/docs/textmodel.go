package docs

import (
	"encoding/json"
	"fmt"
	"unicode/utf16"
)

// TextModel is a single segment's content as UTF-16 code units, addressed
// from 1 the way the remote document addresses it.
type TextModel struct {
	units []uint16
}

func NewTextModel(s string) *TextModel {
	return &TextModel{units: utf16.Encode([]rune(s))}
}

func (m *TextModel) String() string {
	return string(utf16.Decode(m.units))
}

// Len returns the length in UTF-16 code units.
func (m *TextModel) Len() int {
	return len(m.units)
}

// Insert places text before position index. Index Len()+1 appends.
func (m *TextModel) Insert(index int, text string) error {
	if index < 1 || index > len(m.units)+1 {
		return fmt.Errorf("insert index %d out of bounds [1,%d]", index, len(m.units)+1)
	}
	ins := utf16.Encode([]rune(text))
	pos := index - 1
	out := make([]uint16, 0, len(m.units)+len(ins))
	out = append(out, m.units[:pos]...)
	out = append(out, ins...)
	out = append(out, m.units[pos:]...)
	m.units = out
	return nil
}

// Delete removes [start, end).
func (m *TextModel) Delete(start, end int) error {
	if start < 1 || end <= start || end > len(m.units)+1 {
		return fmt.Errorf("delete range [%d,%d) out of bounds [1,%d]", start, end, len(m.units)+1)
	}
	m.units = append(m.units[:start-1], m.units[end-1:]...)
	return nil
}

// Apply applies a text-changing operation whose anchor lies in the model's
// segment. It reports false for operations that do not change text content.
func (m *TextModel) Apply(op Operation) (bool, error) {
	switch op.Name {
	case ReqInsertText:
		var body struct {
			Text                 string            `json:"text"`
			Location             *wireLocation     `json:"location"`
			EndOfSegmentLocation *wireEndOfSegment `json:"endOfSegmentLocation"`
		}
		if err := json.Unmarshal(op.Body, &body); err != nil {
			return false, fmt.Errorf("decode insertText: %w", err)
		}
		// A segment always ends with a newline; end-of-segment text goes
		// before it.
		index := len(m.units) + 1
		if n := len(m.units); n > 0 && m.units[n-1] == '\n' {
			index = n
		}
		if body.Location != nil && body.Location.Index != nil {
			index = *body.Location.Index
		}
		return true, m.Insert(index, body.Text)
	case ReqDeleteContentRange:
		var body struct {
			Range *wireRange `json:"range"`
		}
		if err := json.Unmarshal(op.Body, &body); err != nil {
			return false, fmt.Errorf("decode deleteContentRange: %w", err)
		}
		if body.Range == nil || body.Range.StartIndex == nil || body.Range.EndIndex == nil {
			return false, fmt.Errorf("deleteContentRange without range")
		}
		return true, m.Delete(*body.Range.StartIndex, *body.Range.EndIndex)
	default:
		return false, nil
	}
}
