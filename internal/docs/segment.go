package docs

import (
	"fmt"
	"strings"
)

// SegmentKind names an independently addressable region of a document.
type SegmentKind string

const (
	SegmentBody      SegmentKind = "body"
	SegmentHeader    SegmentKind = "header"
	SegmentFooter    SegmentKind = "footer"
	SegmentFootnote  SegmentKind = "footnote"
	// SegmentOther is a non-empty segment id whose kind is not known from a
	// snapshot.
	SegmentOther SegmentKind = "segment"
)

// TableCell locates a cell by the start index of its table. TableStart is an
// offset in the segment that contains the table. Row and Column are -1 when
// the operation addresses the table as a whole.
type TableCell struct {
	TableStart int
	Row        int
	Column     int
}

// Segment identifies one offset space. Two anchors are comparable only when
// their segments have the same Key.
type Segment struct {
	Kind  SegmentKind
	ID    string
	TabID string
}

// Key returns the ordering key of s.
func (s Segment) Key() string {
	var b strings.Builder
	if s.TabID != "" {
		b.WriteString("tab:")
		b.WriteString(s.TabID)
		b.WriteByte('/')
	}
	switch s.Kind {
	case SegmentBody, "":
		b.WriteString(string(SegmentBody))
	default:
		b.WriteString(string(s.Kind))
		b.WriteByte(':')
		b.WriteString(s.ID)
	}
	return b.String()
}

// Anchor is the position an operation applies at. Offsets are UTF-16 code
// units counted from 1 within the segment.
type Anchor struct {
	Segment Segment
	Offset  int
	// EndOfSegment anchors sit after every numeric offset of their segment.
	EndOfSegment bool
	// Span is set for range anchors; End is then the exclusive end.
	Span bool
	End  int
	// Table is set for table operations. Their Offset is Table.TableStart in
	// the containing segment, so they order against that segment's edits.
	Table *TableCell
}

func (a Anchor) String() string {
	if a.EndOfSegment {
		return a.Segment.Key() + "@end"
	}
	if a.Table != nil {
		return fmt.Sprintf("%s@%d table(%d,%d)", a.Segment.Key(), a.Offset, a.Table.Row, a.Table.Column)
	}
	return fmt.Sprintf("%s@%d", a.Segment.Key(), a.Offset)
}
