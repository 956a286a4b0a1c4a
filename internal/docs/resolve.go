package docs

import (
	"encoding/json"
	"log/slog"

	"github.com/user/docugen/internal/redact"
)

type wireLocation struct {
	Index     *int   `json:"index"`
	SegmentID string `json:"segmentId"`
	TabID     string `json:"tabId"`
}

type wireEndOfSegment struct {
	SegmentID string `json:"segmentId"`
	TabID     string `json:"tabId"`
}

type wireRange struct {
	StartIndex *int   `json:"startIndex"`
	EndIndex   *int   `json:"endIndex"`
	SegmentID  string `json:"segmentId"`
	TabID      string `json:"tabId"`
}

type wireTableCellLocation struct {
	TableStartLocation *wireLocation `json:"tableStartLocation"`
	RowIndex           int           `json:"rowIndex"`
	ColumnIndex        int           `json:"columnIndex"`
}

type wirePositional struct {
	Location             *wireLocation          `json:"location"`
	EndOfSegmentLocation *wireEndOfSegment      `json:"endOfSegmentLocation"`
	Range                *wireRange             `json:"range"`
	TableCellLocation    *wireTableCellLocation `json:"tableCellLocation"`
	TableStartLocation   *wireLocation          `json:"tableStartLocation"`
	TableRange           *struct {
		TableCellLocation *wireTableCellLocation `json:"tableCellLocation"`
	} `json:"tableRange"`
}

type anchorSource int

const (
	fromNone anchorSource = iota
	fromLocation
	fromRange
	fromTableCell
	fromTableStart
)

var anchorSources = map[string]anchorSource{
	ReqInsertText:                  fromLocation,
	ReqInsertTable:                 fromLocation,
	ReqInsertInlineImage:           fromLocation,
	ReqInsertPageBreak:             fromLocation,
	ReqInsertSectionBreak:          fromLocation,
	ReqCreateFootnote:              fromLocation,
	ReqInsertPerson:                fromLocation,
	ReqInsertDate:                  fromLocation,
	ReqDeleteContentRange:          fromRange,
	ReqUpdateTextStyle:             fromRange,
	ReqUpdateParagraphStyle:        fromRange,
	ReqCreateParagraphBullets:      fromRange,
	ReqDeleteParagraphBullets:      fromRange,
	ReqCreateNamedRange:            fromRange,
	ReqUpdateSectionStyle:          fromRange,
	ReqInsertTableRow:              fromTableCell,
	ReqInsertTableColumn:           fromTableCell,
	ReqDeleteTableRow:              fromTableCell,
	ReqDeleteTableColumn:           fromTableCell,
	ReqUpdateTableCellStyle:        fromTableCell,
	ReqMergeTableCells:             fromTableCell,
	ReqUnmergeTableCells:           fromTableCell,
	ReqUpdateTableColumnProperties: fromTableStart,
	ReqUpdateTableRowStyle:         fromTableStart,
	ReqPinTableHeaderRows:          fromTableStart,
	// Whole-document and id-addressed requests are unordered.
	ReqReplaceAllText:           fromNone,
	ReqUpdateDocumentStyle:      fromNone,
	ReqDeleteNamedRange:         fromNone,
	ReqReplaceNamedRangeContent: fromNone,
	ReqDeletePositionedObject:   fromNone,
	ReqReplaceImage:             fromNone,
	ReqCreateHeader:             fromNone,
	ReqCreateFooter:             fromNone,
	ReqDeleteHeader:             fromNone,
	ReqDeleteFooter:             fromNone,
}

// Resolver extracts anchors from operations. The zero value resolves every
// non-empty segment id to SegmentOther; a Resolver built from a snapshot
// knows which ids are headers, footers and footnotes.
type Resolver struct {
	kinds map[string]SegmentKind
}

// NewResolver returns a Resolver that knows the segments of doc. A nil doc
// yields the zero Resolver.
func NewResolver(doc *Document) *Resolver {
	r := &Resolver{kinds: map[string]SegmentKind{}}
	if doc == nil {
		return r
	}
	for id := range doc.Headers {
		r.kinds[id] = SegmentHeader
	}
	for id := range doc.Footers {
		r.kinds[id] = SegmentFooter
	}
	for id := range doc.Footnotes {
		r.kinds[id] = SegmentFootnote
	}
	return r
}

// Knows reports whether segmentID is body or a segment present in the
// snapshot the resolver was built from.
func (r *Resolver) Knows(segmentID string) bool {
	if segmentID == "" {
		return true
	}
	if r == nil {
		return false
	}
	_, ok := r.kinds[segmentID]
	return ok
}

// Resolve returns the anchor of op, or ok=false when op is unordered.
// It never fails: malformed or unrecognized operations resolve unordered and
// are logged.
func (r *Resolver) Resolve(op Operation) (Anchor, bool) {
	src, known := anchorSources[op.Name]
	if !known {
		slog.Warn("unrecognized operation resolved as unordered", "request", op.Name)
		return Anchor{}, false
	}
	if src == fromNone {
		return Anchor{}, false
	}

	var w wirePositional
	if err := json.Unmarshal(op.Body, &w); err != nil {
		slog.Warn("undecodable operation resolved as unordered", "request", op.Name, "error", redact.Error(err))
		return Anchor{}, false
	}

	switch src {
	case fromLocation:
		if w.Location != nil && w.Location.Index != nil {
			return Anchor{
				Segment: r.segment(w.Location.SegmentID, w.Location.TabID),
				Offset:  *w.Location.Index,
			}, true
		}
		if w.EndOfSegmentLocation != nil {
			return Anchor{
				Segment:      r.segment(w.EndOfSegmentLocation.SegmentID, w.EndOfSegmentLocation.TabID),
				EndOfSegment: true,
			}, true
		}
	case fromRange:
		if w.Range != nil && w.Range.StartIndex != nil {
			a := Anchor{
				Segment: r.segment(w.Range.SegmentID, w.Range.TabID),
				Offset:  *w.Range.StartIndex,
				Span:    true,
			}
			if w.Range.EndIndex != nil {
				a.End = *w.Range.EndIndex
			}
			return a, true
		}
	case fromTableCell:
		loc := w.TableCellLocation
		if loc == nil && w.TableRange != nil {
			loc = w.TableRange.TableCellLocation
		}
		if loc != nil && loc.TableStartLocation != nil && loc.TableStartLocation.Index != nil {
			return r.tableAnchor(loc.TableStartLocation, loc.RowIndex, loc.ColumnIndex), true
		}
	case fromTableStart:
		if w.TableStartLocation != nil && w.TableStartLocation.Index != nil {
			return r.tableAnchor(w.TableStartLocation, -1, -1), true
		}
	}

	slog.Warn("operation has no usable anchor; resolved as unordered", "request", op.Name)
	return Anchor{}, false
}

// CreatesSegment reports whether op brings a new segment into existence.
func (r *Resolver) CreatesSegment(op Operation) bool {
	switch op.Name {
	case ReqCreateHeader, ReqCreateFooter, ReqCreateFootnote:
		return true
	default:
		return false
	}
}

func (r *Resolver) tableAnchor(start *wireLocation, row, col int) Anchor {
	return Anchor{
		Segment: r.segment(start.SegmentID, start.TabID),
		Offset:  *start.Index,
		Table:   &TableCell{TableStart: *start.Index, Row: row, Column: col},
	}
}

func (r *Resolver) segment(id, tab string) Segment {
	if id == "" {
		return Segment{Kind: SegmentBody, TabID: tab}
	}
	kind := SegmentOther
	if r != nil {
		if k, ok := r.kinds[id]; ok {
			kind = k
		}
	}
	return Segment{Kind: kind, ID: id, TabID: tab}
}
