package docs

// Constructors for the requests the intent layer issues most often. Each
// returns an Operation whose body matches the remote request shape; formatting
// payloads are passed through untouched.

// Location addresses a point in a segment. An empty SegmentID is the body.
type Location struct {
	Index     int    `json:"index"`
	SegmentID string `json:"segmentId,omitempty"`
	TabID     string `json:"tabId,omitempty"`
}

// EndOfSegment addresses the end of a segment.
type EndOfSegment struct {
	SegmentID string `json:"segmentId,omitempty"`
	TabID     string `json:"tabId,omitempty"`
}

// Range is a half-open [StartIndex, EndIndex) span in a segment.
type Range struct {
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
	SegmentID  string `json:"segmentId,omitempty"`
	TabID      string `json:"tabId,omitempty"`
}

type Size struct {
	Height Dimension `json:"height"`
	Width  Dimension `json:"width"`
}

type Dimension struct {
	Magnitude float64 `json:"magnitude"`
	Unit      string  `json:"unit"`
}

func mustOperation(name string, body any) Operation {
	op, err := NewOperation(name, body)
	if err != nil {
		// Bodies below are plain structs and maps; marshal cannot fail.
		panic(err)
	}
	return op
}

func InsertText(loc Location, text string) Operation {
	return mustOperation(ReqInsertText, map[string]any{"location": loc, "text": text})
}

func AppendText(end EndOfSegment, text string) Operation {
	return mustOperation(ReqInsertText, map[string]any{"endOfSegmentLocation": end, "text": text})
}

func DeleteRange(r Range) Operation {
	return mustOperation(ReqDeleteContentRange, map[string]any{"range": r})
}

// UpdateTextStyle applies style (a TextStyle object) limited to fields.
func UpdateTextStyle(r Range, style map[string]any, fields string) Operation {
	return mustOperation(ReqUpdateTextStyle, map[string]any{"range": r, "textStyle": style, "fields": fields})
}

// UpdateParagraphStyle applies style (a ParagraphStyle object) limited to fields.
func UpdateParagraphStyle(r Range, style map[string]any, fields string) Operation {
	return mustOperation(ReqUpdateParagraphStyle, map[string]any{"range": r, "paragraphStyle": style, "fields": fields})
}

func InsertTable(loc Location, rows, columns int) Operation {
	return mustOperation(ReqInsertTable, map[string]any{"location": loc, "rows": rows, "columns": columns})
}

func InsertInlineImage(loc Location, uri string, size *Size) Operation {
	body := map[string]any{"location": loc, "uri": uri}
	if size != nil {
		body["objectSize"] = size
	}
	return mustOperation(ReqInsertInlineImage, body)
}

func InsertPageBreak(loc Location) Operation {
	return mustOperation(ReqInsertPageBreak, map[string]any{"location": loc})
}

func CreateNamedRange(name string, r Range) Operation {
	return mustOperation(ReqCreateNamedRange, map[string]any{"name": name, "range": r})
}

func DeleteNamedRange(name string) Operation {
	return mustOperation(ReqDeleteNamedRange, map[string]any{"name": name})
}

func ReplaceAllText(find, replace string, matchCase bool) Operation {
	return mustOperation(ReqReplaceAllText, map[string]any{
		"containsText": map[string]any{"text": find, "matchCase": matchCase},
		"replaceText":  replace,
	})
}

// CreateHeader creates a header of the given type ("DEFAULT").
func CreateHeader(kind string) Operation {
	return mustOperation(ReqCreateHeader, map[string]any{"type": kind})
}

// CreateFooter creates a footer of the given type ("DEFAULT").
func CreateFooter(kind string) Operation {
	return mustOperation(ReqCreateFooter, map[string]any{"type": kind})
}

func CreateFootnote(loc Location) Operation {
	return mustOperation(ReqCreateFootnote, map[string]any{"location": loc})
}
