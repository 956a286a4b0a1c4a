package docs

import (
	"encoding/json"
	"testing"
)

func TestResolveClassifiesEveryKnownRequest(t *testing.T) {
	for name := range categories {
		if _, ok := anchorSources[name]; !ok {
			t.Errorf("request %s has a category but no anchor source", name)
		}
	}
	for name := range anchorSources {
		if !KnownRequest(name) {
			t.Errorf("request %s has an anchor source but no category", name)
		}
	}
}

func TestResolveAnchors(t *testing.T) {
	doc := &Document{
		Headers:   map[string]json.RawMessage{"kix.h": nil},
		Footers:   map[string]json.RawMessage{"kix.f": nil},
		Footnotes: map[string]json.RawMessage{"kix.n": nil},
	}
	r := NewResolver(doc)

	cases := []struct {
		name       string
		op         Operation
		positional bool
		key        string
		offset     int
	}{
		{"insert body", InsertText(Location{Index: 12}, "x"), true, "body", 12},
		{"insert header", InsertText(Location{Index: 3, SegmentID: "kix.h"}, "x"), true, "header:kix.h", 3},
		{"insert footer", InsertText(Location{Index: 1, SegmentID: "kix.f"}, "x"), true, "footer:kix.f", 1},
		{"insert footnote", InsertText(Location{Index: 2, SegmentID: "kix.n"}, "x"), true, "footnote:kix.n", 2},
		{"insert unknown segment", InsertText(Location{Index: 2, SegmentID: "kix.zz"}, "x"), true, "segment:kix.zz", 2},
		{"insert tab", InsertText(Location{Index: 4, TabID: "t.1"}, "x"), true, "tab:t.1/body", 4},
		{"delete range", DeleteRange(Range{StartIndex: 5, EndIndex: 9}), true, "body", 5},
		{"text style", UpdateTextStyle(Range{StartIndex: 7, EndIndex: 8}, map[string]any{"bold": true}, "bold"), true, "body", 7},
		{"named range create", CreateNamedRange("n", Range{StartIndex: 3, EndIndex: 6}), true, "body", 3},
		{"table", InsertTable(Location{Index: 30}, 2, 3), true, "body", 30},
		{"image", InsertInlineImage(Location{Index: 8}, "https://example.com/a.png", nil), true, "body", 8},
		{"page break", InsertPageBreak(Location{Index: 8}), true, "body", 8},
		{"footnote create", CreateFootnote(Location{Index: 15}), true, "body", 15},
		{"replace all", ReplaceAllText("a", "b", false), false, "", 0},
		{"named range delete", DeleteNamedRange("n"), false, "", 0},
		{"header create", CreateHeader("DEFAULT"), false, "", 0},
		{"footer create", CreateFooter("DEFAULT"), false, "", 0},
		{"document style", Operation{Name: ReqUpdateDocumentStyle, Body: json.RawMessage(`{"documentStyle":{},"fields":"*"}`)}, false, "", 0},
		{"unknown", Operation{Name: "teleport", Body: json.RawMessage(`{"location":{"index":3}}`)}, false, "", 0},
		{"malformed body", Operation{Name: ReqInsertText, Body: json.RawMessage(`[1,2]`)}, false, "", 0},
		{"missing location", Operation{Name: ReqInsertText, Body: json.RawMessage(`{"text":"x"}`)}, false, "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, ok := r.Resolve(tc.op)
			if ok != tc.positional {
				t.Fatalf("positional = %v, want %v", ok, tc.positional)
			}
			if !ok {
				return
			}
			if a.Segment.Key() != tc.key {
				t.Errorf("key = %q, want %q", a.Segment.Key(), tc.key)
			}
			if a.Offset != tc.offset {
				t.Errorf("offset = %d, want %d", a.Offset, tc.offset)
			}
		})
	}
}

func TestResolveTableCell(t *testing.T) {
	op := Operation{Name: ReqInsertTableRow, Body: json.RawMessage(`{
		"tableCellLocation": {"tableStartLocation": {"index": 42}, "rowIndex": 1, "columnIndex": 2},
		"insertBelow": true
	}`)}
	a, ok := (&Resolver{}).Resolve(op)
	if !ok {
		t.Fatal("table row insert resolved unordered")
	}
	if a.Segment.Kind != SegmentBody || a.Offset != 42 {
		t.Fatalf("anchor = %s, want the containing body at the table start", a)
	}
	if a.Table == nil || a.Table.Row != 1 || a.Table.Column != 2 {
		t.Fatalf("table = %+v, want row 1 column 2", a.Table)
	}
	if got, want := a.String(), "body@42 table(1,2)"; got != want {
		t.Fatalf("anchor = %q, want %q", got, want)
	}

	merge := Operation{Name: ReqMergeTableCells, Body: json.RawMessage(`{
		"tableRange": {"tableCellLocation": {"tableStartLocation": {"index": 42}, "rowIndex": 0, "columnIndex": 0}, "rowSpan": 2, "columnSpan": 2}
	}`)}
	if a, ok := (&Resolver{}).Resolve(merge); !ok || a.Table.TableStart != 42 {
		t.Fatalf("merge anchor = %+v ok=%v", a, ok)
	}

	pin := Operation{Name: ReqPinTableHeaderRows, Body: json.RawMessage(`{"tableStartLocation": {"index": 42}, "pinnedHeaderRowsCount": 1}`)}
	a, ok = (&Resolver{}).Resolve(pin)
	if !ok || a.Segment.Key() != "body" || a.Table.Row != -1 || a.Table.Column != -1 {
		t.Fatalf("pin anchor = %s ok=%v", a, ok)
	}

	inHeader := Operation{Name: ReqDeleteTableColumn, Body: json.RawMessage(`{
		"tableCellLocation": {"tableStartLocation": {"segmentId": "kix.h1", "index": 3}, "rowIndex": 0, "columnIndex": 1}
	}`)}
	a, ok = NewResolver(&Document{Headers: map[string]json.RawMessage{"kix.h1": nil}}).Resolve(inHeader)
	if !ok || a.Segment.Key() != "header:kix.h1" || a.Offset != 3 {
		t.Fatalf("header table anchor = %s ok=%v", a, ok)
	}
}

func TestResolveRangeEnd(t *testing.T) {
	a, ok := (*Resolver)(nil).Resolve(DeleteRange(Range{StartIndex: 4, EndIndex: 11}))
	if !ok || a.End != 11 {
		t.Fatalf("anchor = %+v ok=%v, want end 11", a, ok)
	}
}

func TestCreatesSegment(t *testing.T) {
	r := &Resolver{}
	for _, op := range []Operation{CreateHeader("DEFAULT"), CreateFooter("DEFAULT"), CreateFootnote(Location{Index: 2})} {
		if !r.CreatesSegment(op) {
			t.Errorf("%s should create a segment", op.Name)
		}
	}
	if r.CreatesSegment(InsertText(Location{Index: 1}, "x")) {
		t.Error("insertText should not create a segment")
	}
}

func TestResolverKnows(t *testing.T) {
	r := NewResolver(&Document{Footers: map[string]json.RawMessage{"kix.f": nil}})
	if !r.Knows("") || !r.Knows("kix.f") {
		t.Fatal("resolver should know body and kix.f")
	}
	if r.Knows("kix.new") {
		t.Fatal("resolver should not know kix.new")
	}
}

func TestOperationJSONRoundTrip(t *testing.T) {
	op := InsertText(Location{Index: 3}, "hi")
	data, err := json.Marshal(op)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Operation
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Name != ReqInsertText || back.Category() != CategoryInsertText {
		t.Fatalf("back = %+v", back)
	}
	if err := json.Unmarshal([]byte(`{"a":{},"b":{}}`), &back); err == nil {
		t.Fatal("expected error for two request kinds")
	}
}
