// Package docs models edit operations against a segmented rich-text document
// and orders them so that a batch expressed in pre-batch coordinates can be
// applied atomically.
package docs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Category is the variant of an Operation.
type Category string

const (
	CategoryInsertText       Category = "insert-text"
	CategoryDeleteRange      Category = "delete-range"
	CategoryStyleUpdate      Category = "style-update"
	CategoryStructuralInsert Category = "structural-insert"
	CategoryNamedRange       Category = "named-range-op"
	CategoryWholeDocument    Category = "whole-document-op"
	CategoryUnknown          Category = "unknown"
)

// Request names understood by the remote batch update call.
const (
	ReqInsertText                  = "insertText"
	ReqDeleteContentRange          = "deleteContentRange"
	ReqUpdateTextStyle             = "updateTextStyle"
	ReqUpdateParagraphStyle        = "updateParagraphStyle"
	ReqCreateParagraphBullets      = "createParagraphBullets"
	ReqDeleteParagraphBullets      = "deleteParagraphBullets"
	ReqUpdateSectionStyle          = "updateSectionStyle"
	ReqUpdateTableCellStyle        = "updateTableCellStyle"
	ReqUpdateTableColumnProperties = "updateTableColumnProperties"
	ReqUpdateTableRowStyle         = "updateTableRowStyle"
	ReqMergeTableCells             = "mergeTableCells"
	ReqUnmergeTableCells           = "unmergeTableCells"
	ReqPinTableHeaderRows          = "pinTableHeaderRows"
	ReqInsertTable                 = "insertTable"
	ReqInsertTableRow              = "insertTableRow"
	ReqInsertTableColumn           = "insertTableColumn"
	ReqDeleteTableRow              = "deleteTableRow"
	ReqDeleteTableColumn           = "deleteTableColumn"
	ReqInsertInlineImage           = "insertInlineImage"
	ReqReplaceImage                = "replaceImage"
	ReqInsertPageBreak             = "insertPageBreak"
	ReqInsertSectionBreak          = "insertSectionBreak"
	ReqInsertPerson                = "insertPerson"
	ReqInsertDate                  = "insertDate"
	ReqDeletePositionedObject      = "deletePositionedObject"
	ReqCreateHeader                = "createHeader"
	ReqCreateFooter                = "createFooter"
	ReqCreateFootnote              = "createFootnote"
	ReqDeleteHeader                = "deleteHeader"
	ReqDeleteFooter                = "deleteFooter"
	ReqCreateNamedRange            = "createNamedRange"
	ReqDeleteNamedRange            = "deleteNamedRange"
	ReqReplaceNamedRangeContent    = "replaceNamedRangeContent"
	ReqReplaceAllText              = "replaceAllText"
	ReqUpdateDocumentStyle         = "updateDocumentStyle"
)

var categories = map[string]Category{
	ReqInsertText:                  CategoryInsertText,
	ReqDeleteContentRange:          CategoryDeleteRange,
	ReqUpdateTextStyle:             CategoryStyleUpdate,
	ReqUpdateParagraphStyle:        CategoryStyleUpdate,
	ReqCreateParagraphBullets:      CategoryStyleUpdate,
	ReqDeleteParagraphBullets:      CategoryStyleUpdate,
	ReqUpdateSectionStyle:          CategoryStyleUpdate,
	ReqUpdateTableCellStyle:        CategoryStyleUpdate,
	ReqUpdateTableColumnProperties: CategoryStyleUpdate,
	ReqUpdateTableRowStyle:         CategoryStyleUpdate,
	ReqMergeTableCells:             CategoryStyleUpdate,
	ReqUnmergeTableCells:           CategoryStyleUpdate,
	ReqPinTableHeaderRows:          CategoryStyleUpdate,
	ReqInsertTable:                 CategoryStructuralInsert,
	ReqInsertTableRow:              CategoryStructuralInsert,
	ReqInsertTableColumn:           CategoryStructuralInsert,
	ReqDeleteTableRow:              CategoryStructuralInsert,
	ReqDeleteTableColumn:           CategoryStructuralInsert,
	ReqInsertInlineImage:           CategoryStructuralInsert,
	ReqReplaceImage:                CategoryStructuralInsert,
	ReqInsertPageBreak:             CategoryStructuralInsert,
	ReqInsertSectionBreak:          CategoryStructuralInsert,
	ReqInsertPerson:                CategoryStructuralInsert,
	ReqInsertDate:                  CategoryStructuralInsert,
	ReqDeletePositionedObject:      CategoryStructuralInsert,
	ReqCreateHeader:                CategoryStructuralInsert,
	ReqCreateFooter:                CategoryStructuralInsert,
	ReqCreateFootnote:              CategoryStructuralInsert,
	ReqDeleteHeader:                CategoryStructuralInsert,
	ReqDeleteFooter:                CategoryStructuralInsert,
	ReqCreateNamedRange:            CategoryNamedRange,
	ReqDeleteNamedRange:            CategoryNamedRange,
	ReqReplaceNamedRangeContent:    CategoryNamedRange,
	ReqReplaceAllText:              CategoryWholeDocument,
	ReqUpdateDocumentStyle:         CategoryWholeDocument,
}

// Operation is one request of a batch update. On the wire it is a JSON object
// with a single key naming the request.
type Operation struct {
	Name string
	Body json.RawMessage
}

// NewOperation marshals body under name.
func NewOperation(name string, body any) (Operation, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Operation{}, fmt.Errorf("marshal %s: %w", name, err)
	}
	return Operation{Name: name, Body: raw}, nil
}

// Category reports the variant of op. Unrecognized names are CategoryUnknown.
func (op Operation) Category() Category {
	if c, ok := categories[op.Name]; ok {
		return c
	}
	return CategoryUnknown
}

func (op Operation) MarshalJSON() ([]byte, error) {
	body := op.Body
	if len(bytes.TrimSpace(body)) == 0 {
		body = json.RawMessage(`{}`)
	}
	return json.Marshal(map[string]json.RawMessage{op.Name: body})
}

func (op *Operation) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("operation must have exactly one request kind, got %d", len(m))
	}
	for name, body := range m {
		op.Name = name
		op.Body = body
	}
	return nil
}

// KnownRequest reports whether name is a request this package classifies.
func KnownRequest(name string) bool {
	_, ok := categories[name]
	return ok
}
