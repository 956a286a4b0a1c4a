package docs

import "encoding/json"

// WriteControl pins a batch to a document revision. At most one field is set.
type WriteControl struct {
	RequiredRevisionID string `json:"requiredRevisionId,omitempty"`
	TargetRevisionID   string `json:"targetRevisionId,omitempty"`
}

// BatchUpdateRequest is the body of a batchUpdate call.
type BatchUpdateRequest struct {
	Requests     []Operation   `json:"requests"`
	WriteControl *WriteControl `json:"writeControl,omitempty"`
}

// BatchUpdateResponse is returned by a successful batchUpdate. Replies are
// positional, one per request, and passed through uninterpreted.
type BatchUpdateResponse struct {
	DocumentID   string            `json:"documentId"`
	Replies      []json.RawMessage `json:"replies"`
	WriteControl *WriteControl     `json:"writeControl,omitempty"`
}

// RevisionID returns the revision the document reached, when reported.
func (r *BatchUpdateResponse) RevisionID() string {
	if r == nil || r.WriteControl == nil {
		return ""
	}
	return r.WriteControl.RequiredRevisionID
}
