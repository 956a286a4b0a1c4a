// Package client is a thin HTTP wrapper for the docugen API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to a docugen server.
type Client struct {
	URL        string
	HTTPClient *http.Client
	// Token, when set, is sent as a bearer token.
	Token string
}

// New creates a new docugen client.
func New(url string) *Client {
	return &Client{
		URL: url,
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	Param   string
}

func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param %s)", e.Code, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// BatchOption configures a batch, plan or preview request.
type BatchOption func(map[string]interface{})

// WithRequiredRevision fails the batch unless the document is still at rev.
func WithRequiredRevision(rev string) BatchOption {
	return func(m map[string]interface{}) { m["required_revision_id"] = rev }
}

// WithTargetRevision applies the batch against rev, merging later edits.
func WithTargetRevision(rev string) BatchOption {
	return func(m map[string]interface{}) { m["target_revision_id"] = rev }
}

// PlannedOp is one operation's place in the submission order.
type PlannedOp struct {
	Input      int    `json:"input"`
	Request    string `json:"request"`
	Anchor     string `json:"anchor,omitempty"`
	Positional bool   `json:"positional"`
}

// ApplyResult is the response to an applied batch.
type ApplyResult struct {
	BatchID    string            `json:"batch_id"`
	DocumentID string            `json:"document_id"`
	Order      []PlannedOp       `json:"order"`
	Replies    []json.RawMessage `json:"replies"`
	RevisionID string            `json:"revision_id,omitempty"`
	Attempts   int               `json:"attempts"`
}

// PlanResult is the response to a dry run.
type PlanResult struct {
	DocumentID string      `json:"document_id"`
	Order      []PlannedOp `json:"order"`
	Bytes      int         `json:"bytes"`
}

// PreviewResult is the local simulation of a batch against body text.
type PreviewResult struct {
	DocumentID string      `json:"document_id"`
	RevisionID string      `json:"revision_id"`
	Order      []PlannedOp `json:"order"`
	Before     string      `json:"before"`
	After      string      `json:"after"`
	Diff       string      `json:"diff"`
	Skipped    int         `json:"skipped"`
}

func batchBody(requests []json.RawMessage, opts []BatchOption) map[string]interface{} {
	body := map[string]interface{}{"requests": requests}
	for _, opt := range opts {
		opt(body)
	}
	return body
}

// Apply submits requests as one atomic batch.
func (c *Client) Apply(ctx context.Context, documentID string, requests []json.RawMessage, opts ...BatchOption) (*ApplyResult, error) {
	var result ApplyResult
	if err := c.post(ctx, documentPath(documentID, "/batch"), batchBody(requests, opts), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Plan validates and orders requests without submitting them.
func (c *Client) Plan(ctx context.Context, documentID string, requests []json.RawMessage, opts ...BatchOption) (*PlanResult, error) {
	body := batchBody(requests, opts)
	body["dry_run"] = true
	var result PlanResult
	if err := c.post(ctx, documentPath(documentID, "/batch"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Preview simulates requests against the document's body text.
func (c *Client) Preview(ctx context.Context, documentID string, requests []json.RawMessage) (*PreviewResult, error) {
	var result PreviewResult
	if err := c.post(ctx, documentPath(documentID, "/preview"), batchBody(requests, nil), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Document returns the document snapshot and whether the server's cache
// served it.
func (c *Client) Document(ctx context.Context, documentID string) (json.RawMessage, bool, error) {
	var result json.RawMessage
	hdr, err := c.doRequest(ctx, "GET", documentPath(documentID, ""), nil, &result)
	if err != nil {
		return nil, false, err
	}
	return result, hdr.Get("X-Cache") == "hit", nil
}

// InvalidateCache drops the server's cached snapshot of documentID.
func (c *Client) InvalidateCache(ctx context.Context, documentID string) error {
	_, err := c.doRequest(ctx, "DELETE", documentPath(documentID, "/cache"), nil, nil)
	return err
}

// Stats returns the server's cache and batch counters.
func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.get(ctx, "/api/v1/stats", &result); err != nil {
		return nil, err
	}
	return result, nil
}

func documentPath(id, suffix string) string {
	return "/api/v1/documents/" + url.PathEscape(id) + suffix
}

// HTTP helpers

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	_, err := c.doRequest(ctx, "GET", path, nil, result)
	return err
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	_, err := c.doRequest(ctx, "POST", path, body, result)
	return err
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
			Param string `json:"param"`
		}
		json.Unmarshal(data, &apiErr)
		return nil, &APIError{Status: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Error, Param: apiErr.Param}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return nil, err
		}
	}
	return resp.Header, nil
}
