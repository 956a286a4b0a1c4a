// Package docsapi is the client for the remote document service's REST
// surface: documents.get and documents.batchUpdate. Every failure it returns
// is an *apierr.Error.
package docsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/user/docugen/internal/apierr"
	"github.com/user/docugen/internal/docs"
)

const DefaultBaseURL = "https://docs.googleapis.com"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 64 << 20

// Client talks to the remote document API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

// New creates a client. A nil hc uses http.DefaultClient.
func New(baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: hc,
		UserAgent:  "docugen",
	}
}

// FetchDocument returns the current snapshot of id.
func (c *Client) FetchDocument(ctx context.Context, id string) (*docs.Document, error) {
	data, err := c.do(ctx, http.MethodGet, "/v1/documents/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	doc, err := docs.ParseDocument(data)
	if err != nil {
		return nil, apierr.Remote(http.StatusOK, fmt.Sprintf("decode document: %v", err))
	}
	return doc, nil
}

// SubmitBatch sends ops as a single batchUpdate. The remote API applies all
// of them or none.
func (c *Client) SubmitBatch(ctx context.Context, id string, ops []docs.Operation, wc *docs.WriteControl) (*docs.BatchUpdateResponse, error) {
	body := docs.BatchUpdateRequest{Requests: ops, WriteControl: wc}
	data, err := c.do(ctx, http.MethodPost, "/v1/documents/"+url.PathEscape(id)+":batchUpdate", body)
	if err != nil {
		return nil, err
	}
	var resp docs.BatchUpdateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apierr.Remote(http.StatusOK, fmt.Sprintf("decode batchUpdate response: %v", err))
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, apierr.Validation(apierr.CodeInvalidRequest, "requests", "marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, apierr.Validation(apierr.CodeInvalidRequest, "document_id", "build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	if resp.StatusCode >= 300 {
		return nil, classifyResponse(resp, data)
	}
	return data, nil
}
