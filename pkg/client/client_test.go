package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/docugen/internal/apierr"
	"github.com/user/docugen/internal/config"
	"github.com/user/docugen/internal/coordinator"
	"github.com/user/docugen/internal/docs"
	"github.com/user/docugen/internal/server"
)

const bodyDoc = `{
	"documentId": "doc-1",
	"revisionId": "rev-1",
	"body": {"content": [
		{"endIndex": 1, "sectionBreak": {}},
		{"startIndex": 1, "endIndex": 7, "paragraph": {"elements": [
			{"startIndex": 1, "endIndex": 7, "textRun": {"content": "Hello\n"}}
		]}}
	]}
}`

type remote struct {
	mu      sync.Mutex
	submits int
	lastWC  *docs.WriteControl
}

func (r *remote) FetchDocument(_ context.Context, id string) (*docs.Document, error) {
	if id != "doc-1" {
		return nil, apierr.Remote(http.StatusNotFound, "document not found")
	}
	return docs.ParseDocument([]byte(bodyDoc))
}

func (r *remote) SubmitBatch(_ context.Context, id string, ops []docs.Operation, wc *docs.WriteControl) (*docs.BatchUpdateResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submits++
	r.lastWC = wc
	replies := make([]json.RawMessage, len(ops))
	for i := range replies {
		replies[i] = json.RawMessage(`{}`)
	}
	return &docs.BatchUpdateResponse{
		DocumentID:   id,
		Replies:      replies,
		WriteControl: &docs.WriteControl{RequiredRevisionID: "rev-2"},
	}, nil
}

func testClient(t *testing.T) (*Client, *remote) {
	t.Helper()
	api := &remote{}
	coord := coordinator.New(api, coordinator.Options{})
	coord.Retry().Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	srv := server.New(coord, config.Default())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return New(ts.URL), api
}

func insertAt(index int, text string) json.RawMessage {
	return json.RawMessage(`{"insertText": {"location": {"index": ` + itoa(index) + `}, "text": "` + text + `"}}`)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestClientApply(t *testing.T) {
	c, api := testClient(t)
	ctx := context.Background()

	res, err := c.Apply(ctx, "doc-1", []json.RawMessage{insertAt(1, "a"), insertAt(4, "b")}, WithRequiredRevision("rev-1"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.BatchID == "" || res.RevisionID != "rev-2" {
		t.Errorf("result = %+v", res)
	}
	if len(res.Order) != 2 || res.Order[0].Input != 1 {
		t.Errorf("order = %+v", res.Order)
	}
	if api.lastWC == nil || api.lastWC.RequiredRevisionID != "rev-1" {
		t.Errorf("write control = %+v", api.lastWC)
	}
}

func TestClientPlan(t *testing.T) {
	c, api := testClient(t)
	plan, err := c.Plan(context.Background(), "doc-1", []json.RawMessage{insertAt(1, "a")})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Order) != 1 || plan.Bytes == 0 {
		t.Errorf("plan = %+v", plan)
	}
	if api.submits != 0 {
		t.Errorf("plan submitted %d batches", api.submits)
	}
}

func TestClientPreview(t *testing.T) {
	c, _ := testClient(t)
	res, err := c.Preview(context.Background(), "doc-1", []json.RawMessage{insertAt(6, "!")})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.After != "Hello!\n" {
		t.Errorf("after = %q", res.After)
	}
}

func TestClientDocumentAndCache(t *testing.T) {
	c, _ := testClient(t)
	ctx := context.Background()

	doc, hit, err := c.Document(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if hit || !strings.Contains(string(doc), `"doc-1"`) {
		t.Errorf("first read hit = %v doc = %s", hit, doc)
	}
	if _, hit, _ = c.Document(ctx, "doc-1"); !hit {
		t.Error("second read missed the cache")
	}
	if err := c.InvalidateCache(ctx, "doc-1"); err != nil {
		t.Fatalf("InvalidateCache: %v", err)
	}
	if _, hit, _ = c.Document(ctx, "doc-1"); hit {
		t.Error("read after invalidate hit the cache")
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	var s struct {
		Cache struct {
			Hits          int `json:"hits"`
			Invalidations int `json:"invalidations"`
		} `json:"cache"`
	}
	if err := json.Unmarshal(stats, &s); err != nil {
		t.Fatal(err)
	}
	if s.Cache.Hits != 1 || s.Cache.Invalidations != 1 {
		t.Errorf("cache stats = %+v", s.Cache)
	}
}

func TestClientErrors(t *testing.T) {
	c, _ := testClient(t)
	ctx := context.Background()

	_, _, err := c.Document(ctx, "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("err = %v", err)
	}

	_, err = c.Apply(ctx, "doc-1", []json.RawMessage{insertAt(0, "a")})
	if !errors.As(err, &apiErr) || apiErr.Code != "INVALID_ANCHOR" || apiErr.Param == "" {
		t.Fatalf("err = %v", err)
	}
}

func TestClientSendsToken(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL)
	c.Token = "tok"
	if _, err := c.Stats(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer tok" {
		t.Errorf("Authorization = %q", got)
	}
}
