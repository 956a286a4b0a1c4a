package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/user/docugen/internal/apierr"
	"github.com/user/docugen/internal/docs"
)

const bodyDoc = `{
	"documentId": "doc-1",
	"revisionId": "rev-1",
	"body": {"content": [
		{"endIndex": 1, "sectionBreak": {}},
		{"startIndex": 1, "endIndex": 13, "paragraph": {"elements": [
			{"startIndex": 1, "endIndex": 13, "textRun": {"content": "Hello world\n"}}
		]}}
	]},
	"headers": {"kix.h1": {}}
}`

type fakeAPI struct {
	mu          sync.Mutex
	fetches     int
	submits     int
	submitErrs  []error
	fetchErrs   []error
	lastOps     []docs.Operation
	docJSON     string
	submitDelay time.Duration

	// fetchGate, when set, is signalled on fetchStarted once the snapshot
	// is read and blocks the return until it is closed.
	fetchStarted chan struct{}
	fetchGate    chan struct{}
}

func (f *fakeAPI) FetchDocument(_ context.Context, id string) (*docs.Document, error) {
	f.mu.Lock()
	f.fetches++
	if f.fetches <= len(f.fetchErrs) {
		err := f.fetchErrs[f.fetches-1]
		f.mu.Unlock()
		return nil, err
	}
	raw := f.docJSON
	if raw == "" {
		raw = bodyDoc
	}
	started, gate := f.fetchStarted, f.fetchGate
	f.fetchStarted, f.fetchGate = nil, nil
	f.mu.Unlock()

	doc, err := docs.ParseDocument([]byte(raw))
	if gate != nil {
		close(started)
		<-gate
	}
	return doc, err
}

func (f *fakeAPI) SubmitBatch(_ context.Context, id string, ops []docs.Operation, _ *docs.WriteControl) (*docs.BatchUpdateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submits <= len(f.submitErrs) {
		return nil, f.submitErrs[f.submits-1]
	}
	f.lastOps = ops
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

func testCoordinator(t *testing.T, api *fakeAPI, opts Options) (*Coordinator, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	opts.Tracer = tp.Tracer("test")

	c := New(api, opts)
	c.Retry().Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return c, sr
}

func TestApplyOrdersAndInvalidates(t *testing.T) {
	api := &fakeAPI{}
	c, _ := testCoordinator(t, api, Options{})
	ctx := context.Background()

	if _, _, err := c.Document(ctx, "doc-1"); err != nil {
		t.Fatalf("Document: %v", err)
	}
	if c.Cache().Len() != 1 {
		t.Fatal("snapshot not cached")
	}

	res, err := c.Apply(ctx, ApplyRequest{
		DocumentID: "doc-1",
		Operations: []docs.Operation{
			docs.ReplaceAllText("a", "b", false),
			docs.InsertText(docs.Location{Index: 1}, "A"),
			docs.InsertText(docs.Location{Index: 7}, "B"),
		},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.BatchID == "" || res.RevisionID != "rev-2" || len(res.Replies) != 3 {
		t.Fatalf("result = %+v", res)
	}
	wantInputs := []int{2, 1, 0}
	for i, p := range res.Order {
		if p.Input != wantInputs[i] {
			t.Fatalf("order = %+v, want inputs %v", res.Order, wantInputs)
		}
	}
	if api.lastOps[2].Name != docs.ReqReplaceAllText {
		t.Fatalf("unordered op not last: %s", api.lastOps[2].Name)
	}
	if c.Cache().Len() != 0 {
		t.Fatal("cache not invalidated after success")
	}
	if tot := c.Metrics().Totals(); tot.Applied != 1 || tot.Operations != 3 {
		t.Fatalf("metrics = %+v", tot)
	}
}

func TestApplyFailureKeepsCache(t *testing.T) {
	api := &fakeAPI{submitErrs: []error{apierr.Remote(400, "invalid requests[0]")}}
	c, _ := testCoordinator(t, api, Options{})
	ctx := context.Background()
	c.Document(ctx, "doc-1")

	_, err := c.Apply(ctx, ApplyRequest{
		DocumentID: "doc-1",
		Operations: []docs.Operation{docs.InsertText(docs.Location{Index: 1}, "A")},
	})
	if apierr.KindOf(err) != apierr.KindRemote {
		t.Fatalf("err = %v, want remote", err)
	}
	if c.Cache().Len() != 1 {
		t.Fatal("cache invalidated after failure")
	}
	if tot := c.Metrics().Totals(); tot.Failed != 1 || tot.ByKind["remote"] != 1 {
		t.Fatalf("metrics = %+v", tot)
	}
}

func TestApplyOversizeNeverSubmits(t *testing.T) {
	api := &fakeAPI{}
	c, _ := testCoordinator(t, api, Options{})
	ops := make([]docs.Operation, 101)
	for i := range ops {
		ops[i] = docs.InsertText(docs.Location{Index: 1}, "x")
	}
	_, err := c.Apply(context.Background(), ApplyRequest{DocumentID: "doc-1", Operations: ops})
	if !apierr.HasCode(err, apierr.CodeBatchTooLarge) {
		t.Fatalf("err = %v", err)
	}
	if api.submits != 0 {
		t.Fatalf("submits = %d", api.submits)
	}
	if tot := c.Metrics().Totals(); tot.Rejected != 1 {
		t.Fatalf("metrics = %+v", tot)
	}
}

func TestApplyRetriesAndRecordsEvents(t *testing.T) {
	api := &fakeAPI{submitErrs: []error{
		apierr.RateLimited(429, 0, "quota"),
		apierr.Network("reset", errors.New("connection reset by peer")),
	}}
	c, sr := testCoordinator(t, api, Options{})

	res, err := c.Apply(context.Background(), ApplyRequest{
		DocumentID: "doc-1",
		Operations: []docs.Operation{docs.InsertText(docs.Location{Index: 1}, "A")},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d", res.Attempts)
	}

	var apply sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if s.Name() == "coordinator.apply" {
			apply = s
		}
	}
	if apply == nil {
		t.Fatal("coordinator.apply span not recorded")
	}
	retries := 0
	for _, e := range apply.Events() {
		if e.Name == "batch.retry" {
			retries++
		}
	}
	if retries != 2 {
		t.Fatalf("retry events = %d, want 2", retries)
	}
	if tot := c.Metrics().Totals(); tot.Retries != 2 {
		t.Fatalf("metrics retries = %d", tot.Retries)
	}
}

func TestApplyExhaustedRetries(t *testing.T) {
	api := &fakeAPI{submitErrs: []error{
		apierr.RateLimited(429, 0, "quota"),
		apierr.RateLimited(429, 0, "quota"),
		apierr.RateLimited(429, 0, "quota"),
	}}
	c, _ := testCoordinator(t, api, Options{})
	_, err := c.Apply(context.Background(), ApplyRequest{
		DocumentID: "doc-1",
		Operations: []docs.Operation{docs.InsertText(docs.Location{Index: 1}, "A")},
	})
	if apierr.KindOf(err) != apierr.KindMaxRetries {
		t.Fatalf("err = %v, want max retries", err)
	}
	if api.submits != 3 {
		t.Fatalf("submits = %d, want 3", api.submits)
	}
}

func TestApplyRedactsErrors(t *testing.T) {
	api := &fakeAPI{submitErrs: []error{
		apierr.Remote(401, "token Bearer ya29.very-secret rejected for 123e4567-e89b-12d3-a456-426614174000"),
	}}
	c, _ := testCoordinator(t, api, Options{})
	_, err := c.Apply(context.Background(), ApplyRequest{
		DocumentID: "doc-1",
		Operations: []docs.Operation{docs.InsertText(docs.Location{Index: 1}, "A")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if strings.Contains(msg, "ya29.very-secret") || strings.Contains(msg, "123e4567") {
		t.Fatalf("secret leaked: %s", msg)
	}
	if !apierr.HasCode(err, apierr.CodePermissionDenied) {
		t.Fatalf("code lost: %v", err)
	}
}

func TestApplyCanceled(t *testing.T) {
	api := &fakeAPI{}
	c, _ := testCoordinator(t, api, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Apply(ctx, ApplyRequest{
		DocumentID: "doc-1",
		Operations: []docs.Operation{docs.InsertText(docs.Location{Index: 1}, "A")},
	})
	if apierr.KindOf(err) != apierr.KindCanceled {
		t.Fatalf("err = %v, want canceled", err)
	}
	if api.submits != 0 {
		t.Fatalf("submits = %d", api.submits)
	}
}

func TestSegmentDependency(t *testing.T) {
	ops := []docs.Operation{
		docs.CreateFooter("DEFAULT"),
		docs.InsertText(docs.Location{Index: 1, SegmentID: "kix.new-footer"}, "page"),
	}

	t.Run("warn", func(t *testing.T) {
		api := &fakeAPI{}
		c, _ := testCoordinator(t, api, Options{})
		if _, err := c.Apply(context.Background(), ApplyRequest{DocumentID: "doc-1", Operations: ops}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if api.submits != 1 {
			t.Fatalf("submits = %d", api.submits)
		}
	})

	t.Run("reject", func(t *testing.T) {
		api := &fakeAPI{}
		c, _ := testCoordinator(t, api, Options{RejectSegmentDependencies: true})
		_, err := c.Apply(context.Background(), ApplyRequest{DocumentID: "doc-1", Operations: ops})
		if !apierr.HasCode(err, apierr.CodeSegmentDependency) {
			t.Fatalf("err = %v", err)
		}
		if api.submits != 0 {
			t.Fatalf("submits = %d", api.submits)
		}
	})

	t.Run("known segment", func(t *testing.T) {
		api := &fakeAPI{}
		c, _ := testCoordinator(t, api, Options{RejectSegmentDependencies: true})
		c.Document(context.Background(), "doc-1")
		known := []docs.Operation{
			docs.CreateFooter("DEFAULT"),
			docs.InsertText(docs.Location{Index: 1, SegmentID: "kix.h1"}, "title"),
		}
		if _, err := c.Apply(context.Background(), ApplyRequest{DocumentID: "doc-1", Operations: known}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	})
}

func TestDocumentCacheThrough(t *testing.T) {
	api := &fakeAPI{fetchErrs: []error{apierr.Network("reset", nil)}}
	c, _ := testCoordinator(t, api, Options{})
	ctx := context.Background()

	doc, hit, err := c.Document(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if hit || doc.RevisionID != "rev-1" {
		t.Fatalf("hit = %v doc = %+v", hit, doc)
	}
	if api.fetches != 2 {
		t.Fatalf("fetches = %d, want 2 (one retry)", api.fetches)
	}

	_, hit, err = c.Document(ctx, "doc-1")
	if err != nil || !hit {
		t.Fatalf("second Document hit = %v err = %v", hit, err)
	}
	if api.fetches != 2 {
		t.Fatalf("cache hit still fetched: %d", api.fetches)
	}

	c.Invalidate("doc-1")
	if _, hit, _ := c.Document(ctx, "doc-1"); hit {
		t.Fatal("hit after Invalidate")
	}
}

func TestDocumentFetchRacingApplyIsNotCached(t *testing.T) {
	started, gate := make(chan struct{}), make(chan struct{})
	api := &fakeAPI{fetchStarted: started, fetchGate: gate}
	c, _ := testCoordinator(t, api, Options{})
	ctx := context.Background()

	type fetched struct {
		doc *docs.Document
		err error
	}
	done := make(chan fetched, 1)
	go func() {
		doc, _, err := c.Document(ctx, "doc-1")
		done <- fetched{doc, err}
	}()
	<-started

	if _, err := c.Apply(ctx, ApplyRequest{
		DocumentID: "doc-1",
		Operations: []docs.Operation{docs.InsertText(docs.Location{Index: 1}, "A")},
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	close(gate)

	got := <-done
	if got.err != nil || got.doc.RevisionID != "rev-1" {
		t.Fatalf("Document = %+v, %v", got.doc, got.err)
	}
	if _, ok := c.Cache().Peek("doc-1"); ok {
		t.Fatal("pre-mutation snapshot cached after Apply invalidated the document")
	}
	if _, hit, err := c.Document(ctx, "doc-1"); err != nil || hit {
		t.Fatalf("next Document hit = %v err = %v, want a fresh fetch", hit, err)
	}
	if api.fetches != 2 {
		t.Fatalf("fetches = %d, want 2", api.fetches)
	}
}

func TestDocumentNotFound(t *testing.T) {
	api := &fakeAPI{fetchErrs: []error{apierr.Remote(404, "Requested entity was not found.")}}
	c, _ := testCoordinator(t, api, Options{})
	_, _, err := c.Document(context.Background(), "missing")
	if !apierr.HasCode(err, apierr.CodeNotFound) {
		t.Fatalf("err = %v", err)
	}
	if c.Cache().Len() != 0 {
		t.Fatal("failure cached")
	}
}

func TestPlanMakesNoCalls(t *testing.T) {
	api := &fakeAPI{}
	c, _ := testCoordinator(t, api, Options{})
	plan, err := c.Plan(context.Background(), ApplyRequest{
		DocumentID: "doc-1",
		Operations: []docs.Operation{
			docs.InsertText(docs.Location{Index: 2}, "a"),
			docs.DeleteRange(docs.Range{StartIndex: 5, EndIndex: 8}),
		},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if api.fetches+api.submits != 0 {
		t.Fatalf("remote called: fetches=%d submits=%d", api.fetches, api.submits)
	}
	if plan.Order[0].Anchor != "body@5" || plan.Order[1].Anchor != "body@2" || plan.Bytes == 0 {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestPreview(t *testing.T) {
	api := &fakeAPI{}
	c, _ := testCoordinator(t, api, Options{})
	res, err := c.Preview(context.Background(), ApplyRequest{
		DocumentID: "doc-1",
		Operations: []docs.Operation{
			docs.InsertText(docs.Location{Index: 1}, "Oh, "),
			docs.DeleteRange(docs.Range{StartIndex: 6, EndIndex: 12}),
			docs.AppendText(docs.EndOfSegment{}, "!"),
			docs.UpdateTextStyle(docs.Range{StartIndex: 1, EndIndex: 3}, map[string]any{"bold": true}, "bold"),
		},
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.Before != "Hello world\n" {
		t.Fatalf("before = %q", res.Before)
	}
	if res.After != "Oh, Hello!\n" {
		t.Fatalf("after = %q", res.After)
	}
	if res.Skipped != 1 || res.Diff == "" {
		t.Fatalf("skipped = %d diff = %q", res.Skipped, res.Diff)
	}
	if api.submits != 0 {
		t.Fatal("preview submitted")
	}
}
