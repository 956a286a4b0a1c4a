package docsapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/docugen/internal/apierr"
	"github.com/user/docugen/internal/docs"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, srv.Client())
}

func writeRemoteError(w http.ResponseWriter, status int, reason, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": msg,
			"errors":  []map[string]string{{"reason": reason}},
		},
	})
}

func TestFetchDocument(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/documents/doc-1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"documentId":"doc-1","title":"Plan","revisionId":"rev-9","headers":{"kix.h1":{}}}`))
	})

	doc, err := c.FetchDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("FetchDocument: %v", err)
	}
	if doc.RevisionID != "rev-9" || doc.Title != "Plan" {
		t.Fatalf("doc = %+v", doc)
	}
	if _, ok := doc.Headers["kix.h1"]; !ok {
		t.Fatal("headers not decoded")
	}
}

func TestSubmitBatchBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/documents/doc-1:batchUpdate" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Requests     []json.RawMessage `json:"requests"`
			WriteControl map[string]string `json:"writeControl"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(body.Requests) != 2 {
			t.Errorf("requests = %d, want 2", len(body.Requests))
		}
		if body.WriteControl["requiredRevisionId"] != "rev-1" {
			t.Errorf("writeControl = %v", body.WriteControl)
		}
		w.Write([]byte(`{"documentId":"doc-1","replies":[{},{"createNamedRange":{"namedRangeId":"nr1"}}],"writeControl":{"requiredRevisionId":"rev-2"}}`))
	})

	ops := []docs.Operation{
		docs.InsertText(docs.Location{Index: 1}, "hi"),
		docs.CreateNamedRange("greeting", docs.Range{StartIndex: 1, EndIndex: 3}),
	}
	resp, err := c.SubmitBatch(context.Background(), "doc-1", ops, &docs.WriteControl{RequiredRevisionID: "rev-1"})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if len(resp.Replies) != 2 || resp.RevisionID() != "rev-2" {
		t.Fatalf("resp = %+v", resp)
	}
	if string(resp.Replies[1]) != `{"createNamedRange":{"namedRangeId":"nr1"}}` {
		t.Fatalf("reply not passed through: %s", resp.Replies[1])
	}
}

func TestClassifyHTTPFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		reason string
		header string
		kind   apierr.Kind
		code   apierr.ErrorCode
	}{
		{"too many requests", 429, "", "3", apierr.KindRateLimit, apierr.CodeRateLimited},
		{"quota 403", 403, "rateLimitExceeded", "", apierr.KindRateLimit, apierr.CodeRateLimited},
		{"user quota 403", 403, "userRateLimitExceeded", "", apierr.KindRateLimit, apierr.CodeRateLimited},
		{"forbidden", 403, "forbidden", "", apierr.KindRemote, apierr.CodePermissionDenied},
		{"not found", 404, "notFound", "", apierr.KindRemote, apierr.CodeNotFound},
		{"bad request", 400, "badRequest", "", apierr.KindRemote, apierr.CodeRemote},
		{"unavailable", 503, "backendError", "", apierr.KindNetwork, apierr.CodeNetwork},
		{"bad gateway", 502, "", "", apierr.KindNetwork, apierr.CodeNetwork},
		{"not implemented", 501, "", "", apierr.KindRemote, apierr.CodeRemote},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tc.header != "" {
					w.Header().Set("Retry-After", tc.header)
				}
				writeRemoteError(w, tc.status, tc.reason, "nope")
			})
			_, err := c.FetchDocument(context.Background(), "doc")
			if apierr.KindOf(err) != tc.kind {
				t.Fatalf("kind = %v, want %v (err=%v)", apierr.KindOf(err), tc.kind, err)
			}
			if !apierr.HasCode(err, tc.code) {
				t.Fatalf("err = %v, want code %s", err, tc.code)
			}
		})
	}
}

func TestRetryAfterHeader(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		writeRemoteError(w, 429, "", "slow down")
	})
	_, err := c.FetchDocument(context.Background(), "doc")
	if d, ok := apierr.RetryAfterOf(err); !ok || d != 3*time.Second {
		t.Fatalf("retry after = %v %v, want 3s", d, ok)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Duration{
		"":                              0,
		"7":                             7 * time.Second,
		"-1":                            0,
		"soon":                          0,
		"Sun, 01 Mar 2026 12:00:10 GMT": 10 * time.Second,
		"Sun, 01 Mar 2026 11:59:00 GMT": 0,
	}
	for in, want := range cases {
		if got := parseRetryAfter(in, now); got != want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConnectionDropIsNetwork(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("hijack unsupported")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		conn.Close()
	})
	_, err := c.FetchDocument(context.Background(), "doc")
	if apierr.KindOf(err) != apierr.KindNetwork {
		t.Fatalf("kind = %v, want network (err=%v)", apierr.KindOf(err), err)
	}
}

func TestCanceledContext(t *testing.T) {
	release := make(chan struct{})
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.FetchDocument(ctx, "doc")
	if apierr.KindOf(err) != apierr.KindCanceled {
		t.Fatalf("kind = %v, want canceled (err=%v)", apierr.KindOf(err), err)
	}
}

func TestClassifyTransport(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		err  error
		kind apierr.Kind
	}{
		{io.ErrUnexpectedEOF, apierr.KindNetwork},
		{context.DeadlineExceeded, apierr.KindNetwork},
		{errors.New("tls: bad certificate"), apierr.KindRemote},
	}
	for _, tc := range cases {
		if got := apierr.KindOf(classifyTransport(ctx, tc.err)); got != tc.kind {
			t.Errorf("classifyTransport(%v) = %v, want %v", tc.err, got, tc.kind)
		}
	}
}

func TestStaticToken(t *testing.T) {
	if StaticToken("") != nil {
		t.Fatal("empty token should yield no source")
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"documentId":"d"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, NewHTTPClient(StaticToken("tok-123"), TransportOptions{Timeout: 5 * time.Second}))
	if _, err := c.FetchDocument(context.Background(), "d"); err != nil {
		t.Fatalf("FetchDocument: %v", err)
	}
	if auth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", auth)
	}
}
