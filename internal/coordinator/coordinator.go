// Package coordinator ties the pipeline together: resolve, order, validate,
// submit with retry, then invalidate the cached snapshot.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/user/docugen/internal/apierr"
	"github.com/user/docugen/internal/batch"
	"github.com/user/docugen/internal/cache"
	"github.com/user/docugen/internal/docs"
	"github.com/user/docugen/internal/metrics"
	"github.com/user/docugen/internal/observability"
	"github.com/user/docugen/internal/retry"
)

// DocumentAPI is the remote surface the coordinator needs.
type DocumentAPI interface {
	batch.Submitter
	FetchDocument(ctx context.Context, id string) (*docs.Document, error)
}

// Options configures a Coordinator. Zero fields take package defaults.
type Options struct {
	Limits batch.Limits
	Retry  retry.Config
	Cache  cache.Config
	// RejectSegmentDependencies fails batches that create a segment and also
	// address a segment the current snapshot does not know. Otherwise such
	// batches are only logged.
	RejectSegmentDependencies bool
	Tracer                    trace.Tracer
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	api     DocumentAPI
	cache   *cache.Cache
	retry   *retry.Controller
	exec    *batch.Executor
	metrics *metrics.ThroughputTracker
	tracer  trace.Tracer
	opts    Options
}

func New(api DocumentAPI, opts Options) *Coordinator {
	rc := retry.New(opts.Retry)
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.Tracer()
	}
	return &Coordinator{
		api:     api,
		cache:   cache.New(opts.Cache),
		retry:   rc,
		exec:    batch.NewExecutor(api, rc, opts.Limits),
		metrics: metrics.NewThroughputTracker(),
		tracer:  tracer,
		opts:    opts,
	}
}

func (c *Coordinator) Cache() *cache.Cache { return c.cache }

func (c *Coordinator) Metrics() *metrics.ThroughputTracker { return c.metrics }

// Retry exposes the retry controller so callers can swap its sleep or
// observer hooks.
func (c *Coordinator) Retry() *retry.Controller { return c.retry }

// ApplyRequest is one caller batch.
type ApplyRequest struct {
	DocumentID   string
	Operations   []docs.Operation
	WriteControl *docs.WriteControl
}

// PlannedOp describes one operation's place in the submission order.
type PlannedOp struct {
	Input      int    `json:"input"`
	Request    string `json:"request"`
	Anchor     string `json:"anchor,omitempty"`
	Positional bool   `json:"positional"`
}

// ApplyResult is returned by a successful Apply.
type ApplyResult struct {
	BatchID    string            `json:"batch_id"`
	DocumentID string            `json:"document_id"`
	Order      []PlannedOp       `json:"order"`
	Replies    []json.RawMessage `json:"replies"`
	RevisionID string            `json:"revision_id,omitempty"`
	Attempts   int               `json:"attempts"`
}

// PlanResult is the outcome of a dry run.
type PlanResult struct {
	DocumentID string      `json:"document_id"`
	Order      []PlannedOp `json:"order"`
	Bytes      int         `json:"bytes"`
}

// Apply orders req.Operations, validates them as one batch and submits it.
// The cached snapshot of the document is dropped only after the remote API
// accepted the batch. Returned errors are *apierr.Error with sensitive
// strings redacted.
func (c *Coordinator) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	batchID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "coordinator.apply", trace.WithAttributes(
		attribute.String("document_id", req.DocumentID),
		attribute.String("batch_id", batchID),
		attribute.Int("operations", len(req.Operations)),
	))
	defer span.End()

	b, err := c.prepare(req)
	if err != nil {
		c.metrics.Record(metrics.OutcomeRejected, len(req.Operations), 0, apierr.KindOf(err).String())
		return nil, c.fail(span, err)
	}

	res, err := c.exec.Execute(ctx, b)
	if err != nil {
		outcome := metrics.OutcomeFailed
		if apierr.KindOf(err) == apierr.KindValidation {
			outcome = metrics.OutcomeRejected
		}
		c.metrics.Record(outcome, len(b.Operations), attemptsOf(err), apierr.KindOf(err).String())
		return nil, c.fail(span, err)
	}

	c.cache.Invalidate(req.DocumentID)
	c.metrics.Record(metrics.OutcomeApplied, len(b.Operations), res.Attempts, "")
	span.SetAttributes(attribute.Int("attempts", res.Attempts))

	slog.Info("batch applied",
		"batch_id", batchID,
		"document_id", req.DocumentID,
		"operations", len(b.Operations),
		"attempts", res.Attempts,
	)
	return &ApplyResult{
		BatchID:    batchID,
		DocumentID: req.DocumentID,
		Order:      describe(b.Plan),
		Replies:    res.Response.Replies,
		RevisionID: res.Response.RevisionID(),
		Attempts:   res.Attempts,
	}, nil
}

// Plan runs every local step of Apply and reports the submission order
// without contacting the remote API.
func (c *Coordinator) Plan(ctx context.Context, req ApplyRequest) (*PlanResult, error) {
	_, span := c.tracer.Start(ctx, "coordinator.plan", trace.WithAttributes(
		attribute.String("document_id", req.DocumentID),
		attribute.Int("operations", len(req.Operations)),
	))
	defer span.End()

	b, err := c.prepare(req)
	if err != nil {
		return nil, c.fail(span, err)
	}
	return &PlanResult{DocumentID: req.DocumentID, Order: describe(b.Plan), Bytes: b.Size}, nil
}

// Document returns the snapshot of id, from the cache when fresh. hit
// reports whether the cache served it.
func (c *Coordinator) Document(ctx context.Context, id string) (doc *docs.Document, hit bool, err error) {
	if id == "" {
		return nil, false, apierr.Validation(apierr.CodeInvalidRequest, "document_id", "document id is required")
	}
	if e, ok := c.cache.Get(id); ok {
		return e.Snapshot, true, nil
	}
	gen := c.cache.Generation(id)

	ctx, span := c.tracer.Start(ctx, "coordinator.fetch", trace.WithAttributes(
		attribute.String("document_id", id),
	))
	defer span.End()

	doc, err = retry.Do(ctx, c.retry, func(ctx context.Context) (*docs.Document, error) {
		return c.api.FetchDocument(ctx, id)
	})
	if err != nil {
		return nil, false, c.fail(span, err)
	}
	if _, stored := c.cache.SetIfGeneration(id, gen, doc, doc.RevisionID); !stored {
		slog.Debug("fetched snapshot superseded by a mutation; not cached",
			"document_id", id,
			"revision_id", doc.RevisionID,
		)
	}
	return doc, false, nil
}

// Invalidate drops the cached snapshot of id.
func (c *Coordinator) Invalidate(id string) {
	c.cache.Invalidate(id)
}

func (c *Coordinator) prepare(req ApplyRequest) (*batch.Batch, error) {
	var snapshot *docs.Document
	if e, ok := c.cache.Peek(req.DocumentID); ok {
		snapshot = e.Snapshot
	}
	r := docs.NewResolver(snapshot)
	ordered := docs.Order(r, req.Operations)

	if seg, ok := segmentDependency(r, ordered); ok {
		if c.opts.RejectSegmentDependencies {
			return nil, apierr.Validation(apierr.CodeSegmentDependency, "requests",
				"batch creates a segment and also targets unknown segment %q; split it into sequential batches", seg)
		}
		slog.Warn("batch creates a segment and targets an unknown one; offsets may not resolve",
			"document_id", req.DocumentID,
			"segment_id", seg,
		)
	}

	return batch.New(req.DocumentID, ordered, req.WriteControl, c.exec.Limits())
}

// segmentDependency reports the first non-body segment addressed by a batch
// that also creates segments, when the resolver's snapshot does not know it.
func segmentDependency(r *docs.Resolver, ordered []docs.Ordered) (string, bool) {
	creates := false
	for _, o := range ordered {
		if r.CreatesSegment(o.Operation) {
			creates = true
			break
		}
	}
	if !creates {
		return "", false
	}
	for _, o := range ordered {
		if o.Positional && o.Anchor.Segment.ID != "" && !r.Knows(o.Anchor.Segment.ID) {
			return o.Anchor.Segment.ID, true
		}
	}
	return "", false
}

func (c *Coordinator) fail(span trace.Span, err error) error {
	err = apierr.Sanitize(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, apierr.KindOf(err).String())
	return err
}

func attemptsOf(err error) int {
	var e *apierr.Error
	if errors.As(err, &e) && e.Attempts > 0 {
		return e.Attempts
	}
	return 1
}

func describe(plan []docs.Ordered) []PlannedOp {
	out := make([]PlannedOp, len(plan))
	for i, o := range plan {
		p := PlannedOp{Input: o.Input, Request: o.Name, Positional: o.Positional}
		if o.Positional {
			p.Anchor = o.Anchor.String()
		}
		out[i] = p
	}
	return out
}
