package batch

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/user/docugen/internal/apierr"
	"github.com/user/docugen/internal/docs"
	"github.com/user/docugen/internal/redact"
	"github.com/user/docugen/internal/retry"
)

// Submitter sends one batchUpdate call to the remote API.
type Submitter interface {
	SubmitBatch(ctx context.Context, documentID string, ops []docs.Operation, wc *docs.WriteControl) (*docs.BatchUpdateResponse, error)
}

// Result is the outcome of a successful Execute.
type Result struct {
	Response *docs.BatchUpdateResponse
	Attempts int
}

// Executor submits batches through a retry controller.
type Executor struct {
	api    Submitter
	retry  *retry.Controller
	limits Limits
}

func NewExecutor(api Submitter, rc *retry.Controller, lim Limits) *Executor {
	if rc == nil {
		rc = retry.New(retry.DefaultConfig())
	}
	return &Executor{api: api, retry: rc, limits: lim.withDefaults()}
}

// Limits returns the limits batches are checked against.
func (e *Executor) Limits() Limits {
	return e.limits
}

// Execute submits b as a single remote call, retrying rate-limit and
// transient network failures. Replies are returned verbatim. A batch that
// exceeds the limits, or a context that is already done, never reaches the
// remote API.
func (e *Executor) Execute(ctx context.Context, b *Batch) (*Result, error) {
	if len(b.Operations) > e.limits.MaxOperations {
		return nil, apierr.Validation(apierr.CodeBatchTooLarge, "requests",
			"batch has %d operations, limit is %d", len(b.Operations), e.limits.MaxOperations)
	}
	if b.Size > e.limits.MaxPayloadBytes {
		return nil, apierr.Validation(apierr.CodePayloadTooLarge, "requests",
			"batch payload is %d bytes, limit is %d", b.Size, e.limits.MaxPayloadBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, apierr.Canceled(err)
	}

	span := trace.SpanFromContext(ctx)
	attempts := 0
	var prev error
	resp, err := retry.Do(ctx, e.retry, func(ctx context.Context) (*docs.BatchUpdateResponse, error) {
		attempts++
		if attempts > 1 {
			span.AddEvent("batch.retry", trace.WithAttributes(
				attribute.Int("attempt", attempts),
				attribute.String("previous_kind", apierr.KindOf(prev).String()),
			))
		}
		r, err := e.api.SubmitBatch(ctx, b.DocumentID, b.Operations, b.WriteControl)
		prev = err
		return r, err
	})
	if err != nil {
		slog.Warn("batch submission failed",
			"document_id", b.DocumentID,
			"operations", len(b.Operations),
			"attempts", attempts,
			"kind", apierr.KindOf(err).String(),
			"error", redact.Error(err),
		)
		return nil, err
	}
	slog.Debug("batch submitted",
		"document_id", b.DocumentID,
		"operations", len(b.Operations),
		"bytes", b.Size,
		"attempts", attempts,
	)
	return &Result{Response: resp, Attempts: attempts}, nil
}
