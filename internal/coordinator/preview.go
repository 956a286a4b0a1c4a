package coordinator

import (
	"context"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/user/docugen/internal/apierr"
	"github.com/user/docugen/internal/docs"
)

// PreviewResult shows the effect of a batch on the body text of the current
// snapshot. Only text inserts and deletions in the body are simulated; other
// operations are counted in Skipped.
type PreviewResult struct {
	DocumentID string      `json:"document_id"`
	RevisionID string      `json:"revision_id"`
	Order      []PlannedOp `json:"order"`
	Before     string      `json:"before"`
	After      string      `json:"after"`
	Diff       string      `json:"diff"`
	Skipped    int         `json:"skipped"`
}

// Preview fetches the snapshot (through the cache), orders and validates the
// batch against it, then applies it locally. Nothing is submitted.
func (c *Coordinator) Preview(ctx context.Context, req ApplyRequest) (*PreviewResult, error) {
	doc, _, err := c.Document(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	_, span := c.tracer.Start(ctx, "coordinator.preview", trace.WithAttributes(
		attribute.String("document_id", req.DocumentID),
		attribute.Int("operations", len(req.Operations)),
	))
	defer span.End()

	b, err := c.prepare(req)
	if err != nil {
		return nil, c.fail(span, err)
	}

	model := doc.BodyText()
	before := model.String()
	skipped := 0
	for _, o := range b.Plan {
		if !o.Positional || o.Anchor.Segment.Key() != string(docs.SegmentBody) {
			skipped++
			continue
		}
		changed, err := model.Apply(o.Operation)
		if err != nil {
			return nil, c.fail(span, apierr.Validation(apierr.CodeInvalidAnchor, "requests", "%s at %s: %v", o.Name, o.Anchor, err))
		}
		if !changed {
			skipped++
		}
	}
	after := model.String()

	return &PreviewResult{
		DocumentID: req.DocumentID,
		RevisionID: doc.RevisionID,
		Order:      describe(b.Plan),
		Before:     before,
		After:      after,
		Diff:       textDiff(before, after),
		Skipped:    skipped,
	}, nil
}

// textDiff renders a patch between two texts in the diff-match-patch format.
func textDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(before, diffs))
}
