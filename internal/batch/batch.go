// Package batch validates ordered operations against the remote API's batch
// limits and submits them as one atomic batchUpdate call.
package batch

import (
	"encoding/json"
	"fmt"

	"github.com/user/docugen/internal/apierr"
	"github.com/user/docugen/internal/docs"
)

const (
	DefaultMaxOperations   = 100
	DefaultMaxPayloadBytes = 10 << 20
)

// Limits bounds a single batch.
type Limits struct {
	MaxOperations   int
	MaxPayloadBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxOperations: DefaultMaxOperations, MaxPayloadBytes: DefaultMaxPayloadBytes}
}

func (l Limits) withDefaults() Limits {
	if l.MaxOperations <= 0 {
		l.MaxOperations = DefaultMaxOperations
	}
	if l.MaxPayloadBytes <= 0 {
		l.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	return l
}

// Batch is an ordered, validated set of operations for one document.
type Batch struct {
	DocumentID string
	// Operations are in submission order.
	Operations   []docs.Operation
	Plan         []docs.Ordered
	WriteControl *docs.WriteControl
	// Size is the serialized size of the request payload in bytes.
	Size int
}

// New validates ordered and builds a Batch. Every failure is a
// KindValidation error and nothing is sent.
func New(documentID string, ordered []docs.Ordered, wc *docs.WriteControl, lim Limits) (*Batch, error) {
	lim = lim.withDefaults()
	if documentID == "" {
		return nil, apierr.Validation(apierr.CodeInvalidRequest, "document_id", "document id is required")
	}
	if len(ordered) == 0 {
		return nil, apierr.Validation(apierr.CodeInvalidRequest, "requests", "batch has no operations")
	}
	if len(ordered) > lim.MaxOperations {
		return nil, apierr.Validation(apierr.CodeBatchTooLarge, "requests",
			"batch has %d operations, limit is %d", len(ordered), lim.MaxOperations)
	}
	if wc != nil && wc.RequiredRevisionID != "" && wc.TargetRevisionID != "" {
		return nil, apierr.Validation(apierr.CodeInvalidRequest, "write_control",
			"only one of required and target revision may be set")
	}

	ops := make([]docs.Operation, len(ordered))
	for i, o := range ordered {
		if err := checkAnchor(i, o); err != nil {
			return nil, err
		}
		if err := validateRequest(o.Operation); err != nil {
			return nil, apierr.Validation(apierr.CodeInvalidRequest, fmt.Sprintf("requests[%d]", i), "%v", err)
		}
		ops[i] = o.Operation
	}

	size, err := payloadSize(ops, wc)
	if err != nil {
		return nil, apierr.Validation(apierr.CodeInvalidRequest, "requests", "encode batch: %v", err)
	}
	if size > lim.MaxPayloadBytes {
		return nil, apierr.Validation(apierr.CodePayloadTooLarge, "requests",
			"batch payload is %d bytes, limit is %d", size, lim.MaxPayloadBytes)
	}

	return &Batch{
		DocumentID:   documentID,
		Operations:   ops,
		Plan:         ordered,
		WriteControl: wc,
		Size:         size,
	}, nil
}

func checkAnchor(i int, o docs.Ordered) error {
	if !o.Positional || o.Anchor.EndOfSegment {
		return nil
	}
	a := o.Anchor
	param := fmt.Sprintf("requests[%d]", i)
	if a.Offset < 1 {
		return apierr.Validation(apierr.CodeInvalidAnchor, param,
			"%s: index %d is before the start of the segment", o.Name, a.Offset)
	}
	if a.Span && a.End <= a.Offset {
		return apierr.Validation(apierr.CodeInvalidAnchor, param,
			"%s: empty or inverted range [%d, %d)", o.Name, a.Offset, a.End)
	}
	return nil
}

func payloadSize(ops []docs.Operation, wc *docs.WriteControl) (int, error) {
	data, err := json.Marshal(docs.BatchUpdateRequest{Requests: ops, WriteControl: wc})
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
