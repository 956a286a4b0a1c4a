// Package apierr defines the closed set of failure kinds the coordinator
// reports. Remote clients classify their failures into these kinds so the
// retry controller can switch on a typed value instead of inspecting
// provider-specific error shapes.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/docugen/internal/redact"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindRateLimit
	KindNetwork
	KindRemote
	KindMaxRetries
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimit:
		return "rate_limit"
	case KindNetwork:
		return "network"
	case KindRemote:
		return "remote"
	case KindMaxRetries:
		return "max_retries_exceeded"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ErrorCode narrows a Kind for callers and HTTP responses.
type ErrorCode string

const (
	CodeBatchTooLarge     ErrorCode = "BATCH_TOO_LARGE"
	CodePayloadTooLarge   ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeInvalidAnchor     ErrorCode = "INVALID_ANCHOR"
	CodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	CodeSegmentDependency ErrorCode = "SEGMENT_DEPENDENCY"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeNetwork           ErrorCode = "NETWORK_UNAVAILABLE"
	CodePermissionDenied  ErrorCode = "PERMISSION_DENIED"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeRemote            ErrorCode = "REMOTE_ERROR"
	CodeMaxRetries        ErrorCode = "MAX_RETRIES_EXCEEDED"
	CodeCanceled          ErrorCode = "CANCELED"
)

// Error is the typed failure returned by every package in this module.
type Error struct {
	Kind Kind
	Code ErrorCode
	Msg  string

	// Param names the offending parameter of a validation failure.
	Param string
	// Status is the remote HTTP status, when there was one.
	Status int
	// RetryAfter is a server-supplied minimum wait for rate-limit failures.
	RetryAfter time.Duration
	// Attempts is set on KindMaxRetries.
	Attempts int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a never-retried validation failure for param.
func Validation(code ErrorCode, param, format string, args ...any) error {
	return &Error{Kind: KindValidation, Code: code, Param: param, Msg: fmt.Sprintf(format, args...)}
}

// RateLimited builds a retryable rate-limit failure.
func RateLimited(status int, retryAfter time.Duration, msg string) error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &Error{Kind: KindRateLimit, Code: CodeRateLimited, Status: status, RetryAfter: retryAfter, Msg: msg}
}

// Network builds a retryable transient transport failure.
func Network(msg string, cause error) error {
	return &Error{Kind: KindNetwork, Code: CodeNetwork, Msg: msg, Err: cause}
}

// Remote builds a fatal failure reported by the remote API.
func Remote(status int, msg string) error {
	code := CodeRemote
	switch status {
	case 401, 403:
		code = CodePermissionDenied
	case 404:
		code = CodeNotFound
	}
	return &Error{Kind: KindRemote, Code: code, Status: status, Msg: msg}
}

// MaxRetriesExceeded wraps the last retryable cause after attempts tries.
func MaxRetriesExceeded(attempts int, last error) error {
	return &Error{
		Kind:     KindMaxRetries,
		Code:     CodeMaxRetries,
		Attempts: attempts,
		Msg:      fmt.Sprintf("gave up after %d attempts", attempts),
		Err:      last,
	}
}

// Canceled wraps a context error.
func Canceled(cause error) error {
	return &Error{Kind: KindCanceled, Code: CodeCanceled, Msg: "operation canceled", Err: cause}
}

// KindOf returns the kind of the outermost *Error in err's chain. Bare
// context errors report KindCanceled.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

// IsRetryable reports whether the retry controller should try again.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindNetwork:
		return true
	default:
		return false
	}
}

// HasCode reports whether err carries code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// RetryAfterOf returns the server-supplied wait on a rate-limit failure.
func RetryAfterOf(err error) (time.Duration, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindRateLimit {
		return 0, false
	}
	return e.RetryAfter, e.RetryAfter > 0
}

// Sanitize returns an error of the same kind and code whose messages have
// been passed through redaction. The cause chain is rebuilt from redacted
// text so sensitive strings cannot leak through Unwrap. Text added by
// wrappers around the *Error is kept, redacted.
func Sanitize(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return sanitizeCause(err)
	}
	inner := sanitizeError(e)
	if err == error(e) {
		return inner
	}
	return &sanitized{msg: redact.String(err.Error()), err: inner}
}

func sanitizeError(e *Error) *Error {
	out := *e
	out.Msg = redact.String(e.Msg)
	out.Param = redact.String(e.Param)
	if e.Err != nil {
		out.Err = sanitizeCause(e.Err)
	}
	return &out
}

func sanitizeCause(err error) error {
	var e *Error
	switch {
	case errors.As(err, &e):
		return Sanitize(err)
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	default:
		return errors.New(redact.String(err.Error()))
	}
}

// sanitized stands in for a wrapper around an *Error.
type sanitized struct {
	msg string
	err *Error
}

func (s *sanitized) Error() string { return s.msg }

func (s *sanitized) Unwrap() error { return s.err }
