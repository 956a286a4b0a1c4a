package docsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/user/docugen/internal/apierr"
	"github.com/user/docugen/internal/redact"
)

// remoteError is the error envelope of the remote API.
type remoteError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
		Details []struct {
			Reason string `json:"reason"`
		} `json:"details"`
	} `json:"error"`
}

var rateLimitReasons = map[string]bool{
	"ratelimitexceeded":     true,
	"userratelimitexceeded": true,
	"rate_limit_exceeded":   true,
}

func (e *remoteError) rateLimited() bool {
	for _, r := range e.Error.Errors {
		if rateLimitReasons[strings.ToLower(r.Reason)] {
			return true
		}
	}
	for _, d := range e.Error.Details {
		if rateLimitReasons[strings.ToLower(d.Reason)] {
			return true
		}
	}
	return false
}

// classifyResponse maps a non-2xx response onto the closed error kinds.
func classifyResponse(resp *http.Response, body []byte) error {
	var env remoteError
	_ = json.Unmarshal(body, &env)
	msg := env.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
		if len(body) > 0 {
			slog.Debug("remote error without a message",
				"status", resp.StatusCode,
				"body", redact.JSON(body),
			)
		}
	}

	switch status := resp.StatusCode; {
	case status == http.StatusTooManyRequests,
		status == http.StatusForbidden && env.rateLimited():
		return apierr.RateLimited(status, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()), msg)
	case status == http.StatusInternalServerError,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return apierr.Network(fmt.Sprintf("remote returned %d", status), errors.New(msg))
	default:
		return apierr.Remote(status, msg)
	}
}

// classifyTransport maps an error from http.Client.Do. A done request
// context always wins over whatever the transport reported.
func classifyTransport(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apierr.Canceled(ctxErr)
	}
	if errors.Is(err, context.Canceled) {
		return apierr.Canceled(err)
	}

	var netErr net.Error
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr):
		return apierr.Network("dns lookup failed", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return apierr.Network("request timed out", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apierr.Network("request timed out", err)
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return apierr.Network("connection failed", err)
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return apierr.Network("connection closed unexpectedly", err)
	case errors.As(err, &opErr):
		return apierr.Network("connection failed", err)
	}
	return &apierr.Error{Kind: apierr.KindRemote, Code: apierr.CodeRemote, Msg: "request failed", Err: err}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
