package docsapi

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/oauth2"

	"github.com/user/docugen/internal/redact"
)

// TransportOptions tunes the HTTP client used for remote calls.
type TransportOptions struct {
	// Timeout bounds a whole request. Zero leaves requests bounded only by
	// their context.
	Timeout time.Duration
}

// NewHTTPClient returns an HTTP/2-capable client that authorizes each request
// with a token from ts. A nil ts yields an unauthenticated client.
func NewHTTPClient(ts oauth2.TokenSource, opts TransportOptions) *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   8,
	}
	h2, err := http2.ConfigureTransports(base)
	if err != nil {
		slog.Warn("http2 unavailable for remote API transport", "error", redact.Error(err))
	} else {
		h2.ReadIdleTimeout = 30 * time.Second
		h2.PingTimeout = 10 * time.Second
	}

	var rt http.RoundTripper = base
	if ts != nil {
		rt = &oauth2.Transport{Base: base, Source: oauth2.ReuseTokenSource(nil, ts)}
	}
	return &http.Client{Timeout: opts.Timeout, Transport: rt}
}

// StaticToken wraps a fixed access token. Refreshing it is the caller's
// concern.
func StaticToken(accessToken string) oauth2.TokenSource {
	if accessToken == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}
