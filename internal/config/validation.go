package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks cross-field constraints and value ranges.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Server.Bind) == "" {
		add("server.bind", "must not be empty")
	}
	if u, err := url.Parse(c.Remote.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("remote.base_url", "must be an absolute URL, got %q", c.Remote.BaseURL)
	}
	if c.Batch.MaxOperations < 1 || c.Batch.MaxOperations > 100 {
		add("batch.max_operations", "must be between 1 and 100, got %d", c.Batch.MaxOperations)
	}
	if c.Batch.MaxPayloadBytes < 1 || c.Batch.MaxPayloadBytes > 10<<20 {
		add("batch.max_payload_bytes", "must be between 1 and %d, got %d", 10<<20, c.Batch.MaxPayloadBytes)
	}
	if c.Retry.MaxRetries < 1 {
		add("retry.max_retries", "must be at least 1, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.RateLimitBase.Duration <= 0 || c.Retry.NetworkBase.Duration <= 0 {
		add("retry", "base delays must be positive")
	}
	if c.Retry.MaxDelay.Duration < 0 {
		add("retry.max_delay", "must not be negative")
	}
	if c.Cache.TTL.Duration <= 0 {
		add("cache.ttl", "must be positive")
	}
	if c.Cache.Capacity < 1 {
		add("cache.capacity", "must be at least 1, got %d", c.Cache.Capacity)
	}
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" && !c.Auth.OIDCEnabled() {
			add("auth", "enabled auth needs jwt_secret or oidc_issuer_url")
		}
		if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
			add("auth.jwt_secret", "must be at least 16 bytes")
		}
	}
	if c.Auth.OIDCEnabled() {
		if u, err := url.Parse(c.Auth.OIDCIssuerURL); err != nil || u.Scheme == "" || u.Host == "" {
			add("auth.oidc_issuer_url", "must be an absolute URL, got %q", c.Auth.OIDCIssuerURL)
		}
		if strings.TrimSpace(c.Auth.OIDCClientID) == "" {
			add("auth.oidc_client_id", "required with oidc_issuer_url")
		}
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		add("tracing.sample_ratio", "must be within [0, 1]")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "unknown format %q", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
