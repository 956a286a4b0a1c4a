// Package config loads docugen's configuration from an optional file,
// environment overrides and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/docugen/internal/observability"
)

// Duration is a time.Duration that reads and writes as "30s" in every
// supported file format.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Config is the full configuration.
type Config struct {
	Server    ServerConfig                `toml:"server" yaml:"server" json:"server"`
	Remote    RemoteConfig                `toml:"remote" yaml:"remote" json:"remote"`
	Batch     BatchConfig                 `toml:"batch" yaml:"batch" json:"batch"`
	Retry     RetryConfig                 `toml:"retry" yaml:"retry" json:"retry"`
	Cache     CacheConfig                 `toml:"cache" yaml:"cache" json:"cache"`
	Auth      AuthConfig                  `toml:"auth" yaml:"auth" json:"auth"`
	RateLimit RateLimitConfig             `toml:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	Tracing   observability.TracingConfig `toml:"tracing" yaml:"tracing" json:"tracing"`
	Log       LogConfig                   `toml:"log" yaml:"log" json:"log"`
}

type ServerConfig struct {
	Bind            string   `toml:"bind" yaml:"bind" json:"bind"`
	ReadTimeout     Duration `toml:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	CORSOrigins     []string `toml:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// RemoteConfig points at the remote document API.
type RemoteConfig struct {
	BaseURL string `toml:"base_url" yaml:"base_url" json:"base_url"`
	// AccessToken is an OAuth2 access token obtained elsewhere.
	AccessToken string   `toml:"access_token" yaml:"access_token" json:"access_token"`
	Timeout     Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
}

type BatchConfig struct {
	MaxOperations             int  `toml:"max_operations" yaml:"max_operations" json:"max_operations"`
	MaxPayloadBytes           int  `toml:"max_payload_bytes" yaml:"max_payload_bytes" json:"max_payload_bytes"`
	RejectSegmentDependencies bool `toml:"reject_segment_dependencies" yaml:"reject_segment_dependencies" json:"reject_segment_dependencies"`
}

type RetryConfig struct {
	MaxRetries    int      `toml:"max_retries" yaml:"max_retries" json:"max_retries"`
	RateLimitBase Duration `toml:"rate_limit_base" yaml:"rate_limit_base" json:"rate_limit_base"`
	NetworkBase   Duration `toml:"network_base" yaml:"network_base" json:"network_base"`
	MaxDelay      Duration `toml:"max_delay" yaml:"max_delay" json:"max_delay"`
}

type CacheConfig struct {
	TTL           Duration `toml:"ttl" yaml:"ttl" json:"ttl"`
	Capacity      int      `toml:"capacity" yaml:"capacity" json:"capacity"`
	SweepInterval Duration `toml:"sweep_interval" yaml:"sweep_interval" json:"sweep_interval"`
}

// AuthConfig enables bearer-token checks on the HTTP facade. Tokens are HS256
// JWTs signed with JWTSecret, OIDC ID tokens from OIDCIssuerURL, or both.
type AuthConfig struct {
	Enabled       bool   `toml:"enabled" yaml:"enabled" json:"enabled"`
	JWTSecret     string `toml:"jwt_secret" yaml:"jwt_secret" json:"jwt_secret"`
	Issuer        string `toml:"issuer" yaml:"issuer" json:"issuer"`
	Audience      string `toml:"audience" yaml:"audience" json:"audience"`
	OIDCIssuerURL string `toml:"oidc_issuer_url" yaml:"oidc_issuer_url" json:"oidc_issuer_url"`
	OIDCClientID  string `toml:"oidc_client_id" yaml:"oidc_client_id" json:"oidc_client_id"`
}

// OIDCEnabled reports whether an OIDC issuer is configured.
func (a AuthConfig) OIDCEnabled() bool {
	return strings.TrimSpace(a.OIDCIssuerURL) != ""
}

type RateLimitConfig struct {
	Enabled    bool    `toml:"enabled" yaml:"enabled" json:"enabled"`
	ReadRPS    float64 `toml:"read_rps" yaml:"read_rps" json:"read_rps"`
	ReadBurst  float64 `toml:"read_burst" yaml:"read_burst" json:"read_burst"`
	WriteRPS   float64 `toml:"write_rps" yaml:"write_rps" json:"write_rps"`
	WriteBurst float64 `toml:"write_burst" yaml:"write_burst" json:"write_burst"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:            ":8090",
			ReadTimeout:     Duration{30 * time.Second},
			WriteTimeout:    Duration{120 * time.Second},
			ShutdownTimeout: Duration{15 * time.Second},
		},
		Remote: RemoteConfig{
			BaseURL: "https://docs.googleapis.com",
			Timeout: Duration{60 * time.Second},
		},
		Batch: BatchConfig{
			MaxOperations:   100,
			MaxPayloadBytes: 10 << 20,
		},
		Retry: RetryConfig{
			MaxRetries:    3,
			RateLimitBase: Duration{time.Second},
			NetworkBase:   Duration{500 * time.Millisecond},
			MaxDelay:      Duration{30 * time.Second},
		},
		Cache: CacheConfig{
			TTL:           Duration{300 * time.Second},
			Capacity:      100,
			SweepInterval: Duration{60 * time.Second},
		},
		RateLimit: RateLimitConfig{
			ReadRPS:    200,
			ReadBurst:  400,
			WriteRPS:   50,
			WriteBurst: 100,
		},
		Tracing: observability.TracingConfig{
			ServiceName: "docugen",
			SampleRatio: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
