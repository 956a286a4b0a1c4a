package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration: defaults, then the file at path (if path is
// non-empty), then DOCUGEN_* environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		cfg, err = loadConfigFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// loadConfigFromFile reads and parses a config file based on its extension.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .toml, .yaml, .yml or .json)", filepath.Ext(path))
	}
	slog.Debug("config file loaded", "path", path)
	return cfg, nil
}

// ApplyEnvOverrides applies DOCUGEN_* environment variables on top of cfg.
func (c *Config) ApplyEnvOverrides() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("DOCUGEN_BIND", &c.Server.Bind)
	str("DOCUGEN_DOCS_BASE_URL", &c.Remote.BaseURL)
	str("DOCUGEN_ACCESS_TOKEN", &c.Remote.AccessToken)
	str("DOCUGEN_JWT_SECRET", &c.Auth.JWTSecret)
	str("DOCUGEN_OIDC_ISSUER_URL", &c.Auth.OIDCIssuerURL)
	str("DOCUGEN_OIDC_CLIENT_ID", &c.Auth.OIDCClientID)
	str("DOCUGEN_LOG_LEVEL", &c.Log.Level)
	str("DOCUGEN_LOG_FORMAT", &c.Log.Format)
	if v := os.Getenv("DOCUGEN_OTEL_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
		c.Tracing.Enabled = true
	}

	var errs ValidationErrors
	intVar := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: key, Message: fmt.Sprintf("not an integer: %q", v)})
			return
		}
		*dst = n
	}
	durVar := func(key string, dst *Duration) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: key, Message: fmt.Sprintf("not a duration: %q", v)})
			return
		}
		dst.Duration = d
	}
	boolVar := func(key string, dst *bool) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: key, Message: fmt.Sprintf("not a boolean: %q", v)})
			return
		}
		*dst = b
	}
	intVar("DOCUGEN_MAX_RETRIES", &c.Retry.MaxRetries)
	intVar("DOCUGEN_CACHE_CAPACITY", &c.Cache.Capacity)
	durVar("DOCUGEN_CACHE_TTL", &c.Cache.TTL)
	durVar("DOCUGEN_REMOTE_TIMEOUT", &c.Remote.Timeout)
	boolVar("DOCUGEN_AUTH_ENABLED", &c.Auth.Enabled)
	boolVar("DOCUGEN_RATE_LIMIT_ENABLED", &c.RateLimit.Enabled)
	boolVar("DOCUGEN_REJECT_SEGMENT_DEPENDENCIES", &c.Batch.RejectSegmentDependencies)

	if len(errs) > 0 {
		return errs
	}
	return nil
}
