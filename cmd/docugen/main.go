package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/docugen/internal/batch"
	"github.com/user/docugen/internal/cache"
	"github.com/user/docugen/internal/config"
	"github.com/user/docugen/internal/coordinator"
	"github.com/user/docugen/internal/docsapi"
	"github.com/user/docugen/internal/observability"
	"github.com/user/docugen/internal/redact"
	"github.com/user/docugen/internal/retry"
	"github.com/user/docugen/internal/scheduler"
	"github.com/user/docugen/internal/server"
)

var (
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docugen",
	Short: "docugen applies positional edit batches to remote documents",
	Long:  "Orders, validates and submits batches of positional edits to a remote rich-text document API, with retry and a snapshot cache.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(logLevel, logFormat)
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docugen HTTP server",
	RunE:  runServe,
}

var (
	configPath                string
	bindAddr                  string
	docsBaseURL               string
	accessToken               string
	otelEnabled               bool
	otelEndpoint              string
	rateLimitEnabled          bool
	rejectSegmentDependencies bool
	maxRetries                int
	cacheTTL                  time.Duration
	oidcIssuerURL             string
	oidcClientID              string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	serveCmd.Flags().StringVar(&configPath, "config", "", "Config file (.toml, .yaml, .yml or .json)")
	serveCmd.Flags().StringVar(&bindAddr, "bind", ":8090", "HTTP server bind address")
	serveCmd.Flags().StringVar(&docsBaseURL, "docs-base-url", docsapi.DefaultBaseURL, "Remote document API base URL")
	serveCmd.Flags().StringVar(&accessToken, "access-token", "", "OAuth2 access token for the remote API (or set DOCUGEN_ACCESS_TOKEN)")
	serveCmd.Flags().BoolVar(&otelEnabled, "otel-enabled", false, "Enable OpenTelemetry tracing")
	serveCmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP HTTP endpoint (host:port) for traces; if empty uses stdout exporter")
	serveCmd.Flags().BoolVar(&rateLimitEnabled, "rate-limit-enabled", false, "Enable server-side per-client request rate limiting")
	serveCmd.Flags().BoolVar(&rejectSegmentDependencies, "reject-segment-dependencies", false, "Reject batches that create a segment and also target an unknown one")
	serveCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "Total submission attempts per batch")
	serveCmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 300*time.Second, "Document snapshot lifetime")
	serveCmd.Flags().StringVar(&oidcIssuerURL, "oidc-issuer-url", "", "OIDC issuer URL whose ID tokens the API accepts")
	serveCmd.Flags().StringVar(&oidcClientID, "oidc-client-id", "", "OIDC client ID expected in the token audience")

	rootCmd.AddCommand(serveCmd)
}

func setupLogging(level, format string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// loadServeConfig layers explicitly set flags over the config file and
// environment.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("bind") {
		cfg.Server.Bind = bindAddr
	}
	if flags.Changed("docs-base-url") {
		cfg.Remote.BaseURL = docsBaseURL
	}
	if flags.Changed("access-token") {
		cfg.Remote.AccessToken = accessToken
	}
	if flags.Changed("otel-enabled") {
		cfg.Tracing.Enabled = otelEnabled
	}
	if flags.Changed("otel-endpoint") {
		cfg.Tracing.Endpoint = otelEndpoint
	}
	if flags.Changed("rate-limit-enabled") {
		cfg.RateLimit.Enabled = rateLimitEnabled
	}
	if flags.Changed("reject-segment-dependencies") {
		cfg.Batch.RejectSegmentDependencies = rejectSegmentDependencies
	}
	if flags.Changed("max-retries") {
		cfg.Retry.MaxRetries = maxRetries
	}
	if flags.Changed("cache-ttl") {
		cfg.Cache.TTL = config.Duration{Duration: cacheTTL}
	}
	if flags.Changed("oidc-issuer-url") {
		cfg.Auth.OIDCIssuerURL = oidcIssuerURL
	}
	if flags.Changed("oidc-client-id") {
		cfg.Auth.OIDCClientID = oidcClientID
	}
	if !cmd.Flags().Changed("log-level") && !cmd.InheritedFlags().Changed("log-level") {
		logLevel = cfg.Log.Level
	}
	if !cmd.Flags().Changed("log-format") && !cmd.InheritedFlags().Changed("log-format") {
		logFormat = cfg.Log.Format
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(logLevel, logFormat)

	slog.Info("starting docugen server",
		"bind", cfg.Server.Bind,
		"docs_base_url", cfg.Remote.BaseURL,
		"max_operations", cfg.Batch.MaxOperations,
		"max_retries", cfg.Retry.MaxRetries,
		"cache_ttl", cfg.Cache.TTL.Duration,
		"cache_capacity", cfg.Cache.Capacity,
		"auth_enabled", cfg.Auth.Enabled,
		"rate_limit_enabled", cfg.RateLimit.Enabled,
		"tracing_enabled", cfg.Tracing.Enabled,
	)
	if cfg.Remote.AccessToken == "" {
		slog.Warn("no access token configured; remote calls will be unauthenticated")
	}

	shutdownTracer, err := observability.InitTracer(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	hc := docsapi.NewHTTPClient(docsapi.StaticToken(cfg.Remote.AccessToken), docsapi.TransportOptions{
		Timeout: cfg.Remote.Timeout.Duration,
	})
	api := docsapi.New(cfg.Remote.BaseURL, hc)

	coord := coordinator.New(api, coordinator.Options{
		Limits: batch.Limits{
			MaxOperations:   cfg.Batch.MaxOperations,
			MaxPayloadBytes: cfg.Batch.MaxPayloadBytes,
		},
		Retry: retry.Config{
			MaxRetries:    cfg.Retry.MaxRetries,
			RateLimitBase: cfg.Retry.RateLimitBase.Duration,
			NetworkBase:   cfg.Retry.NetworkBase.Duration,
			MaxDelay:      cfg.Retry.MaxDelay.Duration,
		},
		Cache: cache.Config{
			TTL:      cfg.Cache.TTL.Duration,
			Capacity: cfg.Cache.Capacity,
		},
		RejectSegmentDependencies: cfg.Batch.RejectSegmentDependencies,
	})
	coord.Retry().OnRetry = func(a retry.Attempt) {
		slog.Warn("remote call failed; backing off",
			"attempt", a.Count,
			"kind", a.Kind.String(),
			"delay", a.Delay,
		)
	}

	var srvOpts []server.Option
	if cfg.Auth.Enabled && cfg.Auth.OIDCEnabled() {
		verifier, err := server.NewOIDCVerifier(cmd.Context(), server.OIDCConfig{
			IssuerURL: cfg.Auth.OIDCIssuerURL,
			ClientID:  cfg.Auth.OIDCClientID,
		})
		if err != nil {
			return fmt.Errorf("oidc discovery: %w", err)
		}
		srvOpts = append(srvOpts, server.WithOIDCAuth(verifier))
		slog.Info("oidc auth enabled", "issuer", cfg.Auth.OIDCIssuerURL)
	}
	srv := server.New(coord, cfg, srvOpts...)

	schedCtx, schedCancel := context.WithCancel(context.Background())
	sched := scheduler.New(coord.Cache(), srv.Limiter(), scheduler.Config{
		CacheSweepInterval: cfg.Cache.SweepInterval.Duration,
	})
	go sched.Run(schedCtx)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", redact.Error(err))
			os.Exit(1)
		}
	}()

	slog.Info("docugen server ready", "bind", cfg.Server.Bind)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("received shutdown signal", "signal", sig)

	slog.Info("stopping HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", redact.Error(err))
	}

	slog.Info("stopping scheduler")
	schedCancel()

	if err := shutdownTracer(shutdownCtx); err != nil {
		slog.Warn("tracer shutdown error", "error", redact.Error(err))
	}

	slog.Info("docugen server stopped")
	return nil
}
