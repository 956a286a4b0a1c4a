// Package retry wraps remote calls with classification-driven exponential
// backoff. Rate-limit and transient network failures are retried; anything
// else propagates on the first attempt.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/docugen/internal/apierr"
)

// Attempt describes one scheduled retry.
type Attempt struct {
	Count int
	Kind  apierr.Kind
	Delay time.Duration
	Err   error
}

// Config configures a Controller.
type Config struct {
	// MaxRetries is the total number of attempts, so at most MaxRetries-1
	// delays are awaited.
	MaxRetries    int
	RateLimitBase time.Duration
	NetworkBase   time.Duration
	// MaxDelay caps a single delay. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultConfig returns the documented schedule: three attempts, 1s base for
// rate limits, 500ms base for transient network failures.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		RateLimitBase: time.Second,
		NetworkBase:   500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
	}
}

// Controller is safe for concurrent use; it holds no per-call state.
type Controller struct {
	cfg Config

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry, when set, observes every scheduled retry.
	OnRetry func(Attempt)
}

// New returns a Controller, filling zero fields from DefaultConfig.
func New(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RateLimitBase <= 0 {
		cfg.RateLimitBase = def.RateLimitBase
	}
	if cfg.NetworkBase <= 0 {
		cfg.NetworkBase = def.NetworkBase
	}
	if cfg.MaxDelay < 0 {
		cfg.MaxDelay = 0
	}
	return &Controller{cfg: cfg, Sleep: sleepContext}
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Delay returns the wait before retry number n (1-based) after a failure of
// the given kind.
func (c *Controller) Delay(kind apierr.Kind, n int, err error) time.Duration {
	base := c.cfg.NetworkBase
	if kind == apierr.KindRateLimit {
		base = c.cfg.RateLimitBase
	}
	d := CalculateBackoff(BackoffExponential, n, base, c.cfg.MaxDelay)
	if ra, ok := apierr.RetryAfterOf(err); ok && ra > d {
		d = ra
		if c.cfg.MaxDelay > 0 && d > c.cfg.MaxDelay {
			d = c.cfg.MaxDelay
		}
	}
	return d
}

// Do calls fn until it succeeds, fails with a non-retryable error, or
// MaxRetries attempts have failed. Exhaustion returns a KindMaxRetries error
// wrapping the last cause. Cancelling ctx interrupts a pending wait.
func Do[T any](ctx context.Context, c *Controller, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var last error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, apierr.Canceled(err)
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !apierr.IsRetryable(err) {
			return zero, err
		}
		last = err
		if attempt == c.cfg.MaxRetries {
			break
		}

		kind := apierr.KindOf(err)
		delay := c.Delay(kind, attempt, err)
		slog.Debug("retrying remote call",
			"attempt", attempt,
			"kind", kind.String(),
			"delay", delay,
		)
		if c.OnRetry != nil {
			c.OnRetry(Attempt{Count: attempt, Kind: kind, Delay: delay, Err: err})
		}
		if err := c.Sleep(ctx, delay); err != nil {
			return zero, apierr.Canceled(err)
		}
	}
	return zero, apierr.MaxRetriesExceeded(c.cfg.MaxRetries, last)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
