package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Config holds scheduler configuration.
type Config struct {
	Interval           time.Duration // base tick cadence (default 10s)
	CacheSweepInterval time.Duration // drop lapsed cache entries
	LimiterPruneAfter  time.Duration // forget rate-limit buckets idle this long
	LimiterPruneEvery  time.Duration // how often to prune rate-limit buckets
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:           10 * time.Second,
		CacheSweepInterval: 60 * time.Second,
		LimiterPruneAfter:  10 * time.Minute,
		LimiterPruneEvery:  time.Minute,
	}
}

// Sweeper drops expired cache entries and reports how many went.
type Sweeper interface {
	Sweep() int
}

// Pruner forgets per-client state not seen since cutoff.
type Pruner interface {
	Prune(cutoff time.Time) int
}

// Scheduler runs periodic maintenance tasks.
type Scheduler struct {
	cache     Sweeper
	limiter   Pruner
	config    Config
	lastSweep time.Time
	lastPrune time.Time
	now       func() time.Time
}

// New creates a new Scheduler. Either task source may be nil.
func New(cache Sweeper, limiter Pruner, config Config) *Scheduler {
	def := DefaultConfig()
	if config.Interval == 0 {
		config.Interval = def.Interval
	}
	if config.CacheSweepInterval == 0 {
		config.CacheSweepInterval = def.CacheSweepInterval
	}
	if config.LimiterPruneAfter == 0 {
		config.LimiterPruneAfter = def.LimiterPruneAfter
	}
	if config.LimiterPruneEvery == 0 {
		config.LimiterPruneEvery = def.LimiterPruneEvery
	}
	return &Scheduler{cache: cache, limiter: limiter, config: config, now: time.Now}
}

// Run starts the scheduler loop. It blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("scheduler started", "interval", s.config.Interval)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(false)
		}
	}
}

func (s *Scheduler) tick(force bool) {
	now := s.now()

	if s.cache != nil && (force || now.Sub(s.lastSweep) >= s.config.CacheSweepInterval) {
		if n := s.cache.Sweep(); n > 0 {
			slog.Debug("swept lapsed cache entries", "removed", n)
		}
		s.lastSweep = now
	}
	if s.limiter != nil && (force || now.Sub(s.lastPrune) >= s.config.LimiterPruneEvery) {
		if n := s.limiter.Prune(now.Add(-s.config.LimiterPruneAfter)); n > 0 {
			slog.Debug("pruned idle rate limit buckets", "removed", n)
		}
		s.lastPrune = now
	}
}

// RunOnce executes a single scheduler tick. Useful for testing.
func (s *Scheduler) RunOnce() {
	s.tick(true)
}
