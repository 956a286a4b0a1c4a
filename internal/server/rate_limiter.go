package server

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/user/docugen/internal/config"
)

type tokenBucket struct {
	tokens float64
	last   time.Time
}

type clientBuckets struct {
	read tokenBucket
	wr   tokenBucket
	last time.Time
}

// RateLimiter keeps a read and a write token bucket per client. Batch
// submissions and cache invalidations draw from the write bucket.
type RateLimiter struct {
	mu  sync.Mutex
	cfg config.RateLimitConfig
	bkt map[string]*clientBuckets
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if cfg.ReadRPS <= 0 {
		cfg.ReadRPS = 200
	}
	if cfg.ReadBurst <= 0 {
		cfg.ReadBurst = 400
	}
	if cfg.WriteRPS <= 0 {
		cfg.WriteRPS = 50
	}
	if cfg.WriteBurst <= 0 {
		cfg.WriteBurst = 100
	}
	return &RateLimiter{
		cfg: cfg,
		bkt: map[string]*clientBuckets{},
	}
}

// Prune forgets clients idle since before cutoff and reports how many were
// dropped.
func (r *RateLimiter) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, v := range r.bkt {
		if v.last.Before(cutoff) {
			delete(r.bkt, k)
			n++
		}
	}
	return n
}

// Clients reports how many clients currently hold buckets.
func (r *RateLimiter) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bkt)
}

func (r *RateLimiter) allow(key string, isWrite bool, now time.Time) bool {
	if !r.cfg.Enabled {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.bkt[key]
	if c == nil {
		c = &clientBuckets{
			read: tokenBucket{tokens: r.cfg.ReadBurst, last: now},
			wr:   tokenBucket{tokens: r.cfg.WriteBurst, last: now},
			last: now,
		}
		r.bkt[key] = c
	}
	c.last = now
	if isWrite {
		return takeToken(&c.wr, r.cfg.WriteRPS, r.cfg.WriteBurst, now)
	}
	return takeToken(&c.read, r.cfg.ReadRPS, r.cfg.ReadBurst, now)
}

func takeToken(b *tokenBucket, rps, burst float64, now time.Time) bool {
	if b.last.IsZero() {
		b.last = now
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * rps
		if b.tokens > burst {
			b.tokens = burst
		}
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens -= 1
	return true
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isRateLimitedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !s.limiter.allow(rateLimitClientKey(r), isWriteMethod(r.Method), time.Now()) {
			s.reqMetrics.incThrottled(r.Method, r.URL.Path)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "RATE_LIMITED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

func isRateLimitedPath(path string) bool {
	if path == "/healthz" || path == "/metrics" {
		return false
	}
	return strings.HasPrefix(path, "/api/v1/")
}

func rateLimitClientKey(r *http.Request) string {
	if r == nil {
		return "unknown"
	}
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		return "auth:" + hashSensitive(auth)
	}
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		if ip = strings.TrimSpace(ip); ip != "" {
			return "ip:" + ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return "ip:" + host
	}
	if strings.TrimSpace(r.RemoteAddr) != "" {
		return "ip:" + strings.TrimSpace(r.RemoteAddr)
	}
	return "unknown"
}

func hashSensitive(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:8])
}
