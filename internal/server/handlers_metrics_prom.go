package server

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/user/docugen/internal/cache"
	"github.com/user/docugen/internal/metrics"
)

type statsResponse struct {
	Cache         cache.Stats                `json:"cache"`
	CacheTTL      string                     `json:"cache_ttl"`
	Batches       metrics.Totals             `json:"batches"`
	Throughput    []metrics.ThroughputBucket `json:"throughput"`
	LimitClients  int                        `json:"rate_limit_clients"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Cache:         s.coord.Cache().Stats(),
		CacheTTL:      s.coord.Cache().TTL().String(),
		Batches:       s.coord.Metrics().Totals(),
		Throughput:    s.coord.Metrics().Snapshot(),
		LimitClients:  s.limiter.Clients(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	// --- Batches ---
	t := s.coord.Metrics().Totals()
	fmt.Fprintln(w, "# HELP docugen_batches_total Batches by outcome since start.")
	fmt.Fprintln(w, "# TYPE docugen_batches_total counter")
	fmt.Fprintf(w, "docugen_batches_total{outcome=\"%s\"} %d\n", metrics.OutcomeApplied, t.Applied)
	fmt.Fprintf(w, "docugen_batches_total{outcome=\"%s\"} %d\n", metrics.OutcomeRejected, t.Rejected)
	fmt.Fprintf(w, "docugen_batches_total{outcome=\"%s\"} %d\n", metrics.OutcomeFailed, t.Failed)
	fmt.Fprintln(w, "# HELP docugen_batch_operations_total Operations carried by recorded batches.")
	fmt.Fprintln(w, "# TYPE docugen_batch_operations_total counter")
	fmt.Fprintf(w, "docugen_batch_operations_total %d\n", t.Operations)
	fmt.Fprintln(w, "# HELP docugen_batch_retries_total Submission attempts beyond the first.")
	fmt.Fprintln(w, "# TYPE docugen_batch_retries_total counter")
	fmt.Fprintf(w, "docugen_batch_retries_total %d\n", t.Retries)
	fmt.Fprintln(w, "# HELP docugen_batch_failures_total Rejected or failed batches by error kind.")
	fmt.Fprintln(w, "# TYPE docugen_batch_failures_total counter")
	for _, kind := range s.coord.Metrics().Kinds() {
		fmt.Fprintf(w, "docugen_batch_failures_total{kind=\"%s\"} %d\n", promLabelEscape(kind), t.ByKind[kind])
	}

	// --- Document cache ---
	cs := s.coord.Cache().Stats()
	fmt.Fprintln(w, "# HELP docugen_cache_entries Cached document snapshots.")
	fmt.Fprintln(w, "# TYPE docugen_cache_entries gauge")
	fmt.Fprintf(w, "docugen_cache_entries %d\n", cs.Entries)
	fmt.Fprintln(w, "# HELP docugen_cache_capacity Configured snapshot capacity.")
	fmt.Fprintln(w, "# TYPE docugen_cache_capacity gauge")
	fmt.Fprintf(w, "docugen_cache_capacity %d\n", cs.Capacity)
	fmt.Fprintln(w, "# HELP docugen_cache_hits_total Cache lookups served from a fresh entry.")
	fmt.Fprintln(w, "# TYPE docugen_cache_hits_total counter")
	fmt.Fprintf(w, "docugen_cache_hits_total %d\n", cs.Hits)
	fmt.Fprintln(w, "# HELP docugen_cache_misses_total Cache lookups that found nothing fresh.")
	fmt.Fprintln(w, "# TYPE docugen_cache_misses_total counter")
	fmt.Fprintf(w, "docugen_cache_misses_total %d\n", cs.Misses)
	fmt.Fprintln(w, "# HELP docugen_cache_removals_total Entries removed, by reason.")
	fmt.Fprintln(w, "# TYPE docugen_cache_removals_total counter")
	fmt.Fprintf(w, "docugen_cache_removals_total{reason=\"expired\"} %d\n", cs.Expirations)
	fmt.Fprintf(w, "docugen_cache_removals_total{reason=\"evicted\"} %d\n", cs.Evictions)
	fmt.Fprintf(w, "docugen_cache_removals_total{reason=\"invalidated\"} %d\n", cs.Invalidations)
	fmt.Fprintln(w, "# HELP docugen_cache_stale_writes_total Fetched snapshots dropped because the document was mutated during the fetch.")
	fmt.Fprintln(w, "# TYPE docugen_cache_stale_writes_total counter")
	fmt.Fprintf(w, "docugen_cache_stale_writes_total %d\n", cs.StaleWrites)

	// --- HTTP ---
	fmt.Fprint(w, s.reqMetrics.renderPrometheus())

	// --- Process Resources ---
	fmt.Fprintln(w, "# HELP docugen_process_goroutines Number of goroutines.")
	fmt.Fprintln(w, "# TYPE docugen_process_goroutines gauge")
	fmt.Fprintf(w, "docugen_process_goroutines %d\n", runtime.NumGoroutine())

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	fmt.Fprintln(w, "# HELP docugen_process_heap_inuse_bytes Heap memory in use.")
	fmt.Fprintln(w, "# TYPE docugen_process_heap_inuse_bytes gauge")
	fmt.Fprintf(w, "docugen_process_heap_inuse_bytes %d\n", memStats.HeapInuse)
	fmt.Fprintln(w, "# HELP docugen_process_gc_pause_ns Last GC pause duration (ns).")
	fmt.Fprintln(w, "# TYPE docugen_process_gc_pause_ns gauge")
	lastPauseIdx := (memStats.NumGC + 255) % 256
	fmt.Fprintf(w, "docugen_process_gc_pause_ns %d\n", memStats.PauseNs[lastPauseIdx])
}

func promLabelEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
