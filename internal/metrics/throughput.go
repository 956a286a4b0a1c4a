// Package metrics keeps in-memory counters of batch outcomes.
package metrics

import (
	"sort"
	"sync"
	"time"
)

const throughputBuckets = 60

// Outcome labels recorded per batch.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// ThroughputBucket holds counts for a single minute.
type ThroughputBucket struct {
	Minute     time.Time `json:"minute"`
	Applied    int64     `json:"applied"`
	Rejected   int64     `json:"rejected"`
	Failed     int64     `json:"failed"`
	Operations int64     `json:"operations"`
	Retries    int64     `json:"retries"`
}

// Totals are cumulative since process start.
type Totals struct {
	Applied    int64            `json:"applied"`
	Rejected   int64            `json:"rejected"`
	Failed     int64            `json:"failed"`
	Operations int64            `json:"operations"`
	Retries    int64            `json:"retries"`
	ByKind     map[string]int64 `json:"failures_by_kind"`
}

// ThroughputTracker keeps a 60-minute ring buffer of batch outcomes plus
// lifetime totals.
type ThroughputTracker struct {
	mu      sync.Mutex
	buckets [throughputBuckets]ThroughputBucket
	head    int // index of the current minute bucket
	totals  Totals
	now     func() time.Time
}

func NewThroughputTracker() *ThroughputTracker {
	return newTracker(time.Now)
}

func newTracker(now func() time.Time) *ThroughputTracker {
	t := &ThroughputTracker{now: now, totals: Totals{ByKind: map[string]int64{}}}
	cur := now().Truncate(time.Minute)
	for i := range t.buckets {
		t.buckets[i].Minute = cur.Add(time.Duration(i-throughputBuckets+1) * time.Minute)
	}
	t.head = throughputBuckets - 1
	return t
}

// advance rolls the ring buffer forward to the current minute if needed.
func (t *ThroughputTracker) advance() {
	now := t.now().Truncate(time.Minute)
	cur := t.buckets[t.head].Minute

	// Skip whole laps after a long idle period.
	if now.Sub(cur) > throughputBuckets*time.Minute {
		cur = now.Add(-throughputBuckets * time.Minute)
	}
	for cur.Before(now) {
		t.head = (t.head + 1) % throughputBuckets
		cur = cur.Add(time.Minute)
		t.buckets[t.head] = ThroughputBucket{Minute: cur}
	}
}

// Record counts one batch. kind is the failure kind for failed or rejected
// batches and ignored otherwise.
func (t *ThroughputTracker) Record(outcome string, operations, attempts int, kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance()

	b := &t.buckets[t.head]
	switch outcome {
	case OutcomeApplied:
		b.Applied++
		t.totals.Applied++
	case OutcomeRejected:
		b.Rejected++
		t.totals.Rejected++
	case OutcomeFailed:
		b.Failed++
		t.totals.Failed++
	default:
		return
	}
	if outcome != OutcomeApplied && kind != "" {
		t.totals.ByKind[kind]++
	}
	b.Operations += int64(operations)
	t.totals.Operations += int64(operations)
	if attempts > 1 {
		b.Retries += int64(attempts - 1)
		t.totals.Retries += int64(attempts - 1)
	}
}

// Snapshot returns all 60 buckets in chronological order.
func (t *ThroughputTracker) Snapshot() []ThroughputBucket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance()

	result := make([]ThroughputBucket, throughputBuckets)
	for i := 0; i < throughputBuckets; i++ {
		idx := (t.head + 1 + i) % throughputBuckets
		result[i] = t.buckets[idx]
	}
	return result
}

func (t *ThroughputTracker) Totals() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.totals
	out.ByKind = make(map[string]int64, len(t.totals.ByKind))
	for k, v := range t.totals.ByKind {
		out.ByKind[k] = v
	}
	return out
}

// Kinds returns the failure kinds seen so far, sorted.
func (t *ThroughputTracker) Kinds() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.totals.ByKind))
	for k := range t.totals.ByKind {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
