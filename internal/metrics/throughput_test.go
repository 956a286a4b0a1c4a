package metrics

import (
	"testing"
	"time"
)

func TestRecordAndTotals(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 30, 0, time.UTC)
	tr := newTracker(func() time.Time { return now })

	tr.Record(OutcomeApplied, 4, 1, "")
	tr.Record(OutcomeApplied, 2, 3, "")
	tr.Record(OutcomeRejected, 101, 0, "validation")
	tr.Record(OutcomeFailed, 1, 3, "max_retries_exceeded")
	tr.Record("bogus", 9, 9, "x")

	got := tr.Totals()
	if got.Applied != 2 || got.Rejected != 1 || got.Failed != 1 {
		t.Fatalf("totals = %+v", got)
	}
	if got.Operations != 108 {
		t.Fatalf("operations = %d, want 108", got.Operations)
	}
	if got.Retries != 4 {
		t.Fatalf("retries = %d, want 4", got.Retries)
	}
	if got.ByKind["validation"] != 1 || got.ByKind["max_retries_exceeded"] != 1 {
		t.Fatalf("by kind = %v", got.ByKind)
	}
	if kinds := tr.Kinds(); len(kinds) != 2 || kinds[0] != "max_retries_exceeded" {
		t.Fatalf("kinds = %v", kinds)
	}

	snap := tr.Snapshot()
	last := snap[len(snap)-1]
	if last.Applied != 2 || !last.Minute.Equal(now.Truncate(time.Minute)) {
		t.Fatalf("current bucket = %+v", last)
	}
}

func TestSnapshotRollsForward(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tr := newTracker(func() time.Time { return now })
	tr.Record(OutcomeApplied, 1, 1, "")

	now = now.Add(3 * time.Minute)
	snap := tr.Snapshot()
	if len(snap) != throughputBuckets {
		t.Fatalf("len = %d", len(snap))
	}
	if snap[len(snap)-4].Applied != 1 {
		t.Fatalf("old bucket lost: %+v", snap[len(snap)-4])
	}
	if snap[len(snap)-1].Applied != 0 {
		t.Fatalf("new bucket not empty: %+v", snap[len(snap)-1])
	}

	now = now.Add(5 * time.Hour)
	for _, b := range tr.Snapshot() {
		if b.Applied != 0 {
			t.Fatalf("stale bucket survived idle period: %+v", b)
		}
	}
	if tr.Totals().Applied != 1 {
		t.Fatal("totals must survive bucket rotation")
	}
}
