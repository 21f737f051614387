package ack

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"nocalert/internal/domain"
)

// fakeCanceller records cancellation calls for ledger tests.
// Params: guarded list of cancelled alert ids.
// Returns: Canceller implementation.
type fakeCanceller struct {
	mu        sync.Mutex
	cancelled []string
}

func (c *fakeCanceller) Cancel(alertID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, alertID)
	return true
}

func (c *fakeCanceller) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cancelled)
}

func testNow() time.Time {
	return time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	t.Parallel()

	canceller := &fakeCanceller{}
	ledger := NewLedger(canceller, testNow, nil)

	if !ledger.Acknowledge("alert/a", "alice", "looking into it") {
		t.Fatalf("expected first acknowledge to succeed")
	}
	if ledger.Acknowledge("alert/a", "bob", "me too") {
		t.Fatalf("expected second acknowledge to be rejected")
	}

	info, ok := ledger.Info("alert/a")
	if !ok || info.Actor != "alice" || info.Status != domain.AckStatusAcknowledged {
		t.Fatalf("expected first acknowledgment retained, got %+v", info)
	}
	if canceller.count() != 1 {
		t.Fatalf("expected exactly one cancellation, got %d", canceller.count())
	}
}

func TestReacknowledgeAfterUnacknowledge(t *testing.T) {
	t.Parallel()

	ledger := NewLedger(&fakeCanceller{}, testNow, nil)
	ledger.Acknowledge("alert/a", "alice", "")

	if !ledger.Unacknowledge("alert/a", "wrong alert") {
		t.Fatalf("expected unacknowledge to succeed")
	}
	if ledger.Unacknowledge("alert/a", "again") {
		t.Fatalf("expected second unacknowledge to report missing record")
	}
	if ledger.IsAcknowledged("alert/a") {
		t.Fatalf("expected alert reopened")
	}
	if !ledger.Acknowledge("alert/a", "bob", "taking over") {
		t.Fatalf("expected re-acknowledge to succeed")
	}
}

func TestResolveRequiresAcknowledgment(t *testing.T) {
	t.Parallel()

	canceller := &fakeCanceller{}
	ledger := NewLedger(canceller, testNow, nil)

	if ledger.Resolve("alert/a", "alice", "rebooted") {
		t.Fatalf("expected resolve of unacknowledged alert to fail")
	}

	ledger.Acknowledge("alert/a", "alice", "")
	if !ledger.Resolve("alert/a", "alice", "line card reseated") {
		t.Fatalf("expected resolve to succeed")
	}

	info, _ := ledger.Info("alert/a")
	if info.Status != domain.AckStatusResolved || info.ResolvedAt == nil ||
		info.ResolutionNotes != "line card reseated" {
		t.Fatalf("unexpected resolved record %+v", info)
	}
	if canceller.count() != 2 {
		t.Fatalf("expected cancel on acknowledge and on resolve, got %d", canceller.count())
	}
}

func TestEscalateInsteadKeepsEscalationsLive(t *testing.T) {
	t.Parallel()

	canceller := &fakeCanceller{}
	ledger := NewLedger(canceller, testNow, nil)

	if !ledger.EscalateInstead("alert/a", "alice", "level2_support", "out of my depth") {
		t.Fatalf("expected escalate-instead to succeed")
	}
	if canceller.count() != 0 {
		t.Fatalf("escalate-instead must not cancel escalations, got %d calls", canceller.count())
	}

	info, _ := ledger.Info("alert/a")
	if info.Status != domain.AckStatusEscalated || info.EscalatedTo != "level2_support" {
		t.Fatalf("unexpected escalated record %+v", info)
	}
	if info.Notes != "Escalated to level2_support: out of my depth" {
		t.Fatalf("unexpected escalation notes %q", info.Notes)
	}
}

func TestBulkAcknowledge(t *testing.T) {
	t.Parallel()

	ledger := NewLedger(nil, testNow, nil)
	ledger.Acknowledge("alert/b", "bob", "")

	results := ledger.BulkAcknowledge([]string{"alert/a", "alert/b", "alert/c"}, "alice", "maintenance")
	want := map[string]bool{"alert/a": true, "alert/b": false, "alert/c": true}
	if !reflect.DeepEqual(results, want) {
		t.Fatalf("unexpected bulk results %+v", results)
	}
}

func TestHistoryExportImportRoundTrip(t *testing.T) {
	t.Parallel()

	ledger := NewLedger(nil, testNow, nil)
	ledger.Acknowledge("alert/a", "alice", "first")
	ledger.EscalateInstead("alert/b", "bob", "management", "repeat offender")
	ledger.Acknowledge("alert/c", "alice", "second")
	ledger.Resolve("alert/c", "alice", "fixed")

	exported := ledger.ExportHistory(time.Time{}, time.Time{})
	if len(exported) != 3 {
		t.Fatalf("expected 3 history records, got %+v", exported)
	}

	restored := NewLedger(nil, testNow, nil)
	if imported := restored.ImportHistory(exported); imported != 3 {
		t.Fatalf("expected 3 imported records, got %d", imported)
	}
	again := restored.ExportHistory(time.Time{}, time.Time{})
	if !reflect.DeepEqual(exported, again) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", exported, again)
	}
}

func TestExportHistoryRange(t *testing.T) {
	t.Parallel()

	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ledger := NewLedger(nil, func() time.Time { return current }, nil)

	ledger.Acknowledge("alert/a", "alice", "")
	current = current.Add(time.Hour)
	ledger.Acknowledge("alert/b", "alice", "")
	current = current.Add(time.Hour)
	ledger.Acknowledge("alert/c", "alice", "")

	middle := ledger.ExportHistory(
		time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC),
	)
	if len(middle) != 1 || middle[0].AlertID != "alert/b" {
		t.Fatalf("expected only the middle record, got %+v", middle)
	}
}

func TestStatsAndUserHistory(t *testing.T) {
	t.Parallel()

	ledger := NewLedger(nil, testNow, nil)
	ledger.Acknowledge("alert/a", "alice", "")
	ledger.Acknowledge("alert/b", "bob", "")
	ledger.Resolve("alert/b", "bob", "done")
	ledger.EscalateInstead("alert/c", "alice", "management", "")

	stats := ledger.GetStats()
	if stats.TotalAcknowledged != 3 || stats.TotalHistory != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.ByStatus["acknowledged"] != 1 || stats.ByStatus["resolved"] != 1 || stats.ByStatus["escalated"] != 1 {
		t.Fatalf("unexpected status breakdown %+v", stats.ByStatus)
	}

	aliceHistory := ledger.UserHistory("alice", 10)
	if len(aliceHistory) != 2 || aliceHistory[0].AlertID != "alert/c" {
		t.Fatalf("expected alice history newest first, got %+v", aliceHistory)
	}
}

func TestSweepRemovesAgedTerminalRecords(t *testing.T) {
	t.Parallel()

	current := testNow()
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(d)
	}

	ledger := NewLedger(&fakeCanceller{}, now, nil)
	ledger.Acknowledge("alert/resolved", "alice", "")
	ledger.Resolve("alert/resolved", "alice", "fixed")
	ledger.Acknowledge("alert/live", "bob", "still working")

	if removed := ledger.Sweep(24 * time.Hour); removed != 0 {
		t.Fatalf("expected fresh records kept, removed %d", removed)
	}

	advance(48 * time.Hour)
	if removed := ledger.Sweep(24 * time.Hour); removed == 0 {
		t.Fatalf("expected aged resolved record removed")
	}
	if _, ok := ledger.Info("alert/resolved"); ok {
		t.Fatalf("expected resolved record swept")
	}
	if !ledger.IsAcknowledged("alert/live") {
		t.Fatalf("expected live acknowledgment kept")
	}
	if history := ledger.ExportHistory(time.Time{}, current.Add(time.Hour)); len(history) != 1 {
		t.Fatalf("expected only the live record in history, got %+v", history)
	}
}
