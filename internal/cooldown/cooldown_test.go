package cooldown

import (
	"strings"
	"testing"
	"time"

	"nocalert/internal/domain"
)

// fakeClock advances manually for deterministic cooldown math.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func TestEvaluateAdmitsFirstAndSuppressesInsideWindow(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(300*time.Second, nil, clk.Now, nil)

	admit, reason := store.Evaluate("sw-01", "high_cpu", "cpu_load", domain.SeverityHigh)
	if !admit || reason != "" {
		t.Fatalf("expected first observation admitted, got admit=%v reason=%q", admit, reason)
	}

	clk.Advance(30 * time.Second)
	admit, reason = store.Evaluate("sw-01", "high_cpu", "cpu_load", domain.SeverityHigh)
	if admit {
		t.Fatalf("expected suppression inside cooldown window")
	}
	if !strings.Contains(reason, "270s") || !strings.Contains(reason, "suppressed 1 times") {
		t.Fatalf("unexpected suppression reason %q", reason)
	}

	clk.Advance(20 * time.Second)
	if admit, _ = store.Evaluate("sw-01", "high_cpu", "cpu_load", domain.SeverityHigh); admit {
		t.Fatalf("expected continued suppression at 50s")
	}
}

func TestEvaluateMonotonicity(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(0, nil, clk.Now, nil)

	var admits []time.Time
	for i := 0; i < 900; i++ {
		if admit, _ := store.Evaluate("sw-01", "high_memory", "mem", domain.SeverityMedium); admit {
			admits = append(admits, clk.Now())
		}
		clk.Advance(time.Second)
	}

	if len(admits) < 2 {
		t.Fatalf("expected multiple admits over 900s, got %d", len(admits))
	}
	for i := 1; i < len(admits); i++ {
		if gap := admits[i].Sub(admits[i-1]); gap < 300*time.Second {
			t.Fatalf("admits %d and %d are %s apart, below the cooldown period", i-1, i, gap)
		}
	}
}

func TestEvaluateCriticalBypassClearsEntry(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(300*time.Second, nil, clk.Now, nil)

	store.Evaluate("sw-01", "disk_full", "disk", domain.SeverityMedium)
	clk.Advance(10 * time.Second)
	if admit, _ := store.Evaluate("sw-01", "disk_full", "disk", domain.SeverityMedium); admit {
		t.Fatalf("expected medium severity suppressed inside window")
	}

	admit, reason := store.Evaluate("sw-01", "disk_full", "disk", domain.SeverityCritical)
	if !admit || reason != "" {
		t.Fatalf("expected critical bypass, got admit=%v reason=%q", admit, reason)
	}
	if _, ok := store.GetInfo("sw-01", "disk_full", "disk"); ok {
		t.Fatalf("expected cooldown entry cleared by critical bypass")
	}

	// Bypass also applies to emergency on a fresh entry.
	if admit, _ = store.Evaluate("sw-01", "disk_full", "disk", domain.SeverityEmergency); !admit {
		t.Fatalf("expected emergency admitted")
	}
}

func TestPerTypePeriodOverride(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(300*time.Second, map[string]int{"device_offline": 60}, clk.Now, nil)

	store.Evaluate("sw-01", "device_offline", "ping", domain.SeverityHigh)
	clk.Advance(61 * time.Second)
	if admit, _ := store.Evaluate("sw-01", "device_offline", "ping", domain.SeverityHigh); !admit {
		t.Fatalf("expected admit after 61s with 60s override period")
	}

	store.SetPeriod("device_offline", 120)
	clk.Advance(90 * time.Second)
	if admit, _ := store.Evaluate("sw-01", "device_offline", "ping", domain.SeverityHigh); admit {
		t.Fatalf("expected suppression after SetPeriod raised the window to 120s")
	}
}

func TestSweepRemovesAgedEntries(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(300*time.Second, nil, clk.Now, nil)

	store.Evaluate("sw-01", "high_cpu", "cpu", domain.SeverityLow)
	clk.Advance(2 * time.Hour)
	store.Evaluate("sw-02", "high_cpu", "cpu", domain.SeverityLow)

	if removed := store.Sweep(time.Hour); removed != 1 {
		t.Fatalf("expected one swept entry, got %d", removed)
	}
	if _, ok := store.GetInfo("sw-02", "high_cpu", "cpu"); !ok {
		t.Fatalf("expected fresh entry to survive sweep")
	}
}

func TestStatsCountsSuppressions(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(300*time.Second, nil, clk.Now, nil)

	store.Evaluate("sw-01", "high_cpu", "cpu", domain.SeverityLow)
	clk.Advance(time.Second)
	store.Evaluate("sw-01", "high_cpu", "cpu", domain.SeverityLow)
	store.Evaluate("sw-01", "high_cpu", "cpu", domain.SeverityLow)

	stats := store.GetStats()
	if stats.TotalTracked != 1 || stats.TotalAlerts != 1 || stats.TotalSuppressed != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.SuppressionRate <= 0.6 || stats.SuppressionRate >= 0.7 {
		t.Fatalf("unexpected suppression rate %v", stats.SuppressionRate)
	}
}

func TestDeduplicatorWindow(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	dedup := NewDeduplicator(60*time.Second, clk.Now)
	key := domain.AlertKey{DeviceID: "sw-01", AlertType: "bgp_flap", Variable: "peer1"}

	if dedup.IsDuplicate(key) {
		t.Fatalf("first raise must not be a duplicate")
	}
	clk.Advance(30 * time.Second)
	if !dedup.IsDuplicate(key) {
		t.Fatalf("raise inside window must be a duplicate")
	}

	// The duplicate check refreshed the fingerprint, so the window slides.
	clk.Advance(45 * time.Second)
	if !dedup.IsDuplicate(key) {
		t.Fatalf("raise 45s after refresh must still be a duplicate")
	}

	clk.Advance(61 * time.Second)
	if dedup.IsDuplicate(key) {
		t.Fatalf("raise after window expiry must not be a duplicate")
	}

	clk.Advance(2 * time.Hour)
	if removed := dedup.Cleanup(time.Hour); removed != 1 {
		t.Fatalf("expected one cleaned fingerprint, got %d", removed)
	}
}
