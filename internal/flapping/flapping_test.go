package flapping

import (
	"testing"
	"time"
)

func TestRecordTransitionFirstObservationIsStable(t *testing.T) {
	t.Parallel()

	detector := NewDetector(3, 300*time.Second, 100, 600*time.Second, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	analysis := detector.RecordTransition("sw-01:Gi0/1", "up/up", now)
	if analysis.IsFlapping || analysis.FlapCount != 0 || analysis.StabilityScore != 1.0 {
		t.Fatalf("expected stable first observation, got %+v", analysis)
	}
}

func TestFlapThresholdExampleSequence(t *testing.T) {
	t.Parallel()

	detector := NewDetector(3, 300*time.Second, 100, 600*time.Second, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	detector.RecordTransition("sw-01:Gi0/1", "up", base.Add(-time.Second))
	states := []string{"down", "up", "down", "up"}
	var analysis Analysis
	for i, state := range states {
		analysis = detector.RecordTransition("sw-01:Gi0/1", state, base.Add(time.Duration(10*i)*time.Second))
	}

	if !analysis.IsFlapping {
		t.Fatalf("expected flapping after four changes in 30s, got %+v", analysis)
	}
	if analysis.FlapCount != 4 {
		t.Fatalf("expected flap count 4, got %d", analysis.FlapCount)
	}
}

func TestBelowThresholdIsNotFlapping(t *testing.T) {
	t.Parallel()

	detector := NewDetector(3, 300*time.Second, 100, 600*time.Second, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	detector.RecordTransition("sw-01:Gi0/2", "up", base)
	detector.RecordTransition("sw-01:Gi0/2", "down", base.Add(10*time.Second))
	analysis := detector.RecordTransition("sw-01:Gi0/2", "up", base.Add(20*time.Second))

	if analysis.IsFlapping {
		t.Fatalf("expected two changes below threshold=3 to not flap, got %+v", analysis)
	}
}

func TestRepeatedSameStateIsNotATransition(t *testing.T) {
	t.Parallel()

	detector := NewDetector(3, 300*time.Second, 100, 600*time.Second, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	detector.RecordTransition("sw-01:Gi0/3", "up", base)
	for i := 0; i < 10; i++ {
		detector.RecordTransition("sw-01:Gi0/3", "up", base.Add(time.Duration(i)*time.Second))
	}
	analysis := detector.RecordTransition("sw-01:Gi0/3", "up", base.Add(20*time.Second))
	if analysis.FlapCount != 0 {
		t.Fatalf("expected no recorded transitions for identical states, got %+v", analysis)
	}
}

func TestWindowExcludesOldTransitions(t *testing.T) {
	t.Parallel()

	detector := NewDetector(3, 300*time.Second, 100, 600*time.Second, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	detector.RecordTransition("sw-01:Gi0/4", "up", base)
	detector.RecordTransition("sw-01:Gi0/4", "down", base.Add(1*time.Second))
	detector.RecordTransition("sw-01:Gi0/4", "up", base.Add(2*time.Second))
	detector.RecordTransition("sw-01:Gi0/4", "down", base.Add(3*time.Second))

	if !detector.IsFlapping("sw-01:Gi0/4", base.Add(4*time.Second)) {
		t.Fatalf("expected flapping right after three changes")
	}
	if detector.IsFlapping("sw-01:Gi0/4", base.Add(10*time.Minute)) {
		t.Fatalf("expected old transitions excluded from window")
	}
}

func TestStabilityScoreFallsWithFlapCount(t *testing.T) {
	t.Parallel()

	detector := NewDetector(3, 300*time.Second, 100, 600*time.Second, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	detector.RecordTransition("e", "s0", base)
	var previous float64 = 1.0
	for i := 1; i <= 6; i++ {
		analysis := detector.RecordTransition("e", "s"+string(rune('0'+i)), base.Add(time.Duration(i)*time.Second))
		if analysis.IsFlapping && analysis.StabilityScore > previous {
			t.Fatalf("stability score rose from %v to %v at count %d", previous, analysis.StabilityScore, analysis.FlapCount)
		}
		previous = analysis.StabilityScore
		if analysis.StabilityScore < 0 || analysis.StabilityScore > 1 {
			t.Fatalf("stability score out of bounds: %+v", analysis)
		}
	}
}

func TestRecommendationTiersByRate(t *testing.T) {
	t.Parallel()

	detector := NewDetector(3, 300*time.Second, 100, 600*time.Second, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Four transitions over 12 seconds: 4/0.2min = 20 per minute.
	detector.RecordTransition("fast", "a", base)
	var analysis Analysis
	for i := 1; i <= 4; i++ {
		analysis = detector.RecordTransition("fast", "s"+string(rune('0'+i)), base.Add(time.Duration(3*i)*time.Second))
	}
	if analysis.RatePerMinute <= 10 {
		t.Fatalf("expected rate above 10/min, got %v", analysis.RatePerMinute)
	}
	if analysis.Recommendation == "" || analysis.Recommendation[:8] != "CRITICAL" {
		t.Fatalf("expected critical tier wording, got %q", analysis.Recommendation)
	}

	// Four transitions over 30 seconds: 8 per minute.
	detector.RecordTransition("mid", "a", base)
	for i := 1; i <= 4; i++ {
		analysis = detector.RecordTransition("mid", "s"+string(rune('0'+i)), base.Add(time.Duration(10*i)*time.Second))
	}
	if analysis.RatePerMinute <= 5 || analysis.RatePerMinute > 10 {
		t.Fatalf("expected rate in warning tier, got %v", analysis.RatePerMinute)
	}
	if analysis.Recommendation[:7] != "WARNING" {
		t.Fatalf("expected warning tier wording, got %q", analysis.Recommendation)
	}
}

func TestRingBufferEvictsOldest(t *testing.T) {
	t.Parallel()

	detector := NewDetector(3, time.Hour, 5, 600*time.Second, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	detector.RecordTransition("ring", "s0", base)
	for i := 1; i <= 8; i++ {
		detector.RecordTransition("ring", "s"+string(rune('0'+i)), base.Add(time.Duration(i)*time.Minute))
	}

	history := detector.History("ring", 24*time.Hour, base.Add(time.Hour))
	if len(history) != 5 {
		t.Fatalf("expected ring capped at 5, got %d", len(history))
	}
	if history[0].NewState != "s4" || history[4].NewState != "s8" {
		t.Fatalf("expected oldest entries evicted, got first=%q last=%q", history[0].NewState, history[4].NewState)
	}
}

func TestInterfaceMonitorCompositeState(t *testing.T) {
	t.Parallel()

	detector := NewDetector(3, 300*time.Second, 100, 600*time.Second, nil)
	monitor := NewInterfaceMonitor(detector)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	monitor.RecordInterfaceStatus("sw-01", "Gi0/1", "up", "up", base)
	monitor.RecordInterfaceStatus("sw-01", "Gi0/1", "up", "down", base.Add(time.Second))

	state, ok := detector.CurrentState("sw-01:Gi0/1")
	if !ok || state != "up/down" {
		t.Fatalf("expected composite state up/down, got %q ok=%v", state, ok)
	}
}

func TestRouteChurnQuantization(t *testing.T) {
	t.Parallel()

	detector := NewDetector(3, 300*time.Second, 100, 600*time.Second, nil)
	monitor := NewRouteChurnMonitor(detector, 100)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	monitor.RecordRouteCount("rtr-01", "global", 850, base)
	analysis := monitor.RecordRouteCount("rtr-01", "global", 880, base.Add(time.Second))
	if analysis.FlapCount != 0 {
		t.Fatalf("expected counts within one bucket to not transition, got %+v", analysis)
	}

	analysis = monitor.RecordRouteCount("rtr-01", "global", 910, base.Add(2*time.Second))
	if count, ok := detector.CurrentState("rtr-01:routes:global"); !ok || count != "global:900" {
		t.Fatalf("expected quantized state global:900, got %q", count)
	}
	_ = analysis
}
