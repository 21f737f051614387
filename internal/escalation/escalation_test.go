package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nocalert/internal/domain"
)

// fakeClock provides a controllable time source for engine tests.
// Params: current instant guarded for parallel subtests.
// Returns: Now and Advance helpers.
type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// recordingExecutor captures executed actions and can fail on demand.
// Params: guarded call log plus optional injected error.
// Returns: Executor implementation for tests.
type recordingExecutor struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (r *recordingExecutor) record(kind, alertID, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.calls = append(r.calls, kind+"/"+alertID+"/"+target)
	return nil
}

func (r *recordingExecutor) NotifyManager(_ context.Context, alertID, target string) error {
	return r.record("notify_manager", alertID, target)
}

func (r *recordingExecutor) PageOnCall(_ context.Context, alertID, target string) error {
	return r.record("page_on_call", alertID, target)
}

func (r *recordingExecutor) CreateTicket(_ context.Context, alertID, target string) error {
	return r.record("create_ticket", alertID, target)
}

func (r *recordingExecutor) ExecuteScript(_ context.Context, alertID, target string) error {
	return r.record("execute_script", alertID, target)
}

func (r *recordingExecutor) UpdatePriority(_ context.Context, alertID, target string) error {
	return r.record("update_priority", alertID, target)
}

func (r *recordingExecutor) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestEngine(executor Executor, clock *fakeClock) *Engine {
	engine := NewEngine(executor, DefaultSeverityBuckets(), clock.Now, nil)
	for _, rule := range DefaultRules() {
		engine.AddRule(rule)
	}
	return engine
}

func TestScheduleFiltersBySeverityBucket(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	engine := newTestEngine(&recordingExecutor{}, clock)

	tests := []struct {
		severity domain.Severity
		want     int
	}{
		{domain.SeverityCritical, 4},
		{domain.SeverityHigh, 2},
		{domain.SeverityMedium, 1},
		{domain.SeverityLow, 0},
	}
	for _, tc := range tests {
		scheduled := engine.Schedule("alert/"+string(tc.severity), tc.severity, clock.Now())
		if len(scheduled) != tc.want {
			t.Fatalf("severity %s: expected %d scheduled, got %+v", tc.severity, tc.want, scheduled)
		}
	}
}

func TestCancelBeforeDueExecutesNothing(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	executor := &recordingExecutor{}
	engine := newTestEngine(executor, clock)

	engine.Schedule("alert/a", domain.SeverityCritical, clock.Now())
	if !engine.Cancel("alert/a") {
		t.Fatalf("expected cancel to remove pending escalations")
	}

	clock.Advance(2 * time.Hour)
	executed := engine.Tick(context.Background())
	if len(executed) != 0 || executor.callCount() != 0 {
		t.Fatalf("expected zero executions after cancel, got %+v", executed)
	}
}

func TestTickExecutesDueAndRepeats(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	executor := &recordingExecutor{}
	engine := NewEngine(executor, DefaultSeverityBuckets(), clock.Now, nil)
	engine.AddRule(Rule{
		Name:           "ack_timeout_15min",
		Condition:      "ack_timeout",
		Delay:          15 * time.Minute,
		Action:         ActionNotifyManager,
		Target:         "team_lead",
		RepeatCount:    1,
		RepeatInterval: 10 * time.Minute,
		Enabled:        true,
	})
	engine.Schedule("alert/a", domain.SeverityHigh, clock.Now())

	if executed := engine.Tick(context.Background()); len(executed) != 0 {
		t.Fatalf("expected nothing due yet, got %+v", executed)
	}

	clock.Advance(15 * time.Minute)
	executed := engine.Tick(context.Background())
	if len(executed) != 1 || executed[0].Target != "team_lead" {
		t.Fatalf("expected one due execution, got %+v", executed)
	}

	// Repeat is rescheduled on the rule's own interval.
	if executed := engine.Tick(context.Background()); len(executed) != 0 {
		t.Fatalf("expected repeat not yet due, got %+v", executed)
	}
	clock.Advance(10 * time.Minute)
	executed = engine.Tick(context.Background())
	if len(executed) != 1 || executed[0].Repeat != 1 {
		t.Fatalf("expected one repeat execution, got %+v", executed)
	}

	clock.Advance(time.Hour)
	if executed := engine.Tick(context.Background()); len(executed) != 0 {
		t.Fatalf("expected repeats exhausted, got %+v", executed)
	}
	if got := len(engine.History("alert/a")); got != 2 {
		t.Fatalf("expected 2 history records, got %d", got)
	}
}

func TestExecutorFailureMarksExecuted(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	executor := &recordingExecutor{fail: errors.New("pager unreachable")}
	engine := NewEngine(executor, DefaultSeverityBuckets(), clock.Now, nil)
	engine.AddRule(Rule{
		Name: "emergency_immediate", Condition: "severity_change",
		Action: ActionNotifyManager, Target: "noc_manager",
		RepeatCount: 3, RepeatInterval: time.Minute, Enabled: true,
	})
	engine.Schedule("alert/a", domain.SeverityEmergency, clock.Now())

	clock.Advance(time.Second)
	if executed := engine.Tick(context.Background()); len(executed) != 0 {
		t.Fatalf("expected failed execution excluded, got %+v", executed)
	}

	// A failed escalation is not retried.
	clock.Advance(time.Hour)
	if executed := engine.Tick(context.Background()); len(executed) != 0 {
		t.Fatalf("expected no retry after failure, got %+v", executed)
	}
	if got := len(engine.History("")); got != 0 {
		t.Fatalf("expected empty history after failure, got %d records", got)
	}
}

func TestUnknownActionMarksExecuted(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	executor := &recordingExecutor{}
	engine := NewEngine(executor, DefaultSeverityBuckets(), clock.Now, nil)
	engine.AddRule(Rule{
		Name: "bad", Condition: "ack_timeout",
		Action: ActionKind("carrier_pigeon"), Target: "roof",
		Enabled: true,
	})
	engine.Schedule("alert/a", domain.SeverityCritical, clock.Now())

	clock.Advance(time.Minute)
	if executed := engine.Tick(context.Background()); len(executed) != 0 {
		t.Fatalf("expected unknown action to execute nothing, got %+v", executed)
	}
	if got := len(engine.PendingEscalations()); got != 0 {
		t.Fatalf("expected unknown action entry retired, got %d pending", got)
	}
}

func TestManualEscalateTargets(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	executor := &recordingExecutor{}
	engine := NewEngine(executor, DefaultSeverityBuckets(), clock.Now, nil)

	if !engine.ManualEscalate(context.Background(), "alert/a", 3) {
		t.Fatalf("expected manual escalation to succeed")
	}
	if !engine.ManualEscalate(context.Background(), "alert/a", 9) {
		t.Fatalf("expected unknown level to fall back to management")
	}

	executor.mu.Lock()
	defer executor.mu.Unlock()
	if len(executor.calls) != 2 ||
		executor.calls[0] != "notify_manager/alert/a/level3_support" ||
		executor.calls[1] != "notify_manager/alert/a/management" {
		t.Fatalf("unexpected manual escalation calls %+v", executor.calls)
	}
}

// gateExecutor blocks inside the executor call until released.
// Params: started/release channels plus a guarded call counter.
// Returns: Executor implementation for in-flight cancellation tests.
type gateExecutor struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (g *gateExecutor) fire() error {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.started <- struct{}{}
	<-g.release
	return nil
}

func (g *gateExecutor) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *gateExecutor) NotifyManager(context.Context, string, string) error  { return g.fire() }
func (g *gateExecutor) PageOnCall(context.Context, string, string) error    { return g.fire() }
func (g *gateExecutor) CreateTicket(context.Context, string, string) error  { return g.fire() }
func (g *gateExecutor) ExecuteScript(context.Context, string, string) error { return g.fire() }
func (g *gateExecutor) UpdatePriority(context.Context, string, string) error {
	return g.fire()
}

func TestCancelDuringTickFiresAtMostOnce(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	gate := &gateExecutor{started: make(chan struct{}), release: make(chan struct{})}
	engine := NewEngine(gate, DefaultSeverityBuckets(), clock.Now, nil)
	engine.AddRule(Rule{
		Name:           "page_fast",
		Condition:      "ack_timeout",
		Delay:          time.Minute,
		Action:         ActionPageOnCall,
		Target:         "on_call_engineer",
		RepeatCount:    3,
		RepeatInterval: time.Minute,
		Enabled:        true,
	})
	engine.Schedule("alert/race", domain.SeverityCritical, clock.Now())
	clock.Advance(2 * time.Minute)

	done := make(chan []Execution, 1)
	go func() {
		done <- engine.Tick(context.Background())
	}()

	// The executor call is in flight and the engine lock is free.
	<-gate.started
	engine.Cancel("alert/race")
	close(gate.release)
	executed := <-done

	if len(executed) > 1 {
		t.Fatalf("expected at most one fire after cancel, got %+v", executed)
	}
	if gate.callCount() != 1 {
		t.Fatalf("expected one executor call, got %d", gate.callCount())
	}

	clock.Advance(2 * time.Hour)
	if more := engine.Tick(context.Background()); len(more) != 0 {
		t.Fatalf("expected no executions after cancel, got %+v", more)
	}
	if pending := engine.PendingEscalations(); len(pending) != 0 {
		t.Fatalf("expected no pending escalations after cancel, got %+v", pending)
	}
}

func TestSetRulesKeepsPendingEscalations(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	executor := &recordingExecutor{}
	engine := newTestEngine(executor, clock)

	scheduled := engine.Schedule("alert/a", domain.SeverityCritical, clock.Now())
	if len(scheduled) == 0 {
		t.Fatalf("expected scheduled escalations")
	}

	engine.SetRules([]Rule{{
		Name:      "replacement",
		Condition: "ack_timeout",
		Delay:     time.Minute,
		Action:    ActionNotifyManager,
		Target:    "team_lead",
		Enabled:   true,
	}}, SeverityBuckets{})

	pending := engine.PendingEscalations()
	if len(pending) != len(scheduled) {
		t.Fatalf("expected %d pending after rule swap, got %+v", len(scheduled), pending)
	}

	clock.Advance(2 * time.Hour)
	if executed := engine.Tick(context.Background()); len(executed) == 0 {
		t.Fatalf("expected surviving escalations to execute, got none")
	}
}

func TestSweepRemovesExhaustedEntries(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	executor := &recordingExecutor{}
	engine := NewEngine(executor, DefaultSeverityBuckets(), clock.Now, nil)
	engine.AddRule(Rule{
		Name:      "one_shot",
		Condition: "ack_timeout",
		Delay:     time.Minute,
		Action:    ActionNotifyManager,
		Target:    "team_lead",
		Enabled:   true,
	})

	engine.Schedule("alert/a", domain.SeverityCritical, clock.Now())
	clock.Advance(2 * time.Minute)
	if executed := engine.Tick(context.Background()); len(executed) != 1 {
		t.Fatalf("expected one execution, got %+v", executed)
	}

	clock.Advance(time.Hour)
	if removed := engine.Sweep(24 * time.Hour); removed != 0 {
		t.Fatalf("expected fresh records kept, removed %d", removed)
	}

	clock.Advance(48 * time.Hour)
	if removed := engine.Sweep(24 * time.Hour); removed == 0 {
		t.Fatalf("expected aged records removed")
	}
	if history := engine.History(""); len(history) != 0 {
		t.Fatalf("expected history pruned, got %+v", history)
	}
}
