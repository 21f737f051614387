package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"nocalert/internal/domain"
)

// ActionKind identifies one escalation action.
// Params: constants mirroring the Executor method set.
// Returns: action tag stored on rules and pending entries.
type ActionKind string

const (
	// ActionNotifyManager informs the responsible manager.
	ActionNotifyManager ActionKind = "notify_manager"
	// ActionPageOnCall pages the on-call engineer.
	ActionPageOnCall ActionKind = "page_on_call"
	// ActionCreateTicket opens a tracking ticket.
	ActionCreateTicket ActionKind = "create_ticket"
	// ActionExecuteScript runs a remediation script.
	ActionExecuteScript ActionKind = "execute_script"
	// ActionUpdatePriority raises the alert priority.
	ActionUpdatePriority ActionKind = "update_priority"
)

// Executor performs escalation actions outside the engine lock.
// Params: one method per action kind, each with alert id and target.
// Returns: error when the action could not be carried out.
type Executor interface {
	NotifyManager(ctx context.Context, alertID, target string) error
	PageOnCall(ctx context.Context, alertID, target string) error
	CreateTicket(ctx context.Context, alertID, target string) error
	ExecuteScript(ctx context.Context, alertID, target string) error
	UpdatePriority(ctx context.Context, alertID, target string) error
}

// Rule is one escalation policy entry.
// Params: trigger condition, due delay, action, target and repeat policy.
// Returns: matched against alert severity at schedule time.
type Rule struct {
	Name           string
	Condition      string
	Delay          time.Duration
	Action         ActionKind
	Target         string
	RepeatCount    int
	RepeatInterval time.Duration
	Enabled        bool
}

// SeverityBuckets maps rule delays to the minimum severity they apply to.
// Params: delay ceilings for critical-only, high-and-up, medium-and-up rules.
// Returns: applicability policy used during scheduling.
type SeverityBuckets struct {
	CriticalMaxDelay time.Duration
	HighMaxDelay     time.Duration
	MediumMaxDelay   time.Duration
}

// DefaultSeverityBuckets returns the standard delay-to-severity mapping.
// Params: none.
// Returns: 5m/15m/60m ceilings, longer delays apply to every severity.
func DefaultSeverityBuckets() SeverityBuckets {
	return SeverityBuckets{
		CriticalMaxDelay: 5 * time.Minute,
		HighMaxDelay:     15 * time.Minute,
		MediumMaxDelay:   60 * time.Minute,
	}
}

// Pending is one scheduled escalation awaiting execution.
// Params: alert and rule identity plus due time and repeat bookkeeping.
// Returns: snapshot entries on query surfaces.
type Pending struct {
	AlertID        string
	RuleName       string
	Action         ActionKind
	Target         string
	DueAt          time.Time
	Executed       bool
	Repeats        int
	MaxRepeats     int
	RepeatInterval time.Duration
}

// Execution records one successfully executed escalation.
// Params: pending identity plus execution timestamp.
// Returns: history entries on query surfaces.
type Execution struct {
	AlertID    string
	RuleName   string
	Action     ActionKind
	Target     string
	DueAt      time.Time
	ExecutedAt time.Time
	Repeat     int
}

// Engine schedules and drives alert escalations.
// Params: guarded rules, pending map keyed alertID:ruleName and history.
// Returns: executor callbacks always run without holding the lock.
type Engine struct {
	mu       sync.Mutex
	rules    []Rule
	pending  map[string]*Pending
	history  []Execution
	executor Executor
	buckets  SeverityBuckets
	now      func() time.Time
	logger   *slog.Logger
}

// NewEngine builds an escalation engine around one executor.
// Params: action executor, severity buckets, clock and logger, nil-safe.
// Returns: engine with no rules registered.
func NewEngine(executor Executor, buckets SeverityBuckets, now func() time.Time, logger *slog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	zero := SeverityBuckets{}
	if buckets == zero {
		buckets = DefaultSeverityBuckets()
	}
	return &Engine{
		pending:  make(map[string]*Pending),
		executor: executor,
		buckets:  buckets,
		now:      now,
		logger:   logger,
	}
}

// AddRule registers one escalation rule.
// Params: rule to append in evaluation order.
// Returns: nothing.
func (e *Engine) AddRule(rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
	e.logger.Info("escalation rule added", "rule", rule.Name)
}

// DefaultRules returns the built-in escalation policy set.
// Params: none.
// Returns: ack-timeout and severity-change rules for Engine.AddRule.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:           "ack_timeout_15min",
			Condition:      "ack_timeout",
			Delay:          15 * time.Minute,
			Action:         ActionNotifyManager,
			Target:         "team_lead",
			RepeatCount:    1,
			RepeatInterval: 30 * time.Minute,
			Enabled:        true,
		},
		{
			Name:           "ack_timeout_30min",
			Condition:      "ack_timeout",
			Delay:          30 * time.Minute,
			Action:         ActionPageOnCall,
			Target:         "on_call_engineer",
			RepeatCount:    2,
			RepeatInterval: 30 * time.Minute,
			Enabled:        true,
		},
		{
			Name:           "critical_immediate",
			Condition:      "severity_change",
			Delay:          5 * time.Minute,
			Action:         ActionPageOnCall,
			Target:         "on_call_engineer",
			RepeatCount:    1,
			RepeatInterval: 30 * time.Minute,
			Enabled:        true,
		},
		{
			Name:           "emergency_immediate",
			Condition:      "severity_change",
			Delay:          0,
			Action:         ActionNotifyManager,
			Target:         "noc_manager",
			RepeatCount:    1,
			RepeatInterval: 30 * time.Minute,
			Enabled:        true,
		},
	}
}

// SetRules replaces the rule set and buckets, keeping scheduled escalations.
// Params: full replacement rule list and bucket policy, zero buckets mean defaults.
// Returns: nothing, pending entries and history survive the swap.
func (e *Engine) SetRules(rules []Rule, buckets SeverityBuckets) {
	zero := SeverityBuckets{}
	if buckets == zero {
		buckets = DefaultSeverityBuckets()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append([]Rule(nil), rules...)
	e.buckets = buckets
	e.logger.Info("escalation rules replaced", "rules", len(rules))
}

// SetExecutor swaps the action executor.
// Params: replacement executor for subsequent ticks.
// Returns: nothing, in-flight executor calls finish on the old one.
func (e *Engine) SetExecutor(executor Executor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executor = executor
}

// Schedule registers pending escalations for one alert.
// Params: alert id, its severity and creation time.
// Returns: snapshots of every escalation scheduled by applicable rules.
func (e *Engine) Schedule(alertID string, severity domain.Severity, createdAt time.Time) []Pending {
	e.mu.Lock()
	defer e.mu.Unlock()

	scheduled := make([]Pending, 0)
	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		if !e.severityApplies(rule, severity) {
			continue
		}
		entry := &Pending{
			AlertID:        alertID,
			RuleName:       rule.Name,
			Action:         rule.Action,
			Target:         rule.Target,
			DueAt:          createdAt.Add(rule.Delay),
			MaxRepeats:     rule.RepeatCount,
			RepeatInterval: rule.RepeatInterval,
		}
		e.pending[pendingKey(alertID, rule.Name)] = entry
		scheduled = append(scheduled, *entry)
	}
	return scheduled
}

// severityApplies checks whether a rule covers the alert severity.
// Params: rule delay policy and alert severity.
// Returns: true when the delay bucket admits that severity rank.
func (e *Engine) severityApplies(rule Rule, severity domain.Severity) bool {
	rank := severity.Rank()
	switch {
	case rule.Delay <= e.buckets.CriticalMaxDelay:
		return rank >= domain.SeverityCritical.Rank()
	case rule.Delay <= e.buckets.HighMaxDelay:
		return rank >= domain.SeverityHigh.Rank()
	case rule.Delay <= e.buckets.MediumMaxDelay:
		return rank >= domain.SeverityMedium.Rank()
	}
	return true
}

// Tick executes every due pending escalation.
// Params: context passed to executor calls.
// Returns: escalations executed successfully during this tick.
func (e *Engine) Tick(ctx context.Context) []Execution {
	now := e.now()

	e.mu.Lock()
	executor := e.executor
	due := make([]Pending, 0)
	for _, entry := range e.pending {
		if entry.Executed || now.Before(entry.DueAt) {
			continue
		}
		due = append(due, *entry)
	}
	e.mu.Unlock()

	executed := make([]Execution, 0, len(due))
	for _, entry := range due {
		err := invoke(ctx, executor, entry)
		record := Execution{
			AlertID:    entry.AlertID,
			RuleName:   entry.RuleName,
			Action:     entry.Action,
			Target:     entry.Target,
			DueAt:      entry.DueAt,
			ExecutedAt: now,
			Repeat:     entry.Repeats,
		}

		e.mu.Lock()
		stored, exists := e.pending[pendingKey(entry.AlertID, entry.RuleName)]
		if err != nil {
			if exists {
				stored.Executed = true
			}
			e.mu.Unlock()
			e.logger.Error("escalation failed", "alert", entry.AlertID, "rule", entry.RuleName, "error", err)
			continue
		}
		e.history = append(e.history, record)
		if exists {
			if stored.Repeats < stored.MaxRepeats {
				stored.Repeats++
				stored.DueAt = now.Add(stored.RepeatInterval)
			} else {
				stored.Executed = true
			}
		}
		e.mu.Unlock()

		executed = append(executed, record)
		e.logger.Info("escalation executed", "alert", entry.AlertID, "rule", entry.RuleName, "target", entry.Target)
	}
	return executed
}

// invoke dispatches one escalation to the executor method for its kind.
// Params: context, executor snapshot, and pending entry.
// Returns: executor error, or an error for unknown kinds or nil executor.
func invoke(ctx context.Context, executor Executor, entry Pending) error {
	if executor == nil {
		return fmt.Errorf("no escalation executor registered")
	}
	switch entry.Action {
	case ActionNotifyManager:
		return executor.NotifyManager(ctx, entry.AlertID, entry.Target)
	case ActionPageOnCall:
		return executor.PageOnCall(ctx, entry.AlertID, entry.Target)
	case ActionCreateTicket:
		return executor.CreateTicket(ctx, entry.AlertID, entry.Target)
	case ActionExecuteScript:
		return executor.ExecuteScript(ctx, entry.AlertID, entry.Target)
	case ActionUpdatePriority:
		return executor.UpdatePriority(ctx, entry.AlertID, entry.Target)
	}
	return fmt.Errorf("unknown escalation action %q", entry.Action)
}

// Cancel removes every pending escalation of one alert.
// Params: alert id, typically on acknowledgment or resolution.
// Returns: true when at least one entry was removed.
func (e *Engine) Cancel(alertID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	prefix := alertID + ":"
	cancelled := false
	for key := range e.pending {
		if strings.HasPrefix(key, prefix) {
			delete(e.pending, key)
			cancelled = true
		}
	}
	if cancelled {
		e.logger.Info("escalations cancelled", "alert", alertID)
	}
	return cancelled
}

// ManualEscalate escalates one alert to a support level immediately.
// Params: context, alert id and numeric level, 2=L2 3=L3 4=management.
// Returns: true when the notification was delivered.
func (e *Engine) ManualEscalate(ctx context.Context, alertID string, level int) bool {
	target := "management"
	switch level {
	case 2:
		target = "level2_support"
	case 3:
		target = "level3_support"
	}

	entry := Pending{
		AlertID:  alertID,
		RuleName: fmt.Sprintf("manual_escalate_%d", level),
		Action:   ActionNotifyManager,
		Target:   target,
		DueAt:    e.now(),
	}
	e.mu.Lock()
	executor := e.executor
	e.mu.Unlock()
	if err := invoke(ctx, executor, entry); err != nil {
		e.logger.Error("manual escalation failed", "alert", alertID, "error", err)
		return false
	}

	e.mu.Lock()
	e.history = append(e.history, Execution{
		AlertID:    entry.AlertID,
		RuleName:   entry.RuleName,
		Action:     entry.Action,
		Target:     entry.Target,
		DueAt:      entry.DueAt,
		ExecutedAt: e.now(),
	})
	e.mu.Unlock()
	return true
}

// PendingEscalations lists escalations scheduled but not yet exhausted.
// Params: none.
// Returns: pending snapshots in map order.
func (e *Engine) PendingEscalations() []Pending {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Pending, 0, len(e.pending))
	for _, entry := range e.pending {
		if entry.Executed {
			continue
		}
		out = append(out, *entry)
	}
	return out
}

// History lists executed escalations, optionally for one alert.
// Params: alert id filter, empty for all.
// Returns: history snapshots in execution order.
func (e *Engine) History(alertID string) []Execution {
	e.mu.Lock()
	defer e.mu.Unlock()
	if alertID == "" {
		return append([]Execution(nil), e.history...)
	}
	out := make([]Execution, 0)
	for _, record := range e.history {
		if record.AlertID == alertID {
			out = append(out, record)
		}
	}
	return out
}

// Sweep removes exhausted pending entries and aged history records.
// Params: maximum record age measured against due and execution times.
// Returns: number of records removed.
func (e *Engine) Sweep(maxAge time.Duration) int {
	cutoff := e.now().Add(-maxAge)

	e.mu.Lock()
	removed := 0
	for key, entry := range e.pending {
		if entry.Executed && entry.DueAt.Before(cutoff) {
			delete(e.pending, key)
			removed++
		}
	}
	kept := e.history[:0]
	for _, record := range e.history {
		if record.ExecutedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	e.history = kept
	e.mu.Unlock()

	if removed > 0 {
		e.logger.Info("expired escalation records removed", "count", removed)
	}
	return removed
}

// pendingKey builds the map key for one alert and rule pair.
// Params: alert id and rule name.
// Returns: alertID:ruleName composite key.
func pendingKey(alertID, ruleName string) string {
	return alertID + ":" + ruleName
}
