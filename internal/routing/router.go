package routing

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"nocalert/internal/domain"
)

// Fields is the flat notification view the router matches against.
// Params: field name to scalar or string-list value.
// Returns: condition lookup surface for rule evaluation.
type Fields map[string]any

// Rule is one routing rule with conditions and resulting actions.
// Params: identity, priority, per-field conditions and emitted actions.
// Returns: rule evaluated highest priority first.
type Rule struct {
	ID             string
	Name           string
	Priority       int
	Conditions     map[string]Predicate
	Actions        []domain.Action
	StopProcessing bool
	Enabled        bool
	CreatedAt      time.Time

	seq int
}

// Router matches notifications against prioritized rules.
// Params: guarded rule list plus fallback channels.
// Returns: action lists for the dispatch layer.
type Router struct {
	mu              sync.RWMutex
	rules           []Rule
	defaultChannels []string
	nextSeq         int
	now             func() time.Time
	logger          *slog.Logger
}

// NewRouter builds an empty router with fallback channels.
// Params: fallback channel names, clock and logger, both nil-safe.
// Returns: router ready for rule registration.
func NewRouter(defaultChannels []string, now func() time.Time, logger *slog.Logger) *Router {
	if len(defaultChannels) == 0 {
		defaultChannels = []string{"telegram"}
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		defaultChannels: append([]string(nil), defaultChannels...),
		now:             now,
		logger:          logger,
	}
}

// AddRule registers one rule and keeps rules priority-ordered.
// Params: rule to register, enabled unless explicitly disabled upstream.
// Returns: nothing, ordering is re-established on every mutation.
func (r *Router) AddRule(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = r.now().UTC()
	}
	rule.seq = r.nextSeq
	r.nextSeq++
	r.rules = append(r.rules, rule)
	r.sortLocked()
	r.logger.Debug("routing rule added", "rule", rule.Name, "priority", rule.Priority)
}

// RemoveRule deletes one rule by id.
// Params: rule id.
// Returns: true when a rule was removed.
func (r *Router) RemoveRule(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rule := range r.rules {
		if rule.ID == id {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return true
		}
	}
	return false
}

// SetEnabled toggles one rule without removing it.
// Params: rule id and desired enabled flag.
// Returns: true when the rule exists.
func (r *Router) SetEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == id {
			r.rules[i].Enabled = enabled
			return true
		}
	}
	return false
}

// Route evaluates all rules and collects the actions to take.
// Params: flat notification fields.
// Returns: matched actions, or default channel actions when nothing matched.
func (r *Router) Route(fields Fields) []domain.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actions := make([]domain.Action, 0, 4)
	for _, rule := range r.rules {
		if !rule.Enabled {
			continue
		}
		if !matchesConditions(rule.Conditions, fields) {
			continue
		}
		actions = append(actions, rule.Actions...)
		if rule.StopProcessing {
			break
		}
	}

	if len(actions) == 0 {
		for _, channel := range r.defaultChannels {
			actions = append(actions, domain.Action{Type: domain.ActionChannel, Channel: channel})
		}
	}
	return actions
}

// MatchingRules lists every enabled rule matching the notification.
// Params: flat notification fields.
// Returns: matching rule copies in evaluation order.
func (r *Router) MatchingRules(fields Fields) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]Rule, 0)
	for _, rule := range r.rules {
		if rule.Enabled && matchesConditions(rule.Conditions, fields) {
			matched = append(matched, cloneRule(rule))
		}
	}
	return matched
}

// Rules lists all registered rules in evaluation order.
// Params: none.
// Returns: rule copies safe for callers to inspect.
func (r *Router) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, cloneRule(rule))
	}
	return out
}

// sortLocked restores priority-descending order with stable insertion ties.
// Params: none, caller holds the write lock.
// Returns: nothing.
func (r *Router) sortLocked() {
	sort.SliceStable(r.rules, func(i, j int) bool {
		if r.rules[i].Priority != r.rules[j].Priority {
			return r.rules[i].Priority > r.rules[j].Priority
		}
		return r.rules[i].seq < r.rules[j].seq
	})
}

// matchesConditions checks every rule condition against the fields.
// Params: per-field predicates and the notification fields.
// Returns: true when all conditions hold.
func matchesConditions(conditions map[string]Predicate, fields Fields) bool {
	for field, predicate := range conditions {
		value, present := fields[field]
		if !predicate.Match(value, present) {
			return false
		}
	}
	return true
}

// cloneRule copies one rule with detached condition and action containers.
// Params: stored rule.
// Returns: copy callers may hold without racing mutations.
func cloneRule(rule Rule) Rule {
	copied := rule
	copied.Conditions = make(map[string]Predicate, len(rule.Conditions))
	for field, predicate := range rule.Conditions {
		copied.Conditions[field] = predicate
	}
	copied.Actions = append([]domain.Action(nil), rule.Actions...)
	return copied
}
