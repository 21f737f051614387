package cooldown

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nocalert/internal/domain"
)

// Entry tracks suppression state for one alert key.
// Params: first/last visible timestamps and occurrence/suppression counters.
// Returns: mutable cooldown record.
type Entry struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	AlertCount int
	Suppressed int
}

// Info is a read-only cooldown snapshot for query surfaces.
// Params: entry counters plus remaining cooldown computed at read time.
// Returns: dashboard/CLI view of one key's suppression state.
type Info struct {
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	AlertCount int       `json:"alert_count"`
	Suppressed int       `json:"suppressed_count"`
	Remaining  float64   `json:"cooldown_remaining_sec"`
	InCooldown bool      `json:"in_cooldown"`
}

// Stats aggregates suppression counters across all tracked keys.
// Params: totals computed over the live entry map.
// Returns: operator-facing suppression statistics.
type Stats struct {
	ActiveCooldowns int     `json:"active_cooldowns"`
	TotalTracked    int     `json:"total_tracked"`
	TotalAlerts     int     `json:"total_alerts"`
	TotalSuppressed int     `json:"total_suppressed"`
	SuppressionRate float64 `json:"suppression_rate"`
}

// Store gates whether a newly observed condition becomes a visible alert.
// Params: per-alert-type cooldown periods and a keyed entry map.
// Returns: serialized admit/suppress decisions per alert key.
type Store struct {
	mu            sync.Mutex
	defaultPeriod time.Duration
	periods       map[string]time.Duration
	entries       map[domain.AlertKey]*Entry
	now           func() time.Time
	logger        *slog.Logger
}

// NewStore creates cooldown store with per-type period overrides.
// Params: default period, per-alert-type periods in seconds, clock function, and optional logger.
// Returns: initialized store.
func NewStore(defaultPeriod time.Duration, periodsSec map[string]int, now func() time.Time, logger *slog.Logger) *Store {
	if defaultPeriod <= 0 {
		defaultPeriod = 300 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	periods := make(map[string]time.Duration, len(periodsSec))
	for alertType, seconds := range periodsSec {
		if seconds > 0 {
			periods[alertType] = time.Duration(seconds) * time.Second
		}
	}
	return &Store{
		defaultPeriod: defaultPeriod,
		periods:       periods,
		entries:       make(map[domain.AlertKey]*Entry),
		now:           now,
		logger:        logger,
	}
}

// Evaluate decides whether an observed condition is admitted or suppressed.
// Params: alert key dimensions and observation severity.
// Returns: admit flag and human-readable suppression reason when suppressed.
func (s *Store) Evaluate(deviceID, alertType, variable string, severity domain.Severity) (bool, string) {
	key := domain.AlertKey{DeviceID: deviceID, AlertType: alertType, Variable: variable}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Critical alerts must never be suppressed.
	if severity.BypassesCooldown() {
		delete(s.entries, key)
		return true, ""
	}

	now := s.now()
	period := s.periodLocked(alertType)

	entry, ok := s.entries[key]
	if !ok {
		s.entries[key] = &Entry{FirstSeen: now, LastSeen: now, AlertCount: 1}
		return true, ""
	}

	sinceLast := now.Sub(entry.LastSeen)
	if sinceLast < period {
		entry.Suppressed++
		remaining := period - sinceLast
		return false, fmt.Sprintf(
			"Suppressed: alert in cooldown for %.0fs more (suppressed %d times)",
			remaining.Seconds(), entry.Suppressed,
		)
	}

	entry.LastSeen = now
	entry.AlertCount++
	return true, ""
}

// SetPeriod overrides cooldown period for one alert type.
// Params: alert type key and period in seconds.
// Returns: new period applied to subsequent evaluations.
func (s *Store) SetPeriod(alertType string, seconds int) {
	s.mu.Lock()
	s.periods[alertType] = time.Duration(seconds) * time.Second
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Info("cooldown period updated", "alert_type", alertType, "seconds", seconds)
	}
}

// ClearAll removes every cooldown entry.
// Params: none.
// Returns: empty store state.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.entries = make(map[domain.AlertKey]*Entry)
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Info("all cooldowns cleared")
	}
}

// GetInfo returns cooldown snapshot for one key.
// Params: alert key dimensions.
// Returns: snapshot view and existence flag.
func (s *Store) GetInfo(deviceID, alertType, variable string) (Info, bool) {
	key := domain.AlertKey{DeviceID: deviceID, AlertType: alertType, Variable: variable}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return Info{}, false
	}

	period := s.periodLocked(alertType)
	remaining := period - s.now().Sub(entry.LastSeen)
	if remaining < 0 {
		remaining = 0
	}
	return Info{
		FirstSeen:  entry.FirstSeen,
		LastSeen:   entry.LastSeen,
		AlertCount: entry.AlertCount,
		Suppressed: entry.Suppressed,
		Remaining:  remaining.Seconds(),
		InCooldown: remaining > 0,
	}, true
}

// Sweep removes entries older than the retention horizon.
// Params: maximum entry age.
// Returns: number of removed entries.
func (s *Store) Sweep(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	removed := 0
	for key, entry := range s.entries {
		if entry.LastSeen.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 && s.logger != nil {
		s.logger.Info("expired cooldown entries removed", "count", removed)
	}
	return removed
}

// GetStats aggregates suppression counters for all tracked keys.
// Params: none.
// Returns: cooldown statistics snapshot.
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := Stats{TotalTracked: len(s.entries)}
	for _, entry := range s.entries {
		stats.TotalAlerts += entry.AlertCount
		stats.TotalSuppressed += entry.Suppressed
		if now.Sub(entry.LastSeen) < s.defaultPeriod {
			stats.ActiveCooldowns++
		}
	}
	if total := stats.TotalAlerts + stats.TotalSuppressed; total > 0 {
		stats.SuppressionRate = float64(stats.TotalSuppressed) / float64(total)
	}
	return stats
}

// periodLocked resolves cooldown period for alert type; caller holds the lock.
// Params: alert type key.
// Returns: per-type period or the configured default.
func (s *Store) periodLocked(alertType string) time.Duration {
	if period, ok := s.periods[alertType]; ok {
		return period
	}
	return s.defaultPeriod
}
