package ack

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nocalert/internal/domain"
)

// Canceller stops pending escalations when an alert leaves the open state.
// Params: one method taking the alert id.
// Returns: true when anything was cancelled, safe to call repeatedly.
type Canceller interface {
	Cancel(alertID string) bool
}

// Stats summarizes the ledger contents.
// Params: current and historical counters plus a per-status breakdown.
// Returns: snapshot on the stats query surface.
type Stats struct {
	TotalAcknowledged int            `json:"total_acknowledged"`
	ByStatus          map[string]int `json:"by_status"`
	TotalHistory      int            `json:"total_history"`
}

// Ledger tracks alert acknowledgments and their lifecycle.
// Params: guarded current map plus append-only history.
// Returns: escalation cancellation runs outside the ledger lock.
type Ledger struct {
	mu        sync.Mutex
	acks      map[string]*domain.Acknowledgment
	history   []domain.Acknowledgment
	canceller Canceller
	now       func() time.Time
	logger    *slog.Logger
}

// NewLedger builds an empty acknowledgment ledger.
// Params: escalation canceller, clock and logger, all nil-safe.
// Returns: ledger ready for use.
func NewLedger(canceller Canceller, now func() time.Time, logger *slog.Logger) *Ledger {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		acks:      make(map[string]*domain.Acknowledgment),
		canceller: canceller,
		now:       now,
		logger:    logger,
	}
}

// Acknowledge records one acknowledgment and stops its escalations.
// Params: alert id, acting operator and free-form notes.
// Returns: false when the alert is already acknowledged.
func (l *Ledger) Acknowledge(alertID, actor, notes string) bool {
	l.mu.Lock()
	if _, exists := l.acks[alertID]; exists {
		l.mu.Unlock()
		l.logger.Warn("alert already acknowledged", "alert", alertID)
		return false
	}
	record := domain.Acknowledgment{
		AlertID: alertID,
		Actor:   actor,
		AckedAt: l.now(),
		Notes:   notes,
		Status:  domain.AckStatusAcknowledged,
	}
	l.acks[alertID] = &record
	l.history = append(l.history, record)
	l.mu.Unlock()

	l.cancelEscalations(alertID)
	l.logger.Info("alert acknowledged", "alert", alertID, "by", actor)
	return true
}

// BulkAcknowledge acknowledges several alerts with shared notes.
// Params: alert ids, acting operator and notes applied to each.
// Returns: per-alert success map.
func (l *Ledger) BulkAcknowledge(alertIDs []string, actor, notes string) map[string]bool {
	results := make(map[string]bool, len(alertIDs))
	for _, alertID := range alertIDs {
		results[alertID] = l.Acknowledge(alertID, actor, notes)
	}
	return results
}

// Resolve marks an acknowledged alert as resolved.
// Params: alert id, acting operator and resolution notes.
// Returns: false when the alert was never acknowledged.
func (l *Ledger) Resolve(alertID, actor, resolutionNotes string) bool {
	l.mu.Lock()
	record, exists := l.acks[alertID]
	if !exists {
		l.mu.Unlock()
		l.logger.Warn("cannot resolve unacknowledged alert", "alert", alertID)
		return false
	}
	resolvedAt := l.now()
	record.Status = domain.AckStatusResolved
	record.ResolvedAt = &resolvedAt
	record.ResolutionNotes = resolutionNotes
	l.updateHistoryLocked(*record)
	l.mu.Unlock()

	l.cancelEscalations(alertID)
	l.logger.Info("alert resolved", "alert", alertID, "by", actor)
	return true
}

// EscalateInstead hands an alert to a higher level instead of owning it.
// Params: alert id, acting operator, escalation target and reason.
// Returns: true, escalations stay live for the new owner.
func (l *Ledger) EscalateInstead(alertID, actor, escalateTo, reason string) bool {
	l.mu.Lock()
	record := domain.Acknowledgment{
		AlertID:     alertID,
		Actor:       actor,
		AckedAt:     l.now(),
		Notes:       fmt.Sprintf("Escalated to %s: %s", escalateTo, reason),
		Status:      domain.AckStatusEscalated,
		EscalatedTo: escalateTo,
	}
	l.acks[alertID] = &record
	l.history = append(l.history, record)
	l.mu.Unlock()

	l.logger.Info("alert escalated", "alert", alertID, "by", actor, "to", escalateTo)
	return true
}

// Unacknowledge reopens an alert by dropping its acknowledgment.
// Params: alert id and reopen reason.
// Returns: false when no acknowledgment exists.
func (l *Ledger) Unacknowledge(alertID, reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.acks[alertID]; !exists {
		return false
	}
	delete(l.acks, alertID)
	l.logger.Info("alert unacknowledged", "alert", alertID, "reason", reason)
	return true
}

// IsAcknowledged reports whether an alert currently has an acknowledgment.
// Params: alert id.
// Returns: true for acknowledged, resolved or escalated alerts.
func (l *Ledger) IsAcknowledged(alertID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, exists := l.acks[alertID]
	return exists
}

// Info returns the acknowledgment record of one alert.
// Params: alert id.
// Returns: record copy and presence flag.
func (l *Ledger) Info(alertID string) (domain.Acknowledgment, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, exists := l.acks[alertID]
	if !exists {
		return domain.Acknowledgment{}, false
	}
	return *record, true
}

// AcknowledgedAlerts lists alert ids, optionally filtered by status.
// Params: status filter, empty for all.
// Returns: alert ids in map order.
func (l *Ledger) AcknowledgedAlerts(status domain.AckStatus) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.acks))
	for alertID, record := range l.acks {
		if status != "" && record.Status != status {
			continue
		}
		out = append(out, alertID)
	}
	return out
}

// GetStats summarizes ledger contents.
// Params: none.
// Returns: counters snapshot.
func (l *Ledger) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	byStatus := make(map[string]int)
	for _, record := range l.acks {
		byStatus[string(record.Status)]++
	}
	return Stats{
		TotalAcknowledged: len(l.acks),
		ByStatus:          byStatus,
		TotalHistory:      len(l.history),
	}
}

// UserHistory lists the most recent acknowledgments by one operator.
// Params: operator name and maximum record count.
// Returns: record copies newest first.
func (l *Ledger) UserHistory(actor string, limit int) []domain.Acknowledgment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Acknowledgment, 0)
	for i := len(l.history) - 1; i >= 0 && len(out) < limit; i-- {
		if l.history[i].Actor == actor {
			out = append(out, l.history[i])
		}
	}
	return out
}

// ExportHistory returns history records inside a time range.
// Params: inclusive range bounds, zero values disable a bound.
// Returns: record copies in append order.
func (l *Ledger) ExportHistory(start, end time.Time) []domain.Acknowledgment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Acknowledgment, 0, len(l.history))
	for _, record := range l.history {
		if !start.IsZero() && record.AckedAt.Before(start) {
			continue
		}
		if !end.IsZero() && record.AckedAt.After(end) {
			continue
		}
		out = append(out, record)
	}
	return out
}

// ImportHistory appends previously exported records to the history.
// Params: records from ExportHistory.
// Returns: number of records imported.
func (l *Ledger) ImportHistory(records []domain.Acknowledgment) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, records...)
	return len(records)
}

// Sweep removes aged terminal acknowledgments and history records.
// Params: maximum record age, measured against resolution or ack time.
// Returns: number of records removed, live acknowledgments are kept.
func (l *Ledger) Sweep(maxAge time.Duration) int {
	cutoff := l.now().Add(-maxAge)

	l.mu.Lock()
	removed := 0
	for alertID, record := range l.acks {
		if record.Status == domain.AckStatusAcknowledged {
			continue
		}
		if recordEndedAt(*record).Before(cutoff) {
			delete(l.acks, alertID)
			removed++
		}
	}
	kept := l.history[:0]
	for _, record := range l.history {
		if record.Status != domain.AckStatusAcknowledged && recordEndedAt(record).Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	l.history = kept
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Info("expired acknowledgment records removed", "count", removed)
	}
	return removed
}

// recordEndedAt picks the terminal timestamp of one record.
// Params: acknowledgment record.
// Returns: resolution time when present, acknowledgment time otherwise.
func recordEndedAt(record domain.Acknowledgment) time.Time {
	if record.ResolvedAt != nil {
		return *record.ResolvedAt
	}
	return record.AckedAt
}

// updateHistoryLocked refreshes the newest history record of one alert.
// Params: updated record, caller holds the lock.
// Returns: nothing, no-op when the alert has no history entry.
func (l *Ledger) updateHistoryLocked(record domain.Acknowledgment) {
	for i := len(l.history) - 1; i >= 0; i-- {
		if l.history[i].AlertID == record.AlertID {
			l.history[i] = record
			return
		}
	}
}

// cancelEscalations stops pending escalations without holding the lock.
// Params: alert id.
// Returns: nothing, skipped when no canceller is wired.
func (l *Ledger) cancelEscalations(alertID string) {
	if l.canceller == nil {
		return
	}
	if l.canceller.Cancel(alertID) {
		l.logger.Debug("escalations cancelled on acknowledgment", "alert", alertID)
	}
}
