package domain

import "time"

// AckStatus is acknowledgment lifecycle state.
// Params: acknowledged/resolved/escalated/suppressed constants.
// Returns: status transitions for the acknowledgment ledger.
type AckStatus string

const (
	// AckStatusAcknowledged indicates an operator owns the alert.
	AckStatusAcknowledged AckStatus = "acknowledged"
	// AckStatusResolved indicates the underlying issue was fixed.
	AckStatusResolved AckStatus = "resolved"
	// AckStatusEscalated indicates the operator redirected the alert.
	AckStatusEscalated AckStatus = "escalated"
	// AckStatusSuppressed indicates the alert was muted by an operator.
	AckStatusSuppressed AckStatus = "suppressed"
)

// Acknowledgment records who accepted an alert, when, and how it ended.
// Params: alert identity, actor, notes, and resolution fields.
// Returns: ledger record exported for reporting.
type Acknowledgment struct {
	AlertID         string     `json:"alert_id"`
	Actor           string     `json:"actor"`
	AckedAt         time.Time  `json:"acked_at"`
	Notes           string     `json:"notes,omitempty"`
	Status          AckStatus  `json:"status"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	EscalatedTo     string     `json:"escalated_to,omitempty"`
}
