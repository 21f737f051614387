package domain

import "strings"

// Severity is normalized alert severity level.
// Params: constants from info up to emergency.
// Returns: ordered severity usage across suppression and escalation.
type Severity string

const (
	// SeverityInfo marks informational conditions.
	SeverityInfo Severity = "info"
	// SeverityLow marks low-impact conditions.
	SeverityLow Severity = "low"
	// SeverityMedium marks conditions that need attention.
	SeverityMedium Severity = "medium"
	// SeverityHigh marks conditions that degrade service.
	SeverityHigh Severity = "high"
	// SeverityCritical marks conditions that require immediate action.
	SeverityCritical Severity = "critical"
	// SeverityEmergency marks total outage conditions.
	SeverityEmergency Severity = "emergency"
)

var severityRank = map[Severity]int{
	SeverityInfo:      1,
	SeverityLow:       2,
	SeverityMedium:    3,
	SeverityHigh:      4,
	SeverityCritical:  5,
	SeverityEmergency: 6,
}

// Rank returns numeric severity order.
// Params: none.
// Returns: rank 1..6; unknown severities rank as medium.
func (s Severity) Rank() int {
	rank, ok := severityRank[Severity(strings.ToLower(string(s)))]
	if !ok {
		return severityRank[SeverityMedium]
	}
	return rank
}

// AtLeast reports whether severity is at or above the given floor.
// Params: floor severity.
// Returns: true when rank is greater or equal.
func (s Severity) AtLeast(floor Severity) bool {
	return s.Rank() >= floor.Rank()
}

// BypassesCooldown reports whether severity is exempt from suppression.
// Params: none.
// Returns: true for critical and emergency.
func (s Severity) BypassesCooldown() bool {
	switch Severity(strings.ToLower(string(s))) {
	case SeverityCritical, SeverityEmergency:
		return true
	default:
		return false
	}
}

// IsKnown reports whether severity has a defined rank.
// Params: none.
// Returns: true for defined severity constants.
func (s Severity) IsKnown() bool {
	_, ok := severityRank[Severity(strings.ToLower(string(s)))]
	return ok
}
