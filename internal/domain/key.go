package domain

import "strings"

// AlertKey is the suppression identity tuple for one abnormal condition.
// Params: device, alert type, and variable dimensions.
// Returns: comparable key for cooldown/dedup maps.
type AlertKey struct {
	DeviceID  string
	AlertType string
	Variable  string
}

// AlertID builds deterministic alert id in the alert namespace.
// Params: none.
// Returns: formatted alert id used by escalation and acknowledgment.
func (k AlertKey) AlertID() string {
	device := sanitize(k.DeviceID)
	alertType := sanitize(k.AlertType)
	variable := sanitize(k.Variable)

	var builder strings.Builder
	builder.Grow(len("alert/") + len(device) + len(alertType) + len(variable) + 2)
	builder.WriteString("alert/")
	builder.WriteString(device)
	builder.WriteByte('/')
	builder.WriteString(alertType)
	builder.WriteByte('/')
	builder.WriteString(variable)
	return builder.String()
}

// Fingerprint builds compact dedup fingerprint for the key.
// Params: none.
// Returns: device:type:variable string.
func (k AlertKey) Fingerprint() string {
	return k.DeviceID + ":" + k.AlertType + ":" + k.Variable
}

// sanitize converts key path fragments into stable namespace-safe tokens.
// Params: raw value with possible separators.
// Returns: sanitized string with unsupported chars replaced by underscore.
func sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "_"
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
