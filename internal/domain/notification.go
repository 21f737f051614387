package domain

import "time"

// Notification is one outbound message bound for a delivery channel.
// Params: alert identity, rendered message, and channel recipients.
// Returns: payload consumed by channel senders.
type Notification struct {
	AlertID    string    `json:"alert_id"`
	DeviceID   string    `json:"device_id"`
	Severity   Severity  `json:"severity"`
	Channel    string    `json:"channel"`
	Subject    string    `json:"subject,omitempty"`
	Message    string    `json:"message"`
	Recipients []string  `json:"recipients,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
