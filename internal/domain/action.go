package domain

// ActionType identifies one routing action kind.
// Params: constants for channel/contact-group/escalate/suppress actions.
// Returns: normalized action type usage across router and dispatch.
type ActionType string

const (
	// ActionChannel delivers the alert to one transport channel.
	ActionChannel ActionType = "channel"
	// ActionContactGroup delivers the alert to every contact of one group.
	ActionContactGroup ActionType = "contact_group"
	// ActionEscalate escalates the alert to one support level immediately.
	ActionEscalate ActionType = "escalate"
	// ActionSuppress drops the alert without delivery.
	ActionSuppress ActionType = "suppress"
)

// Action is one delivery decision produced by the notification router.
// Params: action type and type-specific destination fields.
// Returns: dispatch instruction consumed by the delivery layer.
type Action struct {
	Type    ActionType `json:"type"`
	Channel string     `json:"channel,omitempty"`
	Group   string     `json:"group,omitempty"`
	Level   string     `json:"level,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}
