package routing

import "nocalert/internal/domain"

// PresetRules builds the built-in routing rule set.
// Params: none.
// Returns: common NOC rules ready for Router.AddRule.
func PresetRules() []Rule {
	return []Rule{
		{
			ID:       "preset-maintenance-suppress",
			Name:     "Suppress alerts during maintenance",
			Priority: 200,
			Conditions: map[string]Predicate{
				"maintenance_mode": Equals(true),
			},
			Actions: []domain.Action{
				{Type: domain.ActionSuppress, Reason: "maintenance_window"},
			},
			Enabled: true,
		},
		{
			ID:       "preset-critical-all",
			Name:     "Critical alerts to all channels",
			Priority: 100,
			Conditions: map[string]Predicate{
				"severity": Equals("critical"),
			},
			Actions: []domain.Action{
				{Type: domain.ActionChannel, Channel: "telegram"},
				{Type: domain.ActionChannel, Channel: "email"},
				{Type: domain.ActionChannel, Channel: "voice_call"},
			},
			Enabled: true,
		},
		{
			ID:       "preset-security-team",
			Name:     "Security alerts to security team",
			Priority: 95,
			Conditions: map[string]Predicate{
				"variable": MustRegex("(firewall|acl|vpn|auth)"),
			},
			Actions: []domain.Action{
				{Type: domain.ActionChannel, Channel: "telegram"},
				{Type: domain.ActionContactGroup, Group: "security_team"},
			},
			Enabled: true,
		},
		{
			ID:       "preset-core-sms",
			Name:     "Core network alerts via SMS",
			Priority: 90,
			Conditions: map[string]Predicate{
				"tags":     Contains("core"),
				"severity": OneOf("critical", "high"),
			},
			Actions: []domain.Action{
				{Type: domain.ActionChannel, Channel: "sms"},
				{Type: domain.ActionChannel, Channel: "telegram"},
			},
			Enabled: true,
		},
		{
			ID:       "preset-flapping-escalate",
			Name:     "Escalate flapping alerts",
			Priority: 85,
			Conditions: map[string]Predicate{
				"flapping":   Equals(true),
				"flap_count": CmpNumber(OpGt, 5),
			},
			Actions: []domain.Action{
				{Type: domain.ActionEscalate, Level: "noc_manager"},
				{Type: domain.ActionChannel, Channel: "telegram"},
			},
			Enabled: true,
		},
	}
}
