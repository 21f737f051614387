package config

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2/unstable"
)

// RoutingConfig defines notification routing policy.
// Params: default channels, preset toggle, and normalized rules.
// Returns: routing setup options.
type RoutingConfig struct {
	DefaultChannels []string          `toml:"default_channels"`
	Presets         bool              `toml:"presets"`
	Rules           []RouteRuleConfig `toml:"-"`
}

// rawRoutingConfig mirrors the `[routing]` TOML table.
// Params: rules keyed by name under `[routing.rule.<name>]`.
// Returns: raw routing section before normalization.
type rawRoutingConfig struct {
	DefaultChannels []string                `toml:"default_channels"`
	Presets         bool                    `toml:"presets"`
	Rule            map[string]rawRouteRule `toml:"rule"`
}

// rawRouteRule stores one rule body from a `[routing.rule.<name>]` table.
// Params: rule fields except the key-derived name.
// Returns: intermediate rule body used for normalization.
type rawRouteRule struct {
	Priority       int                       `toml:"priority"`
	StopProcessing bool                      `toml:"stop_processing"`
	Enabled        *bool                     `toml:"enabled"`
	When           map[string]ConditionValue `toml:"when"`
	Action         []RouteActionConfig       `toml:"action"`
}

// RouteRuleConfig describes one normalized routing rule.
// Params: name, priority, per-field conditions, and emitted actions.
// Returns: runtime rule definition.
type RouteRuleConfig struct {
	Name           string
	Priority       int
	StopProcessing bool
	Enabled        *bool
	When           map[string]ConditionValue
	Action         []RouteActionConfig
}

// RouteActionConfig describes one routing action.
// Params: action type plus type-specific destination fields.
// Returns: action definition consumed by the router builder.
type RouteActionConfig struct {
	Type    string `toml:"type"`
	Channel string `toml:"channel"`
	Group   string `toml:"group"`
	Level   string `toml:"level"`
	Reason  string `toml:"reason"`
}

// ConditionValue decodes one rule condition from scalar, array or table.
// Params: literal value, allowed list, or operator table from TOML.
// Returns: tagged condition consumed by the router builder.
type ConditionValue struct {
	Kind    string
	Literal any
	List    []string
	Op      string
	Operand any
}

// conditionOps lists the supported comparison operators.
var conditionOps = map[string]struct{}{
	"eq":       {},
	"ne":       {},
	"gt":       {},
	"lt":       {},
	"contains": {},
	"regex":    {},
}

// UnmarshalTOML decodes one condition from its TOML AST node.
// Params: value node supplied by the go-toml/v2 decoder.
// Returns: conversion error for unsupported shapes.
func (c *ConditionValue) UnmarshalTOML(node *unstable.Node) error {
	value, err := conditionNodeValue(node)
	if err != nil {
		return err
	}
	return c.decodeCondition(value)
}

// conditionNodeValue converts a TOML AST value node into plain Go values.
// Params: value node for a scalar, array, or inline table.
// Returns: string/bool/int64/float64, []interface{}, or map[string]interface{}.
func conditionNodeValue(node *unstable.Node) (interface{}, error) {
	switch node.Kind {
	case unstable.String:
		return string(node.Data), nil
	case unstable.Bool:
		return string(node.Data) == "true", nil
	case unstable.Integer:
		n, err := strconv.ParseInt(strings.ReplaceAll(string(node.Data), "_", ""), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("condition integer %q: %w", node.Data, err)
		}
		return n, nil
	case unstable.Float:
		f, err := strconv.ParseFloat(strings.ReplaceAll(string(node.Data), "_", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("condition float %q: %w", node.Data, err)
		}
		return f, nil
	case unstable.Array:
		out := make([]interface{}, 0, 4)
		items := node.Children()
		for items.Next() {
			item, err := conditionNodeValue(items.Node())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case unstable.InlineTable:
		out := make(map[string]interface{})
		entries := node.Children()
		for entries.Next() {
			entry := entries.Node()
			key := entry.Key()
			if !key.Next() {
				return nil, fmt.Errorf("condition table entry missing key")
			}
			value, err := conditionNodeValue(entry.Value())
			if err != nil {
				return nil, err
			}
			out[string(key.Node().Data)] = value
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported condition value kind %s", node.Kind)
	}
}

// decodeCondition decodes one condition from its TOML shape.
// Params: parsed TOML value from the decoder.
// Returns: conversion error for unsupported shapes.
func (c *ConditionValue) decodeCondition(v interface{}) error {
	switch t := v.(type) {
	case string, bool, int64, float64:
		c.Kind = "literal"
		c.Literal = normalizeScalar(t)
		return nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, raw := range t {
			str, ok := raw.(string)
			if !ok {
				return fmt.Errorf("condition list contains non-string value %T", raw)
			}
			out = append(out, str)
		}
		c.Kind = "one_of"
		c.List = out
		return nil
	case map[string]interface{}:
		if len(t) != 1 {
			return fmt.Errorf("condition table must hold exactly one operator, got %d", len(t))
		}
		for op, operand := range t {
			if _, ok := conditionOps[op]; !ok {
				return fmt.Errorf("unsupported condition operator %q", op)
			}
			c.Kind = "cmp"
			c.Op = op
			c.Operand = normalizeScalar(operand)
		}
		return nil
	default:
		return fmt.Errorf("unsupported condition value type %T", v)
	}
}

// normalizeScalar converts decoder integer values to float64.
// Params: raw decoded scalar.
// Returns: scalar with numeric values unified.
func normalizeScalar(v any) any {
	if n, ok := v.(int64); ok {
		return float64(n)
	}
	return v
}

// EscalationConfig defines escalation engine policy.
// Params: enable and defaults toggles, buckets, and normalized rules.
// Returns: escalation setup options.
type EscalationConfig struct {
	Enabled  bool                   `toml:"enabled"`
	Defaults bool                   `toml:"defaults"`
	Buckets  EscalationBuckets      `toml:"buckets"`
	Rules    []EscalationRuleConfig `toml:"-"`
}

// rawEscalationConfig mirrors the `[escalation]` TOML table.
// Params: rules keyed by name under `[escalation.rule.<name>]`.
// Returns: raw escalation section before normalization.
type rawEscalationConfig struct {
	Enabled  bool                         `toml:"enabled"`
	Defaults bool                         `toml:"defaults"`
	Buckets  EscalationBuckets            `toml:"buckets"`
	Rule     map[string]rawEscalationRule `toml:"rule"`
}

// EscalationBuckets maps rule delays to minimum applicable severities.
// Params: delay ceilings in minutes per severity floor.
// Returns: bucket policy for the escalation engine.
type EscalationBuckets struct {
	CriticalMaxMinutes int `toml:"critical_max_minutes"`
	HighMaxMinutes     int `toml:"high_max_minutes"`
	MediumMaxMinutes   int `toml:"medium_max_minutes"`
}

// rawEscalationRule stores one `[escalation.rule.<name>]` body.
// Params: rule fields except the key-derived name.
// Returns: intermediate rule body used for normalization.
type rawEscalationRule struct {
	Condition             string `toml:"condition"`
	DelayMinutes          int    `toml:"delay_minutes"`
	Action                string `toml:"action"`
	Target                string `toml:"target"`
	RepeatCount           int    `toml:"repeat_count"`
	RepeatIntervalMinutes int    `toml:"repeat_interval_minutes"`
	Enabled               *bool  `toml:"enabled"`
}

// EscalationRuleConfig describes one normalized escalation rule.
// Params: name plus trigger, delay, action, target, and repeat policy.
// Returns: runtime rule definition.
type EscalationRuleConfig struct {
	Name                  string
	Condition             string
	DelayMinutes          int
	Action                string
	Target                string
	RepeatCount           int
	RepeatIntervalMinutes int
	Enabled               *bool
}

// ContactsConfig defines contact groups and targeting links.
// Params: defaults toggle, contacts, groups, and mapping tables.
// Returns: contact registry seed.
type ContactsConfig struct {
	Defaults       bool                     `toml:"defaults"`
	Contact        map[string]ContactConfig `toml:"contact"`
	Group          map[string]GroupConfig   `toml:"group"`
	SeverityMap    map[string][]string      `toml:"severity_map"`
	DeviceGroupMap map[string][]string      `toml:"device_group_map"`
}

// ContactConfig defines one reachable person.
// Params: name, per-method addresses, and availability.
// Returns: contact seed keyed by the `[contacts.contact.<id>]` table name.
type ContactConfig struct {
	Name            string `toml:"name"`
	Telegram        string `toml:"telegram"`
	Email           string `toml:"email"`
	SMS             string `toml:"sms"`
	Voice           string `toml:"voice"`
	OnCall          bool   `toml:"on_call"`
	EscalationLevel int    `toml:"escalation_level"`
}

// GroupConfig defines one contact group.
// Params: description, member ids, and preferred methods.
// Returns: group seed keyed by the `[contacts.group.<name>]` table name.
type GroupConfig struct {
	Description string   `toml:"description"`
	Members     []string `toml:"members"`
	Methods     []string `toml:"methods"`
}

// escalationActions lists the supported escalation action kinds.
var escalationActions = map[string]struct{}{
	"notify_manager":  {},
	"page_on_call":    {},
	"create_ticket":   {},
	"execute_script":  {},
	"update_priority": {},
}

// routeActionTypes lists the supported routing action types.
var routeActionTypes = map[string]struct{}{
	"channel":       {},
	"contact_group": {},
	"escalate":      {},
	"suppress":      {},
}

// contactMethods lists the supported contact methods.
var contactMethods = map[string]struct{}{
	"telegram": {},
	"email":    {},
	"sms":      {},
	"voice":    {},
	"pager":    {},
	"webhook":  {},
}

// normalizeRawConfig converts raw rule tables into ordered rule slices.
// Params: decoded raw configuration.
// Returns: normalized config or name conflict error.
func normalizeRawConfig(raw rawConfig) (Config, error) {
	cfg := Config{
		Service:      raw.Service,
		Log:          raw.Log,
		Ingest:       raw.Ingest,
		Cooldown:     raw.Cooldown,
		Flapping:     raw.Flapping,
		Reachability: raw.Reachability,
		Contacts:     raw.Contacts,
		Notify:       raw.Notify,
	}

	cfg.Routing.DefaultChannels = raw.Routing.DefaultChannels
	cfg.Routing.Presets = raw.Routing.Presets
	if len(raw.Routing.Rule) > 0 {
		names := make([]string, 0, len(raw.Routing.Rule))
		for name := range raw.Routing.Rule {
			names = append(names, name)
		}
		sort.Strings(names)
		cfg.Routing.Rules = make([]RouteRuleConfig, 0, len(names))
		for _, name := range names {
			body := raw.Routing.Rule[name]
			cfg.Routing.Rules = append(cfg.Routing.Rules, RouteRuleConfig{
				Name:           name,
				Priority:       body.Priority,
				StopProcessing: body.StopProcessing,
				Enabled:        body.Enabled,
				When:           body.When,
				Action:         body.Action,
			})
		}
	}

	cfg.Escalation.Enabled = raw.Escalation.Enabled
	cfg.Escalation.Defaults = raw.Escalation.Defaults
	cfg.Escalation.Buckets = raw.Escalation.Buckets
	if len(raw.Escalation.Rule) > 0 {
		names := make([]string, 0, len(raw.Escalation.Rule))
		for name := range raw.Escalation.Rule {
			names = append(names, name)
		}
		sort.Strings(names)
		cfg.Escalation.Rules = make([]EscalationRuleConfig, 0, len(names))
		for _, name := range names {
			body := raw.Escalation.Rule[name]
			cfg.Escalation.Rules = append(cfg.Escalation.Rules, EscalationRuleConfig{
				Name:                  name,
				Condition:             body.Condition,
				DelayMinutes:          body.DelayMinutes,
				Action:                body.Action,
				Target:                body.Target,
				RepeatCount:           body.RepeatCount,
				RepeatIntervalMinutes: body.RepeatIntervalMinutes,
				Enabled:               body.Enabled,
			})
		}
	}

	return cfg, nil
}

// mergeContactsConfig overlays one contacts fragment onto the destination.
// Params: destination contacts section and fragment tables.
// Returns: merged side-effect in dst, entries replace by key.
func mergeContactsConfig(dst *ContactsConfig, src ContactsConfig) {
	if src.Defaults {
		dst.Defaults = true
	}
	if len(src.Contact) > 0 {
		if dst.Contact == nil {
			dst.Contact = make(map[string]ContactConfig, len(src.Contact))
		}
		for id, contact := range src.Contact {
			dst.Contact[id] = contact
		}
	}
	if len(src.Group) > 0 {
		if dst.Group == nil {
			dst.Group = make(map[string]GroupConfig, len(src.Group))
		}
		for name, group := range src.Group {
			dst.Group[name] = group
		}
	}
	if len(src.SeverityMap) > 0 {
		if dst.SeverityMap == nil {
			dst.SeverityMap = make(map[string][]string, len(src.SeverityMap))
		}
		for severity, groups := range src.SeverityMap {
			dst.SeverityMap[severity] = groups
		}
	}
	if len(src.DeviceGroupMap) > 0 {
		if dst.DeviceGroupMap == nil {
			dst.DeviceGroupMap = make(map[string][]string, len(src.DeviceGroupMap))
		}
		for deviceGroup, groups := range src.DeviceGroupMap {
			dst.DeviceGroupMap[deviceGroup] = groups
		}
	}
}

// validateRoutingConfig checks routing rules for consistency.
// Params: routing section after defaults.
// Returns: first validation error found.
func validateRoutingConfig(cfg RoutingConfig) error {
	for _, rule := range cfg.Rules {
		if len(rule.Action) == 0 {
			return fmt.Errorf("routing.rule.%s must define at least one action", rule.Name)
		}
		for _, action := range rule.Action {
			if _, ok := routeActionTypes[action.Type]; !ok {
				return fmt.Errorf("routing.rule.%s has unsupported action type %q", rule.Name, action.Type)
			}
			switch action.Type {
			case "channel":
				if strings.TrimSpace(action.Channel) == "" {
					return fmt.Errorf("routing.rule.%s channel action needs a channel", rule.Name)
				}
			case "contact_group":
				if strings.TrimSpace(action.Group) == "" {
					return fmt.Errorf("routing.rule.%s contact_group action needs a group", rule.Name)
				}
			}
		}
		for field, condition := range rule.When {
			if condition.Kind != "cmp" {
				continue
			}
			switch condition.Op {
			case "gt", "lt":
				if _, ok := condition.Operand.(float64); !ok {
					return fmt.Errorf("routing.rule.%s condition %s requires a numeric operand", rule.Name, field)
				}
			case "regex":
				pattern, ok := condition.Operand.(string)
				if !ok {
					return fmt.Errorf("routing.rule.%s condition %s requires a string pattern", rule.Name, field)
				}
				if _, err := regexp.Compile("(?i)" + pattern); err != nil {
					return fmt.Errorf("routing.rule.%s condition %s: %w", rule.Name, field, err)
				}
			case "contains":
				if _, ok := condition.Operand.(string); !ok {
					return fmt.Errorf("routing.rule.%s condition %s requires a string operand", rule.Name, field)
				}
			}
		}
	}
	return nil
}

// validateEscalationConfig checks escalation rules for consistency.
// Params: escalation section after defaults.
// Returns: first validation error found.
func validateEscalationConfig(cfg EscalationConfig) error {
	for _, rule := range cfg.Rules {
		if _, ok := escalationActions[rule.Action]; !ok {
			return fmt.Errorf("escalation.rule.%s has unsupported action %q", rule.Name, rule.Action)
		}
		if strings.TrimSpace(rule.Target) == "" {
			return fmt.Errorf("escalation.rule.%s must define a target", rule.Name)
		}
		if rule.DelayMinutes < 0 {
			return fmt.Errorf("escalation.rule.%s delay_minutes must not be negative", rule.Name)
		}
	}
	return nil
}

// validateContactsConfig checks contact tables for consistency.
// Params: contacts section.
// Returns: first validation error found.
func validateContactsConfig(cfg ContactsConfig) error {
	for name, group := range cfg.Group {
		for _, method := range group.Methods {
			if _, ok := contactMethods[method]; !ok {
				return fmt.Errorf("contacts.group.%s has unsupported method %q", name, method)
			}
		}
		for _, member := range group.Members {
			if _, ok := cfg.Contact[member]; !ok {
				return fmt.Errorf("contacts.group.%s references unknown contact %q", name, member)
			}
		}
	}
	return nil
}
