package app

import (
	"fmt"
	"log/slog"
	"time"

	"nocalert/internal/config"
	"nocalert/internal/contacts"
	"nocalert/internal/domain"
	"nocalert/internal/escalation"
	"nocalert/internal/routing"
)

// buildRouter constructs the routing table from config.
// Params: routing section, clock, and logger.
// Returns: populated router or condition conversion error.
func buildRouter(cfg config.RoutingConfig, now func() time.Time, logger *slog.Logger) (*routing.Router, error) {
	router := routing.NewRouter(cfg.DefaultChannels, now, logger)
	if cfg.Presets {
		for _, rule := range routing.PresetRules() {
			router.AddRule(rule)
		}
	}
	for _, ruleCfg := range cfg.Rules {
		rule, err := routeRuleFromConfig(ruleCfg)
		if err != nil {
			return nil, fmt.Errorf("routing rule %q: %w", ruleCfg.Name, err)
		}
		router.AddRule(rule)
	}
	return router, nil
}

// routeRuleFromConfig converts one normalized rule into a runtime rule.
// Params: normalized routing rule config.
// Returns: runtime rule or condition conversion error.
func routeRuleFromConfig(ruleCfg config.RouteRuleConfig) (routing.Rule, error) {
	conditions := make(map[string]routing.Predicate, len(ruleCfg.When))
	for field, condition := range ruleCfg.When {
		predicate, err := predicateFromCondition(condition)
		if err != nil {
			return routing.Rule{}, fmt.Errorf("condition %q: %w", field, err)
		}
		conditions[field] = predicate
	}

	actions := make([]domain.Action, 0, len(ruleCfg.Action))
	for _, action := range ruleCfg.Action {
		actions = append(actions, domain.Action{
			Type:    domain.ActionType(action.Type),
			Channel: action.Channel,
			Group:   action.Group,
			Level:   action.Level,
			Reason:  action.Reason,
		})
	}

	return routing.Rule{
		ID:             ruleCfg.Name,
		Name:           ruleCfg.Name,
		Priority:       ruleCfg.Priority,
		Conditions:     conditions,
		Actions:        actions,
		StopProcessing: ruleCfg.StopProcessing,
		Enabled:        ruleCfg.Enabled == nil || *ruleCfg.Enabled,
	}, nil
}

// predicateFromCondition converts one decoded condition into a predicate.
// Params: tagged condition value from TOML.
// Returns: matching predicate or conversion error.
func predicateFromCondition(condition config.ConditionValue) (routing.Predicate, error) {
	switch condition.Kind {
	case "literal":
		return routing.Equals(condition.Literal), nil
	case "one_of":
		return routing.OneOf(condition.List...), nil
	case "cmp":
		return cmpPredicate(condition.Op, condition.Operand)
	default:
		return routing.Predicate{}, fmt.Errorf("unsupported condition kind %q", condition.Kind)
	}
}

// cmpPredicate converts one comparison condition into a predicate.
// Params: operator name and decoded operand.
// Returns: matching predicate or conversion error.
func cmpPredicate(op string, operand any) (routing.Predicate, error) {
	switch op {
	case "eq":
		return routing.Cmp(routing.OpEq, operand), nil
	case "ne":
		return routing.Cmp(routing.OpNe, operand), nil
	case "gt", "lt":
		number, ok := operand.(float64)
		if !ok {
			return routing.Predicate{}, fmt.Errorf("operator %q requires a numeric operand, got %T", op, operand)
		}
		kind := routing.OpGt
		if op == "lt" {
			kind = routing.OpLt
		}
		return routing.CmpNumber(kind, number), nil
	case "contains":
		substring, ok := operand.(string)
		if !ok {
			return routing.Predicate{}, fmt.Errorf("operator contains requires a string operand, got %T", operand)
		}
		return routing.Contains(substring), nil
	case "regex":
		pattern, ok := operand.(string)
		if !ok {
			return routing.Predicate{}, fmt.Errorf("operator regex requires a string operand, got %T", operand)
		}
		return routing.Regex(pattern)
	default:
		return routing.Predicate{}, fmt.Errorf("unsupported condition operator %q", op)
	}
}

// buildEscalationEngine constructs the escalation engine from config.
// Params: escalation section, executor, clock, and logger.
// Returns: populated engine, nil when escalation is disabled.
func buildEscalationEngine(cfg config.EscalationConfig, executor escalation.Executor, now func() time.Time, logger *slog.Logger) *escalation.Engine {
	if !cfg.Enabled {
		return nil
	}
	engine := escalation.NewEngine(executor, escalationBuckets(cfg), now, logger)
	for _, rule := range escalationRules(cfg) {
		engine.AddRule(rule)
	}
	return engine
}

// escalationBuckets converts configured bucket minutes into durations.
// Params: escalation section.
// Returns: bucket policy, zero values fall back to engine defaults.
func escalationBuckets(cfg config.EscalationConfig) escalation.SeverityBuckets {
	return escalation.SeverityBuckets{
		CriticalMaxDelay: time.Duration(cfg.Buckets.CriticalMaxMinutes) * time.Minute,
		HighMaxDelay:     time.Duration(cfg.Buckets.HighMaxMinutes) * time.Minute,
		MediumMaxDelay:   time.Duration(cfg.Buckets.MediumMaxMinutes) * time.Minute,
	}
}

// escalationRules collects the full runtime rule list from config.
// Params: escalation section.
// Returns: built-in defaults when enabled, followed by configured rules.
func escalationRules(cfg config.EscalationConfig) []escalation.Rule {
	rules := make([]escalation.Rule, 0, len(cfg.Rules))
	if cfg.Defaults {
		rules = append(rules, escalation.DefaultRules()...)
	}
	for _, ruleCfg := range cfg.Rules {
		rules = append(rules, escalationRuleFromConfig(ruleCfg))
	}
	return rules
}

// escalationRuleFromConfig converts one normalized rule into a runtime rule.
// Params: normalized escalation rule config.
// Returns: runtime escalation rule.
func escalationRuleFromConfig(ruleCfg config.EscalationRuleConfig) escalation.Rule {
	return escalation.Rule{
		Name:           ruleCfg.Name,
		Condition:      ruleCfg.Condition,
		Delay:          time.Duration(ruleCfg.DelayMinutes) * time.Minute,
		Action:         escalation.ActionKind(ruleCfg.Action),
		Target:         ruleCfg.Target,
		RepeatCount:    ruleCfg.RepeatCount,
		RepeatInterval: time.Duration(ruleCfg.RepeatIntervalMinutes) * time.Minute,
		Enabled:        ruleCfg.Enabled == nil || *ruleCfg.Enabled,
	}
}

// buildContactRegistry seeds the contact registry from config.
// Params: contacts section and logger.
// Returns: populated registry.
func buildContactRegistry(cfg config.ContactsConfig, logger *slog.Logger) *contacts.Registry {
	registry := contacts.NewRegistry(logger)
	if cfg.Defaults {
		registry.DefaultMappings()
	}

	for id, contactCfg := range cfg.Contact {
		methods := make(map[contacts.Method]string)
		if contactCfg.Telegram != "" {
			methods[contacts.MethodTelegram] = contactCfg.Telegram
		}
		if contactCfg.Email != "" {
			methods[contacts.MethodEmail] = contactCfg.Email
		}
		if contactCfg.SMS != "" {
			methods[contacts.MethodSMS] = contactCfg.SMS
		}
		if contactCfg.Voice != "" {
			methods[contacts.MethodVoice] = contactCfg.Voice
		}
		registry.AddContact(contacts.Contact{
			ID:              id,
			Name:            contactCfg.Name,
			Methods:         methods,
			OnCall:          contactCfg.OnCall,
			EscalationLevel: contactCfg.EscalationLevel,
		})
	}

	for name, groupCfg := range cfg.Group {
		methods := make([]contacts.Method, 0, len(groupCfg.Methods))
		for _, method := range groupCfg.Methods {
			methods = append(methods, contacts.Method(method))
		}
		registry.CreateGroup(name, groupCfg.Description, methods...)
		for _, member := range groupCfg.Members {
			registry.AddToGroup(member, name)
		}
	}

	for severity, groups := range cfg.SeverityMap {
		registry.MapSeverity(domain.Severity(severity), groups...)
	}
	for deviceGroup, groups := range cfg.DeviceGroupMap {
		registry.MapDeviceGroup(deviceGroup, groups...)
	}
	return registry
}
