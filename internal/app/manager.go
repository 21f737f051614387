package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"time"

	"nocalert/internal/ack"
	"nocalert/internal/clock"
	"nocalert/internal/config"
	"nocalert/internal/contacts"
	"nocalert/internal/cooldown"
	"nocalert/internal/domain"
	"nocalert/internal/escalation"
	"nocalert/internal/flapping"
	"nocalert/internal/notify"
	"nocalert/internal/reachability"
	"nocalert/internal/routing"
	"nocalert/internal/templatefmt"
)

// alertMessageTemplate renders the default outbound alert body.
const alertMessageTemplate = `[{{ .Severity }}] {{ .DeviceID }} {{ .AlertType }}/{{ .Variable }} = {{ .Value }}{{ if .Flapping }} (flapping, {{ .FlapCount }} transitions){{ end }}`

// messageContext feeds the alert message template.
// Params: observation fields plus flap analysis.
// Returns: template data for one notification body.
type messageContext struct {
	Severity  string
	DeviceID  string
	AlertType string
	Variable  string
	Value     string
	Flapping  bool
	FlapCount int
}

// Manager coordinates suppression, routing, delivery, and escalations.
// Params: runtime config, domain stores, notifier, logger, and clock.
// Returns: observation/probe sink and periodic worker entrypoint.
type Manager struct {
	mu          sync.RWMutex
	cfg         config.Config
	logger      *slog.Logger
	clock       clock.Clock
	cooldowns   *cooldown.Store
	dedup       *cooldown.Deduplicator
	flaps       *flapping.Detector
	reach       *reachability.Tracker
	router      *routing.Router
	escalations *escalation.Engine
	acks        *ack.Ledger
	contacts    *contacts.Registry
	dispatcher  *notify.Dispatcher
	executor    *notify.EscalationExecutor
	maintenance map[string]struct{}
	messageTmpl *template.Template
}

// escalationCancelProxy routes ack cancellations to the live engine.
// Params: manager holding the current escalation engine.
// Returns: canceller usable across config reloads.
type escalationCancelProxy struct {
	manager *Manager
}

// Cancel cancels pending escalations through the current engine.
// Params: alert identifier.
// Returns: true when at least one pending entry was removed.
func (p escalationCancelProxy) Cancel(alertID string) bool {
	p.manager.mu.RLock()
	engine := p.manager.escalations
	p.manager.mu.RUnlock()
	if engine == nil {
		return false
	}
	return engine.Cancel(alertID)
}

// NewManager creates manager with initial configuration.
// Params: initial config, logger, notifier dispatcher, and clock.
// Returns: initialized manager or rule conversion error.
func NewManager(cfg config.Config, logger *slog.Logger, dispatcher *notify.Dispatcher, clk clock.Clock) (*Manager, error) {
	router, err := buildRouter(cfg.Routing, clk.Now, logger)
	if err != nil {
		return nil, err
	}
	messageTmpl, err := templatefmt.ParseNotificationTemplate("alert.message", alertMessageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse alert message template: %w", err)
	}

	registry := buildContactRegistry(cfg.Contacts, logger)
	manager := &Manager{
		cfg:    cfg,
		logger: logger,
		clock:  clk,
		cooldowns: cooldown.NewStore(
			time.Duration(cfg.Cooldown.DefaultSeconds)*time.Second,
			cfg.Cooldown.Periods,
			clk.Now,
			logger,
		),
		dedup: cooldown.NewDeduplicator(time.Duration(cfg.Cooldown.DedupWindowSeconds)*time.Second, clk.Now),
		flaps: flapping.NewDetector(
			cfg.Flapping.Threshold,
			time.Duration(cfg.Flapping.WindowSeconds)*time.Second,
			cfg.Flapping.HistoryCap,
			time.Duration(cfg.Flapping.StabilityPeriodSec)*time.Second,
			logger,
		),
		reach:       reachability.NewTracker(cfg.Reachability.OfflineThreshold, cfg.Reachability.RecoveryThreshold, clk.Now, logger),
		router:      router,
		contacts:    registry,
		dispatcher:  dispatcher,
		maintenance: make(map[string]struct{}),
		messageTmpl: messageTmpl,
	}

	manager.executor = notify.NewEscalationExecutor(dispatcher, registry, clk.Now, logger)
	manager.escalations = buildEscalationEngine(cfg.Escalation, manager.executor, clk.Now, logger)
	manager.acks = ack.NewLedger(escalationCancelProxy{manager: manager}, clk.Now, logger)
	return manager, nil
}

// PushObservation processes one incoming observation from ingest interfaces.
// Params: validated incoming observation.
// Returns: processing error when the pipeline fails.
func (m *Manager) PushObservation(observation domain.Observation) error {
	return m.ProcessObservation(context.Background(), observation)
}

// PushObservationBatch processes a batch of observations from ingest interfaces.
// Params: validated incoming observation slice.
// Returns: first processing error.
func (m *Manager) PushObservationBatch(observations []domain.Observation) error {
	ctx := context.Background()
	for _, observation := range observations {
		if err := m.ProcessObservation(ctx, observation); err != nil {
			return err
		}
	}
	return nil
}

// PushProbe feeds one reachability probe into the hysteresis tracker.
// Params: validated probe result.
// Returns: nil, probe processing is local.
func (m *Manager) PushProbe(probe domain.ProbeResult) error {
	status := m.reach.Check(probe.DeviceID, probe.Reachable)
	m.flaps.RecordTransition("device/"+probe.DeviceID, string(status.State), probe.ProbeTime())
	return nil
}

// ProcessObservation runs the suppression and routing pipeline for one observation.
// Params: context and validated observation payload.
// Returns: pipeline error, delivery failures are logged instead.
func (m *Manager) ProcessObservation(ctx context.Context, observation domain.Observation) error {
	now := m.clock.Now()
	key := observation.Key()
	alertID := key.AlertID()

	analysis := m.flaps.RecordTransition(flapEntityID(observation), observationValue(observation), observation.ObservationTime())

	if m.dedup.IsDuplicate(key) {
		m.logger.Debug("observation dropped as duplicate", "alert_id", alertID)
		return nil
	}
	m.dedup.Record(key)

	admit, reason := m.cooldowns.Evaluate(observation.DeviceID, observation.AlertType, observation.Var, observation.Severity)
	if !admit {
		m.logger.Info("observation suppressed by cooldown", "alert_id", alertID, "reason", reason)
		return nil
	}

	m.mu.RLock()
	router := m.router
	dispatcher := m.dispatcher
	executor := m.executor
	registry := m.contacts
	engine := m.escalations
	_, inMaintenance := m.maintenance[observation.DeviceID]
	m.mu.RUnlock()

	fields := buildRouteFields(observation, analysis, inMaintenance)
	actions := router.Route(fields)
	for _, action := range actions {
		if action.Type == domain.ActionSuppress {
			m.logger.Info("observation suppressed by routing rule", "alert_id", alertID, "reason", action.Reason)
			return nil
		}
	}

	notification, err := m.buildNotification(alertID, observation, analysis, now)
	if err != nil {
		return err
	}

	for _, action := range actions {
		switch action.Type {
		case domain.ActionChannel:
			m.deliverToChannel(ctx, dispatcher, registry, action.Channel, observation, notification)
		case domain.ActionContactGroup:
			m.deliverToGroup(ctx, dispatcher, registry, action.Group, notification)
		case domain.ActionEscalate:
			if executor != nil {
				if err := executor.NotifyManager(ctx, alertID, action.Level); err != nil {
					m.logger.Error("immediate escalation failed", "alert_id", alertID, "target", action.Level, "error", err.Error())
				}
			}
		}
	}

	// Follow-ups only run for alerts nobody owns yet.
	if engine != nil && !m.acks.IsAcknowledged(alertID) {
		pending := engine.Schedule(alertID, observation.Severity, now)
		if len(pending) > 0 {
			m.logger.Debug("escalations scheduled", "alert_id", alertID, "count", len(pending))
		}
	}
	return nil
}

// Tick executes due escalations.
// Params: context for executor callbacks.
// Returns: nil, execution outcomes are logged.
func (m *Manager) Tick(ctx context.Context) error {
	m.mu.RLock()
	engine := m.escalations
	m.mu.RUnlock()
	if engine == nil {
		return nil
	}
	executions := engine.Tick(ctx)
	for _, execution := range executions {
		m.logger.Info("escalation executed",
			"alert_id", execution.AlertID,
			"rule", execution.RuleName,
			"action", string(execution.Action),
			"target", execution.Target,
			"repeat", execution.Repeat,
		)
	}
	return nil
}

// Sweep removes aged suppression, escalation, and acknowledgment bookkeeping.
// Params: none.
// Returns: nothing, removal counts are logged.
func (m *Manager) Sweep() {
	m.mu.RLock()
	cooldownCfg := m.cfg.Cooldown
	engine := m.escalations
	m.mu.RUnlock()

	maxAge := time.Duration(cooldownCfg.SweepMaxAgeHours) * time.Hour
	removedCooldown := m.cooldowns.Sweep(maxAge)
	removedDedup := m.dedup.Cleanup(time.Duration(cooldownCfg.DedupWindowSeconds) * time.Second)
	removedAcks := m.acks.Sweep(maxAge)
	removedEscalations := 0
	if engine != nil {
		removedEscalations = engine.Sweep(maxAge)
	}
	if removedCooldown > 0 || removedDedup > 0 || removedAcks > 0 || removedEscalations > 0 {
		m.logger.Info("expired state swept",
			"cooldown_removed", removedCooldown,
			"dedup_removed", removedDedup,
			"acks_removed", removedAcks,
			"escalations_removed", removedEscalations,
		)
	}
}

// ApplyConfig atomically replaces the rule-driven runtime components.
// Params: validated new config snapshot.
// Returns: rule conversion error, stores keep their state.
func (m *Manager) ApplyConfig(cfg config.Config) error {
	router, err := buildRouter(cfg.Routing, m.clock.Now, m.logger)
	if err != nil {
		return err
	}
	registry := buildContactRegistry(cfg.Contacts, m.logger)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.router = router
	m.contacts = registry
	m.executor = notify.NewEscalationExecutor(m.dispatcher, registry, m.clock.Now, m.logger)
	switch {
	case !cfg.Escalation.Enabled:
		m.escalations = nil
	case m.escalations == nil:
		m.escalations = buildEscalationEngine(cfg.Escalation, m.executor, m.clock.Now, m.logger)
	default:
		// Keep the engine instance so scheduled escalations survive reloads.
		m.escalations.SetRules(escalationRules(cfg.Escalation), escalationBuckets(cfg.Escalation))
		m.escalations.SetExecutor(m.executor)
	}
	for alertType, seconds := range cfg.Cooldown.Periods {
		m.cooldowns.SetPeriod(alertType, seconds)
	}
	return nil
}

// SetDispatcher replaces runtime notification dispatcher.
// Params: fresh dispatcher built from active notify config.
// Returns: dispatcher reference swapped atomically.
func (m *Manager) SetDispatcher(dispatcher *notify.Dispatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatcher = dispatcher
	m.executor = notify.NewEscalationExecutor(dispatcher, m.contacts, m.clock.Now, m.logger)
	if m.escalations != nil {
		m.escalations.SetExecutor(m.executor)
	}
}

// SetMaintenance toggles maintenance mode of one device.
// Params: device identifier and target mode.
// Returns: nothing.
func (m *Manager) SetMaintenance(deviceID string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if enabled {
		m.maintenance[deviceID] = struct{}{}
		return
	}
	delete(m.maintenance, deviceID)
}

// InMaintenance reports maintenance mode of one device.
// Params: device identifier.
// Returns: true when the device is in maintenance.
func (m *Manager) InMaintenance(deviceID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.maintenance[deviceID]
	return ok
}

// Acks exposes the acknowledgment ledger.
// Params: none.
// Returns: shared ledger reference.
func (m *Manager) Acks() *ack.Ledger {
	return m.acks
}

// CooldownInfo returns cooldown state of one alert tuple.
// Params: device, alert type, and variable.
// Returns: cooldown info and presence flag.
func (m *Manager) CooldownInfo(deviceID, alertType, variable string) (cooldown.Info, bool) {
	return m.cooldowns.GetInfo(deviceID, alertType, variable)
}

// CooldownStats returns cooldown store counters.
// Params: none.
// Returns: aggregate suppression stats.
func (m *Manager) CooldownStats() cooldown.Stats {
	return m.cooldowns.GetStats()
}

// FlappingEntities lists currently flapping entities.
// Params: none.
// Returns: entity identifiers reported by the detector.
func (m *Manager) FlappingEntities() []string {
	return m.flaps.FlappingEntities(m.clock.Now())
}

// FlapHistory returns in-window transitions of one entity.
// Params: entity identifier.
// Returns: transition list.
func (m *Manager) FlapHistory(entityID string) []flapping.Transition {
	m.mu.RLock()
	window := time.Duration(m.cfg.Flapping.WindowSeconds) * time.Second
	m.mu.RUnlock()
	return m.flaps.History(entityID, window, m.clock.Now())
}

// ReachabilityStatus returns connectivity status of one device.
// Params: device identifier.
// Returns: status snapshot and presence flag.
func (m *Manager) ReachabilityStatus(deviceID string) (reachability.Status, bool) {
	return m.reach.GetStatus(deviceID)
}

// OfflineDevices lists devices currently offline or unstable.
// Params: none.
// Returns: sorted device identifiers.
func (m *Manager) OfflineDevices() []string {
	return m.reach.OfflineDevices()
}

// PendingEscalations lists scheduled escalations across alerts.
// Params: none.
// Returns: pending escalation snapshot.
func (m *Manager) PendingEscalations() []escalation.Pending {
	m.mu.RLock()
	engine := m.escalations
	m.mu.RUnlock()
	if engine == nil {
		return nil
	}
	return engine.PendingEscalations()
}

// EscalationHistory returns executed escalations of one alert.
// Params: alert identifier.
// Returns: execution records.
func (m *Manager) EscalationHistory(alertID string) []escalation.Execution {
	m.mu.RLock()
	engine := m.escalations
	m.mu.RUnlock()
	if engine == nil {
		return nil
	}
	return engine.History(alertID)
}

// ManualEscalate escalates one alert to a support level immediately.
// Params: context, alert identifier, and numeric level.
// Returns: true when the escalation was delivered.
func (m *Manager) ManualEscalate(ctx context.Context, alertID string, level int) bool {
	m.mu.RLock()
	engine := m.escalations
	m.mu.RUnlock()
	if engine == nil {
		return false
	}
	return engine.ManualEscalate(ctx, alertID, level)
}

// RoutingRules lists active routing rules.
// Params: none.
// Returns: rule snapshot sorted by priority.
func (m *Manager) RoutingRules() []routing.Rule {
	m.mu.RLock()
	router := m.router
	m.mu.RUnlock()
	return router.Rules()
}

// deliverToChannel sends one notification to a transport channel.
// Params: dispatcher, registry, routed channel, observation, and payload.
// Returns: nothing, failures are logged.
func (m *Manager) deliverToChannel(ctx context.Context, dispatcher *notify.Dispatcher, registry *contacts.Registry, channel string, observation domain.Observation, notification domain.Notification) {
	method, notifyChannel, ok := channelBinding(channel)
	if !ok || !dispatcher.HasChannel(notifyChannel) {
		m.logger.Warn("routed channel is not configured", "channel", channel, "alert_id", notification.AlertID)
		return
	}
	targets := registry.ContactsForAlert(observation.DeviceGroups, observation.Severity)
	notification.Recipients = targets[method]

	if _, err := dispatcher.Send(ctx, notifyChannel, notification); err != nil {
		m.logger.Error("notification delivery failed", "channel", notifyChannel, "alert_id", notification.AlertID, "error", err.Error())
	}
}

// deliverToGroup sends one notification to every reachable group member.
// Params: dispatcher, registry, contact group, and payload.
// Returns: nothing, failures are logged.
func (m *Manager) deliverToGroup(ctx context.Context, dispatcher *notify.Dispatcher, registry *contacts.Registry, group string, notification domain.Notification) {
	resolved := registry.ResolveGroup(group)
	if len(resolved) == 0 {
		m.logger.Warn("contact group resolved to no targets", "group", group, "alert_id", notification.AlertID)
		return
	}

	methods := make([]contacts.Method, 0, len(resolved))
	for method := range resolved {
		methods = append(methods, method)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })

	for _, method := range methods {
		notifyChannel, ok := methodChannel(method)
		if !ok || !dispatcher.HasChannel(notifyChannel) {
			continue
		}
		send := notification
		send.Recipients = resolved[method]
		if _, err := dispatcher.Send(ctx, notifyChannel, send); err != nil {
			m.logger.Error("group notification failed", "group", group, "channel", notifyChannel, "alert_id", notification.AlertID, "error", err.Error())
		}
	}
}

// buildNotification renders the outbound payload for one observation.
// Params: alert id, observation, flap analysis, and current time.
// Returns: notification with rendered message.
func (m *Manager) buildNotification(alertID string, observation domain.Observation, analysis flapping.Analysis, now time.Time) (domain.Notification, error) {
	var body strings.Builder
	err := m.messageTmpl.Execute(&body, messageContext{
		Severity:  strings.ToUpper(string(observation.Severity)),
		DeviceID:  observation.DeviceID,
		AlertType: observation.AlertType,
		Variable:  observation.Var,
		Value:     observationValue(observation),
		Flapping:  analysis.IsFlapping,
		FlapCount: analysis.FlapCount,
	})
	if err != nil {
		return domain.Notification{}, fmt.Errorf("render alert message: %w", err)
	}
	return domain.Notification{
		AlertID:   alertID,
		DeviceID:  observation.DeviceID,
		Severity:  observation.Severity,
		Message:   body.String(),
		CreatedAt: now,
	}, nil
}

// buildRouteFields flattens one observation into routing fields.
// Params: observation, flap analysis, and maintenance flag.
// Returns: field map consumed by the router.
func buildRouteFields(observation domain.Observation, analysis flapping.Analysis, inMaintenance bool) routing.Fields {
	tags := make([]string, 0, len(observation.DeviceGroups)+len(observation.Tags))
	tags = append(tags, observation.DeviceGroups...)
	tagValues := make([]string, 0, len(observation.Tags))
	for _, value := range observation.Tags {
		tagValues = append(tagValues, value)
	}
	sort.Strings(tagValues)
	tags = append(tags, tagValues...)

	fields := routing.Fields{
		"device_id":        observation.DeviceID,
		"alert_type":       observation.AlertType,
		"variable":         observation.Var,
		"severity":         string(observation.Severity),
		"value":            observationValue(observation),
		"device_groups":    observation.DeviceGroups,
		"tags":             tags,
		"flapping":         analysis.IsFlapping,
		"flap_count":       analysis.FlapCount,
		"maintenance_mode": inMaintenance,
	}
	for name, value := range observation.Tags {
		fields["tag."+name] = value
	}
	return fields
}

// flapEntityID builds the flap detector key for one observation.
// Params: observation payload.
// Returns: entity identifier scoped by device and variable.
func flapEntityID(observation domain.Observation) string {
	return observation.DeviceID + "/" + observation.AlertType + "/" + observation.Var
}

// observationValue renders the observation value as a state string.
// Params: observation payload.
// Returns: numeric or textual value representation.
func observationValue(observation domain.Observation) string {
	if observation.Value != nil {
		return strconv.FormatFloat(*observation.Value, 'f', -1, 64)
	}
	return observation.ValueText
}

// channelBinding maps a routed channel name onto a sender channel and method.
// Params: channel name from a routing action.
// Returns: contact method, dispatcher channel, and support flag.
func channelBinding(channel string) (contacts.Method, string, bool) {
	switch channel {
	case "telegram":
		return contacts.MethodTelegram, notify.ChannelTelegram, true
	case "webhook", "http":
		return contacts.MethodWebhook, notify.ChannelWebhook, true
	case "voice", "voice_call":
		return contacts.MethodVoice, notify.ChannelVoice, true
	default:
		return "", "", false
	}
}

// methodChannel maps a contact method onto a dispatcher channel.
// Params: contact method.
// Returns: dispatcher channel and support flag.
func methodChannel(method contacts.Method) (string, bool) {
	switch method {
	case contacts.MethodTelegram:
		return notify.ChannelTelegram, true
	case contacts.MethodVoice:
		return notify.ChannelVoice, true
	case contacts.MethodWebhook:
		return notify.ChannelWebhook, true
	default:
		return "", false
	}
}
