package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nocalert/internal/contacts"
	"nocalert/internal/domain"
)

// Contact group fallbacks used when an escalation target names no group.
const (
	fallbackManagerGroup = "managers"
	fallbackOnCallGroup  = "on_call"
)

// EscalationExecutor turns escalation actions into channel deliveries.
// Params: dispatcher, contact registry, and clock.
// Returns: executor wired into the escalation engine.
type EscalationExecutor struct {
	dispatcher *Dispatcher
	registry   *contacts.Registry
	now        func() time.Time
	logger     *slog.Logger
}

// NewEscalationExecutor builds the delivery bridge for escalations.
// Params: dispatcher, contact registry, clock, and optional logger.
// Returns: initialized executor.
func NewEscalationExecutor(dispatcher *Dispatcher, registry *contacts.Registry, now func() time.Time, logger *slog.Logger) *EscalationExecutor {
	if now == nil {
		now = time.Now
	}
	return &EscalationExecutor{
		dispatcher: dispatcher,
		registry:   registry,
		now:        now,
		logger:     logger,
	}
}

// NotifyManager messages the target management group over telegram.
// Params: context, alert id, and target contact group.
// Returns: delivery error.
func (e *EscalationExecutor) NotifyManager(ctx context.Context, alertID, target string) error {
	group := target
	if group == "" {
		group = fallbackManagerGroup
	}
	notification := e.baseNotification(alertID)
	notification.Subject = "Escalation: unacknowledged alert"
	notification.Message = fmt.Sprintf("Alert %s requires attention from %s", alertID, group)
	notification.Recipients = e.groupAddresses(group, contacts.MethodTelegram)
	_, err := e.dispatcher.Send(ctx, ChannelTelegram, notification)
	return err
}

// PageOnCall calls the on-call group through the voice gateway.
// Params: context, alert id, and target contact group.
// Returns: delivery error.
func (e *EscalationExecutor) PageOnCall(ctx context.Context, alertID, target string) error {
	group := target
	if group == "" {
		group = fallbackOnCallGroup
	}
	notification := e.baseNotification(alertID)
	notification.Message = fmt.Sprintf("Paging for alert %s", alertID)
	notification.Recipients = e.groupAddresses(group, contacts.MethodVoice)

	if e.dispatcher.HasChannel(ChannelVoice) && len(notification.Recipients) > 0 {
		_, err := e.dispatcher.Send(ctx, ChannelVoice, notification)
		return err
	}

	// No voice path available, degrade to a telegram page.
	notification.Subject = "Page"
	notification.Recipients = e.groupAddresses(group, contacts.MethodTelegram)
	_, err := e.dispatcher.Send(ctx, ChannelTelegram, notification)
	return err
}

// CreateTicket posts a ticket request to the webhook endpoint.
// Params: context, alert id, and target queue name.
// Returns: delivery error.
func (e *EscalationExecutor) CreateTicket(ctx context.Context, alertID, target string) error {
	notification := e.baseNotification(alertID)
	notification.Subject = "ticket"
	notification.Message = fmt.Sprintf("Create ticket for alert %s in queue %s", alertID, target)
	_, err := e.dispatcher.Send(ctx, ChannelWebhook, notification)
	return err
}

// ExecuteScript posts a remediation script request to the webhook endpoint.
// Params: context, alert id, and script name.
// Returns: delivery error.
func (e *EscalationExecutor) ExecuteScript(ctx context.Context, alertID, target string) error {
	notification := e.baseNotification(alertID)
	notification.Subject = "script"
	notification.Message = fmt.Sprintf("Run remediation %s for alert %s", target, alertID)
	_, err := e.dispatcher.Send(ctx, ChannelWebhook, notification)
	return err
}

// UpdatePriority announces a priority change over telegram.
// Params: context, alert id, and new priority label.
// Returns: delivery error.
func (e *EscalationExecutor) UpdatePriority(ctx context.Context, alertID, target string) error {
	notification := e.baseNotification(alertID)
	notification.Message = fmt.Sprintf("Alert %s priority raised to %s", alertID, target)
	_, err := e.dispatcher.Send(ctx, ChannelTelegram, notification)
	return err
}

// baseNotification prepares shared notification fields for one alert.
// Params: alert id.
// Returns: partially filled notification.
func (e *EscalationExecutor) baseNotification(alertID string) domain.Notification {
	return domain.Notification{
		AlertID:   alertID,
		CreatedAt: e.now(),
	}
}

// groupAddresses resolves one method's addresses for a contact group.
// Params: group name and delivery method.
// Returns: sorted on-call addresses, may be empty.
func (e *EscalationExecutor) groupAddresses(group string, method contacts.Method) []string {
	if e.registry == nil {
		return nil
	}
	resolved := e.registry.ResolveGroup(group)
	addresses := resolved[method]
	if len(addresses) == 0 && e.logger != nil {
		e.logger.Warn("contact group has no reachable members", "group", group, "method", string(method))
	}
	return addresses
}
