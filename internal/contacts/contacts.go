package contacts

import (
	"log/slog"
	"sort"
	"sync"

	"nocalert/internal/domain"
)

// Method identifies one way of reaching a contact.
// Params: constants for each supported delivery method.
// Returns: key of per-method address books.
type Method string

const (
	// MethodTelegram delivers through a Telegram chat.
	MethodTelegram Method = "telegram"
	// MethodEmail delivers through email.
	MethodEmail Method = "email"
	// MethodSMS delivers through a text message.
	MethodSMS Method = "sms"
	// MethodVoice delivers through a voice call.
	MethodVoice Method = "voice"
	// MethodPager delivers through a pager gateway.
	MethodPager Method = "pager"
	// MethodWebhook delivers through an HTTP callback.
	MethodWebhook Method = "webhook"
)

// Contact is one reachable person.
// Params: identity, per-method addresses and on-call availability.
// Returns: resolution input for alert targeting.
type Contact struct {
	ID              string
	Name            string
	Methods         map[Method]string
	Role            string
	OnCall          bool
	EscalationLevel int
}

// Group is one named set of contacts with preferred methods.
// Params: member contact ids plus the methods used for this group.
// Returns: targeting unit referenced by routing and mappings.
type Group struct {
	Name        string
	Description string
	Contacts    []string
	Methods     []Method
}

// Registry resolves alerts to contact addresses.
// Params: guarded contacts, groups and mapping tables.
// Returns: method-to-address target sets for delivery.
type Registry struct {
	mu               sync.RWMutex
	contacts         map[string]Contact
	groups           map[string]Group
	deviceGroupLinks map[string][]string
	severityLinks    map[domain.Severity][]string
	logger           *slog.Logger
}

// NewRegistry builds an empty contact registry.
// Params: logger, nil-safe.
// Returns: registry ready for contact and group registration.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		contacts:         make(map[string]Contact),
		groups:           make(map[string]Group),
		deviceGroupLinks: make(map[string][]string),
		severityLinks:    make(map[domain.Severity][]string),
		logger:           logger,
	}
}

// AddContact registers or replaces one contact.
// Params: contact definition.
// Returns: nothing.
func (r *Registry) AddContact(contact Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[contact.ID] = contact
	r.logger.Info("contact added", "contact", contact.Name)
}

// CreateGroup registers one contact group.
// Params: group name, description and preferred delivery methods.
// Returns: nothing, telegram is the fallback method.
func (r *Registry) CreateGroup(name, description string, methods ...Method) {
	if len(methods) == 0 {
		methods = []Method{MethodTelegram}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[name] = Group{
		Name:        name,
		Description: description,
		Methods:     methods,
	}
}

// AddToGroup adds one contact to a group.
// Params: contact id and group name.
// Returns: false when either side is unknown.
func (r *Registry) AddToGroup(contactID, groupName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.groups[groupName]
	if !ok {
		return false
	}
	if _, ok := r.contacts[contactID]; !ok {
		return false
	}
	for _, existing := range group.Contacts {
		if existing == contactID {
			return true
		}
	}
	group.Contacts = append(group.Contacts, contactID)
	r.groups[groupName] = group
	return true
}

// MapDeviceGroup links a device group to contact groups.
// Params: device group name and contact group names to notify.
// Returns: nothing, replaces any previous link.
func (r *Registry) MapDeviceGroup(deviceGroup string, contactGroups ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deviceGroupLinks[deviceGroup] = append([]string(nil), contactGroups...)
}

// MapSeverity links a severity level to contact groups.
// Params: severity and contact group names notified at that level.
// Returns: nothing, replaces any previous link.
func (r *Registry) MapSeverity(severity domain.Severity, contactGroups ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.severityLinks[severity] = append([]string(nil), contactGroups...)
}

// ContactsForAlert resolves delivery targets for one alert.
// Params: device groups of the alerting device and alert severity.
// Returns: sorted addresses per method, empty when nothing matches.
func (r *Registry) ContactsForAlert(deviceGroups []string, severity domain.Severity) map[Method][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]struct{})
	for _, deviceGroup := range deviceGroups {
		for _, contactGroup := range r.deviceGroupLinks[deviceGroup] {
			wanted[contactGroup] = struct{}{}
		}
	}
	for _, contactGroup := range r.severityLinks[severity] {
		wanted[contactGroup] = struct{}{}
	}

	collected := make(map[Method]map[string]struct{})
	for groupName := range wanted {
		r.collectGroupLocked(groupName, collected)
	}
	return flatten(collected)
}

// ResolveGroup resolves one contact group to delivery targets.
// Params: contact group name.
// Returns: sorted addresses per method, empty for unknown groups.
func (r *Registry) ResolveGroup(groupName string) map[Method][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	collected := make(map[Method]map[string]struct{})
	r.collectGroupLocked(groupName, collected)
	return flatten(collected)
}

// EscalationContacts resolves on-call contacts of one escalation level.
// Params: already-notified targets and the escalation level.
// Returns: sorted addresses per method excluding already-notified ones.
func (r *Registry) EscalationContacts(original map[Method][]string, level int) map[Method][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	collected := make(map[Method]map[string]struct{})
	for _, contact := range r.contacts {
		if contact.EscalationLevel != level || !contact.OnCall {
			continue
		}
		for method, address := range contact.Methods {
			if containsAddress(original[method], address) {
				continue
			}
			if collected[method] == nil {
				collected[method] = make(map[string]struct{})
			}
			collected[method][address] = struct{}{}
		}
	}
	return flatten(collected)
}

// DefaultMappings installs the standard groups and severity links.
// Params: none.
// Returns: nothing.
func (r *Registry) DefaultMappings() {
	r.CreateGroup("noc_team", "Primary NOC operators", MethodTelegram, MethodEmail)
	r.CreateGroup("network_admins", "Network administrators", MethodTelegram, MethodSMS, MethodVoice)
	r.CreateGroup("managers", "IT management", MethodEmail, MethodSMS)
	r.CreateGroup("on_call", "On-call engineer", MethodVoice, MethodSMS, MethodTelegram)

	r.MapSeverity(domain.SeverityInfo, "noc_team")
	r.MapSeverity(domain.SeverityLow, "noc_team")
	r.MapSeverity(domain.SeverityMedium, "noc_team")
	r.MapSeverity(domain.SeverityHigh, "noc_team", "network_admins")
	r.MapSeverity(domain.SeverityCritical, "noc_team", "network_admins", "on_call")
	r.MapSeverity(domain.SeverityEmergency, "noc_team", "network_admins", "on_call", "managers")
}

// collectGroupLocked gathers addresses of one group into the accumulator.
// Params: group name and method accumulator, caller holds a read lock.
// Returns: nothing, skips unknown groups and off-call contacts.
func (r *Registry) collectGroupLocked(groupName string, collected map[Method]map[string]struct{}) {
	group, ok := r.groups[groupName]
	if !ok {
		return
	}
	for _, contactID := range group.Contacts {
		contact, ok := r.contacts[contactID]
		if !ok || !contact.OnCall {
			continue
		}
		for _, method := range group.Methods {
			address, ok := contact.Methods[method]
			if !ok {
				continue
			}
			if collected[method] == nil {
				collected[method] = make(map[string]struct{})
			}
			collected[method][address] = struct{}{}
		}
	}
}

// flatten converts the accumulator into sorted address lists.
// Params: per-method address sets.
// Returns: per-method sorted slices, methods without addresses omitted.
func flatten(collected map[Method]map[string]struct{}) map[Method][]string {
	out := make(map[Method][]string, len(collected))
	for method, addresses := range collected {
		if len(addresses) == 0 {
			continue
		}
		list := make([]string, 0, len(addresses))
		for address := range addresses {
			list = append(list, address)
		}
		sort.Strings(list)
		out[method] = list
	}
	return out
}

// containsAddress reports whether an address list holds one address.
// Params: address list and candidate.
// Returns: membership flag.
func containsAddress(addresses []string, address string) bool {
	for _, existing := range addresses {
		if existing == address {
			return true
		}
	}
	return false
}
