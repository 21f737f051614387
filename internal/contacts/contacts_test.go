package contacts

import (
	"reflect"
	"testing"

	"nocalert/internal/domain"
)

func seededRegistry() *Registry {
	registry := NewRegistry(nil)
	registry.DefaultMappings()

	registry.AddContact(Contact{
		ID:   "alice",
		Name: "Alice",
		Methods: map[Method]string{
			MethodTelegram: "@alice",
			MethodEmail:    "alice@noc.example",
			MethodVoice:    "+100",
		},
		OnCall:          true,
		EscalationLevel: 1,
	})
	registry.AddContact(Contact{
		ID:   "bob",
		Name: "Bob",
		Methods: map[Method]string{
			MethodTelegram: "@bob",
			MethodVoice:    "+200",
		},
		OnCall:          true,
		EscalationLevel: 2,
	})
	registry.AddContact(Contact{
		ID:   "carol",
		Name: "Carol",
		Methods: map[Method]string{
			MethodTelegram: "@carol",
		},
		OnCall:          false,
		EscalationLevel: 1,
	})

	registry.AddToGroup("alice", "noc_team")
	registry.AddToGroup("bob", "on_call")
	registry.AddToGroup("carol", "noc_team")
	return registry
}

func TestContactsForAlertBySeverity(t *testing.T) {
	t.Parallel()

	registry := seededRegistry()
	targets := registry.ContactsForAlert(nil, domain.SeverityCritical)

	want := map[Method][]string{
		MethodTelegram: {"@alice", "@bob"},
		MethodEmail:    {"alice@noc.example"},
		MethodVoice:    {"+200"},
	}
	if !reflect.DeepEqual(targets, want) {
		t.Fatalf("unexpected targets %+v", targets)
	}
}

func TestOffCallContactExcluded(t *testing.T) {
	t.Parallel()

	registry := seededRegistry()
	targets := registry.ContactsForAlert(nil, domain.SeverityLow)
	for _, addresses := range targets {
		for _, address := range addresses {
			if address == "@carol" {
				t.Fatalf("off-call contact must not be targeted: %+v", targets)
			}
		}
	}
}

func TestDeviceGroupMapping(t *testing.T) {
	t.Parallel()

	registry := seededRegistry()
	registry.MapDeviceGroup("core", "on_call")

	targets := registry.ContactsForAlert([]string{"core"}, domain.Severity("unmapped"))
	if !reflect.DeepEqual(targets[MethodVoice], []string{"+200"}) {
		t.Fatalf("expected on-call voice target via device group, got %+v", targets)
	}
}

func TestResolveGroup(t *testing.T) {
	t.Parallel()

	registry := seededRegistry()
	targets := registry.ResolveGroup("noc_team")
	if !reflect.DeepEqual(targets[MethodTelegram], []string{"@alice"}) {
		t.Fatalf("unexpected group resolution %+v", targets)
	}
	if len(registry.ResolveGroup("nonexistent")) != 0 {
		t.Fatalf("expected empty resolution for unknown group")
	}
}

func TestEscalationContactsSkipAlreadyNotified(t *testing.T) {
	t.Parallel()

	registry := seededRegistry()
	original := map[Method][]string{MethodTelegram: {"@bob"}}

	next := registry.EscalationContacts(original, 2)
	if !reflect.DeepEqual(next, map[Method][]string{MethodVoice: {"+200"}}) {
		t.Fatalf("expected only unnotified addresses, got %+v", next)
	}
}

func TestAddToGroupValidation(t *testing.T) {
	t.Parallel()

	registry := seededRegistry()
	if registry.AddToGroup("alice", "nonexistent") {
		t.Fatalf("expected unknown group to be rejected")
	}
	if registry.AddToGroup("nobody", "noc_team") {
		t.Fatalf("expected unknown contact to be rejected")
	}
	if !registry.AddToGroup("alice", "noc_team") {
		t.Fatalf("expected duplicate membership to stay true")
	}
}
