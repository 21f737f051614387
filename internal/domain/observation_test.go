package domain

import (
	"strings"
	"testing"
)

func TestDecodeObservationValid(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"device_id": "core-sw-01",
		"alert_type": "high_cpu",
		"var": "cpu_load",
		"value": 97.5,
		"severity": "high",
		"dt": 1700000000000,
		"tags": {"site": "dc1"},
		"device_groups": ["core"]
	}`)

	observation, err := DecodeObservation(raw)
	if err != nil {
		t.Fatalf("expected valid observation, got error %v", err)
	}
	if observation.DeviceID != "core-sw-01" || observation.Var != "cpu_load" {
		t.Fatalf("unexpected identity fields: %+v", observation)
	}
	if observation.Key() != (AlertKey{DeviceID: "core-sw-01", AlertType: "high_cpu", Variable: "cpu_load"}) {
		t.Fatalf("unexpected alert key: %+v", observation.Key())
	}
}

func TestDecodeObservationRejectsInvalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
		wantErr string
	}{
		{
			name:    "missing dt",
			payload: `{"device_id":"d1","alert_type":"high_cpu","var":"cpu","value":1,"severity":"low"}`,
			wantErr: "dt must be >0",
		},
		{
			name:    "missing device",
			payload: `{"alert_type":"high_cpu","var":"cpu","value":1,"severity":"low","dt":1}`,
			wantErr: "device_id is required",
		},
		{
			name:    "unknown severity",
			payload: `{"device_id":"d1","alert_type":"high_cpu","var":"cpu","value":1,"severity":"strange","dt":1}`,
			wantErr: "unsupported severity",
		},
		{
			name:    "no value",
			payload: `{"device_id":"d1","alert_type":"high_cpu","var":"cpu","severity":"low","dt":1}`,
			wantErr: "either value or value_text",
		},
		{
			name:    "both values",
			payload: `{"device_id":"d1","alert_type":"if_down","var":"oper","value":1,"value_text":"down","severity":"low","dt":1}`,
			wantErr: "only one of value or value_text",
		},
	}

	for _, testCase := range cases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeObservation([]byte(testCase.payload))
			if err == nil || !strings.Contains(err.Error(), testCase.wantErr) {
				t.Fatalf("expected error containing %q, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestSeverityRankOrder(t *testing.T) {
	t.Parallel()

	ordered := []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical, SeverityEmergency}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Fatalf("expected %s to outrank %s", ordered[i], ordered[i-1])
		}
	}
	if Severity("bogus").Rank() != SeverityMedium.Rank() {
		t.Fatalf("unknown severity must rank as medium, got %d", Severity("bogus").Rank())
	}
	if !SeverityEmergency.BypassesCooldown() || SeverityHigh.BypassesCooldown() {
		t.Fatalf("cooldown bypass must cover critical/emergency only")
	}
}

func TestAlertKeyIDIsSanitized(t *testing.T) {
	t.Parallel()

	key := AlertKey{DeviceID: "Core SW/01", AlertType: "Interface Down", Variable: "Gi0/1"}
	id := key.AlertID()
	if id != "alert/core_sw_01/interface_down/gi0_1" {
		t.Fatalf("unexpected alert id %q", id)
	}
}
