package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Observation is one normalized abnormal-condition event from the collection layer.
// Params: device identity, metric variable, typed value, severity, and grouping tags.
// Returns: validated observation payload for the alerting pipeline.
type Observation struct {
	DeviceID     string            `json:"device_id"`
	AlertType    string            `json:"alert_type"`
	Var          string            `json:"var"`
	Value        *float64          `json:"value,omitempty"`
	ValueText    string            `json:"value_text,omitempty"`
	Severity     Severity          `json:"severity"`
	DT           int64             `json:"dt"`
	Tags         map[string]string `json:"tags,omitempty"`
	DeviceGroups []string          `json:"device_groups,omitempty"`
}

// ObservationTime converts milliseconds unix timestamp into UTC time.
// Params: observation timestamp in unix milliseconds.
// Returns: converted UTC time.
func (o Observation) ObservationTime() time.Time {
	return time.UnixMilli(o.DT).UTC()
}

// Key builds the suppression identity tuple for the observation.
// Params: none.
// Returns: cooldown/dedup alert key.
func (o Observation) Key() AlertKey {
	return AlertKey{DeviceID: o.DeviceID, AlertType: o.AlertType, Variable: o.Var}
}

// DecodeObservation decodes and validates one observation payload.
// Params: JSON document bytes.
// Returns: validated observation or decode/validation error.
func DecodeObservation(raw []byte) (Observation, error) {
	var observation Observation
	if err := json.Unmarshal(raw, &observation); err != nil {
		return Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	if err := observation.Validate(); err != nil {
		return Observation{}, err
	}
	return observation, nil
}

// DecodeObservationsReader decodes and validates one batch of observations from stream.
// Params: reader with one JSON array of observations.
// Returns: validated observation slice or decode/validation error.
func DecodeObservationsReader(reader *json.Decoder) ([]Observation, error) {
	var observations []Observation
	if err := reader.Decode(&observations); err != nil {
		return nil, fmt.Errorf("decode observation batch: %w", err)
	}
	if len(observations) == 0 {
		return nil, errors.New("observation batch must contain at least one observation")
	}
	for i := range observations {
		if err := observations[i].Validate(); err != nil {
			return nil, fmt.Errorf("observation[%d]: %w", i, err)
		}
	}
	return observations, nil
}

// Validate validates one observation against the contract.
// Params: observation fields parsed from transport.
// Returns: validation error when schema is violated.
func (o Observation) Validate() error {
	if o.DT <= 0 {
		return errors.New("dt must be >0")
	}
	if strings.TrimSpace(o.DeviceID) == "" {
		return errors.New("device_id is required")
	}
	if strings.TrimSpace(o.AlertType) == "" {
		return errors.New("alert_type is required")
	}
	if strings.TrimSpace(o.Var) == "" {
		return errors.New("var is required")
	}
	if !o.Severity.IsKnown() {
		return fmt.Errorf("unsupported severity %q", o.Severity)
	}
	if o.Value == nil && strings.TrimSpace(o.ValueText) == "" {
		return errors.New("either value or value_text is required")
	}
	if o.Value != nil && strings.TrimSpace(o.ValueText) != "" {
		return errors.New("only one of value or value_text must be set")
	}
	return nil
}

// ProbeResult is one reachability poll outcome for a device.
// Params: device identity, probe verdict, and probe timestamp.
// Returns: validated probe payload for the reachability tracker.
type ProbeResult struct {
	DeviceID  string `json:"device_id"`
	Reachable bool   `json:"reachable"`
	DT        int64  `json:"dt"`
}

// ProbeTime converts milliseconds unix timestamp into UTC time.
// Params: probe timestamp in unix milliseconds.
// Returns: converted UTC time.
func (p ProbeResult) ProbeTime() time.Time {
	return time.UnixMilli(p.DT).UTC()
}

// DecodeProbeResult decodes and validates one probe payload.
// Params: JSON document bytes.
// Returns: validated probe result or decode/validation error.
func DecodeProbeResult(raw []byte) (ProbeResult, error) {
	var probe ProbeResult
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ProbeResult{}, fmt.Errorf("decode probe: %w", err)
	}
	if err := probe.Validate(); err != nil {
		return ProbeResult{}, err
	}
	return probe, nil
}

// Validate validates one probe result against the contract.
// Params: probe fields parsed from transport.
// Returns: validation error when schema is violated.
func (p ProbeResult) Validate() error {
	if p.DT <= 0 {
		return errors.New("dt must be >0")
	}
	if strings.TrimSpace(p.DeviceID) == "" {
		return errors.New("device_id is required")
	}
	return nil
}
