package reachability

import (
	"log/slog"
	"sync"
	"time"
)

// State is device connectivity state.
// Params: unknown/online/offline/unstable constants.
// Returns: hysteresis state machine vocabulary.
type State string

const (
	// StateUnknown marks a device before the first probe verdict.
	StateUnknown State = "unknown"
	// StateOnline marks a reachable device.
	StateOnline State = "online"
	// StateOffline marks a device past the offline threshold.
	StateOffline State = "offline"
	// StateUnstable marks sustained unreachability well past the offline threshold.
	StateUnstable State = "unstable"
)

// Status is per-device connectivity state with hysteresis counters.
// Params: state, mutually exclusive consecutive counters, and timing markers.
// Returns: connectivity snapshot for queries and alerting.
type Status struct {
	DeviceID             string     `json:"device_id"`
	State                State      `json:"state"`
	LastSeen             time.Time  `json:"last_seen"`
	LastCheck            time.Time  `json:"last_check"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	ConsecutiveSuccesses int        `json:"consecutive_successes"`
	TotalChecks          int        `json:"total_checks"`
	OfflineSince         *time.Time `json:"offline_since,omitempty"`
}

// Tracker drives the per-device reachability hysteresis state machine.
// Params: offline/recovery thresholds and keyed status map.
// Returns: serialized connectivity transitions per device.
type Tracker struct {
	mu                sync.RWMutex
	offlineThreshold  int
	recoveryThreshold int
	status            map[string]*Status
	now               func() time.Time
	logger            *slog.Logger
}

// NewTracker creates reachability tracker.
// Params: offline threshold, recovery threshold, clock function, and optional logger.
// Returns: initialized tracker.
func NewTracker(offlineThreshold, recoveryThreshold int, now func() time.Time, logger *slog.Logger) *Tracker {
	if offlineThreshold <= 0 {
		offlineThreshold = 3
	}
	if recoveryThreshold <= 0 {
		recoveryThreshold = 2
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		offlineThreshold:  offlineThreshold,
		recoveryThreshold: recoveryThreshold,
		status:            make(map[string]*Status),
		now:               now,
		logger:            logger,
	}
}

// Check applies one probe verdict and advances the state machine.
// Params: device id and probe reachability verdict.
// Returns: updated status snapshot.
func (t *Tracker) Check(deviceID string, reachable bool) Status {
	now := t.now()
	var transitioned State

	t.mu.Lock()
	status, ok := t.status[deviceID]
	if !ok {
		status = &Status{DeviceID: deviceID, State: StateUnknown}
		t.status[deviceID] = status
	}
	status.LastCheck = now
	status.TotalChecks++

	if reachable {
		status.ConsecutiveSuccesses++
		status.ConsecutiveFailures = 0
		status.LastSeen = now

		if status.State == StateOffline || status.State == StateUnstable {
			if status.ConsecutiveSuccesses >= t.recoveryThreshold {
				status.State = StateOnline
				status.OfflineSince = nil
				transitioned = StateOnline
			}
		} else {
			status.State = StateOnline
		}
	} else {
		status.ConsecutiveFailures++
		status.ConsecutiveSuccesses = 0

		switch {
		case status.State != StateOffline && status.State != StateUnstable:
			if status.ConsecutiveFailures >= t.offlineThreshold {
				status.State = StateOffline
				offlineSince := now
				status.OfflineSince = &offlineSince
				transitioned = StateOffline
			}
		case status.State == StateOffline && status.ConsecutiveFailures > t.offlineThreshold*2:
			// Sustained unreachability, not oscillation.
			status.State = StateUnstable
			transitioned = StateUnstable
		}
	}
	snapshot := cloneStatus(status)
	t.mu.Unlock()

	if t.logger != nil {
		switch transitioned {
		case StateOnline:
			t.logger.Info("device back online", "device", deviceID)
		case StateOffline:
			t.logger.Warn("device went offline", "device", deviceID)
		case StateUnstable:
			t.logger.Warn("device marked unstable", "device", deviceID, "failures", snapshot.ConsecutiveFailures)
		}
	}
	return snapshot
}

// GetStatus returns connectivity snapshot for one device.
// Params: device id.
// Returns: status copy and existence flag.
func (t *Tracker) GetStatus(deviceID string) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, ok := t.status[deviceID]
	if !ok {
		return Status{}, false
	}
	return cloneStatus(status), true
}

// OfflineDevices lists device ids currently in offline state.
// Params: none.
// Returns: device id list in map order.
func (t *Tracker) OfflineDevices() []string {
	return t.devicesInState(StateOffline)
}

// OnlineDevices lists device ids currently in online state.
// Params: none.
// Returns: device id list in map order.
func (t *Tracker) OnlineDevices() []string {
	return t.devicesInState(StateOnline)
}

// devicesInState filters tracked devices by state.
// Params: wanted state.
// Returns: matching device ids.
func (t *Tracker) devicesInState(wanted State) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0)
	for deviceID, status := range t.status {
		if status.State == wanted {
			out = append(out, deviceID)
		}
	}
	return out
}

// cloneStatus duplicates status including the nullable offline marker.
// Params: source status pointer.
// Returns: detached status copy.
func cloneStatus(source *Status) Status {
	copyStatus := *source
	if source.OfflineSince != nil {
		offlineSince := *source.OfflineSince
		copyStatus.OfflineSince = &offlineSince
	}
	return copyStatus
}
