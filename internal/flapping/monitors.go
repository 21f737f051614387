package flapping

import (
	"strconv"
	"time"
)

// InterfaceMonitor feeds interface status changes into the flap detector.
// Params: shared detector instance.
// Returns: interface-level flap recording helpers.
type InterfaceMonitor struct {
	detector *Detector
}

// NewInterfaceMonitor creates interface flap monitor over a shared detector.
// Params: detector instance.
// Returns: initialized monitor.
func NewInterfaceMonitor(detector *Detector) *InterfaceMonitor {
	return &InterfaceMonitor{detector: detector}
}

// RecordInterfaceStatus records composite admin/oper interface state.
// Params: device id, interface name, administrative and operational status, and timestamp.
// Returns: flap analysis for the device:interface entity.
func (m *InterfaceMonitor) RecordInterfaceStatus(deviceID, ifName, adminStatus, operStatus string, at time.Time) Analysis {
	state := adminStatus + "/" + operStatus
	return m.detector.RecordTransition(deviceID+":"+ifName, state, at)
}

// RecordBGPSession records BGP neighbor session state.
// Params: device id, neighbor address, session state, and timestamp.
// Returns: flap analysis for the device:bgp:neighbor entity.
func (m *InterfaceMonitor) RecordBGPSession(deviceID, neighbor, state string, at time.Time) Analysis {
	return m.detector.RecordTransition(deviceID+":bgp:"+neighbor, state, at)
}

// RouteChurnMonitor detects routing-table instability via route count churn.
// Params: shared detector instance and quantization step.
// Returns: route churn recording helper.
type RouteChurnMonitor struct {
	detector *Detector
	step     int
}

// NewRouteChurnMonitor creates route churn monitor over a shared detector.
// Params: detector instance and quantization step (defaults to 100).
// Returns: initialized monitor.
func NewRouteChurnMonitor(detector *Detector, step int) *RouteChurnMonitor {
	if step <= 0 {
		step = 100
	}
	return &RouteChurnMonitor{detector: detector, step: step}
}

// RecordRouteCount records quantized route count as a discrete state.
// Params: device id, routing table name, route count, and timestamp.
// Returns: flap analysis for the device:routes:table entity.
func (m *RouteChurnMonitor) RecordRouteCount(deviceID, table string, routeCount int, at time.Time) Analysis {
	// Quantize to suppress single-route noise.
	quantized := routeCount / m.step * m.step
	state := table + ":" + strconv.Itoa(quantized)
	return m.detector.RecordTransition(deviceID+":routes:"+table, state, at)
}
