package app

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"nocalert/internal/domain"
)

// API exposes acknowledgment operations and state queries over HTTP.
// Params: manager backing every endpoint.
// Returns: handler set installed onto the service mux.
type API struct {
	manager *Manager
	logger  *slog.Logger
}

// NewAPI creates the management API surface.
// Params: manager and logger.
// Returns: initialized API.
func NewAPI(manager *Manager, logger *slog.Logger) *API {
	return &API{manager: manager, logger: logger}
}

// Register installs all API routes onto a mux.
// Params: target mux.
// Returns: nothing, mutates the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/ack", a.handleAck)
	mux.HandleFunc("/api/ack/bulk", a.handleBulkAck)
	mux.HandleFunc("/api/ack/history", a.handleAckHistory)
	mux.HandleFunc("/api/acks", a.handleAckList)
	mux.HandleFunc("/api/resolve", a.handleResolve)
	mux.HandleFunc("/api/unack", a.handleUnack)
	mux.HandleFunc("/api/escalate", a.handleEscalateInstead)
	mux.HandleFunc("/api/escalate/manual", a.handleManualEscalate)
	mux.HandleFunc("/api/maintenance", a.handleMaintenance)
	mux.HandleFunc("/api/stats", a.handleStats)
	mux.HandleFunc("/api/cooldown", a.handleCooldown)
	mux.HandleFunc("/api/flapping", a.handleFlapping)
	mux.HandleFunc("/api/flapping/history", a.handleFlapHistory)
	mux.HandleFunc("/api/reachability", a.handleReachability)
	mux.HandleFunc("/api/reachability/offline", a.handleOffline)
	mux.HandleFunc("/api/escalations/pending", a.handlePendingEscalations)
	mux.HandleFunc("/api/escalations/history", a.handleEscalationHistory)
	mux.HandleFunc("/api/routing/rules", a.handleRoutingRules)
}

type ackRequest struct {
	AlertID string `json:"alert_id"`
	Actor   string `json:"actor"`
	Notes   string `json:"notes"`
}

// handleAck acknowledges one alert.
// Params: POST body with alert_id, actor, and notes.
// Returns: 200 on accept, 409 when already acknowledged.
func (a *API) handleAck(writer http.ResponseWriter, request *http.Request) {
	var body ackRequest
	if !decodeAPIRequest(writer, request, &body) {
		return
	}
	if body.AlertID == "" || body.Actor == "" {
		http.Error(writer, "alert_id and actor are required", http.StatusBadRequest)
		return
	}
	if !a.manager.Acks().Acknowledge(body.AlertID, body.Actor, body.Notes) {
		http.Error(writer, "alert is already acknowledged", http.StatusConflict)
		return
	}
	writeJSON(writer, map[string]bool{"accepted": true})
}

type bulkAckRequest struct {
	AlertIDs []string `json:"alert_ids"`
	Actor    string   `json:"actor"`
	Notes    string   `json:"notes"`
}

// handleBulkAck acknowledges several alerts in one call.
// Params: POST body with alert_ids, actor, and notes.
// Returns: per-alert accept map.
func (a *API) handleBulkAck(writer http.ResponseWriter, request *http.Request) {
	var body bulkAckRequest
	if !decodeAPIRequest(writer, request, &body) {
		return
	}
	if len(body.AlertIDs) == 0 || body.Actor == "" {
		http.Error(writer, "alert_ids and actor are required", http.StatusBadRequest)
		return
	}
	writeJSON(writer, a.manager.Acks().BulkAcknowledge(body.AlertIDs, body.Actor, body.Notes))
}

type resolveRequest struct {
	AlertID         string `json:"alert_id"`
	Actor           string `json:"actor"`
	ResolutionNotes string `json:"resolution_notes"`
}

// handleResolve resolves one acknowledged alert.
// Params: POST body with alert_id, actor, and resolution notes.
// Returns: 200 on accept, 409 when the alert is not acknowledged.
func (a *API) handleResolve(writer http.ResponseWriter, request *http.Request) {
	var body resolveRequest
	if !decodeAPIRequest(writer, request, &body) {
		return
	}
	if !a.manager.Acks().Resolve(body.AlertID, body.Actor, body.ResolutionNotes) {
		http.Error(writer, "alert is not acknowledged", http.StatusConflict)
		return
	}
	writeJSON(writer, map[string]bool{"resolved": true})
}

type unackRequest struct {
	AlertID string `json:"alert_id"`
	Reason  string `json:"reason"`
}

// handleUnack removes one acknowledgment.
// Params: POST body with alert_id and reason.
// Returns: 200 on removal, 404 for unknown acknowledgment.
func (a *API) handleUnack(writer http.ResponseWriter, request *http.Request) {
	var body unackRequest
	if !decodeAPIRequest(writer, request, &body) {
		return
	}
	if !a.manager.Acks().Unacknowledge(body.AlertID, body.Reason) {
		http.Error(writer, "acknowledgment not found", http.StatusNotFound)
		return
	}
	writeJSON(writer, map[string]bool{"removed": true})
}

type escalateRequest struct {
	AlertID    string `json:"alert_id"`
	Actor      string `json:"actor"`
	EscalateTo string `json:"escalate_to"`
	Reason     string `json:"reason"`
}

// handleEscalateInstead marks one alert escalated instead of acknowledged.
// Params: POST body with alert_id, actor, escalate_to, and reason.
// Returns: 200, escalate-instead always accepts.
func (a *API) handleEscalateInstead(writer http.ResponseWriter, request *http.Request) {
	var body escalateRequest
	if !decodeAPIRequest(writer, request, &body) {
		return
	}
	if body.AlertID == "" || body.EscalateTo == "" {
		http.Error(writer, "alert_id and escalate_to are required", http.StatusBadRequest)
		return
	}
	a.manager.Acks().EscalateInstead(body.AlertID, body.Actor, body.EscalateTo, body.Reason)
	writeJSON(writer, map[string]bool{"escalated": true})
}

type manualEscalateRequest struct {
	AlertID string `json:"alert_id"`
	Level   int    `json:"level"`
}

// handleManualEscalate triggers an immediate support-level escalation.
// Params: POST body with alert_id and numeric level.
// Returns: 200 on delivery, 502 when delivery failed.
func (a *API) handleManualEscalate(writer http.ResponseWriter, request *http.Request) {
	var body manualEscalateRequest
	if !decodeAPIRequest(writer, request, &body) {
		return
	}
	if !a.manager.ManualEscalate(request.Context(), body.AlertID, body.Level) {
		http.Error(writer, "escalation delivery failed", http.StatusBadGateway)
		return
	}
	writeJSON(writer, map[string]bool{"escalated": true})
}

type maintenanceRequest struct {
	DeviceID string `json:"device_id"`
	Enabled  bool   `json:"enabled"`
}

// handleMaintenance toggles maintenance mode of one device.
// Params: POST body with device_id and enabled flag.
// Returns: 200 with resulting mode.
func (a *API) handleMaintenance(writer http.ResponseWriter, request *http.Request) {
	var body maintenanceRequest
	if !decodeAPIRequest(writer, request, &body) {
		return
	}
	if body.DeviceID == "" {
		http.Error(writer, "device_id is required", http.StatusBadRequest)
		return
	}
	a.manager.SetMaintenance(body.DeviceID, body.Enabled)
	writeJSON(writer, map[string]any{"device_id": body.DeviceID, "maintenance": body.Enabled})
}

// handleAckList lists acknowledged alert ids, optionally filtered by status.
// Params: GET with optional status query parameter.
// Returns: alert id list.
func (a *API) handleAckList(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := domain.AckStatus(request.URL.Query().Get("status"))
	writeJSON(writer, a.manager.Acks().AcknowledgedAlerts(status))
}

// handleAckHistory exports or imports acknowledgment history.
// Params: GET with optional start/end RFC3339 bounds, POST with record list.
// Returns: exported records or import count.
func (a *API) handleAckHistory(writer http.ResponseWriter, request *http.Request) {
	switch request.Method {
	case http.MethodGet:
		start, ok := parseTimeParam(writer, request, "start")
		if !ok {
			return
		}
		end, ok := parseTimeParam(writer, request, "end")
		if !ok {
			return
		}
		writeJSON(writer, a.manager.Acks().ExportHistory(start, end))
	case http.MethodPost:
		var records []domain.Acknowledgment
		if err := json.NewDecoder(request.Body).Decode(&records); err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(writer, map[string]int{"imported": a.manager.Acks().ImportHistory(records)})
	default:
		writer.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleStats returns acknowledgment and cooldown counters.
// Params: GET request.
// Returns: combined stats document.
func (a *API) handleStats(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(writer, map[string]any{
		"acks":     a.manager.Acks().GetStats(),
		"cooldown": a.manager.CooldownStats(),
	})
}

// handleCooldown returns cooldown state of one alert tuple.
// Params: GET with device_id, alert_type, and variable query parameters.
// Returns: cooldown info or 404.
func (a *API) handleCooldown(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	query := request.URL.Query()
	info, ok := a.manager.CooldownInfo(query.Get("device_id"), query.Get("alert_type"), query.Get("variable"))
	if !ok {
		http.Error(writer, "no cooldown entry", http.StatusNotFound)
		return
	}
	writeJSON(writer, info)
}

// handleFlapping lists currently flapping entities.
// Params: GET request.
// Returns: entity id list.
func (a *API) handleFlapping(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(writer, a.manager.FlappingEntities())
}

// handleFlapHistory returns in-window transitions of one entity.
// Params: GET with entity query parameter.
// Returns: transition list.
func (a *API) handleFlapHistory(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entity := request.URL.Query().Get("entity")
	if entity == "" {
		http.Error(writer, "entity is required", http.StatusBadRequest)
		return
	}
	writeJSON(writer, a.manager.FlapHistory(entity))
}

// handleReachability returns connectivity status of one device.
// Params: GET with device_id query parameter.
// Returns: status snapshot or 404.
func (a *API) handleReachability(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status, ok := a.manager.ReachabilityStatus(request.URL.Query().Get("device_id"))
	if !ok {
		http.Error(writer, "unknown device", http.StatusNotFound)
		return
	}
	writeJSON(writer, status)
}

// handleOffline lists offline and unstable devices.
// Params: GET request.
// Returns: device id list.
func (a *API) handleOffline(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(writer, a.manager.OfflineDevices())
}

// handlePendingEscalations lists scheduled escalations.
// Params: GET request.
// Returns: pending snapshot.
func (a *API) handlePendingEscalations(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(writer, a.manager.PendingEscalations())
}

// handleEscalationHistory lists executed escalations of one alert.
// Params: GET with alert_id query parameter.
// Returns: execution history.
func (a *API) handleEscalationHistory(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(writer, a.manager.EscalationHistory(request.URL.Query().Get("alert_id")))
}

// handleRoutingRules lists active routing rules.
// Params: GET request.
// Returns: rule snapshot.
func (a *API) handleRoutingRules(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(writer, a.manager.RoutingRules())
}

// decodeAPIRequest enforces POST and decodes one JSON body.
// Params: writer, request, and destination value.
// Returns: false when the response was already written.
func decodeAPIRequest(writer http.ResponseWriter, request *http.Request, dst any) bool {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(request.Body).Decode(dst); err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// parseTimeParam parses one optional RFC3339 query parameter.
// Params: writer, request, and parameter name.
// Returns: parsed time (zero when absent) and success flag.
func parseTimeParam(writer http.ResponseWriter, request *http.Request, name string) (time.Time, bool) {
	raw := request.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		http.Error(writer, "invalid "+name+" timestamp", http.StatusBadRequest)
		return time.Time{}, false
	}
	return parsed, true
}

// writeJSON writes one JSON response with status 200.
// Params: writer and payload.
// Returns: nothing, encode failures are ignored after headers.
func writeJSON(writer http.ResponseWriter, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(writer).Encode(payload)
}
