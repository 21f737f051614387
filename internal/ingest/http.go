package ingest

import (
	"io"
	"net/http"

	"nocalert/internal/config"
	"nocalert/internal/domain"
)

// ObservationSink receives decoded observations from ingest interfaces.
// Params: decoded observation payload.
// Returns: processing error.
type ObservationSink interface {
	PushObservation(observation domain.Observation) error
}

// batchObservationSink is an optional batch fast path for sinks.
// Params: decoded observation batch.
// Returns: processing error.
type batchObservationSink interface {
	PushObservationBatch(observations []domain.Observation) error
}

// ProbeSink receives decoded reachability probes from ingest interfaces.
// Params: decoded probe payload.
// Returns: processing error.
type ProbeSink interface {
	PushProbe(probe domain.ProbeResult) error
}

// ObservationHandler decodes JSON observations and forwards them to sink.
// Params: sink receives validated observations, max body limits payload size.
// Returns: HTTP handler for the observation endpoint.
type ObservationHandler struct {
	sink        ObservationSink
	maxBodySize int64
}

// NewObservationHandler creates the observation ingest handler.
// Params: sink and max request body size in bytes.
// Returns: configured handler.
func NewObservationHandler(sink ObservationSink, maxBodySize int64) *ObservationHandler {
	return &ObservationHandler{sink: sink, maxBodySize: maxBodySize}
}

// ServeHTTP handles one incoming observation request, single or batch.
// Params: HTTP request/response writer pair.
// Returns: writes status code according to decode/push result.
func (h *ObservationHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	body, ok := readIngestBody(writer, request, h.maxBodySize)
	if !ok {
		return
	}

	observations, err := decodeObservationPayload(body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := pushObservations(h.sink, observations); err != nil {
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writer.WriteHeader(http.StatusAccepted)
}

// ProbeHandler decodes JSON probe results and forwards them to sink.
// Params: sink receives validated probes, max body limits payload size.
// Returns: HTTP handler for the probe endpoint.
type ProbeHandler struct {
	sink        ProbeSink
	maxBodySize int64
}

// NewProbeHandler creates the probe ingest handler.
// Params: sink and max request body size in bytes.
// Returns: configured handler.
func NewProbeHandler(sink ProbeSink, maxBodySize int64) *ProbeHandler {
	return &ProbeHandler{sink: sink, maxBodySize: maxBodySize}
}

// ServeHTTP handles one incoming probe request.
// Params: HTTP request/response writer pair.
// Returns: writes status code according to decode/push result.
func (h *ProbeHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	body, ok := readIngestBody(writer, request, h.maxBodySize)
	if !ok {
		return
	}

	probe, err := domain.DecodeProbeResult(body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.sink.PushProbe(probe); err != nil {
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writer.WriteHeader(http.StatusAccepted)
}

// readIngestBody enforces method and body size for one ingest request.
// Params: response writer, request, and body limit.
// Returns: body bytes and false when the response was already written.
func readIngestBody(writer http.ResponseWriter, request *http.Request, maxBodySize int64) ([]byte, bool) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return nil, false
	}

	request.Body = http.MaxBytesReader(writer, request.Body, maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// RegisterRoutes installs ingest and health endpoints onto a mux.
// Params: mux, HTTP ingest config, sinks, and readiness probe.
// Returns: nothing, mutates the mux.
func RegisterRoutes(mux *http.ServeMux, cfg config.HTTPIngestConfig, observations ObservationSink, probes ProbeSink, ready func() bool) {
	if cfg.Enabled {
		mux.Handle(cfg.ObservationPath, NewObservationHandler(observations, cfg.MaxBodyBytes))
		mux.Handle(cfg.ProbePath, NewProbeHandler(probes, cfg.MaxBodyBytes))
	}
	mux.HandleFunc(cfg.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(cfg.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writer.WriteHeader(http.StatusOK)
	})
}
