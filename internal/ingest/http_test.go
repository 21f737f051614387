package ingest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nocalert/internal/config"
	"nocalert/internal/domain"
)

type httpTestSink struct {
	pushCalls  int
	batchCalls int
	items      []domain.Observation
	probes     []domain.ProbeResult
	err        error
}

func (s *httpTestSink) PushObservation(observation domain.Observation) error {
	s.pushCalls++
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, observation)
	return nil
}

func (s *httpTestSink) PushObservationBatch(observations []domain.Observation) error {
	s.batchCalls++
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, observations...)
	return nil
}

func (s *httpTestSink) PushProbe(probe domain.ProbeResult) error {
	if s.err != nil {
		return s.err
	}
	s.probes = append(s.probes, probe)
	return nil
}

func TestObservationHandlerAcceptsSingle(t *testing.T) {
	t.Parallel()

	sink := &httpTestSink{}
	handler := NewObservationHandler(sink, 1<<20)
	request := httptest.NewRequest(http.MethodPost, "/observations", strings.NewReader(testObservationJSON("core-r1")))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, response.Code)
	}
	if sink.pushCalls != 1 || sink.batchCalls != 0 {
		t.Fatalf("unexpected sink calls push=%d batch=%d", sink.pushCalls, sink.batchCalls)
	}
	if len(sink.items) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(sink.items))
	}
}

func TestObservationHandlerAcceptsBatch(t *testing.T) {
	t.Parallel()

	sink := &httpTestSink{}
	handler := NewObservationHandler(sink, 1<<20)
	payload := fmt.Sprintf("[%s,%s]", testObservationJSON("core-r1"), testObservationJSON("core-r2"))
	request := httptest.NewRequest(http.MethodPost, "/observations", strings.NewReader(payload))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, response.Code)
	}
	if sink.pushCalls != 0 || sink.batchCalls != 1 {
		t.Fatalf("unexpected sink calls push=%d batch=%d", sink.pushCalls, sink.batchCalls)
	}
	if len(sink.items) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(sink.items))
	}
}

func TestObservationHandlerRejectsEmptyBatch(t *testing.T) {
	t.Parallel()

	sink := &httpTestSink{}
	handler := NewObservationHandler(sink, 1<<20)
	request := httptest.NewRequest(http.MethodPost, "/observations", strings.NewReader("[]"))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, response.Code)
	}
	if sink.pushCalls != 0 || sink.batchCalls != 0 {
		t.Fatalf("unexpected sink calls push=%d batch=%d", sink.pushCalls, sink.batchCalls)
	}
}

func TestObservationHandlerReturnsServiceUnavailableOnPushError(t *testing.T) {
	t.Parallel()

	sink := &httpTestSink{err: errors.New("sink unavailable")}
	handler := NewObservationHandler(sink, 1<<20)
	request := httptest.NewRequest(http.MethodPost, "/observations", strings.NewReader(testObservationJSON("core-r1")))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, response.Code)
	}
}

func TestProbeHandlerAcceptsProbe(t *testing.T) {
	t.Parallel()

	sink := &httpTestSink{}
	handler := NewProbeHandler(sink, 1<<20)
	request := httptest.NewRequest(http.MethodPost, "/probes", strings.NewReader(`{"device_id":"core-r1","reachable":false,"dt":1739876543210}`))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, response.Code)
	}
	if len(sink.probes) != 1 || sink.probes[0].DeviceID != "core-r1" {
		t.Fatalf("expected probe for core-r1, got %+v", sink.probes)
	}
}

func TestProbeHandlerRejectsGet(t *testing.T) {
	t.Parallel()

	handler := NewProbeHandler(&httpTestSink{}, 1<<20)
	request := httptest.NewRequest(http.MethodGet, "/probes", nil)
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, response.Code)
	}
}

func TestRegisterRoutesReadiness(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	cfg := config.HTTPIngestConfig{
		Enabled:         true,
		HealthPath:      "/healthz",
		ReadyPath:       "/readyz",
		ObservationPath: "/observations",
		ProbePath:       "/probes",
		MaxBodyBytes:    1 << 20,
	}
	ready := false
	RegisterRoutes(mux, cfg, &httpTestSink{}, &httpTestSink{}, func() bool { return ready })

	response := httptest.NewRecorder()
	mux.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if response.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready, got %d", response.Code)
	}

	ready = true
	response = httptest.NewRecorder()
	mux.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if response.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", response.Code)
	}

	response = httptest.NewRecorder()
	mux.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if response.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", response.Code)
	}
}

func testObservationJSON(device string) string {
	return fmt.Sprintf(`{"device_id":"%s","alert_type":"interface","var":"oper_status","value_text":"down","severity":"critical","dt":1739876543210,"device_groups":["core"]}`, device)
}
