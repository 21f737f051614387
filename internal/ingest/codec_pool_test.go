package ingest

import (
	"bytes"
	"fmt"
	"testing"

	"nocalert/internal/domain"
)

func TestDecodeObservationPayloadIntoSingle(t *testing.T) {
	t.Parallel()

	scratch := acquireDecodeScratch()
	defer releaseDecodeScratch(scratch)

	payload := []byte(`{"device_id":"core-r1","alert_type":"bgp","var":"peer_state","value_text":"idle","severity":"high","dt":1739876543210}`)
	observations, err := decodeObservationPayloadInto(payload, scratch)
	if err != nil {
		t.Fatalf("decode single payload: %v", err)
	}
	if len(observations) != 1 {
		t.Fatalf("expected one observation, got %d", len(observations))
	}
	if observations[0].DeviceID != "core-r1" {
		t.Fatalf("unexpected device id: %q", observations[0].DeviceID)
	}
}

func TestDecodeObservationPayloadIntoBatch(t *testing.T) {
	t.Parallel()

	scratch := acquireDecodeScratch()
	defer releaseDecodeScratch(scratch)

	payload := []byte(`[{"device_id":"core-r1","alert_type":"bgp","var":"peer_state","value_text":"idle","severity":"high","dt":1739876543210},{"device_id":"core-r2","alert_type":"bgp","var":"peer_state","value_text":"active","severity":"medium","dt":1739876543211}]`)
	observations, err := decodeObservationPayloadInto(payload, scratch)
	if err != nil {
		t.Fatalf("decode batch payload: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("expected two observations, got %d", len(observations))
	}
	if observations[1].DeviceID != "core-r2" {
		t.Fatalf("unexpected second device id: %q", observations[1].DeviceID)
	}
}

func TestDecodeObservationPayloadRejectsTrailingTokens(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"device_id":"core-r1","alert_type":"bgp","var":"peer_state","value_text":"idle","severity":"high","dt":1739876543210}{"extra":true}`)
	if _, err := decodeObservationPayload(payload); err == nil {
		t.Fatalf("expected trailing token error")
	}
}

func TestReleaseDecodeScratchDropsOversizedBuffer(t *testing.T) {
	t.Parallel()

	scratch := &decodeScratch{
		observations: make([]domain.Observation, 0, maxPooledBatchCapacity+1),
	}
	releaseDecodeScratch(scratch)
	if cap(scratch.observations) > maxPooledBatchCapacity {
		t.Fatalf("expected capped pooled capacity, got %d", cap(scratch.observations))
	}
}

func TestDecodeObservationBatchCollapsesRepeatedKeys(t *testing.T) {
	t.Parallel()

	scratch := acquireDecodeScratch()
	defer releaseDecodeScratch(scratch)

	payload := []byte(`[` +
		`{"device_id":"core-r1","alert_type":"bgp","var":"peer_state","value_text":"idle","severity":"high","dt":1739876543210},` +
		`{"device_id":"core-r2","alert_type":"bgp","var":"peer_state","value_text":"active","severity":"medium","dt":1739876543211},` +
		`{"device_id":"core-r1","alert_type":"bgp","var":"peer_state","value_text":"established","severity":"low","dt":1739876543299}` +
		`]`)
	observations, err := decodeObservationPayloadInto(payload, scratch)
	if err != nil {
		t.Fatalf("decode batch payload: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("expected repeated key collapsed to two observations, got %d", len(observations))
	}
	if observations[0].DeviceID != "core-r1" || observations[0].DT != 1739876543299 {
		t.Fatalf("expected newest core-r1 observation kept in place, got %+v", observations[0])
	}
	if observations[0].ValueText != "established" {
		t.Fatalf("expected newest value retained, got %q", observations[0].ValueText)
	}
	if observations[1].DeviceID != "core-r2" {
		t.Fatalf("expected first-seen order kept, got %+v", observations[1])
	}
}

func TestDecodeObservationBatchRejectsOversizedBatch(t *testing.T) {
	t.Parallel()

	var payload bytes.Buffer
	payload.WriteByte('[')
	for i := 0; i <= maxBatchObservations; i++ {
		if i > 0 {
			payload.WriteByte(',')
		}
		fmt.Fprintf(&payload, `{"device_id":"sw%d","alert_type":"bgp","var":"peer_state","value_text":"idle","severity":"high","dt":%d}`, i, 1739876543210+i)
	}
	payload.WriteByte(']')

	if _, err := decodeObservationPayload(payload.Bytes()); err == nil {
		t.Fatalf("expected oversized batch rejected")
	}
}
