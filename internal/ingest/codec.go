package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"nocalert/internal/domain"
)

const (
	// maxPooledBatchCapacity bounds the scratch slices kept in the pool.
	maxPooledBatchCapacity = 4096
	// maxBatchObservations bounds one ingested batch.
	maxBatchObservations = 1000
)

type decodeScratch struct {
	observations []domain.Observation
}

var decodeScratchPool = sync.Pool{
	New: func() any {
		return &decodeScratch{observations: make([]domain.Observation, 0, 16)}
	},
}

// decodeSingleObservation decodes one observation and rejects trailing JSON tokens.
// Params: json decoder for a single observation object.
// Returns: validated observation or decode error.
func decodeSingleObservation(decoder *json.Decoder) (domain.Observation, error) {
	var observation domain.Observation
	if err := decoder.Decode(&observation); err != nil {
		return domain.Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	if err := observation.Validate(); err != nil {
		return domain.Observation{}, err
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return domain.Observation{}, err
	}
	return observation, nil
}

// decodeObservationPayload auto-detects batch vs single payload.
// Params: raw JSON bytes with one object or array.
// Returns: validated observations slice.
func decodeObservationPayload(raw []byte) ([]domain.Observation, error) {
	scratch := acquireDecodeScratch()
	defer releaseDecodeScratch(scratch)
	return decodeObservationPayloadInto(raw, scratch)
}

func decodeObservationPayloadInto(raw []byte, scratch *decodeScratch) ([]domain.Observation, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	if payload[0] == '[' {
		return decodeObservationBatchInto(decoder, scratch)
	}
	observation, err := decodeSingleObservation(decoder)
	if err != nil {
		return nil, err
	}
	observations := scratch.observations[:0]
	observations = append(observations, observation)
	scratch.observations = observations
	return observations, nil
}

func decodeObservationBatchInto(decoder *json.Decoder, scratch *decodeScratch) ([]domain.Observation, error) {
	observations := scratch.observations[:0]
	if err := decoder.Decode(&observations); err != nil {
		return nil, fmt.Errorf("decode observation batch: %w", err)
	}
	if len(observations) == 0 {
		return nil, errors.New("observation batch must contain at least one observation")
	}
	if len(observations) > maxBatchObservations {
		return nil, fmt.Errorf("observation batch holds %d observations, limit is %d", len(observations), maxBatchObservations)
	}
	for i := range observations {
		if err := observations[i].Validate(); err != nil {
			return nil, fmt.Errorf("observation[%d]: %w", i, err)
		}
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return nil, err
	}
	scratch.observations = observations
	return collapseBatch(observations), nil
}

// collapseBatch drops older repeats of the same alert key inside one batch.
// Params: validated observations in arrival order.
// Returns: one observation per key, newest dt wins, first-seen order kept.
func collapseBatch(observations []domain.Observation) []domain.Observation {
	if len(observations) < 2 {
		return observations
	}
	index := make(map[domain.AlertKey]int, len(observations))
	out := observations[:0]
	for _, observation := range observations {
		key := observation.Key()
		if at, seen := index[key]; seen {
			if observation.DT >= out[at].DT {
				out[at] = observation
			}
			continue
		}
		index[key] = len(out)
		out = append(out, observation)
	}
	return out
}

func acquireDecodeScratch() *decodeScratch {
	return decodeScratchPool.Get().(*decodeScratch)
}

func releaseDecodeScratch(scratch *decodeScratch) {
	if scratch == nil {
		return
	}
	for i := range scratch.observations {
		scratch.observations[i] = domain.Observation{}
	}
	if cap(scratch.observations) > maxPooledBatchCapacity {
		scratch.observations = make([]domain.Observation, 0, 16)
	} else {
		scratch.observations = scratch.observations[:0]
	}
	decodeScratchPool.Put(scratch)
}

// ensureJSONEOF rejects trailing tokens after a decoded JSON payload.
// Params: decoder positioned after primary decode.
// Returns: nil on EOF or error on trailing tokens.
func ensureJSONEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode trailing json: %w", err)
	}
	return errors.New("unexpected trailing json tokens")
}

// pushObservations sends observations to sink with optional batch support.
// Params: observation sink and observation slice.
// Returns: first push error or nil.
func pushObservations(sink ObservationSink, observations []domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	if batchSink, ok := sink.(batchObservationSink); ok {
		return batchSink.PushObservationBatch(observations)
	}
	for _, observation := range observations {
		if err := sink.PushObservation(observation); err != nil {
			return err
		}
	}
	return nil
}
