package ingest

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nocalert/internal/config"
	"nocalert/internal/domain"

	"github.com/nats-io/nats.go"
)

// NATSSubscriber consumes one JetStream subject and forwards payloads to a sink.
// Params: NATS connection and queue subscriptions.
// Returns: NATS ingest lifecycle handle.
type NATSSubscriber struct {
	nc     *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

// payloadHandler processes one raw JetStream payload.
// Params: message payload bytes.
// Returns: decode flag false for poison payloads, push error for retryable failures.
type payloadHandler func(data []byte) (decoded bool, pushErr error)

// NewObservationSubscriber starts queue consumers for the observation stream.
// Params: NATS ingest config, stream wiring, sink, and optional logger.
// Returns: started subscriber or initialization error.
func NewObservationSubscriber(cfg config.NATSIngestConfig, stream config.NATSStreamConfig, sink ObservationSink, logger *slog.Logger) (*NATSSubscriber, error) {
	return newSubscriber(cfg, stream, logger, func(data []byte) (bool, error) {
		observations, err := decodeObservationPayload(data)
		if err != nil {
			return false, err
		}
		return true, pushObservations(sink, observations)
	})
}

// NewProbeSubscriber starts queue consumers for the probe stream.
// Params: NATS ingest config, stream wiring, sink, and optional logger.
// Returns: started subscriber or initialization error.
func NewProbeSubscriber(cfg config.NATSIngestConfig, stream config.NATSStreamConfig, sink ProbeSink, logger *slog.Logger) (*NATSSubscriber, error) {
	return newSubscriber(cfg, stream, logger, func(data []byte) (bool, error) {
		probe, err := domain.DecodeProbeResult(data)
		if err != nil {
			return false, err
		}
		return true, sink.PushProbe(probe)
	})
}

// newSubscriber connects and starts worker queue subscriptions for one stream.
// Params: ingest config, stream wiring, logger, and payload handler.
// Returns: subscriber handle or initialization error.
func newSubscriber(cfg config.NATSIngestConfig, stream config.NATSStreamConfig, logger *slog.Logger, handle payloadHandler) (*NATSSubscriber, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats ingest: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for ingest: %w", err)
	}

	subscriber := &NATSSubscriber{
		nc:     nc,
		logger: logger,
	}
	ackWait := time.Duration(cfg.AckWaitSec) * time.Second
	nackDelay := time.Duration(cfg.NackDelayMS) * time.Millisecond
	subOpts := []nats.SubOpt{
		nats.BindStream(stream.Stream),
		nats.Durable(stream.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(ackWait),
		nats.MaxDeliver(cfg.MaxDeliver),
		nats.MaxAckPending(cfg.MaxAckPending),
		nats.DeliverAll(),
	}
	callback := func(message *nats.Msg) {
		decoded, handleErr := handle(message.Data)
		if !decoded {
			if logger != nil {
				logger.Warn("nats ingest decode failed", "subject", message.Subject, "error", handleErr.Error())
			}
			subscriber.ackMessage(message, "decode")
			return
		}
		if handleErr != nil {
			if logger != nil {
				logger.Error("nats ingest push failed", "subject", message.Subject, "error", handleErr.Error())
			}
			subscriber.nackMessage(message, nackDelay)
			return
		}
		subscriber.ackMessage(message, "processed")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		sub, err := js.QueueSubscribe(stream.Subject, stream.DeliverGroup, callback, subOpts...)
		if err != nil {
			_ = subscriber.Close()
			return nil, fmt.Errorf("queue subscribe %q/%q: %w", stream.Subject, stream.DeliverGroup, err)
		}
		subscriber.subs = append(subscriber.subs, sub)
	}
	return subscriber, nil
}

// ackMessage acknowledges processed/invalid message and logs ack failures.
// Params: JetStream message and short reason.
// Returns: none.
func (s *NATSSubscriber) ackMessage(message *nats.Msg, reason string) {
	if message == nil {
		return
	}
	if err := message.Ack(); err != nil && s.logger != nil {
		s.logger.Warn("nats ingest ack failed", "subject", message.Subject, "reason", reason, "error", err.Error())
	}
}

// nackMessage asks JetStream to redeliver message and logs nack failures.
// Params: JetStream message and optional delay.
// Returns: none.
func (s *NATSSubscriber) nackMessage(message *nats.Msg, delay time.Duration) {
	if message == nil {
		return
	}
	var err error
	if delay > 0 {
		err = message.NakWithDelay(delay)
	} else {
		err = message.Nak()
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("nats ingest nack failed", "subject", message.Subject, "error", err.Error())
	}
}

// Close stops NATS subscriptions and closes connection.
// Params: none.
// Returns: first drain error from subscriptions.
func (s *NATSSubscriber) Close() error {
	var firstErr error
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.nc.Close()
	return firstErr
}
