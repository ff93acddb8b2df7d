// Package worker consumes queued takeoff requests.
package worker

import (
	"context"
	"time"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// DefaultTimeout bounds one takeoff run.
const DefaultTimeout = 5 * time.Minute

// MessageMetrics records per-message outcomes.
type MessageMetrics interface {
	RecordMessage(topic, result string)
}

// Runner is the part of takeoff.Service the worker needs.
type Runner interface {
	Run(ctx context.Context, req *takeoff.RunRequest) (*takeoff.Takeoff, error)
}

// TakeoffHandler turns takeoff.requested events into takeoff runs.
type TakeoffHandler struct {
	runner  Runner
	timeout time.Duration
	metrics MessageMetrics
	logger  logging.Logger
}

// Option customises a TakeoffHandler.
type Option func(*TakeoffHandler)

// WithTimeout bounds each run.  Zero disables the bound.
func WithTimeout(d time.Duration) Option { return func(h *TakeoffHandler) { h.timeout = d } }

// WithMetrics sets the outcome sink.
func WithMetrics(m MessageMetrics) Option { return func(h *TakeoffHandler) { h.metrics = m } }

// NewTakeoffHandler returns a handler running requests through runner.
func NewTakeoffHandler(runner Runner, logger logging.Logger, opts ...Option) *TakeoffHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	h := &TakeoffHandler{runner: runner, timeout: DefaultTimeout, metrics: noopMetrics{}, logger: logger.Named("worker")}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscriber is satisfied by *kafka.Consumer.
type Subscriber interface {
	Subscribe(topic string, handler kafka.MessageHandler)
}

// Register subscribes the handler to topic on s.
func (h *TakeoffHandler) Register(s Subscriber, topic string) {
	s.Subscribe(topic, h.Handle)
}

// Handle is a kafka.MessageHandler.  A returned error makes the consumer
// retry and finally dead-letter the message.
func (h *TakeoffHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	log := h.logger.With(
		logging.String("topic", msg.Topic),
		logging.Int("partition", msg.Partition),
		logging.Int64("offset", msg.Offset))

	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		h.metrics.RecordMessage(msg.Topic, "malformed")
		log.Warn("malformed takeoff request", logging.Err(err))
		return err
	}
	if env.EventType != kafka.EventTakeoffRequested {
		h.metrics.RecordMessage(msg.Topic, "skipped")
		log.Debug("ignoring event", logging.String("event_type", env.EventType))
		return nil
	}
	var payload kafka.TakeoffRequestedPayload
	if err := env.DecodePayload(&payload); err != nil {
		h.metrics.RecordMessage(msg.Topic, "malformed")
		log.Warn("malformed takeoff request payload", logging.String("event_id", env.EventID), logging.Err(err))
		return err
	}

	runCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	t, err := h.runner.Run(runCtx, &takeoff.RunRequest{
		Name:        payload.Name,
		Source:      payload.Source,
		Annotations: payload.Annotations,
		Warnings:    payload.Warnings,
	})
	if err != nil {
		result := "failed"
		if errors.IsCode(err, errors.ErrCodeTakeoffEmptyDrawing) {
			result = "rejected"
		}
		h.metrics.RecordMessage(msg.Topic, result)
		log.Error("queued takeoff failed", logging.String("event_id", env.EventID), logging.Err(err))
		return err
	}

	h.metrics.RecordMessage(msg.Topic, "success")
	log.Info("queued takeoff completed",
		logging.String("event_id", env.EventID),
		logging.String("takeoff_id", t.ID),
		logging.Int("components", len(t.Components)))
	return nil
}

type noopMetrics struct{}

func (noopMetrics) RecordMessage(string, string) {}

//Personal.AI order the ending
