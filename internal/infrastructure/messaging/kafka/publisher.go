package kafka

import (
	"context"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// DefaultSource identifies this service in event envelopes.
const DefaultSource = "keyqto"

type messagePublisher interface {
	Publish(ctx context.Context, msg *OutboundMessage) error
}

// TakeoffPublisher announces completed takeoffs on a topic, keyed by
// takeoff id so that events of one takeoff stay ordered.
type TakeoffPublisher struct {
	producer messagePublisher
	topic    string
	source   string
	logger   logging.Logger
}

// NewTakeoffPublisher returns a publisher writing to topic.  An empty topic
// means TopicTakeoffCompleted.
func NewTakeoffPublisher(producer messagePublisher, topic string, logger logging.Logger) *TakeoffPublisher {
	if topic == "" {
		topic = TopicTakeoffCompleted
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TakeoffPublisher{producer: producer, topic: topic, source: DefaultSource, logger: logger}
}

// PublishCompleted implements takeoff.Publisher.
func (p *TakeoffPublisher) PublishCompleted(ctx context.Context, t *takeoff.Takeoff) error {
	env, err := NewEventEnvelope(EventTakeoffCompleted, p.source, CompletedPayload(t))
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(p.topic, t.ID)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return err
	}
	p.logger.Info("takeoff completion published",
		logging.String("takeoff_id", t.ID),
		logging.String("topic", p.topic),
		logging.String("event_id", env.EventID))
	return nil
}

// CompletedPayload summarises t for the completion event.
func CompletedPayload(t *takeoff.Takeoff) TakeoffCompletedPayload {
	p := TakeoffCompletedPayload{
		TakeoffID:      t.ID,
		Name:           t.Name,
		Source:         t.Source,
		Components:     len(t.Components),
		ExportLocation: t.ExportLocation,
		CompletedAt:    t.CreatedAt.Add(t.Duration).UTC(),
		DurationMS:     t.Duration.Milliseconds(),
	}
	if t.Summary != nil {
		p.AbnormalCount = t.Summary.AbnormalCount
		p.TotalVolume = t.Summary.TotalVolume
		p.TotalCost = t.Summary.TotalCost
	}
	return p
}

// RequestPublisher enqueues takeoff runs for the worker.
type RequestPublisher struct {
	producer messagePublisher
	topic    string
	logger   logging.Logger
}

// NewRequestPublisher returns a publisher writing to topic.  An empty topic
// means TopicTakeoffRequested.
func NewRequestPublisher(producer messagePublisher, topic string, logger logging.Logger) *RequestPublisher {
	if topic == "" {
		topic = TopicTakeoffRequested
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RequestPublisher{producer: producer, topic: topic, logger: logger}
}

// PublishRequested enqueues req and returns the event id, which doubles as
// the message key.
func (p *RequestPublisher) PublishRequested(ctx context.Context, req *takeoff.RunRequest) (string, error) {
	if req == nil || len(req.Annotations) == 0 {
		return "", errors.New(errors.ErrCodeTakeoffEmptyDrawing, "drawing has no annotations")
	}
	env, err := NewEventEnvelope(EventTakeoffRequested, DefaultSource, TakeoffRequestedPayload{
		Name:        req.Name,
		Source:      req.Source,
		Annotations: req.Annotations,
		Warnings:    req.Warnings,
	})
	if err != nil {
		return "", err
	}
	msg, err := env.ToMessage(p.topic, env.EventID)
	if err != nil {
		return "", err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return "", err
	}
	p.logger.Info("takeoff request enqueued",
		logging.String("event_id", env.EventID),
		logging.String("topic", p.topic),
		logging.Int("labels", len(req.Annotations)))
	return env.EventID, nil
}

//Personal.AI order the ending
