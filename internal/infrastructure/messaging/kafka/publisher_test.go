package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/domain/component"
)

func completedTakeoff() *takeoff.Takeoff {
	return &takeoff.Takeoff{
		ID:         "9b4f1c2e-0000-4000-8000-000000000001",
		Name:       "tower b",
		Components: []*component.Component{{ID: "c1"}, {ID: "c2"}},
		Summary:    &takeoff.QuantitySummary{AbnormalCount: 1, TotalVolume: 12.5, TotalCost: 3000},
		CreatedAt:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Duration:   2 * time.Second,
	}
}

func TestTakeoffPublisher_PublishCompleted(t *testing.T) {
	pub := &mockPublisher{}
	p := NewTakeoffPublisher(pub, "", nil)

	tk := completedTakeoff()
	require.NoError(t, p.PublishCompleted(context.Background(), tk))
	require.Len(t, pub.msgs, 1)

	out := pub.msgs[0]
	assert.Equal(t, TopicTakeoffCompleted, out.Topic)
	assert.Equal(t, tk.ID, string(out.Key))

	env, err := MessageToEventEnvelope(&Message{Value: out.Value})
	require.NoError(t, err)
	assert.Equal(t, EventTakeoffCompleted, env.EventType)
	assert.Equal(t, DefaultSource, env.Source)

	var payload TakeoffCompletedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, 2, payload.Components)
	assert.Equal(t, 1, payload.AbnormalCount)
	assert.InDelta(t, 3000.0, payload.TotalCost, 1e-9)
	assert.Equal(t, int64(2000), payload.DurationMS)
	assert.True(t, payload.CompletedAt.Equal(tk.CreatedAt.Add(2*time.Second)))
}

func TestTakeoffPublisher_PropagatesFailure(t *testing.T) {
	p := NewTakeoffPublisher(&mockPublisher{err: errors.New("down")}, "custom.topic", nil)
	assert.Error(t, p.PublishCompleted(context.Background(), completedTakeoff()))
}

func TestCompletedPayload_NilSummary(t *testing.T) {
	tk := completedTakeoff()
	tk.Summary = nil
	p := CompletedPayload(tk)
	assert.Zero(t, p.TotalCost)
	assert.Equal(t, 2, p.Components)
}

func TestRequestPublisher_PublishRequested(t *testing.T) {
	pub := &mockPublisher{}
	p := NewRequestPublisher(pub, "", nil)

	id, err := p.PublishRequested(context.Background(), &takeoff.RunRequest{
		Name:        "level 2",
		Annotations: []component.TextAnnotation{{Content: "C30混凝土柱600×600×3000"}},
	})
	require.NoError(t, err)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, TopicTakeoffRequested, pub.msgs[0].Topic)
	assert.Equal(t, id, string(pub.msgs[0].Key))

	env, err := MessageToEventEnvelope(&Message{Value: pub.msgs[0].Value})
	require.NoError(t, err)
	assert.Equal(t, EventTakeoffRequested, env.EventType)
	var payload TakeoffRequestedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "level 2", payload.Name)
	assert.Len(t, payload.Annotations, 1)
}

func TestRequestPublisher_RejectsEmptyDrawing(t *testing.T) {
	pub := &mockPublisher{}
	_, err := NewRequestPublisher(pub, "", nil).PublishRequested(context.Background(), &takeoff.RunRequest{})
	assert.Error(t, err)
	assert.Empty(t, pub.msgs)
}
