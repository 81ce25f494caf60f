package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingEvent struct {
	Seq  int    `json:"seq"`
	From string `json:"from"`
}

var topicPing = NewEvent[pingEvent]("test.ping.sent", "Published by the bridge tests")

func TestWatermillBridge_TypedRoundTrip(t *testing.T) {
	bridge := NewWatermillBridge()
	t.Cleanup(func() { _ = bridge.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan pingEvent, 1)
	err := Subscribe(ctx, bridge, topicPing, func(_ context.Context, e pingEvent) error {
		received <- e
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, Publish(ctx, bridge, topicPing, pingEvent{Seq: 7, From: "alice"}))

	select {
	case got := <-received:
		assert.Equal(t, pingEvent{Seq: 7, From: "alice"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for typed event")
	}
}

func TestWatermillBridge_HandlerErrorIsNotRedelivered(t *testing.T) {
	bridge := NewWatermillBridge()
	t.Cleanup(func() { _ = bridge.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 4)
	err := bridge.Subscribe(ctx, "test.fail.once", func(context.Context, Message) error {
		calls <- struct{}{}
		return assert.AnError
	})
	require.NoError(t, err)

	require.NoError(t, bridge.Publish(ctx, Message{Topic: "test.fail.once", Payload: []byte("x")}))

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never called")
	}

	select {
	case <-calls:
		t.Fatal("message was redelivered after a handler error")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatermillBridge_MetadataSurvives(t *testing.T) {
	bridge := NewWatermillBridge()
	t.Cleanup(func() { _ = bridge.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 1)
	require.NoError(t, bridge.Subscribe(ctx, "test.meta.sent", func(_ context.Context, m Message) error {
		got <- m
		return nil
	}))

	require.NoError(t, bridge.Publish(ctx, Message{
		Topic:    "test.meta.sent",
		UserID:   "u1",
		Payload:  []byte(`{}`),
		Metadata: map[string]string{"room": "r1"},
	}))

	select {
	case m := <-got:
		assert.Equal(t, "test.meta.sent", m.Topic)
		assert.Equal(t, "u1", m.UserID)
		assert.Equal(t, "r1", m.Metadata["room"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestWatermillBridge_ReservedKeysStayOutOfMetadata(t *testing.T) {
	in := toWatermill(Message{
		Topic:    "rooms.room.created",
		Payload:  []byte(`{}`),
		Metadata: map[string]string{"topic": "spoofed", "room": "r1"},
	})
	assert.Equal(t, "rooms.room.created", in.Metadata.Get(metaKeyTopic))

	out := fromWatermill(in)
	assert.Equal(t, "rooms.room.created", out.Topic)
	assert.Empty(t, out.UserID)
	assert.Equal(t, map[string]string{"room": "r1"}, out.Metadata)
}

func TestEvent_Naming(t *testing.T) {
	assert.Equal(t, "test", topicPing.Module())
	assert.Equal(t, "test.ping.sent", topicPing.Name())
	assert.Panics(t, func() { NewEvent[pingEvent]("flat", "") })
}
