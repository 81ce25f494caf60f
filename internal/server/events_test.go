package server

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/rooms"
)

// syncBuffer guards a buffer written by subscriber goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestActivityLog_LogsRoomEvents(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, subscribeActivityLog(ctx, bridge, logger))

	roomID := uuid.New()
	require.NoError(t, pubsub.Publish(ctx, bridge, rooms.TopicRoomCreated, rooms.RoomCreatedEvent{
		RoomID: roomID,
		Name:   "general",
		At:     time.Now(),
	}))

	assert.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "Room created") && strings.Contains(s, roomID.String())
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTopics_AreUniqueAndDescribed(t *testing.T) {
	seen := map[string]bool{}
	for _, topic := range Topics() {
		assert.False(t, seen[topic.Name], "duplicate topic %s", topic.Name)
		seen[topic.Name] = true
		assert.NotEmpty(t, topic.Module)
		assert.NotEmpty(t, topic.Description)
	}
	assert.Len(t, seen, 6)
}
