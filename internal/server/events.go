package server

import (
	"context"
	"log/slog"

	"github.com/nfrund/huddle/internal/presence"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/rooms"
	"github.com/nfrund/huddle/internal/router"
)

// subscribeActivityLog logs every domain event published on the bus.
func subscribeActivityLog(ctx context.Context, sub pubsub.Subscriber, logger *slog.Logger) error {
	for _, event := range []pubsub.Event[presence.ClientEvent]{
		presence.TopicClientConnected,
		presence.TopicClientPending,
		presence.TopicClientDisconnected,
	} {
		if err := pubsub.Subscribe(ctx, sub, event, func(ctx context.Context, e presence.ClientEvent) error {
			logger.InfoContext(ctx, "Presence changed",
				"client_id", e.ClientID,
				"user_id", e.UserID,
				"room_id", e.RoomID,
				"status", e.Status)
			return nil
		}); err != nil {
			return err
		}
	}

	if err := pubsub.Subscribe(ctx, sub, rooms.TopicRoomCreated, func(ctx context.Context, e rooms.RoomCreatedEvent) error {
		logger.InfoContext(ctx, "Room created", "room_id", e.RoomID, "name", e.Name, "admin", e.Admin)
		return nil
	}); err != nil {
		return err
	}

	if err := pubsub.Subscribe(ctx, sub, rooms.TopicMemberJoined, func(ctx context.Context, e rooms.MemberJoinedEvent) error {
		logger.InfoContext(ctx, "Member joined", "room_id", e.RoomID, "client_id", e.ClientID)
		return nil
	}); err != nil {
		return err
	}

	return pubsub.Subscribe(ctx, sub, router.TopicMessageDispatched, func(ctx context.Context, r router.Report) error {
		logger.InfoContext(ctx, "Message dispatched",
			"room_id", r.RoomID,
			"sender_id", r.SenderID,
			"recipients", r.Recipients,
			"delivered", r.Delivered,
			"failed", r.Failed,
			"evicted", r.Evicted)
		return nil
	})
}

// TopicInfo describes one event published on the bus.
type TopicInfo struct {
	Name        string `json:"name"`
	Module      string `json:"module"`
	Description string `json:"description"`
}

// Topics lists every event the application publishes.
func Topics() []TopicInfo {
	return []TopicInfo{
		topicInfo(presence.TopicClientConnected),
		topicInfo(presence.TopicClientPending),
		topicInfo(presence.TopicClientDisconnected),
		topicInfo(rooms.TopicRoomCreated),
		topicInfo(rooms.TopicMemberJoined),
		topicInfo(router.TopicMessageDispatched),
	}
}

func topicInfo[T any](e pubsub.Event[T]) TopicInfo {
	return TopicInfo{Name: e.Name(), Module: e.Module(), Description: e.Description()}
}
