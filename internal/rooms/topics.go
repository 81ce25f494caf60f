package rooms

import (
	"time"

	"github.com/google/uuid"

	"github.com/nfrund/huddle/internal/pubsub"
)

// RoomCreatedEvent is published after a room is stored.
type RoomCreatedEvent struct {
	RoomID   uuid.UUID `json:"room_id"`
	Name     string    `json:"name"`
	Capacity *int      `json:"capacity,omitempty"`
	Admin    uuid.UUID `json:"admin"`
	At       time.Time `json:"at"`
}

// MemberJoinedEvent is published after a successful join.
type MemberJoinedEvent struct {
	RoomID   uuid.UUID `json:"room_id"`
	ClientID uuid.UUID `json:"client_id"`
	At       time.Time `json:"at"`
}

var (
	// TopicRoomCreated is published when a room is created
	TopicRoomCreated = pubsub.NewEvent[RoomCreatedEvent](
		"rooms.room.created",
		"Published when a room is created",
	)

	// TopicMemberJoined is published when a client joins a room
	TopicMemberJoined = pubsub.NewEvent[MemberJoinedEvent](
		"rooms.member.joined",
		"Published when a client is appended to a room's members",
	)
)
