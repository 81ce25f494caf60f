package presence

import (
	"time"

	"github.com/google/uuid"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/pubsub"
)

// ClientEvent describes a presence transition. RoomID is uuid.Nil unless
// the client connected into a room.
type ClientEvent struct {
	ClientID uuid.UUID `json:"client_id"`
	UserID   uuid.UUID `json:"user_id"`
	RoomID   uuid.UUID `json:"room_id"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}

// Topics for presence lifecycle events

var (
	// TopicClientConnected is published when a client binds an address in a room
	TopicClientConnected = pubsub.NewEvent[ClientEvent](
		"presence.client.connected",
		"Published when a client becomes reachable for room delivery",
	)

	// TopicClientPending is published when a client binds an address outside any room
	TopicClientPending = pubsub.NewEvent[ClientEvent](
		"presence.client.pending",
		"Published when a client holds an address that is not yet deliverable",
	)

	// TopicClientDisconnected is published when a client's address is released
	TopicClientDisconnected = pubsub.NewEvent[ClientEvent](
		"presence.client.disconnected",
		"Published when a client's delivery address is released",
	)
)

func topicFor(kind domain.ConnectionKind) (pubsub.Event[ClientEvent], bool) {
	switch kind {
	case domain.StatusConnected:
		return TopicClientConnected, true
	case domain.StatusPending:
		return TopicClientPending, true
	case domain.StatusDisconnected:
		return TopicClientDisconnected, true
	default:
		return pubsub.Event[ClientEvent]{}, false
	}
}
