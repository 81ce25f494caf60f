package rooms

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/storage"
)

// ClientDirectory answers whether a client session exists.
type ClientDirectory interface {
	ClientExists(ctx context.Context, clientID uuid.UUID) bool
}

// Negotiator admits clients to rooms.
type Negotiator struct {
	rooms     *Registry
	clients   ClientDirectory
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewNegotiator creates a join negotiator. publisher may be nil.
func NewNegotiator(rooms *Registry, clients ClientDirectory, publisher pubsub.Publisher) *Negotiator {
	return &Negotiator{
		rooms:     rooms,
		clients:   clients,
		publisher: publisher,
		logger:    slog.Default().With("service", "negotiator"),
	}
}

// Join classifies and, when admissible, performs a join. The room is
// checked first, then the client, then capacity and duplicates atomically.
func (n *Negotiator) Join(ctx context.Context, roomID, clientID uuid.UUID) domain.JoinOutput {
	if _, err := n.rooms.Get(ctx, roomID); err != nil {
		return n.classify(ctx, roomID, clientID, err)
	}

	if !n.clients.ClientExists(ctx, clientID) {
		return domain.JoinRejection(domain.UnknownUser())
	}

	if err := n.rooms.AppendClient(ctx, roomID, clientID); err != nil {
		return n.classify(ctx, roomID, clientID, err)
	}

	n.logger.InfoContext(ctx, "Client admitted", "room_id", roomID, "client_id", clientID)
	if n.publisher != nil {
		event := MemberJoinedEvent{RoomID: roomID, ClientID: clientID, At: time.Now().UTC()}
		if err := pubsub.Publish(ctx, n.publisher, TopicMemberJoined, event); err != nil {
			n.logger.ErrorContext(ctx, "Failed to publish join event", "error", err, "topic", TopicMemberJoined.Name())
		}
	}
	return domain.JoinOK()
}

func (n *Negotiator) classify(ctx context.Context, roomID, clientID uuid.UUID, err error) domain.JoinOutput {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.JoinRejection(domain.UnknownRoom())
	case errors.Is(err, ErrRoomFull):
		return domain.JoinRejection(domain.Reject(domain.RefusedCapacity))
	case errors.Is(err, ErrAlreadyMember):
		return domain.JoinRejection(domain.Reject(domain.RefusedAlreadyMember))
	case errors.Is(err, storage.ErrWriteFault):
		n.logger.ErrorContext(ctx, "Join failed on storage write", "room_id", roomID, "client_id", clientID, "error", err)
		return domain.JoinFailure(domain.FailureAccessWrite)
	default:
		n.logger.ErrorContext(ctx, "Join failed on storage read", "room_id", roomID, "client_id", clientID, "error", err)
		return domain.JoinFailure(domain.FailureAccessRead)
	}
}
