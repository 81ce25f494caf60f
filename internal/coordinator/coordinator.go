package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/identity"
	"github.com/nfrund/huddle/internal/presence"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/rooms"
	"github.com/nfrund/huddle/internal/router"
	"github.com/nfrund/huddle/internal/storage"
)

// ErrForbidden is returned when a user acts through a client it does not own.
var ErrForbidden = errors.New("client belongs to another user")

// LoginResult is returned by Login. ClientID and Token are set only when
// Status passed.
type LoginResult struct {
	Status   domain.LoginStatus
	ClientID *uuid.UUID
	Token    string
}

// Coordinator is the single entry point for transports. It composes the
// identity store, room registry, join negotiator, presence service and
// message router.
type Coordinator struct {
	identity  *identity.Store
	rooms     *rooms.Registry
	joins     *rooms.Negotiator
	presence  *presence.Service
	router    *router.Router
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// New wires a coordinator. publisher may be nil.
func New(
	ids *identity.Store,
	registry *rooms.Registry,
	joins *rooms.Negotiator,
	svc *presence.Service,
	r *router.Router,
	publisher pubsub.Publisher,
) *Coordinator {
	return &Coordinator{
		identity:  ids,
		rooms:     registry,
		joins:     joins,
		presence:  svc,
		router:    r,
		publisher: publisher,
		logger:    slog.Default().With("service", "coordinator"),
	}
}

// Register creates a user.
func (c *Coordinator) Register(ctx context.Context, username, password string) domain.RegistrationStatus {
	return c.identity.Register(ctx, username, password)
}

// Login checks credentials and, on success, opens a client session and
// issues a bearer token for it.
func (c *Coordinator) Login(ctx context.Context, username, password string) LoginResult {
	status, user := c.identity.Login(ctx, username, password)
	if !status.Passed {
		return LoginResult{Status: status}
	}

	token, err := c.identity.IssueToken(ctx, user.ID)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to issue token", "user_id", user.ID, "error", err)
		return LoginResult{Status: domain.LoginFault(domain.FailureAccessRead)}
	}

	client := c.presence.AddClient(ctx, user.ID)
	return LoginResult{Status: status, ClientID: &client.ID, Token: token}
}

// Logout invalidates every token issued to the user so far.
func (c *Coordinator) Logout(ctx context.Context, userID uuid.UUID) error {
	_, err := c.identity.BumpTokenVersion(ctx, userID)
	return err
}

// OpenClient starts an additional client session for an authenticated
// user.
func (c *Coordinator) OpenClient(ctx context.Context, userID uuid.UUID) (domain.Client, error) {
	if !c.identity.Exists(ctx, userID) {
		return domain.Client{}, domain.ErrUnknownClient
	}
	return c.presence.AddClient(ctx, userID), nil
}

// CreateRoom creates a room administered by creator, which must be a
// known client.
func (c *Coordinator) CreateRoom(ctx context.Context, name string, capacity *int, creator uuid.UUID) domain.RoomCreation {
	if !c.presence.ClientExists(ctx, creator) {
		return domain.RoomCreation{Err: domain.RoomRefusal(domain.UnknownUser())}
	}

	room, err := c.rooms.Create(ctx, name, capacity, creator)
	if err != nil {
		var roomErr *domain.RoomError
		if errors.As(err, &roomErr) {
			return domain.RoomCreation{Err: roomErr}
		}
		c.logger.ErrorContext(ctx, "Unclassified room creation error", "error", err)
		return domain.RoomCreation{Err: domain.RoomFailure(domain.FailureAccessWrite)}
	}

	if c.publisher != nil {
		event := rooms.RoomCreatedEvent{
			RoomID:   room.ID,
			Name:     room.Name,
			Capacity: room.Capacity,
			Admin:    room.Admin,
			At:       room.CreatedAt,
		}
		if err := pubsub.Publish(ctx, c.publisher, rooms.TopicRoomCreated, event); err != nil {
			c.logger.ErrorContext(ctx, "Failed to publish room event", "error", err, "topic", rooms.TopicRoomCreated.Name())
		}
	}

	id := room.ID
	return domain.RoomCreation{Handle: &id}
}

// Join admits the client to the room. When addr is non-nil and the join
// succeeds, the client is also connected with addr.
func (c *Coordinator) Join(ctx context.Context, roomID, clientID uuid.UUID, addr domain.Address) domain.JoinOutput {
	out := c.joins.Join(ctx, roomID, clientID)
	if out.Kind != domain.JoinSuccess || addr == nil {
		return out
	}

	signal := c.presence.Connect(ctx, clientID, addr, roomID)
	if signal.Status.Kind == domain.StatusAborted {
		c.logger.WarnContext(ctx, "Joined but could not connect",
			"room_id", roomID,
			"client_id", clientID,
			"reason", signal.Status.Abort.String())
	}
	return out
}

// Signal forwards a presence transition.
func (c *Coordinator) Signal(ctx context.Context, in presence.SignalInput) domain.SignalOutput {
	return c.presence.Signal(ctx, in)
}

// Release disconnects the client if addr is still its bound address.
func (c *Coordinator) Release(ctx context.Context, clientID uuid.UUID, addr domain.Address) domain.SignalOutput {
	return c.presence.Release(ctx, clientID, addr)
}

// SendMessage queues text for delivery to the room and returns without
// waiting for it. The sender must be a member of the room.
func (c *Coordinator) SendMessage(ctx context.Context, senderID, roomID uuid.UUID, text string) error {
	if err := router.Validate(text); err != nil {
		return err
	}
	member, err := c.rooms.IsMember(ctx, roomID, senderID)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if !member {
		return rooms.ErrNotMember
	}
	return c.router.Enqueue(ctx, router.Outbound{SenderID: senderID, RoomID: roomID, Text: text})
}

// ListUsers returns every user. Read faults are logged and yield an empty
// map.
func (c *Coordinator) ListUsers(ctx context.Context) map[uuid.UUID]domain.User {
	users, err := c.identity.List(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to list users", "error", err)
		return map[uuid.UUID]domain.User{}
	}
	return users
}

// ListRooms returns a snapshot of every room.
func (c *Coordinator) ListRooms(ctx context.Context) (map[uuid.UUID]domain.Room, error) {
	return c.rooms.RetrieveAll(ctx)
}

// Room returns one room snapshot.
func (c *Coordinator) Room(ctx context.Context, roomID uuid.UUID) (domain.Room, error) {
	return c.rooms.Get(ctx, roomID)
}

// ValidateToken checks that token is current and was issued to
// expectedSubject.
func (c *Coordinator) ValidateToken(ctx context.Context, token string, expectedSubject uuid.UUID) domain.AuthStatus {
	return c.identity.ValidateToken(ctx, token, expectedSubject)
}

// Authenticate resolves a token to its user.
func (c *Coordinator) Authenticate(ctx context.Context, token string) (uuid.UUID, domain.AuthStatus) {
	return c.identity.Authenticate(ctx, token)
}

// ClientOwnedBy reports whether clientID is a session of userID.
func (c *Coordinator) ClientOwnedBy(ctx context.Context, clientID, userID uuid.UUID) bool {
	client, err := c.presence.Client(ctx, clientID)
	return err == nil && client.UserID == userID
}

// RunRouter drains the message queue until ctx is done.
func (c *Coordinator) RunRouter(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Shutdown releases every live address.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.presence.Shutdown()
	return nil
}

// IsNotFound reports whether err means the referenced room does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
