package rooms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/storage"
)

// MaxNameLength is the longest accepted room name, in characters.
const MaxNameLength = 100

var (
	// ErrRoomFull is returned by AppendClient when the room is at capacity.
	ErrRoomFull = errors.New("room is at capacity")

	// ErrAlreadyMember is returned by AppendClient for a duplicate join.
	ErrAlreadyMember = errors.New("client is already a member")

	// ErrNotMember is returned when a non-member acts on a room.
	ErrNotMember = errors.New("client is not a member")
)

// entry guards one room. Membership changes hold the entry's lock for the
// whole check-and-append.
type entry struct {
	mu   sync.RWMutex
	room domain.Room
}

func (e *entry) snapshot() domain.Room {
	e.mu.RLock()
	defer e.mu.RUnlock()
	checkInvariants(e.room)
	return e.room.Clone()
}

func checkInvariants(r domain.Room) {
	if r.MemberCount != len(r.Members) {
		panic(fmt.Sprintf("rooms: room %s member count %d does not match %d members", r.ID, r.MemberCount, len(r.Members)))
	}
	if r.Capacity != nil && *r.Capacity > 0 && r.MemberCount > *r.Capacity {
		panic(fmt.Sprintf("rooms: room %s holds %d members over capacity %d", r.ID, r.MemberCount, *r.Capacity))
	}
}

// Registry owns rooms and their membership.
type Registry struct {
	rooms  *storage.Arena[uuid.UUID, *entry]
	logger *slog.Logger
	now    func() time.Time
}

// Option is a function that configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	clock   func() time.Time
	storage []storage.Option
}

// WithClock overrides the clock used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *registryOptions) {
		o.clock = now
	}
}

// WithStorageOptions passes options to the room arena.
func WithStorageOptions(opts ...storage.Option) Option {
	return func(o *registryOptions) {
		o.storage = append(o.storage, opts...)
	}
}

// NewRegistry creates an empty room registry.
func NewRegistry(opts ...Option) *Registry {
	o := &registryOptions{clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return &Registry{
		rooms:  storage.NewArena[uuid.UUID, *entry]("rooms", o.storage...),
		logger: slog.Default().With("service", "rooms"),
		now:    o.clock,
	}
}

// Create adds a room whose sole member is admin. A nil or negative
// capacity means unlimited; zero is rejected.
func (r *Registry) Create(ctx context.Context, name string, capacity *int, admin uuid.UUID) (domain.Room, error) {
	if name == "" {
		return domain.Room{}, domain.RoomRefusal(domain.Reject(domain.RefusedEmpty))
	}
	if !utf8.ValidString(name) || utf8.RuneCountInString(name) > MaxNameLength {
		return domain.Room{}, domain.RoomRefusal(domain.Reject(domain.RefusedBadFormat))
	}

	var limit *int
	if capacity != nil {
		switch {
		case *capacity == 0:
			return domain.Room{}, domain.Unacceptable("capacity must be > 0")
		case *capacity > 0:
			c := *capacity
			limit = &c
		}
	}

	room := domain.Room{
		ID:           uuid.New(),
		Name:         name,
		Capacity:     limit,
		Admin:        admin,
		Members:      []uuid.UUID{admin},
		MemberCount:  1,
		LastMessages: make(map[uuid.UUID]domain.Payload),
		CreatedAt:    r.now().UTC(),
	}

	if err := r.rooms.Insert(room.ID, &entry{room: room}); err != nil {
		r.logger.ErrorContext(ctx, "Failed to store room", "name", name, "error", err)
		if errors.Is(err, storage.ErrCollision) {
			return domain.Room{}, domain.RoomFailure(domain.FailureCollision)
		}
		return domain.Room{}, domain.RoomFailure(domain.FailureAccessWrite)
	}

	r.logger.InfoContext(ctx, "Room created", "room_id", room.ID, "name", name, "admin", admin)
	return room.Clone(), nil
}

// RetrieveAll returns a consistent snapshot of every room.
func (r *Registry) RetrieveAll(ctx context.Context) (map[uuid.UUID]domain.Room, error) {
	entries, err := r.rooms.Snapshot()
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list rooms", "error", err)
		return nil, domain.FailureAccessRead
	}

	out := make(map[uuid.UUID]domain.Room, len(entries))
	for id, e := range entries {
		out[id] = e.snapshot()
	}
	return out, nil
}

// Get returns a snapshot of one room. Missing rooms yield
// storage.ErrNotFound.
func (r *Registry) Get(ctx context.Context, roomID uuid.UUID) (domain.Room, error) {
	e, err := r.rooms.Get(roomID)
	if err != nil {
		return domain.Room{}, err
	}
	return e.snapshot(), nil
}

// AppendClient adds clientID to the room's members. Capacity is checked
// before membership, both in the same critical section as the append.
func (r *Registry) AppendClient(ctx context.Context, roomID, clientID uuid.UUID) error {
	e, err := r.rooms.Get(roomID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.room.Full() {
		return ErrRoomFull
	}
	if e.room.HasMember(clientID) {
		return ErrAlreadyMember
	}
	e.room.Members = append(e.room.Members, clientID)
	e.room.MemberCount++
	checkInvariants(e.room)

	r.logger.DebugContext(ctx, "Client joined room",
		"room_id", roomID,
		"client_id", clientID,
		"member_count", e.room.MemberCount)
	return nil
}

// RecordMessage stores payload as the sender's latest message and returns
// the member list the message should be delivered to.
func (r *Registry) RecordMessage(ctx context.Context, roomID, senderID uuid.UUID, payload domain.Payload) ([]uuid.UUID, error) {
	e, err := r.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.room.HasMember(senderID) {
		return nil, ErrNotMember
	}
	if e.room.LastMessages == nil {
		e.room.LastMessages = make(map[uuid.UUID]domain.Payload)
	}
	e.room.LastMessages[senderID] = payload
	return slices.Clone(e.room.Members), nil
}

// IsMember reports whether clientID belongs to the room.
func (r *Registry) IsMember(ctx context.Context, roomID, clientID uuid.UUID) (bool, error) {
	e, err := r.rooms.Get(roomID)
	if err != nil {
		return false, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.room.HasMember(clientID), nil
}
