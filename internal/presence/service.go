package presence

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/storage"
)

// RoomDirectory answers membership questions. A missing room is reported
// as storage.ErrNotFound.
type RoomDirectory interface {
	IsMember(ctx context.Context, roomID, clientID uuid.UUID) (bool, error)
}

// SignalInput is a transport request to change a client's presence.
// RoomID is only read for SignalConnect.
type SignalInput struct {
	Code     domain.SignalCode
	ClientID uuid.UUID
	RoomID   uuid.UUID
	Address  domain.Address
}

// binding is one live address. Its context is cancelled when the address
// is released, which aborts every delivery still in flight to it.
type binding struct {
	addr   domain.Address
	roomID uuid.UUID
	ctx    context.Context
	cancel context.CancelFunc
}

type session struct {
	client  domain.Client
	state   domain.ConnectionKind
	binding *binding
}

// Target is a deliverable address of a connected client.
type Target struct {
	ClientID uuid.UUID
	Address  domain.Address
	b        *binding
}

// Context is done once the target's binding is released.
func (t Target) Context() context.Context {
	if t.b == nil {
		return context.Background()
	}
	return t.b.ctx
}

// Service tracks which clients exist and which of them can be delivered to.
type Service struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*session
	rooms     RoomDirectory
	publisher pubsub.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for SignaledAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}

// NewService creates a presence service. publisher may be nil.
func NewService(rooms RoomDirectory, publisher pubsub.Publisher, opts ...Option) *Service {
	svc := &Service{
		sessions:  make(map[uuid.UUID]*session),
		rooms:     rooms,
		publisher: publisher,
		logger:    slog.Default().With("service", "presence"),
		now:       Now,
	}

	// Apply functional options
	for _, opt := range opts {
		opt(svc)
	}

	svc.logger.Info("Presence service initialized")
	return svc
}

func (s *Service) stamp() time.Time {
	return s.now().UTC()
}

// AddClient creates a disconnected client session for userID.
func (s *Service) AddClient(ctx context.Context, userID uuid.UUID) domain.Client {
	client := domain.Client{ID: uuid.New(), UserID: userID}

	s.mu.Lock()
	s.sessions[client.ID] = &session{client: client, state: domain.StatusDisconnected}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Client added", "client_id", client.ID, "user_id", userID)
	return client
}

// Connect makes addr the client's delivery address for roomID. The client
// must already be a member of the room.
func (s *Service) Connect(ctx context.Context, clientID uuid.UUID, addr domain.Address, roomID uuid.UUID) domain.SignalOutput {
	member, err := s.rooms.IsMember(ctx, roomID, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Aborted(domain.AbortUnacceptableBy(domain.UnknownRoom()), s.stamp())
		}
		s.logger.ErrorContext(ctx, "Failed to read room membership", "room_id", roomID, "client_id", clientID, "error", err)
		return domain.Aborted(domain.AbortInternalBy(domain.FailureAccessRead), s.stamp())
	}
	if !s.ClientExists(ctx, clientID) {
		return domain.Aborted(domain.AbortUnacceptableBy(domain.UnknownUser()), s.stamp())
	}
	if !member {
		return domain.Aborted(domain.AbortUnacceptableBy(domain.Reject(domain.RefusedNotMember)), s.stamp())
	}
	if addr == nil {
		return domain.Aborted(domain.AbortExternalBy(domain.RefusedEmpty), s.stamp())
	}

	return s.bind(ctx, clientID, addr, roomID, domain.StatusConnected)
}

// Pending binds addr without making the client deliverable.
func (s *Service) Pending(ctx context.Context, clientID uuid.UUID, addr domain.Address) domain.SignalOutput {
	if !s.ClientExists(ctx, clientID) {
		return domain.Aborted(domain.AbortUnacceptableBy(domain.UnknownUser()), s.stamp())
	}
	if addr == nil {
		return domain.Aborted(domain.AbortExternalBy(domain.RefusedEmpty), s.stamp())
	}
	return s.bind(ctx, clientID, addr, uuid.Nil, domain.StatusPending)
}

func (s *Service) bind(ctx context.Context, clientID uuid.UUID, addr domain.Address, roomID uuid.UUID, state domain.ConnectionKind) domain.SignalOutput {
	bctx, cancel := context.WithCancel(context.Background())
	b := &binding{addr: addr, roomID: roomID, ctx: bctx, cancel: cancel}

	s.mu.Lock()
	sess, ok := s.sessions[clientID]
	if !ok {
		s.mu.Unlock()
		cancel()
		return domain.Aborted(domain.AbortUnacceptableBy(domain.UnknownUser()), s.stamp())
	}
	previous := sess.binding
	sess.binding = b
	sess.client.Address = addr
	sess.state = state
	client := sess.client
	s.mu.Unlock()

	// Release lock before cancelling and publishing
	if previous != nil {
		previous.cancel()
		if closer, ok := previous.addr.(domain.Closer); ok && !sameAddress(previous.addr, addr) {
			closer.Close()
		}
	}

	at := s.stamp()
	s.logger.InfoContext(ctx, "Client address bound",
		"client_id", clientID,
		"room_id", roomID,
		"state", state,
		"replaced", previous != nil)
	s.publish(ctx, client, roomID, state, at)
	return domain.Signaled(state, at)
}

// Disconnect releases the client's address and cancels in-flight
// deliveries to it. Disconnecting twice yields the same result.
func (s *Service) Disconnect(ctx context.Context, clientID uuid.UUID) domain.SignalOutput {
	out, _ := s.release(ctx, clientID, nil)
	return out
}

// Release disconnects the client only while addr is still its bound
// address. A transport calls it when its own connection ends so that a
// newer connection of the same client stays bound.
func (s *Service) Release(ctx context.Context, clientID uuid.UUID, addr domain.Address) domain.SignalOutput {
	s.mu.RLock()
	sess, ok := s.sessions[clientID]
	if !ok {
		s.mu.RUnlock()
		return domain.Aborted(domain.AbortUnacceptableBy(domain.UnknownUser()), s.stamp())
	}
	current, state := sess.binding, sess.state
	s.mu.RUnlock()

	if current == nil || !sameAddress(current.addr, addr) {
		return domain.Signaled(state, s.stamp())
	}
	out, _ := s.release(ctx, clientID, current)
	return out
}

// sameAddress compares addresses without panicking on uncomparable
// dynamic types such as AddressFunc.
func sameAddress(a, b domain.Address) bool {
	if a == nil || b == nil || reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if !reflect.ValueOf(a).Comparable() {
		return false
	}
	return a == b
}

// release moves the client to Disconnected. When only is non-nil the
// client is released only while only is still its binding.
func (s *Service) release(ctx context.Context, clientID uuid.UUID, only *binding) (domain.SignalOutput, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[clientID]
	if !ok {
		s.mu.Unlock()
		return domain.Aborted(domain.AbortUnacceptableBy(domain.UnknownUser()), s.stamp()), false
	}
	if only != nil && sess.binding != only {
		state := sess.state
		s.mu.Unlock()
		return domain.Signaled(state, s.stamp()), false
	}
	previous := sess.binding
	wasState := sess.state
	sess.binding = nil
	sess.client.Address = nil
	sess.state = domain.StatusDisconnected
	client := sess.client
	s.mu.Unlock()

	at := s.stamp()
	if previous != nil {
		previous.cancel()
	}
	if wasState == domain.StatusDisconnected {
		return domain.Signaled(domain.StatusDisconnected, at), false
	}

	s.logger.InfoContext(ctx, "Client disconnected", "client_id", clientID, "previous_state", wasState)
	var roomID uuid.UUID
	if previous != nil {
		roomID = previous.roomID
	}
	s.publish(ctx, client, roomID, domain.StatusDisconnected, at)
	return domain.Signaled(domain.StatusDisconnected, at), true
}

// Signal dispatches a transport request to the matching transition.
func (s *Service) Signal(ctx context.Context, in SignalInput) domain.SignalOutput {
	switch in.Code {
	case domain.SignalConnect:
		return s.Connect(ctx, in.ClientID, in.Address, in.RoomID)
	case domain.SignalPending:
		return s.Pending(ctx, in.ClientID, in.Address)
	case domain.SignalDisconnect:
		return s.Disconnect(ctx, in.ClientID)
	default:
		return domain.Aborted(domain.AbortExternalBy(domain.RefusedBadFormat), s.stamp())
	}
}

// Evict disconnects the target's client if the target is still its current
// binding. Used by the router when an address reports it is closed.
func (s *Service) Evict(ctx context.Context, t Target) bool {
	if t.b == nil {
		return false
	}
	_, evicted := s.release(ctx, t.ClientID, t.b)
	if evicted {
		s.logger.WarnContext(ctx, "Evicted closed address", "client_id", t.ClientID)
	}
	return evicted
}

// Targets returns the deliverable addresses among members that are
// connected to roomID, in member order.
func (s *Service) Targets(ctx context.Context, roomID uuid.UUID, members []uuid.UUID) []Target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Target, 0, len(members))
	for _, id := range members {
		sess, ok := s.sessions[id]
		if !ok || sess.state != domain.StatusConnected || sess.binding == nil {
			continue
		}
		if sess.binding.roomID != roomID {
			continue
		}
		out = append(out, Target{ClientID: id, Address: sess.binding.addr, b: sess.binding})
	}
	return out
}

// Client returns a copy of the client record.
func (s *Service) Client(ctx context.Context, clientID uuid.UUID) (domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[clientID]
	if !ok {
		return domain.Client{}, domain.ErrUnknownClient
	}
	return sess.client, nil
}

// ClientExists reports whether clientID names a client session.
func (s *Service) ClientExists(ctx context.Context, clientID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[clientID]
	return ok
}

// State returns the client's presence state.
func (s *Service) State(ctx context.Context, clientID uuid.UUID) (domain.ConnectionKind, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[clientID]
	if !ok {
		return 0, domain.ErrUnknownClient
	}
	return sess.state, nil
}

// OnlineClients returns every client in the Connected state.
func (s *Service) OnlineClients(ctx context.Context) []domain.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Client, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.state == domain.StatusConnected {
			result = append(result, sess.client)
		}
	}
	return result
}

// Shutdown releases every bound address.
func (s *Service) Shutdown() {
	s.mu.Lock()
	var released []*binding
	for _, sess := range s.sessions {
		if sess.binding != nil {
			released = append(released, sess.binding)
			sess.binding = nil
			sess.client.Address = nil
			sess.state = domain.StatusDisconnected
		}
	}
	s.mu.Unlock()

	for _, b := range released {
		b.cancel()
	}
	s.logger.Info("Presence service stopped", "released", len(released))
}

func (s *Service) publish(ctx context.Context, client domain.Client, roomID uuid.UUID, state domain.ConnectionKind, at time.Time) {
	if s.publisher == nil {
		return
	}
	topic, ok := topicFor(state)
	if !ok {
		return
	}
	event := ClientEvent{
		ClientID: client.ID,
		UserID:   client.UserID,
		RoomID:   roomID,
		Status:   state.String(),
		At:       at,
	}
	if err := pubsub.Publish(ctx, s.publisher, topic, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish presence event",
			"error", err,
			"topic", topic.Name())
	}
}
