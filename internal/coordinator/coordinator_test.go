package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/identity"
	"github.com/nfrund/huddle/internal/presence"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/rooms"
	"github.com/nfrund/huddle/internal/router"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, msg pubsub.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, msg.Topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) seen(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.topics {
		if t == topic {
			return true
		}
	}
	return false
}

type mailbox struct {
	mu    sync.Mutex
	texts []string
}

func (m *mailbox) Deliver(_ context.Context, p domain.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, p.Text)
	return nil
}

func (m *mailbox) received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

func newTestCoordinator(t *testing.T) (*Coordinator, *recordingPublisher) {
	t.Helper()
	publisher := &recordingPublisher{}
	tokens := identity.NewTokens(identity.TokenConfig{Secret: "coordinator-test-secret", Issuer: "huddle", TTL: time.Hour}, nil)
	ids := identity.NewStore(identity.NewHasher(bcrypt.MinCost), tokens)
	registry := rooms.NewRegistry()
	svc := presence.NewService(registry, publisher)
	joins := rooms.NewNegotiator(registry, svc, publisher)
	r := router.New(registry, svc, publisher, router.Config{DeliveryTimeout: time.Second})

	c := New(ids, registry, joins, svc, r, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.RunRouter(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = c.Shutdown(context.Background())
	})
	return c, publisher
}

func login(t *testing.T, c *Coordinator, username string) (uuid.UUID, string) {
	t.Helper()
	ctx := context.Background()
	require.Equal(t, domain.RegistrationOK(), c.Register(ctx, username, "password"))
	res := c.Login(ctx, username, "password")
	require.True(t, res.Status.Passed)
	require.NotNil(t, res.ClientID)
	require.NotEmpty(t, res.Token)
	return *res.ClientID, res.Token
}

func TestCoordinator_GeneralRoomScenario(t *testing.T) {
	ctx := context.Background()
	c, publisher := newTestCoordinator(t)

	alice, _ := login(t, c, "alice")
	bob, _ := login(t, c, "bob")
	carol, _ := login(t, c, "carol")

	capacity := 2
	created := c.CreateRoom(ctx, "general", &capacity, alice)
	require.True(t, created.Created())
	roomID := *created.Handle
	assert.True(t, publisher.seen(rooms.TopicRoomCreated.Name()))

	aliceBox, bobBox := &mailbox{}, &mailbox{}
	assert.Equal(t, domain.JoinOK(), c.Join(ctx, roomID, bob, bobBox))
	assert.Equal(t, domain.JoinRejection(domain.Reject(domain.RefusedCapacity)), c.Join(ctx, roomID, carol, &mailbox{}))

	out := c.Signal(ctx, presence.SignalInput{Code: domain.SignalConnect, ClientID: alice, RoomID: roomID, Address: aliceBox})
	require.Equal(t, domain.StatusConnected, out.Status.Kind)

	require.NoError(t, c.SendMessage(ctx, alice, roomID, "hi all"))

	require.Eventually(t, func() bool {
		return len(aliceBox.received()) == 1 && len(bobBox.received()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"hi all"}, bobBox.received())
	assert.Equal(t, []string{"hi all"}, aliceBox.received())

	all, err := c.ListRooms(ctx)
	require.NoError(t, err)
	require.Contains(t, all, roomID)
	assert.Equal(t, []uuid.UUID{alice, bob}, all[roomID].Members)
}

func TestCoordinator_CreateRoomNeedsKnownClient(t *testing.T) {
	c, _ := newTestCoordinator(t)
	created := c.CreateRoom(context.Background(), "lobby", nil, uuid.New())
	assert.False(t, created.Created())
	assert.Equal(t, domain.RoomRefusal(domain.UnknownUser()), created.Err)
}

func TestCoordinator_CreateRoomValidation(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t)
	alice, _ := login(t, c, "alice")

	zero := 0
	assert.Equal(t, domain.Unacceptable("capacity must be > 0"), c.CreateRoom(ctx, "tiny", &zero, alice).Err)
	assert.Equal(t, domain.RoomRefusal(domain.Reject(domain.RefusedEmpty)), c.CreateRoom(ctx, "", nil, alice).Err)

	all, err := c.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCoordinator_LoginFailureOpensNothing(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t)
	login(t, c, "alice")

	res := c.Login(ctx, "alice", "wrong")
	assert.Equal(t, domain.LoginRejected(), res.Status)
	assert.Nil(t, res.ClientID)
	assert.Empty(t, res.Token)
}

func TestCoordinator_LogoutInvalidatesToken(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t)
	client, token := login(t, c, "alice")

	userID, status := c.Authenticate(ctx, token)
	require.True(t, status.OK)
	assert.True(t, c.ClientOwnedBy(ctx, client, userID))
	assert.False(t, c.ClientOwnedBy(ctx, client, uuid.New()))

	require.NoError(t, c.Logout(ctx, userID))
	assert.Equal(t, domain.AuthFail(domain.InvalidToken), c.ValidateToken(ctx, token, userID))
}

func TestCoordinator_SendMessageChecks(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t)
	alice, _ := login(t, c, "alice")
	bob, _ := login(t, c, "bob")

	created := c.CreateRoom(ctx, "lobby", nil, alice)
	require.True(t, created.Created())

	assert.ErrorIs(t, c.SendMessage(ctx, bob, *created.Handle, "hi"), rooms.ErrNotMember)
	assert.ErrorIs(t, c.SendMessage(ctx, alice, *created.Handle, ""), router.ErrEmptyMessage)
	assert.True(t, IsNotFound(c.SendMessage(ctx, alice, uuid.New(), "hi")))
}

func TestCoordinator_ListUsersStripsHashes(t *testing.T) {
	c, _ := newTestCoordinator(t)
	login(t, c, "alice")
	login(t, c, "bob")

	users := c.ListUsers(context.Background())
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}
}

func TestCoordinator_OpenClient(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t)
	first, token := login(t, c, "alice")
	userID, status := c.Authenticate(ctx, token)
	require.True(t, status.OK)

	second, err := c.OpenClient(ctx, userID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second.ID)
	assert.True(t, c.ClientOwnedBy(ctx, second.ID, userID))

	_, err = c.OpenClient(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUnknownClient)
}
