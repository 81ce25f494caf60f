package identity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/storage"
)

const testSecret = "test-secret-key-0123456789"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	tokens := NewTokens(TokenConfig{Secret: testSecret, Issuer: "huddle-test", TTL: time.Hour}, clock.Now)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewStore(NewHasher(bcrypt.MinCost), tokens, opts...), clock
}

func mustRegister(t *testing.T, s *Store, username, password string) domain.User {
	t.Helper()
	ctx := context.Background()
	require.Equal(t, domain.RegistrationOK(), s.Register(ctx, username, password))
	status, user := s.Login(ctx, username, password)
	require.True(t, status.Passed)
	require.NotNil(t, user)
	return *user
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("collision on second registration", func(t *testing.T) {
		s, _ := newTestStore(t)
		assert.Equal(t, domain.RegistrationOK(), s.Register(ctx, "alice", "pw1"))
		assert.Equal(t, domain.RegistrationFailure(domain.FailureCollision), s.Register(ctx, "alice", "pw2"))

		users, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)

		status, _ := s.Login(ctx, "alice", "pw1")
		assert.True(t, status.Passed, "first password still works")
		status, _ = s.Login(ctx, "alice", "pw2")
		assert.False(t, status.Passed)
	})

	t.Run("collision ignores case", func(t *testing.T) {
		s, _ := newTestStore(t)
		assert.Equal(t, domain.RegistrationOK(), s.Register(ctx, "Alice", "pw1"))
		assert.Equal(t, domain.RegistrationFailure(domain.FailureCollision), s.Register(ctx, "ALICE", "pw2"))
	})

	t.Run("refusals", func(t *testing.T) {
		s, _ := newTestStore(t)
		assert.Equal(t, domain.RegistrationRefusal(domain.RefusedEmpty, "username"), s.Register(ctx, "", "pw"))
		assert.Equal(t, domain.RegistrationRefusal(domain.RefusedEmpty, "password"), s.Register(ctx, "bob", ""))
		assert.Equal(t, domain.RegistrationRefusal(domain.RefusedBadFormat, "username"), s.Register(ctx, "b o b", "pw"))

		users, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("new user starts at version zero with hash stripped", func(t *testing.T) {
		s, _ := newTestStore(t)
		u := mustRegister(t, s, "carol", "secret")
		assert.Equal(t, 0, u.TokenVersion)
		assert.Empty(t, u.PasswordHash)
		assert.NotEqual(t, uuid.Nil, u.ID)
	})

	t.Run("write fault", func(t *testing.T) {
		var fail atomic.Bool
		s, _ := newTestStore(t, WithStorageOptions(storage.WithFaults(func(op storage.Op, _ string) error {
			if fail.Load() && op == storage.OpInsert {
				return storage.ErrWriteFault
			}
			return nil
		})))
		fail.Store(true)
		assert.Equal(t, domain.RegistrationFailure(domain.FailureAccessWrite), s.Register(ctx, "dave", "pw"))

		fail.Store(false)
		assert.Equal(t, domain.RegistrationOK(), s.Register(ctx, "dave", "pw"), "a failed write leaves no partial state")
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user and wrong password are indistinguishable", func(t *testing.T) {
		s, _ := newTestStore(t)
		mustRegister(t, s, "alice", "pw1")

		wrongPw, u1 := s.Login(ctx, "alice", "nope")
		unknown, u2 := s.Login(ctx, "mallory", "pw1")
		assert.Equal(t, wrongPw, unknown)
		assert.Equal(t, domain.LoginRejected(), unknown)
		assert.Nil(t, u1)
		assert.Nil(t, u2)
	})

	t.Run("read fault", func(t *testing.T) {
		var fail atomic.Bool
		s, _ := newTestStore(t, WithStorageOptions(storage.WithFaults(func(op storage.Op, _ string) error {
			if fail.Load() && op == storage.OpGet {
				return storage.ErrReadFault
			}
			return nil
		})))
		mustRegister(t, s, "alice", "pw1")

		fail.Store(true)
		status, user := s.Login(ctx, "alice", "pw1")
		assert.Equal(t, domain.LoginFault(domain.FailureAccessRead), status)
		assert.Nil(t, user)
	})
}

func TestValidateToken(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)
	alice := mustRegister(t, s, "alice", "pw1")
	bob := mustRegister(t, s, "bob", "pw2")

	valid, err := s.IssueToken(ctx, alice.ID)
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, secret string, claims jwt.Claims) string {
		tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return tok
	}
	now := clock.Now()
	registered := jwt.RegisteredClaims{
		Issuer:    "huddle-test",
		Subject:   alice.ID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	zero := 0

	tests := []struct {
		name     string
		token    string
		subject  uuid.UUID
		expected domain.AuthStatus
	}{
		{"valid", valid, alice.ID, domain.AuthSuccess()},
		{"empty", "", alice.ID, domain.AuthFail(domain.EmptyHeader)},
		{"garbage", "not-a-jwt", alice.ID, domain.AuthFail(domain.ParsingError)},
		{"wrong secret", sign(jwt.SigningMethodHS256, "another-secret-value", Claims{Version: &zero, RegisteredClaims: registered}), alice.ID, domain.AuthFail(domain.BadJwtComponent)},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, testSecret, Claims{Version: &zero, RegisteredClaims: registered}), alice.ID, domain.AuthFail(domain.BadJwtComponent)},
		{"missing version", sign(jwt.SigningMethodHS256, testSecret, registered), alice.ID, domain.AuthFail(domain.BadJwtComponent)},
		{"subject mismatch", valid, bob.ID, domain.AuthFail(domain.InvalidToken)},
		{"unknown user", sign(jwt.SigningMethodHS256, testSecret, Claims{Version: &zero, RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "huddle-test",
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}), alice.ID, domain.AuthFail(domain.InvalidToken)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.ValidateToken(ctx, tt.token, tt.subject))
		})
	}

	t.Run("expired", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		defer clock.Advance(-2 * time.Hour)
		assert.Equal(t, domain.AuthFail(domain.ExpiredJwt), s.ValidateToken(ctx, valid, alice.ID))
	})

	t.Run("version bump invalidates earlier tokens", func(t *testing.T) {
		v, err := s.BumpTokenVersion(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		assert.Equal(t, domain.AuthFail(domain.InvalidToken), s.ValidateToken(ctx, valid, alice.ID))

		fresh, err := s.IssueToken(ctx, alice.ID)
		require.NoError(t, err)
		userID, status := s.Authenticate(ctx, fresh)
		assert.Equal(t, domain.AuthSuccess(), status)
		assert.Equal(t, alice.ID, userID)
	})
}

func TestHasher_InvalidCostFallsBack(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost())
	assert.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).Cost())
}
