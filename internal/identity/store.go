package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/storage"
)

// Store owns user records and credential checks.
type Store struct {
	users  *storage.Arena[uuid.UUID, domain.User]
	names  *storage.Arena[string, uuid.UUID]
	hasher *Hasher
	tokens *Tokens
	logger *slog.Logger
	now    func() time.Time

	// dummyHash is compared against when the username is unknown so both
	// login failure paths cost one bcrypt comparison.
	dummyHash string
}

// Option is a function that configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	clock   func() time.Time
	storage []storage.Option
}

// WithClock overrides the clock used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		o.clock = now
	}
}

// WithStorageOptions passes options to the user and username arenas.
func WithStorageOptions(opts ...storage.Option) Option {
	return func(o *storeOptions) {
		o.storage = append(o.storage, opts...)
	}
}

// NewStore creates an identity store backed by in-memory arenas.
func NewStore(hasher *Hasher, tokens *Tokens, opts ...Option) *Store {
	o := &storeOptions{clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	s := &Store{
		users:  storage.NewArena[uuid.UUID, domain.User]("users", o.storage...),
		names:  storage.NewArena[string, uuid.UUID]("usernames", o.storage...),
		hasher: hasher,
		tokens: tokens,
		logger: slog.Default().With("service", "identity"),
		now:    o.clock,
	}

	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		// Only reachable with an input over 72 bytes, which a uuid is not.
		panic(fmt.Sprintf("identity: hashing dummy password: %v", err))
	}
	s.dummyHash = dummy
	return s
}

// usernameKey folds case so "Alice" and "alice" collide.
func usernameKey(username string) string {
	return cases.Fold().String(username)
}

// Register creates a user with a fresh id and token version 0.
func (s *Store) Register(ctx context.Context, username, password string) domain.RegistrationStatus {
	creds := domain.Credentials{Username: username, Password: password}
	if reason, field, ok := creds.Check(); !ok {
		return domain.RegistrationRefusal(reason, field)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to hash password", "error", err)
		return domain.RegistrationFailure(domain.FailureAccessWrite)
	}

	user := domain.User{
		ID:           uuid.New(),
		Username:     username,
		CreatedAt:    s.now().UTC(),
		PasswordHash: hash,
	}

	key := usernameKey(username)
	if err := s.names.Insert(key, user.ID); err != nil {
		if errors.Is(err, storage.ErrCollision) {
			return domain.RegistrationFailure(domain.FailureCollision)
		}
		s.logger.ErrorContext(ctx, "Failed to reserve username", "username", username, "error", err)
		return domain.RegistrationFailure(domain.FailureAccessWrite)
	}

	if err := s.users.Insert(user.ID, user); err != nil {
		if derr := s.names.Delete(key); derr != nil {
			s.logger.ErrorContext(ctx, "Failed to release username after write fault", "username", username, "error", derr)
		}
		s.logger.ErrorContext(ctx, "Failed to store user", "username", username, "error", err)
		if errors.Is(err, storage.ErrCollision) {
			return domain.RegistrationFailure(domain.FailureCollision)
		}
		return domain.RegistrationFailure(domain.FailureAccessWrite)
	}

	s.logger.InfoContext(ctx, "User registered", "user_id", user.ID, "username", username)
	return domain.RegistrationOK()
}

// Login checks credentials. An unknown username and a wrong password
// produce the same result and take comparable time.
func (s *Store) Login(ctx context.Context, username, password string) (domain.LoginStatus, *domain.User) {
	id, err := s.names.Get(usernameKey(username))
	if err != nil {
		if storage.IsFault(err) {
			s.logger.ErrorContext(ctx, "Failed to read username index", "error", err)
			return domain.LoginFault(domain.FailureAccessRead), nil
		}
		s.hasher.Verify(password, s.dummyHash)
		return domain.LoginRejected(), nil
	}

	user, err := s.users.Get(id)
	if err != nil {
		if storage.IsFault(err) {
			s.logger.ErrorContext(ctx, "Failed to read user", "user_id", id, "error", err)
			return domain.LoginFault(domain.FailureAccessRead), nil
		}
		s.hasher.Verify(password, s.dummyHash)
		return domain.LoginRejected(), nil
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return domain.LoginRejected(), nil
	}

	snap := user.Snapshot()
	return domain.LoginPassed(), &snap
}

// IssueToken signs a bearer token for the user's current token version.
func (s *Store) IssueToken(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.users.Get(userID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return s.tokens.Issue(user)
}

// Authenticate resolves a bearer token to the user it was issued to.
func (s *Store) Authenticate(ctx context.Context, token string) (uuid.UUID, domain.AuthStatus) {
	if token == "" {
		return uuid.Nil, domain.AuthFail(domain.EmptyHeader)
	}

	subject, failure, ok := s.tokens.Parse(token)
	if !ok {
		return uuid.Nil, domain.AuthFail(failure)
	}

	user, err := s.users.Get(subject.UserID)
	if err != nil {
		if storage.IsFault(err) {
			s.logger.ErrorContext(ctx, "Failed to load user for token check", "user_id", subject.UserID, "error", err)
		}
		return uuid.Nil, domain.AuthFail(domain.InvalidToken)
	}
	if user.TokenVersion != subject.Version {
		return uuid.Nil, domain.AuthFail(domain.InvalidToken)
	}
	return user.ID, domain.AuthSuccess()
}

// ValidateToken checks a token and that it was issued to expectedSubject.
func (s *Store) ValidateToken(ctx context.Context, token string, expectedSubject uuid.UUID) domain.AuthStatus {
	userID, status := s.Authenticate(ctx, token)
	if !status.OK {
		return status
	}
	if userID != expectedSubject {
		return domain.AuthFail(domain.InvalidToken)
	}
	return status
}

// BumpTokenVersion increments the user's token version, invalidating every
// token issued before the call. It returns the new version.
func (s *Store) BumpTokenVersion(ctx context.Context, userID uuid.UUID) (int, error) {
	user, err := s.users.Update(userID, func(u domain.User) (domain.User, error) {
		u.TokenVersion++
		return u, nil
	})
	if err != nil {
		return 0, fmt.Errorf("bump token version: %w", err)
	}
	s.logger.InfoContext(ctx, "Token version bumped", "user_id", userID, "version", user.TokenVersion)
	return user.TokenVersion, nil
}

// Get returns the user with the hash stripped.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	user, err := s.users.Get(userID)
	if err != nil {
		return domain.User{}, err
	}
	return user.Snapshot(), nil
}

// Exists reports whether userID names a registered user. Read faults count
// as absent.
func (s *Store) Exists(ctx context.Context, userID uuid.UUID) bool {
	ok, err := s.users.Has(userID)
	return err == nil && ok
}

// List returns every user keyed by id, hashes stripped.
func (s *Store) List(ctx context.Context) (map[uuid.UUID]domain.User, error) {
	all, err := s.users.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for id, u := range all {
		all[id] = u.Snapshot()
	}
	return all, nil
}
