package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nfrund/huddle/internal/domain"
)

// TokenConfig holds JWT configuration.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Claims are the JWT claims issued for a user. Version must equal the
// user's current token version for the token to be accepted.
type Claims struct {
	Version *int `json:"tv"`
	jwt.RegisteredClaims
}

// Tokens issues and parses bearer tokens.
type Tokens struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokens creates a token manager. now may be nil, in which case the
// wall clock is used.
func NewTokens(config TokenConfig, now func() time.Time) *Tokens {
	if now == nil {
		now = time.Now
	}
	return &Tokens{config: config, now: now}
}

// Issue signs a token for the user's current token version.
func (t *Tokens) Issue(user domain.User) (string, error) {
	now := t.now()
	version := user.TokenVersion
	claims := Claims{
		Version: &version,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.config.Issuer,
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(t.config.Secret))
}

// Subject is what a verified token asserts: a user and the token version
// it was issued under.
type Subject struct {
	UserID  uuid.UUID
	Version int
}

// Parse verifies signature, algorithm, expiry and claim shape. It does not
// consult the user store.
func (t *Tokens) Parse(raw string) (Subject, domain.BearerFailure, bool) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(t.config.Secret), nil
	}, opts...)

	if err != nil {
		return Subject{}, classify(err), false
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Version == nil {
		return Subject{}, domain.BadJwtComponent, false
	}
	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Subject{}, domain.BadJwtComponent, false
	}
	return Subject{UserID: subject, Version: *claims.Version}, 0, true
}

func classify(err error) domain.BearerFailure {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return domain.ParsingError
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ExpiredJwt
	default:
		return domain.BadJwtComponent
	}
}
