package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered identity. Only TokenVersion changes after
// creation.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	PasswordHash string    `json:"-"`
	// TokenVersion starts at 0 and is incremented to invalidate every token
	// issued before the increment.
	TokenVersion int `json:"token_version"`
}

// Snapshot returns a copy of the user that is safe to hand to callers
// outside the identity store.
func (u User) Snapshot() User {
	u.PasswordHash = ""
	return u
}

// Client is a session bound to exactly one User. Address is only set while
// the client holds a live delivery channel.
type Client struct {
	ID      uuid.UUID `json:"id"`
	UserID  uuid.UUID `json:"user_id"`
	Address Address   `json:"-"`
}

// Connected reports whether the client currently has a delivery address.
func (c Client) Connected() bool {
	return c.Address != nil
}
