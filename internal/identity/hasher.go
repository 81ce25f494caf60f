package identity

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher provides salted password hashing and verification.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher with the given bcrypt cost. Costs outside
// bcrypt's accepted range fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the bcrypt cost in use.
func (h *Hasher) Cost() int { return h.cost }

// Hash generates a bcrypt hash of the given password.
func (h *Hasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify checks if the provided password matches the hash.
func (h *Hasher) Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
