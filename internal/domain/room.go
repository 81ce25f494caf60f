package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Room is a named, optionally capacity-bounded group sharing message
// delivery. Values returned by the room registry are snapshots.
type Room struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	// Capacity is nil or negative for unlimited rooms.
	Capacity    *int                    `json:"capacity,omitempty"`
	Admin       uuid.UUID               `json:"admin"`
	Members     []uuid.UUID             `json:"members"`
	MemberCount int                     `json:"member_count"`
	// LastMessages keeps only the most recent payload per sender.
	LastMessages map[uuid.UUID]Payload `json:"last_messages,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// Bounded reports whether the room enforces a member limit.
func (r Room) Bounded() bool {
	return r.Capacity != nil && *r.Capacity > 0
}

// Full reports whether another member would exceed the capacity.
func (r Room) Full() bool {
	return r.Bounded() && r.MemberCount >= *r.Capacity
}

// HasMember reports whether the client is in the member set.
func (r Room) HasMember(clientID uuid.UUID) bool {
	return slices.Contains(r.Members, clientID)
}

// Clone returns a deep copy so the caller can never observe later mutation.
func (r Room) Clone() Room {
	out := r
	if r.Capacity != nil {
		c := *r.Capacity
		out.Capacity = &c
	}
	out.Members = slices.Clone(r.Members)
	out.LastMessages = make(map[uuid.UUID]Payload, len(r.LastMessages))
	for k, v := range r.LastMessages {
		out.LastMessages[k] = v
	}
	return out
}

// Payload is one message plus its creation timestamp.
type Payload struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"sent_at"`
}

// NewPayload stamps text with the given time.
func NewPayload(text string, at time.Time) Payload {
	return Payload{Text: text, CreatedAt: at.UTC()}
}
