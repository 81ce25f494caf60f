package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCredentials_Check(t *testing.T) {
	tests := []struct {
		name       string
		creds      Credentials
		wantOK     bool
		wantReason RefusedReason
		wantField  string
	}{
		{name: "valid", creds: Credentials{Username: "alice", Password: "pw123"}, wantOK: true},
		{name: "empty username wins over empty password", creds: Credentials{}, wantReason: RefusedEmpty, wantField: "username"},
		{name: "empty password", creds: Credentials{Username: "alice"}, wantReason: RefusedEmpty, wantField: "password"},
		{name: "username too short", creds: Credentials{Username: "al", Password: "x"}, wantReason: RefusedBadFormat, wantField: "username"},
		{name: "username with spaces", creds: Credentials{Username: "al ice", Password: "x"}, wantReason: RefusedBadFormat, wantField: "username"},
		{name: "password over bcrypt limit", creds: Credentials{Username: "alice", Password: strings.Repeat("p", 73)}, wantReason: RefusedBadFormat, wantField: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, field, ok := tt.creds.Check()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantReason, reason)
			assert.Equal(t, tt.wantField, field)
		})
	}
}

func TestRoom_CloneIsDeep(t *testing.T) {
	capacity := 3
	member := uuid.New()
	r := Room{Capacity: &capacity, Members: []uuid.UUID{member}, MemberCount: 1}
	c := r.Clone()
	*c.Capacity = 9
	c.Members[0] = uuid.New()
	assert.Equal(t, 3, *r.Capacity)
	assert.Equal(t, member, r.Members[0])
	assert.NotNil(t, c.LastMessages)
}

func TestRoom_Full(t *testing.T) {
	two := 2
	zero := 0
	assert.False(t, Room{MemberCount: 100}.Full(), "nil capacity is unlimited")
	assert.False(t, Room{Capacity: &zero, MemberCount: 100}.Full(), "zero capacity is unlimited")
	assert.False(t, Room{Capacity: &two, MemberCount: 1}.Full())
	assert.True(t, Room{Capacity: &two, MemberCount: 2}.Full())
}
