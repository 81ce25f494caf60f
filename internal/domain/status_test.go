package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Rendering(t *testing.T) {
	tests := []struct {
		name string
		got  fmt.Stringer
		want string
	}{
		{"registration created", RegistrationOK(), "CREATED"},
		{"registration refused", RegistrationRefusal(RefusedEmpty, "username"), "REFUSED(empty, username)"},
		{"registration failed", RegistrationFailure(FailureCollision), "FAILED(collision while appending to storage)"},
		{"login passed", LoginPassed(), "Passed"},
		{"login rejected", LoginRejected(), "Failed(UserFailure)"},
		{"login fault", LoginFault(FailureAccessRead), "Failed(Internal(storage read failed))"},
		{"unknown room", UnknownRoom(), UnknownRoomMsg},
		{"unknown user", UnknownUser(), UnknownUserMsg},
		{"join ok", JoinOK(), "Success"},
		{"join capacity", JoinRejection(Reject(RefusedCapacity)), "Rejected(the room join request has been rejected: room is at capacity)"},
		{"join fault", JoinFailure(FailureAccessWrite), "Failed(storage write failed)"},
		{"abort unacceptable", AbortUnacceptableBy(UnknownRoom()), "unacceptable: " + UnknownRoomMsg},
		{"abort internal", AbortInternalBy(FailureAccessRead), "internal: storage read failed"},
		{"abort external", AbortExternalBy(RefusedBadFormat), "unprocessable entity: bad formatting"},
		{"auth ok", AuthSuccess(), "Success"},
		{"auth expired", AuthFail(ExpiredJwt), "Fail(expired jwt token)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got.String())
		})
	}
}

func TestStatus_RoomErrors(t *testing.T) {
	assert.Equal(t, "UNACCEPTABLE: capacity must be > 0", Unacceptable("capacity must be > 0").Error())
	assert.Equal(t, "REFUSED: "+UnknownUserMsg, RoomRefusal(UnknownUser()).Error())
	assert.Equal(t, "INTERNALERROR: storage write failed", RoomFailure(FailureAccessWrite).Error())
	assert.False(t, RoomCreation{Err: RoomFailure(FailureAccessWrite)}.Created())
}

func TestStatus_SignalOutputs(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	out := Signaled(StatusPending, at)
	assert.Equal(t, "pending", out.Status.String())
	assert.Equal(t, at, out.SignaledAt)

	out = Aborted(AbortExternalBy(RefusedEmpty), at)
	assert.Equal(t, StatusAborted, out.Status.Kind)
	assert.Equal(t, "aborted: unprocessable entity: empty", out.Status.String())
}
