package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nfrund/huddle/internal/domain"
)

// Frame types
const (
	// FrameMessage carries a room message to the client.
	FrameMessage = "message"
	// FrameError reports a failed client request.
	FrameError = "error"
	// FrameStatus reports the connection's presence state.
	FrameStatus = "status"
	// FrameSend is a client request to post a message to the room.
	FrameSend = "send"
	// FramePing asks the server for a FramePong.
	FramePing = "ping"
	// FramePong answers a FramePing.
	FramePong = "pong"
)

// Frame is the JSON envelope exchanged over the socket.
type Frame struct {
	Type   string     `json:"type"`
	RoomID *uuid.UUID `json:"room_id,omitempty"`
	Text   string     `json:"text,omitempty"`
	SentAt *time.Time `json:"sent_at,omitempty"`
	Status string     `json:"status,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// NewMessageFrame wraps a payload delivered in roomID.
func NewMessageFrame(roomID uuid.UUID, p domain.Payload) Frame {
	at := p.CreatedAt
	return Frame{Type: FrameMessage, RoomID: &roomID, Text: p.Text, SentAt: &at}
}

// NewErrorFrame reports msg to the client.
func NewErrorFrame(msg string) Frame {
	return Frame{Type: FrameError, Error: msg}
}

// NewStatusFrame reports a presence state to the client.
func NewStatusFrame(status string) Frame {
	return Frame{Type: FrameStatus, Status: status}
}

func (f Frame) encode() []byte {
	// Frame holds only strings and a time, so Marshal cannot fail.
	b, _ := json.Marshal(f)
	return b
}
