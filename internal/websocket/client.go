package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nfrund/huddle/internal/domain"
)

// Client represents a single connected WebSocket client. It is the
// delivery address handed to presence while the socket is open.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	RoomID uuid.UUID

	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newClient(id, userID, roomID uuid.UUID, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		RoomID: roomID,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		logger: slog.Default().With("service", "websocket", "client_id", id),
	}
}

// Deliver queues a message frame for the write pump. It waits for buffer
// space until ctx is done, and fails fast once the client is closed.
func (c *Client) Deliver(ctx context.Context, p domain.Payload) error {
	select {
	case <-c.done:
		return domain.ErrAddressClosed
	default:
	}

	select {
	case c.send <- NewMessageFrame(c.RoomID, p).encode():
		return nil
	case <-c.done:
		return domain.ErrAddressClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notify queues a control frame, dropping it if the buffer is full.
func (c *Client) notify(f Frame) {
	select {
	case <-c.done:
	case c.send <- f.encode():
	default:
		c.logger.Warn("Client send channel full, dropping frame", "type", f.Type)
	}
}

// Close marks the client closed. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// writePump pumps frames from the send channel to the connection until
// the client is closed or a write fails.
func (c *Client) writePump(writeWait time.Duration) {
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Error("WebSocket write error", "error", err)
				return
			}
		}
	}
}
