package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/middleware"
	"github.com/nfrund/huddle/internal/presence"
)

// --- Configuration Constants ---
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Largest frame accepted from a client.
	readLimit = 16 << 10
)

// Coordinator is the part of the coordinator the socket handler drives.
type Coordinator interface {
	ClientOwnedBy(ctx context.Context, clientID, userID uuid.UUID) bool
	Signal(ctx context.Context, in presence.SignalInput) domain.SignalOutput
	Release(ctx context.Context, clientID uuid.UUID, addr domain.Address) domain.SignalOutput
	Join(ctx context.Context, roomID, clientID uuid.UUID, addr domain.Address) domain.JoinOutput
	SendMessage(ctx context.Context, senderID, roomID uuid.UUID, text string) error
}

// Config tunes the socket handler.
type Config struct {
	// SendBuffer is the per-connection outbound frame buffer.
	SendBuffer int
	// OriginPatterns lists accepted cross-origin hosts. Empty disables the
	// origin check.
	OriginPatterns []string
}

// Handler upgrades authenticated requests to room sockets.
type Handler struct {
	coord     Coordinator
	config    Config
	whitelist *frameWhitelist
	logger    *slog.Logger
}

// NewHandler creates a socket handler.
func NewHandler(coord Coordinator, config Config) *Handler {
	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	return &Handler{
		coord:     coord,
		config:    config,
		whitelist: defaultFrameWhitelist(),
		logger:    slog.Default().With("service", "websocket"),
	}
}

// Serve handles GET /ws?room=<id>&client=<id>. The socket stays Pending
// until the client is connected into the room, joining it first if needed.
func (h *Handler) Serve(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"code": "unauthorized", "message": domain.EmptyHeader.String()})
	}
	roomID, err := uuid.Parse(c.QueryParam("room"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"code": "bad_request", "message": "room must be a uuid"})
	}
	clientID, err := uuid.Parse(c.QueryParam("client"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"code": "bad_request", "message": "client must be a uuid"})
	}

	ctx := c.Request().Context()
	if !h.coord.ClientOwnedBy(ctx, clientID, userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"code": "forbidden", "message": "client belongs to another user"})
	}

	opts := &websocket.AcceptOptions{OriginPatterns: h.config.OriginPatterns}
	if len(h.config.OriginPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(c.Response(), c.Request(), opts)
	if err != nil {
		h.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return nil
	}
	conn.SetReadLimit(readLimit)

	client := newClient(clientID, userID, roomID, conn, h.config.SendBuffer)
	go client.writePump(writeWait)

	// A newer socket for the same client closes this one; stop reading then.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-client.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	defer func() {
		h.coord.Release(context.Background(), clientID, client)
		client.Close()
		conn.Close(websocket.StatusNormalClosure, "Client disconnected")
	}()

	if reason, ok := h.attach(ctx, client); !ok {
		h.logger.Info("Socket refused", "client_id", clientID, "room_id", roomID, "reason", reason)
		h.refuse(ctx, conn, reason)
		return nil
	}
	client.notify(NewStatusFrame(domain.StatusConnected.String()))

	h.readPump(ctx, client)
	return nil
}

// attach walks the client from Pending to Connected.
func (h *Handler) attach(ctx context.Context, client *Client) (string, bool) {
	pending := h.coord.Signal(ctx, presence.SignalInput{Code: domain.SignalPending, ClientID: client.ID, Address: client})
	if pending.Status.Kind == domain.StatusAborted {
		return pending.Status.String(), false
	}

	connect := presence.SignalInput{Code: domain.SignalConnect, ClientID: client.ID, RoomID: client.RoomID, Address: client}
	out := h.coord.Signal(ctx, connect)
	if out.Status.Kind == domain.StatusAborted && out.Status.Abort == domain.AbortUnacceptableBy(domain.Reject(domain.RefusedNotMember)) {
		joined := h.coord.Join(ctx, client.RoomID, client.ID, nil)
		if joined.Kind != domain.JoinSuccess {
			return joined.String(), false
		}
		out = h.coord.Signal(ctx, connect)
	}
	if out.Status.Kind != domain.StatusConnected {
		return out.Status.String(), false
	}
	return "", true
}

// refuse writes a final error frame directly; the write pump may not get
// to it before the connection closes.
func (h *Handler) refuse(ctx context.Context, conn *websocket.Conn, reason string) {
	wctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, NewErrorFrame(reason).encode()); err != nil {
		h.logger.Debug("Failed to write refusal frame", "error", err)
	}
	conn.Close(websocket.StatusPolicyViolation, "refused")
}

// readPump reads frames from the connection until it closes.
func (h *Handler) readPump(ctx context.Context, client *Client) {
	for {
		_, message, err := client.conn.Read(ctx)
		if err != nil {
			// Check if the error is a normal closure.
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				client.logger.Info("WebSocket closed normally by client")
			case errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
				client.logger.Debug("WebSocket read ended", "error", err)
			default:
				client.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			client.notify(NewErrorFrame("frame is not valid JSON"))
			continue
		}
		if !h.whitelist.IsAllowed(frame.Type) {
			client.notify(NewErrorFrame("unsupported frame type: " + frame.Type))
			continue
		}

		switch frame.Type {
		case FramePing:
			client.notify(Frame{Type: FramePong})
		case FrameSend:
			if err := h.coord.SendMessage(ctx, client.ID, client.RoomID, frame.Text); err != nil {
				client.notify(NewErrorFrame(err.Error()))
			}
		}
	}
}
