package handlers

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/middleware"
	"github.com/nfrund/huddle/internal/rooms"
	"github.com/nfrund/huddle/internal/router"
	"github.com/nfrund/huddle/internal/storage"
)

// RoomService is the part of the coordinator that manages rooms and
// messages.
type RoomService interface {
	ClientOwnedBy(ctx context.Context, clientID, userID uuid.UUID) bool
	CreateRoom(ctx context.Context, name string, capacity *int, creator uuid.UUID) domain.RoomCreation
	ListRooms(ctx context.Context) (map[uuid.UUID]domain.Room, error)
	Room(ctx context.Context, roomID uuid.UUID) (domain.Room, error)
	Join(ctx context.Context, roomID, clientID uuid.UUID, addr domain.Address) domain.JoinOutput
	SendMessage(ctx context.Context, senderID, roomID uuid.UUID, text string) error
}

// RoomHandler serves the room endpoints. Every route acts through a client
// that must belong to the authenticated user.
type RoomHandler struct {
	rooms  RoomService
	logger *slog.Logger
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(rooms RoomService) *RoomHandler {
	return &RoomHandler{
		rooms:  rooms,
		logger: slog.Default().With("handler", "rooms"),
	}
}

// List handles GET /api/rooms.
func (h *RoomHandler) List(c echo.Context) error {
	all, err := h.rooms.ListRooms(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list rooms", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: domain.FailureAccessRead.String()})
	}

	out := make([]domain.Room, 0, len(all))
	for _, r := range all {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.Room) int { return cmp.Compare(a.Name, b.Name) })
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /api/rooms/:id.
func (h *RoomHandler) Get(c echo.Context) error {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "room id must be a uuid")
	}
	room, err := h.rooms.Room(c.Request().Context(), roomID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: domain.UnknownRoomMsg})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: domain.FailureAccessRead.String()})
	}
	return c.JSON(http.StatusOK, room)
}

// Create handles POST /api/rooms.
func (h *RoomHandler) Create(c echo.Context) error {
	var req CreateRoomRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "client_id is required")
	}
	if ok, err := h.authorize(c, req.ClientID); !ok {
		return err
	}

	result := h.rooms.CreateRoom(c.Request().Context(), req.Name, req.Capacity, req.ClientID)
	if result.Created() {
		return c.JSON(http.StatusCreated, RoomCreatedResponse{ID: *result.Handle})
	}

	roomErr := result.Err
	body := ErrorResponse{Message: roomErr.Error()}
	switch roomErr.Kind {
	case domain.RoomUnacceptable:
		body.Code = "unacceptable"
		return c.JSON(http.StatusUnprocessableEntity, body)
	case domain.RoomRefused:
		body.Code = "refused"
		if roomErr.Rejection.Kind == domain.RejectRefused {
			return c.JSON(http.StatusBadRequest, body)
		}
		return c.JSON(http.StatusNotFound, body)
	default:
		body.Code = "internal"
		return c.JSON(http.StatusInternalServerError, body)
	}
}

// Join handles POST /api/rooms/:id/join.
func (h *RoomHandler) Join(c echo.Context) error {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "room id must be a uuid")
	}
	var req JoinRoomRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "client_id is required")
	}
	if ok, err := h.authorize(c, req.ClientID); !ok {
		return err
	}

	out := h.rooms.Join(c.Request().Context(), roomID, req.ClientID, nil)
	body := JoinResponse{Result: out.String()}
	switch out.Kind {
	case domain.JoinSuccess:
		return c.JSON(http.StatusOK, body)
	case domain.JoinRejected:
		if out.Rejection.Kind == domain.RejectRefused {
			return c.JSON(http.StatusConflict, body)
		}
		return c.JSON(http.StatusNotFound, body)
	default:
		return c.JSON(http.StatusInternalServerError, body)
	}
}

// SendMessage handles POST /api/rooms/:id/messages. Delivery happens after
// the response is written.
func (h *RoomHandler) SendMessage(c echo.Context) error {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "room id must be a uuid")
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "client_id is required")
	}
	if ok, err := h.authorize(c, req.ClientID); !ok {
		return err
	}

	err = h.rooms.SendMessage(c.Request().Context(), req.ClientID, roomID, req.Text)
	switch {
	case err == nil:
		return c.NoContent(http.StatusAccepted)
	case errors.Is(err, router.ErrEmptyMessage), errors.Is(err, router.ErrMessageTooLong):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Code: "unacceptable", Message: err.Error()})
	case errors.Is(err, rooms.ErrNotMember):
		return c.JSON(http.StatusForbidden, ErrorResponse{Code: "forbidden", Message: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: domain.UnknownRoomMsg})
	case errors.Is(err, router.ErrQueueFull):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Code: "unavailable", Message: err.Error()})
	default:
		h.logger.Error("Failed to send message", "room_id", roomID, "client_id", req.ClientID, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "could not send message"})
	}
}

// authorize reports whether the client belongs to the authenticated user.
// When it does not, the refusal has already been written.
func (h *RoomHandler) authorize(c echo.Context, clientID uuid.UUID) (bool, error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return false, unauthorized(c)
	}
	if !h.rooms.ClientOwnedBy(c.Request().Context(), clientID, userID) {
		return false, c.JSON(http.StatusForbidden, ErrorResponse{Code: "forbidden", Message: "client belongs to another user"})
	}
	return true, nil
}
