package handlers

import (
	"cmp"
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/huddle/internal/coordinator"
	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/middleware"
)

// AccountService is the part of the coordinator that manages users and
// their tokens.
type AccountService interface {
	Register(ctx context.Context, username, password string) domain.RegistrationStatus
	Login(ctx context.Context, username, password string) coordinator.LoginResult
	Logout(ctx context.Context, userID uuid.UUID) error
	OpenClient(ctx context.Context, userID uuid.UUID) (domain.Client, error)
	ValidateToken(ctx context.Context, token string, expectedSubject uuid.UUID) domain.AuthStatus
	ListUsers(ctx context.Context) map[uuid.UUID]domain.User
}

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts AccountService) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		logger:   slog.Default().With("handler", "auth"),
	}
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}

	status := h.accounts.Register(c.Request().Context(), req.Username, req.Password)
	body := NewRegistrationResponse(status)
	switch status.Kind {
	case domain.RegistrationCreated:
		return c.JSON(http.StatusCreated, body)
	case domain.RegistrationRefused:
		return c.JSON(http.StatusBadRequest, body)
	}
	if status.Failure == domain.FailureCollision {
		return c.JSON(http.StatusConflict, body)
	}
	return c.JSON(http.StatusInternalServerError, body)
}

// Login handles POST /api/login. On success the token is returned in the
// body and stored in the session cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}

	result := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if !result.Status.Passed {
		if result.Status.Failure.Kind == domain.LoginInternal {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: result.Status.Failure.Reason.String()})
		}
		// Never say which of the two fields was wrong.
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Code: "unauthorized", Message: "invalid username or password"})
	}

	if sess, err := session.Get(middleware.SessionName, c); err == nil {
		sess.Values[middleware.SessionTokenKey] = result.Token
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			h.logger.Warn("Failed to save session", "error", err)
		}
	}

	return c.JSON(http.StatusOK, LoginResponse{ClientID: *result.ClientID, Token: result.Token})
}

// Logout handles POST /api/logout. Every token issued to the user so far
// stops validating.
func (h *AuthHandler) Logout(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.accounts.Logout(c.Request().Context(), userID); err != nil {
		h.logger.Error("Failed to log out", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "could not log out"})
	}

	if sess, err := session.Get(middleware.SessionName, c); err == nil {
		delete(sess.Values, middleware.SessionTokenKey)
		sess.Options.MaxAge = -1
		_ = sess.Save(c.Request(), c.Response())
	}
	return c.NoContent(http.StatusNoContent)
}

// OpenClient handles POST /api/clients and starts another client session
// for the authenticated user.
func (h *AuthHandler) OpenClient(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	client, err := h.accounts.OpenClient(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Code: "not_found", Message: err.Error()})
	}
	return c.JSON(http.StatusCreated, echo.Map{"client_id": client.ID})
}

// ValidateToken handles POST /api/token/validate.
func (h *AuthHandler) ValidateToken(c echo.Context) error {
	var req ValidateTokenRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "subject is required")
	}

	status := h.accounts.ValidateToken(c.Request().Context(), req.Token, req.Subject)
	if !status.OK {
		return c.JSON(http.StatusUnauthorized, NewAuthResponse(status))
	}
	return c.JSON(http.StatusOK, NewAuthResponse(status))
}

// Users handles GET /api/users.
func (h *AuthHandler) Users(c echo.Context) error {
	users := h.accounts.ListUsers(c.Request().Context())
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	slices.SortFunc(out, func(a, b UserResponse) int { return cmp.Compare(a.Username, b.Username) })
	return c.JSON(http.StatusOK, out)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Code: "bad_request", Message: msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Code: "unauthorized", Message: domain.EmptyHeader.String()})
}
