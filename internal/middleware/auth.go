package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/huddle/internal/domain"
)

const (
	// UserContextKey holds the authenticated user's uuid.UUID.
	UserContextKey = "user"

	// SessionName is the cookie session used by browser clients.
	SessionName = "huddle"

	// SessionTokenKey is the session value holding the bearer token.
	SessionTokenKey = "token"
)

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, domain.AuthStatus)
}

// Auth creates a middleware that protects routes that require authentication.
// The token is read from the Authorization header and, when that header is
// absent, from the session cookie.
func Auth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// 1. Find the token.
			token, failure, ok := tokenFrom(c)
			if !ok {
				return unauthorized(c, failure)
			}

			// 2. Validate the token and get the user.
			userID, status := auth.Authenticate(c.Request().Context(), token)
			if !status.OK {
				FromContext(c.Request().Context()).Info("Rejected bearer token", "reason", status.Reason.String())
				return unauthorized(c, status.Reason)
			}

			// 3. Store user information in the context for downstream handlers.
			c.Set(UserContextKey, userID)

			// 4. User is authenticated, proceed to the next handler.
			return next(c)
		}
	}
}

// UserID returns the authenticated user set by Auth.
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(UserContextKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func tokenFrom(c echo.Context) (string, domain.BearerFailure, bool) {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		scheme, token, _ := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", domain.EmptyHeader, false
		}
		return token, 0, true
	}

	sess, err := session.Get(SessionName, c)
	if err != nil {
		return "", domain.EmptyCookie, false
	}
	token, _ := sess.Values[SessionTokenKey].(string)
	if token == "" {
		return "", domain.EmptyCookie, false
	}
	return token, 0, true
}

func unauthorized(c echo.Context, reason domain.BearerFailure) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"code":    "unauthorized",
		"message": reason.String(),
	})
}
