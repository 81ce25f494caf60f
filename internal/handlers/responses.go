package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/nfrund/huddle/internal/domain"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RegistrationResponse reports the outcome of a registration.
type RegistrationResponse struct {
	Status string `json:"status"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// NewRegistrationResponse creates a RegistrationResponse DTO from a domain status.
func NewRegistrationResponse(s domain.RegistrationStatus) RegistrationResponse {
	switch s.Kind {
	case domain.RegistrationCreated:
		return RegistrationResponse{Status: "created"}
	case domain.RegistrationRefused:
		return RegistrationResponse{Status: "refused", Field: s.Field, Reason: s.Refused.String()}
	default:
		return RegistrationResponse{Status: "failed", Reason: s.Failure.String()}
	}
}

// LoginResponse carries the session handles issued on login.
type LoginResponse struct {
	ClientID uuid.UUID `json:"client_id"`
	Token    string    `json:"token"`
}

// RoomCreatedResponse carries the handle of a new room.
type RoomCreatedResponse struct {
	ID uuid.UUID `json:"id"`
}

// JoinResponse reports a join outcome.
type JoinResponse struct {
	Result string `json:"result"`
}

// AuthResponse reports a token check.
type AuthResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// NewAuthResponse creates an AuthResponse DTO from a domain status.
func NewAuthResponse(s domain.AuthStatus) AuthResponse {
	if s.OK {
		return AuthResponse{Status: "success"}
	}
	return AuthResponse{Status: "fail", Reason: s.Reason.String()}
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse creates a UserResponse DTO from a domain.User.
func NewUserResponse(u domain.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}
