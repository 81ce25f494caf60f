package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// CredentialsRequest is the body of register and login. Its fields are
// classified by the identity store rather than validated here.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateRoomRequest defines the DTO for room creation. Name and capacity
// are classified by the room registry.
type CreateRoomRequest struct {
	ClientID uuid.UUID `json:"client_id" validate:"required"`
	Name     string    `json:"name"`
	Capacity *int      `json:"capacity"`
}

// JoinRoomRequest defines the DTO for joining a room.
type JoinRoomRequest struct {
	ClientID uuid.UUID `json:"client_id" validate:"required"`
}

// SendMessageRequest defines the DTO for posting a message to a room.
type SendMessageRequest struct {
	ClientID uuid.UUID `json:"client_id" validate:"required"`
	Text     string    `json:"text"`
}

// ValidateTokenRequest defines the DTO for token validation.
type ValidateTokenRequest struct {
	Token   string    `json:"token"`
	Subject uuid.UUID `json:"subject" validate:"required"`
}
