package domain

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// validatorInstance is a package-level validator instance.
// A single instance caches struct information.
var validatorInstance = validator.New(validator.WithRequiredStructEnabled())

// handlePattern bounds usernames to characters that are safe in URLs and logs.
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

func init() {
	_ = validatorInstance.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	_ = validatorInstance.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
}

// Credentials is the username/password pair presented at registration.
type Credentials struct {
	Username string `json:"username" validate:"required,handle"`
	Password string `json:"password" validate:"required,bcryptlen"`
}

// Check classifies invalid credentials. It returns ok=true when the
// credentials are acceptable; otherwise the refusal reason and the name of
// the offending field. Emptiness is checked before format, username first.
func (c Credentials) Check() (reason RefusedReason, field string, ok bool) {
	if c.Username == "" {
		return RefusedEmpty, "username", false
	}
	if c.Password == "" {
		return RefusedEmpty, "password", false
	}

	err := validatorInstance.Struct(c)
	if err == nil {
		return 0, "", true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return RefusedBadFormat, jsonField(verrs[0].StructField()), false
	}
	return RefusedBadFormat, "", false
}

func jsonField(structField string) string {
	switch structField {
	case "Username":
		return "username"
	case "Password":
		return "password"
	default:
		return structField
	}
}
