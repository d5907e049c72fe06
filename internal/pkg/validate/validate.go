package validate

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/otp-auth-api/internal/domain"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

// messages maps "Field.tag" to the text shown to the client.
var messages = map[string]string{
	"Username.required": "Username is required",
	"Username.min":      "Username must be at least 3 characters long",
	"Username.max":      "Your name cannot exceed 100 characters",
	"Email.required":    "Email is required",
	"Email.email":       "Invalid email address",
	"Email.max":         "Your email cannot exceed 100 characters",
	"Password.required": "Password is required",
	"Password.min":      "Password must be at least 8 characters long",
	"Password.max":      "Password cannot exceed 72 characters",
	"OTP.required":      "OTP is required",
	"OTP.len":           "OTP must be 6 characters long",
	"OTP.numeric":       "OTP must contain only digits",
}

// Struct validates the given struct using its validate tags.
// Only the first violated field is reported; the returned error wraps domain.ErrBadRequest.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	return &Error{Message: Message(ve[0])}
}

// Message renders a single field error.
func Message(fe validator.FieldError) string {
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag())
}

// Error is a validation failure carrying a client-safe message.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return domain.ErrBadRequest }
