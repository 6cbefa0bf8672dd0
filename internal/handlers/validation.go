package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError reports the first request field that failed validation, named
// by its JSON key.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequest checks an auth request DTO and returns a *FieldError
// phrased for the person filling in the form.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return &FieldError{Field: fe.Field(), Message: fieldMessage(fe)}
	}
	return fmt.Errorf("invalid request: %w", err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "otp":
		if fe.Tag() == "required" {
			return "Please enter the verification code from your email"
		}
		return "The verification code is 6 digits"
	case "username":
		if fe.Tag() == "required" {
			return "Please choose a username"
		}
		return "Username must be between 3 and 32 characters"
	case "email":
		if fe.Tag() == "required" {
			return "Please provide an email address"
		}
		return "Please provide a valid email address"
	case "password":
		return "Please provide a password"
	}

	if fe.Tag() == "required" {
		return fmt.Sprintf("%s is required", fe.Field())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
