package validate

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/clipstream/accounts"
)

type registerShape struct {
	Username string `validate:"required,min=3,max=30,username"`
	Email    string `validate:"required,email"`
	FullName string `validate:"required,max=100"`
	Password string `validate:"required"`
}

type loginShape struct {
	Identifier string `validate:"required,max=254"`
	Password   string `validate:"required"`
}

// Shape is a [accounts.Validator] backed by go-playground/validator.
// It checks input shape only; password policy and uniqueness live in
// the engine and store.
type Shape struct {
	validate *validator.Validate
}

// New creates a ready-to-use [Shape] validator.
func New() *Shape {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Usernames double as URL path segments for channel lookup, so the
	// charset stays conservative.
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= '0' && r <= '9':
			case r == '_' || r == '-' || r == '.':
			default:
				return false
			}
		}
		return true
	})

	return &Shape{validate: v}
}

// ValidateRegister checks the registration input shape.
func (s *Shape) ValidateRegister(req accounts.RegisterRequest) accounts.FieldErrors {
	return s.check(registerShape{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
}

// ValidateLogin checks the login input shape.
func (s *Shape) ValidateLogin(creds accounts.Credentials) accounts.FieldErrors {
	return s.check(loginShape{
		Identifier: creds.Identifier,
		Password:   creds.Password,
	})
}

func (s *Shape) check(shape interface{}) accounts.FieldErrors {
	err := s.validate.Struct(shape)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return accounts.FieldErrors{"input": "invalid input"}
	}

	fields := make(accounts.FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = message(fe)
	}
	return fields
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "username":
		return "may only contain lowercase letters, digits, '_', '-' and '.'"
	default:
		return "is invalid"
	}
}
