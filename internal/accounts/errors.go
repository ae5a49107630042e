package accounts

import "errors"

// Every error the service returns is one of these, possibly wrapped.
var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateEmail     = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("user not found")
	ErrInternal           = errors.New("internal error")
)
