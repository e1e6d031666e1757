package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrUnknownSubject     = errors.New("token subject no longer exists")
	ErrAuthRequired       = errors.New("authentication required")
	ErrForbidden          = errors.New("access denied")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("username or email already taken")
	ErrValidation         = errors.New("validation failed")
	ErrSearchUnavailable  = errors.New("search is not configured")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
