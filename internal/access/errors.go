package access

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("access: invalid input")
	ErrUnauthorized = errors.New("access: invalid credentials")
	ErrForbidden    = errors.New("access: forbidden")
	ErrNotFound     = errors.New("access: account not found")
	ErrConflict     = errors.New("access: account already exists")
	ErrInvalidToken = errors.New("access: invalid session token")
)

// DeniedError is returned by Login while an account has no approved access request.
type DeniedError struct {
	Status Status
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access: not approved (status %s)", e.Status)
}

func (e *DeniedError) Unwrap() error { return ErrForbidden }
