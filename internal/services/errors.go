package services

import (
	"errors"
	"fmt"

	"nightcircle/internal/geo"
	"nightcircle/internal/models"
	"nightcircle/internal/store"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNotMember          = errors.New("not a member of this group")
	ErrAlreadyReacted     = models.ErrAlreadyReacted
	ErrValidation         = errors.New("validation failed")
	ErrUpstreamTimeout    = geo.ErrUpstreamTimeout
	ErrPersistence        = errors.New("persistence failure")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrNightModeClosed    = errors.New("night mode is not active")
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError carries a client-facing reason and matches ErrValidation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// storeErr maps a repository error onto the service sentinels.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
	}
}
