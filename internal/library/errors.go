package library

import (
	"errors"
	"fmt"
)

// Common errors for library operations.
var (
	// Request errors
	ErrInvalidSoundID = errors.New("sound ID is required")
	ErrEmptyQuery     = errors.New("no query or tags provided")
	ErrInvalidEmail   = errors.New("invalid email address")

	// Access errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Lookup errors
	ErrSoundNotFound   = errors.New("sound not found")
	ErrProfileNotFound = errors.New("profile not found")
)

// OpError records the library operation that failed and the sound it was
// operating on, if any.
type OpError struct {
	Op      string
	SoundID string
	Err     error
}

func (e *OpError) Error() string {
	if e.SoundID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.SoundID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opErr(op, soundID string, err error) error {
	return &OpError{Op: op, SoundID: soundID, Err: err}
}

// IsClientError reports whether err was caused by the request rather than
// the backend.
func IsClientError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidSoundID),
		errors.Is(err, ErrEmptyQuery),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrSoundNotFound):
		return true
	}
	return false
}
