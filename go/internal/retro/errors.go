package retro

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced board, column, note or action item is absent.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed input rejected before storage is touched.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned when the connection may not perform the action.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrLimitExceeded matches any *LimitExceededError via errors.Is.
	ErrLimitExceeded = errors.New("vote limit exceeded")
)

// LimitExceededError reports the vote cap that was hit.
type LimitExceededError struct {
	Limit int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("vote limit reached: you can cast at most %d votes on this board", e.Limit)
}

func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// ValidationError wraps ErrValidation with a message meant for the user.
func ValidationError(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrValidation }

// NotFoundError wraps ErrNotFound with the kind of entity that was missing.
func NotFoundError(kind string) error {
	return fmt.Errorf("%s %w", kind, ErrNotFound)
}

// PublicMessage turns an error into the message sent back to the originating
// connection. Anything outside the taxonomy becomes a generic failure so that
// storage details stay on the server.
func PublicMessage(err error) string {
	var limitErr *LimitExceededError
	var valErr *validationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &limitErr):
		return limitErr.Error()
	case errors.As(err, &valErr):
		return valErr.msg
	case errors.Is(err, ErrNotFound):
		return leafMessage(err)
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "something went wrong, please try again"
	}
}

// Code is a short machine readable classification for error payloads.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}

// leafMessage returns the innermost "<kind> not found" message without the
// outer wrapping context.
func leafMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil || next == ErrNotFound {
			return err.Error()
		}
		err = next
	}
}
