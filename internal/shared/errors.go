package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input rejected before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a concurrent writer or duplicate key won.
	ErrConflict = errors.New("conflict")
	// ErrStoreUnavailable indicates the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError wraps a domain sentinel so callers can match both the
// specific reason and the ErrValidation class.
type ValidationError struct {
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason.Error(), e.Detail)
}

// Is matches ErrValidation as well as the wrapped reason.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// Invalid builds a ValidationError for reason with a formatted detail.
func Invalid(reason error, format string, args ...any) error {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err means the store is gone and remaining work
// should be abandoned.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
