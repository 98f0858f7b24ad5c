// Package fault - single error instances shared across the backend,
// so callers can classify failures with errors.Is / errors.As instead of
// matching message strings.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound - the operation targets a submission id that does not exist.
	ErrNotFound = errors.New("submission not found")

	// ErrStoreUnavailable - the durable store is unreachable or timed out.
	// Retryable by the caller; adapters wrap this with call context.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError - malformed or missing intake field. User-correctable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for the given field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
