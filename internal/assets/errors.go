package assets

import "errors"

// Error taxonomy shared by every manager. Callers match with errors.Is.
var (
	// ErrValidation is returned for malformed input, before any transaction begins.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced asset, user or workflow row is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a transition is outside its lattice or
	// the asset status forbids the operation. Retrying cannot succeed.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict is returned when the unit of work could not be serialized
	// or exceeded its wait/timeout bounds. It is transient.
	ErrConflict = errors.New("conflict")

	// ErrInternal hides unexpected storage failures from callers.
	ErrInternal = errors.New("internal error")
)

// IsRetryable reports whether err is transient and the call may be repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
