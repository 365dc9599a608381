package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the console core. Handlers map these onto HTTP
// status codes; services wrap them with context via fmt.Errorf("%w").
var (
	// ErrValidationFailed means data or schema violates a hard rule.
	// Recoverable: the caller corrects input and resubmits.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidState means an operation was attempted against a change
	// request or version not in the required state.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotEligible means the actor is not an assigned reviewer.
	ErrNotEligible = errors.New("not eligible")

	// ErrForbidden means the actor lacks permission for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrNoReviewers means a project has no eligible members besides
	// the submitter, so a change request cannot be routed for review.
	ErrNoReviewers = errors.New("no reviewers available")

	// ErrVersionNotFound means the requested version number is out of range.
	ErrVersionNotFound = errors.New("version not found")

	// ErrNotFound covers any other missing entity.
	ErrNotFound = errors.New("not found")

	// ErrBusy means per-dataset write serialization timed out.
	// The only class callers may retry, with backoff.
	ErrBusy = errors.New("dataset busy")

	// ErrInconsistent means a version sequence gap or duplicate was
	// detected. Fatal: writes to the affected dataset are halted.
	ErrInconsistent = errors.New("version sequence inconsistent")
)

// Wrap annotates a sentinel with a formatted message while preserving
// errors.Is matching.
func Wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}

// IsRetryable reports whether the caller should retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}
