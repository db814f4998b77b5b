package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain taxonomy. Ownership and visibility failures
// deliberately collapse into ErrNotFound so callers cannot probe for the
// existence of private resources.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrDuplicateSlug     = errors.New("duplicate slug")
	ErrUsernameTaken     = errors.New("username taken")
	ErrExternalProvider  = errors.New("external provider error")
)

// QuotaExceededError carries the plan limit so callers can render an upgrade
// prompt with the actual number.
type QuotaExceededError struct {
	Resource string
	Limit    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded (limit %d)", e.Resource, e.Limit)
}

// QuotaExceeded builds a quota denial for the given resource kind.
func QuotaExceeded(resource string, limit int) error {
	return &QuotaExceededError{Resource: resource, Limit: limit}
}

// ValidationError is a recoverable bad-input failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation builds a validation failure with a formatted message.
func Validation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsQuotaExceeded reports whether err is a quota denial and returns it.
func IsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// IsValidation reports whether err is a validation failure and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
