package app

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials deliberately does not say whether the email or
	// the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotFound covers lookups of missing records and records the caller
	// is not allowed to know exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller is authenticated but lacks
	// permission for the operation.
	ErrForbidden = errors.New("permission denied")
)

// ValidationError marks caller mistakes that map to HTTP 400.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
