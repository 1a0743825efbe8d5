package errx

import "errors"

// IsCode reports whether any error in err's chain carries code.
func IsCode(err error, code *ErrorCode) bool {
	return errors.Is(err, code)
}

// CodeOf returns the outermost *Error in err's chain.
func CodeOf(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Internal creates an internal error.
func Internal(message string) *Error {
	return New(message, TypeInternal)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(message, TypeValidation)
}
