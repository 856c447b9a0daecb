package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of an error
type ErrorType uint

const (
	// ErrorTypeUnknown represents an unknown error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeDomain represents a parameter outside the mathematically valid region
	ErrorTypeDomain
	// ErrorTypeLookup represents a missing categorical rate key
	ErrorTypeLookup
	// ErrorTypeNumerical represents a numerical failure such as a matrix decomposition
	ErrorTypeNumerical
	// ErrorTypeValidation represents a malformed request
	ErrorTypeValidation
	// ErrorTypeNotFound represents a not found error
	ErrorTypeNotFound
	// ErrorTypeCanceled represents a computation stopped by its context
	ErrorTypeCanceled
	// ErrorTypeResourceExhausted represents a request exceeding configured bounds
	ErrorTypeResourceExhausted
	// ErrorTypeInternal represents an internal error
	ErrorTypeInternal
)

// String returns the name of the error type
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeDomain:
		return "domain"
	case ErrorTypeLookup:
		return "lookup"
	case ErrorTypeNumerical:
		return "numerical"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeCanceled:
		return "canceled"
	case ErrorTypeResourceExhausted:
		return "resource_exhausted"
	case ErrorTypeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new error with the given message
func New(message string) error {
	return &AppError{
		Type:    ErrorTypeUnknown,
		Message: message,
	}
}

// Newf creates a new error with the given format and arguments
func Newf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeUnknown,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a message, keeping the type of the wrapped error
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    TypeOf(err),
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithType returns an error of the given type wrapping err
func WithType(err error, errType ErrorType) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    errType,
		Message: err.Error(),
		Err:     err,
	}
}

// TypeOf returns the type of the first AppError in err's chain
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// Is reports whether err or any of the errors in its chain is target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func newTyped(errType ErrorType, message string) error {
	return &AppError{Type: errType, Message: message}
}

// Domain creates a new Domain error
func Domain(message string) error {
	return newTyped(ErrorTypeDomain, message)
}

// Domainf creates a new Domain error with a formatted message
func Domainf(format string, args ...interface{}) error {
	return newTyped(ErrorTypeDomain, fmt.Sprintf(format, args...))
}

// Lookup creates a new Lookup error
func Lookup(message string) error {
	return newTyped(ErrorTypeLookup, message)
}

// Lookupf creates a new Lookup error with a formatted message
func Lookupf(format string, args ...interface{}) error {
	return newTyped(ErrorTypeLookup, fmt.Sprintf(format, args...))
}

// Numerical creates a new Numerical error
func Numerical(message string) error {
	return newTyped(ErrorTypeNumerical, message)
}

// Numericalf creates a new Numerical error with a formatted message
func Numericalf(format string, args ...interface{}) error {
	return newTyped(ErrorTypeNumerical, fmt.Sprintf(format, args...))
}

// Validation creates a new Validation error
func Validation(message string) error {
	return newTyped(ErrorTypeValidation, message)
}

// Validationf creates a new Validation error with a formatted message
func Validationf(format string, args ...interface{}) error {
	return newTyped(ErrorTypeValidation, fmt.Sprintf(format, args...))
}

// NotFound creates a new NotFound error
func NotFound(message string) error {
	return newTyped(ErrorTypeNotFound, message)
}

// NotFoundf creates a new NotFound error with a formatted message
func NotFoundf(format string, args ...interface{}) error {
	return newTyped(ErrorTypeNotFound, fmt.Sprintf(format, args...))
}

// Canceled wraps a context error raised while a computation was running
func Canceled(err error, message string) error {
	return &AppError{
		Type:    ErrorTypeCanceled,
		Message: message,
		Err:     err,
	}
}

// ResourceExhausted creates a new ResourceExhausted error
func ResourceExhausted(message string) error {
	return newTyped(ErrorTypeResourceExhausted, message)
}

// Internal creates a new Internal error
func Internal(message string) error {
	return newTyped(ErrorTypeInternal, message)
}
