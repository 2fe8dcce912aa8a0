package ops

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes primitive failures.
type ErrorCode string

const (
	// ErrCodeValidation indicates invalid construction parameters.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeKeyNotFound indicates a strict mapping has no entry for a value.
	ErrCodeKeyNotFound ErrorCode = "KEY_NOT_FOUND"

	// ErrCodeType indicates a value of the wrong type was transformed.
	ErrCodeType ErrorCode = "TYPE_ERROR"

	// ErrCodeValue indicates a value of the right type that cannot be transformed.
	ErrCodeValue ErrorCode = "VALUE_ERROR"

	// ErrCodeUnknownOperation indicates a serialized operation with an unknown tag.
	ErrCodeUnknownOperation ErrorCode = "UNKNOWN_OPERATION"
)

// Error is returned by primitive constructors, decoders and transforms.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the wire tag of the primitive that failed, if known.
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(op, format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func typeError(op string, value any, want string) *Error {
	return &Error{
		Code:    ErrCodeType,
		Op:      op,
		Message: fmt.Sprintf("expected %s, got %s (%v)", want, typeName(value), value),
	}
}

func valueError(op, format string, args ...any) *Error {
	return &Error{Code: ErrCodeValue, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NewUnknownOperationError creates an Error for an unrecognized wire tag.
func NewUnknownOperationError(tag string) *Error {
	return &Error{
		Code:    ErrCodeUnknownOperation,
		Message: fmt.Sprintf("unknown operation: %q", tag),
	}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsValidationError reports whether err is a construction failure.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsKeyNotFoundError reports whether err is a strict mapping miss.
func IsKeyNotFoundError(err error) bool { return hasCode(err, ErrCodeKeyNotFound) }

// IsTypeError reports whether err is a wrong-type transform failure.
func IsTypeError(err error) bool { return hasCode(err, ErrCodeType) }

// IsValueError reports whether err is a bad-value transform failure.
func IsValueError(err error) bool { return hasCode(err, ErrCodeValue) }

// IsUnknownOperationError reports whether err names an unknown wire tag.
func IsUnknownOperationError(err error) bool { return hasCode(err, ErrCodeUnknownOperation) }
