package jobs

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of job or request failure. Codes are part of
// the RPC contract and never change once published.
type ErrorCode string

const (
	CodeInvalidPath         ErrorCode = "INVALID_PATH"
	CodeFileNotFound        ErrorCode = "FILE_NOT_FOUND"
	CodeAlreadyExists       ErrorCode = "ALREADY_EXISTS"
	CodeMissingField        ErrorCode = "MISSING_FIELD"
	CodeValidation          ErrorCode = "VALIDATION_ERROR"
	CodeRuleNotFound        ErrorCode = "RULE_NOT_FOUND"
	CodeJobNotFound         ErrorCode = "JOB_NOT_FOUND"
	CodeInvalidFormat       ErrorCode = "INVALID_FORMAT"
	CodeHarmonizationFailed ErrorCode = "HARMONIZATION_FAILED"
	CodeMethodNotFound      ErrorCode = "METHOD_NOT_FOUND"
)

// Error is the structured failure carried by failed jobs and RPC error
// responses.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewError creates an Error. details may be nil.
func NewError(code ErrorCode, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// Errorf creates an Error without details.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsError returns err as an *Error. Errors of any other type become
// HARMONIZATION_FAILED with err's message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var jerr *Error
	if errors.As(err, &jerr) {
		return jerr
	}
	return &Error{Code: CodeHarmonizationFailed, Message: err.Error()}
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var jerr *Error
	return errors.As(err, &jerr) && jerr.Code == code
}
