package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bmir-radx/harmonization-framework/internal/jobs"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Harmonization, replay or rule validation failed
	ExitCommandError = 2 // Bad flags, paths or configuration
)

// ExitError carries a process exit code. When Err is a *jobs.Error its code
// is what Report prints.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without an underlying error.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Errors that are not an
// ExitError map to ExitFailure; cobra flag errors are wrapped by Execute.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// jobExitCode maps a job error code to a process exit code. Request and
// path problems are command errors; the rest are run failures.
func jobExitCode(code jobs.ErrorCode) int {
	switch code {
	case jobs.CodeValidation, jobs.CodeMissingField, jobs.CodeInvalidPath,
		jobs.CodeFileNotFound, jobs.CodeAlreadyExists:
		return ExitCommandError
	default:
		return ExitFailure
	}
}

// OutputFormatter writes command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope for command output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data. In text mode render draws it; a nil render prints
// data with fmt.
func (f *OutputFormatter) Success(data any, render func(w io.Writer)) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	if render == nil {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	render(f.Writer)
	return nil
}

// Error writes an error. In text mode it goes to ErrWriter.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	w := f.GetErrWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// Report writes err with the code and details it carries. Job errors keep
// their code; other errors are reported as COMMAND_ERROR or FAILURE by
// exit code.
func (f *OutputFormatter) Report(err error) {
	var jerr *jobs.Error
	if errors.As(err, &jerr) {
		var details any
		if len(jerr.Details) > 0 {
			details = jerr.Details
		}
		_ = f.Error(string(jerr.Code), jerr.Message, details)
		return
	}
	code := "FAILURE"
	if GetExitCode(err) == ExitCommandError {
		code = "COMMAND_ERROR"
	}
	_ = f.Error(code, err.Error(), nil)
}

// VerboseLog writes a diagnostic line when verbose mode is on. Diagnostics
// go to ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
