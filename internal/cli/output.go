package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/protrecon/internal/reconcile"
	"github.com/roach88/protrecon/internal/registry"
	"github.com/roach88/protrecon/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Pass aborted, scenarios failed, failed batches
	ExitCommandError = 2 // Command error (bad config, store not found, etc.)
)

// Error codes reported in CLIError.Code.
const (
	CodeConfig      = "E_CONFIG"
	CodeStore       = "E_STORE"
	CodeRegistry    = "E_REGISTRY"
	CodePassAborted = "E_PASS_ABORTED"
	CodeTestFailed  = "E_TEST_FAILED"
	CodeInternal    = "E_INTERNAL"
)

// ExitError carries the process exit code for a failed command, plus the
// error code reported for it when the cause alone does not tell.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Reason  string // CLIError code, empty to derive it from Err
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// WithReason sets the error code reported for e.
func (e *ExitError) WithReason(reason string) *ExitError {
	e.Reason = reason
	return e
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode names the failing subsystem of err for CLIError.Code. An
// explicit reason wins over one derived from the wrapped cause.
func ErrorCode(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Reason != "" {
		return exitErr.Reason
	}
	switch {
	case errors.Is(err, reconcile.ErrPassRunning):
		return CodePassAborted
	case errors.Is(err, registry.ErrTransient), errors.Is(err, registry.ErrInconsistentResult):
		return CodeRegistry
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNoUnit), errors.Is(err, store.ErrUnitOpen):
		return CodeStore
	}
	return CodeInternal
}

// OutputFormatter writes command results as JSON envelopes or plain text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; nil means Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope every command writes with --format json.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

type CLIError struct {
	Code    string      `json:"code"`              // "E_CONFIG", "E_STORE", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success writes data. Text output relies on data's String method when it has one.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes a failure. Details only reach text output in verbose mode.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err under the code ErrorCode derives for it.
func (f *OutputFormatter) Fail(err error, details interface{}) error {
	return f.Error(ErrorCode(err), err.Error(), details)
}

// VerboseLog writes a diagnostic line in verbose mode only. It goes to the
// error writer so JSON on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
