package output

import (
	"errors"
	"fmt"
)

// Exit codes following sysexits.h convention
const (
	ExitOK          = 0  // Success
	ExitGeneral     = 1  // General error
	ExitUsage       = 2  // Invalid usage / bad arguments
	ExitAuth        = 3  // Authentication failure
	ExitNotFound    = 4  // Credential not found
	ExitCanceled    = 5  // User dismissed a prompt
	ExitNative      = 7  // Secure storage reported a failure
	ExitTimeout     = 8  // Lock or prompt timeout
	ExitConfigError = 10 // Configuration error
	ExitUnavailable = 69 // Backend unavailable on this host (EX_UNAVAILABLE)
	ExitInternal    = 70 // Storage returned something impossible (EX_SOFTWARE)
)

// CLIError represents a structured error with exit code and optional hint
type CLIError struct {
	ExitCode int
	Message  string
	Hint     string
	Err      error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError
func NewCLIError(code int, msg string) *CLIError {
	return &CLIError{
		ExitCode: code,
		Message:  msg,
	}
}

// Wrap creates a CLIError whose message is prefixed to err.
func Wrap(code int, err error, format string, args ...any) *CLIError {
	return &CLIError{
		ExitCode: code,
		Message:  fmt.Sprintf(format, args...) + ": " + err.Error(),
		Err:      err,
	}
}

// WithHint adds a user-facing hint to the error
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.ExitCode
	}
	return ExitGeneral
}

// Report prints err and its hint through the formatter.
func Report(formatter Formatter, err error) {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		formatter.PrintError(cliErr)
		if cliErr.Hint != "" {
			formatter.PrintHint(cliErr.Hint)
		}
		return
	}

	formatter.PrintError(err)
}
