package output

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCLIError(t *testing.T) {
	err := NewCLIError(ExitAuth, "authentication failed")
	assert.Equal(t, ExitAuth, err.ExitCode)
	assert.Equal(t, "authentication failed", err.Message)
	assert.Empty(t, err.Hint)
}

func TestCLIErrorError(t *testing.T) {
	err := &CLIError{Message: "something broke"}
	assert.Equal(t, "something broke", err.Error())
}

func TestCLIErrorWithHint(t *testing.T) {
	err := NewCLIError(ExitAuth, "auth failed")
	result := err.WithHint("Run: credstore token save")

	// Fluent builder returns same pointer
	assert.Same(t, err, result)
	assert.Equal(t, "Run: credstore token save", err.Hint)
}

func TestWrap(t *testing.T) {
	cause := errors.New("dbus down")
	err := Wrap(ExitUnavailable, cause, "failed to open %s", "secretservice")

	assert.Equal(t, "failed to open secretservice: dbus down", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitGeneral, ExitCode(errors.New("x")))
	assert.Equal(t, ExitNative, ExitCode(NewCLIError(ExitNative, "x")))
	assert.Equal(t, ExitNotFound, ExitCode(fmt.Errorf("wrapped: %w", NewCLIError(ExitNotFound, "x"))))
}

func TestReport(t *testing.T) {
	var out, errw bytes.Buffer
	f := NewTo("plain", &out, &errw)

	Report(f, NewCLIError(ExitNotFound, "no credential").WithHint("check the namespace"))
	assert.Equal(t, "error: no credential\nhint: check the namespace\n", errw.String())
	assert.Empty(t, out.String())

	errw.Reset()
	Report(NewTo("json", &out, &errw), NewCLIError(ExitNotFound, "no credential").WithHint("ignored"))
	assert.JSONEq(t, `{"error": "no credential"}`, errw.String())
}
