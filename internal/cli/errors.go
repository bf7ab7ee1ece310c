package cli

import (
	"errors"

	"github.com/semmy-space/credstore/internal/credstore"
	"github.com/semmy-space/credstore/internal/output"
	"github.com/semmy-space/credstore/internal/secrets"
	"github.com/semmy-space/credstore/internal/secrets/secretservice"
)

// storeErr maps a store error onto a CLIError with the matching exit code.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var cliErr *output.CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	code := output.ExitGeneral
	var hint string
	switch {
	case errors.Is(err, secretservice.ErrPromptDismissed):
		code = output.ExitCanceled
	case errors.Is(err, credstore.ErrUnknownBackend):
		code = output.ExitConfigError
	case errors.Is(err, secrets.ErrUnsupportedPlatform), errors.Is(err, secretservice.ErrUnavailable):
		code = output.ExitUnavailable
		hint = "Run: credstore backends"
	default:
		switch secrets.KindOf(err) {
		case secrets.InvalidArgument:
			code = output.ExitUsage
		case secrets.NativeFailure:
			code = output.ExitNative
		case secrets.ContractViolation:
			code = output.ExitInternal
		}
	}

	return &output.CLIError{
		ExitCode: code,
		Message:  err.Error(),
		Hint:     hint,
		Err:      err,
	}
}

func notFound(service, account string) error {
	return output.NewCLIError(output.ExitNotFound, "no credential found for "+target(service, account))
}
