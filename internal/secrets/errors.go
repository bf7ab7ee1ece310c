package secrets

import (
	"errors"
	"fmt"
)

// Kind classifies a StoreError.
type Kind int

const (
	// InvalidArgument means the caller supplied a blank or malformed field.
	InvalidArgument Kind = iota + 1
	// NativeFailure means the native service returned an unrecognised status.
	NativeFailure
	// ContractViolation means the native service returned a result shape the
	// adapter's invariants forbid, such as several matches for a single-item
	// query.
	ContractViolation
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case NativeFailure:
		return "native failure"
	case ContractViolation:
		return "contract violation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels matched by errors.Is against any StoreError of the same kind.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNativeFailure     = errors.New("native secure storage failure")
	ErrContractViolation = errors.New("native result violates store contract")
)

// ErrUnsupportedPlatform is returned at construction when a backend cannot
// run on this operating system.
var ErrUnsupportedPlatform = errors.New("secure storage backend not supported on this platform")

func (k Kind) sentinel() error {
	switch k {
	case InvalidArgument:
		return ErrInvalidArgument
	case NativeFailure:
		return ErrNativeFailure
	case ContractViolation:
		return ErrContractViolation
	}
	return nil
}

// StoreError wraps a failed store operation with context.
type StoreError struct {
	Kind    Kind
	Op      string // get, add-or-update, remove
	Service string
	Account string
	// Code is the raw native status. Zero when the native API reports no
	// integer code.
	Code    int
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	target := e.Service
	if e.Account != "" {
		target += "/" + e.Account
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s %s for %q: %s (status %d)", e.Op, e.Kind, target, msg, e.Code)
	}
	return fmt.Sprintf("%s %s for %q: %s", e.Op, e.Kind, target, msg)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *StoreError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Invalid builds an InvalidArgument error.
func Invalid(op, service, account, message string) *StoreError {
	return &StoreError{
		Kind:    InvalidArgument,
		Op:      op,
		Service: service,
		Account: account,
		Message: message,
	}
}

// Ambiguous builds the ContractViolation for an exact query that matched
// more than one entry.
func Ambiguous(op, service, account string, matches int) *StoreError {
	return &StoreError{
		Kind:    ContractViolation,
		Op:      op,
		Service: service,
		Account: account,
		Message: fmt.Sprintf("%d entries match one service and account", matches),
	}
}

// KindOf returns the kind of a StoreError in err's chain, or zero.
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// Operation names used in StoreError.Op.
const (
	OpGet         = "get"
	OpAddOrUpdate = "add-or-update"
	OpRemove      = "remove"
)
