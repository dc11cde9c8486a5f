// Package faults defines the failure taxonomy shared by the farm ledger, the
// factory and the manager. Every rejected operation wraps exactly one of the
// sentinels below, so callers can branch with errors.Is.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput reports malformed arguments: zero amounts, mismatched
	// array lengths, broken fee schedules.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized reports a caller lacking the required role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState reports an operation that is well formed but not
	// allowed in the current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrUpstream reports a failure of an external collaborator such as the
	// asset-transfer primitive or the oracle.
	ErrUpstream = errors.New("upstream failure")
)

// InvalidInput builds an ErrInvalidInput error.
func InvalidInput(format string, args ...interface{}) error {
	return wrap(ErrInvalidInput, format, args...)
}

// Unauthorized builds an ErrUnauthorized error.
func Unauthorized(format string, args ...interface{}) error {
	return wrap(ErrUnauthorized, format, args...)
}

// InvalidState builds an ErrInvalidState error.
func InvalidState(format string, args ...interface{}) error {
	return wrap(ErrInvalidState, format, args...)
}

// Upstream wraps err from an external collaborator. Errors that already carry
// a taxonomy sentinel are returned unchanged so a nested abort keeps its kind.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != KindUnknown {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}

func wrap(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// Kind labels used in logs and metrics.
const (
	KindInvalidInput = "invalid_input"
	KindUnauthorized = "unauthorized"
	KindInvalidState = "invalid_state"
	KindUpstream     = "upstream"
	KindUnknown      = "unknown"
)

// Kind returns the taxonomy label of err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	default:
		return KindUnknown
	}
}
