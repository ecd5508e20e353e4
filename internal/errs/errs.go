// Package errs defines the error taxonomy shared across the order
// admission, ledger, matching, and HTTP layers.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Wrap one of these with fmt.Errorf("...: %w", Kind) and
// callers can recover the kind with errors.Is / Is.
var (
	InvalidArgument     = errors.New("invalid argument")
	NotFound            = errors.New("not found")
	InsufficientFunds   = errors.New("insufficient funds")
	InsufficientHolding = errors.New("insufficient holding")
	Conflict            = errors.New("conflict")
	Unavailable         = errors.New("unavailable")
	Internal            = errors.New("internal error")
)

// Is reports whether err wraps kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}

// Wrap annotates kind with a message, preserving errors.Is matching.
func Wrap(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
