package derefmap

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, per the error handling design.
//
// None of these are recovered locally: the caller is expected to either
// surface the error (IoError, Interrupted), retry the whole operation
// (IoError, Interrupted), skip the affected row (CorruptEncoding) or treat
// the condition as fatal (InvariantViolation).
var (
	ErrIndexNotFound      = errors.New("derefmap: index not found")
	ErrCorruptEncoding    = errors.New("derefmap: corrupt encoding")
	ErrInvariantViolation = errors.New("derefmap: invariant violation")
	ErrInterrupted        = errors.New("derefmap: interrupted")
)

// corruptf wraps ErrCorruptEncoding with row-local context (what field,
// at what offset, was being decoded).
func corruptf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrCorruptEncoding)...)
}

// invariantf wraps ErrInvariantViolation with context about which
// precondition failed.
func invariantf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvariantViolation)...)
}
