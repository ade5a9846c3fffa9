package effects

import (
	"errors"
	"fmt"
)

// Domain errors for effects computation.
var (
	// ErrInvalidArgument indicates inputs rejected before any computation.
	ErrInvalidArgument = errors.New("effects: invalid argument")

	// ErrDimensionMismatch indicates a draw whose shapes disagree with X or
	// with the other draws. It matches ErrInvalidArgument.
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", ErrInvalidArgument)
)

// argumentError carries a fixed user-facing message while still matching
// ErrInvalidArgument under errors.Is.
type argumentError struct {
	msg string
}

func (e *argumentError) Error() string { return e.msg }

func (e *argumentError) Unwrap() error { return ErrInvalidArgument }

func invalidArgument(format string, args ...any) error {
	return &argumentError{msg: fmt.Sprintf(format, args...)}
}

// DrawError wraps an error with the index of the offending draw.
type DrawError struct {
	Index   int
	Wrapped error
}

func (e *DrawError) Error() string {
	return fmt.Sprintf("draw %d: %v", e.Index, e.Wrapped)
}

func (e *DrawError) Unwrap() error {
	return e.Wrapped
}
