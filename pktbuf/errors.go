package pktbuf

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMemory indicates the backend ran out of capacity. Errors carrying
	// it also wrap the backend error, so errors.Is(err, alloc.ErrNoSpace)
	// holds as well.
	ErrNoMemory = errors.New("pktbuf: out of packet buffer memory")

	// ErrInvalid indicates a precondition violation by the caller.
	ErrInvalid = errors.New("pktbuf: invalid argument")
)

func noMemory(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrNoMemory, op, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}
