package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSpace indicates that no free range large enough was found.
	ErrNoSpace = errors.New("alloc: no free range large enough")

	// ErrTooLarge indicates a request larger than the backend could ever satisfy.
	ErrTooLarge = fmt.Errorf("%w: request exceeds capacity", ErrNoSpace)

	// ErrZeroSize indicates a request for zero (or negative) bytes.
	ErrZeroSize = errors.New("alloc: zero-size request")

	// ErrBadRef indicates an unknown ref, a misaligned ref, or a size that does
	// not match a live allocation (double free).
	ErrBadRef = errors.New("alloc: bad reference")

	// ErrCorrupt indicates that a sanity check found broken backend state.
	ErrCorrupt = errors.New("alloc: backend corrupt")
)

// CorruptionError describes a failed invariant check.
type CorruptionError struct {
	Backend string
	Off     int // -1 when not tied to an offset
	Reason  string
}

func (e *CorruptionError) Error() string {
	if e.Off >= 0 {
		return fmt.Sprintf("alloc: %s corrupt at 0x%04x: %s", e.Backend, e.Off, e.Reason)
	}
	return fmt.Sprintf("alloc: %s corrupt: %s", e.Backend, e.Reason)
}

func (e *CorruptionError) Unwrap() error { return ErrCorrupt }
