package pktbuf

import (
	"fmt"
	"io"

	"github.com/joshuapare/pktbuf/pktbuf/alloc"
)

// IsEmpty reports whether the backend holds no allocations. Test hook.
func (b *Buffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backend.IsEmpty()
}

// Check runs the backend sanity checker.
func (b *Buffer) Check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backend.CheckInvariants()
}

// IsSane reports whether Check passes. Test hook.
func (b *Buffer) IsSane() bool {
	return b.Check() == nil
}

// Reset drops every allocation. Snips handed out before are invalid
// afterwards. Test hook.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backend.Reset()
}

// Usage returns the backend counters.
func (b *Buffer) Usage() alloc.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backend.Stats()
}

// Stats writes the backend layout followed by its counters to w.
func (b *Buffer) Stats(w io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.backend.Dump(w); err != nil {
		return err
	}
	_, err := b.backend.Stats().WriteTo(w)
	return err
}

func (b *Buffer) checkLocked(op string) {
	if !debugChecks {
		return
	}
	if err := b.backend.CheckInvariants(); err != nil {
		panic(fmt.Sprintf("pktbuf: %s left the buffer corrupt: %v", op, err))
	}
}
