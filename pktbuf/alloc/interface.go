package alloc

import (
	"fmt"
	"io"
)

// Ref addresses bytes owned by a backend: offset Off inside slot Slot.
// The zero Ref means "no allocation". The static backend has a single slot.
type Ref struct {
	Slot uint32
	Off  uint32
}

// IsZero reports whether r refers to nothing.
func (r Ref) IsZero() bool { return r.Slot == 0 }

func (r Ref) String() string {
	if r.IsZero() {
		return "(nil)"
	}
	return fmt.Sprintf("%d:0x%04x", r.Slot, r.Off)
}

// Backend defines the allocator contract the packet buffer builds on.
//
// Implementations:
//   - Static: fixed arena with a coalescing free list
//   - Dynamic: heap-backed with an interior-piece side table
type Backend interface {
	// Alloc reserves size bytes. The bytes are zeroed.
	Alloc(size int) (Ref, error)

	// Realloc resizes the allocation at ref from oldSize to newSize bytes and
	// returns its (possibly moved) Ref. On error the original is untouched.
	Realloc(ref Ref, oldSize, newSize int) (Ref, error)

	// Free returns the size bytes at ref to the backend.
	Free(ref Ref, size int) error

	// Split lets [0,at) and [at,size) of the allocation at ref be freed
	// independently and returns the Ref of the second part. ok is false when
	// the backend cannot represent the split; the caller must copy instead.
	Split(ref Ref, size, at int) (rest Ref, ok bool)

	// Contains reports whether ref points into memory owned by this backend.
	Contains(ref Ref) bool

	// Bytes returns the size bytes at ref, capped so appends cannot spill.
	Bytes(ref Ref, size int) []byte

	// MinChunk is the smallest independently freeable piece; 0 when Split is
	// never possible.
	MinChunk() int

	// Capacity is the total byte budget, 0 when unbounded.
	Capacity() int

	// IsEmpty reports whether nothing is allocated.
	IsEmpty() bool

	// CheckInvariants re-verifies the backend's structural invariants.
	CheckInvariants() error

	// Reset drops every allocation. Test-only.
	Reset()

	// Dump writes a human-readable map of the backend.
	Dump(w io.Writer) error

	// Stats returns a snapshot of counters and usage.
	Stats() Stats
}
