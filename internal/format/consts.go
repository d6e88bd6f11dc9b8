// Package format holds the layout constants shared by the packet buffer
// backends and the snip layer.
package format

const (
	// WordSize is the allocation granule. Every allocation handed out by the
	// static arena starts on a WordSize boundary and spans a whole number of
	// words.
	WordSize = 8

	// WordMask is WordSize-1, used for round-up arithmetic.
	WordMask = WordSize - 1

	// FreeNodeSize is the footprint of one free-range record if it were
	// embedded in the arena: a uint32 link to the next range and a uint32
	// size. No range smaller than this can exist on the free list, and since
	// it equals WordSize a split never leaves an unrepresentable remainder.
	FreeNodeSize = 8

	// SnipHeaderSize is the arena footprint charged for one snip header
	// (next, data, size, users, type on a 64-bit target).
	SnipHeaderSize = 32

	// IOVecEntrySize is the size of one scatter/gather descriptor record:
	// slot u32, offset u32, length u32, type u16, 2 bytes padding.
	IOVecEntrySize = 16

	// MaxArenaSize bounds the static arena so offsets fit a uint32.
	MaxArenaSize = 1<<32 - WordSize
)
