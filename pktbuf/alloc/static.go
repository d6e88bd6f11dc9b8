package alloc

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/joshuapare/pktbuf/internal/buf"
	"github.com/joshuapare/pktbuf/internal/format"
	"github.com/joshuapare/pktbuf/internal/logger"
	"github.com/joshuapare/pktbuf/internal/mmarena"
)

// staticSlot is the only slot a Static backend hands out.
const staticSlot = 1

// freeRange is one entry of the address-ordered free list.
type freeRange struct {
	off  uint32
	size uint32
}

func (r freeRange) end() uint32 { return r.off + r.size }

// Static is a fixed byte arena managed by an address-ordered free list.
//
// Every allocation occupies Footprint(size) bytes starting on a word
// boundary. The free list holds maximal ranges: adjacent free ranges are
// always merged, so a fully free arena is exactly one range. Allocated
// granules (words) are tracked in a roaring bitmap, which lets Free reject a
// double free or a size that does not match the allocation.
type Static struct {
	name    string
	arena   []byte
	free    []freeRange     // sorted by off, pairwise non-adjacent
	used    *roaring.Bitmap // granule index (off/WordSize) of every allocated word
	release func() error    // non-nil for mapped arenas

	stats Stats
}

var _ Backend = (*Static)(nil)

// NewStatic creates a heap-backed arena.
func NewStatic(cfg StaticConfig) (*Static, error) {
	size, err := validateStatic(cfg)
	if err != nil {
		return nil, err
	}
	return newStatic(cfg.Name, make([]byte, size), nil), nil
}

// NewStaticMapped creates an arena backed by an anonymous memory mapping.
// Call Close to unmap it; the backend is unusable afterwards.
func NewStaticMapped(cfg StaticConfig) (*Static, error) {
	size, err := validateStatic(cfg)
	if err != nil {
		return nil, err
	}
	data, release, err := mmarena.Map(size)
	if err != nil {
		return nil, err
	}
	return newStatic(cfg.Name, data, release), nil
}

func validateStatic(cfg StaticConfig) (int, error) {
	size := cfg.arenaSize()
	if size < format.FreeNodeSize || size > format.MaxArenaSize {
		return 0, fmt.Errorf("alloc: invalid arena size %d", cfg.Size)
	}
	return size, nil
}

func newStatic(name string, arena []byte, release func() error) *Static {
	if name == "" {
		name = "static"
	}
	s := &Static{
		name:    name,
		arena:   arena,
		used:    roaring.New(),
		release: release,
	}
	s.Reset()
	return s
}

// Close releases a mapped arena. It is a no-op for heap-backed arenas.
func (s *Static) Close() error {
	if s.release == nil {
		return nil
	}
	err := s.release()
	s.release = nil
	s.arena = nil
	s.free = nil
	s.used.Clear()
	return err
}

// Alloc reserves size bytes with a first-fit search in address order.
func (s *Static) Alloc(size int) (Ref, error) {
	s.stats.AllocCalls++
	if size <= 0 {
		return Ref{}, ErrZeroSize
	}
	if size > len(s.arena) {
		s.stats.FailedAllocs++
		return Ref{}, ErrTooLarge
	}

	fp := uint32(format.Footprint(size))
	for i, r := range s.free {
		if r.size < fp {
			continue
		}
		if r.size == fp {
			s.free = slices.Delete(s.free, i, i+1)
		} else {
			// Alignment equals the free-node footprint, so a non-zero
			// leftover is always large enough to stay on the list.
			s.free[i] = freeRange{off: r.off + fp, size: r.size - fp}
			s.stats.SplitCount++
		}
		s.take(r.off, fp)
		return Ref{Slot: staticSlot, Off: r.off}, nil
	}

	s.stats.FailedAllocs++
	if logger.L.Enabled(context.Background(), slog.LevelDebug) {
		logger.L.Debug("static alloc failed",
			"backend", s.name,
			"size", size,
			"footprint", fp,
			"free_bytes", s.freeBytes(),
			"largest", s.largestFree(),
			"ranges", len(s.free))
	}
	return Ref{}, ErrNoSpace
}

// Free returns the allocation at ref. size must be the size it was
// allocated (or last reallocated or split) with.
func (s *Static) Free(ref Ref, size int) error {
	off, fp, err := s.span(ref, size)
	if err != nil {
		return err
	}
	s.stats.FreeCalls++
	s.give(off, fp)
	return nil
}

// Realloc shrinks in place, grows in place when the following range is free
// and large enough, and otherwise moves the data.
func (s *Static) Realloc(ref Ref, oldSize, newSize int) (Ref, error) {
	if newSize <= 0 {
		return Ref{}, ErrZeroSize
	}
	off, oldFp, err := s.span(ref, oldSize)
	if err != nil {
		return Ref{}, err
	}
	s.stats.ReallocCalls++
	if newSize > len(s.arena) {
		s.stats.FailedAllocs++
		return Ref{}, ErrTooLarge
	}

	newFp := uint32(format.Footprint(newSize))
	switch {
	case newFp == oldFp:
		s.stats.ReallocInPlace++
		return ref, nil

	case newFp < oldFp:
		s.give(off+newFp, oldFp-newFp)
		s.stats.ReallocInPlace++
		return ref, nil
	}

	need := newFp - oldFp
	end := off + oldFp
	if i, ok := s.findFree(end); ok && s.free[i].size >= need {
		if s.free[i].size == need {
			s.free = slices.Delete(s.free, i, i+1)
		} else {
			s.free[i] = freeRange{off: end + need, size: s.free[i].size - need}
		}
		s.take(end, need)
		s.stats.ReallocInPlace++
		return ref, nil
	}

	moved, err := s.Alloc(newSize)
	if err != nil {
		return Ref{}, err
	}
	copy(s.arena[moved.Off:int(moved.Off)+oldSize], s.arena[off:int(off)+oldSize])
	s.give(off, oldFp)
	s.stats.FreeCalls++
	s.stats.ReallocMoved++
	return moved, nil
}

// Split hands out [at,size) as an independent allocation. Both halves must
// be word-aligned and at least one free node long.
func (s *Static) Split(ref Ref, size, at int) (Ref, bool) {
	if at < format.FreeNodeSize || size-at < format.FreeNodeSize || !format.IsAligned(at) {
		return Ref{}, false
	}
	if _, _, err := s.span(ref, size); err != nil {
		return Ref{}, false
	}
	s.stats.SplitCount++
	return Ref{Slot: staticSlot, Off: ref.Off + uint32(at)}, true
}

// Contains reports whether ref points into the arena.
func (s *Static) Contains(ref Ref) bool {
	return ref.Slot == staticSlot && int(ref.Off) < len(s.arena)
}

// Bytes returns the size bytes at ref, or nil when they are out of range.
func (s *Static) Bytes(ref Ref, size int) []byte {
	if !s.Contains(ref) {
		return nil
	}
	b, _ := buf.Slice(s.arena, int(ref.Off), size)
	return b
}

// MinChunk is the free-node footprint.
func (s *Static) MinChunk() int { return format.FreeNodeSize }

// Capacity is the arena size.
func (s *Static) Capacity() int { return len(s.arena) }

// span validates ref/size against the allocation bitmap and returns the
// offset and footprint.
func (s *Static) span(ref Ref, size int) (uint32, uint32, error) {
	if !s.Contains(ref) || size <= 0 || !format.IsAligned(int(ref.Off)) {
		return 0, 0, fmt.Errorf("%w: %v", ErrBadRef, ref)
	}
	fp := format.Footprint(size)
	if int(ref.Off)+fp > len(s.arena) {
		return 0, 0, fmt.Errorf("%w: %v size %d past end of arena", ErrBadRef, ref, size)
	}
	lo, hi := granule(ref.Off), granule(ref.Off+uint32(fp))
	if s.usedIn(lo, hi) != uint64(hi-lo) {
		logger.L.Warn("free of unallocated span", "backend", s.name, "ref", ref.String(), "size", size)
		return 0, 0, fmt.Errorf("%w: %v size %d not allocated", ErrBadRef, ref, size)
	}
	return ref.Off, uint32(fp), nil
}

// take marks [off, off+n) allocated and zeroes it.
func (s *Static) take(off, n uint32) {
	s.used.AddRange(uint64(granule(off)), uint64(granule(off+n)))
	clear(s.arena[off : off+n])
	s.stats.InUse += int(n)
	s.stats.noteInUse()
	if int(off+n) > s.stats.HighWater {
		s.stats.HighWater = int(off + n)
	}
}

// give marks [off, off+n) free and inserts it into the free list,
// coalescing with both neighbours.
func (s *Static) give(off, n uint32) {
	s.used.RemoveRange(uint64(granule(off)), uint64(granule(off+n)))
	s.stats.InUse -= int(n)

	i := sort.Search(len(s.free), func(i int) bool { return s.free[i].off >= off })
	merged := freeRange{off: off, size: n}

	if i < len(s.free) && merged.end() == s.free[i].off {
		merged.size += s.free[i].size
		s.free = slices.Delete(s.free, i, i+1)
		s.stats.CoalesceForward++
	}
	if i > 0 && s.free[i-1].end() == merged.off {
		s.free[i-1].size += merged.size
		s.stats.CoalesceBackward++
		return
	}
	s.free = slices.Insert(s.free, i, merged)
}

// findFree returns the index of the free range starting exactly at off.
func (s *Static) findFree(off uint32) (int, bool) {
	i := sort.Search(len(s.free), func(i int) bool { return s.free[i].off >= off })
	return i, i < len(s.free) && s.free[i].off == off
}

// usedIn counts allocated granules in [lo, hi).
func (s *Static) usedIn(lo, hi uint32) uint64 {
	if hi <= lo {
		return 0
	}
	n := s.used.Rank(hi - 1)
	if lo > 0 {
		n -= s.used.Rank(lo - 1)
	}
	return n
}

func (s *Static) freeBytes() int {
	var n int
	for _, r := range s.free {
		n += int(r.size)
	}
	return n
}

func (s *Static) largestFree() int {
	var n uint32
	for _, r := range s.free {
		n = max(n, r.size)
	}
	return int(n)
}

func granule(off uint32) uint32 { return off / format.WordSize }
