package alloc

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/joshuapare/pktbuf/internal/format"
)

// IsEmpty reports whether the whole arena is a single free range.
func (s *Static) IsEmpty() bool {
	return len(s.free) == 1 && s.free[0].off == 0 && int(s.free[0].size) == len(s.arena)
}

// Reset frees everything and clears the counters.
func (s *Static) Reset() {
	s.used.Clear()
	s.free = s.free[:0]
	if len(s.arena) > 0 {
		s.free = append(s.free, freeRange{off: 0, size: uint32(len(s.arena))})
	}
	s.stats = Stats{}
}

// Stats returns a snapshot of the counters.
func (s *Static) Stats() Stats {
	st := s.stats
	st.Backend = s.name
	st.Capacity = len(s.arena)
	st.FreeRanges = len(s.free)
	st.LargestFree = s.largestFree()
	return st
}

// CheckInvariants walks the free list and cross-checks it against the
// allocation bitmap.
func (s *Static) CheckInvariants() error {
	corrupt := func(off int, msg string, args ...any) error {
		return &CorruptionError{Backend: s.name, Off: off, Reason: fmt.Sprintf(msg, args...)}
	}

	freeGranules := roaring.New()
	var freeTotal uint64
	var prevEnd uint32
	for i, r := range s.free {
		switch {
		case !format.IsAligned(int(r.off)) || !format.IsAligned(int(r.size)):
			return corrupt(int(r.off), "free range %d misaligned (size %d)", i, r.size)
		case r.size < format.FreeNodeSize:
			return corrupt(int(r.off), "free range %d smaller than a free node (%d)", i, r.size)
		case int(r.end()) > len(s.arena) || r.end() < r.off:
			return corrupt(int(r.off), "free range %d runs past arena end (size %d)", i, r.size)
		case i > 0 && r.off < prevEnd:
			return corrupt(int(r.off), "free range %d overlaps or is out of order", i)
		case i > 0 && r.off == prevEnd:
			return corrupt(int(r.off), "free range %d adjacent to its predecessor", i)
		}
		freeGranules.AddRange(uint64(granule(r.off)), uint64(granule(r.end())))
		freeTotal += uint64(r.size)
		prevEnd = r.end()
	}

	if freeGranules.Intersects(s.used) {
		and := roaring.And(freeGranules, s.used)
		return corrupt(int(and.Minimum())*format.WordSize, "free range overlaps allocated memory")
	}

	usedBytes := s.used.GetCardinality() * format.WordSize
	if freeTotal+usedBytes != uint64(len(s.arena)) {
		return corrupt(-1, "free %d + allocated %d != arena %d", freeTotal, usedBytes, len(s.arena))
	}
	if uint64(s.stats.InUse) != usedBytes {
		return corrupt(-1, "in-use counter %d disagrees with bitmap %d", s.stats.InUse, usedBytes)
	}
	return nil
}

// Dump prints the arena layout: each free range, then each run of allocated
// memory as a hex dump.
func (s *Static) Dump(w io.Writer) error {
	last := 0
	if len(s.arena) > 0 {
		last = len(s.arena) - 1
	}
	if _, err := fmt.Fprintf(w, "packet buffer: first byte: 0x%04x, last byte: 0x%04x (size: %d)\n",
		0, last, len(s.arena)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "  position of last byte used: %d\n", s.stats.HighWater); err != nil {
		return err
	}

	chunk := 0
	cursor := uint32(0)
	dumpChunk := func(off, end uint32) error {
		if _, err := fmt.Fprintf(w, "=============== chunk %3d (0x%04x size: %4d) ===============\n",
			chunk, off, end-off); err != nil {
			return err
		}
		chunk++
		d := hex.Dumper(w)
		if _, err := d.Write(s.arena[off:end]); err != nil {
			return err
		}
		return d.Close()
	}

	for i, r := range s.free {
		if r.off > cursor {
			if err := dumpChunk(cursor, r.off); err != nil {
				return err
			}
		}
		next := "(nil)"
		if i+1 < len(s.free) {
			next = fmt.Sprintf("0x%04x", s.free[i+1].off)
		}
		if _, err := fmt.Fprintf(w, "~ unused: 0x%04x (next: %s, size: %4d) ~\n", r.off, next, r.size); err != nil {
			return err
		}
		cursor = r.end()
	}
	if int(cursor) < len(s.arena) {
		return dumpChunk(cursor, uint32(len(s.arena)))
	}
	return nil
}
