package alloc

import (
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"slices"

	"golang.org/x/sync/semaphore"

	"github.com/joshuapare/pktbuf/internal/buf"
	"github.com/joshuapare/pktbuf/internal/format"
	"github.com/joshuapare/pktbuf/internal/logger"
)

// slot is one heap allocation and the pieces of it that are still live.
type slot struct {
	mem  []byte
	live map[uint32]int // piece offset -> piece size
}

// Dynamic hands out one Go allocation per request.
//
// Split does not copy: the slot keeps its memory and records two pieces in a
// side table. The slot is dropped when its last piece is freed, so an
// interior ref can be freed without knowing which allocation it came from.
type Dynamic struct {
	cfg    DynamicConfig
	slots  map[uint32]*slot
	nextID uint32
	budget *semaphore.Weighted // nil when unbounded

	stats Stats
}

var _ Backend = (*Dynamic)(nil)

// NewDynamic creates a heap backend.
func NewDynamic(cfg DynamicConfig) (*Dynamic, error) {
	if cfg.LimitBytes < 0 {
		return nil, fmt.Errorf("alloc: invalid byte limit %d", cfg.LimitBytes)
	}
	if cfg.Name == "" {
		cfg.Name = "dynamic"
	}
	d := &Dynamic{cfg: cfg}
	d.Reset()
	return d, nil
}

// Alloc reserves a fresh, zeroed slot of exactly size bytes.
func (d *Dynamic) Alloc(size int) (Ref, error) {
	d.stats.AllocCalls++
	if size <= 0 {
		return Ref{}, ErrZeroSize
	}
	if d.tooLarge(size) {
		d.stats.FailedAllocs++
		return Ref{}, ErrTooLarge
	}
	if !d.charge(size) {
		d.stats.FailedAllocs++
		logger.L.Debug("dynamic alloc over budget",
			"backend", d.cfg.Name, "size", size, "in_use", d.stats.InUse, "limit", d.cfg.LimitBytes)
		return Ref{}, ErrNoSpace
	}

	id := d.newID()
	d.slots[id] = &slot{
		mem:  make([]byte, size),
		live: map[uint32]int{0: size},
	}
	return Ref{Slot: id, Off: 0}, nil
}

// Free drops the piece at ref, and the slot with it when it was the last.
func (d *Dynamic) Free(ref Ref, size int) error {
	sl, err := d.piece(ref, size)
	if err != nil {
		return err
	}
	d.stats.FreeCalls++
	delete(sl.live, ref.Off)
	if len(sl.live) == 0 {
		delete(d.slots, ref.Slot)
		d.refund(len(sl.mem))
	}
	return nil
}

// Realloc resizes a whole slot in place (keeping its id). A piece that
// shares its slot with others is moved to a fresh slot instead.
func (d *Dynamic) Realloc(ref Ref, oldSize, newSize int) (Ref, error) {
	if newSize <= 0 {
		return Ref{}, ErrZeroSize
	}
	sl, err := d.piece(ref, oldSize)
	if err != nil {
		return Ref{}, err
	}
	d.stats.ReallocCalls++
	if d.tooLarge(newSize) {
		d.stats.FailedAllocs++
		return Ref{}, ErrTooLarge
	}

	if ref.Off == 0 && len(sl.live) == 1 && len(sl.mem) == oldSize {
		delta := newSize - oldSize
		if delta > 0 && !d.charge(delta) {
			d.stats.FailedAllocs++
			return Ref{}, ErrNoSpace
		}
		if newSize <= cap(sl.mem) {
			sl.mem = sl.mem[:newSize]
			if delta > 0 {
				clear(sl.mem[oldSize:])
			}
			d.stats.ReallocInPlace++
		} else {
			// The slot id survives but the bytes move.
			mem := make([]byte, newSize)
			copy(mem, sl.mem)
			sl.mem = mem
			d.stats.ReallocMoved++
		}
		sl.live[0] = newSize
		if delta < 0 {
			d.refund(-delta)
		}
		return ref, nil
	}

	moved, err := d.Alloc(newSize)
	if err != nil {
		return Ref{}, err
	}
	copy(d.slots[moved.Slot].mem, sl.mem[ref.Off:int(ref.Off)+min(oldSize, newSize)])
	if err := d.Free(ref, oldSize); err != nil {
		return Ref{}, err
	}
	d.stats.ReallocMoved++
	return moved, nil
}

// Split records [at,size) as its own piece of the same slot.
func (d *Dynamic) Split(ref Ref, size, at int) (Ref, bool) {
	if d.cfg.NoSplit || at <= 0 || at >= size {
		return Ref{}, false
	}
	sl, err := d.piece(ref, size)
	if err != nil {
		return Ref{}, false
	}
	rest := ref.Off + uint32(at)
	sl.live[ref.Off] = at
	sl.live[rest] = size - at
	d.stats.SplitCount++
	return Ref{Slot: ref.Slot, Off: rest}, true
}

// Contains reports whether ref lies inside a live slot.
func (d *Dynamic) Contains(ref Ref) bool {
	sl, ok := d.slots[ref.Slot]
	return ok && int(ref.Off) < len(sl.mem)
}

// Bytes returns the size bytes at ref, or nil when they are out of range.
func (d *Dynamic) Bytes(ref Ref, size int) []byte {
	sl, ok := d.slots[ref.Slot]
	if !ok {
		return nil
	}
	b, _ := buf.Slice(sl.mem, int(ref.Off), size)
	return b
}

// MinChunk is 1 when interior splits are tracked and 0 otherwise.
func (d *Dynamic) MinChunk() int {
	if d.cfg.NoSplit {
		return 0
	}
	return 1
}

// Capacity is the byte limit, 0 when unbounded.
func (d *Dynamic) Capacity() int { return int(d.cfg.LimitBytes) }

// IsEmpty reports whether no slot is live.
func (d *Dynamic) IsEmpty() bool { return len(d.slots) == 0 }

// Reset drops every slot and restores the full budget.
func (d *Dynamic) Reset() {
	d.slots = make(map[uint32]*slot)
	d.nextID = 0
	d.budget = nil
	if d.cfg.LimitBytes > 0 {
		d.budget = semaphore.NewWeighted(d.cfg.LimitBytes)
	}
	d.stats = Stats{}
}

// Stats returns a snapshot of the counters.
func (d *Dynamic) Stats() Stats {
	st := d.stats
	st.Backend = d.cfg.Name
	st.Capacity = int(d.cfg.LimitBytes)
	st.FreeRanges = len(d.slots)
	st.HighWater = st.Peak
	return st
}

// CheckInvariants verifies every slot's piece table and the byte accounting.
func (d *Dynamic) CheckInvariants() error {
	corrupt := func(msg string, args ...any) error {
		return &CorruptionError{Backend: d.cfg.Name, Off: -1, Reason: fmt.Sprintf(msg, args...)}
	}

	var held int
	for id, sl := range d.slots {
		if id == 0 {
			return corrupt("slot id 0 is reserved")
		}
		if len(sl.live) == 0 {
			return corrupt("slot %d has no live pieces", id)
		}
		prevEnd := 0
		for _, off := range slices.Sorted(maps.Keys(sl.live)) {
			size := sl.live[off]
			switch {
			case size <= 0:
				return corrupt("slot %d piece 0x%04x has size %d", id, off, size)
			case int(off) < prevEnd:
				return corrupt("slot %d piece 0x%04x overlaps its predecessor", id, off)
			case int(off)+size > len(sl.mem):
				return corrupt("slot %d piece 0x%04x runs past slot end", id, off)
			}
			prevEnd = int(off) + size
		}
		held += len(sl.mem)
	}
	if held != d.stats.InUse {
		return corrupt("slots hold %d bytes, counter says %d", held, d.stats.InUse)
	}
	if d.cfg.LimitBytes > 0 && int64(held) > d.cfg.LimitBytes {
		return corrupt("slots hold %d bytes over limit %d", held, d.cfg.LimitBytes)
	}
	return nil
}

// Dump prints every slot and its live pieces.
func (d *Dynamic) Dump(w io.Writer) error {
	limit := "unbounded"
	if d.cfg.LimitBytes > 0 {
		limit = fmt.Sprintf("%d", d.cfg.LimitBytes)
	}
	if _, err := fmt.Fprintf(w, "dynamic packet buffer: %d slots, %d bytes in use (limit: %s)\n",
		len(d.slots), d.stats.InUse, limit); err != nil {
		return err
	}
	for _, id := range slices.Sorted(maps.Keys(d.slots)) {
		sl := d.slots[id]
		if _, err := fmt.Fprintf(w, "=============== slot %3d (size: %4d, pieces: %d) ===============\n",
			id, len(sl.mem), len(sl.live)); err != nil {
			return err
		}
		for _, off := range slices.Sorted(maps.Keys(sl.live)) {
			size := sl.live[off]
			if _, err := fmt.Fprintf(w, "~ piece 0x%04x (size: %4d) ~\n", off, size); err != nil {
				return err
			}
			dumper := hex.Dumper(w)
			if _, err := dumper.Write(sl.mem[off : int(off)+size]); err != nil {
				return err
			}
			if err := dumper.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}

// piece returns the slot holding a live piece at ref of exactly size bytes.
func (d *Dynamic) piece(ref Ref, size int) (*slot, error) {
	sl, ok := d.slots[ref.Slot]
	if !ok {
		return nil, fmt.Errorf("%w: %v unknown slot", ErrBadRef, ref)
	}
	got, ok := sl.live[ref.Off]
	if !ok || got != size {
		logger.L.Warn("free of unknown piece", "backend", d.cfg.Name, "ref", ref.String(), "size", size)
		return nil, fmt.Errorf("%w: %v size %d not a live piece", ErrBadRef, ref, size)
	}
	return sl, nil
}

// tooLarge reports a request no slot can hold: over the byte limit, or too
// big for a piece offset to address.
func (d *Dynamic) tooLarge(size int) bool {
	if int64(size) > format.MaxArenaSize {
		return true
	}
	return d.cfg.LimitBytes > 0 && int64(size) > d.cfg.LimitBytes
}

func (d *Dynamic) charge(n int) bool {
	if d.budget != nil && !d.budget.TryAcquire(int64(n)) {
		return false
	}
	d.stats.InUse += n
	d.stats.noteInUse()
	return true
}

func (d *Dynamic) refund(n int) {
	if d.budget != nil {
		d.budget.Release(int64(n))
	}
	d.stats.InUse -= n
}

func (d *Dynamic) newID() uint32 {
	for {
		d.nextID++
		if d.nextID == 0 {
			continue
		}
		if _, taken := d.slots[d.nextID]; !taken {
			return d.nextID
		}
	}
}
