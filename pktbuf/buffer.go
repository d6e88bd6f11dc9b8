package pktbuf

import (
	"log/slog"
	"math"
	"sync"

	"github.com/joshuapare/pktbuf/internal/format"
	"github.com/joshuapare/pktbuf/internal/logger"
	"github.com/joshuapare/pktbuf/pktbuf/alloc"
)

// HeaderSize is the backend capacity charged for every snip header.
const HeaderSize = format.SnipHeaderSize

// ErrorReporter receives the per-snip status passed to ReleaseError. It runs
// after the buffer lock is dropped.
type ErrorReporter func(typ Type, err error)

// Buffer is a packet buffer on top of one backend.
type Buffer struct {
	mu       sync.Mutex
	backend  alloc.Backend
	log      *slog.Logger
	reporter ErrorReporter
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithLogger routes buffer diagnostics to l instead of the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Buffer) { b.log = l }
}

// WithErrorReporter installs the sink for ReleaseError statuses.
func WithErrorReporter(r ErrorReporter) Option {
	return func(b *Buffer) { b.reporter = r }
}

// New returns a Buffer that allocates from backend.
func New(backend alloc.Backend, opts ...Option) *Buffer {
	b := &Buffer{backend: backend}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Backend returns the backend the buffer allocates from.
func (b *Buffer) Backend() alloc.Backend { return b.backend }

func (b *Buffer) logger() *slog.Logger {
	if b.log != nil {
		return b.log
	}
	return logger.L
}

// Add creates a snip of size bytes of type typ and links it in front of next.
//
// When data is nil the new bytes are zeroed; otherwise the first size bytes
// of data are copied. If data starts exactly at next's data and size is
// smaller than next, the front of next is split off instead: next is
// advanced by size and the returned snip owns the removed prefix.
func (b *Buffer) Add(next *Snip, data []byte, size int, typ Type) (*Snip, error) {
	if size <= 0 {
		return nil, invalid("add %v: size %d", typ, size)
	}
	if data != nil && len(data) < size {
		return nil, invalid("add %v: %d bytes of data for size %d", typ, len(data), size)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		snip *Snip
		err  error
	)
	if next != nil && aliasesFront(data, next) && size < next.size && next.Users() == 1 {
		snip, err = b.splitFrontLocked(next, size, typ)
	} else {
		snip, err = b.newSnipLocked(data, size, typ)
	}
	if err != nil {
		return nil, err
	}
	snip.Next = next
	b.checkLocked("add")
	return snip, nil
}

// AddExternal links a snip referring to caller-owned data in front of next.
// The data is neither copied nor ever freed by the buffer; only the header
// is charged.
func (b *Buffer) AddExternal(next *Snip, data []byte, typ Type) (*Snip, error) {
	if len(data) == 0 {
		return nil, invalid("add external %v: empty data", typ)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	snip, err := b.newHeaderLocked(typ)
	if err != nil {
		return nil, err
	}
	snip.data = data[:len(data):len(data)]
	snip.size = len(data)
	snip.external = true
	snip.Next = next
	b.checkLocked("add external")
	return snip, nil
}

// Mark splits the first size bytes of pkt into a new snip of type typ,
// linked directly after pkt. pkt keeps the remaining bytes; the total number
// of bytes in the chain is unchanged.
//
// The split happens in place when the backend can represent both halves.
// Otherwise both halves are copied into fresh allocations; if that fails
// pkt is left untouched.
func (b *Buffer) Mark(pkt *Snip, size int, typ Type) (*Snip, error) {
	switch {
	case pkt == nil:
		return nil, invalid("mark: nil snip")
	case size <= 0:
		return nil, invalid("mark %v: size %d", typ, size)
	case pkt.size == 0:
		return nil, invalid("mark %v: snip has no data", typ)
	case size > pkt.size:
		return nil, invalid("mark %v: size %d exceeds snip size %d", typ, size, pkt.size)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if pkt.Users() != 1 {
		b.logger().Warn("mark of shared snip", "type", pkt.typ, "users", pkt.Users())
		return nil, invalid("mark %v: snip shared by %d users", typ, pkt.Users())
	}

	marked, err := b.splitFrontLocked(pkt, size, typ)
	if err != nil {
		return nil, err
	}
	marked.Next = pkt.Next
	pkt.Next = marked
	b.checkLocked("mark")
	return marked, nil
}

// ReallocData resizes the data of pkt to size bytes. pkt must be unshared,
// the last snip of its chain, and hold buffer memory. Size 0 frees the data.
func (b *Buffer) ReallocData(pkt *Snip, size int) error {
	if pkt == nil {
		return invalid("realloc: nil snip")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case pkt.Users() != 1:
		return invalid("realloc %v: snip shared by %d users", pkt.typ, pkt.Users())
	case pkt.Next != nil:
		return invalid("realloc %v: snip is not the tail of its chain", pkt.typ)
	case pkt.external:
		return invalid("realloc %v: external data", pkt.typ)
	}
	if err := b.reallocLocked(pkt, size); err != nil {
		return err
	}
	b.checkLocked("realloc")
	return nil
}

// Hold adds num users to every snip of the chain starting at pkt. A count
// saturates at math.MaxInt32 instead of wrapping.
func (b *Buffer) Hold(pkt *Snip, num uint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := pkt; s != nil; s = s.Next {
		users := s.users.Load()
		if uint64(num) > uint64(math.MaxInt32-users) {
			b.logger().Warn("hold saturates user count", "type", s.typ, "users", users, "num", num)
			s.users.Store(math.MaxInt32)
			continue
		}
		s.users.Add(int32(num))
	}
}

// Release drops one user from every snip of the chain starting at pkt and
// frees the snips that reach zero.
func (b *Buffer) Release(pkt *Snip) error {
	return b.ReleaseError(pkt, nil)
}

// ReleaseError is Release that also reports status for every released snip
// to the buffer's ErrorReporter.
func (b *Buffer) ReleaseError(pkt *Snip, status error) error {
	var reports []Type
	err := func() error {
		b.mu.Lock()
		defer b.mu.Unlock()

		var err error
		reports, err = b.releaseLocked(pkt, status != nil)
		b.checkLocked("release")
		return err
	}()

	if b.reporter != nil {
		for _, typ := range reports {
			b.reporter(typ, status)
		}
	}
	return err
}

// StartWrite makes pkt safe to modify. An unshared pkt is returned as is.
// A shared pkt is duplicated (the head only; the rest of the chain stays
// shared), the original loses one user, and the duplicate is returned.
func (b *Buffer) StartWrite(pkt *Snip) (*Snip, error) {
	if pkt == nil {
		return nil, invalid("start write: nil snip")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out, err := b.startWriteLocked(pkt)
	if err != nil {
		return nil, err
	}
	b.checkLocked("start write")
	return out, nil
}

func (b *Buffer) startWriteLocked(pkt *Snip) (*Snip, error) {
	users := pkt.Users()
	if users == 1 {
		return pkt, nil
	}
	if users < 1 {
		return nil, invalid("start write %v: released snip", pkt.typ)
	}

	dup, err := b.newSnipLocked(pkt.data, pkt.size, pkt.typ)
	if err != nil {
		return nil, err
	}
	dup.Next = pkt.Next
	pkt.users.Add(-1)
	return dup, nil
}

// newHeaderLocked charges a header and returns an empty snip with one user.
func (b *Buffer) newHeaderLocked(typ Type) (*Snip, error) {
	hdr, err := b.backend.Alloc(HeaderSize)
	if err != nil {
		b.logger().Debug("snip header allocation failed", "type", typ, "error", err)
		return nil, noMemory("header", err)
	}
	s := &Snip{hdr: hdr, typ: typ}
	s.users.Store(1)
	return s, nil
}

// newSnipLocked builds a resident snip of size bytes, copying data when
// given. Size 0 yields a header-only snip.
func (b *Buffer) newSnipLocked(data []byte, size int, typ Type) (*Snip, error) {
	s, err := b.newHeaderLocked(typ)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return s, nil
	}

	ref, err := b.backend.Alloc(size)
	if err != nil {
		b.freeHeaderLocked(s)
		b.logger().Debug("snip data allocation failed", "type", typ, "size", size, "error", err)
		return nil, noMemory("data", err)
	}
	s.ref = ref
	s.size = size
	s.data = b.backend.Bytes(ref, size)
	if data != nil {
		copy(s.data, data[:size])
	}
	return s, nil
}

// splitFrontLocked moves the first size bytes of owner into a new snip and
// advances owner past them. owner must be unshared. On failure owner is
// unchanged.
func (b *Buffer) splitFrontLocked(owner *Snip, size int, typ Type) (*Snip, error) {
	front, err := b.newHeaderLocked(typ)
	if err != nil {
		return nil, err
	}

	switch {
	case owner.external:
		front.data = owner.data[:size:size]
		front.size = size
		front.external = true
		owner.data = owner.data[size:]
		owner.size -= size
		if owner.size == 0 {
			owner.data = nil
		}
		return front, nil

	case size == owner.size:
		front.ref, front.data, front.size = owner.ref, owner.data, owner.size
		owner.ref, owner.data, owner.size = alloc.Ref{}, nil, 0
		return front, nil
	}

	if rest, ok := b.backend.Split(owner.ref, owner.size, size); ok {
		front.ref = owner.ref
		front.size = size
		front.data = b.backend.Bytes(front.ref, size)
		owner.ref = rest
		owner.size -= size
		owner.data = b.backend.Bytes(rest, owner.size)
		return front, nil
	}

	b.logger().Debug("split copies", "type", typ, "size", size, "owner_size", owner.size)

	frontRef, err := b.backend.Alloc(size)
	if err != nil {
		b.freeHeaderLocked(front)
		return nil, noMemory("split front", err)
	}
	restSize := owner.size - size
	restRef, err := b.backend.Alloc(restSize)
	if err != nil {
		b.freeLocked(frontRef, size)
		b.freeHeaderLocked(front)
		return nil, noMemory("split rest", err)
	}

	front.ref = frontRef
	front.size = size
	front.data = b.backend.Bytes(frontRef, size)
	copy(front.data, owner.data[:size])

	restData := b.backend.Bytes(restRef, restSize)
	copy(restData, owner.data[size:])
	b.freeLocked(owner.ref, owner.size)
	owner.ref, owner.data, owner.size = restRef, restData, restSize
	return front, nil
}

// reallocLocked resizes resident data without checking chain position.
func (b *Buffer) reallocLocked(pkt *Snip, size int) error {
	switch {
	case size < 0:
		return invalid("realloc %v: size %d", pkt.typ, size)
	case size == pkt.size:
		return nil
	case size == 0:
		b.freeLocked(pkt.ref, pkt.size)
		pkt.ref, pkt.data, pkt.size = alloc.Ref{}, nil, 0
		return nil
	}

	var (
		ref alloc.Ref
		err error
	)
	if pkt.ref.IsZero() {
		ref, err = b.backend.Alloc(size)
	} else {
		ref, err = b.backend.Realloc(pkt.ref, pkt.size, size)
	}
	if err != nil {
		b.logger().Debug("realloc failed", "type", pkt.typ, "from", pkt.size, "to", size, "error", err)
		return noMemory("realloc", err)
	}
	pkt.ref = ref
	pkt.size = size
	pkt.data = b.backend.Bytes(ref, size)
	return nil
}

// releaseLocked drops one user along the chain. It returns the types of the
// visited snips when report is set. An over-released snip stops the walk.
func (b *Buffer) releaseLocked(pkt *Snip, report bool) ([]Type, error) {
	var reports []Type
	for s := pkt; s != nil; {
		next := s.Next
		if report {
			reports = append(reports, s.typ)
		}
		switch n := s.users.Add(-1); {
		case n == 0:
			b.freeSnipLocked(s)
		case n < 0:
			s.users.Add(1)
			b.logger().Error("release of unreferenced snip", "type", s.typ)
			return reports, invalid("release %v: snip has no users", s.typ)
		}
		s = next
	}
	return reports, nil
}

func (b *Buffer) freeSnipLocked(s *Snip) {
	if !s.external && !s.ref.IsZero() {
		b.freeLocked(s.ref, s.size)
	}
	b.freeHeaderLocked(s)
	s.Next = nil
	s.ref, s.data, s.size = alloc.Ref{}, nil, 0
}

func (b *Buffer) freeHeaderLocked(s *Snip) {
	b.freeLocked(s.hdr, HeaderSize)
	s.hdr = alloc.Ref{}
}

func (b *Buffer) freeLocked(ref alloc.Ref, size int) {
	if err := b.backend.Free(ref, size); err != nil {
		b.logger().Error("backend free failed", "ref", ref.String(), "size", size, "error", err)
	}
}

// aliasesFront reports whether data starts at the first byte of s.
func aliasesFront(data []byte, s *Snip) bool {
	return len(data) > 0 && len(s.data) > 0 && &data[0] == &s.data[0]
}
