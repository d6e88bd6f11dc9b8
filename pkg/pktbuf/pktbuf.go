package pktbuf

import (
	"io"
	"net"
	"sync"

	"github.com/joshuapare/pktbuf/pktbuf"
)

type (
	// Snip is one typed span of a packet.
	Snip = pktbuf.Snip
	// Type tags the protocol a snip carries.
	Type = pktbuf.Type
)

var defaultBuffer = sync.OnceValue(func() *pktbuf.Buffer {
	backend, err := newBackend()
	if err != nil {
		panic("pktbuf: default backend: " + err.Error())
	}
	return pktbuf.New(backend)
})

// Default returns the process-wide buffer.
func Default() *pktbuf.Buffer { return defaultBuffer() }

// Add creates a snip in front of next. See (*pktbuf.Buffer).Add.
func Add(next *Snip, data []byte, size int, typ Type) (*Snip, error) {
	return Default().Add(next, data, size, typ)
}

// AddExternal links caller-owned data in front of next.
func AddExternal(next *Snip, data []byte, typ Type) (*Snip, error) {
	return Default().AddExternal(next, data, typ)
}

// Mark splits the first size bytes of pkt into a new snip after it.
func Mark(pkt *Snip, size int, typ Type) (*Snip, error) {
	return Default().Mark(pkt, size, typ)
}

// ReallocData resizes the data of an unshared tail snip.
func ReallocData(pkt *Snip, size int) error {
	return Default().ReallocData(pkt, size)
}

// Hold adds num users to every snip of the chain.
func Hold(pkt *Snip, num uint) { Default().Hold(pkt, num) }

// Release drops one user from every snip of the chain.
func Release(pkt *Snip) error { return Default().Release(pkt) }

// ReleaseError releases the chain and reports status per snip.
func ReleaseError(pkt *Snip, status error) error {
	return Default().ReleaseError(pkt, status)
}

// StartWrite returns a writable version of pkt.
func StartWrite(pkt *Snip) (*Snip, error) { return Default().StartWrite(pkt) }

// RemoveSnip unlinks and releases snip.
func RemoveSnip(pkt, snip *Snip) *Snip { return Default().RemoveSnip(pkt, snip) }

// Merge flattens the chain into its head.
func Merge(pkt *Snip) error { return Default().Merge(pkt) }

// ReverseSnips reverses the chain.
func ReverseSnips(pkt *Snip) (*Snip, error) { return Default().ReverseSnips(pkt) }

// DuplicateUpTo copies the chain up to the first snip of typ into one snip.
func DuplicateUpTo(pkt *Snip, typ Type) (*Snip, error) {
	return Default().DuplicateUpTo(pkt, typ)
}

// GetIOVec prepends a scatter/gather descriptor to pkt.
func GetIOVec(pkt *Snip) (*Snip, net.Buffers, error) { return Default().GetIOVec(pkt) }

// IsEmpty reports whether the default buffer holds nothing. Test hook.
func IsEmpty() bool { return Default().IsEmpty() }

// IsSane runs the backend sanity checker. Test hook.
func IsSane() bool { return Default().IsSane() }

// Reset drops every allocation. Test hook.
func Reset() { Default().Reset() }

// Stats writes the buffer layout and counters to w.
func Stats(w io.Writer) error { return Default().Stats(w) }
