package pktbuf

import (
	"fmt"
	"sync/atomic"

	"github.com/joshuapare/pktbuf/pktbuf/alloc"
)

// Snip is one typed span of a packet.
//
// Next is the owning link to the rest of the packet, outermost header first.
// Callers may relink Next only while they hold the snip exclusively.
type Snip struct {
	Next *Snip

	data     []byte
	ref      alloc.Ref // zero for external or empty snips
	size     int
	typ      Type
	external bool      // data belongs to the caller, never freed here
	hdr      alloc.Ref // header charge
	users    atomic.Int32
}

// Data returns the bytes of the snip. The slice is capped at Size.
func (s *Snip) Data() []byte { return s.data }

// Size returns the number of bytes the snip owns.
func (s *Snip) Size() int { return s.size }

// Type returns the protocol tag.
func (s *Snip) Type() Type { return s.typ }

// SetType retags the snip. Exclusive owners only.
func (s *Snip) SetType(t Type) { s.typ = t }

// Users returns the current reference count.
func (s *Snip) Users() int { return int(s.users.Load()) }

// IsExternal reports whether the data is caller-owned memory.
func (s *Snip) IsExternal() bool { return s.external }

// Ref returns the backend location of the data, the zero Ref when the snip
// is empty or external.
func (s *Snip) Ref() alloc.Ref { return s.ref }

func (s *Snip) String() string {
	return fmt.Sprintf("snip{type: %v, size: %d, users: %d, data: %v}", s.typ, s.size, s.Users(), s.ref)
}

// Len returns the total number of bytes in the chain starting at pkt.
func Len(pkt *Snip) int {
	var n int
	for s := pkt; s != nil; s = s.Next {
		n += s.size
	}
	return n
}

// LenUpTo returns the bytes of the chain up to and including the first snip
// of type typ, or of the whole chain when there is none.
func LenUpTo(pkt *Snip, typ Type) int {
	var n int
	for s := pkt; s != nil; s = s.Next {
		n += s.size
		if s.typ == typ {
			break
		}
	}
	return n
}

// Count returns the number of snips in the chain.
func Count(pkt *Snip) int {
	var n int
	for s := pkt; s != nil; s = s.Next {
		n++
	}
	return n
}

// Search returns the first snip of type typ, or nil.
func Search(pkt *Snip, typ Type) *Snip {
	for s := pkt; s != nil; s = s.Next {
		if s.typ == typ {
			return s
		}
	}
	return nil
}

// Prepend links snip in front of pkt and returns the new head.
func Prepend(pkt, snip *Snip) *Snip {
	snip.Next = pkt
	return snip
}

// Append links snip (and whatever follows it) after the last snip of pkt and
// returns the head.
func Append(pkt, snip *Snip) *Snip {
	if pkt == nil {
		return snip
	}
	last := pkt
	for last.Next != nil {
		last = last.Next
	}
	last.Next = snip
	return pkt
}

// Delete unlinks snip from the chain and returns the new head. snip itself
// is not released and its Next is cleared.
func Delete(pkt, snip *Snip) *Snip {
	if pkt == nil || snip == nil {
		return pkt
	}
	if pkt == snip {
		head := pkt.Next
		snip.Next = nil
		return head
	}
	for s := pkt; s.Next != nil; s = s.Next {
		if s.Next == snip {
			s.Next = snip.Next
			snip.Next = nil
			break
		}
	}
	return pkt
}
