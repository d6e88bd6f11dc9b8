package pktbuf

import (
	"fmt"
	"math"
	"net"

	"github.com/joshuapare/pktbuf/internal/buf"
	"github.com/joshuapare/pktbuf/internal/format"
	"github.com/joshuapare/pktbuf/pktbuf/alloc"
)

// IOVec record layout (little-endian, IOVecEntrySize bytes):
//
//	0x00 slot  u32  (0 for external data)
//	0x04 off   u32
//	0x08 len   u32
//	0x0C type  u16
//	0x0E pad   u16
const (
	iovSlot = 0x00
	iovOff  = 0x04
	iovLen  = 0x08
	iovType = 0x0C
)

// IOVecEntry is one decoded record of a TypeIOVec snip.
type IOVecEntry struct {
	Ref  alloc.Ref
	Len  int
	Type Type
}

// GetIOVec prepends a TypeIOVec snip describing every snip of pkt and
// returns it together with the chain's data as net.Buffers, ready for a
// vectored write. The descriptor takes over the caller's reference to pkt.
// A chain that already starts with a descriptor is returned as is.
func (b *Buffer) GetIOVec(pkt *Snip) (*Snip, net.Buffers, error) {
	if pkt == nil {
		return nil, nil, invalid("iovec: nil snip")
	}
	if pkt.typ == TypeIOVec {
		return pkt, buffersOf(pkt.Next), nil
	}

	size, err := buf.RecordsSize(Count(pkt), format.IOVecEntrySize, math.MaxInt32)
	if err != nil {
		return nil, nil, invalid("iovec: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	vec, err := b.newSnipLocked(nil, size, TypeIOVec)
	if err != nil {
		return nil, nil, err
	}
	rec := vec.data
	for s := pkt; s != nil; s = s.Next {
		buf.PutU32LE(rec[iovSlot:], s.ref.Slot)
		buf.PutU32LE(rec[iovOff:], s.ref.Off)
		buf.PutU32LE(rec[iovLen:], uint32(s.size))
		buf.PutU16LE(rec[iovType:], uint16(s.typ))
		rec = rec[format.IOVecEntrySize:]
	}
	vec.Next = pkt
	b.checkLocked("iovec")
	return vec, buffersOf(pkt), nil
}

// ParseIOVec decodes the records of a TypeIOVec snip.
func ParseIOVec(vec *Snip) ([]IOVecEntry, error) {
	if vec == nil || vec.typ != TypeIOVec {
		return nil, invalid("parse iovec: not an iovec snip")
	}
	if vec.size%format.IOVecEntrySize != 0 {
		return nil, fmt.Errorf("parse iovec: size %d is not a multiple of %d", vec.size, format.IOVecEntrySize)
	}

	entries := make([]IOVecEntry, 0, vec.size/format.IOVecEntrySize)
	for off := 0; off < vec.size; off += format.IOVecEntrySize {
		rec, ok := buf.Slice(vec.data, off, format.IOVecEntrySize)
		if !ok {
			return nil, fmt.Errorf("parse iovec: record at %d out of bounds", off)
		}
		entries = append(entries, IOVecEntry{
			Ref:  alloc.Ref{Slot: buf.U32LE(rec[iovSlot:]), Off: buf.U32LE(rec[iovOff:])},
			Len:  int(buf.U32LE(rec[iovLen:])),
			Type: Type(int16(buf.U16LE(rec[iovType:]))),
		})
	}
	return entries, nil
}

func buffersOf(pkt *Snip) net.Buffers {
	var bufs net.Buffers
	for s := pkt; s != nil; s = s.Next {
		if s.size > 0 {
			bufs = append(bufs, s.data)
		}
	}
	return bufs
}
