package pktbuf

// RemoveSnip unlinks snip from the chain starting at pkt, releases it, and
// returns the new head.
func (b *Buffer) RemoveSnip(pkt, snip *Snip) *Snip {
	head := Delete(pkt, snip)
	if snip != nil {
		if err := b.Release(snip); err != nil {
			b.logger().Warn("remove snip", "type", snip.typ, "error", err)
		}
	}
	return head
}

// Merge flattens the chain starting at pkt into pkt: its data becomes the
// concatenation of every snip's data and the rest of the chain is released.
// pkt must be unshared. On failure the chain is unchanged.
func (b *Buffer) Merge(pkt *Snip) error {
	if pkt == nil {
		return invalid("merge: nil snip")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if pkt.Next == nil {
		return nil
	}
	if pkt.Users() != 1 {
		return invalid("merge %v: snip shared by %d users", pkt.typ, pkt.Users())
	}

	total := Len(pkt)
	tail := pkt.Next
	offset := pkt.size

	if pkt.external {
		merged, err := b.newSnipLocked(nil, total, pkt.typ)
		if err != nil {
			return err
		}
		copy(merged.data, pkt.data)
		// Adopt the new data; the fresh header goes straight back.
		b.freeHeaderLocked(merged)
		pkt.ref, pkt.data, pkt.size, pkt.external = merged.ref, merged.data, merged.size, false
	} else if err := b.reallocLocked(pkt, total); err != nil {
		return err
	}

	for s := tail; s != nil; s = s.Next {
		copy(pkt.data[offset:], s.data)
		offset += s.size
	}
	pkt.Next = nil
	if _, err := b.releaseLocked(tail, false); err != nil {
		return err
	}
	b.checkLocked("merge")
	return nil
}

// ReverseSnips reverses the order of the chain, making every snip writable
// on the way. On failure everything is released and nil is returned.
func (b *Buffer) ReverseSnips(pkt *Snip) (*Snip, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var reversed *Snip
	for pkt != nil {
		writable, err := b.startWriteLocked(pkt)
		if err != nil {
			_, _ = b.releaseLocked(reversed, false)
			_, _ = b.releaseLocked(pkt, false)
			return nil, err
		}
		next := writable.Next
		writable.Next = reversed
		reversed = writable
		pkt = next
	}
	b.checkLocked("reverse")
	return reversed, nil
}

// DuplicateUpTo copies the data of every snip up to and including the first
// snip of type typ (the whole chain if there is none) into one new snip of
// type typ. pkt is not modified.
func (b *Buffer) DuplicateUpTo(pkt *Snip, typ Type) (*Snip, error) {
	if pkt == nil {
		return nil, invalid("duplicate: nil snip")
	}
	size := LenUpTo(pkt, typ)
	if size == 0 {
		return nil, invalid("duplicate up to %v: no data", typ)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dup, err := b.newSnipLocked(nil, size, typ)
	if err != nil {
		return nil, err
	}
	offset := 0
	for s := pkt; s != nil; s = s.Next {
		copy(dup.data[offset:], s.data)
		offset += s.size
		if s.typ == typ {
			break
		}
	}
	b.checkLocked("duplicate")
	return dup, nil
}
