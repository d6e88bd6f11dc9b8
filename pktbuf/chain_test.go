package pktbuf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPacket returns ip -> udp -> payload.
func buildPacket(t *testing.T, b *Buffer) (ip, udp, payload *Snip) {
	t.Helper()
	payload = mustAdd(t, b, nil, []byte("hello world"), 11, TypeUndef)
	udp = mustAdd(t, b, payload, []byte("UDPHEADR"), 8, TypeUDP)
	ip = mustAdd(t, b, udp, bytes.Repeat([]byte{'6'}, 40), 40, TypeIPv6)
	return ip, udp, payload
}

func TestChainHelpers(t *testing.T) {
	b := New(newStatic(t, 1024))
	ip, udp, payload := buildPacket(t, b)

	assert.Equal(t, 59, Len(ip))
	assert.Equal(t, 0, Len(nil))
	assert.Equal(t, 3, Count(ip))
	assert.Equal(t, 48, LenUpTo(ip, TypeUDP))
	assert.Equal(t, 40, LenUpTo(ip, TypeIPv6))
	assert.Equal(t, 59, LenUpTo(ip, TypeTCP), "missing type sums the whole chain")

	assert.Same(t, udp, Search(ip, TypeUDP))
	assert.Same(t, payload, Search(ip, TypeUndef))
	assert.Nil(t, Search(ip, TypeTCP))

	head := Delete(ip, udp)
	assert.Same(t, ip, head)
	assert.Same(t, payload, ip.Next)
	assert.Nil(t, udp.Next)

	head = Delete(head, ip)
	assert.Same(t, payload, head)
	assert.Nil(t, ip.Next)

	head = Prepend(head, udp)
	assert.Same(t, udp, head)
	head = Prepend(head, ip)
	assert.Equal(t, 3, Count(head))

	extra := mustAdd(t, b, nil, nil, 4, TypeCoAP)
	head = Append(head, extra)
	assert.Same(t, extra, payload.Next)
	assert.Same(t, extra, Append(nil, extra))

	require.NoError(t, b.Release(head))
	requireEmpty(t, b)
}

func TestRemoveSnip(t *testing.T) {
	for _, bc := range buffers() {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t, 1024)
			ip, udp, payload := buildPacket(t, b)

			head := b.RemoveSnip(ip, udp)
			assert.Same(t, ip, head)
			assert.Same(t, payload, ip.Next)
			assert.Equal(t, 2, Count(head))

			head = b.RemoveSnip(head, ip)
			assert.Same(t, payload, head)

			require.NoError(t, b.Release(head))
			requireEmpty(t, b)
		})
	}
}

func TestMerge(t *testing.T) {
	for _, bc := range buffers() {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t, 1024)
			ip, _, _ := buildPacket(t, b)

			require.NoError(t, b.Merge(ip))
			assert.Nil(t, ip.Next)
			assert.Equal(t, 59, ip.Size())
			want := append(bytes.Repeat([]byte{'6'}, 40), "UDPHEADRhello world"...)
			assert.Equal(t, want, ip.Data())

			require.NoError(t, b.Merge(ip), "single snip is a no-op")

			require.NoError(t, b.Release(ip))
			requireEmpty(t, b)
		})
	}
}

func TestMerge_SharedTailKeepsOtherHolder(t *testing.T) {
	b := New(newStatic(t, 1024))
	tail := mustAdd(t, b, nil, []byte("tail"), 4, TypeUndef)
	b.Hold(tail, 1)
	head := mustAdd(t, b, tail, []byte("head"), 4, TypeUDP)

	require.NoError(t, b.Merge(head))
	assert.Equal(t, []byte("headtail"), head.Data())
	assert.Equal(t, 1, tail.Users())
	assert.Equal(t, []byte("tail"), tail.Data())

	require.NoError(t, b.Release(tail))
	require.NoError(t, b.Release(head))
	requireEmpty(t, b)
}

func TestMerge_FailureRestoresChain(t *testing.T) {
	// Two small snips fill the arena; the merged data has nowhere to go.
	b := New(newStatic(t, 80))
	tail := mustAdd(t, b, nil, nil, 8, TypeUndef)
	head := mustAdd(t, b, tail, nil, 8, TypeUDP)

	err := b.Merge(head)
	require.ErrorIs(t, err, ErrNoMemory)
	assert.Same(t, tail, head.Next)
	assert.Equal(t, 8, head.Size())

	require.NoError(t, b.Release(head))
	requireEmpty(t, b)
}

func TestMerge_ExternalHead(t *testing.T) {
	b := New(newStatic(t, 512))
	tail := mustAdd(t, b, nil, []byte("-tail"), 5, TypeUndef)
	head, err := b.AddExternal(tail, []byte("head"), TypeUDP)
	require.NoError(t, err)

	require.NoError(t, b.Merge(head))
	assert.False(t, head.IsExternal())
	assert.Equal(t, []byte("head-tail"), head.Data())

	require.NoError(t, b.Release(head))
	requireEmpty(t, b)
}

func TestMerge_Preconditions(t *testing.T) {
	b := New(newStatic(t, 512))
	require.ErrorIs(t, b.Merge(nil), ErrInvalid)

	tail := mustAdd(t, b, nil, nil, 8, TypeUndef)
	head := mustAdd(t, b, tail, nil, 8, TypeUDP)
	b.Hold(head, 1)
	require.ErrorIs(t, b.Merge(head), ErrInvalid)
	require.NoError(t, b.Release(head))
	require.NoError(t, b.Release(head))
	requireEmpty(t, b)
}

func TestReverseSnips(t *testing.T) {
	for _, bc := range buffers() {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t, 2048)
			ip, udp, payload := buildPacket(t, b)

			rev, err := b.ReverseSnips(ip)
			require.NoError(t, err)
			assert.Same(t, payload, rev)
			assert.Same(t, udp, rev.Next)
			assert.Same(t, ip, rev.Next.Next)
			assert.Nil(t, ip.Next)

			require.NoError(t, b.Release(rev))
			requireEmpty(t, b)
		})
	}
}

func TestReverseSnips_SharedChainIsCopied(t *testing.T) {
	b := New(newStatic(t, 2048))
	ip, udp, payload := buildPacket(t, b)
	b.Hold(ip, 1)

	rev, err := b.ReverseSnips(ip)
	require.NoError(t, err)
	for s := rev; s != nil; s = s.Next {
		assert.Equal(t, 1, s.Users())
		assert.NotSame(t, ip, s)
		assert.NotSame(t, udp, s)
		assert.NotSame(t, payload, s)
	}
	assert.Equal(t, []Type{TypeUndef, TypeUDP, TypeIPv6}, types(rev))

	// The original holder still sees the untouched chain.
	assert.Equal(t, []Type{TypeIPv6, TypeUDP, TypeUndef}, types(ip))
	for s := ip; s != nil; s = s.Next {
		assert.Equal(t, 1, s.Users())
	}

	require.NoError(t, b.Release(rev))
	require.NoError(t, b.Release(ip))
	requireEmpty(t, b)
}

func TestReverseSnips_FailureReleasesEverything(t *testing.T) {
	b := New(newStatic(t, 320))
	ip, _, _ := buildPacket(t, b)
	b.Hold(ip, 1)

	// Exhaust the arena so the first copy fails.
	var filler []*Snip
	for {
		s, err := b.Add(nil, nil, 8, TypeUndef)
		if err != nil {
			break
		}
		filler = append(filler, s)
	}

	rev, err := b.ReverseSnips(ip)
	require.ErrorIs(t, err, ErrNoMemory)
	assert.Nil(t, rev)
	for s := ip; s != nil; s = s.Next {
		assert.Equal(t, 1, s.Users(), "our reference was dropped")
	}

	for _, s := range filler {
		require.NoError(t, b.Release(s))
	}
	require.NoError(t, b.Release(ip))
	requireEmpty(t, b)
}

func TestDuplicateUpTo(t *testing.T) {
	for _, bc := range buffers() {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t, 2048)
			ip, _, _ := buildPacket(t, b)
			before := Len(ip)

			dup, err := b.DuplicateUpTo(ip, TypeUDP)
			require.NoError(t, err)
			assert.Equal(t, TypeUDP, dup.Type())
			assert.Equal(t, 48, dup.Size())
			assert.Nil(t, dup.Next)
			assert.Equal(t, append(bytes.Repeat([]byte{'6'}, 40), "UDPHEADR"...), dup.Data())
			assert.Equal(t, before, Len(ip), "original untouched")

			all, err := b.DuplicateUpTo(ip, TypeTCP)
			require.NoError(t, err)
			assert.Equal(t, 59, all.Size())

			_, err = b.DuplicateUpTo(nil, TypeUDP)
			require.ErrorIs(t, err, ErrInvalid)

			require.NoError(t, b.Release(dup))
			require.NoError(t, b.Release(all))
			require.NoError(t, b.Release(ip))
			requireEmpty(t, b)
		})
	}
}

func TestGetIOVec(t *testing.T) {
	for _, bc := range buffers() {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t, 2048)
			ip, udp, payload := buildPacket(t, b)

			vec, bufs, err := b.GetIOVec(ip)
			require.NoError(t, err)
			assert.Equal(t, TypeIOVec, vec.Type())
			assert.Same(t, ip, vec.Next)
			assert.Equal(t, 3*16, vec.Size())

			entries, err := ParseIOVec(vec)
			require.NoError(t, err)
			assert.Equal(t, []IOVecEntry{
				{Ref: ip.Ref(), Len: 40, Type: TypeIPv6},
				{Ref: udp.Ref(), Len: 8, Type: TypeUDP},
				{Ref: payload.Ref(), Len: 11, Type: TypeUndef},
			}, entries)

			var wire bytes.Buffer
			_, err = bufs.WriteTo(&wire)
			require.NoError(t, err)
			assert.Equal(t, 59, wire.Len())
			assert.True(t, bytes.HasSuffix(wire.Bytes(), []byte("UDPHEADRhello world")))

			again, _, err := b.GetIOVec(vec)
			require.NoError(t, err)
			assert.Same(t, vec, again, "existing descriptor is reused")

			_, err = ParseIOVec(ip)
			require.ErrorIs(t, err, ErrInvalid)

			require.NoError(t, b.Release(vec))
			requireEmpty(t, b)
		})
	}
}

func types(pkt *Snip) []Type {
	var out []Type
	for s := pkt; s != nil; s = s.Next {
		out = append(out, s.Type())
	}
	return out
}
