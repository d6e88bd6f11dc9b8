package pktbuf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pktbuf/pktbuf/alloc"
)

type bufferCase struct {
	name string
	make func(t *testing.T, capacity int) *Buffer
}

// buffers returns one constructor per backend flavour, each bounded to
// capacity bytes.
func buffers() []bufferCase {
	return []bufferCase{
		{"static", func(t *testing.T, capacity int) *Buffer {
			return New(newStatic(t, capacity))
		}},
		{"dynamic", func(t *testing.T, capacity int) *Buffer {
			d, err := alloc.NewDynamic(alloc.DynamicConfig{Name: "dynamic-test", LimitBytes: int64(capacity)})
			require.NoError(t, err)
			return New(d)
		}},
		{"dynamic-nosplit", func(t *testing.T, capacity int) *Buffer {
			d, err := alloc.NewDynamic(alloc.DynamicConfig{Name: "nosplit-test", LimitBytes: int64(capacity), NoSplit: true})
			require.NoError(t, err)
			return New(d)
		}},
	}
}

func newStatic(t *testing.T, size int) *alloc.Static {
	t.Helper()
	s, err := alloc.NewStatic(alloc.StaticConfig{Name: "static-test", Size: size})
	require.NoError(t, err)
	return s
}

func mustAdd(t *testing.T, b *Buffer, next *Snip, data []byte, size int, typ Type) *Snip {
	t.Helper()
	s, err := b.Add(next, data, size, typ)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

// requireEmpty asserts that every allocation was returned and the backend
// is consistent.
func requireEmpty(t *testing.T, b *Buffer) {
	t.Helper()
	require.NoError(t, b.Check())
	require.True(t, b.IsEmpty(), "buffer still holds allocations")
}

// shape captures what a release must restore.
type shape struct {
	inUse       int
	freeRanges  int
	largestFree int
}

func shapeOf(b *Buffer) shape {
	st := b.Usage()
	return shape{inUse: st.InUse, freeRanges: st.FreeRanges, largestFree: st.LargestFree}
}
