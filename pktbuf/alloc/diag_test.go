package alloc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_Dump(t *testing.T) {
	s := newTestStatic(t, 256)
	a, err := s.Alloc(4)
	require.NoError(t, err)
	copy(s.Bytes(a, 4), "ABCD")
	b, err := s.Alloc(16)
	require.NoError(t, err)
	_, err = s.Alloc(8)
	require.NoError(t, err)
	require.NoError(t, s.Free(b, 16))

	var out bytes.Buffer
	require.NoError(t, s.Dump(&out))
	got := out.String()

	assert.Contains(t, got, "packet buffer: first byte: 0x0000, last byte: 0x00ff (size: 256)\n")
	assert.Contains(t, got, "  position of last byte used: 32\n")
	assert.Contains(t, got, "=============== chunk   0 (0x0000 size:    8) ===============\n")
	assert.Contains(t, got, "41 42 43 44")
	assert.Contains(t, got, "~ unused: 0x0008 (next: 0x0020, size:   16) ~\n")
	assert.Contains(t, got, "=============== chunk   1 (0x0018 size:    8) ===============\n")
	assert.Contains(t, got, "~ unused: 0x0020 (next: (nil), size:  224) ~\n")
}

func TestStatic_DumpFullArena(t *testing.T) {
	s := newTestStatic(t, 16)
	_, err := s.Alloc(16)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.Dump(&out))
	assert.Contains(t, out.String(), "chunk   0 (0x0000 size:   16)")
	assert.NotContains(t, out.String(), "unused")
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("sink closed") }

func TestDump_PropagatesWriteErrors(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t, 256)
			_, _ = b.Alloc(8)
			require.Error(t, b.Dump(failWriter{}))
		})
	}
}

func TestStats_WriteTo(t *testing.T) {
	st := Stats{
		Backend:    "static-6k",
		Capacity:   6144,
		InUse:      1234,
		Peak:       4096,
		HighWater:  5000,
		AllocCalls: 12345,
	}
	var out bytes.Buffer
	n, err := st.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(out.Len()), n)

	got := out.String()
	assert.Contains(t, got, "=== static-6k ===")
	assert.Contains(t, got, "6,144 bytes")
	assert.Contains(t, got, "1,234 bytes (peak 4,096, high water 5,000)")
	assert.Contains(t, got, "Alloc calls:     12,345 (failed: 0)")

	out.Reset()
	_, err = Stats{Backend: "dynamic"}.WriteTo(&out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Capacity:        unbounded")
}
