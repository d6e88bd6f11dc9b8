package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackends_ExhaustionSurfacesNoSpace(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t, 256)

			var refs []Ref
			for range 100 {
				ref, err := b.Alloc(64)
				if err != nil {
					require.ErrorIs(t, err, ErrNoSpace)
					break
				}
				refs = append(refs, ref)
			}
			assert.Len(t, refs, 4)
			assert.Equal(t, 1, b.Stats().FailedAllocs)

			for _, ref := range refs {
				require.NoError(t, b.Free(ref, 64))
			}
			assert.True(t, b.IsEmpty())
		})
	}
}

func TestBackends_HugeRequestIsOutOfSpace(t *testing.T) {
	cases := append(backends(), backendCase{"dynamic-unbounded", func(t *testing.T, _ int) Backend {
		d, err := NewDynamic(DefaultDynamicConfig)
		require.NoError(t, err)
		return d
	}})
	for _, bc := range cases {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t, 256)

			_, err := b.Alloc(1 << 50)
			require.ErrorIs(t, err, ErrNoSpace)

			ref, err := b.Alloc(16)
			require.NoError(t, err)
			_, err = b.Realloc(ref, 16, 1<<50)
			require.ErrorIs(t, err, ErrNoSpace)

			require.NoError(t, b.Free(ref, 16))
			assert.True(t, b.IsEmpty())
		})
	}
}

func TestBackends_ZeroSize(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t, 256)
			_, err := b.Alloc(0)
			require.ErrorIs(t, err, ErrZeroSize)
			_, err = b.Alloc(-3)
			require.ErrorIs(t, err, ErrZeroSize)
		})
	}
}

func TestBackends_SplitThenFreeRestoresEmpty(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t, 256)
			ref, err := b.Alloc(40)
			require.NoError(t, err)

			rest, ok := b.Split(ref, 40, 16)
			if b.MinChunk() == 0 {
				require.False(t, ok)
				require.NoError(t, b.Free(ref, 40))
			} else {
				require.True(t, ok)
				require.NoError(t, b.Free(rest, 24))
				require.NoError(t, b.Free(ref, 16))
			}
			assert.True(t, b.IsEmpty())
			assertInvariants(t, b)
		})
	}
}

func TestBackends_Reset(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			b := bc.make(t, 256)
			_, _ = b.Alloc(10)
			_, _ = b.Alloc(20)
			b.Reset()
			assert.True(t, b.IsEmpty())
			assertInvariants(t, b)

			_, err := b.Alloc(256)
			require.NoError(t, err, "reset restores full capacity")
		})
	}
}

func TestRef(t *testing.T) {
	assert.True(t, Ref{}.IsZero())
	assert.False(t, Ref{Slot: 1}.IsZero())
	assert.Equal(t, "(nil)", Ref{}.String())
	assert.Equal(t, "1:0x0010", Ref{Slot: 1, Off: 16}.String())
}
