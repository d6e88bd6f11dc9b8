package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type backendCase struct {
	name string
	make func(t *testing.T, capacity int) Backend
}

// backends returns one constructor per backend flavour. capacity bounds the
// backend (arena size or byte budget).
func backends() []backendCase {
	return []backendCase{
		{"static", func(t *testing.T, capacity int) Backend { return newTestStatic(t, capacity) }},
		{"dynamic", func(t *testing.T, capacity int) Backend {
			d, err := NewDynamic(DynamicConfig{Name: "dynamic-test", LimitBytes: int64(capacity)})
			require.NoError(t, err)
			return d
		}},
		{"dynamic-nosplit", func(t *testing.T, capacity int) Backend {
			d, err := NewDynamic(DynamicConfig{Name: "nosplit-test", LimitBytes: int64(capacity), NoSplit: true})
			require.NoError(t, err)
			return d
		}},
	}
}

func newTestStatic(t *testing.T, size int) *Static {
	t.Helper()
	s, err := NewStatic(StaticConfig{Name: "static-test", Size: size})
	require.NoError(t, err)
	return s
}

func assertInvariants(t *testing.T, b Backend) {
	t.Helper()
	require.NoError(t, b.CheckInvariants())
}

func freeShape(s *Static) []freeRange {
	return append([]freeRange(nil), s.free...)
}
