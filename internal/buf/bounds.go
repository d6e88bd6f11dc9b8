package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulOverflowSafe multiplies two non-negative ints, returning ok = false on
// overflow or when either operand is negative.
func MulOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

// RecordsSize returns count*recSize after validating that the table fits in
// limit bytes. It is used to size descriptor tables before they are charged
// to a backend.
func RecordsSize(count, recSize, limit int) (int, error) {
	if count < 0 {
		return 0, fmt.Errorf("negative count: %d", count)
	}
	total, ok := MulOverflowSafe(count, recSize)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * recSize=%d", count, recSize)
	}
	if total > limit {
		return 0, fmt.Errorf("bounds: size=%d > limit=%d", total, limit)
	}
	return total, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
// The result is capped so appends cannot reach past off+n.
func Slice(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(b) {
		return nil, false
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > len(b) {
		return nil, false
	}
	return b[off:end:end], true
}
