package alloc

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats is a snapshot of backend counters and usage.
type Stats struct {
	Backend  string // Configuration name
	Capacity int    // Byte budget, 0 when unbounded

	InUse     int // Bytes currently held (footprints for the static arena)
	Peak      int // Largest InUse observed
	HighWater int // End of the highest byte ever handed out (static) or Peak (dynamic)

	FreeRanges  int // Free list length (static) or live slots (dynamic)
	LargestFree int // Largest single free range, 0 for dynamic

	AllocCalls       int // Total Alloc() calls
	FreeCalls        int // Total Free() calls
	ReallocCalls     int // Total Realloc() calls
	ReallocInPlace   int // Reallocs that kept their ref
	ReallocMoved     int // Reallocs that moved the data
	SplitCount       int // Free-range splits (static) or interior splits (dynamic)
	CoalesceForward  int // Merges with the following free range
	CoalesceBackward int // Merges with the preceding free range
	FailedAllocs     int // Requests refused for lack of space
}

// WriteTo prints s as a small aligned report with grouped digits.
func (s Stats) WriteTo(w io.Writer) (int64, error) {
	p := message.NewPrinter(language.English)

	var total int64
	line := func(format string, args ...any) error {
		n, err := p.Fprintf(w, format, args...)
		total += int64(n)
		return err
	}

	capacity := "unbounded"
	if s.Capacity > 0 {
		capacity = p.Sprintf("%d bytes", s.Capacity)
	}

	steps := []struct {
		format string
		args   []any
	}{
		{"=== %s ===\n", []any{s.Backend}},
		{"Capacity:        %s\n", []any{capacity}},
		{"In use:          %d bytes (peak %d, high water %d)\n", []any{s.InUse, s.Peak, s.HighWater}},
		{"Free ranges:     %d (largest %d bytes)\n", []any{s.FreeRanges, s.LargestFree}},
		{"Alloc calls:     %d (failed: %d)\n", []any{s.AllocCalls, s.FailedAllocs}},
		{"Free calls:      %d\n", []any{s.FreeCalls}},
		{"Realloc calls:   %d (in place: %d, moved: %d)\n", []any{s.ReallocCalls, s.ReallocInPlace, s.ReallocMoved}},
		{"Splits:          %d\n", []any{s.SplitCount}},
		{"Coalesce fwd:    %d\n", []any{s.CoalesceForward}},
		{"Coalesce back:   %d\n", []any{s.CoalesceBackward}},
	}
	for _, st := range steps {
		if err := line(st.format, st.args...); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Stats) noteInUse() {
	if s.InUse > s.Peak {
		s.Peak = s.InUse
	}
}
