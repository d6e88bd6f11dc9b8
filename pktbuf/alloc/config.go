package alloc

import "github.com/joshuapare/pktbuf/internal/format"

// StaticConfig configures a Static backend.
type StaticConfig struct {
	// Name for this configuration (shown in dumps and tool output)
	Name string

	// Size of the arena in bytes. Rounded down to a whole number of words.
	Size int
}

// DynamicConfig configures a Dynamic backend.
type DynamicConfig struct {
	// Name for this configuration (shown in dumps and tool output)
	Name string

	// LimitBytes caps the bytes held at once. 0 means unbounded.
	LimitBytes int64

	// NoSplit disables interior splits: one allocation per piece, no side
	// table lookups for interior refs. Callers fall back to copying.
	NoSplit bool
}

// Predefined configurations.
var (
	// DefaultStaticConfig mirrors the classic 6 KiB packet buffer of small
	// 802.15.4 nodes.
	DefaultStaticConfig = StaticConfig{
		Name: "static-6k",
		Size: 6144,
	}

	// DefaultDynamicConfig tracks interior pieces and has no budget.
	DefaultDynamicConfig = DynamicConfig{
		Name: "dynamic",
	}

	// DynamicNoSplitConfig never splits; every mark copies.
	DynamicNoSplitConfig = DynamicConfig{
		Name:    "dynamic-nosplit",
		NoSplit: true,
	}
)

func (c StaticConfig) arenaSize() int {
	return c.Size &^ format.WordMask
}
