package format

// AlignWord returns n aligned up to the next WordSize boundary.
//
// Example:
//
//	AlignWord(1)  = 8
//	AlignWord(8)  = 8
//	AlignWord(9)  = 16
func AlignWord(n int) int {
	return (n + WordMask) &^ WordMask
}

// IsAligned reports whether n sits on a WordSize boundary.
func IsAligned(n int) bool {
	return n&WordMask == 0
}

// Footprint returns the number of arena bytes a request of n bytes occupies:
// n rounded up to a word, and never less than one free node so the chunk can
// be returned to the free list on its own.
func Footprint(n int) int {
	fp := AlignWord(n)
	if fp < FreeNodeSize {
		return FreeNodeSize
	}
	return fp
}
