//go:build !unix

// Package mmarena provides platform-specific helpers for reserving the fixed
// packet buffer arena outside the Go heap.
package mmarena

import "fmt"

// Map falls back to a heap allocation where anonymous mappings are not wired up.
func Map(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmarena: invalid size %d", size)
	}
	return make([]byte, size), func() error { return nil }, nil
}
