//go:build unix

// Package mmarena provides platform-specific helpers for reserving the fixed
// packet buffer arena outside the Go heap.
package mmarena

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Map reserves size bytes of zeroed, private, anonymous memory and returns it
// together with a release function. The release function is idempotent.
func Map(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmarena: invalid size %d", size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("mmarena: mmap %d bytes: %w", size, err)
	}
	release := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		data = nil
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			return nil
		}
		return err
	}
	return data, release, nil
}
