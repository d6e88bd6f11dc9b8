//go:build !pktbuf_dynamic

package pktbuf

import "github.com/joshuapare/pktbuf/pktbuf/alloc"

// ArenaSize is the size of the static packet buffer arena in bytes.
const ArenaSize = 6144

// BackendName identifies the backend linked into this binary.
const BackendName = "static"

func newBackend() (alloc.Backend, error) {
	return alloc.NewStatic(alloc.StaticConfig{Name: BackendName, Size: ArenaSize})
}
