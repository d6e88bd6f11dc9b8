//go:build pktbuf_dynamic

package pktbuf

import "github.com/joshuapare/pktbuf/pktbuf/alloc"

// ArenaSize is 0: the dynamic backend has no fixed arena.
const ArenaSize = 0

// BackendName identifies the backend linked into this binary.
const BackendName = "dynamic"

func newBackend() (alloc.Backend, error) {
	cfg := alloc.DefaultDynamicConfig
	cfg.Name = BackendName
	return alloc.NewDynamic(cfg)
}
