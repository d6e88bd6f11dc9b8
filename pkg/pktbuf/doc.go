// Package pktbuf exposes the process-wide packet buffer.
//
// The backend is chosen when the binary is linked, never at run time:
//
//	go build ./...                          // static arena of ArenaSize bytes
//	go build -tags pktbuf_dynamic ./...     // heap-backed dynamic backend
//
// Every function forwards to the default *pktbuf.Buffer returned by Default.
// Programs that need several independent buffers (tests, tools) build them
// directly with github.com/joshuapare/pktbuf/pktbuf.New.
package pktbuf
