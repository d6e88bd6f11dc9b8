//go:build pktbuf_debug

package pktbuf

const debugChecks = true
