// Package pktbuf is the shared, zero-copy representation of in-flight
// network packets.
//
// A packet is a chain of typed snips. Each snip owns a span of bytes in a
// backend (see package alloc) and carries a reference count so the same
// bytes can be handed to several protocol layers without copying.
//
// # Operations
//
//   - Add: create a snip (copying data, or splitting the front off an
//     existing snip when data aliases it) and link it in front of next
//   - Mark: split the first bytes of a snip into a new snip linked after it
//   - ReallocData: resize the data of an unshared tail snip
//   - Hold / Release / ReleaseError: reference counting over a whole chain
//   - StartWrite: copy-on-write duplicate of a shared head snip
//
// Chain utilities (Len, Search, Append, Delete, ...) need no lock: the caller
// owns the chain it walks.
//
// # Concurrency
//
// A Buffer serializes every mutating call under one mutex held for the whole
// call. No call blocks or re-enters the buffer while holding it. Only
// Snip.Users may be read concurrently with other holders; every other field
// belongs to the exclusive owner (Users() == 1).
//
// # Debug builds
//
// Building with -tags pktbuf_debug re-runs the backend sanity checker after
// every mutating operation and panics on corruption.
package pktbuf
