// Package alloc provides the memory backends that own the bytes of in-flight
// packets.
//
// # Overview
//
// The packet buffer never talks to memory directly. Every byte a snip refers
// to belongs to a Backend, addressed by a Ref ("owns [Off, Off+size) of slot
// Slot"). Two backends satisfy the same contract and surface capacity
// exhaustion identically, so the operations layer above stays
// backend-agnostic.
//
// # Backend Interface
//
//   - Alloc(size): reserve size bytes (zeroed)
//   - Realloc(ref, old, new): resize, in place when possible
//   - Free(ref, size): return a span to the backend
//   - Split(ref, size, at): consent to one allocation being owned by two
//     independent holders ([0,at) and [at,size))
//   - Contains(ref): whether ref belongs to this backend
//
// # Implementations
//
// Static: fixed byte arena with an address-ordered, self-coalescing free list
//
//   - First-fit search in address order
//   - Word-aligned footprints (8 bytes); the free-node footprint equals the
//     alignment so a split never strands a remainder too small to track
//   - Free always coalesces with both neighbours
//   - Grow-in-place realloc by absorbing the following free range
//   - Optional anonymous mmap backing (NewStaticMapped)
//
// Dynamic: one Go allocation per request
//
//   - Side table slot -> live pieces, so interior pieces produced by Split can
//     be freed independently; the slot is dropped with its last piece
//   - DynamicConfig.NoSplit disables Split, forcing callers to copy
//   - Optional byte budget enforced with a non-blocking semaphore
//
// # Diagnostics
//
// Both backends expose IsEmpty, CheckInvariants, Reset, Dump and Stats. They
// exist for tests, debug builds and tooling, never for production paths.
//
// # Thread Safety
//
// Backends are not thread-safe. The packet buffer serializes every call under
// its global lock.
package alloc
