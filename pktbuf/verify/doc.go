// Package verify provides validation functions for packet chains and the
// buffers that own them. These helpers are used in tests, the stress tool
// and debug builds to ensure buffer invariants are maintained.
//
// # Quick Start
//
// Validate a buffer and the chains a caller still holds:
//
//	if err := verify.AllInvariants(buf, pkt); err != nil {
//	    t.Fatalf("buffer invalid: %v", err)
//	}
//
// # Checks
//
//   - Chain: no cycles (Floyd), every snip has at least one user, the data
//     slice matches the size, external snips carry no backend ref
//   - Owned: every resident snip's ref belongs to the buffer's backend
//   - Buffer: the backend's own sanity checker (free list ordering,
//     coalescing, byte accounting)
//   - Empty: nothing is left allocated
//
// # ValidationError
//
// All validation functions return *ValidationError on failure:
//
//	type ValidationError struct {
//	    Type    string         // Check that failed (e.g., "Chain")
//	    Message string         // Human-readable description
//	    Index   int            // Position in the chain (-1 if N/A)
//	    Details map[string]any // Additional context
//	}
package verify
