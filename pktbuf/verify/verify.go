package verify

import (
	"fmt"

	"github.com/joshuapare/pktbuf/pktbuf"
)

// ValidationError describes one failed check.
type ValidationError struct {
	Type    string
	Message string
	Index   int
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s at snip %d: %s", e.Type, e.Index, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *ValidationError) Unwrap() error {
	if cause, ok := e.Details["cause"].(error); ok {
		return cause
	}
	return nil
}

// AllInvariants validates the buffer and every given chain.
// Returns the first error encountered, or nil if all checks pass.
func AllInvariants(b *pktbuf.Buffer, chains ...*pktbuf.Snip) error {
	if err := Buffer(b); err != nil {
		return err
	}
	for _, pkt := range chains {
		if err := Chain(pkt); err != nil {
			return err
		}
		if err := Owned(b, pkt); err != nil {
			return err
		}
	}
	return nil
}

// Buffer runs the backend sanity checker.
func Buffer(b *pktbuf.Buffer) error {
	if err := b.Check(); err != nil {
		return &ValidationError{
			Type:    "Buffer",
			Message: err.Error(),
			Index:   -1,
			Details: map[string]any{"cause": err},
		}
	}
	return nil
}

// Empty checks that nothing is left allocated.
func Empty(b *pktbuf.Buffer) error {
	if err := Buffer(b); err != nil {
		return err
	}
	if !b.IsEmpty() {
		st := b.Usage()
		return &ValidationError{
			Type:    "Empty",
			Message: fmt.Sprintf("%d bytes still allocated", st.InUse),
			Index:   -1,
			Details: map[string]any{"in_use": st.InUse},
		}
	}
	return nil
}

// Chain validates the structure of the chain starting at pkt.
func Chain(pkt *pktbuf.Snip) error {
	if err := acyclic(pkt); err != nil {
		return err
	}

	i := 0
	for s := pkt; s != nil; s = s.Next {
		switch {
		case s.Users() < 1:
			return &ValidationError{
				Type:    "Chain",
				Message: fmt.Sprintf("%v snip has %d users", s.Type(), s.Users()),
				Index:   i,
			}
		case len(s.Data()) != s.Size():
			return &ValidationError{
				Type:    "Chain",
				Message: fmt.Sprintf("data length %d does not match size %d", len(s.Data()), s.Size()),
				Index:   i,
			}
		case s.IsExternal() && !s.Ref().IsZero():
			return &ValidationError{
				Type:    "Chain",
				Message: "external snip carries a backend ref",
				Index:   i,
				Details: map[string]any{"ref": s.Ref()},
			}
		case !s.IsExternal() && s.Size() > 0 && s.Ref().IsZero():
			return &ValidationError{
				Type:    "Chain",
				Message: "resident snip has data but no backend ref",
				Index:   i,
			}
		}
		i++
	}
	return nil
}

// Owned checks that every resident snip of the chain refers to memory of
// b's backend. The chain must be acyclic.
func Owned(b *pktbuf.Buffer, pkt *pktbuf.Snip) error {
	backend := b.Backend()
	i := 0
	for s := pkt; s != nil; s = s.Next {
		if !s.IsExternal() && s.Size() > 0 && !backend.Contains(s.Ref()) {
			return &ValidationError{
				Type:    "Owned",
				Message: fmt.Sprintf("ref %v is not owned by the buffer", s.Ref()),
				Index:   i,
				Details: map[string]any{"ref": s.Ref()},
			}
		}
		i++
	}
	return nil
}

// acyclic runs Floyd's cycle detection over Next links.
func acyclic(pkt *pktbuf.Snip) error {
	slow, fast := pkt, pkt
	for fast != nil && fast.Next != nil {
		slow = slow.Next
		fast = fast.Next.Next
		if slow == fast {
			return &ValidationError{
				Type:    "Chain",
				Message: "chain contains a cycle",
				Index:   -1,
			}
		}
	}
	return nil
}
