package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/joshuapare/pktbuf/pktbuf"
	"github.com/joshuapare/pktbuf/pktbuf/verify"
)

// Scenario is a named sequence of buffer operations loaded from TOML.
//
//	name = "mark udp"
//	backend = "static"
//	size = 512
//
//	[[step]]
//	op = "add"
//	name = "pkt"
//	data = "0123456789"
//
//	[[step]]
//	op = "mark"
//	snip = "pkt"
//	name = "hdr"
//	size = 4
//	type = "udp"
type Scenario struct {
	Name    string `toml:"name"`
	Backend string `toml:"backend"`
	Size    int    `toml:"size"`
	Steps   []Step `toml:"step"`
}

// Step is one operation. Snips are addressed by the names earlier steps
// gave them.
type Step struct {
	Op     string `toml:"op"`
	Name   string `toml:"name"`
	Snip   string `toml:"snip"`
	Next   string `toml:"next"`
	Alias  string `toml:"alias"`
	Data   string `toml:"data"`
	Size   *int   `toml:"size"`
	Type   string `toml:"type"`
	Count  uint   `toml:"count"`
	Expect string `toml:"expect"`
}

func loadScenario(path string) (*Scenario, error) {
	var sc Scenario
	md, err := toml.DecodeFile(path, &sc)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load scenario: unknown key %q", undecoded[0].String())
	}
	return &sc, nil
}

type scenarioRunner struct {
	b     *pktbuf.Buffer
	snips map[string]*pktbuf.Snip
	out   io.Writer
}

// runScenario executes sc against b, writing dump output to w. It stops at
// the first step whose outcome differs from its expectation.
func runScenario(b *pktbuf.Buffer, sc *Scenario, w io.Writer) error {
	r := &scenarioRunner{b: b, snips: make(map[string]*pktbuf.Snip), out: w}
	for i, st := range sc.Steps {
		err := r.step(st)
		if err = checkExpect(st.Expect, err); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
	}
	return nil
}

func checkExpect(expect string, err error) error {
	switch expect {
	case "", "ok":
		return err
	case "nomem":
		if errors.Is(err, pktbuf.ErrNoMemory) {
			return nil
		}
	case "invalid":
		if errors.Is(err, pktbuf.ErrInvalid) {
			return nil
		}
	default:
		return fmt.Errorf("unknown expectation %q", expect)
	}
	if err == nil {
		return fmt.Errorf("expected %s, got success", expect)
	}
	return fmt.Errorf("expected %s, got: %w", expect, err)
}

func (r *scenarioRunner) lookup(name string) (*pktbuf.Snip, error) {
	if name == "" {
		return nil, nil
	}
	s, ok := r.snips[name]
	if !ok {
		return nil, fmt.Errorf("no snip named %q", name)
	}
	return s, nil
}

func (r *scenarioRunner) store(name string, s *pktbuf.Snip) {
	if name != "" && s != nil {
		r.snips[name] = s
	}
}

func (r *scenarioRunner) step(st Step) error {
	typ := pktbuf.TypeUndef
	if st.Type != "" {
		t, ok := pktbuf.ParseType(st.Type)
		if !ok {
			return fmt.Errorf("unknown type %q", st.Type)
		}
		typ = t
	}
	target, err := r.lookup(st.Snip)
	if err != nil {
		return err
	}

	switch st.Op {
	case "add", "add_external":
		next, err := r.lookup(st.Next)
		if err != nil {
			return err
		}
		data, err := r.payload(st)
		if err != nil {
			return err
		}
		var s *pktbuf.Snip
		if st.Op == "add" {
			size := len(data)
			if st.Size != nil {
				size = *st.Size
			}
			s, err = r.b.Add(next, data, size, typ)
		} else {
			s, err = r.b.AddExternal(next, data, typ)
		}
		r.store(st.Name, s)
		return err

	case "mark":
		s, err := r.b.Mark(target, st.intSize(), typ)
		r.store(st.Name, s)
		return err

	case "realloc":
		return r.b.ReallocData(target, st.intSize())

	case "hold":
		count := st.Count
		if count == 0 {
			count = 1
		}
		r.b.Hold(target, count)
		return nil

	case "release":
		return r.b.Release(target)

	case "start_write":
		s, err := r.b.StartWrite(target)
		r.store(st.Name, s)
		return err

	case "merge":
		return r.b.Merge(target)

	case "reverse":
		s, err := r.b.ReverseSnips(target)
		r.store(st.Name, s)
		return err

	case "duplicate":
		s, err := r.b.DuplicateUpTo(target, typ)
		r.store(st.Name, s)
		return err

	case "iovec":
		s, _, err := r.b.GetIOVec(target)
		r.store(st.Name, s)
		return err

	case "remove":
		victim, err := r.lookup(st.Name)
		if err != nil {
			return err
		}
		head := r.b.RemoveSnip(target, victim)
		r.snips[st.Snip] = head
		return nil

	case "dump":
		return r.b.Stats(r.out)

	case "expect_empty":
		return verify.Empty(r.b)

	case "expect_sane":
		if target == nil {
			return verify.Buffer(r.b)
		}
		return verify.AllInvariants(r.b, target)

	case "expect_size":
		if got := target.Size(); got != st.intSize() {
			return fmt.Errorf("snip %q: size %d, want %d", st.Snip, got, st.intSize())
		}
		return nil

	case "expect_len":
		if got := pktbuf.Len(target); got != st.intSize() {
			return fmt.Errorf("chain %q: length %d, want %d", st.Snip, got, st.intSize())
		}
		return nil

	case "expect_data":
		if !bytes.Equal(target.Data(), []byte(st.Data)) {
			return fmt.Errorf("snip %q: data %q, want %q", st.Snip, target.Data(), st.Data)
		}
		return nil

	case "expect_users":
		if got := target.Users(); got != int(st.Count) {
			return fmt.Errorf("snip %q: users %d, want %d", st.Snip, got, st.Count)
		}
		return nil
	}
	return fmt.Errorf("unknown op %q", st.Op)
}

// payload returns the literal data of st, or the data of the snip it
// aliases.
func (r *scenarioRunner) payload(st Step) ([]byte, error) {
	if st.Alias == "" {
		if st.Data == "" {
			return nil, nil
		}
		return []byte(st.Data), nil
	}
	s, err := r.lookup(st.Alias)
	if err != nil {
		return nil, err
	}
	return s.Data(), nil
}

func (st Step) intSize() int {
	if st.Size == nil {
		return 0
	}
	return *st.Size
}

// runScenarioFile loads path and runs it on a buffer built from the
// scenario's backend settings, falling back to the global flags.
func runScenarioFile(path string) error {
	sc, err := loadScenario(path)
	if err != nil {
		return err
	}
	if sc.Backend != "" {
		backendName = sc.Backend
	}
	if sc.Size != 0 {
		backendSize = sc.Size
	}

	b, closeFn, err := newBuffer()
	if err != nil {
		return err
	}
	defer closeFn()

	out := io.Writer(os.Stdout)
	if quiet || jsonOut {
		out = io.Discard
	}
	if err := runScenario(b, sc, out); err != nil {
		return fmt.Errorf("%s: %w", scenarioTitle(sc, path), err)
	}

	if jsonOut {
		return printJSON(map[string]any{
			"scenario": scenarioTitle(sc, path),
			"steps":    len(sc.Steps),
			"stats":    b.Usage(),
		})
	}
	printInfo("%s: %d steps passed\n", scenarioTitle(sc, path), len(sc.Steps))
	return nil
}

func scenarioTitle(sc *Scenario, path string) string {
	if sc.Name != "" {
		return sc.Name
	}
	return path
}
