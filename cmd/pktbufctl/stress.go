package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/joshuapare/pktbuf/pktbuf"
	"github.com/joshuapare/pktbuf/pktbuf/alloc"
	"github.com/joshuapare/pktbuf/pktbuf/verify"
)

var (
	stressWorkers int
	stressOps     int
	stressSeed    int64
	stressRate    float64
	stressCheck   bool
	stressMaxSize int
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVarP(&stressWorkers, "workers", "w", 4, "Concurrent producers")
	cmd.Flags().IntVarP(&stressOps, "ops", "n", 10000, "Operations per worker")
	cmd.Flags().Int64Var(&stressSeed, "seed", 1, "Random seed (worker i uses seed+i)")
	cmd.Flags().Float64Var(&stressRate, "rate", 0, "Overall operations per second (0 = unlimited)")
	cmd.Flags().BoolVar(&stressCheck, "check", true, "Run the sanity checker after every operation")
	cmd.Flags().IntVar(&stressMaxSize, "max-size", 256, "Largest packet to add")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Run a random workload against a buffer",
		Long: `The stress command runs seeded random add, mark, hold, start_write,
realloc and release operations from several goroutines against one buffer,
checking invariants as it goes and requiring an empty buffer at the end.

Example:
  pktbufctl stress --workers 8 --ops 50000
  pktbufctl stress --backend dynamic --size 65536 --rate 2000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context())
		},
	}
}

type stressConfig struct {
	Workers int
	Ops     int
	Seed    int64
	Rate    float64
	Check   bool
	MaxSize int
}

type stressSummary struct {
	Backend  string         `json:"backend"`
	Workers  int            `json:"workers"`
	Seed     int64          `json:"seed"`
	Ops      map[string]int `json:"ops"`
	OOM      int            `json:"oom"`
	Duration string         `json:"duration"`
	Stats    alloc.Stats    `json:"stats"`
}

func runStress(ctx context.Context) error {
	b, closeFn, err := newBuffer()
	if err != nil {
		return err
	}
	defer closeFn()

	summary, err := stress(ctx, b, stressConfig{
		Workers: stressWorkers,
		Ops:     stressOps,
		Seed:    stressSeed,
		Rate:    stressRate,
		Check:   stressCheck,
		MaxSize: stressMaxSize,
	})
	if err != nil {
		return err
	}
	summary.Backend = backendName

	if jsonOut {
		return printJSON(summary)
	}
	printInfo("Stress run: %d workers, seed %d, %s\n", summary.Workers, summary.Seed, summary.Duration)
	for _, op := range []string{"add", "mark", "start_write", "realloc", "release"} {
		printInfo("  %-12s %d\n", op, summary.Ops[op])
	}
	printInfo("  %-12s %d\n\n", "oom", summary.OOM)
	if !quiet {
		if _, err := summary.Stats.WriteTo(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}

// stress drives b from cfg.Workers goroutines and returns the merged counts.
func stress(ctx context.Context, b *pktbuf.Buffer, cfg stressConfig) (*stressSummary, error) {
	if cfg.Workers < 1 || cfg.MaxSize < 1 {
		return nil, fmt.Errorf("workers and max-size must be positive")
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Workers)
	}

	summary := &stressSummary{Workers: cfg.Workers, Seed: cfg.Seed, Ops: make(map[string]int)}
	var mu sync.Mutex

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := range cfg.Workers {
		g.Go(func() error {
			wk := &worker{
				b:     b,
				rng:   rand.New(rand.NewSource(cfg.Seed + int64(w))),
				cfg:   cfg,
				ops:   make(map[string]int),
				check: cfg.Check,
			}
			err := wk.run(gctx, limiter)

			mu.Lock()
			for op, n := range wk.ops {
				summary.Ops[op] += n
			}
			summary.OOM += wk.oom
			mu.Unlock()

			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	summary.Duration = time.Since(start).Round(time.Millisecond).String()
	summary.Stats = b.Usage()
	if err := verify.Empty(b); err != nil {
		return summary, err
	}
	return summary, nil
}

type worker struct {
	b     *pktbuf.Buffer
	rng   *rand.Rand
	cfg   stressConfig
	live  []*pktbuf.Snip
	ops   map[string]int
	oom   int
	check bool
}

func (w *worker) run(ctx context.Context, limiter *rate.Limiter) (err error) {
	defer func() {
		for _, s := range w.live {
			err = errors.Join(err, w.b.Release(s))
		}
		w.live = nil
	}()

	for range w.cfg.Ops {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := w.step(); err != nil {
			return err
		}
		if w.check {
			if err := verify.Buffer(w.b); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *worker) step() error {
	if len(w.live) == 0 || w.rng.Intn(10) < 3 {
		return w.add()
	}

	i := w.rng.Intn(len(w.live))
	s := w.live[i]
	switch w.rng.Intn(5) {
	case 0:
		if s.Size() < 2 || s.Users() != 1 {
			return nil
		}
		w.ops["mark"]++
		_, err := w.b.Mark(s, 1+w.rng.Intn(s.Size()-1), pktbuf.TypeUDP)
		return w.tolerate(err)

	case 1:
		w.ops["start_write"]++
		w.b.Hold(s, 1)
		dup, err := w.b.StartWrite(s)
		if err != nil {
			return errors.Join(w.tolerate(err), w.b.Release(s))
		}
		w.live = append(w.live, dup)
		return nil

	case 2:
		if s.Next != nil || s.Users() != 1 || s.IsExternal() {
			return nil
		}
		w.ops["realloc"]++
		return w.tolerate(w.b.ReallocData(s, w.rng.Intn(w.cfg.MaxSize)))

	default:
		w.ops["release"]++
		w.live = append(w.live[:i], w.live[i+1:]...)
		return w.b.Release(s)
	}
}

func (w *worker) add() error {
	w.ops["add"]++
	s, err := w.b.Add(nil, nil, 1+w.rng.Intn(w.cfg.MaxSize), pktbuf.TypeUndef)
	if err != nil {
		return w.tolerate(err)
	}
	w.live = append(w.live, s)
	return nil
}

// tolerate swallows out-of-memory results; any other error is fatal.
func (w *worker) tolerate(err error) error {
	if errors.Is(err, pktbuf.ErrNoMemory) {
		w.oom++
		return nil
	}
	return err
}
