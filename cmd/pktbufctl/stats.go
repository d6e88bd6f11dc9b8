package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pktbuf/pktbuf"
	"github.com/joshuapare/pktbuf/pktbuf/alloc"
	"github.com/joshuapare/pktbuf/pktbuf/verify"
)

var statsKeep bool

func init() {
	cmd := newStatsCmd()
	cmd.Flags().BoolVar(&statsKeep, "keep", false, "Skip releasing the demo packet before exiting")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show buffer layout and counters for a demo packet",
		Long: `The stats command builds a buffer, receives a demo frame into it,
splits off IPv6 and UDP headers with mark, and prints the arena layout
and allocator counters.

Example:
  pktbufctl stats
  pktbufctl stats --backend dynamic --size 0
  pktbufctl stats --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}

type snipInfo struct {
	Type  string `json:"type"`
	Size  int    `json:"size"`
	Users int    `json:"users"`
	Ref   string `json:"ref"`
}

type statsReport struct {
	Backend string      `json:"backend"`
	Chain   []snipInfo  `json:"chain"`
	Stats   alloc.Stats `json:"stats"`
	Empty   bool        `json:"empty_after_release"`
}

func runStats() error {
	b, closeFn, err := newBuffer()
	if err != nil {
		return err
	}
	defer closeFn()

	pkt, err := receiveDemoFrame(b)
	if err != nil {
		return err
	}
	if err := verify.AllInvariants(b, pkt); err != nil {
		return err
	}

	report := statsReport{Backend: backendName, Chain: describe(pkt), Stats: b.Usage()}
	if !jsonOut {
		printInfo("Demo packet:\n")
		for _, s := range report.Chain {
			printInfo("  %-8s size %4d users %d data %s\n", s.Type, s.Size, s.Users, s.Ref)
		}
		printInfo("\n")
		if !quiet {
			if err := b.Stats(os.Stdout); err != nil {
				return err
			}
		}
	}

	if !statsKeep {
		if err := b.Release(pkt); err != nil {
			return err
		}
		report.Empty = b.IsEmpty()
		printVerbose("Released demo packet, buffer empty: %v\n", report.Empty)
	}

	if jsonOut {
		return printJSON(report)
	}
	return nil
}

// receiveDemoFrame copies a UDP/IPv6 frame into the buffer and marks its
// headers the way a receive path would.
func receiveDemoFrame(b *pktbuf.Buffer) (*pktbuf.Snip, error) {
	frame := make([]byte, 0, 64)
	frame = append(frame, demoIPv6Header()...)
	frame = append(frame, 0x16, 0x33, 0x16, 0x33, 0x00, 0x14, 0x00, 0x00)
	frame = append(frame, "hello, pktbuf"...)

	pkt, err := b.Add(nil, frame, len(frame), pktbuf.TypeUndef)
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	if _, err := b.Mark(pkt, 40, pktbuf.TypeIPv6); err != nil {
		return nil, fmt.Errorf("mark ipv6: %w", err)
	}
	if _, err := b.Mark(pkt, 8, pktbuf.TypeUDP); err != nil {
		return nil, fmt.Errorf("mark udp: %w", err)
	}
	return pkt, nil
}

func demoIPv6Header() []byte {
	hdr := make([]byte, 40)
	hdr[0] = 0x60
	hdr[5] = 8 + 13
	hdr[6] = 17 // next header: UDP
	hdr[7] = 64
	hdr[8], hdr[9] = 0xfe, 0x80
	hdr[23] = 1
	hdr[24], hdr[25] = 0xfe, 0x80
	hdr[39] = 2
	return hdr
}

func describe(pkt *pktbuf.Snip) []snipInfo {
	var out []snipInfo
	for s := pkt; s != nil; s = s.Next {
		out = append(out, snipInfo{
			Type:  s.Type().String(),
			Size:  s.Size(),
			Users: s.Users(),
			Ref:   s.Ref().String(),
		})
	}
	return out
}
