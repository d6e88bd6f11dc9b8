package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pktbuf/internal/logger"
	"github.com/joshuapare/pktbuf/pktbuf"
	"github.com/joshuapare/pktbuf/pktbuf/alloc"
)

var (
	// Global flags
	verbose     bool
	quiet       bool
	jsonOut     bool
	backendName string
	backendSize int
	mapped      bool
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "pktbufctl",
	Short: "Exercise and inspect packet buffer backends",
	Long: `pktbufctl builds packet buffers on the host, drives them with
scripted or random workloads, and prints their layout and counters.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		lvl, ok := logger.ParseLevel(logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", logLevel)
		}
		logger.Init(logger.Options{Enabled: true, Level: lvl, JSON: jsonOut})
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVarP(&backendName, "backend", "b", "static", "Backend: static, dynamic, dynamic-nosplit")
	rootCmd.PersistentFlags().
		IntVarP(&backendSize, "size", "s", alloc.DefaultStaticConfig.Size, "Arena size or dynamic byte limit (0 = unbounded)")
	rootCmd.PersistentFlags().BoolVar(&mapped, "mapped", false, "Back the static arena with an anonymous mapping")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log to stderr at debug, info, warn or error")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newBackend builds the backend selected by name.
func newBackend(name string, size int, mapped bool) (alloc.Backend, func() error, error) {
	noClose := func() error { return nil }
	switch name {
	case "static":
		cfg := alloc.StaticConfig{Name: fmt.Sprintf("static-%d", size), Size: size}
		if mapped {
			s, err := alloc.NewStaticMapped(cfg)
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		}
		s, err := alloc.NewStatic(cfg)
		return s, noClose, err
	case "dynamic", "dynamic-nosplit":
		d, err := alloc.NewDynamic(alloc.DynamicConfig{
			Name:       name,
			LimitBytes: int64(size),
			NoSplit:    name == "dynamic-nosplit",
		})
		return d, noClose, err
	}
	return nil, nil, fmt.Errorf("unknown backend %q", name)
}

// newBuffer builds a buffer from the global flags.
func newBuffer(opts ...pktbuf.Option) (*pktbuf.Buffer, func() error, error) {
	backend, closeFn, err := newBackend(backendName, backendSize, mapped)
	if err != nil {
		return nil, nil, err
	}
	printVerbose("Backend: %s (capacity %d)\n", backendName, backend.Capacity())
	opts = append([]pktbuf.Option{pktbuf.WithLogger(logger.L.With(slog.String("backend", backendName)))}, opts...)
	return pktbuf.New(backend, opts...), closeFn, nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
