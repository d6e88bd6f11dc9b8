// Package logger holds the process-wide structured logger used by the packet
// buffer. It discards everything until Init is called or PKTBUF_LOG is set.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvVar enables stderr logging at package init when set to a level name
// (debug, info, warn, error).
const EnvVar = "PKTBUF_LOG"

// L is the global logger instance. It's initialized to discard all output by default.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	JSON    bool       // Emit JSON records instead of text
}

func init() {
	if v := os.Getenv(EnvVar); v != "" {
		lvl, ok := ParseLevel(v)
		if !ok {
			lvl = slog.LevelDebug
		}
		Init(Options{Enabled: true, Level: lvl})
	}
}

// Init configures logging. Call from main() before any buffer traffic.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := opts.Level
	if level == 0 {
		level = slog.LevelInfo
	}

	hopts := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(w, hopts))
		return
	}
	L = slog.New(slog.NewTextHandler(w, hopts))
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "1", "true":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}
