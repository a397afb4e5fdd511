package latticacmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the root logger described by the persistent flags.
// The returned cleanup function flushes and closes the log file, if any.
func newLogger(rf *rootFlags, stderr io.Writer) (*slog.Logger, func() error, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(rf.logLevel)); err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level %q: %w", rf.logLevel, err)
	}

	w := stderr
	cleanup := func() error { return nil }
	if rf.logFile != "" {
		lj := &lumberjack.Logger{
			Filename:   rf.logFile,
			MaxSize:    100, // Megabytes.
			MaxBackups: 5,
			MaxAge:     28, // Days.
			Compress:   true,
		}
		w = lj
		cleanup = lj.Close
	}
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch rf.logFormat {
	case "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("invalid --log-format %q (want text or json)", rf.logFormat)
	}

	return slog.New(h), cleanup, nil
}
