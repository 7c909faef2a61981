// Package log provides the logging infrastructure shared by all mnemos
// components.
//
// Loggers are injected through constructors rather than accessed as
// globals. Each component narrows its logger with With() so that log
// lines carry the originating component:
//
//	store := knowledge.NewStore(pool, dim, logger.With("component", "store"))
//
// Tests use NewNop to silence output, or NewWithWriter with a buffer to
// assert on it.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger. Using the standard library
// type directly keeps full compatibility with the slog ecosystem and
// avoids a custom interface that would need maintaining.
type Logger = *slog.Logger

// Config defines logger construction options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo.
	Level slog.Level

	// JSON switches output to JSON format. Default: text.
	JSON bool

	// AddSource attaches source file positions to log entries.
	AddSource bool
}

// New creates a logger writing to os.Stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger writing to w. Useful for tests that
// want to inspect output.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards everything. Test-only: using it
// in production silently drops all observability.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
