// Package logging builds the clog logger used by the orchestrator and the
// secret masking applied to everything it writes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/chainguard-dev/clog"
)

// Options configures New.
type Options struct {
	// Writer receives formatted records. Defaults to io.Discard.
	Writer io.Writer

	// Level is the minimum level emitted.
	Level slog.Level

	// Masker redacts registered secrets. Optional.
	Masker *Masker
}

// New returns a text logger that redacts secrets registered with
// opts.Masker.
func New(opts Options) *clog.Logger {
	w := opts.Writer
	if w == nil {
		w = io.Discard
	}

	var h slog.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level})
	if opts.Masker != nil {
		h = NewHandler(h, opts.Masker)
	}
	return clog.New(h)
}

// WithLogger attaches logger to ctx so clog.FromContext finds it.
func WithLogger(ctx context.Context, logger *clog.Logger) context.Context {
	return clog.WithLogger(ctx, logger)
}

// ParseLevel parses debug, info, warn or error. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
