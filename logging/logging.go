// Package logging provides the one structured logger threaded through the
// evaluator, the image loader, the bridge, and the HTTP surface. No
// component in this repository instantiates its own logger ad hoc.
package logging

import (
	"log/slog"
	"os"
)

// New builds the shared logger. debug raises the minimum level to
// slog.LevelDebug so per-send detail (receiver class, selector,
// primitive-vs-method) becomes visible; otherwise only Info and above are
// emitted.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// Transcript is the tag used on every slog entry produced by the bridge's
// log: entry point, so downstream log aggregation can filter on it. The
// HTTP surface's /ws push path does not read the log; it receives the same
// lines through bridge.Subscribe.
const Transcript = "transcript"
