// Package logging wraps zerolog in the capability-at-construction style
// used throughout the retrieval pack's Go repositories: a single package
// level logger, disabled by default, that call sites fetch instead of
// threading an interface through every function signature.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.Mutex
	logger = zerolog.New(io.Discard).With().Timestamp().Logger()
)

// L returns the shared logger. By default it discards everything, so
// library code can log liberally without forcing output on callers that
// never opted in.
func L() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return &logger
}

// EnableConsole points the shared logger at stderr in human-readable form.
// Intended for cmd/hss; library code should never call this.
func EnableConsole(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
