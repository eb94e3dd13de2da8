// package cmd holds what the commands share: the MIDI input, which needs cgo,
// and logging and signal setup.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
)

// Logger returns a text logger on stderr, at debug level if debug is set.
func Logger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// InterruptContext is cancelled on the first interrupt.
func InterruptContext() context.Context {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ctx
}
