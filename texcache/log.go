package texcache

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. It is the default handler so the
// engine never blocks or panics on logging before SetLogger is
// called.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h nopHandler) WithGroup(string) slog.Handler            { return h }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() { loggerPtr.Store(newNopLogger()) }

// SetLogger installs l as the process-wide log sink used by every
// Engine. Passing nil restores the no-op default. Log levels follow
// the convention: Debug for dirty-range copy sizes and per-texture
// load bookkeeping, Info for eviction and abort lifecycle events,
// Warn for request-ring overflow and per-texture load failures.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current process-wide log sink.
func Logger() *slog.Logger { return loggerPtr.Load() }
