package timewarp

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// loggerHooks are the package setters of sub-packages that keep their own
// logger, keyed by package name.
var (
	loggerHooksMu sync.Mutex
	loggerHooks   = make(map[string]func(*slog.Logger))
)

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for timewarp and all its sub-packages.
// By default, timewarp produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by timewarp:
//   - [slog.LevelDebug]: per-frame diagnostics (stale frames, warp dispatch)
//   - [slog.LevelInfo]: lifecycle events (scheduler start/stop, adapter selected)
//   - [slog.LevelWarn]: non-fatal issues (warp or present errors, fence timeouts)
//
// Example:
//
//	// Enable debug-level logging for full diagnostics:
//	timewarp.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	loggerHooksMu.Lock()
	hooks := make([]func(*slog.Logger), 0, len(loggerHooks))
	for _, fn := range loggerHooks {
		hooks = append(hooks, fn)
	}
	loggerHooksMu.Unlock()
	for _, fn := range hooks {
		fn(l)
	}
}

// RegisterLoggerHook makes SetLogger call fn with every new logger. name
// identifies the package owning fn; registering a name again replaces its
// hook. fn is called once with the current logger. Sub-packages with their
// own package logger call this from init.
func RegisterLoggerHook(name string, fn func(*slog.Logger)) {
	loggerHooksMu.Lock()
	if fn == nil {
		delete(loggerHooks, name)
	} else {
		loggerHooks[name] = fn
	}
	loggerHooksMu.Unlock()
	if fn != nil {
		fn(Logger())
	}
}

// Logger returns the current logger used by timewarp.
// Sub-packages call this to share the same logger configuration without
// introducing import cycles.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by warpers that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the current logger to v if it implements
// loggerSetter. Called from NewScheduler for every warper. v is not
// retained; packages that must follow later SetLogger calls use
// RegisterLoggerHook.
func propagateLogger(v any) {
	if ls, ok := v.(loggerSetter); ok {
		ls.SetLogger(Logger())
	}
}
