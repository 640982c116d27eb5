package timewarp

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

type mockLoggerSink struct {
	mu     sync.Mutex
	logger *slog.Logger
}

func (m *mockLoggerSink) SetLogger(l *slog.Logger) {
	m.mu.Lock()
	m.logger = l
	m.mu.Unlock()
}

func (m *mockLoggerSink) current() *slog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logger
}

func hookCount() int {
	loggerHooksMu.Lock()
	defer loggerHooksMu.Unlock()
	return len(loggerHooks)
}

func TestNopHandler_Enabled(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
}

func TestNopHandler_WithAttrsAndGroup(t *testing.T) {
	h := nopHandler{}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("key", "val")}).(nopHandler); !ok {
		t.Error("nopHandler.WithAttrs() did not return nopHandler")
	}
	if _, ok := h.WithGroup("group").(nopHandler); !ok {
		t.Error("nopHandler.WithGroup() did not return nopHandler")
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
}

func TestLoggerDefaultSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("default logger should not be enabled for %v", level)
		}
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	SetLogger(custom)

	got := Logger()
	if got != custom {
		t.Error("Logger() did not return the custom logger set via SetLogger")
	}

	got.Info("test message", "key", "value")
	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("expected log output to contain 'test message', got: %s", buf.String())
	}
}

func TestSetLoggerNilRestoresSilent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)

	l := Logger()
	if l == nil {
		t.Fatal("SetLogger(nil) should set nop logger, not nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should produce a disabled logger")
	}
}

func TestPropagateLoggerDoesNotRetain(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	first := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(first)

	before := hookCount()
	sink := &mockLoggerSink{}
	propagateLogger(sink)
	if sink.current() != first {
		t.Error("propagateLogger did not pass the current logger")
	}
	if n := hookCount(); n != before {
		t.Errorf("hooks = %d after propagateLogger, want %d", n, before)
	}

	SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if sink.current() != first {
		t.Error("SetLogger reached a warper that was only propagated to")
	}

	propagateLogger(struct{}{})
}

func TestRegisterLoggerHook(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() {
		SetLogger(orig)
		RegisterLoggerHook("test", nil)
	})

	first := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(first)

	sink := &mockLoggerSink{}
	before := hookCount()
	RegisterLoggerHook("test", sink.SetLogger)
	if sink.current() != first {
		t.Error("RegisterLoggerHook did not pass the current logger")
	}

	// Re-registering the same package replaces the hook.
	replacement := &mockLoggerSink{}
	RegisterLoggerHook("test", replacement.SetLogger)
	if n := hookCount(); n != before+1 {
		t.Errorf("hooks = %d, want %d", n, before+1)
	}

	second := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(second)
	if replacement.current() != second {
		t.Error("SetLogger did not reach the registered hook")
	}
	if sink.current() != first {
		t.Error("SetLogger reached a replaced hook")
	}

	RegisterLoggerHook("test", nil)
	if n := hookCount(); n != before {
		t.Errorf("hooks = %d after removal, want %d", n, before)
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	const goroutines = 100

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := Logger()
			if l == nil {
				t.Error("Logger() returned nil during concurrent access")
			}
			l.Debug("concurrent read")
		}()
	}

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}

	wg.Wait()
}

func BenchmarkLoggerDisabledLog(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("message", "key", "value")
	}
}
