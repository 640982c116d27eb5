package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_Create(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"explicit", 4, 4},
		{"zero uses GOMAXPROCS", 0, runtime.GOMAXPROCS(0)},
		{"negative uses GOMAXPROCS", -3, runtime.GOMAXPROCS(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(tt.workers)
			defer p.Close()
			if got := p.Workers(); got != tt.want {
				t.Errorf("Workers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPool_ForEachVisitsEveryIndexOnce(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	const n = 1000
	var hits [n]atomic.Int32
	p.ForEach(n, func(i int) { hits[i].Add(1) })

	for i := range hits {
		if got := hits[i].Load(); got != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, got)
		}
	}
}

func TestPool_ForEachEmpty(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	called := false
	p.ForEach(0, func(int) { called = true })
	p.ForEach(-1, func(int) { called = true })
	if called {
		t.Error("ForEach with n <= 0 should not call fn")
	}
}

func TestPool_ForEachUnevenWork(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var total atomic.Int64
	p.ForEach(16, func(i int) {
		if i%4 == 0 {
			time.Sleep(2 * time.Millisecond)
		}
		total.Add(int64(i))
	})

	if got := total.Load(); got != 120 {
		t.Errorf("sum = %d, want 120", got)
	}
}

func TestPool_ForEachAfterCloseRunsInline(t *testing.T) {
	p := NewPool(2)
	p.Close()

	var count atomic.Int32
	p.ForEach(10, func(int) { count.Add(1) })
	if got := count.Load(); got != 10 {
		t.Errorf("count = %d, want 10", got)
	}
}

func TestPool_CloseIdempotent(t *testing.T) {
	p := NewPool(2)
	p.Close()
	p.Close()
}

func TestPool_NoGoroutineLeak(t *testing.T) {
	before := runtime.NumGoroutine()
	for range 10 {
		p := NewPool(8)
		p.ForEach(32, func(int) {})
		p.Close()
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("goroutines: before=%d after=%d", before, runtime.NumGoroutine())
}

func BenchmarkPool_ForEach(b *testing.B) {
	p := NewPool(0)
	defer p.Close()

	b.ReportAllocs()
	for b.Loop() {
		p.ForEach(64, func(int) {})
	}
}
