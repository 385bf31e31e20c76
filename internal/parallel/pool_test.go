package parallel

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// =============================================================================
// WorkerPool Creation Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if pool.Workers() != runtime.GOMAXPROCS(0) {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want GOMAXPROCS", n, pool.Workers())
		}
		pool.Close()
	}
}

// =============================================================================
// ExecuteAll Tests
// =============================================================================

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}
	if err := pool.ExecuteAll(work); err != nil {
		t.Fatalf("ExecuteAll() = %v", err)
	}
	if got := counter.Load(); got != 100 {
		t.Errorf("counter = %d, want 100", got)
	}
}

func TestWorkerPool_ExecuteAllPanic(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	var ran atomic.Int64
	work := []func(){
		func() { ran.Add(1) },
		func() { panic("boom") },
		func() { ran.Add(1) },
	}
	err := pool.ExecuteAll(work)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("ExecuteAll() = %v, want panic error", err)
	}
	if ran.Load() != 2 {
		t.Errorf("ran = %d, want 2", ran.Load())
	}

	// Pool keeps working after a panic.
	if err := pool.ExecuteAll([]func(){func() { ran.Add(1) }}); err != nil {
		t.Errorf("ExecuteAll() after panic = %v", err)
	}
}

func TestWorkerPool_ExecuteAllAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	var counter atomic.Int64
	if err := pool.ExecuteAll([]func(){func() { counter.Add(1) }}); err != nil {
		t.Fatalf("ExecuteAll() = %v", err)
	}
	if counter.Load() != 1 {
		t.Errorf("counter = %d, want 1 (inline execution)", counter.Load())
	}
}

// =============================================================================
// For Tests
// =============================================================================

func TestWorkerPool_ForCoversRange(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	for _, n := range []uint64{1, 7, 64, 1000, 4097} {
		seen := make([]int32, n)
		err := pool.For(n, 16, func(begin, end uint64) {
			for i := begin; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		if err != nil {
			t.Fatalf("For(%d) = %v", n, err)
		}
		for i, c := range seen {
			if c != 1 {
				t.Fatalf("For(%d): index %d visited %d times, want 1", n, i, c)
			}
		}
	}
}

func TestWorkerPool_ForGrain(t *testing.T) {
	pool := NewWorkerPool(8)
	defer pool.Close()

	var mu sync.Mutex
	var sizes []uint64
	_ = pool.For(100, 40, func(begin, end uint64) {
		mu.Lock()
		sizes = append(sizes, end-begin)
		mu.Unlock()
	})
	var total uint64
	for _, s := range sizes {
		total += s
	}
	if total != 100 {
		t.Errorf("For(100, 40) covered %d elements, want 100", total)
	}
	if len(sizes) != 3 {
		t.Errorf("For(100, 40) ran %d ranges, want 3", len(sizes))
	}
}

func TestWorkerPool_ForEmpty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	called := false
	if err := pool.For(0, 1, func(_, _ uint64) { called = true }); err != nil {
		t.Errorf("For(0) = %v", err)
	}
	if called {
		t.Error("For(0) called fn")
	}
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()
	if pool.IsRunning() {
		t.Error("IsRunning() = true after Close")
	}
}

func BenchmarkWorkerPool_For(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	data := make([]float32, 1<<16)
	b.ResetTimer()
	for range b.N {
		_ = pool.For(uint64(len(data)), 1024, func(begin, end uint64) {
			for i := begin; i < end; i++ {
				data[i] = data[i]*0.5 + 1
			}
		})
	}
}
