// Package parallel provides the worker pool that runs software kernel
// dispatches across CPU cores.
package parallel

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a pool of goroutines executing kernel ranges.
//
// Each worker owns a queue. A worker whose queue is empty steals from the
// other queues, which balances dispatches where some ranges are slower
// than others (fragment rows crossing many triangles).
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	own := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case work := <-own:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case work := <-own:
				work()
			}
		}
	}
}

func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(self int) func() {
	for i := range p.workers {
		if i == self {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// ExecuteAll runs every work item on the pool and waits for completion.
// A panicking item does not take down its worker; the first panic is
// returned as an error after all items finished.
// If the pool is closed, the items run on the calling goroutine.
func (p *WorkerPool) ExecuteAll(work []func()) error {
	if len(work) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		panicked atomic.Pointer[any]
	)
	wrap := func(fn func()) func() {
		return func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicked.CompareAndSwap(nil, &r)
				}
			}()
			fn()
		}
	}

	wg.Add(len(work))
	for i, fn := range work {
		w := wrap(fn)
		if !p.running.Load() {
			w()
			continue
		}
		select {
		case p.workQueues[i%p.workers] <- w:
		case <-p.done:
			w()
		}
	}
	wg.Wait()

	if r := panicked.Load(); r != nil {
		return fmt.Errorf("parallel: work item panicked: %v", *r)
	}
	return nil
}

// For splits [0, n) into ranges of at least grain elements and runs fn on
// each range in parallel. It returns after every range completed.
func (p *WorkerPool) For(n, grain uint64, fn func(begin, end uint64)) error {
	if n == 0 {
		return nil
	}
	grain = max(grain, 1)
	chunks := uint64(p.workers) * 4
	size := max((n+chunks-1)/chunks, grain)

	work := make([]func(), 0, (n+size-1)/size)
	for begin := uint64(0); begin < n; begin += size {
		b, e := begin, min(begin+size, n)
		work = append(work, func() { fn(b, e) })
	}
	return p.ExecuteAll(work)
}

// Close stops the workers after queued work has run.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
