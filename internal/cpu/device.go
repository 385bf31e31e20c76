// Package cpu implements compute.Device in software.
//
// Buffers are 32-bit word arrays. Commands run on a single queue goroutine
// in submission order, and each dispatch is split across the cores by a
// parallel.WorkerPool. Kernels are the Go implementations supplied in
// compute.ProgramDesc.Host.
package cpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rast3d/internal/compute"
	"github.com/gogpu/rast3d/internal/parallel"
)

// queueDepth bounds the number of commands in flight.
const queueDepth = 64

// minGrain is the smallest invocation range handed to one worker.
const minGrain = 256

type buffer struct {
	label string
	usage compute.Usage
	size  uint64
	words []uint32
}

type command struct {
	name string
	run  func() error
	done chan error
}

// Device is the software compute device.
type Device struct {
	mu      sync.Mutex
	buffers map[compute.BufferID]*buffer
	nextID  uint64
	program *program

	pool   *parallel.WorkerPool
	queue  chan command
	exited chan struct{}
	closed atomic.Bool
	sendMu sync.RWMutex // held for writing while the queue is closed

	// errMu guards queueErr, the first failure of a command without a
	// waiter. It is reported by the next Finish or ReadBuffer.
	errMu    sync.Mutex
	queueErr error
}

var _ compute.Device = (*Device)(nil)

// Option configures a Device.
type Option func(*options)

type options struct {
	workers int
}

// WithWorkers sets the number of worker goroutines. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// New creates a software device and starts its queue.
func New(opts ...Option) *Device {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	d := &Device{
		buffers: make(map[compute.BufferID]*buffer),
		pool:    parallel.NewWorkerPool(o.workers),
		queue:   make(chan command, queueDepth),
		exited:  make(chan struct{}),
	}
	go d.run()
	slogger().Debug("cpu: device created", "workers", d.pool.Workers())
	return d
}

// SetLogger sets the logger used by the package.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Name returns a description including the worker count.
func (d *Device) Name() string {
	return fmt.Sprintf("software (%d workers, %s/%s)", d.pool.Workers(), runtime.GOOS, runtime.GOARCH)
}

// Kind returns compute.KindCPU.
func (d *Device) Kind() compute.Kind { return compute.KindCPU }

func (d *Device) run() {
	defer close(d.exited)
	for cmd := range d.queue {
		err := d.exec(cmd)
		if cmd.done != nil {
			cmd.done <- err
			continue
		}
		if err != nil {
			slogger().Warn("cpu: command failed", "cmd", cmd.name, "err", err)
			d.errMu.Lock()
			if d.queueErr == nil {
				d.queueErr = err
			}
			d.errMu.Unlock()
		}
	}
}

func (d *Device) exec(cmd command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", compute.ErrDeviceLost, cmd.name, r)
		}
	}()
	return cmd.run()
}

func (d *Device) takeQueueErr() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	err := d.queueErr
	d.queueErr = nil
	return err
}

func (d *Device) enqueue(cmd command) error {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	if d.closed.Load() {
		return compute.ErrClosed
	}
	d.queue <- cmd
	return nil
}

// wait enqueues a command with a completion channel and waits for it.
func (d *Device) wait(ctx context.Context, name string, run func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cpu: %s: %w", name, compute.ContextError(err))
	}
	done := make(chan error, 1)
	if err := d.enqueue(command{name: name, run: run, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		if qerr := d.takeQueueErr(); qerr != nil {
			return qerr
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("cpu: %s: %w", name, compute.ContextError(ctx.Err()))
	}
}

func (d *Device) lookup(id compute.BufferID) (*buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", compute.ErrUnknownBuffer, id)
	}
	return b, nil
}

// CreateBuffer allocates a zeroed buffer, initialized from desc.Contents.
func (d *Device) CreateBuffer(desc compute.BufferDesc) (compute.BufferID, error) {
	if d.closed.Load() {
		return compute.InvalidBuffer, compute.ErrClosed
	}
	size := compute.AlignSize(desc.Size)
	if uint64(len(desc.Contents)) > size {
		return compute.InvalidBuffer, fmt.Errorf("cpu: buffer %s: %d bytes of contents exceed size %d",
			desc.Label, len(desc.Contents), size)
	}
	b := &buffer{
		label: desc.Label,
		usage: desc.Usage,
		size:  size,
		words: make([]uint32, size/4),
	}
	putBytes(b.words, 0, desc.Contents)

	d.mu.Lock()
	d.nextID++
	id := compute.BufferID(d.nextID)
	d.buffers[id] = b
	d.mu.Unlock()

	slogger().Debug("cpu: buffer created", "label", desc.Label, "size", size)
	return id, nil
}

// DestroyBuffer releases a buffer. Commands already enqueued keep their
// reference and complete normally.
func (d *Device) DestroyBuffer(id compute.BufferID) {
	d.mu.Lock()
	delete(d.buffers, id)
	d.mu.Unlock()
}

// WriteBuffer copies data now and applies it in queue order.
func (d *Device) WriteBuffer(id compute.BufferID, offset uint64, data []byte) error {
	b, err := d.lookup(id)
	if err != nil {
		return err
	}
	if offset%4 != 0 {
		return fmt.Errorf("cpu: write %s: offset %d not 4-byte aligned", b.label, offset)
	}
	if err := compute.CheckRange(b.label, b.size, offset, uint64(len(data))); err != nil {
		return err
	}
	payload := append([]byte(nil), data...)
	return d.enqueue(command{
		name: "write " + b.label,
		run: func() error {
			putBytes(b.words, offset/4, payload)
			return nil
		},
	})
}

// ReadBuffer waits for prior commands and copies the buffer into dst.
func (d *Device) ReadBuffer(ctx context.Context, id compute.BufferID, offset uint64, dst []byte) error {
	b, err := d.lookup(id)
	if err != nil {
		return err
	}
	if offset%4 != 0 {
		return fmt.Errorf("cpu: read %s: offset %d not 4-byte aligned", b.label, offset)
	}
	if err := compute.CheckRange(b.label, b.size, offset, uint64(len(dst))); err != nil {
		return err
	}
	// The copy goes through a private slice so a timed out read never
	// writes into dst after returning.
	tmp := make([]byte, len(dst))
	err = d.wait(ctx, "read "+b.label, func() error {
		getBytes(tmp, b.words, offset/4)
		return nil
	})
	if err != nil {
		return err
	}
	copy(dst, tmp)
	return nil
}

// Finish blocks until every enqueued command has run or ctx is done.
func (d *Device) Finish(ctx context.Context) error {
	return d.wait(ctx, "finish", func() error { return nil })
}

// Close drains the queue and releases all buffers.
func (d *Device) Close() error {
	d.sendMu.Lock()
	if !d.closed.CompareAndSwap(false, true) {
		d.sendMu.Unlock()
		return nil
	}
	close(d.queue)
	d.sendMu.Unlock()
	<-d.exited
	d.pool.Close()

	d.mu.Lock()
	n := len(d.buffers)
	d.buffers = make(map[compute.BufferID]*buffer)
	d.program = nil
	d.mu.Unlock()

	slogger().Debug("cpu: device closed", "leaked_buffers", n)
	return nil
}

func putBytes(words []uint32, at uint64, data []byte) {
	n := len(data) / 4
	for i := range n {
		words[at+uint64(i)] = binary.LittleEndian.Uint32(data[i*4:])
	}
	if rem := len(data) % 4; rem != 0 {
		var tail [4]byte
		binary.LittleEndian.PutUint32(tail[:], words[at+uint64(n)])
		copy(tail[:], data[n*4:])
		words[at+uint64(n)] = binary.LittleEndian.Uint32(tail[:])
	}
}

func getBytes(dst []byte, words []uint32, at uint64) {
	n := len(dst) / 4
	for i := range n {
		binary.LittleEndian.PutUint32(dst[i*4:], words[at+uint64(i)])
	}
	if rem := len(dst) % 4; rem != 0 {
		var tail [4]byte
		binary.LittleEndian.PutUint32(tail[:], words[at+uint64(n)])
		copy(dst[n*4:], tail[:rem])
	}
}
