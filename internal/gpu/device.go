// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rast3d/internal/compute"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// DefaultFenceTimeout bounds a fence wait when the context carries no deadline.
const DefaultFenceTimeout = 5 * time.Second

type buffer struct {
	label string
	usage compute.Usage
	size  uint64
	buf   hal.Buffer
}

// pendingDispatch is a dispatch recorded but not yet submitted.
type pendingDispatch struct {
	k         *kernel
	bindGroup hal.BindGroup
	x, y, z   uint32
}

// Device is a compute.Device on a wgpu/hal device.
//
// Dispatches are recorded and submitted in one command buffer, one compute
// pass per dispatch, when the host next synchronizes (Finish, ReadBuffer)
// or writes a buffer. Consecutive passes are separated by implicit storage
// barriers, so a dispatch observes every write of the dispatches before it.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
	external bool // shared device, not destroyed on Close

	buffers map[compute.BufferID]*buffer
	nextID  uint64
	program *program
	pending []pendingDispatch
	closed  bool
}

var _ compute.Device = (*Device)(nil)

// Open creates a device on the first discrete or integrated GPU exposed by
// the Vulkan backend, falling back to the first adapter of any type.
func Open() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", compute.ErrNoDevice)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}
	d, err := openInstance(instance)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return d, nil
}

func openInstance(instance hal.Instance) (*Device, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: no GPU adapters found", compute.ErrNoDevice)
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("gpu: open device %s: %w", selected.Info.Name, err)
	}
	d := newDevice(openDev.Device, openDev.Queue, selected.Info.Name)
	d.instance = instance
	slogger().Info("gpu: device opened", "adapter", selected.Info.Name, "type", selected.Info.DeviceType)
	return d, nil
}

// OpenShared creates a device on the hal device and queue of an external
// provider. The provider keeps ownership: Close releases only resources
// created through this Device.
func OpenShared(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("gpu: provider HalQueue is not hal.Queue")
	}
	d := newDevice(device, queue, "shared")
	d.external = true
	slogger().Info("gpu: using shared device")
	return d, nil
}

func newDevice(device hal.Device, queue hal.Queue, name string) *Device {
	return &Device{
		device:  device,
		queue:   queue,
		name:    name,
		buffers: make(map[compute.BufferID]*buffer),
	}
}

// SetLogger sets the logger used by the package.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Name returns the adapter name.
func (d *Device) Name() string { return d.name }

// Kind returns compute.KindGPU.
func (d *Device) Kind() compute.Kind { return compute.KindGPU }

func halUsage(u compute.Usage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u.Has(compute.UsageStorage) {
		out |= gputypes.BufferUsageStorage
	}
	if u.Has(compute.UsageUniform) {
		out |= gputypes.BufferUsageUniform
	}
	if u.Has(compute.UsageCopySrc) {
		out |= gputypes.BufferUsageCopySrc
	}
	if u.Has(compute.UsageCopyDst) {
		out |= gputypes.BufferUsageCopyDst
	}
	return out
}

// CreateBuffer allocates a device buffer. Host writes are always allowed,
// so CopyDst is added to every buffer.
func (d *Device) CreateBuffer(desc compute.BufferDesc) (compute.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.InvalidBuffer, compute.ErrClosed
	}
	size := compute.AlignSize(desc.Size)
	if uint64(len(desc.Contents)) > size {
		return compute.InvalidBuffer, fmt.Errorf("gpu: buffer %s: %d bytes of contents exceed size %d",
			desc.Label, len(desc.Contents), size)
	}
	hb, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: halUsage(desc.Usage | compute.UsageCopyDst),
	})
	if err != nil {
		return compute.InvalidBuffer, fmt.Errorf("gpu: create buffer %s (%d bytes): %w", desc.Label, size, err)
	}
	if len(desc.Contents) > 0 {
		d.queue.WriteBuffer(hb, 0, alignBytes(desc.Contents))
	}
	d.nextID++
	id := compute.BufferID(d.nextID)
	d.buffers[id] = &buffer{label: desc.Label, usage: desc.Usage, size: size, buf: hb}
	slogger().Debug("gpu: buffer created", "label", desc.Label, "size", size)
	return id, nil
}

// DestroyBuffer flushes pending work that may reference the buffer and
// destroys it.
func (d *Device) DestroyBuffer(id compute.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	if len(d.pending) > 0 {
		if err := d.flushLocked(DefaultFenceTimeout); err != nil {
			slogger().Warn("gpu: flush before buffer destroy failed", "label", b.label, "err", err)
		}
	}
	d.device.DestroyBuffer(b.buf)
	delete(d.buffers, id)
}

// WriteBuffer submits pending dispatches first so the write is ordered
// after them, then writes through the queue.
func (d *Device) WriteBuffer(id compute.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.lookupLocked(id)
	if err != nil {
		return err
	}
	if err := compute.CheckRange(b.label, b.size, offset, uint64(len(data))); err != nil {
		return err
	}
	if len(d.pending) > 0 {
		if err := d.flushLocked(DefaultFenceTimeout); err != nil {
			return err
		}
	}
	d.queue.WriteBuffer(b.buf, offset, alignBytes(data))
	return nil
}

func (d *Device) lookupLocked(id compute.BufferID) (*buffer, error) {
	if d.closed {
		return nil, compute.ErrClosed
	}
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", compute.ErrUnknownBuffer, id)
	}
	return b, nil
}

// Close destroys the program, all buffers and, unless shared, the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.releasePendingLocked()
	if d.program != nil {
		d.program.destroyLocked()
		d.program = nil
	}
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}
	if !d.external {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device, d.queue, d.instance = nil, nil, nil
	slogger().Debug("gpu: device closed", "name", d.name)
	return nil
}

// fenceTimeout returns the time left until the deadline of ctx, or the
// default timeout when ctx has none.
func fenceTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, compute.ContextError(err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return DefaultFenceTimeout, nil
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 0, fmt.Errorf("%w: %w", compute.ErrTimeout, context.DeadlineExceeded)
	}
	return left, nil
}

// alignBytes pads data to a multiple of 4 bytes as queue writes require.
func alignBytes(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	out := make([]byte, (len(data)+3)&^3)
	copy(out, data)
	return out
}
