// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"context"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rast3d/internal/compute"
)

// Dispatch checks the bindings, creates the bind group and records the
// dispatch. Nothing reaches the GPU until the next synchronization point.
func (d *Device) Dispatch(k compute.Kernel, b compute.Bindings, grid compute.Grid) error {
	kk, ok := k.(*kernel)
	if !ok {
		return fmt.Errorf("gpu: dispatch: kernel %T not created by this device", k)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrClosed
	}
	if d.program == nil || d.program.kernels[kk.sig.Entry] != kk {
		return fmt.Errorf("gpu: dispatch %s: %w", kk.sig.Entry, compute.ErrNoProgram)
	}
	if err := b.Check(&kk.sig); err != nil {
		return err
	}

	x, y, z := kk.sig.WorkgroupCount(grid)
	if x == 0 || y == 0 || z == 0 {
		return nil
	}

	entries := make([]gputypes.BindGroupEntry, 0, len(kk.sig.Slots))
	for _, sl := range kk.sig.Slots {
		buf, err := d.lookupLocked(b[sl.Role])
		if err != nil {
			return fmt.Errorf("gpu: dispatch %s.%s: %w", kk.sig.Entry, sl.Role, err)
		}
		if !buf.usage.Has(sl.Access.RequiredUsage()) {
			return &compute.BindingError{
				Entry: kk.sig.Entry, Role: sl.Role,
				Reason: fmt.Sprintf("buffer %s lacks usage for %s binding", buf.label, sl.Access),
			}
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  sl.Binding,
			Resource: gputypes.BufferBinding{Buffer: buf.buf.NativeHandle(), Offset: 0, Size: buf.size},
		})
	}
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   kk.sig.Entry + "_bind",
		Layout:  kk.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group %s: %w", kk.sig.Entry, err)
	}
	d.pending = append(d.pending, pendingDispatch{k: kk, bindGroup: bg, x: x, y: y, z: z})
	slogger().Debug("gpu: dispatch recorded", "kernel", kk.sig.Entry, "workgroups", [3]uint32{x, y, z})
	return nil
}

// Finish submits recorded dispatches and waits for the GPU.
func (d *Device) Finish(ctx context.Context) error {
	timeout, err := fenceTimeout(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrClosed
	}
	return d.flushLocked(timeout)
}

// ReadBuffer submits recorded dispatches together with a copy into a
// staging buffer, waits, and reads the staging buffer.
func (d *Device) ReadBuffer(ctx context.Context, id compute.BufferID, offset uint64, dst []byte) error {
	timeout, err := fenceTimeout(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.lookupLocked(id)
	if err != nil {
		return err
	}
	if err := compute.CheckRange(b.label, b.size, offset, uint64(len(dst))); err != nil {
		return err
	}
	size := (uint64(len(dst)) + 3) &^ 3
	if offset+size > b.size {
		size = b.size - offset
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label + "_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create staging buffer %s: %w", b.label, err)
	}
	defer d.device.DestroyBuffer(staging)

	copyOp := func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(b.buf, staging, []hal.BufferCopy{
			{SrcOffset: offset, DstOffset: 0, Size: size},
		})
	}
	if err := d.submitLocked(timeout, copyOp); err != nil {
		return err
	}

	readback := make([]byte, size)
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return fmt.Errorf("gpu: readback %s: %w", b.label, err)
	}
	copy(dst, readback)
	return nil
}

func (d *Device) flushLocked(timeout time.Duration) error {
	if len(d.pending) == 0 {
		return nil
	}
	return d.submitLocked(timeout, nil)
}

// submitLocked encodes every pending dispatch in its own compute pass,
// appends the optional tail commands, submits and waits on a fence.
// Pending bind groups are released whether or not the submit succeeds.
func (d *Device) submitLocked(timeout time.Duration, tail func(hal.CommandEncoder)) error {
	defer d.releasePendingLocked()

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "raster_encoder"})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("raster"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}
	for _, p := range d.pending {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: p.k.sig.Entry})
		pass.SetPipeline(p.k.pipeline)
		pass.SetBindGroup(0, p.bindGroup, nil)
		pass.Dispatch(p.x, p.y, p.z)
		pass.End()
	}
	if tail != nil {
		tail(encoder)
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("%w: submit: %w", compute.ErrDeviceLost, err)
	}
	ok, err := d.device.Wait(fence, 1, timeout)
	if err != nil {
		return fmt.Errorf("%w: wait: %w", compute.ErrDeviceLost, err)
	}
	if !ok {
		return fmt.Errorf("%w: fence not signaled after %v", compute.ErrTimeout, timeout)
	}
	return nil
}

func (d *Device) releasePendingLocked() {
	for _, p := range d.pending {
		if p.bindGroup != nil && d.device != nil {
			d.device.DestroyBindGroup(p.bindGroup)
		}
	}
	d.pending = d.pending[:0]
}
