// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compute defines the device abstraction the rasterizer runs on.
//
// A Device owns buffers, one loaded Program and an in-order command queue.
// Dispatches and buffer writes are executed in submission order; Finish and
// ReadBuffer block until everything submitted before them has completed.
// Two implementations exist: the wgpu/hal device in internal/gpu and the
// software device in internal/cpu.
package compute

import (
	"context"
)

// Kind identifies the class of a device.
type Kind uint8

const (
	// KindCPU is the software device.
	KindCPU Kind = iota
	// KindGPU is a hardware device driven through wgpu/hal.
	KindGPU
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCPU:
		return "cpu"
	case KindGPU:
		return "gpu"
	default:
		return "unknown"
	}
}

// BufferID is an opaque handle to a device buffer.
// The zero value is never a valid buffer.
type BufferID uint64

// InvalidBuffer is the zero BufferID.
const InvalidBuffer BufferID = 0

// Usage describes how a buffer is bound.
type Usage uint32

const (
	// UsageStorage marks a buffer bindable as a storage buffer.
	UsageStorage Usage = 1 << iota
	// UsageUniform marks a buffer bindable as a uniform buffer.
	UsageUniform
	// UsageCopySrc allows the buffer to be read back.
	UsageCopySrc
	// UsageCopyDst allows host writes into the buffer.
	UsageCopyDst
)

// Has reports whether all bits of flag are set.
func (u Usage) Has(flag Usage) bool { return u&flag == flag }

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	// Label is used in logs and error messages.
	Label string

	// Size in bytes. Rounded up to a multiple of 4 by the device.
	Size uint64

	Usage Usage

	// Contents, when non-nil, initializes the buffer. len(Contents) must
	// not exceed Size.
	Contents []byte
}

// Grid is the number of kernel invocations along each axis.
// Devices derive workgroup counts from it.
type Grid struct {
	X, Y, Z uint32
}

// Grid1D returns a one-dimensional grid of n invocations.
func Grid1D(n uint32) Grid { return Grid{X: n, Y: 1, Z: 1} }

// Grid2D returns a two-dimensional grid of w by h invocations.
func Grid2D(w, h uint32) Grid { return Grid{X: w, Y: h, Z: 1} }

// Count returns the total number of invocations.
func (g Grid) Count() uint64 {
	return uint64(g.X) * uint64(g.Y) * uint64(max(g.Z, 1))
}

// Empty reports whether the grid has no invocations.
func (g Grid) Empty() bool { return g.X == 0 || g.Y == 0 || g.Z == 0 }

// Kernel is a compiled entry point of a loaded Program.
type Kernel interface {
	Signature() *Signature
}

// Program is the set of kernels built from one kernel source.
type Program interface {
	// Kernel returns the kernel for an entry point name.
	Kernel(entry string) (Kernel, bool)

	// Release destroys the kernels. The device stays usable.
	Release()
}

// ProgramDesc describes a program to load.
type ProgramDesc struct {
	Label string

	// Source is the WGSL source compiled by hardware devices.
	Source string

	// Signatures lists every entry point with its binding contract.
	Signatures []Signature

	// Host holds the Go implementations run by software devices,
	// keyed by entry point name.
	Host map[string]HostKernel
}

// Device is the compute device abstraction.
//
// Implementations are safe for use by a single goroutine driving frames;
// the queue runs concurrently with that goroutine.
type Device interface {
	// Name returns a human readable device name (adapter name for GPUs).
	Name() string

	// Kind returns the device class.
	Kind() Kind

	// CreateBuffer allocates a buffer, optionally initialized from desc.Contents.
	CreateBuffer(desc BufferDesc) (BufferID, error)

	// DestroyBuffer releases a buffer. Unknown IDs are ignored.
	DestroyBuffer(id BufferID)

	// WriteBuffer enqueues a host to device copy. data is copied before return.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// ReadBuffer waits for prior work and copies buffer contents into dst.
	ReadBuffer(ctx context.Context, id BufferID, offset uint64, dst []byte) error

	// LoadProgram builds every kernel of desc. A device holds one program
	// at a time; loading a new one releases the previous.
	LoadProgram(desc ProgramDesc) (Program, error)

	// Dispatch enqueues one kernel invocation grid. Bindings are checked
	// against the kernel signature before anything is enqueued.
	Dispatch(k Kernel, b Bindings, grid Grid) error

	// Finish blocks until every enqueued command has completed or ctx is done.
	Finish(ctx context.Context) error

	// Close releases the program, all buffers and the queue.
	Close() error
}
