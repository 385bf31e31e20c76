// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"context"
	"errors"
	"fmt"
)

// Package errors shared by all devices.
var (
	// ErrNoDevice is returned when no device of the requested kind exists.
	ErrNoDevice = errors.New("compute: no device available")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("compute: device closed")

	// ErrTimeout is returned when Finish or ReadBuffer exceeds its deadline.
	ErrTimeout = errors.New("compute: timed out waiting for device")

	// ErrDeviceLost is returned when the device stopped executing commands.
	ErrDeviceLost = errors.New("compute: device lost")

	// ErrUnknownBuffer is returned for a BufferID the device does not own.
	ErrUnknownBuffer = errors.New("compute: unknown buffer")

	// ErrOutOfRange is returned for buffer accesses past the end of a buffer.
	ErrOutOfRange = errors.New("compute: access out of buffer range")

	// ErrNoProgram is returned by Dispatch before LoadProgram succeeded.
	ErrNoProgram = errors.New("compute: no program loaded")
)

// BuildError reports a kernel source that failed to compile.
// Log carries the complete compiler diagnostic text.
type BuildError struct {
	Label string
	Log   string
	Err   error
}

func (e *BuildError) Error() string {
	if e.Log == "" {
		return fmt.Sprintf("compute: build %s failed: %v", e.Label, e.Err)
	}
	return fmt.Sprintf("compute: build %s failed: %v\n%s", e.Label, e.Err, e.Log)
}

func (e *BuildError) Unwrap() error { return e.Err }

// BindingError reports a mismatch between the binding contract and the
// kernel source or a dispatch.
type BindingError struct {
	Entry  string
	Role   Role
	Reason string
}

func (e *BindingError) Error() string {
	switch {
	case e.Entry == "":
		return "compute: binding: " + e.Reason
	case e.Role == "":
		return fmt.Sprintf("compute: binding %s: %s", e.Entry, e.Reason)
	default:
		return fmt.Sprintf("compute: binding %s.%s: %s", e.Entry, e.Role, e.Reason)
	}
}

// CheckRange validates an access of n bytes at offset into a buffer of size bytes.
func CheckRange(label string, size, offset, n uint64) error {
	if offset > size || n > size-offset {
		return fmt.Errorf("%w: %s [%d, %d) of %d bytes", ErrOutOfRange, label, offset, offset+n, size)
	}
	return nil
}

// AlignSize rounds a buffer size up to a multiple of 4 with a minimum of 16
// bytes, so zero-length arrays still produce a bindable buffer.
func AlignSize(n uint64) uint64 {
	if n < 16 {
		return 16
	}
	return (n + 3) &^ 3
}

// ContextError converts the error of a finished context into a device
// error. An expired deadline wraps ErrTimeout; cancellation is returned
// unchanged.
func ContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
