// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/rast3d"
	gpuimpl "github.com/gogpu/rast3d/internal/gpu"
)

var (
	mu       sync.Mutex
	provider gpucontext.DeviceProvider
)

func init() {
	rast3d.RegisterDevice(rast3d.BackendGPU, open)
}

func open(rast3d.DeviceConfig) (rast3d.Device, error) {
	mu.Lock()
	p := provider
	mu.Unlock()

	var (
		d   *gpuimpl.Device
		err error
	)
	if p != nil {
		d, err = gpuimpl.OpenShared(p)
	} else {
		d, err = gpuimpl.Open()
	}
	if err != nil {
		// Return an untyped nil so callers never see a nil *Device in a
		// non-nil interface.
		return nil, err
	}
	return d, nil
}

// SetDeviceProvider makes the GPU backend open devices on the hal device
// of an external provider (e.g. a gogpu window) instead of creating its own
// instance. The provider must also expose HalDevice() and HalQueue().
// Passing nil restores the default.
//
// Call this before opening a device.
func SetDeviceProvider(p gpucontext.DeviceProvider) {
	mu.Lock()
	defer mu.Unlock()
	provider = p
	if p != nil {
		rast3d.Logger().Debug("gpu: device provider set")
	}
}
