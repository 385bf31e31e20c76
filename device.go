package rast3d

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/rast3d/internal/compute"
	"github.com/gogpu/rast3d/internal/cpu"
)

// Device is a compute device: buffers, one loaded kernel program and an
// in-order command queue.
type Device = compute.Device

// DeviceKind identifies the class of a device.
type DeviceKind = compute.Kind

// Device kinds.
const (
	KindCPU = compute.KindCPU
	KindGPU = compute.KindGPU
)

// Backend selects which device to open.
type Backend string

const (
	// BackendAuto opens the first device in priority order that succeeds.
	BackendAuto Backend = "auto"

	// BackendGPU opens the wgpu/hal device. It is registered by importing
	// github.com/gogpu/rast3d/gpu.
	BackendGPU Backend = "gpu"

	// BackendCPU opens the software device. Always registered.
	BackendCPU Backend = "cpu"
)

// ParseBackend converts a backend name. The empty string is BackendAuto.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case "", BackendAuto:
		return BackendAuto, nil
	case BackendGPU, BackendCPU:
		return b, nil
	default:
		return "", fmt.Errorf("rast3d: unknown backend %q (want auto, gpu or cpu)", s)
	}
}

// DeviceConfig is passed to device factories.
type DeviceConfig struct {
	// Workers is the worker count of software devices. Zero uses GOMAXPROCS.
	Workers int
}

// DeviceFactory opens a device.
type DeviceFactory func(cfg DeviceConfig) (Device, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[Backend]DeviceFactory)
	// Priority order for BackendAuto (first success wins).
	backendPriority = []Backend{BackendGPU, BackendCPU}

	// openDevices receives logger updates.
	openDevices = make(map[Device]struct{})
)

func init() {
	RegisterDevice(BackendCPU, func(cfg DeviceConfig) (Device, error) {
		return cpu.New(cpu.WithWorkers(cfg.Workers)), nil
	})
}

// RegisterDevice registers a device factory under a backend name,
// replacing any previous one. Typically called from init functions.
func RegisterDevice(name Backend, factory DeviceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// UnregisterDevice removes a device factory. Useful in tests.
func UnregisterDevice(name Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// AvailableBackends returns the registered backends in priority order.
func AvailableBackends() []Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]Backend, 0, len(factories))
	for _, name := range backendPriority {
		if _, ok := factories[name]; ok {
			names = append(names, name)
		}
	}
	for name := range factories {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// OpenDevice opens a device for the backend. BackendAuto tries every
// registered backend in priority order and logs each failure at Warn
// level before falling back. Failures wrap ErrDeviceInit.
func OpenDevice(b Backend, cfg DeviceConfig) (Device, error) {
	if b == "" || b == BackendAuto {
		var errs []error
		for _, name := range AvailableBackends() {
			d, err := openBackend(name, cfg)
			if err == nil {
				return d, nil
			}
			Logger().Warn("rast3d: backend unavailable, falling back", "backend", name, "err", err)
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return nil, fmt.Errorf("%w: %w", ErrDeviceInit, ErrBackendNotAvailable)
		}
		return nil, errors.Join(errs...)
	}
	return openBackend(b, cfg)
}

func openBackend(name Backend, cfg DeviceConfig) (Device, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceInit, name, ErrBackendNotAvailable)
	}
	d, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceInit, name, err)
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s: factory returned no device", ErrDeviceInit, name)
	}
	trackDevice(d)
	Logger().Info("rast3d: device opened", "backend", name, "device", d.Name(), "kind", d.Kind())
	return d, nil
}

func trackDevice(d Device) {
	propagateLogger(d, Logger())
	registryMu.Lock()
	openDevices[d] = struct{}{}
	registryMu.Unlock()
}

func untrackDevice(d Device) {
	registryMu.Lock()
	delete(openDevices, d)
	registryMu.Unlock()
}
