package rast3d

import "time"

// DefaultFrameTimeout bounds the wait for one frame's kernels and readback.
const DefaultFrameTimeout = 5 * time.Second

// Option configures an Engine during creation.
//
// Example:
//
//	// Software device with 4 workers and a gray background
//	eng, err := rast3d.New(640, 480,
//	    rast3d.WithBackend(rast3d.BackendCPU),
//	    rast3d.WithWorkers(4),
//	    rast3d.WithClearColor(rast3d.RGB(40, 40, 40)))
type Option func(*engineOptions)

type engineOptions struct {
	backend      Backend
	device       Device
	workers      int
	clearColor   Color
	frameTimeout time.Duration
}

func defaultOptions() engineOptions {
	return engineOptions{
		backend:      BackendAuto,
		clearColor:   Black,
		frameTimeout: DefaultFrameTimeout,
	}
}

// WithBackend selects the device backend. Ignored when WithDevice is given.
func WithBackend(b Backend) Option {
	return func(o *engineOptions) {
		o.backend = b
	}
}

// WithDevice renders on an already open device. The engine does not close it.
func WithDevice(d Device) Option {
	return func(o *engineOptions) {
		o.device = d
	}
}

// WithWorkers sets the worker count of the software device.
func WithWorkers(n int) Option {
	return func(o *engineOptions) {
		o.workers = n
	}
}

// WithClearColor sets the background color.
func WithClearColor(c Color) Option {
	return func(o *engineOptions) {
		o.clearColor = c
	}
}

// WithFrameTimeout bounds the wait for one frame. Non-positive values keep
// the default.
func WithFrameTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		if d > 0 {
			o.frameTimeout = d
		}
	}
}
