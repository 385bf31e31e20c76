package rast3d

import (
	"errors"
	"fmt"

	"github.com/gogpu/rast3d/internal/compute"
)

// Errors returned by rast3d.
var (
	// ErrDeviceInit is wrapped by every device initialization failure.
	ErrDeviceInit = errors.New("rast3d: device initialization failed")

	// ErrInvalidResolution is returned for a zero or negative framebuffer size.
	ErrInvalidResolution = errors.New("rast3d: invalid resolution")

	// ErrInvalidTexture is returned when a texture's pixel count does not
	// match its dimensions.
	ErrInvalidTexture = errors.New("rast3d: invalid texture")

	// ErrInvalidScene is returned when scene data is nil or a model
	// descriptor points outside the triangle or texel arrays.
	ErrInvalidScene = errors.New("rast3d: invalid scene")

	// ErrUnknownModel is returned for a ModelID not issued by the builder.
	ErrUnknownModel = errors.New("rast3d: unknown model")

	// ErrClosed is returned by an Engine after Close.
	ErrClosed = errors.New("rast3d: engine closed")

	// ErrBackendNotAvailable is returned when no registered device can be opened.
	ErrBackendNotAvailable = errors.New("rast3d: backend not available")
)

// Device errors re-exported for errors.Is checks against frame errors.
var (
	ErrTimeout    = compute.ErrTimeout
	ErrDeviceLost = compute.ErrDeviceLost
)

// BuildError reports a kernel compilation failure with the full build log.
type BuildError = compute.BuildError

// BindingError reports a mismatch between a kernel's declared bindings and
// the buffers supplied to it.
type BindingError = compute.BindingError

// Stage names a step of the frame sequence.
type Stage string

// Frame stages, in execution order.
const (
	StageCamera   Stage = "camera"
	StageClear    Stage = "clear"
	StageVertex   Stage = "vertex"
	StageFragment Stage = "fragment"
	StageFinish   Stage = "finish"
	StageReadback Stage = "readback"
)

// FrameError is a per-frame failure. The frame is abandoned; the engine
// stays usable and the next frame starts from a clear.
type FrameError struct {
	Stage Stage
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("rast3d: frame %s: %v", e.Stage, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }
