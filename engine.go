package rast3d

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Display receives rendered frames. The frame is reused by the engine, so
// a Display that keeps it past Present must copy it.
type Display interface {
	Present(frame *Frame) error
}

// CameraSource supplies the camera for each frame. It returns false to
// stop the frame loop.
type CameraSource interface {
	NextCamera() (Camera, bool)
}

// FixedCamera is a CameraSource that returns the same camera for a number
// of frames. Frames <= 0 means forever.
type FixedCamera struct {
	Camera Camera
	Frames int

	served int
}

// NextCamera implements CameraSource.
func (f *FixedCamera) NextCamera() (Camera, bool) {
	if f.Frames > 0 && f.served >= f.Frames {
		return Camera{}, false
	}
	f.served++
	return f.Camera, true
}

// Stats summarizes the frames rendered by an Engine.
type Stats struct {
	Frames    uint64
	Dropped   uint64
	Triangles int
	LastFrame time.Duration
	TotalTime time.Duration
}

// AverageFrame returns the mean duration of successful frames.
func (s Stats) AverageFrame() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Frames)
}

// Engine renders scenes on one device. An Engine is driven by a single
// goroutine; its methods are not safe for concurrent use.
type Engine struct {
	dev        Device
	ownsDevice bool
	pipe       *Pipeline
	geo        *GeometryBuffers
	fr         *FrameResources
	frame      *Frame
	opts       engineOptions
	stats      Stats
	closed     bool
}

// New opens a device and creates the pipeline and frame resources for a
// width×height framebuffer. The scene starts empty.
//
// Every failure releases what was created and wraps ErrDeviceInit,
// ErrInvalidResolution, a *BuildError or a *BindingError.
func New(width, height int, opts ...Option) (*Engine, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidResolution, width, height)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{opts: o, frame: NewFrame(width, height)}
	if o.device != nil {
		e.dev = o.device
	} else {
		dev, err := OpenDevice(o.backend, DeviceConfig{Workers: o.workers})
		if err != nil {
			return nil, err
		}
		e.dev, e.ownsDevice = dev, true
	}

	if err := e.init(width, height); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init(width, height int) error {
	var err error
	if e.pipe, err = NewPipeline(e.dev); err != nil {
		return err
	}
	if e.geo, err = UploadGeometry(e.dev, &SceneData{}); err != nil {
		return err
	}
	if e.fr, err = NewFrameResources(e.pipe, width, height, 0); err != nil {
		return err
	}
	if err := e.fr.SetClearColor(e.opts.clearColor); err != nil {
		return err
	}
	return e.fr.setScene(e.geo)
}

// Device returns the engine's device.
func (e *Engine) Device() Device { return e.dev }

// Resources returns the frame resources.
func (e *Engine) Resources() *FrameResources { return e.fr }

// Geometry returns the uploaded scene buffers.
func (e *Engine) Geometry() *GeometryBuffers { return e.geo }

// Size returns the framebuffer size.
func (e *Engine) Size() (width, height int) { return e.fr.Size() }

// Stats returns frame statistics.
func (e *Engine) Stats() Stats { return e.stats }

// UploadScene replaces the scene. The old geometry is released and the
// projected-vertex buffer is resized for the new vertex count. Data that
// fails SceneData.Validate is rejected and the current scene is kept.
func (e *Engine) UploadScene(data *SceneData) error {
	if e.closed {
		return ErrClosed
	}
	geo, err := UploadGeometry(e.dev, data)
	if err != nil {
		return err
	}
	if err := e.fr.ResizeScratch(geo.NumVertices()); err != nil {
		geo.Release()
		return err
	}
	if err := e.fr.setScene(geo); err != nil {
		geo.Release()
		return err
	}
	e.geo.Release()
	e.geo = geo
	e.stats.Triangles = geo.NumTriangles()
	return nil
}

// Resize rebuilds the frame resources. Invalid sizes return
// ErrInvalidResolution and change nothing.
func (e *Engine) Resize(width, height int) error {
	if e.closed {
		return ErrClosed
	}
	if err := e.fr.Resize(width, height); err != nil {
		return err
	}
	e.frame.resize(width, height)
	return nil
}

// SetClearColor sets the background color.
func (e *Engine) SetClearColor(c Color) error {
	if e.closed {
		return ErrClosed
	}
	e.opts.clearColor = c
	return e.fr.SetClearColor(c)
}

// SetWorldTransform sets the transform applied to every model after its
// own transform.
func (e *Engine) SetWorldTransform(m Mat4) error {
	if e.closed {
		return ErrClosed
	}
	return e.fr.WriteTransform(m)
}

// RenderFrame renders one frame from cam and returns the engine's frame,
// which is overwritten by the next call.
//
// The clear, vertex and fragment kernels are enqueued back to back; the
// host waits once, bounded by the frame timeout, then reads the color
// buffer. A failure returns a *FrameError naming the stage and abandons
// the frame; the next call starts over from a clear.
func (e *Engine) RenderFrame(ctx context.Context, cam *Camera) (*Frame, error) {
	if e.closed {
		return nil, ErrClosed
	}
	start := time.Now()

	if err := e.fr.WriteCamera(cam.Position, cam.View); err != nil {
		return nil, e.drop(StageCamera, err)
	}
	if cam.Projection != e.fr.Projection() {
		if err := e.fr.WriteProjection(cam.Projection); err != nil {
			return nil, e.drop(StageCamera, err)
		}
	}
	if err := e.pipe.Clear(e.fr); err != nil {
		return nil, e.drop(StageClear, err)
	}
	if err := e.pipe.Vertex(e.fr, e.geo); err != nil {
		return nil, e.drop(StageVertex, err)
	}
	if err := e.pipe.Fragment(e.fr, e.geo); err != nil {
		return nil, e.drop(StageFragment, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.frameTimeout)
	defer cancel()
	if err := e.dev.Finish(ctx); err != nil {
		return nil, e.drop(StageFinish, err)
	}
	if err := e.fr.ReadColor(ctx, e.frame.pix); err != nil {
		return nil, e.drop(StageReadback, err)
	}

	elapsed := time.Since(start)
	e.stats.Frames++
	e.stats.LastFrame = elapsed
	e.stats.TotalTime += elapsed
	Logger().Debug("rast3d: frame rendered", "frame", e.stats.Frames, "elapsed", elapsed)
	return e.frame, nil
}

func (e *Engine) drop(stage Stage, err error) error {
	e.stats.Dropped++
	return &FrameError{Stage: stage, Err: err}
}

// Run renders frames until ctx is done or source returns false, presenting
// each one to sink. Frame errors are logged and the frame is skipped, so
// the sink keeps showing the previous one. Run returns nil on a normal
// stop and the error of sink.Present when presenting fails.
func (e *Engine) Run(ctx context.Context, source CameraSource, sink Display) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		cam, ok := source.NextCamera()
		if !ok {
			return nil
		}
		frame, err := e.RenderFrame(ctx, &cam)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			Logger().Warn("rast3d: frame dropped", "err", err, "dropped", e.stats.Dropped)
			continue
		}
		if err := sink.Present(frame); err != nil {
			return fmt.Errorf("rast3d: present: %w", err)
		}
	}
}

// Close releases geometry, frame resources and kernels, then closes the
// device if the engine opened it. Safe to call more than once.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.geo != nil {
		e.geo.Release()
	}
	if e.fr != nil {
		e.fr.Release()
	}
	if e.pipe != nil {
		e.pipe.Release()
	}
	if e.dev == nil || !e.ownsDevice {
		return nil
	}
	untrackDevice(e.dev)
	return e.dev.Close()
}
