//go:build !headless

package display

import (
	"context"
	"errors"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/gogpu/rast3d"
)

// Window shows frames in a desktop window and turns WASD and mouse input
// into camera movement. It is both the rast3d.Display and the
// rast3d.CameraSource of a frame loop; see Run.
type Window struct {
	title         string
	width, height int

	mu      sync.Mutex
	cam     rast3d.Camera
	pix     []byte // latest presented frame
	dirty   bool
	img     *ebiten.Image
	lastX   int
	lastY   int
	tracked bool

	tick    chan struct{}
	done    chan struct{}
	closeMu sync.Once
}

// NewWindow creates a window for width×height frames rendered from cam.
func NewWindow(title string, width, height int, cam rast3d.Camera) (*Window, error) {
	return &Window{
		title:  title,
		width:  width,
		height: height,
		cam:    cam,
		pix:    make([]byte, width*height*4),
		tick:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}, nil
}

// Run opens the window and drives eng until the window is closed, Escape
// is pressed or ctx is done. It must be called from the main goroutine.
func (w *Window) Run(ctx context.Context, eng *rast3d.Engine) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- eng.Run(ctx, w, w)
		w.close()
	}()

	ebiten.SetWindowTitle(w.title)
	ebiten.SetWindowSize(w.width, w.height)
	ebiten.SetWindowResizable(true)
	ebiten.SetCursorMode(ebiten.CursorModeCaptured)

	err := ebiten.RunGame(w)
	w.close()
	cancel()
	if runErr := <-errc; runErr != nil && err == nil {
		err = runErr
	}
	return err
}

// Camera returns the current camera.
func (w *Window) Camera() rast3d.Camera {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cam
}

// NextCamera implements rast3d.CameraSource. It blocks until the window
// asks for the next frame and returns false once the window is closed.
func (w *Window) NextCamera() (rast3d.Camera, bool) {
	select {
	case <-w.tick:
		return w.Camera(), true
	case <-w.done:
		return rast3d.Camera{}, false
	}
}

// Present implements rast3d.Display.
func (w *Window) Present(frame *rast3d.Frame) error {
	if frame.Width() != w.width || frame.Height() != w.height {
		return errors.New("display: frame size does not match the window")
	}
	w.mu.Lock()
	copy(w.pix, frame.Pix())
	w.dirty = true
	w.mu.Unlock()
	return nil
}

func (w *Window) close() {
	w.closeMu.Do(func() { close(w.done) })
}

// Update implements ebiten.Game.
func (w *Window) Update() error {
	select {
	case <-w.done:
		return ebiten.Termination
	default:
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	in := Input{
		Forward:  ebiten.IsKeyPressed(ebiten.KeyW),
		Backward: ebiten.IsKeyPressed(ebiten.KeyS),
		Left:     ebiten.IsKeyPressed(ebiten.KeyA),
		Right:    ebiten.IsKeyPressed(ebiten.KeyD),
	}
	x, y := ebiten.CursorPosition()
	if w.tracked {
		in.DX, in.DY = float32(x-w.lastX), float32(y-w.lastY)
	}
	w.lastX, w.lastY, w.tracked = x, y, true

	w.mu.Lock()
	in.Apply(&w.cam, 1/float32(ebiten.TPS()))
	w.mu.Unlock()

	// Request a frame without blocking the UI thread.
	select {
	case w.tick <- struct{}{}:
	default:
	}
	return nil
}

// Draw implements ebiten.Game.
func (w *Window) Draw(screen *ebiten.Image) {
	if w.img == nil {
		w.img = ebiten.NewImage(w.width, w.height)
	}
	w.mu.Lock()
	if w.dirty {
		w.img.WritePixels(w.pix)
		w.dirty = false
	}
	w.mu.Unlock()
	screen.DrawImage(w.img, nil)
}

// Layout implements ebiten.Game.
func (w *Window) Layout(int, int) (int, int) {
	return w.width, w.height
}
