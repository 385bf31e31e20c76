// Command rast3d renders a scene file with the rast3d engine.
//
// Without -headless it opens a window (WASD to move, mouse to look, Esc to
// quit). With -headless it renders -frames frames, optionally turning the
// camera each frame, and writes them as PNG files when -out is set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/rast3d"
	"github.com/gogpu/rast3d/config"
	"github.com/gogpu/rast3d/internal/display"

	_ "github.com/gogpu/rast3d/gpu" // register the GPU backend
)

func main() {
	var (
		scenePath = flag.String("scene", "", "scene file (YAML); a cube scene when empty")
		backend   = flag.String("backend", "", "device backend: auto, gpu or cpu (overrides the scene)")
		width     = flag.Int("width", 0, "framebuffer width (overrides the scene)")
		height    = flag.Int("height", 0, "framebuffer height (overrides the scene)")
		headless  = flag.Bool("headless", false, "render without a window")
		frames    = flag.Int("frames", 1, "frames to render in headless mode")
		turn      = flag.Float64("turn", 0, "camera yaw change per headless frame, degrees")
		out       = flag.String("out", "", "directory for PNG frames in headless mode")
		scale     = flag.Float64("scale", 1, "PNG output scale factor")
		progress  = flag.Bool("progress", false, "show load progress bars")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	rast3d.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	scene, err := loadScene(*scenePath, *backend, *width, *height)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, scene, runOptions{
		headless: *headless,
		frames:   *frames,
		turn:     float32(*turn),
		out:      *out,
		scale:    *scale,
		progress: *progress,
	}); err != nil {
		log.Fatal(err)
	}
}

type runOptions struct {
	headless bool
	frames   int
	turn     float32
	out      string
	scale    float64
	progress bool
}

func loadScene(path, backend string, width, height int) (*config.Scene, error) {
	scene := config.Default()
	if path != "" {
		var err error
		if scene, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if backend != "" {
		scene.Backend = backend
	}
	if width > 0 {
		scene.Window.Width = width
	}
	if height > 0 {
		scene.Window.Height = height
	}
	return scene, scene.Validate()
}

func run(ctx context.Context, scene *config.Scene, o runOptions) error {
	data, err := scene.BuildScene(o.progress)
	if err != nil {
		return err
	}

	eng, err := rast3d.New(scene.Window.Width, scene.Window.Height,
		rast3d.WithBackend(scene.BackendValue()),
		rast3d.WithWorkers(scene.Workers),
		rast3d.WithClearColor(scene.ClearColorValue()))
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.UploadScene(data); err != nil {
		return err
	}

	cam := scene.NewCamera()
	if o.headless {
		err = runHeadless(ctx, eng, cam, o)
	} else {
		err = runWindow(ctx, eng, scene.Window.Title, cam)
	}
	printStats(eng)
	return err
}

func runHeadless(ctx context.Context, eng *rast3d.Engine, cam rast3d.Camera, o runOptions) error {
	var sink rast3d.Display = &display.Discard{}
	if o.out != "" {
		sink = &display.PNGSequence{Dir: o.out, Scale: o.scale, Smooth: o.scale > 1}
	}
	return eng.Run(ctx, &turntable{cam: cam, step: o.turn, frames: o.frames}, sink)
}

func runWindow(ctx context.Context, eng *rast3d.Engine, title string, cam rast3d.Camera) error {
	w, h := eng.Size()
	win, err := display.NewWindow(title, w, h, cam)
	if errors.Is(err, display.ErrNoWindow) {
		return fmt.Errorf("%w: use -headless", err)
	}
	if err != nil {
		return err
	}
	return win.Run(ctx, eng)
}

// turntable yaws the camera by step degrees per frame.
type turntable struct {
	cam    rast3d.Camera
	step   float32
	frames int
	served int
}

func (t *turntable) NextCamera() (rast3d.Camera, bool) {
	if t.served >= t.frames {
		return rast3d.Camera{}, false
	}
	if t.served > 0 && t.step != 0 {
		t.cam.ProcessMouse(t.step/t.cam.Sensitivity, 0, true)
	}
	t.served++
	return t.cam, true
}

func printStats(eng *rast3d.Engine) {
	s := eng.Stats()
	w, h := eng.Size()
	p := message.NewPrinter(language.English)
	p.Printf("device:    %s (%s)\n", eng.Device().Name(), eng.Device().Kind())
	p.Printf("size:      %dx%d\n", w, h)
	p.Printf("triangles: %d\n", eng.Geometry().NumTriangles())
	p.Printf("frames:    %d rendered, %d dropped\n", s.Frames, s.Dropped)
	p.Printf("average:   %v\n", s.AverageFrame())
}
