// Package config loads rast3d scene files.
//
// A scene file is YAML:
//
//	window: {width: 800, height: 600, title: demo}
//	backend: auto
//	clearColor: "#202020"
//	camera:
//	  position: [0, 0, 0]
//	  yaw: 90
//	models:
//	  - path: res/slime.obj
//	    texture: res/Texture.png
//	    position: [0, 0, 5]
//	    scale: [1.5, 1.5, 1.5]
//	  - shape: cube
//	    color: "#00ff00"
//	    position: [3, 0, 5]
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/rast3d"
	"github.com/gogpu/rast3d/internal/meshio"
)

// Defaults.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
	DefaultTitle  = "rast3d"
)

// ShapeCube is the built-in unit cube.
const ShapeCube = "cube"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid scene")

// Vec3 is a three-element YAML sequence.
type Vec3 [3]float32

// UnmarshalYAML implements yaml.Unmarshaler for Vec3.
func (v *Vec3) UnmarshalYAML(value *yaml.Node) error {
	var f []float32
	if err := value.Decode(&f); err != nil {
		return err
	}
	if len(f) != 3 {
		return fmt.Errorf("line %d: want 3 components, got %d", value.Line, len(f))
	}
	copy(v[:], f)
	return nil
}

// V returns v as a rast3d vector.
func (v Vec3) V() rast3d.Vec3 {
	return rast3d.V3(v[0], v[1], v[2])
}

// Scene describes what to render and how.
type Scene struct {
	Window     Window  `yaml:"window"`
	Backend    string  `yaml:"backend,omitempty"`
	Workers    int     `yaml:"workers,omitempty"`
	ClearColor string  `yaml:"clearColor,omitempty"`
	Camera     Camera  `yaml:"camera"`
	Models     []Model `yaml:"models"`

	// dir resolves relative model and texture paths.
	dir string
}

// Window is the framebuffer size and window title.
type Window struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title,omitempty"`
}

// Camera is the initial camera. Zero fields keep the rast3d defaults.
type Camera struct {
	Position    Vec3    `yaml:"position"`
	Yaw         float32 `yaml:"yaw,omitempty"`
	Pitch       float32 `yaml:"pitch,omitempty"`
	FOV         float32 `yaml:"fov,omitempty"`
	Near        float32 `yaml:"near,omitempty"`
	Far         float32 `yaml:"far,omitempty"`
	Speed       float32 `yaml:"speed,omitempty"`
	Sensitivity float32 `yaml:"sensitivity,omitempty"`
}

// Model is one mesh in the scene.
type Model struct {
	Name    string `yaml:"name,omitempty"`
	Path    string `yaml:"path,omitempty"`
	Shape   string `yaml:"shape,omitempty"`
	Texture string `yaml:"texture,omitempty"`

	// Color is a hex color for every triangle. Empty means random
	// per-triangle colors from Seed.
	Color string `yaml:"color,omitempty"`
	Seed  uint64 `yaml:"seed,omitempty"`

	Position Vec3  `yaml:"position"`
	Rotation Vec3  `yaml:"rotation"` // degrees about X, Y, Z
	Scale    *Vec3 `yaml:"scale,omitempty"`
}

// Transform returns the model transform.
func (m *Model) Transform() rast3d.Mat4 {
	scale := rast3d.V3(1, 1, 1)
	if m.Scale != nil {
		scale = m.Scale.V()
	}
	return rast3d.MatTransform(m.Position.V(), m.Rotation.V(), scale)
}

// Load reads a scene file. Relative paths in it are resolved against the
// file's directory.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// Parse decodes and validates a scene.
func Parse(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Default returns a scene with one cube in front of the camera.
func Default() *Scene {
	s := &Scene{Models: []Model{{Shape: ShapeCube, Position: Vec3{0, 0, 3}}}}
	s.normalize()
	return s
}

func (s *Scene) normalize() {
	if s.Window.Width == 0 {
		s.Window.Width = DefaultWidth
	}
	if s.Window.Height == 0 {
		s.Window.Height = DefaultHeight
	}
	if s.Window.Title == "" {
		s.Window.Title = DefaultTitle
	}
	if s.Backend == "" {
		s.Backend = string(rast3d.BackendAuto)
	}
	if s.ClearColor == "" {
		s.ClearColor = "#000000"
	}
}

// Validate reports the first problem in the scene.
func (s *Scene) Validate() error {
	if s.Window.Width < 0 || s.Window.Height < 0 {
		return fmt.Errorf("%w: window %dx%d", ErrInvalid, s.Window.Width, s.Window.Height)
	}
	if _, err := rast3d.ParseBackend(s.Backend); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if !validHex(s.ClearColor) {
		return fmt.Errorf("%w: clearColor %q", ErrInvalid, s.ClearColor)
	}
	for i := range s.Models {
		m := &s.Models[i]
		switch {
		case m.Path == "" && m.Shape == "":
			return fmt.Errorf("%w: model %d: path or shape required", ErrInvalid, i)
		case m.Path != "" && m.Shape != "":
			return fmt.Errorf("%w: model %d: path and shape are exclusive", ErrInvalid, i)
		case m.Shape != "" && m.Shape != ShapeCube:
			return fmt.Errorf("%w: model %d: unknown shape %q", ErrInvalid, i, m.Shape)
		case m.Color != "" && !validHex(m.Color):
			return fmt.Errorf("%w: model %d: color %q", ErrInvalid, i, m.Color)
		}
	}
	return nil
}

func validHex(s string) bool {
	_, err := rast3d.ParseHex(s)
	return err == nil
}

// BackendValue returns the parsed backend.
func (s *Scene) BackendValue() rast3d.Backend {
	b, _ := rast3d.ParseBackend(s.Backend)
	return b
}

// ClearColorValue returns the parsed clear color.
func (s *Scene) ClearColorValue() rast3d.Color {
	return rast3d.Hex(s.ClearColor)
}

// NewCamera returns the initial camera for the window size.
func (s *Scene) NewCamera() rast3d.Camera {
	c := rast3d.NewCamera(s.Window.Width, s.Window.Height)
	cc := &s.Camera
	c.Position = cc.Position.V()
	if cc.Yaw != 0 {
		c.Yaw = cc.Yaw
	}
	c.Pitch = cc.Pitch
	if cc.FOV > 0 {
		c.FOV = cc.FOV
	}
	if cc.Near > 0 {
		c.Near = cc.Near
	}
	if cc.Far > 0 {
		c.Far = cc.Far
	}
	if cc.Speed > 0 {
		c.Speed = cc.Speed
	}
	if cc.Sensitivity > 0 {
		c.Sensitivity = cc.Sensitivity
	}
	c.UpdateProjection()
	c.Update()
	return c
}

// Path resolves a path from the scene file.
func (s *Scene) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

// BuildScene loads every model and flattens the scene for upload.
func (s *Scene) BuildScene(progress bool) (*rast3d.SceneData, error) {
	b := rast3d.NewSceneBuilder()
	for i := range s.Models {
		mesh, err := s.loadModel(&s.Models[i], progress)
		if err != nil {
			return nil, fmt.Errorf("config: model %d: %w", i, err)
		}
		if _, err := b.AddMesh(mesh); err != nil {
			return nil, fmt.Errorf("config: model %d: %w", i, err)
		}
	}
	return b.Build(), nil
}

func (s *Scene) loadModel(m *Model, progress bool) (*rast3d.Mesh, error) {
	opts := meshio.Options{Seed: m.Seed, Progress: progress}
	if m.Color != "" {
		opts.Color = rast3d.Hex(m.Color)
	}

	var (
		mesh *rast3d.Mesh
		err  error
	)
	if m.Shape == ShapeCube {
		mesh = meshio.Cube(opts.Color)
		if opts.Color == 0 {
			mesh.SetColor(rast3d.White)
		}
		if m.Texture != "" {
			mesh.Texture, err = meshio.LoadTexture(s.Path(m.Texture), progress)
		}
	} else {
		mesh, err = meshio.LoadMesh(s.Path(m.Path), s.Path(m.Texture), opts)
	}
	if err != nil {
		return nil, err
	}
	if m.Name != "" {
		mesh.Name = m.Name
	}
	mesh.Transform = m.Transform()
	return mesh, nil
}
