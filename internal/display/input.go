package display

import "github.com/gogpu/rast3d"

// Input is one tick of user input.
type Input struct {
	Forward, Backward, Left, Right bool

	// Mouse delta in window pixels since the previous tick.
	DX, DY float32
}

// Apply moves and turns cam by in over dt seconds.
func (in Input) Apply(cam *rast3d.Camera, dt float32) {
	moves := [...]struct {
		on  bool
		dir rast3d.Movement
	}{
		{in.Forward, rast3d.Forward},
		{in.Backward, rast3d.Backward},
		{in.Left, rast3d.Left},
		{in.Right, rast3d.Right},
	}
	for _, m := range moves {
		if m.on {
			cam.ProcessKeyboard(m.dir, dt)
		}
	}
	if in.DX != 0 || in.DY != 0 {
		cam.ProcessMouse(in.DX, in.DY, true)
	}
}
