package rast3d

import "testing"

func TestNewCamera_Defaults(t *testing.T) {
	c := NewCamera(800, 600)
	if c.FOV != DefaultFOV || c.Near != DefaultNear || c.Far != DefaultFar {
		t.Errorf("lens = (%v, %v, %v), want defaults", c.FOV, c.Near, c.Far)
	}
	if c.Yaw != DefaultYaw || c.Pitch != 0 {
		t.Errorf("orientation = (%v, %v), want (90, 0)", c.Yaw, c.Pitch)
	}
	if want := float32(800) / 600; c.Aspect != want {
		t.Errorf("Aspect = %v, want %v", c.Aspect, want)
	}
	if !nearVec3(c.Front, V3(0, 0, 1)) {
		t.Errorf("Front = %v, want +Z", c.Front)
	}
	if !nearVec3(c.Up, V3(0, 1, 0)) {
		t.Errorf("Up = %v, want +Y", c.Up)
	}
}

func TestCamera_SeesAhead(t *testing.T) {
	c := NewCamera(100, 100)
	clip := c.Projection.Mul(c.View).MulPoint(V3(0, 0, 5))
	if clip.W <= 0 {
		t.Fatalf("point ahead has w = %v, want > 0", clip.W)
	}
	ndc := clip.PerspectiveDivide()
	if !nearVec3(V3(ndc.X, ndc.Y, 0), Vec3{}) {
		t.Errorf("point ahead NDC = %v, want centered", ndc)
	}
	if behind := c.Projection.Mul(c.View).MulPoint(V3(0, 0, -5)); behind.W > 0 {
		t.Errorf("point behind has w = %v, want <= 0", behind.W)
	}
}

func TestCamera_ProcessKeyboard(t *testing.T) {
	tests := []struct {
		dir  Movement
		want Vec3
	}{
		{Forward, V3(0, 0, 1)},
		{Backward, V3(0, 0, -1)},
		{Right, V3(-1, 0, 0)},
		{Left, V3(1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			c := NewCamera(100, 100)
			c.ProcessKeyboard(tt.dir, 0.5) // speed 2 × 0.5 s = 1 unit
			if !nearVec3(c.Position, tt.want) {
				t.Errorf("Position = %v, want %v", c.Position, tt.want)
			}
			if got := c.View.MulPoint(c.Position).Vec3(); !nearVec3(got, Vec3{}) {
				t.Errorf("view not rebuilt: view · position = %v", got)
			}
		})
	}
}

func TestCamera_ProcessMouse(t *testing.T) {
	c := NewCamera(100, 100)
	c.ProcessMouse(100, 0, true)
	if c.Yaw != DefaultYaw+10 {
		t.Errorf("Yaw = %v, want %v", c.Yaw, DefaultYaw+10)
	}
	// Turning right from +Z swings the front toward -X.
	if c.Front.X >= 0 {
		t.Errorf("Front = %v, want negative X after turning right", c.Front)
	}

	c.ProcessMouse(0, -10000, true)
	if c.Pitch != maxPitch {
		t.Errorf("Pitch = %v, want clamp at %v", c.Pitch, maxPitch)
	}
	c.ProcessMouse(0, 20000, true)
	if c.Pitch != -maxPitch {
		t.Errorf("Pitch = %v, want clamp at %v", c.Pitch, -maxPitch)
	}

	c.ProcessMouse(0, -20000, false)
	if c.Pitch <= maxPitch {
		t.Errorf("unconstrained Pitch = %v, want beyond %v", c.Pitch, maxPitch)
	}
}

func TestCamera_SetViewportIgnoresInvalid(t *testing.T) {
	c := NewCamera(200, 100)
	before := c.Projection
	c.SetViewport(0, 100)
	if c.Projection != before || c.Aspect != 2 {
		t.Errorf("SetViewport(0, 100) changed the camera: aspect %v", c.Aspect)
	}
}
