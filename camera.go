package rast3d

import "github.com/chewxy/math32"

// Camera defaults.
const (
	DefaultFOV         = 90
	DefaultNear        = 0.01
	DefaultFar         = 1000
	DefaultYaw         = 90
	DefaultSpeed       = 2
	DefaultSensitivity = 0.1

	maxPitch = 89
)

// Movement is a keyboard movement direction.
type Movement uint8

const (
	Forward Movement = iota
	Backward
	Left
	Right
)

// String returns the direction name.
func (m Movement) String() string {
	switch m {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Camera is a first-person camera. Only Position, View and Projection are
// sent to the device; the rest drives input handling.
type Camera struct {
	Position Vec3
	Front    Vec3
	Up       Vec3
	Right    Vec3
	WorldUp  Vec3

	View       Mat4
	Projection Mat4

	FOV    float32 // vertical, degrees
	Near   float32
	Far    float32
	Aspect float32

	Yaw   float32 // degrees
	Pitch float32 // degrees

	Speed       float32 // world units per second
	Sensitivity float32 // degrees per mouse unit
}

// NewCamera returns a camera at the origin looking down +Z with the default
// lens for a width×height viewport.
func NewCamera(width, height int) Camera {
	c := Camera{
		WorldUp:     V3(0, 1, 0),
		FOV:         DefaultFOV,
		Near:        DefaultNear,
		Far:         DefaultFar,
		Yaw:         DefaultYaw,
		Speed:       DefaultSpeed,
		Sensitivity: DefaultSensitivity,
	}
	c.SetViewport(width, height)
	c.Update()
	return c
}

// SetViewport recomputes the aspect ratio and projection.
// Non-positive sizes leave the camera unchanged.
func (c *Camera) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
	c.UpdateProjection()
}

// UpdateProjection rebuilds Projection from FOV, Aspect, Near and Far.
func (c *Camera) UpdateProjection() {
	c.Projection = Perspective(c.FOV, c.Aspect, c.Near, c.Far)
}

// Update rebuilds the basis vectors and View from Yaw, Pitch and Position.
func (c *Camera) Update() {
	sy, cy := math32.Sincos(Radians(c.Yaw))
	sp, cp := math32.Sincos(Radians(c.Pitch))
	c.Front = V3(cy*cp, sp, sy*cp).Normalize()
	c.Right = c.Front.Cross(c.WorldUp).Normalize()
	c.Up = c.Right.Cross(c.Front).Normalize()
	c.View = LookAt(c.Position, c.Position.Add(c.Front), c.Up)
}

// ProcessKeyboard moves the camera by Speed×dt along Front or Right.
func (c *Camera) ProcessKeyboard(dir Movement, dt float32) {
	v := c.Speed * dt
	switch dir {
	case Forward:
		c.Position = c.Position.Add(c.Front.Mul(v))
	case Backward:
		c.Position = c.Position.Sub(c.Front.Mul(v))
	case Left:
		c.Position = c.Position.Sub(c.Right.Mul(v))
	case Right:
		c.Position = c.Position.Add(c.Right.Mul(v))
	}
	c.Update()
}

// ProcessMouse turns the camera by a mouse delta. Moving the mouse right
// turns right, moving it up looks up. With constrainPitch the pitch is
// clamped to ±89 degrees.
func (c *Camera) ProcessMouse(dx, dy float32, constrainPitch bool) {
	c.Yaw += dx * c.Sensitivity
	c.Pitch -= dy * c.Sensitivity
	if constrainPitch {
		c.Pitch = min(max(c.Pitch, -maxPitch), maxPitch)
	}
	c.Update()
}
