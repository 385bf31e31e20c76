//go:build headless

package display

import (
	"context"

	"github.com/gogpu/rast3d"
)

// Window is unavailable in headless builds.
type Window struct{}

// NewWindow returns ErrNoWindow in headless builds.
func NewWindow(string, int, int, rast3d.Camera) (*Window, error) {
	return nil, ErrNoWindow
}

// Run returns ErrNoWindow.
func (*Window) Run(context.Context, *rast3d.Engine) error { return ErrNoWindow }
