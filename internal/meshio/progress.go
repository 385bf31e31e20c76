package meshio

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// withProgress wraps f with a byte progress bar when enabled. The returned
// func closes the bar.
func withProgress(f *os.File, title string, enabled bool) (io.Reader, func()) {
	if !enabled {
		return f, func() {}
	}
	size := int64(-1)
	if fi, err := f.Stat(); err == nil && fi.Size() > 0 {
		size = fi.Size()
	}
	bar := progressbar.DefaultBytes(size, title)
	return io.TeeReader(f, bar), func() { _ = bar.Close() }
}
