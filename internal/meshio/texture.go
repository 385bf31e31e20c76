// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package meshio

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	// Registered image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/rast3d"
)

// DecodeTexture decodes an image in any registered format (PNG, JPEG, GIF,
// BMP, TIFF, WebP) into a texture. It also returns the format name.
func DecodeTexture(r io.Reader) (*rast3d.Texture, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("meshio: decode texture: %w", err)
	}
	tex := rast3d.TextureFromImage(img)
	if err := tex.Validate(); err != nil {
		return nil, format, err
	}
	return tex, format, nil
}

// LoadTexture reads and decodes a texture file.
func LoadTexture(path string, progress bool) (*rast3d.Texture, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, done := withProgress(f, "load "+filepath.Base(path), progress)
	defer done()

	tex, _, err := DecodeTexture(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tex, nil
}

// LoadMesh loads an OBJ mesh and, when texturePath is set, its texture.
func LoadMesh(objPath, texturePath string, opts Options) (*rast3d.Mesh, error) {
	m, err := LoadOBJ(objPath, opts)
	if err != nil {
		return nil, err
	}
	if texturePath != "" {
		if m.Texture, err = LoadTexture(texturePath, opts.Progress); err != nil {
			return nil, err
		}
	}
	return m, nil
}
