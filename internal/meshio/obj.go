// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package meshio imports meshes and textures from files.
package meshio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gogpu/rast3d"
)

// ErrMalformed is returned for OBJ input that cannot be parsed.
var ErrMalformed = errors.New("meshio: malformed OBJ")

// Options controls OBJ import.
type Options struct {
	// Color is assigned to every triangle. When zero, each triangle gets a
	// random opaque color drawn from a PCG seeded with Seed.
	Color rast3d.Color
	Seed  uint64

	// Progress shows a byte progress bar on stderr while reading files.
	Progress bool
}

type faceVertex struct {
	v, vt, vn int // zero-based, -1 when absent
}

type objReader struct {
	opts    Options
	rng     *rand.Rand
	verts   []rast3d.Vec3
	uvs     []rast3d.Vec2
	normals []rast3d.Vec3
	tris    []rast3d.Triangle
	face    []faceVertex
}

// LoadOBJ reads a Wavefront OBJ file. The mesh is named after the file.
func LoadOBJ(path string, opts Options) (*rast3d.Mesh, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, done := withProgress(f, "load "+filepath.Base(path), opts.Progress)
	defer done()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := ReadOBJ(r, name, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadOBJ parses OBJ text. Supported statements are v, vt, vn and f;
// everything else is ignored. Polygons are fan-triangulated and negative
// indices count back from the last element read. Texture v coordinates
// are flipped so that v = 0 addresses the first texture row.
func ReadOBJ(r io.Reader, name string, opts Options) (*rast3d.Mesh, error) {
	p := &objReader{opts: opts}
	if opts.Color == 0 {
		p.rng = rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := p.parseLine(sc.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rast3d.NewMesh(name, p.tris), nil
}

func (p *objReader) parseLine(s string) error {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	args := fields[1:]
	switch fields[0] {
	case "v":
		f, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		p.verts = append(p.verts, rast3d.V3(f[0], f[1], f[2]))
	case "vt":
		f, err := parseFloats(args, 2)
		if err != nil {
			return err
		}
		p.uvs = append(p.uvs, rast3d.V2(f[0], 1-f[1]))
	case "vn":
		f, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		p.normals = append(p.normals, rast3d.V3(f[0], f[1], f[2]))
	case "f":
		return p.parseFace(args)
	}
	return nil
}

func parseFloats(args []string, n int) ([]float32, error) {
	if len(args) < n {
		return nil, fmt.Errorf("%w: want %d values, got %d", ErrMalformed, n, len(args))
	}
	out := make([]float32, n)
	for i := range n {
		v, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, args[i])
		}
		out[i] = float32(v)
	}
	return out, nil
}

func (p *objReader) parseFace(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: face with %d vertices", ErrMalformed, len(args))
	}
	p.face = p.face[:0]
	for _, tok := range args {
		fv, err := p.parseFaceVertex(tok)
		if err != nil {
			return err
		}
		p.face = append(p.face, fv)
	}
	for i := 1; i+1 < len(p.face); i++ {
		p.tris = append(p.tris, p.triangle(p.face[0], p.face[i], p.face[i+1]))
	}
	return nil
}

// parseFaceVertex parses v, v/vt, v//vn or v/vt/vn.
func (p *objReader) parseFaceVertex(tok string) (faceVertex, error) {
	parts := strings.Split(tok, "/")
	if len(parts) > 3 || parts[0] == "" {
		return faceVertex{}, fmt.Errorf("%w: face vertex %q", ErrMalformed, tok)
	}
	fv := faceVertex{v: -1, vt: -1, vn: -1}
	var err error
	if fv.v, err = resolveIndex(parts[0], len(p.verts)); err != nil {
		return faceVertex{}, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if fv.vt, err = resolveIndex(parts[1], len(p.uvs)); err != nil {
			return faceVertex{}, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if fv.vn, err = resolveIndex(parts[2], len(p.normals)); err != nil {
			return faceVertex{}, err
		}
	}
	return fv, nil
}

// resolveIndex converts a one-based (or negative, relative) OBJ index into
// a zero-based index into a list of n elements.
func resolveIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrMalformed, s)
	}
	switch {
	case i > 0 && i <= n:
		return i - 1, nil
	case i < 0 && -i <= n:
		return n + i, nil
	default:
		return 0, fmt.Errorf("%w: index %d out of range [1, %d]", ErrMalformed, i, n)
	}
}

func (p *objReader) triangle(a, b, c faceVertex) rast3d.Triangle {
	var t rast3d.Triangle
	for j, fv := range [3]faceVertex{a, b, c} {
		t.Vertex[j] = p.verts[fv.v]
		if fv.vt >= 0 {
			t.UV[j] = p.uvs[fv.vt]
		}
		if fv.vn >= 0 {
			t.Normal[j] = p.normals[fv.vn]
		}
	}
	if p.rng != nil {
		t.Color = rast3d.RandomColor(p.rng)
	} else {
		t.Color = p.opts.Color
	}
	return t
}
