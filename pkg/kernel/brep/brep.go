// Package brep implements the kernel.Kernel interface on boundary
// representations, with booleans computed by pkg/bop.
package brep

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/chazu/kerf/pkg/bop"
	"github.com/chazu/kerf/pkg/bop/classify"
	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/topo"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// Solid wraps a topo shape to implement kernel.Solid.
type Solid struct {
	shape topo.Shape
	tol   float64
}

// Shape returns the underlying B-Rep.
func (s *Solid) Shape() topo.Shape { return s.shape }

// BoundingBox returns the axis-aligned bounding box, zero for an empty
// solid.
func (s *Solid) BoundingBox() (min, max [3]float64) {
	if s.Empty() {
		return min, max
	}
	bb := topo.Bounds(s.shape)
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// Contains reports whether p is inside the solid or on its boundary.
func (s *Solid) Contains(p [3]float64) (bool, error) {
	if s.Empty() {
		return false, nil
	}
	loc, err := classify.Locate(s.shape, v3.Vec{X: p[0], Y: p[1], Z: p[2]}, s.tol)
	if err != nil {
		return false, err
	}
	return loc != topo.Out, nil
}

// Empty reports whether the solid has no faces.
func (s *Solid) Empty() bool { return topo.IsEmpty(s.shape) }

// Volume returns the enclosed volume.
func (s *Solid) Volume() float64 { return topo.Volume(s.shape) }

// Kernel implements kernel.Kernel on B-Reps. Warnings from the boolean
// operations it ran are collected.
type Kernel struct {
	opts bop.Options

	mu       sync.Mutex
	warnings []diag.Warning
}

// New returns a kernel running booleans with opts.
func New(opts bop.Options) *Kernel {
	return &Kernel{opts: opts}
}

// Warnings returns the warnings collected so far.
func (k *Kernel) Warnings() []diag.Warning {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]diag.Warning(nil), k.warnings...)
}

func (k *Kernel) wrap(s topo.Shape) kernel.Solid {
	return &Solid{shape: s, tol: k.opts.FuzzyTolerance}
}

// unwrap extracts the topo shape from a kernel.Solid.
func unwrap(s kernel.Solid) (topo.Shape, error) {
	b, ok := s.(*Solid)
	if !ok {
		return nil, kernel.ErrForeignSolid
	}
	return b.shape, nil
}

// Empty returns a solid with no material.
func (k *Kernel) Empty() kernel.Solid { return k.wrap(topo.MakeCompound()) }

// Box creates a box with its minimum corner at the origin.
func (k *Kernel) Box(x, y, z float64) (kernel.Solid, error) {
	s, err := topo.Box(v3.Vec{}, v3.Vec{X: x, Y: y, Z: z})
	if err != nil {
		return nil, fmt.Errorf("brep: box: %w", err)
	}
	return k.wrap(s), nil
}

// Cylinder creates a cylinder along Z centred on the origin.
func (k *Kernel) Cylinder(height, radius float64) (kernel.Solid, error) {
	s, err := topo.Cylinder(v3.Vec{Z: -height / 2}, v3.Vec{Z: 1}, radius, height)
	if err != nil {
		return nil, fmt.Errorf("brep: cylinder: %w", err)
	}
	return k.wrap(s), nil
}

// Sphere creates a sphere centred on the origin.
func (k *Kernel) Sphere(radius float64) (kernel.Solid, error) {
	s, err := topo.Sphere(v3.Vec{}, radius)
	if err != nil {
		return nil, fmt.Errorf("brep: sphere: %w", err)
	}
	return k.wrap(s), nil
}

// Union returns the union of two solids.
func (k *Kernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	return k.boolean(bop.Union, a, b)
}

// Difference returns the difference a - b.
func (k *Kernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	return k.boolean(bop.Cut, a, b)
}

// Intersection returns the intersection of two solids.
func (k *Kernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	return k.boolean(bop.Intersect, a, b)
}

func (k *Kernel) boolean(op bop.Op, a, b kernel.Solid) (kernel.Solid, error) {
	return k.Boolean(context.Background(), op, 0, a, b)
}

// Boolean applies op to two or more solids in a single operation; Cut
// removes the rest from the first. A positive fuzzy overrides the kernel's
// tolerance. Section returns the intersection curves as a solid without
// volume.
func (k *Kernel) Boolean(ctx context.Context, op bop.Op, fuzzy float64, solids ...kernel.Solid) (kernel.Solid, error) {
	shapes := make([]topo.Shape, len(solids))
	for i, s := range solids {
		sh, err := unwrap(s)
		if err != nil {
			return nil, err
		}
		shapes[i] = sh
	}
	opts := k.opts
	if fuzzy > 0 {
		opts.FuzzyTolerance = fuzzy
	}
	res, err := bop.PerformBoolean(ctx, shapes, op, opts)
	if err != nil {
		return nil, fmt.Errorf("brep: %s: %w", op, err)
	}
	k.mu.Lock()
	k.warnings = append(k.warnings, res.Warnings...)
	k.mu.Unlock()
	return &Solid{shape: res.Shape, tol: opts.FuzzyTolerance}, nil
}

// Translate moves a solid by (x, y, z).
func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	return k.transform(s, sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z}))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return k.transform(s, m)
}

func (k *Kernel) transform(s kernel.Solid, m sdf.M44) (kernel.Solid, error) {
	sh, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	return k.wrap(topo.Transform(sh, m)), nil
}
