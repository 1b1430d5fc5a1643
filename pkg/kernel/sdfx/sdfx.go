// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library. Its solids answer point
// membership from the signed distance, which makes the kernel an
// independent volumetric check of the brep kernel.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/kerf/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// Tolerance is the distance from the surface still counted as inside.
const Tolerance = 1e-9

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid. A nil SDF is the
// empty solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	if s.s == nil {
		return min, max
	}
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// Contains reports whether the signed distance at p is within Tolerance
// of zero or negative.
func (s *sdfxSolid) Contains(p [3]float64) (bool, error) {
	if s.s == nil {
		return false, nil
	}
	return s.Distance(p) <= Tolerance, nil
}

// Distance returns the signed distance from p to the surface, negative
// inside.
func (s *sdfxSolid) Distance(p [3]float64) float64 {
	if s.s == nil {
		return math.Inf(1)
	}
	return s.s.Evaluate(v3.Vec{X: p[0], Y: p[1], Z: p[2]})
}

func (s *sdfxSolid) Empty() bool { return s.s == nil }

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct{}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) (sdf.SDF3, error) {
	x, ok := s.(*sdfxSolid)
	if !ok {
		return nil, kernel.ErrForeignSolid
	}
	return x.s, nil
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Empty returns a solid with no material.
func (k *SdfxKernel) Empty() kernel.Solid { return wrap(nil) }

// Box creates a box with the given dimensions. The resulting solid has its
// minimum corner at the origin (0,0,0) so that placement translations work
// intuitively. sdf.Box3D centers the box at the origin, so we translate by
// half-dimensions.
func (k *SdfxKernel) Box(x, y, z float64) (kernel.Solid, error) {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: box: %w", err)
	}
	// Shift from center-origin to min-corner-origin.
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	return wrap(sdf.Transform3D(s, m)), nil
}

// Cylinder creates a cylinder along Z with the given height and radius,
// centred on the origin.
func (k *SdfxKernel) Cylinder(height, radius float64) (kernel.Solid, error) {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder: %w", err)
	}
	return wrap(s), nil
}

// Sphere creates a sphere centred on the origin.
func (k *SdfxKernel) Sphere(radius float64) (kernel.Solid, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("sdfx: sphere: %w", err)
	}
	return wrap(s), nil
}

func operands(a, b kernel.Solid) (sdf.SDF3, sdf.SDF3, error) {
	sa, err := unwrap(a)
	if err != nil {
		return nil, nil, err
	}
	sb, err := unwrap(b)
	if err != nil {
		return nil, nil, err
	}
	return sa, sb, nil
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := operands(a, b)
	switch {
	case err != nil:
		return nil, err
	case sa == nil:
		return b, nil
	case sb == nil:
		return a, nil
	}
	return wrap(sdf.Union3D(sa, sb)), nil
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := operands(a, b)
	switch {
	case err != nil:
		return nil, err
	case sa == nil || sb == nil:
		return a, nil
	}
	return wrap(sdf.Difference3D(sa, sb)), nil
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := operands(a, b)
	switch {
	case err != nil:
		return nil, err
	case sa == nil || sb == nil:
		return wrap(nil), nil
	}
	return wrap(sdf.Intersect3D(sa, sb)), nil
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	return transform(s, sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z}))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return transform(s, m)
}

func transform(s kernel.Solid, m sdf.M44) (kernel.Solid, error) {
	x, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	if x == nil {
		return s, nil
	}
	return wrap(sdf.Transform3D(x, m)), nil
}
