// Package geom is the curve and surface library used by the Boolean engine.
// It provides analytic curves (line, circle, ellipse, polyline) and surfaces
// (plane, cylinder, sphere) behind small evaluation interfaces, together with
// the vector, box, frame and transform helpers they share. Points and vectors
// are sdfx vec/v3 values; parameter-space points are vec/v2 values.
package geom

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Tolerances shared by the whole kernel.
const (
	Confusion  = 1e-7  // two points closer than this are the same point
	PConfusion = 1e-9  // parametric confusion
	Angular    = 1e-12 // two directions with cross product below this are parallel
)

// TwoPi is the period of every periodic curve and surface in this package.
const TwoPi = 2 * math.Pi

// Dist returns the distance between a and b.
func Dist(a, b v3.Vec) float64 {
	return a.Sub(b).Length()
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b v3.Vec, t float64) v3.Vec {
	return a.Add(b.Sub(a).MulScalar(t))
}

// Component returns the i-th coordinate of v (0=X, 1=Y, 2=Z).
func Component(v v3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

// Unit returns v scaled to unit length, or the zero vector if v is degenerate.
func Unit(v v3.Vec) v3.Vec {
	l := v.Length()
	if l < Angular {
		return v3.Vec{}
	}
	return v.MulScalar(1 / l)
}

// Perpendicular returns a unit vector orthogonal to v.
func Perpendicular(v v3.Vec) v3.Vec {
	a := v3.Vec{X: 1}
	if math.Abs(v.X) > 0.6 {
		a = v3.Vec{Y: 1}
	}
	return Unit(v.Cross(a))
}

// Dist2 returns the distance between two parameter-space points.
func Dist2(a, b v2.Vec) float64 {
	return a.Sub(b).Length()
}

// Cross2 returns the z component of the cross product of two 2D vectors.
func Cross2(a, b v2.Vec) float64 {
	return a.X*b.Y - a.Y*b.X
}

// Lerp2 interpolates linearly between two parameter-space points.
func Lerp2(a, b v2.Vec, t float64) v2.Vec {
	return v2.Vec{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// Frame is a right-handed orthonormal placement: an origin and three axes.
type Frame struct {
	Origin  v3.Vec
	X, Y, Z v3.Vec
}

// NewFrame builds a frame with the given Z axis. xHint selects the X
// direction; it is orthogonalised against Z and replaced when parallel to it.
func NewFrame(origin, z, xHint v3.Vec) Frame {
	z = Unit(z)
	x := xHint.Sub(z.MulScalar(xHint.Dot(z)))
	if x.Length() < 1e-9 {
		x = Perpendicular(z)
	}
	x = Unit(x)
	return Frame{Origin: origin, X: x, Y: z.Cross(x), Z: z}
}

// StandardFrame is the world frame translated to origin.
func StandardFrame(origin v3.Vec) Frame {
	return Frame{Origin: origin, X: v3.Vec{X: 1}, Y: v3.Vec{Y: 1}, Z: v3.Vec{Z: 1}}
}

// Local returns the coordinates of p in the frame.
func (f Frame) Local(p v3.Vec) v3.Vec {
	d := p.Sub(f.Origin)
	return v3.Vec{X: d.Dot(f.X), Y: d.Dot(f.Y), Z: d.Dot(f.Z)}
}

// Global maps frame coordinates back to world space.
func (f Frame) Global(l v3.Vec) v3.Vec {
	return f.Origin.Add(f.X.MulScalar(l.X)).Add(f.Y.MulScalar(l.Y)).Add(f.Z.MulScalar(l.Z))
}

// Transformed applies the rigid motion m to the frame.
func (f Frame) Transformed(m sdf.M44) Frame {
	return Frame{
		Origin: m.MulPosition(f.Origin),
		X:      TransformDir(m, f.X),
		Y:      TransformDir(m, f.Y),
		Z:      TransformDir(m, f.Z),
	}
}

// TransformDir applies the linear part of m to a direction.
func TransformDir(m sdf.M44, d v3.Vec) v3.Vec {
	return m.MulPosition(d).Sub(m.MulPosition(v3.Vec{}))
}

// NormalizeAngle maps t into [lo, lo+period).
func NormalizeAngle(t, lo, period float64) float64 {
	if period <= 0 {
		return t
	}
	k := math.Floor((t - lo) / period)
	t -= k * period
	if t >= lo+period {
		t -= period
	}
	return t
}

// AdjustPeriodic maps a parameter of a periodic curve into the range
// [t0, t1] when an equivalent value exists within tol, else into
// [t0, t0+period).
func AdjustPeriodic(t, t0, t1, period, tol float64) float64 {
	if period <= 0 {
		return t
	}
	t = NormalizeAngle(t, t0-tol, period)
	if t > t1+tol && t-period >= t0-tol {
		t -= period
	}
	return t
}

// NearestPeriodic returns t shifted by a multiple of period to be closest to ref.
func NearestPeriodic(t, ref, period float64) float64 {
	if period <= 0 {
		return t
	}
	return t - period*math.Round((t-ref)/period)
}
