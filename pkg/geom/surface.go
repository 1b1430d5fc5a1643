package geom

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// SurfaceKind enumerates the surface variants the intersector dispatches on.
type SurfaceKind int

const (
	SurfacePlane    SurfaceKind = iota
	SurfaceCylinder             // periodic in u
	SurfaceSphere               // periodic in u, singular at the poles
	SurfaceBSpline              // recognised but not evaluated here
)

func (k SurfaceKind) String() string {
	switch k {
	case SurfacePlane:
		return "plane"
	case SurfaceCylinder:
		return "cylinder"
	case SurfaceSphere:
		return "sphere"
	case SurfaceBSpline:
		return "bspline"
	default:
		return fmt.Sprintf("SurfaceKind(%d)", int(k))
	}
}

// Surface is a parametric surface. The natural normal is Su x Sv.
type Surface interface {
	Kind() SurfaceKind
	Evaluate(u, v float64) v3.Vec
	// Derivative returns the mixed partial derivative of order (nu, nv).
	Derivative(u, v float64, nu, nv int) v3.Vec
	// Normal returns the unit natural normal at (u, v).
	Normal(u, v float64) v3.Vec
	// UPeriod returns the period in u, or 0.
	UPeriod() float64
	// Project returns the parameters of the surface point closest to p.
	Project(p v3.Vec) (u, v float64)
	Transformed(m sdf.M44) Surface
}

// ---------------------------------------------------------------------------
// Plane
// ---------------------------------------------------------------------------

// Plane is parameterised by the X and Y axes of its frame; its normal is Z.
type Plane struct {
	Frame Frame
}

func (p *Plane) Kind() SurfaceKind { return SurfacePlane }

func (p *Plane) Evaluate(u, v float64) v3.Vec {
	return p.Frame.Origin.Add(p.Frame.X.MulScalar(u)).Add(p.Frame.Y.MulScalar(v))
}

func (p *Plane) Derivative(u, v float64, nu, nv int) v3.Vec {
	switch {
	case nu == 0 && nv == 0:
		return p.Evaluate(u, v)
	case nu == 1 && nv == 0:
		return p.Frame.X
	case nu == 0 && nv == 1:
		return p.Frame.Y
	}
	return v3.Vec{}
}

func (p *Plane) Normal(u, v float64) v3.Vec { return p.Frame.Z }

func (p *Plane) UPeriod() float64 { return 0 }

func (p *Plane) Project(q v3.Vec) (float64, float64) {
	l := p.Frame.Local(q)
	return l.X, l.Y
}

func (p *Plane) Transformed(m sdf.M44) Surface {
	return &Plane{Frame: p.Frame.Transformed(m)}
}

// SignedDistance returns the distance of q above the plane along its normal.
func (p *Plane) SignedDistance(q v3.Vec) float64 {
	return q.Sub(p.Frame.Origin).Dot(p.Frame.Z)
}

// ---------------------------------------------------------------------------
// Cylinder
// ---------------------------------------------------------------------------

// Cylinder has its axis along Frame.Z through Frame.Origin. u is the angle
// from Frame.X, v the height along the axis.
type Cylinder struct {
	Frame  Frame
	Radius float64
}

func (c *Cylinder) Kind() SurfaceKind { return SurfaceCylinder }

func (c *Cylinder) Evaluate(u, v float64) v3.Vec {
	return c.Derivative(u, v, 0, 0)
}

func (c *Cylinder) Derivative(u, v float64, nu, nv int) v3.Vec {
	switch {
	case nv == 0:
		a := u + float64(nu)*math.Pi/2
		d := c.Frame.X.MulScalar(c.Radius * math.Cos(a)).Add(c.Frame.Y.MulScalar(c.Radius * math.Sin(a)))
		if nu == 0 {
			return c.Frame.Origin.Add(d).Add(c.Frame.Z.MulScalar(v))
		}
		return d
	case nv == 1 && nu == 0:
		return c.Frame.Z
	}
	return v3.Vec{}
}

func (c *Cylinder) Normal(u, v float64) v3.Vec {
	return c.Frame.X.MulScalar(math.Cos(u)).Add(c.Frame.Y.MulScalar(math.Sin(u)))
}

func (c *Cylinder) UPeriod() float64 { return TwoPi }

func (c *Cylinder) Project(q v3.Vec) (float64, float64) {
	l := c.Frame.Local(q)
	u := 0.0
	if math.Hypot(l.X, l.Y) > Angular {
		u = NormalizeAngle(math.Atan2(l.Y, l.X), 0, TwoPi)
	}
	return u, l.Z
}

func (c *Cylinder) Transformed(m sdf.M44) Surface {
	return &Cylinder{Frame: c.Frame.Transformed(m), Radius: c.Radius}
}

// Axis returns the axis line of the cylinder.
func (c *Cylinder) Axis() *Line {
	return &Line{Origin: c.Frame.Origin, Dir: c.Frame.Z}
}

// ---------------------------------------------------------------------------
// Sphere
// ---------------------------------------------------------------------------

// Sphere is centered at Frame.Origin. u is the longitude from Frame.X, v the
// latitude in [-pi/2, pi/2] with the poles on Frame.Z.
type Sphere struct {
	Frame  Frame
	Radius float64
}

func (s *Sphere) Kind() SurfaceKind { return SurfaceSphere }

func (s *Sphere) Evaluate(u, v float64) v3.Vec {
	return s.Derivative(u, v, 0, 0)
}

func (s *Sphere) Derivative(u, v float64, nu, nv int) v3.Vec {
	au := u + float64(nu)*math.Pi/2
	av := v + float64(nv)*math.Pi/2
	r := s.Radius
	d := s.Frame.X.MulScalar(r * math.Cos(av) * math.Cos(au)).
		Add(s.Frame.Y.MulScalar(r * math.Cos(av) * math.Sin(au)))
	if nu == 0 {
		d = d.Add(s.Frame.Z.MulScalar(r * math.Sin(av)))
	}
	if nu == 0 && nv == 0 {
		return s.Frame.Origin.Add(d)
	}
	return d
}

func (s *Sphere) Normal(u, v float64) v3.Vec {
	return Unit(s.Evaluate(u, v).Sub(s.Frame.Origin))
}

func (s *Sphere) UPeriod() float64 { return TwoPi }

func (s *Sphere) Project(q v3.Vec) (float64, float64) {
	l := s.Frame.Local(q)
	rho := math.Hypot(l.X, l.Y)
	u := 0.0
	if rho > Angular {
		u = NormalizeAngle(math.Atan2(l.Y, l.X), 0, TwoPi)
	}
	return u, math.Atan2(l.Z, rho)
}

func (s *Sphere) Transformed(m sdf.M44) Surface {
	return &Sphere{Frame: s.Frame.Transformed(m), Radius: s.Radius}
}

// ---------------------------------------------------------------------------
// Surface helpers
// ---------------------------------------------------------------------------

// IsSingular reports whether the u derivative vanishes at (u, v), as it does
// at the poles of a sphere.
func IsSingular(s Surface, u, v float64) bool {
	return s.Derivative(u, v, 1, 0).Length() < 1e-9
}

// SurfaceDistance returns the distance from p to its projection on s.
func SurfaceDistance(s Surface, p v3.Vec) float64 {
	u, v := s.Project(p)
	return Dist(s.Evaluate(u, v), p)
}

// ProjectNear projects p onto s and shifts u by whole periods so it is
// nearest to uRef.
func ProjectNear(s Surface, p v3.Vec, uRef float64) (float64, float64) {
	u, v := s.Project(p)
	return NearestPeriodic(u, uRef, s.UPeriod()), v
}
