package intersect

import (
	"fmt"
	"math"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

type surfaceKey [2]geom.SurfaceKind

type surfaceKernel func(s1, s2 geom.Surface, box sdf.Box3, tol float64) []Span

var surfaceKernels = map[surfaceKey]surfaceKernel{
	{geom.SurfacePlane, geom.SurfacePlane}:    planePlane,
	{geom.SurfacePlane, geom.SurfaceSphere}:   planeSphere,
	{geom.SurfacePlane, geom.SurfaceCylinder}: planeCylinder,
	{geom.SurfaceSphere, geom.SurfaceSphere}:  sphereSphere,
}

// SurfaceSurface returns the intersection curves of s1 and s2 inside box,
// the common part of the two faces' boxes. Pairs without an analytic kernel
// are marched from seeds, points known to lie on both surfaces. Tangent
// contacts and coincident surfaces yield no curve.
func SurfaceSurface(s1, s2 geom.Surface, box sdf.Box3, seeds []v3.Vec, tol float64) ([]Span, error) {
	k1, k2 := s1.Kind(), s2.Kind()
	if k, ok := surfaceKernels[surfaceKey{k1, k2}]; ok {
		return k(s1, s2, box, tol), nil
	}
	if k, ok := surfaceKernels[surfaceKey{k2, k1}]; ok {
		return k(s2, s1, box, tol), nil
	}
	f1, ok1 := Implicit(s1)
	f2, ok2 := Implicit(s2)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: %s x %s", ErrUnsupported, k1, k2)
	}
	h := 0.05 * math.Min(math.Min(curvature(s1), curvature(s2)), geom.BoxDiagonal(box))
	m := &marcher{f1: f1, f2: f2, box: geom.BoxEnlarge(box, 2*h+tol), h: h, tol: tol}
	return m.run(seeds)
}

// circleFrame is the frame of a section circle about normal n. The X axis
// is fixed by the world axes so that equal inputs give equal curves.
func circleFrame(center, n v3.Vec) geom.Frame {
	hint := v3.Vec{X: 1}
	if math.Abs(n.X) > 0.9 {
		hint = v3.Vec{Y: 1}
	}
	return geom.NewFrame(center, n, hint)
}

// touchesBox reports whether any sample of the closed curve lies in box.
func touchesBox(c geom.Curve, box sdf.Box3, tol float64) bool {
	lo, hi := c.ParameterRange()
	for _, p := range geom.Sample(c, lo, hi, 65) {
		if geom.BoxContains(box, p, tol) {
			return true
		}
	}
	return false
}

func closedSpan(c geom.Curve, box sdf.Box3, tol float64) []Span {
	if !touchesBox(c, box, tol) {
		return nil
	}
	lo, hi := c.ParameterRange()
	return []Span{{Curve: c, T0: lo, T1: hi}}
}

// lineSpan clips the line through p along d to box.
func lineSpan(p, d v3.Vec, box sdf.Box3, tol float64) []Span {
	l := &geom.Line{Origin: p, Dir: geom.Unit(d)}
	t0, t1, ok := geom.ClipLine(l.Origin, l.Dir, geom.BoxEnlarge(box, tol))
	if !ok || t1-t0 <= tol {
		return nil
	}
	return []Span{{Curve: l, T0: t0, T1: t1}}
}

func planePlane(s1, s2 geom.Surface, box sdf.Box3, tol float64) []Span {
	p1, p2 := s1.(*geom.Plane), s2.(*geom.Plane)
	n1, n2 := p1.Frame.Z, p2.Frame.Z
	dir := n1.Cross(n2)
	d2 := dir.Dot(dir)
	if d2 < 1e-18 {
		return nil
	}
	h1, h2 := n1.Dot(p1.Frame.Origin), n2.Dot(p2.Frame.Origin)
	p := n2.MulScalar(h1).Sub(n1.MulScalar(h2)).Cross(dir).MulScalar(1 / d2)
	return lineSpan(p, dir, box, tol)
}

func planeSphere(s1, s2 geom.Surface, box sdf.Box3, tol float64) []Span {
	pl, sp := s1.(*geom.Plane), s2.(*geom.Sphere)
	n := pl.Frame.Z
	h := pl.SignedDistance(sp.Frame.Origin)
	if math.Abs(h) >= sp.Radius-tol {
		return nil
	}
	center := sp.Frame.Origin.Sub(n.MulScalar(h))
	c := &geom.Circle{Frame: circleFrame(center, n), Radius: math.Sqrt(sp.Radius*sp.Radius - h*h)}
	return closedSpan(c, box, tol)
}

func planeCylinder(s1, s2 geom.Surface, box sdf.Box3, tol float64) []Span {
	pl, cy := s1.(*geom.Plane), s2.(*geom.Cylinder)
	n, a := pl.Frame.Z, cy.Frame.Z
	cos := n.Dot(a)
	switch {
	case math.Abs(cos) < 1e-12:
		// plane parallel to the axis: two rulings, one when tangent
		h := pl.SignedDistance(cy.Frame.Origin)
		if math.Abs(h) >= cy.Radius-tol {
			return nil
		}
		foot := cy.Frame.Origin.Sub(n.MulScalar(h))
		m := geom.Unit(a.Cross(n))
		w := math.Sqrt(cy.Radius*cy.Radius - h*h)
		spans := lineSpan(foot.Add(m.MulScalar(w)), a, box, tol)
		return append(spans, lineSpan(foot.Sub(m.MulScalar(w)), a, box, tol)...)
	}
	// axis meets the plane
	t := -pl.SignedDistance(cy.Frame.Origin) / cos
	center := cy.Frame.Origin.Add(a.MulScalar(t))
	if math.Abs(math.Abs(cos)-1) < 1e-12 {
		c := &geom.Circle{Frame: circleFrame(center, a), Radius: cy.Radius}
		return closedSpan(c, box, tol)
	}
	m := geom.Unit(a.Cross(n))
	major := geom.Unit(n.Cross(m))
	e := &geom.Ellipse{
		Frame: geom.NewFrame(center, n, major),
		Major: cy.Radius / math.Abs(cos),
		Minor: cy.Radius,
	}
	return closedSpan(e, box, tol)
}

func sphereSphere(s1, s2 geom.Surface, box sdf.Box3, tol float64) []Span {
	a, b := s1.(*geom.Sphere), s2.(*geom.Sphere)
	axis := b.Frame.Origin.Sub(a.Frame.Origin)
	d := axis.Length()
	if d < tol || d >= a.Radius+b.Radius-tol || d <= math.Abs(a.Radius-b.Radius)+tol {
		return nil
	}
	u := axis.MulScalar(1 / d)
	x := (d*d + a.Radius*a.Radius - b.Radius*b.Radius) / (2 * d)
	c := &geom.Circle{
		Frame:  circleFrame(a.Frame.Origin.Add(u.MulScalar(x)), u),
		Radius: math.Sqrt(a.Radius*a.Radius - x*x),
	}
	return closedSpan(c, box, tol)
}
