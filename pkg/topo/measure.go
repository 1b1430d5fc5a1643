package topo

import (
	"math"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	gaussNodes = 8
	chunkAngle = math.Pi / 8
)

// Volume returns the enclosed volume of every solid in s, voids subtracted.
// It is computed from the divergence theorem, turning each face flux into a
// boundary integral over its wires with Green's theorem.
func Volume(s Shape) float64 {
	var total float64
	for f := range Faces(s) {
		total += faceIntegral(f, func(p, su, sv v3.Vec) float64 {
			return p.Dot(su.Cross(sv))
		})
	}
	return total / 3
}

// Area returns the total area of the faces of s.
func Area(s Shape) float64 {
	var total float64
	for f := range Faces(s) {
		a := faceIntegral(f, func(_, su, sv v3.Vec) float64 {
			return su.Cross(sv).Length()
		})
		if f.Reversed {
			a = -a
		}
		total += a
	}
	return total
}

// faceIntegral returns the integral over the face domain of g(S, Su, Sv)
// du dv, negated for reversed faces. With F(u, v) the integral of g from 0
// to u, it equals the sum over the boundary uses of the integral of F dv.
func faceIntegral(f *Face, g func(p, su, sv v3.Vec) float64) float64 {
	s := f.Surface
	inner := func(u, v float64) float64 {
		h := func(x float64) float64 {
			return g(s.Evaluate(x, v), s.Derivative(x, v, 1, 0), s.Derivative(x, v, 0, 1))
		}
		if s.UPeriod() == 0 {
			return geom.Integrate(h, 0, u, gaussNodes)
		}
		return chunked(h, 0, u)
	}
	var sum float64
	for _, w := range f.Wires {
		for _, oe := range w.Edges {
			if oe.Edge.Degenerate {
				continue
			}
			sum += useIntegral(s, oe, inner)
		}
	}
	if f.Reversed {
		return -sum
	}
	return sum
}

// useIntegral integrates F(u(t), v(t)) v'(t) along one edge use.
func useIntegral(s geom.Surface, oe OrientedEdge, F func(u, v float64) float64) float64 {
	c := oe.Edge.Curve
	per := s.UPeriod()
	integrand := func(t float64) float64 {
		p := c.Evaluate(t)
		u, v := s.Project(p)
		if per > 0 {
			u = geom.NearestPeriodic(u, InterpolateUV(oe, t).X, per)
		}
		su, sv := s.Derivative(u, v, 1, 0), s.Derivative(u, v, 0, 1)
		d := c.Derivative(t, 1)
		a, b, cc := su.Dot(su), su.Dot(sv), sv.Dot(sv)
		det := a*cc - b*b
		if det < 1e-300 {
			return 0
		}
		dv := (a*d.Dot(sv) - b*d.Dot(su)) / det
		return F(u, v) * dv
	}
	a, b := oe.Params()
	if c.Kind() == geom.CurvePolyline {
		return piecewise(integrand, a, b)
	}
	if c.Kind() == geom.CurveLine {
		return geom.Integrate(integrand, a, b, gaussNodes)
	}
	return chunked(integrand, a, b)
}

// chunked integrates f over [a, b] with a composite rule whose panels span
// at most chunkAngle.
func chunked(f func(float64) float64, a, b float64) float64 {
	n := int(math.Ceil(math.Abs(b-a) / chunkAngle))
	if n < 1 {
		n = 1
	}
	var sum float64
	h := (b - a) / float64(n)
	for i := 0; i < n; i++ {
		sum += geom.Integrate(f, a+h*float64(i), a+h*float64(i+1), gaussNodes)
	}
	return sum
}

// piecewise integrates f over [a, b] split at the polyline vertices.
func piecewise(f func(float64) float64, a, b float64) float64 {
	lo, hi, sign := a, b, 1.0
	if lo > hi {
		lo, hi, sign = b, a, -1
	}
	var sum float64
	for x := lo; x < hi; {
		next := math.Min(hi, math.Floor(x)+1)
		sum += geom.Integrate(f, x, next, gaussNodes)
		x = next
	}
	return sign * sum
}

// ---------------------------------------------------------------------------
// Bounding boxes
// ---------------------------------------------------------------------------

// EdgeBox returns a box enclosing the edge, inflated by its tolerance.
func EdgeBox(e *Edge) sdf.Box3 {
	return geom.BoxEnlarge(edgeExtent(e), e.Tol)
}

// FaceBox returns a box enclosing the face, inflated by its tolerance.
func FaceBox(f *Face) sdf.Box3 {
	return geom.BoxEnlarge(faceExtent(f), f.Tol)
}

// Bounds returns the exact extent of the geometry of s. Tolerances are not
// added.
func Bounds(s Shape) sdf.Box3 {
	b := geom.EmptyBox()
	for f := range Faces(s) {
		b = geom.BoxUnion(b, faceExtent(f))
	}
	for e := range Edges(s) {
		b = geom.BoxUnion(b, edgeExtent(e))
	}
	for v := range Vertices(s) {
		b = geom.BoxAddPoint(b, v.Point)
	}
	return b
}

func edgeExtent(e *Edge) sdf.Box3 {
	if e.Degenerate {
		return geom.BoxAddPoint(geom.EmptyBox(), e.V0.Point)
	}
	return CurveExtent(e.Curve, e.T0, e.T1)
}

// wireExtent is the extent of the boundary edges of f.
func wireExtent(f *Face) sdf.Box3 {
	b := geom.EmptyBox()
	for _, w := range f.Wires {
		for _, oe := range w.Edges {
			b = geom.BoxUnion(b, edgeExtent(oe.Edge))
		}
	}
	return b
}

// faceExtent bounds a face by its edges. A coordinate restricted to a plane
// or a cylinder has no isolated extremum, so it peaks on the boundary; on a
// sphere it also peaks at the six axis points, added when they lie on the
// face.
func faceExtent(f *Face) sdf.Box3 {
	b := wireExtent(f)
	sph, ok := f.Surface.(*geom.Sphere)
	if !ok {
		return b
	}
	fc := NewFaceClassifier(f)
	for _, d := range []v3.Vec{{X: 1}, {Y: 1}, {Z: 1}} {
		for _, sign := range []float64{1, -1} {
			q := sph.Frame.Origin.Add(d.MulScalar(sign * sph.Radius))
			if fc.Classify(q, geom.Confusion) != Out {
				b = geom.BoxAddPoint(b, q)
			}
		}
	}
	return b
}

// CurveExtent returns the exact box of c over [t0, t1]. Conics add their
// axis extrema inside the range; a polyline adds its inner points.
func CurveExtent(c geom.Curve, t0, t1 float64) sdf.Box3 {
	if t1 < t0 {
		t0, t1 = t1, t0
	}
	b := geom.BoxAddPoint(geom.BoxAddPoint(geom.EmptyBox(), c.Evaluate(t0)), c.Evaluate(t1))
	switch c := c.(type) {
	case *geom.Line:
	case *geom.Polyline:
		for t := math.Floor(t0) + 1; t < t1; t++ {
			b = geom.BoxAddPoint(b, c.Evaluate(t))
		}
	case *geom.Circle:
		b = conicExtrema(b, c, c.Frame, c.Radius, c.Radius, t0, t1)
	case *geom.Ellipse:
		b = conicExtrema(b, c, c.Frame, c.Major, c.Minor, t0, t1)
	default:
		n := geom.SampleCount(c, t0, t1)
		for _, p := range geom.Sample(c, t0, t1, n) {
			b = geom.BoxAddPoint(b, p)
		}
	}
	return b
}

// conicExtrema adds the points of O + a cos(t) X + b sin(t) Y in [t0, t1]
// where one coordinate is stationary.
func conicExtrema(box sdf.Box3, c geom.Curve, f geom.Frame, a, b float64, t0, t1 float64) sdf.Box3 {
	for i := range 3 {
		x, y := a*geom.Component(f.X, i), b*geom.Component(f.Y, i)
		if x == 0 && y == 0 {
			continue
		}
		base := math.Atan2(y, x)
		for _, s := range []float64{base, base + math.Pi} {
			k := math.Ceil((t0 - s) / geom.TwoPi)
			for t := s + k*geom.TwoPi; t <= t1; t += geom.TwoPi {
				box = geom.BoxAddPoint(box, c.Evaluate(t))
			}
		}
	}
	return box
}
