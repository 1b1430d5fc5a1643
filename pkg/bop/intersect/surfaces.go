package intersect

import (
	"cmp"
	"math"
	"slices"

	"github.com/chazu/kerf/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Field is an implicit description of a surface: Value is a signed
// distance-like function that vanishes on the surface.
type Field interface {
	Value(p v3.Vec) float64
	Gradient(p v3.Vec) v3.Vec
}

type planeField struct{ pl *geom.Plane }

func (f planeField) Value(p v3.Vec) float64 { return f.pl.SignedDistance(p) }
func (f planeField) Gradient(p v3.Vec) v3.Vec { return f.pl.Frame.Z }

type cylinderField struct{ c *geom.Cylinder }

func (f cylinderField) Value(p v3.Vec) float64 {
	l := f.c.Frame.Local(p)
	return math.Hypot(l.X, l.Y) - f.c.Radius
}

func (f cylinderField) Gradient(p v3.Vec) v3.Vec {
	l := f.c.Frame.Local(p)
	rho := math.Hypot(l.X, l.Y)
	if rho < geom.Angular {
		return f.c.Frame.X
	}
	return f.c.Frame.X.MulScalar(l.X / rho).Add(f.c.Frame.Y.MulScalar(l.Y / rho))
}

type sphereField struct{ s *geom.Sphere }

func (f sphereField) Value(p v3.Vec) float64 {
	return geom.Dist(p, f.s.Frame.Origin) - f.s.Radius
}

func (f sphereField) Gradient(p v3.Vec) v3.Vec {
	g := geom.Unit(p.Sub(f.s.Frame.Origin))
	if g.Length() == 0 {
		return f.s.Frame.Z
	}
	return g
}

// Implicit returns the field of s, or false for surfaces without one.
func Implicit(s geom.Surface) (Field, bool) {
	switch sh := s.(type) {
	case *geom.Plane:
		return planeField{sh}, true
	case *geom.Cylinder:
		return cylinderField{sh}, true
	case *geom.Sphere:
		return sphereField{sh}, true
	}
	return nil, false
}

// curvature returns the smallest radius of curvature of s, +Inf for planes.
func curvature(s geom.Surface) float64 {
	switch sh := s.(type) {
	case *geom.Cylinder:
		return sh.Radius
	case *geom.Sphere:
		return sh.Radius
	}
	return math.Inf(1)
}

// ---------------------------------------------------------------------------
// Lines
// ---------------------------------------------------------------------------

// LineSurface returns the parameters, in increasing order, where the line
// o + t*d meets s. A line lying in s yields no parameters.
func LineSurface(o, d v3.Vec, s geom.Surface) []float64 {
	ts, _, _ := lineRoots(o, d, s)
	return ts
}

// lineRoots solves the line against s. on reports a line contained in the
// surface, tangent a double root.
func lineRoots(o, d v3.Vec, s geom.Surface) (ts []float64, on, tangent bool) {
	switch sh := s.(type) {
	case *geom.Plane:
		n := sh.Frame.Z
		dn := d.Dot(n)
		h := sh.SignedDistance(o)
		if math.Abs(dn) < 1e-12*d.Length() {
			return nil, math.Abs(h) <= geom.Confusion, false
		}
		return []float64{-h / dn}, false, false
	case *geom.Cylinder:
		lo := sh.Frame.Local(o)
		ld := v3.Vec{X: d.Dot(sh.Frame.X), Y: d.Dot(sh.Frame.Y), Z: d.Dot(sh.Frame.Z)}
		a := ld.X*ld.X + ld.Y*ld.Y
		if a < 1e-12*d.Dot(d) {
			return nil, math.Abs(math.Hypot(lo.X, lo.Y)-sh.Radius) <= geom.Confusion, false
		}
		b := 2 * (lo.X*ld.X + lo.Y*ld.Y)
		c := lo.X*lo.X + lo.Y*lo.Y - sh.Radius*sh.Radius
		r := geom.QuadraticRoots(a, b, c)
		return r, false, len(r) == 1
	case *geom.Sphere:
		w := o.Sub(sh.Frame.Origin)
		r := geom.QuadraticRoots(d.Dot(d), 2*d.Dot(w), w.Dot(w)-sh.Radius*sh.Radius)
		return r, false, len(r) == 1
	}
	return nil, false, false
}

// lineSurface intersects a line edge with a plane, cylinder or sphere. A
// line lying within tol of the surface over its whole range is a range.
func lineSurface(c geom.Curve, t0, t1 float64, s geom.Surface, tol float64) CurveSurfaceResult {
	l := c.(*geom.Line)
	var res CurveSurfaceResult
	field, _ := Implicit(s)
	if math.Abs(field.Value(l.Evaluate(t0))) <= tol && math.Abs(field.Value(l.Evaluate(t1))) <= tol &&
		math.Abs(field.Value(l.Evaluate(0.5*(t0+t1)))) <= tol {
		res.Ranges = append(res.Ranges, Range{T0: t0, T1: t1})
		return res
	}
	ts, _, tangent := lineRoots(l.Origin, l.Dir, s)
	for _, t := range ts {
		if t < t0-tol || t > t1+tol {
			continue
		}
		t = math.Max(t0, math.Min(t1, t))
		res.Hits = append(res.Hits, Hit{T: t, Point: l.Evaluate(t), Tangent: tangent})
	}
	if len(res.Hits) > 0 {
		return res
	}
	// grazing within tol without a real root
	return sampledCurveSurface(c, t0, t1, field, tol)
}

// conicPlane intersects a circle or ellipse with a plane. With the curve
// written as A cos t + B sin t + C along the plane normal the roots are
// closed form.
func conicPlane(c geom.Curve, t0, t1 float64, s geom.Surface, tol float64) CurveSurfaceResult {
	pl := s.(*geom.Plane)
	var fr geom.Frame
	var ra, rb float64
	switch cv := c.(type) {
	case *geom.Circle:
		fr, ra, rb = cv.Frame, cv.Radius, cv.Radius
	case *geom.Ellipse:
		fr, ra, rb = cv.Frame, cv.Major, cv.Minor
	}
	n := pl.Frame.Z
	a := ra * fr.X.Dot(n)
	b := rb * fr.Y.Dot(n)
	h := pl.SignedDistance(fr.Origin)
	var res CurveSurfaceResult
	r := math.Hypot(a, b)
	if r < tol {
		// curve parallel to the plane
		if math.Abs(h) <= tol {
			res.Ranges = append(res.Ranges, Range{T0: t0, T1: t1})
		}
		return res
	}
	phi := math.Atan2(b, a)
	x := -h / r
	var roots []float64
	tangent := false
	switch {
	case math.Abs(x) > 1+tol/r:
		return res
	case math.Abs(x) >= 1-1e-12:
		roots, tangent = []float64{phi + math.Acos(math.Max(-1, math.Min(1, x)))}, true
	default:
		ac := math.Acos(x)
		roots = []float64{phi - ac, phi + ac}
	}
	ptol := geom.ParamTolerance(c, t0, tol)
	for _, t := range roots {
		t, ok := inRange(c, t, t0, t1, ptol)
		if !ok {
			continue
		}
		p := c.Evaluate(t)
		if duplicateHit(res.Hits, p, tol) {
			continue
		}
		res.Hits = append(res.Hits, Hit{T: t, Point: p, Tangent: tangent})
	}
	slices.SortFunc(res.Hits, func(x, y Hit) int { return cmp.Compare(x.T, y.T) })
	return res
}

// ---------------------------------------------------------------------------
// Sampled fallback
// ---------------------------------------------------------------------------

// sampledCurveSurface samples the field along the curve. Sign changes are
// bisected into crossings, local minima of |f| within tol are tangent
// touches and runs within tol are ranges.
func sampledCurveSurface(c geom.Curve, t0, t1 float64, field Field, tol float64) CurveSurfaceResult {
	n := max(geom.SampleCount(c, t0, t1), minSamples)
	ts := samples(t0, t1, n)
	fs := make([]float64, n)
	for i, t := range ts {
		fs[i] = field.Value(c.Evaluate(t))
	}
	f := func(t float64) float64 { return field.Value(c.Evaluate(t)) }
	absf := func(t float64) float64 { return math.Abs(f(t)) - tol }
	ptol := geom.ParamTolerance(c, 0.5*(t0+t1), geom.Confusion)

	var res CurveSurfaceResult
	covered := make([]bool, n)
	for _, r := range runs(n, func(i int) bool { return math.Abs(fs[i]) <= tol }) {
		if r[1]-r[0]+1 < overlapRun {
			continue
		}
		lo, hi := ts[r[0]], ts[r[1]]
		if r[0] > 0 {
			lo = geom.Bisect(absf, ts[r[0]-1], lo, ptol)
		}
		if r[1] < n-1 {
			hi = geom.Bisect(func(t float64) float64 { return -absf(t) }, hi, ts[r[1]+1], ptol)
		}
		for i := r[0]; i <= r[1]; i++ {
			covered[i] = true
		}
		res.Ranges = append(res.Ranges, Range{T0: lo, T1: hi})
	}

	add := func(t float64, tangent bool) {
		p := c.Evaluate(t)
		if duplicateHit(res.Hits, p, tol) {
			return
		}
		res.Hits = append(res.Hits, Hit{T: t, Point: p, Tangent: tangent})
	}
	for i := 0; i+1 < n; i++ {
		if covered[i] || covered[i+1] {
			continue
		}
		switch {
		case fs[i] == 0:
			add(ts[i], false)
		case fs[i]*fs[i+1] < 0:
			add(geom.Bisect(f, ts[i], ts[i+1], ptol), false)
		}
	}
	if !covered[n-1] && fs[n-1] == 0 {
		add(ts[n-1], false)
	}
	for i := 0; i < n; i++ {
		if covered[i] {
			continue
		}
		a := math.Abs(fs[i])
		if (i > 0 && a > math.Abs(fs[i-1])) || (i < n-1 && a > math.Abs(fs[i+1])) {
			continue
		}
		if (i > 0 && fs[i]*fs[i-1] <= 0) || (i < n-1 && fs[i]*fs[i+1] <= 0) {
			// a crossing, found above
			continue
		}
		lo, hi := ts[max(i-1, 0)], ts[min(i+1, n-1)]
		t := goldenMin(func(t float64) float64 { return math.Abs(f(t)) }, lo, hi, ptol)
		if math.Abs(f(t)) <= tol {
			add(t, true)
		}
	}
	slices.SortFunc(res.Hits, func(x, y Hit) int { return cmp.Compare(x.T, y.T) })
	return res
}

// goldenMin minimizes a unimodal f on [a, b].
func goldenMin(f func(float64) float64, a, b, tol float64) float64 {
	const g = 0.6180339887498949
	c, d := b-g*(b-a), a+g*(b-a)
	fc, fd := f(c), f(d)
	for i := 0; i < 100 && b-a > tol; i++ {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - g*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + g*(b-a)
			fd = f(d)
		}
	}
	return 0.5 * (a + b)
}

func duplicateHit(hs []Hit, p v3.Vec, tol float64) bool {
	for _, h := range hs {
		if geom.Dist(h.Point, p) <= tol+geom.Confusion {
			return true
		}
	}
	return false
}
