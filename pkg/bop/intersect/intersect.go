// Package intersect holds the narrow-phase kernels of the Boolean engine:
// curve/curve, curve/surface and surface/surface intersection with a
// tolerance. Kernels are chosen from dispatch tables keyed by geometry
// kind; pairs without an analytic kernel fall back to sampling plus Newton
// refinement, or to marching for surface pairs.
//
// The kernels are pure geometry. Deciding which hits lie inside faces and
// turning hits into vertices and paves is the job of the pave filler.
package intersect

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/kerf/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	// ErrUnsupported is returned for geometry pairs no kernel handles.
	ErrUnsupported = errors.New("intersect: no kernel for geometry pair")
	// ErrNoConvergence is returned when a numeric kernel fails to settle.
	ErrNoConvergence = geom.ErrNoConvergence
)

// Crossing is a point where two curves meet.
type Crossing struct {
	T1, T2 float64
	Point  v3.Vec
}

// Overlap is a pair of parameter ranges along which two curves coincide.
// Each range is increasing; the ends do not necessarily correspond.
type Overlap struct {
	A0, A1 float64
	B0, B1 float64
}

// CurveCurveResult collects what CurveCurve found.
type CurveCurveResult struct {
	Crossings []Crossing
	Overlaps  []Overlap
}

// Hit is a point where a curve meets a surface.
type Hit struct {
	T       float64
	Point   v3.Vec
	Tangent bool
}

// Range is a parameter range of a curve lying on a surface.
type Range struct {
	T0, T1 float64
}

// CurveSurfaceResult collects what CurveSurface found.
type CurveSurfaceResult struct {
	Hits   []Hit
	Ranges []Range
}

// Span is a bounded piece of an intersection curve.
type Span struct {
	Curve  geom.Curve
	T0, T1 float64
}

// Closed reports whether the span runs a full period of a closed curve.
func (s Span) Closed() bool {
	per := s.Curve.Period()
	return per > 0 && math.Abs(s.T1-s.T0-per) < geom.PConfusion
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

type curveKey [2]geom.CurveKind

type curveKernel func(c1 geom.Curve, a0, a1 float64, c2 geom.Curve, b0, b1, tol float64) CurveCurveResult

var curveKernels = map[curveKey]curveKernel{
	{geom.CurveLine, geom.CurveLine}: lineLine,
}

// CurveCurve intersects c1 over [a0, a1] with c2 over [b0, b1]. Points
// closer than tol are crossings; pieces that stay within tol are overlaps.
func CurveCurve(c1 geom.Curve, a0, a1 float64, c2 geom.Curve, b0, b1, tol float64) (CurveCurveResult, error) {
	if c1.Kind() == geom.CurveBSpline || c2.Kind() == geom.CurveBSpline {
		return CurveCurveResult{}, fmt.Errorf("%w: %s x %s", ErrUnsupported, c1.Kind(), c2.Kind())
	}
	if k, ok := curveKernels[curveKey{c1.Kind(), c2.Kind()}]; ok {
		return k(c1, a0, a1, c2, b0, b1, tol), nil
	}
	return sampledCurves(c1, a0, a1, c2, b0, b1, tol), nil
}

type curveSurfaceKey struct {
	c geom.CurveKind
	s geom.SurfaceKind
}

type curveSurfaceKernel func(c geom.Curve, t0, t1 float64, s geom.Surface, tol float64) CurveSurfaceResult

var curveSurfaceKernels = map[curveSurfaceKey]curveSurfaceKernel{
	{geom.CurveLine, geom.SurfacePlane}:    lineSurface,
	{geom.CurveLine, geom.SurfaceCylinder}: lineSurface,
	{geom.CurveLine, geom.SurfaceSphere}:   lineSurface,
	{geom.CurveCircle, geom.SurfacePlane}:  conicPlane,
	{geom.CurveEllipse, geom.SurfacePlane}: conicPlane,
}

// CurveSurface intersects c over [t0, t1] with the untrimmed surface s.
func CurveSurface(c geom.Curve, t0, t1 float64, s geom.Surface, tol float64) (CurveSurfaceResult, error) {
	if k, ok := curveSurfaceKernels[curveSurfaceKey{c.Kind(), s.Kind()}]; ok {
		return k(c, t0, t1, s, tol), nil
	}
	if c.Kind() == geom.CurveBSpline {
		return CurveSurfaceResult{}, fmt.Errorf("%w: %s x %s", ErrUnsupported, c.Kind(), s.Kind())
	}
	field, ok := Implicit(s)
	if !ok {
		return CurveSurfaceResult{}, fmt.Errorf("%w: %s x %s", ErrUnsupported, c.Kind(), s.Kind())
	}
	return sampledCurveSurface(c, t0, t1, field, tol), nil
}

// ---------------------------------------------------------------------------
// Parameter helpers
// ---------------------------------------------------------------------------

// clampParam maps t into [t0, t1]. Periodic parameters are wrapped first;
// a value past the end of an arc goes to the nearer end around the period.
func clampParam(c geom.Curve, t, t0, t1 float64) float64 {
	if per := c.Period(); per > 0 {
		t = geom.AdjustPeriodic(t, t0, t1, per, geom.PConfusion)
		if t <= t1 {
			return math.Max(t, t0)
		}
		if t-t1 < t0+per-t {
			return t1
		}
		return t0
	}
	return math.Max(t0, math.Min(t1, t))
}

// inRange wraps t into [t0, t1] within the parametric tolerance ptol and
// reports whether it lands there.
func inRange(c geom.Curve, t, t0, t1, ptol float64) (float64, bool) {
	if per := c.Period(); per > 0 {
		t = geom.AdjustPeriodic(t, t0, t1, per, ptol)
	}
	if t < t0-ptol || t > t1+ptol {
		return t, false
	}
	return math.Max(t0, math.Min(t1, t)), true
}

// samples returns n parameters evenly spaced over [t0, t1].
func samples(t0, t1 float64, n int) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = t0 + (t1-t0)*float64(i)/float64(n-1)
	}
	return ts
}

// runs returns the maximal index runs [i, j] where ok holds.
func runs(n int, ok func(int) bool) [][2]int {
	var out [][2]int
	for i := 0; i < n; i++ {
		if !ok(i) {
			continue
		}
		j := i
		for j+1 < n && ok(j+1) {
			j++
		}
		out = append(out, [2]int{i, j})
		i = j
	}
	return out
}

// minSamples is the smallest sample count of the sampled kernels.
const minSamples = 33

// overlapRun is the number of consecutive in-tolerance samples that make
// an overlap rather than a touching point.
const overlapRun = 3
