package intersect

import (
	"math"

	"github.com/chazu/kerf/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// lineLine intersects two lines analytically: closest points for crossing
// lines, a range overlap for collinear ones.
func lineLine(c1 geom.Curve, a0, a1 float64, c2 geom.Curve, b0, b1, tol float64) CurveCurveResult {
	l1, l2 := c1.(*geom.Line), c2.(*geom.Line)
	var res CurveCurveResult
	w := l1.Origin.Sub(l2.Origin)
	b := l1.Dir.Dot(l2.Dir)
	denom := 1 - b*b
	if denom < 1e-12 {
		// parallel: coincide when the offset is within tol
		off := w.Sub(l2.Dir.MulScalar(w.Dot(l2.Dir)))
		if off.Length() > tol {
			return res
		}
		s0 := l2.Project(l1.Evaluate(a0))
		s1 := l2.Project(l1.Evaluate(a1))
		lo, hi := math.Max(math.Min(s0, s1), b0), math.Min(math.Max(s0, s1), b1)
		switch {
		case hi-lo > tol:
			t0, t1 := l1.Project(l2.Evaluate(lo)), l1.Project(l2.Evaluate(hi))
			if t0 > t1 {
				t0, t1 = t1, t0
			}
			res.Overlaps = append(res.Overlaps, Overlap{
				A0: math.Max(t0, a0), A1: math.Min(t1, a1), B0: lo, B1: hi,
			})
		case hi-lo >= -tol:
			// end to end touch
			s := 0.5 * (lo + hi)
			p := l2.Evaluate(s)
			t := math.Max(a0, math.Min(a1, l1.Project(p)))
			res.Crossings = append(res.Crossings, Crossing{T1: t, T2: math.Max(b0, math.Min(b1, s)), Point: p})
		}
		return res
	}

	d, e := l1.Dir.Dot(w), l2.Dir.Dot(w)
	t := (b*e - d) / denom
	s := e + b*t
	if t < a0-tol || t > a1+tol || s < b0-tol || s > b1+tol {
		return res
	}
	t = math.Max(a0, math.Min(a1, t))
	s = math.Max(b0, math.Min(b1, s))
	p, q := l1.Evaluate(t), l2.Evaluate(s)
	if geom.Dist(p, q) > tol {
		return res
	}
	res.Crossings = append(res.Crossings, Crossing{T1: t, T2: s, Point: geom.Lerp(p, q, 0.5)})
	return res
}

// sampledCurves samples c1, measures the distance of each sample to c2 and
// refines the local minima with Gauss-Newton. Runs of samples within tol
// become overlaps.
func sampledCurves(c1 geom.Curve, a0, a1 float64, c2 geom.Curve, b0, b1, tol float64) CurveCurveResult {
	n := max(geom.SampleCount(c1, a0, a1), geom.SampleCount(c2, b0, b1), minSamples)
	ts := samples(a0, a1, n)
	dist := make([]float64, n)
	pts := make([]v3.Vec, n)
	spacing := 0.0
	for i, t := range ts {
		pts[i] = c1.Evaluate(t)
		_, dist[i] = geom.ProjectInRange(c2, pts[i], b0, b1)
		if i > 0 {
			spacing = math.Max(spacing, geom.Dist(pts[i], pts[i-1]))
		}
	}

	var res CurveCurveResult
	covered := make([]bool, n)
	g := func(t float64) float64 {
		_, d := geom.ProjectInRange(c2, c1.Evaluate(t), b0, b1)
		return d - tol
	}
	ptol := geom.ParamTolerance(c1, 0.5*(a0+a1), geom.Confusion)
	for _, r := range runs(n, func(i int) bool { return dist[i] <= tol }) {
		if r[1]-r[0]+1 < overlapRun {
			continue
		}
		lo, hi := ts[r[0]], ts[r[1]]
		if r[0] > 0 {
			lo = geom.Bisect(g, ts[r[0]-1], lo, ptol)
		}
		if r[1] < n-1 {
			hi = geom.Bisect(func(t float64) float64 { return -g(t) }, hi, ts[r[1]+1], ptol)
		}
		for i := r[0]; i <= r[1]; i++ {
			covered[i] = true
		}
		if geom.Dist(c1.Evaluate(lo), c1.Evaluate(hi)) <= tol && !(r[0] == 0 && r[1] == n-1) {
			continue
		}
		res.Overlaps = append(res.Overlaps, curveOverlap(c1, lo, hi, c2, b0, b1, r[0] == 0 && r[1] == n-1))
	}

	for i := 0; i < n; i++ {
		if covered[i] || dist[i] > 2*spacing+tol {
			continue
		}
		if (i > 0 && dist[i] > dist[i-1]) || (i < n-1 && dist[i] > dist[i+1]) {
			continue
		}
		s, _ := geom.ProjectInRange(c2, pts[i], b0, b1)
		t, s, d := refinePair(c1, ts[i], a0, a1, c2, s, b0, b1)
		if d > tol {
			continue
		}
		p := geom.Lerp(c1.Evaluate(t), c2.Evaluate(s), 0.5)
		if duplicateCrossing(res.Crossings, p, tol) || onOverlap(res.Overlaps, t) {
			continue
		}
		res.Crossings = append(res.Crossings, Crossing{T1: t, T2: s, Point: p})
	}
	return res
}

// curveOverlap builds the overlap record for c1 over [lo, hi] by
// projecting the ends onto c2. whole marks a run over all of c1.
func curveOverlap(c1 geom.Curve, lo, hi float64, c2 geom.Curve, b0, b1 float64, whole bool) Overlap {
	s0, _ := geom.ProjectInRange(c2, c1.Evaluate(lo), b0, b1)
	s1, _ := geom.ProjectInRange(c2, c1.Evaluate(hi), b0, b1)
	if s0 > s1 {
		s0, s1 = s1, s0
	}
	closed := geom.Dist(c2.Evaluate(b0), c2.Evaluate(b1)) < geom.Confusion
	if whole && closed && s1-s0 < geom.ParamTolerance(c2, s0, geom.Confusion) {
		s0, s1 = b0, b1
	}
	return Overlap{A0: lo, A1: hi, B0: s0, B1: s1}
}

// refinePair runs Gauss-Newton on |c1(t) - c2(s)| from (t, s), keeping both
// parameters in range. It returns the refined pair and their distance.
func refinePair(c1 geom.Curve, t, a0, a1 float64, c2 geom.Curve, s, b0, b1 float64) (float64, float64, float64) {
	for k := 0; k < 30; k++ {
		r := c1.Evaluate(t).Sub(c2.Evaluate(s))
		d1, d2 := c1.Derivative(t, 1), c2.Derivative(s, 1)
		a := []float64{
			d1.X, -d2.X,
			d1.Y, -d2.Y,
			d1.Z, -d2.Z,
		}
		x, err := geom.SolveLinear(3, 2, a, []float64{-r.X, -r.Y, -r.Z})
		if err != nil {
			// parallel tangents: fall back to alternating projection
			s, _ = geom.ProjectInRange(c2, c1.Evaluate(t), b0, b1)
			t, _ = geom.ProjectInRange(c1, c2.Evaluate(s), a0, a1)
			break
		}
		t = clampParam(c1, t+x[0], a0, a1)
		s = clampParam(c2, s+x[1], b0, b1)
		if math.Abs(x[0])+math.Abs(x[1]) < 1e-14 {
			break
		}
	}
	return t, s, geom.Dist(c1.Evaluate(t), c2.Evaluate(s))
}

func duplicateCrossing(cs []Crossing, p v3.Vec, tol float64) bool {
	for _, c := range cs {
		if geom.Dist(c.Point, p) <= tol+geom.Confusion {
			return true
		}
	}
	return false
}

func onOverlap(os []Overlap, t float64) bool {
	for _, o := range os {
		if t >= o.A0-geom.PConfusion && t <= o.A1+geom.PConfusion {
			return true
		}
	}
	return false
}
