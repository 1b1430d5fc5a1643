package intersect

import (
	"math"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

const maxSteps = 4000

// marcher traces the intersection of two implicit surfaces as polylines.
// Each step predicts along f1' x f2' and corrects with Newton onto both
// surfaces and the plane normal to the step.
type marcher struct {
	f1, f2 Field
	box    sdf.Box3
	h      float64
	tol    float64
}

func (m *marcher) run(seeds []v3.Vec) ([]Span, error) {
	if m.h <= 0 || math.IsInf(m.h, 0) || math.IsNaN(m.h) {
		return nil, nil
	}
	var spans []Span
	for _, s := range seeds {
		p, ok := m.correct(s, s, v3.Vec{})
		if !ok || geom.Dist(p, s) > m.tol+geom.Confusion {
			continue
		}
		if coveredBy(spans, p, 0.5*m.h) {
			continue
		}
		pl, err := m.trace(p, seeds)
		if err != nil {
			return spans, err
		}
		if pl == nil {
			continue
		}
		lo, hi := pl.ParameterRange()
		spans = append(spans, Span{Curve: pl, T0: lo, T1: hi})
	}
	return spans, nil
}

func coveredBy(spans []Span, p v3.Vec, d float64) bool {
	for _, s := range spans {
		if geom.Dist(s.Curve.Evaluate(s.Curve.Project(p)), p) < d {
			return true
		}
	}
	return false
}

// trace marches both ways from p0. A loop back to p0 closes the curve.
func (m *marcher) trace(p0 v3.Vec, seeds []v3.Vec) (*geom.Polyline, error) {
	fwd, closed, err := m.walk(p0, 1, seeds)
	if err != nil {
		return nil, err
	}
	if closed {
		return &geom.Polyline{Points: fwd, Closed: true}, nil
	}
	bwd, _, err := m.walk(p0, -1, seeds)
	if err != nil {
		return nil, err
	}
	pts := make([]v3.Vec, 0, len(fwd)+len(bwd))
	for i := len(bwd) - 1; i > 0; i-- {
		pts = append(pts, bwd[i])
	}
	pts = append(pts, fwd...)
	if len(pts) < 2 {
		return nil, nil
	}
	return &geom.Polyline{Points: pts}, nil
}

func (m *marcher) tangent(p v3.Vec) v3.Vec {
	return geom.Unit(m.f1.Gradient(p).Cross(m.f2.Gradient(p)))
}

// walk steps from p0 in direction sign until the curve leaves the box,
// closes, or the step budget runs out.
func (m *marcher) walk(p0 v3.Vec, sign float64, seeds []v3.Vec) ([]v3.Vec, bool, error) {
	pts := []v3.Vec{p0}
	p := p0
	for step := 0; step < maxSteps; step++ {
		t := m.tangent(p).MulScalar(sign)
		if t.Length() == 0 {
			// tangent surfaces
			return pts, false, nil
		}
		q, ok := m.advance(p, t)
		if !ok {
			if len(pts) < 2 && sign > 0 {
				return nil, false, ErrNoConvergence
			}
			return pts, false, nil
		}
		if len(pts) > 2 && segmentDistance(p0, p, q) < 0.5*m.h {
			return append(pts, p0), true, nil
		}
		for _, s := range seeds {
			if geom.Dist(s, p) > m.tol && geom.Dist(s, p0) > m.tol && segmentDistance(s, p, q) < 0.5*m.h {
				q = s
				break
			}
		}
		pts = append(pts, q)
		if !geom.BoxContains(m.box, q, 0) {
			return pts, false, nil
		}
		p = q
	}
	return pts, false, nil
}

// advance takes one predictor-corrector step from p along t, halving the
// step when Newton fails or jumps to another branch.
func (m *marcher) advance(p, t v3.Vec) (v3.Vec, bool) {
	h := m.h
	for try := 0; try < 6; try++ {
		pred := p.Add(t.MulScalar(h))
		q, ok := m.correct(pred, pred, t)
		if ok && geom.Dist(q, p) < 2*h && math.Abs(m.tangent(q).Dot(t)) > 0.5 {
			return q, true
		}
		h *= 0.5
	}
	return p, false
}

// correct moves x onto both surfaces by Newton iteration. With a zero dir
// the minimum-norm step is taken; otherwise the point is also held on the
// plane through q normal to dir.
func (m *marcher) correct(x, q, dir v3.Vec) (v3.Vec, bool) {
	eps := math.Max(0.01*m.tol, 1e-13)
	for k := 0; k < 30; k++ {
		g1, g2 := m.f1.Gradient(x), m.f2.Gradient(x)
		r1, r2 := m.f1.Value(x), m.f2.Value(x)
		var dx []float64
		var err error
		if dir == (v3.Vec{}) {
			dx, err = geom.SolveLinear(2, 3,
				[]float64{g1.X, g1.Y, g1.Z, g2.X, g2.Y, g2.Z},
				[]float64{-r1, -r2})
		} else {
			dx, err = geom.SolveLinear(3, 3,
				[]float64{g1.X, g1.Y, g1.Z, g2.X, g2.Y, g2.Z, dir.X, dir.Y, dir.Z},
				[]float64{-r1, -r2, -dir.Dot(x.Sub(q))})
		}
		if err != nil {
			return x, false
		}
		step := v3.Vec{X: dx[0], Y: dx[1], Z: dx[2]}
		x = x.Add(step)
		if step.Length() < eps {
			break
		}
	}
	ok := math.Abs(m.f1.Value(x)) <= m.tol && math.Abs(m.f2.Value(x)) <= m.tol
	return x, ok
}

// segmentDistance returns the distance from p to the segment [a, b].
func segmentDistance(p, a, b v3.Vec) float64 {
	ab := b.Sub(a)
	f := 0.0
	if l2 := ab.Dot(ab); l2 > 0 {
		f = math.Max(0, math.Min(1, p.Sub(a).Dot(ab)/l2))
	}
	return geom.Dist(geom.Lerp(a, b, f), p)
}
