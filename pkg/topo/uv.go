package topo

import (
	"fmt"
	"math"

	"github.com/chazu/kerf/pkg/geom"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// TraceUV samples the edge e over [t0, t1] and projects the samples onto s.
// The u coordinate is unwrapped by continuity starting near uRef. reversed
// lists the samples from t1 to t0.
func TraceUV(s geom.Surface, e *Edge, t0, t1 float64, reversed bool, uRef float64) []v2.Vec {
	n := geom.SampleCount(e.Curve, t0, t1)
	uv := make([]v2.Vec, n)
	per := s.UPeriod()
	prev := uRef
	for i := 0; i < n; i++ {
		k := i
		if reversed {
			k = n - 1 - i
		}
		t := t0 + (t1-t0)*float64(k)/float64(n-1)
		u, v := s.Project(e.Curve.Evaluate(t))
		if per > 0 {
			u = geom.NearestPeriodic(u, prev, per)
		}
		uv[i] = v2.Vec{X: u, Y: v}
		prev = u
	}
	fixSingular(s, uv)
	return uv
}

// fixSingular replaces the u coordinate of samples sitting on a singular
// point (a pole) with the u of the neighbouring sample, since projection
// cannot recover it there.
func fixSingular(s geom.Surface, uv []v2.Vec) {
	if len(uv) < 2 {
		return
	}
	for i := range uv {
		if !geom.IsSingular(s, uv[i].X, uv[i].Y) {
			continue
		}
		j := i + 1
		if i == len(uv)-1 {
			j = i - 1
		}
		uv[i].X = uv[j].X
	}
}

// ensureUV fills in missing UV traces of a wire by projection, keeping u
// continuous along the wire. Degenerate edges need an explicit trace.
func ensureUV(s geom.Surface, w *Wire) error {
	uRef := math.NaN()
	for _, oe := range w.Edges {
		if len(oe.UV) > 0 {
			uRef = oe.LastUV().X
			break
		}
	}
	if math.IsNaN(uRef) {
		first := w.Edges[0]
		a, _ := first.Params()
		u, _ := s.Project(first.Edge.Curve.Evaluate(a))
		uRef = u
	}
	for i := range w.Edges {
		oe := &w.Edges[i]
		if len(oe.UV) > 0 {
			uRef = oe.LastUV().X
			continue
		}
		if oe.Edge.Degenerate {
			return fmt.Errorf("%w: degenerate edge %d needs an explicit trace", ErrConstruction, i)
		}
		oe.UV = TraceUV(s, oe.Edge, oe.Edge.T0, oe.Edge.T1, oe.Reversed, uRef)
		uRef = oe.LastUV().X
	}
	return nil
}

// SignedArea returns the signed area of a closed polygon; positive when it
// runs counter-clockwise.
func SignedArea(pts []v2.Vec) float64 {
	var a float64
	for i := range pts {
		p, q := pts[i], pts[(i+1)%len(pts)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

// PointInPolygon reports whether p is inside the closed polygon using the
// crossing rule.
func PointInPolygon(p v2.Vec, pts []v2.Vec) bool {
	in := false
	n := len(pts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := pts[i], pts[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				in = !in
			}
		}
	}
	return in
}

// UVBounds returns the parameter-space bounding rectangle of the face.
func (f *Face) UVBounds() (min, max v2.Vec) {
	min = v2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	max = v2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, w := range f.Wires {
		for _, oe := range w.Edges {
			for _, p := range oe.UV {
				min.X = math.Min(min.X, p.X)
				min.Y = math.Min(min.Y, p.Y)
				max.X = math.Max(max.X, p.X)
				max.Y = math.Max(max.Y, p.Y)
			}
		}
	}
	return min, max
}

// SliceUV computes the trace of the piece [t0, t1] of the edge used by
// parent. The samples are unwrapped to stay next to the parent trace.
func SliceUV(s geom.Surface, parent OrientedEdge, t0, t1 float64, reversed bool) []v2.Vec {
	if parent.Edge.Degenerate {
		a, b := InterpolateUV(parent, t0), InterpolateUV(parent, t1)
		if reversed {
			a, b = b, a
		}
		return []v2.Vec{a, b}
	}
	start := t0
	if reversed {
		start = t1
	}
	uv := TraceUV(s, parent.Edge, t0, t1, reversed, InterpolateUV(parent, start).X)
	per := s.UPeriod()
	if per == 0 {
		return uv
	}
	n := len(uv)
	for i := range uv {
		k := i
		if reversed {
			k = n - 1 - i
		}
		t := t0 + (t1-t0)*float64(k)/float64(n-1)
		uv[i].X = geom.NearestPeriodic(uv[i].X, InterpolateUV(parent, t).X, per)
	}
	return uv
}

// InterpolateUV evaluates the trace of oe at edge parameter t by linear
// interpolation between samples.
func InterpolateUV(oe OrientedEdge, t float64) v2.Vec {
	e := oe.Edge
	uv := oe.UV
	n := len(uv)
	if n == 1 {
		return uv[0]
	}
	f := (t - e.T0) / (e.T1 - e.T0)
	if oe.Reversed {
		f = 1 - f
	}
	x := f * float64(n-1)
	i := int(math.Floor(x))
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	return geom.Lerp2(uv[i], uv[i+1], x-float64(i))
}
