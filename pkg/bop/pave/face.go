package pave

import (
	"cmp"
	"context"
	"slices"

	"github.com/chazu/kerf/pkg/bop/ds"
	"github.com/chazu/kerf/pkg/bop/intersect"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

type spanPave struct {
	t float64
	v int
}

// ffPiece is a candidate section edge between two paves of a span. v0 and
// v1 are -1 on a closed span no vertex lies on.
type ffPiece struct {
	span   int
	t0, t1 float64
	v0, v1 int
	closed bool
}

type faceFace struct {
	spans  []intersect.Span
	pieces []ffPiece
	tol    float64
}

// runFF intersects face surfaces, paves the curves with the vertices already
// known on both faces and keeps the pieces running inside both faces.
func (f *Filler) runFF(ctx context.Context, pairs [][2]int) error {
	return runPhase(ctx, f, ds.FF, pairs, f.kernelFF, f.reduceFF)
}

func (f *Filler) kernelFF(i, j int) (faceFace, error) {
	fa, fb := f.faces[i].face, f.faces[j].face
	box := geom.BoxIntersection(f.ds.BoundingBox(i), f.ds.BoundingBox(j))
	cand := f.boundaryVertices(i)
	for _, v := range f.boundaryVertices(j) {
		if !slices.Contains(cand, v) {
			cand = append(cand, v)
		}
	}
	tol0 := f.pairTol(i, j)
	var seeds []v3.Vec
	for _, v := range cand {
		p := f.ds.Vertex(v).Point
		if geom.SurfaceDistance(fa.Surface, p) <= tol0 && geom.SurfaceDistance(fb.Surface, p) <= tol0 {
			seeds = append(seeds, p)
		}
	}
	spans, tol, err := retry(tol0, func(tol float64) ([]intersect.Span, error) {
		return intersect.SurfaceSurface(fa.Surface, fb.Surface, box, seeds, tol)
	})
	if err != nil {
		return faceFace{}, err
	}
	res := faceFace{spans: spans, tol: tol}
	for k, s := range spans {
		for _, pc := range f.paveSpan(s, cand, tol) {
			mid := s.Curve.Evaluate(0.5 * (pc.t0 + pc.t1))
			if f.classifiers[i].Classify(mid, tol) != topo.In || f.classifiers[j].Classify(mid, tol) != topo.In {
				continue
			}
			pc.span = k
			res.pieces = append(res.pieces, pc)
		}
	}
	return res, nil
}

// paveSpan cuts a span at the candidate vertices lying on it. Open ends
// beyond the outermost paves are dropped: a section curve leaves a face
// only through a paved boundary.
func (f *Filler) paveSpan(s intersect.Span, cand []int, tol float64) []ffPiece {
	closed := s.Closed()
	var pvs []spanPave
	for _, v := range cand {
		vx := f.ds.Vertex(v)
		t, d := geom.ProjectInRange(s.Curve, vx.Point, s.T0, s.T1)
		if d > tol+vx.Tol {
			continue
		}
		if closed && s.T1-t <= geom.ParamTolerance(s.Curve, t, tol) {
			t = s.T0
		}
		pvs = append(pvs, spanPave{t, v})
	}
	slices.SortStableFunc(pvs, func(a, b spanPave) int { return cmp.Compare(a.t, b.t) })
	pvs = slices.CompactFunc(pvs, func(a, b spanPave) bool { return a.v == b.v })

	if closed && len(pvs) == 0 {
		return []ffPiece{{t0: s.T0, t1: s.T1, v0: -1, v1: -1, closed: true}}
	}
	var out []ffPiece
	for k := 0; k+1 < len(pvs); k++ {
		a, b := pvs[k], pvs[k+1]
		if a.v == b.v || geom.Dist(s.Curve.Evaluate(a.t), s.Curve.Evaluate(b.t)) <= tol {
			continue
		}
		out = append(out, ffPiece{t0: a.t, t1: b.t, v0: a.v, v1: b.v})
	}
	if closed {
		a, b := pvs[len(pvs)-1], pvs[0]
		per := s.T1 - s.T0
		switch {
		case len(pvs) == 1:
			out = append(out, ffPiece{t0: a.t, t1: a.t + per, v0: a.v, v1: a.v, closed: true})
		case a.v != b.v:
			out = append(out, ffPiece{t0: a.t, t1: b.t + per, v0: a.v, v1: b.v})
		}
	}
	return out
}

func (f *Filler) reduceFF(i, j int, r faceFace) error {
	if len(r.spans) == 0 {
		return nil
	}
	it := &ds.Interference{Kind: ds.FF, I: i, J: j, Tol: r.tol}
	for _, s := range r.spans {
		it.Sections = append(it.Sections, ds.Section{Curve: s.Curve, T0: s.T0, T1: s.T1})
	}
	for _, pc := range r.pieces {
		c := r.spans[pc.span].Curve
		if pc.v0 < 0 {
			v := f.vertexAt(c.Evaluate(pc.t0), r.tol)
			pc.v0, pc.v1 = v, v
		}
		f.cover(pc.v0, c.Evaluate(pc.t0))
		f.cover(pc.v1, c.Evaluate(pc.t1))
		f.sections = append(f.sections, &sectionPiece{
			curve:  c,
			t0:     pc.t0,
			t1:     pc.t1,
			v0:     pc.v0,
			v1:     pc.v1,
			faces:  [2]int{i, j},
			closed: pc.closed,
		})
	}
	f.ds.AddInterference(it)
	f.count("sections", len(r.pieces))
	return nil
}
