package pave

import (
	"context"
	"errors"

	"github.com/chazu/kerf/pkg/bop/ds"
	"github.com/chazu/kerf/pkg/bop/intersect"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
)

// retry runs kernel at tol and, when it fails to converge, once more at
// twice tol. The tolerance that produced the result is returned with it.
func retry[T any](tol float64, kernel func(tol float64) (T, error)) (T, float64, error) {
	r, err := kernel(tol)
	if errors.Is(err, intersect.ErrNoConvergence) {
		tol *= 2
		r, err = kernel(tol)
	}
	return r, tol, err
}

type edgeEdge struct {
	res intersect.CurveCurveResult
	tol float64
}

func (f *Filler) runEE(ctx context.Context, pairs [][2]int) error {
	return runPhase(ctx, f, ds.EE, pairs,
		func(i, j int) (edgeEdge, error) {
			a, b := f.ds.Shape(i).(*topo.Edge), f.ds.Shape(j).(*topo.Edge)
			res, tol, err := retry(f.pairTol(i, j), func(tol float64) (intersect.CurveCurveResult, error) {
				return intersect.CurveCurve(a.Curve, a.T0, a.T1, b.Curve, b.T0, b.T1, tol)
			})
			return edgeEdge{res, tol}, err
		},
		f.reduceEE)
}

func (f *Filler) reduceEE(i, j int, r edgeEdge) error {
	if len(r.res.Crossings) == 0 && len(r.res.Overlaps) == 0 {
		return nil
	}
	a, b := f.ds.Shape(i).(*topo.Edge), f.ds.Shape(j).(*topo.Edge)
	it := &ds.Interference{Kind: ds.EE, I: i, J: j, Tol: r.tol}
	for _, c := range r.res.Crossings {
		v := f.vertexAt(c.Point, r.tol)
		f.AddPave(i, c.T1, v)
		f.AddPave(j, c.T2, v)
		img := f.ds.Image(v)
		it.Contacts = append(it.Contacts, ds.Contact{Point: c.Point, TI: c.T1, TJ: c.T2, Vertex: img})
		f.contacts = append(f.contacts, img)
	}
	for _, o := range r.res.Overlaps {
		p0, p1 := a.Curve.Evaluate(o.A0), a.Curve.Evaluate(o.A1)
		v0, v1 := f.vertexAt(p0, r.tol), f.vertexAt(p1, r.tol)
		f.AddPave(i, o.A0, v0)
		f.AddPave(i, o.A1, v1)
		t0, _ := geom.ProjectInRange(b.Curve, p0, b.T0, b.T1)
		t1, _ := geom.ProjectInRange(b.Curve, p1, b.T0, b.T1)
		f.AddPave(j, t0, v0)
		f.AddPave(j, t1, v1)
		it.Overlaps = append(it.Overlaps, ds.Overlap{
			I0: o.A0, I1: o.A1, J0: o.B0, J1: o.B1,
			V0: f.ds.Image(v0), V1: f.ds.Image(v1),
		})
	}
	f.ds.AddInterference(it)
	return nil
}

type edgeFace struct {
	res intersect.CurveSurfaceResult
	loc []topo.Location
	tol float64
}

// runEF paves edges where they pierce faces of other operands. Contacts on
// a face boundary are left to EE; ranges where an edge lies on a face are
// resolved into embedded edges once the edge is split.
func (f *Filler) runEF(ctx context.Context, pairs [][2]int) error {
	return runPhase(ctx, f, ds.EF, pairs,
		func(e, fi int) (edgeFace, error) {
			ed := f.ds.Shape(e).(*topo.Edge)
			face := f.faces[fi].face
			res, tol, err := retry(f.pairTol(e, fi), func(tol float64) (intersect.CurveSurfaceResult, error) {
				return intersect.CurveSurface(ed.Curve, ed.T0, ed.T1, face.Surface, tol)
			})
			if err != nil {
				return edgeFace{}, err
			}
			loc := make([]topo.Location, len(res.Hits))
			for k, h := range res.Hits {
				loc[k] = f.classifiers[fi].Classify(h.Point, tol)
			}
			return edgeFace{res, loc, tol}, nil
		},
		f.reduceEF)
}

func (f *Filler) reduceEF(e, fi int, r edgeFace) error {
	ed := f.ds.Shape(e).(*topo.Edge)
	it := &ds.Interference{Kind: ds.EF, I: e, J: fi, Tol: r.tol}
	for k, h := range r.res.Hits {
		if r.loc[k] != topo.In {
			continue
		}
		v := f.vertexAt(h.Point, r.tol)
		if h.Tangent {
			// a touch does not cut the face
			f.faces[fi].inVertices = append(f.faces[fi].inVertices, f.ds.Image(v))
		} else {
			f.AddPave(e, h.T, v)
		}
		img := f.ds.Image(v)
		it.Contacts = append(it.Contacts, ds.Contact{Point: h.Point, TI: h.T, Vertex: img})
		f.contacts = append(f.contacts, img)
	}
	for _, rg := range r.res.Ranges {
		v0 := f.vertexAt(ed.Curve.Evaluate(rg.T0), r.tol)
		v1 := f.vertexAt(ed.Curve.Evaluate(rg.T1), r.tol)
		f.AddPave(e, rg.T0, v0)
		f.AddPave(e, rg.T1, v1)
		f.faces[fi].inRanges = append(f.faces[fi].inRanges, edgeRange{edge: e, t0: rg.T0, t1: rg.T1})
		it.Overlaps = append(it.Overlaps, ds.Overlap{I0: rg.T0, I1: rg.T1, V0: f.ds.Image(v0), V1: f.ds.Image(v1)})
	}
	if len(it.Contacts) > 0 || len(it.Overlaps) > 0 {
		f.ds.AddInterference(it)
	}
	return nil
}
