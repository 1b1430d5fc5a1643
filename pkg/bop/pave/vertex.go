package pave

import (
	"context"

	"github.com/chazu/kerf/pkg/bop/ds"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
)

// vertexOn is a vertex found on an edge or a face.
type vertexOn struct {
	hit bool
	t   float64
	d   float64
}

func (f *Filler) runVV(ctx context.Context, pairs [][2]int) error {
	return runPhase(ctx, f, ds.VV, pairs,
		func(i, j int) (vertexOn, error) {
			vi, vj := f.ds.Vertex(i), f.ds.Vertex(j)
			d := geom.Dist(vi.Point, vj.Point)
			return vertexOn{hit: d <= f.pairTol(i, j), d: d}, nil
		},
		func(i, j int, r vertexOn) error {
			if !r.hit {
				return nil
			}
			img := f.ds.MergeVertices(i, j)
			f.ds.AddInterference(&ds.Interference{
				Kind:     ds.VV,
				I:        i,
				J:        j,
				Contacts: []ds.Contact{{Point: f.ds.Vertex(img).Point, Vertex: img}},
				Tol:      f.pairTol(i, j),
			})
			f.contacts = append(f.contacts, img)
			return nil
		})
}

func (f *Filler) runVE(ctx context.Context, pairs [][2]int) error {
	return runPhase(ctx, f, ds.VE, pairs,
		func(v, e int) (vertexOn, error) {
			p := f.ds.Vertex(f.ds.Image(v)).Point
			ed := f.ds.Shape(e).(*topo.Edge)
			t, d := geom.ProjectInRange(ed.Curve, p, ed.T0, ed.T1)
			return vertexOn{hit: d <= f.pairTol(v, e), t: t, d: d}, nil
		},
		func(v, e int, r vertexOn) error {
			if !r.hit {
				return nil
			}
			f.AddPave(e, r.t, v)
			img := f.ds.Image(v)
			f.ds.AddInterference(&ds.Interference{
				Kind:     ds.VE,
				I:        v,
				J:        e,
				Contacts: []ds.Contact{{Point: f.ds.Vertex(img).Point, TJ: r.t, Vertex: img}},
				Tol:      f.pairTol(v, e),
			})
			f.contacts = append(f.contacts, img)
			return nil
		})
}

// runVF records vertices lying strictly inside faces of other operands.
// Vertices on the face boundary are found by VV and VE.
func (f *Filler) runVF(ctx context.Context, pairs [][2]int) error {
	return runPhase(ctx, f, ds.VF, pairs,
		func(v, fi int) (vertexOn, error) {
			p := f.ds.Vertex(f.ds.Image(v)).Point
			face := f.faces[fi].face
			tol := f.pairTol(v, fi)
			if geom.SurfaceDistance(face.Surface, p) > tol {
				return vertexOn{}, nil
			}
			return vertexOn{hit: f.classifiers[fi].Classify(p, tol) == topo.In}, nil
		},
		func(v, fi int, r vertexOn) error {
			if !r.hit {
				return nil
			}
			img := f.ds.Image(v)
			f.faces[fi].inVertices = append(f.faces[fi].inVertices, img)
			f.ds.AddInterference(&ds.Interference{
				Kind:     ds.VF,
				I:        v,
				J:        fi,
				Contacts: []ds.Contact{{Point: f.ds.Vertex(img).Point, Vertex: img}},
				Tol:      f.pairTol(v, fi),
			})
			f.contacts = append(f.contacts, img)
			return nil
		})
}
