package pave

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chazu/kerf/pkg/bop/bvh"
	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/bop/ds"
	"github.com/chazu/kerf/pkg/bop/intersect"
	"github.com/chazu/kerf/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(t *testing.T, min, max v3.Vec) *topo.Solid {
	t.Helper()
	s, err := topo.Box(min, max)
	require.NoError(t, err)
	return s
}

func filler(t *testing.T, opts Options, shapes ...topo.Shape) *Filler {
	t.Helper()
	ctx := context.Background()
	d, err := ds.New(shapes, ds.Options{})
	require.NoError(t, err)
	finder, err := bvh.New(ctx, d, bvh.Options{Tol: opts.Fuzzy, Workers: opts.Workers})
	require.NoError(t, err)
	f, err := New(ctx, d, finder, opts)
	require.NoError(t, err)
	return f
}

func run(t *testing.T, opts Options, shapes ...topo.Shape) (*Filler, *Result) {
	t.Helper()
	f := filler(t, opts, shapes...)
	require.NoError(t, f.Run(context.Background()))
	res, err := f.Finalize(context.Background())
	require.NoError(t, err)
	return f, res
}

func totalLength(es []*topo.Edge) float64 {
	var l float64
	for _, e := range es {
		l += e.Length()
	}
	return l
}

func faceCount(res *Result) int {
	n := 0
	for _, fs := range res.Faces {
		n += len(fs)
	}
	return n
}

func TestOverlappingCubes(t *testing.T) {
	a := box(t, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	b := box(t, v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, v3.Vec{X: 1.5, Y: 1.5, Z: 1.5})
	f, res := run(t, Options{}, a, b)

	assert.Len(t, res.Sections, 6)
	assert.InDelta(t, 3.0, totalLength(res.Sections), 1e-9)
	assert.Empty(t, res.Common)
	assert.Empty(t, res.InEdges)
	assert.Empty(t, res.Isolated)
	assert.Equal(t, 18, faceCount(res))

	contacts := 0
	for _, it := range f.DS().Interferences(ds.EF) {
		contacts += len(it.Contacts)
	}
	assert.Equal(t, 6, contacts)

	for fi, faces := range res.Faces {
		var area float64
		for _, nf := range faces {
			require.NoError(t, topo.Check(nf))
			area += topo.Area(nf)
		}
		assert.InDelta(t, 1.0, area, 1e-9, "face %d", fi)
	}

	split := 0
	for _, ps := range res.Splits {
		if len(ps) == 2 {
			split++
			assert.InDelta(t, ps[0].T1, ps[1].T0, 1e-12)
		}
	}
	assert.Equal(t, 6, split)
}

func TestFinalizeRunsOnce(t *testing.T) {
	a := box(t, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	b := box(t, v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, v3.Vec{X: 1.5, Y: 1.5, Z: 1.5})
	f, res := run(t, Options{}, a, b)
	again, err := f.Finalize(context.Background())
	require.NoError(t, err)
	assert.Same(t, res, again)
}

func TestParallelMatchesSerial(t *testing.T) {
	a := box(t, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	b := box(t, v3.Vec{X: 0.5, Y: 0.25, Z: 0.5}, v3.Vec{X: 1.5, Y: 1.25, Z: 1.5})
	_, serial := run(t, Options{}, a, b)
	_, par := run(t, Options{Workers: 8}, a, b)

	require.Len(t, par.Sections, len(serial.Sections))
	for i := range serial.Sections {
		assert.Equal(t, serial.Sections[i].V0.Point, par.Sections[i].V0.Point)
		assert.Equal(t, serial.Sections[i].V1.Point, par.Sections[i].V1.Point)
	}
	assert.Equal(t, faceCount(serial), faceCount(par))
}

func TestTouchingBoxesShareEdges(t *testing.T) {
	a := box(t, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	b := box(t, v3.Vec{X: 1}, v3.Vec{X: 2, Y: 1, Z: 1})
	f, res := run(t, Options{}, a, b)

	assert.Len(t, f.DS().Interferences(ds.VV), 4)
	assert.Len(t, res.Common, 4)
	assert.Empty(t, res.Sections)
	assert.Empty(t, res.Isolated)
	assert.Equal(t, 12, faceCount(res))

	// the shared face of b is bounded by a's edges
	shared := 0
	for _, faces := range res.Faces {
		for _, nf := range faces {
			for _, w := range nf.Wires {
				for _, oe := range w.Edges {
					if res.Touched[oe.Edge] {
						shared++
					}
				}
			}
		}
	}
	// each common edge is used by two faces of each box
	assert.Equal(t, 16, shared)
}

func TestCoplanarFacesGetEmbeddedEdges(t *testing.T) {
	a := box(t, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	b := box(t, v3.Vec{X: 0.5, Y: 0.5}, v3.Vec{X: 1.5, Y: 1.5, Z: 1})
	_, res := run(t, Options{}, a, b)

	assert.Len(t, res.Sections, 2)
	assert.Len(t, res.InEdges, 8)
	assert.InDelta(t, 4.0, totalLength(res.InEdges), 1e-9)
	for _, faces := range res.Faces {
		for _, nf := range faces {
			require.NoError(t, topo.Check(nf))
		}
	}
}

func TestSphereCrossingBoxTop(t *testing.T) {
	a := box(t, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	s, err := topo.Sphere(v3.Vec{X: 0.5, Y: 0.5, Z: 1}, 0.3)
	require.NoError(t, err)
	f, res := run(t, Options{}, a, s)

	require.Len(t, res.Sections, 1)
	sec := res.Sections[0]
	assert.True(t, sec.Closed())
	assert.InDelta(t, 2*math.Pi*0.3, sec.Length(), 1e-6)

	sphereFace := f.DS().OfKind(topo.KindFace, 1)
	require.Len(t, sphereFace, 1)
	halves := res.Faces[sphereFace[0]]
	require.Len(t, halves, 2)
	assert.InDelta(t, 4*math.Pi*0.09, topo.Area(halves[0])+topo.Area(halves[1]), 1e-4)
	assert.InDelta(t, topo.Area(halves[0]), topo.Area(halves[1]), 1e-4)
	assert.Equal(t, 6+1+2, faceCount(res))
}

func TestCylinderThroughBox(t *testing.T) {
	a := box(t, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	c, err := topo.Cylinder(v3.Vec{X: 0.5, Y: 0.5, Z: -1}, v3.Vec{Z: 1}, 0.25, 3)
	require.NoError(t, err)
	f, res := run(t, Options{}, a, c)

	assert.Len(t, res.Sections, 2)
	for _, fi := range f.DS().OfKind(topo.KindFace, 1) {
		nf := res.Faces[fi]
		if f.DS().Shape(fi).(*topo.Face).Surface.UPeriod() > 0 {
			assert.Len(t, nf, 3)
			continue
		}
		assert.Len(t, nf, 1)
	}
}

func TestAddPave(t *testing.T) {
	a := box(t, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	b := box(t, v3.Vec{X: 5}, v3.Vec{X: 6, Y: 1, Z: 1})
	f := filler(t, Options{}, a, b)
	d := f.DS()
	e := d.OfKind(topo.KindEdge, 0)[0]
	ed := d.Shape(e).(*topo.Edge)
	tm := 0.5 * (ed.T0 + ed.T1)

	v := d.NewVertex(ed.Curve.Evaluate(tm), 1e-7)
	f.AddPave(e, tm, v)
	require.Len(t, f.Paves(e), 3)
	assert.Equal(t, v, f.Paves(e)[1].Vertex)

	// same place, another vertex: merged and reported
	w := d.NewVertex(ed.Curve.Evaluate(tm), 1e-7)
	f.AddPave(e, tm, w)
	assert.Len(t, f.Paves(e), 3)
	assert.Equal(t, d.Image(v), d.Image(w))
	warnings := d.Report().Snapshot()
	require.Len(t, warnings, 1)
	assert.Equal(t, diag.InconsistentPaving, warnings[0].Kind)

	// a pave at an end merges into the end vertex
	u := d.NewVertex(ed.Curve.Evaluate(ed.T0), 1e-7)
	f.AddPave(e, ed.T0, u)
	assert.Len(t, f.Paves(e), 3)
	assert.Equal(t, d.Image(d.Index(ed.V0)), d.Image(u))

	// and a pave on the end vertex itself is a no-op
	f.AddPave(e, ed.T1, d.Index(ed.V1))
	assert.Len(t, f.Paves(e), 3)
}

func TestDisjointShapesStayWhole(t *testing.T) {
	a := box(t, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	b := box(t, v3.Vec{X: 3}, v3.Vec{X: 4, Y: 1, Z: 1})
	f, res := run(t, Options{}, a, b)

	assert.Empty(t, res.Touched)
	for fi, faces := range res.Faces {
		require.Len(t, faces, 1)
		assert.Same(t, f.DS().Shape(fi), faces[0])
	}
	assert.Zero(t, f.Stats()["pairs.FF"])
}

func TestRunHonoursCancellation(t *testing.T) {
	a := box(t, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	b := box(t, v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, v3.Vec{X: 1.5, Y: 1.5, Z: 1.5})
	f := filler(t, Options{}, a, b)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Run(ctx), context.Canceled)
}

func TestRetryWidensOnce(t *testing.T) {
	var tols []float64
	settlesAt := func(min float64) func(float64) (int, error) {
		tols = nil
		return func(tol float64) (int, error) {
			tols = append(tols, tol)
			if tol < min {
				return 0, intersect.ErrNoConvergence
			}
			return 7, nil
		}
	}

	r, tol, err := retry(1e-7, settlesAt(1.5e-7))
	require.NoError(t, err)
	assert.Equal(t, 7, r)
	assert.InDelta(t, 2e-7, tol, 1e-15)
	assert.Equal(t, []float64{1e-7, 2e-7}, tols)

	_, _, err = retry(1e-7, settlesAt(3e-7))
	assert.ErrorIs(t, err, intersect.ErrNoConvergence)
	assert.Len(t, tols, 2)

	_, _, err = retry(1e-7, settlesAt(0))
	require.NoError(t, err)
	assert.Len(t, tols, 1)

	other := errors.New("bad curve")
	_, _, err = retry(1e-7, func(float64) (int, error) { return 0, other })
	assert.ErrorIs(t, err, other)
}
