package classify

import (
	"context"
	"math"
	"testing"

	"github.com/chazu/kerf/pkg/bop/bvh"
	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/bop/ds"
	"github.com/chazu/kerf/pkg/bop/pave"
	"github.com/chazu/kerf/pkg/geom"
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

func unitBox(t *testing.T) *topo.Solid {
	return box(t, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
}

type run struct {
	d     *ds.DS
	res   *pave.Result
	c     *Classifier
	items []*Item
}

func classified(t *testing.T, shapes ...topo.Shape) *run {
	t.Helper()
	ctx := context.Background()
	d, err := ds.New(shapes, ds.Options{})
	require.NoError(t, err)
	finder, err := bvh.New(ctx, d, bvh.Options{})
	require.NoError(t, err)
	f, err := pave.New(ctx, d, finder, pave.Options{})
	require.NoError(t, err)
	require.NoError(t, f.Run(ctx))
	res, err := f.Finalize(ctx)
	require.NoError(t, err)
	c := New(d, f, res, Options{})
	items, err := c.Classify(ctx)
	require.NoError(t, err)
	return &run{d: d, res: res, c: c, items: items}
}

func countStates(items []*Item, rank, against int) map[State]int {
	out := make(map[State]int)
	for _, it := range items {
		if it.Rank == rank {
			out[it.States[against]]++
		}
	}
	return out
}

func volume(faces []*topo.Face) float64 {
	return topo.Volume(Assemble(faces, 0))
}

func TestRepPoint(t *testing.T) {
	b := unitBox(t)
	for f := range topo.Faces(b) {
		p, n, err := RepPoint(f, 1e-7)
		require.NoError(t, err)
		fc := topo.NewFaceClassifier(f)
		assert.Equal(t, topo.In, fc.Classify(p, 1e-9))
		assert.Greater(t, fc.BoundaryDistance(p), 0.4)
		// outward normals point away from the centre
		assert.Greater(t, n.Dot(p.Sub(v3.Vec{X: 0.5, Y: 0.5, Z: 0.5})), 0.0)
	}
}

func TestRepPointClearsInnerCorner(t *testing.T) {
	a := unitBox(t)
	b := box(t, v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, v3.Vec{X: 1.5, Y: 1.5, Z: 1.5})
	r := classified(t, a, b)

	// the L-shaped piece of b's face at x = 0.5 left outside a
	var l *topo.Face
	for _, it := range r.items {
		f := it.Face
		if it.Rank == 1 && f.Surface.Kind() == geom.SurfacePlane && f.Normal(0, 0).X < -0.5 &&
			math.Abs(math.Abs(topo.Area(f))-0.75) < 1e-9 {
			l = f
		}
	}
	require.NotNil(t, l)

	ps := Samples(l, 1e-7)
	require.NotEmpty(t, ps)
	fc := topo.NewFaceClassifier(l)
	for _, p := range ps {
		assert.Greater(t, fc.BoundaryDistance(p.P), 1e-7)
		assert.InDelta(t, p.Clearance, fc.BoundaryDistance(p.P), 1e-12)
	}
	p, n, err := RepPoint(l, 1e-7)
	require.NoError(t, err)
	assert.Equal(t, ps[0].P, p)
	assert.Greater(t, fc.BoundaryDistance(p), 0.2)
	assert.InDelta(t, 0.5, p.X, 1e-12)
	assert.InDelta(t, -1, n.X, 1e-12)
	loc, err := Locate(a, p, 1e-7)
	require.NoError(t, err)
	assert.Equal(t, topo.Out, loc)
}

func TestSettleRepicks(t *testing.T) {
	a := unitBox(t)
	b := box(t, v3.Vec{X: 3}, v3.Vec{X: 4, Y: 1, Z: 1})
	r := classified(t, a, b)
	require.Empty(t, r.d.Report().Snapshot())

	var it *Item
	for _, x := range r.items {
		if x.Rank == 1 {
			it = x
			break
		}
	}
	require.NotNil(t, it)
	at := func(p, n v3.Vec) pick { return pick{Sample: Sample{P: p, N: n}, item: it} }
	// crosses the top face of a
	across := at(v3.Vec{X: 0.5, Y: 0.5, Z: 1}, v3.Vec{Y: 1})

	tests := []struct {
		name  string
		picks []pick
		want  State
	}{
		{"above", []pick{across, at(v3.Vec{X: 0.5, Y: 0.5, Z: 1.5}, v3.Vec{Y: 1})}, Out},
		{"inside", []pick{across, at(v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, v3.Vec{Y: 1})}, In},
		{"lying on top", []pick{at(across.P, v3.Vec{Z: 1})}, OnSame},
		{"facing top", []pick{at(across.P, v3.Vec{Z: -1})}, OnOpposite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.c.settle(tt.picks, 0))
		})
	}
	assert.Empty(t, r.d.Report().Snapshot())

	// no clear pick left: on the boundary, with a warning
	assert.Equal(t, OnOpposite, r.c.settle([]pick{across, across}, 0))
	ws := r.d.Report().Snapshot()
	require.Len(t, ws, 1)
	assert.Equal(t, diag.ClassificationAmbiguous, ws[0].Kind)
	assert.Contains(t, ws[0].Message, "after 2 picks")
	assert.Contains(t, ws[0].Message, "dropped by union")
}

func TestOnEffect(t *testing.T) {
	assert.Equal(t, "dropped by union", onEffect(Union, 1))
	assert.Equal(t, "dropped by intersect", onEffect(Intersect, 0))
	assert.Equal(t, "kept by cut", onEffect(Cut, 0))
	assert.Equal(t, "dropped by cut", onEffect(Cut, 2))
}

func TestRayLocate(t *testing.T) {
	b := unitBox(t)
	ts := targets(topo.MakeShell(collectFaces(b)...))
	tests := []struct {
		name string
		p    v3.Vec
		want topo.Location
	}{
		{"centre", v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, topo.In},
		{"near corner", v3.Vec{X: 0.01, Y: 0.99, Z: 0.01}, topo.In},
		{"outside", v3.Vec{X: 1.5, Y: 0.5, Z: 0.5}, topo.Out},
		{"far", v3.Vec{X: -3, Y: 7, Z: 2}, topo.Out},
		{"in a face plane", v3.Vec{X: 2, Y: 0.5, Z: 1}, topo.Out},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, ok := rayLocate(tt.p, ts, 1e-7)
			require.True(t, ok)
			assert.Equal(t, tt.want, loc)
		})
	}
}

func collectFaces(s topo.Shape) []*topo.Face {
	var out []*topo.Face
	for f := range topo.Faces(s) {
		out = append(out, f)
	}
	return out
}

func TestOverlappingCubes(t *testing.T) {
	a := unitBox(t)
	b := box(t, v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, v3.Vec{X: 1.5, Y: 1.5, Z: 1.5})
	r := classified(t, a, b)

	assert.Equal(t, map[State]int{Out: 6, In: 3}, countStates(r.items, 0, 1))
	assert.Equal(t, map[State]int{Out: 6, In: 3}, countStates(r.items, 1, 0))
	assert.Len(t, r.c.components(r.items), 4)

	tests := []struct {
		op     Op
		faces  int
		volume float64
	}{
		{Union, 12, 1.875},
		{Intersect, 6, 0.125},
		{Cut, 9, 0.875},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			faces := Select(tt.op, r.items)
			assert.Len(t, faces, tt.faces)
			assert.InDelta(t, tt.volume, volume(faces), 1e-9)
		})
	}
}

func TestTouchingFacesAreOnOpposite(t *testing.T) {
	a := unitBox(t)
	b := box(t, v3.Vec{X: 1}, v3.Vec{X: 2, Y: 1, Z: 1})
	r := classified(t, a, b)

	assert.Equal(t, map[State]int{Out: 5, OnOpposite: 1}, countStates(r.items, 0, 1))
	assert.Len(t, Select(Intersect, r.items), 0)

	union := Select(Union, r.items)
	assert.Len(t, union, 10)
	shape := Assemble(union, 0)
	assert.Equal(t, 1, topo.Count(shape, topo.KindSolid))
	assert.InDelta(t, 2.0, topo.Volume(shape), 1e-9)
	assert.Equal(t, 12, topo.Count(shape, topo.KindVertex))
	assert.Equal(t, 20, topo.Count(shape, topo.KindEdge))
	require.NoError(t, topo.Check(shape))

	assert.InDelta(t, 1.0, volume(Select(Cut, r.items)), 1e-9)
}

func TestCoplanarFacesKeptOnce(t *testing.T) {
	a := unitBox(t)
	b := box(t, v3.Vec{X: 0.5, Y: 0.5}, v3.Vec{X: 1.5, Y: 1.5, Z: 1})
	r := classified(t, a, b)

	assert.Equal(t, 2, countStates(r.items, 0, 1)[OnSame])
	assert.Equal(t, 2, countStates(r.items, 1, 0)[OnSame])

	union := Select(Union, r.items)
	assert.Len(t, union, 14)
	assert.InDelta(t, 1.75, volume(union), 1e-9)
	assert.InDelta(t, 0.25, volume(Select(Intersect, r.items)), 1e-9)
	assert.InDelta(t, 0.75, volume(Select(Cut, r.items)), 1e-9)
}

func TestCutLeavesVoid(t *testing.T) {
	a := unitBox(t)
	s, err := topo.Sphere(v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, 0.25)
	require.NoError(t, err)
	r := classified(t, a, s)

	shape := Assemble(Select(Cut, r.items), 0)
	require.Equal(t, 1, topo.Count(shape, topo.KindSolid))
	assert.Equal(t, 2, topo.Count(shape, topo.KindShell))
	assert.InDelta(t, 1-4.0/3*math.Pi*math.Pow(0.25, 3), topo.Volume(shape), 1e-4)

	union := Assemble(Select(Union, r.items), 0)
	assert.InDelta(t, 1.0, topo.Volume(union), 1e-9)
	common := Assemble(Select(Intersect, r.items), 0)
	assert.InDelta(t, 4.0/3*math.Pi*math.Pow(0.25, 3), topo.Volume(common), 1e-4)
}

func TestAssembleKeepsDisjointSolidsApart(t *testing.T) {
	a := unitBox(t)
	b := box(t, v3.Vec{X: 3}, v3.Vec{X: 4, Y: 1, Z: 1})
	r := classified(t, a, b)

	shape := Assemble(Select(Union, r.items), 0)
	assert.Equal(t, 2, topo.Count(shape, topo.KindSolid))
	assert.InDelta(t, 2.0, topo.Volume(shape), 1e-9)
	assert.True(t, topo.IsEmpty(Assemble(Select(Intersect, r.items), 0)))
}

func TestSectionShape(t *testing.T) {
	a := unitBox(t)
	b := box(t, v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, v3.Vec{X: 1.5, Y: 1.5, Z: 1.5})
	r := classified(t, a, b)

	sec := SectionShape(r.res)
	assert.Equal(t, 6, topo.Count(sec, topo.KindEdge))
	assert.Equal(t, 6, topo.Count(sec, topo.KindVertex))
}

func TestIncludeRules(t *testing.T) {
	tests := []struct {
		name  string
		op     Op
		rank   int
		states []State
		keep   bool
		flip   bool
	}{
		{"union out", Union, 0, []State{0, Out, Out}, true, false},
		{"union in one", Union, 0, []State{0, Out, In}, false, false},
		{"union on-same lower keeps", Union, 0, []State{0, OnSame}, true, false},
		{"union on-same higher drops", Union, 1, []State{OnSame, 0}, false, false},
		{"union on-opposite", Union, 0, []State{0, OnOpposite}, false, false},
		{"intersect in all", Intersect, 1, []State{In, 0, In}, true, false},
		{"intersect out one", Intersect, 1, []State{In, 0, Out}, false, false},
		{"cut object out", Cut, 0, []State{0, Out, Out}, true, false},
		{"cut object on-opposite", Cut, 0, []State{0, OnOpposite}, true, false},
		{"cut object on-same", Cut, 0, []State{0, OnSame}, false, false},
		{"cut tool in object", Cut, 1, []State{In, 0, Out}, true, true},
		{"cut tool in other tool", Cut, 1, []State{In, 0, In}, false, true},
		{"cut tool outside object", Cut, 2, []State{Out, Out, 0}, false, true},
		{"section keeps no faces", Section, 0, []State{0, Out}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keep, flip := include(tt.op, &Item{Rank: tt.rank, States: tt.states})
			assert.Equal(t, tt.keep, keep)
			if keep {
				assert.Equal(t, tt.flip, flip)
			}
		})
	}
}

func TestLocate(t *testing.T) {
	s, err := topo.Sphere(v3.Vec{}, 1)
	require.NoError(t, err)
	tests := []struct {
		p    v3.Vec
		want topo.Location
	}{
		{v3.Vec{}, topo.In},
		{v3.Vec{X: 0.3, Y: -0.4, Z: 0.5}, topo.In},
		{v3.Vec{Z: 1}, topo.On},
		{v3.Vec{X: 1}, topo.On},
		{v3.Vec{X: 0.8, Y: 0.8, Z: 0.1}, topo.Out},
		{v3.Vec{Y: -2}, topo.Out},
	}
	for _, tt := range tests {
		got, err := Locate(s, tt.p, 1e-6)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.p)
	}
}
