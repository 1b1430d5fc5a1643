package ds

import (
	"errors"
	"sync"
	"testing"

	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boxes(t *testing.T) (*topo.Solid, *topo.Solid) {
	t.Helper()
	a, err := topo.Box(v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	b, err := topo.Box(v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, v3.Vec{X: 1.5, Y: 1.5, Z: 1.5})
	require.NoError(t, err)
	return a, b
}

func TestNewRegistersEverySubShapeOnce(t *testing.T) {
	a, b := boxes(t)
	d, err := New([]topo.Shape{a, b}, Options{})
	require.NoError(t, err)

	assert.Len(t, d.OfKind(topo.KindVertex, 0), 8)
	assert.Len(t, d.OfKind(topo.KindEdge, 0), 12)
	assert.Len(t, d.OfKind(topo.KindFace, 1), 6)
	assert.Len(t, d.OfKind(topo.KindFace, -1), 12)
	assert.Equal(t, 2, d.NumOperands())
	assert.Equal(t, 1, d.Rank(d.Operand(1)))

	n := d.Len()
	var edge *topo.Edge
	for e := range topo.Edges(a) {
		edge = e
		break
	}
	i := d.Index(edge)
	assert.Equal(t, i, d.Index(edge))
	assert.Equal(t, n, d.Len())
	assert.Equal(t, 0, d.Rank(i))
}

func TestNewRejectsInvalidInput(t *testing.T) {
	a, _ := boxes(t)
	tests := []struct {
		name     string
		operands []topo.Shape
	}{
		{"one operand", []topo.Shape{a}},
		{"nil operand", []topo.Shape{a, nil}},
		{"empty compound", []topo.Shape{a, topo.MakeCompound()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.operands, Options{})
			assert.True(t, errors.Is(err, diag.ErrInvalidInput), "got %v", err)
		})
	}
}

type bsplineSurface struct {
	*geom.Plane
}

func (bsplineSurface) Kind() geom.SurfaceKind { return geom.SurfaceBSpline }

func bsplineFace(t *testing.T) *topo.Face {
	t.Helper()
	box, err := topo.Box(v3.Vec{X: 3}, v3.Vec{X: 4, Y: 1, Z: 1})
	require.NoError(t, err)
	f := box.Shells[0].Faces[0]
	pl := f.Surface.(*geom.Plane)
	face, err := topo.MakeFace(bsplineSurface{pl}, f.Wires...)
	require.NoError(t, err)
	return face
}

func TestUnsupportedGeometry(t *testing.T) {
	a, _ := boxes(t)
	face := bsplineFace(t)

	_, err := New([]topo.Shape{a, face}, Options{})
	assert.True(t, errors.Is(err, diag.ErrUnsupportedGeometry), "got %v", err)

	report := &diag.Report{}
	d, err := New([]topo.Shape{a, face}, Options{BestEffort: true, Report: report})
	require.NoError(t, err)
	i, ok := d.Lookup(face)
	require.True(t, ok)
	assert.True(t, d.Info(i).Unsupported)
	require.Equal(t, 1, report.Len())
	assert.Equal(t, diag.UnsupportedGeometry, report.Snapshot()[0].Kind)
}

func TestBoundingBoxAndTolerance(t *testing.T) {
	a, b := boxes(t)
	d, err := New([]topo.Shape{a, b}, Options{})
	require.NoError(t, err)
	f := d.OfKind(topo.KindFace, 0)[0]

	var wg sync.WaitGroup
	for k := 0; k < 8; k++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.BoundingBox(f)
		}()
	}
	wg.Wait()

	before := d.BoundingBox(f)
	tol := d.Tolerance(f)
	d.UpdateTolerance(f, 0.01)
	assert.InDelta(t, 0.01, d.Tolerance(f), 1e-15)
	d.UpdateTolerance(f, 1e-9)
	assert.InDelta(t, 0.01, d.Tolerance(f), 1e-15, "tolerance never shrinks")

	after := d.BoundingBox(f)
	assert.InDelta(t, before.Min.X-(0.01-tol), after.Min.X, 1e-12)
}

func TestInterferenceDedup(t *testing.T) {
	a, b := boxes(t)
	d, err := New([]topo.Shape{a, b}, Options{})
	require.NoError(t, err)
	e1 := d.OfKind(topo.KindEdge, 0)[0]
	e2 := d.OfKind(topo.KindEdge, 1)[0]

	it, ok := d.AddInterference(&Interference{
		Kind:     EE,
		I:        e2,
		J:        e1,
		Contacts: []Contact{{TI: 0.25, TJ: 0.75}},
	})
	require.True(t, ok)
	assert.Equal(t, e1, it.I)
	assert.InDelta(t, 0.75, it.Param(it.Contacts[0], e1), 0)
	assert.InDelta(t, 0.25, it.Param(it.Contacts[0], e2), 0)
	assert.Equal(t, e2, it.Other(e1))

	_, ok = d.AddInterference(&Interference{Kind: EE, I: e1, J: e2})
	assert.False(t, ok)
	_, ok = d.AddInterference(&Interference{Kind: EF, I: e1, J: e2})
	assert.True(t, ok)
	assert.Len(t, d.Interferences(EE), 1)
	assert.Equal(t, map[InterfKind]int{EE: 1, EF: 1}, d.InterferenceCount())
}

func TestMergeVerticesAndSnap(t *testing.T) {
	a, b := boxes(t)
	d, err := New([]topo.Shape{a, b}, Options{})
	require.NoError(t, err)
	v1 := d.NewVertex(v3.Vec{X: 5}, 1e-7)
	v2 := d.NewVertex(v3.Vec{X: 5 + 4e-7}, 1e-7)
	assert.NotEqual(t, d.Image(v1), d.Image(v2))

	m := d.MergeVertices(v1, v2)
	assert.Equal(t, m, d.Image(v1))
	assert.Equal(t, m, d.Image(v2))
	assert.Equal(t, m, d.MergeVertices(v2, v1))
	assert.Equal(t, []int{v1, v2, m}, d.Merged(v1))

	mv := d.Vertex(m)
	assert.InDelta(t, 5+2e-7, mv.Point.X, 1e-12)
	assert.GreaterOrEqual(t, d.Tolerance(m), 3e-7-1e-15)

	got, ok := d.Snap(v3.Vec{X: 5 + 1e-7}, 1e-7)
	require.True(t, ok)
	assert.Equal(t, m, got)
	_, ok = d.Snap(v3.Vec{X: 5.1}, 1e-7)
	assert.False(t, ok)

	corner, ok := d.Snap(v3.Vec{X: 1, Y: 1, Z: 1}, 1e-7)
	require.True(t, ok)
	assert.Equal(t, 0, d.Rank(corner))
}
