package pave

import (
	"math"
	"slices"

	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Pave is a vertex placed at parameter T of an edge.
type Pave struct {
	T      float64
	Vertex int
	// Original marks the two end paves every edge starts with.
	Original bool
}

type edgeRec struct {
	index int
	edge  *topo.Edge
	// paves holds the inserted paves, sorted by T.
	paves []Pave
}

// edgeRange is the part [T0, T1] of an operand edge lying on a face.
type edgeRange struct {
	edge   int
	t0, t1 float64
}

type faceRec struct {
	index int
	face  *topo.Face
	// inVertices are vertices of other operands lying inside the face.
	inVertices []int
	inRanges   []edgeRange
}

// sectionPiece is a kept piece of a face/face intersection curve.
type sectionPiece struct {
	curve  geom.Curve
	t0, t1 float64
	v0, v1 int
	faces  [2]int
	closed bool
}

// Paves returns the paves of operand edge e in parameter order, the two
// original end paves included.
func (f *Filler) Paves(e int) []Pave {
	rec := f.edges[e]
	ed := rec.edge
	out := make([]Pave, 0, len(rec.paves)+2)
	out = append(out, Pave{T: ed.T0, Vertex: f.ds.Index(ed.V0), Original: true})
	out = append(out, rec.paves...)
	return append(out, Pave{T: ed.T1, Vertex: f.ds.Index(ed.V1), Original: true})
}

// edgeTol is the snapping distance used when paving edge e.
func (f *Filler) edgeTol(e int) float64 {
	return math.Max(2*f.ds.Tolerance(e), math.Max(f.opts.Fuzzy, geom.Confusion))
}

// AddPave places vertex v at parameter t of operand edge e. A pave that
// lands on an end vertex merges v into it. A pave within parameter
// tolerance of an existing one with a different vertex merges the two
// vertices and is reported as inconsistent paving.
func (f *Filler) AddPave(e int, t float64, v int) {
	rec, ok := f.edges[e]
	if !ok {
		return
	}
	ed := rec.edge
	tol := f.edgeTol(e)
	ptol := geom.ParamTolerance(ed.Curve, t, tol)
	img := f.ds.Image(v)
	f.cover(img, ed.Curve.Evaluate(t))
	img = f.ds.Image(v)
	p := f.ds.Vertex(img).Point

	ends := [2]Pave{
		{T: ed.T0, Vertex: f.ds.Index(ed.V0)},
		{T: ed.T1, Vertex: f.ds.Index(ed.V1)},
	}
	for _, end := range ends {
		if f.ds.Image(end.Vertex) == img {
			return
		}
	}
	for _, end := range ends {
		q := f.ds.Vertex(f.ds.Image(end.Vertex))
		if math.Abs(t-end.T) <= ptol || geom.Dist(p, q.Point) <= tol {
			f.ds.MergeVertices(end.Vertex, v)
			return
		}
	}
	for _, q := range rec.paves {
		if math.Abs(q.T-t) > ptol {
			continue
		}
		if f.ds.Image(q.Vertex) != img {
			f.ds.Report().Add(diag.InconsistentPaving, []int{e, q.Vertex, v},
				"paves at %g and %g coincide", q.T, t)
			f.ds.MergeVertices(q.Vertex, v)
		}
		return
	}
	k, _ := slices.BinarySearchFunc(rec.paves, t, func(q Pave, t float64) int {
		switch {
		case q.T < t:
			return -1
		case q.T > t:
			return 1
		}
		return 0
	})
	rec.paves = slices.Insert(rec.paves, k, Pave{T: t, Vertex: v})
	f.count("paves", 1)
}

// cover makes sure the image of v reaches p, merging it with a new vertex
// at p when its tolerance sphere does not.
func (f *Filler) cover(v int, p v3.Vec) {
	vx := f.ds.Vertex(f.ds.Image(v))
	d := geom.Dist(vx.Point, p)
	if d <= vx.Tol {
		return
	}
	f.ds.MergeVertices(v, f.ds.NewVertex(p, geom.Confusion))
}

// vertexAt returns the image of a vertex within tol of p, creating one when
// none is near.
func (f *Filler) vertexAt(p v3.Vec, tol float64) int {
	if v, ok := f.ds.Snap(p, tol); ok {
		return v
	}
	return f.ds.NewVertex(p, tol)
}

// boundaryVertices returns the images of the vertices and paves on the
// boundary of operand face i.
func (f *Filler) boundaryVertices(i int) []int {
	seen := make(map[int]bool)
	var out []int
	add := func(v int) {
		img := f.ds.Image(v)
		if !seen[img] {
			seen[img] = true
			out = append(out, img)
		}
	}
	for e := range topo.Edges(f.faces[i].face) {
		ei, ok := f.ds.Lookup(e)
		if !ok {
			continue
		}
		if _, ok := f.edges[ei]; !ok {
			add(f.ds.Index(e.V0))
			continue
		}
		for _, p := range f.Paves(ei) {
			add(p.Vertex)
		}
	}
	for _, v := range f.faces[i].inVertices {
		add(v)
	}
	return out
}
