package pave

import (
	"context"
	"fmt"
	"slices"

	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	"golang.org/x/sync/errgroup"
)

// SplitEdge is the piece [T0, T1] of an operand edge. Edge may be shared
// with a coincident piece of another operand; Reversed is set when it runs
// against the parent's parameter direction.
type SplitEdge struct {
	Edge     *topo.Edge
	T0, T1   float64
	Reversed bool
}

// Result is the split topology produced by Finalize.
type Result struct {
	// Faces maps every operand face index to the faces it was split into;
	// an untouched face maps to itself.
	Faces map[int][]*topo.Face
	// Splits maps every operand edge index to its pieces in parameter order.
	Splits map[int][]SplitEdge
	// Sections are the edges built from face/face intersection curves.
	Sections []*topo.Edge
	// Common are edge pieces shared by two or more operands.
	Common []*topo.Edge
	// InEdges are operand edge pieces lying inside faces of other operands.
	InEdges []*topo.Edge
	// Isolated are intersection vertices not bounding any of the above.
	Isolated []*topo.Vertex
	// Touched holds Sections, Common and InEdges: edges across which the
	// classification of faces may change.
	Touched map[*topo.Edge]bool
}

// piece is a split edge while common blocks are resolved.
type piece struct {
	parent   int
	t0, t1   float64
	a, b     int
	edge     *topo.Edge
	reversed bool
	rank     int
}

// Finalize splits the paved edges, resolves coincident pieces and rebuilds
// the faces. It runs once; later calls return the first result.
func (f *Filler) Finalize(ctx context.Context) (*Result, error) {
	f.finalizeOnce.Do(func() {
		f.result, f.err = f.finalize(ctx)
	})
	return f.result, f.err
}

func (f *Filler) finalize(ctx context.Context) (*Result, error) {
	res := &Result{
		Faces:   make(map[int][]*topo.Face),
		Splits:  make(map[int][]SplitEdge),
		Touched: make(map[*topo.Edge]bool),
	}
	edges := make([]int, 0, len(f.edges))
	for ei := range f.edges {
		edges = append(edges, ei)
	}
	slices.Sort(edges)

	split := make([][]*piece, len(edges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers())
	for k, ei := range edges {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ps, err := f.splitEdge(ei)
			split[k] = ps
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	blocks := newBlocks(f)
	for k, ei := range edges {
		for _, p := range split[k] {
			if w := blocks.add(p); w != nil && w.rank != p.rank && !res.Touched[w.edge] {
				res.Touched[w.edge] = true
				res.Common = append(res.Common, w.edge)
			}
			res.Splits[ei] = append(res.Splits[ei], SplitEdge{Edge: p.edge, T0: p.t0, T1: p.t1, Reversed: p.reversed})
		}
		f.count("splits", max(len(split[k])-1, 0))
	}
	f.splitDegenerate(res)

	internal := make(map[int][]*topo.Edge)
	addInternal := func(fi int, e *topo.Edge) {
		if !slices.Contains(internal[fi], e) {
			internal[fi] = append(internal[fi], e)
		}
	}
	for _, s := range f.sections {
		e, err := f.sectionEdge(s, blocks)
		if err != nil {
			return nil, err
		}
		if e == nil {
			continue
		}
		if !res.Touched[e] {
			res.Touched[e] = true
			res.Sections = append(res.Sections, e)
		}
		addInternal(s.faces[0], e)
		addInternal(s.faces[1], e)
	}

	faces := make([]int, 0, len(f.faces))
	for fi := range f.faces {
		faces = append(faces, fi)
	}
	slices.Sort(faces)
	for _, fi := range faces {
		for _, e := range f.inEdges(fi, res.Splits) {
			addInternal(fi, e)
			if !res.Touched[e] {
				res.Touched[e] = true
				res.InEdges = append(res.InEdges, e)
			}
		}
	}

	built := make([][]*topo.Face, len(faces))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(f.workers())
	for k, fi := range faces {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := f.rebuildFace(fi, res.Splits, internal[fi])
			built[k] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for k, fi := range faces {
		res.Faces[fi] = built[k]
		if len(built[k]) != 1 || built[k][0] != f.faces[fi].face {
			f.count("faces.split", 1)
		}
	}
	res.Isolated = f.isolated(res.Touched)
	f.log.Debug("paving finalized",
		"sections", len(res.Sections), "common", len(res.Common), "in", len(res.InEdges))
	return res, nil
}

// splitEdge cuts operand edge ei at its paves. An edge with no paves whose
// end vertices kept their images is its own single piece.
func (f *Filler) splitEdge(ei int) ([]*piece, error) {
	ed := f.edges[ei].edge
	rank := f.ds.Rank(ei)
	pvs := f.Paves(ei)
	if len(pvs) == 2 && f.ds.Image(pvs[0].Vertex) == pvs[0].Vertex && f.ds.Image(pvs[1].Vertex) == pvs[1].Vertex {
		return []*piece{{parent: ei, t0: ed.T0, t1: ed.T1, a: pvs[0].Vertex, b: pvs[1].Vertex, edge: ed, rank: rank}}, nil
	}
	var out []*piece
	for k := 0; k+1 < len(pvs); k++ {
		pa, pb := pvs[k], pvs[k+1]
		a, b := f.ds.Image(pa.Vertex), f.ds.Image(pb.Vertex)
		whole := pa.Original && pb.Original
		if a == b && !whole {
			if l := geom.Length(ed.Curve, pa.T, pb.T); l > f.ds.Tolerance(a)*2 {
				return nil, diag.New(diag.BuildFailure, "split", []int{ei, a},
					"merged vertices collapse an edge piece of length %g", l)
			}
			continue
		}
		if pb.T <= pa.T {
			continue
		}
		e, err := topo.MakeEdge(ed.Curve, f.ds.Vertex(a), f.ds.Vertex(b), pa.T, pb.T)
		if err != nil {
			return nil, diag.Wrap(diag.BuildFailure, "split", fmt.Errorf("edge %d [%g, %g]: %w", ei, pa.T, pb.T, err))
		}
		e.Tol = max(e.Tol, ed.Tol)
		out = append(out, &piece{parent: ei, t0: pa.T, t1: pb.T, a: a, b: b, edge: e, rank: rank})
	}
	return out, nil
}

// splitDegenerate replaces pole edges whose vertex was merged.
func (f *Filler) splitDegenerate(res *Result) {
	for _, rec := range f.faces {
		for e := range topo.Edges(rec.face) {
			if !e.Degenerate {
				continue
			}
			ei := f.ds.Index(e)
			if _, ok := res.Splits[ei]; ok {
				continue
			}
			v := f.ds.Index(e.V0)
			ne := e
			if img := f.ds.Image(v); img != v {
				ne = topo.MakeDegenerateEdge(f.ds.Vertex(img), e.T0, e.T1)
			}
			res.Splits[ei] = []SplitEdge{{Edge: ne, T0: e.T0, T1: e.T1}}
		}
	}
}

// sectionEdge builds the edge of a kept section piece, or returns the edge
// already standing for the same piece of curve.
func (f *Filler) sectionEdge(s *sectionPiece, blocks *blocks) (*topo.Edge, error) {
	a, b := f.ds.Image(s.v0), f.ds.Image(s.v1)
	if a == b && !s.closed {
		return nil, nil
	}
	e, err := topo.MakeEdge(s.curve, f.ds.Vertex(a), f.ds.Vertex(b), s.t0, s.t1)
	if err != nil {
		return nil, diag.Wrap(diag.BuildFailure, "section", fmt.Errorf("faces %v: %w", s.faces, err))
	}
	p := &piece{parent: -1, t0: s.t0, t1: s.t1, a: a, b: b, edge: e, rank: -1}
	blocks.add(p)
	return p.edge, nil
}

// inEdges returns the pieces of other operands' edges lying inside face
// fi, found from the EF ranges.
func (f *Filler) inEdges(fi int, splits map[int][]SplitEdge) []*topo.Edge {
	rec := f.faces[fi]
	var out []*topo.Edge
	for _, r := range rec.inRanges {
		ed := f.edges[r.edge].edge
		tol := f.pairTol(r.edge, fi)
		for _, sp := range splits[r.edge] {
			ptol := geom.ParamTolerance(ed.Curve, sp.T0, tol)
			if sp.T0 < r.t0-ptol || sp.T1 > r.t1+ptol {
				continue
			}
			mid := ed.Curve.Evaluate(0.5 * (sp.T0 + sp.T1))
			if f.classifiers[fi].Classify(mid, tol) == topo.In && !slices.Contains(out, sp.Edge) {
				out = append(out, sp.Edge)
			}
		}
	}
	return out
}

// isolated returns the contact vertices not bounding a touched edge.
func (f *Filler) isolated(touched map[*topo.Edge]bool) []*topo.Vertex {
	ends := make(map[*topo.Vertex]bool)
	for e := range touched {
		ends[e.V0] = true
		ends[e.V1] = true
	}
	var out []*topo.Vertex
	for _, v := range f.contacts {
		vx := f.ds.Vertex(f.ds.Image(v))
		if !ends[vx] && !slices.Contains(out, vx) {
			out = append(out, vx)
		}
	}
	return out
}

// blocks groups pieces by their end vertices to find coincident ones.
type blocks struct {
	f      *Filler
	byEnds map[[2]int][]*piece
}

func newBlocks(f *Filler) *blocks {
	return &blocks{f: f, byEnds: make(map[[2]int][]*piece)}
}

// add registers p. When an earlier piece covers the same curve p takes its
// edge, and that earlier piece is returned.
func (bl *blocks) add(p *piece) *piece {
	key := [2]int{min(p.a, p.b), max(p.a, p.b)}
	for _, q := range bl.byEnds[key] {
		if !bl.coincide(p, q) {
			continue
		}
		rev := q.a != p.a
		if p.a == p.b {
			tp := p.edge.Curve.Derivative(0.5*(p.t0+p.t1), 1)
			mq := q.edge.Curve.Project(p.edge.Midpoint())
			rev = tp.Dot(q.edge.Curve.Derivative(mq, 1)) < 0
		}
		p.edge, p.reversed = q.edge, rev != q.reversed
		return q
	}
	bl.byEnds[key] = append(bl.byEnds[key], p)
	return nil
}

func (bl *blocks) coincide(p, q *piece) bool {
	tol := max(p.edge.Tol, q.edge.Tol, bl.f.opts.Fuzzy, geom.Confusion)
	if p.parent >= 0 {
		tol = max(tol, bl.f.edgeTol(p.parent))
	}
	if q.parent >= 0 {
		tol = max(tol, bl.f.edgeTol(q.parent))
	}
	e := q.edge
	for _, s := range []float64{0.25, 0.5, 0.75} {
		m := p.edge.Curve.Evaluate(p.t0 + s*(p.t1-p.t0))
		if _, d := geom.ProjectInRange(e.Curve, m, e.T0, e.T1); d > tol {
			return false
		}
	}
	return true
}
