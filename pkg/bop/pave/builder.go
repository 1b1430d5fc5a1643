package pave

import (
	"fmt"
	"math"

	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// rebuildFace replaces the boundary uses of operand face fi by their split
// pieces, adds the internal edges and traces the resulting regions. A face
// that nothing crossed is returned as is.
func (f *Filler) rebuildFace(fi int, splits map[int][]SplitEdge, internal []*topo.Edge) ([]*topo.Face, error) {
	face := f.faces[fi].face
	changed := false
	var bound []topo.OrientedEdge
	for _, w := range face.Wires {
		for _, oe := range w.Edges {
			ps := splits[f.ds.Index(oe.Edge)]
			if len(ps) == 1 && ps[0].Edge == oe.Edge && !ps[0].Reversed {
				bound = append(bound, oe)
				continue
			}
			changed = true
			if oe.Edge.Degenerate {
				for _, p := range ps {
					bound = append(bound, topo.OrientedEdge{Edge: p.Edge, Reversed: oe.Reversed, UV: oe.UV})
				}
				continue
			}
			for k := range ps {
				p := ps[k]
				if oe.Reversed {
					p = ps[len(ps)-1-k]
				}
				bound = append(bound, topo.OrientedEdge{
					Edge:     p.Edge,
					Reversed: p.Reversed != oe.Reversed,
					UV:       topo.SliceUV(face.Surface, oe, p.T0, p.T1, oe.Reversed),
				})
			}
		}
	}
	if !changed && len(internal) == 0 {
		return []*topo.Face{face}, nil
	}
	g := newGraph(face)
	for _, oe := range bound {
		g.addBoundary(oe)
	}
	for _, e := range internal {
		g.addInternal(e)
	}
	if g.prune() == 0 && !changed {
		return []*topo.Face{face}, nil
	}
	out, err := g.faces()
	if err != nil {
		return nil, diag.Wrap(diag.BuildFailure, "build face", fmt.Errorf("face %d: %w", fi, err))
	}
	return out, nil
}

// half is a directed edge use in the parameter plane of a face. Internal
// edges contribute two halves, one per direction.
type half struct {
	use      topo.OrientedEdge
	from, to int
	twin     int
	removed  bool
}

type node struct {
	v  *topo.Vertex
	uv v2.Vec
}

// graph is the planar graph of a face's boundary and internal edges.
type graph struct {
	face  *topo.Face
	per   float64
	umin  float64
	scale float64
	nodes []node
	half  []half
	out   map[int][]int
}

func newGraph(face *topo.Face) *graph {
	lo, hi := face.UVBounds()
	return &graph{
		face:  face,
		per:   face.Surface.UPeriod(),
		umin:  lo.X,
		scale: math.Max(hi.X-lo.X, hi.Y-lo.Y),
		out:   make(map[int][]int),
	}
}

// node returns the node of v at uv. On periodic surfaces one vertex may
// sit at several places of the parameter plane, a seam vertex at both
// ends of the period.
func (g *graph) node(v *topo.Vertex, uv v2.Vec) int {
	for i, n := range g.nodes {
		if n.v != v {
			continue
		}
		if g.per == 0 || math.Abs(n.uv.X-uv.X) < g.per/2 {
			return i
		}
	}
	g.nodes = append(g.nodes, node{v: v, uv: uv})
	return len(g.nodes) - 1
}

func (g *graph) push(oe topo.OrientedEdge, twin int) int {
	h := half{
		use:  oe,
		from: g.node(oe.First(), oe.FirstUV()),
		to:   g.node(oe.Last(), oe.LastUV()),
		twin: twin,
	}
	g.half = append(g.half, h)
	k := len(g.half) - 1
	g.out[h.from] = append(g.out[h.from], k)
	return k
}

func (g *graph) addBoundary(oe topo.OrientedEdge) {
	g.push(oe, -1)
}

// addInternal traces e on the face and adds it in both directions. The
// trace is shifted by whole periods so that its middle lies in the face's
// u window.
func (g *graph) addInternal(e *topo.Edge) {
	uv := topo.TraceUV(g.face.Surface, e, e.T0, e.T1, false, g.umin)
	if g.per > 0 {
		if k := math.Floor((uv[len(uv)/2].X - g.umin) / g.per); k != 0 {
			for i := range uv {
				uv[i].X -= k * g.per
			}
		}
	}
	fwd := topo.OrientedEdge{Edge: e, UV: uv}
	a := g.push(fwd, -1)
	b := g.push(fwd.Reverse(), a)
	g.half[a].twin = b
}

// prune drops internal edges with a free end until none is left and
// returns the number of internal edges kept.
func (g *graph) prune() int {
	deg := make(map[int]int)
	for k, h := range g.half {
		if h.twin < 0 || k < h.twin {
			deg[h.from]++
			deg[h.to]++
		}
	}
	for changed := true; changed; {
		changed = false
		for k := range g.half {
			h := &g.half[k]
			if h.twin < 0 || h.removed || k > h.twin || h.from == h.to {
				continue
			}
			if deg[h.from] > 1 && deg[h.to] > 1 {
				continue
			}
			h.removed = true
			g.half[h.twin].removed = true
			deg[h.from]--
			deg[h.to]--
			changed = true
		}
	}
	kept := 0
	for k, h := range g.half {
		if h.twin >= 0 && !h.removed && k < h.twin {
			kept++
		}
	}
	return kept
}

func startDir(uv []v2.Vec) v2.Vec {
	for i := 1; i < len(uv); i++ {
		if d := uv[i].Sub(uv[0]); d.Length() > 1e-12 {
			return d.MulScalar(1 / d.Length())
		}
	}
	return v2.Vec{}
}

func endDir(uv []v2.Vec) v2.Vec {
	n := len(uv)
	for i := n - 2; i >= 0; i-- {
		if d := uv[n-1].Sub(uv[i]); d.Length() > 1e-12 {
			return d.MulScalar(1 / d.Length())
		}
	}
	return v2.Vec{}
}

// next picks the half leaving the end of cur with the smallest clockwise
// turn from the reversed arrival direction, keeping the region on the
// left. Going back along the twin comes last.
func (g *graph) next(cur int) int {
	a := endDir(g.half[cur].use.UV).MulScalar(-1)
	best, bestAng := -1, math.Inf(1)
	for _, c := range g.out[g.half[cur].to] {
		if g.half[c].removed {
			continue
		}
		b := startDir(g.half[c].use.UV)
		ang := math.Atan2(geom.Cross2(b, a), a.Dot(b))
		if ang <= 1e-12 {
			ang += geom.TwoPi
		}
		if ang < bestAng {
			best, bestAng = c, ang
		}
	}
	return best
}

// loops traces every half into exactly one closed loop.
func (g *graph) loops() ([][]int, error) {
	used := make([]bool, len(g.half))
	var out [][]int
	for h0, h := range g.half {
		if used[h0] || h.removed {
			continue
		}
		used[h0] = true
		loop := []int{h0}
		for cur := h0; ; {
			nx := g.next(cur)
			if nx == h0 {
				break
			}
			if nx < 0 || used[nx] {
				return nil, fmt.Errorf("region boundary does not close after %d uses", len(loop))
			}
			used[nx] = true
			loop = append(loop, nx)
			cur = nx
		}
		out = append(out, loop)
	}
	return out, nil
}

func (g *graph) polygon(loop []int) []v2.Vec {
	var pts []v2.Vec
	for _, k := range loop {
		uv := g.half[k].use.UV
		pts = append(pts, uv[:len(uv)-1]...)
	}
	return pts
}

// leftPoint returns a point just left of the first use of loop.
func (g *graph) leftPoint(loop []int) v2.Vec {
	uv := g.half[loop[0]].use.UV
	d := startDir(uv)
	mid := geom.Lerp2(uv[0], uv[1], 0.5)
	eps := 1e-6 * math.Max(g.scale, 1e-3)
	return mid.Add(v2.Vec{X: -d.Y, Y: d.X}.MulScalar(eps))
}

// faces turns the loops into faces: counter-clockwise loops bound regions,
// clockwise ones are holes of the smallest region around them.
func (g *graph) faces() ([]*topo.Face, error) {
	loops, err := g.loops()
	if err != nil {
		return nil, err
	}
	type region struct {
		loop  []int
		poly  []v2.Vec
		area  float64
		holes [][]int
	}
	var outer []*region
	var holes [][]int
	minArea := 1e-14 * math.Max(g.scale*g.scale, 1e-6)
	for _, l := range loops {
		poly := g.polygon(l)
		a := topo.SignedArea(poly)
		switch {
		case math.Abs(a) <= minArea:
		case a > 0:
			outer = append(outer, &region{loop: l, poly: poly, area: a})
		default:
			holes = append(holes, l)
		}
	}
	for _, h := range holes {
		p := g.leftPoint(h)
		var best *region
		for _, r := range outer {
			if topo.PointInPolygon(p, r.poly) && (best == nil || r.area < best.area) {
				best = r
			}
		}
		if best == nil {
			return nil, fmt.Errorf("hole loop lies in no region")
		}
		best.holes = append(best.holes, h)
	}
	out := make([]*topo.Face, 0, len(outer))
	for _, r := range outer {
		wires := make([]*topo.Wire, 0, 1+len(r.holes))
		for _, l := range append([][]int{r.loop}, r.holes...) {
			uses := make([]topo.OrientedEdge, len(l))
			for i, k := range l {
				uses[i] = g.half[k].use
			}
			w, err := topo.MakeWire(uses...)
			if err != nil {
				return nil, err
			}
			wires = append(wires, w)
		}
		nf, err := topo.MakeFace(g.face.Surface, wires...)
		if err != nil {
			return nil, err
		}
		nf.Reversed = g.face.Reversed
		nf.Tol = math.Max(nf.Tol, g.face.Tol)
		out = append(out, nf)
	}
	return out, nil
}
