// Package topo is the boundary-representation shape tree: vertices, edges,
// wires, faces, shells, solids and compounds built on pkg/geom geometry,
// together with the construction, traversal and measurement primitives the
// Boolean engine consumes.
//
// Shapes are immutable once built. Sharing is by pointer: two faces that
// meet along an edge reference the same *Edge, each through its own
// OrientedEdge. Face wires run counter-clockwise in the face's parameter
// space with material on the left; Face.Reversed flips only the normal.
package topo

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/kerf/pkg/geom"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ShapeKind enumerates the shape tree levels.
type ShapeKind int

const (
	KindVertex ShapeKind = iota
	KindEdge
	KindWire
	KindFace
	KindShell
	KindSolid
	KindCompound
)

func (k ShapeKind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindEdge:
		return "edge"
	case KindWire:
		return "wire"
	case KindFace:
		return "face"
	case KindShell:
		return "shell"
	case KindSolid:
		return "solid"
	case KindCompound:
		return "compound"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

// Shape is any node of the shape tree.
type Shape interface {
	Kind() ShapeKind
}

// Vertex is a point with a tolerance radius.
type Vertex struct {
	Point v3.Vec
	Tol   float64
}

// Edge is a bounded piece [T0, T1] of a curve between two vertices. A
// degenerate edge collapses to a single point (a sphere pole); its
// parameter range is the span it covers in the face's u direction.
type Edge struct {
	Curve      geom.Curve
	T0, T1     float64
	V0, V1     *Vertex
	Tol        float64
	Degenerate bool
}

// OrientedEdge is one use of an edge inside a wire. UV is the trace of the
// edge on the owning face, sampled uniformly in edge parameter and listed in
// the direction of use.
type OrientedEdge struct {
	Edge     *Edge
	Reversed bool
	UV       []v2.Vec
}

// Wire is a closed chain of edge uses.
type Wire struct {
	Edges []OrientedEdge
}

// Face is a bounded region of a surface. Wires[0] is the outer boundary.
type Face struct {
	Surface  geom.Surface
	Wires    []*Wire
	Reversed bool
	Tol      float64
}

// Shell is a connected set of faces.
type Shell struct {
	Faces []*Face
}

// Solid is a region bounded by one outer shell and optional void shells.
type Solid struct {
	Shells []*Shell
}

// Compound is an arbitrary collection of shapes.
type Compound struct {
	Children []Shape
}

func (*Vertex) Kind() ShapeKind   { return KindVertex }
func (*Edge) Kind() ShapeKind     { return KindEdge }
func (*Wire) Kind() ShapeKind     { return KindWire }
func (*Face) Kind() ShapeKind     { return KindFace }
func (*Shell) Kind() ShapeKind    { return KindShell }
func (*Solid) Kind() ShapeKind    { return KindSolid }
func (*Compound) Kind() ShapeKind { return KindCompound }

// ErrConstruction is wrapped by every builder failure.
var ErrConstruction = errors.New("topo: invalid construction")

// ---------------------------------------------------------------------------
// Builders
// ---------------------------------------------------------------------------

// MakeVertex returns a vertex at p. Tolerances below geom.Confusion are raised.
func MakeVertex(p v3.Vec, tol float64) *Vertex {
	return &Vertex{Point: p, Tol: math.Max(tol, geom.Confusion)}
}

// MakeEdge bounds c to [t0, t1] between v0 and v1. The curve ends must lie
// within the vertex tolerances.
func MakeEdge(c geom.Curve, v0, v1 *Vertex, t0, t1 float64) (*Edge, error) {
	if c == nil || v0 == nil || v1 == nil {
		return nil, fmt.Errorf("%w: edge needs a curve and two vertices", ErrConstruction)
	}
	if !(t1 > t0) {
		return nil, fmt.Errorf("%w: empty edge range [%g, %g]", ErrConstruction, t0, t1)
	}
	tol := geom.Confusion
	if d := geom.Dist(c.Evaluate(t0), v0.Point); d > v0.Tol+tol {
		return nil, fmt.Errorf("%w: edge start is %g from its vertex", ErrConstruction, d)
	}
	if d := geom.Dist(c.Evaluate(t1), v1.Point); d > v1.Tol+tol {
		return nil, fmt.Errorf("%w: edge end is %g from its vertex", ErrConstruction, d)
	}
	return &Edge{Curve: c, T0: t0, T1: t1, V0: v0, V1: v1, Tol: tol}, nil
}

// MakeDegenerateEdge returns an edge collapsed onto v covering [t0, t1] in
// the u direction of the face that uses it.
func MakeDegenerateEdge(v *Vertex, t0, t1 float64) *Edge {
	return &Edge{
		Curve:      &geom.Line{Origin: v.Point},
		T0:         t0,
		T1:         t1,
		V0:         v,
		V1:         v,
		Tol:        v.Tol,
		Degenerate: true,
	}
}

// Use returns an oriented use of e without a parameter-space trace.
func Use(e *Edge, reversed bool) OrientedEdge {
	return OrientedEdge{Edge: e, Reversed: reversed}
}

// MakeWire chains edge uses into a closed wire.
func MakeWire(uses ...OrientedEdge) (*Wire, error) {
	if len(uses) == 0 {
		return nil, fmt.Errorf("%w: empty wire", ErrConstruction)
	}
	for i, u := range uses {
		next := uses[(i+1)%len(uses)]
		if u.Last() != next.First() {
			return nil, fmt.Errorf("%w: wire is open after edge %d", ErrConstruction, i)
		}
	}
	return &Wire{Edges: uses}, nil
}

// MakeFace bounds s by wires. Uses without a UV trace get one computed by
// projection; the outer wire must run counter-clockwise in UV.
func MakeFace(s geom.Surface, wires ...*Wire) (*Face, error) {
	if s == nil || len(wires) == 0 {
		return nil, fmt.Errorf("%w: face needs a surface and a wire", ErrConstruction)
	}
	f := &Face{Surface: s, Wires: wires, Tol: geom.Confusion}
	for _, w := range wires {
		if err := ensureUV(s, w); err != nil {
			return nil, err
		}
		for _, oe := range w.Edges {
			f.Tol = math.Max(f.Tol, oe.Edge.Tol)
		}
	}
	if SignedArea(wires[0].Polygon()) <= 0 {
		return nil, fmt.Errorf("%w: outer wire is not counter-clockwise", ErrConstruction)
	}
	return f, nil
}

// MakeShell groups faces.
func MakeShell(faces ...*Face) *Shell {
	return &Shell{Faces: faces}
}

// MakeSolid groups shells; the first is the outer one.
func MakeSolid(shells ...*Shell) *Solid {
	return &Solid{Shells: shells}
}

// MakeCompound groups arbitrary shapes.
func MakeCompound(children ...Shape) *Compound {
	return &Compound{Children: children}
}

// ---------------------------------------------------------------------------
// Edge use accessors
// ---------------------------------------------------------------------------

// First returns the vertex the use starts at.
func (oe OrientedEdge) First() *Vertex {
	if oe.Reversed {
		return oe.Edge.V1
	}
	return oe.Edge.V0
}

// Last returns the vertex the use ends at.
func (oe OrientedEdge) Last() *Vertex {
	if oe.Reversed {
		return oe.Edge.V0
	}
	return oe.Edge.V1
}

// Params returns the edge parameters at the start and end of the use.
func (oe OrientedEdge) Params() (float64, float64) {
	if oe.Reversed {
		return oe.Edge.T1, oe.Edge.T0
	}
	return oe.Edge.T0, oe.Edge.T1
}

// FirstUV returns the parameter-space point where the use starts.
func (oe OrientedEdge) FirstUV() v2.Vec { return oe.UV[0] }

// LastUV returns the parameter-space point where the use ends.
func (oe OrientedEdge) LastUV() v2.Vec { return oe.UV[len(oe.UV)-1] }

// Reverse returns the opposite use of the same edge.
func (oe OrientedEdge) Reverse() OrientedEdge {
	uv := make([]v2.Vec, len(oe.UV))
	for i, p := range oe.UV {
		uv[len(uv)-1-i] = p
	}
	return OrientedEdge{Edge: oe.Edge, Reversed: !oe.Reversed, UV: uv}
}

// Closed reports whether the edge starts and ends at the same vertex.
func (e *Edge) Closed() bool { return e.V0 == e.V1 }

// Midpoint returns the point at the middle of the edge's parameter range.
func (e *Edge) Midpoint() v3.Vec {
	return e.Curve.Evaluate(0.5 * (e.T0 + e.T1))
}

// Length returns the arc length of the edge.
func (e *Edge) Length() float64 {
	if e.Degenerate {
		return 0
	}
	return geom.Length(e.Curve, e.T0, e.T1)
}

// Normal returns the outward normal of the face at (u, v).
func (f *Face) Normal(u, v float64) v3.Vec {
	n := f.Surface.Normal(u, v)
	if f.Reversed {
		return n.Neg()
	}
	return n
}

// Flipped returns a face on the same surface and wires with the opposite
// normal.
func (f *Face) Flipped() *Face {
	return &Face{Surface: f.Surface, Wires: f.Wires, Reversed: !f.Reversed, Tol: f.Tol}
}

// Polygon returns the closed parameter-space polygon of the wire, without
// repeating the first point.
func (w *Wire) Polygon() []v2.Vec {
	var pts []v2.Vec
	for _, oe := range w.Edges {
		n := len(oe.UV)
		if n == 0 {
			continue
		}
		pts = append(pts, oe.UV[:n-1]...)
	}
	return pts
}
