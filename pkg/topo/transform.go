package topo

import (
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Transform returns a copy of s moved by the rigid motion m. Sharing between
// sub-shapes is preserved and parameter-space traces carry over unchanged.
func Transform(s Shape, m sdf.M44) Shape {
	t := &transformer{
		m:     m,
		verts: make(map[*Vertex]*Vertex),
		edges: make(map[*Edge]*Edge),
		faces: make(map[*Face]*Face),
	}
	return t.shape(s)
}

type transformer struct {
	m     sdf.M44
	verts map[*Vertex]*Vertex
	edges map[*Edge]*Edge
	faces map[*Face]*Face
}

func (t *transformer) shape(s Shape) Shape {
	switch sh := s.(type) {
	case *Vertex:
		return t.vertex(sh)
	case *Edge:
		return t.edge(sh)
	case *Wire:
		return t.wire(sh)
	case *Face:
		return t.face(sh)
	case *Shell:
		return t.shell(sh)
	case *Solid:
		out := &Solid{Shells: make([]*Shell, len(sh.Shells))}
		for i, c := range sh.Shells {
			out.Shells[i] = t.shell(c)
		}
		return out
	case *Compound:
		out := &Compound{Children: make([]Shape, len(sh.Children))}
		for i, c := range sh.Children {
			out.Children[i] = t.shape(c)
		}
		return out
	}
	return s
}

func (t *transformer) vertex(v *Vertex) *Vertex {
	if out, ok := t.verts[v]; ok {
		return out
	}
	out := &Vertex{Point: t.m.MulPosition(v.Point), Tol: v.Tol}
	t.verts[v] = out
	return out
}

func (t *transformer) edge(e *Edge) *Edge {
	if out, ok := t.edges[e]; ok {
		return out
	}
	out := &Edge{
		Curve:      e.Curve.Transformed(t.m),
		T0:         e.T0,
		T1:         e.T1,
		V0:         t.vertex(e.V0),
		V1:         t.vertex(e.V1),
		Tol:        e.Tol,
		Degenerate: e.Degenerate,
	}
	t.edges[e] = out
	return out
}

func (t *transformer) wire(w *Wire) *Wire {
	out := &Wire{Edges: make([]OrientedEdge, len(w.Edges))}
	for i, oe := range w.Edges {
		out.Edges[i] = OrientedEdge{
			Edge:     t.edge(oe.Edge),
			Reversed: oe.Reversed,
			UV:       append([]v2.Vec(nil), oe.UV...),
		}
	}
	return out
}

func (t *transformer) face(f *Face) *Face {
	if out, ok := t.faces[f]; ok {
		return out
	}
	out := &Face{
		Surface:  f.Surface.Transformed(t.m),
		Wires:    make([]*Wire, len(f.Wires)),
		Reversed: f.Reversed,
		Tol:      f.Tol,
	}
	for i, w := range f.Wires {
		out.Wires[i] = t.wire(w)
	}
	t.faces[f] = out
	return out
}

func (t *transformer) shell(s *Shell) *Shell {
	out := &Shell{Faces: make([]*Face, len(s.Faces))}
	for i, f := range s.Faces {
		out.Faces[i] = t.face(f)
	}
	return out
}
