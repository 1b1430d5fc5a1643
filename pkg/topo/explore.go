package topo

import "iter"

// Explore yields every distinct sub-shape of s of the given kind, in
// depth-first order of first appearance. s itself is yielded when it has
// that kind.
func Explore(s Shape, kind ShapeKind) iter.Seq[Shape] {
	return func(yield func(Shape) bool) {
		seen := make(map[Shape]bool)
		var walk func(Shape) bool
		walk = func(sh Shape) bool {
			if sh == nil {
				return true
			}
			if sh.Kind() == kind {
				if seen[sh] {
					return true
				}
				seen[sh] = true
				return yield(sh)
			}
			if sh.Kind() < kind {
				return true
			}
			for _, c := range Children(sh) {
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(s)
	}
}

// Children returns the direct sub-shapes of s. Edge uses are unwrapped to
// their edges.
func Children(s Shape) []Shape {
	switch sh := s.(type) {
	case *Compound:
		if sh == nil {
			return nil
		}
		return sh.Children
	case *Solid:
		if sh == nil {
			return nil
		}
		out := make([]Shape, len(sh.Shells))
		for i, c := range sh.Shells {
			out[i] = c
		}
		return out
	case *Shell:
		if sh == nil {
			return nil
		}
		out := make([]Shape, len(sh.Faces))
		for i, c := range sh.Faces {
			out[i] = c
		}
		return out
	case *Face:
		if sh == nil {
			return nil
		}
		out := make([]Shape, len(sh.Wires))
		for i, c := range sh.Wires {
			out[i] = c
		}
		return out
	case *Wire:
		if sh == nil {
			return nil
		}
		out := make([]Shape, len(sh.Edges))
		for i, c := range sh.Edges {
			out[i] = c.Edge
		}
		return out
	case *Edge:
		if sh == nil {
			return nil
		}
		if sh.V0 == sh.V1 {
			return []Shape{sh.V0}
		}
		return []Shape{sh.V0, sh.V1}
	}
	return nil
}

// Vertices yields the distinct vertices of s.
func Vertices(s Shape) iter.Seq[*Vertex] {
	return typed[*Vertex](s, KindVertex)
}

// Edges yields the distinct edges of s, degenerate ones included.
func Edges(s Shape) iter.Seq[*Edge] {
	return typed[*Edge](s, KindEdge)
}

// Faces yields the distinct faces of s.
func Faces(s Shape) iter.Seq[*Face] {
	return typed[*Face](s, KindFace)
}

// Shells yields the distinct shells of s.
func Shells(s Shape) iter.Seq[*Shell] {
	return typed[*Shell](s, KindShell)
}

// Solids yields the distinct solids of s.
func Solids(s Shape) iter.Seq[*Solid] {
	return typed[*Solid](s, KindSolid)
}

func typed[T Shape](s Shape, kind ShapeKind) iter.Seq[T] {
	return func(yield func(T) bool) {
		for sh := range Explore(s, kind) {
			if !yield(sh.(T)) {
				return
			}
		}
	}
}

// Count returns the number of distinct sub-shapes of the given kind.
// Degenerate edges are not counted.
func Count(s Shape, kind ShapeKind) int {
	n := 0
	for sh := range Explore(s, kind) {
		if e, ok := sh.(*Edge); ok && e.Degenerate {
			continue
		}
		n++
	}
	return n
}

// IsEmpty reports whether s has no faces, edges or vertices.
func IsEmpty(s Shape) bool {
	if s == nil {
		return true
	}
	for range Explore(s, KindVertex) {
		return false
	}
	return true
}
