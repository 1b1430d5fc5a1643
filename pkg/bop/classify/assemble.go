package classify

import (
	"math"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
)

// Assemble groups faces into shells by shared edges. Closed shells
// enclosing a positive volume become solids; those enclosing a negative one
// are voids and go into the smallest solid containing them. Open shells are
// kept as shells. The result is empty when faces is.
func Assemble(faces []*topo.Face, tol float64) *topo.Compound {
	tol = max(tol, minTol)
	shells := groupShells(faces)
	type solid struct {
		outer   *topo.Shell
		volume  float64
		voids   []*topo.Shell
		targets []target
	}
	var solids []*solid
	var voids, open []*topo.Shell
	for _, sh := range shells {
		v := topo.Volume(sh)
		switch {
		case !closed(sh) || math.Abs(v) <= geom.Confusion:
			open = append(open, sh)
		case v > 0:
			solids = append(solids, &solid{outer: sh, volume: v, targets: targets(sh)})
		default:
			voids = append(voids, sh)
		}
	}
	for _, vs := range voids {
		p, _, err := RepPoint(vs.Faces[0], tol)
		var best *solid
		if err == nil {
			for _, s := range solids {
				loc, ok := rayLocate(p, s.targets, tol)
				if ok && loc == topo.In && (best == nil || s.volume < best.volume) {
					best = s
				}
			}
		}
		if best == nil {
			open = append(open, vs)
			continue
		}
		best.voids = append(best.voids, vs)
	}
	var out []topo.Shape
	for _, s := range solids {
		out = append(out, topo.MakeSolid(append([]*topo.Shell{s.outer}, s.voids...)...))
	}
	for _, sh := range open {
		out = append(out, sh)
	}
	return topo.MakeCompound(out...)
}

func targets(sh *topo.Shell) []target {
	ts := make([]target, len(sh.Faces))
	for i, f := range sh.Faces {
		ts[i] = target{fc: topo.NewFaceClassifier(f), box: topo.FaceBox(f)}
	}
	return ts
}

// groupShells returns the connected components of faces under edge
// sharing, in order of their first face.
func groupShells(faces []*topo.Face) []*topo.Shell {
	parent := make([]int, len(faces))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	owner := make(map[*topo.Edge]int)
	for k, f := range faces {
		for e := range topo.Edges(f) {
			if e.Degenerate {
				continue
			}
			if j, ok := owner[e]; ok {
				a, b := find(j), find(k)
				if a != b {
					parent[max(a, b)] = min(a, b)
				}
				continue
			}
			owner[e] = k
		}
	}
	index := make(map[int]int)
	var out []*topo.Shell
	for k, f := range faces {
		r := find(k)
		i, ok := index[r]
		if !ok {
			i = len(out)
			index[r] = i
			out = append(out, topo.MakeShell())
		}
		out[i].Faces = append(out[i].Faces, f)
	}
	return out
}

// closed reports whether every edge of sh is used exactly twice.
func closed(sh *topo.Shell) bool {
	uses := make(map[*topo.Edge]int)
	for _, f := range sh.Faces {
		for _, w := range f.Wires {
			for _, oe := range w.Edges {
				if !oe.Edge.Degenerate {
					uses[oe.Edge]++
				}
			}
		}
	}
	for _, n := range uses {
		if n != 2 {
			return false
		}
	}
	return len(uses) > 0
}

// minTol is the classification tolerance floor.
const minTol = 2 * geom.Confusion
