package topo

import (
	"errors"
	"fmt"

	"github.com/chazu/kerf/pkg/geom"
)

// ErrInvalidShape is wrapped by every failure reported by Check.
var ErrInvalidShape = errors.New("topo: invalid shape")

// Check validates s: edge ends lie on their vertices, wires are closed in
// space and in parameter space, and every edge of a closed shell is used
// exactly twice with opposite orientations, a reversed face counting its
// uses backwards. All problems are reported.
func Check(s Shape) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidShape}, args...)...))
	}

	for e := range Edges(s) {
		if e.Degenerate {
			continue
		}
		if d := geom.Dist(e.Curve.Evaluate(e.T0), e.V0.Point); d > e.V0.Tol+e.Tol {
			fail("edge start is %g from its vertex", d)
		}
		if d := geom.Dist(e.Curve.Evaluate(e.T1), e.V1.Point); d > e.V1.Tol+e.Tol {
			fail("edge end is %g from its vertex", d)
		}
	}

	for f := range Faces(s) {
		for wi, w := range f.Wires {
			for i, oe := range w.Edges {
				next := w.Edges[(i+1)%len(w.Edges)]
				if oe.Last() != next.First() {
					fail("wire %d is open after use %d", wi, i)
				}
				if len(oe.UV) < 2 || len(next.UV) < 2 {
					fail("wire %d use %d has no parameter trace", wi, i)
					continue
				}
				if d := geom.Dist2(oe.LastUV(), next.FirstUV()); d > 1e-6 {
					fail("wire %d has a parameter gap of %g after use %d", wi, d, i)
				}
			}
		}
	}

	for sh := range Shells(s) {
		uses := make(map[*Edge][2]int)
		for _, f := range sh.Faces {
			for _, w := range f.Wires {
				for _, oe := range w.Edges {
					if oe.Edge.Degenerate {
						continue
					}
					c := uses[oe.Edge]
					if oe.Reversed != f.Reversed {
						c[1]++
					} else {
						c[0]++
					}
					uses[oe.Edge] = c
				}
			}
		}
		for e, c := range uses {
			if c[0] != 1 || c[1] != 1 {
				fail("edge at %v is used %d forward and %d reversed in a shell", e.Midpoint(), c[0], c[1])
			}
		}
	}
	return errors.Join(errs...)
}
