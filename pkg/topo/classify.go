package topo

import (
	"fmt"
	"math"

	"github.com/chazu/kerf/pkg/geom"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Location is the position of a point relative to a face or solid.
type Location int

const (
	Out Location = iota
	In
	On
)

func (l Location) String() string {
	switch l {
	case Out:
		return "out"
	case In:
		return "in"
	case On:
		return "on"
	default:
		return fmt.Sprintf("Location(%d)", int(l))
	}
}

// FaceClassifier answers point-in-face queries for one face. It caches the
// parameter-space polygons of the wires.
type FaceClassifier struct {
	face  *Face
	polys [][]v2.Vec
	uses  []OrientedEdge // boundary uses, seams and poles excluded
	umin  float64
	per   float64
	size  float64
}

// NewFaceClassifier prepares f for repeated queries.
func NewFaceClassifier(f *Face) *FaceClassifier {
	fc := &FaceClassifier{face: f, per: f.Surface.UPeriod()}
	count := make(map[*Edge]int)
	for _, w := range f.Wires {
		fc.polys = append(fc.polys, w.Polygon())
		for _, oe := range w.Edges {
			count[oe.Edge]++
		}
	}
	for _, w := range f.Wires {
		for _, oe := range w.Edges {
			if oe.Edge.Degenerate || count[oe.Edge] > 1 {
				continue
			}
			fc.uses = append(fc.uses, oe)
		}
	}
	lo, _ := f.UVBounds()
	fc.umin = lo.X
	fc.size = 1
	if d := geom.BoxDiagonal(wireExtent(f)); d > 0 {
		fc.size = d
	}
	return fc
}

// Face returns the classified face.
func (fc *FaceClassifier) Face() *Face { return fc.face }

type nearHit struct {
	dist     float64
	use      OrientedEdge
	t        float64
	interior bool
}

func (fc *FaceClassifier) nearest(p v3.Vec) nearHit {
	best := nearHit{dist: math.Inf(1)}
	for _, oe := range fc.uses {
		e := oe.Edge
		t, d := geom.ProjectInRange(e.Curve, p, e.T0, e.T1)
		if d < best.dist {
			pt := geom.ParamTolerance(e.Curve, t, geom.Confusion)
			best = nearHit{
				dist:     d,
				use:      oe,
				t:        t,
				interior: t-e.T0 > pt && e.T1-t > pt,
			}
		}
	}
	return best
}

// BoundaryDistance returns the distance from p to the nearest boundary edge
// of the face. Seam and pole edges are not boundary.
func (fc *FaceClassifier) BoundaryDistance(p v3.Vec) float64 {
	return fc.nearest(p).dist
}

// Classify locates p, assumed to lie on the face's surface, against the
// face. Points within tol of the boundary are On.
func (fc *FaceClassifier) Classify(p v3.Vec, tol float64) Location {
	h := fc.nearest(p)
	if h.dist <= tol {
		return On
	}
	u, v := fc.face.Surface.Project(p)
	if h.interior && h.dist < 1e-2*fc.size {
		// near a single edge: the side of its tangent decides
		e := h.use.Edge
		tan := e.Curve.Derivative(h.t, 1)
		if h.use.Reversed {
			tan = tan.Neg()
		}
		q := e.Curve.Evaluate(h.t)
		uq, vq := fc.face.Surface.Project(q)
		left := fc.face.Surface.Normal(uq, vq).Cross(tan)
		if p.Sub(q).Dot(left) > 0 {
			return In
		}
		return Out
	}
	if geom.IsSingular(fc.face.Surface, u, v) {
		return fc.classifyPole(v)
	}
	if fc.ContainsUV(v2.Vec{X: u, Y: v}) {
		return In
	}
	return Out
}

// classifyPole locates a singular point by testing the ring of parameters
// just off it.
func (fc *FaceClassifier) classifyPole(v float64) Location {
	const ring = 16
	dv := -1e-6
	if v < 0 {
		dv = -dv
	}
	in := 0
	for i := 0; i < ring; i++ {
		u := fc.umin + fc.per*(float64(i)+0.5)/ring
		if fc.ContainsUV(v2.Vec{X: u, Y: v + dv}) {
			in++
		}
	}
	switch in {
	case 0:
		return Out
	case ring:
		return In
	}
	return On
}

// ContainsUV applies the crossing rule to a parameter-space point, shifting
// u into the face's period window.
func (fc *FaceClassifier) ContainsUV(uv v2.Vec) bool {
	if fc.per > 0 {
		uv.X = geom.NormalizeAngle(uv.X, fc.umin-geom.PConfusion, fc.per)
	}
	in := false
	for _, poly := range fc.polys {
		if PointInPolygon(uv, poly) {
			in = !in
		}
	}
	return in
}
