package classify

import (
	"cmp"
	"errors"
	"math"
	"slices"

	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/bop/intersect"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrNoRepPoint is returned when no interior point of a face can be found.
var ErrNoRepPoint = errors.New("classify: no interior point")

// target is a face of a solid being cast against.
type target struct {
	fc  *topo.FaceClassifier
	box sdf.Box3
}

// rayDirs are tried in turn until a ray meets no edge and grazes no face.
var rayDirs = []v3.Vec{
	geom.Unit(v3.Vec{X: 0.5773, Y: 0.3141, Z: 0.7536}),
	geom.Unit(v3.Vec{X: -0.2718, Y: 0.8317, Z: 0.4142}),
	geom.Unit(v3.Vec{X: 0.6180, Y: -0.5403, Z: -0.3229}),
	geom.Unit(v3.Vec{X: -0.7071, Y: -0.1732, Z: 0.6931}),
	geom.Unit(v3.Vec{X: 0.1234, Y: 0.2357, Z: -0.9640}),
	geom.Unit(v3.Vec{X: 0.9511, Y: 0.1667, Z: -0.2598}),
}

// grazing is the smallest |cos| between a ray and a face normal counted as
// a clean crossing.
const grazing = 1e-3

// rayLocate casts rays from p and counts crossings with the faces ts. A
// ray hitting a face boundary, or a face at a grazing angle, is discarded.
// ok is false when every direction was discarded.
func rayLocate(p v3.Vec, ts []target, tol float64) (loc topo.Location, ok bool) {
	for _, d := range rayDirs {
		n, clean := cast(p, d, ts, tol)
		if !clean {
			continue
		}
		if n%2 == 1 {
			return topo.In, true
		}
		return topo.Out, true
	}
	return topo.On, false
}

func cast(p, d v3.Vec, ts []target, tol float64) (int, bool) {
	count := 0
	for _, t := range ts {
		_, t1, hit := geom.ClipLine(p, d, geom.BoxEnlarge(t.box, tol))
		if !hit || t1 < 0 {
			continue
		}
		f := t.fc.Face()
		for _, s := range intersect.LineSurface(p, d, f.Surface) {
			if s < -tol {
				continue
			}
			q := p.Add(d.MulScalar(s))
			loc := t.fc.Classify(q, tol)
			if s <= tol {
				// p is on this surface, outside the face itself
				if loc != topo.Out {
					return 0, false
				}
				continue
			}
			switch loc {
			case topo.On:
				return 0, false
			case topo.In:
				u, v := f.Surface.Project(q)
				if math.Abs(f.Surface.Normal(u, v).Dot(d)) < grazing {
					return 0, false
				}
				count++
			}
		}
	}
	return count, true
}

// Locate classifies p against the closed shells of s: On within tol of a
// face, otherwise In or Out by ray parity.
func Locate(s topo.Shape, p v3.Vec, tol float64) (topo.Location, error) {
	tol = max(tol, minTol)
	var ts []target
	for f := range topo.Faces(s) {
		t := target{fc: topo.NewFaceClassifier(f), box: topo.FaceBox(f)}
		if geom.BoxContains(t.box, p, tol) && geom.SurfaceDistance(f.Surface, p) <= tol &&
			t.fc.Classify(p, tol) != topo.Out {
			return topo.On, nil
		}
		ts = append(ts, t)
	}
	loc, ok := rayLocate(p, ts, tol)
	if !ok {
		return topo.On, diag.New(diag.ClassificationAmbiguous, "locate", nil, "no clean ray from %v", p)
	}
	return loc, nil
}

// Sample is a point inside a face with the face normal there.
type Sample struct {
	P, N v3.Vec
	// Clearance is the distance from P to the face boundary.
	Clearance float64
}

// sampleRows are the scan rows, as fractions of the v range. They avoid the
// simple fractions where the vertices of split faces tend to sit.
var sampleRows = []float64{0.5137, 0.3819, 0.6472, 0.2361, 0.7639, 0.1459, 0.8541, 0.0902, 0.9098}

// Samples returns points inside face f farther than tol from its boundary,
// the one with the most clearance first. Candidates are the middles of the
// runs of a few scan rows across the parameter domain.
func Samples(f *topo.Face, tol float64) []Sample {
	lo, hi := f.UVBounds()
	var polys [][]v2.Vec
	for _, w := range f.Wires {
		polys = append(polys, w.Polygon())
	}
	fc := topo.NewFaceClassifier(f)
	var out []Sample
	for _, frac := range sampleRows {
		v := lo.Y + frac*(hi.Y-lo.Y)
		var xs []float64
		for _, poly := range polys {
			for i := range poly {
				a, b := poly[i], poly[(i+1)%len(poly)]
				if (a.Y > v) != (b.Y > v) {
					xs = append(xs, a.X+(v-a.Y)*(b.X-a.X)/(b.Y-a.Y))
				}
			}
		}
		slices.Sort(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			if xs[i+1]-xs[i] <= 1e-9*math.Max(hi.X-lo.X, 1) {
				continue
			}
			u := 0.5 * (xs[i] + xs[i+1])
			p := f.Surface.Evaluate(u, v)
			if fc.Classify(p, tol) != topo.In {
				continue
			}
			d := fc.BoundaryDistance(p)
			if d <= tol {
				continue
			}
			out = append(out, Sample{P: p, N: f.Normal(u, v), Clearance: d})
		}
	}
	slices.SortStableFunc(out, func(a, b Sample) int { return cmp.Compare(b.Clearance, a.Clearance) })
	return out
}

// RepPoint returns the sample of f farthest from its boundary and the face
// normal there.
func RepPoint(f *topo.Face, tol float64) (v3.Vec, v3.Vec, error) {
	ps := Samples(f, tol)
	if len(ps) == 0 {
		return v3.Vec{}, v3.Vec{}, ErrNoRepPoint
	}
	return ps[0].P, ps[0].N, nil
}
