package topo

import (
	"fmt"
	"math"

	"github.com/chazu/kerf/pkg/geom"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// boxFaces lists, per face, the outward normal and the corner indices in
// counter-clockwise order seen from outside. Corner i has coordinates
// (bit 0 -> x, bit 1 -> y, bit 2 -> z) of the box extremes.
var boxFaces = []struct {
	normal  v3.Vec
	corners [4]int
}{
	{v3.Vec{X: -1}, [4]int{0, 4, 6, 2}},
	{v3.Vec{X: 1}, [4]int{1, 3, 7, 5}},
	{v3.Vec{Y: -1}, [4]int{0, 1, 5, 4}},
	{v3.Vec{Y: 1}, [4]int{2, 6, 7, 3}},
	{v3.Vec{Z: -1}, [4]int{0, 2, 3, 1}},
	{v3.Vec{Z: 1}, [4]int{4, 5, 7, 6}},
}

// Box returns the axis-aligned box spanning min to max: 8 vertices, 12 line
// edges, 6 planar faces with outward normals.
func Box(min, max v3.Vec) (*Solid, error) {
	d := max.Sub(min)
	if d.X <= geom.Confusion || d.Y <= geom.Confusion || d.Z <= geom.Confusion {
		return nil, fmt.Errorf("%w: box extent %v is not positive", ErrConstruction, d)
	}
	var vs [8]*Vertex
	for i := range vs {
		p := min
		if i&1 != 0 {
			p.X = max.X
		}
		if i&2 != 0 {
			p.Y = max.Y
		}
		if i&4 != 0 {
			p.Z = max.Z
		}
		vs[i] = MakeVertex(p, geom.Confusion)
	}

	edges := make(map[[2]int]*Edge)
	use := func(a, b int) (OrientedEdge, error) {
		lo, hi := a, b
		if lo > hi {
			lo, hi = hi, lo
		}
		e, ok := edges[[2]int{lo, hi}]
		if !ok {
			p, q := vs[lo].Point, vs[hi].Point
			var err error
			e, err = MakeEdge(geom.NewLine(p, q), vs[lo], vs[hi], 0, geom.Dist(p, q))
			if err != nil {
				return OrientedEdge{}, err
			}
			edges[[2]int{lo, hi}] = e
		}
		return Use(e, a > b), nil
	}

	faces := make([]*Face, 0, len(boxFaces))
	for _, bf := range boxFaces {
		c := bf.corners
		uses := make([]OrientedEdge, 4)
		for i := range uses {
			u, err := use(c[i], c[(i+1)%4])
			if err != nil {
				return nil, err
			}
			uses[i] = u
		}
		w, err := MakeWire(uses...)
		if err != nil {
			return nil, err
		}
		origin := vs[c[0]].Point
		frame := geom.NewFrame(origin, bf.normal, vs[c[1]].Point.Sub(origin))
		f, err := MakeFace(&geom.Plane{Frame: frame}, w)
		if err != nil {
			return nil, err
		}
		faces = append(faces, f)
	}
	return MakeSolid(MakeShell(faces...)), nil
}

// referenceDir picks an X direction for a frame whose Z axis is axis,
// preferring the world X axis.
func referenceDir(axis v3.Vec) v3.Vec {
	if math.Abs(geom.Unit(axis).X) < 0.9 {
		return v3.Vec{X: 1}
	}
	return v3.Vec{Y: 1}
}

// uvLine samples a straight parameter-space segment with n points.
func uvLine(a, b v2.Vec, n int) []v2.Vec {
	out := make([]v2.Vec, n)
	for i := range out {
		out[i] = geom.Lerp2(a, b, float64(i)/float64(n-1))
	}
	return out
}

// Cylinder returns a closed cylinder of the given radius whose axis starts
// at base and runs height along axis. The lateral face is bounded by the two
// rim circles and a seam line used twice.
func Cylinder(base, axis v3.Vec, radius, height float64) (*Solid, error) {
	if radius <= geom.Confusion || height <= geom.Confusion || axis.Length() < geom.Angular {
		return nil, fmt.Errorf("%w: cylinder r=%g h=%g", ErrConstruction, radius, height)
	}
	f := geom.NewFrame(base, axis, referenceDir(axis))
	top := f
	top.Origin = base.Add(f.Z.MulScalar(height))

	vb := MakeVertex(base.Add(f.X.MulScalar(radius)), geom.Confusion)
	vt := MakeVertex(top.Origin.Add(f.X.MulScalar(radius)), geom.Confusion)

	bottom, err := MakeEdge(&geom.Circle{Frame: f, Radius: radius}, vb, vb, 0, geom.TwoPi)
	if err != nil {
		return nil, err
	}
	topRim, err := MakeEdge(&geom.Circle{Frame: top, Radius: radius}, vt, vt, 0, geom.TwoPi)
	if err != nil {
		return nil, err
	}
	seam, err := MakeEdge(&geom.Line{Origin: vb.Point, Dir: f.Z}, vb, vt, 0, height)
	if err != nil {
		return nil, err
	}

	nc := geom.SampleCount(bottom.Curve, 0, geom.TwoPi)
	lateral := &Wire{Edges: []OrientedEdge{
		{Edge: bottom, UV: uvLine(v2.Vec{}, v2.Vec{X: geom.TwoPi}, nc)},
		{Edge: seam, UV: uvLine(v2.Vec{X: geom.TwoPi}, v2.Vec{X: geom.TwoPi, Y: height}, 2)},
		{Edge: topRim, Reversed: true, UV: uvLine(v2.Vec{X: geom.TwoPi, Y: height}, v2.Vec{Y: height}, nc)},
		{Edge: seam, Reversed: true, UV: uvLine(v2.Vec{Y: height}, v2.Vec{}, 2)},
	}}
	side, err := MakeFace(&geom.Cylinder{Frame: f, Radius: radius}, lateral)
	if err != nil {
		return nil, err
	}

	bw, err := MakeWire(Use(bottom, true))
	if err != nil {
		return nil, err
	}
	bottomCap, err := MakeFace(&geom.Plane{Frame: geom.NewFrame(base, f.Z.Neg(), f.X)}, bw)
	if err != nil {
		return nil, err
	}
	tw, err := MakeWire(Use(topRim, false))
	if err != nil {
		return nil, err
	}
	topCap, err := MakeFace(&geom.Plane{Frame: geom.NewFrame(top.Origin, f.Z, f.X)}, tw)
	if err != nil {
		return nil, err
	}
	return MakeSolid(MakeShell(side, bottomCap, topCap)), nil
}

// Sphere returns a sphere as a single face bounded by a meridian seam and
// two degenerate pole edges.
func Sphere(center v3.Vec, radius float64) (*Solid, error) {
	if radius <= geom.Confusion {
		return nil, fmt.Errorf("%w: sphere radius %g", ErrConstruction, radius)
	}
	f := geom.StandardFrame(center)
	south := MakeVertex(center.Sub(f.Z.MulScalar(radius)), geom.Confusion)
	north := MakeVertex(center.Add(f.Z.MulScalar(radius)), geom.Confusion)

	meridian := geom.Frame{Origin: center, X: f.X, Y: f.Z, Z: f.X.Cross(f.Z)}
	seam, err := MakeEdge(&geom.Circle{Frame: meridian, Radius: radius}, south, north, -math.Pi/2, math.Pi/2)
	if err != nil {
		return nil, err
	}
	southPole := MakeDegenerateEdge(south, 0, geom.TwoPi)
	northPole := MakeDegenerateEdge(north, 0, geom.TwoPi)

	ns := geom.SampleCount(seam.Curve, seam.T0, seam.T1)
	lo, hi := -math.Pi/2, math.Pi/2
	w := &Wire{Edges: []OrientedEdge{
		{Edge: southPole, UV: []v2.Vec{{X: 0, Y: lo}, {X: geom.TwoPi, Y: lo}}},
		{Edge: seam, UV: uvLine(v2.Vec{X: geom.TwoPi, Y: lo}, v2.Vec{X: geom.TwoPi, Y: hi}, ns)},
		{Edge: northPole, Reversed: true, UV: []v2.Vec{{X: geom.TwoPi, Y: hi}, {X: 0, Y: hi}}},
		{Edge: seam, Reversed: true, UV: uvLine(v2.Vec{Y: hi}, v2.Vec{Y: lo}, ns)},
	}}
	face, err := MakeFace(&geom.Sphere{Frame: f, Radius: radius}, w)
	if err != nil {
		return nil, err
	}
	return MakeSolid(MakeShell(face)), nil
}
