package intersect

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-7

func vecNear(t *testing.T, want, got v3.Vec, eps float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, eps, "x of %v", got)
	assert.InDelta(t, want.Y, got.Y, eps, "y of %v", got)
	assert.InDelta(t, want.Z, got.Z, eps, "z of %v", got)
}

func segment(a, b v3.Vec) (*geom.Line, float64, float64) {
	return geom.NewLine(a, b), 0, geom.Dist(a, b)
}

func unitCircle(center v3.Vec) *geom.Circle {
	return &geom.Circle{Frame: geom.StandardFrame(center), Radius: 1}
}

func bigBox() sdf.Box3 {
	return sdf.Box3{Min: v3.Vec{X: -5, Y: -5, Z: -5}, Max: v3.Vec{X: 5, Y: 5, Z: 5}}
}

func TestLineLine(t *testing.T) {
	tests := []struct {
		name      string
		a0, a1    v3.Vec
		b0, b1    v3.Vec
		crossings int
		overlaps  []Overlap
	}{
		{
			name: "crossing",
			a0:   v3.Vec{}, a1: v3.Vec{X: 1},
			b0: v3.Vec{X: 0.5, Y: -1}, b1: v3.Vec{X: 0.5, Y: 1},
			crossings: 1,
		},
		{
			name: "skew",
			a0:   v3.Vec{}, a1: v3.Vec{X: 1},
			b0: v3.Vec{X: 0.5, Y: -1, Z: 0.1}, b1: v3.Vec{X: 0.5, Y: 1, Z: 0.1},
		},
		{
			name: "crossing beyond the segment",
			a0:   v3.Vec{}, a1: v3.Vec{X: 1},
			b0: v3.Vec{X: 2, Y: -1}, b1: v3.Vec{X: 2, Y: 1},
		},
		{
			name: "collinear overlap",
			a0:   v3.Vec{}, a1: v3.Vec{X: 1},
			b0: v3.Vec{X: 0.5}, b1: v3.Vec{X: 1.5},
			overlaps: []Overlap{{A0: 0.5, A1: 1, B0: 0, B1: 0.5}},
		},
		{
			name: "antiparallel overlap",
			a0:   v3.Vec{}, a1: v3.Vec{X: 1},
			b0: v3.Vec{X: 0.75}, b1: v3.Vec{X: 0.25},
			overlaps: []Overlap{{A0: 0.25, A1: 0.75, B0: 0, B1: 0.5}},
		},
		{
			name: "end to end",
			a0:   v3.Vec{}, a1: v3.Vec{X: 1},
			b0: v3.Vec{X: 1}, b1: v3.Vec{X: 2},
			crossings: 1,
		},
		{
			name: "parallel apart",
			a0:   v3.Vec{}, a1: v3.Vec{X: 1},
			b0: v3.Vec{Y: 0.01}, b1: v3.Vec{X: 1, Y: 0.01},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l1, a0, a1 := segment(tc.a0, tc.a1)
			l2, b0, b1 := segment(tc.b0, tc.b1)
			res, err := CurveCurve(l1, a0, a1, l2, b0, b1, tol)
			require.NoError(t, err)
			assert.Len(t, res.Crossings, tc.crossings)
			require.Len(t, res.Overlaps, len(tc.overlaps))
			for i, want := range tc.overlaps {
				got := res.Overlaps[i]
				assert.InDelta(t, want.A0, got.A0, 1e-12)
				assert.InDelta(t, want.A1, got.A1, 1e-12)
				assert.InDelta(t, want.B0, got.B0, 1e-12)
				assert.InDelta(t, want.B1, got.B1, 1e-12)
			}
		})
	}
}

func TestLineLineCrossingParameters(t *testing.T) {
	l1, a0, a1 := segment(v3.Vec{}, v3.Vec{X: 1})
	l2, b0, b1 := segment(v3.Vec{X: 0.5, Y: -1}, v3.Vec{X: 0.5, Y: 1})
	res, err := CurveCurve(l1, a0, a1, l2, b0, b1, tol)
	require.NoError(t, err)
	require.Len(t, res.Crossings, 1)
	c := res.Crossings[0]
	assert.InDelta(t, 0.5, c.T1, 1e-12)
	assert.InDelta(t, 1, c.T2, 1e-12)
	vecNear(t, v3.Vec{X: 0.5}, c.Point, 1e-12)
}

func TestCircleCircleCrossings(t *testing.T) {
	c1, c2 := unitCircle(v3.Vec{}), unitCircle(v3.Vec{X: 1})
	res, err := CurveCurve(c1, 0, geom.TwoPi, c2, 0, geom.TwoPi, tol)
	require.NoError(t, err)
	require.Len(t, res.Crossings, 2)
	assert.Empty(t, res.Overlaps)
	h := math.Sqrt(3) / 2
	for _, c := range res.Crossings {
		assert.InDelta(t, 0.5, c.Point.X, 1e-9)
		assert.InDelta(t, h, math.Abs(c.Point.Y), 1e-9)
		vecNear(t, c1.Evaluate(c.T1), c.Point, 1e-8)
		vecNear(t, c2.Evaluate(c.T2), c.Point, 1e-8)
	}
}

func TestCircleLineCrossings(t *testing.T) {
	c := unitCircle(v3.Vec{})
	l, b0, b1 := segment(v3.Vec{X: -2}, v3.Vec{X: 2})
	res, err := CurveCurve(c, 0, geom.TwoPi, l, b0, b1, tol)
	require.NoError(t, err)
	require.Len(t, res.Crossings, 2)
	xs := []float64{res.Crossings[0].Point.X, res.Crossings[1].Point.X}
	assert.ElementsMatch(t, []float64{-1, 1}, []float64{math.Round(xs[0]), math.Round(xs[1])})
	for _, cr := range res.Crossings {
		assert.InDelta(t, 1, math.Abs(cr.Point.X), 1e-9)
	}
}

func TestArcOverlap(t *testing.T) {
	c := unitCircle(v3.Vec{})
	res, err := CurveCurve(c, 0, math.Pi, c, math.Pi/2, 3*math.Pi/2, tol)
	require.NoError(t, err)
	require.Len(t, res.Overlaps, 1)
	o := res.Overlaps[0]
	assert.InDelta(t, math.Pi/2, o.A0, 1e-6)
	assert.InDelta(t, math.Pi, o.A1, 1e-9)
	assert.InDelta(t, math.Pi/2, o.B0, 1e-6)
	assert.InDelta(t, math.Pi, o.B1, 1e-9)
	assert.Empty(t, res.Crossings)
}

func TestCurveSurface(t *testing.T) {
	plane := &geom.Plane{Frame: geom.StandardFrame(v3.Vec{Z: 1})}
	cyl := &geom.Cylinder{Frame: geom.StandardFrame(v3.Vec{}), Radius: 0.5}
	sphere := &geom.Sphere{Frame: geom.StandardFrame(v3.Vec{}), Radius: 1}
	tilted := &geom.Circle{Frame: geom.NewFrame(v3.Vec{Z: 1}, v3.Vec{X: 1}, v3.Vec{Z: 1}), Radius: 0.5}

	tests := []struct {
		name    string
		c       geom.Curve
		t0, t1  float64
		s       geom.Surface
		points  []v3.Vec
		ranges  int
		tangent bool
	}{
		{
			name: "line through plane",
			c:    geom.NewLine(v3.Vec{X: 0.2}, v3.Vec{X: 0.2, Z: 1}), t0: 0, t1: 2,
			s: plane, points: []v3.Vec{{X: 0.2, Z: 1}},
		},
		{
			name: "line in plane",
			c:    geom.NewLine(v3.Vec{Z: 1}, v3.Vec{X: 1, Z: 1}), t0: 0, t1: 1,
			s: plane, ranges: 1,
		},
		{
			name: "line short of plane",
			c:    geom.NewLine(v3.Vec{}, v3.Vec{Z: 1}), t0: 0, t1: 0.5,
			s: plane,
		},
		{
			name: "line across cylinder",
			c:    geom.NewLine(v3.Vec{X: -1}, v3.Vec{X: 1}), t0: 0, t1: 2,
			s: cyl, points: []v3.Vec{{X: -0.5}, {X: 0.5}},
		},
		{
			name: "line on cylinder",
			c:    geom.NewLine(v3.Vec{X: 0.5}, v3.Vec{X: 0.5, Z: 1}), t0: 0, t1: 1,
			s: cyl, ranges: 1,
		},
		{
			name: "line tangent to sphere",
			c:    geom.NewLine(v3.Vec{X: -1, Y: 1}, v3.Vec{X: 1, Y: 1}), t0: 0, t1: 2,
			s: sphere, points: []v3.Vec{{Y: 1}}, tangent: true,
		},
		{
			name: "circle across plane",
			c:    tilted, t0: 0, t1: geom.TwoPi,
			s: plane, points: []v3.Vec{{Y: 0.5, Z: 1}, {Y: -0.5, Z: 1}},
		},
		{
			name: "circle in plane",
			c:    &geom.Circle{Frame: geom.StandardFrame(v3.Vec{Z: 1}), Radius: 2}, t0: 0, t1: geom.TwoPi,
			s: plane, ranges: 1,
		},
		{
			name: "ellipse across plane",
			c: &geom.Ellipse{
				Frame: geom.NewFrame(v3.Vec{}, v3.Vec{Y: 1}, v3.Vec{Z: 1}),
				Major: 2, Minor: 1,
			},
			t0: 0, t1: geom.TwoPi,
			s: plane, points: []v3.Vec{{X: math.Sqrt(3) / 2, Z: 1}, {X: -math.Sqrt(3) / 2, Z: 1}},
		},
		{
			name: "circle through sphere",
			c:    &geom.Circle{Frame: geom.StandardFrame(v3.Vec{X: 1}), Radius: 1}, t0: 0, t1: geom.TwoPi,
			s: sphere, points: []v3.Vec{{X: 0.5, Y: math.Sqrt(3) / 2}, {X: 0.5, Y: -math.Sqrt(3) / 2}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := CurveSurface(tc.c, tc.t0, tc.t1, tc.s, tol)
			require.NoError(t, err)
			assert.Len(t, res.Ranges, tc.ranges)
			require.Len(t, res.Hits, len(tc.points))
			for _, want := range tc.points {
				found := false
				for _, h := range res.Hits {
					if geom.Dist(h.Point, want) < 1e-6 {
						found = true
						assert.Equal(t, tc.tangent, h.Tangent)
						vecNear(t, tc.c.Evaluate(h.T), h.Point, 1e-9)
					}
				}
				assert.True(t, found, "missing hit at %v in %v", want, res.Hits)
			}
		})
	}
}

func TestLineSurfaceRoots(t *testing.T) {
	sphere := &geom.Sphere{Frame: geom.StandardFrame(v3.Vec{}), Radius: 1}
	ts := LineSurface(v3.Vec{X: -3}, v3.Vec{X: 1}, sphere)
	require.Len(t, ts, 2)
	assert.InDelta(t, 2, ts[0], 1e-12)
	assert.InDelta(t, 4, ts[1], 1e-12)

	cyl := &geom.Cylinder{Frame: geom.StandardFrame(v3.Vec{}), Radius: 1}
	assert.Empty(t, LineSurface(v3.Vec{X: 2}, v3.Vec{Z: 1}, cyl))
	ts = LineSurface(v3.Vec{Z: 5}, v3.Vec{X: 1}, cyl)
	require.Len(t, ts, 2)
	assert.InDelta(t, -1, ts[0], 1e-12)

	plane := &geom.Plane{Frame: geom.StandardFrame(v3.Vec{Z: 2})}
	ts = LineSurface(v3.Vec{}, v3.Vec{Z: 0.5}, plane)
	require.Len(t, ts, 1)
	assert.InDelta(t, 4, ts[0], 1e-12)
}

func TestPlanePlane(t *testing.T) {
	a := &geom.Plane{Frame: geom.StandardFrame(v3.Vec{Z: 1})}
	b := &geom.Plane{Frame: geom.NewFrame(v3.Vec{X: 0.5}, v3.Vec{X: 1}, v3.Vec{Y: 1})}
	box := sdf.Box3{Min: v3.Vec{}, Max: v3.Vec{X: 1, Y: 1, Z: 1}}
	spans, err := SurfaceSurface(a, b, box, nil, tol)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, geom.CurveLine, s.Curve.Kind())
	assert.InDelta(t, 1, s.T1-s.T0, 1e-6)
	for _, p := range geom.Sample(s.Curve, s.T0, s.T1, 5) {
		assert.InDelta(t, 0.5, p.X, 1e-12)
		assert.InDelta(t, 1, p.Z, 1e-12)
	}

	coplanar := &geom.Plane{Frame: geom.StandardFrame(v3.Vec{X: 3, Z: 1})}
	spans, err = SurfaceSurface(a, coplanar, box, nil, tol)
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestPlaneSphereAndSphereSphere(t *testing.T) {
	sphere := &geom.Sphere{Frame: geom.StandardFrame(v3.Vec{X: 0.5, Y: 0.5, Z: 1}), Radius: 0.3}
	top := &geom.Plane{Frame: geom.StandardFrame(v3.Vec{Z: 1})}
	spans, err := SurfaceSurface(sphere, top, bigBox(), nil, tol)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	c, ok := spans[0].Curve.(*geom.Circle)
	require.True(t, ok)
	assert.InDelta(t, 0.3, c.Radius, 1e-12)
	vecNear(t, v3.Vec{X: 0.5, Y: 0.5, Z: 1}, c.Frame.Origin, 1e-12)
	assert.True(t, spans[0].Closed())

	tangent := &geom.Plane{Frame: geom.StandardFrame(v3.Vec{Z: 1.3})}
	spans, err = SurfaceSurface(top, &geom.Sphere{Frame: sphere.Frame, Radius: 0.3}, bigBox(), nil, tol)
	require.NoError(t, err)
	assert.Len(t, spans, 1)
	spans, err = SurfaceSurface(tangent, sphere, bigBox(), nil, tol)
	require.NoError(t, err)
	assert.Empty(t, spans)

	s1 := &geom.Sphere{Frame: geom.StandardFrame(v3.Vec{}), Radius: 1}
	s2 := &geom.Sphere{Frame: geom.StandardFrame(v3.Vec{X: 1}), Radius: 1}
	spans, err = SurfaceSurface(s1, s2, bigBox(), nil, tol)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	cc := spans[0].Curve.(*geom.Circle)
	assert.InDelta(t, math.Sqrt(3)/2, cc.Radius, 1e-12)
	assert.InDelta(t, 0.5, cc.Frame.Origin.X, 1e-12)
}

func TestPlaneCylinder(t *testing.T) {
	cyl := &geom.Cylinder{Frame: geom.StandardFrame(v3.Vec{}), Radius: 0.5}
	field, _ := Implicit(cyl)

	perpendicular := &geom.Plane{Frame: geom.StandardFrame(v3.Vec{Z: 1})}
	spans, err := SurfaceSurface(perpendicular, cyl, bigBox(), nil, tol)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, geom.CurveCircle, spans[0].Curve.Kind())

	parallel := &geom.Plane{Frame: geom.NewFrame(v3.Vec{X: 0.3}, v3.Vec{X: 1}, v3.Vec{Y: 1})}
	spans, err = SurfaceSurface(cyl, parallel, bigBox(), nil, tol)
	require.NoError(t, err)
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, geom.CurveLine, s.Curve.Kind())
		p := s.Curve.Evaluate(0.5 * (s.T0 + s.T1))
		assert.InDelta(t, 0.3, p.X, 1e-12)
		assert.InDelta(t, 0.4, math.Abs(p.Y), 1e-12)
	}

	oblique := &geom.Plane{Frame: geom.NewFrame(v3.Vec{}, v3.Vec{X: 1, Z: 1}, v3.Vec{X: 1})}
	spans, err = SurfaceSurface(oblique, cyl, bigBox(), nil, tol)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	e, ok := spans[0].Curve.(*geom.Ellipse)
	require.True(t, ok)
	assert.InDelta(t, 0.5*math.Sqrt2, e.Major, 1e-12)
	for _, p := range geom.Sample(e, 0, geom.TwoPi, 17) {
		assert.InDelta(t, 0, field.Value(p), 1e-12)
		assert.InDelta(t, 0, oblique.SignedDistance(p), 1e-12)
	}
}

func TestMarchingClosesLoop(t *testing.T) {
	sphere := &geom.Sphere{Frame: geom.StandardFrame(v3.Vec{}), Radius: 1}
	cyl := &geom.Cylinder{Frame: geom.StandardFrame(v3.Vec{Z: -2}), Radius: 0.6}
	box := sdf.Box3{Min: v3.Vec{X: -1, Y: -1, Z: -1}, Max: v3.Vec{X: 1, Y: 1, Z: 1}}
	seeds := []v3.Vec{{X: 0.6, Z: 0.8}, {X: -0.6, Z: 0.8}}

	spans, err := SurfaceSurface(sphere, cyl, box, seeds, tol)
	require.NoError(t, err)
	require.Len(t, spans, 1, "the second seed lies on the first loop")
	pl, ok := spans[0].Curve.(*geom.Polyline)
	require.True(t, ok)
	assert.True(t, pl.Closed)
	assert.True(t, spans[0].Closed())
	assert.Greater(t, len(pl.Points), 20)
	for _, p := range pl.Points {
		assert.InDelta(t, 0.8, p.Z, 1e-6)
		assert.InDelta(t, 0.6, math.Hypot(p.X, p.Y), 1e-6)
	}
	length := geom.Length(pl, spans[0].T0, spans[0].T1)
	assert.InDelta(t, geom.TwoPi*0.6, length, 0.01)
}

func TestUnsupportedGeometry(t *testing.T) {
	_, err := SurfaceSurface(bspline{&geom.Plane{}}, &geom.Plane{Frame: geom.StandardFrame(v3.Vec{})}, bigBox(), nil, tol)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

type bspline struct{ *geom.Plane }

func (bspline) Kind() geom.SurfaceKind { return geom.SurfaceBSpline }
