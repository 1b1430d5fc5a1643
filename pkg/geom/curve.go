package geom

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/integrate/quad"
)

// CurveKind enumerates the curve variants the intersector dispatches on.
type CurveKind int

const (
	CurveLine     CurveKind = iota // infinite straight line
	CurveCircle                    // full circle, periodic
	CurveEllipse                   // full ellipse, periodic
	CurvePolyline                  // piecewise linear approximation
	CurveBSpline                   // recognised but not evaluated here
)

func (k CurveKind) String() string {
	switch k {
	case CurveLine:
		return "line"
	case CurveCircle:
		return "circle"
	case CurveEllipse:
		return "ellipse"
	case CurvePolyline:
		return "polyline"
	case CurveBSpline:
		return "bspline"
	default:
		return fmt.Sprintf("CurveKind(%d)", int(k))
	}
}

// Curve is a parametric 3D curve.
type Curve interface {
	Kind() CurveKind
	// Evaluate returns the point at parameter t.
	Evaluate(t float64) v3.Vec
	// Derivative returns the order-th derivative at t.
	Derivative(t float64, order int) v3.Vec
	// ParameterRange returns the natural parameter domain.
	ParameterRange() (min, max float64)
	// Period returns the period, or 0 for non-periodic curves.
	Period() float64
	// Project returns the parameter of the point of the curve closest to p.
	Project(p v3.Vec) float64
	// Transformed returns a copy of the curve moved by m.
	Transformed(m sdf.M44) Curve
}

// ---------------------------------------------------------------------------
// Line
// ---------------------------------------------------------------------------

// Line is an infinite line parameterised by arc length from Origin.
type Line struct {
	Origin v3.Vec
	Dir    v3.Vec // unit
}

// NewLine returns the line through a and b, parameterised so that a is at 0.
func NewLine(a, b v3.Vec) *Line {
	return &Line{Origin: a, Dir: Unit(b.Sub(a))}
}

func (l *Line) Kind() CurveKind { return CurveLine }

func (l *Line) Evaluate(t float64) v3.Vec {
	return l.Origin.Add(l.Dir.MulScalar(t))
}

func (l *Line) Derivative(t float64, order int) v3.Vec {
	switch {
	case order == 0:
		return l.Evaluate(t)
	case order == 1:
		return l.Dir
	}
	return v3.Vec{}
}

func (l *Line) ParameterRange() (float64, float64) { return math.Inf(-1), math.Inf(1) }

func (l *Line) Period() float64 { return 0 }

func (l *Line) Project(p v3.Vec) float64 {
	return p.Sub(l.Origin).Dot(l.Dir)
}

func (l *Line) Transformed(m sdf.M44) Curve {
	return &Line{Origin: m.MulPosition(l.Origin), Dir: Unit(TransformDir(m, l.Dir))}
}

// ---------------------------------------------------------------------------
// Circle
// ---------------------------------------------------------------------------

// Circle lies in the XY plane of Frame, centered at its origin, starting on
// the X axis and running counter-clockwise about Z.
type Circle struct {
	Frame  Frame
	Radius float64
}

func (c *Circle) Kind() CurveKind { return CurveCircle }

func (c *Circle) Evaluate(t float64) v3.Vec {
	return c.Derivative(t, 0)
}

func (c *Circle) Derivative(t float64, order int) v3.Vec {
	a := t + float64(order)*math.Pi/2
	d := c.Frame.X.MulScalar(c.Radius * math.Cos(a)).Add(c.Frame.Y.MulScalar(c.Radius * math.Sin(a)))
	if order == 0 {
		return c.Frame.Origin.Add(d)
	}
	return d
}

func (c *Circle) ParameterRange() (float64, float64) { return 0, TwoPi }

func (c *Circle) Period() float64 { return TwoPi }

func (c *Circle) Project(p v3.Vec) float64 {
	l := c.Frame.Local(p)
	if math.Hypot(l.X, l.Y) < Angular {
		return 0
	}
	return NormalizeAngle(math.Atan2(l.Y, l.X), 0, TwoPi)
}

func (c *Circle) Transformed(m sdf.M44) Curve {
	return &Circle{Frame: c.Frame.Transformed(m), Radius: c.Radius}
}

// ---------------------------------------------------------------------------
// Ellipse
// ---------------------------------------------------------------------------

// Ellipse lies in the XY plane of Frame with its major axis along X.
type Ellipse struct {
	Frame        Frame
	Major, Minor float64
}

func (e *Ellipse) Kind() CurveKind { return CurveEllipse }

func (e *Ellipse) Evaluate(t float64) v3.Vec {
	return e.Derivative(t, 0)
}

func (e *Ellipse) Derivative(t float64, order int) v3.Vec {
	a := t + float64(order)*math.Pi/2
	d := e.Frame.X.MulScalar(e.Major * math.Cos(a)).Add(e.Frame.Y.MulScalar(e.Minor * math.Sin(a)))
	if order == 0 {
		return e.Frame.Origin.Add(d)
	}
	return d
}

func (e *Ellipse) ParameterRange() (float64, float64) { return 0, TwoPi }

func (e *Ellipse) Period() float64 { return TwoPi }

// Project samples the ellipse for a start value and refines it with Newton
// iterations on (E(t)-p).E'(t) = 0.
func (e *Ellipse) Project(p v3.Vec) float64 {
	best, bestD := 0.0, math.Inf(1)
	const n = 32
	for i := 0; i < n; i++ {
		t := TwoPi * float64(i) / n
		if d := Dist(e.Evaluate(t), p); d < bestD {
			best, bestD = t, d
		}
	}
	return NormalizeAngle(refineProjection(e, p, best), 0, TwoPi)
}

func (e *Ellipse) Transformed(m sdf.M44) Curve {
	return &Ellipse{Frame: e.Frame.Transformed(m), Major: e.Major, Minor: e.Minor}
}

// ---------------------------------------------------------------------------
// Polyline
// ---------------------------------------------------------------------------

// Polyline is the piecewise linear curve through Points, parameterised by
// segment index: parameter i is Points[i]. A closed polyline repeats its
// first point at the end and is periodic.
type Polyline struct {
	Points []v3.Vec
	Closed bool
}

func (pl *Polyline) Kind() CurveKind { return CurvePolyline }

func (pl *Polyline) segment(t float64) (int, float64) {
	n := len(pl.Points) - 1
	if pl.Closed {
		t = NormalizeAngle(t, 0, float64(n))
	}
	i := int(math.Floor(t))
	if i < 0 {
		i = 0
	}
	if i > n-1 {
		i = n - 1
	}
	return i, t - float64(i)
}

func (pl *Polyline) Evaluate(t float64) v3.Vec {
	if len(pl.Points) == 1 {
		return pl.Points[0]
	}
	i, f := pl.segment(t)
	return Lerp(pl.Points[i], pl.Points[i+1], f)
}

func (pl *Polyline) Derivative(t float64, order int) v3.Vec {
	switch {
	case order == 0:
		return pl.Evaluate(t)
	case order > 1 || len(pl.Points) < 2:
		return v3.Vec{}
	}
	i, _ := pl.segment(t)
	return pl.Points[i+1].Sub(pl.Points[i])
}

func (pl *Polyline) ParameterRange() (float64, float64) {
	return 0, float64(len(pl.Points) - 1)
}

func (pl *Polyline) Period() float64 {
	if pl.Closed {
		return float64(len(pl.Points) - 1)
	}
	return 0
}

func (pl *Polyline) Project(p v3.Vec) float64 {
	best, bestD := 0.0, math.Inf(1)
	for i := 0; i+1 < len(pl.Points); i++ {
		a, b := pl.Points[i], pl.Points[i+1]
		ab := b.Sub(a)
		f := 0.0
		if l2 := ab.Dot(ab); l2 > 0 {
			f = math.Max(0, math.Min(1, p.Sub(a).Dot(ab)/l2))
		}
		if d := Dist(Lerp(a, b, f), p); d < bestD {
			best, bestD = float64(i)+f, d
		}
	}
	return best
}

func (pl *Polyline) Transformed(m sdf.M44) Curve {
	pts := make([]v3.Vec, len(pl.Points))
	for i, p := range pl.Points {
		pts[i] = m.MulPosition(p)
	}
	return &Polyline{Points: pts, Closed: pl.Closed}
}

// ---------------------------------------------------------------------------
// Curve helpers
// ---------------------------------------------------------------------------

// refineProjection runs Newton iterations for the foot of the perpendicular
// from p onto c starting at t.
func refineProjection(c Curve, p v3.Vec, t float64) float64 {
	for i := 0; i < 20; i++ {
		d := c.Evaluate(t).Sub(p)
		d1 := c.Derivative(t, 1)
		d2 := c.Derivative(t, 2)
		f := d.Dot(d1)
		df := d1.Dot(d1) + d.Dot(d2)
		if math.Abs(df) < Angular {
			break
		}
		step := f / df
		t -= step
		if math.Abs(step) < PConfusion {
			break
		}
	}
	return t
}

// ProjectInRange projects p onto c and clamps or wraps the parameter into
// [t0, t1]. It returns the parameter and the distance to the curve point.
func ProjectInRange(c Curve, p v3.Vec, t0, t1 float64) (float64, float64) {
	t := c.Project(p)
	if per := c.Period(); per > 0 {
		t = AdjustPeriodic(t, t0, t1, per, PConfusion)
		if t > t1 {
			// outside the arc: pick the nearer end
			if Dist(c.Evaluate(t1), p) < Dist(c.Evaluate(t0), p) {
				t = t1
			} else {
				t = t0
			}
		}
	} else {
		t = math.Max(t0, math.Min(t1, t))
	}
	return t, Dist(c.Evaluate(t), p)
}

// Sample returns n points evenly spaced in parameter over [t0, t1].
func Sample(c Curve, t0, t1 float64, n int) []v3.Vec {
	if n < 2 {
		n = 2
	}
	pts := make([]v3.Vec, n)
	for i := range pts {
		pts[i] = c.Evaluate(t0 + (t1-t0)*float64(i)/float64(n-1))
	}
	return pts
}

// Length returns the arc length of c over [t0, t1].
func Length(c Curve, t0, t1 float64) float64 {
	if pl, ok := c.(*Polyline); ok {
		return polylineLength(pl, t0, t1)
	}
	if l, ok := c.(*Line); ok {
		return math.Abs(t1-t0) * l.Dir.Length()
	}
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	f := func(t float64) float64 { return c.Derivative(t, 1).Length() }
	return quad.Fixed(f, t0, t1, 24, quad.Legendre{}, 0)
}

func polylineLength(pl *Polyline, t0, t1 float64) float64 {
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	const steps = 1
	var sum float64
	prev := pl.Evaluate(t0)
	// walk vertex to vertex so kinks are measured exactly
	for k := math.Floor(t0) + steps; k < t1; k += steps {
		p := pl.Evaluate(k)
		sum += Dist(prev, p)
		prev = p
	}
	return sum + Dist(prev, pl.Evaluate(t1))
}

// ParamTolerance converts a 3D tolerance into a parametric one at t.
func ParamTolerance(c Curve, t, tol float64) float64 {
	d := c.Derivative(t, 1).Length()
	if d < Angular {
		return tol
	}
	return tol / d
}

// SampleCount picks a sample count for a curve span: lines need two points,
// curved spans are sampled per angular step.
func SampleCount(c Curve, t0, t1 float64) int {
	switch c.Kind() {
	case CurveLine:
		return 2
	case CurvePolyline:
		return int(math.Ceil(math.Abs(t1-t0))) + 1
	}
	n := int(math.Ceil(math.Abs(t1-t0)/TwoPi*128)) + 1
	if n < 9 {
		n = 9
	}
	return n
}
