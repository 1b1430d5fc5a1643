package geom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"
)

// ErrNoConvergence is returned by iterative solvers that run out of steps.
var ErrNoConvergence = errors.New("geom: solver did not converge")

// SolveLinear solves the m x n system a*x = b (a is row-major). Square
// systems are solved exactly, overdetermined ones in the least-squares sense.
func SolveLinear(m, n int, a, b []float64) ([]float64, error) {
	A := mat.NewDense(m, n, append([]float64(nil), a...))
	bv := mat.NewVecDense(m, append([]float64(nil), b...))
	var x mat.VecDense
	if err := x.SolveVec(A, bv); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = x.AtVec(i)
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, ErrNoConvergence
		}
	}
	return out, nil
}

// LegendreRule returns n Gauss-Legendre nodes and weights on [a, b].
func LegendreRule(n int, a, b float64) (x, w []float64) {
	x = make([]float64, n)
	w = make([]float64, n)
	quad.Legendre{}.FixedLocations(x, w, a, b)
	return x, w
}

// Integrate approximates the integral of f over [a, b] with an n-point
// Gauss-Legendre rule.
func Integrate(f func(float64) float64, a, b float64, n int) float64 {
	switch {
	case a == b:
		return 0
	case a > b:
		return -quad.Fixed(f, b, a, n, quad.Legendre{}, 0)
	}
	return quad.Fixed(f, a, b, n, quad.Legendre{}, 0)
}

// Bisect finds a root of f in [a, b] given f(a) and f(b) of opposite sign.
func Bisect(f func(float64) float64, a, b, tol float64) float64 {
	fa := f(a)
	for i := 0; i < 200 && b-a > tol; i++ {
		m := 0.5 * (a + b)
		fm := f(m)
		if (fm < 0) == (fa < 0) {
			a, fa = m, fm
		} else {
			b = m
		}
	}
	return 0.5 * (a + b)
}

// QuadraticRoots returns the real roots of a*t^2 + b*t + c in ascending
// order. A double root is returned once.
func QuadraticRoots(a, b, c float64) []float64 {
	if math.Abs(a) < 1e-14 {
		if math.Abs(b) < 1e-14 {
			return nil
		}
		return []float64{-c / b}
	}
	disc := b*b - 4*a*c
	scale := math.Max(b*b, math.Abs(4*a*c))
	switch {
	case disc < -1e-12*scale:
		return nil
	case disc <= 1e-12*scale:
		return []float64{-b / (2 * a)}
	}
	sq := math.Sqrt(disc)
	q := -0.5 * (b + math.Copysign(sq, b))
	r1, r2 := q/a, c/q
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	return []float64{r1, r2}
}
