package geom

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// EmptyBox returns a box that contains nothing; extending it with a point
// yields the degenerate box around that point.
func EmptyBox() sdf.Box3 {
	inf := math.Inf(1)
	return sdf.Box3{
		Min: v3.Vec{X: inf, Y: inf, Z: inf},
		Max: v3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// BoxIsEmpty reports whether b contains no point.
func BoxIsEmpty(b sdf.Box3) bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// BoxAddPoint grows b to contain p.
func BoxAddPoint(b sdf.Box3, p v3.Vec) sdf.Box3 {
	return sdf.Box3{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// BoxUnion returns the smallest box containing a and b.
func BoxUnion(a, b sdf.Box3) sdf.Box3 {
	if BoxIsEmpty(a) {
		return b
	}
	if BoxIsEmpty(b) {
		return a
	}
	return sdf.Box3{Min: a.Min.Min(b.Min), Max: a.Max.Max(b.Max)}
}

// BoxEnlarge inflates b by tol on every side.
func BoxEnlarge(b sdf.Box3, tol float64) sdf.Box3 {
	if BoxIsEmpty(b) {
		return b
	}
	d := v3.Vec{X: tol, Y: tol, Z: tol}
	return sdf.Box3{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// BoxOverlap reports whether a and b are closer than tol on every axis.
func BoxOverlap(a, b sdf.Box3, tol float64) bool {
	if BoxIsEmpty(a) || BoxIsEmpty(b) {
		return false
	}
	return a.Min.X <= b.Max.X+tol && b.Min.X <= a.Max.X+tol &&
		a.Min.Y <= b.Max.Y+tol && b.Min.Y <= a.Max.Y+tol &&
		a.Min.Z <= b.Max.Z+tol && b.Min.Z <= a.Max.Z+tol
}

// BoxIntersection returns the common part of a and b, possibly empty.
func BoxIntersection(a, b sdf.Box3) sdf.Box3 {
	return sdf.Box3{Min: a.Min.Max(b.Min), Max: a.Max.Min(b.Max)}
}

// BoxContains reports whether p lies in b inflated by tol.
func BoxContains(b sdf.Box3, p v3.Vec, tol float64) bool {
	return p.X >= b.Min.X-tol && p.X <= b.Max.X+tol &&
		p.Y >= b.Min.Y-tol && p.Y <= b.Max.Y+tol &&
		p.Z >= b.Min.Z-tol && p.Z <= b.Max.Z+tol
}

// BoxCenter returns the center of b.
func BoxCenter(b sdf.Box3) v3.Vec {
	return b.Min.Add(b.Max).MulScalar(0.5)
}

// BoxDiagonal returns the length of the diagonal of b, zero when empty.
func BoxDiagonal(b sdf.Box3) float64 {
	if BoxIsEmpty(b) {
		return 0
	}
	return b.Max.Sub(b.Min).Length()
}

// BoxArea returns the surface area of b, used by the BVH cost model.
func BoxArea(b sdf.Box3) float64 {
	if BoxIsEmpty(b) {
		return 0
	}
	d := b.Max.Sub(b.Min)
	return 2 * (d.X*d.Y + d.Y*d.Z + d.Z*d.X)
}

// ClipLine intersects the line o + t*d with the slabs of b and returns the
// parameter interval inside b. ok is false when the line misses the box.
func ClipLine(o, d v3.Vec, b sdf.Box3) (t0, t1 float64, ok bool) {
	t0, t1 = math.Inf(-1), math.Inf(1)
	for i := 0; i < 3; i++ {
		oi, di := Component(o, i), Component(d, i)
		lo, hi := Component(b.Min, i), Component(b.Max, i)
		if math.Abs(di) < Angular {
			if oi < lo || oi > hi {
				return 0, 0, false
			}
			continue
		}
		a, c := (lo-oi)/di, (hi-oi)/di
		if a > c {
			a, c = c, a
		}
		t0 = math.Max(t0, a)
		t1 = math.Min(t1, c)
		if t0 > t1 {
			return 0, 0, false
		}
	}
	return t0, t1, true
}
