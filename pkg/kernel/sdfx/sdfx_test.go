package sdfx

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/kerf/pkg/kernel"
)

func mustSolid(t *testing.T) func(kernel.Solid, error) kernel.Solid {
	return func(s kernel.Solid, err error) kernel.Solid {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return s
	}
}

func contains(t *testing.T, s kernel.Solid, p [3]float64) bool {
	t.Helper()
	in, err := s.Contains(p)
	if err != nil {
		t.Fatalf("Contains(%v) error = %v", p, err)
	}
	return in
}

func TestBoxBoundingBox(t *testing.T) {
	k := New()
	box := mustSolid(t)(k.Box(100, 50, 25))
	min, max := box.BoundingBox()

	const tol = 0.01
	expectMin := [3]float64{0, 0, 0}
	expectMax := [3]float64{100, 50, 25}

	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected %f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected %f", i, max[i], expectMax[i])
		}
	}
}

func TestDifference(t *testing.T) {
	k := New()
	box := mustSolid(t)(k.Box(100, 100, 100))
	cyl := mustSolid(t)(k.Cylinder(120, 20))
	cyl = mustSolid(t)(k.Translate(cyl, 50, 50, 50))
	diff := mustSolid(t)(k.Difference(box, cyl))

	tests := []struct {
		name string
		p    [3]float64
		want bool
	}{
		{"in the hole", [3]float64{50, 50, 50}, false},
		{"beside the hole", [3]float64{80, 50, 50}, true},
		{"corner", [3]float64{5, 5, 5}, true},
		{"outside", [3]float64{150, 50, 50}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := contains(t, diff, tt.p); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestUnionAndIntersection(t *testing.T) {
	k := New()
	box1 := mustSolid(t)(k.Box(50, 50, 50))
	box2 := mustSolid(t)(k.Translate(mustSolid(t)(k.Box(50, 50, 50)), 30, 0, 0))
	u := mustSolid(t)(k.Union(box1, box2))
	i := mustSolid(t)(k.Intersection(box1, box2))

	if !contains(t, u, [3]float64{70, 25, 25}) {
		t.Error("union misses a point of the second box")
	}
	if contains(t, i, [3]float64{10, 25, 25}) {
		t.Error("intersection contains a point of the first box only")
	}
	if !contains(t, i, [3]float64{40, 25, 25}) {
		t.Error("intersection misses the overlap")
	}
}

func TestSphere(t *testing.T) {
	k := New()
	s := mustSolid(t)(k.Sphere(2))
	if !contains(t, s, [3]float64{1, 1, 1}) {
		t.Error("sphere misses (1,1,1)")
	}
	if contains(t, s, [3]float64{1.5, 1.5, 1}) {
		t.Error("sphere contains (1.5,1.5,1)")
	}
}

func TestEmptySolid(t *testing.T) {
	k := New()
	box := mustSolid(t)(k.Box(1, 1, 1))
	empty := k.Empty()

	if u := mustSolid(t)(k.Union(empty, box)); u != box {
		t.Error("Union(empty, box) is not box")
	}
	if d := mustSolid(t)(k.Difference(box, empty)); d != box {
		t.Error("Difference(box, empty) is not box")
	}
	if i := mustSolid(t)(k.Intersection(box, empty)); !i.Empty() {
		t.Error("Intersection(box, empty) is not empty")
	}
}

type foreign struct{ kernel.Solid }

func TestForeignSolid(t *testing.T) {
	k := New()
	box := mustSolid(t)(k.Box(1, 1, 1))
	if _, err := k.Union(box, foreign{}); !errors.Is(err, kernel.ErrForeignSolid) {
		t.Errorf("Union() error = %v, want ErrForeignSolid", err)
	}
}

func TestTranslate(t *testing.T) {
	k := New()
	box := mustSolid(t)(k.Box(10, 10, 10))
	translated := mustSolid(t)(k.Translate(box, 100, 200, 300))

	min, max := translated.BoundingBox()

	const tol = 0.5
	expectMin := [3]float64{100, 200, 300}
	expectMax := [3]float64{110, 210, 310}

	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, max[i], expectMax[i])
		}
	}
}

func TestRotate(t *testing.T) {
	k := New()
	box := mustSolid(t)(k.Box(100, 10, 10))

	// A long box along X rotated 90 degrees around Z should extend along Y instead.
	rotated := mustSolid(t)(k.Rotate(box, 0, 0, 90))
	min, max := rotated.BoundingBox()

	xExtent := max[0] - min[0]
	yExtent := max[1] - min[1]

	const tol = 1.0
	if math.Abs(xExtent-10) > tol {
		t.Errorf("rotated X extent = %f, expected ~10", xExtent)
	}
	if math.Abs(yExtent-100) > tol {
		t.Errorf("rotated Y extent = %f, expected ~100", yExtent)
	}
}
