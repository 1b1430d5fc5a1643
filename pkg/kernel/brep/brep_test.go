package brep

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chazu/kerf/pkg/bop"
	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/kernel/sdfx"
	"github.com/chazu/kerf/pkg/topo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func must(t *testing.T) func(kernel.Solid, error) kernel.Solid {
	return func(s kernel.Solid, err error) kernel.Solid {
		t.Helper()
		require.NoError(t, err)
		return s
	}
}

func TestPrimitives(t *testing.T) {
	k := New(bop.Options{})
	tests := []struct {
		name     string
		build    func() (kernel.Solid, error)
		volume   float64
		min, max [3]float64
	}{
		{"box", func() (kernel.Solid, error) { return k.Box(2, 3, 4) }, 24, [3]float64{0, 0, 0}, [3]float64{2, 3, 4}},
		{"cylinder", func() (kernel.Solid, error) { return k.Cylinder(2, 1) }, 2 * math.Pi, [3]float64{-1, -1, -1}, [3]float64{1, 1, 1}},
		{"sphere", func() (kernel.Solid, error) { return k.Sphere(1) }, 4.0 / 3 * math.Pi, [3]float64{-1, -1, -1}, [3]float64{1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := must(t)(tt.build())
			assert.InDelta(t, tt.volume, s.(*Solid).Volume(), 1e-3)
			min, max := s.BoundingBox()
			for i := range 3 {
				assert.InDelta(t, tt.min[i], min[i], 1e-6)
				assert.InDelta(t, tt.max[i], max[i], 1e-6)
			}
		})
	}
}

func TestBooleans(t *testing.T) {
	k := New(bop.Options{})
	a := must(t)(k.Box(1, 1, 1))
	b := must(t)(k.Translate(must(t)(k.Box(1, 1, 1)), 0.5, 0.5, 0.5))

	u := must(t)(k.Union(a, b))
	i := must(t)(k.Intersection(a, b))
	d := must(t)(k.Difference(a, b))
	assert.InDelta(t, 1.875, u.(*Solid).Volume(), 1e-9)
	assert.InDelta(t, 0.125, i.(*Solid).Volume(), 1e-9)
	assert.InDelta(t, 0.875, d.(*Solid).Volume(), 1e-9)
	assert.Empty(t, k.Warnings())
	require.NoError(t, topo.Check(u.(*Solid).Shape()))
}

func TestBooleanMultipleOperands(t *testing.T) {
	k := New(bop.Options{})
	block := must(t)(k.Box(3, 1, 1))
	hole := func(x float64) kernel.Solid {
		return must(t)(k.Translate(must(t)(k.Box(0.5, 0.5, 2)), x, 0.25, -0.5))
	}

	cut := must(t)(k.Boolean(context.Background(), bop.Cut, 0, block, hole(0.25), hole(2.25)))
	assert.InDelta(t, 3-2*0.25, cut.(*Solid).Volume(), 1e-9)

	sec := must(t)(k.Boolean(context.Background(), bop.Section, 0, block, hole(0.25)))
	assert.False(t, sec.Empty())
	assert.Zero(t, topo.Count(sec.(*Solid).Shape(), topo.KindFace))
	assert.Equal(t, 8, topo.Count(sec.(*Solid).Shape(), topo.KindEdge))

	_, err := k.Boolean(context.Background(), bop.Union, 0, block)
	assert.ErrorIs(t, err, diag.ErrInvalidInput)
}

func TestRotate(t *testing.T) {
	k := New(bop.Options{})
	box := must(t)(k.Box(10, 1, 1))
	rotated := must(t)(k.Rotate(box, 0, 0, 90))
	min, max := rotated.BoundingBox()
	assert.InDelta(t, 1, max[0]-min[0], 1e-6)
	assert.InDelta(t, 10, max[1]-min[1], 1e-6)
}

func TestEmptyAndForeign(t *testing.T) {
	k := New(bop.Options{})
	box := must(t)(k.Box(1, 1, 1))
	empty := k.Empty()
	assert.True(t, empty.Empty())

	u := must(t)(k.Union(box, empty))
	assert.InDelta(t, 1.0, u.(*Solid).Volume(), 1e-9)
	assert.True(t, must(t)(k.Intersection(box, empty)).Empty())

	in, err := empty.Contains([3]float64{})
	require.NoError(t, err)
	assert.False(t, in)

	_, err = k.Union(box, must(t)(sdfx.New().Box(1, 1, 1)))
	assert.True(t, errors.Is(err, kernel.ErrForeignSolid))
}

// scene builds the same solid in any kernel.
type scene func(k kernel.Kernel) (kernel.Solid, error)

func drilled(k kernel.Kernel) (kernel.Solid, error) {
	box, err := k.Box(1, 1, 1)
	if err != nil {
		return nil, err
	}
	cyl, err := k.Cylinder(3, 0.25)
	if err != nil {
		return nil, err
	}
	if cyl, err = k.Translate(cyl, 0.5, 0.5, 0.5); err != nil {
		return nil, err
	}
	return k.Difference(box, cyl)
}

func staircase(k kernel.Kernel) (kernel.Solid, error) {
	a, err := k.Box(1, 1, 1)
	if err != nil {
		return nil, err
	}
	b, err := k.Box(1, 1, 1)
	if err != nil {
		return nil, err
	}
	if b, err = k.Translate(b, 0.5, 0.5, 0.5); err != nil {
		return nil, err
	}
	return k.Union(a, b)
}

func dome(k kernel.Kernel) (kernel.Solid, error) {
	box, err := k.Box(1, 1, 1)
	if err != nil {
		return nil, err
	}
	s, err := k.Sphere(0.3)
	if err != nil {
		return nil, err
	}
	if s, err = k.Translate(s, 0.5, 0.5, 1); err != nil {
		return nil, err
	}
	return k.Intersection(box, s)
}

type distancer interface {
	Distance(p [3]float64) float64
}

// The signed distance fields agree with ray classification of the B-Reps
// away from the boundary.
func TestAgreesWithSDF(t *testing.T) {
	scenes := map[string]scene{"drilled": drilled, "staircase": staircase, "dome": dome}
	for name, build := range scenes {
		t.Run(name, func(t *testing.T) {
			exact, err := build(New(bop.Options{}))
			require.NoError(t, err)
			oracle, err := build(sdfx.New())
			require.NoError(t, err)
			dist := oracle.(distancer)

			checked := 0
			for i := range 8 {
				for j := range 8 {
					for l := range 8 {
						p := [3]float64{
							-0.2 + 0.271*float64(i) + 0.0131,
							-0.2 + 0.263*float64(j) + 0.0173,
							-0.2 + 0.257*float64(l) + 0.0109,
						}
						if math.Abs(dist.Distance(p)) < 1e-3 {
							continue
						}
						want, err := oracle.Contains(p)
						require.NoError(t, err)
						got, err := exact.Contains(p)
						require.NoError(t, err)
						assert.Equal(t, want, got, "point %v", p)
						checked++
					}
				}
			}
			assert.Greater(t, checked, 400)
		})
	}
}
