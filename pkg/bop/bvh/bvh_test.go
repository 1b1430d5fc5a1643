package bvh

import (
	"context"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	kind topo.ShapeKind
	rank int
	box  sdf.Box3
}

type fakeRegistry []record

func (r fakeRegistry) OfKind(kind topo.ShapeKind, rank int) []int {
	var out []int
	for i, rec := range r {
		if rec.kind == kind && (rank < 0 || rec.rank == rank) {
			out = append(out, i)
		}
	}
	return out
}

func (r fakeRegistry) BoundingBox(i int) sdf.Box3 { return r[i].box }
func (r fakeRegistry) Rank(i int) int             { return r[i].rank }

func randomRegistry(seed uint64, n int, offset float64) fakeRegistry {
	rng := rand.New(rand.NewPCG(seed, 1))
	reg := make(fakeRegistry, 0, n)
	for i := 0; i < n; i++ {
		rank := i % 3
		c := v3.Vec{X: rng.Float64()*10 + float64(rank)*offset, Y: rng.Float64() * 10, Z: rng.Float64() * 10}
		h := v3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
		reg = append(reg, record{
			kind: Kinds[rng.IntN(len(Kinds))],
			rank: rank,
			box:  sdf.Box3{Min: c.Sub(h), Max: c.Add(h)},
		})
	}
	return reg
}

func brute(reg fakeRegistry, ka, kb topo.ShapeKind, tol float64) [][2]int {
	var out [][2]int
	for _, i := range reg.OfKind(ka, -1) {
		for _, j := range reg.OfKind(kb, -1) {
			if reg[i].rank == reg[j].rank || !geom.BoxOverlap(reg[i].box, reg[j].box, tol) {
				continue
			}
			if ka == kb && i >= j {
				continue
			}
			out = append(out, [2]int{i, j})
		}
	}
	slices.SortFunc(out, comparePairs)
	return out
}

func comparePairs(a, b [2]int) int {
	if a[0] != b[0] {
		return a[0] - b[0]
	}
	return a[1] - b[1]
}

func collect(f *Finder, ka, kb topo.ShapeKind) [][2]int {
	var out [][2]int
	for i, j := range f.FindPairs(ka, kb) {
		out = append(out, [2]int{i, j})
	}
	slices.SortFunc(out, comparePairs)
	return out
}

var kindPairs = [][2]topo.ShapeKind{
	{topo.KindVertex, topo.KindVertex},
	{topo.KindVertex, topo.KindEdge},
	{topo.KindEdge, topo.KindEdge},
	{topo.KindVertex, topo.KindFace},
	{topo.KindEdge, topo.KindFace},
	{topo.KindFace, topo.KindFace},
}

func TestFindPairsMatchesBruteForce(t *testing.T) {
	for _, tol := range []float64{0, 0.05} {
		reg := randomRegistry(7, 300, 0)
		f, err := New(context.Background(), reg, Options{Tol: tol})
		require.NoError(t, err)
		for _, kp := range kindPairs {
			want := brute(reg, kp[0], kp[1], tol)
			got := collect(f, kp[0], kp[1])
			assert.Equal(t, want, got, "%v tol %g", kp, tol)
		}
	}
}

func TestCollectPairsMatchesFindPairs(t *testing.T) {
	reg := randomRegistry(11, 400, 0)
	serial, err := New(context.Background(), reg, Options{})
	require.NoError(t, err)
	parallel, err := New(context.Background(), reg, Options{Workers: 8})
	require.NoError(t, err)

	for _, kp := range kindPairs {
		want := collect(serial, kp[0], kp[1])
		got, err := parallel.CollectPairs(context.Background(), kp[0], kp[1])
		require.NoError(t, err)
		again, err := parallel.CollectPairs(context.Background(), kp[0], kp[1])
		require.NoError(t, err)
		assert.Equal(t, got, again, "parallel traversal is deterministic")
		slices.SortFunc(got, comparePairs)
		assert.Equal(t, want, got, "%v", kp)
	}
}

func TestDisjointOperandsYieldNoPairs(t *testing.T) {
	reg := randomRegistry(3, 200, 100)
	f, err := New(context.Background(), reg, Options{Workers: 4})
	require.NoError(t, err)
	for _, kp := range kindPairs {
		assert.Empty(t, collect(f, kp[0], kp[1]))
	}
	stats := f.Stats()
	assert.Zero(t, stats["FF"])
}

func TestFindPairsStopsEarly(t *testing.T) {
	reg := randomRegistry(5, 200, 0)
	f, err := New(context.Background(), reg, Options{})
	require.NoError(t, err)
	n := 0
	for range f.FindPairs(topo.KindFace, topo.KindFace) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestCollectPairsHonoursCancellation(t *testing.T) {
	reg := randomRegistry(5, 200, 0)
	f, err := New(context.Background(), reg, Options{Workers: 4})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.CollectPairs(ctx, topo.KindEdge, topo.KindFace)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildKeepsEveryItem(t *testing.T) {
	reg := randomRegistry(9, 100, 0)
	items := make([]Item, len(reg))
	for i, r := range reg {
		items[i] = Item{Index: i, Rank: r.rank, Box: r.box}
	}
	tree := Build(items)
	seen := make(map[int]bool)
	for _, n := range tree.Nodes {
		if !n.IsLeaf() {
			continue
		}
		assert.LessOrEqual(t, n.Count, leafSize)
		for _, it := range tree.Items[n.Start : n.Start+n.Count] {
			assert.False(t, seen[it.Index])
			seen[it.Index] = true
			assert.True(t, geom.BoxOverlap(n.Box, it.Box, 0))
		}
	}
	assert.Len(t, seen, len(reg))
}
