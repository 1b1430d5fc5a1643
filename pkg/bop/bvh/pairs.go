package bvh

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	"github.com/deadsy/sdfx/sdf"
	"golang.org/x/sync/errgroup"
)

// Registry is the part of the shape registry the broad phase reads.
type Registry interface {
	OfKind(kind topo.ShapeKind, rank int) []int
	BoundingBox(i int) sdf.Box3
	Rank(i int) int
}

// Options configures the pair finder.
type Options struct {
	// Tol is added to box overlap tests; the fuzzy tolerance of the run.
	Tol float64
	// Workers bounds the goroutines of each step; below 2 the steps run
	// one at a time.
	Workers int
}

// Finder owns one tree per sub-shape kind.
type Finder struct {
	trees map[topo.ShapeKind]*Tree
	opts  Options

	mu    sync.Mutex
	stats map[string]int
}

// Kinds are the sub-shape kinds the finder indexes.
var Kinds = []topo.ShapeKind{topo.KindVertex, topo.KindEdge, topo.KindFace}

// New builds the vertex, edge and face trees of every operand shape in
// reg, concurrently when opts.Workers allows.
func New(ctx context.Context, reg Registry, opts Options) (*Finder, error) {
	f := &Finder{trees: make(map[topo.ShapeKind]*Tree), opts: opts, stats: make(map[string]int)}
	trees := make([]*Tree, len(Kinds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers())
	for k, kind := range Kinds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			idx := reg.OfKind(kind, -1)
			items := make([]Item, len(idx))
			for i, x := range idx {
				items[i] = Item{Index: x, Rank: reg.Rank(x), Box: reg.BoundingBox(x)}
			}
			trees[k] = Build(items)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("bvh: build: %w", err)
	}
	for k, kind := range Kinds {
		f.trees[kind] = trees[k]
	}
	return f, nil
}

func (f *Finder) workers() int { return max(f.opts.Workers, 1) }

// Tree returns the hierarchy of one kind.
func (f *Finder) Tree(kind topo.ShapeKind) *Tree { return f.trees[kind] }

// pairName is the stats key of a kind pair, e.g. "EF".
func pairName(a, b topo.ShapeKind) string {
	letter := func(k topo.ShapeKind) string {
		switch k {
		case topo.KindVertex:
			return "V"
		case topo.KindEdge:
			return "E"
		case topo.KindFace:
			return "F"
		}
		return k.String()
	}
	return letter(a) + letter(b)
}

// Stats returns the number of pairs emitted per kind pair so far.
func (f *Finder) Stats() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.stats))
	for k, v := range f.stats {
		out[k] = v
	}
	return out
}

func (f *Finder) count(a, b topo.ShapeKind, n int) {
	f.mu.Lock()
	f.stats[pairName(a, b)] += n
	f.mu.Unlock()
}

// task is a pair of nodes still to be descended.
type task struct{ a, b int }

// FindPairs yields every pair (i, j) of registry indices, i of kind ka and
// j of kind kb, that belong to different operands and whose boxes overlap.
// When ka == kb each unordered pair is yielded once with i < j. The
// sequence is deterministic and can be iterated again.
func (f *Finder) FindPairs(ka, kb topo.ShapeKind) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		ta, tb := f.trees[ka], f.trees[kb]
		if len(ta.Nodes) == 0 || len(tb.Nodes) == 0 {
			return
		}
		n := 0
		f.descend(ta, tb, ka == kb, task{0, 0}, func(i, j int) bool {
			n++
			return yield(i, j)
		})
		f.count(ka, kb, n)
	}
}

func (f *Finder) overlap(a, b sdf.Box3) bool {
	return geom.BoxOverlap(a, b, f.opts.Tol)
}

func (f *Finder) descend(ta, tb *Tree, same bool, t task, yield func(int, int) bool) bool {
	na, nb := &ta.Nodes[t.a], &tb.Nodes[t.b]
	if !f.overlap(na.Box, nb.Box) {
		return true
	}
	if na.IsLeaf() && nb.IsLeaf() {
		return f.leafPairs(ta, tb, same, t, yield)
	}
	for _, c := range children(ta, tb, same, t) {
		if !f.descend(ta, tb, same, c, yield) {
			return false
		}
	}
	return true
}

// children expands a node pair one level. For a tree against itself only
// the pairs (L,L), (L,R), (R,R) of a self pair are produced, so every
// unordered pair of leaves is reached once.
func children(ta, tb *Tree, same bool, t task) []task {
	na, nb := &ta.Nodes[t.a], &tb.Nodes[t.b]
	if same && t.a == t.b {
		return []task{{na.Left, na.Left}, {na.Left, na.Right}, {na.Right, na.Right}}
	}
	splitA := !na.IsLeaf() && (nb.IsLeaf() || geom.BoxArea(na.Box) >= geom.BoxArea(nb.Box))
	if splitA {
		return []task{{na.Left, t.b}, {na.Right, t.b}}
	}
	return []task{{t.a, nb.Left}, {t.a, nb.Right}}
}

func (f *Finder) leafPairs(ta, tb *Tree, same bool, t task, yield func(int, int) bool) bool {
	na, nb := &ta.Nodes[t.a], &tb.Nodes[t.b]
	for x := na.Start; x < na.Start+na.Count; x++ {
		y0 := nb.Start
		if same && t.a == t.b {
			y0 = x + 1
		}
		for y := y0; y < nb.Start+nb.Count; y++ {
			ia, ib := ta.Items[x], tb.Items[y]
			if ia.Rank == ib.Rank || !f.overlap(ia.Box, ib.Box) {
				continue
			}
			i, j := ia.Index, ib.Index
			if same && i > j {
				i, j = j, i
			}
			if !yield(i, j) {
				return false
			}
		}
	}
	return true
}

// CollectPairs gathers the pairs of FindPairs with a parallel traversal:
// the descent is split into disjoint node-pair tasks whose results are
// concatenated in task order.
func (f *Finder) CollectPairs(ctx context.Context, ka, kb topo.ShapeKind) ([][2]int, error) {
	ta, tb := f.trees[ka], f.trees[kb]
	if len(ta.Nodes) == 0 || len(tb.Nodes) == 0 {
		return nil, nil
	}
	same := ka == kb
	workers := f.workers()
	tasks := []task{{0, 0}}
	for len(tasks) < 4*workers {
		var next []task
		expanded := false
		for _, t := range tasks {
			na, nb := &ta.Nodes[t.a], &tb.Nodes[t.b]
			if !f.overlap(na.Box, nb.Box) {
				continue
			}
			if na.IsLeaf() && nb.IsLeaf() {
				next = append(next, t)
				continue
			}
			next = append(next, children(ta, tb, same, t)...)
			expanded = true
		}
		tasks = next
		if !expanded {
			break
		}
	}

	results := make([][][2]int, len(tasks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for k, t := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f.descend(ta, tb, same, t, func(i, j int) bool {
				results[k] = append(results[k], [2]int{i, j})
				return true
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("bvh: collect %s pairs: %w", pairName(ka, kb), err)
	}
	var out [][2]int
	for _, r := range results {
		out = append(out, r...)
	}
	f.count(ka, kb, len(out))
	return out, nil
}
