// Package classify decides which split faces make up the result of a
// Boolean operation and assembles them into shells and solids.
//
// Split faces of one operand that share an edge nothing crossed lie on the
// same side of every other operand, so they are grouped into components
// and one representative point per component is located against each
// other operand.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/bop/ds"
	"github.com/chazu/kerf/pkg/bop/pave"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

// Op is a Boolean operation.
type Op int

const (
	Union Op = iota
	Intersect
	Cut
	Section
)

func (op Op) String() string {
	switch op {
	case Union:
		return "union"
	case Intersect:
		return "intersect"
	case Cut:
		return "cut"
	case Section:
		return "section"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// State is the position of a face relative to a solid operand. ON faces
// lie on the operand's boundary with the normal pointing the same way or
// the opposite way.
type State int

const (
	Out State = iota
	In
	OnSame
	OnOpposite
)

func (s State) String() string {
	switch s {
	case Out:
		return "out"
	case In:
		return "in"
	case OnSame:
		return "on-same"
	case OnOpposite:
		return "on-opposite"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FaceSource gives the point-in-face classifier of an operand face.
type FaceSource interface {
	Classifier(i int) *topo.FaceClassifier
}

// Options configures a Classifier.
type Options struct {
	Tol float64
	// Op names the operation in warnings about faces taken as ON.
	Op      Op
	Workers int
	Logger  *slog.Logger
}

// Item is a split face with its states against every operand. The state
// against its own operand is unused.
type Item struct {
	Face   *topo.Face
	Parent int
	Rank   int
	States []State
}

// Classifier locates the split faces of a paved run.
type Classifier struct {
	d      *ds.DS
	src    FaceSource
	res    *pave.Result
	opts   Options
	log    *slog.Logger
	solids [][]target
}

// New prepares a classifier over the finalized paving res.
func New(d *ds.DS, src FaceSource, res *pave.Result, opts Options) *Classifier {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	opts.Tol = max(opts.Tol, minTol)
	c := &Classifier{d: d, src: src, res: res, opts: opts, log: opts.Logger}
	for rank := range d.NumOperands() {
		var ts []target
		for _, fi := range d.OfKind(topo.KindFace, rank) {
			ts = append(ts, target{fc: src.Classifier(fi), box: d.BoundingBox(fi)})
		}
		c.solids = append(c.solids, ts)
	}
	return c
}

func (c *Classifier) workers() int { return max(c.opts.Workers, 1) }

// Classify returns every split face with its states.
func (c *Classifier) Classify(ctx context.Context) ([]*Item, error) {
	var items []*Item
	for rank := range c.d.NumOperands() {
		for _, fi := range c.d.OfKind(topo.KindFace, rank) {
			for _, f := range c.res.Faces[fi] {
				items = append(items, &Item{Face: f, Parent: fi, Rank: rank})
			}
		}
	}
	comps := c.components(items)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())
	for _, comp := range comps {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			states, err := c.locateComponent(comp, items)
			if err != nil {
				return err
			}
			for _, k := range comp {
				items[k].States = states
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.log.Debug("faces classified", "faces", len(items), "components", len(comps))
	return items, nil
}

// components groups items of one operand connected through edges that no
// section, shared or embedded edge marks. The result is in item order.
func (c *Classifier) components(items []*Item) [][]int {
	parent := make([]int, len(items))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	type key struct {
		e    *topo.Edge
		rank int
	}
	first := make(map[key]int)
	for k, it := range items {
		for e := range topo.Edges(it.Face) {
			if c.res.Touched[e] || e.Degenerate {
				continue
			}
			kk := key{e, it.Rank}
			if j, ok := first[kk]; ok {
				a, b := find(j), find(k)
				if a != b {
					parent[max(a, b)] = min(a, b)
				}
				continue
			}
			first[kk] = k
		}
	}
	groups := make(map[int][]int)
	var roots []int
	for k := range items {
		r := find(k)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], k)
	}
	out := make([][]int, len(roots))
	for i, r := range roots {
		out[i] = groups[r]
	}
	return out
}

// Sample points are picked per component: up to samplesPerFace from each face
// in turn, at most maxSamples in all.
const (
	samplesPerFace = 3
	maxSamples     = 12
)

// coincident is the smallest |cos| between the normals of two faces through
// one point for the faces to be taken as lying on each other.
const coincident = 1 - 1e-6

// locateComponent classifies the component against every other operand.
// Each operand gets the first sample point that is clear of its boundary.
func (c *Classifier) locateComponent(comp []int, items []*Item) ([]State, error) {
	var picks []pick
	for _, k := range comp {
		for i, p := range Samples(items[k].Face, c.opts.Tol) {
			if i == samplesPerFace {
				break
			}
			picks = append(picks, pick{Sample: p, item: items[k]})
		}
		if len(picks) >= maxSamples {
			picks = picks[:maxSamples]
			break
		}
	}
	if len(picks) == 0 {
		return nil, diag.Wrap(diag.ClassificationAmbiguous, "classify",
			fmt.Errorf("face %d: %w", items[comp[0]].Parent, ErrNoRepPoint))
	}
	states := make([]State, c.d.NumOperands())
	for j := range states {
		if j != items[comp[0]].Rank {
			states[j] = c.settle(picks, j)
		}
	}
	return states, nil
}

// pick is a sample point of one face of a component.
type pick struct {
	Sample
	item *Item
}

// settle returns the state of the first sample that locates cleanly against
// operand rank. When none does the best sample is taken as ON, with a
// warning.
func (c *Classifier) settle(picks []pick, rank int) State {
	for _, p := range picks {
		if s, ok := c.locate(p.P, p.N, rank); ok {
			return s
		}
	}
	it := picks[0].item
	c.d.Report().Add(diag.ClassificationAmbiguous, []int{it.Parent, c.d.Operand(rank)},
		"no clear point on face %d against operand %d after %d picks; taken as on the boundary and %s",
		it.Parent, rank, len(picks), onEffect(c.opts.Op, it.Rank))
	c.log.Warn("classification ambiguous", "face", it.Parent, "operand", rank, "picks", len(picks))
	return OnOpposite
}

// onEffect describes what op does with an OnOpposite face of operand rank.
func onEffect(op Op, rank int) string {
	if op == Cut && rank == 0 {
		return "kept by cut"
	}
	return "dropped by " + op.String()
}

// locate returns the state of point p, on a face with normal n, against
// operand rank. ok is false when p lies on the operand's boundary without
// the faces coinciding, or when no ray from p is clean.
func (c *Classifier) locate(p, n v3.Vec, rank int) (s State, ok bool) {
	tol := c.opts.Tol
	for _, t := range c.solids[rank] {
		f := t.fc.Face()
		if !geom.BoxContains(t.box, p, tol) || geom.SurfaceDistance(f.Surface, p) > tol {
			continue
		}
		if t.fc.Classify(p, tol) == topo.Out {
			continue
		}
		u, v := f.Surface.Project(p)
		switch d := f.Normal(u, v).Dot(n); {
		case d >= coincident:
			return OnSame, true
		case d <= -coincident:
			return OnOpposite, true
		}
		return OnOpposite, false
	}
	loc, ok := rayLocate(p, c.solids[rank], tol)
	switch {
	case !ok:
		return OnOpposite, false
	case loc == topo.In:
		return In, true
	}
	return Out, true
}

// Select applies the inclusion rule of op to classified items. Tool faces
// kept by Cut are flipped.
func Select(op Op, items []*Item) []*topo.Face {
	var out []*topo.Face
	for _, it := range items {
		keep, flip := include(op, it)
		if !keep {
			continue
		}
		if flip {
			out = append(out, it.Face.Flipped())
			continue
		}
		out = append(out, it.Face)
	}
	return out
}

func include(op Op, it *Item) (keep, flip bool) {
	k := it.Rank
	all := func(ok func(j int, s State) bool) bool {
		for j, s := range it.States {
			if j != k && !ok(j, s) {
				return false
			}
		}
		return true
	}
	switch op {
	case Union:
		// of coincident faces the lowest operand's copy is kept
		return all(func(j int, s State) bool { return s == Out || (s == OnSame && j > k) }), false
	case Intersect:
		return all(func(j int, s State) bool { return s == In || (s == OnSame && j > k) }), false
	case Cut:
		if k == 0 {
			return all(func(_ int, s State) bool { return s == Out || s == OnOpposite }), false
		}
		return all(func(j int, s State) bool {
			if j == 0 {
				return s == In
			}
			return s == Out
		}), true
	}
	return false, false
}

// SectionShape collects the section, shared and embedded edges plus the
// isolated contact vertices of a paved run.
func SectionShape(res *pave.Result) *topo.Compound {
	var out []topo.Shape
	var edges []*topo.Edge
	for _, group := range [][]*topo.Edge{res.Sections, res.Common, res.InEdges} {
		for _, e := range group {
			if !slices.Contains(edges, e) {
				edges = append(edges, e)
				out = append(out, e)
			}
		}
	}
	for _, v := range res.Isolated {
		out = append(out, v)
	}
	return topo.MakeCompound(out...)
}
