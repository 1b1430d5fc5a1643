// Package pave is the topological half of the Boolean pipeline. The Filler
// runs the narrow phase over the candidate pairs of the broad phase in the
// order VV, VE, EE, VF, EF, FF, turning intersections into vertices, paves
// on edges and section edges. Finalize then splits every paved edge at its
// paves, shares coincident edge pieces between operands and rebuilds the
// faces crossed by section or embedded edges.
//
// Kernels of one phase run concurrently and write into per-pair slots. The
// registry is only mutated by the reduction that follows, on one goroutine
// and in pair order, so the outcome does not depend on scheduling.
package pave

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/bop/ds"
	"github.com/chazu/kerf/pkg/bop/intersect"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	"golang.org/x/sync/errgroup"
)

// PairSource yields candidate pairs of sub-shapes of different operands.
type PairSource interface {
	CollectPairs(ctx context.Context, ka, kb topo.ShapeKind) ([][2]int, error)
}

// Options configures a Filler.
type Options struct {
	// Fuzzy is the smallest distance treated as contact.
	Fuzzy float64
	// Workers bounds the pair kernels and splits run at once.
	Workers int
	Logger  *slog.Logger
}

// Filler owns the paving state of one Boolean run.
type Filler struct {
	ds    *ds.DS
	pairs PairSource
	opts  Options
	log   *slog.Logger

	classifiers map[int]*topo.FaceClassifier
	edges       map[int]*edgeRec
	faces       map[int]*faceRec
	sections    []*sectionPiece
	contacts    []int

	statsMu sync.Mutex
	stats   map[string]int

	finalizeOnce sync.Once
	result       *Result
	err          error
}

// New prepares a filler over the registry d. Face classifiers for every
// operand face are built up front.
func New(ctx context.Context, d *ds.DS, pairs PairSource, opts Options) (*Filler, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	f := &Filler{
		ds:          d,
		pairs:       pairs,
		opts:        opts,
		log:         opts.Logger,
		classifiers: make(map[int]*topo.FaceClassifier),
		edges:       make(map[int]*edgeRec),
		faces:       make(map[int]*faceRec),
		stats:       make(map[string]int),
	}
	faces := d.OfKind(topo.KindFace, -1)
	built := make([]*topo.FaceClassifier, len(faces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers())
	for k, fi := range faces {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			built[k] = topo.NewFaceClassifier(d.Shape(fi).(*topo.Face))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pave: face classifiers: %w", err)
	}
	for k, fi := range faces {
		f.classifiers[fi] = built[k]
		f.faces[fi] = &faceRec{index: fi, face: d.Shape(fi).(*topo.Face)}
	}
	for _, ei := range d.OfKind(topo.KindEdge, -1) {
		f.edges[ei] = &edgeRec{index: ei, edge: d.Shape(ei).(*topo.Edge)}
	}
	return f, nil
}

func (f *Filler) workers() int { return max(f.opts.Workers, 1) }

// Classifier returns the point-in-face classifier of operand face i.
func (f *Filler) Classifier(i int) *topo.FaceClassifier { return f.classifiers[i] }

// DS returns the registry the filler works on.
func (f *Filler) DS() *ds.DS { return f.ds }

// Stats returns counters collected so far.
func (f *Filler) Stats() map[string]int {
	f.statsMu.Lock()
	defer f.statsMu.Unlock()
	out := make(map[string]int, len(f.stats))
	for k, v := range f.stats {
		out[k] = v
	}
	return out
}

func (f *Filler) count(key string, n int) {
	f.statsMu.Lock()
	f.stats[key] += n
	f.statsMu.Unlock()
}

// pairTol is the contact distance of records i and j.
func (f *Filler) pairTol(i, j int) float64 {
	return math.Max(f.ds.Tolerance(i)+f.ds.Tolerance(j), math.Max(f.opts.Fuzzy, geom.Confusion))
}

// phase is one interference kind of the narrow phase.
type phase struct {
	kind   ds.InterfKind
	ka, kb topo.ShapeKind
	run    func(ctx context.Context, pairs [][2]int) error
}

// Run executes the narrow phase. ctx is checked between phases.
func (f *Filler) Run(ctx context.Context) error {
	phases := []phase{
		{ds.VV, topo.KindVertex, topo.KindVertex, f.runVV},
		{ds.VE, topo.KindVertex, topo.KindEdge, f.runVE},
		{ds.EE, topo.KindEdge, topo.KindEdge, f.runEE},
		{ds.VF, topo.KindVertex, topo.KindFace, f.runVF},
		{ds.EF, topo.KindEdge, topo.KindFace, f.runEF},
		{ds.FF, topo.KindFace, topo.KindFace, f.runFF},
	}
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		pairs, err := f.pairs.CollectPairs(ctx, ph.ka, ph.kb)
		if err != nil {
			return err
		}
		// pair order fixes the reduction order, whatever the worker count
		slices.SortFunc(pairs, func(a, b [2]int) int {
			if c := cmp.Compare(a[0], b[0]); c != 0 {
				return c
			}
			return cmp.Compare(a[1], b[1])
		})
		pairs = f.supportedPairs(ph.kind, pairs)
		f.count("pairs."+ph.kind.String(), len(pairs))
		if err := ph.run(ctx, pairs); err != nil {
			return err
		}
		f.log.Debug("phase done", "kind", ph.kind, "pairs", len(pairs), "elapsed", time.Since(start))
	}
	return nil
}

// supportedPairs drops pairs involving shapes flagged unsupported, with a
// warning each.
func (f *Filler) supportedPairs(kind ds.InterfKind, pairs [][2]int) [][2]int {
	out := pairs[:0:0]
	for _, p := range pairs {
		if f.ds.Info(p[0]).Unsupported || f.ds.Info(p[1]).Unsupported {
			f.ds.Report().Add(diag.UnsupportedGeometry, p[:], "%s pair skipped", kind)
			continue
		}
		out = append(out, p)
	}
	return out
}

// runPhase evaluates kernel for every pair concurrently, then feeds the
// results to reduce in pair order. Kernel errors become warnings and the
// pair is skipped; a panic in a kernel is a BuildFailure.
func runPhase[T any](ctx context.Context, f *Filler, kind ds.InterfKind, pairs [][2]int,
	kernel func(i, j int) (T, error), reduce func(i, j int, r T) error) error {
	results := make([]T, len(pairs))
	errs := make([]error, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers())
	for k, p := range pairs {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = diag.New(diag.BuildFailure, kind.String(), p[:], "kernel panic: %v", r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			results[k], errs[k] = kernel(p[0], p[1])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for k, p := range pairs {
		if errs[k] != nil {
			f.ds.Report().Add(errorKind(errs[k]), p[:], "%s pair skipped: %v", kind, errs[k])
			f.log.Warn("pair skipped", "kind", kind, "pair", p, "err", errs[k])
			continue
		}
		if err := reduce(p[0], p[1], results[k]); err != nil {
			return err
		}
	}
	return nil
}

// errorKind maps a kernel error onto the taxonomy.
func errorKind(err error) diag.ErrorKind {
	var de *diag.Error
	switch {
	case errors.As(err, &de):
		return de.Kind
	case errors.Is(err, intersect.ErrUnsupported):
		return diag.UnsupportedGeometry
	}
	return diag.IntersectionDegenerate
}
