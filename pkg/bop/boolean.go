// Package bop computes Boolean set operations on B-Rep shapes.
//
// PerformBoolean runs the pipeline: the operands are indexed in a shape
// registry, candidate pairs of sub-shapes come from a bounding-volume
// hierarchy, the pave filler intersects them and splits edges and faces,
// and the classifier keeps the split faces the operation selects and
// assembles them into solids. Section returns the intersection edges and
// contact vertices instead of faces.
package bop

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/chazu/kerf/pkg/bop/bvh"
	"github.com/chazu/kerf/pkg/bop/classify"
	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/bop/ds"
	"github.com/chazu/kerf/pkg/bop/pave"
	"github.com/chazu/kerf/pkg/topo"
	"github.com/samber/lo"
)

// Op is a Boolean operation.
type Op = classify.Op

const (
	Union     = classify.Union
	Intersect = classify.Intersect
	// Cut removes operands 1.. from operand 0.
	Cut     = classify.Cut
	Section = classify.Section
)

// ParseOp returns the operation named s.
func ParseOp(s string) (Op, error) {
	for _, op := range []Op{Union, Intersect, Cut, Section} {
		if op.String() == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("bop: unknown operation %q", s)
}

// Options configures PerformBoolean. The zero value runs serially with the
// default tolerances.
type Options struct {
	// FuzzyTolerance widens every contact test; sub-shapes closer than it
	// are treated as touching.
	FuzzyTolerance float64
	Parallel       bool
	// Workers bounds the goroutines per phase when Parallel is set; zero
	// means GOMAXPROCS.
	Workers int
	// BestEffort skips sub-shapes with unsupported geometry, with a
	// warning, instead of failing.
	BestEffort bool
	// Budget, when positive, is a deadline for the whole operation. It is
	// checked between phases.
	Budget time.Duration
	Logger *slog.Logger
}

// workers returns the goroutine limit of every phase.
func (o Options) workers() int {
	switch {
	case !o.Parallel:
		return 1
	case o.Workers > 0:
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Result is the outcome of a Boolean operation.
type Result struct {
	Shape topo.Shape
	// Empty is set when the result has no sub-shapes, e.g. the
	// intersection of disjoint solids.
	Empty    bool
	Warnings []diag.Warning
	Stats    map[string]int
}

// PerformBoolean applies op to operands. Empty operands act as identity
// elements: they are dropped from a union and from the tools of a cut, and
// make an intersection or section empty. Every error is a *diag.Error; no
// shape is returned with one.
func PerformBoolean(ctx context.Context, operands []topo.Shape, op Op, opts Options) (res *Result, err error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	log := opts.Logger
	if err := validate(operands, op, opts); err != nil {
		return nil, err
	}
	if opts.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Budget)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = diag.New(diag.BuildFailure, op.String(), nil, "panic: %v", r)
			log.Error("boolean aborted", "op", op, "err", err)
		}
	}()

	operands, s, done := dropEmpty(operands, op)
	if done {
		return &Result{Shape: s, Empty: topo.IsEmpty(s), Stats: map[string]int{}}, nil
	}

	start := time.Now()
	report := &diag.Report{}
	d, err := ds.New(operands, ds.Options{BestEffort: opts.BestEffort, Report: report, Logger: log})
	if err != nil {
		return nil, err
	}
	checkpoint := func(phase string, err error) error {
		if err == nil {
			err = ctx.Err()
		}
		if err == nil {
			return nil
		}
		log.Debug("boolean stopped", "op", op, "phase", phase, "err", err)
		return diag.Wrap(diag.BuildFailure, phase, err)
	}

	workers := opts.workers()
	finder, err := bvh.New(ctx, d, bvh.Options{Tol: opts.FuzzyTolerance, Workers: workers})
	if err := checkpoint("broad phase", err); err != nil {
		return nil, err
	}
	filler, err := pave.New(ctx, d, finder, pave.Options{
		Fuzzy: opts.FuzzyTolerance, Workers: workers, Logger: log,
	})
	if err := checkpoint("pave", err); err != nil {
		return nil, err
	}
	if err := checkpoint("narrow phase", filler.Run(ctx)); err != nil {
		return nil, err
	}
	split, err := filler.Finalize(ctx)
	if err := checkpoint("split", err); err != nil {
		return nil, err
	}

	var shape topo.Shape
	if op == Section {
		shape = classify.SectionShape(split)
	} else {
		c := classify.New(d, filler, split, classify.Options{
			Tol: opts.FuzzyTolerance, Op: op, Workers: workers, Logger: log,
		})
		items, err := c.Classify(ctx)
		if err := checkpoint("classify", err); err != nil {
			return nil, err
		}
		shape = classify.Assemble(classify.Select(op, items), opts.FuzzyTolerance)
	}

	res = &Result{
		Shape:    shape,
		Empty:    topo.IsEmpty(shape),
		Warnings: report.Snapshot(),
		Stats:    stats(d, finder, filler),
	}
	log.Debug("boolean done", "op", op, "operands", len(operands),
		"warnings", len(res.Warnings), "empty", res.Empty, "elapsed", time.Since(start))
	return res, nil
}

func validate(operands []topo.Shape, op Op, opts Options) error {
	if op < Union || op > Section {
		return diag.New(diag.InvalidInput, "validate", nil, "unknown operation %d", int(op))
	}
	if len(operands) < 2 {
		return diag.New(diag.InvalidInput, "validate", nil, "need at least two operands, got %d", len(operands))
	}
	if opts.FuzzyTolerance < 0 || opts.Workers < 0 || opts.Budget < 0 {
		return diag.New(diag.InvalidInput, "validate", nil, "negative option")
	}
	for i, s := range operands {
		if s == nil {
			return diag.New(diag.InvalidInput, "validate", []int{i}, "operand %d is nil", i)
		}
		if op != Section && !topo.IsEmpty(s) && topo.Count(s, topo.KindFace) == 0 {
			return diag.New(diag.InvalidInput, "validate", []int{i}, "operand %d has no faces to %s", i, op)
		}
	}
	return nil
}

// dropEmpty removes empty operands. done is set when that settles the
// result, which is then s.
func dropEmpty(operands []topo.Shape, op Op) (left []topo.Shape, s topo.Shape, done bool) {
	left = lo.Reject(operands, func(s topo.Shape, _ int) bool { return topo.IsEmpty(s) })
	if len(left) == len(operands) {
		return operands, nil, false
	}
	switch {
	case op == Intersect || op == Section:
		return nil, topo.MakeCompound(), true
	case op == Cut && topo.IsEmpty(operands[0]):
		return nil, topo.MakeCompound(), true
	case len(left) == 0:
		return nil, topo.MakeCompound(), true
	case len(left) == 1:
		return left, left[0], true
	}
	return left, nil, false
}

// stats merges the counters of the pipeline stages.
func stats(d *ds.DS, finder *bvh.Finder, filler *pave.Filler) map[string]int {
	broad := lo.MapEntries(finder.Stats(), func(k string, v int) (string, int) { return "broad." + k, v })
	interf := lo.MapEntries(d.InterferenceCount(), func(k ds.InterfKind, v int) (string, int) {
		return "interf." + k.String(), v
	})
	return lo.Assign(broad, interf, filler.Stats())
}
