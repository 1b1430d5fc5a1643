// Package ds is the data structure of one Boolean run: the registry of every
// sub-shape of the operands, the interference tables filled by the narrow
// phase, the vertex images produced by merging, and a spatial index used to
// snap new intersection points onto existing vertices.
//
// A DS is created per PerformBoolean call and dropped afterwards. Records
// refer to each other by integer index.
package ds

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/chazu/kerf/pkg/bop/diag"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	"github.com/deadsy/sdfx/sdf"
	"github.com/dhconnelly/rtreego"
)

// ShapeInfo is the registry record of one sub-shape.
type ShapeInfo struct {
	Shape topo.Shape
	Kind  topo.ShapeKind
	// Rank is the operand the shape belongs to, -1 for shapes created by the
	// algorithm.
	Rank int
	Sub  []int
	// Unsupported marks shapes whose geometry no kernel can intersect.
	Unsupported bool

	tol     float64
	boxOnce sync.Once
	box     sdf.Box3
}

// Options configures a registry.
type Options struct {
	// BestEffort keeps unsupported shapes, flagged, instead of failing.
	BestEffort bool
	Report     *diag.Report
	Logger     *slog.Logger
}

// DS is the registry plus interference tables for one Boolean run.
type DS struct {
	mu       sync.RWMutex
	shapes   []*ShapeInfo
	index    map[topo.Shape]int
	operands []int

	interf    []*Interference
	interfKey map[interfKey]int

	imgMu  sync.Mutex
	parent map[int]int

	snap *rtreego.Rtree

	opts Options
}

// New validates the operands and registers all their sub-shapes, operand i
// getting rank i. Nil or empty operands are InvalidInput; curves or surfaces
// without an intersection kernel are UnsupportedGeometry unless
// opts.BestEffort is set.
func New(operands []topo.Shape, opts Options) (*DS, error) {
	if opts.Report == nil {
		opts.Report = &diag.Report{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if len(operands) < 2 {
		return nil, diag.New(diag.InvalidInput, "index", nil, "need at least two operands, got %d", len(operands))
	}
	for i, s := range operands {
		if s == nil || topo.IsEmpty(s) {
			return nil, diag.New(diag.InvalidInput, "index", []int{i}, "operand %d is empty", i)
		}
	}

	d := &DS{
		index:     make(map[topo.Shape]int),
		interfKey: make(map[interfKey]int),
		parent:    make(map[int]int),
		snap:      rtreego.NewTree(3, 8, 32),
		opts:      opts,
	}
	for rank, s := range operands {
		d.operands = append(d.operands, d.add(s, rank))
	}

	for i, info := range d.shapes {
		if !info.Unsupported {
			continue
		}
		if !opts.BestEffort {
			return nil, diag.New(diag.UnsupportedGeometry, "index", []int{i}, "%s of operand %d has no intersection kernel", info.Kind, info.Rank)
		}
		opts.Report.Add(diag.UnsupportedGeometry, []int{i}, "%s of operand %d is skipped", info.Kind, info.Rank)
	}
	for _, i := range d.OfKind(topo.KindVertex, -1) {
		d.insertSnap(i)
	}
	opts.Logger.Debug("registry built", "shapes", len(d.shapes), "operands", len(operands))
	return d, nil
}

// Index returns the registry index of s, registering it and its sub-shapes
// as algorithm-created (rank -1) when new. Identity is the topological
// entity, so the same edge reached through different uses is one record.
func (d *DS) Index(s topo.Shape) int {
	return d.add(s, -1)
}

func (d *DS) add(s topo.Shape, rank int) int {
	d.mu.RLock()
	i, ok := d.index[s]
	d.mu.RUnlock()
	if ok {
		return i
	}

	children := topo.Children(s)
	sub := make([]int, 0, len(children))
	tol := ownTolerance(s)
	unsupported := !supported(s)
	for _, c := range children {
		ci := d.add(c, rank)
		sub = append(sub, ci)
		child := d.Info(ci)
		tol = math.Max(tol, child.tol)
	}

	info := &ShapeInfo{Shape: s, Kind: s.Kind(), Rank: rank, Sub: sub, Unsupported: unsupported, tol: tol}
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.index[s]; ok {
		return i
	}
	i = len(d.shapes)
	d.shapes = append(d.shapes, info)
	d.index[s] = i
	return i
}

func ownTolerance(s topo.Shape) float64 {
	switch sh := s.(type) {
	case *topo.Vertex:
		return sh.Tol
	case *topo.Edge:
		return sh.Tol
	case *topo.Face:
		return sh.Tol
	}
	return 0
}

func supported(s topo.Shape) bool {
	switch sh := s.(type) {
	case *topo.Edge:
		return sh.Curve.Kind() != geom.CurveBSpline
	case *topo.Face:
		return sh.Surface.Kind() != geom.SurfaceBSpline
	}
	return true
}

// Lookup returns the index of s if it is registered.
func (d *DS) Lookup(s topo.Shape) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[s]
	return i, ok
}

// Len returns the number of records.
func (d *DS) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.shapes)
}

// Info returns record i.
func (d *DS) Info(i int) *ShapeInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.shapes[i]
}

// Shape returns the shape of record i.
func (d *DS) Shape(i int) topo.Shape { return d.Info(i).Shape }

// Rank returns the operand of record i, -1 for created shapes.
func (d *DS) Rank(i int) int { return d.Info(i).Rank }

// NumOperands returns the number of operands.
func (d *DS) NumOperands() int { return len(d.operands) }

// Operand returns the root index of operand rank.
func (d *DS) Operand(rank int) int { return d.operands[rank] }

// Report returns the warning report shared by the run.
func (d *DS) Report() *diag.Report { return d.opts.Report }

// OfKind returns the indices of records of the given kind in registration
// order. rank < 0 selects every operand shape (created shapes excluded).
// Degenerate edges are left out.
func (d *DS) OfKind(kind topo.ShapeKind, rank int) []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []int
	for i, info := range d.shapes {
		if info.Kind != kind || info.Rank < 0 || (rank >= 0 && info.Rank != rank) {
			continue
		}
		if e, ok := info.Shape.(*topo.Edge); ok && e.Degenerate {
			continue
		}
		out = append(out, i)
	}
	return out
}

// BoundingBox returns the box of record i inflated by its current
// tolerance. The geometric box is computed on first use and cached; it is
// safe to call from concurrent readers.
func (d *DS) BoundingBox(i int) sdf.Box3 {
	info := d.Info(i)
	info.boxOnce.Do(func() {
		info.box = topo.Bounds(info.Shape)
	})
	return geom.BoxEnlarge(info.box, d.Tolerance(i))
}

// Tolerance returns the tolerance of record i: the largest of its own and
// its sub-shapes' tolerances.
func (d *DS) Tolerance(i int) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.shapes[i].tol
}

// UpdateTolerance raises the tolerance of record i to tol. It never
// lowers it.
func (d *DS) UpdateTolerance(i int, tol float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tol > d.shapes[i].tol {
		d.shapes[i].tol = tol
	}
}

// Vertex returns the vertex of record i, which must be a vertex record.
func (d *DS) Vertex(i int) *topo.Vertex {
	v, ok := d.Shape(i).(*topo.Vertex)
	if !ok {
		panic(fmt.Sprintf("ds: record %d is a %s, not a vertex", i, d.Info(i).Kind))
	}
	return v
}
