// Package evaluate walks a scene graph and builds its solids with a
// geometry kernel. One part is produced per non-group node below a root.
package evaluate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chazu/kerf/pkg/bop"
	"github.com/chazu/kerf/pkg/graph"
	"github.com/chazu/kerf/pkg/kernel"
)

// Part is a solid produced for one member of a root group, or for a root
// that is not a group.
type Part struct {
	Name  string
	ID    graph.NodeID
	Solid kernel.Solid
}

// multiBoolean is implemented by kernels that combine several solids in a
// single operation and accept a per-operation fuzzy tolerance.
type multiBoolean interface {
	Boolean(ctx context.Context, op bop.Op, fuzzy float64, solids ...kernel.Solid) (kernel.Solid, error)
}

// Options configures Evaluate.
type Options struct {
	// Fuzzy is used by boolean nodes that do not set their own. Zero
	// falls back to the scene default.
	Fuzzy  float64
	Logger *slog.Logger
}

// evaluator memoizes solids by node, so a node shared in the DAG is built
// once.
type evaluator struct {
	ctx   context.Context
	g     *graph.Scene
	k     kernel.Kernel
	fuzzy float64
	log   *slog.Logger
	memo  map[graph.NodeID]kernel.Solid
}

// Evaluate walks the roots of g in order and builds their parts with k.
// Groups are flattened: each of their members becomes its own part. The
// evaluator is read-only and never mutates the graph.
func Evaluate(ctx context.Context, g *graph.Scene, k kernel.Kernel, opts Options) ([]Part, error) {
	if g == nil {
		return nil, nil
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Fuzzy == 0 {
		opts.Fuzzy = g.Defaults.Fuzzy
	}
	e := &evaluator{
		ctx:   ctx,
		g:     g,
		k:     k,
		fuzzy: opts.Fuzzy,
		log:   opts.Logger,
		memo:  make(map[graph.NodeID]kernel.Solid),
	}

	var parts []Part
	for _, rootID := range g.Roots {
		root := g.Get(rootID)
		if root == nil {
			return nil, fmt.Errorf("evaluate: root %s does not exist", rootID.Short())
		}
		collected, err := e.parts(root)
		if err != nil {
			return nil, fmt.Errorf("evaluate: root %s: %w", label(root), err)
		}
		parts = append(parts, collected...)
	}
	return parts, nil
}

// parts flattens groups into their members.
func (e *evaluator) parts(n *graph.Node) ([]Part, error) {
	if n.Kind != graph.NodeGroup {
		s, err := e.solid(n)
		if err != nil {
			return nil, err
		}
		return []Part{{Name: label(n), ID: n.ID, Solid: s}}, nil
	}
	var out []Part
	for _, child := range e.g.Children(n) {
		collected, err := e.parts(child)
		if err != nil {
			return nil, err
		}
		out = append(out, collected...)
	}
	return out, nil
}

// solid returns the solid of n, building it on first use.
func (e *evaluator) solid(n *graph.Node) (kernel.Solid, error) {
	if s, ok := e.memo[n.ID]; ok {
		return s, nil
	}
	if err := e.ctx.Err(); err != nil {
		return nil, err
	}

	var s kernel.Solid
	var err error
	switch n.Kind {
	case graph.NodePrimitive:
		s, err = e.primitive(n)
	case graph.NodeTransform:
		s, err = e.transform(n)
	case graph.NodeBoolean:
		s, err = e.boolean(n)
	case graph.NodeGroup:
		s, err = e.group(n)
	default:
		err = fmt.Errorf("unknown node kind: %v", n.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", n.Kind, label(n), err)
	}
	e.memo[n.ID] = s
	return s, nil
}

func (e *evaluator) children(n *graph.Node) ([]kernel.Solid, error) {
	if len(e.g.Children(n)) != len(n.Children) {
		return nil, fmt.Errorf("dangling child reference")
	}
	out := make([]kernel.Solid, 0, len(n.Children))
	for _, c := range e.g.Children(n) {
		s, err := e.solid(c)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// primitive creates geometry for a primitive node.
func (e *evaluator) primitive(n *graph.Node) (kernel.Solid, error) {
	data, ok := n.Data.(graph.PrimitiveData)
	if !ok {
		return nil, fmt.Errorf("unsupported data type %T", n.Data)
	}
	switch data.Prim {
	case graph.PrimBox:
		return e.k.Box(data.Size.X, data.Size.Y, data.Size.Z)
	case graph.PrimCylinder:
		return e.k.Cylinder(data.Height, data.Radius)
	case graph.PrimSphere:
		return e.k.Sphere(data.Radius)
	}
	return nil, fmt.Errorf("unknown primitive %v", data.Prim)
}

// transform applies the rotation first, then the translation.
func (e *evaluator) transform(n *graph.Node) (kernel.Solid, error) {
	td, ok := n.Data.(graph.TransformData)
	if !ok {
		return nil, fmt.Errorf("unexpected data type %T", n.Data)
	}
	children, err := e.children(n)
	if err != nil {
		return nil, err
	}
	if len(children) != 1 {
		return nil, fmt.Errorf("want 1 child, got %d", len(children))
	}
	s := children[0]
	if r := td.Rotation; r != nil && (r.X != 0 || r.Y != 0 || r.Z != 0) {
		if s, err = e.k.Rotate(s, r.X, r.Y, r.Z); err != nil {
			return nil, err
		}
	}
	if t := td.Translation; t != nil && (t.X != 0 || t.Y != 0 || t.Z != 0) {
		if s, err = e.k.Translate(s, t.X, t.Y, t.Z); err != nil {
			return nil, err
		}
	}
	return s, nil
}

var opOf = map[graph.BooleanOp]bop.Op{
	graph.OpUnion:     bop.Union,
	graph.OpIntersect: bop.Intersect,
	graph.OpCut:       bop.Cut,
	graph.OpSection:   bop.Section,
}

// boolean combines the children in one operation when the kernel can,
// otherwise by folding pairwise from the left.
func (e *evaluator) boolean(n *graph.Node) (kernel.Solid, error) {
	bd, ok := n.Data.(graph.BooleanData)
	if !ok {
		return nil, fmt.Errorf("unexpected data type %T", n.Data)
	}
	op, ok := opOf[bd.Op]
	if !ok {
		return nil, fmt.Errorf("unknown operation %v", bd.Op)
	}
	children, err := e.children(n)
	if err != nil {
		return nil, err
	}
	if len(children) < 2 {
		return nil, fmt.Errorf("want at least 2 children, got %d", len(children))
	}
	fuzzy := bd.Fuzzy
	if fuzzy == 0 {
		fuzzy = e.fuzzy
	}

	if mb, ok := e.k.(multiBoolean); ok {
		e.log.Debug("boolean", "node", label(n), "op", op, "operands", len(children), "fuzzy", fuzzy)
		return mb.Boolean(e.ctx, op, fuzzy, children...)
	}
	if fuzzy > 0 {
		e.log.Warn("kernel ignores fuzzy tolerance", "node", label(n), "fuzzy", fuzzy)
	}
	var pair func(a, b kernel.Solid) (kernel.Solid, error)
	switch op {
	case bop.Union:
		pair = e.k.Union
	case bop.Intersect:
		pair = e.k.Intersection
	case bop.Cut:
		pair = e.k.Difference
	default:
		return nil, fmt.Errorf("kernel does not support %s", op)
	}
	acc := children[0]
	for _, c := range children[1:] {
		if acc, err = pair(acc, c); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// group is the union of its members when a group is used as an operand.
func (e *evaluator) group(n *graph.Node) (kernel.Solid, error) {
	children, err := e.children(n)
	if err != nil {
		return nil, err
	}
	switch len(children) {
	case 0:
		return kernel.Empty(e.k)
	case 1:
		return children[0], nil
	}
	if mb, ok := e.k.(multiBoolean); ok {
		return mb.Boolean(e.ctx, bop.Union, e.fuzzy, children...)
	}
	acc := children[0]
	for _, c := range children[1:] {
		if acc, err = e.k.Union(acc, c); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// label is the node's name, or its short ID.
func label(n *graph.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID.Short()
}
