// Package bvh is the broad phase of the Boolean pipeline: one bounding
// volume hierarchy per sub-shape kind and a simultaneous descent of two
// hierarchies that yields the candidate pairs handed to the narrow phase.
package bvh

import (
	"math"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
)

const (
	bins     = 12
	leafSize = 4
)

// Item is one box in a tree.
type Item struct {
	Index int // registry index
	Rank  int
	Box   sdf.Box3
}

// Node is a tree node in a flat array. Leaves have Left == -1 and own
// Items[Start:Start+Count].
type Node struct {
	Box          sdf.Box3
	Left, Right  int
	Start, Count int
}

// IsLeaf reports whether n holds items.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// Tree is a binned-SAH hierarchy over items.
type Tree struct {
	Nodes []Node
	Items []Item
}

// Build constructs a tree. Items are reordered into leaf order.
func Build(items []Item) *Tree {
	t := &Tree{Items: items}
	if len(items) == 0 {
		return t
	}
	t.Nodes = make([]Node, 0, 2*len(items)/leafSize+1)
	t.build(0, len(items))
	return t
}

func (t *Tree) build(start, end int) int {
	box := geom.EmptyBox()
	cbox := geom.EmptyBox()
	for _, it := range t.Items[start:end] {
		box = geom.BoxUnion(box, it.Box)
		cbox = geom.BoxAddPoint(cbox, geom.BoxCenter(it.Box))
	}
	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Box: box, Left: -1, Right: -1, Start: start, Count: end - start})
	if end-start <= leafSize {
		return id
	}

	mid := t.split(start, end, cbox)
	if mid <= start || mid >= end {
		// every centroid in one bin: halve the range
		mid = (start + end) / 2
	}
	left := t.build(start, mid)
	right := t.build(mid, end)
	t.Nodes[id].Left, t.Nodes[id].Right = left, right
	t.Nodes[id].Count = 0
	return id
}

// split partitions Items[start:end] at the cheapest of the bins-1 planes
// along the widest centroid axis and returns the partition point.
func (t *Tree) split(start, end int, cbox sdf.Box3) int {
	ext := cbox.Max.Sub(cbox.Min)
	axis := 0
	if ext.Y > ext.X {
		axis = 1
	}
	if ext.Z > geom.Component(ext, axis) {
		axis = 2
	}
	lo, width := geom.Component(cbox.Min, axis), geom.Component(ext, axis)
	if width <= 0 {
		return start
	}
	bin := func(it Item) int {
		b := int(float64(bins) * (geom.Component(geom.BoxCenter(it.Box), axis) - lo) / width)
		return min(max(b, 0), bins-1)
	}

	var counts [bins]int
	var boxes [bins]sdf.Box3
	for i := range boxes {
		boxes[i] = geom.EmptyBox()
	}
	for _, it := range t.Items[start:end] {
		b := bin(it)
		counts[b]++
		boxes[b] = geom.BoxUnion(boxes[b], it.Box)
	}

	// sweep from the right to get suffix areas
	var rightArea [bins]float64
	var rightCount [bins]int
	acc, n := geom.EmptyBox(), 0
	for i := bins - 1; i > 0; i-- {
		acc = geom.BoxUnion(acc, boxes[i])
		n += counts[i]
		rightArea[i], rightCount[i] = geom.BoxArea(acc), n
	}
	best, bestCost := -1, math.Inf(1)
	acc, n = geom.EmptyBox(), 0
	for i := 0; i < bins-1; i++ {
		acc = geom.BoxUnion(acc, boxes[i])
		n += counts[i]
		if n == 0 || rightCount[i+1] == 0 {
			continue
		}
		cost := geom.BoxArea(acc)*float64(n) + rightArea[i+1]*float64(rightCount[i+1])
		if cost < bestCost {
			best, bestCost = i, cost
		}
	}
	if best < 0 {
		return start
	}

	// stable partition keeps the build deterministic
	items := t.Items[start:end]
	left := make([]Item, 0, len(items))
	right := make([]Item, 0, len(items))
	for _, it := range items {
		if bin(it) <= best {
			left = append(left, it)
		} else {
			right = append(right, it)
		}
	}
	copy(items, left)
	copy(items[len(left):], right)
	return start + len(left)
}
