package ds

import (
	"math"
	"slices"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"
)

// Image returns the vertex that currently stands for vertex record v. Merged
// vertices share one image. Lookups compress the merge chains.
func (d *DS) Image(v int) int {
	d.imgMu.Lock()
	defer d.imgMu.Unlock()
	return d.find(v)
}

func (d *DS) find(v int) int {
	root := v
	for {
		p, ok := d.parent[root]
		if !ok {
			break
		}
		root = p
	}
	for v != root {
		next := d.parent[v]
		d.parent[v] = root
		v = next
	}
	return root
}

// NewVertex creates and registers a vertex at p and adds it to the snap
// index.
func (d *DS) NewVertex(p v3.Vec, tol float64) int {
	i := d.Index(topo.MakeVertex(p, tol))
	d.insertSnap(i)
	return i
}

// MergeVertices makes a and b share one image. When their images differ a
// new vertex is created whose tolerance sphere covers both; the inputs are
// left untouched. It returns the common image.
func (d *DS) MergeVertices(a, b int) int {
	ia, ib := d.Image(a), d.Image(b)
	if ia == ib {
		return ia
	}
	va, vb := d.Vertex(ia), d.Vertex(ib)
	ta, tb := d.Tolerance(ia), d.Tolerance(ib)
	// smallest sphere enclosing both tolerance spheres
	dist := geom.Dist(va.Point, vb.Point)
	var center v3.Vec
	var tol float64
	switch {
	case dist+tb <= ta:
		center, tol = va.Point, ta
	case dist+ta <= tb:
		center, tol = vb.Point, tb
	default:
		tol = 0.5 * (dist + ta + tb)
		center = geom.Lerp(va.Point, vb.Point, (tol-ta)/dist)
	}
	n := d.NewVertex(center, math.Max(tol, geom.Confusion))
	d.imgMu.Lock()
	d.parent[ia] = n
	d.parent[ib] = n
	d.imgMu.Unlock()
	return n
}

// Merged returns the vertex records whose image is v, v included, sorted.
func (d *DS) Merged(v int) []int {
	img := d.Image(v)
	out := []int{img}
	d.imgMu.Lock()
	keys := make([]int, 0, len(d.parent))
	for k := range d.parent {
		keys = append(keys, k)
	}
	for _, k := range keys {
		if d.find(k) == img {
			out = append(out, k)
		}
	}
	d.imgMu.Unlock()
	slices.Sort(out)
	return out
}

// snapEntry is a vertex record in the R-tree.
type snapEntry struct {
	index int
	rect  rtreego.Rect
}

func (s *snapEntry) Bounds() rtreego.Rect { return s.rect }

func (d *DS) insertSnap(i int) {
	v := d.Vertex(i)
	pt := rtreego.Point{v.Point.X, v.Point.Y, v.Point.Z}
	d.snap.Insert(&snapEntry{index: i, rect: pt.ToRect(math.Max(d.Tolerance(i), geom.Confusion))})
}

// Snap returns the image of the vertex nearest to p whose tolerance sphere,
// grown by radius, contains p. Ties go to the lower index.
func (d *DS) Snap(p v3.Vec, radius float64) (int, bool) {
	pt := rtreego.Point{p.X, p.Y, p.Z}
	hits := d.snap.SearchIntersect(pt.ToRect(math.Max(radius, geom.Confusion)))
	best, bestDist := -1, math.Inf(1)
	for _, h := range hits {
		img := d.Image(h.(*snapEntry).index)
		v := d.Vertex(img)
		dist := geom.Dist(v.Point, p)
		if dist > radius+d.Tolerance(img) {
			continue
		}
		if dist < bestDist || (dist == bestDist && img < best) {
			best, bestDist = img, dist
		}
	}
	return best, best >= 0
}
