package graph

import "fmt"

// DefaultFuzzy is the fuzzy tolerance boolean nodes use unless they set
// their own.
const DefaultFuzzy = 0.0

// GlobalDefaults contains graph-wide default settings.
type GlobalDefaults struct {
	Fuzzy float64 `json:"fuzzy"`
	Units string  `json:"units"` // "mm" (only option for now)
}

// Scene is the top-level immutable data structure produced by Lisp
// evaluation. It is never mutated in place; each evaluation produces a new
// graph.
type Scene struct {
	Nodes     map[NodeID]*Node  `json:"nodes"`
	Roots     []NodeID          `json:"roots"`
	NameIndex map[string]NodeID `json:"name_index"`
	Defaults  GlobalDefaults    `json:"defaults"`
}

// New creates an empty Scene with default settings.
func New() *Scene {
	return &Scene{
		Nodes:     make(map[NodeID]*Node),
		NameIndex: make(map[string]NodeID),
		Defaults: GlobalDefaults{
			Fuzzy: DefaultFuzzy,
			Units: "mm",
		},
	}
}

// AddNode adds a node to the graph. It does not check for duplicates.
func (g *Scene) AddNode(n *Node) {
	g.Nodes[n.ID] = n
	if n.Name != "" {
		g.NameIndex[n.Name] = n.ID
	}
}

// AddRoot registers a node ID as a root of the graph.
func (g *Scene) AddRoot(id NodeID) {
	g.Roots = append(g.Roots, id)
}

// Lookup returns the node with the given user-assigned name, or nil.
func (g *Scene) Lookup(name string) *Node {
	id, ok := g.NameIndex[name]
	if !ok {
		return nil
	}
	return g.Nodes[id]
}

// MustLookup returns the node with the given name, or panics.
func (g *Scene) MustLookup(name string) *Node {
	n := g.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("graph: no node named %q", name))
	}
	return n
}

// Get returns the node with the given ID, or nil.
func (g *Scene) Get(id NodeID) *Node {
	return g.Nodes[id]
}

// OfKind returns all nodes of kind k.
func (g *Scene) OfKind(k NodeKind) []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// Children returns the child nodes of the given node.
func (g *Scene) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := g.Nodes[cid]; c != nil {
			children = append(children, c)
		}
	}
	return children
}

// NodeCount returns the total number of nodes.
func (g *Scene) NodeCount() int {
	return len(g.Nodes)
}
