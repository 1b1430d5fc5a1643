package graph

import (
	"encoding/json"
	"testing"
)

func TestNewScene(t *testing.T) {
	g := New()
	if g.Nodes == nil {
		t.Fatal("Nodes map should be initialized")
	}
	if g.NameIndex == nil {
		t.Fatal("NameIndex map should be initialized")
	}
	if g.Defaults.Fuzzy != DefaultFuzzy {
		t.Errorf("default fuzzy = %f, want %f", g.Defaults.Fuzzy, DefaultFuzzy)
	}
	if g.Defaults.Units != "mm" {
		t.Errorf("default units = %q, want %q", g.Defaults.Units, "mm")
	}
	if g.NodeCount() != 0 {
		t.Errorf("empty graph should have 0 nodes, got %d", g.NodeCount())
	}
}

func TestAddNodeAndLookup(t *testing.T) {
	g := New()

	id := NewNodeID("defsolid/block")
	node := &Node{
		ID:   id,
		Kind: NodePrimitive,
		Name: "block",
		Data: PrimitiveData{Prim: PrimBox, Size: Vec3{400, 200, 19}},
	}
	g.AddNode(node)
	g.AddRoot(id)

	if g.NodeCount() != 1 {
		t.Errorf("node count = %d, want 1", g.NodeCount())
	}

	found := g.Lookup("block")
	if found == nil {
		t.Fatal("Lookup(\"block\") returned nil")
	}
	if found.ID != id {
		t.Errorf("Lookup() returned wrong node")
	}
	if must := g.MustLookup("block"); must.ID != id {
		t.Errorf("MustLookup() returned wrong node")
	}
	if g.Get(id) != node {
		t.Errorf("Get() returned wrong node")
	}
	if g.Lookup("missing") != nil {
		t.Errorf("Lookup(\"missing\") should be nil")
	}
	if len(g.Roots) != 1 || g.Roots[0] != id {
		t.Errorf("Roots = %v, want [%v]", g.Roots, id)
	}
}

func TestMustLookupPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustLookup on missing name should panic")
		}
	}()
	New().MustLookup("nothing")
}

func TestOfKindAndChildren(t *testing.T) {
	g := New()
	a := &Node{ID: NewNodeID("a"), Kind: NodePrimitive, Data: PrimitiveData{Prim: PrimSphere, Radius: 1}}
	b := &Node{ID: NewNodeID("b"), Kind: NodePrimitive, Data: PrimitiveData{Prim: PrimBox, Size: Vec3{1, 1, 1}}}
	u := &Node{
		ID:       NewNodeID("u"),
		Kind:     NodeBoolean,
		Children: []NodeID{a.ID, b.ID, NewNodeID("dangling")},
		Data:     BooleanData{Op: OpUnion},
	}
	for _, n := range []*Node{a, b, u} {
		g.AddNode(n)
	}

	if got := len(g.OfKind(NodePrimitive)); got != 2 {
		t.Errorf("OfKind(NodePrimitive) has %d nodes, want 2", got)
	}
	if got := len(g.OfKind(NodeGroup)); got != 0 {
		t.Errorf("OfKind(NodeGroup) has %d nodes, want 0", got)
	}
	children := g.Children(u)
	if len(children) != 2 || children[0] != a || children[1] != b {
		t.Errorf("Children() = %v, want [a b]", children)
	}
}

func TestNodeID(t *testing.T) {
	a := NewNodeID("part/a")
	if a != NewNodeID("part/a") {
		t.Error("NewNodeID should be deterministic")
	}
	if a == NewNodeID("part/b") {
		t.Error("different paths should give different IDs")
	}
	if a.IsZero() || !ZeroID.IsZero() {
		t.Error("IsZero() mismatch")
	}
	if got := a.Short(); len(got) != 8 || got != a.String()[:8] {
		t.Errorf("Short() = %q, want prefix of %q", got, a.String())
	}

	text, err := a.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error: %v", err)
	}
	var back NodeID
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText() error: %v", err)
	}
	if back != a {
		t.Errorf("UnmarshalText() = %v, want %v", back, a)
	}
	if err := back.UnmarshalText([]byte("not-a-uuid")); err == nil {
		t.Error("UnmarshalText(garbage) should fail")
	}
}

func TestSceneJSON(t *testing.T) {
	g := New()
	id := NewNodeID("s")
	g.AddNode(&Node{ID: id, Kind: NodePrimitive, Name: "s", Data: PrimitiveData{Prim: PrimSphere, Radius: 2}})
	g.AddRoot(id)

	b, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var raw struct {
		Roots     []string          `json:"roots"`
		NameIndex map[string]string `json:"name_index"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(raw.Roots) != 1 || raw.Roots[0] != id.String() {
		t.Errorf("roots = %v, want [%s]", raw.Roots, id)
	}
	if raw.NameIndex["s"] != id.String() {
		t.Errorf("name_index[s] = %q, want %q", raw.NameIndex["s"], id)
	}
}

func TestStringers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{NodePrimitive.String(), "primitive"},
		{NodeTransform.String(), "transform"},
		{NodeBoolean.String(), "boolean"},
		{NodeGroup.String(), "group"},
		{NodeKind(42).String(), "unknown"},
		{PrimBox.String(), "box"},
		{PrimCylinder.String(), "cylinder"},
		{PrimSphere.String(), "sphere"},
		{OpUnion.String(), "union"},
		{OpIntersect.String(), "intersect"},
		{OpCut.String(), "cut"},
		{OpSection.String(), "section"},
		{BooleanOp(9).String(), "BooleanOp(9)"},
		{SeverityError.String(), "error"},
		{SeverityWarning.String(), "warning"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}
