package graph

import "fmt"

// ValidationSeverity indicates whether a validation finding blocks evaluation
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks evaluation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// Validate runs all structural and dimensional checks on the scene graph
// and returns the findings. No error-severity finding means the graph can
// be evaluated. This function is read-only and never mutates the graph.
func Validate(g *Scene) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateNames(g)...)
	errs = append(errs, validateRoots(g)...)
	errs = append(errs, validateArity(g)...)
	errs = append(errs, validateDimensions(g)...)
	return errs
}

// HasErrors reports whether errs contains an error-severity finding.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// validateDAG checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
// If we encounter a gray node during traversal, we have found a cycle.
func validateDAG(g *Scene) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int) // default zero = white
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id.Short()),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray

		node, ok := g.Nodes[id]
		if !ok {
			// Dangling reference; handled by validateReferences.
			color[id] = black
			return false
		}

		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}

		color[id] = black
		return false
	}

	// Start DFS from every node to catch disconnected components.
	for id := range g.Nodes {
		if color[id] == white {
			if visit(id) {
				// One cycle error is sufficient; stop early.
				break
			}
		}
	}

	return errs
}

// validateReferences checks that every child reference points to a node
// that exists in g.Nodes.
func validateReferences(g *Scene) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Nodes {
		for _, childID := range node.Children {
			if _, ok := g.Nodes[childID]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("child reference %s does not exist", childID.Short()),
					Severity: SeverityError,
				})
			}
		}
	}

	return errs
}

// validateNames checks that the NameIndex is injective (no two nodes share the
// same name) and that every entry in NameIndex points to an existing node.
func validateNames(g *Scene) []ValidationError {
	var errs []ValidationError

	for name, id := range g.NameIndex {
		if _, ok := g.Nodes[id]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, id.Short()),
				Severity: SeverityError,
			})
		}
	}

	nameToNodes := make(map[string][]NodeID)
	for id, node := range g.Nodes {
		if node.Name != "" {
			nameToNodes[node.Name] = append(nameToNodes[node.Name], id)
		}
	}
	for name, ids := range nameToNodes {
		if len(ids) > 1 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes", name, len(ids)),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// validateRoots checks that every root ID references an existing node and
// warns about orphan nodes (nodes unreachable from any root).
func validateRoots(g *Scene) []ValidationError {
	var errs []ValidationError

	for _, rid := range g.Roots {
		if _, ok := g.Nodes[rid]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", rid.Short()),
				Severity: SeverityError,
			})
		}
	}

	if len(g.Nodes) == 0 {
		return errs
	}

	// Orphan detection: BFS from all roots through Children edges.
	reachable := make(map[NodeID]bool)
	queue := make([]NodeID, 0, len(g.Roots))
	for _, rid := range g.Roots {
		if _, ok := g.Nodes[rid]; ok && !reachable[rid] {
			reachable[rid] = true
			queue = append(queue, rid)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Nodes[current]
		if node == nil {
			continue
		}
		for _, childID := range node.Children {
			if !reachable[childID] {
				reachable[childID] = true
				queue = append(queue, childID)
			}
		}
	}

	for id, node := range g.Nodes {
		if !reachable[id] {
			name := node.Name
			if name == "" {
				name = id.Short()
			}
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("node %q is not reachable from any root (orphan)", name),
				Severity: SeverityWarning,
			})
		}
	}

	return errs
}

// validateArity checks each node's child count and that its data matches
// its kind.
func validateArity(g *Scene) []ValidationError {
	var errs []ValidationError
	add := func(n *Node, format string, args ...any) {
		errs = append(errs, ValidationError{
			NodeID:   n.ID,
			Message:  fmt.Sprintf(format, args...),
			Severity: SeverityError,
		})
	}

	for _, node := range g.Nodes {
		n := len(node.Children)
		switch node.Kind {
		case NodePrimitive:
			if _, ok := node.Data.(PrimitiveData); !ok {
				add(node, "primitive node carries %T", node.Data)
			}
			if n != 0 {
				add(node, "primitive has %d children, want none", n)
			}
		case NodeTransform:
			if _, ok := node.Data.(TransformData); !ok {
				add(node, "transform node carries %T", node.Data)
			}
			if n != 1 {
				add(node, "transform has %d children, want 1", n)
			}
		case NodeBoolean:
			if _, ok := node.Data.(BooleanData); !ok {
				add(node, "boolean node carries %T", node.Data)
			}
			if n < 2 {
				add(node, "boolean has %d children, want at least 2", n)
			}
		case NodeGroup:
			if _, ok := node.Data.(GroupData); !ok {
				add(node, "group node carries %T", node.Data)
			}
		default:
			add(node, "unknown node kind %d", int(node.Kind))
		}
	}

	return errs
}

// validateDimensions checks that primitives have positive sizes and that
// boolean fuzzy tolerances are not negative.
func validateDimensions(g *Scene) []ValidationError {
	var errs []ValidationError
	add := func(n *Node, format string, args ...any) {
		errs = append(errs, ValidationError{
			NodeID:   n.ID,
			Message:  fmt.Sprintf(format, args...),
			Severity: SeverityError,
		})
	}

	for _, node := range g.Nodes {
		switch d := node.Data.(type) {
		case PrimitiveData:
			switch d.Prim {
			case PrimBox:
				for _, c := range []struct {
					axis string
					v    float64
				}{{"X", d.Size.X}, {"Y", d.Size.Y}, {"Z", d.Size.Z}} {
					if c.v <= 0 {
						add(node, "box dimension %s is %.4f, must be positive", c.axis, c.v)
					}
				}
			case PrimCylinder:
				if d.Height <= 0 {
					add(node, "cylinder height is %.4f, must be positive", d.Height)
				}
				fallthrough
			case PrimSphere:
				if d.Radius <= 0 {
					add(node, "%s radius is %.4f, must be positive", d.Prim, d.Radius)
				}
			default:
				add(node, "unknown primitive kind %d", int(d.Prim))
			}
		case BooleanData:
			if d.Fuzzy < 0 {
				add(node, "fuzzy tolerance is %g, must not be negative", d.Fuzzy)
			}
			if d.Op < OpUnion || d.Op > OpSection {
				add(node, "unknown boolean operation %d", int(d.Op))
			}
		}
	}

	return errs
}
