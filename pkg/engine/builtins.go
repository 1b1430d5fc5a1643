package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/kerf/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms kerf Lisp source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: def-solid -> def_solid
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Semicolon line comments become // comments along the way.
// All transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	name string // human-readable name for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(solid %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a graph.Vec3.
type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value; treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toNodeRef extracts a NodeID from a sexpNodeRef.
func toNodeRef(s zygo.Sexp) (graph.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return graph.ZeroID, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}


// ---------------------------------------------------------------------------
// Node ID generation
// ---------------------------------------------------------------------------

// builder adds nodes to the graph under construction. Anonymous nodes are
// numbered per kind in evaluation order, so the same source always yields
// the same IDs.
type builder struct {
	g     *graph.Scene
	count map[string]int
}

func (b *builder) add(path string, n *graph.Node) *sexpNodeRef {
	if n.Name == "" {
		b.count[path]++
		path = fmt.Sprintf("%s/%d", path, b.count[path])
	} else {
		path += "/" + n.Name
	}
	n.ID = graph.NewNodeID(path)
	b.g.AddNode(n)
	return &sexpNodeRef{id: n.ID, name: n.Name}
}

// refs converts args to node references, flattening lists.
func refs(form string, args []zygo.Sexp) ([]graph.NodeID, error) {
	var ids []graph.NodeID
	for i, a := range args {
		switch a.(type) {
		case *zygo.SexpPair, *zygo.SexpArray:
			items, err := sexpListToSlice(a)
			if err != nil {
				return nil, fmt.Errorf("%s: operand %d: %w", form, i+1, err)
			}
			inner, err := refs(form, items)
			if err != nil {
				return nil, err
			}
			ids = append(ids, inner...)
		default:
			id, err := toNodeRef(a)
			if err != nil {
				return nil, fmt.Errorf("%s: operand %d: %w", form, i+1, err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all kerf DSL builtins into a zygomys environment.
// The builtins operate on the provided Scene, populating it during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, g *graph.Scene) {
	b := &builder{g: g, count: make(map[string]int)}

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: graph.Vec3{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (box 40 20 10) or (box :size (vec3 40 20 10))
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		pd := graph.PrimitiveData{Prim: graph.PrimBox}

		switch {
		case len(pa.positional) == 3:
			dims := []*float64{&pd.Size.X, &pd.Size.Y, &pd.Size.Z}
			for i, a := range pa.positional {
				f, err := toFloat64(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("box: dimension %d: %w", i+1, err)
				}
				*dims[i] = f
			}
		case len(pa.positional) == 0 && pa.kw["size"] != nil:
			v, err := toVec3(pa.kw["size"])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
			}
			pd.Size = v
		default:
			return zygo.SexpNull, fmt.Errorf("box requires three dimensions or :size")
		}

		return b.add("box", &graph.Node{Kind: graph.NodePrimitive, Data: pd}), nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :height 30 :radius 3)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		pd := graph.PrimitiveData{Prim: graph.PrimCylinder}

		v, ok := pa.kw["height"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("cylinder requires :height")
		}
		f, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
		}
		pd.Height = f

		v, ok = pa.kw["radius"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("cylinder requires :radius")
		}
		if pd.Radius, err = toFloat64(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}

		return b.add("cylinder", &graph.Node{Kind: graph.NodePrimitive, Data: pd}), nil
	})

	// -----------------------------------------------------------------------
	// (sphere 5) or (sphere :radius 5)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		v, ok := pa.kw["radius"]
		if !ok && len(pa.positional) == 1 {
			v, ok = pa.positional[0], true
		}
		if !ok {
			return zygo.SexpNull, fmt.Errorf("sphere requires a radius")
		}
		r, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
		}

		pd := graph.PrimitiveData{Prim: graph.PrimSphere, Radius: r}
		return b.add("sphere", &graph.Node{Kind: graph.NodePrimitive, Data: pd}), nil
	})

	// -----------------------------------------------------------------------
	// (defsolid "name" expr)
	// -----------------------------------------------------------------------
	env.AddFunction("defsolid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("defsolid requires a name and a body expression")
		}

		solidName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defsolid: name: %w", err)
		}
		if solidName == "" {
			return zygo.SexpNull, fmt.Errorf("defsolid: name must not be empty")
		}
		if g.Lookup(solidName) != nil {
			return zygo.SexpNull, fmt.Errorf("defsolid: %q is already defined", solidName)
		}
		id, err := toNodeRef(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defsolid: body: %w", err)
		}

		n := g.Get(id)
		if n.Name != "" {
			// Give an already named solid a second name through a
			// single-child group.
			return b.add("defsolid", &graph.Node{
				Kind:     graph.NodeGroup,
				Name:     solidName,
				Children: []graph.NodeID{id},
				Data:     graph.GroupData{Description: "alias of " + n.Name},
			}), nil
		}
		n.Name = solidName
		g.NameIndex[solidName] = id

		return &sexpNodeRef{id: id, name: solidName}, nil
	})

	// -----------------------------------------------------------------------
	// (solid "name")
	// -----------------------------------------------------------------------
	env.AddFunction("solid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("solid requires a name argument")
		}

		solidName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("solid: name: %w", err)
		}

		n := g.Lookup(solidName)
		if n == nil {
			return zygo.SexpNull, fmt.Errorf("solid: no solid named %q", solidName)
		}

		return &sexpNodeRef{id: n.ID, name: solidName}, nil
	})

	// -----------------------------------------------------------------------
	// (place (solid "drill") :at (vec3 20 10 5) :rotate (vec3 90 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("place requires a solid reference as first argument")
		}

		childID, err := toNodeRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: solid: %w", err)
		}

		td := graph.TransformData{}
		if v, ok := pa.kw["at"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: at: %w", err)
			}
			td.Translation = &vec
		}
		if v, ok := pa.kw["rotate"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: rotate: %w", err)
			}
			td.Rotation = &vec
		}

		return b.add("place", &graph.Node{
			Kind:     graph.NodeTransform,
			Children: []graph.NodeID{childID},
			Data:     td,
		}), nil
	})

	// -----------------------------------------------------------------------
	// (union a b ...), (intersect a b ...), (cut a b ...), (section a b ...)
	// with an optional :fuzzy tolerance. Operands may also come in lists.
	// -----------------------------------------------------------------------
	for _, op := range []graph.BooleanOp{graph.OpUnion, graph.OpIntersect, graph.OpCut, graph.OpSection} {
		form := op.String()
		env.AddFunction(form, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			bd := graph.BooleanData{Op: op}

			if v, ok := pa.kw["fuzzy"]; ok {
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: fuzzy: %w", form, err)
				}
				bd.Fuzzy = f
			}
			children, err := refs(form, pa.positional)
			if err != nil {
				return zygo.SexpNull, err
			}
			if len(children) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least two solids, got %d", form, len(children))
			}

			return b.add(form, &graph.Node{Kind: graph.NodeBoolean, Children: children, Data: bd}), nil
		})
	}

	// -----------------------------------------------------------------------
	// (assembly "name" (solid "a") (place ...) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("assembly", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("assembly requires a name argument")
		}

		asmName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("assembly: name: %w", err)
		}
		if g.Lookup(asmName) != nil {
			return zygo.SexpNull, fmt.Errorf("assembly: %q is already defined", asmName)
		}
		gd := graph.GroupData{}
		if v, ok := pa.kw["description"]; ok {
			if gd.Description, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("assembly: description: %w", err)
			}
		}

		children, err := refs("assembly", pa.positional[1:])
		if err != nil {
			return zygo.SexpNull, err
		}

		ref := b.add("assembly", &graph.Node{
			Kind:     graph.NodeGroup,
			Name:     asmName,
			Children: children,
			Data:     gd,
		})
		g.AddRoot(ref.id)

		return ref, nil
	})
}
