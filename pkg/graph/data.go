package graph

import "fmt"

// Vec3 is a point or direction in model space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// PrimitiveKind distinguishes between primitive shapes.
type PrimitiveKind int

const (
	PrimBox      PrimitiveKind = iota // minimum corner at the origin
	PrimCylinder                      // along Z, centred on the origin
	PrimSphere                        // centred on the origin
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimBox:
		return "box"
	case PrimCylinder:
		return "cylinder"
	case PrimSphere:
		return "sphere"
	default:
		return "unknown"
	}
}

// PrimitiveData describes a primitive solid. Size is used by boxes,
// Radius by cylinders and spheres, Height by cylinders.
type PrimitiveData struct {
	Prim   PrimitiveKind `json:"prim"`
	Size   Vec3          `json:"size,omitzero"`
	Radius float64       `json:"radius,omitempty"`
	Height float64       `json:"height,omitempty"`
}

func (PrimitiveData) nodeData() {}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData represents a rigid motion applied to its single child.
// Rotation is applied before translation. Created by the (place ...) form.
type TransformData struct {
	Translation *Vec3 `json:"translation,omitempty"`
	Rotation    *Vec3 `json:"rotation,omitempty"` // Euler angles in degrees
}

func (TransformData) nodeData() {}

// ---------------------------------------------------------------------------
// Boolean
// ---------------------------------------------------------------------------

// BooleanOp enumerates the set operations.
type BooleanOp int

const (
	OpUnion BooleanOp = iota
	OpIntersect
	OpCut // first child minus the others
	OpSection
)

func (op BooleanOp) String() string {
	switch op {
	case OpUnion:
		return "union"
	case OpIntersect:
		return "intersect"
	case OpCut:
		return "cut"
	case OpSection:
		return "section"
	default:
		return fmt.Sprintf("BooleanOp(%d)", int(op))
	}
}

// BooleanData combines the node's children. Fuzzy, when positive,
// overrides the evaluator's fuzzy tolerance for this node.
type BooleanData struct {
	Op    BooleanOp `json:"op"`
	Fuzzy float64   `json:"fuzzy,omitempty"`
}

func (BooleanData) nodeData() {}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// GroupData represents a logical grouping. Its children are evaluated
// separately and kept apart.
// Created by the (assembly ...) Lisp form.
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}
