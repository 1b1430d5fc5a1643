// Package kernel defines the abstract geometry kernel interface.
// Implementations (brep, sdfx) provide solid modeling and boolean
// operations behind this interface. The brep kernel is exact; the sdfx
// kernel works on signed distance fields and serves as a volumetric oracle
// for it.
package kernel

import "errors"

// ErrForeignSolid is returned when a kernel is handed a solid built by a
// different kernel.
var ErrForeignSolid = errors.New("kernel: solid from another kernel")

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
	// Contains reports whether p lies inside the solid or on its boundary.
	Contains(p [3]float64) (bool, error)
	// Empty reports whether the solid has no material.
	Empty() bool
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives. Boxes have their minimum corner at the origin; cylinders
	// and spheres are centred on it, cylinders along Z.
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error)
	Sphere(radius float64) (Solid, error)

	// Boolean operations
	Union(a, b Solid) (Solid, error)
	Difference(a, b Solid) (Solid, error)
	Intersection(a, b Solid) (Solid, error)

	// Transforms
	Translate(s Solid, x, y, z float64) (Solid, error)
	Rotate(s Solid, x, y, z float64) (Solid, error) // Euler angles in degrees
}

// Empty returns a solid with no material for kernels that need a neutral
// element, e.g. the union of an empty group.
func Empty(k Kernel) (Solid, error) {
	if e, ok := k.(interface{ Empty() Solid }); ok {
		return e.Empty(), nil
	}
	return nil, errors.New("kernel: no empty solid")
}
