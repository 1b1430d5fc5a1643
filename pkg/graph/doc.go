// Package graph defines the scene graph types for kerf.
// The scene graph is an immutable DAG of primitives, transforms, boolean
// operations and groups that describes a solid model.
package graph
