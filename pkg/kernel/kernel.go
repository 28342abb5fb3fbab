// Package kernel defines the geometry kernel used to build material preview
// objects. Implementations wrap a solid modeling backend behind this
// interface so previews do not depend on a particular library.
package kernel

// Solid is an opaque handle to a kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel builds preview solids centred on the origin and tessellates them.
type Kernel interface {
	Sphere(radius float64) (Solid, error)
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error)

	// ToMesh tessellates s. Texture coordinates are left empty.
	ToMesh(s Solid) (*Mesh, error)
}
