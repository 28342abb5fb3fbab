// Package preview builds the object a material is shown on. The mesh is
// tessellated by a geometry kernel and given texture coordinates scaled by
// the material's tiling.
package preview

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/matgraph/pkg/kernel"
)

// Shape names a preview object.
type Shape string

const (
	ShapeSphere   Shape = "sphere"
	ShapeCube     Shape = "cube"
	ShapeCylinder Shape = "cylinder"
)

// Preview object dimensions.
const (
	sphereRadius   = 1.0
	cubeSize       = 1.6
	cylinderHeight = 2.0
	cylinderRadius = 0.8
)

// Shapes returns every preview shape.
func Shapes() []Shape { return []Shape{ShapeSphere, ShapeCube, ShapeCylinder} }

// ParseShape maps a name to a Shape, ignoring case.
func ParseShape(s string) (Shape, error) {
	for _, sh := range Shapes() {
		if strings.EqualFold(s, string(sh)) {
			return sh, nil
		}
	}
	return "", fmt.Errorf("preview: unknown shape %q", s)
}

// Build tessellates shape with k and fills in UVs multiplied by tiling.
func Build(k kernel.Kernel, shape Shape, tiling [2]float32) (*kernel.Mesh, error) {
	var (
		solid kernel.Solid
		err   error
		uv    func(p, n [3]float32) (float32, float32)
	)
	switch shape {
	case ShapeSphere:
		solid, err = k.Sphere(sphereRadius)
		uv = sphereUV
	case ShapeCube:
		solid, err = k.Box(cubeSize, cubeSize, cubeSize)
		uv = cubeUV
	case ShapeCylinder:
		solid, err = k.Cylinder(cylinderHeight, cylinderRadius)
		uv = cylinderUV
	default:
		return nil, fmt.Errorf("preview: unknown shape %q", shape)
	}
	if err != nil {
		return nil, fmt.Errorf("preview: build %s: %w", shape, err)
	}

	mesh, err := k.ToMesh(solid)
	if err != nil {
		return nil, fmt.Errorf("preview: tessellate %s: %w", shape, err)
	}
	mesh.Name = string(shape)

	mesh.UVs = make([]float32, 0, mesh.VertexCount()*2)
	for i := 0; i < mesh.VertexCount(); i++ {
		var n [3]float32
		if len(mesh.Normals) >= 3*(i+1) {
			n = mesh.Normal(i)
		}
		u, v := uv(mesh.Vertex(i), n)
		mesh.UVs = append(mesh.UVs, u*tiling[0], v*tiling[1])
	}
	return mesh, nil
}

// sphereUV is an equirectangular projection around Y.
func sphereUV(p, _ [3]float32) (float32, float32) {
	x, y, z := float64(p[0]), float64(p[1]), float64(p[2])
	r := math.Sqrt(x*x + y*y + z*z)
	if r == 0 {
		return 0.5, 0.5
	}
	u := 0.5 + math.Atan2(z, x)/(2*math.Pi)
	v := 0.5 - math.Asin(clamp(y/r, -1, 1))/math.Pi
	return float32(u), float32(v)
}

// cubeUV projects each face along its dominant normal axis.
func cubeUV(p, n [3]float32) (float32, float32) {
	ax, ay, az := abs32(n[0]), abs32(n[1]), abs32(n[2])
	a, b := p[0], p[1]
	switch {
	case ax >= ay && ax >= az:
		a, b = p[2], p[1]
	case ay >= az:
		a, b = p[0], p[2]
	}
	return a/cubeSize + 0.5, b/cubeSize + 0.5
}

// cylinderUV wraps the side around Z and projects the caps flat.
func cylinderUV(p, n [3]float32) (float32, float32) {
	if abs32(n[2]) > 0.9 {
		return p[0]/(2*cylinderRadius) + 0.5, p[1]/(2*cylinderRadius) + 0.5
	}
	u := 0.5 + math.Atan2(float64(p[1]), float64(p[0]))/(2*math.Pi)
	return float32(u), p[2]/cylinderHeight + 0.5
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
