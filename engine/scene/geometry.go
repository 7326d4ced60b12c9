package scene

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

var nextGeometryID atomic.Uint64

// Geometry is an immutable indexed mesh in object space. Renderers cache their GPU
// meshes by ID, so a Geometry must not be mutated after creation.
type Geometry struct {
	ID        uint64
	Label     string
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
	Topology  gpu.Topology
	Bounds    common.AABB
}

// NewGeometry creates a Geometry and computes its bounds. Normals may be nil for
// point lists; for triangle lists they must match the position count.
//
// Parameters:
//   - label: debug name
//   - positions: object-space vertex positions
//   - normals: per-vertex normals
//   - indices: vertex indices; nil draws the vertices in order
//   - topology: the primitive topology
//
// Returns:
//   - *Geometry: the new geometry
func NewGeometry(label string, positions, normals []mgl32.Vec3, indices []uint32, topology gpu.Topology) *Geometry {
	if len(positions) == 0 {
		panic("scene: geometry " + label + " has no vertices")
	}
	if normals != nil && len(normals) != len(positions) {
		panic("scene: geometry " + label + " normal count does not match positions")
	}
	if normals == nil {
		normals = make([]mgl32.Vec3, len(positions))
		for i := range normals {
			normals[i] = mgl32.Vec3{0, 1, 0}
		}
	}
	if indices == nil {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for _, idx := range indices {
		if int(idx) >= len(positions) {
			panic("scene: geometry " + label + " index out of range")
		}
	}
	return &Geometry{
		ID:        nextGeometryID.Add(1),
		Label:     label,
		Positions: positions,
		Normals:   normals,
		Indices:   indices,
		Topology:  topology,
		Bounds:    common.AABBFromPoints(positions),
	}
}

// Descriptor converts the geometry into a device mesh descriptor.
func (g *Geometry) Descriptor() gpu.MeshDescriptor {
	return gpu.MeshDescriptor{
		Label:     g.Label,
		Positions: g.Positions,
		Normals:   g.Normals,
		Indices:   g.Indices,
		Topology:  g.Topology,
	}
}

// Cube returns an axis-aligned cube of the given side length centred on the origin,
// with one flat normal per face.
func Cube(size float32) *Geometry {
	h := size * 0.5
	faces := []struct {
		normal mgl32.Vec3
		u, v   mgl32.Vec3
	}{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}

	positions := make([]mgl32.Vec3, 0, 24)
	normals := make([]mgl32.Vec3, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(positions))
		c := f.normal.Mul(h)
		u := f.u.Mul(h)
		v := f.v.Mul(h)
		positions = append(positions,
			c.Sub(u).Sub(v),
			c.Add(u).Sub(v),
			c.Add(u).Add(v),
			c.Sub(u).Add(v),
		)
		normals = append(normals, f.normal, f.normal, f.normal, f.normal)
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return NewGeometry("cube", positions, normals, indices, gpu.TopologyTriangleList)
}

// Plane returns a square in the XZ plane facing +Y with the given side length.
func Plane(size float32) *Geometry {
	h := size * 0.5
	positions := []mgl32.Vec3{{-h, 0, h}, {h, 0, h}, {h, 0, -h}, {-h, 0, -h}}
	up := mgl32.Vec3{0, 1, 0}
	normals := []mgl32.Vec3{up, up, up, up}
	return NewGeometry("plane", positions, normals, []uint32{0, 1, 2, 0, 2, 3}, gpu.TopologyTriangleList)
}

// Quad returns a square in the XY plane facing +Z with the given side length.
func Quad(size float32) *Geometry {
	h := size * 0.5
	positions := []mgl32.Vec3{{-h, -h, 0}, {h, -h, 0}, {h, h, 0}, {-h, h, 0}}
	fwd := mgl32.Vec3{0, 0, 1}
	normals := []mgl32.Vec3{fwd, fwd, fwd, fwd}
	return NewGeometry("quad", positions, normals, []uint32{0, 1, 2, 0, 2, 3}, gpu.TopologyTriangleList)
}

// Points returns a point list, used for particles.
func Points(positions []mgl32.Vec3) *Geometry {
	return NewGeometry("points", positions, nil, nil, gpu.TopologyPointList)
}
