package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: n.p + d = 0.
// Points with a positive signed distance lie on the inner side.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// SignedDistance returns the signed distance from p to the plane.
func (p Plane) SignedDistance(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustum extracts frustum planes from a view-projection matrix whose clip
// depth range is [0, 1], using the Gribb/Hartmann method.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the combined projection * view matrix
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustum(viewProj mgl32.Mat4) Frustum {
	var f Frustum
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	planes := [6]mgl32.Vec4{
		r3.Add(r0),
		r3.Sub(r0),
		r3.Add(r1),
		r3.Sub(r1),
		r2, // zero-to-one depth: the near plane is z >= 0
		r3.Sub(r2),
	}
	for i, p := range planes {
		f.Planes[i] = normalizePlane(p)
	}
	return f
}

func normalizePlane(p mgl32.Vec4) Plane {
	n := p.Vec3()
	l := n.Len()
	if l == 0 {
		return Plane{Normal: n, Distance: p.W()}
	}
	return Plane{Normal: n.Mul(1 / l), Distance: p.W() / l}
}

// ContainsPoint reports whether point lies inside (or on) every plane.
func (f Frustum) ContainsPoint(point mgl32.Vec3) bool {
	for _, p := range f.Planes {
		if p.SignedDistance(point) < 0 {
			return false
		}
	}
	return true
}

// IntersectsAABB reports whether the box is at least partially inside the frustum.
// Uses the positive-vertex test, which may report false positives near frustum corners.
func (f Frustum) IntersectsAABB(box AABB) bool {
	for _, p := range f.Planes {
		positive := box.Min
		for axis := 0; axis < 3; axis++ {
			if p.Normal[axis] >= 0 {
				positive[axis] = box.Max[axis]
			}
		}
		if p.SignedDistance(positive) < 0 {
			return false
		}
	}
	return true
}
