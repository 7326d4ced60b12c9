package shader

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/common"
)

// CubeFace is the view basis of one point shadow face.
type CubeFace struct {
	Forward mgl32.Vec3
	Up      mgl32.Vec3
}

// CubeFaces are the six point shadow faces in layer order: +X, -X, +Y, -Y, +Z, -Z.
var CubeFaces = [6]CubeFace{
	{Forward: mgl32.Vec3{1, 0, 0}, Up: mgl32.Vec3{0, -1, 0}},
	{Forward: mgl32.Vec3{-1, 0, 0}, Up: mgl32.Vec3{0, -1, 0}},
	{Forward: mgl32.Vec3{0, 1, 0}, Up: mgl32.Vec3{0, 0, 1}},
	{Forward: mgl32.Vec3{0, -1, 0}, Up: mgl32.Vec3{0, 0, -1}},
	{Forward: mgl32.Vec3{0, 0, 1}, Up: mgl32.Vec3{0, -1, 0}},
	{Forward: mgl32.Vec3{0, 0, -1}, Up: mgl32.Vec3{0, -1, 0}},
}

// CubeFaceIndex returns the face whose axis dominates v.
func CubeFaceIndex(v mgl32.Vec3) int {
	a := mgl32.Vec3{math32.Abs(v.X()), math32.Abs(v.Y()), math32.Abs(v.Z())}
	switch {
	case a.X() >= a.Y() && a.X() >= a.Z():
		if v.X() > 0 {
			return 0
		}
		return 1
	case a.Y() >= a.Z():
		if v.Y() > 0 {
			return 2
		}
		return 3
	default:
		if v.Z() > 0 {
			return 4
		}
		return 5
	}
}

// ViewProj returns the 90 degree view-projection of the face seen from position.
func (f CubeFace) ViewProj(position mgl32.Vec3, near, far float32) mgl32.Mat4 {
	view := common.LookAt(position, position.Add(f.Forward), f.Up)
	return common.Perspective(mgl32.DegToRad(90), 1, near, far).Mul4(view)
}

// Project maps an offset from the light onto the face's texel grid. The bool is false when
// d is behind the face.
func (f CubeFace) Project(d mgl32.Vec3, width, height int) (float32, float32, bool) {
	x := f.Forward.Cross(f.Up).Normalize()
	y := x.Cross(f.Forward)
	depth := d.Dot(f.Forward)
	if depth <= 0 {
		return 0, 0, false
	}
	nx := d.Dot(x) / depth
	ny := d.Dot(y) / depth
	return (nx*0.5 + 0.5) * float32(width), (0.5 - ny*0.5) * float32(height), true
}
