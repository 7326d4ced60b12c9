package camera

import (
	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// View is an immutable camera state: matrices plus the parameters they were built from.
// Views are produced by Camera.View for the main camera and by the shadow passes for
// light cameras, and are safe to share between goroutines.
type View struct {
	Position mgl32.Vec3
	Forward  mgl32.Vec3
	Right    mgl32.Vec3
	Up       mgl32.Vec3

	ViewMatrix     mgl32.Mat4
	Projection     mgl32.Mat4
	ViewProjection mgl32.Mat4

	Kind        Projection
	Fov         float32
	Aspect      float32
	Near        float32
	Far         float32
	OrthoHeight float32
}

type viewParams struct {
	projection  Projection
	fov         float32
	aspect      float32
	near        float32
	far         float32
	orthoHeight float32
}

func (p viewParams) matrix() mgl32.Mat4 {
	if p.projection == ProjectionOrthographic {
		h := p.orthoHeight * 0.5
		w := h * p.aspect
		return common.Ortho(-w, w, -h, h, p.near, p.far)
	}
	return common.Perspective(p.fov, p.aspect, p.near, p.far)
}

func newView(position mgl32.Vec3, viewMatrix, proj mgl32.Mat4, p viewParams) View {
	// Rows of the view rotation are the camera basis in world space.
	right := mgl32.Vec3{viewMatrix.At(0, 0), viewMatrix.At(0, 1), viewMatrix.At(0, 2)}
	up := mgl32.Vec3{viewMatrix.At(1, 0), viewMatrix.At(1, 1), viewMatrix.At(1, 2)}
	back := mgl32.Vec3{viewMatrix.At(2, 0), viewMatrix.At(2, 1), viewMatrix.At(2, 2)}

	return View{
		Position:       position,
		Forward:        back.Mul(-1),
		Right:          right,
		Up:             up,
		ViewMatrix:     viewMatrix,
		Projection:     proj,
		ViewProjection: proj.Mul4(viewMatrix),
		Kind:           p.projection,
		Fov:            p.fov,
		Aspect:         p.aspect,
		Near:           p.near,
		Far:            p.far,
		OrthoHeight:    p.orthoHeight,
	}
}

// NewPerspectiveView builds a perspective view looking from eye along forward.
//
// Parameters:
//   - eye: the view origin
//   - forward: the view direction
//   - up: the preferred up vector
//   - fov: vertical field of view in radians
//   - aspect: width / height
//   - near, far: clip distances
//
// Returns:
//   - View: the assembled view
func NewPerspectiveView(eye, forward, up mgl32.Vec3, fov, aspect, near, far float32) View {
	viewMatrix := common.LookAt(eye, eye.Add(forward), up)
	proj := common.Perspective(fov, aspect, near, far)
	return newView(eye, viewMatrix, proj, viewParams{
		projection: ProjectionPerspective,
		fov:        fov,
		aspect:     aspect,
		near:       near,
		far:        far,
	})
}

// NewOrthographicView builds a square orthographic view looking from eye along forward
// that covers [-halfExtent, halfExtent] on both axes.
//
// Parameters:
//   - eye: the view origin
//   - forward: the view direction
//   - up: the preferred up vector
//   - halfExtent: half the side of the covered square
//   - near, far: clip distances
//
// Returns:
//   - View: the assembled view
func NewOrthographicView(eye, forward, up mgl32.Vec3, halfExtent, near, far float32) View {
	viewMatrix := common.LookAt(eye, eye.Add(forward), up)
	proj := common.Ortho(-halfExtent, halfExtent, -halfExtent, halfExtent, near, far)
	return newView(eye, viewMatrix, proj, viewParams{
		projection:  ProjectionOrthographic,
		aspect:      1,
		near:        near,
		far:         far,
		orthoHeight: halfExtent * 2,
	})
}

// WithAspect returns v with its projection rebuilt for a new width / height ratio.
func (v View) WithAspect(aspect float32) View {
	if aspect == v.Aspect {
		return v
	}
	p := viewParams{
		projection:  v.Kind,
		fov:         v.Fov,
		aspect:      aspect,
		near:        v.Near,
		far:         v.Far,
		orthoHeight: v.OrthoHeight,
	}
	return newView(v.Position, v.ViewMatrix, p.matrix(), p)
}

// Frustum returns the culling frustum of the view.
func (v View) Frustum() common.Frustum {
	return common.ExtractFrustum(v.ViewProjection)
}

// Depth returns the view-space depth of p, positive in front of the view.
func (v View) Depth(p mgl32.Vec3) float32 {
	return p.Sub(v.Position).Dot(v.Forward)
}

// Corners returns the eight world-space corners of the frustum slice between the
// view depths near and far, near corners first.
//
// Parameters:
//   - near: the slice start depth
//   - far: the slice end depth
//
// Returns:
//   - [8]mgl32.Vec3: the slice corners
func (v View) Corners(near, far float32) [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i, d := range [2]float32{near, far} {
		var halfH float32
		if v.Kind == ProjectionOrthographic {
			halfH = v.OrthoHeight * 0.5
		} else {
			halfH = d * math32.Tan(v.Fov*0.5)
		}
		halfW := halfH * v.Aspect
		center := v.Position.Add(v.Forward.Mul(d))
		r := v.Right.Mul(halfW)
		u := v.Up.Mul(halfH)

		out[i*4+0] = center.Sub(r).Sub(u)
		out[i*4+1] = center.Add(r).Sub(u)
		out[i*4+2] = center.Add(r).Add(u)
		out[i*4+3] = center.Sub(r).Add(u)
	}
	return out
}
