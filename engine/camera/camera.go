package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Projection selects the projection model of a camera.
type Projection int

const (
	// ProjectionPerspective is a symmetric perspective projection defined by Fov and Aspect.
	ProjectionPerspective Projection = iota

	// ProjectionOrthographic is an orthographic projection defined by OrthoHeight and Aspect.
	ProjectionOrthographic
)

// cameraImpl is the implementation of the Camera interface.
type cameraImpl struct {
	mu *sync.RWMutex

	position mgl32.Vec3
	target   mgl32.Vec3
	up       mgl32.Vec3

	projection  Projection
	fov         float32
	aspect      float32
	near        float32
	far         float32
	orthoHeight float32

	controller CameraController
}

// Camera is the mutable main camera owned by the scene graph. The render technique never
// reads it directly; it consumes the frozen View taken when the scene snapshot is built.
type Camera interface {
	// Position returns the eye position in world space.
	Position() mgl32.Vec3

	// Target returns the point the camera looks at.
	Target() mgl32.Vec3

	// Up returns the preferred up vector.
	Up() mgl32.Vec3

	// Projection returns the projection model.
	Projection() Projection

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the width / height ratio.
	Aspect() float32

	// Near returns the near clip distance.
	Near() float32

	// Far returns the far clip distance.
	Far() float32

	// LookAt moves the camera to eye looking towards target.
	//
	// Parameters:
	//   - eye: the new position
	//   - target: the new look-at point
	LookAt(eye, target mgl32.Vec3)

	// SetAspect updates the aspect ratio, typically after a resize.
	//
	// Parameters:
	//   - aspect: the new width / height ratio
	SetAspect(aspect float32)

	// SetFov updates the vertical field of view.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetClip updates the near and far clip distances.
	//
	// Parameters:
	//   - near: near clip distance, must be > 0
	//   - far: far clip distance, must be > near
	SetClip(near, far float32)

	// Controller returns the attached controller, or nil.
	Controller() CameraController

	// Update advances the attached controller by deltaTime seconds and applies it.
	//
	// Parameters:
	//   - deltaTime: elapsed simulation time in seconds
	Update(deltaTime float32)

	// View freezes the camera into an immutable View.
	//
	// Returns:
	//   - View: the current view and projection state
	View() View
}

var _ Camera = &cameraImpl{}

// NewCamera creates a perspective camera at (0, 0, 5) looking at the origin with
// a 60 degree field of view, unless overridden by options.
//
// Parameters:
//   - options: functional options for camera configuration
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:          &sync.RWMutex{},
		position:    mgl32.Vec3{0, 0, 5},
		up:          mgl32.Vec3{0, 1, 0},
		projection:  ProjectionPerspective,
		fov:         mgl32.DegToRad(60),
		aspect:      16.0 / 9.0,
		near:        0.1,
		far:         500,
		orthoHeight: 10,
	}

	for _, option := range options {
		option(c)
	}

	if c.controller != nil {
		c.controller.Apply(c)
	}

	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.up
}

func (c *cameraImpl) Projection() Projection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.projection
}

func (c *cameraImpl) Fov() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.far
}

func (c *cameraImpl) LookAt(eye, target mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = eye
	c.target = target
}

func (c *cameraImpl) SetAspect(aspect float32) {
	if aspect <= 0 || math32.IsNaN(aspect) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
}

func (c *cameraImpl) SetClip(near, far float32) {
	if near <= 0 || far <= near {
		panic("camera: clip planes must satisfy 0 < near < far")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.far = far
}

func (c *cameraImpl) Controller() CameraController {
	return c.controller
}

func (c *cameraImpl) Update(deltaTime float32) {
	if c.controller == nil {
		return
	}
	c.controller.Advance(deltaTime)
	c.controller.Apply(c)
}

func (c *cameraImpl) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	viewMatrix := common.LookAt(c.position, c.target, c.up)
	p := viewParams{
		projection:  c.projection,
		fov:         c.fov,
		aspect:      c.aspect,
		near:        c.near,
		far:         c.far,
		orthoHeight: c.orthoHeight,
	}
	return newView(c.position, viewMatrix, p.matrix(), p)
}
