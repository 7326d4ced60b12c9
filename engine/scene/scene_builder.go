package scene

import (
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithFog sets the initial fog settings.
//
// Parameters:
//   - f: the fog settings
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithFog(f Fog) SceneBuilderOption {
	return func(s *scene) {
		s.fog = f
	}
}

// WithAmbient sets the ambient light colour.
//
// Parameters:
//   - c: the ambient colour
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAmbient(c mgl32.Vec3) SceneBuilderOption {
	return func(s *scene) {
		s.ambient = c
	}
}

// WithBackground sets the colour the opaque pass clears to.
//
// Parameters:
//   - c: the background colour
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithBackground(c mgl32.Vec4) SceneBuilderOption {
	return func(s *scene) {
		s.background = c
	}
}

// WithLights registers initial lights.
//
// Parameters:
//   - lights: the lights to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		s.lights = append(s.lights, lights...)
	}
}

// WithItem adds an initial item.
//
// Parameters:
//   - geometry: the mesh to draw
//   - material: the surface
//   - transform: the world transform
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithItem(geometry *Geometry, material *Material, transform mgl32.Mat4) SceneBuilderOption {
	return func(s *scene) {
		s.addLocked(geometry, material, transform)
	}
}
