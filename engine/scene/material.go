package scene

import "github.com/go-gl/mathgl/mgl32"

// Material is the surface description consumed by the opaque and transparent passes.
type Material struct {
	Name      string
	BaseColor mgl32.Vec3

	// Opacity is the coverage of a transparent surface in [0, 1]. Opaque materials ignore it.
	Opacity float32

	// Transparent routes items to the transparent queue instead of the opaque one.
	Transparent bool

	// CastsShadows includes items in shadow caster queues.
	CastsShadows bool

	// Unlit skips light evaluation; used for particles and emissive surfaces.
	Unlit bool
}

// NewOpaqueMaterial returns a lit, shadow casting opaque material.
func NewOpaqueMaterial(name string, color mgl32.Vec3) *Material {
	return &Material{Name: name, BaseColor: color, Opacity: 1, CastsShadows: true}
}

// NewTransparentMaterial returns a lit transparent material with the given opacity.
func NewTransparentMaterial(name string, color mgl32.Vec3, opacity float32) *Material {
	return &Material{Name: name, BaseColor: color, Opacity: opacity, Transparent: true, CastsShadows: true}
}
