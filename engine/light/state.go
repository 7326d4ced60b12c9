package light

import "github.com/go-gl/mathgl/mgl32"

// State is a frozen copy of a Light taken at the frame boundary.
type State struct {
	ID           ID
	Type         LightType
	Position     mgl32.Vec3
	Direction    mgl32.Vec3
	Color        mgl32.Vec3
	Intensity    float32
	Range        float32
	InnerCone    float32
	OuterCone    float32
	Attenuation  mgl32.Vec3
	CascadeCount int
	Enabled      bool
	CastsShadows bool
	Version      uint64
}

// ShadowCaster reports whether the light needs a shadow map this frame.
func (s State) ShadowCaster() bool {
	return s.Enabled && s.CastsShadows
}
