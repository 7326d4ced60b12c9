package shadow

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-technique/engine/light"
)

// Options configures the shadow maps of a Manager.
type Options struct {
	// Per light type map sizes in texels per side.
	DirectionalSize int
	SpotSize        int
	PointSize       int

	// CascadeLambda blends logarithmic (1) and uniform (0) cascade splits.
	CascadeLambda float32

	// Bias is the depth comparison bias. Point lights scale it by their range.
	Bias float32

	// DepthBias and SlopeBias are the rasteriser bias of the depth pipeline.
	DepthBias int32
	SlopeBias float32

	// CasterMargin pulls each cascade's near plane towards the light.
	CasterMargin float32

	// ShadowFar caps the camera range the cascades cover. Zero uses the camera far plane.
	ShadowFar float32
}

// DefaultOptions returns the map sizes and biases lights use unless configured.
func DefaultOptions() Options {
	return Options{
		DirectionalSize: light.DirectionalShadowMapSize,
		SpotSize:        light.SpotShadowMapSize,
		PointSize:       light.PointShadowMapSize,
		CascadeLambda:   light.DefaultCascadeLambda,
		Bias:            light.DefaultShadowBias,
		DepthBias:       2,
		SlopeBias:       light.DefaultShadowSlopeBias,
		CasterMargin:    light.DefaultCasterMargin,
	}
}

// SizeFor returns the configured map size for a light type.
func (o Options) SizeFor(t light.LightType) int {
	switch t {
	case light.LightTypeDirectional:
		return o.DirectionalSize
	case light.LightTypeSpot:
		return o.SpotSize
	default:
		return o.PointSize
	}
}

// Validate rejects sizes and ranges the maps cannot be built with.
func (o Options) Validate() error {
	for _, t := range []light.LightType{light.LightTypeDirectional, light.LightTypeSpot, light.LightTypePoint} {
		if o.SizeFor(t) <= 0 {
			return fmt.Errorf("shadow: %s map size %d must be positive", t, o.SizeFor(t))
		}
	}
	if o.CascadeLambda < 0 || o.CascadeLambda > 1 {
		return fmt.Errorf("shadow: cascade lambda %g outside [0, 1]", o.CascadeLambda)
	}
	if o.Bias < 0 || o.SlopeBias < 0 || o.CasterMargin < 0 || o.ShadowFar < 0 {
		return fmt.Errorf("shadow: biases, caster margin and shadow far must not be negative")
	}
	return nil
}
