package technique

import (
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/technique/shadow"
)

// Options is the configuration shared by every registered technique.
type Options struct {
	Shadow shadow.Options
	Weight shader.WeightFunction

	// PostEffects are applied after the combine in this order.
	PostEffects []PostEffect
}

// TechniqueBuilderOption configures the Options of a technique under construction.
type TechniqueBuilderOption func(*Options)

func defaultOptions() Options {
	return Options{
		Shadow: shadow.DefaultOptions(),
		Weight: shader.DefaultWeightFunction,
	}
}

// WithShadowOptions replaces the shadow map options.
//
// Parameters:
//   - opts: the shadow options
//
// Returns:
//   - TechniqueBuilderOption: option function to apply
func WithShadowOptions(opts shadow.Options) TechniqueBuilderOption {
	return func(o *Options) {
		o.Shadow = opts
	}
}

// WithShadowMapSizes sets the map size of each light type in texels per side.
//
// Parameters:
//   - directional: the cascade size
//   - spot: the spot map size
//   - point: the cube face size
//
// Returns:
//   - TechniqueBuilderOption: option function to apply
func WithShadowMapSizes(directional, spot, point int) TechniqueBuilderOption {
	return func(o *Options) {
		o.Shadow.DirectionalSize = directional
		o.Shadow.SpotSize = spot
		o.Shadow.PointSize = point
	}
}

// WithCascadeLambda sets the blend between logarithmic and uniform cascade splits.
func WithCascadeLambda(lambda float32) TechniqueBuilderOption {
	return func(o *Options) {
		o.Shadow.CascadeLambda = lambda
	}
}

// WithWeightFunction selects the transparency weight policy.
//
// Parameters:
//   - w: the weight function
//
// Returns:
//   - TechniqueBuilderOption: option function to apply
func WithWeightFunction(w shader.WeightFunction) TechniqueBuilderOption {
	return func(o *Options) {
		o.Weight = w
	}
}

// WithPostEffect appends a post-effect.
func WithPostEffect(e PostEffect) TechniqueBuilderOption {
	return func(o *Options) {
		o.PostEffects = append(o.PostEffects, e)
	}
}
