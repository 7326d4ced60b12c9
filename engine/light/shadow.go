package light

// Shadow map resolutions per light type, in texels per side. Scenes can override
// them through the technique's shadow options.
const (
	DirectionalShadowMapSize = 2048
	SpotShadowMapSize        = 1024
	PointShadowMapSize       = 512
)

// MaxCascades is the number of cascades the directional shadow consumer can sample.
const MaxCascades = 4

// DefaultCascadeCount is the cascade count of a new directional light.
const DefaultCascadeCount = 3

// DefaultCascadeLambda blends logarithmic (1) and uniform (0) cascade splits.
const DefaultCascadeLambda float32 = 0.75

// DefaultShadowBias is the constant depth bias applied to shadow comparisons
// to reduce shadow acne artifacts.
const DefaultShadowBias float32 = 0.002

// DefaultShadowSlopeBias is the rasterizer slope-scaled depth bias of the shadow pipelines.
const DefaultShadowSlopeBias float32 = 1.5

// DefaultCasterMargin extends directional cascades towards the light so casters
// outside the camera frustum still land in the map.
const DefaultCasterMargin float32 = 50.0

// PointShadowNear is the near plane of every point and spot shadow view. The far
// plane is the light's range.
const PointShadowNear float32 = 0.1
