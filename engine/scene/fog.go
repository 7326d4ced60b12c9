package scene

import "github.com/go-gl/mathgl/mgl32"

// FogMode selects the combine pipeline variant.
type FogMode int

const (
	FogDisabled FogMode = iota
	FogLinear
	FogExponential
	FogSquaredExponential
)

// FogModes lists every mode in pipeline order.
var FogModes = []FogMode{FogDisabled, FogLinear, FogExponential, FogSquaredExponential}

// String returns the configuration name of the mode.
func (m FogMode) String() string {
	switch m {
	case FogDisabled:
		return "disabled"
	case FogLinear:
		return "linear"
	case FogExponential:
		return "exponential"
	case FogSquaredExponential:
		return "squared_exponential"
	default:
		return "unknown"
	}
}

// ParseFogMode resolves a configuration name. The empty string is FogDisabled.
func ParseFogMode(s string) (FogMode, bool) {
	if s == "" {
		return FogDisabled, true
	}
	for _, m := range FogModes {
		if m.String() == s {
			return m, true
		}
	}
	return FogDisabled, false
}

// Fog describes distance fog applied in the combine pass. Start and End are used by
// FogLinear, Density by the exponential modes.
type Fog struct {
	Mode    FogMode
	Density float32
	Start   float32
	End     float32
	Color   mgl32.Vec3
}
