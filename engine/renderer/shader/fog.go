package shader

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

// fogVariants builds one combine variant per fog mode, named by the mode.
func fogVariants() map[string]map[string]string {
	variants := make(map[string]map[string]string, len(scene.FogModes))
	for _, m := range scene.FogModes {
		fog := "1"
		if m == scene.FogDisabled {
			fog = "0"
		}
		variants[m.String()] = map[string]string{
			"FOG_MODE": fmt.Sprintf("%du", int(m)),
			"FOG":      fog,
		}
	}
	return variants
}

// CombineVariant returns the combine module variant for mode.
func CombineVariant(mode scene.FogMode) string {
	return mode.String()
}

// FogFactor returns how much of the surface colour survives at distance dist, in [0, 1].
// 1 means no fog.
//
// Parameters:
//   - fog: the fog parameters
//   - dist: the view-space distance of the surface
//
// Returns:
//   - float32: the surviving fraction of the surface colour
func FogFactor(fog scene.Fog, dist float32) float32 {
	switch fog.Mode {
	case scene.FogLinear:
		return clamp01((fog.End - dist) / max(fog.End-fog.Start, 1e-5))
	case scene.FogExponential:
		return clamp01(math32.Exp(-fog.Density * dist))
	case scene.FogSquaredExponential:
		x := fog.Density * dist
		return clamp01(math32.Exp(-x * x))
	default:
		return 1
	}
}

// ApplyFog blends color towards the fog colour by FogFactor.
func ApplyFog(fog scene.Fog, color mgl32.Vec3, dist float32) mgl32.Vec3 {
	f := FogFactor(fog, dist)
	return mix(fog.Color, color, f)
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

func mix(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}
