package shader

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// WeightFunction selects the depth weight applied to transparent fragments before accumulation.
// The ordinal is written to the frame uniforms and switched on in the transparent shader.
type WeightFunction int

const (
	// WeightNaive falls off linearly with linearised depth.
	WeightNaive WeightFunction = iota

	// WeightEq10 is McGuire and Bavoil equation 10, cubic in window depth.
	WeightEq10

	// WeightEq9 is McGuire and Bavoil equation 9 over view depth.
	WeightEq9

	// WeightEq8 is McGuire and Bavoil equation 8 over view depth.
	WeightEq8

	// WeightEq7 is McGuire and Bavoil equation 7 over view depth.
	WeightEq7

	// WeightAlpha scales with coverage and window depth.
	WeightAlpha

	// WeightAlphaScaled is WeightAlpha attenuated by the square root of depth.
	WeightAlphaScaled
)

// DefaultWeightFunction is used when no policy is configured.
const DefaultWeightFunction = WeightEq10

var weightFunctionNames = [...]string{"naive", "eq10", "eq9", "eq8", "eq7", "alpha", "alpha_scaled"}

// WeightFunctions lists every policy in ordinal order.
var WeightFunctions = []WeightFunction{
	WeightNaive, WeightEq10, WeightEq9, WeightEq8, WeightEq7, WeightAlpha, WeightAlphaScaled,
}

func (w WeightFunction) String() string {
	if w >= 0 && int(w) < len(weightFunctionNames) {
		return weightFunctionNames[w]
	}
	return fmt.Sprintf("WeightFunction(%d)", int(w))
}

// ParseWeightFunction resolves a configuration name. The empty string is DefaultWeightFunction.
func ParseWeightFunction(s string) (WeightFunction, error) {
	if s == "" {
		return DefaultWeightFunction, nil
	}
	for _, w := range WeightFunctions {
		if w.String() == s {
			return w, nil
		}
	}
	return DefaultWeightFunction, fmt.Errorf("unknown weight function %q", s)
}

// LinearizeDepth maps a [0, 1] window depth back to a positive view distance.
func LinearizeDepth(z, near, far float32) float32 {
	return far * near / (far - z*(far-near))
}

// Weight evaluates the policy for one fragment.
//
// Parameters:
//   - z: window depth in [0, 1]
//   - viewDepth: the distance along the camera's forward axis
//   - alpha: fragment opacity
//   - near: camera near plane
//   - far: camera far plane
//
// Returns:
//   - float32: the positive accumulation weight
func (w WeightFunction) Weight(z, viewDepth, alpha, near, far float32) float32 {
	d := math32.Abs(viewDepth)
	switch w {
	case WeightNaive:
		return max(1-LinearizeDepth(z, near, far)/far, 0.01)
	case WeightEq9:
		return clampf(0.03/(math32.Pow(d/200, 4)+1e-5), 0.01, 3000)
	case WeightEq8:
		return clampf(10/(math32.Pow(d/200, 6)+math32.Pow(d/10, 3)+1e-5), 0.01, 3000)
	case WeightEq7:
		return clampf(10/(math32.Pow(d/200, 6)+math32.Pow(d/5, 2)+1e-5), 0.01, 3000)
	case WeightAlpha:
		a := min(alpha, 1)*8 + 0.01
		b := -z*0.95 + 1
		return clampf(a*a*a*1e8*b*b*b, 0.01, 300)
	case WeightAlphaScaled:
		a := min(alpha, 1)*8 + 0.01
		b := (-z*0.95 + 1) / math32.Sqrt(max(1e4*math32.Abs(z), 1e-5))
		return clampf(a*a*a*1e8*b*b*b, 0.01, 300)
	default:
		return max(math32.Pow(clamp01(1-z), 3)*3000, 0.01)
	}
}

// Accumulate returns the accumulation and revealage outputs of one transparent fragment.
func Accumulate(color mgl32.Vec3, alpha, weight float32) (mgl32.Vec4, float32) {
	alpha = clamp01(alpha)
	return color.Mul(alpha).Vec4(alpha).Mul(weight), alpha
}

// CombinePixel resolves one pixel of the weighted blended buffers over the opaque colour.
// A revealage of 1 leaves the opaque colour unchanged. A non-finite accumulation is treated
// as a fully opaque white transparent layer.
//
// Parameters:
//   - opaque: the opaque pass colour
//   - accum: the accumulated premultiplied colour with the weight sum in W
//   - revealage: the product of (1 - alpha) over all transparent fragments
//
// Returns:
//   - mgl32.Vec3: the combined colour
func CombinePixel(opaque mgl32.Vec3, accum mgl32.Vec4, revealage float32) mgl32.Vec3 {
	reveal := clamp01(revealage)
	var average mgl32.Vec3
	if !finite4(accum) {
		average = mgl32.Vec3{1, 1, 1}
		reveal = 0
	} else {
		average = accum.Vec3().Mul(1 / max(accum.W(), 1e-5))
	}
	return opaque.Mul(reveal).Add(average.Mul(1 - reveal))
}

func finite4(v mgl32.Vec4) bool {
	for _, c := range v {
		if math32.IsNaN(c) || math32.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func clampf(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
