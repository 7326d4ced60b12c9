package shader

import (
	"github.com/chewxy/math32"
)

// CascadeSplits computes the far view depth of each cascade with the practical split
// scheme, blending logarithmic and uniform splits by lambda. The last split is far.
//
// Parameters:
//   - near: the camera near plane
//   - far: the far end of the shadowed range
//   - count: the number of cascades, at least 1
//   - lambda: 0 for uniform splits, 1 for logarithmic
//
// Returns:
//   - []float32: count increasing split depths
func CascadeSplits(near, far float32, count int, lambda float32) []float32 {
	if count < 1 || near <= 0 || far <= near {
		panic("shader: invalid cascade range")
	}
	lambda = clamp01(lambda)
	splits := make([]float32, count)
	for i := 1; i <= count; i++ {
		p := float32(i) / float32(count)
		log := near * math32.Pow(far/near, p)
		uniform := near + (far-near)*p
		splits[i-1] = lambda*log + (1-lambda)*uniform
	}
	splits[count-1] = far
	return splits
}

// SelectCascade returns the first cascade whose split is greater than depth, so a depth
// equal to split[i] falls into cascade i+1. It returns -1 beyond the last split.
func SelectCascade(splits []float32, depth float32) int {
	for i, s := range splits {
		if depth < s {
			return i
		}
	}
	return -1
}
