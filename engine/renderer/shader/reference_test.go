package shader

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

func assertVec3(t *testing.T, want, got mgl32.Vec3, msg ...any) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, msg...)
	}
}

func TestCombineIdentity(t *testing.T) {
	opaque := mgl32.Vec3{0.2, 0.4, 0.6}
	got := CombinePixel(opaque, mgl32.Vec4{}, 1)
	assertVec3(t, opaque, got, "revealage 1 keeps the opaque colour")

	got = CombinePixel(opaque, mgl32.Vec4{5, 5, 5, 5}, 1)
	assertVec3(t, opaque, got, "accumulation is ignored when nothing is hidden")
}

func TestCombineSaturation(t *testing.T) {
	opaque := mgl32.Vec3{0.2, 0.4, 0.6}
	accum := mgl32.Vec4{0.5, 1.0, 1.5, 2.0}
	got := CombinePixel(opaque, accum, 0)
	assertVec3(t, mgl32.Vec3{0.25, 0.5, 0.75}, got, "revealage 0 shows the weighted average")

	got = CombinePixel(opaque, accum, -3)
	assertVec3(t, mgl32.Vec3{0.25, 0.5, 0.75}, got, "revealage is clamped")
}

func TestCombineNonFinite(t *testing.T) {
	opaque := mgl32.Vec3{0.2, 0.4, 0.6}
	got := CombinePixel(opaque, mgl32.Vec4{math32.Inf(1), 0, 0, 1}, 0.5)
	assertVec3(t, mgl32.Vec3{1, 1, 1}, got)

	got = CombinePixel(opaque, mgl32.Vec4{math32.NaN(), 0, 0, 1}, 1)
	assertVec3(t, mgl32.Vec3{1, 1, 1}, got)
}

func TestCombineZeroWeight(t *testing.T) {
	got := CombinePixel(mgl32.Vec3{1, 0, 0}, mgl32.Vec4{}, 0)
	for _, c := range got {
		assert.False(t, math32.IsNaN(c))
	}
}

func TestWeightFunctionsPositiveAndFinite(t *testing.T) {
	for _, w := range WeightFunctions {
		for _, z := range []float32{0, 0.25, 0.5, 0.9, 0.999, 1} {
			for _, alpha := range []float32{0, 0.5, 1} {
				v := w.Weight(z, LinearizeDepth(z, 0.1, 500), alpha, 0.1, 500)
				assert.Greater(t, v, float32(0), "%s z=%v a=%v", w, z, alpha)
				assert.False(t, math32.IsInf(v, 0) || math32.IsNaN(v), "%s z=%v a=%v", w, z, alpha)
			}
		}
	}
}

func TestWeightEq10FavoursNear(t *testing.T) {
	near := WeightEq10.Weight(0.1, 1, 0.5, 0.1, 500)
	far := WeightEq10.Weight(0.9, 100, 0.5, 0.1, 500)
	assert.Greater(t, near, far)
	assert.InDelta(t, 0.01, WeightEq10.Weight(1, 500, 0.5, 0.1, 500), 1e-6, "floor")
}

func TestParseWeightFunction(t *testing.T) {
	for _, w := range WeightFunctions {
		got, err := ParseWeightFunction(w.String())
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}
	got, err := ParseWeightFunction("")
	require.NoError(t, err)
	assert.Equal(t, WeightEq10, got)

	_, err = ParseWeightFunction("eq11")
	assert.Error(t, err)
}

func TestLinearizeDepth(t *testing.T) {
	assert.InDelta(t, 0.1, LinearizeDepth(0, 0.1, 100), 1e-5)
	assert.InDelta(t, 100, LinearizeDepth(1, 0.1, 100), 1e-2)

	proj := common.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)
	clip := proj.Mul4x1(mgl32.Vec4{0, 0, -25, 1})
	assert.InDelta(t, 25, LinearizeDepth(clip.Z()/clip.W(), 0.1, 100), 1e-2)
}

func TestAccumulate(t *testing.T) {
	accum, reveal := Accumulate(mgl32.Vec3{1, 0.5, 0}, 0.5, 2)
	assert.Equal(t, mgl32.Vec4{1, 0.5, 0, 1}, accum)
	assert.Equal(t, float32(0.5), reveal)
}

func TestFogFactor(t *testing.T) {
	linear := scene.Fog{Mode: scene.FogLinear, Start: 10, End: 20}
	assert.InDelta(t, 1, FogFactor(linear, 5), 1e-6)
	assert.InDelta(t, 0.5, FogFactor(linear, 15), 1e-6)
	assert.InDelta(t, 0, FogFactor(linear, 30), 1e-6)

	exp := scene.Fog{Mode: scene.FogExponential, Density: 0.1}
	assert.InDelta(t, math32.Exp(-1), FogFactor(exp, 10), 1e-6)

	exp2 := scene.Fog{Mode: scene.FogSquaredExponential, Density: 0.1}
	assert.InDelta(t, math32.Exp(-1), FogFactor(exp2, 10), 1e-6)
	assert.Greater(t, FogFactor(exp2, 5), FogFactor(exp, 5), "squared falls off slower up close")

	assert.Equal(t, float32(1), FogFactor(scene.Fog{}, 1000))
}

func TestApplyFog(t *testing.T) {
	fog := scene.Fog{Mode: scene.FogLinear, Start: 0, End: 10, Color: mgl32.Vec3{1, 1, 1}}
	assertVec3(t, mgl32.Vec3{0.5, 0.5, 0.5}, ApplyFog(fog, mgl32.Vec3{}, 5))
	assertVec3(t, mgl32.Vec3{1, 1, 1}, ApplyFog(fog, mgl32.Vec3{}, 50))
}

func TestCascadeSplits(t *testing.T) {
	splits := CascadeSplits(0.1, 100, 3, 0.75)
	require.Len(t, splits, 3)
	assert.Equal(t, float32(100), splits[2])
	assert.Less(t, splits[0], splits[1])
	assert.Less(t, splits[1], splits[2])

	uniform := CascadeSplits(1, 4, 3, 0)
	assert.InDelta(t, 2, uniform[0], 1e-5)
	assert.InDelta(t, 3, uniform[1], 1e-5)

	assert.Panics(t, func() { CascadeSplits(0, 100, 3, 0.5) })
	assert.Panics(t, func() { CascadeSplits(1, 100, 0, 0.5) })
}

func TestSelectCascadeBoundary(t *testing.T) {
	splits := []float32{10, 30, 100}
	assert.Equal(t, 0, SelectCascade(splits, 0))
	assert.Equal(t, 0, SelectCascade(splits, 9.999))
	assert.Equal(t, 1, SelectCascade(splits, 10), "a depth on a split belongs to the next cascade")
	assert.Equal(t, 2, SelectCascade(splits, 30))
	assert.Equal(t, -1, SelectCascade(splits, 100))
}

func TestCubeFaceProjectMatchesViewProj(t *testing.T) {
	pos := mgl32.Vec3{1, 2, 3}
	points := []mgl32.Vec3{
		{3, 2.5, 3.2}, {-4, 2, 2.5}, {1.3, 9, 3.1}, {0.5, -6, 3}, {1.4, 2.2, 8}, {0.6, 1.7, -5},
	}
	for _, p := range points {
		d := p.Sub(pos)
		face := CubeFaceIndex(d)
		f := CubeFaces[face]

		x, y, ok := f.Project(d, 512, 512)
		require.True(t, ok)
		tx, ty, _, ok := ShadowTexel(f.ViewProj(pos, 0.1, 50), p, 512, 512)
		require.True(t, ok, "face %d", face)
		assert.InDelta(t, tx, x, 1e-2, "face %d", face)
		assert.InDelta(t, ty, y, 1e-2, "face %d", face)
	}
}

type constantMap struct {
	size  int
	value float32
}

func (c constantMap) Width() int                  { return c.size }
func (c constantMap) Height() int                 { return c.size }
func (c constantMap) Load(_, _, _ int) mgl32.Vec4 { return mgl32.Vec4{c.value, 0, 0, 1} }

func directionalFrame(slot float32) *FrameUniforms {
	vp := common.Ortho(-10, 10, -10, 10, 0.1, 100).Mul4(common.LookAt(mgl32.Vec3{0, 50, 0}, mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}))
	return &FrameUniforms{
		Ambient: mgl32.Vec3{0.1, 0.1, 0.1},
		Lights: []LightUniforms{{
			Type:         LightTypeDirectional,
			Direction:    mgl32.Vec3{0, -1, 0},
			Color:        mgl32.Vec3{1, 1, 1},
			ShadowSlot:   slot,
			CascadeCount: 1,
			Splits:       [4]float32{100},
			ViewProj:     [4]mgl32.Mat4{vp},
		}},
	}
}

func TestShadeDirectional(t *testing.T) {
	base := mgl32.Vec3{1, 1, 1}
	up := mgl32.Vec3{0, 1, 0}

	lit := Shade(directionalFrame(NoShadow), ShadowTextures{}, mgl32.Vec3{}, up, base, 5)
	assertVec3(t, mgl32.Vec3{1.1, 1.1, 1.1}, lit)

	clear := ShadowTextures{Directional: constantMap{size: 16, value: 1}}
	lit = Shade(directionalFrame(0), clear, mgl32.Vec3{}, up, base, 5)
	assertVec3(t, mgl32.Vec3{1.1, 1.1, 1.1}, lit, "a cleared map shadows nothing")

	occluded := ShadowTextures{Directional: constantMap{size: 16, value: 0}}
	dark := Shade(directionalFrame(0), occluded, mgl32.Vec3{}, up, base, 5)
	assertVec3(t, mgl32.Vec3{0.1, 0.1, 0.1}, dark, "only ambient survives")
}

func TestShadePointDistance(t *testing.T) {
	frame := &FrameUniforms{
		Lights: []LightUniforms{{
			Type:        LightTypePoint,
			Position:    mgl32.Vec3{0, 4, 0},
			Range:       20,
			Color:       mgl32.Vec3{1, 1, 1},
			Attenuation: mgl32.Vec3{1, 0, 0},
			ShadowSlot:  0,
		}},
	}
	world := mgl32.Vec3{}
	normal := mgl32.Vec3{0, 1, 0}

	beyond := Shade(frame, ShadowTextures{Point: constantMap{size: 8, value: 4.5}}, world, normal, mgl32.Vec3{1, 1, 1}, 1)
	assert.Greater(t, beyond.X(), float32(0), "an occluder farther than the surface does not shadow it")

	before := Shade(frame, ShadowTextures{Point: constantMap{size: 8, value: 2}}, world, normal, mgl32.Vec3{1, 1, 1}, 1)
	assert.Equal(t, float32(0), before.X())
}

func TestShadeSpotCone(t *testing.T) {
	frame := &FrameUniforms{
		Lights: []LightUniforms{{
			Type:        LightTypeSpot,
			Position:    mgl32.Vec3{0, 5, 0},
			Direction:   mgl32.Vec3{0, -1, 0},
			Range:       20,
			Color:       mgl32.Vec3{1, 1, 1},
			Attenuation: mgl32.Vec3{1, 0, 0},
			InnerCos:    math32.Cos(mgl32.DegToRad(20)),
			OuterCos:    math32.Cos(mgl32.DegToRad(30)),
			ShadowSlot:  NoShadow,
		}},
	}
	normal := mgl32.Vec3{0, 1, 0}
	inside := Shade(frame, ShadowTextures{}, mgl32.Vec3{}, normal, mgl32.Vec3{1, 1, 1}, 1)
	outside := Shade(frame, ShadowTextures{}, mgl32.Vec3{10, 0, 0}, normal, mgl32.Vec3{1, 1, 1}, 1)
	assert.Greater(t, inside.X(), float32(0.5))
	assert.Equal(t, float32(0), outside.X())
}

func TestUniformRoundTrip(t *testing.T) {
	frame := directionalFrame(0)
	frame.Weight = WeightAlpha
	frame.Near, frame.Far = 0.1, 500

	var decoded FrameUniforms
	require.NoError(t, decoded.Unmarshal(frame.Marshal()))
	assert.Equal(t, WeightAlpha, decoded.Weight)
	require.Len(t, decoded.Lights, 1)
	assert.Equal(t, frame.Lights[0], decoded.Lights[0])

	obj := NewObjectUniforms(mgl32.Translate3D(1, 2, 3), mgl32.Vec3{1, 0, 0}, 0.5, true)
	var decodedObj ObjectUniforms
	require.NoError(t, decodedObj.Unmarshal(obj.Marshal()))
	assert.Equal(t, obj, decodedObj)

	assert.Error(t, decoded.Unmarshal(make([]byte, 3)))
}
