package shader

import (
	"github.com/go-gl/mathgl/mgl32"
)

// TexelReader is read access to a layered float texture, as textureLoad sees it.
type TexelReader interface {
	Width() int
	Height() int
	Load(x, y, layer int) mgl32.Vec4
}

// ShadowTextures are the shadow maps bound to the geometry passes, one per light type.
// A nil reader behaves as an unshadowed map.
type ShadowTextures struct {
	Directional TexelReader
	Spot        TexelReader
	Point       TexelReader
}

// Shade evaluates ambient plus every frame light at a surface point.
//
// Parameters:
//   - frame: the frame uniforms holding the lights
//   - shadows: the bound shadow maps
//   - world: the world position of the surface
//   - normal: the unit surface normal
//   - base: the surface albedo
//   - viewDepth: the camera view depth, used for cascade selection
//
// Returns:
//   - mgl32.Vec3: the lit colour
func Shade(frame *FrameUniforms, shadows ShadowTextures, world, normal, base mgl32.Vec3, viewDepth float32) mgl32.Vec3 {
	result := mul3(frame.Ambient, base)
	for i := range frame.LightCount() {
		l := &frame.Lights[i]
		dir := l.Direction.Mul(-1)
		atten := float32(1)
		var vis float32
		if l.Type == LightTypeDirectional {
			vis = directionalVisibility(l, shadows.Directional, world, viewDepth)
		} else {
			toLight := l.Position.Sub(world)
			dist := toLight.Len()
			dir = toLight.Mul(1 / max(dist, 1e-5))
			atten = 1 / max(l.Attenuation.X()+l.Attenuation.Y()*dist+l.Attenuation.Z()*dist*dist, 1e-5)
			atten *= clamp01(1 - dist/l.Range)
			if l.Type == LightTypeSpot {
				atten *= smoothstep(l.OuterCos, l.InnerCos, dir.Mul(-1).Dot(l.Direction))
				vis = spotVisibility(l, shadows.Spot, world)
			} else {
				vis = pointVisibility(l, shadows.Point, world)
			}
		}
		ndl := max(normal.Dot(dir), 0)
		result = result.Add(mul3(base, l.Color).Mul(ndl * atten * vis))
	}
	return result
}

// ShadowTexel projects world through viewProj onto a width x height map. The bool is
// false outside the map.
func ShadowTexel(viewProj mgl32.Mat4, world mgl32.Vec3, width, height int) (x, y, depth float32, ok bool) {
	clip := viewProj.Mul4x1(world.Vec4(1))
	if clip.W() <= 0 {
		return 0, 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	if ndc.X() < -1 || ndc.X() > 1 || ndc.Y() < -1 || ndc.Y() > 1 || ndc.Z() < 0 || ndc.Z() > 1 {
		return 0, 0, 0, false
	}
	return (ndc.X()*0.5 + 0.5) * float32(width), (0.5 - ndc.Y()*0.5) * float32(height), ndc.Z(), true
}

func clampTexel(x, y float32, width, height int) (int, int) {
	return min(max(int(x), 0), width-1), min(max(int(y), 0), height-1)
}

func directionalVisibility(l *LightUniforms, tex TexelReader, world mgl32.Vec3, viewDepth float32) float32 {
	if l.ShadowSlot < 0 || tex == nil {
		return 1
	}
	count := min(max(l.CascadeCount, 0), len(l.Splits))
	cascade := SelectCascade(l.Splits[:count], viewDepth)
	if cascade < 0 {
		return 1
	}
	x, y, z, ok := ShadowTexel(l.ViewProj[cascade], world, tex.Width(), tex.Height())
	if !ok {
		return 1
	}
	tx, ty := clampTexel(x, y, tex.Width(), tex.Height())
	return visible(z-l.Bias <= tex.Load(tx, ty, int(l.ShadowSlot)+cascade).X())
}

func spotVisibility(l *LightUniforms, tex TexelReader, world mgl32.Vec3) float32 {
	if l.ShadowSlot < 0 || tex == nil {
		return 1
	}
	x, y, z, ok := ShadowTexel(l.ViewProj[0], world, tex.Width(), tex.Height())
	if !ok {
		return 1
	}
	tx, ty := clampTexel(x, y, tex.Width(), tex.Height())
	return visible(z-l.Bias <= tex.Load(tx, ty, int(l.ShadowSlot)).X())
}

func pointVisibility(l *LightUniforms, tex TexelReader, world mgl32.Vec3) float32 {
	if l.ShadowSlot < 0 || tex == nil {
		return 1
	}
	d := world.Sub(l.Position)
	face := CubeFaceIndex(d)
	x, y, ok := CubeFaces[face].Project(d, tex.Width(), tex.Height())
	if !ok {
		return 1
	}
	tx, ty := clampTexel(x, y, tex.Width(), tex.Height())
	stored := tex.Load(tx, ty, int(l.ShadowSlot)+face).X()
	return visible(d.Len()-l.Bias*l.Range <= stored)
}

func visible(lit bool) float32 {
	if lit {
		return 1
	}
	return 0
}

func smoothstep(edge0, edge1, x float32) float32 {
	t := clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

func mul3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a.X() * b.X(), a.Y() * b.Y(), a.Z() * b.Z()}
}
