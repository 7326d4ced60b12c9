package software

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

// uniformKind names the struct a program expects at group 0.
type uniformKind int

const (
	uniformFrame uniformKind = iota
	uniformCombine
	uniformPost
)

// drawContext is the bound state a program runs against.
type drawContext struct {
	variant  string
	frame    *shader.FrameUniforms
	combine  *shader.CombineUniforms
	post     *shader.PostUniforms
	object   *shader.ObjectUniforms
	textures []*texture
}

// program is the CPU rendition of one shader module. Geometry programs set vertex and,
// unless they are depth only, fragment. Fullscreen programs set fullscreen.
type program struct {
	uniforms   uniformKind
	vertex     func(ctx *drawContext, position, normal mgl32.Vec3) clipVertex
	fragment   func(ctx *drawContext, f fragment) ([]mgl32.Vec4, bool)
	fullscreen func(ctx *drawContext, x, y int) mgl32.Vec4
}

var programs = map[string]program{
	shader.ModuleShadowDepth:    {uniforms: uniformFrame, vertex: geometryVertex},
	shader.ModuleShadowDistance: {uniforms: uniformFrame, vertex: geometryVertex, fragment: distanceFragment},
	shader.ModuleOpaque:         {uniforms: uniformFrame, vertex: geometryVertex, fragment: opaqueFragment},
	shader.ModuleTransparent:    {uniforms: uniformFrame, vertex: geometryVertex, fragment: transparentFragment},
	shader.ModuleCombine:        {uniforms: uniformCombine, fullscreen: combinePixel},
	shader.ModuleCopy:           {uniforms: uniformPost, fullscreen: copyPixel},
	shader.ModuleExposure:       {uniforms: uniformPost, fullscreen: exposurePixel},
}

func (k uniformKind) decode(ctx *drawContext, data []byte) error {
	switch k {
	case uniformCombine:
		ctx.combine = &shader.CombineUniforms{}
		return ctx.combine.Unmarshal(data)
	case uniformPost:
		ctx.post = &shader.PostUniforms{}
		return ctx.post.Unmarshal(data)
	default:
		ctx.frame = &shader.FrameUniforms{}
		return ctx.frame.Unmarshal(data)
	}
}

func geometryVertex(ctx *drawContext, position, normal mgl32.Vec3) clipVertex {
	world := ctx.object.Model.Mul4x1(position.Vec4(1))
	n := ctx.object.Normal.Mul4x1(normal.Vec4(0)).Vec3()
	viewDepth := -ctx.frame.View.Mul4x1(world).Z()
	return clipVertex{
		clip: ctx.frame.ViewProj.Mul4x1(world),
		v:    varyings{world.X(), world.Y(), world.Z(), n.X(), n.Y(), n.Z(), viewDepth},
	}
}

func (v varyings) world() mgl32.Vec3  { return mgl32.Vec3{v[0], v[1], v[2]} }
func (v varyings) normal() mgl32.Vec3 { return mgl32.Vec3{v[3], v[4], v[5]} }
func (v varyings) viewDepth() float32 { return v[6] }

func distanceFragment(ctx *drawContext, f fragment) ([]mgl32.Vec4, bool) {
	dist := f.v.world().Sub(ctx.frame.CameraPosition).Len()
	return []mgl32.Vec4{{dist, 0, 0, 1}}, true
}

func (ctx *drawContext) shadows() shader.ShadowTextures {
	return shader.ShadowTextures{
		Directional: texelView{ctx.textures[0]},
		Spot:        texelView{ctx.textures[1]},
		Point:       texelView{ctx.textures[2]},
	}
}

func (ctx *drawContext) surfaceColor(f fragment) mgl32.Vec3 {
	base := ctx.object.Color.Vec3()
	if ctx.object.Unlit {
		return base
	}
	n := f.v.normal()
	if n.Len() > 0 {
		n = n.Normalize()
	}
	return shader.Shade(ctx.frame, ctx.shadows(), f.v.world(), n, base, f.v.viewDepth())
}

func opaqueFragment(ctx *drawContext, f fragment) ([]mgl32.Vec4, bool) {
	return []mgl32.Vec4{ctx.surfaceColor(f).Vec4(1)}, true
}

func transparentFragment(ctx *drawContext, f fragment) ([]mgl32.Vec4, bool) {
	if f.depth >= ctx.textures[3].load(f.x, f.y, 0).X() {
		return nil, false
	}
	alpha := min(max(ctx.object.Color.W(), 0), 1)
	weight := ctx.frame.Weight.Weight(f.depth, f.v.viewDepth(), alpha, ctx.frame.Near, ctx.frame.Far)
	accum, reveal := shader.Accumulate(ctx.surfaceColor(f), alpha, weight)
	return []mgl32.Vec4{accum, {reveal, reveal, reveal, reveal}}, true
}

func combinePixel(ctx *drawContext, x, y int) mgl32.Vec4 {
	opaque := ctx.textures[0].load(x, y, 0).Vec3()
	accum := ctx.textures[1].load(x, y, 0)
	reveal := ctx.textures[2].load(x, y, 0).X()
	color := shader.CombinePixel(opaque, accum, reveal)

	mode, _ := scene.ParseFogMode(ctx.variant)
	if mode == scene.FogDisabled {
		return color.Vec4(1)
	}
	depth := ctx.textures[3].load(x, y, 0).X()
	if depth < 1 {
		c := ctx.combine
		ndc := mgl32.Vec4{
			(float32(x)+0.5)/float32(c.Size.Width)*2 - 1,
			1 - (float32(y)+0.5)/float32(c.Size.Height)*2,
			depth,
			1,
		}
		view := c.InvProjection.Mul4x1(ndc)
		dist := view.Vec3().Mul(1 / view.W()).Len()
		fog := scene.Fog{Mode: mode, Density: c.FogDensity, Start: c.FogStart, End: c.FogEnd, Color: c.FogColor}
		color = shader.ApplyFog(fog, color, dist)
	}
	return color.Vec4(1)
}

func copyPixel(ctx *drawContext, x, y int) mgl32.Vec4 {
	return ctx.textures[0].load(x, y, 0)
}

func exposurePixel(ctx *drawContext, x, y int) mgl32.Vec4 {
	c := ctx.textures[0].load(x, y, 0)
	return c.Vec3().Mul(ctx.post.Exposure).Vec4(c.W())
}

func lookupProgram(key string) (program, error) {
	p, ok := programs[key]
	if !ok {
		return program{}, fmt.Errorf("no software program for shader module %q", key)
	}
	return p, nil
}
