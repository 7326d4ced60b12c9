package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

// Byte sizes of the uniform structs, equal to the WGSL struct sizes.
const (
	LightSize   = 352
	FrameSize   = 1584
	ObjectSize  = 160
	CombineSize = 112
	PostSize    = 16
)

// MaxLights is the length of the light array in the frame uniforms.
const MaxLights = 4

// Light type codes stored in Light.position.w.
const (
	LightTypeDirectional float32 = 0
	LightTypePoint       float32 = 1
	LightTypeSpot        float32 = 2
)

// NoShadow is the shadow slot of a light that samples no shadow map.
const NoShadow float32 = -1

// LightUniforms mirrors the WGSL Light struct.
type LightUniforms struct {
	Type      float32
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Range     float32

	// Color is premultiplied by intensity.
	Color mgl32.Vec3

	// ShadowSlot is NoShadow, or the layer base of the light's shadow map.
	ShadowSlot float32

	InnerCos     float32
	OuterCos     float32
	CascadeCount int
	Bias         float32
	Attenuation  mgl32.Vec3

	// Splits are the far view depths of each cascade.
	Splits   [4]float32
	ViewProj [4]mgl32.Mat4
}

// FrameUniforms mirrors the WGSL Frame struct. Shadow passes reuse it with the light's
// view in ViewProj and the light position in CameraPosition.
type FrameUniforms struct {
	ViewProj       mgl32.Mat4
	View           mgl32.Mat4
	CameraPosition mgl32.Vec3
	Ambient        mgl32.Vec3
	Weight         WeightFunction
	Near           float32
	Far            float32

	// Lights beyond MaxLights are not marshalled.
	Lights []LightUniforms
}

// ObjectUniforms mirrors the WGSL Object struct.
type ObjectUniforms struct {
	Model  mgl32.Mat4
	Normal mgl32.Mat4

	// Color carries the opacity in W.
	Color mgl32.Vec4
	Unlit bool
}

// CombineUniforms mirrors the WGSL Combine struct.
type CombineUniforms struct {
	InvProjection mgl32.Mat4
	FogColor      mgl32.Vec3
	FogDensity    float32
	FogStart      float32
	FogEnd        float32
	FogMode       uint32
	Size          gpu.Size
}

// PostUniforms mirrors the WGSL Post struct.
type PostUniforms struct {
	Exposure float32
}

// NewObjectUniforms derives the normal matrix from model.
//
// Parameters:
//   - model: the object-to-world transform
//   - color: the base colour
//   - opacity: the opacity stored in Color.W
//   - unlit: whether lighting is skipped
//
// Returns:
//   - ObjectUniforms: the filled uniforms
func NewObjectUniforms(model mgl32.Mat4, color mgl32.Vec3, opacity float32, unlit bool) ObjectUniforms {
	normal := model.Inv().Transpose()
	if model.Det() == 0 {
		normal = mgl32.Ident4()
	}
	return ObjectUniforms{
		Model:  model,
		Normal: normal,
		Color:  color.Vec4(opacity),
		Unlit:  unlit,
	}
}

// uniformWriter appends little-endian f32 values at a fixed offset.
type uniformWriter struct {
	b   []byte
	off int
}

func (w *uniformWriter) f32(v float32) {
	binary.LittleEndian.PutUint32(w.b[w.off:], math32.Float32bits(v))
	w.off += 4
}

func (w *uniformWriter) vec4(x, y, z, ww float32) {
	w.f32(x)
	w.f32(y)
	w.f32(z)
	w.f32(ww)
}

func (w *uniformWriter) mat4(m mgl32.Mat4) {
	for _, v := range m {
		w.f32(v)
	}
}

type uniformReader struct {
	b   []byte
	off int
}

func (r *uniformReader) f32() float32 {
	v := math32.Float32frombits(binary.LittleEndian.Uint32(r.b[r.off:]))
	r.off += 4
	return v
}

func (r *uniformReader) vec4() (float32, float32, float32, float32) {
	return r.f32(), r.f32(), r.f32(), r.f32()
}

func (r *uniformReader) mat4() mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = r.f32()
	}
	return m
}

func checkSize(name string, b []byte, want int) error {
	if len(b) != want {
		return fmt.Errorf("unmarshal %s: got %d bytes, want %d", name, len(b), want)
	}
	return nil
}

func (l LightUniforms) write(w *uniformWriter) {
	w.vec4(l.Position.X(), l.Position.Y(), l.Position.Z(), l.Type)
	w.vec4(l.Direction.X(), l.Direction.Y(), l.Direction.Z(), l.Range)
	w.vec4(l.Color.X(), l.Color.Y(), l.Color.Z(), l.ShadowSlot)
	w.vec4(l.InnerCos, l.OuterCos, float32(l.CascadeCount), l.Bias)
	w.vec4(l.Attenuation.X(), l.Attenuation.Y(), l.Attenuation.Z(), 0)
	w.vec4(l.Splits[0], l.Splits[1], l.Splits[2], l.Splits[3])
	for _, m := range l.ViewProj {
		w.mat4(m)
	}
}

func (l *LightUniforms) read(r *uniformReader) {
	var x, y, z float32
	x, y, z, l.Type = r.vec4()
	l.Position = mgl32.Vec3{x, y, z}
	x, y, z, l.Range = r.vec4()
	l.Direction = mgl32.Vec3{x, y, z}
	x, y, z, l.ShadowSlot = r.vec4()
	l.Color = mgl32.Vec3{x, y, z}
	var count float32
	l.InnerCos, l.OuterCos, count, l.Bias = r.vec4()
	l.CascadeCount = int(count)
	x, y, z, _ = r.vec4()
	l.Attenuation = mgl32.Vec3{x, y, z}
	l.Splits[0], l.Splits[1], l.Splits[2], l.Splits[3] = r.vec4()
	for i := range l.ViewProj {
		l.ViewProj[i] = r.mat4()
	}
}

// Marshal encodes the light in the WGSL Light layout.
func (l LightUniforms) Marshal() []byte {
	w := &uniformWriter{b: make([]byte, LightSize)}
	l.write(w)
	return w.b
}

// Unmarshal decodes a WGSL Light.
func (l *LightUniforms) Unmarshal(b []byte) error {
	if err := checkSize("light", b, LightSize); err != nil {
		return err
	}
	l.read(&uniformReader{b: b})
	return nil
}

// LightCount returns the number of lights that are marshalled.
func (f FrameUniforms) LightCount() int {
	return min(len(f.Lights), MaxLights)
}

// Marshal encodes the frame in the WGSL Frame layout.
func (f FrameUniforms) Marshal() []byte {
	w := &uniformWriter{b: make([]byte, FrameSize)}
	w.mat4(f.ViewProj)
	w.mat4(f.View)
	w.vec4(f.CameraPosition.X(), f.CameraPosition.Y(), f.CameraPosition.Z(), f.Far)
	w.vec4(f.Ambient.X(), f.Ambient.Y(), f.Ambient.Z(), float32(f.Weight))
	w.vec4(float32(f.LightCount()), f.Near, f.Far, 0)
	for i := range MaxLights {
		var l LightUniforms
		if i < len(f.Lights) {
			l = f.Lights[i]
		}
		l.write(w)
	}
	return w.b
}

// Unmarshal decodes a WGSL Frame. Lights is sized by the encoded light count.
func (f *FrameUniforms) Unmarshal(b []byte) error {
	if err := checkSize("frame", b, FrameSize); err != nil {
		return err
	}
	r := &uniformReader{b: b}
	f.ViewProj = r.mat4()
	f.View = r.mat4()
	var x, y, z, weight, count float32
	x, y, z, f.Far = r.vec4()
	f.CameraPosition = mgl32.Vec3{x, y, z}
	x, y, z, weight = r.vec4()
	f.Ambient = mgl32.Vec3{x, y, z}
	f.Weight = WeightFunction(weight)
	count, f.Near, f.Far, _ = r.vec4()

	n := min(max(int(count), 0), MaxLights)
	f.Lights = make([]LightUniforms, MaxLights)
	for i := range f.Lights {
		f.Lights[i].read(r)
	}
	f.Lights = f.Lights[:n]
	return nil
}

// Marshal encodes the object in the WGSL Object layout.
func (o ObjectUniforms) Marshal() []byte {
	w := &uniformWriter{b: make([]byte, ObjectSize)}
	w.mat4(o.Model)
	w.mat4(o.Normal)
	w.vec4(o.Color.X(), o.Color.Y(), o.Color.Z(), o.Color.W())
	var unlit float32
	if o.Unlit {
		unlit = 1
	}
	w.vec4(unlit, 0, 0, 0)
	return w.b
}

// Unmarshal decodes a WGSL Object.
func (o *ObjectUniforms) Unmarshal(b []byte) error {
	if err := checkSize("object", b, ObjectSize); err != nil {
		return err
	}
	r := &uniformReader{b: b}
	o.Model = r.mat4()
	o.Normal = r.mat4()
	x, y, z, a := r.vec4()
	o.Color = mgl32.Vec4{x, y, z, a}
	unlit, _, _, _ := r.vec4()
	o.Unlit = unlit > 0.5
	return nil
}

// Marshal encodes the combine parameters in the WGSL Combine layout.
func (c CombineUniforms) Marshal() []byte {
	w := &uniformWriter{b: make([]byte, CombineSize)}
	w.mat4(c.InvProjection)
	w.vec4(c.FogColor.X(), c.FogColor.Y(), c.FogColor.Z(), 1)
	w.vec4(c.FogDensity, c.FogStart, c.FogEnd, float32(c.FogMode))
	w.vec4(float32(c.Size.Width), float32(c.Size.Height), 0, 0)
	return w.b
}

// Unmarshal decodes a WGSL Combine.
func (c *CombineUniforms) Unmarshal(b []byte) error {
	if err := checkSize("combine", b, CombineSize); err != nil {
		return err
	}
	r := &uniformReader{b: b}
	c.InvProjection = r.mat4()
	x, y, z, _ := r.vec4()
	c.FogColor = mgl32.Vec3{x, y, z}
	var mode float32
	c.FogDensity, c.FogStart, c.FogEnd, mode = r.vec4()
	c.FogMode = uint32(mode)
	w, h, _, _ := r.vec4()
	c.Size = gpu.Size{Width: int(w), Height: int(h)}
	return nil
}

// Marshal encodes the post parameters in the WGSL Post layout.
func (p PostUniforms) Marshal() []byte {
	w := &uniformWriter{b: make([]byte, PostSize)}
	w.vec4(p.Exposure, 0, 0, 0)
	return w.b
}

// Unmarshal decodes a WGSL Post.
func (p *PostUniforms) Unmarshal(b []byte) error {
	if err := checkSize("post", b, PostSize); err != nil {
		return err
	}
	p.Exposure, _, _, _ = (&uniformReader{b: b}).vec4()
	return nil
}
