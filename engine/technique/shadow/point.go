package shadow

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

var faceNames = [6]string{"+x", "-x", "+y", "-y", "+z", "-z"}

// pointMap is a six face cube stored as six layers of an R32F texture. Each texel
// holds the metric distance from the light to the nearest caster.
type pointMap struct {
	mapBase

	// depth is the attachment-only depth buffer shared by the six face passes.
	depth gpu.Texture
}

var _ Map = &pointMap{}

func (m *pointMap) Create(size int) error {
	m.Cleanup()
	t, err := m.createTexture("distance", size, len(shader.CubeFaces), gpu.TextureFormatR32Float, true)
	if err != nil {
		return err
	}
	depth, err := m.createTexture("depth", size, 1, gpu.TextureFormatDepth32Float, false)
	if err != nil {
		t.Release()
		return err
	}
	m.texture, m.depth, m.size = t, depth, size
	return nil
}

func (m *pointMap) Update(queues *scene.QueueSet) error {
	s, err := m.state(queues)
	if err != nil {
		return err
	}
	m.refresh(s, CubeViews)
	m.request(queues)
	return nil
}

func (m *pointMap) Render(enc gpu.CommandEncoder) (int, error) {
	if m.texture == nil {
		return 0, errNotCreated(m.label("distance"))
	}
	p := m.r.Pipeline(PipelineDistance)
	enc.Transition(m.texture, gpu.ResourceStateRenderTarget)
	enc.Transition(m.depth, gpu.ResourceStateRenderTarget)
	depth := gpu.LayerView(m.depth, 0)
	clear := gpu.ClearValues{Colors: []mgl32.Vec4{{ClearDistance, 0, 0, 0}}, Depth: 1}
	total := 0
	for i := range m.views {
		fb := gpu.Framebuffer{
			Label:  m.label(faceNames[i]),
			Colors: []gpu.TextureView{gpu.LayerView(m.texture, i)},
			Depth:  &depth,
		}
		n, err := m.renderLayer(enc, p, i, fb, clear)
		total += n
		if err != nil {
			return total, err
		}
	}
	enc.Transition(m.texture, gpu.ResourceStateShaderRead)
	return total, nil
}

func (m *pointMap) Uniforms(u *shader.LightUniforms, slot int) {
	u.ShadowSlot = float32(slot)
	u.Bias = m.opts.Bias
}

func (m *pointMap) Cleanup() {
	m.release()
	if m.depth != nil {
		m.depth.Release()
		m.depth = nil
	}
}

// CubeViews returns the six 90 degree face views of a point light, in layer order,
// from the point shadow near plane out to the light's range.
func CubeViews(s light.State) []camera.View {
	far := max(s.Range, light.PointShadowNear*2)
	views := make([]camera.View, len(shader.CubeFaces))
	for i, f := range shader.CubeFaces {
		views[i] = camera.NewPerspectiveView(s.Position, f.Forward, f.Up, mgl32.DegToRad(90), 1, light.PointShadowNear, far)
	}
	return views
}
