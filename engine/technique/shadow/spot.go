package shadow

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

// spotMap is a single perspective depth map covering the outer cone.
type spotMap struct {
	mapBase
}

var _ Map = &spotMap{}

func (m *spotMap) Create(size int) error {
	m.release()
	t, err := m.createTexture("depth", size, 1, gpu.TextureFormatDepth32Float, true)
	if err != nil {
		return err
	}
	m.texture, m.size = t, size
	return nil
}

func (m *spotMap) Update(queues *scene.QueueSet) error {
	s, err := m.state(queues)
	if err != nil {
		return err
	}
	m.refresh(s, func(s light.State) []camera.View {
		return []camera.View{SpotView(s)}
	})
	m.request(queues)
	return nil
}

func (m *spotMap) Render(enc gpu.CommandEncoder) (int, error) {
	return m.renderDepth(enc)
}

func (m *spotMap) Uniforms(u *shader.LightUniforms, slot int) {
	u.ShadowSlot = float32(slot)
	u.Bias = m.opts.Bias
	if len(m.views) > 0 {
		u.ViewProj[0] = m.views[0].ViewProjection
	}
}

func (m *spotMap) Cleanup() {
	m.release()
}

// SpotView returns the perspective view whose field of view matches the light's
// outer cone, from the point shadow near plane out to the light's range.
func SpotView(s light.State) camera.View {
	dir := common.SafeNormalize(s.Direction, mgl32.Vec3{0, -1, 0})
	fov := 2 * math32.Acos(common.Clamp(s.OuterCone, -1, 1))
	fov = common.Clamp(fov, mgl32.DegToRad(1), mgl32.DegToRad(170))
	far := max(s.Range, light.PointShadowNear*2)
	return camera.NewPerspectiveView(s.Position, dir, common.PerpendicularUp(dir), fov, 1, light.PointShadowNear, far)
}
