package shadow

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

// directionalMap is a cascaded depth map. The cascade count is fixed when the map is
// built; the cascades are refitted to the camera every frame.
type directionalMap struct {
	mapBase

	cascades int
	splits   []float32
}

var _ Map = &directionalMap{}

func (m *directionalMap) Create(size int) error {
	m.release()
	t, err := m.createTexture("depth", size, m.cascades, gpu.TextureFormatDepth32Float, true)
	if err != nil {
		return err
	}
	m.texture, m.size = t, size
	return nil
}

func (m *directionalMap) Update(queues *scene.QueueSet) error {
	s, err := m.state(queues)
	if err != nil {
		return err
	}
	m.splits, m.views = FitCascades(queues.Snapshot().Camera, s.Direction, m.cascades, max(m.size, 1), m.opts)
	m.derived = true
	m.light.ClearMoved(s.Version)
	m.request(queues)
	return nil
}

func (m *directionalMap) Render(enc gpu.CommandEncoder) (int, error) {
	return m.renderDepth(enc)
}

func (m *directionalMap) Uniforms(u *shader.LightUniforms, slot int) {
	u.ShadowSlot = float32(slot)
	u.Bias = m.opts.Bias
	u.CascadeCount = min(len(m.views), len(u.ViewProj))
	for i := range u.CascadeCount {
		u.ViewProj[i] = m.views[i].ViewProjection
		u.Splits[i] = m.splits[i]
	}
}

func (m *directionalMap) Cleanup() {
	m.release()
	m.splits = nil
}

// Splits returns the cascade split depths of the last Update.
func (m *directionalMap) Splits() []float32 {
	return m.splits
}

// FitCascades splits the camera range into count slices and fits an orthographic
// light view around each slice's bounding sphere. Each view's origin is snapped to
// the map's texel grid so cascades do not shimmer as the camera moves.
//
// Parameters:
//   - cam: the main camera view
//   - dir: the light direction
//   - count: the number of cascades
//   - size: the map size in texels
//   - opts: the shadow options providing the split lambda, caster margin and far cap
//
// Returns:
//   - []float32: the far view depth of each cascade
//   - []camera.View: the light view of each cascade
func FitCascades(cam camera.View, dir mgl32.Vec3, count, size int, opts Options) ([]float32, []camera.View) {
	near := max(cam.Near, 1e-3)
	far := cam.Far
	if opts.ShadowFar > 0 {
		far = min(far, opts.ShadowFar)
	}
	far = max(far, near*2)
	splits := shader.CascadeSplits(near, far, count, opts.CascadeLambda)

	dir = common.SafeNormalize(dir, mgl32.Vec3{0, -1, 0})
	up := common.PerpendicularUp(dir)
	basis := common.LookAt(mgl32.Vec3{}, dir, up)
	inv := basis.Inv()

	views := make([]camera.View, count)
	prev := near
	for i, split := range splits {
		corners := cam.Corners(prev, split)
		center, radius := common.BoundingSphere(corners[:])
		radius = max(math32.Ceil(radius*16)/16, 1e-3)

		texel := 2 * radius / float32(size)
		lc := common.TransformPoint(basis, center)
		lc = mgl32.Vec3{math32.Floor(lc.X()/texel) * texel, math32.Floor(lc.Y()/texel) * texel, lc.Z()}
		center = common.TransformPoint(inv, lc)

		eye := center.Sub(dir.Mul(radius + opts.CasterMargin))
		views[i] = camera.NewOrthographicView(eye, dir, up, radius+texel, 0, 2*radius+opts.CasterMargin)
		prev = split
	}
	return splits, views
}
