package shadow

import (
	"fmt"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

// Binding slots of the shadow textures in the geometry passes.
const (
	SlotDirectional = iota
	SlotSpot
	SlotPoint
	slotCount
)

// Manager owns the shadow maps of every registered producer. The opaque and transparent
// passes share one Manager so each map is created, updated and rendered once per frame.
//
// A map exists exactly while its light is enabled and casts shadows. Toggling the flag
// creates or destroys the map at the next Update; an existing map is never resized.
type Manager struct {
	mu *sync.Mutex

	r    renderer.Renderer
	opts Options

	producers []light.Light
	maps      map[light.ID]Map

	// bound is the map sampled for each light type this frame, nil when none casts.
	bound [slotCount]Map

	// placeholders are bound in place of a missing map so every pass binds the same layout.
	placeholders [slotCount]gpu.Texture

	initialised bool
}

// NewManager creates a Manager drawing through r.
//
// Parameters:
//   - r: the renderer providing the device, meshes and pipeline cache
//   - opts: the shadow options
//
// Returns:
//   - *Manager: the manager, not yet initialised
func NewManager(r renderer.Renderer, opts Options) *Manager {
	if r == nil {
		panic("shadow: nil renderer")
	}
	return &Manager{
		mu:   &sync.Mutex{},
		r:    r,
		opts: opts,
		maps: make(map[light.ID]Map),
	}
}

// Options returns the options the manager was created with.
func (m *Manager) Options() Options {
	return m.opts
}

// AddShadowProducer registers a light whose shadows the manager renders while the light
// casts them. Registering the same light twice is a no-op.
func (m *Manager) AddShadowProducer(l light.Light) {
	if l == nil {
		panic("shadow: nil shadow producer")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.producers, func(p light.Light) bool { return p.ID() == l.ID() }) {
		return
	}
	m.producers = append(m.producers, l)
	common.Logger().Debug("shadow producer added", "light", l.ID(), "type", l.Type())
}

// RemoveShadowProducer unregisters l and releases its map. Removing a light that was
// never registered is a no-op.
func (m *Manager) RemoveShadowProducer(l light.Light) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.producers, func(p light.Light) bool { return p.ID() == l.ID() })
	if i < 0 {
		return
	}
	m.producers = slices.Delete(m.producers, i, i+1)
	if mp, ok := m.maps[l.ID()]; ok {
		mp.Cleanup()
		delete(m.maps, l.ID())
	}
	for slot, b := range m.bound {
		if b != nil && b.Light().ID() == l.ID() {
			m.bound[slot] = nil
		}
	}
	common.Logger().Debug("shadow producer removed", "light", l.ID(), "type", l.Type())
}

// Producers returns the registered lights in registration order.
func (m *Manager) Producers() []light.Light {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.producers)
}

// Initialise registers the shadow pipelines, clears the placeholder textures and creates
// a map for every producer currently casting shadows. Calling it again before Cleanup
// is a no-op.
//
// Returns:
//   - error: the first failure, after releasing everything already created
func (m *Manager) Initialise() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialised {
		return nil
	}
	if err := m.opts.Validate(); err != nil {
		return err
	}

	pipelines, err := Pipelines(m.r.Library(), m.opts)
	if err != nil {
		return err
	}
	if err := m.r.RegisterPipelines(pipelines...); err != nil {
		return err
	}
	if err := m.createPlaceholders(); err != nil {
		m.cleanupLocked()
		return err
	}
	for _, l := range m.producers {
		if !l.State().ShadowCaster() {
			continue
		}
		if _, err := m.createMap(l); err != nil {
			m.cleanupLocked()
			return err
		}
	}
	m.initialised = true
	common.Logger().Debug("shadow maps initialised", "maps", len(m.maps))
	return nil
}

// Initialised reports whether Initialise succeeded and Cleanup has not run since.
func (m *Manager) Initialised() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialised
}

// Cleanup releases every map, the placeholders and the shadow pipelines. Calling it
// twice is a no-op.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()
}

func (m *Manager) cleanupLocked() {
	for id, mp := range m.maps {
		mp.Cleanup()
		delete(m.maps, id)
	}
	for i, t := range m.placeholders {
		if t != nil {
			t.Release()
			m.placeholders[i] = nil
		}
	}
	m.bound = [slotCount]Map{}
	m.r.ReleasePipelines(PipelineDepth, PipelineDistance)
	if m.initialised {
		common.Logger().Debug("shadow maps cleaned up")
	}
	m.initialised = false
}

// Update creates maps for producers that started casting, destroys maps of producers
// that stopped, selects the map sampled per light type and requests every map's caster
// queues. The caller culls the queue set afterwards.
//
// Parameters:
//   - queues: the frame's queue set
//
// Returns:
//   - error: an allocation error from a lazily created map, or an update error
func (m *Manager) Update(queues *scene.QueueSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialised {
		return fmt.Errorf("shadow: update before initialise: %w", gpu.ErrInvalidState)
	}

	snap := queues.Snapshot()
	m.bound = [slotCount]Map{}
	for _, l := range m.producers {
		s, ok := snap.Light(l.ID())
		casting := ok && s.ShadowCaster()
		mp, exists := m.maps[l.ID()]
		switch {
		case casting && !exists:
			created, err := m.createMap(l)
			if err != nil {
				return err
			}
			mp = created
		case !casting && exists:
			mp.Cleanup()
			delete(m.maps, l.ID())
			common.Logger().Debug("shadow map destroyed", "light", l.ID(), "type", l.Type())
			continue
		case !casting:
			continue
		}

		if err := mp.Update(queues); err != nil {
			return err
		}
		slot := slotFor(l.Type())
		if m.bound[slot] == nil {
			m.bound[slot] = mp
		}
	}
	return nil
}

// Render records every map into one command buffer and submits it, so the maps are
// complete before any pass sampling them is submitted.
//
// Returns:
//   - int: the number of draws recorded
//   - error: a recording or submission error
func (m *Manager) Render() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialised {
		return 0, fmt.Errorf("shadow: render before initialise: %w", gpu.ErrInvalidState)
	}
	if len(m.maps) == 0 {
		return 0, nil
	}

	enc, err := m.r.Device().CreateCommandEncoder("shadows")
	if err != nil {
		return 0, err
	}
	draws := 0
	for _, l := range m.producers {
		mp, ok := m.maps[l.ID()]
		if !ok {
			continue
		}
		n, err := mp.Render(enc)
		draws += n
		if err != nil {
			return draws, err
		}
	}
	buf, err := enc.Finish()
	if err != nil {
		return draws, err
	}
	return draws, m.r.Device().Submit(buf)
}

// Map returns the map of the light with the given ID.
func (m *Manager) Map(id light.ID) (Map, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.maps[id]
	return mp, ok
}

// Maps returns every live map in producer order.
func (m *Manager) Maps() []Map {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Map, 0, len(m.maps))
	for _, l := range m.producers {
		if mp, ok := m.maps[l.ID()]; ok {
			out = append(out, mp)
		}
	}
	return out
}

// Textures returns the directional, spot and point shadow textures in binding order.
// A light type with no bound map gets its placeholder.
func (m *Manager) Textures() []gpu.TextureView {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := make([]gpu.TextureView, slotCount)
	for i := range views {
		t := m.placeholders[i]
		if m.bound[i] != nil && m.bound[i].Texture() != nil {
			t = m.bound[i].Texture()
		}
		views[i] = gpu.WholeView(t)
	}
	return views
}

// Lights builds the light uniforms of a frame from its enabled lights, at most
// shader.MaxLights of them. The light whose map is bound for its type samples it at
// slot 0; every other light is unshadowed.
//
// Parameters:
//   - states: the frame's frozen lights
//
// Returns:
//   - []shader.LightUniforms: the uniforms in state order
func (m *Manager) Lights(states []light.State) []shader.LightUniforms {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]shader.LightUniforms, 0, shader.MaxLights)
	for _, s := range states {
		if !s.Enabled {
			continue
		}
		if len(out) == shader.MaxLights {
			break
		}
		u := Uniforms(s)
		if b := m.bound[slotFor(s.Type)]; b != nil && b.Light().ID() == s.ID {
			b.Uniforms(&u, 0)
		}
		out = append(out, u)
	}
	return out
}

// Uniforms converts a frozen light into unshadowed light uniforms.
func Uniforms(s light.State) shader.LightUniforms {
	u := shader.LightUniforms{
		Position:    s.Position,
		Direction:   common.SafeNormalize(s.Direction, mgl32.Vec3{0, -1, 0}),
		Range:       s.Range,
		Color:       s.Color.Mul(s.Intensity),
		ShadowSlot:  shader.NoShadow,
		InnerCos:    s.InnerCone,
		OuterCos:    s.OuterCone,
		Attenuation: s.Attenuation,
	}
	switch s.Type {
	case light.LightTypePoint:
		u.Type = shader.LightTypePoint
	case light.LightTypeSpot:
		u.Type = shader.LightTypeSpot
	default:
		u.Type = shader.LightTypeDirectional
	}
	return u
}

func slotFor(t light.LightType) int {
	switch t {
	case light.LightTypeSpot:
		return SlotSpot
	case light.LightTypePoint:
		return SlotPoint
	default:
		return SlotDirectional
	}
}

func (m *Manager) createMap(l light.Light) (Map, error) {
	size := m.opts.SizeFor(l.Type())
	mp := NewMap(m.r, l, m.opts)
	if err := mp.Create(size); err != nil {
		common.Logger().Error("shadow map allocation failed", "resource", fmt.Sprintf("shadow/%s/%d", l.Type(), l.ID()), "error", err)
		return nil, err
	}
	m.maps[l.ID()] = mp
	common.Logger().Debug("shadow map created", "light", l.ID(), "type", l.Type(), "size", size)
	return mp, nil
}

// createPlaceholders allocates one 1x1 texture per light type, cleared to that type's
// sentinel and left shader-readable.
func (m *Manager) createPlaceholders() error {
	d := m.r.Device()
	formats := [slotCount]gpu.TextureFormat{
		SlotDirectional: gpu.TextureFormatDepth32Float,
		SlotSpot:        gpu.TextureFormatDepth32Float,
		SlotPoint:       gpu.TextureFormatR32Float,
	}
	names := [slotCount]string{"directional", "spot", "point"}
	for i, f := range formats {
		t, err := d.CreateTexture(gpu.TextureDescriptor{
			Label:         "shadow/placeholder/" + names[i],
			Size:          gpu.Size{Width: 1, Height: 1},
			Layers:        1,
			Format:        f,
			Usage:         gpu.TextureUsageRenderAttachment | gpu.TextureUsageTextureBinding,
			ViewDimension: gpu.ViewDimension2DArray,
		})
		if err != nil {
			return fmt.Errorf("create shadow placeholder %s: %w", names[i], err)
		}
		m.placeholders[i] = t
	}

	enc, err := d.CreateCommandEncoder("shadow/placeholders")
	if err != nil {
		return err
	}
	for i, t := range m.placeholders {
		enc.Transition(t, gpu.ResourceStateRenderTarget)
		view := gpu.LayerView(t, 0)
		desc := gpu.RenderPassDescriptor{Label: t.Label(), LoadOp: gpu.LoadOpClear}
		if formats[i].IsDepth() {
			desc.Framebuffer = gpu.Framebuffer{Label: t.Label(), Depth: &view}
			desc.Clear.Depth = 1
		} else {
			desc.Framebuffer = gpu.Framebuffer{Label: t.Label(), Colors: []gpu.TextureView{view}}
			desc.Clear.Colors = []mgl32.Vec4{{ClearDistance, 0, 0, 0}}
		}
		pass, err := enc.BeginRenderPass(desc)
		if err != nil {
			return err
		}
		if err := pass.End(); err != nil {
			return err
		}
		enc.Transition(t, gpu.ResourceStateShaderRead)
	}
	buf, err := enc.Finish()
	if err != nil {
		return err
	}
	return d.Submit(buf)
}
