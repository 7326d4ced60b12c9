// Package webgpu implements gpu.Device on github.com/cogentcore/webgpu. Draw uniforms are
// uploaded into per-draw buffers that live until the command buffer recording them is
// submitted; texture layers get their own attachment views so cascades and cube faces
// can be rendered one at a time.
package webgpu

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

// Device is the cogentcore/webgpu gpu.Device. It optionally owns a window surface and then
// also implements gpu.Presenter.
type Device struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	surface           *wgpu.Surface
	surfaceDescriptor *wgpu.SurfaceDescriptor
	surfaceFormat     wgpu.TextureFormat
	surfaceSize       gpu.Size
	presentMode       wgpu.PresentMode
	blit              *blitPipeline

	forceFallbackAdapter bool

	// layouts caches bind group layouts by entry signature so bind groups built for one
	// pipeline are compatible with every pipeline sharing the signature.
	layouts map[string]*wgpu.BindGroupLayout

	released bool
}

var (
	_ gpu.Device    = &Device{}
	_ gpu.Presenter = &Device{}
)

// DeviceBuilderOption configures a Device before the adapter is requested.
type DeviceBuilderOption func(*Device)

// WithSurface attaches a window surface the device presents to.
//
// Parameters:
//   - desc: the platform surface descriptor, typically from Window.SurfaceDescriptor()
//   - size: the initial surface size in pixels
//
// Returns:
//   - DeviceBuilderOption: a function that sets the surface
func WithSurface(desc *wgpu.SurfaceDescriptor, size gpu.Size) DeviceBuilderOption {
	return func(d *Device) {
		d.surfaceDescriptor = desc
		d.surfaceSize = size
	}
}

// WithVSync selects Fifo presentation when true and Immediate otherwise (the default).
//
// Parameters:
//   - vsync: whether presentation waits for vertical blank
//
// Returns:
//   - DeviceBuilderOption: a function that sets the present mode
func WithVSync(vsync bool) DeviceBuilderOption {
	return func(d *Device) {
		if vsync {
			d.presentMode = wgpu.PresentModeFifo
		} else {
			d.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithForceFallbackAdapter forces a CPU/software adapter. This requires a software Vulkan
// ICD such as SwiftShader or lavapipe to be installed.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: a function that sets the adapter preference
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *Device) {
		d.forceFallbackAdapter = force
	}
}

// NewDevice requests an adapter and device. Without WithSurface the device is headless.
// The calling goroutine is locked to its OS thread, which must also be the thread that
// records and submits work.
func NewDevice(opts ...DeviceBuilderOption) (*Device, error) {
	runtime.LockOSThread()
	d := &Device{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		layouts:     make(map[string]*wgpu.BindGroupLayout),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.surfaceDescriptor != nil {
		d.surface = d.instance.CreateSurface(d.surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-technique device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		a.Release()
		d.instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if d.surface != nil && d.surfaceSize.Valid() {
		d.configureSurface(d.surfaceSize)
	}
	common.Logger().Debug("webgpu device created", "headless", d.surface == nil, "fallback", d.forceFallbackAdapter)
	return d, nil
}

func (d *Device) Backend() string {
	return "wgpu"
}

func (d *Device) usable() error {
	if d.released {
		return gpu.ErrReleased
	}
	return nil
}

func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	if !desc.Size.Valid() {
		return nil, fmt.Errorf("texture %q size %s: %w", desc.Label, desc.Size, gpu.ErrInvalidDescriptor)
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", desc.Label, err)
	}
	if desc.Layers < 1 {
		desc.Layers = 1
	}
	if desc.Layers > 1 && desc.ViewDimension == gpu.ViewDimension2D {
		desc.ViewDimension = gpu.ViewDimension2DArray
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}

	handle, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Size.Width),
			Height:             uint32(desc.Size.Height),
			DepthOrArrayLayers: uint32(desc.Layers),
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w: %w", desc.Label, gpu.ErrOutOfMemory, err)
	}

	t := &texture{device: d, desc: desc, handle: handle}
	t.whole, err = handle.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          format,
		Dimension:       viewDimension(desc.ViewDimension),
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: uint32(desc.Layers),
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		handle.Release()
		return nil, fmt.Errorf("texture %q view: %w", desc.Label, err)
	}
	if desc.Usage.Has(gpu.TextureUsageRenderAttachment) {
		for layer := range desc.Layers {
			v, err := handle.CreateView(&wgpu.TextureViewDescriptor{
				Label:           fmt.Sprintf("%s layer %d", desc.Label, layer),
				Format:          format,
				Dimension:       wgpu.TextureViewDimension2D,
				BaseMipLevel:    0,
				MipLevelCount:   1,
				BaseArrayLayer:  uint32(layer),
				ArrayLayerCount: 1,
				Aspect:          wgpu.TextureAspectAll,
			})
			if err != nil {
				t.releaseHandles()
				return nil, fmt.Errorf("texture %q layer %d view: %w", desc.Label, layer, err)
			}
			t.layers = append(t.layers, v)
		}
	}
	common.Logger().Debug("webgpu texture created", "texture", desc.Label, "size", desc.Size.String(), "layers", desc.Layers, "format", desc.Format.String())
	return t, nil
}

func (d *Device) CreateMesh(desc gpu.MeshDescriptor) (gpu.Mesh, error) {
	if len(desc.Positions) == 0 {
		return nil, fmt.Errorf("mesh %q has no vertices: %w", desc.Label, gpu.ErrInvalidDescriptor)
	}
	if len(desc.Normals) != 0 && len(desc.Normals) != len(desc.Positions) {
		return nil, fmt.Errorf("mesh %q has %d normals for %d positions: %w", desc.Label, len(desc.Normals), len(desc.Positions), gpu.ErrInvalidDescriptor)
	}
	indices := desc.Indices
	if len(indices) == 0 {
		indices = make([]uint32, len(desc.Positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	// interleaved position, normal
	vertices := make([]float32, 0, len(desc.Positions)*6)
	for i, p := range desc.Positions {
		var n [3]float32
		if len(desc.Normals) != 0 {
			n = desc.Normals[i]
		}
		vertices = append(vertices, p[0], p[1], p[2], n[0], n[1], n[2])
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}

	m := &mesh{desc: desc, indexCount: len(indices)}
	vertexData := common.SliceToBytes(vertices)
	vb, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label + " Vertex Buffer",
		Size:             uint64(len(vertexData)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("mesh %q vertex buffer: %w: %w", desc.Label, gpu.ErrOutOfMemory, err)
	}
	d.queue.WriteBuffer(vb, 0, vertexData)
	m.vertexBuffer = vb

	indexData := common.SliceToBytes(indices)
	ib, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label + " Index Buffer",
		Size:             uint64(len(indexData)),
		Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		vb.Release()
		return nil, fmt.Errorf("mesh %q index buffer: %w: %w", desc.Label, gpu.ErrOutOfMemory, err)
	}
	d.queue.WriteBuffer(ib, 0, indexData)
	m.indexBuffer = ib
	return m, nil
}

// layout returns the cached bind group layout for entries, creating it on first use.
// The device lock must be held.
func (d *Device) layout(key string, entries []wgpu.BindGroupLayoutEntry) (*wgpu.BindGroupLayout, error) {
	if l, ok := d.layouts[key]; ok {
		return l, nil
	}
	l, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   key,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("bind group layout %s: %w", key, err)
	}
	d.layouts[key] = l
	return l, nil
}

func (d *Device) uniformLayout() (*wgpu.BindGroupLayout, error) {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
	}
	entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	return d.layout("uniform", []wgpu.BindGroupLayoutEntry{entry})
}

func textureLayoutKey(bindings []gpu.TextureBinding) string {
	var sb strings.Builder
	sb.WriteString("textures")
	for _, b := range bindings {
		fmt.Fprintf(&sb, ":%d/%d", b.Kind, b.Dimension)
	}
	return sb.String()
}

func (d *Device) textureLayout(bindings []gpu.TextureBinding) (*wgpu.BindGroupLayout, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, len(bindings))
	for i, b := range bindings {
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageFragment,
		}
		entries[i].Texture.SampleType = sampleType(b.Kind)
		entries[i].Texture.ViewDimension = viewDimension(b.Dimension)
	}
	return d.layout(textureLayoutKey(bindings), entries)
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("command encoder %q: %w", label, err)
	}
	return &commandEncoder{device: d, label: label, encoder: enc, resources: &bindings{label: label}}, nil
}

// Submit validates the resource states each buffer relies on, in recording order, then
// submits it to the queue. Per-draw resources are released once the buffer is queued.
func (d *Device) Submit(buffers ...gpu.CommandBuffer) error {
	for i, b := range buffers {
		cb, ok := b.(*commandBuffer)
		if !ok {
			return fmt.Errorf("submit: foreign command buffer %T: %w", b, gpu.ErrInvalidDescriptor)
		}
		d.mu.Lock()
		var err error
		for _, check := range cb.checks {
			if err = check(); err != nil {
				break
			}
		}
		d.mu.Unlock()
		if err != nil {
			for _, rest := range buffers[i:] {
				if c, ok := rest.(*commandBuffer); ok {
					c.release()
				}
			}
			return fmt.Errorf("submit %q: %w", cb.label, err)
		}
		d.queue.Submit(cb.handle)
		cb.release()
	}
	return nil
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
	if d.blit != nil {
		d.blit.release()
		d.blit = nil
	}
	for k, l := range d.layouts {
		l.Release()
		delete(d.layouts, k)
	}
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	if d.surface != nil {
		d.surface.Release()
	}
	d.instance.Release()
}

type texture struct {
	device *Device
	desc   gpu.TextureDescriptor
	handle *wgpu.Texture
	whole  *wgpu.TextureView
	layers []*wgpu.TextureView

	// state is guarded by the device lock.
	state    gpu.ResourceState
	released atomic.Bool
}

var _ gpu.Texture = &texture{}

func (t *texture) Label() string                    { return t.desc.Label }
func (t *texture) Size() gpu.Size                   { return t.desc.Size }
func (t *texture) Layers() int                      { return t.desc.Layers }
func (t *texture) Format() gpu.TextureFormat        { return t.desc.Format }
func (t *texture) Usage() gpu.TextureUsage          { return t.desc.Usage }
func (t *texture) ViewDimension() gpu.ViewDimension { return t.desc.ViewDimension }
func (t *texture) Released() bool                   { return t.released.Load() }

func (t *texture) State() gpu.ResourceState {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	return t.state
}

func (t *texture) Release() {
	if t.released.Swap(true) {
		return
	}
	t.releaseHandles()
}

func (t *texture) releaseHandles() {
	for _, v := range t.layers {
		v.Release()
	}
	t.layers = nil
	if t.whole != nil {
		t.whole.Release()
		t.whole = nil
	}
	t.handle.Release()
}

// attachmentView returns the single-layer view a render pass writes.
func (t *texture) attachmentView(layer int) (*wgpu.TextureView, error) {
	if layer == gpu.AllLayers {
		if t.desc.Layers != 1 {
			return nil, fmt.Errorf("attachment %q must select one of %d layers: %w", t.Label(), t.desc.Layers, gpu.ErrInvalidDescriptor)
		}
		layer = 0
	}
	if layer < 0 || layer >= len(t.layers) {
		return nil, fmt.Errorf("attachment %q layer %d unavailable: %w", t.Label(), layer, gpu.ErrInvalidDescriptor)
	}
	return t.layers[layer], nil
}

type mesh struct {
	desc         gpu.MeshDescriptor
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	indexCount   int
	released     atomic.Bool
}

var _ gpu.Mesh = &mesh{}

func (m *mesh) Label() string          { return m.desc.Label }
func (m *mesh) Topology() gpu.Topology { return m.desc.Topology }
func (m *mesh) VertexCount() int       { return len(m.desc.Positions) }
func (m *mesh) IndexCount() int        { return m.indexCount }

func (m *mesh) Release() {
	if m.released.Swap(true) {
		return
	}
	m.vertexBuffer.Release()
	m.indexBuffer.Release()
}
