// Package software is a CPU reference implementation of gpu.Device. It rasterises triangles
// and points into float32 textures with programs that mirror the WGSL modules, records a log
// of everything it executes, and lets tests read back any texel.
package software

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

// EventKind classifies a command log entry.
type EventKind string

const (
	EventSubmit     EventKind = "submit"
	EventPass       EventKind = "pass"
	EventDraw       EventKind = "draw"
	EventSample     EventKind = "sample"
	EventTransition EventKind = "transition"
	EventCopy       EventKind = "copy"
)

// Event is one executed command.
type Event struct {
	Kind EventKind

	// Label is the command buffer, pass, pipeline or texture the event concerns.
	Label string

	// Detail is the pass a sample or draw happened in, the target state of a
	// transition, or the destination of a copy.
	Detail string
}

func (e Event) String() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s", e.Kind, e.Label)
	}
	return fmt.Sprintf("%s %s (%s)", e.Kind, e.Label, e.Detail)
}

// Device is the software gpu.Device.
type Device struct {
	mu *sync.Mutex

	budget    int64
	allocated int64
	log       []Event
	released  bool
}

var _ gpu.Device = &Device{}

// DeviceBuilderOption configures a Device.
type DeviceBuilderOption func(*Device)

// WithMemoryBudget caps the bytes of texture storage the device hands out. Allocations past
// the cap fail with gpu.ErrOutOfMemory. Zero means unlimited.
//
// Parameters:
//   - bytes: the budget in bytes
//
// Returns:
//   - DeviceBuilderOption: a function that sets the budget
func WithMemoryBudget(bytes int64) DeviceBuilderOption {
	return func(d *Device) {
		d.budget = bytes
	}
}

// NewDevice creates a software device.
func NewDevice(opts ...DeviceBuilderOption) *Device {
	d := &Device{mu: &sync.Mutex{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) Backend() string {
	return "software"
}

func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	if !desc.Size.Valid() {
		return nil, fmt.Errorf("texture %q size %s: %w", desc.Label, desc.Size, gpu.ErrInvalidDescriptor)
	}
	if desc.Format.BytesPerTexel() == 0 {
		return nil, fmt.Errorf("texture %q format %s: %w", desc.Label, desc.Format, gpu.ErrUnsupported)
	}
	if desc.Layers < 1 {
		desc.Layers = 1
	}
	if desc.Layers > 1 && desc.ViewDimension == gpu.ViewDimension2D {
		desc.ViewDimension = gpu.ViewDimension2DArray
	}

	cost := int64(desc.Size.Width) * int64(desc.Size.Height) * int64(desc.Layers) * int64(desc.Format.BytesPerTexel())

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, fmt.Errorf("texture %q: %w", desc.Label, gpu.ErrReleased)
	}
	if d.budget > 0 && d.allocated+cost > d.budget {
		return nil, fmt.Errorf("texture %q needs %d bytes, %d of %d in use: %w", desc.Label, cost, d.allocated, d.budget, gpu.ErrOutOfMemory)
	}
	d.allocated += cost

	t := &texture{
		device: d,
		desc:   desc,
		data:   make([]mgl32.Vec4, desc.Size.Width*desc.Size.Height*desc.Layers),
	}
	common.Logger().Debug("software texture created", "texture", desc.Label, "size", desc.Size.String(), "layers", desc.Layers, "format", desc.Format.String())
	return t, nil
}

func (d *Device) free(t *texture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := t.desc.Size
	d.allocated -= int64(s.Width) * int64(s.Height) * int64(t.desc.Layers) * int64(t.desc.Format.BytesPerTexel())
	t.data = nil
}

// Allocated returns the bytes of texture storage currently in use.
func (d *Device) Allocated() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

func (d *Device) CreateMesh(desc gpu.MeshDescriptor) (gpu.Mesh, error) {
	if len(desc.Positions) == 0 {
		return nil, fmt.Errorf("mesh %q has no vertices: %w", desc.Label, gpu.ErrInvalidDescriptor)
	}
	if len(desc.Normals) != 0 && len(desc.Normals) != len(desc.Positions) {
		return nil, fmt.Errorf("mesh %q has %d normals for %d positions: %w", desc.Label, len(desc.Normals), len(desc.Positions), gpu.ErrInvalidDescriptor)
	}
	for _, i := range desc.Indices {
		if int(i) >= len(desc.Positions) {
			return nil, fmt.Errorf("mesh %q index %d out of range: %w", desc.Label, i, gpu.ErrInvalidDescriptor)
		}
	}
	m := &mesh{desc: desc}
	if len(m.desc.Normals) == 0 {
		m.desc.Normals = make([]mgl32.Vec3, len(desc.Positions))
	}
	if len(m.desc.Indices) == 0 {
		m.desc.Indices = make([]uint32, len(desc.Positions))
		for i := range m.desc.Indices {
			m.desc.Indices[i] = uint32(i)
		}
	}
	return m, nil
}

func (d *Device) CreatePipeline(desc gpu.PipelineDescriptor) (gpu.Pipeline, error) {
	prog, err := lookupProgram(desc.Module.Key)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w: %w", desc.Label, gpu.ErrUnsupported, err)
	}
	if desc.Fullscreen != (prog.fullscreen != nil) {
		return nil, fmt.Errorf("pipeline %q: module %q fullscreen mismatch: %w", desc.Label, desc.Module.Key, gpu.ErrInvalidDescriptor)
	}
	if prog.fragment == nil && prog.fullscreen == nil && len(desc.Targets) > 0 {
		return nil, fmt.Errorf("pipeline %q: depth-only module %q cannot write colour targets: %w", desc.Label, desc.Module.Key, gpu.ErrInvalidDescriptor)
	}
	if desc.TextureBindings != len(desc.Module.Textures) {
		return nil, fmt.Errorf("pipeline %q expects %d textures, module declares %d: %w", desc.Label, desc.TextureBindings, len(desc.Module.Textures), gpu.ErrBindingMismatch)
	}
	return &pipeline{desc: desc, prog: prog}, nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, gpu.ErrReleased
	}
	return &commandEncoder{device: d, label: label}, nil
}

func (d *Device) Submit(buffers ...gpu.CommandBuffer) error {
	for _, b := range buffers {
		cb, ok := b.(*commandBuffer)
		if !ok {
			return fmt.Errorf("submit: foreign command buffer %T: %w", b, gpu.ErrInvalidDescriptor)
		}
		d.record(Event{Kind: EventSubmit, Label: cb.label})
		for _, cmd := range cb.commands {
			if err := cmd(d); err != nil {
				return fmt.Errorf("submit %q: %w", cb.label, err)
			}
		}
	}
	return nil
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
}

func (d *Device) record(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = append(d.log, e)
}

// Log returns a copy of every event executed since the last ResetLog.
func (d *Device) Log() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.log))
	copy(out, d.log)
	return out
}

// ResetLog clears the command log.
func (d *Device) ResetLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = d.log[:0]
}

// ReadTexel returns one texel of a texture created by this device.
//
// Parameters:
//   - t: the texture
//   - x, y: the texel coordinates
//   - layer: the array layer
//
// Returns:
//   - mgl32.Vec4: the texel, or zero outside the texture
func (d *Device) ReadTexel(t gpu.Texture, x, y, layer int) mgl32.Vec4 {
	st, ok := t.(*texture)
	if !ok || st.Released() {
		return mgl32.Vec4{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return st.load(x, y, layer)
}

// ReadLayer returns a copy of one layer in row-major order.
func (d *Device) ReadLayer(t gpu.Texture, layer int) []mgl32.Vec4 {
	st, ok := t.(*texture)
	if !ok || st.Released() || layer < 0 || layer >= st.desc.Layers {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := st.layerSize()
	out := make([]mgl32.Vec4, n)
	copy(out, st.data[layer*n:(layer+1)*n])
	return out
}

type mesh struct {
	desc gpu.MeshDescriptor
}

func (m *mesh) Label() string          { return m.desc.Label }
func (m *mesh) Topology() gpu.Topology { return m.desc.Topology }
func (m *mesh) VertexCount() int       { return len(m.desc.Positions) }
func (m *mesh) IndexCount() int        { return len(m.desc.Indices) }
func (m *mesh) Release()               {}

type pipeline struct {
	desc gpu.PipelineDescriptor
	prog program
}

func (p *pipeline) Label() string                      { return p.desc.Label }
func (p *pipeline) Descriptor() gpu.PipelineDescriptor { return p.desc }
func (p *pipeline) Release()                           {}
