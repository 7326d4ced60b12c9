package renderer

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu/software"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/webgpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
	"github.com/Carmen-Shannon/oxy-technique/engine/window"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline
	meshCache     map[uint64]*cachedMesh
	meshEpoch     uint64

	backendType BackendType
	device      gpu.Device
	library     shader.Library
	validate    bool

	// Pre-creation config collected from builder options
	window               window.Window
	forceFallbackAdapter bool
	presentMode          PresentMode
	memoryBudget         int64
}

// cachedMesh is an uploaded geometry and the eviction epoch it was last requested in.
type cachedMesh struct {
	mesh gpu.Mesh
	used uint64
}

// Renderer defines the interface for the rendering system.
//
// The Renderer owns the GPU device, the shader library the passes build their pipelines from,
// a cache of registered pipelines keyed by pipeline key, and a cache of uploaded meshes keyed
// by geometry ID. Render techniques are written against it rather than against a backend.
type Renderer interface {
	// Backend returns the backend the device was created for.
	//
	// Returns:
	//   - BackendType: the backend type
	Backend() BackendType

	// Device returns the GPU device.
	//
	// Returns:
	//   - gpu.Device: the device
	Device() gpu.Device

	// Library returns the shader library.
	//
	// Returns:
	//   - shader.Library: the library
	Library() shader.Library

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves a copy of the pipeline cache.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines creates the device pipeline of each Pipeline and caches it by PipelineKey.
	// Pipelines whose keys are already registered with a live handle are skipped. With validation
	// enabled each module is compiled with naga first.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: the first creation failure, wrapping the pipeline key
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// ReleasePipelines releases and forgets the pipelines with the given keys. Unknown keys are ignored.
	//
	// Parameters:
	//   - keys: the pipeline keys
	ReleasePipelines(keys ...string)

	// Mesh returns the uploaded mesh for a geometry, uploading it on first use.
	//
	// Parameters:
	//   - g: the geometry
	//
	// Returns:
	//   - gpu.Mesh: the device mesh
	//   - error: an error if the upload fails
	Mesh(g *scene.Geometry) (gpu.Mesh, error)

	// ReleaseMesh frees the uploaded mesh of a geometry. Unknown IDs are ignored; the
	// next Mesh call for the geometry uploads it again.
	//
	// Parameters:
	//   - id: the geometry ID
	ReleaseMesh(id uint64)

	// EvictMeshes ends an eviction epoch, typically one rendered frame, and frees every
	// mesh not requested during the last idle epochs.
	//
	// Parameters:
	//   - idle: epochs a mesh may go unrequested before it is freed (at least 1)
	//
	// Returns:
	//   - int: the number of meshes freed
	EvictMeshes(idle uint64) int

	// Resize reconfigures the presentation surface, if the device has one.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// Present shows t on the window surface.
	//
	// Parameters:
	//   - t: a texture in ResourceStateShaderRead
	//
	// Returns:
	//   - error: gpu.ErrUnsupported for devices without a surface
	Present(t gpu.Texture) error

	// Release frees every cached pipeline and mesh, then the device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with a device for the given backend type.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
//   - error: an error if the device could not be created
func NewRenderer(backendType BackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		meshCache:     make(map[uint64]*cachedMesh),
		backendType:   backendType,
		presentMode:   PresentModeUncapped,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}
	if r.library == nil {
		r.library = shader.NewLibrary()
	}

	if r.device == nil {
		switch backendType {
		case BackendTypeWGPU:
			opts := []webgpu.DeviceBuilderOption{
				webgpu.WithForceFallbackAdapter(r.forceFallbackAdapter),
				webgpu.WithVSync(r.presentMode == PresentModeVSync),
			}
			if r.window != nil {
				opts = append(opts, webgpu.WithSurface(r.window.SurfaceDescriptor(), r.window.Size()))
			}
			d, err := webgpu.NewDevice(opts...)
			if err != nil {
				return nil, fmt.Errorf("create %s device: %w", backendType, err)
			}
			r.device = d
		default:
			r.device = software.NewDevice(software.WithMemoryBudget(r.memoryBudget))
		}
	}
	common.Logger().Debug("renderer created", "backend", r.device.Backend(), "validation", r.validate)
	return r, nil
}

func (r *renderer) Backend() BackendType {
	return r.backendType
}

func (r *renderer) Device() gpu.Device {
	return r.device
}

func (r *renderer) Library() shader.Library {
	return r.library
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.pipelineCache)
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if cached, exists := r.pipelineCache[key]; exists && cached.Handle() != nil {
			continue
		}
		if r.validate {
			if _, err := shader.Validate(p.Module().Source); err != nil {
				return fmt.Errorf("pipeline %q: %w", key, err)
			}
		}
		h, err := r.device.CreatePipeline(p.Descriptor())
		if err != nil {
			return fmt.Errorf("pipeline %q: %w", key, err)
		}
		p.SetHandle(h)
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) ReleasePipelines(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		if p, ok := r.pipelineCache[key]; ok {
			p.Release()
			delete(r.pipelineCache, key)
		}
	}
}

func (r *renderer) Mesh(g *scene.Geometry) (gpu.Mesh, error) {
	if g == nil {
		panic("renderer: nil geometry")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.meshCache[g.ID]; ok {
		c.used = r.meshEpoch
		return c.mesh, nil
	}
	m, err := r.device.CreateMesh(g.Descriptor())
	if err != nil {
		return nil, fmt.Errorf("mesh %q: %w", g.Label, err)
	}
	r.meshCache[g.ID] = &cachedMesh{mesh: m, used: r.meshEpoch}
	return m, nil
}

func (r *renderer) ReleaseMesh(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.meshCache[id]; ok {
		c.mesh.Release()
		delete(r.meshCache, id)
	}
}

func (r *renderer) EvictMeshes(idle uint64) int {
	idle = max(idle, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meshEpoch++
	evicted := 0
	for id, c := range r.meshCache {
		if r.meshEpoch-c.used > idle {
			c.mesh.Release()
			delete(r.meshCache, id)
			evicted++
		}
	}
	if evicted > 0 {
		common.Logger().Debug("idle meshes evicted", "count", evicted, "cached", len(r.meshCache))
	}
	return evicted
}

func (r *renderer) Resize(width, height int) {
	if p, ok := r.device.(gpu.Presenter); ok {
		p.ResizeSurface(gpu.Size{Width: width, Height: height})
	}
}

func (r *renderer) Present(t gpu.Texture) error {
	p, ok := r.device.(gpu.Presenter)
	if !ok {
		return fmt.Errorf("present on %s device: %w", r.device.Backend(), gpu.ErrUnsupported)
	}
	return p.Present(t)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	for id, c := range r.meshCache {
		c.mesh.Release()
		delete(r.meshCache, id)
	}
	r.device.Release()
}

// IsUnsupported reports whether err means the device cannot serve a request, as opposed
// to failing it.
func IsUnsupported(err error) bool {
	return errors.Is(err, gpu.ErrUnsupported)
}
