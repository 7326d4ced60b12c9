package shader

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

// Module keys of the embedded programs.
const (
	ModuleShadowDepth    = "shadow_depth"
	ModuleShadowDistance = "shadow_distance"
	ModuleOpaque         = "opaque"
	ModuleTransparent    = "transparent"
	ModuleCombine        = "combine"
	ModuleCopy           = "copy"
	ModuleExposure       = "exposure"
)

// DefaultVariant is the variant of every module that has no specialisations.
const DefaultVariant = ""

var (
	// ErrUnknownModule is returned for a module key with no embedded source.
	ErrUnknownModule = errors.New("shader: unknown module")

	// ErrUnknownVariant is returned for a variant the module does not declare.
	ErrUnknownVariant = errors.New("shader: unknown variant")
)

var (
	//go:embed assets/shadow_depth.wgsl
	shadowDepthSource string
	//go:embed assets/shadow_distance.wgsl
	shadowDistanceSource string
	//go:embed assets/opaque.wgsl
	opaqueSource string
	//go:embed assets/transparent.wgsl
	transparentSource string
	//go:embed assets/combine.wgsl
	combineSource string
	//go:embed assets/copy.wgsl
	copySource string
	//go:embed assets/exposure.wgsl
	exposureSource string
)

type moduleSource struct {
	source   string
	variants map[string]map[string]string
}

var moduleSources = map[string]moduleSource{
	ModuleShadowDepth:    {source: shadowDepthSource},
	ModuleShadowDistance: {source: shadowDistanceSource},
	ModuleOpaque:         {source: opaqueSource},
	ModuleTransparent:    {source: transparentSource},
	ModuleCombine:        {source: combineSource, variants: fogVariants()},
	ModuleCopy:           {source: copySource},
	ModuleExposure:       {source: exposureSource},
}

type variantKey struct {
	key     string
	variant string
}

type compiled struct {
	module     gpu.ShaderModule
	reflection Reflection
}

// library is the implementation of the Library interface.
type library struct {
	mu      *sync.RWMutex
	pp      PreProcessor
	modules map[variantKey]compiled
}

// Library hands out pre-processed shader modules, processing each (key, variant) once.
type Library interface {
	// Module returns the processed module for key and variant.
	//
	// Parameters:
	//   - key: one of the Module* constants
	//   - variant: DefaultVariant, or a declared variant such as a fog mode name for the combine module
	//
	// Returns:
	//   - gpu.ShaderModule: the processed module with entry points and texture slots filled in
	//   - error: ErrUnknownModule, ErrUnknownVariant, or a pre-processing error
	Module(key, variant string) (gpu.ShaderModule, error)

	// Reflection returns the reflected interface of a module.
	//
	// Parameters:
	//   - key: the module key
	//   - variant: the variant
	//
	// Returns:
	//   - Reflection: entry points, texture slots and uniform sizes
	//   - error: as for Module
	Reflection(key, variant string) (Reflection, error)

	// Variants lists the declared variants of key in sorted order, or [DefaultVariant] for
	// modules without specialisations.
	Variants(key string) []string
}

var _ Library = &library{}

// NewLibrary creates an empty library over the embedded modules.
func NewLibrary() Library {
	return &library{
		mu:      &sync.RWMutex{},
		pp:      NewPreProcessor(),
		modules: make(map[variantKey]compiled),
	}
}

// Keys lists every embedded module key in sorted order.
func Keys() []string {
	return slices.Sorted(maps.Keys(moduleSources))
}

func (l *library) Module(key, variant string) (gpu.ShaderModule, error) {
	c, err := l.get(key, variant)
	if err != nil {
		return gpu.ShaderModule{}, err
	}
	return c.module, nil
}

func (l *library) Reflection(key, variant string) (Reflection, error) {
	c, err := l.get(key, variant)
	if err != nil {
		return Reflection{}, err
	}
	return c.reflection, nil
}

func (l *library) Variants(key string) []string {
	src, ok := moduleSources[key]
	if !ok {
		return nil
	}
	if len(src.variants) == 0 {
		return []string{DefaultVariant}
	}
	return slices.Sorted(maps.Keys(src.variants))
}

func (l *library) get(key, variant string) (compiled, error) {
	vk := variantKey{key: key, variant: variant}

	l.mu.RLock()
	c, ok := l.modules[vk]
	l.mu.RUnlock()
	if ok {
		return c, nil
	}

	src, ok := moduleSources[key]
	if !ok {
		return compiled{}, fmt.Errorf("%w: %q", ErrUnknownModule, key)
	}
	var defines map[string]string
	if len(src.variants) > 0 {
		defines, ok = src.variants[variant]
		if !ok {
			return compiled{}, fmt.Errorf("%w: %q for module %q", ErrUnknownVariant, variant, key)
		}
	} else if variant != DefaultVariant {
		return compiled{}, fmt.Errorf("%w: %q for module %q", ErrUnknownVariant, variant, key)
	}

	// the pre-processor keeps per-call state, so processing is serialised
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.modules[vk]; ok {
		return c, nil
	}

	processed, err := l.pp.Process(src.source, defines)
	if err != nil {
		return compiled{}, fmt.Errorf("process %s/%s: %w", key, variant, err)
	}
	r, err := Reflect(processed)
	if err != nil {
		return compiled{}, fmt.Errorf("reflect %s/%s: %w", key, variant, err)
	}

	c = compiled{
		module: gpu.ShaderModule{
			Key:           key,
			Variant:       variant,
			Source:        processed,
			VertexEntry:   r.VertexEntry,
			FragmentEntry: r.FragmentEntry,
			Textures:      r.Textures,
		},
		reflection: r,
	}
	l.modules[vk] = c
	return c, nil
}
