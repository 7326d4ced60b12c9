package technique

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
)

// Constructor builds an uninitialised technique on a renderer.
type Constructor func(r renderer.Renderer, options ...TechniqueBuilderOption) Technique

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

func init() {
	Register(WeightedBlendedName, NewWeightedBlended)
}

// Register makes a technique available to New under name. Registering an empty name,
// a nil constructor or a name twice panics.
//
// Parameters:
//   - name: the lookup name
//   - c: the constructor
func Register(name string, c Constructor) {
	if name == "" || c == nil {
		panic("technique: register requires a name and a constructor")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("technique: %q registered twice", name))
	}
	registry[name] = c
}

// New constructs the technique registered under name.
//
// Parameters:
//   - name: the registered name
//   - r: the renderer to build on
//   - options: technique builder options
//
// Returns:
//   - Technique: the uninitialised technique
//   - error: ErrUnknownTechnique when nothing is registered under name
func New(name string, r renderer.Renderer, options ...TechniqueBuilderOption) (Technique, error) {
	registryMu.RLock()
	c, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTechnique, name)
	}
	return c(r, options...), nil
}

// Names returns every registered name in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
