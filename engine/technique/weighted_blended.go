package technique

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
	"github.com/Carmen-Shannon/oxy-technique/engine/technique/shadow"
)

// WeightedBlendedName is the registry name of the weighted blended technique.
const WeightedBlendedName = "weighted_blended"

type weightedBlended struct {
	mu *sync.Mutex

	r       renderer.Renderer
	opts    Options
	shadows *shadow.Manager

	opaque      *opaquePass
	transparent *transparentPass
	combine     *combinePass
	post        *postChain

	size        gpu.Size
	initialised bool
	frame       *scene.FrameContext
}

var _ Technique = &weightedBlended{}

// NewWeightedBlended creates the weighted blended order independent transparency
// technique on r. It allocates nothing until Initialise.
//
// Parameters:
//   - r: the renderer every surface and pipeline is created on (must not be nil)
//   - options: technique builder options
//
// Returns:
//   - Technique: the uninitialised technique
func NewWeightedBlended(r renderer.Renderer, options ...TechniqueBuilderOption) Technique {
	if r == nil {
		panic("technique: weighted blended requires a renderer")
	}
	t := &weightedBlended{
		mu:   &sync.Mutex{},
		r:    r,
		opts: defaultOptions(),
	}
	for _, opt := range options {
		opt(&t.opts)
	}
	t.shadows = shadow.NewManager(r, t.opts.Shadow)
	t.opaque = newOpaquePass(r, t.shadows, &t.opts)
	t.transparent = newTransparentPass(r, t.shadows, t.opaque, &t.opts)
	t.combine = newCombinePass(r, t.opaque, t.transparent)
	t.post = &postChain{effects: t.opts.PostEffects}
	return t
}

func (t *weightedBlended) Name() string {
	return WeightedBlendedName
}

func (t *weightedBlended) Initialise(size gpu.Size) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initialiseLocked(size)
}

func (t *weightedBlended) initialiseLocked(size gpu.Size) error {
	if !size.Valid() {
		panic(fmt.Sprintf("technique: invalid render target size %s", size))
	}
	if t.initialised {
		return nil
	}

	steps := []func() error{
		t.opaque.InitialiseShadowMaps,
		func() error { return t.opaque.Initialise(size) },
		func() error { return t.transparent.Initialise(size) },
		func() error { return t.combine.initialise(size) },
		func() error { return t.post.initialise(t.r, size) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.cleanupLocked()
			return err
		}
	}

	t.size = size
	t.initialised = true
	common.Logger().Debug("technique initialised", "technique", WeightedBlendedName, "size", size.String(),
		"weight", t.opts.Weight.String(), "backend", t.r.Backend())
	return nil
}

func (t *weightedBlended) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupLocked()
}

// cleanupLocked releases in reverse creation order. Every step tolerates resources that
// were never created, so it doubles as the partial-failure path of Initialise.
func (t *weightedBlended) cleanupLocked() {
	wasInitialised := t.initialised
	t.post.cleanup()
	t.combine.cleanup()
	t.transparent.Cleanup()
	t.opaque.Cleanup()
	t.opaque.CleanupShadowMaps()
	t.size = gpu.Size{}
	t.initialised = false
	t.frame = nil
	if wasInitialised {
		common.Logger().Debug("technique cleaned up", "technique", WeightedBlendedName)
	}
}

func (t *weightedBlended) Resize(size gpu.Size) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialised && t.size == size {
		return nil
	}
	t.cleanupLocked()
	return t.initialiseLocked(size)
}

func (t *weightedBlended) Update(queues *scene.QueueSet) error {
	if queues == nil {
		panic("technique: update requires a queue set")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialised {
		return ErrNotInitialised
	}

	if err := t.opaque.UpdateShadowMaps(queues); err != nil {
		if errors.Is(err, gpu.ErrOutOfMemory) {
			return wrapAllocation("shadow maps", err)
		}
		return fmt.Errorf("shadow maps: %w", err)
	}
	if err := t.opaque.Update(queues); err != nil {
		return err
	}
	if err := t.transparent.Update(queues); err != nil {
		return err
	}
	queues.Cull()

	snap := queues.Snapshot()
	t.combine.update(snap)
	t.frame = scene.NewFrameContext(snap)
	return nil
}

func (t *weightedBlended) Render(info *RenderInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialised {
		return ErrNotInitialised
	}
	if info == nil {
		info = &RenderInfo{}
	}
	info.Reset()
	defer info.time("frame", time.Now())

	// Rendering without an Update draws the surfaces cleared under an empty scene.
	if t.frame == nil {
		empty := &scene.Snapshot{}
		t.combine.update(empty)
		t.frame = scene.NewFrameContext(empty)
	}
	frame := t.frame
	frame.Begin()
	defer frame.End()
	snap := frame.Snapshot()

	start := time.Now()
	if err := t.opaque.RenderShadowMaps(info); err != nil {
		return fmt.Errorf("shadow maps: %w", err)
	}
	info.time("shadows", start)

	if err := t.opaque.Render(frame, info); err != nil {
		return fmt.Errorf("opaque pass: %w", err)
	}
	if err := t.transparent.Render(frame, info); err != nil {
		return fmt.Errorf("transparent pass: %w", err)
	}

	enc, err := t.r.Device().CreateCommandEncoder("combine")
	if err != nil {
		return err
	}
	if err := t.combine.render(enc, frame, info); err != nil {
		return err
	}
	ctx := PostContext{Size: t.size, Frame: frame, Snapshot: snap, Info: info}
	if err := t.post.apply(enc, t.combine.result, ctx); err != nil {
		return err
	}
	return submit(t.r.Device(), enc)
}

func (t *weightedBlended) AddShadowProducer(l light.Light) {
	t.opaque.AddShadowProducer(l)
}

func (t *weightedBlended) RemoveShadowProducer(l light.Light) {
	t.opaque.RemoveShadowProducer(l)
}

func (t *weightedBlended) AddPostEffect(e PostEffect) error {
	if e == nil {
		panic("technique: nil post-effect")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialised {
		if err := e.Initialise(t.r, t.size); err != nil {
			common.Logger().Error("post-effect initialise failed", "resource", e.Name(), "error", err)
			return wrapAllocation("post/"+e.Name(), err)
		}
	}
	t.post.effects = append(t.post.effects, e)
	return nil
}

func (t *weightedBlended) Result() gpu.Texture {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialised {
		return nil
	}
	return t.combine.result
}

func (t *weightedBlended) OpaquePass() OpaquePass {
	return t.opaque
}

func (t *weightedBlended) TransparentPass() TransparentPass {
	return t.transparent
}

func (t *weightedBlended) Size() gpu.Size {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

func (t *weightedBlended) Initialised() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initialised
}
