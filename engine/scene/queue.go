package scene

import (
	"cmp"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
)

// Names of the queues every QueueSet requests for the main camera.
const (
	QueueOpaque      = "opaque"
	QueueTransparent = "transparent"
)

// Filter selects the items a queue accepts.
type Filter func(it Item) bool

// OpaqueItems accepts items with an opaque material.
func OpaqueItems(it Item) bool {
	return !it.Material.Transparent
}

// TransparentItems accepts items with a transparent material.
func TransparentItems(it Item) bool {
	return it.Material.Transparent
}

// ShadowCasters accepts every item whose material casts shadows. Particles never cast.
func ShadowCasters(it Item) bool {
	return it.Material.CastsShadows && !it.Particle()
}

// RenderQueue is the ordered list of items visible from one view. It is rebuilt
// every frame by a QueueSet and consumed once by render.
type RenderQueue struct {
	Name  string
	View  camera.View
	Items []Item

	// Particles is the number of point-list items in Items.
	Particles int

	filter Filter
	culled bool
}

// Culled reports whether the queue's items have been computed.
func (q *RenderQueue) Culled() bool {
	return q.culled
}

func (q *RenderQueue) cull(snap *Snapshot) {
	frustum := q.View.Frustum()
	items := make([]Item, 0, len(snap.Items))
	particles := 0
	for _, it := range snap.Items {
		if q.filter != nil && !q.filter(it) {
			continue
		}
		if !frustum.IntersectsAABB(it.Geometry.Bounds.Transform(it.Transform)) {
			continue
		}
		if it.Particle() {
			particles++
		}
		items = append(items, it)
	}

	// Opaque surfaces first, each group nearest first; transparency is order independent
	// so the ordering only affects early depth rejection.
	depth := func(it Item) float32 {
		return q.View.Depth(it.Geometry.Bounds.Transform(it.Transform).Center())
	}
	slices.SortStableFunc(items, func(a, b Item) int {
		if a.Material.Transparent != b.Material.Transparent {
			if a.Material.Transparent {
				return 1
			}
			return -1
		}
		if c := cmp.Compare(depth(a), depth(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	q.Items = items
	q.Particles = particles
	q.culled = true
}

// Culler owns the worker pool QueueSets cull on. One Culler serves every frame.
type Culler struct {
	pool    worker.DynamicWorkerPool
	workers int
}

// CullerOption configures a Culler.
type CullerOption func(*Culler)

// WithCullWorkers sets the number of worker goroutines used to cull queues in
// parallel. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of cull workers (minimum 1)
//
// Returns:
//   - CullerOption: option function to apply
func WithCullWorkers(n int) CullerOption {
	return func(c *Culler) {
		c.workers = max(n, 1)
	}
}

// NewCuller creates a Culler. Workers persist across frames and idle out after a second.
func NewCuller(options ...CullerOption) *Culler {
	c := &Culler{workers: max(runtime.NumCPU()-1, 1)}
	for _, option := range options {
		option(c)
	}
	// Queue size of 256 covers the main views plus every shadow view with headroom.
	c.pool = worker.NewDynamicWorkerPool(c.workers, 256, 1*time.Second)
	return c
}

// NewQueueSet creates the frame's queue set over snap, culled on the pool.
func (c *Culler) NewQueueSet(snap *Snapshot) *QueueSet {
	qs := NewQueueSet(snap)
	qs.culler = c
	return qs
}

// QueueSet collects the named render queue requests of one frame. The main camera's
// opaque and transparent queues are requested on creation; passes add their own
// views (shadow views) before calling Cull.
type QueueSet struct {
	mu       sync.Mutex
	snapshot *Snapshot
	culler   *Culler
	queues   []*RenderQueue
	byName   map[string]*RenderQueue
}

// NewQueueSet creates a queue set over snap that culls on the calling goroutine.
//
// Parameters:
//   - snap: the frame's snapshot (must not be nil)
//
// Returns:
//   - *QueueSet: the queue set with the main camera queues requested
func NewQueueSet(snap *Snapshot) *QueueSet {
	if snap == nil {
		panic("scene: queue set requires a snapshot")
	}
	qs := &QueueSet{
		snapshot: snap,
		byName:   make(map[string]*RenderQueue),
	}
	qs.Request(QueueOpaque, snap.Camera, OpaqueItems)
	qs.Request(QueueTransparent, snap.Camera, TransparentItems)
	return qs
}

// Snapshot returns the frame's frozen scene.
func (qs *QueueSet) Snapshot() *Snapshot {
	return qs.snapshot
}

// Request registers a queue for view. Requesting an existing name replaces its view
// and filter and marks it for re-culling.
//
// Parameters:
//   - name: the unique queue name
//   - view: the view to cull against
//   - filter: the item filter, nil accepts everything
//
// Returns:
//   - *RenderQueue: the requested queue, filled by the next Cull
func (qs *QueueSet) Request(name string, view camera.View, filter Filter) *RenderQueue {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if q, ok := qs.byName[name]; ok {
		q.View = view
		q.filter = filter
		q.culled = false
		return q
	}
	q := &RenderQueue{Name: name, View: view, filter: filter}
	qs.queues = append(qs.queues, q)
	qs.byName[name] = q
	return q
}

// Queue returns the queue with the given name.
func (qs *QueueSet) Queue(name string) (*RenderQueue, bool) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	q, ok := qs.byName[name]
	return q, ok
}

// Queues returns every requested queue in request order.
func (qs *QueueSet) Queues() []*RenderQueue {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return slices.Clone(qs.queues)
}

// Cull computes every queue not yet culled. With a Culler the queues are culled
// in parallel on its pool; Cull returns once all of them are done.
func (qs *QueueSet) Cull() {
	qs.mu.Lock()
	pending := make([]*RenderQueue, 0, len(qs.queues))
	for _, q := range qs.queues {
		if !q.culled {
			pending = append(pending, q)
		}
	}
	qs.mu.Unlock()

	if qs.culler == nil || len(pending) < 2 {
		for _, q := range pending {
			q.cull(qs.snapshot)
		}
		return
	}

	// A WaitGroup gives the per-frame barrier; the pool's own Wait blocks until
	// workers idle out.
	var wg sync.WaitGroup
	for i, q := range pending {
		wg.Add(1)
		qCap := q
		qs.culler.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				qCap.cull(qs.snapshot)
				return nil, nil
			},
		})
	}
	wg.Wait()
}
