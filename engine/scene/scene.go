package scene

import (
	"cmp"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Item is one drawable instance: a geometry, a material and a world transform.
type Item struct {
	ID        uint64
	Geometry  *Geometry
	Material  *Material
	Transform mgl32.Mat4
}

// Particle reports whether the item is drawn as points.
func (i Item) Particle() bool {
	return i.Geometry.Topology == gpu.TopologyPointList
}

// Scene is the mutable scene graph owned by the simulation goroutine. It is safe
// for concurrent use; the render goroutine only ever sees Snapshots of it.
type Scene interface {
	// Name returns the name of the scene.
	//
	// Returns:
	//   - string: the scene name
	Name() string

	// Camera returns the main camera.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// Add inserts a drawable and returns its ID.
	//
	// Parameters:
	//   - geometry: the mesh to draw (must not be nil)
	//   - material: the surface (must not be nil)
	//   - transform: the world transform
	//
	// Returns:
	//   - uint64: the item ID
	Add(geometry *Geometry, material *Material, transform mgl32.Mat4) uint64

	// Get returns the item with the given ID.
	//
	// Parameters:
	//   - id: the item ID
	//
	// Returns:
	//   - Item: the item
	//   - bool: false when no such item exists
	Get(id uint64) (Item, bool)

	// Remove deletes an item. Unknown IDs are ignored.
	//
	// Parameters:
	//   - id: the item ID
	Remove(id uint64)

	// Move replaces an item's world transform.
	//
	// Parameters:
	//   - id: the item ID
	//   - transform: the new world transform
	Move(id uint64, transform mgl32.Mat4)

	// Count returns the number of items.
	//
	// Returns:
	//   - int: the item count
	Count() int

	// AddLight registers a light. Shadow casting lights must also be registered
	// with the render technique as shadow producers.
	//
	// Parameters:
	//   - l: the light (must not be nil)
	AddLight(l light.Light)

	// RemoveLight unregisters a light.
	//
	// Parameters:
	//   - l: the light
	RemoveLight(l light.Light)

	// MoveLight repositions a light and raises its moved flag.
	//
	// Parameters:
	//   - l: the light
	//   - position: the new world position
	//   - direction: the new direction, ignored for point lights
	MoveLight(l light.Light, position, direction mgl32.Vec3)

	// Lights returns the registered lights.
	//
	// Returns:
	//   - []light.Light: a copy of the light list
	Lights() []light.Light

	// Fog returns the fog settings.
	Fog() Fog

	// SetFog replaces the fog settings.
	SetFog(f Fog)

	// SetAmbient sets the ambient light colour.
	SetAmbient(c mgl32.Vec3)

	// SetBackground sets the opaque clear colour.
	SetBackground(c mgl32.Vec4)

	// Update advances the camera controller by deltaTime seconds.
	//
	// Parameters:
	//   - deltaTime: elapsed simulation time in seconds
	Update(deltaTime float32)

	// Snapshot freezes the scene for one frame.
	//
	// Returns:
	//   - *Snapshot: the frozen scene
	Snapshot() *Snapshot
}

type scene struct {
	mu *sync.RWMutex

	name   string
	cam    camera.Camera
	items  map[uint64]Item
	nextID uint64
	lights []light.Light

	fog        Fog
	ambient    mgl32.Vec3
	background mgl32.Vec4

	frame uint64
}

var _ Scene = &scene{}

// NewScene creates an empty Scene viewed through cam.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the main camera (must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}
	s := &scene{
		mu:         &sync.RWMutex{},
		name:       name,
		cam:        cam,
		items:      make(map[uint64]Item),
		nextID:     1,
		ambient:    mgl32.Vec3{0.05, 0.05, 0.05},
		background: mgl32.Vec4{0, 0, 0, 1},
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) Camera() camera.Camera {
	return s.cam
}

func (s *scene) Add(geometry *Geometry, material *Material, transform mgl32.Mat4) uint64 {
	if geometry == nil || material == nil {
		panic("scene: Add requires geometry and material")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(geometry, material, transform)
}

func (s *scene) addLocked(geometry *Geometry, material *Material, transform mgl32.Mat4) uint64 {
	id := s.nextID
	s.nextID++
	s.items[id] = Item{ID: id, Geometry: geometry, Material: material, Transform: transform}
	return id
}

func (s *scene) Get(id uint64) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	return it, ok
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

func (s *scene) Move(id uint64, transform mgl32.Mat4) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[id]; ok {
		it.Transform = transform
		s.items[id] = it
	}
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *scene) AddLight(l light.Light) {
	if l == nil {
		panic("scene: AddLight requires a non-nil light")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.lights, l) {
		return
	}
	s.lights = append(s.lights, l)
}

func (s *scene) RemoveLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.lights {
		if existing == l {
			s.lights = append(s.lights[:i], s.lights[i+1:]...)
			return
		}
	}
}

func (s *scene) MoveLight(l light.Light, position, direction mgl32.Vec3) {
	l.SetPosition(position)
	if l.Type() != light.LightTypePoint {
		l.SetDirection(direction)
	}
}

func (s *scene) Lights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lights)
}

func (s *scene) Fog() Fog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fog
}

func (s *scene) SetFog(f Fog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fog = f
}

func (s *scene) SetAmbient(c mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambient = c
}

func (s *scene) SetBackground(c mgl32.Vec4) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.background = c
}

func (s *scene) Update(deltaTime float32) {
	s.cam.Update(deltaTime)
}

func (s *scene) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame++
	snap := &Snapshot{
		Frame:      s.frame,
		Camera:     s.cam.View(),
		Items:      make([]Item, 0, len(s.items)),
		Lights:     make([]light.State, 0, len(s.lights)),
		Fog:        s.fog,
		Background: s.background,
		Ambient:    s.ambient,
	}
	for _, it := range s.items {
		snap.Items = append(snap.Items, it)
	}
	slices.SortFunc(snap.Items, func(a, b Item) int {
		return cmp.Compare(a.ID, b.ID)
	})
	for _, l := range s.lights {
		snap.Lights = append(snap.Lights, l.State())
	}
	return snap
}
