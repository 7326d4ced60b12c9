package camera

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraController drives a camera from simulation time and input.
type CameraController interface {
	// Advance steps the controller by deltaTime seconds.
	Advance(deltaTime float32)

	// Apply writes the controller's eye and target into c.
	Apply(c Camera)

	// Zoom changes the orbit radius; positive values move closer.
	Zoom(delta float32)

	// SetPaused stops or resumes automatic motion.
	SetPaused(paused bool)
}

// orbitController circles a target at a fixed elevation, advancing its azimuth each tick.
type orbitController struct {
	mu *sync.Mutex

	target    mgl32.Vec3
	radius    float32
	azimuth   float32
	elevation float32
	speed     float32 // radians per second

	minRadius float32
	maxRadius float32
	zoomSpeed float32
	paused    bool
}

var _ CameraController = &orbitController{}

// OrbitControllerOption configures an orbit controller.
type OrbitControllerOption func(*orbitController)

// WithOrbitTarget sets the orbit centre.
func WithOrbitTarget(t mgl32.Vec3) OrbitControllerOption {
	return func(o *orbitController) { o.target = t }
}

// WithOrbitRadius sets the starting distance and its bounds.
func WithOrbitRadius(radius, minRadius, maxRadius float32) OrbitControllerOption {
	return func(o *orbitController) {
		o.radius = radius
		o.minRadius = minRadius
		o.maxRadius = maxRadius
	}
}

// WithOrbitAngles sets the starting azimuth and elevation in radians.
func WithOrbitAngles(azimuth, elevation float32) OrbitControllerOption {
	return func(o *orbitController) {
		o.azimuth = azimuth
		o.elevation = elevation
	}
}

// WithOrbitSpeed sets the azimuth speed in radians per second.
func WithOrbitSpeed(speed float32) OrbitControllerOption {
	return func(o *orbitController) { o.speed = speed }
}

// NewOrbitController creates a controller orbiting the origin at radius 20.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewOrbitController(options ...OrbitControllerOption) CameraController {
	o := &orbitController{
		mu:        &sync.Mutex{},
		radius:    20,
		elevation: math32.Pi / 6,
		speed:     0.25,
		minRadius: 1,
		maxRadius: 1000,
		zoomSpeed: 1,
	}
	for _, option := range options {
		option(o)
	}
	return o
}

func (o *orbitController) Advance(deltaTime float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.paused {
		return
	}
	o.azimuth = math32.Mod(o.azimuth+o.speed*deltaTime, 2*math32.Pi)
}

func (o *orbitController) Apply(c Camera) {
	o.mu.Lock()
	cosElev, sinElev := math32.Cos(o.elevation), math32.Sin(o.elevation)
	eye := o.target.Add(mgl32.Vec3{
		o.radius * cosElev * math32.Sin(o.azimuth),
		o.radius * sinElev,
		o.radius * cosElev * math32.Cos(o.azimuth),
	})
	target := o.target
	o.mu.Unlock()

	c.LookAt(eye, target)
}

func (o *orbitController) Zoom(delta float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.radius = math32.Min(math32.Max(o.radius-delta*o.zoomSpeed, o.minRadius), o.maxRadius)
}

func (o *orbitController) SetPaused(paused bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = paused
}
