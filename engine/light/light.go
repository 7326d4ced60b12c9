package light

import (
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun. Shadowed with cascades fitted
	// to the main camera frustum.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Shadowed with six cube faces storing metric distance to the light.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a cone from a position along a direction.
	// Shadowed with a single perspective view matching the outer cone.
	LightTypeSpot
)

// String returns the lower-case light type name.
func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	default:
		return "unknown"
	}
}

// ID identifies a light for the lifetime of the process.
type ID uint64

var nextID atomic.Uint64

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	mu *sync.RWMutex

	id           ID
	lightType    LightType
	position     mgl32.Vec3
	direction    mgl32.Vec3
	color        mgl32.Vec3
	intensity    float32
	lightRange   float32
	innerCone    float32 // stored as cos(angle in radians)
	outerCone    float32 // stored as cos(angle in radians)
	attenuation  mgl32.Vec3
	cascadeCount int
	enabled      bool
	castsShadows bool

	// version advances on every change that invalidates shadow views.
	version uint64
	// clean is the version last acknowledged by ClearMoved.
	clean uint64
}

// Light defines the interface for a light source in the scene.
//
// Lights are shared between the simulation goroutine, which moves them, and the
// render goroutine, which reads them through frozen States. All methods are safe
// for concurrent use.
//
// Every setter that changes the light's transform, cone or range advances its
// version and raises the moved flag. Shadow maps re-derive their views while the
// flag is raised and acknowledge it with ClearMoved.
type Light interface {
	// ID returns the process-unique identifier of the light.
	//
	// Returns:
	//   - ID: the light identifier
	ID() ID

	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type (directional, point, or spot)
	Type() LightType

	// Position returns the world-space position of the light.
	// Meaningless for directional lights.
	//
	// Returns:
	//   - mgl32.Vec3: the position
	Position() mgl32.Vec3

	// Direction returns the normalized direction of the light.
	// For directional lights this is the light direction. For spot lights this
	// is the cone axis. Meaningless for point lights.
	//
	// Returns:
	//   - mgl32.Vec3: the normalized direction
	Direction() mgl32.Vec3

	// Color returns the RGB color of the light.
	//
	// Returns:
	//   - mgl32.Vec3: color as (r, g, b)
	Color() mgl32.Vec3

	// Intensity returns the scalar intensity multiplier for the light.
	//
	// Returns:
	//   - float32: the intensity value
	Intensity() float32

	// Range returns the maximum attenuation distance for point and spot lights.
	// It is also the far plane of their shadow views.
	//
	// Returns:
	//   - float32: the range value
	Range() float32

	// InnerCone returns the cosine of the inner cone half-angle for spot lights.
	//
	// Returns:
	//   - float32: cos(inner half-angle)
	InnerCone() float32

	// OuterCone returns the cosine of the outer cone half-angle for spot lights.
	//
	// Returns:
	//   - float32: cos(outer half-angle)
	OuterCone() float32

	// Attenuation returns the constant, linear and quadratic attenuation terms.
	//
	// Returns:
	//   - mgl32.Vec3: (constant, linear, quadratic)
	Attenuation() mgl32.Vec3

	// CascadeCount returns the number of shadow cascades of a directional light.
	//
	// Returns:
	//   - int: the cascade count, between 1 and MaxCascades
	CascadeCount() int

	// Enabled returns whether this light is active for rendering.
	//
	// Returns:
	//   - bool: true if the light is enabled
	Enabled() bool

	// CastsShadows returns whether this light is eligible for shadow map generation.
	//
	// Returns:
	//   - bool: true if the light casts shadows
	CastsShadows() bool

	// SetPosition sets the world-space position of the light and raises the moved flag.
	//
	// Parameters:
	//   - p: the new position
	SetPosition(p mgl32.Vec3)

	// SetDirection sets and normalizes the direction of the light and raises the moved flag.
	//
	// Parameters:
	//   - d: the new direction (will be normalized)
	SetDirection(d mgl32.Vec3)

	// SetColor sets the RGB color of the light.
	//
	// Parameters:
	//   - c: color as (r, g, b)
	SetColor(c mgl32.Vec3)

	// SetIntensity sets the scalar intensity multiplier.
	//
	// Parameters:
	//   - intensity: the intensity value
	SetIntensity(intensity float32)

	// SetRange sets the maximum attenuation distance and raises the moved flag.
	//
	// Parameters:
	//   - lightRange: the range value
	SetRange(lightRange float32)

	// SetSpotCone sets the inner and outer cone half-angles for spot lights and
	// raises the moved flag. Angles are given in degrees and stored as cosines.
	//
	// Parameters:
	//   - innerDeg: inner cone half-angle in degrees
	//   - outerDeg: outer cone half-angle in degrees
	SetSpotCone(innerDeg, outerDeg float32)

	// SetEnabled enables or disables the light for rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetCastsShadows toggles shadow casting. The shadow manager creates or
	// destroys the light's map on its next sync.
	//
	// Parameters:
	//   - castsShadows: true to enable shadow casting
	SetCastsShadows(castsShadows bool)

	// MarkMoved raises the moved flag without changing any property, for lights
	// whose transform is owned by a parent node.
	MarkMoved()

	// Moved reports whether the light changed since the last ClearMoved.
	//
	// Returns:
	//   - bool: true if the moved flag is raised
	Moved() bool

	// Version returns the current change counter of the light.
	//
	// Returns:
	//   - uint64: the version
	Version() uint64

	// ClearMoved lowers the moved flag if no change happened after version.
	// A concurrent move made after the caller read version stays raised.
	//
	// Parameters:
	//   - version: the version the caller consumed
	ClearMoved(version uint64)

	// State freezes the light into a value safe to hand to the render goroutine.
	//
	// Returns:
	//   - State: the frozen light
	State() State
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the specified type with sensible defaults and
// any provided options applied. A new light starts with the moved flag raised so
// its first shadow update derives views.
//
// Parameters:
//   - lightType: the kind of light to create (directional, point, or spot)
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		mu:           &sync.RWMutex{},
		id:           ID(nextID.Add(1)),
		lightType:    lightType,
		direction:    mgl32.Vec3{0, -1, 0},
		color:        mgl32.Vec3{1, 1, 1},
		intensity:    1.0,
		lightRange:   10.0,
		innerCone:    0.9063, // cos(25°)
		outerCone:    0.8192, // cos(35°)
		attenuation:  mgl32.Vec3{1, 0.09, 0.032},
		cascadeCount: DefaultCascadeCount,
		enabled:      true,
		castsShadows: false,
		version:      1,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cascadeCount < 1 || l.cascadeCount > MaxCascades {
		panic("light: cascade count out of range")
	}
	return l
}

func (l *lightImpl) ID() ID {
	return l.id
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() mgl32.Vec3 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.direction
}

func (l *lightImpl) Color() mgl32.Vec3 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.intensity
}

func (l *lightImpl) Range() float32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lightRange
}

func (l *lightImpl) InnerCone() float32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.innerCone
}

func (l *lightImpl) OuterCone() float32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.outerCone
}

func (l *lightImpl) Attenuation() mgl32.Vec3 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.attenuation
}

func (l *lightImpl) CascadeCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cascadeCount
}

func (l *lightImpl) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

func (l *lightImpl) CastsShadows() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.castsShadows
}

func (l *lightImpl) SetPosition(p mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = p
	l.version++
}

func (l *lightImpl) SetDirection(d mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.direction = normalize(d)
	l.version++
}

func (l *lightImpl) SetColor(c mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = c
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intensity = intensity
}

func (l *lightImpl) SetRange(lightRange float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lightRange = lightRange
	l.version++
}

func (l *lightImpl) SetSpotCone(innerDeg, outerDeg float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.innerCone = cosDeg(innerDeg)
	l.outerCone = cosDeg(outerDeg)
	l.version++
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.castsShadows != castsShadows {
		l.castsShadows = castsShadows
		l.version++
	}
}

func (l *lightImpl) MarkMoved() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.version++
}

func (l *lightImpl) Moved() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version != l.clean
}

func (l *lightImpl) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

func (l *lightImpl) ClearMoved(version uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if version == l.version {
		l.clean = version
	}
}

func (l *lightImpl) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return State{
		ID:           l.id,
		Type:         l.lightType,
		Position:     l.position,
		Direction:    l.direction,
		Color:        l.color,
		Intensity:    l.intensity,
		Range:        l.lightRange,
		InnerCone:    l.innerCone,
		OuterCone:    l.outerCone,
		Attenuation:  l.attenuation,
		CascadeCount: l.cascadeCount,
		Enabled:      l.enabled,
		CastsShadows: l.castsShadows,
		Version:      l.version,
	}
}
