package light

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestNewLightDefaults(t *testing.T) {
	l := NewLight(LightTypeSpot, WithSpotCone(20, 30), WithRange(15))

	assert.Equal(t, LightTypeSpot, l.Type())
	assert.InDelta(t, 0.9397, l.InnerCone(), 1e-3)
	assert.InDelta(t, 0.8660, l.OuterCone(), 1e-3)
	assert.Equal(t, float32(15), l.Range())
	assert.Equal(t, DefaultCascadeCount, l.CascadeCount())
	assert.True(t, l.Moved(), "new lights start dirty")
}

func TestLightIDsAreUnique(t *testing.T) {
	a := NewLight(LightTypePoint)
	b := NewLight(LightTypePoint)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestMovedFlag(t *testing.T) {
	l := NewLight(LightTypePoint)
	l.ClearMoved(l.Version())
	assert.False(t, l.Moved())

	l.SetColor(mgl32.Vec3{1, 0, 0})
	assert.False(t, l.Moved(), "color does not invalidate shadow views")

	l.SetPosition(mgl32.Vec3{1, 2, 3})
	assert.True(t, l.Moved())

	stale := l.Version()
	l.SetRange(30)
	l.ClearMoved(stale)
	assert.True(t, l.Moved(), "a move after the consumed version stays raised")

	l.ClearMoved(l.Version())
	assert.False(t, l.Moved())

	l.MarkMoved()
	assert.True(t, l.Moved())
}

func TestSetDirectionNormalizes(t *testing.T) {
	l := NewLight(LightTypeDirectional)
	l.SetDirection(mgl32.Vec3{0, -10, 0})
	assert.InDelta(t, -1, l.Direction().Y(), 1e-6)
}

func TestStateSnapshot(t *testing.T) {
	l := NewLight(LightTypeDirectional, WithCastsShadows(true), WithCascadeCount(2))
	s := l.State()

	assert.Equal(t, l.ID(), s.ID)
	assert.True(t, s.ShadowCaster())
	assert.Equal(t, 2, s.CascadeCount)

	l.SetEnabled(false)
	assert.True(t, s.Enabled, "state is a frozen copy")
	assert.False(t, l.State().ShadowCaster())
}

func TestCascadeCountOutOfRangePanics(t *testing.T) {
	assert.Panics(t, func() { NewLight(LightTypeDirectional, WithCascadeCount(MaxCascades+1)) })
}
