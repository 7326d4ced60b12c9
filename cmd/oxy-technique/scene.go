package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/engine/camera"
	"github.com/Carmen-Shannon/oxy-technique/engine/config"
	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

// demo is the built-in scene: a lit floor with a ring of boxes, overlapping tinted
// panes in front of them and a column of particles, under a sun, a spot and a point light.
type demo struct {
	scene  scene.Scene
	lights []light.Light
}

func newDemo(cfg config.Config) *demo {
	ctrl := camera.NewOrbitController(
		camera.WithOrbitTarget(mgl32.Vec3{0, 0.5, 0}),
		camera.WithOrbitRadius(9, 3, 30),
		camera.WithOrbitAngles(0.6, 0.35),
		camera.WithOrbitSpeed(0.25),
	)
	cam := camera.NewCamera(
		camera.WithFov(mgl32.DegToRad(50)),
		camera.WithAspect(cfg.Size().Aspect()),
		camera.WithClip(0.1, 60),
		camera.WithController(ctrl),
	)

	sun := light.NewLight(light.LightTypeDirectional,
		light.WithDirection(mgl32.Vec3{-0.4, -1, -0.3}),
		light.WithColor(mgl32.Vec3{1, 0.95, 0.85}),
		light.WithIntensity(1.2),
		light.WithCascadeCount(cfg.Shadow.CascadeCount),
		light.WithCastsShadows(true),
	)
	spot := light.NewLight(light.LightTypeSpot,
		light.WithPosition(mgl32.Vec3{0, 6, 4}),
		light.WithDirection(mgl32.Vec3{0, -1, -0.6}),
		light.WithColor(mgl32.Vec3{0.3, 1, 0.6}),
		light.WithIntensity(2),
		light.WithRange(20),
		light.WithSpotCone(20, 30),
		light.WithCastsShadows(true),
	)
	point := light.NewLight(light.LightTypePoint,
		light.WithPosition(mgl32.Vec3{-3, 2.5, -2}),
		light.WithColor(mgl32.Vec3{1, 0.5, 0.2}),
		light.WithIntensity(1.5),
		light.WithRange(12),
		light.WithCastsShadows(true),
	)

	s := scene.NewScene("demo", cam,
		scene.WithFog(cfg.SceneFog()),
		scene.WithAmbient(mgl32.Vec3{0.08, 0.08, 0.1}),
		scene.WithBackground(mgl32.Vec4{0.05, 0.06, 0.08, 1}),
		scene.WithLights(sun, spot, point),
		scene.WithItem(scene.Plane(24), scene.NewOpaqueMaterial("floor", mgl32.Vec3{0.7, 0.7, 0.7}), mgl32.Translate3D(0, -1, 0)),
	)

	box := scene.Cube(1)
	for i := range 6 {
		a := float64(i) * 2 * math.Pi / 6
		x, z := float32(3*math.Cos(a)), float32(3*math.Sin(a))
		hue := mgl32.Vec3{0.5 + 0.5*float32(math.Cos(a)), 0.5 + 0.5*float32(math.Sin(a)), 0.6}
		s.Add(box, scene.NewOpaqueMaterial("box", hue), mgl32.Translate3D(x, -0.5, z))
	}

	pane := scene.Quad(2)
	tints := []mgl32.Vec3{{1, 0.2, 0.2}, {0.2, 1, 0.2}, {0.2, 0.3, 1}}
	for i, tint := range tints {
		off := float32(i) - 1
		s.Add(pane, scene.NewTransparentMaterial("pane", tint, 0.45),
			mgl32.Translate3D(off*0.7, 0.2, 1.5+off*0.4))
	}

	positions := make([]mgl32.Vec3, 0, 64)
	for i := range 64 {
		a := float64(i) * 0.55
		positions = append(positions, mgl32.Vec3{
			float32(0.6 * math.Cos(a)),
			-0.8 + float32(i)*0.06,
			float32(0.6 * math.Sin(a)),
		})
	}
	sparks := scene.NewTransparentMaterial("sparks", mgl32.Vec3{1, 0.8, 0.3}, 0.6)
	sparks.Unlit = true
	s.Add(scene.Points(positions), sparks, mgl32.Ident4())

	return &demo{scene: s, lights: []light.Light{sun, spot, point}}
}

// cycleFog switches f to the next mode, filling in usable parameters the config left unset.
func cycleFog(f scene.Fog) scene.Fog {
	f.Mode = nextFog(f.Mode)
	if f.End <= f.Start {
		f.Start, f.End = 4, 25
	}
	if f.Density <= 0 {
		f.Density = 0.08
	}
	return f
}

// nextFog returns the mode after m in pipeline order, wrapping around.
func nextFog(m scene.FogMode) scene.FogMode {
	for i, mode := range scene.FogModes {
		if mode == m {
			return scene.FogModes[(i+1)%len(scene.FogModes)]
		}
	}
	return scene.FogDisabled
}
