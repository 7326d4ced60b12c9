package main

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
)

func TestToImageClampsChannels(t *testing.T) {
	img := toImage([]mgl32.Vec4{{-1, 0.5, 2, 0}, {1, 1, 1, 1}}, gpu.Size{Width: 2, Height: 1})
	c := img.RGBAAt(0, 0)
	assert.Equal(t, uint8(0), c.R)
	assert.Equal(t, uint8(128), c.G)
	assert.Equal(t, uint8(255), c.B)
	assert.Equal(t, uint8(255), c.A)
	assert.Equal(t, uint8(255), img.RGBAAt(1, 0).R)
}

func TestScaleImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 6))
	assert.Same(t, img, scaleImage(img, 1))
	assert.Equal(t, image.Rect(0, 0, 20, 12), scaleImage(img, 2).Bounds())
	assert.Equal(t, image.Rect(0, 0, 5, 3), scaleImage(img, 0.5).Bounds())
}

func TestCycleFogVisitsEveryMode(t *testing.T) {
	f := scene.Fog{}
	seen := []scene.FogMode{}
	for range scene.FogModes {
		f = cycleFog(f)
		seen = append(seen, f.Mode)
	}
	assert.ElementsMatch(t, scene.FogModes, seen)
	assert.Less(t, f.Start, f.End)
	assert.Positive(t, f.Density)
}

func TestRunWritesResult(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "demo.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
width = 48
height = 32
frames = 2
log_level = "error"

[shadow]
directional_size = 64
spot_size = 64
point_size = 32
cascade_count = 2
cascade_lambda = 0.5
bias = 0.002
`), 0o644))
	out := filepath.Join(dir, "out.png")

	require.NoError(t, run([]string{"-config", cfgPath, "-output", out, "-scale", "2"}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 96, 64), img.Bounds())
}

func TestRunRejectsUnknownTechnique(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "demo.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("technique: depth_peeling\nlog_level: error\n"), 0o644))
	err := run([]string{"-config", cfgPath, "-output", filepath.Join(dir, "out.png")})
	require.Error(t, err)
}
