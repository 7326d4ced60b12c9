package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
	"github.com/Carmen-Shannon/oxy-technique/engine/technique"
)

const yamlDoc = `
technique: weighted_blended
backend: software
width: 320
height: 180
frames: 3
output: out.png
shadow:
  directional_size: 512
  spot_size: 256
  point_size: 128
  cascade_count: 2
  cascade_lambda: 0.5
weight: eq7
fog:
  mode: exponential
  density: 0.05
  color: [0.1, 0.2, 0.3]
exposure: 1.5
workers: 2
log_level: debug
profile: true
`

const tomlDoc = `
technique = "weighted_blended"
backend = "wgpu"
width = 800
height = 600

[shadow]
directional_size = 1024
spot_size = 512
point_size = 256
cascade_count = 4
cascade_lambda = 0.8

[fog]
mode = "linear"
start = 5.0
end = 40.0
`

func TestDecodeYAML(t *testing.T) {
	cfg, err := Decode(strings.NewReader(yamlDoc), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, gpu.Size{Width: 320, Height: 180}, cfg.Size())
	assert.Equal(t, 3, cfg.Frames)
	assert.Equal(t, "out.png", cfg.Output)
	assert.Equal(t, 2, cfg.Shadow.CascadeCount)
	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.Profile)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	fog := cfg.SceneFog()
	assert.Equal(t, scene.FogExponential, fog.Mode)
	assert.Equal(t, mgl32.Vec3{0.1, 0.2, 0.3}, fog.Color)

	opts := cfg.ShadowOptions()
	assert.Equal(t, 512, opts.DirectionalSize)
	assert.Equal(t, 128, opts.PointSize)
	assert.InDelta(t, 0.5, opts.CascadeLambda, 1e-6)
	assert.Len(t, cfg.TechniqueOptions(), 3)
}

func TestDecodeTOMLKeepsDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(tomlDoc), FormatTOML)
	require.NoError(t, err)

	backend, err := cfg.BackendType()
	require.NoError(t, err)
	assert.Equal(t, renderer.BackendTypeWGPU, backend)
	assert.Equal(t, scene.FogLinear, cfg.SceneFog().Mode)
	assert.Equal(t, 4, cfg.Shadow.CascadeCount)

	def := Default()
	assert.Equal(t, def.Weight, cfg.Weight)
	assert.Equal(t, def.Output, cfg.Output)
	assert.Equal(t, def.Frames, cfg.Frames)
	assert.Len(t, cfg.TechniqueOptions(), 2)
}

func TestDecodeEmptyYAMLIsDefault(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, technique.WeightedBlendedName, cfg.Technique)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("colour: red\n"), FormatYAML)
	assert.Error(t, err)
	_, err = Decode(strings.NewReader("colour = \"red\"\n"), FormatTOML)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty technique", func(c *Config) { c.Technique = "" }},
		{"unknown backend", func(c *Config) { c.Backend = "vulkan" }},
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"negative frames", func(c *Config) { c.Frames = -1 }},
		{"too many cascades", func(c *Config) { c.Shadow.CascadeCount = 5 }},
		{"zero spot size", func(c *Config) { c.Shadow.SpotSize = 0 }},
		{"lambda above one", func(c *Config) { c.Shadow.CascadeLambda = 1.5 }},
		{"unknown weight", func(c *Config) { c.Weight = "eq11" }},
		{"unknown fog", func(c *Config) { c.Fog.Mode = "volumetric" }},
		{"inverted linear fog", func(c *Config) { c.Fog = Fog{Mode: "linear", Start: 10, End: 5} }},
		{"exponential fog without density", func(c *Config) { c.Fog = Fog{Mode: "exponential"} }},
		{"zero exposure", func(c *Config) { c.Exposure = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "run.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlDoc), 0o644))
	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)

	tomlPath := filepath.Join(dir, "run.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(tomlDoc), 0o644))
	cfg, err = Load(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)

	_, err = Load(filepath.Join(dir, "run.json"))
	assert.Error(t, err)
	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
