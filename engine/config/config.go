// Package config loads the technique runner configuration from YAML or TOML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Carmen-Shannon/oxy-technique/engine/light"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
	"github.com/Carmen-Shannon/oxy-technique/engine/technique"
	"github.com/Carmen-Shannon/oxy-technique/engine/technique/shadow"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Format is a configuration file syntax.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, fmt.Errorf("config: unsupported file extension %q", filepath.Ext(path))
	}
}

// Config is the runner configuration. Zero fields take the values of Default.
type Config struct {
	Technique string `yaml:"technique" toml:"technique"`
	Backend   string `yaml:"backend" toml:"backend"`
	Width     int    `yaml:"width" toml:"width"`
	Height    int    `yaml:"height" toml:"height"`
	Frames    int    `yaml:"frames" toml:"frames"`
	Output    string `yaml:"output" toml:"output"`

	Shadow Shadow `yaml:"shadow" toml:"shadow"`

	// Weight names the transparency weight policy, see shader.WeightFunctions.
	Weight string `yaml:"weight" toml:"weight"`

	Fog Fog `yaml:"fog" toml:"fog"`

	// Exposure adds an exposure post-effect when not 1.
	Exposure float32 `yaml:"exposure" toml:"exposure"`

	Workers         int    `yaml:"workers" toml:"workers"`
	LogLevel        string `yaml:"log_level" toml:"log_level"`
	ValidateShaders bool   `yaml:"validate_shaders" toml:"validate_shaders"`
	Profile         bool   `yaml:"profile" toml:"profile"`
}

// Shadow configures the shadow maps.
type Shadow struct {
	DirectionalSize int     `yaml:"directional_size" toml:"directional_size"`
	SpotSize        int     `yaml:"spot_size" toml:"spot_size"`
	PointSize       int     `yaml:"point_size" toml:"point_size"`
	CascadeCount    int     `yaml:"cascade_count" toml:"cascade_count"`
	CascadeLambda   float32 `yaml:"cascade_lambda" toml:"cascade_lambda"`
	Bias            float32 `yaml:"bias" toml:"bias"`
}

// Fog configures distance fog.
type Fog struct {
	Mode    string     `yaml:"mode" toml:"mode"`
	Density float32    `yaml:"density" toml:"density"`
	Start   float32    `yaml:"start" toml:"start"`
	End     float32    `yaml:"end" toml:"end"`
	Color   [3]float32 `yaml:"color" toml:"color"`
}

// Default returns the configuration used for every field a file leaves unset.
func Default() Config {
	opts := shadow.DefaultOptions()
	return Config{
		Technique: technique.WeightedBlendedName,
		Backend:   renderer.BackendTypeSoftware.String(),
		Width:     640,
		Height:    360,
		Frames:    1,
		Output:    "result.png",
		Shadow: Shadow{
			DirectionalSize: opts.DirectionalSize,
			SpotSize:        opts.SpotSize,
			PointSize:       opts.PointSize,
			CascadeCount:    light.DefaultCascadeCount,
			CascadeLambda:   opts.CascadeLambda,
			Bias:            opts.Bias,
		},
		Weight:   shader.DefaultWeightFunction.String(),
		Fog:      Fog{Mode: scene.FogDisabled.String(), Color: [3]float32{0.6, 0.65, 0.7}},
		Exposure: 1,
		LogLevel: "info",
	}
}

// Load reads and validates the file at path.
//
// Parameters:
//   - path: a .yaml, .yml or .toml file
//
// Returns:
//   - Config: the configuration over Default
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	format, err := FormatFor(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads a configuration over Default and validates it. Unknown keys are errors.
//
// Parameters:
//   - r: the document
//   - format: its syntax
//
// Returns:
//   - Config: the decoded configuration
//   - error: a decode or validation error
func Decode(r io.Reader, format Format) (Config, error) {
	cfg := Default()
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("config: unknown format %d", format)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the runner cannot use.
func (c Config) Validate() error {
	if c.Technique == "" {
		return fmt.Errorf("%w: technique is empty", ErrInvalid)
	}
	if _, err := c.BackendType(); err != nil {
		return err
	}
	if !c.Size().Valid() {
		return fmt.Errorf("%w: size %dx%d", ErrInvalid, c.Width, c.Height)
	}
	if c.Frames < 0 {
		return fmt.Errorf("%w: frames %d is negative", ErrInvalid, c.Frames)
	}
	if c.Shadow.CascadeCount < 1 || c.Shadow.CascadeCount > light.MaxCascades {
		return fmt.Errorf("%w: cascade count %d outside [1, %d]", ErrInvalid, c.Shadow.CascadeCount, light.MaxCascades)
	}
	if err := c.ShadowOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := shader.ParseWeightFunction(c.Weight); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	mode, ok := scene.ParseFogMode(c.Fog.Mode)
	if !ok {
		return fmt.Errorf("%w: unknown fog mode %q", ErrInvalid, c.Fog.Mode)
	}
	switch mode {
	case scene.FogLinear:
		if c.Fog.End <= c.Fog.Start {
			return fmt.Errorf("%w: linear fog end %g must exceed start %g", ErrInvalid, c.Fog.End, c.Fog.Start)
		}
	case scene.FogExponential, scene.FogSquaredExponential:
		if c.Fog.Density <= 0 {
			return fmt.Errorf("%w: fog density %g must be positive", ErrInvalid, c.Fog.Density)
		}
	}
	if c.Exposure <= 0 {
		return fmt.Errorf("%w: exposure %g must be positive", ErrInvalid, c.Exposure)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d is negative", ErrInvalid, c.Workers)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Size returns the render target size.
func (c Config) Size() gpu.Size {
	return gpu.Size{Width: c.Width, Height: c.Height}
}

// BackendType resolves the backend name.
func (c Config) BackendType() (renderer.BackendType, error) {
	for _, b := range []renderer.BackendType{renderer.BackendTypeSoftware, renderer.BackendTypeWGPU} {
		if strings.EqualFold(c.Backend, b.String()) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
}

// Level resolves the log level name.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level: %w", ErrInvalid, err)
	}
	return l, nil
}

// ShadowOptions maps the shadow section over the default options.
func (c Config) ShadowOptions() shadow.Options {
	opts := shadow.DefaultOptions()
	opts.DirectionalSize = c.Shadow.DirectionalSize
	opts.SpotSize = c.Shadow.SpotSize
	opts.PointSize = c.Shadow.PointSize
	opts.CascadeLambda = c.Shadow.CascadeLambda
	opts.Bias = c.Shadow.Bias
	return opts
}

// SceneFog maps the fog section. The config must be valid.
func (c Config) SceneFog() scene.Fog {
	mode, _ := scene.ParseFogMode(c.Fog.Mode)
	return scene.Fog{
		Mode:    mode,
		Density: c.Fog.Density,
		Start:   c.Fog.Start,
		End:     c.Fog.End,
		Color:   mgl32.Vec3(c.Fog.Color),
	}
}

// TechniqueOptions maps the config onto technique builder options. The config must be valid.
func (c Config) TechniqueOptions() []technique.TechniqueBuilderOption {
	weight, _ := shader.ParseWeightFunction(c.Weight)
	opts := []technique.TechniqueBuilderOption{
		technique.WithShadowOptions(c.ShadowOptions()),
		technique.WithWeightFunction(weight),
	}
	if c.Exposure != 1 {
		opts = append(opts, technique.WithPostEffect(technique.NewExposureEffect(c.Exposure)))
	}
	return opts
}
