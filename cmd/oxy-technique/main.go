// Command oxy-technique renders the built-in demo scene with a registered render
// technique. The software backend renders headless and writes the final frame to a PNG;
// the wgpu backend opens a window and renders until it is closed.
//
// Usage:
//
//	oxy-technique [-config file.yaml|file.toml] [-frames n] [-output result.png] [-scale 2]
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine"
	"github.com/Carmen-Shannon/oxy-technique/engine/config"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu/software"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
	"github.com/Carmen-Shannon/oxy-technique/engine/technique"
	"github.com/Carmen-Shannon/oxy-technique/engine/window"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "oxy-technique:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("oxy-technique", flag.ContinueOnError)
	path := fs.String("config", "", "YAML or TOML configuration file")
	frames := fs.Int("frames", 0, "frames to render headless (overrides the config)")
	output := fs.String("output", "", "PNG output path (overrides the config)")
	scale := fs.Float64("scale", 1, "output image scale")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scale <= 0 {
		return fmt.Errorf("scale must be positive, got %g", *scale)
	}

	cfg := config.Default()
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			return err
		}
	}
	cfg.Frames = common.Coalesce(max(*frames, 0), cfg.Frames)
	cfg.Output = common.Coalesce(*output, cfg.Output)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	backend, err := cfg.BackendType()
	if err != nil {
		return err
	}

	var win window.Window
	opts := []renderer.RendererBuilderOption{
		renderer.WithValidation(cfg.ValidateShaders),
	}
	if backend == renderer.BackendTypeWGPU {
		win = window.NewWindow(window.WithTitle("oxy-technique: "+cfg.Technique), window.WithSize(cfg.Size()))
		opts = append(opts, renderer.WithWindow(win), renderer.WithPresentMode(renderer.PresentModeVSync))
	}
	r, err := renderer.NewRenderer(backend, opts...)
	if err != nil {
		return err
	}
	defer r.Release()

	tech, err := technique.New(cfg.Technique, r, cfg.TechniqueOptions()...)
	if err != nil {
		return fmt.Errorf("%w (registered: %v)", err, technique.Names())
	}
	defer tech.Cleanup()

	d := newDemo(cfg)
	for _, l := range d.lights {
		tech.AddShadowProducer(l)
	}

	var cullOpts []scene.CullerOption
	if cfg.Workers > 0 {
		cullOpts = append(cullOpts, scene.WithCullWorkers(cfg.Workers))
	}
	engineOpts := []engine.EngineBuilderOption{
		engine.WithSize(cfg.Size()),
		engine.WithProfiling(cfg.Profile),
		engine.WithCuller(scene.NewCuller(cullOpts...)),
	}
	if win != nil {
		engineOpts = append(engineOpts, engine.WithWindow(win))
	} else {
		engineOpts = append(engineOpts, engine.WithMaxFrames(uint64(max(cfg.Frames, 1))), engine.WithTickRate(240))
	}
	eng := engine.NewEngine(r, tech, d.scene, engineOpts...)
	if win != nil {
		bindKeys(eng, d, win, cfg.Profile)
	}

	if err := eng.Run(); err != nil {
		return err
	}
	common.Logger().Info("finished", "technique", tech.Name(), "frames", eng.Frames())

	if win != nil {
		return nil
	}
	return writeResult(r, tech, cfg.Output, *scale)
}

// writeResult reads the final frame back from the software device.
func writeResult(r renderer.Renderer, tech technique.Technique, path string, scale float64) error {
	dev, ok := r.Device().(*software.Device)
	if !ok {
		return errors.New("result readback requires the software backend")
	}
	result := tech.Result()
	if result == nil {
		return technique.ErrNotInitialised
	}
	img := scaleImage(toImage(dev.ReadLayer(result, 0), result.Size()), scale)
	if err := writePNG(path, img); err != nil {
		return err
	}
	common.Logger().Info("result written", "path", path, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return nil
}

// bindKeys wires the viewer controls: F cycles fog, P toggles the profiler, Space
// pauses the camera, 1 to 3 select a light and T toggles its shadows.
func bindKeys(eng engine.Engine, d *demo, win window.Window, profiling bool) {
	selected := 0
	paused := false
	win.SetKeyDownCallback(func(keyCode uint32) {
		switch keyCode {
		case common.KeyF:
			f := cycleFog(d.scene.Fog())
			d.scene.SetFog(f)
			common.Logger().Info("fog", "mode", f.Mode.String())
		case common.KeyP:
			profiling = !profiling
			if profiling {
				eng.EnableProfiler()
			} else {
				eng.DisableProfiler()
			}
		case common.KeySpace:
			paused = !paused
			if ctrl := d.scene.Camera().Controller(); ctrl != nil {
				ctrl.SetPaused(paused)
			}
		case common.Key1, common.Key2, common.Key3:
			selected = int(keyCode - common.Key1)
		case common.KeyT:
			l := d.lights[selected]
			l.SetCastsShadows(!l.CastsShadows())
			common.Logger().Info("shadows", "light", l.Type().String(), "casts", l.CastsShadows())
		}
	})
}
