package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-technique/common"
	"github.com/Carmen-Shannon/oxy-technique/engine/profiler"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer"
	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-technique/engine/scene"
	"github.com/Carmen-Shannon/oxy-technique/engine/technique"
	"github.com/Carmen-Shannon/oxy-technique/engine/window"
)

// ErrPanic wraps a panic recovered on an engine goroutine.
var ErrPanic = errors.New("engine: recovered panic")

// DefaultMeshIdleFrames is how many frames an uploaded mesh may go undrawn before the
// engine frees it.
const DefaultMeshIdleFrames = 120

// engine implements the Engine interface.
// Coordinates the tick, render and window goroutines.
type engine struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration
	snapshots       chan *scene.Snapshot
	resizes         chan gpu.Size

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once
	err         error

	renderer  renderer.Renderer
	technique technique.Technique
	scene     scene.Scene
	culler    *scene.Culler
	window    window.Window

	profiler         *profiler.Profiler
	profilingEnabled bool

	size             gpu.Size
	engineTickRate   time.Duration
	renderFrameLimit time.Duration
	maxFrames        uint64
	frames           uint64
	meshIdleFrames   uint64

	tickCallback  func(deltaTime float32)
	frameCallback func(frame uint64, info *technique.RenderInfo)
}

// Engine runs a technique over a scene. A tick goroutine advances the simulation and
// hands a frozen snapshot to the render goroutine at every frame boundary; the render
// goroutine alone issues GPU commands.
type Engine interface {
	// Window returns the window, nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Technique returns the technique being run.
	Technique() technique.Technique

	// Scene returns the simulated scene.
	Scene() scene.Scene

	// Profiler returns the profiler, which only reports while enabled.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the simulation tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the simulation step, called before each snapshot.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetFrameCallback registers the function called after each rendered frame on the
	// render goroutine.
	//
	// Parameters:
	//   - callback: function receiving the frame number (from 1) and its render info
	SetFrameCallback(callback func(frame uint64, info *technique.RenderInfo))

	// SetRenderFrameLimit caps the render rate. Pass 0 to uncap (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Resize queues a render target resize applied before the next frame.
	//
	// Parameters:
	//   - size: the new size (must be valid)
	Resize(size gpu.Size)

	// Frames returns the number of frames rendered so far.
	Frames() uint64

	// Run initialises the technique when needed and renders until Quit, the window
	// closes or the frame limit is reached. With a window it must be called on the
	// goroutine that created the window.
	//
	// Returns:
	//   - error: the first initialise, render or recovered panic error
	Run() error

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()
}

// NewEngine creates an engine running t over s on r.
//
// Parameters:
//   - r: the renderer t was built on (must not be nil)
//   - t: the technique (must not be nil)
//   - s: the scene (must not be nil)
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(r renderer.Renderer, t technique.Technique, s scene.Scene, options ...EngineBuilderOption) Engine {
	if r == nil || t == nil || s == nil {
		panic("engine: renderer, technique and scene are required")
	}
	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		snapshots:       make(chan *scene.Snapshot, 1),
		resizes:         make(chan gpu.Size, 1),
		quitChannel:     make(chan struct{}),
		renderer:        r,
		technique:       t,
		scene:           s,
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
		meshIdleFrames:  DefaultMeshIdleFrames,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.culler == nil {
		e.culler = scene.NewCuller()
	}
	if e.window != nil {
		if !e.size.Valid() {
			e.size = e.window.Size()
		}
		e.window.SetResizeCallback(e.Resize)
		e.window.SetScrollCallback(func(delta float32) {
			if ctrl := e.scene.Camera().Controller(); ctrl != nil {
				ctrl.Zoom(delta)
			}
		})
	}
	if !e.size.Valid() {
		e.size = t.Size()
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Technique() technique.Technique {
	return e.technique
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Run() error {
	if !e.technique.Initialised() {
		if !e.size.Valid() {
			return fmt.Errorf("engine: no render target size")
		}
		if err := e.technique.Initialise(e.size); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
	}
	e.scene.Camera().SetAspect(e.technique.Size().Aspect())

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	e.handle()

	if e.window != nil {
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				_ = e.window.Close()
			default:
			}
		})
		e.window.ProcessMessages()
		e.signalQuit(nil)
	}
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	return e.err
}

// Quit signals all engine goroutines to stop and shuts down the engine.
func (e *engine) Quit() {
	e.signalQuit(nil)
}

// signalQuit closes the quit channel once, keeping the first error.
func (e *engine) signalQuit(err error) {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// recoverTo converts a panic on the calling goroutine into a quit signal.
func (e *engine) recoverTo(goroutine string) {
	if r := recover(); r != nil {
		common.Logger().Error("goroutine recovered from panic", "goroutine", goroutine, "panic", r)
		e.signalQuit(fmt.Errorf("%w in %s goroutine: %v", ErrPanic, goroutine, r))
	}
}

// handle launches the tick and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleTick()
	go e.handleRender()
}

// handleTick runs the fixed-rate simulation loop and publishes a snapshot after every
// tick, replacing one the render goroutine has not taken yet.
func (e *engine) handleTick() {
	defer e.wg.Done()
	defer e.recoverTo("tick")

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			e.scene.Update(dt)
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
			publish(e.snapshots, e.scene.Snapshot())
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender takes the latest snapshot, applies pending resizes, then updates and
// renders the technique and presents the result when a window is attached. A resize
// reprojects the snapshot's camera so the first frame at the new size has its aspect.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer e.recoverTo("render")

	info := &technique.RenderInfo{}
	for {
		var snap *scene.Snapshot
		select {
		case <-e.quitChannel:
			return
		case snap = <-e.snapshots:
		}
		start := time.Now()

		select {
		case size := <-e.resizes:
			if err := e.resize(size); err != nil {
				e.signalQuit(err)
				return
			}
			snap = reproject(snap, e.technique.Size())
		default:
		}

		if err := e.technique.Update(e.culler.NewQueueSet(snap)); err != nil {
			e.signalQuit(fmt.Errorf("engine: update frame %d: %w", snap.Frame, err))
			return
		}
		if err := e.technique.Render(info); err != nil {
			e.signalQuit(fmt.Errorf("engine: render frame %d: %w", snap.Frame, err))
			return
		}
		if e.window != nil {
			if err := e.renderer.Present(e.technique.Result()); err != nil {
				e.signalQuit(fmt.Errorf("engine: present: %w", err))
				return
			}
		}
		e.renderer.EvictMeshes(e.meshIdleFrames)

		e.mu.Lock()
		e.frames++
		frame := e.frames
		profiling := e.profilingEnabled
		e.mu.Unlock()

		if e.frameCallback != nil {
			e.frameCallback(frame, info)
		}
		if profiling {
			e.profiler.RecordPasses(info.PassTimes)
			e.profiler.Tick()
		}
		if e.maxFrames > 0 && frame >= e.maxFrames {
			e.signalQuit(nil)
			return
		}
		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

func (e *engine) resize(size gpu.Size) error {
	if err := e.technique.Resize(size); err != nil {
		return fmt.Errorf("engine: resize to %s: %w", size, err)
	}
	e.renderer.Resize(size.Width, size.Height)
	e.scene.Camera().SetAspect(size.Aspect())
	common.Logger().Debug("render target resized", "size", size.String())
	return nil
}

// reproject returns snap with its camera projection rebuilt for size. snap itself is
// shared with the tick goroutine and left untouched.
func reproject(snap *scene.Snapshot, size gpu.Size) *scene.Snapshot {
	aspect := size.Aspect()
	if snap.Camera.Aspect == aspect {
		return snap
	}
	out := *snap
	out.Camera = snap.Camera.WithAspect(aspect)
	return &out
}

// publish replaces any value pending in the single-slot channel ch with v.
func publish[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (e *engine) Resize(size gpu.Size) {
	if !size.Valid() {
		panic(fmt.Sprintf("engine: invalid resize %s", size))
	}
	publish(e.resizes, size)
}

func (e *engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

// SetTickRate sets the simulation tick rate. While running the change takes effect on
// the next tick.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if running {
		publish(e.tickRateChannel, newRate)
		return
	}
	e.engineTickRate = newRate
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetFrameCallback(callback func(frame uint64, info *technique.RenderInfo)) {
	e.frameCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
