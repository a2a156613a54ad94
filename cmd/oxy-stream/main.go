// Command oxy-stream drives the resource manager through a synthetic narrative scene. The camera
// follows a path through several hundred sprites while the engine culls, streams, batches and
// adapts quality. With -window the path advances on scroll; otherwise frames are simulated.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine"
	"github.com/Carmen-Shannon/oxy-stream/engine/camera"
	"github.com/Carmen-Shannon/oxy-stream/engine/dashboard"
	"github.com/Carmen-Shannon/oxy-stream/engine/device"
	"github.com/Carmen-Shannon/oxy-stream/engine/loader"
	"github.com/Carmen-Shannon/oxy-stream/engine/profiler"
	"github.com/Carmen-Shannon/oxy-stream/engine/renderer"
	"github.com/Carmen-Shannon/oxy-stream/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
)

// ── Scene layout ───────────────────────────────────────────────────
const (
	// pathLength is the distance from the first to the last chapter along -Z.
	pathLength = 600.0
	// corridorWidth is how far sprites scatter either side of the path.
	corridorWidth = 80.0
	// frameMs is the simulated frame time in headless mode.
	frameMs = 1000.0 / 60.0
	// scrollStep is the path progress per scroll wheel notch.
	scrollStep = 0.005
)

var _ engine.Host = window.Window(nil)

// spriteKind is one resource key of the synthetic scene.
type spriteKind struct {
	key       string
	priority  common.PriorityTier
	footprint mgl32.Vec3
	share     float64
}

var kinds = []spriteKind{
	{"chapter-title", common.PriorityCritical, mgl32.Vec3{12, 6, 1}, 0.02},
	{"portrait", common.PriorityImportant, mgl32.Vec3{4, 6, 1}, 0.13},
	{"signpost", common.PriorityImportant, mgl32.Vec3{2, 3, 1}, 0.10},
	{"tree", common.PriorityDecorative, mgl32.Vec3{4, 8, 4}, 0.35},
	{"rock", common.PriorityDecorative, mgl32.Vec3{3, 2, 3}, 0.20},
	{"firefly", common.PriorityDecorative, mgl32.Vec3{0.5, 0.5, 0.5}, 0.20},
}

type options struct {
	frames     int
	count      int
	seed       uint64
	dashboard  bool
	gpu        bool
	window     bool
	assets     string
	tier       string
	logLevel   string
	statsEvery time.Duration
}

func main() {
	var opts options
	flag.IntVar(&opts.frames, "frames", 1200, "frames to simulate without a window (0 runs until q)")
	flag.IntVar(&opts.count, "count", 400, "number of sprites in the scene")
	flag.Uint64Var(&opts.seed, "seed", 1, "scene layout seed")
	flag.BoolVar(&opts.dashboard, "dashboard", false, "show the terminal dashboard")
	flag.BoolVar(&opts.gpu, "gpu", false, "upload instance batches to a headless wgpu device")
	flag.BoolVar(&opts.window, "window", false, "run in a glfw window, scroll to move along the path")
	flag.StringVar(&opts.assets, "assets", "", "asset root with low/medium/high texture directories")
	flag.StringVar(&opts.tier, "tier", "", "force a quality tier: low, medium or high")
	flag.StringVar(&opts.logLevel, "log-level", "info", "log level")
	flag.DurationVar(&opts.statsEvery, "stats-every", 5*time.Second, "frame statistics log interval (0 disables)")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "oxy-stream: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	// ── Logging ─────────────────────────────────────────────────────
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)
	if opts.dashboard {
		// The dashboard owns the terminal.
		logger.SetOutput(io.Discard)
	}
	log := logger.WithField("component", "oxy-stream")

	var forced common.QualityTier
	if opts.tier != "" {
		t, ok := common.ParseQualityTier(opts.tier)
		if !ok {
			return fmt.Errorf("unknown tier %q", opts.tier)
		}
		forced = t
	}

	// ── Window ──────────────────────────────────────────────────────
	var win window.Window
	if opts.window {
		win, err = window.NewWindow(window.WithTitle("oxy-stream"), window.WithSize(1280, 720))
		if err != nil {
			return fmt.Errorf("failed to create window: %w", err)
		}
		defer win.Close()
	}

	// ── GPU ─────────────────────────────────────────────────────────
	var (
		dev      *renderer.Device
		uploader renderer.Uploader
	)
	if opts.gpu {
		dev, err = renderer.NewHeadlessDevice()
		if err != nil {
			return fmt.Errorf("failed to acquire gpu: %w", err)
		}
		defer dev.Release()
		uploader = renderer.NewUploader(dev.Device, renderer.WithLogger(logger.WithField("component", "renderer")))
		defer uploader.Release()
		log.WithFields(logrus.Fields{"adapter": dev.Info.Name, "backend": dev.Info.BackendType.String()}).Info("gpu ready")
	}

	// ── Probe ───────────────────────────────────────────────────────
	probeOpts := []device.ProbeBuilderOption{device.WithLogger(logger.WithField("component", "device"))}
	switch {
	case win != nil:
		probeOpts = append(probeOpts, device.WithSurfaceSource(win.SurfaceSize))
	case dev != nil:
		probeOpts = append(probeOpts, device.WithSurfaceSource(dev.MaxTextureDimension))
	}

	// ── Engine ──────────────────────────────────────────────────────
	engineOpts := []engine.EngineBuilderOption{
		engine.WithLogger(logger.WithField("component", "engine")),
		engine.WithProbe(device.NewProbe(probeOpts...)),
		engine.WithCollector(profiler.NewCollector(
			profiler.LogEvery(opts.statsEvery),
			profiler.WithLogger(logger.WithField("component", "profiler")),
		)),
	}
	if opts.assets != "" {
		engineOpts = append(engineOpts,
			engine.WithResolver(loader.NewTieredResolver(opts.assets, common.QualityMedium)),
			engine.WithFetcher(loader.NewImageFetcher()),
		)
	}
	if win != nil {
		engineOpts = append(engineOpts, engine.WithWindow(win))
	}
	eng := engine.NewEngine(engineOpts...)
	defer eng.Dispose()

	settings := eng.Initialize()
	if opts.tier != "" {
		eng.ForceTier(forced)
		settings = eng.QualitySettings()
	}
	log.WithFields(logrus.Fields{"tier": settings.Tier, "max_loaded": settings.MaxLoaded}).Info("engine initialized")

	registerScene(eng, opts.count, opts.seed)

	// ── Camera ──────────────────────────────────────────────────────
	path := camera.NewPathController(narrativePath())
	cam := camera.NewCamera(camera.WithController(path), camera.WithAspect(16.0/9.0))

	// ── Dashboard ───────────────────────────────────────────────────
	var dash dashboard.Dashboard
	if opts.dashboard {
		dash, err = dashboard.NewDashboard(dashboard.WithLogger(logger.WithField("component", "dashboard")))
		if err != nil {
			return err
		}
		defer dash.Close()
	}

	frame := 0
	quit := false
	afterTick := func() {
		frame++
		if uploader != nil {
			if _, err := uploader.Upload(eng.VisibleBatches()); err != nil {
				log.WithError(err).Error("instance upload failed")
			}
		}
		if dash == nil {
			return
		}
		dash.Render(dashboard.Capture(eng, frame))
		for {
			select {
			case r, ok := <-dash.Commands():
				if !ok || applyCommand(eng, r) {
					quit = true
					return
				}
			default:
				return
			}
		}
	}

	if win != nil {
		win.SetScrollCallback(func(delta float32) {
			path.Advance(-delta * scrollStep)
		})
		win.SetKeyDownCallback(func(key uint32) {
			if r, ok := keyCommands[key]; ok && applyCommand(eng, r) {
				eng.Quit()
			}
		})
		// A minimized window holds the low tier and restores the previous mode when shown.
		var (
			hiddenAuto bool
			hiddenTier common.QualityTier
		)
		win.SetVisibilityCallback(func(visible bool) {
			if !visible {
				hiddenAuto, hiddenTier = eng.AutoQuality(), eng.QualitySettings().Tier
				eng.ForceTier(common.QualityLow)
				return
			}
			if hiddenAuto {
				eng.EnableAutoQuality()
			} else {
				eng.ForceTier(hiddenTier)
			}
		})
		win.SetResizeCallback(func(width, height int) {
			if height > 0 {
				cam.SetAspect(float32(width) / float32(height))
			}
		})
		eng.SetRenderCallback(func(float32) {
			afterTick()
			if quit {
				eng.Quit()
			}
		})
		eng.Run(cam.Snapshot)
	} else {
		simulate(eng, path, cam, opts, afterTick, func() bool { return quit })
	}

	report(log, eng, frame, uploader)
	return nil
}

// simulate ticks the engine on a synthetic clock, advancing the camera evenly along the path.
// With a dashboard frames are paced in real time so the view can be read.
func simulate(eng engine.Engine, path camera.PathController, cam camera.Camera, opts options, afterTick func(), quit func() bool) {
	frames := opts.frames
	step := float32(1) / float32(max(frames, 600))
	var nowMs float64
	for i := 0; frames <= 0 || i < frames; i++ {
		eng.Tick(nowMs, cam.Snapshot())
		afterTick()
		if quit() {
			return
		}
		nowMs += frameMs
		if path.Advance(step) >= 1 && frames <= 0 {
			path.SetProgress(0)
		}
		if opts.dashboard {
			time.Sleep(time.Duration(frameMs * float64(time.Millisecond)))
		}
	}
}

// keyCommands maps window keys onto dashboard commands.
var keyCommands = map[uint32]rune{
	common.Key1: '1',
	common.Key2: '2',
	common.Key3: '3',
	common.KeyA: 'a',
	common.KeyQ: 'q',
}

// applyCommand handles a dashboard or window key and reports whether it asks to quit.
func applyCommand(eng engine.Engine, r rune) bool {
	switch r {
	case 'q':
		return true
	case '1':
		eng.ForceTier(common.QualityLow)
	case '2':
		eng.ForceTier(common.QualityMedium)
	case '3':
		eng.ForceTier(common.QualityHigh)
	case 'a':
		eng.EnableAutoQuality()
	}
	return false
}

// narrativePath is a gentle S-curve down the scene, one waypoint per chapter.
func narrativePath() []camera.Waypoint {
	var wps []camera.Waypoint
	for i := range 7 {
		z := float32(40 - i*100)
		x := float32(25 * ((i % 3) - 1))
		wps = append(wps, camera.Waypoint{
			Position: mgl32.Vec3{x, 10, z},
			Target:   mgl32.Vec3{x * 0.5, 4, z - 60},
		})
	}
	return wps
}

// registerScene scatters count sprites along the path corridor. Chapter titles sit on the
// path itself so every chapter has critical content.
func registerScene(eng engine.Engine, count int, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := range count {
		kind := pickKind(rng.Float64())
		var pos mgl32.Vec3
		if kind.priority == common.PriorityCritical {
			pos = mgl32.Vec3{0, 6, -rng.Float32() * pathLength}
		} else {
			pos = mgl32.Vec3{
				(rng.Float32()*2 - 1) * corridorWidth,
				kind.footprint.Y() * 0.5,
				-rng.Float32() * pathLength,
			}
		}
		t := common.NewTransform(pos)
		t.Rotation = mgl32.Vec3{0, rng.Float32() * 2 * math.Pi, 0}
		eng.RegisterRenderable(engine.Descriptor{
			ID:          fmt.Sprintf("%s-%04d", kind.key, i),
			ResourceKey: kind.key,
			Transform:   t,
			Footprint:   kind.footprint,
			Priority:    kind.priority,
			Alpha:       1,
			RenderOrder: int(kind.priority),
		})
	}
}

func pickKind(u float64) spriteKind {
	for _, k := range kinds {
		if u < k.share {
			return k
		}
		u -= k.share
	}
	return kinds[len(kinds)-1]
}

func report(log *logrus.Entry, eng engine.Engine, frames int, uploader renderer.Uploader) {
	perf := eng.PerformanceStats()
	cull := eng.CullingStats()
	stream := eng.StreamingStats()
	render := eng.RenderStats()
	fields := logrus.Fields{
		"frames":         frames,
		"tier":           eng.QualitySettings().Tier,
		"avg_fps":        fmt.Sprintf("%.1f", perf.AverageFPS),
		"visible":        cull.VisibleObjects,
		"culled":         cull.CulledObjects,
		"loaded":         stream.Loaded,
		"max_loaded":     stream.MaxLoaded,
		"queued":         stream.LoadQueueDepth,
		"failed":         stream.Failed,
		"draw_calls":     render.DrawCalls,
		"instances":      render.Instances,
		"instance_bytes": render.InstanceBytes,
		"texture_bytes":  render.TextureBytes,
	}
	if uploader != nil {
		up := uploader.Stats()
		fields["gpu_buffers"] = up.Buffers
		fields["gpu_bytes"] = up.AllocatedBytes
	}
	log.WithFields(fields).Info("run finished")
}
