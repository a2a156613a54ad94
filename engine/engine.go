// Package engine wires the resource manager's components into one context. The host registers
// renderables, calls Tick once per frame with the camera pose and reads back the visible batches.
package engine

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/batch"
	"github.com/Carmen-Shannon/oxy-stream/engine/camera"
	"github.com/Carmen-Shannon/oxy-stream/engine/culler"
	"github.com/Carmen-Shannon/oxy-stream/engine/device"
	"github.com/Carmen-Shannon/oxy-stream/engine/loader"
	"github.com/Carmen-Shannon/oxy-stream/engine/profiler"
	"github.com/Carmen-Shannon/oxy-stream/engine/quality"
	"github.com/Carmen-Shannon/oxy-stream/engine/streamer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Descriptor is a renderable registered with the engine.
type Descriptor struct {
	// ID is unique. An empty ID is replaced with a generated UUID on registration.
	ID string
	// ResourceKey is the logical asset the renderable draws with. It selects the batch and is
	// resolved into the fetched locator.
	ResourceKey string
	Transform   common.Transform
	// Footprint is the size of the bounding box centered on the position.
	Footprint   mgl32.Vec3
	Priority    common.PriorityTier
	Alpha       float32
	RenderOrder int

	// Loaded and Visible are maintained by the engine and ignored on registration.
	Loaded  bool
	Visible bool

	// LoadDistance and UnloadDistance override the priority tier's thresholds when non-zero.
	LoadDistance   float32
	UnloadDistance float32
}

func (d *Descriptor) bounds() common.BoundingVolume {
	return common.NewBoundingVolume(d.Transform.Position, d.Footprint)
}

// RenderStats are counters reported by the batch renderer and the fetcher.
type RenderStats struct {
	DrawCalls       int
	Instances       int
	HiddenInstances int
	InstanceBytes   int
	// TextureBytes is the decoded size of every resident texture. Zero if the fetcher does not
	// report it.
	TextureBytes int64
}

// residentReporter is implemented by fetchers that track decoded resource memory.
type residentReporter interface {
	ResidentBytes() int64
}

// engine implements the Engine interface.
// All registries live in the components; the engine keeps the descriptors and drives one
// tick at a time.
type engine struct {
	mu     *sync.Mutex
	logger *logrus.Entry
	config Config

	probe      device.Probe
	collector  profiler.Collector
	controller quality.Controller
	culler     culler.Culler
	streamer   streamer.Streamer
	batches    batch.Renderer
	resolver   loader.Resolver
	fetcher    loader.Fetcher
	pool       *streamer.PoolDispatcher

	descriptors map[string]*Descriptor
	order       []string
	index       map[string]int
	dropped     map[string]struct{}
	disposed    bool

	window           Host
	renderFrameLimit time.Duration
	renderCallback   func(deltaTime float32)
	start            time.Time

	wg          sync.WaitGroup
	quitChannel chan struct{}
	quitOnce    sync.Once
	disposeOnce sync.Once
}

// Engine is the resource manager context. It owns one of each component and exposes the
// registration API, the per-frame Tick and read-only snapshots.
type Engine interface {
	// Initialize probes the device, installs the starting quality tier and applies its budgets.
	//
	// Returns:
	//   - quality.Settings: the starting settings
	Initialize() quality.Settings

	// Dispose stops the host loops, cancels pending fetches and clears every registry.
	// Safe to call multiple times.
	Dispose()

	// RegisterRenderable adds a renderable to the culler and the streamer. Re-registering a
	// known id replaces it.
	//
	// Parameters:
	//   - d: the descriptor
	//
	// Returns:
	//   - string: the descriptor id, generated if d.ID was empty
	RegisterRenderable(d Descriptor) string

	// UnregisterRenderable removes a renderable from the culler, the streamer and its batch
	// before returning. Unknown ids are ignored.
	//
	// Parameters:
	//   - id: the descriptor id
	UnregisterRenderable(id string)

	// UpdateRenderablePosition replaces the transform of a registered renderable. Unknown ids
	// are logged and ignored.
	//
	// Parameters:
	//   - id: the descriptor id
	//   - t: the new transform
	UpdateRenderablePosition(id string, t common.Transform)

	// Tick runs one frame: telemetry sample, quality evaluation, cull, stream, batch sync and
	// batch update, in that order.
	//
	// Parameters:
	//   - nowMs: the frame timestamp in milliseconds
	//   - pose: the camera snapshot for this frame
	Tick(nowMs float64, pose camera.Pose)

	// QualitySettings returns the active quality snapshot.
	QualitySettings() quality.Settings

	// VisibleBatches returns the non-empty batches, one per draw call.
	VisibleBatches() []batch.Batch

	// CullingStats returns the counts from the last cull.
	CullingStats() culler.Stats

	// StreamingStats returns the streamer's registry and budget counts.
	StreamingStats() streamer.Stats

	// RenderStats returns draw call, instance and texture counters.
	RenderStats() RenderStats

	// PerformanceStats returns the telemetry window statistics.
	PerformanceStats() profiler.Stats

	// Descriptor returns a copy of a registered descriptor with its current state.
	//
	// Parameters:
	//   - id: the descriptor id
	//
	// Returns:
	//   - Descriptor: the descriptor
	//   - bool: true if id is registered
	Descriptor(id string) (Descriptor, bool)

	// Len returns the number of registered renderables.
	Len() int

	// ForceTier pins the quality tier and disables automatic adjustment.
	//
	// Parameters:
	//   - t: the tier to install
	ForceTier(t common.QualityTier)

	// EnableAutoQuality re-enables automatic quality adjustment.
	EnableAutoQuality()

	// AutoQuality reports whether automatic quality adjustment is enabled.
	AutoQuality() bool

	// Window returns the host window, or nil.
	//
	// Returns:
	//   - Host: the window set with WithWindow
	Window() Host

	// SetRenderCallback registers the function called after every Tick of the Run loop.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets the Run loop frame rate cap. Pass 0 to uncap.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the render loop, which ticks with poseFn's pose, and the quality loop, which
	// evaluates on its own cadence. With a window Run blocks in the window's message loop until
	// the window closes or Quit is called; otherwise Run blocks until Quit.
	//
	// Parameters:
	//   - poseFn: returns the camera pose for each frame
	Run(poseFn func() camera.Pose)

	// Quit signals the host loops to stop. Safe to call multiple times.
	Quit()
}

// NewEngine creates an Engine. Components not supplied through options are built from the
// configuration.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:          &sync.Mutex{},
		logger:      logrus.StandardLogger().WithField("component", "engine"),
		config:      DefaultConfig(),
		descriptors: make(map[string]*Descriptor),
		index:       make(map[string]int),
		dropped:     make(map[string]struct{}),
		quitChannel: make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}
	e.buildDefaults()
	e.renderFrameLimit = frameDuration(e.config.RenderFrameLimit)

	e.controller.Subscribe(e.applySettings)
	e.applySettings(e.controller.Settings())
	return e
}

// buildDefaults fills every component left nil by the options.
func (e *engine) buildDefaults() {
	component := func(name string) *logrus.Entry {
		return e.logger.WithField("component", name)
	}

	if e.probe == nil {
		e.probe = device.NewProbe(device.WithLogger(component("device")))
	}
	if e.collector == nil {
		e.collector = profiler.NewCollector(profiler.WithLogger(component("profiler")))
	}
	if e.controller == nil {
		e.controller = quality.NewController(
			quality.WithEvaluateInterval(common.Coalesce(e.config.EvaluateInterval, time.Second)),
			quality.WithLogger(component("quality")),
		)
	}
	if e.culler == nil {
		opts := []culler.CullerBuilderOption{culler.WithLogger(component("culler"))}
		for tier, d := range e.config.CullDistances {
			opts = append(opts, culler.WithCullDistance(tier, d))
		}
		e.culler = culler.NewCuller(opts...)
	}
	if e.streamer == nil {
		opts := []streamer.StreamerBuilderOption{
			streamer.WithBaseDistance(common.Coalesce(e.config.BaseLoadDistance, streamer.DefaultBaseDistance)),
			streamer.WithLogger(component("streamer")),
		}
		if e.fetcher != nil {
			opts = append(opts, streamer.WithFetcher(e.fetcher))
			if e.config.FetchWorkers > 0 {
				e.pool = streamer.NewPoolDispatcher(e.config.FetchWorkers, common.Coalesce(e.config.FetchQueue, defaultFetchQueue))
				opts = append(opts, streamer.WithDispatcher(e.pool))
			}
		}
		e.streamer = streamer.NewStreamer(opts...)
	}
	if e.batches == nil {
		opts := []batch.RendererBuilderOption{
			batch.WithCapacity(common.Coalesce(e.config.BatchCapacity, batch.DefaultCapacity)),
			batch.WithLogger(component("batch")),
		}
		for key, n := range e.config.BatchCapacities {
			opts = append(opts, batch.WithKeyCapacity(key, n))
		}
		e.batches = batch.NewRenderer(opts...)
	}
}

// applySettings retargets every component that depends on the quality tier. It runs on the
// goroutine that changed the tier and must not take e.mu.
func (e *engine) applySettings(s quality.Settings) {
	e.collector.SetTargetFrameTime(s.TargetFrameTimeMs)
	e.streamer.SetMaxLoaded(s.MaxLoaded)
	e.culler.SetDistanceScale(s.CullDistanceScale)
	if r, ok := e.resolver.(loader.TieredResolver); ok {
		r.SetTier(s.Tier)
	}
}

func (e *engine) Initialize() quality.Settings {
	caps := e.probe.Detect()
	e.logger.WithFields(logrus.Fields{
		"memory_gb": caps.MemoryGB,
		"cores":     caps.LogicalCores,
		"network":   caps.NetworkType,
		"surface":   caps.MaxSurfaceSize,
		"defaulted": caps.Defaulted,
	}).Info("device probed")
	return e.controller.Initialize(caps)
}

func (e *engine) Dispose() {
	e.disposeOnce.Do(func() {
		e.signalQuit()
		e.wg.Wait()

		e.mu.Lock()
		defer e.mu.Unlock()
		for _, id := range e.order {
			e.culler.Remove(id)
			e.streamer.Remove(id)
		}
		e.batches.Clear()
		clear(e.descriptors)
		clear(e.index)
		clear(e.dropped)
		e.order = nil
		e.disposed = true
		if e.pool != nil {
			e.pool.Close()
		}
		e.logger.Info("engine disposed")
	})
}

func (e *engine) RegisterRenderable(d Descriptor) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		e.logger.WithField("id", d.ID).Warn("register after dispose ignored")
		return d.ID
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if _, ok := e.descriptors[d.ID]; ok {
		e.logger.WithField("id", d.ID).Warn("renderable already registered, replacing")
		e.unregister(d.ID)
	}

	d.Loaded, d.Visible = false, false
	stored := d
	e.descriptors[d.ID] = &stored
	e.index[d.ID] = len(e.order)
	e.order = append(e.order, d.ID)

	e.culler.Add(d.ID, d.bounds(), d.Priority)
	e.streamer.Add(streamer.Entry{
		ID:       d.ID,
		Priority: d.Priority,
		Position: d.Transform.Position,
		Locator:  e.locate(d.ResourceKey),
	}, d.LoadDistance, d.UnloadDistance)

	e.logger.WithFields(logrus.Fields{
		"id":       d.ID,
		"key":      d.ResourceKey,
		"priority": d.Priority.String(),
	}).Debug("renderable registered")
	return d.ID
}

// locate resolves a resource key into the locator the fetcher loads.
func (e *engine) locate(key string) string {
	if e.resolver == nil {
		return key
	}
	return e.resolver.Resolve(key)
}

func (e *engine) UnregisterRenderable(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.descriptors[id]; !ok {
		return
	}
	e.unregister(id)
	e.logger.WithField("id", id).Debug("renderable unregistered")
}

// unregister removes id from every registry. Caller must hold the mutex and id must exist.
func (e *engine) unregister(id string) {
	e.culler.Remove(id)
	e.streamer.Remove(id)
	if h, ok := e.batches.Lookup(id); ok {
		e.batches.RemoveInstance(h)
	}
	delete(e.dropped, id)
	delete(e.descriptors, id)

	i := e.index[id]
	last := len(e.order) - 1
	if i != last {
		moved := e.order[last]
		e.order[i] = moved
		e.index[moved] = i
	}
	e.order = e.order[:last]
	delete(e.index, id)
}

func (e *engine) UpdateRenderablePosition(id string, t common.Transform) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.descriptors[id]
	if !ok {
		e.logger.WithField("id", id).Warn("position update for unregistered renderable ignored")
		return
	}
	d.Transform = t
	e.culler.UpdatePosition(id, d.bounds())
	e.streamer.UpdatePosition(id, t.Position)
	if h, ok := e.batches.Lookup(id); ok {
		if err := e.batches.SetTransform(h, t); err != nil {
			e.logger.WithError(err).WithField("id", id).Debug("batch transform update failed")
		}
	}
}

func (e *engine) Tick(nowMs float64, pose camera.Pose) {
	e.collector.Sample(nowMs)
	e.controller.Evaluate(nowMs, e.collector.Stats())

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}

	e.culler.SetCamera(pose)
	e.culler.Cull()
	res := e.streamer.Tick(pose)
	if len(res.Failed) > 0 {
		e.logger.WithField("ids", res.Failed).Debug("fetches failed, retrying on a later tick")
	}

	e.syncBatches()
	// A failed fetch reports not visible until its retry succeeds.
	for _, id := range res.Failed {
		if d, ok := e.descriptors[id]; ok {
			d.Visible = false
		}
	}
	e.batches.Update()
}

// syncBatches makes batch membership match loaded && visible. Instances whose fetch is still
// pending stay in their batch hidden. Caller must hold the mutex.
func (e *engine) syncBatches() {
	for _, id := range e.order {
		d := e.descriptors[id]
		d.Loaded = e.streamer.IsLoaded(id)
		d.Visible = e.culler.IsVisible(id)
		want := d.Loaded && d.Visible

		h, batched := e.batches.Lookup(id)
		if !want {
			if batched {
				e.batches.RemoveInstance(h)
			}
			delete(e.dropped, id)
			continue
		}

		hidden := !e.streamer.IsReady(id)
		if batched {
			if err := e.batches.SetHidden(h, hidden); err != nil {
				e.logger.WithError(err).WithField("id", id).Debug("batch visibility update failed")
			}
			continue
		}

		// A dropped instance is retried only once its batch has room, so a full batch is
		// logged once rather than every frame.
		if _, ok := e.dropped[id]; ok && e.batches.InstanceCount(d.ResourceKey) >= e.batches.Capacity(d.ResourceKey) {
			continue
		}
		_, err := e.batches.AddInstance(d.ResourceKey, batch.Instance{
			ID:          id,
			Priority:    d.Priority,
			Transform:   d.Transform,
			Alpha:       d.Alpha,
			RenderOrder: d.RenderOrder,
			Hidden:      hidden,
		})
		if err != nil {
			e.dropped[id] = struct{}{}
			continue
		}
		delete(e.dropped, id)
	}
}

func (e *engine) QualitySettings() quality.Settings {
	return e.controller.Settings()
}

func (e *engine) VisibleBatches() []batch.Batch {
	return e.batches.Batches()
}

func (e *engine) CullingStats() culler.Stats {
	return e.culler.Stats()
}

func (e *engine) StreamingStats() streamer.Stats {
	return e.streamer.Stats()
}

func (e *engine) RenderStats() RenderStats {
	bs := e.batches.Stats()
	rs := RenderStats{
		DrawCalls:       bs.DrawCalls,
		Instances:       bs.Instances,
		HiddenInstances: bs.Hidden,
		InstanceBytes:   bs.InstanceBytes,
	}
	if r, ok := e.fetcher.(residentReporter); ok {
		rs.TextureBytes = r.ResidentBytes()
	}
	return rs
}

func (e *engine) PerformanceStats() profiler.Stats {
	return e.collector.Stats()
}

func (e *engine) Descriptor(id string) (Descriptor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.descriptors[id]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

func (e *engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

func (e *engine) ForceTier(t common.QualityTier) {
	e.controller.ForceTier(t)
}

func (e *engine) EnableAutoQuality() {
	e.controller.EnableAuto()
}

func (e *engine) AutoQuality() bool {
	return e.controller.Auto()
}

func (e *engine) Window() Host {
	return e.window
}

// SetRenderCallback must be called before Run.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit must be called before Run.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

// nowMs is the host loop clock, milliseconds since Run started.
func (e *engine) nowMs() float64 {
	return float64(time.Since(e.start).Microseconds()) / 1000
}

func (e *engine) Run(poseFn func() camera.Pose) {
	e.start = time.Now()
	e.handle(poseFn)

	if e.window != nil {
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				e.window.RequestClose()
			default:
			}
		})
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handle launches the render and quality goroutines.
func (e *engine) handle(poseFn func() camera.Pose) {
	e.wg.Add(2)
	go e.handleRender(poseFn)
	go e.handleQuality()
}

// handleQuality evaluates the quality tier on a wall-clock cadence independent of the frame
// rate, so settings may change between ticks.
func (e *engine) handleQuality() {
	defer e.wg.Done()

	interval := e.config.EvaluateInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			e.controller.Evaluate(e.nowMs(), e.collector.Stats())
		}
	}
}

// handleRender ticks the engine once per frame, at most at the frame limit.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender(poseFn func() camera.Pose) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("render goroutine recovered from panic")
			e.signalQuit()
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			e.Tick(e.nowMs(), poseFn())
			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.renderFrameLimit > 0 {
				if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
					select {
					case <-e.quitChannel:
						return
					case <-time.After(remaining):
					}
				}
			}
		}
	}
}
