package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/camera"
	"github.com/Carmen-Shannon/oxy-stream/engine/device"
	"github.com/Carmen-Shannon/oxy-stream/engine/loader"
	"github.com/Carmen-Shannon/oxy-stream/engine/streamer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func quietLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

// highEndProbe classifies as the high tier regardless of the machine running the tests.
func highEndProbe() device.Probe {
	return device.NewProbe(
		device.WithMemorySource(func() (uint64, bool) { return 16 << 30, true }),
		device.WithCoreSource(func() (int, bool) { return 16, true }),
		device.WithNetworkType(device.Network4G),
		device.WithSurfaceSource(func() (int, bool) { return 8192, true }),
		device.WithLogger(quietLogger()),
	)
}

func newTestEngine(options ...EngineBuilderOption) Engine {
	cfg := DefaultConfig()
	cfg.FetchWorkers = 0
	base := []EngineBuilderOption{
		WithConfig(cfg),
		WithProbe(highEndProbe()),
		WithLogger(quietLogger()),
	}
	return NewEngine(append(base, options...)...)
}

// poseAt places the camera on the +Z axis looking at the origin.
func poseAt(z float32) camera.Pose {
	p := camera.DefaultPose()
	p.Position = mgl32.Vec3{0, 0, z}
	return p
}

func sprite(id, key string, priority common.PriorityTier, x, y, z float32) Descriptor {
	return Descriptor{
		ID:          id,
		ResourceKey: key,
		Transform:   common.NewTransform(mgl32.Vec3{x, y, z}),
		Footprint:   mgl32.Vec3{1, 1, 1},
		Priority:    priority,
		Alpha:       1,
	}
}

func batchCounts(e Engine) map[string]int {
	out := map[string]int{}
	for _, b := range e.VisibleBatches() {
		out[b.ResourceKey] = len(b.Instances)
	}
	return out
}

func TestInitializeAppliesTierBudgets(t *testing.T) {
	e := newTestEngine()
	s := e.Initialize()
	if s.Tier != common.QualityHigh {
		t.Fatalf("tier = %v, want high", s.Tier)
	}
	if got := e.StreamingStats().MaxLoaded; got != s.MaxLoaded {
		t.Errorf("MaxLoaded = %d, want %d", got, s.MaxLoaded)
	}
	if got := e.PerformanceStats().DropThresholdMs; math.Abs(got-s.TargetFrameTimeMs) > 1e-9 {
		t.Errorf("drop threshold = %f, want %f", got, s.TargetFrameTimeMs)
	}

	e.ForceTier(common.QualityLow)
	if got := e.QualitySettings().Tier; got != common.QualityLow {
		t.Errorf("forced tier = %v", got)
	}
	if got := e.StreamingStats().MaxLoaded; got != 60 {
		t.Errorf("low tier MaxLoaded = %d, want 60", got)
	}
}

func TestPartialConfigFallsBackToDefaults(t *testing.T) {
	e := NewEngine(
		WithConfig(Config{BatchCapacities: map[string]int{"tree": 4}}),
		WithProbe(highEndProbe()),
		WithLogger(quietLogger()),
	)
	e.RegisterRenderable(sprite("a", "tree", common.PriorityImportant, 0, 0, 0))
	e.RegisterRenderable(sprite("b", "rock", common.PriorityImportant, 1, 0, 0))
	e.Tick(0, poseAt(10))

	caps := map[string]int{}
	for _, b := range e.VisibleBatches() {
		caps[b.ResourceKey] = b.Capacity
	}
	if caps["tree"] != 4 || caps["rock"] != DefaultConfig().BatchCapacity {
		t.Errorf("capacities = %v", caps)
	}
}

func TestRegisterGeneratesID(t *testing.T) {
	e := newTestEngine()
	id := e.RegisterRenderable(sprite("", "tree", common.PriorityImportant, 0, 0, 0))
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("generated id %q: %v", id, err)
	}
	d, ok := e.Descriptor(id)
	if !ok || d.ResourceKey != "tree" {
		t.Errorf("Descriptor(%q) = %+v, %v", id, d, ok)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	e := newTestEngine()
	e.RegisterRenderable(sprite("a", "tree", common.PriorityImportant, 0, 0, 0))
	e.RegisterRenderable(sprite("b", "tree", common.PriorityImportant, 1, 0, 0))
	e.Tick(0, poseAt(10))
	if got := batchCounts(e)["tree"]; got != 2 {
		t.Fatalf("tree instances = %d, want 2", got)
	}

	e.UnregisterRenderable("a")
	if got := batchCounts(e)["tree"]; got != 1 {
		t.Errorf("after unregister: tree instances = %d, want 1", got)
	}
	e.UnregisterRenderable("a")
	if e.Len() != 1 || e.StreamingStats().TotalRegistered != 1 || batchCounts(e)["tree"] != 1 {
		t.Errorf("second unregister had side effects: len=%d streaming=%+v", e.Len(), e.StreamingStats())
	}
	if _, ok := e.Descriptor("a"); ok {
		t.Error("unregistered descriptor still addressable")
	}

	e.Tick(16, poseAt(10))
	if st := e.CullingStats(); st.TotalObjects != 1 {
		t.Errorf("culling stats = %+v", st)
	}
}

func TestPriorityRetention(t *testing.T) {
	e := newTestEngine()
	crit := sprite("crit", "hero", common.PriorityCritical, 0, 0, 0)
	crit.LoadDistance, crit.UnloadDistance = 45, 90
	deco := sprite("deco", "grass", common.PriorityDecorative, 0, 0, 0)
	deco.LoadDistance, deco.UnloadDistance = 20, 40
	e.RegisterRenderable(crit)
	e.RegisterRenderable(deco)

	loaded := func(id string) bool {
		d, _ := e.Descriptor(id)
		return d.Loaded
	}

	e.Tick(0, poseAt(10))
	if !loaded("crit") || !loaded("deco") {
		t.Fatalf("at 10: crit=%v deco=%v, want both loaded", loaded("crit"), loaded("deco"))
	}
	e.Tick(16, poseAt(60))
	if !loaded("crit") || loaded("deco") {
		t.Errorf("at 60: crit=%v deco=%v, want only crit", loaded("crit"), loaded("deco"))
	}
	e.Tick(32, poseAt(100))
	if loaded("crit") {
		t.Error("at 100: crit still loaded")
	}
	if len(e.VisibleBatches()) != 0 {
		t.Errorf("batches remain: %v", batchCounts(e))
	}
}

func TestBatchConsistencyUnderMotion(t *testing.T) {
	e := newTestEngine()
	e.Initialize()
	rng := rand.New(rand.NewPCG(7, 11))
	keys := []string{"tree", "rock", "lamp"}
	for i := range 120 {
		e.RegisterRenderable(sprite(
			fmt.Sprintf("s%03d", i),
			keys[i%len(keys)],
			common.PriorityTiers[i%len(common.PriorityTiers)],
			rng.Float32()*200-100, rng.Float32()*20-10, rng.Float32()*200-100,
		))
	}

	for frame := range 60 {
		pose := camera.DefaultPose()
		pose.Position = mgl32.Vec3{rng.Float32()*300 - 150, 5, rng.Float32()*300 - 150}
		pose.Target = mgl32.Vec3{rng.Float32()*40 - 20, 0, rng.Float32()*40 - 20}
		e.Tick(float64(frame)*16, pose)

		want := map[string]int{}
		for i := range 120 {
			d, _ := e.Descriptor(fmt.Sprintf("s%03d", i))
			if d.Loaded && d.Visible {
				want[d.ResourceKey]++
			}
		}
		got := batchCounts(e)
		for _, key := range keys {
			if got[key] != want[key] {
				t.Fatalf("frame %d key %s: %d instances, %d loaded and visible", frame, key, got[key], want[key])
			}
		}
		if st := e.StreamingStats(); st.Loaded > st.MaxLoaded {
			t.Fatalf("frame %d: loaded %d over budget %d", frame, st.Loaded, st.MaxLoaded)
		}
	}
}

// heldDispatcher keeps fetch jobs until the test runs them.
type heldDispatcher struct {
	mu   sync.Mutex
	jobs []func()
}

func (d *heldDispatcher) Dispatch(job func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
}

func TestInstancesHiddenUntilFetched(t *testing.T) {
	var fetched []string
	fetcher := loader.FetchFunc(func(locator string) (loader.Resource, error) {
		fetched = append(fetched, locator)
		return loader.Resource{Locator: locator, Bytes: 16}, nil
	})
	held := &heldDispatcher{}
	s := streamer.NewStreamer(
		streamer.WithFetcher(fetcher),
		streamer.WithDispatcher(held),
		streamer.WithLogger(quietLogger()),
	)
	e := newTestEngine(
		WithStreamer(s),
		WithResolver(loader.ResolverFunc(func(key string) string { return "tex/" + key + ".png" })),
	)
	e.RegisterRenderable(sprite("a", "tree", common.PriorityImportant, 0, 0, 0))

	e.Tick(0, poseAt(10))
	b := e.VisibleBatches()
	if len(b) != 1 || len(b[0].Instances) != 1 || !b[0].Instances[0].Hidden {
		t.Fatalf("pending fetch: batches = %+v", b)
	}
	if st := e.RenderStats(); st.DrawCalls != 1 || st.HiddenInstances != 1 {
		t.Errorf("render stats = %+v", st)
	}

	held.jobs[0]()
	e.Tick(16, poseAt(10))
	if inst := e.VisibleBatches()[0].Instances[0]; inst.Hidden {
		t.Error("instance still hidden after fetch completed")
	}
	if len(fetched) != 1 || fetched[0] != "tex/tree.png" {
		t.Errorf("fetched = %v", fetched)
	}
}

func TestTextureBytesFollowTierResolver(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	fsys := fstest.MapFS{"assets/low/tree.png": {Data: buf.Bytes()}}

	e := newTestEngine(
		WithFetcher(loader.NewImageFetcher(loader.WithFS(fsys))),
		WithResolver(loader.NewTieredResolver("/assets", common.QualityHigh)),
	)
	e.ForceTier(common.QualityLow)
	e.RegisterRenderable(sprite("a", "tree", common.PriorityImportant, 0, 0, 0))

	e.Tick(0, poseAt(10))
	e.Tick(16, poseAt(10))
	if st := e.RenderStats(); st.TextureBytes != 64 || st.HiddenInstances != 0 {
		t.Errorf("render stats = %+v", st)
	}

	// Leaving range releases the texture.
	e.Tick(32, poseAt(500))
	if st := e.RenderStats(); st.TextureBytes != 0 || st.DrawCalls != 0 {
		t.Errorf("after unload: %+v", st)
	}
}

func TestFullBatchRetriesWhenRoomFrees(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FetchWorkers = 0
	cfg.BatchCapacities = map[string]int{"tree": 1}
	e := newTestEngine(WithConfig(cfg))
	e.RegisterRenderable(sprite("first", "tree", common.PriorityDecorative, 0, 0, 0))
	e.RegisterRenderable(sprite("second", "tree", common.PriorityDecorative, 1, 0, 0))

	e.Tick(0, poseAt(10))
	e.Tick(16, poseAt(10))
	b := e.VisibleBatches()
	if len(b) != 1 || len(b[0].Instances) != 1 || b[0].Instances[0].ID != "first" {
		t.Fatalf("batches = %+v", b)
	}

	e.UnregisterRenderable("first")
	e.Tick(32, poseAt(10))
	b = e.VisibleBatches()
	if len(b) != 1 || b[0].Instances[0].ID != "second" {
		t.Errorf("dropped instance not retried: %+v", b)
	}
}

func TestUpdatePositionMovesBatchedInstance(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e := newTestEngine(WithLogger(logrus.NewEntry(logger)))
	e.RegisterRenderable(sprite("a", "tree", common.PriorityImportant, 0, 0, 0))
	e.Tick(0, poseAt(10))

	e.UpdateRenderablePosition("a", common.NewTransform(mgl32.Vec3{2, 0, 0}))
	e.Tick(16, poseAt(10))
	if m := e.VisibleBatches()[0].Instances[0].Model; m[12] != 2 {
		t.Errorf("translation x = %f, want 2", m[12])
	}

	e.UpdateRenderablePosition("ghost", common.NewTransform(mgl32.Vec3{}))
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.WarnLevel || entry.Data["id"] != "ghost" {
		t.Errorf("unknown id not warned: %+v", entry)
	}
}

func TestSustainedSlowFramesDowngradeOnce(t *testing.T) {
	e := newTestEngine()
	if e.QualitySettings().Tier != common.QualityMedium {
		t.Fatalf("start tier = %v", e.QualitySettings().Tier)
	}
	for i := range 120 {
		e.Tick(float64(i)*50, poseAt(10))
	}
	s := e.QualitySettings()
	if s.Tier != common.QualityLow {
		t.Fatalf("tier = %v, want low", s.Tier)
	}
	if e.StreamingStats().MaxLoaded != s.MaxLoaded {
		t.Errorf("budget not retargeted: %d", e.StreamingStats().MaxLoaded)
	}
}

func TestDisposeClearsAndIsIdempotent(t *testing.T) {
	e := newTestEngine()
	e.RegisterRenderable(sprite("a", "tree", common.PriorityImportant, 0, 0, 0))
	e.Tick(0, poseAt(10))

	e.Dispose()
	e.Dispose()
	if e.Len() != 0 || len(e.VisibleBatches()) != 0 || e.StreamingStats().TotalRegistered != 0 {
		t.Errorf("after dispose: len=%d batches=%d", e.Len(), len(e.VisibleBatches()))
	}
	e.RegisterRenderable(sprite("b", "tree", common.PriorityImportant, 0, 0, 0))
	e.Tick(16, poseAt(10))
	if e.Len() != 0 {
		t.Error("disposed engine accepted a registration")
	}
}

func TestRunTicksUntilQuit(t *testing.T) {
	e := newTestEngine(WithRenderFrameLimit(500))
	e.RegisterRenderable(sprite("a", "tree", common.PriorityImportant, 0, 0, 0))

	var frames atomic.Int64
	e.SetRenderCallback(func(float32) { frames.Add(1) })

	done := make(chan struct{})
	go func() {
		e.Run(func() camera.Pose { return poseAt(10) })
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for frames.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	e.Quit()
	e.Quit()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	if frames.Load() < 5 {
		t.Fatalf("only %d frames rendered", frames.Load())
	}
	if batchCounts(e)["tree"] != 1 {
		t.Errorf("Run loop did not batch the renderable: %v", batchCounts(e))
	}
}

// loopHost runs a message loop on the test goroutine until RequestClose.
type loopHost struct {
	update func()
	closed atomic.Bool
	loops  atomic.Int64
}

func (h *loopHost) SetUpdateCallback(callback func()) { h.update = callback }

func (h *loopHost) RequestClose() { h.closed.Store(true) }

func (h *loopHost) ProcessMessages() {
	for !h.closed.Load() {
		h.loops.Add(1)
		if h.update != nil {
			h.update()
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunWithHostClosesOnQuit(t *testing.T) {
	host := &loopHost{}
	e := newTestEngine(WithWindow(host), WithRenderFrameLimit(500))
	if e.Window() != host {
		t.Fatal("Window() does not return the host")
	}

	var frames atomic.Int64
	e.SetRenderCallback(func(float32) {
		if frames.Add(1) == 5 {
			e.Quit()
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run(func() camera.Pose { return poseAt(10) })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	if !host.closed.Load() || host.loops.Load() == 0 {
		t.Errorf("host closed=%v loops=%d", host.closed.Load(), host.loops.Load())
	}
}

func TestBatchedUpdatesLogNothingOnSuccess(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	e := newTestEngine(WithLogger(logrus.NewEntry(logger)))
	e.RegisterRenderable(sprite("a", "tree", common.PriorityImportant, 0, 0, 0))
	e.Tick(0, poseAt(10))

	e.UpdateRenderablePosition("a", common.NewTransform(mgl32.Vec3{1, 0, 0}))
	e.Tick(16, poseAt(10))
	for _, entry := range hook.AllEntries() {
		if entry.Message == "batch transform update failed" || entry.Message == "batch visibility update failed" {
			t.Errorf("live handle logged %q: %v", entry.Message, entry.Data)
		}
	}
}

func TestFailedFetchReportsNotVisible(t *testing.T) {
	e := newTestEngine(WithFetcher(loader.FetchFunc(func(locator string) (loader.Resource, error) {
		return loader.Resource{}, fmt.Errorf("fetch %s: unavailable", locator)
	})))
	e.RegisterRenderable(sprite("a", "tree", common.PriorityImportant, 0, 0, 0))

	e.Tick(0, poseAt(10))
	e.Tick(16, poseAt(10))
	d, ok := e.Descriptor("a")
	if !ok || d.Visible || d.Loaded {
		t.Errorf("after failed fetch: %+v, %v", d, ok)
	}
	if got := e.StreamingStats().Failed; got != 1 {
		t.Errorf("failed fetches = %d, want 1", got)
	}
	if len(e.VisibleBatches()) != 0 {
		t.Errorf("batches remain: %v", batchCounts(e))
	}
}
