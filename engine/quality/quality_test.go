package quality

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/device"
	"github.com/Carmen-Shannon/oxy-stream/engine/profiler"
)

var (
	lowDevice  = device.Capabilities{MemoryGB: 2, LogicalCores: 2, MaxSurfaceSize: 2048}
	midDevice  = device.Capabilities{MemoryGB: 6, LogicalCores: 6, MaxSurfaceSize: 4096}
	highDevice = device.Capabilities{MemoryGB: 16, LogicalCores: 16, MaxSurfaceSize: 8192, NetworkType: device.Network4G}
)

// simulate feeds n samples at a steady fps through a real collector, evaluating after each one
// the way the engine tick does, and returns every transition observed.
func simulate(c Controller, fps float64, n int) []common.QualityTier {
	col := profiler.NewCollector()
	delta := 1000.0 / fps
	var transitions []common.QualityTier
	for i := range n + 1 {
		now := float64(i) * delta
		col.Sample(now)
		if s, changed := c.Evaluate(now, col.Stats()); changed {
			transitions = append(transitions, s.Tier)
		}
	}
	return transitions
}

func TestTableTiersAreStable(t *testing.T) {
	for _, tier := range []common.QualityTier{common.QualityLow, common.QualityMedium} {
		lo, hi := Table[tier], Table[tier.Up()]
		if UpgradeRatio*lo.TargetFPS < DowngradeRatio*hi.TargetFPS {
			t.Errorf("%v -> %v: upgrade threshold %.2f falls below the next downgrade threshold %.2f",
				tier, tier.Up(), UpgradeRatio*lo.TargetFPS, DowngradeRatio*hi.TargetFPS)
		}
		if lo.MaxLoaded >= hi.MaxLoaded {
			t.Errorf("MaxLoaded does not grow from %v to %v", tier, tier.Up())
		}
	}
	for tier, s := range Table {
		if s.Tier != tier {
			t.Errorf("Table[%v].Tier = %v", tier, s.Tier)
		}
	}
}

func TestInitializeFromCapabilities(t *testing.T) {
	cases := []struct {
		caps device.Capabilities
		want common.QualityTier
	}{
		{lowDevice, common.QualityLow},
		{midDevice, common.QualityMedium},
		{highDevice, common.QualityHigh},
	}
	for _, c := range cases {
		got := NewController().Initialize(c.caps)
		if got != Table[c.want] {
			t.Errorf("Initialize(%+v) = %+v, want %v row", c.caps, got, c.want)
		}
	}
}

func TestUpgradeStepsOneTier(t *testing.T) {
	c := NewController()
	c.Initialize(lowDevice)

	transitions := simulate(c, 1.2*Table[common.QualityLow].TargetFPS, 300)

	if len(transitions) != 1 || transitions[0] != common.QualityMedium {
		t.Fatalf("transitions = %v, want exactly [medium]", transitions)
	}
	if got := c.Settings().Tier; got != common.QualityMedium {
		t.Errorf("final tier = %v, want medium", got)
	}
}

func TestSustainedLowFrameRateDowngradesOnce(t *testing.T) {
	c := NewController()
	c.Initialize(highDevice)

	// 38 FPS is below 0.8 x 50 but inside the medium band (32..44).
	transitions := simulate(c, 38, 300)

	if len(transitions) != 1 || transitions[0] != common.QualityMedium {
		t.Fatalf("transitions = %v, want exactly [medium]", transitions)
	}
}

func TestDeepFrameDropDowngradesOncePerWindow(t *testing.T) {
	c := NewController()
	c.Initialize(highDevice)

	// 20 FPS is below the downgrade threshold of every tier.
	transitions := simulate(c, 20, 300)
	if len(transitions) != 1 || transitions[0] != common.QualityMedium {
		t.Fatalf("transitions = %v, want exactly [medium]", transitions)
	}
}

func TestNextTransitionWaitsForFreshWindow(t *testing.T) {
	c := NewController()
	c.Initialize(highDevice)
	col := profiler.NewCollector()

	const delta = 50.0
	var firstAt, secondAt, firstTotal int
	for i := range 800 {
		now := float64(i) * delta
		col.Sample(now)
		stats := col.Stats()
		s, changed := c.Evaluate(now, stats)
		if !changed {
			continue
		}
		switch s.Tier {
		case common.QualityMedium:
			firstAt, firstTotal = i, stats.TotalSamples
		case common.QualityLow:
			secondAt = i
		}
	}
	if firstAt == 0 || secondAt == 0 {
		t.Fatalf("first=%d second=%d, want both transitions", firstAt, secondAt)
	}
	if fresh := secondAt - firstAt; fresh < profiler.DefaultCapacity {
		t.Errorf("second transition after %d samples (first at total %d), want at least %d",
			fresh, firstTotal, profiler.DefaultCapacity)
	}
}

func TestNeverSkipsTiersInOneEvaluation(t *testing.T) {
	c := NewController()
	c.Initialize(highDevice)

	s, changed := c.Evaluate(5000, profiler.Stats{AverageFPS: 5, SampleCount: 300})
	if !changed || s.Tier != common.QualityMedium {
		t.Errorf("Evaluate = %v, %v; want medium, true", s.Tier, changed)
	}
}

func TestHoldsWithoutEnoughSamples(t *testing.T) {
	c := NewController()
	c.Initialize(highDevice)

	for i := range 10 {
		now := float64(i) * 5000
		if _, changed := c.Evaluate(now, profiler.Stats{AverageFPS: 5, SampleCount: DefaultMinSamples - 1}); changed {
			t.Fatal("transitioned without enough samples")
		}
	}
	if _, changed := c.Evaluate(60000, profiler.Stats{}); changed {
		t.Fatal("transitioned with no telemetry")
	}
}

func TestEvaluateIsThrottled(t *testing.T) {
	c := NewController(WithCooldown(0))
	c.Initialize(highDevice)
	low := profiler.Stats{AverageFPS: 5, SampleCount: 300}

	if _, changed := c.Evaluate(0, low); !changed {
		t.Fatal("first evaluation did not transition")
	}
	if _, changed := c.Evaluate(500, low); changed {
		t.Fatal("evaluation inside the throttle interval transitioned")
	}
	if s, changed := c.Evaluate(1000, low); !changed || s.Tier != common.QualityLow {
		t.Fatalf("Evaluate after interval = %v, %v; want low, true", s.Tier, changed)
	}
}

func TestCooldownHoldsAfterTransition(t *testing.T) {
	c := NewController()
	c.Initialize(highDevice)
	low := profiler.Stats{AverageFPS: 5, SampleCount: 300}

	c.Evaluate(0, low)
	if _, changed := c.Evaluate(1000, low); changed {
		t.Fatal("transitioned inside the cooldown")
	}
	if s, changed := c.Evaluate(2000, low); !changed || s.Tier != common.QualityLow {
		t.Fatalf("Evaluate after cooldown = %v, %v; want low, true", s.Tier, changed)
	}
}

func TestForceTierDisablesAuto(t *testing.T) {
	c := NewController()
	c.Initialize(midDevice)

	s := c.ForceTier(common.QualityHigh)
	if s.Tier != common.QualityHigh || c.Auto() {
		t.Fatalf("ForceTier: tier=%v auto=%v", s.Tier, c.Auto())
	}
	if _, changed := c.Evaluate(10000, profiler.Stats{AverageFPS: 5, SampleCount: 300}); changed {
		t.Fatal("forced tier was adjusted automatically")
	}

	c.EnableAuto()
	if !c.Auto() {
		t.Fatal("EnableAuto did not re-enable")
	}
	// The cooldown restarts at the first evaluation after re-enabling.
	if _, changed := c.Evaluate(20000, profiler.Stats{AverageFPS: 5, SampleCount: 300}); changed {
		t.Fatal("transitioned immediately after EnableAuto")
	}
	if s, changed := c.Evaluate(22000, profiler.Stats{AverageFPS: 5, SampleCount: 300}); !changed || s.Tier != common.QualityMedium {
		t.Fatalf("Evaluate = %v, %v; want medium, true", s.Tier, changed)
	}
}

func TestSubscribersSeeEveryChange(t *testing.T) {
	c := NewController()
	var seen []common.QualityTier
	c.Subscribe(func(s Settings) { seen = append(seen, s.Tier) })

	c.Initialize(lowDevice)
	c.ForceTier(common.QualityHigh)

	if len(seen) != 2 || seen[0] != common.QualityLow || seen[1] != common.QualityHigh {
		t.Errorf("listener saw %v", seen)
	}
}

func TestSettingsReadsAreWholeSnapshots(t *testing.T) {
	c := NewController()
	c.Initialize(midDevice)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := c.Settings()
			if s != Table[s.Tier] {
				t.Errorf("torn snapshot: %+v", s)
				return
			}
		}
	}()

	for i := range 200 {
		c.ForceTier(common.QualityTiers[i%len(common.QualityTiers)])
	}
	close(stop)
	wg.Wait()
}
