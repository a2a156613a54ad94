// Package quality runs the closed-loop controller that steps the rendering quality tier up or
// down based on sustained frame rate measurements.
package quality

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/device"
	"github.com/Carmen-Shannon/oxy-stream/engine/profiler"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultEvaluateIntervalMs is the minimum time between two evaluations.
	DefaultEvaluateIntervalMs = 1000.0
	// DefaultMinSamples is the number of samples required before any transition.
	DefaultMinSamples = 30
	// DefaultCooldownMs is the hold time after a transition before another may happen.
	DefaultCooldownMs = 2000.0
	// DowngradeRatio and UpgradeRatio bound the hysteresis band around the target frame rate.
	DowngradeRatio = 0.8
	UpgradeRatio   = 1.1
)

// Controller owns the active quality Settings.
// Settings are published through an atomic pointer so readers on other goroutines always see a
// complete snapshot.
type Controller interface {
	// Initialize installs the tier classified from the device capabilities and clears the
	// evaluation history.
	//
	// Parameters:
	//   - caps: the probed device capabilities
	//
	// Returns:
	//   - Settings: the starting settings
	Initialize(caps device.Capabilities) Settings

	// Evaluate applies the hysteresis rules to the given stats. It is throttled to one
	// evaluation per interval of nowMs, holds while fewer than the minimum samples are
	// available, holds during the post-transition cooldown, and moves at most one tier.
	// After a transition it also holds until the window contains only samples taken since,
	// so one sustained drop steps down once per window rather than once per cooldown.
	//
	// Parameters:
	//   - nowMs: the current time in milliseconds
	//   - stats: the telemetry window statistics
	//
	// Returns:
	//   - Settings: the active settings after evaluation
	//   - bool: true if the tier changed
	Evaluate(nowMs float64, stats profiler.Stats) (Settings, bool)

	// ForceTier installs t and disables automatic adjustment until EnableAuto is called.
	//
	// Parameters:
	//   - t: the tier to install
	//
	// Returns:
	//   - Settings: the installed settings
	ForceTier(t common.QualityTier) Settings

	// EnableAuto re-enables automatic adjustment. The cooldown and the sample window restart from
	// the next evaluation.
	EnableAuto()

	// Auto reports whether automatic adjustment is enabled.
	Auto() bool

	// Settings returns the active snapshot.
	Settings() Settings

	// Subscribe registers fn to be called with the new settings after every change.
	// Listeners run synchronously on the goroutine that made the change.
	//
	// Parameters:
	//   - fn: the listener
	Subscribe(fn func(Settings))
}

type controllerImpl struct {
	mu     *sync.Mutex
	logger *logrus.Entry

	current atomic.Pointer[Settings]
	auto    atomic.Bool

	table map[common.QualityTier]Settings

	evaluateIntervalMs float64
	minSamples         int
	cooldownMs         float64

	lastEvalMs       float64
	evaluated        bool
	lastTransitionMs float64
	transitioned     bool
	resetCooldown    bool

	// transitionSamples is the collector's TotalSamples at the last transition.
	transitionSamples int

	listeners []func(Settings)
}

var _ Controller = &controllerImpl{}

// NewController creates a Controller starting at the medium tier with automatic adjustment enabled.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - Controller: the newly created controller
func NewController(options ...ControllerBuilderOption) Controller {
	c := &controllerImpl{
		mu:                 &sync.Mutex{},
		logger:             logrus.StandardLogger().WithField("component", "quality"),
		table:              maps.Clone(Table),
		evaluateIntervalMs: DefaultEvaluateIntervalMs,
		minSamples:         DefaultMinSamples,
		cooldownMs:         DefaultCooldownMs,
	}
	for _, option := range options {
		option(c)
	}
	c.auto.Store(true)
	s := c.lookup(common.QualityMedium)
	c.current.Store(&s)
	return c
}

func (c *controllerImpl) lookup(t common.QualityTier) Settings {
	if s, ok := c.table[t]; ok {
		return s
	}
	return ForTier(t)
}

func (c *controllerImpl) Initialize(caps device.Capabilities) Settings {
	c.mu.Lock()
	s := c.lookup(caps.Tier())
	c.current.Store(&s)
	c.evaluated = false
	c.transitioned = false
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	c.logger.WithField("tier", s.Tier).Info("quality initialized")
	notify(listeners, s)
	return s
}

func (c *controllerImpl) Evaluate(nowMs float64, stats profiler.Stats) (Settings, bool) {
	c.mu.Lock()
	cur := *c.current.Load()

	if !c.auto.Load() {
		c.mu.Unlock()
		return cur, false
	}
	if c.evaluated && nowMs-c.lastEvalMs < c.evaluateIntervalMs {
		c.mu.Unlock()
		return cur, false
	}
	c.lastEvalMs = nowMs
	c.evaluated = true

	if c.resetCooldown {
		c.lastTransitionMs = nowMs
		c.transitioned = true
		c.transitionSamples = stats.TotalSamples
		c.resetCooldown = false
	}
	if stats.SampleCount < c.minSamples || stats.AverageFPS <= 0 {
		c.mu.Unlock()
		return cur, false
	}
	if c.transitioned && nowMs-c.lastTransitionMs < c.cooldownMs {
		c.mu.Unlock()
		return cur, false
	}
	if c.transitioned && !freshWindow(stats, c.transitionSamples) {
		c.mu.Unlock()
		return cur, false
	}

	next := cur.Tier
	switch {
	case stats.AverageFPS < DowngradeRatio*cur.TargetFPS:
		next = cur.Tier.Down()
	case stats.AverageFPS > UpgradeRatio*cur.TargetFPS:
		next = cur.Tier.Up()
	}
	if next == cur.Tier {
		c.mu.Unlock()
		return cur, false
	}

	s := c.lookup(next)
	c.current.Store(&s)
	c.lastTransitionMs = nowMs
	c.transitioned = true
	c.transitionSamples = stats.TotalSamples
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"from":       cur.Tier,
		"to":         s.Tier,
		"avg_fps":    stats.AverageFPS,
		"target_fps": cur.TargetFPS,
	}).Info("quality tier changed")
	notify(listeners, s)
	return s, true
}

func (c *controllerImpl) ForceTier(t common.QualityTier) Settings {
	c.mu.Lock()
	c.auto.Store(false)
	prev := c.current.Load().Tier
	s := c.lookup(t)
	c.current.Store(&s)
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"from": prev, "to": s.Tier}).Info("quality tier forced")
	notify(listeners, s)
	return s
}

func (c *controllerImpl) EnableAuto() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auto.Load() {
		return
	}
	c.auto.Store(true)
	c.resetCooldown = true
	c.logger.Info("automatic quality enabled")
}

func (c *controllerImpl) Auto() bool {
	return c.auto.Load()
}

func (c *controllerImpl) Settings() Settings {
	return *c.current.Load()
}

func (c *controllerImpl) Subscribe(fn func(Settings)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// freshWindow reports whether every sample in the window was taken after the sample count
// since. A collector reset since then counts from zero.
func freshWindow(stats profiler.Stats, since int) bool {
	if stats.TotalSamples < since {
		since = 0
	}
	return stats.TotalSamples-since >= stats.Capacity
}

func notify(listeners []func(Settings), s Settings) {
	for _, fn := range listeners {
		fn(s)
	}
}
