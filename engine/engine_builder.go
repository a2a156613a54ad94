package engine

import (
	"github.com/Carmen-Shannon/oxy-stream/engine/batch"
	"github.com/Carmen-Shannon/oxy-stream/engine/culler"
	"github.com/Carmen-Shannon/oxy-stream/engine/device"
	"github.com/Carmen-Shannon/oxy-stream/engine/loader"
	"github.com/Carmen-Shannon/oxy-stream/engine/profiler"
	"github.com/Carmen-Shannon/oxy-stream/engine/quality"
	"github.com/Carmen-Shannon/oxy-stream/engine/streamer"
	"github.com/sirupsen/logrus"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithConfig replaces the configuration used to build default components.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg Config) EngineBuilderOption {
	return func(e *engine) {
		e.config = cfg
	}
}

// WithProbe sets the device capability probe used by Initialize.
func WithProbe(p device.Probe) EngineBuilderOption {
	return func(e *engine) {
		e.probe = p
	}
}

// WithCollector sets the telemetry collector.
func WithCollector(c profiler.Collector) EngineBuilderOption {
	return func(e *engine) {
		e.collector = c
	}
}

// WithController sets the quality controller.
func WithController(c quality.Controller) EngineBuilderOption {
	return func(e *engine) {
		e.controller = c
	}
}

// WithCuller sets the spatial culler.
func WithCuller(c culler.Culler) EngineBuilderOption {
	return func(e *engine) {
		e.culler = c
	}
}

// WithStreamer sets the resource streamer. A streamer supplied this way brings its own fetcher
// and dispatcher; WithFetcher then only feeds RenderStats.
func WithStreamer(s streamer.Streamer) EngineBuilderOption {
	return func(e *engine) {
		e.streamer = s
	}
}

// WithBatchRenderer sets the batch renderer.
func WithBatchRenderer(r batch.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.batches = r
	}
}

// WithResolver sets the asset path resolver that turns resource keys into fetch locators.
// A loader.TieredResolver follows the active quality tier.
//
// Parameters:
//   - r: the resolver
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithResolver(r loader.Resolver) EngineBuilderOption {
	return func(e *engine) {
		e.resolver = r
	}
}

// WithFetcher sets the collaborator that fetches resources when a renderable loads.
// Without a fetcher, loaded renderables are ready immediately.
//
// Parameters:
//   - f: the fetcher
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFetcher(f loader.Fetcher) EngineBuilderOption {
	return func(e *engine) {
		e.fetcher = f
	}
}

// WithWindow sets a window for Run to drive. window.Window satisfies Host.
//
// Parameters:
//   - w: a pre-configured window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w Host) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderFrameLimit sets the Run loop frame rate cap in frames per second.
// Pass 0 to uncap the render loop.
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.config.RenderFrameLimit = max(fps, 0)
	}
}

// WithLogger sets the logger. Default components log through it with their own component field.
func WithLogger(logger *logrus.Entry) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
