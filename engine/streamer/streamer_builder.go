package streamer

import (
	"github.com/Carmen-Shannon/oxy-stream/engine/loader"
	"github.com/sirupsen/logrus"
)

type StreamerBuilderOption func(*streamerImpl)

// WithBaseDistance sets the base distance the per-tier thresholds are derived from.
//
// Parameters:
//   - base: the base load distance, ignored if not positive
//
// Returns:
//   - StreamerBuilderOption: a function that sets the tier thresholds
func WithBaseDistance(base float32) StreamerBuilderOption {
	return func(s *streamerImpl) {
		if base > 0 {
			s.tiers = TierDistances(base)
		}
	}
}

// WithMaxLoaded sets the initial budget.
//
// Parameters:
//   - n: the maximum number of loaded entries
//
// Returns:
//   - StreamerBuilderOption: a function that sets the budget
func WithMaxLoaded(n int) StreamerBuilderOption {
	return func(s *streamerImpl) {
		s.maxLoaded = max(n, 0)
	}
}

// WithFetcher sets the collaborator that fetches an entry's resource when it loads.
// Entries stay not-ready until their fetch completes.
//
// Parameters:
//   - f: the fetcher
//
// Returns:
//   - StreamerBuilderOption: a function that sets the fetcher
func WithFetcher(f loader.Fetcher) StreamerBuilderOption {
	return func(s *streamerImpl) {
		s.fetcher = f
	}
}

// WithDispatcher sets where fetch jobs run. Defaults to Inline.
//
// Parameters:
//   - d: the dispatcher
//
// Returns:
//   - StreamerBuilderOption: a function that sets the dispatcher
func WithDispatcher(d Dispatcher) StreamerBuilderOption {
	return func(s *streamerImpl) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithLogger sets the logger for budget and fetch warnings.
func WithLogger(logger *logrus.Entry) StreamerBuilderOption {
	return func(s *streamerImpl) {
		s.logger = logger
	}
}
