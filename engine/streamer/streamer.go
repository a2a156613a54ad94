// Package streamer schedules which registered renderables are loaded, bounded by a budget and
// driven by camera distance with per-priority hysteresis.
package streamer

import (
	"cmp"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/camera"
	"github.com/Carmen-Shannon/oxy-stream/engine/loader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseDistance is the base load distance before tier multipliers.
	DefaultBaseDistance = 60.0
	// DefaultMaxLoaded is the budget used until SetMaxLoaded is called.
	DefaultMaxLoaded = 100
)

// Distances is a load/unload threshold pair. Load < Unload forms the hysteresis band.
type Distances struct {
	Load   float32
	Unload float32
}

// TierMultipliers scale the base distance per priority tier. Critical content loads from
// furthest away and is retained longest; decorative content the opposite.
var TierMultipliers = map[common.PriorityTier]Distances{
	common.PriorityCritical:   {Load: 1.5, Unload: 3.0},
	common.PriorityImportant:  {Load: 1.0, Unload: 2.0},
	common.PriorityDecorative: {Load: 0.667, Unload: 1.333},
}

// TierDistances derives every tier's thresholds from a base distance.
//
// Parameters:
//   - base: the base load distance
//
// Returns:
//   - map[common.PriorityTier]Distances: thresholds per tier
func TierDistances(base float32) map[common.PriorityTier]Distances {
	out := make(map[common.PriorityTier]Distances, len(TierMultipliers))
	for tier, m := range TierMultipliers {
		out[tier] = Distances{Load: base * m.Load, Unload: base * m.Unload}
	}
	return out
}

// Entry is the streamer's view of a renderable.
type Entry struct {
	ID       string
	Priority common.PriorityTier
	Position mgl32.Vec3
	// Locator is the physical resource fetched on load. Empty means nothing to fetch.
	Locator string
}

// Result lists the transitions made by one Tick.
type Result struct {
	// Loaded ids became loaded this tick.
	Loaded []string
	// Unloaded ids stopped being loaded this tick: out of range, evicted over budget, or fetch failed.
	Unloaded []string
	// Ready ids had their fetch complete successfully this tick.
	Ready []string
	// Failed ids had their fetch fail this tick. They also appear in Unloaded.
	Failed []string
}

// Stats is a snapshot of the streamer state.
type Stats struct {
	TotalRegistered int
	Loaded          int
	MaxLoaded       int
	// LoadQueueDepth counts in-range candidates left waiting for budget by the last Tick.
	LoadQueueDepth int
	InFlight       int
	// Failed is the cumulative number of failed fetches.
	Failed int
}

// Streamer owns the load registry. Its methods are safe for concurrent use but Tick is meant
// to be driven from a single host loop.
type Streamer interface {
	// Add registers an entry with explicit thresholds. If both are zero the entry's priority
	// tier thresholds are used. If load >= unload the unload distance is widened and a warning
	// logged. Re-adding a known id replaces its entry and thresholds but keeps its load state.
	//
	// Parameters:
	//   - entry: the renderable
	//   - loadDistance: distance at or under which the entry becomes a load candidate
	//   - unloadDistance: distance beyond which a loaded entry unloads
	Add(entry Entry, loadDistance, unloadDistance float32)

	// Remove unregisters id. A fetch still in flight for it is discarded on completion.
	// Unknown ids are ignored.
	//
	// Parameters:
	//   - id: the renderable id
	//
	// Returns:
	//   - bool: true if id was registered
	Remove(id string) bool

	// UpdatePosition moves a registered entry. Unknown ids are logged and ignored.
	//
	// Parameters:
	//   - id: the renderable id
	//   - position: the new world position
	UpdatePosition(id string, position mgl32.Vec3)

	// Tick applies finished fetches, then unloads out-of-range entries, enforces the budget
	// and loads the nearest highest-priority candidates that fit.
	//
	// Parameters:
	//   - pose: the camera snapshot for this tick
	//
	// Returns:
	//   - Result: the transitions made
	Tick(pose camera.Pose) Result

	// SetMaxLoaded sets the budget. Negative values are treated as zero. A lowered budget is
	// enforced on the next Tick.
	SetMaxLoaded(n int)

	// MaxLoaded returns the budget.
	MaxLoaded() int

	// Distances returns the thresholds registered for id.
	Distances(id string) (Distances, bool)

	// TierDistances returns the default thresholds for a priority tier.
	TierDistances(priority common.PriorityTier) Distances

	// IsLoaded reports whether id is loaded.
	IsLoaded(id string) bool

	// IsReady reports whether id is loaded and its fetch has completed.
	IsReady(id string) bool

	// Stats returns a snapshot of the streamer state.
	Stats() Stats
}

type record struct {
	entry    Entry
	load     float32
	unload   float32
	loaded   bool
	ready    bool
	pending  bool
	gen      uint64
	distance float32
}

type completion struct {
	id      string
	gen     uint64
	locator string
	res     loader.Resource
	err     error
}

type streamerImpl struct {
	mu     *sync.Mutex
	logger *logrus.Entry

	records []*record
	index   map[string]int

	tiers     map[common.PriorityTier]Distances
	maxLoaded int
	loaded    int
	queued    int
	inFlight  int
	failed    int
	nextGen   uint64

	fetcher    loader.Fetcher
	dispatcher Dispatcher
	// refs counts loaded records per locator so shared textures are released only by the last user.
	refs map[string]int

	cmu         *sync.Mutex
	completions []completion
}

var _ Streamer = &streamerImpl{}

// NewStreamer creates a Streamer with the default base distance and budget and no fetcher,
// so loads are ready immediately.
//
// Parameters:
//   - options: functional options to configure the streamer
//
// Returns:
//   - Streamer: the newly created streamer
func NewStreamer(options ...StreamerBuilderOption) Streamer {
	s := &streamerImpl{
		mu:         &sync.Mutex{},
		logger:     logrus.StandardLogger().WithField("component", "streamer"),
		index:      make(map[string]int),
		tiers:      TierDistances(DefaultBaseDistance),
		maxLoaded:  DefaultMaxLoaded,
		dispatcher: Inline,
		refs:       make(map[string]int),
		cmu:        &sync.Mutex{},
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *streamerImpl) Add(entry Entry, loadDistance, unloadDistance float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !entry.Priority.Valid() {
		s.logger.WithFields(logrus.Fields{"id": entry.ID, "priority": int(entry.Priority)}).Warn("unknown priority, treating as decorative")
		entry.Priority = common.PriorityDecorative
	}
	if loadDistance == 0 && unloadDistance == 0 {
		d := s.tiers[entry.Priority]
		loadDistance, unloadDistance = d.Load, d.Unload
	}
	if loadDistance < 0 {
		loadDistance = 0
	}
	if loadDistance >= unloadDistance {
		widened := max(loadDistance*2, loadDistance+1)
		s.logger.WithFields(logrus.Fields{
			"id":      entry.ID,
			"load":    loadDistance,
			"unload":  unloadDistance,
			"widened": widened,
		}).Warn("load distance not below unload distance, widening unload distance")
		unloadDistance = widened
	}

	if i, ok := s.index[entry.ID]; ok {
		r := s.records[i]
		if r.loaded && r.entry.Locator != entry.Locator {
			s.unref(r.entry.Locator)
			s.ref(entry.Locator)
		}
		r.entry = entry
		r.load = loadDistance
		r.unload = unloadDistance
		return
	}

	s.index[entry.ID] = len(s.records)
	s.records = append(s.records, &record{entry: entry, load: loadDistance, unload: unloadDistance})
}

func (s *streamerImpl) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	r := s.records[i]
	if r.loaded {
		s.markUnloaded(r)
	}

	last := len(s.records) - 1
	if i != last {
		s.records[i] = s.records[last]
		s.index[s.records[i].entry.ID] = i
	}
	s.records[last] = nil
	s.records = s.records[:last]
	delete(s.index, id)
	return true
}

func (s *streamerImpl) UpdatePosition(id string, position mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		s.logger.WithField("id", id).Warn("position update for unregistered entry ignored")
		return
	}
	s.records[i].entry.Position = position
}

func (s *streamerImpl) Tick(pose camera.Pose) Result {
	var res Result
	completed := s.drainCompletions()

	s.mu.Lock()

	justFailed := s.applyCompletions(completed, &res)

	eye := pose.Position
	for _, r := range s.records {
		r.distance = r.entry.Position.Sub(eye).Len()
	}

	for _, r := range s.records {
		if r.loaded && r.distance > r.unload {
			s.markUnloaded(r)
			res.Unloaded = append(res.Unloaded, r.entry.ID)
		}
	}

	if s.loaded > s.maxLoaded {
		res.Unloaded = append(res.Unloaded, s.evictOverBudget()...)
	}

	var candidates []*record
	for _, r := range s.records {
		if !r.loaded && r.distance <= r.load && !justFailed[r.entry.ID] {
			candidates = append(candidates, r)
		}
	}
	slices.SortFunc(candidates, byPriorityThenDistance)

	budget := max(s.maxLoaded-s.loaded, 0)
	admit := min(budget, len(candidates))

	var jobs []func()
	for _, r := range candidates[:admit] {
		s.nextGen++
		r.gen = s.nextGen
		r.loaded = true
		s.loaded++
		s.ref(r.entry.Locator)
		res.Loaded = append(res.Loaded, r.entry.ID)

		if s.fetcher == nil || r.entry.Locator == "" {
			r.ready = true
			continue
		}
		r.pending = true
		s.inFlight++
		jobs = append(jobs, s.fetchJob(r.entry.ID, r.gen, r.entry.Locator))
	}
	s.queued = len(candidates) - admit

	if len(res.Loaded) > 0 || len(res.Unloaded) > 0 {
		s.logger.WithFields(logrus.Fields{
			"loaded":   len(res.Loaded),
			"unloaded": len(res.Unloaded),
			"resident": s.loaded,
			"queued":   s.queued,
		}).Debug("streaming tick")
	}
	s.mu.Unlock()

	// Dispatch outside the lock; a pool dispatcher may block on a full queue.
	for _, job := range jobs {
		s.dispatcher.Dispatch(job)
	}
	return res
}

// byPriorityThenDistance orders candidates critical first, then nearest, then by id for determinism.
func byPriorityThenDistance(a, b *record) int {
	return cmp.Or(
		cmp.Compare(a.entry.Priority, b.entry.Priority),
		cmp.Compare(a.distance, b.distance),
		cmp.Compare(a.entry.ID, b.entry.ID),
	)
}

// evictOverBudget unloads lowest-priority, farthest entries until the budget holds.
// Caller must hold the mutex.
func (s *streamerImpl) evictOverBudget() []string {
	over := s.loaded - s.maxLoaded
	s.logger.WithFields(logrus.Fields{
		"loaded":     s.loaded,
		"max_loaded": s.maxLoaded,
	}).Warn("loaded count exceeds budget, evicting lowest priority entries")

	loaded := make([]*record, 0, s.loaded)
	for _, r := range s.records {
		if r.loaded {
			loaded = append(loaded, r)
		}
	}
	slices.SortFunc(loaded, func(a, b *record) int {
		return byPriorityThenDistance(b, a)
	})

	evicted := make([]string, 0, over)
	for _, r := range loaded[:over] {
		s.markUnloaded(r)
		evicted = append(evicted, r.entry.ID)
	}
	return evicted
}

// markUnloaded clears load state and invalidates any fetch in flight. Caller must hold the mutex.
func (s *streamerImpl) markUnloaded(r *record) {
	if r.pending {
		s.inFlight--
	}
	r.loaded = false
	r.ready = false
	r.pending = false
	s.nextGen++
	r.gen = s.nextGen
	s.loaded--
	s.unref(r.entry.Locator)
}

func (s *streamerImpl) ref(locator string) {
	if locator != "" {
		s.refs[locator]++
	}
}

func (s *streamerImpl) unref(locator string) {
	if locator == "" {
		return
	}
	s.refs[locator]--
	if s.refs[locator] > 0 {
		return
	}
	delete(s.refs, locator)
	s.release(locator)
}

func (s *streamerImpl) release(locator string) {
	if rel, ok := s.fetcher.(loader.Releaser); ok && locator != "" {
		rel.Release(locator)
	}
}

// fetchJob returns the closure run by the dispatcher for one load.
func (s *streamerImpl) fetchJob(id string, gen uint64, locator string) func() {
	fetcher := s.fetcher
	return func() {
		res, err := fetcher.Fetch(locator)
		s.cmu.Lock()
		s.completions = append(s.completions, completion{id: id, gen: gen, locator: locator, res: res, err: err})
		s.cmu.Unlock()
	}
}

func (s *streamerImpl) drainCompletions() []completion {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	out := s.completions
	s.completions = nil
	return out
}

// applyCompletions marks finished fetches ready or failed. Results for entries that were
// removed, unloaded or reloaded since dispatch are discarded by the generation check. A
// discarded success whose locator is no longer referenced is released again, since the
// fetcher cached it after the unload released it. Caller must hold the mutex.
func (s *streamerImpl) applyCompletions(completed []completion, res *Result) map[string]bool {
	var failed map[string]bool
	for _, c := range completed {
		i, ok := s.index[c.id]
		if !ok || s.records[i].gen != c.gen || !s.records[i].pending {
			s.logger.WithField("id", c.id).Debug("discarding stale fetch result")
			if c.err == nil && s.refs[c.locator] == 0 {
				s.release(c.locator)
			}
			continue
		}
		r := s.records[i]
		if c.err != nil {
			s.failed++
			s.markUnloaded(r)
			res.Unloaded = append(res.Unloaded, c.id)
			res.Failed = append(res.Failed, c.id)
			if failed == nil {
				failed = make(map[string]bool)
			}
			failed[c.id] = true
			s.logger.WithFields(logrus.Fields{
				"id":      c.id,
				"locator": r.entry.Locator,
			}).WithError(c.err).Warn("fetch failed, entry left unloaded")
			continue
		}
		r.pending = false
		r.ready = true
		s.inFlight--
		res.Ready = append(res.Ready, c.id)
	}
	return failed
}

func (s *streamerImpl) SetMaxLoaded(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxLoaded = max(n, 0)
}

func (s *streamerImpl) MaxLoaded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxLoaded
}

func (s *streamerImpl) Distances(id string) (Distances, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Distances{}, false
	}
	return Distances{Load: s.records[i].load, Unload: s.records[i].unload}, true
}

func (s *streamerImpl) TierDistances(priority common.PriorityTier) Distances {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tiers[priority]
}

func (s *streamerImpl) IsLoaded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	return ok && s.records[i].loaded
}

func (s *streamerImpl) IsReady(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	return ok && s.records[i].loaded && s.records[i].ready
}

func (s *streamerImpl) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalRegistered: len(s.records),
		Loaded:          s.loaded,
		MaxLoaded:       s.maxLoaded,
		LoadQueueDepth:  s.queued,
		InFlight:        s.inFlight,
		Failed:          s.failed,
	}
}
