// Package dashboard draws a read-only terminal view of the engine's snapshots.
package dashboard

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/engine"
	"github.com/Carmen-Shannon/oxy-stream/engine/culler"
	"github.com/Carmen-Shannon/oxy-stream/engine/profiler"
	"github.com/Carmen-Shannon/oxy-stream/engine/quality"
	"github.com/Carmen-Shannon/oxy-stream/engine/streamer"
	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"
)

const barWidth = 20

var (
	styleTitle  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleLabel  = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleValue  = tcell.StyleDefault
	styleBar    = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleFull   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleFooter = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// BatchRow is one batch line of the view.
type BatchRow struct {
	Key       string
	Instances int
	Hidden    int
	Capacity  int
}

// Snapshot is everything the dashboard shows for one frame.
type Snapshot struct {
	Frame       int
	Auto        bool
	Quality     quality.Settings
	Performance profiler.Stats
	Culling     culler.Stats
	Streaming   streamer.Stats
	Render      engine.RenderStats
	Batches     []BatchRow
}

// Capture reads every snapshot the engine exposes.
//
// Parameters:
//   - e: the engine
//   - frame: the host frame counter
//
// Returns:
//   - Snapshot: the captured view
func Capture(e engine.Engine, frame int) Snapshot {
	s := Snapshot{
		Frame:       frame,
		Auto:        e.AutoQuality(),
		Quality:     e.QualitySettings(),
		Performance: e.PerformanceStats(),
		Culling:     e.CullingStats(),
		Streaming:   e.StreamingStats(),
		Render:      e.RenderStats(),
	}
	for _, b := range e.VisibleBatches() {
		row := BatchRow{Key: b.ResourceKey, Instances: len(b.Instances), Capacity: b.Capacity}
		for _, inst := range b.Instances {
			if inst.Hidden {
				row.Hidden++
			}
		}
		s.Batches = append(s.Batches, row)
	}
	return s
}

// Draw renders a snapshot onto screen and shows it. Lines that do not fit are clipped.
//
// Parameters:
//   - screen: the target screen
//   - s: the snapshot to draw
func Draw(screen tcell.Screen, s Snapshot) {
	screen.Clear()
	w, h := screen.Size()
	y := 0
	line := func(parts ...span) {
		if y >= h {
			return
		}
		x := 0
		for _, p := range parts {
			x = drawText(screen, x, y, w, p.style, p.text)
		}
		y++
	}

	mode := "auto"
	if !s.Auto {
		mode = "forced"
	}
	line(span{styleTitle, "oxy-stream"}, span{styleValue, fmt.Sprintf("  frame %d  tier %s (%s)", s.Frame, strings.ToUpper(s.Quality.Tier.String()), mode)})
	line()

	p := s.Performance
	line(label("fps"), value("%6.1f  avg %.1fms  worst %.1fms  drops %d/%d  target %.0f",
		p.AverageFPS, p.AverageFrameMs, p.WorstFrameMs, p.FrameDropCount, p.SampleCount, s.Quality.TargetFPS))
	q := s.Quality
	line(label("quality"), value("res %.2f  shadows %s  aa %s  post %s  particles %d",
		q.ResolutionScale, onOff(q.ShadowsEnabled), onOff(q.AntialiasEnabled), onOff(q.PostProcessingEnabled), q.ParticleBudget))
	c := s.Culling
	line(label("culling"), value("total %d  visible %d  culled %d", c.TotalObjects, c.VisibleObjects, c.CulledObjects))
	st := s.Streaming
	line(label("streaming"), value("loaded %d/%d  queued %d  in-flight %d  failed %d",
		st.Loaded, st.MaxLoaded, st.LoadQueueDepth, st.InFlight, st.Failed))
	r := s.Render
	line(label("render"), value("draw calls %d  instances %d (hidden %d)  instance data %s  textures %s",
		r.DrawCalls, r.Instances, r.HiddenInstances, humanBytes(int64(r.InstanceBytes)), humanBytes(r.TextureBytes)))
	line()

	line(label("batches"))
	for _, b := range s.Batches {
		filled := 0
		if b.Capacity > 0 {
			filled = min(barWidth, (b.Instances*barWidth+b.Capacity-1)/b.Capacity)
		}
		style := styleBar
		if b.Instances >= b.Capacity {
			style = styleFull
		}
		line(
			span{styleValue, fmt.Sprintf("  %-12s ", b.Key)},
			span{style, strings.Repeat("#", filled)},
			span{styleFooter, strings.Repeat("-", barWidth-filled)},
			span{styleValue, fmt.Sprintf(" %d/%d  hidden %d", b.Instances, b.Capacity, b.Hidden)},
		)
	}

	if h > 0 {
		drawText(screen, 0, h-1, w, styleFooter, "q quit  1/2/3 force tier  a auto quality")
	}
	screen.Show()
}

type span struct {
	style tcell.Style
	text  string
}

func label(text string) span {
	return span{styleLabel, fmt.Sprintf("%-11s", text)}
}

func value(format string, args ...any) span {
	return span{styleValue, fmt.Sprintf(format, args...)}
}

// drawText writes text from x on row y, clipped at width, and returns the next column.
func drawText(screen tcell.Screen, x, y, width int, style tcell.Style, text string) int {
	for _, r := range text {
		if x >= width {
			break
		}
		screen.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Dashboard owns a terminal screen and turns its key presses into commands.
type Dashboard interface {
	// Render draws a snapshot.
	//
	// Parameters:
	//   - s: the snapshot
	Render(s Snapshot)

	// Commands delivers the runes of pressed keys. It is closed when the screen closes.
	Commands() <-chan rune

	// Close restores the terminal. Safe to call multiple times.
	Close()
}

type dashboardImpl struct {
	logger    *logrus.Entry
	screen    tcell.Screen
	commands  chan rune
	closeOnce sync.Once
}

var _ Dashboard = &dashboardImpl{}

// NewDashboard initializes a screen and starts reading its events.
// Escape and Ctrl-C arrive on Commands as 'q'.
//
// Parameters:
//   - options: functional options to configure the dashboard
//
// Returns:
//   - Dashboard: the running dashboard
//   - error: error if the terminal could not be initialized
func NewDashboard(options ...DashboardBuilderOption) (Dashboard, error) {
	d := &dashboardImpl{
		logger:   logrus.StandardLogger().WithField("component", "dashboard"),
		commands: make(chan rune, 16),
	}
	for _, option := range options {
		option(d)
	}
	if d.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("failed to create screen: %w", err)
		}
		d.screen = screen
	}
	if err := d.screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize screen: %w", err)
	}
	go d.pollEvents()
	return d, nil
}

// pollEvents forwards key presses until the screen is finalized.
func (d *dashboardImpl) pollEvents() {
	defer close(d.commands)
	for {
		ev := d.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			r := ev.Rune()
			switch ev.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				r = 'q'
			case tcell.KeyRune:
			default:
				continue
			}
			select {
			case d.commands <- r:
			default:
				d.logger.WithField("key", string(r)).Debug("command dropped, channel full")
			}
		case *tcell.EventResize:
			d.screen.Sync()
		}
	}
}

func (d *dashboardImpl) Render(s Snapshot) {
	Draw(d.screen, s)
}

func (d *dashboardImpl) Commands() <-chan rune {
	return d.commands
}

func (d *dashboardImpl) Close() {
	d.closeOnce.Do(d.screen.Fini)
}
