package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Waypoint is one stop on a camera path.
type Waypoint struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
}

// PathController moves the camera along a polyline of waypoints by a progress value in [0, 1].
// Progress is distributed by arc length over the waypoint positions, so equal progress steps
// travel equal distances.
type PathController interface {
	Controller

	// Progress returns the current position along the path in [0, 1].
	Progress() float32

	// SetProgress moves the camera to the given progress, clamped to [0, 1].
	//
	// Parameters:
	//   - progress: fraction of the path length
	SetProgress(progress float32)

	// Advance adds delta to the current progress, clamped to [0, 1].
	//
	// Parameters:
	//   - delta: progress increment, may be negative
	//
	// Returns:
	//   - float32: the new progress
	Advance(delta float32) float32
}

type pathControllerImpl struct {
	mu *sync.Mutex

	waypoints []Waypoint
	// cumulative[i] is the path length from waypoint 0 to waypoint i.
	cumulative []float32
	total      float32

	progress float32
	position mgl32.Vec3
	target   mgl32.Vec3
}

var _ PathController = &pathControllerImpl{}

// NewPathController creates a controller that follows the given waypoints.
// With no waypoints the camera sits at DefaultPose's position and target.
//
// Parameters:
//   - waypoints: the path stops, in travel order
//
// Returns:
//   - PathController: the newly created controller positioned at progress 0
func NewPathController(waypoints []Waypoint) PathController {
	pc := &pathControllerImpl{
		mu:         &sync.Mutex{},
		waypoints:  append([]Waypoint(nil), waypoints...),
		cumulative: make([]float32, len(waypoints)),
	}
	for i := 1; i < len(pc.waypoints); i++ {
		pc.total += pc.waypoints[i].Position.Sub(pc.waypoints[i-1].Position).Len()
		pc.cumulative[i] = pc.total
	}
	pc.updatePosition()
	return pc
}

// updatePosition interpolates position and target for the current progress.
// Caller must hold the mutex.
func (pc *pathControllerImpl) updatePosition() {
	switch len(pc.waypoints) {
	case 0:
		d := DefaultPose()
		pc.position, pc.target = d.Position, d.Target
		return
	case 1:
		pc.position, pc.target = pc.waypoints[0].Position, pc.waypoints[0].Target
		return
	}

	if pc.total == 0 {
		last := pc.waypoints[len(pc.waypoints)-1]
		pc.position, pc.target = last.Position, last.Target
		return
	}

	dist := pc.progress * pc.total
	seg := len(pc.waypoints) - 2
	for i := 1; i < len(pc.cumulative); i++ {
		if dist <= pc.cumulative[i] {
			seg = i - 1
			break
		}
	}

	a, b := pc.waypoints[seg], pc.waypoints[seg+1]
	segLen := pc.cumulative[seg+1] - pc.cumulative[seg]
	var t float32
	if segLen > 0 {
		t = (dist - pc.cumulative[seg]) / segLen
	}
	pc.position = lerp(a.Position, b.Position, t)
	pc.target = lerp(a.Target, b.Target, t)
}

func lerp(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func (pc *pathControllerImpl) Position() mgl32.Vec3 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.position
}

func (pc *pathControllerImpl) Target() mgl32.Vec3 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.target
}

func (pc *pathControllerImpl) Progress() float32 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.progress
}

func (pc *pathControllerImpl) SetProgress(progress float32) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.progress = common.Clamp(progress, 0, 1)
	pc.updatePosition()
}

func (pc *pathControllerImpl) Advance(delta float32) float32 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.progress = common.Clamp(pc.progress+delta, 0, 1)
	pc.updatePosition()
	return pc.progress
}
