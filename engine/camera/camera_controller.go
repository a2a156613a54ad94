package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Controller defines the interface for camera position sources.
// Controllers own positional state (position, target). Camera reads from the controller
// and snapshots it into a Pose each tick.
type Controller interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: world-space camera position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: world-space target position
	Target() mgl32.Vec3
}
