package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Pose is an immutable snapshot of the camera for a single tick.
// Every spatial query within a tick reads the same Pose, so visibility and streaming
// decisions never observe a camera that moves mid-computation.
type Pose struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3

	// Fov is the vertical field of view in radians.
	Fov    float32
	Aspect float32
	Near   float32
	Far    float32
}

// DefaultPose returns a pose at (0, 0, 10) looking at the origin with a 60 degree field of view.
func DefaultPose() Pose {
	return Pose{
		Position: mgl32.Vec3{0, 0, 10},
		Target:   mgl32.Vec3{0, 0, 0},
		Up:       mgl32.Vec3{0, 1, 0},
		Fov:      mgl32.DegToRad(60),
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      1000,
	}
}

// View returns the look-at view matrix.
// When position and target coincide the view falls back to looking down -Z so the matrix
// never contains NaN.
//
// Returns:
//   - mgl32.Mat4: the view matrix
func (p Pose) View() mgl32.Mat4 {
	target := p.Target
	if target.Sub(p.Position).LenSqr() == 0 {
		target = p.Position.Add(mgl32.Vec3{0, 0, -1})
	}
	up := p.Up
	if up.LenSqr() == 0 {
		up = mgl32.Vec3{0, 1, 0}
	}
	return mgl32.LookAtV(p.Position, target, up)
}

// Projection returns the perspective projection matrix.
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func (p Pose) Projection() mgl32.Mat4 {
	aspect := p.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(p.Fov, aspect, p.Near, p.Far)
}

// ViewProjection returns Projection * View.
//
// Returns:
//   - mgl32.Mat4: the combined view-projection matrix
func (p Pose) ViewProjection() mgl32.Mat4 {
	return p.Projection().Mul4(p.View())
}

// Forward returns the normalized direction from the position to the target.
//
// Returns:
//   - mgl32.Vec3: the forward vector, or -Z if position and target coincide
func (p Pose) Forward() mgl32.Vec3 {
	d := p.Target.Sub(p.Position)
	if d.LenSqr() == 0 {
		return mgl32.Vec3{0, 0, -1}
	}
	return d.Normalize()
}

// DistanceTo returns the distance from the camera position to v.
func (p Pose) DistanceTo(v mgl32.Vec3) float32 {
	return v.Sub(p.Position).Len()
}
