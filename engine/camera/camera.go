package camera

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	up mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	controller Controller
}

// Camera defines the interface for the camera system.
// The camera holds perspective settings and reads position/target from an attached
// Controller. Snapshot freezes both into a Pose for one tick.
type Camera interface {
	// Snapshot returns the current pose. Without a controller the pose sits at
	// DefaultPose's position and target with this camera's projection settings.
	//
	// Returns:
	//   - Pose: an immutable snapshot of the camera
	Snapshot() Pose

	// Controller returns the attached Controller, or nil if none is attached.
	//
	// Returns:
	//   - Controller: the attached controller or nil
	Controller() Controller

	// SetController attaches a Controller to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl Controller)

	// SetUp sets the camera's up vector.
	//
	// Parameters:
	//   - up: the up vector
	SetUp(up mgl32.Vec3)

	// SetFov sets the vertical field of view in radians. Values outside (0, pi) are ignored.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height). Non-positive values are ignored.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetClip sets the near and far clipping plane distances unless they violate 0 < near < far.
	//
	// Parameters:
	//   - near: near plane distance
	//   - far: far plane distance
	SetClip(near, far float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera whose lens starts at DefaultPose's settings.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{mu: &sync.Mutex{}}
	WithLens(DefaultPose())(c)
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Snapshot() Pose {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := Pose{
		Up:     c.up,
		Fov:    c.fov,
		Aspect: c.aspect,
		Near:   c.near,
		Far:    c.far,
	}
	if c.controller == nil {
		d := DefaultPose()
		p.Position, p.Target = d.Position, d.Target
		return p
	}
	p.Position = c.controller.Position()
	p.Target = c.controller.Target()
	return p
}

func (c *cameraImpl) Controller() Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

func (c *cameraImpl) SetUp(up mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = up
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	WithFovDegrees(mgl32.RadToDeg(fov))(c)
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	WithAspect(aspect)(c)
}

func (c *cameraImpl) SetClip(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	WithClip(near, far)(c)
}
