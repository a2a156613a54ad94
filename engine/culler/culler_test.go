package culler

import (
	"fmt"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/camera"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// lookDownZ returns a pose at the origin looking down -Z.
func lookDownZ() camera.Pose {
	return camera.Pose{
		Position: mgl32.Vec3{0, 0, 0},
		Target:   mgl32.Vec3{0, 0, -1},
		Up:       mgl32.Vec3{0, 1, 0},
		Fov:      mgl32.DegToRad(60),
		Aspect:   1,
		Near:     0.1,
		Far:      1000,
	}
}

func box(x, y, z float32) common.BoundingVolume {
	return common.NewBoundingVolume(mgl32.Vec3{x, y, z}, mgl32.Vec3{2, 2, 2})
}

func TestCullBeforeCameraIsFailOpen(t *testing.T) {
	c := NewCuller()
	c.Add("behind", box(0, 0, 50), common.PriorityDecorative)
	c.Add("far", box(0, 0, -5000), common.PriorityDecorative)

	res := c.Cull()
	if len(res.Visible) != 2 || len(res.Culled) != 0 {
		t.Fatalf("Cull() = %+v, want everything visible", res)
	}
	if s := c.Stats(); s.VisibleObjects != 2 || s.TotalObjects != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestFrustumAndDistance(t *testing.T) {
	c := NewCuller()
	c.SetCamera(lookDownZ())

	c.Add("ahead", box(0, 0, -20), common.PriorityDecorative)
	c.Add("behind", box(0, 0, 20), common.PriorityCritical)
	c.Add("left", box(-200, 0, -20), common.PriorityCritical)
	c.Add("deco-far", box(0, 0, -150), common.PriorityDecorative)
	c.Add("crit-far", box(0, 0, -150), common.PriorityCritical)

	res := c.Cull()
	wantVisible := []string{"ahead", "crit-far"}
	if !slices.Equal(res.Visible, wantVisible) {
		t.Errorf("Visible = %v, want %v", res.Visible, wantVisible)
	}
	wantCulled := []string{"behind", "left", "deco-far"}
	if !slices.Equal(res.Culled, wantCulled) {
		t.Errorf("Culled = %v, want %v", res.Culled, wantCulled)
	}
	if !c.IsVisible("ahead") || c.IsVisible("behind") {
		t.Error("IsVisible disagrees with Cull")
	}
}

func TestDistanceScaleShrinksCutoff(t *testing.T) {
	c := NewCuller()
	c.SetCamera(lookDownZ())
	c.Add("a", box(0, 0, -101), common.PriorityDecorative) // nearest face at 100

	if res := c.Cull(); len(res.Visible) != 1 {
		t.Fatalf("visible at scale 1: %+v", res)
	}
	c.SetDistanceScale(0.6) // decorative cutoff 72
	if res := c.Cull(); len(res.Culled) != 1 {
		t.Fatalf("visible at scale 0.6: %+v", res)
	}
	if d := c.CullDistance(common.PriorityDecorative); d < 71.99 || d > 72.01 {
		t.Errorf("CullDistance = %f", d)
	}
}

func TestDistanceMeasuredToClosestPoint(t *testing.T) {
	c := NewCuller(WithCullDistance(common.PriorityImportant, 50))
	c.SetCamera(lookDownZ())
	// Center is 70 away but the box reaches to 45.
	big := common.NewBoundingVolume(mgl32.Vec3{0, 0, -70}, mgl32.Vec3{10, 10, 50})
	c.Add("big", big, common.PriorityImportant)

	if res := c.Cull(); len(res.Visible) != 1 {
		t.Errorf("Cull() = %+v, want big visible", res)
	}
}

func TestFrustumCorrectnessProperty(t *testing.T) {
	c := NewCuller()
	pose := lookDownZ()
	c.SetCamera(pose)
	frustum := common.ExtractFrustum(pose.ViewProjection())

	var ids []string
	for x := -60; x <= 60; x += 15 {
		for z := -120; z <= 40; z += 20 {
			id := fmt.Sprintf("%d_%d", x, z)
			c.Add(id, box(float32(x), 0, float32(z)), common.PriorityCritical)
			ids = append(ids, id)
		}
	}

	res := c.Cull()
	for _, id := range ids {
		var x, z int
		fmt.Sscanf(id, "%d_%d", &x, &z)
		bv := box(float32(x), 0, float32(z))
		within := bv.DistanceTo(pose.Position) <= c.CullDistance(common.PriorityCritical)
		want := within && frustum.IntersectsAABB(bv)
		if got := slices.Contains(res.Visible, id); got != want {
			t.Errorf("%s: visible = %v, want %v", id, got, want)
		}
	}
	if len(res.Visible)+len(res.Culled) != len(ids) {
		t.Errorf("classified %d objects, registered %d", len(res.Visible)+len(res.Culled), len(ids))
	}
}

func TestRemoveSwapsLastIntoGap(t *testing.T) {
	c := NewCuller()
	for _, id := range []string{"a", "b", "c", "d"} {
		c.Add(id, box(0, 0, -10), common.PriorityImportant)
	}
	c.Remove("b")
	c.Remove("b")

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	res := c.Cull()
	if !slices.Equal(res.Visible, []string{"a", "d", "c"}) {
		t.Errorf("Visible = %v, want [a d c]", res.Visible)
	}

	// The moved entry must still be addressable through the index.
	c.SetCamera(lookDownZ())
	c.UpdatePosition("d", box(0, 0, 50))
	res = c.Cull()
	if !slices.Equal(res.Culled, []string{"d"}) {
		t.Errorf("Culled = %v, want [d]", res.Culled)
	}
}

func TestUnknownIDsAreLoggedNoOps(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c := NewCuller(WithLogger(logrus.NewEntry(logger)))

	c.UpdatePosition("ghost", box(0, 0, 0))
	c.Remove("ghost")

	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	if e := entries[0]; e.Level != logrus.WarnLevel || e.Data["id"] != "ghost" {
		t.Errorf("entry = %v %v", e.Level, e.Data)
	}
}
