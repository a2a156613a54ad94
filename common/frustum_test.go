package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testViewProj() mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 500)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return proj.Mul4(view)
}

func TestExtractFrustumPlanesAreNormalized(t *testing.T) {
	f := ExtractFrustum(testViewProj())
	for i, p := range f.Planes {
		l := p.Normal.Len()
		if math.Abs(float64(l-1)) > 1e-4 {
			t.Errorf("plane %d normal length = %f, want 1", i, l)
		}
	}
}

func TestExtractFrustumNearFarDistances(t *testing.T) {
	f := ExtractFrustum(testViewProj())

	// Camera looks down -Z; the near plane sits at z = -0.1 and the far plane at z = -500.
	if d := f.Planes[FrustumNear].SignedDistance(mgl32.Vec3{0, 0, -0.1}); math.Abs(float64(d)) > 1e-3 {
		t.Errorf("near plane distance at z=-0.1 = %f, want 0", d)
	}
	// The far plane comes from subtracting nearly equal float32 rows, so its error grows with
	// the far distance. Allow 1e-4 of it.
	const far = 500.0
	if d := f.Planes[FrustumFar].SignedDistance(mgl32.Vec3{0, 0, -far}); math.Abs(float64(d)) > 1e-4*far {
		t.Errorf("far plane distance at z=-%v = %f, want 0 within %v", far, d, 1e-4*far)
	}
}

func TestFrustumContainsPoint(t *testing.T) {
	f := ExtractFrustum(testViewProj())

	cases := []struct {
		name string
		p    mgl32.Vec3
		want bool
	}{
		{"ahead", mgl32.Vec3{0, 0, -10}, true},
		{"behind", mgl32.Vec3{0, 0, 10}, false},
		{"beyond far", mgl32.Vec3{0, 0, -600}, false},
		{"far left", mgl32.Vec3{-100, 0, -10}, false},
		{"far above", mgl32.Vec3{0, 100, -10}, false},
	}
	for _, c := range cases {
		if got := f.ContainsPoint(c.p); got != c.want {
			t.Errorf("%s: ContainsPoint(%v) = %v, want %v", c.name, c.p, got, c.want)
		}
	}
}

func TestFrustumIntersectsAABB(t *testing.T) {
	f := ExtractFrustum(testViewProj())

	cases := []struct {
		name string
		bv   BoundingVolume
		want bool
	}{
		{"inside", NewBoundingVolume(mgl32.Vec3{0, 0, -20}, mgl32.Vec3{2, 2, 2}), true},
		{"behind camera", NewBoundingVolume(mgl32.Vec3{0, 0, 20}, mgl32.Vec3{2, 2, 2}), false},
		{"straddles left plane", NewBoundingVolume(mgl32.Vec3{-11.5, 0, -20}, mgl32.Vec3{4, 4, 4}), true},
		{"fully right", NewBoundingVolume(mgl32.Vec3{60, 0, -20}, mgl32.Vec3{4, 4, 4}), false},
		{"contains camera", NewBoundingVolume(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{10, 10, 10}), true},
	}
	for _, c := range cases {
		if got := f.IntersectsAABB(c.bv); got != c.want {
			t.Errorf("%s: IntersectsAABB = %v, want %v", c.name, got, c.want)
		}
	}
}
