package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestQualityTierStepsOneAtATime(t *testing.T) {
	if got := QualityLow.Up(); got != QualityMedium {
		t.Errorf("low.Up() = %v, want medium", got)
	}
	if got := QualityMedium.Up(); got != QualityHigh {
		t.Errorf("medium.Up() = %v, want high", got)
	}
	if got := QualityHigh.Up(); got != QualityHigh {
		t.Errorf("high.Up() = %v, want high", got)
	}
	if got := QualityHigh.Down(); got != QualityMedium {
		t.Errorf("high.Down() = %v, want medium", got)
	}
	if got := QualityLow.Down(); got != QualityLow {
		t.Errorf("low.Down() = %v, want low", got)
	}
}

func TestParseQualityTier(t *testing.T) {
	for _, q := range QualityTiers {
		got, ok := ParseQualityTier(q.String())
		if !ok || got != q {
			t.Errorf("ParseQualityTier(%q) = %v, %v", q.String(), got, ok)
		}
	}
	if _, ok := ParseQualityTier("ultra"); ok {
		t.Error("ParseQualityTier(ultra) reported ok")
	}
}

func TestTransformMatrixTranslatesOrigin(t *testing.T) {
	tr := NewTransform(mgl32.Vec3{3, 4, 5})
	tr.Scale = mgl32.Vec3{2, 2, 2}
	tr.Rotation = mgl32.Vec3{0, mgl32.DegToRad(90), 0}

	origin := tr.Matrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !origin.Vec3().ApproxEqual(mgl32.Vec3{3, 4, 5}) {
		t.Errorf("origin maps to %v, want (3,4,5)", origin)
	}

	// +X rotated 90 degrees about Y points down -Z, then scaled by 2.
	x := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	if !x.ApproxEqualThreshold(mgl32.Vec3{3, 4, 3}, 1e-4) {
		t.Errorf("unit X maps to %v, want (3,4,3)", x)
	}
}

func TestDegenerateMatrixCollapsesToPosition(t *testing.T) {
	tr := NewTransform(mgl32.Vec3{1, 2, 3})
	m := tr.DegenerateMatrix()
	for _, v := range []mgl32.Vec4{{0, 0, 0, 1}, {5, -5, 9, 1}} {
		got := m.Mul4x1(v).Vec3()
		if !got.ApproxEqual(mgl32.Vec3{1, 2, 3}) {
			t.Errorf("degenerate matrix maps %v to %v", v, got)
		}
	}
}

func TestBoundingVolumeDistance(t *testing.T) {
	bv := NewBoundingVolume(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{2, 2, 2})
	if d := bv.DistanceTo(mgl32.Vec3{0.5, 0, 0}); d != 0 {
		t.Errorf("inside distance = %f, want 0", d)
	}
	if d := bv.DistanceTo(mgl32.Vec3{11, 0, 0}); d != 10 {
		t.Errorf("distance = %f, want 10", d)
	}
	if c := bv.Center(); !c.ApproxEqual(mgl32.Vec3{}) {
		t.Errorf("center = %v", c)
	}
}

func TestCoalesce(t *testing.T) {
	if got := Coalesce(0, 0, 3, 4); got != 3 {
		t.Errorf("Coalesce = %d, want 3", got)
	}
	if got := Coalesce("", ""); got != "" {
		t.Errorf("Coalesce = %q, want empty", got)
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ v, want float32 }{{-1, 0}, {0.25, 0.25}, {3, 1}}
	for _, c := range cases {
		if got := Clamp(c.v, 0, 1); got != c.want {
			t.Errorf("Clamp(%v, 0, 1) = %v, want %v", c.v, got, c.want)
		}
	}
}
