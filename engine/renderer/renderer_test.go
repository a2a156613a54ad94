package renderer

import (
	"errors"
	"os"
	"testing"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/batch"
	"github.com/go-gl/mathgl/mgl32"
)

func TestPlanBuffer(t *testing.T) {
	cases := []struct {
		have     uint64
		n        int
		headroom float64
		want     uint64
		grow     bool
	}{
		{0, 80, 0, 80, true},
		{0, 80, 0.25, 100, true},
		{100, 80, 0.25, 100, false},
		{100, 160, 0.25, 200, true},
		{0, 6, 0, 8, true},
		{8, 6, 0, 8, false},
		{0, 10, -1, 12, true},
	}
	for _, c := range cases {
		got, grow := planBuffer(c.have, c.n, c.headroom)
		if got != c.want || grow != c.grow {
			t.Errorf("planBuffer(%d, %d, %v) = %d, %v; want %d, %v", c.have, c.n, c.headroom, got, grow, c.want, c.grow)
		}
	}
}

// TestUploaderOnDevice needs a GPU or software adapter; set OXY_GPU_TESTS=1 to run it.
func TestUploaderOnDevice(t *testing.T) {
	if os.Getenv("OXY_GPU_TESTS") == "" {
		t.Skip("OXY_GPU_TESTS not set")
	}
	dev, err := NewHeadlessDevice()
	if errors.Is(err, ErrNoAdapter) {
		t.Skip(err)
	}
	if err != nil {
		t.Fatalf("NewHeadlessDevice: %v", err)
	}
	defer dev.Release()
	if n, ok := dev.MaxTextureDimension(); !ok || n <= 0 {
		t.Errorf("MaxTextureDimension = %d, %v", n, ok)
	}

	r := batch.NewRenderer()
	for _, id := range []string{"a", "b", "c"} {
		r.AddInstance("tree", batch.Instance{ID: id, Transform: common.NewTransform(mgl32.Vec3{}), Alpha: 1})
	}
	r.Update()

	u := NewUploader(dev.Device, WithHeadroom(0))
	defer u.Release()
	st, err := u.Upload(r.Batches())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := uint64(3 * batch.GPUInstanceDataSize)
	if st.Buffers != 1 || st.WrittenBytes != want || st.AllocatedBytes != want || st.Grown != 1 {
		t.Errorf("stats = %+v", st)
	}
	if u.Buffer("tree") == nil {
		t.Error("no buffer for tree")
	}

	// Same size again reuses the buffer.
	if st, _ := u.Upload(r.Batches()); st.Grown != 1 {
		t.Errorf("re-upload grew the buffer: %+v", st)
	}
}
