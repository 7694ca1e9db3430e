package capture

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

// solidFrame returns a single-color BGR frame.
func solidFrame(t *testing.T, val uint8) *gocv.Mat {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(val), float64(val), float64(val), 0),
		120, 160, gocv.MatTypeCV8UC3,
	)
	return &mat
}

// noisyFrame returns a frame with a bright rectangle at an offset, so
// consecutive calls with different offsets differ substantially.
func noisyFrame(t *testing.T, offset int) *gocv.Mat {
	t.Helper()
	mat := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	rect := image.Rect(offset, offset, offset+60, offset+60)
	gocv.Rectangle(&mat, rect, color.RGBA{R: 255, G: 255, B: 255}, -1)
	return &mat
}

func TestFreezeDetector_StaticStream(t *testing.T) {
	f := NewFreezeDetector(0, 3)
	defer f.Close()

	frames := make([]*gocv.Mat, 5)
	for i := range frames {
		frames[i] = solidFrame(t, 128)
		defer frames[i].Close()
	}

	// Baseline frame never counts as frozen.
	if f.Check(frames[0]) {
		t.Fatal("baseline frame reported frozen")
	}

	if f.Check(frames[1]) || f.Check(frames[2]) {
		t.Fatal("frozen reported before the static limit")
	}
	if !f.Check(frames[3]) {
		t.Error("expected frozen at the static limit")
	}
	if f.StaticFrames() < 3 {
		t.Errorf("expected at least 3 static frames, got %d", f.StaticFrames())
	}
}

func TestFreezeDetector_LiveStream(t *testing.T) {
	f := NewFreezeDetector(0, 3)
	defer f.Close()

	for i := 0; i < 6; i++ {
		frame := noisyFrame(t, i*10)
		frozen := f.Check(frame)
		frame.Close()
		if frozen {
			t.Fatalf("live stream reported frozen at frame %d", i)
		}
	}

	if f.StaticFrames() != 0 {
		t.Errorf("expected static run reset by motion, got %d", f.StaticFrames())
	}
}

func TestFreezeDetector_MotionResetsRun(t *testing.T) {
	f := NewFreezeDetector(0, 3)
	defer f.Close()

	a := solidFrame(t, 100)
	defer a.Close()

	f.Check(a)
	f.Check(a)
	f.Check(a)
	if f.StaticFrames() == 0 {
		t.Fatal("expected a static run to accumulate")
	}

	moving := noisyFrame(t, 40)
	defer moving.Close()
	if f.Check(moving) {
		t.Error("motion frame reported frozen")
	}
	if f.StaticFrames() != 0 {
		t.Errorf("expected run reset after motion, got %d", f.StaticFrames())
	}
}

func TestFreezeDetector_Reset(t *testing.T) {
	f := NewFreezeDetector(0, 2)
	defer f.Close()

	frame := solidFrame(t, 50)
	defer frame.Close()

	f.Check(frame)
	f.Check(frame)
	f.Reset()

	// After a reset the next frame is a fresh baseline.
	if f.Check(frame) {
		t.Error("frame after reset reported frozen")
	}
	if f.StaticFrames() != 0 {
		t.Errorf("expected zero static frames after reset, got %d", f.StaticFrames())
	}
}

func TestFreezeDetector_NilAndEmptyFrames(t *testing.T) {
	f := NewFreezeDetector(0, 2)
	defer f.Close()

	if f.Check(nil) {
		t.Error("nil frame reported frozen")
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if f.Check(&empty) {
		t.Error("empty frame reported frozen")
	}
}
