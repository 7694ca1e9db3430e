package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestDeviceClaims(t *testing.T) {
	t.Run("second claim on the same device fails", func(t *testing.T) {
		if err := claimDevice(7); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer releaseDevice(7)

		if err := claimDevice(7); !errors.Is(err, ErrCameraBusy) {
			t.Errorf("expected ErrCameraBusy, got %v", err)
		}
	})

	t.Run("release makes the device claimable again", func(t *testing.T) {
		if err := claimDevice(8); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		releaseDevice(8)

		if err := claimDevice(8); err != nil {
			t.Errorf("expected claim after release to succeed, got %v", err)
		}
		releaseDevice(8)
	})

	t.Run("distinct devices claim independently", func(t *testing.T) {
		if err := claimDevice(9); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer releaseDevice(9)

		if err := claimDevice(10); err != nil {
			t.Errorf("expected device 10 to claim, got %v", err)
		}
		releaseDevice(10)
	})
}

func TestNewCamera(t *testing.T) {
	cam := NewCamera(0)

	if cam.IsOpen() {
		t.Error("new camera should not be open")
	}
	if cam.FPS() != DefaultFPS {
		t.Errorf("expected default FPS %d, got %d", DefaultFPS, cam.FPS())
	}

	t.Run("read before open fails", func(t *testing.T) {
		if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
			t.Errorf("expected ErrCameraNotOpen, got %v", err)
		}
	})

	t.Run("close before open is safe", func(t *testing.T) {
		if err := cam.Close(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("SetFPS ignores non-positive values", func(t *testing.T) {
		cam.SetFPS(30)
		if cam.FPS() != 30 {
			t.Errorf("expected 30, got %d", cam.FPS())
		}
		cam.SetFPS(0)
		if cam.FPS() != 30 {
			t.Errorf("expected FPS unchanged, got %d", cam.FPS())
		}
	})
}

func TestMockCamera(t *testing.T) {
	t.Run("synthesizes blank frames when none configured", func(t *testing.T) {
		cam := NewMockCamera(nil, true)
		if err := cam.Open(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer cam.Close()

		frame, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer frame.Close()

		if frame.Rows() != DefaultHeight || frame.Cols() != DefaultWidth {
			t.Errorf("expected %dx%d, got %dx%d", DefaultWidth, DefaultHeight, frame.Cols(), frame.Rows())
		}
		if cam.Reads() != 1 {
			t.Errorf("expected 1 read, got %d", cam.Reads())
		}
	})

	t.Run("read before open fails", func(t *testing.T) {
		cam := NewMockCamera(nil, false)
		if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
			t.Errorf("expected ErrCameraNotOpen, got %v", err)
		}
	})

	t.Run("non-looping playback ends", func(t *testing.T) {
		mat := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
		defer mat.Close()

		cam := NewMockCamera([]*gocv.Mat{&mat}, false)
		cam.Open()
		defer cam.Close()

		frame, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		frame.Close()

		if _, err := cam.ReadFrame(); err == nil {
			t.Error("expected an error once playback ends")
		}
	})

	t.Run("looping playback wraps around", func(t *testing.T) {
		mat := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
		defer mat.Close()

		cam := NewMockCamera([]*gocv.Mat{&mat}, true)
		cam.Open()
		defer cam.Close()

		for i := 0; i < 3; i++ {
			frame, err := cam.ReadFrame()
			if err != nil {
				t.Fatalf("read %d: unexpected error: %v", i, err)
			}
			frame.Close()
		}
	})

	t.Run("injected error surfaces on read", func(t *testing.T) {
		cam := NewMockCamera(nil, true)
		cam.Open()
		defer cam.Close()

		readErr := errors.New("camera stream stopped: usb reset")
		cam.SetError(readErr)
		if _, err := cam.ReadFrame(); !errors.Is(err, readErr) {
			t.Errorf("expected the injected error, got %v", err)
		}

		cam.SetError(nil)
		frame, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("expected reads to recover, got %v", err)
		}
		frame.Close()
	})
}
