package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/session"
)

func TestLandmarksHandler_BroadcastsFrames(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks("Right")})
	c := newRecordingController(det)
	defer c.Stop()

	h := NewLandmarksHandler(c)
	defer h.Close()

	ts := httptest.NewServer(h)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	c.Start()
	waitControllerState(t, c, session.StateRunning)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message failed: %v", err)
	}

	var frame map[string]interface{}
	if err := json.Unmarshal(msg, &frame); err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	if _, ok := frame["features"]; !ok {
		t.Error("expected a features field in the broadcast frame")
	}
	if _, ok := frame["timestamp"]; !ok {
		t.Error("expected a timestamp field in the broadcast frame")
	}
}

func TestLandmarksHandler_Close(t *testing.T) {
	c := newRecordingController(detector.NewMockDetector())
	defer c.Stop()

	c.Start()
	waitControllerState(t, c, session.StateRunning)

	h := NewLandmarksHandler(c)
	time.Sleep(30 * time.Millisecond)

	h.Close()
	h.Close() // idempotent

	// The pipeline keeps publishing after the detach; the handler must not
	// leave a closed channel behind for those frames to hit.
	time.Sleep(50 * time.Millisecond)
	if c.State() != session.StateRunning {
		t.Errorf("expected the session to keep running, got %s", c.State())
	}
}
