package server

import (
	"fmt"
	"net/http"

	"github.com/ayusman/mudra/internal/session"
)

// StreamHandler serves the session's processed frames as an MJPEG stream.
type StreamHandler struct {
	controller *session.Controller
}

// NewStreamHandler creates a StreamHandler fed by the controller's frame
// stream.
func NewStreamHandler(c *session.Controller) *StreamHandler {
	return &StreamHandler{controller: c}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	release := h.controller.AcquireStream()
	defer release()

	// The pipeline owns the camera; frames arrive through a listener, so the
	// stream never competes with detection for device reads. Drop frames
	// instead of blocking the pipeline when a client falls behind.
	frames := make(chan []byte, 4)
	remove := h.controller.AddFrameListener(func(f session.Frame) {
		if len(f.JPEG) == 0 {
			return
		}
		select {
		case frames <- f.JPEG:
		default:
		}
	})
	defer remove()

	for {
		select {
		case <-r.Context().Done():
			return
		case jpeg := <-frames:
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
			w.Write(jpeg)
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
