package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LandmarksHandler broadcasts the session's processed frames via WebSocket:
// hand landmarks, extracted features, and the recognized sign when present.
type LandmarksHandler struct {
	frames    chan session.Frame
	done      chan struct{}
	closeOnce sync.Once
	clients   map[*websocket.Conn]bool
	mu        sync.RWMutex
	remove    func()
}

// NewLandmarksHandler creates a LandmarksHandler fed by the controller's
// frame stream.
func NewLandmarksHandler(c *session.Controller) *LandmarksHandler {
	h := &LandmarksHandler{
		frames:  make(chan session.Frame, 8),
		done:    make(chan struct{}),
		clients: make(map[*websocket.Conn]bool),
	}

	// The listener runs on the pipeline goroutine; drop frames instead of
	// blocking it when broadcasting falls behind.
	h.remove = c.AddFrameListener(func(f session.Frame) {
		select {
		case h.frames <- f:
		default:
		}
	})

	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LandmarksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast sends each frame to all connected clients.
func (h *LandmarksHandler) broadcast() {
	for {
		var f session.Frame
		select {
		case <-h.done:
			return
		case f = <-h.frames:
		}

		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}

		msg, err := json.Marshal(map[string]any{
			"hands":      f.Hands,
			"features":   f.Features,
			"sign":       f.Sign,
			"confidence": f.Confidence,
			"timestamp":  f.Timestamp.UnixMilli(),
		})
		if err != nil {
			h.mu.RUnlock()
			continue
		}

		for conn := range h.clients {
			conn.WriteMessage(websocket.TextMessage, msg)
		}
		h.mu.RUnlock()
	}
}

// Close detaches the handler from the controller's frame stream and stops
// the broadcast loop. The frames channel stays open, so a publication racing
// the detach lands in the buffer instead of panicking. Safe to call more
// than once.
func (h *LandmarksHandler) Close() {
	h.closeOnce.Do(func() {
		if h.remove != nil {
			h.remove()
		}
		close(h.done)
	})
}
