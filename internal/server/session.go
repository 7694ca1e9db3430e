package server

import (
	"math"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/session"
)

// SessionHandler exposes the session controller over HTTP.
type SessionHandler struct {
	controller *session.Controller
}

// NewSessionHandler creates a new SessionHandler for the given controller.
func NewSessionHandler(c *session.Controller) *SessionHandler {
	return &SessionHandler{controller: c}
}

// ServeHTTP routes session requests by path and method.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/session")
	action = strings.Trim(action, "/")

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleStatus(w, r)
	case action == "calibration" && r.Method == http.MethodGet:
		h.handleCalibration(w, r)
	case r.Method == http.MethodPost:
		h.handleAction(w, r, action)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStatus reports the controller's current state.
func (h *SessionHandler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]interface{}{
		"state":       string(h.controller.State()),
		"retry_count": h.controller.RetryCount(),
		"target_sign": h.controller.TargetSign(),
	}

	if cls := h.controller.LastError(); cls != nil {
		status["error"] = map[string]interface{}{
			"kind":      string(cls.Kind),
			"title":     cls.Title,
			"icon":      cls.Icon,
			"steps":     cls.Steps,
			"can_retry": cls.CanRetry,
			"terminal":  cls.Terminal,
		}
	}

	writeJSON(w, http.StatusOK, status)
}

// handleCalibration returns the most recent hand-to-ground angle, which the
// UI uses to let a learner set a personal upright offset.
func (h *SessionHandler) handleCalibration(w http.ResponseWriter, _ *http.Request) {
	angle := h.controller.CalibrationAngle()
	if math.IsNaN(angle) {
		http.Error(w, "No hand observed yet", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ground_angle": angle,
	})
}

// handleAction executes a lifecycle action: start, stop, restart or retry.
func (h *SessionHandler) handleAction(w http.ResponseWriter, _ *http.Request, action string) {
	var err error
	switch action {
	case "start":
		err = h.controller.Start()
	case "stop":
		h.controller.Stop()
	case "restart":
		err = h.controller.Restart()
	case "retry":
		err = h.controller.Retry()
	default:
		http.Error(w, "Unknown session action", http.StatusNotFound)
		return
	}

	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error": err.Error(),
			"state": string(h.controller.State()),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": string(h.controller.State()),
	})
}
