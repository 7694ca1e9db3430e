package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// recordTimeout bounds how long a recording request will wait for enough
// frames with a visible hand.
const recordTimeout = 30 * time.Second

// SamplesHandler manages recorded feature samples.
type SamplesHandler struct {
	store      *store.Store
	controller *session.Controller
}

// NewSamplesHandler creates a new SamplesHandler. The controller may be nil,
// in which case live recording is unavailable.
func NewSamplesHandler(s *store.Store, c *session.Controller) *SamplesHandler {
	return &SamplesHandler{store: s, controller: c}
}

// ServeHTTP routes sample requests by path and method.
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/samples")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case rest == "" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case rest == "export" && r.Method == http.MethodGet:
		h.handleExport(w, r)
	case rest != "" && r.Method == http.MethodDelete:
		h.handleDelete(w, r, rest)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleList returns all samples plus per-label counts.
func (h *SamplesHandler) handleList(w http.ResponseWriter, _ *http.Request) {
	samples, err := h.store.Samples().List()
	if err != nil {
		http.Error(w, "Failed to list samples", http.StatusInternalServerError)
		return
	}

	counts, err := h.store.Samples().CountByLabel()
	if err != nil {
		http.Error(w, "Failed to count samples", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(samples))
	for _, s := range samples {
		out = append(out, map[string]interface{}{
			"id":         s.ID,
			"label":      s.Label,
			"features":   s.Features,
			"created_at": s.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"samples": out,
		"counts":  counts,
	})
}

type createSampleRequest struct {
	Label    string         `json:"label"`
	Features feature.Record `json:"features,omitempty"`
	// Count asks the server to record that many live frames and store their
	// average instead of taking features from the request body.
	Count int `json:"count,omitempty"`
}

// handleCreate stores a sample, either directly from the request body or by
// recording live frames from the running session.
func (h *SamplesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Label == "" {
		http.Error(w, "Label is required", http.StatusBadRequest)
		return
	}

	var rec feature.Record
	if req.Count > 0 {
		avg, err := h.recordLive(r, req.Label, req.Count)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		rec = avg
	} else {
		rec = req.Features
	}

	sample, err := h.store.Samples().Create(req.Label, rec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       sample.ID,
		"label":    sample.Label,
		"features": sample.Features,
	})
}

// recordLive collects count frames with a visible hand from the running
// session and returns their field-wise average.
func (h *SamplesHandler) recordLive(r *http.Request, label string, count int) (feature.Record, error) {
	if h.controller == nil {
		return nil, errors.New("live recording is not available")
	}
	if h.controller.State() != session.StateRunning {
		return nil, errors.New("session is not running")
	}

	// The listener runs on the pipeline goroutine; hand the features over a
	// channel so the recorder stays owned by this request.
	recCh := make(chan feature.Record, 16)
	remove := h.controller.AddFrameListener(func(f session.Frame) {
		if len(f.Hands) == 0 {
			return
		}
		select {
		case recCh <- f.Features:
		default:
		}
	})
	defer remove()

	recorder := feature.NewRecorder(label, count)
	timeout := time.After(recordTimeout)

	for {
		select {
		case rec := <-recCh:
			if recorder.Add(rec) {
				return recorder.Average()
			}
		case <-timeout:
			return nil, errors.New("recording timed out waiting for hand frames")
		case <-r.Context().Done():
			return nil, errors.New("recording cancelled")
		}
	}
}

// handleExport streams all samples as CSV in the training dataset format.
func (h *SamplesHandler) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="samples.csv"`)

	if err := h.store.Samples().ExportCSV(w); err != nil {
		http.Error(w, "Failed to export samples", http.StatusInternalServerError)
	}
}

// handleDelete removes a sample by ID.
func (h *SamplesHandler) handleDelete(w http.ResponseWriter, _ *http.Request, id string) {
	if err := h.store.Samples().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Sample not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete sample", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}
