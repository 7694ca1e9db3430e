package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "mudra-server-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	st, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return st
}

func sampleFeatures(t *testing.T) feature.Record {
	t.Helper()
	h := detector.OpenPalmLandmarks("Right")
	return feature.Extract(nil, h.Points[:])
}

func postSample(t *testing.T, s *Server, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/samples", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestSamplesHandler_Create(t *testing.T) {
	st := newTestStore(t)
	s := New(Config{Store: st})

	t.Run("creates from direct features", func(t *testing.T) {
		rec := postSample(t, s, map[string]any{
			"label":    "namaste",
			"features": sampleFeatures(t),
		})

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["id"] == "" {
			t.Error("expected a generated id")
		}
		if response["label"] != "namaste" {
			t.Errorf("expected label namaste, got %v", response["label"])
		}
	})

	t.Run("rejects a missing label", func(t *testing.T) {
		rec := postSample(t, s, map[string]any{"features": sampleFeatures(t)})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects incomplete features", func(t *testing.T) {
		incomplete := sampleFeatures(t)
		delete(incomplete, feature.FieldThumbLeft)

		rec := postSample(t, s, map[string]any{
			"label":    "namaste",
			"features": incomplete,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/samples", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("recording without a controller conflicts", func(t *testing.T) {
		rec := postSample(t, s, map[string]any{"label": "namaste", "count": 5})
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})
}

func TestSamplesHandler_ListAndDelete(t *testing.T) {
	st := newTestStore(t)
	s := New(Config{Store: st})

	created, err := st.Samples().Create("namaste", sampleFeatures(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := st.Samples().Create("vanakkam", sampleFeatures(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("lists samples with counts", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/samples", nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var response struct {
			Samples []map[string]interface{} `json:"samples"`
			Counts  map[string]int           `json:"counts"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(response.Samples) != 2 {
			t.Errorf("expected 2 samples, got %d", len(response.Samples))
		}
		if response.Counts["namaste"] != 1 || response.Counts["vanakkam"] != 1 {
			t.Errorf("unexpected counts: %v", response.Counts)
		}
	})

	t.Run("deletes a sample", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/samples/"+created.ID, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		req = httptest.NewRequest(http.MethodDelete, "/api/samples/"+created.ID, nil)
		rec = httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 for a repeat delete, got %d", rec.Code)
		}
	})
}

func TestSamplesHandler_LiveRecording(t *testing.T) {
	st := newTestStore(t)

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks("Right")})
	c := newRecordingController(det)
	defer c.Stop()

	s := New(Config{Store: st, Controller: c})

	t.Run("rejected while the session is idle", func(t *testing.T) {
		rec := postSample(t, s, map[string]any{"label": "namaste", "count": 2})
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("averages live frames into a sample", func(t *testing.T) {
		if err := c.Start(); err != nil {
			t.Fatalf("unexpected start error: %v", err)
		}
		waitControllerState(t, c, session.StateRunning)

		rec := postSample(t, s, map[string]any{"label": "namaste", "count": 2})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		samples, err := st.Samples().List()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(samples) != 1 {
			t.Fatalf("expected 1 stored sample, got %d", len(samples))
		}
		if samples[0].Label != "namaste" {
			t.Errorf("expected label namaste, got %s", samples[0].Label)
		}
		if !feature.Validate(samples[0].Features) {
			t.Error("expected a complete averaged record")
		}
	})
}

func TestSamplesHandler_Export(t *testing.T) {
	st := newTestStore(t)
	s := New(Config{Store: st})

	if _, err := st.Samples().Create("namaste", sampleFeatures(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/samples/export", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %s", ct)
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("export is not valid CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected header plus 1 row, got %d", len(rows))
	}
	if rows[1][0] != "namaste" {
		t.Errorf("expected label in the first column, got %s", rows[1][0])
	}
}
