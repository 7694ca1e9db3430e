package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/feature"
)

func testRecord(t *testing.T) feature.Record {
	t.Helper()
	h := detector.OpenPalmLandmarks("Right")
	return feature.Extract(nil, h.Points[:])
}

func TestClient_Predict(t *testing.T) {
	t.Run("decodes a successful prediction", func(t *testing.T) {
		var gotPath string
		var gotBody map[string]feature.Record

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			json.NewDecoder(r.Body).Decode(&gotBody)

			json.NewEncoder(w).Encode(Result{
				PredictedSign: "namaste",
				Confidence:    0.92,
				AllPredictions: []Prediction{
					{Sign: "namaste", Confidence: 0.92},
					{Sign: "vanakkam", Confidence: 0.05},
				},
			})
		}))
		defer srv.Close()

		c := New(srv.URL)
		res, err := c.Predict(context.Background(), testRecord(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if gotPath != "/api/predict" {
			t.Errorf("expected POST to /api/predict, got %s", gotPath)
		}
		if len(gotBody["features"]) != feature.NumFields {
			t.Errorf("expected %d features in the request, got %d", feature.NumFields, len(gotBody["features"]))
		}
		if res.PredictedSign != "namaste" || res.Confidence != 0.92 {
			t.Errorf("unexpected result: %+v", res)
		}
		if len(res.AllPredictions) != 2 {
			t.Errorf("expected 2 predictions, got %d", len(res.AllPredictions))
		}
	})

	t.Run("non-200 surfaces the service error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "model not loaded"})
		}))
		defer srv.Close()

		_, err := New(srv.URL).Predict(context.Background(), testRecord(t))
		if err == nil {
			t.Fatal("expected an error")
		}
		if !strings.Contains(err.Error(), "model not loaded") {
			t.Errorf("expected the service error in the message, got %v", err)
		}
	})

	t.Run("missing sign is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(Result{Confidence: 0.8})
		}))
		defer srv.Close()

		_, err := New(srv.URL).Predict(context.Background(), testRecord(t))
		if err == nil || !strings.Contains(err.Error(), "malformed") {
			t.Errorf("expected a malformed response error, got %v", err)
		}
	})

	t.Run("out-of-range confidence is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(Result{PredictedSign: "namaste", Confidence: 1.7})
		}))
		defer srv.Close()

		_, err := New(srv.URL).Predict(context.Background(), testRecord(t))
		if err == nil || !strings.Contains(err.Error(), "malformed") {
			t.Errorf("expected a malformed response error, got %v", err)
		}
	})

	t.Run("invalid JSON is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		_, err := New(srv.URL).Predict(context.Background(), testRecord(t))
		if err == nil || !strings.Contains(err.Error(), "malformed") {
			t.Errorf("expected a malformed response error, got %v", err)
		}
	})

	t.Run("unreachable service is a network error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // shut down before the request

		_, err := New(srv.URL).Predict(context.Background(), testRecord(t))
		if err == nil || !strings.Contains(err.Error(), "network error") {
			t.Errorf("expected a network error, got %v", err)
		}
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := New(srv.URL).Predict(ctx, testRecord(t)); err == nil {
			t.Error("expected an error from a cancelled context")
		}
	})
}

func TestClient_Labels(t *testing.T) {
	t.Run("returns the label set", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/labels" {
				t.Errorf("expected /api/labels, got %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"labels":      []string{"namaste", "vanakkam", "dhanyavaad"},
				"num_classes": 3,
			})
		}))
		defer srv.Close()

		labels, err := New(srv.URL).Labels(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(labels) != 3 || labels[0] != "namaste" {
			t.Errorf("unexpected labels: %v", labels)
		}
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		if _, err := New(srv.URL).Labels(context.Background()); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestClient_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if !New(srv.URL).Healthy(context.Background()) {
		t.Error("expected healthy")
	}

	srv.Close()
	if New(srv.URL).Healthy(context.Background()) {
		t.Error("expected unhealthy after shutdown")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/")
	if c.BaseURL() != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.BaseURL())
	}
}
