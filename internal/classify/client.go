// Package classify provides the client for the remote sign prediction service.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/feature"
)

// DefaultTimeout bounds a single prediction round trip.
const DefaultTimeout = 5 * time.Second

// Prediction is one labeled confidence from the model's output distribution.
type Prediction struct {
	Sign       string  `json:"sign"`
	Confidence float64 `json:"confidence"`
}

// Result is the prediction service's response for one feature record.
type Result struct {
	PredictedSign  string       `json:"predicted_sign"`
	Confidence     float64      `json:"confidence"`
	AllPredictions []Prediction `json:"all_predictions"`
}

// Classifier maps a feature record to a predicted sign.
type Classifier interface {
	Predict(ctx context.Context, rec feature.Record) (*Result, error)
}

// Client talks to the prediction HTTP service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the service at baseURL (no trailing slash
// required).
func New(baseURL string) *Client {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// BaseURL returns the configured service URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Predict sends a feature record to POST /api/predict and returns the
// decoded result. The response is checked for shape: a missing sign or an
// out-of-range confidence is reported as a malformed response rather than
// passed through.
func (c *Client) Predict(ctx context.Context, rec feature.Record) (*Result, error) {
	body, err := json.Marshal(map[string]feature.Record{"features": rec})
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prediction service returned %s: %s", resp.Status, readErrorBody(resp.Body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("malformed prediction response: %w", err)
	}
	if result.PredictedSign == "" || result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("malformed prediction response: sign=%q confidence=%f", result.PredictedSign, result.Confidence)
	}

	return &result, nil
}

// Labels fetches the label set from GET /api/labels.
func (c *Client) Labels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/labels", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("labels network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("labels endpoint returned %s", resp.Status)
	}

	var payload struct {
		Labels []string `json:"labels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed labels response: %w", err)
	}

	return payload.Labels, nil
}

// Healthy reports whether the service's health endpoint answers with a loaded
// model.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// readErrorBody extracts the service's error field, falling back to the raw
// body truncated to a sane length.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil || len(data) == 0 {
		return "no details"
	}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return string(data)
}
