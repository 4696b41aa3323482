// Package sdm is the HTTP client for the species distribution model service.
package sdm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/couchcryptid/marine-data-engine/internal/observability"
	"github.com/go-playground/validator/v10"
)

// Client implements domain.ModelRegistry over the model service's HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a model service client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  strings.TrimRight(baseURL, "/"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  metrics,
		logger:   logger,
	}
}

// ListModels merges the models the service reports as loaded (/status) with
// those it has on disk (/list_models). A model present in both is listed once
// with its /status entry. The result is sorted by training time, newest first.
// The call fails only when both endpoints fail.
func (c *Client) ListModels(ctx context.Context) ([]domain.ModelMetadata, error) {
	var loaded, onDisk modelsResponse
	statusErr := c.doJSON(ctx, "status", http.MethodGet, "/status", nil, &loaded)
	listErr := c.doJSON(ctx, "list_models", http.MethodGet, "/list_models", nil, &onDisk)

	if statusErr != nil && listErr != nil {
		return nil, errors.Join(statusErr, listErr)
	}
	if statusErr != nil {
		c.logger.Warn("model status unavailable, using disk listing", "error", statusErr)
	}
	if listErr != nil {
		c.logger.Warn("model listing unavailable, using status", "error", listErr)
	}

	return mergeModels(loaded.Models, onDisk.Models), nil
}

// TrainModel trains one model per requested species.
func (c *Client) TrainModel(ctx context.Context, req domain.TrainRequest) error {
	if err := c.check(req); err != nil {
		return err
	}
	return c.doJSON(ctx, "train", http.MethodPost, "/train_batch", req, nil)
}

// PredictPoint returns the presence probability at one location.
func (c *Client) PredictPoint(ctx context.Context, scientificName string, lat, lon float64) (domain.PointPrediction, error) {
	req := pointRequest{ScientificName: strings.TrimSpace(scientificName), Lat: lat, Lon: lon}
	if err := c.check(req); err != nil {
		return domain.PointPrediction{}, err
	}

	var out domain.PointPrediction
	if err := c.doJSON(ctx, "predict", http.MethodPost, "/predict", req, &out); err != nil {
		return domain.PointPrediction{}, err
	}
	return out, nil
}

// PredictGrid returns a gridded prediction. The bounding box and resolution
// are forwarded as given.
func (c *Client) PredictGrid(ctx context.Context, req domain.GridRequest) (domain.GridPrediction, error) {
	req.ScientificName = strings.TrimSpace(req.ScientificName)
	if err := c.check(req); err != nil {
		return domain.GridPrediction{}, err
	}

	var out domain.GridPrediction
	if err := c.doJSON(ctx, "predict_grid", http.MethodPost, "/predict_grid", req, &out); err != nil {
		return domain.GridPrediction{}, err
	}
	if out.ScientificName == "" {
		out.ScientificName = req.ScientificName
	}
	return out, nil
}

// RemoveModel deletes a trained model.
func (c *Client) RemoveModel(ctx context.Context, scientificName string) error {
	req := removeRequest{ScientificName: strings.TrimSpace(scientificName)}
	if err := c.check(req); err != nil {
		return err
	}
	return c.doJSON(ctx, "remove_model", http.MethodPost, "/remove_model", req, nil)
}

func (c *Client) check(v any) error {
	if err := c.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// doJSON sends body as JSON (when non-nil) and decodes the response into out
// (when non-nil).
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	start := time.Now()
	err := c.do(ctx, op, method, path, body, out)
	c.metrics.ModelAPIDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ModelRequests.WithLabelValues(op, outcome).Inc()
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("model service %s: status %d: %s", op, resp.StatusCode, detail(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func mergeModels(loaded, onDisk []domain.ModelMetadata) []domain.ModelMetadata {
	out := make([]domain.ModelMetadata, 0, len(loaded)+len(onDisk))
	seen := make(map[string]bool, len(loaded)+len(onDisk))
	for _, group := range [][]domain.ModelMetadata{loaded, onDisk} {
		for _, m := range group {
			if seen[m.ScientificName] {
				continue
			}
			seen[m.ScientificName] = true
			out = append(out, m)
		}
	}
	// Timestamps are ISO-8601 text, so lexical order is chronological.
	sort.SliceStable(out, func(i, j int) bool { return out[i].TrainedAt > out[j].TrainedAt })
	return out
}

// detail extracts the human-readable reason from an error body, preferring
// the service's {"detail": "..."} field.
func detail(body []byte) string {
	var e struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil && e.Detail != nil {
		if s, ok := e.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(e.Detail); err == nil {
			return string(b)
		}
	}
	return strings.TrimSpace(string(body))
}

// Model service request and response types.

type modelsResponse struct {
	Models []domain.ModelMetadata `json:"models"`
}

type pointRequest struct {
	ScientificName string  `json:"scientific_name" validate:"required"`
	Lat            float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Lon            float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type removeRequest struct {
	ScientificName string `json:"scientific_name" validate:"required"`
}
