package sdm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/couchcryptid/marine-data-engine/internal/observability"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set(headerContentType, contentTypeJSON)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func f64(v float64) *float64 { return &v }

func TestClient_ListModels_MergesAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			writeJSON(t, w, modelsResponse{Models: []domain.ModelMetadata{
				{ScientificName: "Thunnus albacares", AUCTest: f64(0.91), NPresence: 812, TrainedAt: "2025-02-01T10:00:00"},
			}})
		case "/list_models":
			writeJSON(t, w, modelsResponse{Models: []domain.ModelMetadata{
				{ScientificName: "Thunnus albacares", NPresence: 1, TrainedAt: "2024-01-01T00:00:00"},
				{ScientificName: "Sardinella longiceps", NPresence: 301, TrainedAt: "2025-03-15T08:30:00"},
				{ScientificName: "Rastrelliger kanagurta", NPresence: 250, TrainedAt: "2024-12-31T23:59:59"},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	models, err := testClient(srv.URL).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 3)

	assert.Equal(t, "Sardinella longiceps", models[0].ScientificName)
	assert.Equal(t, "Thunnus albacares", models[1].ScientificName)
	assert.Equal(t, 812, models[1].NPresence, "status entry wins over disk entry")
	assert.Equal(t, "Rastrelliger kanagurta", models[2].ScientificName)
}

func TestClient_ListModels_OneEndpointDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, modelsResponse{Models: []domain.ModelMetadata{{ScientificName: "Thunnus albacares"}}})
	}))
	defer srv.Close()

	models, err := testClient(srv.URL).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
}

func TestClient_ListModels_BothDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.ListModels(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.ModelRequests.WithLabelValues("status", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.ModelRequests.WithLabelValues("list_models", "error")))
}

func TestClient_TrainModel(t *testing.T) {
	var got domain.TrainRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/train_batch", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	req := domain.TrainRequest{Species: []string{"Thunnus albacares"}, MaxRecords: 3000, TestSize: 0.2}
	require.NoError(t, testClient(srv.URL).TrainModel(context.Background(), req))
	assert.Equal(t, req, got)
}

func TestClient_TrainModel_Validation(t *testing.T) {
	tests := map[string]domain.TrainRequest{
		"no species":        {MaxRecords: 3000, TestSize: 0.2},
		"blank species":     {Species: []string{""}, MaxRecords: 3000, TestSize: 0.2},
		"too few records":   {Species: []string{"a"}, MaxRecords: 199, TestSize: 0.2},
		"too many records":  {Species: []string{"a"}, MaxRecords: 50001, TestSize: 0.2},
		"test size too low": {Species: []string{"a"}, MaxRecords: 3000, TestSize: 0.01},
		"test size too big": {Species: []string{"a"}, MaxRecords: 3000, TestSize: 0.6},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
				t.Error("invalid request reached the service")
			}))
			defer srv.Close()

			err := testClient(srv.URL).TrainModel(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestClient_PredictPoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		var body pointRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Thunnus albacares", body.ScientificName)

		writeJSON(t, w, domain.PointPrediction{
			ScientificName: body.ScientificName,
			Probability:    0.734,
			Interpretation: "likely present",
			Query:          domain.PointQuery{Lat: body.Lat, Lon: body.Lon},
		})
	}))
	defer srv.Close()

	pred, err := testClient(srv.URL).PredictPoint(context.Background(), " Thunnus albacares ", 10, 72)
	require.NoError(t, err)
	assert.Equal(t, 0.734, pred.Probability)
	assert.Equal(t, "likely present", pred.Interpretation)
	assert.Equal(t, domain.PointQuery{Lat: 10, Lon: 72}, pred.Query)
}

func TestClient_PredictPoint_Validation(t *testing.T) {
	c := testClient("http://127.0.0.1:1")

	_, err := c.PredictPoint(context.Background(), "", 10, 72)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = c.PredictPoint(context.Background(), "Thunnus albacares", 91, 72)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = c.PredictPoint(context.Background(), "Thunnus albacares", 10, -181)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestClient_PredictGrid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict_grid", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{60.0, -20.0, 100.0, 20.0}, body["bbox"])
		assert.Equal(t, 0.5, body["grid_resolution"])

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{
			"summary": {"average_probability": 0.4, "hotspots_cells": 1, "total_cells": 1},
			"geojson": {"type": "FeatureCollection", "features": [
				{"type": "Feature", "properties": {"prob": 0.81},
				 "geometry": {"type": "Polygon", "coordinates": [[[60,-20],[60.5,-20],[60.5,-19.5],[60,-19.5],[60,-20]]]}}
			]},
			"hotspot_centroids": [{"lat": -19.75, "lon": 60.25, "prob": 0.81}],
			"prob_breaks": {"bin_edges": [0, 0.2, 0.4, 0.6, 0.8, 1]}
		}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).PredictGrid(context.Background(), domain.GridRequest{
		ScientificName: "Thunnus albacares",
		BBox:           []float64{60, -20, 100, 20},
		Resolution:     0.5,
	})
	require.NoError(t, err)

	assert.Equal(t, "Thunnus albacares", res.ScientificName, "filled from request when omitted")
	require.NotNil(t, res.GeoJSON)
	assert.Len(t, res.GeoJSON.Features, 1)
	assert.Equal(t, 1, res.Summary.TotalCells)
	assert.Equal(t, []domain.Centroid{{Lat: -19.75, Lon: 60.25, Prob: 0.81}}, res.HotspotCentroids)
	assert.Len(t, res.ProbBreaks.BinEdges, 6)
}

func TestClient_RemoveModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/remove_model", r.URL.Path)
		var body removeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.ScientificName != "Thunnus albacares" {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(t, w, map[string]string{"detail": "Model not found"})
			return
		}
		writeJSON(t, w, map[string]string{"status": "removed"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	require.NoError(t, c.RemoveModel(context.Background(), "Thunnus albacares"))

	err := c.RemoveModel(context.Background(), "Nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404: Model not found")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 20 * time.Millisecond

	err := c.RemoveModel(context.Background(), "Thunnus albacares")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remove_model request")
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "Model not found", detail([]byte(`{"detail":"Model not found"}`)))
	assert.Equal(t, `[{"msg":"field required"}]`, detail([]byte(`{"detail":[{"msg":"field required"}]}`)))
	assert.Equal(t, "Internal Server Error", detail([]byte("Internal Server Error\n")))
}
