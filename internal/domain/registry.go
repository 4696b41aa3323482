package domain

import (
	"context"
	"errors"

	"github.com/paulmach/orb/geojson"
)

// ErrInvalidRequest is returned by a ModelRegistry when a request fails
// validation before it is sent.
var ErrInvalidRequest = errors.New("invalid model request")

// ModelMetadata describes a trained species distribution model.
type ModelMetadata struct {
	ScientificName string   `json:"scientific_name"`
	AUCTest        *float64 `json:"auc_test,omitempty"`
	NPresence      int      `json:"n_presence"`
	TrainedAt      string   `json:"trained_at"`
}

// TrainRequest asks the model service to (re)train models for species.
type TrainRequest struct {
	Species     []string `json:"species" validate:"min=1,dive,required"`
	MaxRecords  int      `json:"max_records" validate:"gte=200,lte=50000"`
	TestSize    float64  `json:"test_size" validate:"gte=0.05,lte=0.5"`
	RandomState int      `json:"random_state"`
}

// PointQuery echoes the coordinates of a point prediction.
type PointQuery struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// PointPrediction is the model's answer for a single location.
type PointPrediction struct {
	ScientificName string     `json:"scientific_name"`
	Probability    float64    `json:"probability"`
	Interpretation string     `json:"interpretation"`
	Query          PointQuery `json:"query"`
}

// GridRequest asks for a gridded prediction. BBox and Resolution are passed
// through to the model service untouched.
type GridRequest struct {
	ScientificName string    `json:"scientific_name" validate:"required"`
	BBox           []float64 `json:"bbox"`
	Resolution     float64   `json:"grid_resolution"`
}

// GridSummary holds aggregate statistics for a grid prediction.
type GridSummary struct {
	AverageProbability float64 `json:"average_probability"`
	HotspotCells       int     `json:"hotspots_cells"`
	TotalCells         int     `json:"total_cells"`
}

// Centroid is a hotspot location with its probability.
type Centroid struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Prob float64 `json:"prob"`
}

// ProbBreaks carries the bin edges and thresholds used to classify cells.
// Nil thresholds fall back to defaults.
type ProbBreaks struct {
	BinEdges          []float64 `json:"bin_edges,omitempty"`
	ColdspotThreshold *float64  `json:"coldspot_threshold,omitempty"`
	HotspotThreshold  *float64  `json:"hotspot_threshold,omitempty"`
}

// GridPrediction is the model service's gridded result.
type GridPrediction struct {
	ScientificName   string                     `json:"scientific_name"`
	Summary          *GridSummary               `json:"summary,omitempty"`
	GeoJSON          *geojson.FeatureCollection `json:"geojson,omitempty"`
	HotspotCentroids []Centroid                 `json:"hotspot_centroids"`
	ProbBreaks       *ProbBreaks                `json:"prob_breaks,omitempty"`
}

// ModelRegistry is the boundary to the external species distribution model
// service. Each call may fail independently.
type ModelRegistry interface {
	ListModels(ctx context.Context) ([]ModelMetadata, error)
	TrainModel(ctx context.Context, req TrainRequest) error
	PredictPoint(ctx context.Context, scientificName string, lat, lon float64) (PointPrediction, error)
	PredictGrid(ctx context.Context, req GridRequest) (GridPrediction, error)
	RemoveModel(ctx context.Context, scientificName string) error
}
