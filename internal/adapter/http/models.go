package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/couchcryptid/marine-data-engine/internal/grid"
)

// Defaults applied to model requests that leave a field out.
const (
	defaultMaxRecords     = 3000
	defaultTestSize       = 0.2
	defaultGridResolution = 0.5
)

var defaultBBox = []float64{60, -20, 100, 20}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.deps.Models.ListModels(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if models == nil {
		models = []domain.ModelMetadata{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": models,
		"empty":  len(models) == 0,
	})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req domain.TrainRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.MaxRecords == 0 {
		req.MaxRecords = defaultMaxRecords
	}
	if req.TestSize == 0 {
		req.TestSize = defaultTestSize
	}

	if err := s.deps.Models.TrainModel(r.Context(), req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("model training requested", "species", strings.Join(req.Species, ", "))
	writeJSON(w, http.StatusAccepted, map[string]any{"species": req.Species})
}

type predictRequest struct {
	ScientificName string   `json:"scientific_name"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		s.writeError(w, r, badRequest("latitude and longitude are required"))
		return
	}

	pred, err := s.deps.Models.PredictPoint(r.Context(), req.ScientificName, *req.Latitude, *req.Longitude)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) handlePredictGrid(w http.ResponseWriter, r *http.Request) {
	var req domain.GridRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.BBox) == 0 {
		req.BBox = defaultBBox
	}
	if req.Resolution == 0 {
		req.Resolution = defaultGridResolution
	}

	res, err := s.deps.Models.PredictGrid(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view := grid.Render(res)
	s.lastGrid.Store(&view)
	s.logger.Info("grid prediction rendered",
		"species", view.ScientificName,
		"cells", view.Summary.TotalCells,
		"hotspots", len(view.Centroids),
	)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRemoveModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.deps.Models.RemoveModel(r.Context(), name); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": name})
}

// handleHotspotExport serves the hotspot centroids of the last grid
// prediction as CSV, or 204 when there are none.
func (s *Server) handleHotspotExport(w http.ResponseWriter, r *http.Request) {
	view := s.lastGrid.Load()
	if view == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	data, err := grid.ToCSV(view.Centroids)
	if errors.Is(err, grid.ErrEmptyResult) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.logger.Error("hotspot export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", grid.ExportFilename(view.ScientificName)))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client may have gone away
}
