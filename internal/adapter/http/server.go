// Package http serves the engine's JSON API next to the health, readiness and
// metrics endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/couchcryptid/marine-data-engine/internal/filter"
	"github.com/couchcryptid/marine-data-engine/internal/grid"
	"github.com/couchcryptid/marine-data-engine/internal/pipeline"
	"github.com/couchcryptid/marine-data-engine/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotReader returns the snapshot currently served.
type SnapshotReader interface {
	Current() *store.Snapshot
}

// Refresher runs a refresh for a plan.
type Refresher interface {
	Refresh(ctx context.Context, plan pipeline.Plan) (*pipeline.Result, error)
}

// Deps are the collaborators behind the API routes.
type Deps struct {
	Snapshots SnapshotReader
	Refresher Refresher
	Models    domain.ModelRegistry
	// Plan is refreshed when POST /api/refresh carries no body.
	Plan          pipeline.Plan
	MissingPolicy filter.MissingPolicy
}

// Server exposes the API plus health, readiness, and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	deps       Deps

	// lastGrid is the most recent rendered grid prediction, the source of
	// the hotspot export.
	lastGrid atomic.Pointer[grid.View]
}

// NewServer creates an HTTP server with the API, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// Refreshes and model training run inside the request.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		deps:   deps,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/ingest", s.handleIngest)

	mux.HandleFunc("GET /api/records", s.handleRecords)
	mux.HandleFunc("GET /api/facets/{field}", s.handleFacets)
	mux.HandleFunc("GET /api/kpis", s.handleKPIs)
	mux.HandleFunc("GET /api/groups/{by}", s.handleGroups)
	mux.HandleFunc("GET /api/series/species", s.handleSpeciesSeries)
	mux.HandleFunc("GET /api/series/production", s.handleProductionSeries)
	mux.HandleFunc("GET /api/series/parameters", s.handleParameterSeries)
	mux.HandleFunc("GET /api/stats/parameters", s.handleParameterStats)
	mux.HandleFunc("GET /api/histogram/depth", s.handleDepthHistogram)

	mux.HandleFunc("GET /api/models", s.handleListModels)
	mux.HandleFunc("POST /api/models/train", s.handleTrain)
	mux.HandleFunc("POST /api/models/predict", s.handlePredict)
	mux.HandleFunc("POST /api/models/predict-grid", s.handlePredictGrid)
	mux.HandleFunc("DELETE /api/models/{name}", s.handleRemoveModel)
	mux.HandleFunc("GET /api/models/hotspots.csv", s.handleHotspotExport)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
