package http

import (
	"bytes"
	"net/http"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/analytics"
	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/couchcryptid/marine-data-engine/internal/filter"
	"github.com/couchcryptid/marine-data-engine/internal/pipeline"
	"github.com/couchcryptid/marine-data-engine/internal/store"
	"github.com/go-playground/validator/v10"
)

const (
	defaultPageSize   = 500
	maxPageSize       = 5000
	defaultTopSpecies = 10
)

var validate = validator.New()

type refreshResponse struct {
	SnapshotID  string                    `json:"snapshot_id"`
	Generation  uint64                    `json:"generation"`
	Records     int                       `json:"records"`
	RefreshedAt time.Time                 `json:"refreshed_at"`
	Providers   []pipeline.ProviderStatus `json:"providers"`
	Skipped     int                       `json:"skipped"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	plan := s.deps.Plan
	if len(bytes.TrimSpace(body)) > 0 {
		// JSON bodies parse as YAML, so both plan formats are accepted.
		plan, err = pipeline.ParsePlan(body)
		if err != nil {
			s.writeError(w, r, badRequest("%v", err))
			return
		}
	}
	s.refresh(w, r, plan)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var cfg domain.ProviderConfig
	if err := decodeJSON(r, &cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validate.Struct(cfg); err != nil {
		s.writeError(w, r, badRequest("%v", err))
		return
	}
	if cfg.Payload == nil {
		cfg.Payload = map[string]any{}
	}
	s.refresh(w, r, pipeline.Plan{cfg})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request, plan pipeline.Plan) {
	res, err := s.deps.Refresher.Refresh(r.Context(), plan)
	if err != nil {
		s.logger.Warn("refresh failed", "error", err)
		body := map[string]any{"error": err.Error()}
		if res != nil {
			body["providers"] = res.Providers
		}
		writeJSON(w, statusFor(err), body)
		return
	}

	snap := res.Snapshot
	writeJSON(w, http.StatusOK, refreshResponse{
		SnapshotID:  snap.ID.String(),
		Generation:  snap.Generation,
		Records:     len(snap.Records),
		RefreshedAt: snap.RefreshedAt,
		Providers:   res.Providers,
		Skipped:     res.Skipped,
	})
}

// selection is the filtered view of the current snapshot for one request.
type selection struct {
	snap    *store.Snapshot
	records []domain.Record
}

func (s *Server) selectRecords(r *http.Request) (selection, error) {
	preds, err := predicatesFrom(r.URL.Query(), s.deps.MissingPolicy)
	if err != nil {
		return selection{}, err
	}
	snap := s.deps.Snapshots.Current()
	return selection{snap: snap, records: filter.Apply(snap.Records, preds...)}, nil
}

type recordsResponse struct {
	SnapshotID string          `json:"snapshot_id"`
	Generation uint64          `json:"generation"`
	Total      int             `json:"total"`
	Offset     int             `json:"offset"`
	Records    []domain.Record `json:"records"`
	Empty      bool            `json:"empty"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selectRecords(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	limit, err := intParam(q, "limit", defaultPageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := intParam(q, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit = min(limit, maxPageSize)

	total := len(sel.records)
	start := min(offset, total)
	end := start + min(limit, total-start)
	page := make([]domain.Record, end-start)
	copy(page, sel.records[start:end])

	writeJSON(w, http.StatusOK, recordsResponse{
		SnapshotID: sel.snap.ID.String(),
		Generation: sel.snap.Generation,
		Total:      total,
		Offset:     start,
		Records:    page,
		Empty:      total == 0,
	})
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selectRecords(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	field := r.PathValue("field")
	values := filter.Values(sel.records, field)
	writeJSON(w, http.StatusOK, map[string]any{
		"field":  field,
		"values": values,
		"empty":  len(values) == 0,
	})
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selectRecords(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		analytics.KPIs
		Empty bool `json:"empty"`
	}{analytics.ComputeKPIs(sel.records), len(sel.records) == 0})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	by := r.PathValue("by")
	var group func([]domain.Record) []analytics.Count
	switch by {
	case "source":
		group = analytics.CountBySource
	case "provider":
		group = analytics.CountByProvider
	case "species":
		group = analytics.CountBySpecies
	default:
		s.writeError(w, r, badRequest("cannot group by %q", by))
		return
	}

	sel, err := s.selectRecords(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	top, err := intParam(r.URL.Query(), "top", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	counts := group(sel.records)
	if top > 0 {
		counts = analytics.TopN(counts, top)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"by":     by,
		"groups": counts,
		"empty":  len(counts) == 0,
	})
}

func (s *Server) handleSpeciesSeries(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selectRecords(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	top, err := intParam(r.URL.Query(), "top", defaultTopSpecies)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	species, rows := analytics.TopSpeciesSeries(sel.records, top)
	writeJSON(w, http.StatusOK, map[string]any{
		"species": species,
		"rows":    rows,
		"empty":   len(rows) == 0,
	})
}

func (s *Server) handleProductionSeries(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selectRecords(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	points := analytics.ProductionSeries(sel.records)
	writeJSON(w, http.StatusOK, map[string]any{
		"points": points,
		"empty":  len(points) == 0,
	})
}

func (s *Server) handleParameterSeries(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selectRecords(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows := analytics.ParameterSeries(sel.records)
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":  rows,
		"empty": len(rows) == 0,
	})
}

func (s *Server) handleParameterStats(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selectRecords(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stats := analytics.ParameterStats(sel.records)
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": stats,
		"empty": len(stats) == 0,
	})
}

func (s *Server) handleDepthHistogram(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selectRecords(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	width, err := floatParam(r.URL.Query(), "width")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	binWidth := analytics.DefaultDepthBinWidth
	if width != nil {
		if *width <= 0 {
			s.writeError(w, r, badRequest("width must be positive"))
			return
		}
		binWidth = *width
	}

	bins := analytics.DepthHistogram(sel.records, binWidth)
	writeJSON(w, http.StatusOK, map[string]any{
		"width": binWidth,
		"bins":  bins,
		"empty": len(bins) == 0,
	})
}
