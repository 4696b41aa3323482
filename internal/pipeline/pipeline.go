// Package pipeline runs snapshot refreshes: sequential provider ingestion,
// a bulk read of stored raw records, normalization, and a liveness-checked
// snapshot commit followed by publication to the configured sinks.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/couchcryptid/marine-data-engine/internal/observability"
	"github.com/couchcryptid/marine-data-engine/internal/store"
)

// Ingester asks the ingestion server to fetch and store one provider's
// records, returning how many it stored.
type Ingester interface {
	Ingest(ctx context.Context, cfg domain.ProviderConfig) (int, error)
}

// RecordSource returns every raw record the ingestion server holds.
type RecordSource interface {
	FetchAll(ctx context.Context) ([]json.RawMessage, error)
}

// ClimateSource produces sensor readings read locally rather than through the
// ingestion server.
type ClimateSource interface {
	Name() string
	Readings(ctx context.Context) ([]domain.Record, error)
}

// SnapshotLoader publishes a committed snapshot to a downstream sink.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, snap *store.Snapshot) error
}

// ProviderStatus is the outcome of one provider within a refresh.
type ProviderStatus struct {
	Provider string `json:"provider"`
	OK       bool   `json:"ok"`
	Message  string `json:"message"`
}

// Result summarizes a refresh.
type Result struct {
	Providers []ProviderStatus `json:"providers"`
	Skipped   int              `json:"skipped"`
	Snapshot  *store.Snapshot  `json:"-"`
}

const (
	defaultBackoff    = 200 * time.Millisecond
	defaultMaxBackoff = 5 * time.Second
)

// Pipeline orchestrates refreshes against a snapshot store.
type Pipeline struct {
	ingester   Ingester
	source     RecordSource
	store      *store.Store
	climate    []ClimateSource
	loaders    []SnapshotLoader
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
	retries    int
	backoff    time.Duration
	maxBackoff time.Duration
}

// Option configures optional Pipeline behavior.
type Option func(*Pipeline)

// WithClimateSources appends locally read sensor readings to every refresh.
func WithClimateSources(sources ...ClimateSource) Option {
	return func(p *Pipeline) { p.climate = append(p.climate, sources...) }
}

// WithLoaders publishes every committed snapshot to the given sinks.
func WithLoaders(loaders ...SnapshotLoader) Option {
	return func(p *Pipeline) { p.loaders = append(p.loaders, loaders...) }
}

// WithFetchRetries sets how many times a failed bulk read is retried.
func WithFetchRetries(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.retries = n
		}
	}
}

// WithBackoff sets the initial and maximum delay between bulk read retries.
func WithBackoff(initial, maxBackoff time.Duration) Option {
	return func(p *Pipeline) {
		p.backoff = initial
		p.maxBackoff = maxBackoff
	}
}

// New creates a Pipeline with the given boundaries and observability.
func New(ing Ingester, src RecordSource, st *store.Store, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		ingester:   ing,
		source:     src,
		store:      st,
		logger:     logger,
		metrics:    metrics,
		retries:    3,
		backoff:    defaultBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a snapshot has been committed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no snapshot has been committed yet")
	}
	return nil
}

// Refresh ingests every provider in plan in order, then re-reads all stored
// records, normalizes them and installs the result as the new snapshot.
//
// A failing provider is reported in the result and never stops the others.
// A failed bulk read leaves the current snapshot in place and returns an
// error. If a refresh that started later has already committed, the records
// are discarded and store.ErrStaleRefresh is returned.
func (p *Pipeline) Refresh(ctx context.Context, plan Plan) (*Result, error) {
	start := time.Now()
	ticket := p.store.Begin()
	res := &Result{Providers: make([]ProviderStatus, 0, len(plan))}

	for _, cfg := range plan {
		if err := ctx.Err(); err != nil {
			p.metrics.Refreshes.WithLabelValues("failed").Inc()
			return res, err
		}
		res.Providers = append(res.Providers, p.ingest(ctx, cfg))
	}

	raw, err := p.fetchAll(ctx)
	if err != nil {
		p.metrics.Refreshes.WithLabelValues("failed").Inc()
		return res, fmt.Errorf("fetch records: %w", err)
	}

	records := make([]domain.Record, 0, len(raw))
	for i, item := range raw {
		recs, err := domain.NormalizeItem("", item)
		if err != nil {
			p.logger.Warn("normalization failed, skipping item", "index", i, "error", err)
			p.metrics.NormalizationErrors.Inc()
			res.Skipped++
			continue
		}
		records = append(records, recs...)
	}

	for _, src := range p.climate {
		res.Providers = append(res.Providers, p.readClimate(ctx, src, &records))
	}
	p.metrics.RecordsNormalized.Add(float64(len(records)))

	snap, err := p.store.Commit(ticket, records)
	if err != nil {
		if errors.Is(err, store.ErrStaleRefresh) {
			p.logger.Info("refresh superseded, discarding records", "generation", ticket.Generation())
			p.metrics.Refreshes.WithLabelValues("stale").Inc()
		} else {
			p.metrics.Refreshes.WithLabelValues("failed").Inc()
		}
		return res, err
	}

	res.Snapshot = snap
	p.ready.Store(true)
	p.metrics.Refreshes.WithLabelValues("committed").Inc()
	p.metrics.SnapshotRecords.Set(float64(len(snap.Records)))
	p.metrics.SnapshotGeneration.Set(float64(snap.Generation))
	p.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("snapshot committed",
		"snapshot_id", snap.ID,
		"generation", snap.Generation,
		"records", len(snap.Records),
		"skipped", res.Skipped,
	)

	p.publish(ctx, snap)
	return res, nil
}

func (p *Pipeline) ingest(ctx context.Context, cfg domain.ProviderConfig) ProviderStatus {
	n, err := p.ingester.Ingest(ctx, cfg)
	if err != nil {
		p.logger.Warn("provider ingest failed", "provider", cfg.Provider, "error", err)
		p.metrics.ProviderIngests.WithLabelValues(cfg.Provider, "error").Inc()
		return ProviderStatus{Provider: cfg.Provider, Message: err.Error()}
	}
	p.metrics.ProviderIngests.WithLabelValues(cfg.Provider, "success").Inc()
	return ProviderStatus{Provider: cfg.Provider, OK: true, Message: fmt.Sprintf("ingested %d records", n)}
}

func (p *Pipeline) readClimate(ctx context.Context, src ClimateSource, records *[]domain.Record) ProviderStatus {
	recs, err := src.Readings(ctx)
	if err != nil {
		p.logger.Warn("climate read failed", "source", src.Name(), "error", err)
		p.metrics.ProviderIngests.WithLabelValues("climate", "error").Inc()
		return ProviderStatus{Provider: src.Name(), Message: err.Error()}
	}
	*records = append(*records, recs...)
	p.metrics.ProviderIngests.WithLabelValues("climate", "success").Inc()
	return ProviderStatus{Provider: src.Name(), OK: true, Message: fmt.Sprintf("read %d records", len(recs))}
}

// fetchAll performs the bulk read, retrying with exponential backoff.
func (p *Pipeline) fetchAll(ctx context.Context) ([]json.RawMessage, error) {
	backoff := p.backoff
	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			if !sleepWithContext(ctx, backoff) {
				return nil, ctx.Err()
			}
			backoff = nextBackoff(backoff, p.maxBackoff)
		}
		raw, err := p.source.FetchAll(ctx)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		p.logger.Error("bulk read failed", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// publish hands the snapshot to every sink. Sink failures are logged; the
// snapshot is already installed.
func (p *Pipeline) publish(ctx context.Context, snap *store.Snapshot) {
	for _, l := range p.loaders {
		if err := l.LoadSnapshot(ctx, snap); err != nil {
			p.logger.Error("snapshot publish failed", "snapshot_id", snap.ID, "error", err)
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
