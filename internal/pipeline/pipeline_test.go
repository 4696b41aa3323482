package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/couchcryptid/marine-data-engine/internal/observability"
	"github.com/couchcryptid/marine-data-engine/internal/pipeline"
	"github.com/couchcryptid/marine-data-engine/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockIngester struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	// onIngest runs inside Ingest, after the call is recorded.
	onIngest func(provider string)
}

func (m *mockIngester) Ingest(_ context.Context, cfg domain.ProviderConfig) (int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cfg.Provider)
	m.mu.Unlock()
	if m.onIngest != nil {
		m.onIngest(cfg.Provider)
	}
	if err := m.fail[cfg.Provider]; err != nil {
		return 0, err
	}
	return 2, nil
}

type mockSource struct {
	items    []json.RawMessage
	failures int
	err      error
	calls    int
}

func (m *mockSource) FetchAll(_ context.Context) ([]json.RawMessage, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, m.err
	}
	return m.items, nil
}

type mockClimate struct {
	records []domain.Record
	err     error
}

func (m *mockClimate) Name() string { return "climate/sst_2025" }

func (m *mockClimate) Readings(_ context.Context) ([]domain.Record, error) {
	return m.records, m.err
}

type mockLoader struct {
	loaded []*store.Snapshot
	err    error
}

func (m *mockLoader) LoadSnapshot(_ context.Context, snap *store.Snapshot) error {
	m.loaded = append(m.loaded, snap)
	return m.err
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func newTestStore() *store.Store {
	return store.New(clockwork.NewFakeClockAt(time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)))
}

// --- tests ---

func TestRefresh_HappyPath(t *testing.T) {
	ing := &mockIngester{}
	src := &mockSource{items: []json.RawMessage{noaaItem, obisItem}}
	st := newTestStore()
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ing, src, st, slog.Default(), metrics, pipeline.WithLoaders(ldr))
	require.Error(t, p.CheckReadiness(context.Background()))

	res, err := p.Refresh(context.Background(), pipeline.DefaultPlan())
	require.NoError(t, err)

	assert.Equal(t, []string{"noaa", "noaa", "noaa", "noaa"}, ing.calls)
	require.Len(t, res.Providers, 4)
	for _, s := range res.Providers {
		assert.True(t, s.OK)
		assert.Equal(t, "ingested 2 records", s.Message)
	}

	require.NotNil(t, res.Snapshot)
	assert.Same(t, res.Snapshot, st.Current())
	assert.Len(t, res.Snapshot.Records, 2)
	assert.Equal(t, 0, res.Skipped)
	assert.NoError(t, p.CheckReadiness(context.Background()))

	require.Len(t, ldr.loaded, 1)
	assert.Same(t, res.Snapshot, ldr.loaded[0])

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues("committed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SnapshotRecords))
}

func TestRefresh_ProviderFailureIsIsolated(t *testing.T) {
	ing := &mockIngester{fail: map[string]error{"obis": errors.New("ingest status 500: upstream timeout")}}
	src := &mockSource{items: []json.RawMessage{noaaItem}}
	p := pipeline.New(ing, src, newTestStore(), slog.Default(), newTestMetrics())

	plan := pipeline.Plan{
		{Provider: "noaa"},
		{Provider: "obis"},
		{Provider: "worms"},
	}
	res, err := p.Refresh(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"noaa", "obis", "worms"}, ing.calls)
	want := []pipeline.ProviderStatus{
		{Provider: "noaa", OK: true, Message: "ingested 2 records"},
		{Provider: "obis", OK: false, Message: "ingest status 500: upstream timeout"},
		{Provider: "worms", OK: true, Message: "ingested 2 records"},
	}
	if diff := cmp.Diff(want, res.Providers); diff != "" {
		t.Errorf("provider statuses mismatch (-want +got):\n%s", diff)
	}
	assert.NotNil(t, res.Snapshot)
}

func TestRefresh_IngestsSequentially(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	ing := &mockIngester{onIngest: func(string) {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}}
	p := pipeline.New(ing, &mockSource{}, newTestStore(), slog.Default(), newTestMetrics())

	_, err := p.Refresh(context.Background(), pipeline.DefaultPlan())
	require.NoError(t, err)
	assert.Equal(t, 1, maxSeen)
}

func TestRefresh_SkipsUnnormalizableItems(t *testing.T) {
	src := &mockSource{items: []json.RawMessage{
		noaaItem,
		json.RawMessage(`{"foo":"bar"}`),
		json.RawMessage(`"just a string"`),
		obisItem,
	}}
	metrics := newTestMetrics()
	p := pipeline.New(&mockIngester{}, src, newTestStore(), slog.Default(), metrics)

	res, err := p.Refresh(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Snapshot.Records, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.NormalizationErrors))
}

func TestRefresh_FetchRetriesThenSucceeds(t *testing.T) {
	src := &mockSource{items: []json.RawMessage{noaaItem}, failures: 2, err: errors.New("connection refused")}
	p := pipeline.New(&mockIngester{}, src, newTestStore(), slog.Default(), newTestMetrics(),
		pipeline.WithFetchRetries(2), pipeline.WithBackoff(time.Millisecond, 2*time.Millisecond))

	res, err := p.Refresh(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
	assert.Len(t, res.Snapshot.Records, 1)
}

func TestRefresh_FetchFailureKeepsSnapshot(t *testing.T) {
	st := newTestStore()
	good := &mockSource{items: []json.RawMessage{noaaItem}}
	p := pipeline.New(&mockIngester{}, good, st, slog.Default(), newTestMetrics())
	_, err := p.Refresh(context.Background(), nil)
	require.NoError(t, err)
	before := st.Current()

	bad := &mockSource{failures: 10, err: errors.New("connection refused")}
	metrics := newTestMetrics()
	p = pipeline.New(&mockIngester{}, bad, st, slog.Default(), metrics,
		pipeline.WithFetchRetries(1), pipeline.WithBackoff(time.Millisecond, time.Millisecond))

	res, err := p.Refresh(context.Background(), pipeline.Plan{{Provider: "noaa"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 2, bad.calls)
	assert.Len(t, res.Providers, 1)
	assert.Nil(t, res.Snapshot)
	assert.Same(t, before, st.Current())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues("failed")))
}

func TestRefresh_StaleRefreshIsDiscarded(t *testing.T) {
	st := newTestStore()
	metrics := newTestMetrics()

	var newer *pipeline.Pipeline
	// The slow refresh starts first; a second refresh begins and commits
	// while the first is still ingesting.
	slowIng := &mockIngester{onIngest: func(string) {
		_, err := newer.Refresh(context.Background(), nil)
		require.NoError(t, err)
	}}
	newer = pipeline.New(&mockIngester{}, &mockSource{items: []json.RawMessage{obisItem}}, st, slog.Default(), newTestMetrics())
	slow := pipeline.New(slowIng, &mockSource{items: []json.RawMessage{noaaItem}}, st, slog.Default(), metrics)

	res, err := slow.Refresh(context.Background(), pipeline.Plan{{Provider: "noaa"}})
	require.ErrorIs(t, err, store.ErrStaleRefresh)
	assert.Nil(t, res.Snapshot)

	current := st.Current()
	require.Len(t, current.Records, 1)
	assert.Equal(t, domain.KindOccurrence, current.Records[0].Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues("stale")))
}

func TestRefresh_ContextCancelledBeforeIngest(t *testing.T) {
	ing := &mockIngester{}
	p := pipeline.New(ing, &mockSource{}, newTestStore(), slog.Default(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Refresh(ctx, pipeline.DefaultPlan())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ing.calls)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestRefresh_ClimateSources(t *testing.T) {
	reading := domain.Record{
		ID:      "climate-1",
		Kind:    domain.KindSensorReading,
		Source:  "climate/sst_2025",
		Reading: &domain.SensorReading{Parameter: "sst", Value: 28.1},
	}
	ok := &mockClimate{records: []domain.Record{reading}}
	broken := &mockClimate{err: errors.New("open sst_2025.nc: no such file")}

	p := pipeline.New(&mockIngester{}, &mockSource{items: []json.RawMessage{noaaItem}}, newTestStore(),
		slog.Default(), newTestMetrics(), pipeline.WithClimateSources(ok, broken))

	res, err := p.Refresh(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Snapshot.Records, 2)
	require.Len(t, res.Providers, 2)
	assert.True(t, res.Providers[0].OK)
	assert.Equal(t, "read 1 records", res.Providers[0].Message)
	assert.False(t, res.Providers[1].OK)
	assert.Contains(t, res.Providers[1].Message, "no such file")
}

func TestRefresh_LoaderFailureDoesNotFailRefresh(t *testing.T) {
	ldr := &mockLoader{err: errors.New("broker unavailable")}
	p := pipeline.New(&mockIngester{}, &mockSource{items: []json.RawMessage{noaaItem}}, newTestStore(),
		slog.Default(), newTestMetrics(), pipeline.WithLoaders(ldr))

	res, err := p.Refresh(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Snapshot)
	assert.Len(t, ldr.loaded, 1)
}

func TestRefresh_IdempotentRecordIDs(t *testing.T) {
	src := &mockSource{items: []json.RawMessage{noaaItem, obisItem}}
	p := pipeline.New(&mockIngester{}, src, newTestStore(), slog.Default(), newTestMetrics())

	first, err := p.Refresh(context.Background(), nil)
	require.NoError(t, err)
	second, err := p.Refresh(context.Background(), nil)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Snapshot.Records, second.Snapshot.Records); diff != "" {
		t.Errorf("re-normalization changed records (-first +second):\n%s", diff)
	}
	assert.Greater(t, second.Snapshot.Generation, first.Snapshot.Generation)
}

func TestDefaultPlan(t *testing.T) {
	plan := pipeline.DefaultPlan()
	require.Len(t, plan, 4)

	products := make([]any, len(plan))
	for i, cfg := range plan {
		assert.Equal(t, "noaa", cfg.Provider)
		assert.Equal(t, "8723214", cfg.Payload["station"])
		assert.Equal(t, "20250101", cfg.Payload["begin_date"])
		assert.Equal(t, "20250105", cfg.Payload["end_date"])
		products[i] = cfg.Payload["product"]
	}
	assert.Equal(t, []any{"water_temperature", "air_temperature", "water_level", "wind"}, products)
}

func TestParsePlan(t *testing.T) {
	plan, err := pipeline.ParsePlan([]byte(`
providers:
  - provider: obis
    payload:
      endpoint: occurrence
      params:
        scientificname: Thunnus albacares
        size: 20
  - provider: worms
`))
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, "obis", plan[0].Provider)
	assert.Equal(t, "occurrence", plan[0].Payload["endpoint"])
	params, ok := plan[0].Payload["params"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 20, params["size"])

	assert.Equal(t, "worms", plan[1].Provider)
	assert.NotNil(t, plan[1].Payload)
}

func TestParsePlan_Invalid(t *testing.T) {
	tests := map[string]string{
		"not yaml":         "providers: [",
		"no providers":     "providers: []",
		"missing provider": "providers:\n  - payload: {a: 1}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := pipeline.ParsePlan([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadPlan(t *testing.T) {
	plan, err := pipeline.LoadPlan("")
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultPlan(), plan)

	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - provider: bold\n"), 0o600))
	plan, err = pipeline.LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, "bold", plan[0].Provider)

	_, err = pipeline.LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// --- helpers ---

var (
	noaaItem = json.RawMessage(`{"source":"noaa","parameter":"water_temperature","value":"27.5","unit":"C","station":"8723214","timestamp":"2025-01-01T00:00:00Z","latitude":25.7317,"longitude":-80.1617}`)
	obisItem = json.RawMessage(`{"source":"obis/occurrence","scientificName":"Thunnus albacares","decimalLatitude":10.5,"decimalLongitude":72.6,"eventDate":"2024-03-02"}`)
)
