package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestNewLogger_JSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("refresh committed", "records", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "refresh committed", line["msg"])
	assert.EqualValues(t, 3, line["records"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "text")

	logger.Debug("ingest", "provider", "noaa")
	assert.Contains(t, buf.String(), "provider=noaa")
	assert.Contains(t, buf.String(), "level=DEBUG")
}

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()

	m.Refreshes.WithLabelValues("committed").Inc()
	m.ProviderIngests.WithLabelValues("noaa", "error").Add(2)
	m.SnapshotRecords.Set(42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("committed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProviderIngests.WithLabelValues("noaa", "error")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.SnapshotRecords))

	// A second set must not collide with the first.
	assert.NotPanics(t, func() { NewMetricsForTesting() })
}
