package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/config"
	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/couchcryptid/marine-data-engine/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(records ...domain.Record) *store.Snapshot {
	return &store.Snapshot{
		ID:          uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f"),
		Generation:  3,
		Records:     records,
		RefreshedAt: time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	depth := 42.0
	rec := domain.Record{
		ID:     "obis-1a2b3c4d5e6f7a8b",
		Kind:   domain.KindOccurrence,
		Source: "obis/occurrence",
		Geo:    &domain.Geo{Lat: 10.5, Lon: 72.6},
		Occurrence: &domain.Occurrence{
			Species: "Thunnus albacares",
			Depth:   &depth,
		},
	}
	snap := testSnapshot(rec)

	msg, err := serializeToMessage(snap, rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("obis-1a2b3c4d5e6f7a8b"), msg.Key)

	var decoded domain.Record
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, rec, decoded)

	require.Len(t, msg.Headers, 4)
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "occurrence", headers["kind"])
	assert.Equal(t, "obis/occurrence", headers["source"])
	assert.Equal(t, "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f", headers["snapshot_id"])
	assert.Equal(t, "2025-01-06T12:00:00Z", headers["refreshed_at"])
}

func TestLoadSnapshot_EmptyIsNoop(t *testing.T) {
	w := NewWriter(&config.Config{KafkaBrokers: []string{"127.0.0.1:1"}, KafkaSinkTopic: "unused"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	assert.NoError(t, w.LoadSnapshot(context.Background(), testSnapshot()))
}
