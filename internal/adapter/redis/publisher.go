// Package redis announces committed snapshots on a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/store"
	goredis "github.com/redis/go-redis/v9"
)

// publisher is the subset of *goredis.Client the Publisher needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *goredis.IntCmd
}

// Publisher implements pipeline.SnapshotLoader by publishing a short
// notification per committed snapshot. Subscribers re-read the records
// through the HTTP API.
type Publisher struct {
	client  publisher
	closer  func() error
	channel string
	logger  *slog.Logger
}

// Notification is the JSON message published for each snapshot.
type Notification struct {
	SnapshotID  string    `json:"snapshot_id"`
	Generation  uint64    `json:"generation"`
	Records     int       `json:"records"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// NewPublisher connects to the Redis server at url and verifies it answers.
func NewPublisher(ctx context.Context, url, channel string, logger *slog.Logger) (*Publisher, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Publisher{client: client, closer: client.Close, channel: channel, logger: logger}, nil
}

// LoadSnapshot publishes the snapshot notification.
func (p *Publisher) LoadSnapshot(ctx context.Context, snap *store.Snapshot) error {
	data, err := json.Marshal(notificationFor(snap))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, data).Result()
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	p.logger.Debug("snapshot announced", "channel", p.channel, "snapshot_id", snap.ID, "receivers", receivers)
	return nil
}

// Close releases the Redis connection pool.
func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

func notificationFor(snap *store.Snapshot) Notification {
	return Notification{
		SnapshotID:  snap.ID.String(),
		Generation:  snap.Generation,
		Records:     len(snap.Records),
		RefreshedAt: snap.RefreshedAt,
	}
}
