// Package store persists engine snapshots: a Redis cache holds the
// latest snapshot per symbol for the HTTP API, and Postgres keeps an
// append-only history for offline analysis. Both stores are optional;
// the monitor runs fine with neither.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/perpsignal/crashwatch/internal/engine"
)

// ErrNotFound reports a symbol with no cached snapshot.
var ErrNotFound = errors.New("store: snapshot not found")

// SnapshotCache is the Redis-backed latest-snapshot store.
type SnapshotCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewSnapshotCache wraps an existing Redis client. Entries expire
// after ttl so stale readings age out when the monitor stops.
func NewSnapshotCache(client redis.Cmdable, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(symbol string) string {
	return "crashwatch:snapshot:" + symbol
}

const symbolsKey = "crashwatch:symbols"

// Put stores the snapshot under its symbol and registers the symbol in
// the known set.
func (c *SnapshotCache) Put(ctx context.Context, snap engine.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: encoding snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(snap.Symbol), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("store: caching %s: %w", snap.Symbol, err)
	}
	if err := c.client.SAdd(ctx, symbolsKey, snap.Symbol).Err(); err != nil {
		return fmt.Errorf("store: registering %s: %w", snap.Symbol, err)
	}
	return nil
}

// Get returns the cached snapshot for symbol, or ErrNotFound.
func (c *SnapshotCache) Get(ctx context.Context, symbol string) (engine.Snapshot, error) {
	payload, err := c.client.Get(ctx, snapshotKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("store: fetching %s: %w", symbol, err)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return engine.Snapshot{}, fmt.Errorf("store: decoding %s: %w", symbol, err)
	}
	return snap, nil
}

// All returns every live cached snapshot. Symbols whose entries have
// expired are skipped.
func (c *SnapshotCache) All(ctx context.Context) ([]engine.Snapshot, error) {
	symbols, err := c.client.SMembers(ctx, symbolsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("store: listing symbols: %w", err)
	}
	snaps := make([]engine.Snapshot, 0, len(symbols))
	for _, sym := range symbols {
		snap, err := c.Get(ctx, sym)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
