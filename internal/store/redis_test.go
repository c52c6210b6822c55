package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpsignal/crashwatch/internal/domain/regime"
	"github.com/perpsignal/crashwatch/internal/engine"
)

func sampleSnapshot(symbol string) engine.Snapshot {
	return engine.Snapshot{
		Symbol:           symbol,
		Timestamp:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Price:            64250.5,
		CrashProbability: 0.42,
		Regime:           regime.Consolidation,
		TrendStrength:    0.5,
		PositionSize:     0.3,
		StopLossPct:      2.1,
	}
}

func TestSnapshotCache_PutGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewSnapshotCache(client, time.Hour)
	snap := sampleSnapshot("BTC-USDT")

	payload, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectSet("crashwatch:snapshot:BTC-USDT", payload, time.Hour).SetVal("OK")
	mock.ExpectSAdd("crashwatch:symbols", "BTC-USDT").SetVal(1)
	require.NoError(t, cache.Put(context.Background(), snap))

	mock.ExpectGet("crashwatch:snapshot:BTC-USDT").SetVal(string(payload))
	got, err := cache.Get(context.Background(), "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotCache_GetMissing(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewSnapshotCache(client, time.Hour)

	mock.ExpectGet("crashwatch:snapshot:NOPE").RedisNil()
	_, err := cache.Get(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotCache_All(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewSnapshotCache(client, time.Hour)

	btc := sampleSnapshot("BTC-USDT")
	btcPayload, _ := json.Marshal(btc)

	mock.ExpectSMembers("crashwatch:symbols").SetVal([]string{"BTC-USDT", "ETH-USDT"})
	mock.ExpectGet("crashwatch:snapshot:BTC-USDT").SetVal(string(btcPayload))
	// ETH entry has expired; it must be skipped, not fail the listing.
	mock.ExpectGet("crashwatch:snapshot:ETH-USDT").RedisNil()

	snaps, err := cache.All(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, btc, snaps[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
