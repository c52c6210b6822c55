package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpsignal/crashwatch/internal/domain/regime"
	"github.com/perpsignal/crashwatch/internal/engine"
	"github.com/perpsignal/crashwatch/internal/metrics"
	"github.com/perpsignal/crashwatch/internal/store"
)

type fakeProvider struct {
	snaps map[string]engine.Snapshot
	err   error
}

func (f *fakeProvider) Get(_ context.Context, symbol string) (engine.Snapshot, error) {
	if f.err != nil {
		return engine.Snapshot{}, f.err
	}
	snap, ok := f.snaps[symbol]
	if !ok {
		return engine.Snapshot{}, fmt.Errorf("%w: %s", store.ErrNotFound, symbol)
	}
	return snap, nil
}

func (f *fakeProvider) All(_ context.Context) ([]engine.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]engine.Snapshot, 0, len(f.snaps))
	for _, s := range f.snaps {
		out = append(out, s)
	}
	return out, nil
}

func testServer(provider SnapshotProvider) *httptest.Server {
	m := metrics.New()
	srv := New(provider, m.Registry(), zerolog.Nop())
	return httptest.NewServer(srv.Handler())
}

func TestHealthz(t *testing.T) {
	ts := testServer(&fakeProvider{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestRiskAll(t *testing.T) {
	provider := &fakeProvider{snaps: map[string]engine.Snapshot{
		"BTC-USDT": {Symbol: "BTC-USDT", CrashProbability: 0.42, Regime: regime.Consolidation},
		"ETH-USDT": {Symbol: "ETH-USDT", CrashProbability: 0.12, Regime: regime.Bull},
	}}
	ts := testServer(provider)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/risk")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snaps []engine.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snaps))
	assert.Len(t, snaps, 2)
}

func TestRiskSymbol(t *testing.T) {
	provider := &fakeProvider{snaps: map[string]engine.Snapshot{
		"BTC-USDT": {Symbol: "BTC-USDT", CrashProbability: 0.42, Regime: regime.Crash},
	}}
	ts := testServer(provider)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/risk/BTC-USDT")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap engine.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "BTC-USDT", snap.Symbol)
	assert.Equal(t, regime.Crash, snap.Regime)
}

func TestRiskSymbol_NotFound(t *testing.T) {
	ts := testServer(&fakeProvider{snaps: map[string]engine.Snapshot{}})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/risk/NOPE-USDT")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRiskAll_StoreFailure(t *testing.T) {
	ts := testServer(&fakeProvider{err: errors.New("redis down")})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/risk")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.AlertsSent.Inc()
	srv := New(&fakeProvider{}, m.Registry(), zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 1<<16)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]), "crashwatch_alerts_sent_total")
}
