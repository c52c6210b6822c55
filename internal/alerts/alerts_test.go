package alerts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpsignal/crashwatch/internal/domain/regime"
	"github.com/perpsignal/crashwatch/internal/engine"
)

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func snap(symbol string, prob float64) engine.Snapshot {
	return engine.Snapshot{
		Symbol:           symbol,
		CrashProbability: prob,
		Regime:           regime.Consolidation,
		Price:            100,
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, SeverityLow, Classify(0.0))
	assert.Equal(t, SeverityLow, Classify(0.19))
	assert.Equal(t, SeverityMedium, Classify(0.2))
	assert.Equal(t, SeverityMedium, Classify(0.39))
	assert.Equal(t, SeverityHigh, Classify(0.4))
	assert.Equal(t, SeverityHigh, Classify(0.59))
	assert.Equal(t, SeverityCritical, Classify(0.6))
	assert.Equal(t, SeverityCritical, Classify(1.0))
}

func TestRender_SortsByProbability(t *testing.T) {
	msg := Render([]engine.Snapshot{snap("ETH-USDT", 0.45), snap("BTC-USDT", 0.72), snap("SOL-USDT", 0.21)})

	btc := indexOf(t, msg, "BTC-USDT")
	eth := indexOf(t, msg, "ETH-USDT")
	sol := indexOf(t, msg, "SOL-USDT")
	assert.Less(t, btc, eth, "highest risk first")
	assert.Less(t, eth, sol)
	assert.Contains(t, msg, "CRITICAL")
	assert.Contains(t, msg, "risk 72%")
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	idx := strings.Index(s, sub)
	require.GreaterOrEqual(t, idx, 0, "%q not in message", sub)
	return idx
}

func TestDispatch_FiltersBelowThreshold(t *testing.T) {
	fake := &fakeNotifier{}
	d := NewDispatcher(fake, 0.2, time.Hour)

	n, err := d.Dispatch(context.Background(), []engine.Snapshot{snap("BTC-USDT", 0.1), snap("ETH-USDT", 0.05)})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, fake.sent, "quiet tape sends nothing")

	n, err = d.Dispatch(context.Background(), []engine.Snapshot{snap("BTC-USDT", 0.5), snap("ETH-USDT", 0.05)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, fake.sent, 1)
	assert.Contains(t, fake.sent[0], "BTC-USDT")
	assert.NotContains(t, fake.sent[0], "ETH-USDT")
}

func TestDispatch_Cooldown(t *testing.T) {
	fake := &fakeNotifier{}
	d := NewDispatcher(fake, 0.2, time.Hour)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	_, err := d.Dispatch(context.Background(), []engine.Snapshot{snap("BTC-USDT", 0.5)})
	require.NoError(t, err)

	clock = clock.Add(30 * time.Minute)
	n, err := d.Dispatch(context.Background(), []engine.Snapshot{snap("BTC-USDT", 0.55)})
	require.NoError(t, err)
	assert.Zero(t, n, "still cooling down")

	clock = clock.Add(31 * time.Minute)
	n, err = d.Dispatch(context.Background(), []engine.Snapshot{snap("BTC-USDT", 0.55)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, fake.sent, 2)
}

func TestDispatch_NotifierFailureKeepsCooldownClear(t *testing.T) {
	fake := &fakeNotifier{err: errors.New("boom")}
	d := NewDispatcher(fake, 0.2, time.Hour)

	_, err := d.Dispatch(context.Background(), []engine.Snapshot{snap("BTC-USDT", 0.5)})
	require.Error(t, err)

	// Delivery failed, so the next cycle must retry.
	fake.err = nil
	n, err := d.Dispatch(context.Background(), []engine.Snapshot{snap("BTC-USDT", 0.5)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
