// Package app runs the monitoring loop: fetch bars for every
// configured symbol, evaluate them through the engine, persist and
// publish the snapshots, and dispatch alerts. Per-symbol evaluations
// are independent, so the cycle fans them out across a bounded worker
// pool; the engine itself stays strictly single-threaded per call.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/perpsignal/crashwatch/internal/config"
	"github.com/perpsignal/crashwatch/internal/domain/series"
	"github.com/perpsignal/crashwatch/internal/engine"
	"github.com/perpsignal/crashwatch/internal/feed"
	"github.com/perpsignal/crashwatch/internal/metrics"
)

// Cache receives the latest snapshot per symbol.
type Cache interface {
	Put(ctx context.Context, snap engine.Snapshot) error
}

// Streamer is implemented by sources that push closed bars as they
// confirm. When the configured source streams, Run follows it live
// instead of polling on the interval ticker.
type Streamer interface {
	Stream(ctx context.Context, symbol string, interval time.Duration) (<-chan series.Bar, error)
}

// HistoryWriter appends snapshots to durable storage.
type HistoryWriter interface {
	Append(ctx context.Context, snap engine.Snapshot) error
}

// Alerter decides and delivers notifications for a cycle's snapshots.
type Alerter interface {
	Dispatch(ctx context.Context, snaps []engine.Snapshot) (int, error)
}

// Monitor owns one evaluation loop over the configured symbols.
type Monitor struct {
	cfg      config.Config
	strategy engine.Strategy
	source   feed.Source
	metrics  *metrics.Set
	log      zerolog.Logger

	cache   Cache
	history HistoryWriter
	alerter Alerter

	workers int
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithCache publishes snapshots to a cache.
func WithCache(c Cache) Option { return func(m *Monitor) { m.cache = c } }

// WithHistory appends snapshots to durable history.
func WithHistory(h HistoryWriter) Option { return func(m *Monitor) { m.history = h } }

// WithAlerter routes snapshots through an alert dispatcher.
func WithAlerter(a Alerter) Option { return func(m *Monitor) { m.alerter = a } }

// WithWorkers bounds cycle parallelism.
func WithWorkers(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.workers = n
		}
	}
}

// NewMonitor wires a monitor from its collaborators.
func NewMonitor(cfg config.Config, strategy engine.Strategy, source feed.Source, mets *metrics.Set, log zerolog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:      cfg,
		strategy: strategy,
		source:   source,
		metrics:  mets,
		log:      log,
		workers:  4,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunCycle evaluates every configured symbol once and returns the
// snapshots, sorted by descending crash probability. A symbol failing
// to fetch or evaluate is logged and counted but does not abort the
// cycle; the cycle errors only when every symbol failed.
func (m *Monitor) RunCycle(ctx context.Context) ([]engine.Snapshot, error) {
	runID := uuid.NewString()
	log := m.log.With().Str("run_id", runID).Logger()
	started := time.Now()

	type result struct {
		snap engine.Snapshot
		err  error
	}
	results := make([]result, len(m.cfg.Symbols))

	sem := make(chan struct{}, m.workers)
	var wg sync.WaitGroup
	for i, symbol := range m.cfg.Symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			snap, err := m.evaluate(ctx, symbol)
			results[i] = result{snap: snap, err: err}
		}(i, symbol)
	}
	wg.Wait()

	snaps := make([]engine.Snapshot, 0, len(results))
	failures := 0
	for i, res := range results {
		if res.err != nil {
			failures++
			m.metrics.EvaluationErrors.WithLabelValues(m.cfg.Symbols[i]).Inc()
			log.Error().Err(res.err).Str("symbol", m.cfg.Symbols[i]).Msg("evaluation failed")
			continue
		}
		snaps = append(snaps, res.snap)
	}
	if failures == len(m.cfg.Symbols) {
		return nil, fmt.Errorf("app: all %d symbols failed this cycle", failures)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CrashProbability > snaps[j].CrashProbability
	})

	if m.alerter != nil {
		sent, err := m.alerter.Dispatch(ctx, snaps)
		if err != nil {
			log.Error().Err(err).Msg("alert dispatch failed")
		} else if sent > 0 {
			m.metrics.AlertsSent.Add(float64(sent))
			log.Info().Int("symbols", sent).Msg("alerts sent")
		}
	}

	m.metrics.CycleDuration.Observe(time.Since(started).Seconds())
	log.Info().
		Int("symbols", len(snaps)).
		Int("failures", failures).
		Dur("elapsed", time.Since(started)).
		Msg("cycle complete")
	return snaps, nil
}

func (m *Monitor) evaluate(ctx context.Context, symbol string) (engine.Snapshot, error) {
	s, err := m.source.Fetch(ctx, symbol, m.cfg.Interval.Std(), m.cfg.Feed.History)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return m.evaluateSeries(ctx, symbol, s)
}

func (m *Monitor) evaluateSeries(ctx context.Context, symbol string, s series.Series) (engine.Snapshot, error) {
	ev, err := m.strategy.Compute(s, m.cfg.Engine)
	if err != nil {
		return engine.Snapshot{}, err
	}
	snap := ev.Snapshot(m.cfg.Engine.ChangeLookback)
	m.metrics.ObserveSnapshot(snap)

	if m.cache != nil {
		if err := m.cache.Put(ctx, snap); err != nil {
			m.log.Warn().Err(err).Str("symbol", symbol).Msg("snapshot cache write failed")
		}
	}
	if m.history != nil {
		if err := m.history.Append(ctx, snap); err != nil {
			m.log.Warn().Err(err).Str("symbol", symbol).Msg("history append failed")
		}
	}
	return snap, nil
}

// Run executes cycles on the configured interval until ctx is
// cancelled. The first cycle runs immediately. A streaming source
// switches Run into live mode after that first cycle: every symbol's
// candle channel is followed and each confirmed bar triggers a fresh
// evaluation.
func (m *Monitor) Run(ctx context.Context) error {
	if streamer, ok := m.source.(Streamer); ok {
		return m.runLive(ctx, streamer)
	}

	ticker := time.NewTicker(m.cfg.Interval.Std())
	defer ticker.Stop()

	for {
		if _, err := m.RunCycle(ctx); err != nil {
			m.log.Error().Err(err).Msg("cycle failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// streamRetryDelay paces reconnects after a dropped candle stream.
const streamRetryDelay = 5 * time.Second

func (m *Monitor) runLive(ctx context.Context, streamer Streamer) error {
	if _, err := m.RunCycle(ctx); err != nil {
		m.log.Error().Err(err).Msg("initial cycle failed")
	}

	var wg sync.WaitGroup
	for _, symbol := range m.cfg.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			m.followSymbol(ctx, streamer, symbol)
		}(symbol)
	}
	wg.Wait()
	return ctx.Err()
}

// followSymbol keeps one symbol's live series current, reconnecting
// until ctx is cancelled. A timestamp gap forces a REST resync rather
// than feeding the engine a series Validate would reject.
func (m *Monitor) followSymbol(ctx context.Context, streamer Streamer, symbol string) {
	log := m.log.With().Str("symbol", symbol).Logger()
	for {
		if err := m.followOnce(ctx, streamer, symbol); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("candle stream interrupted")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(streamRetryDelay):
		}
	}
}

func (m *Monitor) followOnce(ctx context.Context, streamer Streamer, symbol string) error {
	s, err := m.source.Fetch(ctx, symbol, m.cfg.Interval.Std(), m.cfg.Feed.History)
	if err != nil {
		return err
	}
	bars, err := streamer.Stream(ctx, symbol, m.cfg.Interval.Std())
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case bar, ok := <-bars:
			if !ok {
				return nil
			}
			last := s.Last()
			if !bar.Timestamp.After(last.Timestamp) {
				continue
			}
			if !bar.Timestamp.Equal(last.Timestamp.Add(s.Interval)) {
				return fmt.Errorf("app: %s: bar gap at %s", symbol, bar.Timestamp.Format(time.RFC3339))
			}
			// Funding arrives with the REST backfill only; streamed
			// candles carry the last known rate forward.
			if last.HasFunding {
				bar.HasFunding = true
				bar.FundingRate = last.FundingRate
			}
			s.Bars = append(s.Bars, bar)
			if len(s.Bars) > m.cfg.Feed.History {
				s.Bars = s.Bars[len(s.Bars)-m.cfg.Feed.History:]
			}

			snap, err := m.evaluateSeries(ctx, symbol, s)
			if err != nil {
				m.metrics.EvaluationErrors.WithLabelValues(symbol).Inc()
				m.log.Error().Err(err).Str("symbol", symbol).Msg("live evaluation failed")
				continue
			}
			if m.alerter != nil {
				sent, err := m.alerter.Dispatch(ctx, []engine.Snapshot{snap})
				if err != nil {
					m.log.Error().Err(err).Str("symbol", symbol).Msg("alert dispatch failed")
				} else if sent > 0 {
					m.metrics.AlertsSent.Add(float64(sent))
				}
			}
		}
	}
}
