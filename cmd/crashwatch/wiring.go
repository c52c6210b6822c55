package main

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/perpsignal/crashwatch/internal/alerts"
	"github.com/perpsignal/crashwatch/internal/app"
	"github.com/perpsignal/crashwatch/internal/config"
	"github.com/perpsignal/crashwatch/internal/engine"
	"github.com/perpsignal/crashwatch/internal/feed"
	"github.com/perpsignal/crashwatch/internal/metrics"
	"github.com/perpsignal/crashwatch/internal/store"
)

// runtime bundles the wired collaborators a command needs.
type runtime struct {
	cfg     config.Config
	monitor *app.Monitor
	metrics *metrics.Set
	cache   *store.SnapshotCache
	closers []func() error
}

func (r *runtime) close() {
	for _, c := range r.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("shutdown cleanup failed")
		}
	}
}

// buildRuntime wires feed, engine, stores, alerting and metrics from
// configuration. Optional collaborators (Redis, Postgres, Telegram)
// are wired only when configured.
func buildRuntime(cfg config.Config) (*runtime, error) {
	strategy, err := engine.New(cfg.Engine.Strategy)
	if err != nil {
		return nil, err
	}
	source, err := feed.New(cfg.Feed)
	if err != nil {
		return nil, err
	}

	mets := metrics.New()
	rt := &runtime{cfg: cfg, metrics: mets}
	opts := []app.Option{}

	if cfg.Store.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		rt.cache = store.NewSnapshotCache(client, cfg.Store.RedisTTL.Std())
		rt.closers = append(rt.closers, client.Close)
		opts = append(opts, app.WithCache(rt.cache))
	}
	if cfg.Store.PostgresDSN != "" {
		history, err := store.OpenHistory(cfg.Store.PostgresDSN)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("wiring history store: %w", err)
		}
		rt.closers = append(rt.closers, history.Close)
		opts = append(opts, app.WithHistory(history))
	}
	if cfg.Alerts.Enabled {
		notifier := alerts.NewTelegram(cfg.TelegramToken(), cfg.TelegramChatID())
		dispatcher := alerts.NewDispatcher(notifier, cfg.Alerts.Threshold, cfg.Alerts.Cooldown.Std())
		opts = append(opts, app.WithAlerter(dispatcher))
	}

	rt.monitor = app.NewMonitor(cfg, strategy, source, mets, log.Logger, opts...)
	return rt, nil
}
