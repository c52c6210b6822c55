// Package feed supplies gap-free bar series to the monitor and the
// backtester. Sources own all transport concerns (rate limiting,
// circuit breaking, reconnects); by the time a Series leaves a Source
// it is merged, time-ascending and validated.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/perpsignal/crashwatch/internal/config"
	"github.com/perpsignal/crashwatch/internal/domain/series"
)

// Source fetches the most recent bars for one instrument.
type Source interface {
	Fetch(ctx context.Context, symbol string, interval time.Duration, limit int) (series.Series, error)
}

// New builds the configured source.
func New(cfg config.Feed) (Source, error) {
	switch cfg.Source {
	case "rest":
		return NewRESTSource(cfg), nil
	case "csv":
		return NewCSVSource(cfg.CSVDir), nil
	case "websocket":
		return NewStreamSource(cfg), nil
	default:
		return nil, fmt.Errorf("feed: unknown source %q", cfg.Source)
	}
}

// barParam maps a native interval onto the exchange's bar notation.
func barParam(interval time.Duration) (string, error) {
	switch interval {
	case time.Minute:
		return "1m", nil
	case 5 * time.Minute:
		return "5m", nil
	case 15 * time.Minute:
		return "15m", nil
	case 30 * time.Minute:
		return "30m", nil
	case time.Hour:
		return "1H", nil
	case 4 * time.Hour:
		return "4H", nil
	case 24 * time.Hour:
		return "1D", nil
	}
	return "", fmt.Errorf("feed: unsupported interval %s", interval)
}
