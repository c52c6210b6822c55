package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/perpsignal/crashwatch/internal/config"
	"github.com/perpsignal/crashwatch/internal/domain/series"
)

// StreamSource backfills history over REST and follows the exchange's
// candle websocket channel for live bars. Only confirmed (closed)
// candles are emitted; the in-progress candle is never visible to the
// engine.
type StreamSource struct {
	*RESTSource
	wsURL string
}

// NewStreamSource builds a streaming source from feed configuration.
func NewStreamSource(cfg config.Feed) *StreamSource {
	return &StreamSource{
		RESTSource: NewRESTSource(cfg),
		wsURL:      cfg.WSUrl,
	}
}

type wsSubscription struct {
	Op   string              `json:"op"`
	Args []map[string]string `json:"args"`
}

type wsCandleMessage struct {
	Event string `json:"event"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data [][]string `json:"data"`
}

// Stream subscribes to symbol's candle channel and sends every closed
// bar on the returned channel until ctx is cancelled or the connection
// drops. The caller owns reconnect policy.
func (s *StreamSource) Stream(ctx context.Context, symbol string, interval time.Duration) (<-chan series.Bar, error) {
	bar, err := barParam(interval)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dialing %s: %w", s.wsURL, err)
	}

	sub := wsSubscription{
		Op:   "subscribe",
		Args: []map[string]string{{"channel": "candle" + bar, "instId": symbol}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("feed: subscribing %s: %w", symbol, err)
	}

	out := make(chan series.Bar)
	log := zerolog.Ctx(ctx).With().Str("symbol", symbol).Logger()

	go func() {
		defer close(out)
		defer conn.Close()

		// Unblock ReadMessage on cancellation.
		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Msg("candle stream closed")
				}
				return
			}

			var msg wsCandleMessage
			if err := json.Unmarshal(payload, &msg); err != nil || msg.Event != "" {
				continue
			}
			for _, row := range msg.Data {
				closed, parsed, err := parseStreamCandle(row)
				if err != nil {
					log.Warn().Err(err).Msg("dropping malformed candle")
					continue
				}
				if !closed {
					continue
				}
				select {
				case out <- parsed:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// parseStreamCandle decodes one websocket candle row. The trailing
// confirm flag is "1" once the candle has closed.
func parseStreamCandle(row []string) (closed bool, bar series.Bar, err error) {
	if len(row) < 6 {
		return false, series.Bar{}, fmt.Errorf("short candle row (%d fields)", len(row))
	}
	vals := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v, perr := strconv.ParseFloat(row[i], 64)
		if perr != nil {
			return false, series.Bar{}, fmt.Errorf("bad candle field %q: %w", row[i], perr)
		}
		vals[i] = v
	}
	closed = len(row) > 6 && row[len(row)-1] == "1"
	return closed, series.Bar{
		Timestamp: time.UnixMilli(int64(vals[0])).UTC(),
		Open:      vals[1],
		High:      vals[2],
		Low:       vals[3],
		Close:     vals[4],
		Volume:    vals[5],
	}, nil
}
