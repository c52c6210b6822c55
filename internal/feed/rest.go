package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/perpsignal/crashwatch/internal/config"
	"github.com/perpsignal/crashwatch/internal/domain/series"
)

// RESTSource polls the exchange's public candle and funding-rate
// endpoints. Every request passes through a shared token-bucket rate
// limiter and a circuit breaker, so a misbehaving API degrades to fast
// failures instead of hammering the exchange.
type RESTSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewRESTSource builds a poller from feed configuration.
func NewRESTSource(cfg config.Feed) *RESTSource {
	settings := gobreaker.Settings{
		Name:    "market-data",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &RESTSource{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout.Std()},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// apiEnvelope is the exchange's standard response wrapper.
type apiEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Fetch implements Source: candles plus funding history, merged into
// one ascending series. Funding is attached only when every bar can be
// covered; a partial funding history yields a funding-free series
// rather than a mixed one.
func (r *RESTSource) Fetch(ctx context.Context, symbol string, interval time.Duration, limit int) (series.Series, error) {
	bar, err := barParam(interval)
	if err != nil {
		return series.Series{}, err
	}

	bars, err := r.fetchCandles(ctx, symbol, bar, limit)
	if err != nil {
		return series.Series{}, err
	}

	if rates, err := r.fetchFundingHistory(ctx, symbol); err == nil {
		attachFunding(bars, rates)
	}

	s := series.Series{Symbol: symbol, Interval: interval, Bars: bars}
	if err := s.Validate(); err != nil {
		return series.Series{}, fmt.Errorf("feed: %s: %w", symbol, err)
	}
	return s, nil
}

func (r *RESTSource) fetchCandles(ctx context.Context, symbol, bar string, limit int) ([]series.Bar, error) {
	url := fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=%s&limit=%d", r.baseURL, symbol, bar, limit)
	var rows [][]string
	if err := r.getJSON(ctx, url, &rows); err != nil {
		return nil, fmt.Errorf("feed: candles %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("feed: candles %s: empty response", symbol)
	}

	bars := make([]series.Bar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("feed: candles %s: short row", symbol)
		}
		vals := make([]float64, 6)
		for i := 0; i < 6; i++ {
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				return nil, fmt.Errorf("feed: candles %s: bad field %q: %w", symbol, row[i], err)
			}
			vals[i] = v
		}
		bars = append(bars, series.Bar{
			Timestamp: time.UnixMilli(int64(vals[0])).UTC(),
			Open:      vals[1],
			High:      vals[2],
			Low:       vals[3],
			Close:     vals[4],
			Volume:    vals[5],
		})
	}

	// Exchange returns newest first.
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

type fundingPoint struct {
	ts   time.Time
	rate float64
}

func (r *RESTSource) fetchFundingHistory(ctx context.Context, symbol string) ([]fundingPoint, error) {
	url := fmt.Sprintf("%s/api/v5/public/funding-rate-history?instId=%s&limit=100", r.baseURL, symbol)
	var rows []struct {
		FundingRate string `json:"fundingRate"`
		FundingTime string `json:"fundingTime"`
	}
	if err := r.getJSON(ctx, url, &rows); err != nil {
		return nil, fmt.Errorf("feed: funding %s: %w", symbol, err)
	}

	points := make([]fundingPoint, 0, len(rows))
	for _, row := range rows {
		rateVal, err := strconv.ParseFloat(row.FundingRate, 64)
		if err != nil {
			continue
		}
		ms, err := strconv.ParseInt(row.FundingTime, 10, 64)
		if err != nil {
			continue
		}
		points = append(points, fundingPoint{ts: time.UnixMilli(ms).UTC(), rate: rateVal})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].ts.Before(points[j].ts) })
	return points, nil
}

// attachFunding forward-fills funding points onto bars. If the first
// bar predates all funding data the series stays funding-free, keeping
// the all-or-none funding invariant.
func attachFunding(bars []series.Bar, points []fundingPoint) {
	if len(points) == 0 || len(bars) == 0 || bars[0].Timestamp.Before(points[0].ts) {
		return
	}
	j := 0
	for i := range bars {
		for j+1 < len(points) && !points[j+1].ts.After(bars[i].Timestamp) {
			j++
		}
		bars[i].FundingRate = points[j].rate
		bars[i].HasFunding = true
	}
}

func (r *RESTSource) getJSON(ctx context.Context, url string, out interface{}) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := r.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
		}

		var env apiEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		if env.Code != "0" {
			return nil, fmt.Errorf("api error code=%s msg=%s", env.Code, env.Msg)
		}
		return nil, json.Unmarshal(env.Data, out)
	})
	return err
}
