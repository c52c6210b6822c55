// Package backtest replays an engine evaluation through a long-only
// portfolio simulator. It consumes the exact signal series the live
// alerting path sees; it never re-derives entries or exits from raw
// indicators.
package backtest

import (
	"fmt"
	"time"

	"github.com/perpsignal/crashwatch/internal/engine"
)

// Config holds the simulation knobs.
type Config struct {
	InitialCash float64 `yaml:"initial_cash" default:"10000"`
	FeeRate     float64 `yaml:"fee_rate" default:"0.001"`
}

// DefaultConfig returns the standard simulation setup: 10k starting
// cash and a 0.1% taker fee per side.
func DefaultConfig() Config {
	return Config{InitialCash: 10000, FeeRate: 0.001}
}

// ExitReason records why a trade closed.
type ExitReason string

const (
	ExitSignal    ExitReason = "signal"
	ExitStopLoss  ExitReason = "stop_loss"
	ExitEndOfData ExitReason = "end_of_data"
)

// Trade is one completed round trip.
type Trade struct {
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Size       float64    `json:"size"`
	PnL        float64    `json:"pnl"`
	Reason     ExitReason `json:"reason"`
}

// Result summarizes a simulation.
type Result struct {
	Symbol           string  `json:"symbol"`
	FinalEquity      float64 `json:"final_equity"`
	TotalReturnPct   float64 `json:"total_return_pct"`
	BuyHoldReturnPct float64 `json:"buy_hold_return_pct"`
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`
	WinRatePct       float64 `json:"win_rate_pct"`
	Trades           []Trade `json:"trades"`
}

// Run simulates ev's signal series. Entries fill at the close of the
// signal bar, sized by the engine's position-size fraction of current
// equity. An open position exits at its stop price when the bar's low
// trades through it, at the close on an exit signal, or at the final
// close when data runs out. Exit takes precedence over entry on the
// same bar.
func Run(ev *engine.Evaluation, cfg Config) (Result, error) {
	if ev == nil || ev.Series.Len() == 0 {
		return Result{}, fmt.Errorf("backtest: empty evaluation")
	}
	if cfg.InitialCash <= 0 {
		return Result{}, fmt.Errorf("backtest: initial cash %v, want > 0", cfg.InitialCash)
	}
	if cfg.FeeRate < 0 || cfg.FeeRate >= 1 {
		return Result{}, fmt.Errorf("backtest: fee rate %v, want [0,1)", cfg.FeeRate)
	}

	bars := ev.Series.Bars
	cash := cfg.InitialCash
	var (
		qty        float64
		entryPrice float64
		entryTime  time.Time
		entryCost  float64
		stopPrice  float64
		trades     []Trade
		peak       = cfg.InitialCash
		maxDD      float64
	)

	closePosition := func(price float64, ts time.Time, reason ExitReason) {
		proceeds := qty * price * (1 - cfg.FeeRate)
		cash += proceeds
		trades = append(trades, Trade{
			EntryTime:  entryTime,
			ExitTime:   ts,
			EntryPrice: entryPrice,
			ExitPrice:  price,
			Size:       entryCost,
			PnL:        proceeds - entryCost,
			Reason:     reason,
		})
		qty = 0
	}

	for i, bar := range bars {
		sig := ev.Signals[i]

		if qty > 0 {
			if bar.Low <= stopPrice {
				closePosition(stopPrice, bar.Timestamp, ExitStopLoss)
			} else if sig.Exit {
				closePosition(bar.Close, bar.Timestamp, ExitSignal)
			}
		}

		if qty == 0 && sig.Entry && !sig.Exit {
			equity := cash
			spend := equity * sig.PositionSize
			if spend > 0 {
				entryPrice = bar.Close
				entryTime = bar.Timestamp
				entryCost = spend
				qty = spend * (1 - cfg.FeeRate) / bar.Close
				stopPrice = bar.Close * (1 - sig.StopLossPct/100)
				cash -= spend
			}
		}

		equity := cash + qty*bar.Close
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}

	if qty > 0 {
		last := bars[len(bars)-1]
		closePosition(last.Close, last.Timestamp, ExitEndOfData)
	}

	wins := 0
	for _, tr := range trades {
		if tr.PnL > 0 {
			wins++
		}
	}
	winRate := 0.0
	if len(trades) > 0 {
		winRate = float64(wins) / float64(len(trades)) * 100
	}

	return Result{
		Symbol:           ev.Series.Symbol,
		FinalEquity:      cash,
		TotalReturnPct:   (cash/cfg.InitialCash - 1) * 100,
		BuyHoldReturnPct: (bars[len(bars)-1].Close/bars[0].Close - 1) * 100,
		MaxDrawdownPct:   maxDD,
		WinRatePct:       winRate,
		Trades:           trades,
	}, nil
}
