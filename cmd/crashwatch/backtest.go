package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/perpsignal/crashwatch/internal/backtest"
	"github.com/perpsignal/crashwatch/internal/engine"
	"github.com/perpsignal/crashwatch/internal/feed"
)

func backtestCmd(ctx context.Context, configPath *string) *cobra.Command {
	var (
		initialCash float64
		feeRate     float64
	)

	cmd := &cobra.Command{
		Use:   "backtest SYMBOL...",
		Short: "Replay the signal series through the trade simulator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			strategy, err := engine.New(cfg.Engine.Strategy)
			if err != nil {
				return err
			}
			source, err := feed.New(cfg.Feed)
			if err != nil {
				return err
			}

			btCfg := backtest.Config{InitialCash: initialCash, FeeRate: feeRate}
			for _, symbol := range args {
				s, err := source.Fetch(ctx, symbol, cfg.Interval.Std(), cfg.Feed.History)
				if err != nil {
					return err
				}
				ev, err := strategy.Compute(s, cfg.Engine)
				if err != nil {
					return err
				}
				res, err := backtest.Run(ev, btCfg)
				if err != nil {
					return err
				}

				fmt.Printf("%s over %d bars\n", symbol, s.Len())
				fmt.Printf("  return     %+.2f%% (buy-and-hold %+.2f%%)\n", res.TotalReturnPct, res.BuyHoldReturnPct)
				fmt.Printf("  drawdown   %.2f%%\n", res.MaxDrawdownPct)
				fmt.Printf("  trades     %d (win rate %.1f%%)\n", len(res.Trades), res.WinRatePct)
				fmt.Printf("  equity     %.2f\n", res.FinalEquity)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&initialCash, "cash", 10000, "starting cash")
	cmd.Flags().Float64Var(&feeRate, "fee", 0.001, "fee rate per side")
	return cmd
}
