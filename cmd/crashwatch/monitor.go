package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func monitorCmd(ctx context.Context, configPath *string) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Evaluate crash risk for the configured symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.close()

			if once {
				snaps, err := rt.monitor.RunCycle(ctx)
				if err != nil {
					return err
				}
				for _, s := range snaps {
					fmt.Printf("%-12s risk %5.1f%%  regime %-13s price %.4f (%+.2f%%)\n",
						s.Symbol, s.CrashProbability*100, s.Regime, s.Price, s.PctChange)
				}
				return nil
			}

			err = rt.monitor.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}
