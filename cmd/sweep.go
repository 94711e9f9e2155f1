package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ripefield/quality-cli/internal/triage"
)

var sweepOnce bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the auto-resolve sweeper",
	Long:  "Periodically transitions pending, auto-resolve-eligible exceptions whose window has passed. Runs until interrupted, or once with --once.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sweeper := triage.NewSweeper(st, cfg.Triage)

		if sweepOnce {
			n, err := sweeper.SweepOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("auto-resolved %d exception(s)\n", n)
			return nil
		}

		sweeper.Run(ctx)
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "run a single sweep pass and exit")
	rootCmd.AddCommand(sweepCmd)
}
