package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ripefield/quality-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "quality-cli",
	Short: "Agricultural quality prediction and review triage",
	Long:  "Predicts quality metrics for produce, eggs, and coffee from identity, timing, and practice evidence; validates measurements; escalates low-confidence and anomalous results into a reviewable exception queue.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
