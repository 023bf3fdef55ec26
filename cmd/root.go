package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aulemarouille/green-spots-back/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "green-spots",
	Short: "Eco spot aggregation service for Bretagne",
	Long:  "Aggregates EV charging stations from data.gouv.fr with curated local datasets (organic markets, bio shops, producers, eco-lodging), deduplicates and serves them over HTTP.",
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
