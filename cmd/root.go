package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stoneage-tools/ap-inbox/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ap-inbox",
	Short: "Accounts payable inbox automation",
	Long:  "Polls a shared AP mailbox, classifies mail and extracts invoices via tiered Claude models, checks them against Epicor Kinetic, and commits approved invoices through the AP invoice workflow.",
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
