package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stoneage-tools/ap-inbox/internal/poller"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the current unread messages once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		p := poller.New(env.Mail, env.Pipeline, env.Ledger, cfg.Outlook, cfg.Poll)
		if err := p.Tick(ctx); err != nil {
			return err
		}

		zap.L().Info("single pass complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
