package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stoneage-tools/ap-inbox/internal/poller"
)

var monitorPort int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll the AP mailbox continuously and serve the taskpane API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		p := poller.New(env.Mail, env.Pipeline, env.Ledger, cfg.Outlook, cfg.Poll)

		port := monitorPort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newAPIMux(env.Ledger, env.ERP),
		}

		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return p.Run(gCtx)
		})

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			zap.L().Info("shutting down server")
			return srv.Shutdown(cmd.Context())
		})

		return g.Wait()
	},
}

func init() {
	monitorCmd.Flags().IntVar(&monitorPort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(monitorCmd)
}
