package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/stoneage-tools/ap-inbox/internal/ledger"
	"github.com/stoneage-tools/ap-inbox/internal/pipeline"
	"github.com/stoneage-tools/ap-inbox/pkg/anthropic"
	"github.com/stoneage-tools/ap-inbox/pkg/epicor"
	"github.com/stoneage-tools/ap-inbox/pkg/outlook"
)

// appEnv bundles the wired clients for a command invocation.
type appEnv struct {
	Ledger   *ledger.SQLiteLedger
	Mail     outlook.Client
	ERP      epicor.Client
	Oracle   anthropic.Client
	Pipeline *pipeline.Pipeline
}

// initApp wires the ledger, the Graph, ERP, and oracle clients, and the
// pipeline from the loaded config.
func initApp(ctx context.Context) (*appEnv, error) {
	led, err := ledger.NewSQLite(cfg.Ledger.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open ledger")
	}
	if err := led.Migrate(ctx); err != nil {
		led.Close()
		return nil, eris.Wrap(err, "migrate ledger")
	}

	mail := outlook.NewClient(outlook.Credentials{
		TenantID:     cfg.Outlook.TenantID,
		ClientID:     cfg.Outlook.ClientID,
		ClientSecret: cfg.Outlook.ClientSecret,
		MailboxID:    cfg.Outlook.MailboxID,
		CCRecipient:  cfg.Outlook.CCRecipient,
	})

	erp := epicor.NewClient(epicor.Config{
		Server:         cfg.Epicor.Server,
		Instance:       cfg.Epicor.Instance,
		VendorInstance: cfg.Epicor.VendorInstance,
		APIKey:         cfg.Epicor.APIKey,
		Username:       cfg.Epicor.Username,
		Password:       cfg.Epicor.Password,
		Company:        cfg.Epicor.Company,
		ChannelID:      cfg.Epicor.ChannelID,
		RateLimit:      cfg.Epicor.RateLimit,
	})

	oracle := anthropic.NewClient(cfg.Anthropic.Key)

	return &appEnv{
		Ledger:   led,
		Mail:     mail,
		ERP:      erp,
		Oracle:   oracle,
		Pipeline: pipeline.New(oracle, erp, cfg.Anthropic, cfg.Pipeline),
	}, nil
}

func (e *appEnv) Close() {
	e.Ledger.Close()
}
