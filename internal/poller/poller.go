// Package poller drives the mailbox loop: every interval it lists unread
// mail, runs each new message through the pipeline, persists the result,
// and labels the message in the mailbox.
package poller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stoneage-tools/ap-inbox/internal/config"
	"github.com/stoneage-tools/ap-inbox/internal/ledger"
	"github.com/stoneage-tools/ap-inbox/internal/model"
	"github.com/stoneage-tools/ap-inbox/internal/resilience"
	"github.com/stoneage-tools/ap-inbox/pkg/outlook"
)

// Processor runs the per-message pipeline.
type Processor interface {
	Process(ctx context.Context, msg model.InboundMessage, atts []model.Attachment) *model.ProcessingResult
}

// Poller polls the mailbox and feeds new messages through the pipeline.
type Poller struct {
	mail     outlook.Client
	proc     Processor
	ledger   ledger.Ledger
	folder   string
	interval time.Duration
	pageSize int
}

// New creates a poller.
func New(mail outlook.Client, proc Processor, led ledger.Ledger, outlookCfg config.OutlookConfig, pollCfg config.PollConfig) *Poller {
	interval := time.Duration(pollCfg.IntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	pageSize := pollCfg.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	folder := outlookCfg.Folder
	if folder == "" {
		folder = "inbox"
	}
	return &Poller{
		mail:     mail,
		proc:     proc,
		ledger:   led,
		folder:   folder,
		interval: interval,
		pageSize: pageSize,
	}
}

// Run ticks immediately and then on every interval until the context is
// canceled. A failed tick is logged and retried next interval; the loop
// itself never dies.
func (p *Poller) Run(ctx context.Context) error {
	zap.L().Info("poller started",
		zap.String("folder", p.folder),
		zap.Duration("interval", p.interval),
		zap.Int("page_size", p.pageSize),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			level := zap.ErrorLevel
			if resilience.IsAuth(err) || resilience.IsTransient(err) {
				level = zap.WarnLevel
			}
			zap.L().Log(level, "tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			zap.L().Info("poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick processes one batch of unread messages. The first error that is not
// recoverable per-message aborts the tick; untouched messages stay unread
// and are picked up next interval.
func (p *Poller) Tick(ctx context.Context) error {
	tickID := uuid.NewString()[:8]
	log := zap.S().With("tick_id", tickID)

	msgs, err := p.mail.ListUnread(ctx, p.folder, p.pageSize)
	if err != nil {
		return eris.Wrap(err, "poller: list unread")
	}
	if len(msgs) == 0 {
		log.Debugw("no unread messages")
		return nil
	}
	log.Infow("unread messages fetched", "count", len(msgs))

	for _, msg := range msgs {
		seen, err := p.ledger.Has(ctx, msg.ID)
		if err != nil {
			return eris.Wrapf(err, "poller: dedup check %s", msg.ID)
		}
		if seen {
			log.Debugw("message already processed", "message_id", msg.ID)
			continue
		}

		if err := p.processOne(ctx, log, msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poller) processOne(ctx context.Context, log *zap.SugaredLogger, msg model.InboundMessage) error {
	var atts []model.Attachment
	if msg.HasAttachments {
		var err error
		atts, err = p.mail.GetAttachments(ctx, msg.ID)
		if err != nil {
			// Classification still works from subject and body alone.
			log.Warnw("attachment fetch failed, processing without",
				"message_id", msg.ID, "error", err)
			atts = nil
		}
	}

	result := p.proc.Process(ctx, msg, atts)

	// Persist before touching the mailbox: an unsaved result must stay
	// unread so the message is reprocessed next tick.
	if err := p.ledger.Put(ctx, result); err != nil {
		return eris.Wrapf(err, "poller: save result %s", msg.ID)
	}

	if err := p.mail.ApplyCategory(ctx, msg.ID, result.Category); err != nil {
		log.Warnw("label apply failed", "message_id", msg.ID, "error", err)
	}
	if err := p.mail.MarkRead(ctx, msg.ID, true); err != nil {
		log.Warnw("mark read failed", "message_id", msg.ID, "error", err)
	}

	log.Infow("message processed",
		"message_id", msg.ID,
		"category", result.Category,
		"committed", result.Commit != nil && result.Commit.Success,
	)
	return nil
}
