package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stoneage-tools/ap-inbox/internal/config"
	"github.com/stoneage-tools/ap-inbox/internal/model"
	"github.com/stoneage-tools/ap-inbox/pkg/anthropic"
	"github.com/stoneage-tools/ap-inbox/pkg/epicor"
)

// Pipeline processes one message at a time: classify, look up detected
// invoice numbers, extract, match vendors, and optionally commit.
type Pipeline struct {
	oracle anthropic.Client
	erp    epicor.Client
	aiCfg  config.AnthropicConfig
	cfg    config.PipelineConfig
}

// New creates a message processing pipeline.
func New(oracle anthropic.Client, erp epicor.Client, aiCfg config.AnthropicConfig, cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{
		oracle: oracle,
		erp:    erp,
		aiCfg:  aiCfg,
		cfg:    cfg,
	}
}

// Process runs the full pipeline for one message and returns the result to
// persist. It degrades rather than fails: oracle and ERP problems are
// recorded in the result, and an error comes back only when nothing useful
// could be produced at all.
func (p *Pipeline) Process(ctx context.Context, msg model.InboundMessage, atts []model.Attachment) *model.ProcessingResult {
	log := zap.S().With("message_id", msg.ID, "subject", msg.Subject)

	cls := p.classify(ctx, msg, atts)
	log.Infow("message classified",
		"category", cls.Category,
		"has_invoice", cls.HasInvoice,
		"invoice_numbers", cls.InvoiceNumbers,
	)

	result := &model.ProcessingResult{
		MessageID:         msg.ID,
		InternetMessageID: msg.InternetMessageID,
		Subject:           msg.Subject,
		SenderName:        msg.SenderName,
		SenderEmail:       msg.SenderEmail,
		Category:          cls.Category,
		Reason:            cls.Reason,
		HasInvoice:        cls.HasInvoice,
		InvoiceNumbers:    cls.InvoiceNumbers,
		ProcessedAt:       time.Now().UTC(),
	}

	// Check every detected invoice number against the ERP. A lookup error
	// is recorded as not-found so the result always covers all numbers.
	for _, num := range cls.InvoiceNumbers {
		lookup, err := p.erp.LookupInvoice(ctx, num)
		if err != nil {
			log.Warnw("invoice lookup failed", "invoice_num", num, "error", err)
			lookup = &model.InvoiceLookupResult{InvoiceNumber: num}
		}
		result.EpicorLookups = append(result.EpicorLookups, *lookup)
	}

	if cls.Category != model.CategoryNewInvoice {
		return result
	}

	result.Extracted = p.extract(ctx, msg, atts)
	if result.Extracted == nil {
		log.Warnw("extraction produced no invoice data")
		return result
	}

	result.VendorMatches = p.resolveVendor(ctx, result.Extracted.VendorName)
	log.Infow("vendor candidates resolved", "count", len(result.VendorMatches))

	if p.shouldCommit(result) {
		outcome, err := p.erp.CreateInvoice(ctx, epicor.CreateInvoiceRequest{
			VendorID: result.VendorMatches[0].VendorID,
			Invoice:  result.Extracted,
		})
		if err != nil {
			log.Errorw("invoice commit failed", "error", err)
			outcome = &model.CommitOutcome{Error: err.Error()}
		}
		result.Commit = outcome
	}

	return result
}

// shouldCommit gates the automatic commit: it must be enabled, the invoice
// must not already exist in the ERP, and the best vendor match must clear
// the configured confidence bar.
func (p *Pipeline) shouldCommit(result *model.ProcessingResult) bool {
	if !p.cfg.AutoCommit || result.Extracted == nil || len(result.VendorMatches) == 0 {
		return false
	}
	if result.VendorMatches[0].Confidence < p.cfg.CommitVendorConfidence {
		return false
	}
	for _, lookup := range result.EpicorLookups {
		if lookup.FoundInERP && lookup.InvoiceNumber == result.Extracted.InvoiceNumber {
			return false
		}
	}
	return true
}
