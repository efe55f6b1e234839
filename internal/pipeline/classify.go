// Package pipeline turns one mailbox message into a persisted processing
// result: classification, ERP lookups, invoice extraction, vendor matching,
// and the optional auto-commit.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/stoneage-tools/ap-inbox/internal/model"
	"github.com/stoneage-tools/ap-inbox/pkg/anthropic"
)

const classifySystemPrompt = `You are an accounts payable mail triage assistant. Classify each email into exactly one of these categories:

- new_invoice: the email delivers a new invoice to be entered, usually as a PDF attachment
- supplier_statement: a statement of account listing multiple invoices and balances
- request_for_status: the sender asks about the payment status of an invoice
- account_update: the vendor announces changed remittance, banking, or contact details
- misc_spam: marketing, newsletters, or anything with no AP relevance
- other: anything that does not fit the categories above

Also detect invoice numbers. An invoice number is the vendor's own identifier for an invoice, typically alphanumeric. Collect every invoice number mentioned in the subject, body, or attached documents. Do not invent numbers; an empty list is correct when none appear.

Respond with a valid JSON object and nothing else:
{"category": "<category>", "reason": "<one sentence>", "has_invoice": <true|false>, "invoice_numbers": ["<number>", ...]}`

const classifyUserPrompt = `From: %s <%s>
Subject: %s

%s

%s`

// classifyBodyLimit caps how much of the body is sent for classification.
const classifyBodyLimit = 2000

// classify categorizes a message, forwarding PDF attachments as document
// blocks. Oracle failures never abort processing: the message falls back to
// the other category with the error recorded as the reason.
func (p *Pipeline) classify(ctx context.Context, msg model.InboundMessage, atts []model.Attachment) model.Classification {
	parts := []anthropic.ContentPart{anthropic.TextPart(buildClassifyPrompt(msg, atts))}
	for _, a := range atts {
		if a.IsPDF() && a.Base64Data != "" {
			parts = append(parts, anthropic.PDFPart(a.Base64Data))
		}
	}

	resp, err := p.oracle.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.aiCfg.ClassifyModel,
		MaxTokens: p.aiCfg.MaxTokens,
		System: []anthropic.SystemBlock{
			{Text: classifySystemPrompt, CacheControl: &anthropic.CacheControl{}},
		},
		Messages: []anthropic.Message{anthropic.UserMessage(parts...)},
	})
	if err != nil {
		zap.L().Warn("classify: oracle call failed",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return model.Classification{
			Category:       model.CategoryOther,
			Reason:         fmt.Sprintf("Error during classification: %v", err),
			InvoiceNumbers: []string{},
		}
	}

	resp.Usage.LogCost(p.aiCfg.ClassifyModel, "classify")
	return parseClassification(resp.Text())
}

func buildClassifyPrompt(msg model.InboundMessage, atts []model.Attachment) string {
	return fmt.Sprintf(classifyUserPrompt,
		msg.SenderName, msg.SenderEmail, msg.Subject,
		truncateBody(msg.Body, classifyBodyLimit), attachmentNote(atts))
}

// truncateBody caps the body at limit bytes without splitting a multibyte
// rune, appending a marker when anything was dropped.
func truncateBody(body string, limit int) string {
	if len(body) <= limit {
		return body
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "\n[Body truncated for length]"
}

// attachmentNote summarizes the attachment mix so the oracle knows what it
// was and was not given.
func attachmentNote(atts []model.Attachment) string {
	var pdfs, images int
	var embedded []string
	for _, a := range atts {
		switch {
		case a.IsPDF():
			pdfs++
		case a.Type == model.AttachmentImage:
			images++
		case a.Type == model.AttachmentMsg && a.Parsed != nil:
			embedded = append(embedded, fmt.Sprintf(
				"Embedded message from %s, subject %q:\n%s",
				a.Parsed.Sender, a.Parsed.Subject, a.Parsed.Body))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Attachments:** %d PDF(s), %d image(s)", pdfs, images)
	for _, e := range embedded {
		b.WriteString("\n\n")
		b.WriteString(e)
	}
	return b.String()
}

func parseClassification(text string) model.Classification {
	text = cleanJSON(text)

	var result struct {
		Category       string   `json:"category"`
		Reason         string   `json:"reason"`
		HasInvoice     bool     `json:"has_invoice"`
		InvoiceNumbers []string `json:"invoice_numbers"`
	}
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return model.Classification{
			Category:       model.CategoryOther,
			Reason:         "Could not parse classification response",
			InvoiceNumbers: []string{},
		}
	}

	category := model.Category(strings.ToLower(result.Category))
	if !model.ValidCategory(category) {
		category = model.CategoryOther
	}

	if result.InvoiceNumbers == nil {
		result.InvoiceNumbers = []string{}
	}

	return model.Classification{
		Category:       category,
		Reason:         result.Reason,
		HasInvoice:     result.HasInvoice,
		InvoiceNumbers: result.InvoiceNumbers,
	}
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
