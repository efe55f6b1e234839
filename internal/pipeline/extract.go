package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/stoneage-tools/ap-inbox/internal/model"
	"github.com/stoneage-tools/ap-inbox/pkg/anthropic"
)

const extractSystemPrompt = `You extract structured invoice data for accounts payable entry. Read the email and any attached documents and pull out the invoice fields exactly as written. Never recompute or correct numbers; copy them as they appear.

Score every field with a confidence from 0 to 100:
- 90-100: the value is explicitly stated in the document
- 70-89: the value was inferred from context
- 0-69: the value is a guess

List each line item with its description, quantity, unit price, and line total when shown. If the document shows only a total with no line detail, return an empty line_items array.

Respond with a valid JSON object and nothing else:
{
  "vendor_name": "", "vendor_name_confidence": 0,
  "invoice_number": "", "invoice_number_confidence": 0,
  "invoice_date": "", "invoice_date_confidence": 0,
  "invoice_total": 0, "invoice_total_confidence": 0,
  "line_items": [{"part_number": "", "description": "", "quantity": 0, "unit_price": 0, "line_total": 0, "confidence": 0}],
  "extraction_notes": ""
}`

// extractBodyLimit caps how much of the body is sent for extraction. Larger
// than the classify cap because amounts often sit deep in forwarded threads.
const extractBodyLimit = 3000

// extract pulls structured invoice data from a message. PDFs go along as
// documents and images as image blocks. Returns nil when the oracle fails
// or returns something unparseable; the caller records the message without
// extracted data.
func (p *Pipeline) extract(ctx context.Context, msg model.InboundMessage, atts []model.Attachment) *model.ExtractedInvoice {
	parts := []anthropic.ContentPart{anthropic.TextPart(fmt.Sprintf(
		"From: %s <%s>\nSubject: %s\n\n%s",
		msg.SenderName, msg.SenderEmail, msg.Subject,
		truncateBody(msg.Body, extractBodyLimit)))}
	for _, a := range atts {
		switch {
		case a.IsPDF() && a.Base64Data != "":
			parts = append(parts, anthropic.PDFPart(a.Base64Data))
		case a.Type == model.AttachmentImage && a.Base64Data != "":
			parts = append(parts, anthropic.ImagePart(a.MimeType, a.Base64Data))
		}
	}

	resp, err := p.oracle.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.aiCfg.ExtractModel,
		MaxTokens: p.aiCfg.MaxTokens,
		System: []anthropic.SystemBlock{
			{Text: extractSystemPrompt, CacheControl: &anthropic.CacheControl{}},
		},
		Messages: []anthropic.Message{anthropic.UserMessage(parts...)},
	})
	if err != nil {
		zap.L().Warn("extract: oracle call failed",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return nil
	}

	resp.Usage.LogCost(p.aiCfg.ExtractModel, "extract")
	return parseExtraction(resp.Text())
}

func parseExtraction(text string) *model.ExtractedInvoice {
	text = cleanJSON(text)

	var inv model.ExtractedInvoice
	if err := json.Unmarshal([]byte(text), &inv); err != nil {
		zap.L().Warn("extract: unparseable oracle response", zap.Error(err))
		return nil
	}

	// An invoice with a total but no line detail still needs one committable
	// line, so synthesize a single line carrying the full amount.
	if len(inv.LineItems) == 0 && inv.InvoiceTotal != 0 {
		inv.LineItems = []model.LineItem{{
			Description: "Invoice Total",
			Quantity:    1,
			UnitPrice:   inv.InvoiceTotal,
			LineTotal:   inv.InvoiceTotal,
			Confidence:  inv.InvoiceTotConfidence,
		}}
	}

	return &inv
}
