package outlook

import (
	"strings"

	"go.uber.org/zap"

	"github.com/stoneage-tools/ap-inbox/internal/model"
)

// graphAttachment covers both fileAttachment and itemAttachment shapes.
type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
	Item         *struct {
		Subject string `json:"subject"`
		Sender  struct {
			EmailAddress struct {
				Address string `json:"address"`
			} `json:"emailAddress"`
		} `json:"sender"`
		Body struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
	} `json:"item"`
}

// normalizeAttachments converts raw Graph attachments into the pipeline's
// model. Images and files carry base64 payloads; item attachments carry the
// embedded message's sender, subject, and body. Attachments with no payload
// at all are skipped.
func normalizeAttachments(raw []graphAttachment) []model.Attachment {
	out := make([]model.Attachment, 0, len(raw))
	for _, a := range raw {
		att, ok := normalizeAttachment(a)
		if !ok {
			zap.S().Debugw("skipping attachment with no content", "name", a.Name, "type", a.ODataType)
			continue
		}
		out = append(out, att)
	}
	return out
}

func normalizeAttachment(a graphAttachment) (model.Attachment, bool) {
	if a.ODataType == "#microsoft.graph.itemAttachment" {
		att := model.Attachment{
			Type:     model.AttachmentMsg,
			Filename: a.Name,
			MimeType: a.ContentType,
		}
		if a.Item != nil {
			body := a.Item.Body.Content
			if strings.EqualFold(a.Item.Body.ContentType, "html") {
				body = CleanBody(body)
			}
			att.Parsed = &model.EmbeddedMail{
				Sender:  a.Item.Sender.EmailAddress.Address,
				Subject: a.Item.Subject,
				Body:    body,
			}
		}
		return att, true
	}

	if a.ContentBytes == "" {
		return model.Attachment{}, false
	}

	att := model.Attachment{
		Filename:   a.Name,
		MimeType:   a.ContentType,
		Base64Data: a.ContentBytes,
	}
	lower := strings.ToLower(a.Name)
	switch {
	case isImage(a.ContentType, lower):
		att.Type = model.AttachmentImage
	case strings.HasSuffix(lower, ".msg"):
		// Raw Outlook .msg file. Kept as-is; the classifier works from
		// the covering message when no parsed content is available.
		att.Type = model.AttachmentMsg
	default:
		att.Type = model.AttachmentFile
	}
	return att, true
}

func isImage(mimeType, lowerName string) bool {
	switch mimeType {
	case "image/png", "image/jpeg":
		return true
	}
	return strings.HasSuffix(lowerName, ".png") ||
		strings.HasSuffix(lowerName, ".jpg") ||
		strings.HasSuffix(lowerName, ".jpeg")
}
