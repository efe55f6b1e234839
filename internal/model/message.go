package model

import (
	"strings"
	"time"
)

// InboundMessage is a single mailbox message as fetched from the Graph API.
// The mailbox owns these; the pipeline treats them as read-only input.
type InboundMessage struct {
	ID                string    `json:"id"`
	InternetMessageID string    `json:"internet_message_id"`
	SenderEmail       string    `json:"sender_email"`
	SenderName        string    `json:"sender_name"`
	Subject           string    `json:"subject"`
	Body              string    `json:"body"`
	IsRead            bool      `json:"is_read"`
	HasAttachments    bool      `json:"has_attachments"`
	ReceivedAt        time.Time `json:"received_at"`
}

// AttachmentType distinguishes the attachment variants the pipeline handles.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
	AttachmentMsg   AttachmentType = "msg"
)

// Attachment is a normalized mail attachment. For embedded messages
// (AttachmentMsg) the Parsed block carries best-effort sender/subject/body.
type Attachment struct {
	Type       AttachmentType `json:"type"`
	Filename   string         `json:"filename"`
	MimeType   string         `json:"mime_type"`
	Base64Data string         `json:"base64_data,omitempty"`
	Parsed     *EmbeddedMail  `json:"parsed,omitempty"`
}

// EmbeddedMail holds the fields recovered from an embedded message attachment.
type EmbeddedMail struct {
	Sender  string `json:"sender,omitempty"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// IsPDF reports whether the attachment should be forwarded to the oracle
// as a document block.
func (a Attachment) IsPDF() bool {
	return a.MimeType == "application/pdf" ||
		strings.HasSuffix(strings.ToLower(a.Filename), ".pdf")
}
