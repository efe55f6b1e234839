package model

import "time"

// InvoiceLookupResult records one ERP lookup for an invoice number the
// classifier detected. A non-match is a normal outcome, not an error.
type InvoiceLookupResult struct {
	InvoiceNumber string            `json:"invoice_number"`
	FoundInERP    bool              `json:"found_in_erp"`
	EpicorURL     string            `json:"epicor_url,omitempty"`
	InvoiceData   *ERPInvoiceRecord `json:"invoice_data,omitempty"`
}

// CommitOutcome is the result of the three-phase ERP commit workflow.
type CommitOutcome struct {
	Success        bool   `json:"success"`
	EpicorURL      string `json:"epicor_url,omitempty"`
	InvoiceNum     string `json:"invoice_num,omitempty"`
	VendorNum      int    `json:"vendor_num,omitempty"`
	LinesCommitted int    `json:"lines_committed"`
	LinesAttempted int    `json:"lines_attempted"`
	Error          string `json:"error,omitempty"`
}

// ProcessingResult is the aggregate record for one processed message.
// It is assembled exactly once by the pipeline, written to the ledger as the
// final step, and immutable thereafter.
type ProcessingResult struct {
	MessageID         string                `json:"message_id"`
	InternetMessageID string                `json:"internet_message_id,omitempty"`
	Subject           string                `json:"subject"`
	SenderName        string                `json:"sender_name"`
	SenderEmail       string                `json:"sender_email"`
	Category          Category              `json:"category"`
	Reason            string                `json:"reason"`
	HasInvoice        bool                  `json:"has_invoice"`
	InvoiceNumbers    []string              `json:"invoice_numbers"`
	EpicorLookups     []InvoiceLookupResult `json:"epicor_lookups"`
	Extracted         *ExtractedInvoice     `json:"extracted_invoice,omitempty"`
	VendorMatches     []VendorCandidate     `json:"vendor_matches,omitempty"`
	Commit            *CommitOutcome        `json:"commit,omitempty"`
	ProcessedAt       time.Time             `json:"processed_at"`
}
