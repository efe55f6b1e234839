package model

// Confidence scores use a three-band interpretation: 90-100 the value is
// explicitly stated in the source, 70-89 it was inferred from context,
// 0-69 it is a guess.

// LineItem is a single extracted invoice line.
type LineItem struct {
	PartNumber  string  `json:"part_number,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total,omitempty"`
	Confidence  int     `json:"confidence"`
}

// ExtendedCost returns the line total as provided, or quantity x unit price
// when the source did not state one.
func (li LineItem) ExtendedCost() float64 {
	if li.LineTotal != 0 {
		return li.LineTotal
	}
	return li.Quantity * li.UnitPrice
}

// ExtractedInvoice is the structured invoice data pulled by the oracle.
// Numeric values are carried exactly as read, never recomputed.
type ExtractedInvoice struct {
	VendorName            string     `json:"vendor_name"`
	VendorNameConfidence  int        `json:"vendor_name_confidence"`
	InvoiceNumber         string     `json:"invoice_number"`
	InvoiceNumConfidence  int        `json:"invoice_number_confidence"`
	InvoiceDate           string     `json:"invoice_date"`
	InvoiceDateConfidence int        `json:"invoice_date_confidence"`
	InvoiceTotal          float64    `json:"invoice_total"`
	InvoiceTotConfidence  int        `json:"invoice_total_confidence"`
	LineItems             []LineItem `json:"line_items"`
	ExtractionNotes       string     `json:"extraction_notes"`
}

// VendorCandidate is a fuzzy-match candidate from the vendor registry.
type VendorCandidate struct {
	VendorID   string `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
	VendorNum  int    `json:"vendor_num"`
	Confidence int    `json:"confidence"`
}

// ERPInvoiceRecord is a read-only snapshot of an existing ERP invoice.
type ERPInvoiceRecord struct {
	VendorName    string  `json:"vendor_name,omitempty"`
	VendorEmail   string  `json:"vendor_email,omitempty"`
	InvoiceAmt    float64 `json:"invoice_amt"`
	InvoiceBal    float64 `json:"invoice_bal"`
	PaymentStatus string  `json:"payment_status,omitempty"`
	OpenPayable   bool    `json:"open_payable"`
}
