package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoneage-tools/ap-inbox/internal/model"
)

func TestParseExtraction(t *testing.T) {
	text := `{
		"vendor_name": "Acme Corporation", "vendor_name_confidence": 95,
		"invoice_number": "INV-2025-001", "invoice_number_confidence": 98,
		"invoice_date": "11/03/2025", "invoice_date_confidence": 90,
		"invoice_total": 150.00, "invoice_total_confidence": 97,
		"line_items": [
			{"description": "Widgets", "quantity": 2, "unit_price": 50.00, "confidence": 92},
			{"description": "Freight", "quantity": 1, "unit_price": 50.00, "line_total": 50.00, "confidence": 88}
		],
		"extraction_notes": ""
	}`

	inv := parseExtraction(text)
	require.NotNil(t, inv)
	assert.Equal(t, "Acme Corporation", inv.VendorName)
	assert.Equal(t, "INV-2025-001", inv.InvoiceNumber)
	assert.Equal(t, 150.00, inv.InvoiceTotal)
	require.Len(t, inv.LineItems, 2)

	// A stated line total wins; a missing one is derived.
	assert.Equal(t, 100.00, inv.LineItems[0].ExtendedCost())
	assert.Equal(t, 50.00, inv.LineItems[1].ExtendedCost())
}

func TestParseExtractionSynthesizesTotalLine(t *testing.T) {
	text := `{
		"vendor_name": "Globex Inc", "vendor_name_confidence": 90,
		"invoice_number": "G-77", "invoice_number_confidence": 95,
		"invoice_date": "2025-11-03", "invoice_date_confidence": 95,
		"invoice_total": 423.50, "invoice_total_confidence": 85,
		"line_items": [],
		"extraction_notes": "summary invoice, no line detail"
	}`

	inv := parseExtraction(text)
	require.NotNil(t, inv)
	require.Len(t, inv.LineItems, 1)

	line := inv.LineItems[0]
	assert.Equal(t, "Invoice Total", line.Description)
	assert.Equal(t, 1.0, line.Quantity)
	assert.Equal(t, 423.50, line.UnitPrice)
	assert.Equal(t, 423.50, line.ExtendedCost())
	assert.Equal(t, 85, line.Confidence)
}

func TestParseExtractionNoSyntheticLineWithoutTotal(t *testing.T) {
	inv := parseExtraction(`{"vendor_name":"Acme","invoice_total":0,"line_items":[]}`)
	require.NotNil(t, inv)
	assert.Empty(t, inv.LineItems)
}

func TestParseExtractionGarbage(t *testing.T) {
	assert.Nil(t, parseExtraction("I could not find an invoice in this email."))
}

func TestExtendedCostPrefersStatedTotal(t *testing.T) {
	li := model.LineItem{Quantity: 3, UnitPrice: 10, LineTotal: 29.5}
	assert.Equal(t, 29.5, li.ExtendedCost())
}
