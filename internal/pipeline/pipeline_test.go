package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stoneage-tools/ap-inbox/internal/config"
	"github.com/stoneage-tools/ap-inbox/internal/model"
	"github.com/stoneage-tools/ap-inbox/pkg/anthropic"
	"github.com/stoneage-tools/ap-inbox/pkg/epicor"
)

// mockOracle implements anthropic.Client.
type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// mockERP implements epicor.Client.
type mockERP struct {
	mock.Mock
}

func (m *mockERP) LookupInvoice(ctx context.Context, invoiceNum string) (*model.InvoiceLookupResult, error) {
	args := m.Called(ctx, invoiceNum)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InvoiceLookupResult), args.Error(1)
}

func (m *mockERP) FetchVendors(ctx context.Context) ([]epicor.Vendor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]epicor.Vendor), args.Error(1)
}

func (m *mockERP) GetVendorData(ctx context.Context, vendorID string) (*epicor.Vendor, error) {
	args := m.Called(ctx, vendorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*epicor.Vendor), args.Error(1)
}

func (m *mockERP) CreateInvoice(ctx context.Context, req epicor.CreateInvoiceRequest) (*model.CommitOutcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CommitOutcome), args.Error(1)
}

func (m *mockERP) InvoiceURL(vendorNum int, invoiceNum string) string {
	args := m.Called(vendorNum, invoiceNum)
	return args.String(0)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

const classifyJSON = `{"category":"new_invoice","reason":"invoice attached","has_invoice":true,"invoice_numbers":["INV-9"]}`

const extractJSON = `{
	"vendor_name": "Acme Corporation", "vendor_name_confidence": 95,
	"invoice_number": "INV-9", "invoice_number_confidence": 98,
	"invoice_date": "11/03/2025", "invoice_date_confidence": 90,
	"invoice_total": 150.00, "invoice_total_confidence": 97,
	"line_items": [], "extraction_notes": ""
}`

func sampleMessage() model.InboundMessage {
	return model.InboundMessage{
		ID:                "msg-1",
		InternetMessageID: "<abc@acme.com>",
		SenderName:        "Acme Billing",
		SenderEmail:       "billing@acme.com",
		Subject:           "Invoice INV-9",
		Body:              "Please find invoice INV-9 attached.",
	}
}

func newTestPipeline(oracle *mockOracle, erp *mockERP, autoCommit bool) *Pipeline {
	return New(oracle, erp,
		config.AnthropicConfig{
			ClassifyModel: "claude-haiku-4-5-20251001",
			ExtractModel:  "claude-sonnet-4-5-20250929",
			MaxTokens:     4096,
		},
		config.PipelineConfig{
			AutoCommit:             autoCommit,
			CommitVendorConfidence: 90,
		},
	)
}

func TestProcessNewInvoiceWithoutAutoCommit(t *testing.T) {
	oracle := new(mockOracle)
	erp := new(mockERP)
	p := newTestPipeline(oracle, erp, false)

	oracle.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001"
	})).Return(textResponse(classifyJSON), nil).Once()
	oracle.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929"
	})).Return(textResponse(extractJSON), nil).Once()

	erp.On("LookupInvoice", mock.Anything, "INV-9").
		Return(&model.InvoiceLookupResult{InvoiceNumber: "INV-9"}, nil)
	erp.On("FetchVendors", mock.Anything).
		Return([]epicor.Vendor{{VendorID: "ACME01", Name: "Acme Corporation", VendorNum: 4217}}, nil)

	result := p.Process(context.Background(), sampleMessage(), nil)
	require.NotNil(t, result)
	assert.Equal(t, model.CategoryNewInvoice, result.Category)
	require.Len(t, result.EpicorLookups, 1)
	assert.False(t, result.EpicorLookups[0].FoundInERP)
	require.NotNil(t, result.Extracted)
	assert.Equal(t, "INV-9", result.Extracted.InvoiceNumber)
	require.NotEmpty(t, result.VendorMatches)
	assert.Equal(t, 100, result.VendorMatches[0].Confidence)
	assert.Nil(t, result.Commit, "auto-commit disabled")
	assert.False(t, result.ProcessedAt.IsZero())

	oracle.AssertExpectations(t)
	erp.AssertExpectations(t)
}

func TestProcessAutoCommitsConfidentMatch(t *testing.T) {
	oracle := new(mockOracle)
	erp := new(mockERP)
	p := newTestPipeline(oracle, erp, true)

	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(classifyJSON), nil).Once()
	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(extractJSON), nil).Once()

	erp.On("LookupInvoice", mock.Anything, "INV-9").
		Return(&model.InvoiceLookupResult{InvoiceNumber: "INV-9"}, nil)
	erp.On("FetchVendors", mock.Anything).
		Return([]epicor.Vendor{{VendorID: "ACME01", Name: "Acme Corporation", VendorNum: 4217}}, nil)
	erp.On("CreateInvoice", mock.Anything, mock.MatchedBy(func(req epicor.CreateInvoiceRequest) bool {
		return req.VendorID == "ACME01" && req.Invoice.InvoiceNumber == "INV-9"
	})).Return(&model.CommitOutcome{Success: true, InvoiceNum: "INV-9", VendorNum: 4217}, nil)

	result := p.Process(context.Background(), sampleMessage(), nil)
	require.NotNil(t, result.Commit)
	assert.True(t, result.Commit.Success)

	erp.AssertExpectations(t)
}

func TestProcessSkipsCommitWhenAlreadyInERP(t *testing.T) {
	oracle := new(mockOracle)
	erp := new(mockERP)
	p := newTestPipeline(oracle, erp, true)

	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(classifyJSON), nil).Once()
	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(extractJSON), nil).Once()

	erp.On("LookupInvoice", mock.Anything, "INV-9").
		Return(&model.InvoiceLookupResult{
			InvoiceNumber: "INV-9",
			FoundInERP:    true,
			EpicorURL:     "https://erp.example.com/tracker",
		}, nil)
	erp.On("FetchVendors", mock.Anything).
		Return([]epicor.Vendor{{VendorID: "ACME01", Name: "Acme Corporation", VendorNum: 4217}}, nil)

	result := p.Process(context.Background(), sampleMessage(), nil)
	assert.Nil(t, result.Commit)
	erp.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
}

func TestProcessSkipsCommitBelowConfidence(t *testing.T) {
	oracle := new(mockOracle)
	erp := new(mockERP)
	p := newTestPipeline(oracle, erp, true)

	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(classifyJSON), nil).Once()
	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(extractJSON), nil).Once()

	erp.On("LookupInvoice", mock.Anything, "INV-9").
		Return(&model.InvoiceLookupResult{InvoiceNumber: "INV-9"}, nil)
	erp.On("FetchVendors", mock.Anything).
		Return([]epicor.Vendor{{VendorID: "ZZZ", Name: "Zeta Zipline Zoo", VendorNum: 7}}, nil)

	result := p.Process(context.Background(), sampleMessage(), nil)
	assert.Nil(t, result.Commit)
	erp.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
}

func TestProcessOracleFailureDegradesToOther(t *testing.T) {
	oracle := new(mockOracle)
	erp := new(mockERP)
	p := newTestPipeline(oracle, erp, false)

	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()

	result := p.Process(context.Background(), sampleMessage(), nil)
	require.NotNil(t, result)
	assert.Equal(t, model.CategoryOther, result.Category)
	assert.Contains(t, result.Reason, "Error during classification")
	assert.Nil(t, result.Extracted)
}

func TestProcessLookupFailureRecordedAsNotFound(t *testing.T) {
	oracle := new(mockOracle)
	erp := new(mockERP)
	p := newTestPipeline(oracle, erp, false)

	cls := `{"category":"request_for_status","reason":"asks about payment","has_invoice":true,"invoice_numbers":["A1","A2"]}`
	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(cls), nil).Once()

	erp.On("LookupInvoice", mock.Anything, "A1").Return(nil, assert.AnError)
	erp.On("LookupInvoice", mock.Anything, "A2").
		Return(&model.InvoiceLookupResult{InvoiceNumber: "A2", FoundInERP: true}, nil)

	result := p.Process(context.Background(), sampleMessage(), nil)
	require.Len(t, result.EpicorLookups, 2)
	assert.False(t, result.EpicorLookups[0].FoundInERP)
	assert.Equal(t, "A1", result.EpicorLookups[0].InvoiceNumber)
	assert.True(t, result.EpicorLookups[1].FoundInERP)

	// Not a new invoice, so no extraction happens.
	assert.Nil(t, result.Extracted)
}

func TestProcessVendorDirectoryFailureDegrades(t *testing.T) {
	oracle := new(mockOracle)
	erp := new(mockERP)
	p := newTestPipeline(oracle, erp, true)

	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(classifyJSON), nil).Once()
	oracle.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(extractJSON), nil).Once()

	erp.On("LookupInvoice", mock.Anything, "INV-9").
		Return(&model.InvoiceLookupResult{InvoiceNumber: "INV-9"}, nil)
	erp.On("FetchVendors", mock.Anything).Return(nil, assert.AnError)

	result := p.Process(context.Background(), sampleMessage(), nil)
	require.NotNil(t, result.Extracted)
	assert.Empty(t, result.VendorMatches)
	assert.Nil(t, result.Commit)
}
