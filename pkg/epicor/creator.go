package epicor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stoneage-tools/ap-inbox/internal/model"
)

// CreateInvoiceRequest carries everything needed to commit one invoice:
// the confirmed vendor ID and the extracted invoice data.
type CreateInvoiceRequest struct {
	VendorID string
	Invoice  *model.ExtractedInvoice
}

const (
	groupService   = "Erp.BO.APInvGrpSvc"
	invoiceService = "Erp.BO.APInvoiceSvc"

	// Written into the header of every committed invoice.
	invoiceDescription = "This invoice was generated automatically by a brilliant AI assistant."

	maxInvoiceNumLen = 50
)

// CreateInvoice runs the three-phase commit workflow: invoice group, then
// header, then detail lines. Validation and vendor-not-found failures come
// back as an unsuccessful outcome rather than an error; line failures are
// independent and reported through the committed/attempted counts.
func (c *httpClient) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*model.CommitOutcome, error) {
	inv := req.Invoice
	if inv == nil {
		return &model.CommitOutcome{Error: "no invoice data"}, nil
	}

	var missing []string
	if req.VendorID == "" {
		missing = append(missing, "vendor_id")
	}
	if inv.InvoiceNumber == "" {
		missing = append(missing, "invoice_number")
	}
	if inv.InvoiceDate == "" {
		missing = append(missing, "invoice_date")
	}
	if inv.InvoiceTotal == 0 {
		missing = append(missing, "invoice_total")
	}
	if len(missing) > 0 {
		return &model.CommitOutcome{
			Error: "missing required fields: " + strings.Join(missing, ", "),
		}, nil
	}

	invoiceNum := inv.InvoiceNumber
	if len(invoiceNum) > maxInvoiceNumLen {
		invoiceNum = invoiceNum[:maxInvoiceNumLen]
	}

	vendor, err := c.GetVendorData(ctx, req.VendorID)
	if err != nil {
		return nil, err
	}
	if vendor == nil {
		return &model.CommitOutcome{
			Error: fmt.Sprintf("vendor %s not found in ERP", req.VendorID),
		}, nil
	}

	log := zap.S().With("invoice_num", invoiceNum, "vendor_id", req.VendorID, "vendor_num", vendor.VendorNum)

	groupID, err := c.createGroup(ctx)
	if err != nil {
		return &model.CommitOutcome{Error: "create invoice group: " + err.Error()}, nil
	}
	log.Infow("invoice group created", "group_id", groupID)

	if err := c.createHeader(ctx, groupID, invoiceNum, req.VendorID, vendor.TermsCode, inv); err != nil {
		return &model.CommitOutcome{Error: "create invoice header: " + err.Error()}, nil
	}
	log.Infow("invoice header created")

	committed, attempted := c.createLines(ctx, groupID, invoiceNum, vendor.VendorNum, inv.LineItems)
	log.Infow("invoice lines committed", "committed", committed, "attempted", attempted)

	return &model.CommitOutcome{
		Success:        true,
		EpicorURL:      c.InvoiceURL(vendor.VendorNum, invoiceNum),
		InvoiceNum:     invoiceNum,
		VendorNum:      vendor.VendorNum,
		LinesCommitted: committed,
		LinesAttempted: attempted,
	}, nil
}

// createGroup opens a new AP invoice group with a random ID and returns it.
// A duplicate-row rejection means the group already exists and is reusable.
func (c *httpClient) createGroup(ctx context.Context) (string, error) {
	status, body, err := c.postRaw(ctx, groupService+"/GetNewAPInvGrpNoLock", map[string]any{
		"ds": map[string]any{"APInvGrp": []any{}},
	})
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", statusError(status, body)
	}

	payload, err := templateParameters(body)
	if err != nil {
		return "", err
	}

	groupID := generateGroupID()
	row, ok := firstRow(payload, "APInvGrp")
	if !ok {
		return "", fmt.Errorf("group template has no APInvGrp row")
	}
	row["GroupID"] = groupID
	delete(row, "SysRevID")
	delete(row, "SysRowID")

	status, body, err = c.postRaw(ctx, groupService+"/Update", payload)
	if err != nil {
		return "", err
	}
	if !commitAccepted(status, body) {
		return "", statusError(status, body)
	}
	return groupID, nil
}

// createHeader creates the invoice header inside the group. A duplicate-row
// rejection means the header already exists from a prior partial run and the
// workflow proceeds to lines.
func (c *httpClient) createHeader(ctx context.Context, groupID, invoiceNum, vendorID, termsCode string, inv *model.ExtractedInvoice) error {
	status, body, err := c.postRaw(ctx, invoiceService+"/GetNewAPInvHedInvoice", map[string]any{
		"cGroupID": groupID,
		"ds":       map[string]any{},
	})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return statusError(status, body)
	}

	payload, err := templateParameters(body)
	if err != nil {
		return err
	}
	hed, ok := firstRow(payload, "APInvHed")
	if !ok {
		return fmt.Errorf("header template has no APInvHed row")
	}
	hed["InvoiceNum"] = invoiceNum
	hed["InvoiceDate"] = formatInvoiceDate(inv.InvoiceDate)
	hed["ScrDocInvoiceVendorAmt"] = inv.InvoiceTotal
	hed["VendorNumVendorID"] = vendorID
	hed["TermsCode"] = termsCode
	hed["Description"] = invoiceDescription

	status, body, err = c.postRaw(ctx, invoiceService+"/Update", payload)
	if err != nil {
		return err
	}
	if !commitAccepted(status, body) {
		return statusError(status, body)
	}
	return nil
}

// createLines adds one miscellaneous detail line per extracted line item.
// Line numbers are 1-based and contiguous. Each line succeeds or fails on
// its own; a failed line never aborts the rest.
func (c *httpClient) createLines(ctx context.Context, groupID, invoiceNum string, vendorNum int, lines []model.LineItem) (committed, attempted int) {
	for i, line := range lines {
		attempted++
		if err := c.createLine(ctx, groupID, invoiceNum, vendorNum, i+1, line); err != nil {
			zap.S().Warnw("invoice line failed",
				"invoice_num", invoiceNum,
				"line", i+1,
				"error", err,
			)
			continue
		}
		committed++
	}
	return committed, attempted
}

func (c *httpClient) createLine(ctx context.Context, groupID, invoiceNum string, vendorNum, lineNum int, line model.LineItem) error {
	status, body, err := c.postRaw(ctx, invoiceService+"/GetNewAPInvDtlMiscellaneous", map[string]any{
		"cInvoiceNum": invoiceNum,
		"iVendorNum":  vendorNum,
		"ds":          map[string]any{},
	})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return statusError(status, body)
	}

	payload, err := templateParameters(body)
	if err != nil {
		return err
	}
	dtl, ok := firstRow(payload, "APInvDtl")
	if !ok {
		return fmt.Errorf("line template has no APInvDtl row")
	}
	dtl["InvoiceLine"] = lineNum
	dtl["PartNum"] = line.PartNumber
	dtl["Description"] = line.Description
	dtl["ScrVendorQty"] = line.Quantity
	dtl["DocUnitCost"] = line.UnitPrice
	dtl["ScrDocExtCost"] = line.ExtendedCost()

	payload["cGroupID"] = groupID
	payload["cTableName"] = "APInvDtl"
	payload["runChkBankRef"] = false
	payload["runChkCPay"] = false
	payload["runChkRevChrg"] = false
	payload["suppressUserPrompts"] = false

	status, body, err = c.postRaw(ctx, invoiceService+"/UpdateMaster", payload)
	if err != nil {
		return err
	}
	if !commitAccepted(status, body) {
		return statusError(status, body)
	}
	return nil
}

// commitAccepted treats a duplicate-row rejection as success: the record
// already exists, which is exactly the state the workflow wants.
func commitAccepted(status int, body []byte) bool {
	if status >= 200 && status < 300 {
		return true
	}
	return strings.Contains(strings.ToLower(string(body)), "duplicate")
}

const groupIDChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateGroupID returns an 8-character uppercase alphanumeric group ID.
func generateGroupID() string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = groupIDChars[rand.IntN(len(groupIDChars))]
	}
	return string(b)
}

// formatInvoiceDate normalizes an extracted date to yyyy-mm-dd. Slash dates
// are read as US month-first, dash dates as ISO. Anything unparseable falls
// back to today.
func formatInvoiceDate(raw string) string {
	raw = strings.TrimSpace(raw)
	layouts := []string{}
	switch {
	case strings.Contains(raw, "/"):
		layouts = append(layouts, "01/02/2006", "1/2/2006")
	case strings.Contains(raw, "-"):
		layouts = append(layouts, "2006-01-02")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return time.Now().Format("2006-01-02")
}
