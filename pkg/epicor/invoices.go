package epicor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stoneage-tools/ap-inbox/internal/model"
)

// invoiceBAQEndpoint is the business activity query joining AP invoice
// headers with vendor data and a calculated payment status.
const invoiceBAQEndpoint = "BaqSvc/APInvDtl/Data"

// LookupInvoice checks whether an invoice number already exists in the ERP.
// A missing invoice is a normal outcome, not an error: the result comes back
// with FoundInERP false and no detail data. A response body the BAQ query
// should never produce, like an HTML gateway page, is logged and treated the
// same way.
func (c *httpClient) LookupInvoice(ctx context.Context, invoiceNum string) (*model.InvoiceLookupResult, error) {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("APInvHed_InvoiceNum eq '%s'", escapeODataString(invoiceNum)))

	data, err := c.getBody(ctx, "", invoiceBAQEndpoint, params, "lookup_invoice")
	if err != nil {
		return nil, eris.Wrapf(err, "epicor: lookup invoice %s", invoiceNum)
	}

	result := &model.InvoiceLookupResult{InvoiceNumber: invoiceNum}

	var out struct {
		Value []struct {
			VendorNum     int     `json:"APInvHed_VendorNum"`
			VendorName    string  `json:"Vendor_Name"`
			VendorEmail   string  `json:"Vendor_EMailAddress"`
			InvoiceAmt    float64 `json:"APInvHed_DocInvoiceAmt"`
			InvoiceBal    float64 `json:"APInvHed_DocInvoiceBal"`
			PaymentStatus string  `json:"Calculated_PaymentStatus"`
			OpenPayable   bool    `json:"APInvHed_OpenPayable"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		zap.S().Warnw("unreadable invoice lookup response, treating as not found",
			"invoice_num", invoiceNum, "error", err)
		return result, nil
	}
	if len(out.Value) == 0 {
		zap.S().Debugw("invoice not found in ERP", "invoice_num", invoiceNum)
		return result, nil
	}

	row := out.Value[0]
	result.FoundInERP = true
	result.EpicorURL = c.InvoiceURL(row.VendorNum, invoiceNum)
	result.InvoiceData = &model.ERPInvoiceRecord{
		VendorName:    row.VendorName,
		VendorEmail:   row.VendorEmail,
		InvoiceAmt:    row.InvoiceAmt,
		InvoiceBal:    row.InvoiceBal,
		PaymentStatus: row.PaymentStatus,
		OpenPayable:   row.OpenPayable,
	}
	return result, nil
}

// InvoiceURL builds a deep link into the AP Invoice Tracker for the given
// invoice. The link opens the Details page directly.
func (c *httpClient) InvoiceURL(vendorNum int, invoiceNum string) string {
	return fmt.Sprintf(
		"https://%s/%s/Apps/ERP/Home/#/view/APGO1070/Erp.UI.APInvoiceTracker"+
			"?channelid=%s&layerVersion=0&baseAppVersion=0&company=%s&site=MfgSys"+
			"&pageId=Details&KeyFields.VendorNum=%d&KeyFields.InvoiceNum=%s&pageChanged=true",
		c.cfg.Server, c.cfg.Instance, c.cfg.ChannelID, c.cfg.Company, vendorNum, invoiceNum,
	)
}
