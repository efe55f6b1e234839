package epicor

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Vendor is one row of the ERP vendor master.
type Vendor struct {
	VendorID  string `json:"VendorID"`
	Name      string `json:"Name"`
	VendorNum int    `json:"VendorNum"`
	TermsCode string `json:"TermsCode"`
}

const vendorsEndpoint = "Erp.BO.VendorSvc/Vendors"

// GetVendorData looks up a single vendor by its ID and returns its internal
// number and payment terms. Returns nil when no vendor matches.
func (c *httpClient) GetVendorData(ctx context.Context, vendorID string) (*Vendor, error) {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("Company eq '%s' and VendorID eq '%s'", c.cfg.Company, escapeODataString(vendorID)))
	params.Set("$select", "VendorNum, TermsCode")

	var out struct {
		Value []Vendor `json:"value"`
	}
	if err := c.getJSON(ctx, "", vendorsEndpoint, params, "get_vendor_data", &out); err != nil {
		return nil, eris.Wrapf(err, "epicor: get vendor %s", vendorID)
	}
	if len(out.Value) == 0 {
		return nil, nil
	}
	v := out.Value[0]
	v.VendorID = vendorID
	return &v, nil
}

// FetchVendors pulls the full vendor directory used for fuzzy name matching.
// Reads go against the vendor instance, which may differ from the commit
// instance.
func (c *httpClient) FetchVendors(ctx context.Context) ([]Vendor, error) {
	params := url.Values{}
	params.Set("$select", "VendorID, Name, VendorNum")
	params.Set("$top", "10000")

	var out struct {
		Value []Vendor `json:"value"`
	}
	if err := c.getJSON(ctx, c.cfg.VendorInstance, vendorsEndpoint, params, "fetch_vendors", &out); err != nil {
		return nil, eris.Wrap(err, "epicor: fetch vendors")
	}
	return out.Value, nil
}

// escapeODataString doubles single quotes per the OData literal rules.
func escapeODataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
