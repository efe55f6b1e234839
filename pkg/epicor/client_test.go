package epicor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoneage-tools/ap-inbox/internal/resilience"
)

func testConfig() Config {
	return Config{
		Server:         "erp.example.com",
		Instance:       "KineticPilot",
		VendorInstance: "KineticLive",
		APIKey:         "test-key",
		Username:       "svc-ap",
		Password:       "secret",
		Company:        "SAINC",
		ChannelID:      "chan123",
		RateLimit:      1000,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(testConfig(), WithBaseURL(server.URL), WithHTTPClient(server.Client()))
}

func TestLookupInvoiceFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/KineticPilot/api/v2/odata/SAINC/BaqSvc/APInvDtl/Data", r.URL.Path)
		assert.Equal(t, "APInvHed_InvoiceNum eq '12345'", r.URL.Query().Get("$filter"))
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "svc-ap", user)
		assert.Equal(t, "secret", pass)

		io.WriteString(w, `{"value":[{
			"APInvHed_VendorNum": 4217,
			"Vendor_Name": "Acme Corporation",
			"Vendor_EMailAddress": "ar@acme.com",
			"APInvHed_DocInvoiceAmt": 1500.00,
			"APInvHed_DocInvoiceBal": 750.00,
			"Calculated_PaymentStatus": "Partially Paid",
			"APInvHed_OpenPayable": true
		}]}`)
	})

	result, err := client.LookupInvoice(context.Background(), "12345")
	require.NoError(t, err)
	assert.True(t, result.FoundInERP)
	require.NotNil(t, result.InvoiceData)
	assert.Equal(t, "Acme Corporation", result.InvoiceData.VendorName)
	assert.Equal(t, 750.00, result.InvoiceData.InvoiceBal)
	assert.True(t, result.InvoiceData.OpenPayable)

	want := "https://erp.example.com/KineticPilot/Apps/ERP/Home/#/view/APGO1070/Erp.UI.APInvoiceTracker" +
		"?channelid=chan123&layerVersion=0&baseAppVersion=0&company=SAINC&site=MfgSys" +
		"&pageId=Details&KeyFields.VendorNum=4217&KeyFields.InvoiceNum=12345&pageChanged=true"
	assert.Equal(t, want, result.EpicorURL)
}

func TestLookupInvoiceNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"value":[]}`)
	})

	result, err := client.LookupInvoice(context.Background(), "NOPE-1")
	require.NoError(t, err)
	assert.False(t, result.FoundInERP)
	assert.Nil(t, result.InvoiceData)
	assert.Empty(t, result.EpicorURL)
	assert.Equal(t, "NOPE-1", result.InvoiceNumber)
}

func TestLookupInvoiceMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>RBAC gateway error</html>`)
	})

	result, err := client.LookupInvoice(context.Background(), "12345")
	require.NoError(t, err)
	assert.False(t, result.FoundInERP)
	assert.Nil(t, result.InvoiceData)
	assert.Empty(t, result.EpicorURL)
	assert.Equal(t, "12345", result.InvoiceNumber)
}

func TestLookupInvoiceRetriesTransient(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"value":[]}`)
	})

	result, err := client.LookupInvoice(context.Background(), "12345")
	require.NoError(t, err)
	assert.False(t, result.FoundInERP)
	assert.Equal(t, 2, calls)
}

func TestLookupInvoiceAuthFailureNoRetry(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.LookupInvoice(context.Background(), "12345")
	require.Error(t, err)
	assert.True(t, resilience.IsAuth(err))
	assert.Equal(t, 1, calls)
}

func TestGetVendorData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/KineticPilot/api/v2/odata/SAINC/Erp.BO.VendorSvc/Vendors", r.URL.Path)
		assert.Equal(t, "Company eq 'SAINC' and VendorID eq 'ACME01'", r.URL.Query().Get("$filter"))
		assert.Equal(t, "VendorNum, TermsCode", r.URL.Query().Get("$select"))

		io.WriteString(w, `{"value":[{"VendorNum":4217,"TermsCode":"N30"}]}`)
	})

	vendor, err := client.GetVendorData(context.Background(), "ACME01")
	require.NoError(t, err)
	require.NotNil(t, vendor)
	assert.Equal(t, "ACME01", vendor.VendorID)
	assert.Equal(t, 4217, vendor.VendorNum)
	assert.Equal(t, "N30", vendor.TermsCode)
}

func TestGetVendorDataNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"value":[]}`)
	})

	vendor, err := client.GetVendorData(context.Background(), "MISSING")
	require.NoError(t, err)
	assert.Nil(t, vendor)
}

func TestFetchVendorsUsesVendorInstance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/KineticLive/api/v2/odata/SAINC/Erp.BO.VendorSvc/Vendors", r.URL.Path)
		assert.Equal(t, "10000", r.URL.Query().Get("$top"))

		io.WriteString(w, `{"value":[
			{"VendorID":"ACME01","Name":"Acme Corporation","VendorNum":4217},
			{"VendorID":"GLOB02","Name":"Globex Inc","VendorNum":918}
		]}`)
	})

	vendors, err := client.FetchVendors(context.Background())
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	assert.Equal(t, "Acme Corporation", vendors[0].Name)
	assert.Equal(t, 918, vendors[1].VendorNum)
}

func TestEscapeODataString(t *testing.T) {
	assert.Equal(t, "O''Brien Supply", escapeODataString("O'Brien Supply"))
	assert.Equal(t, "plain", escapeODataString("plain"))
}
