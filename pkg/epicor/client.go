// Package epicor is a REST client for the Kinetic ERP: invoice lookups via
// BAQ, vendor directory reads, and the three-phase AP invoice commit
// workflow (group, header, lines).
package epicor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/stoneage-tools/ap-inbox/internal/model"
	"github.com/stoneage-tools/ap-inbox/internal/resilience"
)

// Client defines the ERP operations used by the pipeline.
type Client interface {
	LookupInvoice(ctx context.Context, invoiceNum string) (*model.InvoiceLookupResult, error)
	FetchVendors(ctx context.Context) ([]Vendor, error)
	GetVendorData(ctx context.Context, vendorID string) (*Vendor, error)
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*model.CommitOutcome, error)
	InvoiceURL(vendorNum int, invoiceNum string) string
}

// Config holds connection settings for a Kinetic instance.
type Config struct {
	Server         string // host only, e.g. "erp.example.com"
	Instance       string // default app instance, e.g. "KineticPilot"
	VendorInstance string // instance used for vendor directory reads
	APIKey         string
	Username       string
	Password       string
	Company        string
	ChannelID      string
	RateLimit      float64 // requests per second, 0 means default
}

// APIError is returned when the ERP responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("epicor: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the scheme+host derived from Config.Server.
// Used in tests to point at a local server.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryConfig overrides the retry policy for idempotent reads.
func WithRetryConfig(rc resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = rc
	}
}

type httpClient struct {
	cfg     Config
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a new ERP client. All requests share one client-side
// rate limiter so the poller and the serve surface cannot stampede the ERP.
func NewClient(cfg Config, opts ...Option) Client {
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 5
	}
	c := &httpClient{
		cfg:     cfg,
		baseURL: "https://" + cfg.Server,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return c
}

// endpointURL builds the request URL. GetByID-style service calls use the v1
// API; everything else goes through the v2 OData surface, which scopes by
// company. An empty instance falls back to the configured default.
func (c *httpClient) endpointURL(version, instance, endpoint string) string {
	if instance == "" {
		instance = c.cfg.Instance
	}
	if version == "v1" {
		return fmt.Sprintf("%s/%s/api/v1/%s", c.baseURL, instance, endpoint)
	}
	return fmt.Sprintf("%s/%s/api/v2/odata/%s/%s", c.baseURL, instance, c.cfg.Company, endpoint)
}

// getBody performs a rate-limited GET with retry on transient failures and
// returns the raw response body.
func (c *httpClient) getBody(ctx context.Context, instance, endpoint string, params url.Values, operation string) ([]byte, error) {
	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("epicor", operation)

	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		u := c.endpointURL("v2", instance, endpoint)
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		status, body, err := c.send(req)
		if err != nil {
			return nil, err
		}
		if status < 200 || status >= 300 {
			return nil, statusError(status, body)
		}
		return body, nil
	})
}

// getJSON is getBody plus decoding into out.
func (c *httpClient) getJSON(ctx context.Context, instance, endpoint string, params url.Values, operation string, out any) error {
	data, err := c.getBody(ctx, instance, endpoint, params, operation)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

// postRaw performs a rate-limited POST against the v2 OData surface and
// returns the status and body without classifying non-2xx as an error. The
// commit workflow inspects failure bodies for the duplicate-row case itself.
func (c *httpClient) postRaw(ctx context.Context, endpoint string, payload any) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, eris.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL("v2", "", endpoint), bytes.NewReader(buf))
	if err != nil {
		return 0, nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *httpClient) send(req *http.Request) (int, []byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return 0, nil, eris.Wrap(err, "rate limiter")
	}

	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, eris.Wrap(err, "read response body")
	}
	return resp.StatusCode, body, nil
}

func statusError(status int, body []byte) error {
	err := &APIError{StatusCode: status, Body: string(body)}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return resilience.NewAuthError("epicor", err)
	}
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return err
}
