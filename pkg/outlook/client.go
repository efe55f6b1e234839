// Package outlook provides a Microsoft Graph client for the monitored
// AP mailbox: listing unread mail, fetching attachments, applying category
// labels, and replying.
package outlook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/stoneage-tools/ap-inbox/internal/model"
	"github.com/stoneage-tools/ap-inbox/internal/resilience"
)

// Default base URL for the Microsoft Graph v1.0 API.
const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// Client defines the mailbox operations used by the poller and pipeline.
type Client interface {
	ListUnread(ctx context.Context, folder string, limit int) ([]model.InboundMessage, error)
	GetAttachments(ctx context.Context, messageID string) ([]model.Attachment, error)
	ApplyCategory(ctx context.Context, messageID string, category model.Category) error
	MarkRead(ctx context.Context, messageID string, read bool) error
	Reply(ctx context.Context, messageID, comment string) error
}

// Credentials holds the Azure AD application registration for client
// credential auth against the Graph API.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	MailboxID    string
	CCRecipient  string
}

// APIError is returned when the Graph API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default Graph base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client, bypassing the OAuth2 transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http with an OAuth2 client
// credentials transport. The token source caches tokens and refreshes them
// only near expiry, so repeated ticks reuse one token.
type httpClient struct {
	creds   Credentials
	baseURL string
	http    *http.Client
}

// NewClient creates a new Graph mailbox client.
func NewClient(creds Credentials, opts ...Option) Client {
	c := &httpClient{
		creds:   creds,
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		cc := clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", creds.TenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		}
		base := &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		c.http = cc.Client(ctx)
		c.http.Timeout = 30 * time.Second
	}
	return c
}

// graphMessage mirrors the subset of the Graph message resource we select.
type graphMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Sender  struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"sender"`
	ReceivedDateTime  time.Time `json:"receivedDateTime"`
	InternetMessageID string    `json:"internetMessageId"`
	IsRead            bool      `json:"isRead"`
	HasAttachments    bool      `json:"hasAttachments"`
	Body              struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

func (c *httpClient) ListUnread(ctx context.Context, folder string, limit int) ([]model.InboundMessage, error) {
	endpoint := fmt.Sprintf("users/%s/mailFolders/%s/messages", c.creds.MailboxID, folder)

	params := url.Values{}
	params.Set("$select", "id,subject,sender,receivedDateTime,body,isRead,hasAttachments,internetMessageId")
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$top", fmt.Sprintf("%d", limit))
	params.Set("$filter", "isRead eq false")

	var out struct {
		Value []graphMessage `json:"value"`
	}
	if err := c.get(ctx, endpoint, params, &out); err != nil {
		return nil, eris.Wrap(err, "graph: list unread")
	}

	msgs := make([]model.InboundMessage, 0, len(out.Value))
	for _, m := range out.Value {
		body := m.Body.Content
		if m.Body.ContentType == "html" || m.Body.ContentType == "HTML" {
			body = CleanBody(body)
		}
		msgs = append(msgs, model.InboundMessage{
			ID:                m.ID,
			InternetMessageID: m.InternetMessageID,
			SenderEmail:       m.Sender.EmailAddress.Address,
			SenderName:        m.Sender.EmailAddress.Name,
			Subject:           m.Subject,
			Body:              body,
			IsRead:            m.IsRead,
			HasAttachments:    m.HasAttachments,
			ReceivedAt:        m.ReceivedDateTime,
		})
	}
	return msgs, nil
}

func (c *httpClient) GetAttachments(ctx context.Context, messageID string) ([]model.Attachment, error) {
	endpoint := fmt.Sprintf("users/%s/messages/%s/attachments", c.creds.MailboxID, messageID)

	// Expand item attachments so embedded messages arrive with their
	// sender/subject/body already resolved.
	params := url.Values{}
	params.Set("$expand", "microsoft.graph.itemattachment/item")

	var out struct {
		Value []graphAttachment `json:"value"`
	}
	if err := c.get(ctx, endpoint, params, &out); err != nil {
		return nil, eris.Wrapf(err, "graph: get attachments for %s", messageID)
	}

	return normalizeAttachments(out.Value), nil
}

func (c *httpClient) ApplyCategory(ctx context.Context, messageID string, category model.Category) error {
	endpoint := fmt.Sprintf("users/%s/messages/%s", c.creds.MailboxID, messageID)
	body := map[string]any{
		"categories": []string{model.MailboxLabel(category)},
	}
	if err := c.patch(ctx, endpoint, body); err != nil {
		return eris.Wrapf(err, "graph: apply category to %s", messageID)
	}
	return nil
}

func (c *httpClient) MarkRead(ctx context.Context, messageID string, read bool) error {
	endpoint := fmt.Sprintf("users/%s/messages/%s", c.creds.MailboxID, messageID)
	if err := c.patch(ctx, endpoint, map[string]any{"isRead": read}); err != nil {
		return eris.Wrapf(err, "graph: mark read %s", messageID)
	}
	return nil
}

func (c *httpClient) Reply(ctx context.Context, messageID, comment string) error {
	endpoint := fmt.Sprintf("users/%s/messages/%s/reply", c.creds.MailboxID, messageID)

	// The comment field preserves the thread history in the reply.
	body := map[string]any{"comment": comment}
	if c.creds.CCRecipient != "" {
		body["message"] = map[string]any{
			"ccRecipients": []map[string]any{
				{"emailAddress": map[string]string{"address": c.creds.CCRecipient}},
			},
		}
	}

	if err := c.post(ctx, endpoint, body, nil); err != nil {
		return eris.Wrapf(err, "graph: reply to %s", messageID)
	}
	return nil
}

func (c *httpClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *httpClient) post(ctx context.Context, endpoint string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *httpClient) patch(ctx context.Context, endpoint string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/"+endpoint, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return resilience.NewAuthError("graph", err)
		}
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return resilience.NewAuthError("graph", &APIError{StatusCode: resp.StatusCode, Body: string(data)})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
