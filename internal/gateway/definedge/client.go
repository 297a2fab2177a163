// Package definedge implements the broker gateway against the Definedge
// Securities Integrate REST API.
package definedge

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gttbracket/internal/config"
	"gttbracket/internal/gateway/broker"
)

// Client talks to the Integrate GTT endpoints. The session key comes from
// the interactive login flow and is sent verbatim in the Authorization
// header; Integrate does not use a Bearer prefix.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	sessionKey string
}

var _ broker.Gateway = (*Client)(nil)

// NewClient constructs a Definedge client from configuration.
func NewClient(cfg config.BrokerConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		return nil, fmt.Errorf("broker.api_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing broker.api_url failed: %w", err)
	}
	key := strings.TrimSpace(cfg.SessionKey)
	if key == "" {
		return nil, fmt.Errorf("broker.session_key cannot be empty")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true // #nosec G402
		}
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		sessionKey: key,
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Place submits a new GTT alert and returns the raw broker response.
func (c *Client) Place(ctx context.Context, payload map[string]string) (broker.Result, error) {
	return c.doRequest(ctx, http.MethodPost, "/gttplaceorder", payload)
}

// List fetches the pending GTT order book.
func (c *Client) List(ctx context.Context) (broker.Result, error) {
	return c.doRequest(ctx, http.MethodGet, "/gttorders", nil)
}

// Cancel withdraws a pending GTT alert by identifier.
func (c *Client) Cancel(ctx context.Context, alertID string) (broker.Result, error) {
	id := strings.TrimSpace(alertID)
	if id == "" {
		return broker.Result{}, fmt.Errorf("alert id cannot be empty")
	}
	return c.doRequest(ctx, http.MethodGet, "/gttcancel/"+url.PathEscape(id), nil)
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload map[string]string) (broker.Result, error) {
	if c == nil {
		return broker.Result{}, fmt.Errorf("definedge client not initialized")
	}
	endpoint := c.resolveEndpoint(path)

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return broker.Result{}, fmt.Errorf("encoding request failed: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return broker.Result{}, fmt.Errorf("building request failed: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", c.sessionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return broker.Result{}, fmt.Errorf("calling definedge failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return broker.Result{}, fmt.Errorf("reading definedge response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		if len(data) == 0 {
			return broker.Result{}, fmt.Errorf("definedge returned error: %s", resp.Status)
		}
		return broker.Result{}, fmt.Errorf("definedge returned error (%s): %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return broker.Result{Raw: data}, nil
}

func (c *Client) resolveEndpoint(path string) string {
	base := strings.TrimRight(c.baseURL.String(), "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
