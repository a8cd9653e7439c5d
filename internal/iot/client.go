// Package iot resolves equipment and fetches device features from the Viessmann IoT API
package iot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
	"github.com/ustrahlendorf/web-form-datacollection/internal/logger"
	"github.com/ustrahlendorf/web-form-datacollection/internal/redact"
)

// DefaultAPIBaseURL is the production IoT API
const DefaultAPIBaseURL = "https://api.viessmann-climatesolutions.com"

const (
	errorBodyLimit   = 800
	maxResponseBytes = 10 << 20
)

// Client issues bearer-authenticated GETs against the IoT API
type Client struct {
	http    *http.Client
	baseURL string
	now     func() time.Time
	log     *logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithClock replaces time.Now for snapshot timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates an IoT API client. An empty baseURL selects DefaultAPIBaseURL.
func NewClient(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	c := &Client{
		http:    httpClient,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InstallationsURL lists the caller's installations
func (c *Client) InstallationsURL() string {
	return c.baseURL + "/iot/v2/equipment/installations"
}

// GatewaysURL lists the caller's gateways
func (c *Client) GatewaysURL() string {
	return c.baseURL + "/iot/v2/equipment/gateways"
}

// DevicesURL lists the devices behind a gateway
func (c *Client) DevicesURL(installationID, gatewaySerial string) string {
	return fmt.Sprintf("%s/iot/v2/equipment/installations/%s/gateways/%s/devices",
		c.baseURL, url.PathEscape(installationID), url.PathEscape(gatewaySerial))
}

// FeaturesURL lists all features of a device
func (c *Client) FeaturesURL(eq *Equipment) string {
	return fmt.Sprintf("%s/iot/v2/features/installations/%s/gateways/%s/devices/%s/features",
		c.baseURL, url.PathEscape(eq.InstallationID), url.PathEscape(eq.GatewaySerial), url.PathEscape(eq.DeviceID))
}

// FeatureURL addresses a single feature
func (c *Client) FeatureURL(eq *Equipment, path string) string {
	return c.FeaturesURL(eq) + "/" + url.PathEscape(path)
}

// get performs an authenticated GET and returns the body. Status >= 400
// yields *apierr.HTTPError with a truncated, redacted body.
func (c *Client) get(ctx context.Context, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierr.Transport(http.MethodGet, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &apierr.HTTPError{
			Method:     http.MethodGet,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       redact.Body(body, errorBodyLimit),
		}
	}
	return body, nil
}

// getList performs a GET and normalizes the envelope into items
func (c *Client) getList(ctx context.Context, endpoint, accessToken string) ([]map[string]any, error) {
	body, err := c.get(ctx, endpoint, accessToken)
	if err != nil {
		return nil, err
	}
	items, err := NormalizeList(body)
	if err != nil {
		return nil, &apierr.ResponseError{Kind: apierr.ErrMalformedResponse, URL: endpoint, Err: err}
	}
	return items, nil
}
