// Package transport builds the HTTP clients used against the identity provider and IoT API
package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/ustrahlendorf/web-form-datacollection/internal/logger"
	"github.com/ustrahlendorf/web-form-datacollection/internal/redact"
)

// DefaultTimeout applies when no timeout is configured
const DefaultTimeout = 30 * time.Second

// NewClient returns a client with the given per-request timeout. When
// insecureSkipVerify is set, server certificates are not verified.
func NewClient(timeout time.Duration, insecureSkipVerify bool, log *logger.Logger) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-out
	}

	var rt http.RoundTripper = base
	if log != nil {
		rt = &loggingRoundTripper{next: base, log: log}
	}

	return &http.Client{Timeout: timeout, Transport: rt}
}

// WithoutRedirects returns a copy of c that hands 3xx responses back to the caller
func WithoutRedirects(c *http.Client) *http.Client {
	cp := *c
	cp.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &cp
}

// loggingRoundTripper logs method, redacted URL, status and latency at debug level
type loggingRoundTripper struct {
	next http.RoundTripper
	log  *logger.Logger
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := l.next.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		l.log.Debugw("http request failed",
			"method", req.Method,
			"url", redact.URL(req.URL.String()),
			"elapsed", elapsed,
			"err", redact.Text(err.Error()))
		return nil, err
	}

	l.log.Debugw("http request",
		"method", req.Method,
		"url", redact.URL(req.URL.String()),
		"status", resp.StatusCode,
		"elapsed", elapsed)
	return resp, nil
}
