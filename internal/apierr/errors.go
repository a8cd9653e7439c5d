// Package apierr defines the error kinds shared by the Viessmann client packages
package apierr

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// Error kinds. Callers match them with errors.Is; the typed errors below
// unwrap to one of these.
var (
	ErrInvalidArgument           = errors.New("invalid argument")
	ErrConfiguration             = errors.New("configuration error")
	ErrAuthorizationCodeNotFound = errors.New("authorization code not found")
	ErrTokenExchangeFailed       = errors.New("token exchange failed")
	ErrEmptyResult               = errors.New("empty result")
	ErrMissingField              = errors.New("missing field")
	ErrUpstreamHTTP              = errors.New("upstream http error")
	ErrMalformedResponse         = errors.New("malformed response")
	ErrTimeout                   = errors.New("request timed out")
	ErrTLSVerification           = errors.New("tls verification failed")
)

// HTTPError is returned when the provider answers with status >= 400.
// Body is already truncated and redacted.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed: HTTP %d: body (truncated, sanitized): %q", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error {
	return ErrUpstreamHTTP
}

// ResponseError describes a response that parsed but did not have the
// expected shape. Kind is ErrMalformedResponse, ErrEmptyResult or ErrMissingField.
type ResponseError struct {
	Kind   error
	URL    string
	Detail string
	Err    error
}

func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s from %s", e.Kind, e.URL)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResponseError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// TransportError wraps a failure to complete an HTTP round trip
type TransportError struct {
	Kind   error
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Kind == nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Transport classifies a client.Do error into ErrTimeout, ErrTLSVerification
// or a plain transport failure.
func Transport(method, url string, err error) error {
	return &TransportError{
		Kind:   transportKind(err),
		Method: method,
		URL:    url,
		Err:    err,
	}
}

// IsTransportKind reports whether err is a timeout or TLS verification failure
func IsTransportKind(err error) bool {
	return transportKind(err) != nil
}

func transportKind(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	var (
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr):
		return ErrTLSVerification
	}
	return nil
}
