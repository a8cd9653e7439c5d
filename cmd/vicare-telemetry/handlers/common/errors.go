package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
	"github.com/ustrahlendorf/web-form-datacollection/internal/redact"
)

// Error codes returned in ErrorResponse.Error
const (
	CodeInvalidRequest     = "invalid_request"
	CodeNotFound           = "not_found"
	CodeConfigurationError = "configuration_error"
	CodeAuthFailed         = "authorization_failed"
	CodeUpstreamError      = "upstream_error"
	CodeUpstreamTimeout    = "upstream_timeout"
	CodeServerError        = "server_error"
)

// ErrorResponse is the body of every error answer
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// SetJSONHeaders sets the headers shared by all JSON responses
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// WriteJSON encodes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	SetJSONHeaders(w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		WriteJSONError(w, err)
	}
}

// WriteError sends a standardized error response. The description is redacted.
func WriteError(w http.ResponseWriter, status int, code string, description string) {
	WriteJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: redact.Text(strings.TrimSpace(description)),
	})
}

// WriteServiceError maps an error from the client packages to a status and code
func WriteServiceError(w http.ResponseWriter, err error) {
	status, code := StatusForError(err)
	WriteError(w, status, code, err.Error())
}

// StatusForError returns the HTTP status and error code for err
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, apierr.ErrInvalidArgument):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, apierr.ErrConfiguration):
		return http.StatusInternalServerError, CodeConfigurationError
	case errors.Is(err, apierr.ErrTimeout):
		return http.StatusGatewayTimeout, CodeUpstreamTimeout
	case errors.Is(err, apierr.ErrAuthorizationCodeNotFound),
		errors.Is(err, apierr.ErrTokenExchangeFailed):
		return http.StatusBadGateway, CodeAuthFailed
	case errors.Is(err, apierr.ErrUpstreamHTTP),
		errors.Is(err, apierr.ErrMalformedResponse),
		errors.Is(err, apierr.ErrEmptyResult),
		errors.Is(err, apierr.ErrMissingField),
		errors.Is(err, apierr.ErrTLSVerification):
		return http.StatusBadGateway, CodeUpstreamError
	default:
		return http.StatusInternalServerError, CodeServerError
	}
}

// WriteJSONError handles JSON encoding failures with a fixed response
func WriteJSONError(w http.ResponseWriter, _ error) {
	SetJSONHeaders(w)
	w.WriteHeader(http.StatusInternalServerError)

	errResponse := []byte(`{"error":"server_error","error_description":"Failed to encode response"}`)
	if _, writeErr := w.Write(errResponse); writeErr != nil {
		return
	}
}
