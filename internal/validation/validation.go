// Package validation checks caller-supplied PKCE verifiers and feature paths
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Verifier settings per RFC 7636 section 4.1
const (
	MinVerifierLength = 43
	MaxVerifierLength = 128
)

// MaxFeaturePathLength bounds feature names accepted from callers
const MaxFeaturePathLength = 256

var (
	verifierRegex    = regexp.MustCompile(`^[A-Za-z0-9\-._~]+$`)
	featurePathRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*(\.[A-Za-z0-9_-]+)*$`)
)

// ValidationError represents a rejected input value
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// ValidateCodeVerifier checks an externally supplied PKCE code verifier for
// length and charset only. How random it is stays the caller's business.
// The verifier itself is never echoed back in the error.
func ValidateCodeVerifier(verifier string) error {
	if len(verifier) < MinVerifierLength || len(verifier) > MaxVerifierLength {
		return &ValidationError{
			Field:   "code verifier",
			Message: fmt.Sprintf("length %d must be between %d and %d characters", len(verifier), MinVerifierLength, MaxVerifierLength),
		}
	}

	if !verifierRegex.MatchString(verifier) {
		return &ValidationError{
			Field:   "code verifier",
			Message: "only unreserved characters [A-Za-z0-9-._~] are allowed",
		}
	}

	return nil
}

// ValidateFeaturePath checks a dotted feature name such as
// heating.circuits.0.sensors.temperature.supply
func ValidateFeaturePath(path string) error {
	if path == "" {
		return &ValidationError{Field: "feature path", Message: "must not be empty"}
	}
	if len(path) > MaxFeaturePathLength {
		return &ValidationError{
			Field:   "feature path",
			Message: fmt.Sprintf("longer than %d characters", MaxFeaturePathLength),
		}
	}
	if !featurePathRegex.MatchString(path) {
		return &ValidationError{
			Field:   "feature path",
			Value:   path,
			Message: "must be dot-separated segments of letters, digits, '_' or '-'",
		}
	}
	return nil
}

// NormalizeFeaturePath trims whitespace and surrounding slashes
func NormalizeFeaturePath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}
