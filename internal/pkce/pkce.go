// Package pkce generates Proof Key for Code Exchange verifiers and challenges (RFC 7636)
package pkce

import (
	"crypto/rand"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
	"github.com/ustrahlendorf/web-form-datacollection/internal/validation"
)

// Method is a code challenge method
type Method string

const (
	MethodS256  Method = "S256"
	MethodPlain Method = "plain"
)

// Verifier length bounds
const (
	MinVerifierLength     = validation.MinVerifierLength
	MaxVerifierLength     = validation.MaxVerifierLength
	DefaultVerifierLength = 64
)

// verifierCharset is the URL-safe base64 alphabet. Its size of 64 divides 256,
// so masking a random byte keeps the distribution uniform.
const verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// Pair holds one verifier and the challenge derived from it
type Pair struct {
	Verifier  string
	Challenge string
	Method    Method
}

// GenerateVerifier returns a cryptographically random verifier of exactly length characters
func GenerateVerifier(length int) (string, error) {
	if length < MinVerifierLength || length > MaxVerifierLength {
		return "", fmt.Errorf("%w: code verifier length %d outside [%d, %d]",
			apierr.ErrInvalidArgument, length, MinVerifierLength, MaxVerifierLength)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = verifierCharset[b&63]
	}
	return string(buf), nil
}

// Challenge derives the code challenge for verifier
func Challenge(verifier string, method Method) (string, error) {
	switch method {
	case MethodS256:
		return oauth2.S256ChallengeFromVerifier(verifier), nil
	case MethodPlain:
		return verifier, nil
	default:
		return "", fmt.Errorf("%w: unsupported code challenge method %q", apierr.ErrInvalidArgument, method)
	}
}

// ParseMethod accepts "S256" or "plain" in any case. Empty means S256.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "s256":
		return MethodS256, nil
	case "plain":
		return MethodPlain, nil
	default:
		return "", fmt.Errorf("%w: unsupported code challenge method %q", apierr.ErrInvalidArgument, s)
	}
}

// NewPair builds a pair for one authorization attempt. An empty verifier
// generates a fresh one; a supplied verifier must pass ValidateCodeVerifier.
func NewPair(verifier string, method Method) (*Pair, error) {
	if verifier == "" {
		generated, err := GenerateVerifier(DefaultVerifierLength)
		if err != nil {
			return nil, err
		}
		verifier = generated
	} else if err := validation.ValidateCodeVerifier(verifier); err != nil {
		return nil, fmt.Errorf("%w: %w", apierr.ErrInvalidArgument, err)
	}

	challenge, err := Challenge(verifier, method)
	if err != nil {
		return nil, err
	}

	return &Pair{
		Verifier:  verifier,
		Challenge: challenge,
		Method:    method,
	}, nil
}
