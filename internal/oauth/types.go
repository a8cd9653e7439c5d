// Package oauth implements the authorization-code grant with PKCE against the Viessmann identity provider
package oauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
	"github.com/ustrahlendorf/web-form-datacollection/internal/pkce"
)

// Default provider settings
const (
	DefaultIAMBaseURL  = "https://iam.viessmann-climatesolutions.com/idp/v3"
	DefaultRedirectURI = "http://localhost:4200/"
	DefaultScope       = "IoT User"

	authorizePath = "/authorize"
	tokenPath     = "/token"
)

// Token is the outcome of a code exchange or refresh. ExpiresAt is zero when
// the provider omitted expires_in.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Provider is the identity provider capability the token cache depends on
type Provider interface {
	// RequestAuthorizationCode performs the authorize step and returns the code
	RequestAuthorizationCode(ctx context.Context, pair *pkce.Pair) (string, error)

	// ExchangeCode exchanges an authorization code and its verifier for tokens
	ExchangeCode(ctx context.Context, code string, pair *pkce.Pair) (*Token, error)

	// RefreshToken obtains a new access token from a refresh token
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
}

// Config holds the credentials and endpoints for one account
type Config struct {
	ClientID    string
	Username    string
	Password    string
	RedirectURI string
	Scope       string

	// IAMBaseURL is used to derive AuthorizeURL and TokenURL when they are empty
	IAMBaseURL   string
	AuthorizeURL string
	TokenURL     string

	Timeout            time.Duration
	InsecureSkipVerify bool

	PKCEMethod   pkce.Method
	CodeVerifier string
}

// Validate fills defaults and reports missing credentials as a configuration error
func (c *Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client id")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", apierr.ErrConfiguration, strings.Join(missing, ", "))
	}

	if c.RedirectURI == "" {
		c.RedirectURI = DefaultRedirectURI
	}
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.PKCEMethod == "" {
		c.PKCEMethod = pkce.MethodS256
	}
	if c.PKCEMethod != pkce.MethodS256 && c.PKCEMethod != pkce.MethodPlain {
		return fmt.Errorf("%w: unsupported PKCE method %q", apierr.ErrConfiguration, c.PKCEMethod)
	}

	base := strings.TrimSuffix(c.IAMBaseURL, "/")
	if base == "" {
		base = DefaultIAMBaseURL
	}
	if c.AuthorizeURL == "" {
		c.AuthorizeURL = base + authorizePath
	}
	if c.TokenURL == "" {
		c.TokenURL = base + tokenPath
	}
	return nil
}

// Authenticate runs the full authorization-code grant with a fresh PKCE pair.
// A non-empty verifier is used instead of a generated one.
func Authenticate(ctx context.Context, p Provider, verifier string, method pkce.Method) (*Token, error) {
	pair, err := pkce.NewPair(verifier, method)
	if err != nil {
		return nil, fmt.Errorf("preparing PKCE pair: %w", err)
	}

	code, err := p.RequestAuthorizationCode(ctx, pair)
	if err != nil {
		return nil, err
	}

	return p.ExchangeCode(ctx, code, pair)
}
