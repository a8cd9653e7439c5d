package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
	"github.com/ustrahlendorf/web-form-datacollection/internal/logger"
	"github.com/ustrahlendorf/web-form-datacollection/internal/pkce"
	"github.com/ustrahlendorf/web-form-datacollection/internal/redact"
	"github.com/ustrahlendorf/web-form-datacollection/internal/transport"
)

const (
	// Error body limits for the authorize and token endpoints
	authorizeBodyLimit = 500
	tokenBodyLimit     = 800

	maxResponseBytes = 1 << 20
)

// ViessmannProvider implements Provider for the Viessmann identity provider
type ViessmannProvider struct {
	client     *http.Client
	noRedirect *http.Client
	oauth      *oauth2.Config
	cfg        Config
	log        *logger.Logger
}

// Option configures a ViessmannProvider
type Option func(*ViessmannProvider)

// WithHTTPClient replaces the client built from the config's timeout and TLS flag
func WithHTTPClient(c *http.Client) Option {
	return func(p *ViessmannProvider) {
		p.client = c
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(p *ViessmannProvider) {
		p.log = log
	}
}

// NewViessmannProvider validates cfg and creates a provider
func NewViessmannProvider(cfg Config, opts ...Option) (*ViessmannProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &ViessmannProvider{
		cfg: cfg,
		log: logger.Nop(),
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      strings.Fields(cfg.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = transport.NewClient(cfg.Timeout, cfg.InsecureSkipVerify, p.log)
	}
	p.noRedirect = transport.WithoutRedirects(p.client)

	return p, nil
}

// RequestAuthorizationCode posts the credentials to the authorize endpoint
// without following redirects and extracts the code from the response.
func (p *ViessmannProvider) RequestAuthorizationCode(ctx context.Context, pair *pkce.Pair) (string, error) {
	authURL := p.oauth.AuthCodeURL("", challengeOptions(pair)...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating authorize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.cfg.Username, p.cfg.Password)

	p.log.Infow("requesting authorization code",
		"url", p.cfg.AuthorizeURL,
		"client_id", redact.Partial(p.cfg.ClientID),
		"pkce_method", pair.Method)

	resp, err := p.noRedirect.Do(req)
	if err != nil {
		return "", apierr.Transport(http.MethodPost, p.cfg.AuthorizeURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading authorize response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return "", &apierr.HTTPError{
			Method:     http.MethodPost,
			URL:        p.cfg.AuthorizeURL,
			StatusCode: resp.StatusCode,
			Body:       redact.Body(body, authorizeBodyLimit),
		}
	}

	finalURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	code, source, err := ExtractAuthorizationCode(AuthorizeResponse{
		Header: resp.Header,
		URL:    finalURL,
		Body:   string(body),
	})
	if err != nil {
		return "", fmt.Errorf("authorize returned HTTP %d: %w", resp.StatusCode, err)
	}

	p.log.Debugw("authorization code received", "source", source, "status", resp.StatusCode)
	return code, nil
}

// ExchangeCode exchanges the authorization code and PKCE verifier for tokens
func (p *ViessmannProvider) ExchangeCode(ctx context.Context, code string, pair *pkce.Pair) (*Token, error) {
	p.log.Infow("exchanging authorization code", "url", p.cfg.TokenURL)

	tok, err := p.oauth.Exchange(p.clientContext(ctx), code, oauth2.VerifierOption(pair.Verifier))
	if err != nil {
		return nil, p.exchangeError("authorization_code", err)
	}
	return fromOAuth2(tok), nil
}

// RefreshToken runs the refresh_token grant. When the response omits
// refresh_token, the returned token keeps the one passed in.
func (p *ViessmannProvider) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	p.log.Infow("refreshing access token", "url", p.cfg.TokenURL)

	ts := p.oauth.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, p.exchangeError("refresh_token", err)
	}
	return fromOAuth2(tok), nil
}

func (p *ViessmannProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

func (p *ViessmannProvider) exchangeError(grant string, err error) error {
	if apierr.IsTransportKind(err) {
		return apierr.Transport(http.MethodPost, p.cfg.TokenURL, err)
	}

	exErr := &ExchangeError{Grant: grant, URL: p.cfg.TokenURL, Err: err}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			exErr.StatusCode = retrieveErr.Response.StatusCode
		}
		exErr.Body = redact.Body(retrieveErr.Body, tokenBodyLimit)
	}
	return exErr
}

func challengeOptions(pair *pkce.Pair) []oauth2.AuthCodeOption {
	if pair.Method == pkce.MethodS256 {
		return []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(pair.Verifier)}
	}
	return []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", pair.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", string(pair.Method)),
	}
}

func fromOAuth2(tok *oauth2.Token) *Token {
	return &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}

// ExchangeError reports a failed call to the token endpoint. It matches
// apierr.ErrTokenExchangeFailed.
type ExchangeError struct {
	Grant      string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *ExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange (%s) failed: POST %s: HTTP %d: body (truncated, sanitized): %q",
			e.Grant, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("token exchange (%s) failed: POST %s: %s", e.Grant, e.URL, redact.Text(e.Err.Error()))
}

func (e *ExchangeError) Unwrap() []error {
	return []error{apierr.ErrTokenExchangeFailed, e.Err}
}
