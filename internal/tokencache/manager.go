package tokencache

import (
	"context"
	"fmt"
	"time"

	"github.com/ustrahlendorf/web-form-datacollection/internal/logger"
	"github.com/ustrahlendorf/web-form-datacollection/internal/oauth"
	"github.com/ustrahlendorf/web-form-datacollection/internal/pkce"
)

// Manager hands out a usable access token, reusing or refreshing the cached
// one where possible and falling back to a full authorization otherwise.
type Manager struct {
	provider oauth.Provider
	store    Store // nil disables caching

	verifier string
	method   pkce.Method

	now func() time.Time
	log *logger.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithPKCE sets the challenge method and an optional fixed verifier
func WithPKCE(verifier string, method pkce.Method) Option {
	return func(m *Manager) {
		m.verifier = verifier
		m.method = method
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a token manager. A nil store disables caching.
func NewManager(provider oauth.Provider, store Store, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		store:    store,
		method:   pkce.MethodS256,
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CachingEnabled reports whether a store is configured
func (m *Manager) CachingEnabled() bool {
	return m.store != nil
}

// GetValidToken returns a record holding a usable access token. Cached
// equipment ids are carried over whenever the cached record is reused or refreshed.
func (m *Manager) GetValidToken(ctx context.Context) (*Record, error) {
	now := m.now()

	cached := m.load(ctx)
	if cached != nil {
		if cached.Fresh(now) {
			m.log.Debugw("using cached access token", "expires_at", cached.Expiry().UTC())
			return cached, nil
		}

		if cached.RefreshToken != "" {
			rec, err := m.refresh(ctx, cached, now)
			if err == nil {
				return rec, nil
			}
			m.log.Warnw("token refresh failed, falling back to full authorization", "err", err)
		}
	}

	return m.authorize(ctx, now)
}

// Save persists r when caching is enabled. Failures are logged and returned.
func (m *Manager) Save(ctx context.Context, r *Record) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, r); err != nil {
		m.log.Warnw("could not persist token cache", "err", err)
		return fmt.Errorf("saving token cache: %w", err)
	}
	return nil
}

// CheckHealth checks the backing store, if any
func (m *Manager) CheckHealth(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	return m.store.CheckHealth(ctx)
}

func (m *Manager) load(ctx context.Context) *Record {
	if m.store == nil {
		return nil
	}
	rec, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warnw("ignoring unusable token cache", "err", err)
		return nil
	}
	return rec
}

func (m *Manager) refresh(ctx context.Context, cached *Record, now time.Time) (*Record, error) {
	tok, err := m.provider.RefreshToken(ctx, cached.RefreshToken)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		ExpiresAt:      cached.ExpiresAt,
		InstallationID: cached.InstallationID,
		GatewaySerial:  cached.GatewaySerial,
		DeviceID:       cached.DeviceID,
	}
	if rec.RefreshToken == "" {
		rec.RefreshToken = cached.RefreshToken
	}
	if !tok.ExpiresAt.IsZero() {
		rec.ExpiresAt = tok.ExpiresAt.Unix()
	}

	m.log.Infow("access token refreshed", "expires_in", rec.Expiry().Sub(now).Round(time.Second))
	_ = m.Save(ctx, rec)
	return rec, nil
}

func (m *Manager) authorize(ctx context.Context, now time.Time) (*Record, error) {
	tok, err := oauth.Authenticate(ctx, m.provider, m.verifier, m.method)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(DefaultTokenLifetime).Unix()
	if !tok.ExpiresAt.IsZero() {
		expiresAt = tok.ExpiresAt.Unix()
	}

	rec := &Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
	}

	m.log.Infow("access token obtained", "has_refresh_token", rec.RefreshToken != "")
	_ = m.Save(ctx, rec)
	return rec, nil
}
