package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	apperrors "github.com/fitglue/healthsync/pkg/errors"
	"github.com/fitglue/healthsync/pkg/types"
)

// refreshLeeway is how close to expiry a stored token gets refreshed.
const refreshLeeway = 1 * time.Minute

// IntegrationStore persists tokens under users/{uid}.integrations.{provider}.
type IntegrationStore interface {
	GetIntegration(ctx context.Context, userID, provider string) (*types.OAuthIntegration, error)
	SaveIntegration(ctx context.Context, userID, provider string, integration *types.OAuthIntegration) error
	ClearIntegration(ctx context.Context, userID, provider string) error
}

// Provider reads a user's stored tokens for one OAuth provider and
// refreshes them through the provider's token endpoint when needed.
// It is safe for concurrent use by multiple goroutines.
type Provider struct {
	Name   string
	Config *oauth2.Config
	Store  IntegrationStore
	UserID string

	// HTTPClient is used for token endpoint calls. Nil means http.DefaultClient.
	HTTPClient *http.Client
	Logger     *slog.Logger

	now func() time.Time
	mu  sync.Mutex
}

func NewProvider(name string, cfg *oauth2.Config, store IntegrationStore, userID string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		Name:   name,
		Config: cfg,
		Store:  store,
		UserID: userID,
		Logger: logger.With("provider", name),
		now:    time.Now,
	}
}

// Token returns the stored token, refreshing it first when it expires
// within the next minute.
func (p *Provider) Token(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	integ, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	if integ.AccessToken == "" || (!integ.ExpiresAt.IsZero() && p.now().Add(refreshLeeway).After(integ.ExpiresAt)) {
		return p.refresh(ctx, integ)
	}

	return &oauth2.Token{
		AccessToken:  integ.AccessToken,
		RefreshToken: integ.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       integ.ExpiresAt,
	}, nil
}

// ForceRefresh refreshes regardless of the stored expiry.
func (p *Provider) ForceRefresh(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	integ, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return p.refresh(ctx, integ)
}

// AccessToken returns a currently valid access token. When the user has to
// re-authorize, the error matches apperrors.ErrAuthRequired and carries the
// authorization URL.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	tok, err := p.Token(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuthRequired) && apperrors.AuthorizationURL(err) == "" {
			return "", apperrors.AuthRequired(p.AuthorizationURL("")).WithCause(err)
		}
		return "", err
	}
	return tok.AccessToken, nil
}

// HasAccess reports whether a usable token is stored: an unexpired access
// token, or a refresh token to obtain one.
func (p *Provider) HasAccess(ctx context.Context) bool {
	integ, err := p.Store.GetIntegration(ctx, p.UserID, p.Name)
	if err != nil {
		p.Logger.Warn("Failed to read stored integration", "error", err)
		return false
	}
	if integ == nil || !integ.Enabled {
		return false
	}
	if integ.RefreshToken != "" {
		return true
	}
	return integ.AccessToken != "" && p.now().Before(integ.ExpiresAt)
}

// AuthorizationURL builds the consent URL for this provider.
func (p *Provider) AuthorizationURL(state string) string {
	if p.Name == types.ProviderGoogle {
		return p.Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	}
	return p.Config.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens and stores them.
func (p *Provider) Exchange(ctx context.Context, code string) (*types.OAuthIntegration, error) {
	tok, err := p.Config.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%s code exchange: %w", p.Name, err)
	}

	now := p.now()
	integ := &types.OAuthIntegration{
		Enabled:      true,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		LinkedAt:     now,
		LastUsedAt:   now,
	}
	if uid, ok := tok.Extra("user_id").(string); ok {
		integ.ExternalUserID = uid
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		integ.Scope = scope
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Store.SaveIntegration(ctx, p.UserID, p.Name, integ); err != nil {
		return nil, fmt.Errorf("failed to persist %s tokens: %w", p.Name, err)
	}
	p.Logger.Info("Stored new tokens", "user_id", p.UserID, "external_user_id", integ.ExternalUserID)
	return integ, nil
}

// Reset forgets the stored tokens so the next run requires authorization.
func (p *Provider) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Store.ClearIntegration(ctx, p.UserID, p.Name)
}

func (p *Provider) load(ctx context.Context) (*types.OAuthIntegration, error) {
	integ, err := p.Store.GetIntegration(ctx, p.UserID, p.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s integration: %w", p.Name, err)
	}
	if integ == nil || !integ.Enabled {
		return nil, apperrors.ErrAuthRequired.WithMessage(p.Name + " not linked/enabled")
	}
	if integ.AccessToken == "" && integ.RefreshToken == "" {
		return nil, apperrors.ErrAuthRequired.WithMessage("no stored " + p.Name + " tokens")
	}
	return integ, nil
}

// refresh performs the refresh_token grant and persists the result. The
// stored refresh token is kept when the provider does not rotate it.
func (p *Provider) refresh(ctx context.Context, integ *types.OAuthIntegration) (*oauth2.Token, error) {
	if integ.RefreshToken == "" {
		return nil, apperrors.ErrAuthRequired.WithMessage("missing refresh token for " + p.Name)
	}

	src := p.Config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: integ.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && (re.ErrorCode == "invalid_grant" || re.ErrorCode == "invalid_token" ||
			(re.Response != nil && re.Response.StatusCode == http.StatusUnauthorized)) {
			return nil, apperrors.ErrAuthRequired.WithMessage(p.Name + " refresh token rejected").WithCause(err)
		}
		return nil, fmt.Errorf("%s token refresh failed: %w", p.Name, err)
	}

	updated := *integ
	updated.AccessToken = tok.AccessToken
	updated.ExpiresAt = tok.Expiry
	updated.LastUsedAt = p.now()
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}
	if err := p.Store.SaveIntegration(ctx, p.UserID, p.Name, &updated); err != nil {
		return nil, fmt.Errorf("failed to persist new tokens: %w", err)
	}
	p.Logger.Debug("Refreshed access token", "expires_at", updated.ExpiresAt)

	tok.RefreshToken = updated.RefreshToken
	return tok, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	if p.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.HTTPClient)
}
