package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/giantswarm/apiprobe/pkg/oauth"
)

// Environment variables that bypass the OAuth flow entirely.
const (
	EnvAccessToken    = "APIPROBE_ACCESS_TOKEN"
	EnvTokenType      = "APIPROBE_TOKEN_TYPE"
	EnvTokenExpiresAt = "APIPROBE_TOKEN_EXPIRES_AT"
)

// Authenticator obtains tokens interactively and by refresh. *Flow
// implements it.
type Authenticator interface {
	Authenticate(ctx context.Context) (*oauth.Token, error)
	RefreshStoredToken(ctx context.Context, tok *oauth.Token) (*oauth.Token, error)
}

// AccessToken is a resolved credential ready to be sent to the API server.
type AccessToken struct {
	AccessToken string
	TokenType   string

	// ExpiresAt is zero for tokens without a known expiry.
	ExpiresAt time.Time

	// Refreshed is set when the token was obtained by a refresh grant.
	Refreshed bool

	// FromEnv is set when the token came from APIPROBE_ACCESS_TOKEN.
	FromEnv bool
}

// Header returns the Authorization header value.
func (t *AccessToken) Header() string {
	return t.TokenType + " " + t.AccessToken
}

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	ServerURL string
	Cache     Cache
	Flow      Authenticator

	// ExpiryMargin defaults to oauth.DefaultExpiryMargin.
	ExpiryMargin time.Duration

	// Getenv defaults to os.Getenv.
	Getenv func(string) string

	// Now defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Provider resolves the access token for one API server: an environment
// override first, then a valid cached token, then a refresh, and finally an
// interactive authorization.
type Provider struct {
	serverURL    string
	cache        Cache
	flow         Authenticator
	expiryMargin time.Duration
	getenv       func(string) string
	now          func() time.Time
	logger       *slog.Logger
}

// NewProvider creates a provider.
func NewProvider(cfg ProviderConfig) *Provider {
	p := &Provider{
		serverURL:    cfg.ServerURL,
		cache:        cfg.Cache,
		flow:         cfg.Flow,
		expiryMargin: cfg.ExpiryMargin,
		getenv:       cfg.Getenv,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}
	if p.expiryMargin <= 0 {
		p.expiryMargin = oauth.DefaultExpiryMargin
	}
	if p.getenv == nil {
		p.getenv = os.Getenv
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// GetAccessToken returns a usable token, running the interactive flow when
// nothing else yields one.
func (p *Provider) GetAccessToken(ctx context.Context) (*AccessToken, error) {
	return p.resolve(ctx, true)
}

// TryGetAccessToken is GetAccessToken without the interactive step. It
// returns oauth.ErrAuthRequired when the user has to log in.
func (p *Provider) TryGetAccessToken(ctx context.Context) (*AccessToken, error) {
	return p.resolve(ctx, false)
}

// AuthorizationHeader returns "<type> <token>" for the resolved token.
func (p *Provider) AuthorizationHeader(ctx context.Context) (string, error) {
	tok, err := p.GetAccessToken(ctx)
	if err != nil {
		return "", err
	}
	return tok.Header(), nil
}

// Authenticate always runs the interactive flow, replacing stored tokens.
func (p *Provider) Authenticate(ctx context.Context) (*AccessToken, error) {
	if p.flow == nil {
		return nil, errors.New("interactive authentication is not configured")
	}
	tok, err := p.flow.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return fromToken(tok, false), nil
}

// Refresh forces a refresh grant with the stored refresh token.
func (p *Provider) Refresh(ctx context.Context) (*AccessToken, error) {
	cached, err := p.cache.LoadTokens(p.serverURL)
	if err != nil {
		return nil, err
	}
	if cached == nil || cached.RefreshToken == "" {
		return nil, oauth.ErrAuthRequired
	}
	if p.flow == nil {
		return nil, errors.New("token refresh is not configured")
	}

	tok, err := p.flow.RefreshStoredToken(ctx, cached)
	if err != nil {
		return nil, err
	}
	return fromToken(tok, true), nil
}

// HasStoredCredentials reports whether a token is cached for the server.
// Expired tokens count, since they may still be refreshable.
func (p *Provider) HasStoredCredentials() bool {
	tok, err := p.cache.LoadTokens(p.serverURL)
	if err != nil || tok == nil {
		return false
	}
	return tok.AccessToken != "" || tok.RefreshToken != ""
}

// ClearCredentials removes everything cached for the server.
func (p *Provider) ClearCredentials() error {
	return p.cache.Clear(p.serverURL)
}

func (p *Provider) resolve(ctx context.Context, interactive bool) (*AccessToken, error) {
	if tok, err := p.envToken(); err != nil || tok != nil {
		return tok, err
	}

	cached, err := p.cache.LoadTokens(p.serverURL)
	if err != nil {
		return nil, err
	}

	if cached != nil && cached.AccessToken != "" && !cached.IsExpiredWithMargin(p.now(), p.expiryMargin) {
		p.logger.Debug("Using cached access token", "server_url", p.serverURL)
		return fromToken(cached, false), nil
	}

	if cached != nil && cached.RefreshToken != "" && p.flow != nil {
		tok, err := p.flow.RefreshStoredToken(ctx, cached)
		if err == nil {
			return fromToken(tok, true), nil
		}
		p.logger.Info("Token refresh failed", "server_url", p.serverURL, "error", err)
	}

	if !interactive || p.flow == nil {
		return nil, oauth.ErrAuthRequired
	}

	tok, err := p.flow.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return fromToken(tok, false), nil
}

// envToken returns the token from the environment, or nil when unset.
func (p *Provider) envToken() (*AccessToken, error) {
	value := strings.TrimSpace(p.getenv(EnvAccessToken))
	if value == "" {
		return nil, nil
	}

	tok := &AccessToken{
		AccessToken: value,
		TokenType:   strings.TrimSpace(p.getenv(EnvTokenType)),
		FromEnv:     true,
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}

	if raw := strings.TrimSpace(p.getenv(EnvTokenExpiresAt)); raw != "" {
		expiresAt, err := parseExpiresAt(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTokenExpiresAt, err)
		}
		tok.ExpiresAt = expiresAt
	}

	p.logger.Debug("Using access token from environment", "variable", EnvAccessToken)
	return tok, nil
}

// parseExpiresAt accepts epoch milliseconds or an RFC 3339 timestamp.
func parseExpiresAt(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected epoch milliseconds or RFC 3339 timestamp, got %q", raw)
	}
	return t, nil
}

func fromToken(tok *oauth.Token, refreshed bool) *AccessToken {
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &AccessToken{
		AccessToken: tok.AccessToken,
		TokenType:   tokenType,
		ExpiresAt:   tok.Expiry(),
		Refreshed:   refreshed,
	}
}
