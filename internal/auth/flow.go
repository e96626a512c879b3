package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/apiprobe/pkg/oauth"
)

// DefaultScopes are requested when neither configuration nor metadata
// names any scopes.
var DefaultScopes = []string{"openid"}

// FlowConfig configures a Flow.
type FlowConfig struct {
	// ServerURL is the protected API server.
	ServerURL string

	Client    *oauth.Client
	Cache     Cache
	Registrar *Registrar
	Presenter Presenter

	// Scopes overrides scope selection from metadata.
	Scopes []string

	// CallbackPort is the loopback port; zero lets the OS choose.
	CallbackPort    int
	CallbackTimeout time.Duration

	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Flow runs the OAuth 2.1 authorization code flow with PKCE against one
// protected API server and refreshes the tokens it stored.
type Flow struct {
	serverURL       string
	client          *oauth.Client
	cache           Cache
	registrar       *Registrar
	presenter       Presenter
	scopes          []string
	callbackPort    int
	callbackTimeout time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// NewFlow validates the configuration and creates a flow.
func NewFlow(cfg FlowConfig) (*Flow, error) {
	if _, err := oauth.ServerOrigin(cfg.ServerURL); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("oauth client is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registrar := cfg.Registrar
	if registrar == nil {
		registrar = NewRegistrar(RegistrarConfig{Client: cfg.Client, Cache: cfg.Cache, Logger: logger})
	}
	presenter := cfg.Presenter
	if presenter == nil {
		presenter = SelectPresenter(Environment{}, nil, logger)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Flow{
		serverURL:       cfg.ServerURL,
		client:          cfg.Client,
		cache:           cfg.Cache,
		registrar:       registrar,
		presenter:       presenter,
		scopes:          cfg.Scopes,
		callbackPort:    cfg.CallbackPort,
		callbackTimeout: cfg.CallbackTimeout,
		logger:          logger,
		now:             now,
	}, nil
}

// ServerURL returns the protected API server this flow authenticates to.
func (f *Flow) ServerURL() string {
	return f.serverURL
}

// Authenticate runs the interactive flow and returns the issued tokens.
// The tokens are persisted; a persistence failure is logged but the tokens
// are still returned.
func (f *Flow) Authenticate(ctx context.Context) (*oauth.Token, error) {
	logger := f.logger.With("flow_id", uuid.NewString(), "server_url", f.serverURL)

	metadata, err := f.ServerMetadata(ctx)
	if err != nil {
		return nil, err
	}
	if !metadata.AuthServer.SupportsPKCE() {
		logger.Warn("Authorization server does not advertise S256 PKCE support, continuing anyway",
			"issuer", metadata.AuthServer.Issuer)
	}

	state, err := oauth.GenerateState()
	if err != nil {
		return nil, err
	}
	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		return nil, err
	}

	// The listener is bound before registration so the registered redirect
	// URI carries the actual port.
	callback := NewCallbackServer(CallbackServerConfig{
		Port:          f.callbackPort,
		ExpectedState: state,
		Timeout:       f.callbackTimeout,
		Logger:        logger,
	})
	if err := callback.Start(); err != nil {
		return nil, err
	}
	defer callback.Stop()

	redirectURI := callback.RedirectURI()

	clientInfo, err := f.registrar.GetOrRegisterClient(ctx, f.serverURL, metadata.AuthServer, redirectURI)
	if err != nil {
		return nil, err
	}

	req := f.authorizationRequest(metadata, clientInfo)
	req.RedirectURI = redirectURI
	req.Scopes = f.selectScopes(metadata)

	authURL, err := f.client.BuildAuthorizationURL(req, state, pkce)
	if err != nil {
		return nil, err
	}

	logger.Debug("Starting authorization",
		"authorization_endpoint", req.AuthorizationEndpoint,
		"client_id", req.ClientID,
		"scopes", req.Scopes)

	f.presenter.Present(authURL)

	code, err := callback.Wait(ctx)
	if err != nil {
		return nil, err
	}

	token, err := f.client.ExchangeCode(ctx, req, code, pkce.CodeVerifier)
	if err != nil {
		return nil, err
	}

	if err := f.cache.SaveTokens(f.serverURL, token); err != nil {
		logger.Warn("Failed to persist tokens, they will only be valid for this invocation", "error", err)
	}

	logger.Info("Authentication completed", "token", token)
	return token, nil
}

// RefreshStoredToken exchanges the refresh token of tok for new tokens using
// the cached metadata and client identity. Nothing is rediscovered; missing
// cached state is reported as *oauth.CacheError.
func (f *Flow) RefreshStoredToken(ctx context.Context, tok *oauth.Token) (*oauth.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, &oauth.CacheError{Op: "refresh token", ServerURL: f.serverURL, Reason: "no refresh token stored"}
	}

	metadata, err := f.cache.LoadServerMetadata(f.serverURL)
	if err != nil {
		return nil, err
	}
	if metadata == nil || metadata.AuthServer == nil {
		return nil, &oauth.CacheError{Op: "refresh token", ServerURL: f.serverURL, Reason: "no cached server metadata"}
	}

	clientInfo, err := f.registrar.CachedClient(f.serverURL)
	if err != nil {
		return nil, err
	}
	if clientInfo == nil {
		return nil, &oauth.CacheError{Op: "refresh token", ServerURL: f.serverURL, Reason: "no client registration stored"}
	}

	req := f.authorizationRequest(metadata, clientInfo)
	token, err := f.client.RefreshToken(ctx, req, tok.RefreshToken)
	if err != nil {
		return nil, err
	}

	if err := f.cache.SaveTokens(f.serverURL, token); err != nil {
		f.logger.Warn("Failed to persist refreshed tokens", "server_url", f.serverURL, "error", err)
	}

	f.logger.Debug("Refreshed access token", "server_url", f.serverURL, "token", token)
	return token, nil
}

// ServerMetadata returns cached discovery metadata while it is fresh and
// otherwise discovers and caches both documents again.
func (f *Flow) ServerMetadata(ctx context.Context) (*oauth.ServerMetadata, error) {
	cached, err := f.cache.LoadServerMetadata(f.serverURL)
	if err != nil {
		return nil, err
	}
	if cached.IsFresh(f.now()) {
		f.logger.Debug("Using cached server metadata", "server_url", f.serverURL)
		return cached, nil
	}

	resource, err := f.client.DiscoverProtectedResource(ctx, f.serverURL)
	if err != nil {
		return nil, err
	}

	issuer := ""
	if len(resource.Metadata.AuthorizationServers) > 0 {
		issuer = resource.Metadata.AuthorizationServers[0]
	} else {
		// The resource server is its own authorization server
		issuer, err = oauth.ServerOrigin(f.serverURL)
		if err != nil {
			return nil, err
		}
	}

	authServer, err := f.client.DiscoverAuthorizationServer(ctx, issuer)
	if err != nil {
		return nil, err
	}

	metadata := &oauth.ServerMetadata{
		ProtectedResource: resource.Metadata,
		AuthServer:        authServer,
		DiscoveredAt:      f.now().UnixMilli(),
	}
	if err := f.cache.SaveServerMetadata(f.serverURL, metadata); err != nil {
		f.logger.Warn("Failed to cache server metadata", "server_url", f.serverURL, "error", err)
	}

	f.logger.Debug("Discovered server metadata",
		"server_url", f.serverURL,
		"resource_metadata_url", resource.URL,
		"path_aware", resource.UsedPathAwareDiscovery,
		"issuer", authServer.Issuer)

	return metadata, nil
}

func (f *Flow) authorizationRequest(metadata *oauth.ServerMetadata, client *oauth.ClientInfo) *oauth.AuthorizationRequest {
	resource := f.serverURL
	if metadata.ProtectedResource != nil && metadata.ProtectedResource.Resource != "" {
		resource = metadata.ProtectedResource.Resource
	}

	return &oauth.AuthorizationRequest{
		AuthorizationEndpoint: metadata.AuthServer.AuthorizationEndpoint,
		TokenEndpoint:         metadata.AuthServer.TokenEndpoint,
		ClientID:              client.ClientID,
		ClientSecret:          client.ClientSecret,
		Resource:              resource,
	}
}

// selectScopes prefers configured scopes, then the resource's, then the
// authorization server's, then DefaultScopes.
func (f *Flow) selectScopes(metadata *oauth.ServerMetadata) []string {
	switch {
	case len(f.scopes) > 0:
		return f.scopes
	case metadata.ProtectedResource != nil && len(metadata.ProtectedResource.ScopesSupported) > 0:
		return metadata.ProtectedResource.ScopesSupported
	case len(metadata.AuthServer.ScopesSupported) > 0:
		return metadata.AuthServer.ScopesSupported
	default:
		return DefaultScopes
	}
}
