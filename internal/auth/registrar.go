package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/giantswarm/apiprobe/pkg/oauth"
)

// DefaultClientName is sent as client_name during dynamic registration.
const DefaultClientName = "apiprobe"

// RegistrarConfig configures a Registrar.
type RegistrarConfig struct {
	Client *oauth.Client
	Cache  Cache

	// ClientID, when set, is used as-is and registration never happens.
	ClientID     string
	ClientSecret string

	// ClientName defaults to DefaultClientName.
	ClientName string

	Logger *slog.Logger
}

// Registrar resolves the OAuth client identity for a server: a configured
// static client, a previously registered one, or a fresh dynamic registration.
type Registrar struct {
	client       *oauth.Client
	cache        Cache
	clientID     string
	clientSecret string
	clientName   string
	logger       *slog.Logger
}

// NewRegistrar creates a registrar.
func NewRegistrar(cfg RegistrarConfig) *Registrar {
	name := cfg.ClientName
	if name == "" {
		name = DefaultClientName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registrar{
		client:       cfg.Client,
		cache:        cfg.Cache,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		clientName:   name,
		logger:       logger,
	}
}

// CachedClient returns the configured static client or the cached
// registration, or nil when neither exists. It never registers.
func (r *Registrar) CachedClient(serverURL string) (*oauth.ClientInfo, error) {
	if r.clientID != "" {
		return &oauth.ClientInfo{ClientID: r.clientID, ClientSecret: r.clientSecret}, nil
	}

	cached, err := r.cache.LoadClientInfo(serverURL)
	if err != nil {
		return nil, err
	}
	if cached == nil || cached.ClientID == "" {
		return nil, nil
	}
	return cached, nil
}

// GetOrRegisterClient returns the client identity to use with authServer.
// A newly registered identity is persisted before it is returned.
func (r *Registrar) GetOrRegisterClient(ctx context.Context, serverURL string, authServer *oauth.Metadata, redirectURI string) (*oauth.ClientInfo, error) {
	existing, err := r.CachedClient(serverURL)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		r.logger.Debug("Using existing OAuth client", "server_url", serverURL, "client_id", existing.ClientID)
		return existing, nil
	}

	if authServer == nil || authServer.RegistrationEndpoint == "" {
		issuer := ""
		if authServer != nil {
			issuer = authServer.Issuer
		}
		return nil, &oauth.RegistrationError{
			Reason: fmt.Sprintf("authorization server %s does not support dynamic client registration; configure a client ID instead", issuer),
		}
	}

	request := oauth.NewClientRegistrationRequest(r.clientName, redirectURI)
	resp, err := r.client.RegisterClient(ctx, authServer.RegistrationEndpoint, request)
	if err != nil {
		return nil, err
	}

	info := resp.ClientInfo()
	if err := r.cache.SaveClientInfo(serverURL, info); err != nil {
		return nil, fmt.Errorf("failed to persist registered client: %w", err)
	}

	r.logger.Info("Registered OAuth client",
		"server_url", serverURL,
		"client", info)

	return info, nil
}
