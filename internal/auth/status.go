package auth

import (
	"strings"
	"time"

	"github.com/giantswarm/apiprobe/pkg/oauth"
)

// Status summarizes what is cached for a server.
type Status struct {
	ServerURL string

	// FromEnv is set when APIPROBE_ACCESS_TOKEN overrides the cache.
	FromEnv bool

	HasToken        bool
	TokenExpiresAt  time.Time
	TokenExpired    bool
	HasRefreshToken bool
	Scopes          []string

	ClientID string

	Issuer               string
	MetadataDiscoveredAt time.Time
	MetadataFresh        bool
}

// Authenticated reports whether a request could be sent without logging in.
func (s *Status) Authenticated() bool {
	return s.FromEnv || (s.HasToken && !s.TokenExpired) || s.HasRefreshToken
}

// Status reads the cache for the server. It never performs network I/O.
func (p *Provider) Status() (*Status, error) {
	status := &Status{ServerURL: p.serverURL}
	if origin, err := oauth.ServerOrigin(p.serverURL); err == nil {
		status.ServerURL = origin
	}

	status.FromEnv = strings.TrimSpace(p.getenv(EnvAccessToken)) != ""

	tok, err := p.cache.LoadTokens(p.serverURL)
	if err != nil {
		return nil, err
	}
	if tok != nil && tok.AccessToken != "" {
		status.HasToken = true
		status.TokenExpiresAt = tok.Expiry()
		status.TokenExpired = tok.IsExpiredWithMargin(p.now(), p.expiryMargin)
		status.HasRefreshToken = tok.RefreshToken != ""
		status.Scopes = tok.Scopes()
	}

	client, err := p.cache.LoadClientInfo(p.serverURL)
	if err != nil {
		return nil, err
	}
	if client != nil {
		status.ClientID = client.ClientID
	}

	metadata, err := p.cache.LoadServerMetadata(p.serverURL)
	if err != nil {
		return nil, err
	}
	if metadata != nil && metadata.AuthServer != nil {
		status.Issuer = metadata.AuthServer.Issuer
		status.MetadataDiscoveredAt = time.UnixMilli(metadata.DiscoveredAt)
		status.MetadataFresh = metadata.IsFresh(p.now())
	}

	return status, nil
}
