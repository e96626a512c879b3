package oauth

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultExpiryMargin is the default margin when checking token expiry.
// This accounts for clock skew and network latency.
const DefaultExpiryMargin = 30 * time.Second

// MetadataFreshness is how long discovered server metadata may be reused
// before discovery has to run again.
const MetadataFreshness = 24 * time.Hour

// ServerOrigin returns the origin (scheme://host[:port]) of a server URL.
// The origin is the namespace for every cached credential of that server.
func ServerOrigin(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: scheme and host are required", serverURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// Token represents an OAuth access token with associated metadata.
// ExpiresAt is an absolute epoch-millisecond timestamp; zero means the
// token does not expire.
type Token struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the expiry as epoch milliseconds.
	ExpiresAt int64 `json:"expires_at,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`
}

// Expiry returns ExpiresAt as a time.Time, or the zero time when unset.
func (t *Token) Expiry() time.Time {
	if t.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.ExpiresAt)
}

// IsExpired reports whether the token is expired or expires within
// DefaultExpiryMargin of now.
func (t *Token) IsExpired(now time.Time) bool {
	return t.IsExpiredWithMargin(now, DefaultExpiryMargin)
}

// IsExpiredWithMargin reports whether the token expires within margin of now.
func (t *Token) IsExpiredWithMargin(now time.Time, margin time.Duration) bool {
	if t.ExpiresAt == 0 {
		return false
	}
	return !now.Add(margin).Before(t.Expiry())
}

// Scopes returns the scope as a slice of individual scopes.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// ToOAuth2Token converts the Token to an oauth2.Token.
func (t *Token) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry(),
	}
}

// TokenFromOAuth2 converts an oauth2.Token returned by a token endpoint.
func TokenFromOAuth2(tok *oauth2.Token) *Token {
	t := &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if t.TokenType == "" {
		t.TokenType = "Bearer"
	}
	if !tok.Expiry.IsZero() {
		t.ExpiresAt = tok.Expiry.UnixMilli()
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}
	return t
}

// ProtectedResourceMetadata is the OAuth 2.0 Protected Resource Metadata
// document defined in RFC 9728.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	JwksURI                string   `json:"jwks_uri,omitempty"`
	ResourceName           string   `json:"resource_name,omitempty"`
}

// ProtectedResourceResult is the outcome of protected resource discovery.
type ProtectedResourceResult struct {
	Metadata *ProtectedResourceMetadata

	// URL is the well-known URL that served the document.
	URL string

	// UsedPathAwareDiscovery is true when the path-suffixed well-known URL
	// answered, false when the base URL did.
	UsedPathAwareDiscovery bool
}

// Metadata represents OAuth 2.0 Authorization Server Metadata as defined in RFC 8414.
type Metadata struct {
	// Issuer is the authorization server's issuer identifier.
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint.
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint.
	TokenEndpoint string `json:"token_endpoint"`

	// RegistrationEndpoint is the URL for dynamic client registration.
	RegistrationEndpoint string `json:"registration_endpoint,omitempty"`

	// JwksURI is the URL of the JSON Web Key Set.
	JwksURI string `json:"jwks_uri,omitempty"`

	// ScopesSupported lists the OAuth 2.0 scope values supported.
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// ResponseTypesSupported lists the response_type values supported.
	ResponseTypesSupported []string `json:"response_types_supported,omitempty"`

	// GrantTypesSupported lists the grant types supported.
	GrantTypesSupported []string `json:"grant_types_supported,omitempty"`

	// TokenEndpointAuthMethodsSupported lists the client authentication methods.
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`

	// CodeChallengeMethodsSupported lists the PKCE code challenge methods.
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// SupportsPKCE returns true if the server supports S256 PKCE.
func (m *Metadata) SupportsPKCE() bool {
	for _, method := range m.CodeChallengeMethodsSupported {
		if method == CodeChallengeMethodS256 {
			return true
		}
	}
	// If not specified, assume S256 is supported (OAuth 2.1 requirement)
	return len(m.CodeChallengeMethodsSupported) == 0
}

// ServerMetadata bundles both discovery documents with the time they were
// fetched, so they can be reused across invocations.
type ServerMetadata struct {
	ProtectedResource *ProtectedResourceMetadata `json:"protected_resource"`
	AuthServer        *Metadata                  `json:"auth_server"`

	// DiscoveredAt is epoch milliseconds.
	DiscoveredAt int64 `json:"discovered_at"`
}

// IsFresh reports whether the metadata was discovered less than
// MetadataFreshness before now.
func (m *ServerMetadata) IsFresh(now time.Time) bool {
	if m == nil || m.AuthServer == nil {
		return false
	}
	return now.Sub(time.UnixMilli(m.DiscoveredAt)) < MetadataFreshness
}

// ClientInfo is a client identity, either configured out of band or
// issued by dynamic client registration.
type ClientInfo struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`

	// ClientIDIssuedAt and ClientSecretExpiresAt are epoch seconds (RFC 7591).
	ClientIDIssuedAt      int64 `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt int64 `json:"client_secret_expires_at,omitempty"`
}

// Grant types used by this client.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// TokenEndpointAuthMethodNone marks a public client that authenticates
// with PKCE instead of a secret.
const TokenEndpointAuthMethodNone = "none"

// ClientRegistrationRequest is the RFC 7591 dynamic client registration request.
type ClientRegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// ClientRegistrationResponse is the RFC 7591 registration response.
type ClientRegistrationResponse struct {
	ClientID              string `json:"client_id"`
	ClientSecret          string `json:"client_secret,omitempty"`
	ClientIDIssuedAt      int64  `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt int64  `json:"client_secret_expires_at,omitempty"`

	ClientName              string    `json:"client_name,omitempty"`
	RedirectURIs            []string  `json:"redirect_uris,omitempty"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string  `json:"grant_types,omitempty"`
	Scope                   ScopeList `json:"scope,omitempty"`
}

// ClientInfo returns the persisted form of the registration.
func (r *ClientRegistrationResponse) ClientInfo() *ClientInfo {
	return &ClientInfo{
		ClientID:              r.ClientID,
		ClientSecret:          r.ClientSecret,
		ClientIDIssuedAt:      r.ClientIDIssuedAt,
		ClientSecretExpiresAt: r.ClientSecretExpiresAt,
	}
}

// ScopeList decodes a scope given either as a space separated string or as
// a JSON array; authorization servers disagree on the form.
type ScopeList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *ScopeList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		fields := strings.Fields(str)
		if len(fields) == 0 {
			*s = nil
			return nil
		}
		*s = fields
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		out := make([]string, 0, len(arr))
		for _, v := range arr {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		*s = out
		return nil
	}

	return fmt.Errorf("invalid scope format: %s", string(data))
}
