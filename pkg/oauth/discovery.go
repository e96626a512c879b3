package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	protectedResourceWellKnown = "/.well-known/oauth-protected-resource"
	authServerWellKnown        = "/.well-known/oauth-authorization-server"
	openIDWellKnown            = "/.well-known/openid-configuration"
)

// DiscoverProtectedResource fetches the RFC 9728 protected resource
// metadata for serverURL.
//
// The path-aware location {origin}/.well-known/oauth-protected-resource{path}
// is tried first. Only a 404 from it falls back to the base location without
// the path suffix; any other failure is returned immediately.
func (c *Client) DiscoverProtectedResource(ctx context.Context, serverURL string) (*ProtectedResourceResult, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	origin, err := ServerOrigin(serverURL)
	if err != nil {
		return nil, err
	}

	if path := strings.TrimSuffix(u.EscapedPath(), "/"); path != "" {
		pathURL := origin + protectedResourceWellKnown + path
		metadata, err := c.fetchProtectedResource(ctx, pathURL)
		if err == nil {
			return &ProtectedResourceResult{
				Metadata:               metadata,
				URL:                    pathURL,
				UsedPathAwareDiscovery: true,
			}, nil
		}

		var discoveryErr *DiscoveryError
		if !errors.As(err, &discoveryErr) || !discoveryErr.IsNotFound() {
			return nil, err
		}

		c.logger.Debug("Path-aware protected resource metadata not found, trying base URL",
			"url", pathURL)
	}

	baseURL := origin + protectedResourceWellKnown
	metadata, err := c.fetchProtectedResource(ctx, baseURL)
	if err != nil {
		return nil, err
	}

	return &ProtectedResourceResult{
		Metadata:               metadata,
		URL:                    baseURL,
		UsedPathAwareDiscovery: false,
	}, nil
}

func (c *Client) fetchProtectedResource(ctx context.Context, metadataURL string) (*ProtectedResourceMetadata, error) {
	var metadata ProtectedResourceMetadata
	if err := c.fetchJSON(ctx, metadataURL, &metadata); err != nil {
		return nil, err
	}

	// RFC 9728 section 3.2: resource is required
	if metadata.Resource == "" {
		return nil, &DiscoveryError{
			URL:    metadataURL,
			Reason: "metadata missing required 'resource' field",
		}
	}

	return &metadata, nil
}

// DiscoverAuthorizationServer fetches the RFC 8414 metadata of issuerURL.
//
// For issuers with a path component the path is appended after the
// well-known segment as RFC 8414 section 3.1 requires. When that document
// does not exist (404) the OpenID Connect discovery document is used
// instead. Transport and parse errors are returned unchanged.
func (c *Client) DiscoverAuthorizationServer(ctx context.Context, issuerURL string) (*Metadata, error) {
	issuer := strings.TrimSuffix(issuerURL, "/")

	// Use singleflight to deduplicate concurrent fetches
	result, err, _ := c.metadataGroup.Do(issuer, func() (interface{}, error) {
		return c.doDiscoverAuthorizationServer(ctx, issuer)
	})
	if err != nil {
		return nil, err
	}

	return result.(*Metadata), nil
}

func (c *Client) doDiscoverAuthorizationServer(ctx context.Context, issuer string) (*Metadata, error) {
	u, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer URL %q: %w", issuer, err)
	}
	origin, err := ServerOrigin(issuer)
	if err != nil {
		return nil, err
	}

	wellKnownURL := origin + authServerWellKnown + strings.TrimSuffix(u.EscapedPath(), "/")
	metadata, err := c.fetchAuthServerMetadata(ctx, wellKnownURL, issuer)
	if err == nil {
		return metadata, nil
	}

	var discoveryErr *DiscoveryError
	if !errors.As(err, &discoveryErr) || !discoveryErr.IsNotFound() {
		return nil, err
	}

	c.logger.Debug("RFC 8414 metadata not found, trying OIDC",
		"issuer", issuer)

	return c.fetchAuthServerMetadata(ctx, issuer+openIDWellKnown, issuer)
}

func (c *Client) fetchAuthServerMetadata(ctx context.Context, metadataURL, issuer string) (*Metadata, error) {
	var metadata Metadata
	if err := c.fetchJSON(ctx, metadataURL, &metadata); err != nil {
		return nil, err
	}

	var missing []string
	if metadata.AuthorizationEndpoint == "" {
		missing = append(missing, "authorization_endpoint")
	}
	if metadata.TokenEndpoint == "" {
		missing = append(missing, "token_endpoint")
	}
	if len(missing) > 0 {
		return nil, &DiscoveryError{
			URL:    metadataURL,
			Reason: "metadata missing required field(s): " + strings.Join(missing, ", "),
		}
	}

	if metadata.Issuer == "" {
		metadata.Issuer = issuer
	}

	c.logger.Debug("Discovered authorization server metadata",
		"issuer", metadata.Issuer,
		"authorization_endpoint", metadata.AuthorizationEndpoint,
		"token_endpoint", metadata.TokenEndpoint,
		"registration_endpoint", metadata.RegistrationEndpoint)

	return &metadata, nil
}

// fetchJSON GETs a metadata document and decodes it into out.
// Every failure is reported as a *DiscoveryError.
func (c *Client) fetchJSON(ctx context.Context, metadataURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return &DiscoveryError{URL: metadataURL, Reason: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.protocolVersion != "" {
		req.Header.Set(ProtocolVersionHeader, c.protocolVersion)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DiscoveryError{URL: metadataURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return &DiscoveryError{URL: metadataURL, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return &DiscoveryError{
			URL:        metadataURL,
			StatusCode: resp.StatusCode,
			Reason:     "failed to parse metadata",
			Err:        err,
		}
	}

	return nil
}
