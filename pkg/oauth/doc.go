// Package oauth provides the OAuth 2.1 protocol pieces used by the apiprobe
// credential subsystem.
//
// It holds no credential state. Callers wrap it with their own storage and
// user interaction (see internal/auth).
//
// # Core Components
//
//   - PKCE: verifier/challenge generation (RFC 7636) and state tokens
//   - Discovery: protected resource metadata (RFC 9728) with path-aware
//     lookup, and authorization server metadata (RFC 8414 / OIDC)
//   - Registration: dynamic client registration (RFC 7591)
//   - Token exchange: authorization code and refresh token grants via
//     golang.org/x/oauth2
//   - Errors: DiscoveryError, RegistrationError, CallbackError,
//     ExchangeError and CacheError
//
// # Usage
//
//	client := oauth.NewClient(oauth.WithLogger(logger))
//
//	resource, err := client.DiscoverProtectedResource(ctx, "https://api.example.com/v1")
//	if err != nil {
//	    return err
//	}
//	metadata, err := client.DiscoverAuthorizationServer(ctx, resource.Metadata.AuthorizationServers[0])
package oauth
