// Package auth obtains and caches OAuth 2.1 credentials for an API server.
//
// The pieces, from the outside in:
//
//   - Provider resolves an access token: APIPROBE_ACCESS_TOKEN, then a valid
//     cached token, then a refresh grant, then the interactive flow.
//   - Flow discovers the authorization server, registers a client if needed,
//     and runs the authorization code flow with PKCE.
//   - CallbackServer receives the redirect on 127.0.0.1.
//   - FileCache persists tokens, client registrations and discovery metadata
//     per server origin.
//
// # Storage
//
// Credentials are stored in an XDG-compliant location:
//
//	~/.config/apiprobe/credentials/{origin-hash}.json
//
// Files are written with 0600 permissions and token values are never logged.
//
// # Usage
//
//	cache, err := auth.NewFileCache(auth.FileCacheConfig{Logger: logger})
//	flow, err := auth.NewFlow(auth.FlowConfig{
//	    ServerURL: "https://api.example.com/v1",
//	    Client:    oauth.NewClient(oauth.WithLogger(logger)),
//	    Cache:     cache,
//	})
//	provider := auth.NewProvider(auth.ProviderConfig{
//	    ServerURL: "https://api.example.com/v1",
//	    Cache:     cache,
//	    Flow:      flow,
//	})
//	header, err := provider.AuthorizationHeader(ctx)
package auth
