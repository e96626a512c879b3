package oauth

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultProtocolVersion is sent with discovery requests so servers that
	// version their metadata answer consistently.
	DefaultProtocolVersion = "2025-06-18"

	// ProtocolVersionHeader carries DefaultProtocolVersion.
	ProtocolVersionHeader = "MCP-Protocol-Version"

	// maxResponseSize bounds every metadata, registration and token body.
	maxResponseSize = 1 << 20
)

// Client handles OAuth 2.1 protocol operations: metadata discovery,
// dynamic client registration, code exchange and token refresh.
// It holds no credential state; persistence is the caller's concern.
type Client struct {
	httpClient      *http.Client
	logger          *slog.Logger
	protocolVersion string

	// singleflight group to deduplicate concurrent metadata fetches
	metadataGroup singleflight.Group
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithProtocolVersion overrides the protocol version header value.
func WithProtocolVersion(version string) ClientOption {
	return func(c *Client) {
		c.protocolVersion = version
	}
}

// NewClient creates a new OAuth client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:      &http.Client{Timeout: DefaultHTTPTimeout},
		logger:          slog.Default(),
		protocolVersion: DefaultProtocolVersion,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}
