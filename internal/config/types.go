package config

import "time"

// Config is the top-level apiprobe configuration.
type Config struct {
	// ServerURL is the protected API server to authenticate against.
	ServerURL string `yaml:"server_url,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`

	OAuth OAuthConfig `yaml:"oauth,omitempty"`
}

// OAuthConfig configures the OAuth client.
type OAuthConfig struct {
	// ClientID, when set, is used instead of dynamic client registration.
	ClientID     string `yaml:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty"`

	// ClientName is sent as client_name during dynamic registration.
	ClientName string `yaml:"client_name,omitempty"`

	// Scopes overrides the scopes advertised by the server.
	Scopes []string `yaml:"scopes,omitempty"`

	// CallbackPort is the loopback redirect port; 0 lets the OS choose.
	CallbackPort int `yaml:"callback_port"`

	// CallbackTimeout bounds the wait for the browser redirect.
	CallbackTimeout time.Duration `yaml:"callback_timeout,omitempty"`

	// ProtocolVersion is sent with metadata discovery requests.
	ProtocolVersion string `yaml:"protocol_version,omitempty"`

	// CacheDir overrides the credential directory.
	CacheDir string `yaml:"cache_dir,omitempty"`
}
