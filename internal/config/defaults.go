package config

import (
	"time"

	"github.com/giantswarm/apiprobe/internal/auth"
	"github.com/giantswarm/apiprobe/pkg/oauth"
)

const (
	// DefaultCallbackPort keeps the redirect URI stable so a dynamically
	// registered client stays valid across invocations.
	DefaultCallbackPort = 3000

	// DefaultCallbackTimeout is how long login waits for the browser.
	DefaultCallbackTimeout = 5 * time.Minute

	// DefaultLogLevel is the log level when none is configured.
	DefaultLogLevel = "warn"
)

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		OAuth: OAuthConfig{
			ClientName:      auth.DefaultClientName,
			CallbackPort:    DefaultCallbackPort,
			CallbackTimeout: DefaultCallbackTimeout,
			ProtocolVersion: oauth.DefaultProtocolVersion,
		},
	}
}
