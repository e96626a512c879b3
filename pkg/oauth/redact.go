package oauth

import (
	"log/slog"
)

// Redacted replaces secret values in log output.
const Redacted = "[REDACTED]"

// redact hides a secret while still showing whether one was present.
func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return Redacted
}

// LogValue implements slog.LogValuer so a token passed to a logger never
// prints its access or refresh token.
func (t *Token) LogValue() slog.Value {
	if t == nil {
		return slog.StringValue("<nil>")
	}
	attrs := []slog.Attr{
		slog.String("access_token", redact(t.AccessToken)),
		slog.String("token_type", t.TokenType),
		slog.Bool("has_refresh_token", t.RefreshToken != ""),
		slog.String("scope", t.Scope),
	}
	if !t.Expiry().IsZero() {
		attrs = append(attrs, slog.Time("expires_at", t.Expiry()))
	}
	return slog.GroupValue(attrs...)
}

// LogValue implements slog.LogValuer; the client secret is never printed.
func (c *ClientInfo) LogValue() slog.Value {
	if c == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("client_id", c.ClientID),
		slog.String("client_secret", redact(c.ClientSecret)),
	)
}
