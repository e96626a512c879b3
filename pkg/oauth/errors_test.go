package oauth

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoveryError(t *testing.T) {
	err := &DiscoveryError{URL: "https://api.example.com/.well-known/oauth-protected-resource", StatusCode: 404}
	assert.True(t, err.IsNotFound())
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Contains(t, err.Error(), "https://api.example.com/.well-known/oauth-protected-resource")

	wrapped := &DiscoveryError{URL: "https://x", Err: io.ErrUnexpectedEOF}
	assert.False(t, wrapped.IsNotFound())
	assert.True(t, errors.Is(wrapped, io.ErrUnexpectedEOF))
}

func TestRegistrationError(t *testing.T) {
	missing := &RegistrationError{Reason: "authorization server does not advertise a registration_endpoint"}
	assert.Contains(t, missing.Error(), "registration_endpoint")

	rejected := &RegistrationError{Endpoint: "https://issuer/register", StatusCode: 400, Body: "bad"}
	assert.Equal(t, "client registration at https://issuer/register failed with status 400: bad", rejected.Error())
}

func TestCallbackError(t *testing.T) {
	tests := []struct {
		err  *CallbackError
		want string
	}{
		{
			err:  &CallbackError{Kind: CallbackAuthorizationDenied, Code: "access_denied", Description: "user said no"},
			want: "authorization failed: access_denied - user said no",
		},
		{
			err:  &CallbackError{Kind: CallbackAuthorizationDenied, Code: "access_denied"},
			want: "authorization failed: access_denied",
		},
		{
			err:  &CallbackError{Kind: CallbackStateMismatch},
			want: "state mismatch in authorization callback - possible CSRF attack",
		},
		{
			err:  &CallbackError{Kind: CallbackMissingCode},
			want: "authorization callback did not include an authorization code",
		},
		{
			err:  &CallbackError{Kind: CallbackTimeout, Description: "5m0s"},
			want: "timed out waiting for authorization callback after 5m0s",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestCacheError(t *testing.T) {
	err := &CacheError{Op: "refresh token", ServerURL: "https://api.example.com", Reason: "no cached server metadata"}
	assert.Equal(t, "refresh token for https://api.example.com: no cached server metadata", err.Error())
}
