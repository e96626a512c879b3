package cli

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }

func (timeoutError) Timeout() bool { return true }

func (timeoutError) Temporary() bool { return true }

func TestClassifyConnectionError(t *testing.T) {
	const endpoint = "https://api.example.com"

	tests := []struct {
		name     string
		err      error
		wantType ConnectionErrorType
		wantNil  bool
	}{
		{
			name:     "unknown authority",
			err:      &url.Error{Op: "Get", URL: endpoint, Err: x509.UnknownAuthorityError{}},
			wantType: ConnectionErrorTLS,
		},
		{
			name:     "dns",
			err:      &url.Error{Op: "Get", URL: endpoint, Err: &net.DNSError{Err: "no such host", Name: "api.example.com"}},
			wantType: ConnectionErrorDNS,
		},
		{
			name:     "net timeout",
			err:      &url.Error{Op: "Get", URL: endpoint, Err: timeoutError{}},
			wantType: ConnectionErrorTimeout,
		},
		{
			name:     "context deadline",
			err:      fmt.Errorf("discovery: %w", context.DeadlineExceeded),
			wantType: ConnectionErrorTimeout,
		},
		{
			name:     "refused",
			err:      errors.New("dial tcp 127.0.0.1:443: connect: connection refused"),
			wantType: ConnectionErrorNetwork,
		},
		{
			name:    "not a transport error",
			err:     errors.New("invalid_grant"),
			wantNil: true,
		},
		{
			name:    "nil",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyConnectionError(tt.err, endpoint)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, endpoint, got.Endpoint)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestConnectionErrorType_String(t *testing.T) {
	assert.Equal(t, "TLS certificate error", ConnectionErrorTLS.String())
	assert.Equal(t, "DNS resolution error", ConnectionErrorDNS.String())
	assert.Equal(t, "Connection error", ConnectionErrorUnknown.String())
}

func TestAuthRequiredError(t *testing.T) {
	err := fmt.Errorf("resolving token: %w", &AuthRequiredError{Endpoint: "https://api.example.com"})

	assert.ErrorIs(t, err, &AuthRequiredError{})
	assert.Contains(t, err.Error(), "apiprobe auth login --server https://api.example.com")

	var target *AuthRequiredError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "https://api.example.com", target.Endpoint)
}

func TestAuthFailedError(t *testing.T) {
	reason := errors.New("authorization denied")
	err := &AuthFailedError{Endpoint: "https://api.example.com", Reason: reason}

	assert.ErrorIs(t, err, reason)
	assert.ErrorIs(t, err, &AuthFailedError{})
	assert.NotErrorIs(t, err, &AuthRequiredError{})
	assert.Contains(t, err.Error(), "authorization denied")
}
