package oauth

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthRequired is returned when no usable credential exists and the
// caller did not allow an interactive flow.
var ErrAuthRequired = errors.New("authentication required")

// DiscoveryError reports a failed metadata discovery request.
type DiscoveryError struct {
	// URL is the well-known URL that was requested.
	URL string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Reason describes what was wrong with the response.
	Reason string

	// Err is the underlying transport or decoding error, if any.
	Err error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	msg := "metadata discovery failed for " + e.URL
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the well-known document did not exist.
// Only this case allows falling back to another discovery URL.
func (e *DiscoveryError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// RegistrationError reports a failed dynamic client registration.
type RegistrationError struct {
	// Endpoint is the registration endpoint, empty when the server has none.
	Endpoint string

	StatusCode int

	// Body is the response body as returned by the server.
	Body string

	Reason string
	Err    error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("client registration at %s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("client registration at %s failed: %v", e.Endpoint, e.Err)
	default:
		return "client registration failed: " + e.Reason
	}
}

// Unwrap returns the underlying error.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// CallbackErrorKind classifies why the authorization callback failed.
type CallbackErrorKind string

const (
	// CallbackAuthorizationDenied means the authorization server redirected
	// back with an error parameter.
	CallbackAuthorizationDenied CallbackErrorKind = "authorization_denied"

	// CallbackStateMismatch means the state did not match the one issued
	// for this flow, which may be a forged redirect.
	CallbackStateMismatch CallbackErrorKind = "state_mismatch"

	// CallbackMissingCode means the redirect carried no authorization code.
	CallbackMissingCode CallbackErrorKind = "missing_code"

	// CallbackTimeout means no callback arrived in time.
	CallbackTimeout CallbackErrorKind = "timeout"

	// CallbackCancelled means the waiting caller gave up.
	CallbackCancelled CallbackErrorKind = "cancelled"
)

// CallbackError reports a failed authorization callback.
type CallbackError struct {
	Kind CallbackErrorKind

	// Code is the OAuth error code for CallbackAuthorizationDenied.
	Code        string
	Description string
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	switch e.Kind {
	case CallbackAuthorizationDenied:
		if e.Description != "" {
			return fmt.Sprintf("authorization failed: %s - %s", e.Code, e.Description)
		}
		return "authorization failed: " + e.Code
	case CallbackStateMismatch:
		return "state mismatch in authorization callback - possible CSRF attack"
	case CallbackMissingCode:
		return "authorization callback did not include an authorization code"
	case CallbackTimeout:
		if e.Description != "" {
			return "timed out waiting for authorization callback after " + e.Description
		}
		return "timed out waiting for authorization callback"
	case CallbackCancelled:
		return "authorization cancelled: " + e.Description
	default:
		return "authorization callback failed: " + e.Description
	}
}

// ExchangeError reports a failed request to the token endpoint.
type ExchangeError struct {
	Endpoint string

	// GrantType is authorization_code or refresh_token.
	GrantType string

	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s grant at %s failed with status %d: %s", e.GrantType, e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s grant at %s failed: %v", e.GrantType, e.Endpoint, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// CacheError reports missing or unreadable cached state.
type CacheError struct {
	// Op is the operation that needed the cached value.
	Op        string
	ServerURL string
	Reason    string
	Err       error
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	msg := fmt.Sprintf("%s for %s: %s", e.Op, e.ServerURL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error {
	return e.Err
}
