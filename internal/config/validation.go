package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/giantswarm/apiprobe/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the configuration for values that cannot work.
// An empty server URL is allowed here; commands that need one check it.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.ServerURL != "" {
		if err := ValidateServerURL(c.ServerURL); err != nil {
			errs.Add("server_url", err.Error(), c.ServerURL)
		}
	}

	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			errs.Add("log_level", err.Error(), c.LogLevel)
		}
	}

	if c.OAuth.CallbackPort < 0 || c.OAuth.CallbackPort > 65535 {
		errs.Add("oauth.callback_port", "must be between 0 and 65535", c.OAuth.CallbackPort)
	}
	if c.OAuth.CallbackTimeout < 0 {
		errs.Add("oauth.callback_timeout", "must not be negative", c.OAuth.CallbackTimeout)
	}
	if c.OAuth.ClientSecret != "" && c.OAuth.ClientID == "" {
		errs.Add("oauth.client_secret", "requires oauth.client_id")
	}
	for i, scope := range c.OAuth.Scopes {
		if strings.TrimSpace(scope) == "" || strings.ContainsAny(scope, " \t") {
			errs.Add(fmt.Sprintf("oauth.scopes[%d]", i), "must be a single non-empty scope", scope)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateServerURL checks that serverURL is an absolute http(s) URL.
func ValidateServerURL(serverURL string) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
