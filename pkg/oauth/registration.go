package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// NewClientRegistrationRequest builds the registration request for a
// public client using the authorization code flow with PKCE.
func NewClientRegistrationRequest(clientName, redirectURI string) *ClientRegistrationRequest {
	return &ClientRegistrationRequest{
		RedirectURIs:            []string{redirectURI},
		ClientName:              clientName,
		TokenEndpointAuthMethod: TokenEndpointAuthMethodNone,
		GrantTypes:              []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken},
		ResponseTypes:           []string{"code"},
	}
}

// RegisterClient performs dynamic client registration (RFC 7591) at the
// given registration endpoint.
func (c *Client) RegisterClient(ctx context.Context, registrationEndpoint string, request *ClientRegistrationRequest) (*ClientRegistrationResponse, error) {
	if request == nil || len(request.RedirectURIs) == 0 {
		return nil, &RegistrationError{Endpoint: registrationEndpoint, Reason: "at least one redirect URI is required"}
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal registration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &RegistrationError{Endpoint: registrationEndpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RegistrationError{Endpoint: registrationEndpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &RegistrationError{Endpoint: registrationEndpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RegistrationError{
			Endpoint:   registrationEndpoint,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var registration ClientRegistrationResponse
	if err := json.Unmarshal(respBody, &registration); err != nil {
		return nil, &RegistrationError{
			Endpoint: registrationEndpoint,
			Err:      fmt.Errorf("failed to parse registration response: %w", err),
		}
	}
	if registration.ClientID == "" {
		return nil, &RegistrationError{
			Endpoint: registrationEndpoint,
			Err:      fmt.Errorf("registration response missing client_id"),
		}
	}

	c.logger.Debug("Registered OAuth client",
		"registration_endpoint", registrationEndpoint,
		"client_id", registration.ClientID,
		"has_client_secret", registration.ClientSecret != "")

	return &registration, nil
}
