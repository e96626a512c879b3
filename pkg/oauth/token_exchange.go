package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// AuthorizationRequest describes the client side of an authorization code
// flow against one authorization server.
type AuthorizationRequest struct {
	AuthorizationEndpoint string
	TokenEndpoint         string
	ClientID              string
	ClientSecret          string
	RedirectURI           string
	Scopes                []string

	// Resource is the RFC 8707 resource indicator, usually the protected
	// resource's canonical URL.
	Resource string
}

func (r *AuthorizationRequest) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		RedirectURL:  r.RedirectURI,
		Scopes:       r.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  r.AuthorizationEndpoint,
			TokenURL: r.TokenEndpoint,
			// Public clients send client_id in the form body
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// BuildAuthorizationURL constructs the authorization URL for the request,
// carrying state, the PKCE challenge and the resource indicator.
func (c *Client) BuildAuthorizationURL(r *AuthorizationRequest, state string, pkce *PKCEChallenge) (string, error) {
	if _, err := url.Parse(r.AuthorizationEndpoint); err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	if pkce == nil {
		return "", errors.New("PKCE challenge is required")
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", pkce.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.CodeChallengeMethod),
	}
	if r.Resource != "" {
		opts = append(opts, oauth2.SetAuthURLParam("resource", r.Resource))
	}

	return r.oauth2Config().AuthCodeURL(state, opts...), nil
}

// ExchangeCode exchanges an authorization code and its PKCE verifier for tokens.
func (c *Client) ExchangeCode(ctx context.Context, r *AuthorizationRequest, code, codeVerifier string) (*Token, error) {
	opts := []oauth2.AuthCodeOption{oauth2.VerifierOption(codeVerifier)}
	if r.Resource != "" {
		opts = append(opts, oauth2.SetAuthURLParam("resource", r.Resource))
	}

	tok, err := r.oauth2Config().Exchange(c.contextWithHTTPClient(ctx), code, opts...)
	if err != nil {
		return nil, c.exchangeError(r.TokenEndpoint, GrantTypeAuthorizationCode, err)
	}

	return TokenFromOAuth2(tok), nil
}

// RefreshToken obtains a new access token using a refresh token.
// When the server does not rotate the refresh token the previous one is kept.
func (c *Client) RefreshToken(ctx context.Context, r *AuthorizationRequest, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is required")
	}

	// An empty access token forces the token source to hit the endpoint
	src := r.oauth2Config().TokenSource(c.contextWithHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, c.exchangeError(r.TokenEndpoint, GrantTypeRefreshToken, err)
	}

	token := TokenFromOAuth2(tok)
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}

func (c *Client) contextWithHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) exchangeError(endpoint, grantType string, err error) error {
	exchangeErr := &ExchangeError{
		Endpoint:  endpoint,
		GrantType: grantType,
		Err:       err,
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		exchangeErr.StatusCode = retrieveErr.Response.StatusCode
		exchangeErr.Body = strings.TrimSpace(string(retrieveErr.Body))
	}

	c.logger.Debug("Token request failed",
		"grant_type", grantType,
		"token_endpoint", endpoint,
		"status", exchangeErr.StatusCode)

	return exchangeErr
}
