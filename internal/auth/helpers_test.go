package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/giantswarm/apiprobe/pkg/oauth"
)

// fakeAuthServer serves protected resource metadata, authorization server
// metadata, registration and token endpoints from one origin. The protected
// API lives under /api.
type fakeAuthServer struct {
	t   *testing.T
	srv *httptest.Server

	mu                 sync.Mutex
	hits               map[string]int
	challenge          string
	registeredRedirect string
	tokenForms         []url.Values

	// noRegistration removes registration_endpoint from the metadata.
	noRegistration bool

	// tokenStatus, when non-zero, makes the token endpoint fail.
	tokenStatus int

	// rotateRefresh controls whether refresh grants return a new refresh token.
	rotateRefresh bool
}

func newFakeAuthServer(t *testing.T) *fakeAuthServer {
	t.Helper()

	f := &fakeAuthServer{t: t, hits: make(map[string]int)}
	mux := http.NewServeMux()

	mux.HandleFunc("/.well-known/oauth-protected-resource/api", func(w http.ResponseWriter, r *http.Request) {
		f.hit(r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"resource":              f.srv.URL + "/api",
			"authorization_servers": []string{f.srv.URL},
			"scopes_supported":      []string{"api.read"},
		})
	})

	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		f.hit(r.URL.Path)
		f.mu.Lock()
		noRegistration := f.noRegistration
		f.mu.Unlock()

		metadata := map[string]interface{}{
			"issuer":                           f.srv.URL,
			"authorization_endpoint":           f.srv.URL + "/authorize",
			"token_endpoint":                   f.srv.URL + "/token",
			"code_challenge_methods_supported": []string{"S256"},
		}
		if !noRegistration {
			metadata["registration_endpoint"] = f.srv.URL + "/register"
		}
		writeJSON(w, http.StatusOK, metadata)
	})

	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		f.hit(r.URL.Path)
		var req oauth.ClientRegistrationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		if len(req.RedirectURIs) > 0 {
			f.registeredRedirect = req.RedirectURIs[0]
		}
		f.mu.Unlock()

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"client_id":                  "dynamic-client",
			"token_endpoint_auth_method": req.TokenEndpointAuthMethod,
		})
	})

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.hit(r.URL.Path)
		require.NoError(t, r.ParseForm())

		f.mu.Lock()
		f.tokenForms = append(f.tokenForms, r.PostForm)
		challenge := f.challenge
		tokenStatus := f.tokenStatus
		rotateRefresh := f.rotateRefresh
		f.mu.Unlock()

		if tokenStatus != 0 {
			writeJSON(w, tokenStatus, map[string]string{"error": "invalid_grant"})
			return
		}

		switch r.PostForm.Get("grant_type") {
		case oauth.GrantTypeAuthorizationCode:
			if r.PostForm.Get("code") != "auth-code" ||
				oauth.ComputeS256Challenge(r.PostForm.Get("code_verifier")) != challenge {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"access_token":  "issued-access",
				"token_type":    "Bearer",
				"refresh_token": "issued-refresh",
				"expires_in":    3600,
				"scope":         "api.read",
			})
		case oauth.GrantTypeRefreshToken:
			resp := map[string]interface{}{
				"access_token": "refreshed-access",
				"token_type":   "Bearer",
				"expires_in":   3600,
			}
			if rotateRefresh {
				resp["refresh_token"] = "rotated-refresh"
			}
			writeJSON(w, http.StatusOK, resp)
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		}
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeAuthServer) serverURL() string {
	return f.srv.URL + "/api"
}

// configure changes the server's behavior between requests.
func (f *fakeAuthServer) configure(fn func(*fakeAuthServer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAuthServer) registeredRedirectURI() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registeredRedirect
}

func (f *fakeAuthServer) hit(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[path]++
}

func (f *fakeAuthServer) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeAuthServer) lastTokenForm() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tokenForms) == 0 {
		return nil
	}
	return f.tokenForms[len(f.tokenForms)-1]
}

func (f *fakeAuthServer) metadata() *oauth.ServerMetadata {
	return &oauth.ServerMetadata{
		ProtectedResource: &oauth.ProtectedResourceMetadata{
			Resource:             f.srv.URL + "/api",
			AuthorizationServers: []string{f.srv.URL},
		},
		AuthServer: &oauth.Metadata{
			Issuer:                f.srv.URL,
			AuthorizationEndpoint: f.srv.URL + "/authorize",
			TokenEndpoint:         f.srv.URL + "/token",
			RegistrationEndpoint:  f.srv.URL + "/register",
		},
	}
}

// userAgent plays the browser: it records the PKCE challenge and redirects
// to the callback with the given query overrides.
type userAgent struct {
	server *fakeAuthServer

	// query overrides the callback parameters; nil approves with the
	// issued state.
	query func(state string) url.Values

	mu       sync.Mutex
	authURLs []*url.URL
}

func (u *userAgent) Present(authURL string) {
	parsed, err := url.Parse(authURL)
	require.NoError(u.server.t, err)

	u.mu.Lock()
	u.authURLs = append(u.authURLs, parsed)
	u.mu.Unlock()

	q := parsed.Query()
	u.server.mu.Lock()
	u.server.challenge = q.Get("code_challenge")
	u.server.mu.Unlock()

	params := url.Values{"code": {"auth-code"}, "state": {q.Get("state")}}
	if u.query != nil {
		params = u.query(q.Get("state"))
	}

	go func() {
		resp, err := http.Get(q.Get("redirect_uri") + "?" + params.Encode())
		if err == nil {
			resp.Body.Close()
		}
	}()
}

func (u *userAgent) lastAuthURL() *url.URL {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.authURLs) == 0 {
		return nil
	}
	return u.authURLs[len(u.authURLs)-1]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
