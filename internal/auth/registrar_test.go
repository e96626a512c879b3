package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/apiprobe/pkg/oauth"
)

func TestRegistrar_GetOrRegisterClient(t *testing.T) {
	const redirectURI = "http://127.0.0.1:3000/callback"

	t.Run("static client skips cache and network", func(t *testing.T) {
		server := newFakeAuthServer(t)
		cache := newTestCache(t)
		r := NewRegistrar(RegistrarConfig{
			Client:       oauth.NewClient(),
			Cache:        cache,
			ClientID:     "static",
			ClientSecret: "secret",
			Logger:       discardLogger(),
		})

		info, err := r.GetOrRegisterClient(testContext(t), server.serverURL(), server.metadata().AuthServer, redirectURI)
		require.NoError(t, err)
		assert.Equal(t, &oauth.ClientInfo{ClientID: "static", ClientSecret: "secret"}, info)
		assert.Zero(t, server.hitCount("/register"))
		assert.False(t, cache.HasRecord(server.serverURL()))
	})

	t.Run("cached client is reused", func(t *testing.T) {
		server := newFakeAuthServer(t)
		cache := newTestCache(t)
		require.NoError(t, cache.SaveClientInfo(server.serverURL(), &oauth.ClientInfo{ClientID: "cached"}))
		r := NewRegistrar(RegistrarConfig{Client: oauth.NewClient(), Cache: cache, Logger: discardLogger()})

		info, err := r.GetOrRegisterClient(testContext(t), server.serverURL(), server.metadata().AuthServer, redirectURI)
		require.NoError(t, err)
		assert.Equal(t, "cached", info.ClientID)
		assert.Zero(t, server.hitCount("/register"))
	})

	t.Run("registers and persists", func(t *testing.T) {
		server := newFakeAuthServer(t)
		cache := newTestCache(t)
		r := NewRegistrar(RegistrarConfig{Client: oauth.NewClient(), Cache: cache, Logger: discardLogger()})

		info, err := r.GetOrRegisterClient(testContext(t), server.serverURL(), server.metadata().AuthServer, redirectURI)
		require.NoError(t, err)
		assert.Equal(t, "dynamic-client", info.ClientID)
		assert.Equal(t, redirectURI, server.registeredRedirectURI())

		stored, err := cache.LoadClientInfo(server.serverURL())
		require.NoError(t, err)
		assert.Equal(t, info, stored)
	})

	t.Run("no registration endpoint", func(t *testing.T) {
		cache := newTestCache(t)
		r := NewRegistrar(RegistrarConfig{Client: oauth.NewClient(), Cache: cache, Logger: discardLogger()})

		authServer := &oauth.Metadata{Issuer: "https://auth.example.com"}
		_, err := r.GetOrRegisterClient(testContext(t), "https://api.example.com", authServer, redirectURI)

		var regErr *oauth.RegistrationError
		require.True(t, errors.As(err, &regErr))
		assert.Contains(t, regErr.Error(), "does not support dynamic client registration")
		assert.Contains(t, regErr.Error(), "https://auth.example.com")
	})

	t.Run("rejected registration is not cached", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"access_denied"}`))
		}))
		defer srv.Close()

		cache := newTestCache(t)
		r := NewRegistrar(RegistrarConfig{Client: oauth.NewClient(), Cache: cache, Logger: discardLogger()})

		authServer := &oauth.Metadata{RegistrationEndpoint: srv.URL + "/register"}
		_, err := r.GetOrRegisterClient(testContext(t), "https://api.example.com", authServer, redirectURI)

		var regErr *oauth.RegistrationError
		require.True(t, errors.As(err, &regErr))
		assert.Equal(t, http.StatusForbidden, regErr.StatusCode)
		assert.Equal(t, `{"error":"access_denied"}`, regErr.Body)
		assert.False(t, cache.HasRecord("https://api.example.com"))
	})
}

func TestRegistrar_CachedClient(t *testing.T) {
	cache := newTestCache(t)
	r := NewRegistrar(RegistrarConfig{Client: oauth.NewClient(), Cache: cache})

	info, err := r.CachedClient("https://api.example.com")
	require.NoError(t, err)
	assert.Nil(t, info)

	require.NoError(t, cache.SaveClientInfo("https://api.example.com", &oauth.ClientInfo{ClientID: "c"}))
	info, err = r.CachedClient("https://api.example.com")
	require.NoError(t, err)
	assert.Equal(t, "c", info.ClientID)
}
