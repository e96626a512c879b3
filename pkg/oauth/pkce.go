package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// pkceVerifierBytes is the number of random bytes for the PKCE code verifier.
	// 32 bytes encode to a 43 character verifier, the RFC 7636 minimum.
	pkceVerifierBytes = 32

	// stateBytes is the number of random bytes for the OAuth state parameter.
	stateBytes = 32

	// CodeChallengeMethodS256 is the only PKCE method OAuth 2.1 permits.
	CodeChallengeMethodS256 = "S256"
)

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) pair.
// A pair is generated for a single authorization attempt and never persisted.
type PKCEChallenge struct {
	// CodeVerifier is the high-entropy secret kept by the client and sent
	// only to the token endpoint.
	CodeVerifier string

	// CodeChallenge is base64url(SHA-256(CodeVerifier)) without padding.
	// This is sent in the authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string
}

// GeneratePKCE generates a new PKCE code verifier and its S256 challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifierBytes := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes for PKCE: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       ComputeS256Challenge(verifier),
		CodeChallengeMethod: CodeChallengeMethodS256,
	}, nil
}

// ComputeS256Challenge derives the S256 code challenge for a verifier.
func ComputeS256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState generates a random state parameter for OAuth.
// The state binds the authorization response to the request this process
// issued and is the CSRF defence of the callback listener.
func GenerateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
