package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func TestGeneratePKCE(t *testing.T) {
	pkce, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("GeneratePKCE() error = %v", err)
	}

	// RFC 7636: 43-128 characters
	if len(pkce.CodeVerifier) < 43 || len(pkce.CodeVerifier) > 128 {
		t.Errorf("CodeVerifier length = %d, want 43..128", len(pkce.CodeVerifier))
	}

	if pkce.CodeChallengeMethod != "S256" {
		t.Errorf("CodeChallengeMethod = %q, want %q", pkce.CodeChallengeMethod, "S256")
	}

	hash := sha256.Sum256([]byte(pkce.CodeVerifier))
	expectedChallenge := base64.RawURLEncoding.EncodeToString(hash[:])
	if pkce.CodeChallenge != expectedChallenge {
		t.Errorf("CodeChallenge = %q, want %q", pkce.CodeChallenge, expectedChallenge)
	}

	if strings.ContainsAny(pkce.CodeChallenge, "=+/") {
		t.Errorf("CodeChallenge %q is not unpadded base64url", pkce.CodeChallenge)
	}

	if stdlibChallenge := oauth2.S256ChallengeFromVerifier(pkce.CodeVerifier); pkce.CodeChallenge != stdlibChallenge {
		t.Errorf("CodeChallenge = %q, want x/oauth2 result %q", pkce.CodeChallenge, stdlibChallenge)
	}
}

func TestComputeS256Challenge(t *testing.T) {
	// Appendix B of RFC 7636
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	if got := ComputeS256Challenge(verifier); got != want {
		t.Errorf("ComputeS256Challenge() = %q, want %q", got, want)
	}
}

func TestGeneratePKCE_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		pkce, err := GeneratePKCE()
		if err != nil {
			t.Fatalf("GeneratePKCE() error = %v", err)
		}

		if seen[pkce.CodeVerifier] {
			t.Error("Generated duplicate CodeVerifier")
		}
		seen[pkce.CodeVerifier] = true
	}
}

func TestGenerateState(t *testing.T) {
	state, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	// 32 bytes = 43 base64url chars
	if len(state) != 43 {
		t.Errorf("state length = %d, want 43", len(state))
	}
}

func TestGenerateState_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		state, err := GenerateState()
		if err != nil {
			t.Fatalf("GenerateState() error = %v", err)
		}

		if seen[state] {
			t.Error("Generated duplicate state")
		}
		seen[state] = true
	}
}
