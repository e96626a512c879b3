package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/giantswarm/apiprobe/pkg/logging"
)

// authWhoamiCmd represents the auth whoami command
var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show current authenticated identity",
	Long: `Show the identity carried by the current access token.

JWT access tokens are decoded without verifying their signature; the claims
are shown for information only. Opaque tokens carry no readable identity.
This command never starts a browser login.`,
	Args: cobra.NoArgs,
	RunE: runAuthWhoami,
}

// identity is the subset of token claims worth showing to a user.
type identity struct {
	Subject   string
	Name      string
	Email     string
	Issuer    string
	Audience  []string
	Scopes    []string
	ExpiresAt time.Time
}

func runAuthWhoami(cmd *cobra.Command, args []string) error {
	session, err := newAuthSession(cmd)
	if err != nil {
		return err
	}

	tok, err := session.provider.TryGetAccessToken(cmd.Context())
	if err != nil {
		return session.wrapError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server:    %s\n", session.serverURL)

	id, err := identityFromToken(tok.AccessToken)
	if err != nil {
		logging.Debug("CLI", "Access token is not a JWT: %v", err)
		fmt.Fprintln(out, "Identity:  unknown (opaque access token)")
		if !tok.ExpiresAt.IsZero() {
			fmt.Fprintf(out, "Expires:   %s\n", formatExpiryWithDirection(tok.ExpiresAt))
		}
		return nil
	}

	printField(cmd, "Subject", id.Subject)
	printField(cmd, "Name", id.Name)
	printField(cmd, "Email", id.Email)
	printField(cmd, "Issuer", id.Issuer)
	printField(cmd, "Audience", strings.Join(id.Audience, ", "))
	printField(cmd, "Scopes", strings.Join(id.Scopes, " "))

	expiresAt := id.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = tok.ExpiresAt
	}
	if !expiresAt.IsZero() {
		printField(cmd, "Expires", formatExpiryWithDirection(expiresAt))
	}
	return nil
}

func printField(cmd *cobra.Command, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", name+":", value)
}

// identityFromToken decodes the claims of a JWT without verifying it.
func identityFromToken(raw string) (*identity, error) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	id := &identity{}
	id.Subject, _ = claims.GetSubject()
	id.Issuer, _ = claims.GetIssuer()
	if aud, err := claims.GetAudience(); err == nil {
		id.Audience = aud
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}

	id.Email, _ = claims["email"].(string)
	id.Name, _ = claims["name"].(string)
	if id.Name == "" {
		id.Name, _ = claims["preferred_username"].(string)
	}

	// "scope" is a space-separated string (RFC 9068); some servers use a "scp" array
	switch scope := claims["scope"].(type) {
	case string:
		id.Scopes = strings.Fields(scope)
	default:
		if scp, ok := claims["scp"].([]interface{}); ok {
			for _, s := range scp {
				if str, ok := s.(string); ok {
					id.Scopes = append(id.Scopes, str)
				}
			}
		}
	}

	return id, nil
}
