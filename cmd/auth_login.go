package cmd

import (
	"errors"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/giantswarm/apiprobe/internal/auth"
)

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate to an API server",
	Long: `Authenticate to an API server using OAuth.

This command discovers the server's authorization server, registers a client
if needed and opens the browser for the authorization code flow with PKCE.
In headless environments the URL is printed instead. Existing tokens are
replaced.

Examples:
  apiprobe auth login --server https://api.example.com
  apiprobe auth login --server https://api.example.com --callback-port 8085
  apiprobe auth login --client-id my-client --scopes api.read,api.write`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	if noInteractive {
		return errors.New("auth login opens a browser and cannot be combined with --no-interactive")
	}

	session, err := newAuthSession(cmd)
	if err != nil {
		return err
	}

	authPrint(cmd, "Authenticating to %s\n", session.serverURL)

	tok, err := session.provider.Authenticate(cmd.Context())
	session.stopWaiting()
	if err != nil {
		return session.wrapError(err)
	}

	authPrint(cmd, "  Status:    %s\n", text.FgGreen.Sprint("Authenticated"))
	if !tok.ExpiresAt.IsZero() {
		authPrint(cmd, "  Expires:   %s\n", formatExpiryWithDirection(tok.ExpiresAt))
	}
	if os.Getenv(auth.EnvAccessToken) != "" {
		authPrint(cmd, "  %s\n", text.FgYellow.Sprintf("Note: %s is set and takes precedence over the stored token", auth.EnvAccessToken))
	}
	return nil
}
