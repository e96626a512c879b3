package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/apiprobe/internal/auth"
	"github.com/giantswarm/apiprobe/pkg/logging"
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage OAuth credentials for an API server",
	Long: `Manage OAuth credentials for an API server.

Credentials are cached per server origin under $XDG_CONFIG_HOME/apiprobe/credentials
and refreshed automatically when they expire.

Examples:
  apiprobe auth login --server https://api.example.com    # Log in with the browser
  apiprobe auth status                                    # Show cached credentials
  apiprobe auth token --no-interactive                    # Print a token for scripts
  apiprobe auth refresh                                   # Force a token refresh
  apiprobe auth whoami                                    # Show the token's identity
  apiprobe auth logout                                    # Forget cached credentials`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored credentials",
	Long: `Clear the cached tokens, client registration and server metadata
for the API server. The next request runs discovery and login again.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogout,
}

// authRefreshCmd represents the auth refresh command
var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force token refresh",
	Long: `Exchange the stored refresh token for a new access token.

Exits with code 2 when no refresh token is stored.`,
	Args: cobra.NoArgs,
	RunE: runAuthRefresh,
}

// authTokenCmd represents the auth token command
var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an access token",
	Long: `Print a usable access token for the API server on stdout.

The token is taken from APIPROBE_ACCESS_TOKEN, the cache or a refresh, in that
order. When none of these yields a token the browser login runs, unless
--no-interactive is set, in which case the command exits with code 2.

Examples:
  curl -H "Authorization: Bearer $(apiprobe auth token)" https://api.example.com/v1/items
  curl -H "Authorization: $(apiprobe auth token --header)" https://api.example.com/v1/items`,
	Args: cobra.NoArgs,
	RunE: runAuthToken,
}

// Token-specific flags
var tokenHeader bool

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authTokenCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authWhoamiCmd)

	authTokenCmd.Flags().BoolVar(&tokenHeader, "header", false, "Print the full Authorization header value")
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	session, err := newAuthSession(cmd)
	if err != nil {
		return err
	}

	if !session.cache.HasRecord(session.serverURL) {
		authPrint(cmd, "No stored credentials for %s\n", session.serverURL)
		return nil
	}

	if err := session.provider.ClearCredentials(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	logging.Info("CLI", "Cleared stored credentials for %s", session.serverURL)
	authPrint(cmd, "Logged out from %s\n", session.serverURL)
	return nil
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	session, err := newAuthSession(cmd)
	if err != nil {
		return err
	}

	tok, err := session.provider.Refresh(cmd.Context())
	if err != nil {
		return session.wrapError(err)
	}

	authPrint(cmd, "Token refreshed for %s\n", session.serverURL)
	if !tok.ExpiresAt.IsZero() {
		authPrint(cmd, "  Expires:   %s\n", formatExpiryWithDirection(tok.ExpiresAt))
	}
	return nil
}

func runAuthToken(cmd *cobra.Command, args []string) error {
	session, err := newAuthSession(cmd)
	if err != nil {
		return err
	}

	var tok *auth.AccessToken
	if noInteractive {
		tok, err = session.provider.TryGetAccessToken(cmd.Context())
	} else {
		tok, err = session.provider.GetAccessToken(cmd.Context())
	}
	session.stopWaiting()
	if err != nil {
		return session.wrapError(err)
	}

	if tokenHeader {
		fmt.Fprintln(cmd.OutOrStdout(), tok.Header())
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
	}
	return nil
}
