package cmd

import (
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/giantswarm/apiprobe/internal/auth"
	pkgstrings "github.com/giantswarm/apiprobe/pkg/strings"
)

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show what is cached for the API server: token expiry, refresh token,
client registration and discovered metadata.

This command only reads the local cache and never contacts the server.`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

// maxScopesWidth keeps long scope lists from stretching the table.
const maxScopesWidth = 80

func runAuthStatus(cmd *cobra.Command, args []string) error {
	session, err := newAuthSession(cmd)
	if err != nil {
		return err
	}

	status, err := session.provider.Status()
	if err != nil {
		return err
	}

	renderStatus(cmd, status)
	return nil
}

// renderStatus prints the status as a two-column table.
func renderStatus(cmd *cobra.Command, status *auth.Status) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)

	t.AppendRow(table.Row{"Server", status.ServerURL})
	t.AppendRow(table.Row{"Status", statusLabel(status)})

	if status.FromEnv {
		t.AppendRow(table.Row{"Source", "APIPROBE_ACCESS_TOKEN"})
	}

	if status.HasToken {
		t.AppendRow(table.Row{"Expires", formatExpiryWithDirection(status.TokenExpiresAt)})
		t.AppendRow(table.Row{"Refresh", availability(status.HasRefreshToken)})
		if len(status.Scopes) > 0 {
			t.AppendRow(table.Row{"Scopes", pkgstrings.Truncate(strings.Join(status.Scopes, " "), maxScopesWidth)})
		}
	}

	if status.ClientID != "" {
		t.AppendRow(table.Row{"Client ID", status.ClientID})
	}

	if status.Issuer != "" {
		t.AppendRow(table.Row{"Issuer", status.Issuer})
		age := formatDuration(time.Since(status.MetadataDiscoveredAt)) + " ago"
		if !status.MetadataFresh {
			age += " " + text.FgYellow.Sprint("(stale, rediscovered on next login)")
		}
		t.AppendRow(table.Row{"Discovered", age})
	}

	t.Render()
}

func statusLabel(status *auth.Status) string {
	switch {
	case status.FromEnv:
		return text.FgCyan.Sprint("Environment token")
	case status.HasToken && !status.TokenExpired:
		return text.FgGreen.Sprint("Authenticated")
	case status.HasRefreshToken:
		return text.FgYellow.Sprint("Expired (refreshable)")
	case status.HasToken:
		return text.FgYellow.Sprint("Expired")
	default:
		return text.FgRed.Sprint("Not authenticated")
	}
}

func availability(ok bool) string {
	if ok {
		return text.FgGreen.Sprint("Available")
	}
	return text.FgYellow.Sprint("Not available")
}
