package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/giantswarm/apiprobe/internal/cli"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// Global flags shared by all commands.
var (
	configPath    string
	serverURL     string
	logLevel      string
	clientID      string
	clientSecret  string
	scopes        []string
	callbackPort  int
	cacheDir      string
	noInteractive bool
	quiet         bool
)

// rootCmd represents the base command for the apiprobe application.
var rootCmd = &cobra.Command{
	Use:   "apiprobe",
	Short: "Probe OAuth-protected API servers",
	Long: `apiprobe talks to API servers protected by OAuth 2.1.

It discovers the authorization server of an API, registers itself as a
client when the server allows it, runs the browser-based login with PKCE
and keeps the resulting tokens cached and refreshed per server.

Set APIPROBE_ACCESS_TOKEN to bypass OAuth entirely.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// An interrupt cancels the command context, which aborts a pending login.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "apiprobe version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var authRequired *cli.AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default is $XDG_CONFIG_HOME/apiprobe/config.yaml)")
	flags.StringVarP(&serverURL, "server", "s", "", "API server URL")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&clientID, "client-id", "", "Pre-registered OAuth client ID (skips dynamic registration)")
	flags.StringVar(&clientSecret, "client-secret", "", "Secret for --client-id")
	flags.StringSliceVar(&scopes, "scopes", nil, "Scopes to request instead of the advertised ones")
	flags.IntVar(&callbackPort, "callback-port", 0, "Loopback port for the OAuth redirect (0 picks a free port)")
	flags.StringVar(&cacheDir, "cache-dir", "", "Credential cache directory")
	flags.BoolVar(&noInteractive, "no-interactive", false, "Never open a browser; fail when login is required")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddCommand(newVersionCmd())
}
