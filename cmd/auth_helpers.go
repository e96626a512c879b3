package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/giantswarm/apiprobe/internal/auth"
	"github.com/giantswarm/apiprobe/internal/cli"
	"github.com/giantswarm/apiprobe/internal/config"
	"github.com/giantswarm/apiprobe/pkg/logging"
	"github.com/giantswarm/apiprobe/pkg/oauth"
)

// authSession bundles everything an auth subcommand needs for one server.
type authSession struct {
	serverURL string
	config    config.Config
	logger    *slog.Logger
	cache     *auth.FileCache
	provider  *auth.Provider
	waiter    *spinnerPresenter
}

// newAuthSession loads the configuration, applies flag overrides, sets up
// logging and wires the credential provider.
func newAuthSession(cmd *cobra.Command) (*authSession, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.InitForCLI(level, cmd.ErrOrStderr())

	clientOpts := []oauth.ClientOption{oauth.WithLogger(logger)}
	if cfg.OAuth.ProtocolVersion != "" {
		clientOpts = append(clientOpts, oauth.WithProtocolVersion(cfg.OAuth.ProtocolVersion))
	}
	client := oauth.NewClient(clientOpts...)

	cache, err := auth.NewFileCache(auth.FileCacheConfig{Dir: cfg.OAuth.CacheDir, Logger: logger})
	if err != nil {
		return nil, err
	}

	registrar := auth.NewRegistrar(auth.RegistrarConfig{
		Client:       client,
		Cache:        cache,
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		ClientName:   cfg.OAuth.ClientName,
		Logger:       logger,
	})

	presenter := auth.SelectPresenter(auth.Environment{}, cmd.ErrOrStderr(), logger)
	waiter := newSpinnerPresenter(presenter, cmd.ErrOrStderr(), quiet)

	flow, err := auth.NewFlow(auth.FlowConfig{
		ServerURL:       cfg.ServerURL,
		Client:          client,
		Cache:           cache,
		Registrar:       registrar,
		Presenter:       waiter,
		Scopes:          cfg.OAuth.Scopes,
		CallbackPort:    cfg.OAuth.CallbackPort,
		CallbackTimeout: cfg.OAuth.CallbackTimeout,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	provider := auth.NewProvider(auth.ProviderConfig{
		ServerURL: cfg.ServerURL,
		Cache:     cache,
		Flow:      flow,
		Logger:    logger,
	})

	logging.Debug("CLI", "Using server %s with credential cache %s", cfg.ServerURL, cache.Dir())

	return &authSession{
		serverURL: cfg.ServerURL,
		config:    cfg,
		logger:    logger,
		cache:     cache,
		provider:  provider,
		waiter:    waiter,
	}, nil
}

// resolveConfig loads the config file and lets explicitly set flags
// override it. A server URL is required.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = serverURL
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("client-id") {
		cfg.OAuth.ClientID = clientID
	}
	if flags.Changed("client-secret") {
		cfg.OAuth.ClientSecret = clientSecret
	}
	if flags.Changed("scopes") {
		cfg.OAuth.Scopes = scopes
	}
	if flags.Changed("callback-port") {
		cfg.OAuth.CallbackPort = callbackPort
	}
	if flags.Changed("cache-dir") {
		cfg.OAuth.CacheDir = cacheDir
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.ServerURL == "" {
		path := configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		return config.Config{}, fmt.Errorf("no API server configured: pass --server or set server_url in %s", path)
	}
	return cfg, nil
}

// stopWaiting stops the spinner started when the browser was opened.
func (s *authSession) stopWaiting() {
	s.waiter.Stop()
}

// wrapError maps credential errors to the CLI error types that carry exit
// codes and guidance.
func (s *authSession) wrapError(err error) error {
	if err == nil {
		return nil
	}

	var (
		callbackErr     *oauth.CallbackError
		exchangeErr     *oauth.ExchangeError
		registrationErr *oauth.RegistrationError
		discoveryErr    *oauth.DiscoveryError
	)

	switch {
	case errors.Is(err, oauth.ErrAuthRequired):
		return &cli.AuthRequiredError{Endpoint: s.serverURL}
	case errors.As(err, &callbackErr), errors.As(err, &exchangeErr), errors.As(err, &registrationErr):
		return &cli.AuthFailedError{Endpoint: s.serverURL, Reason: err}
	case errors.As(err, &discoveryErr):
		if connErr := cli.ClassifyConnectionError(err, discoveryErr.URL); connErr != nil {
			return connErr
		}
		return &cli.AuthFailedError{Endpoint: s.serverURL, Reason: err}
	}
	return err
}

// spinnerPresenter shows a spinner while the flow waits for the browser
// redirect.
type spinnerPresenter struct {
	next    auth.Presenter
	spinner *spinner.Spinner
}

func newSpinnerPresenter(next auth.Presenter, w io.Writer, quiet bool) *spinnerPresenter {
	p := &spinnerPresenter{next: next}
	if !quiet {
		p.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
		p.spinner.Suffix = " Waiting for browser authentication..."
	}
	return p
}

// Present hands the URL on and starts the spinner.
func (p *spinnerPresenter) Present(authURL string) {
	p.next.Present(authURL)
	if p.spinner != nil {
		p.spinner.Start()
	}
}

// Stop is safe to call when the spinner never started.
func (p *spinnerPresenter) Stop() {
	if p.spinner != nil {
		p.spinner.Stop()
	}
}

// authPrint prints output only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func authPrint(cmd *cobra.Command, format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	if d < time.Minute {
		return "< 1 minute"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatExpiryWithDirection formats a time as "in X" or "expired X ago".
func formatExpiryWithDirection(expiresAt time.Time) string {
	if expiresAt.IsZero() {
		return "unknown"
	}
	remaining := time.Until(expiresAt)
	if remaining > 0 {
		return "in " + formatDuration(remaining)
	}
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(-remaining))
}
