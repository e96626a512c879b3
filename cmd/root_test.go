package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/apiprobe/internal/cli"
)

func TestSetVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", rootCmd.Version)
	assert.Equal(t, "1.2.3-test", GetVersion())
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "apiprobe", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)

	for _, name := range []string{"config", "server", "log-level", "client-id", "client-secret", "scopes", "callback-port", "cache-dir", "no-interactive", "quiet"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
}

func TestAuthSubcommands(t *testing.T) {
	var names []string
	for _, c := range authCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"login", "logout", "status", "token", "refresh", "whoami"}, names)
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "apiprobe version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})

	require.NoError(t, testCmd.Execute())
	assert.Equal(t, "apiprobe version 1.0.0\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"generic", errors.New("boom"), ExitCodeError},
		{"auth required", &cli.AuthRequiredError{Endpoint: "https://api.example.com"}, ExitCodeAuthRequired},
		{"wrapped auth required", fmt.Errorf("token: %w", &cli.AuthRequiredError{}), ExitCodeAuthRequired},
		{"auth failed", &cli.AuthFailedError{Reason: errors.New("denied")}, ExitCodeAuthFailed},
		{"connection", &cli.ConnectionError{Type: cli.ConnectionErrorDNS}, ExitCodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}
