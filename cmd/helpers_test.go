package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/apiprobe/internal/auth"
)

const testServerURL = "https://api.example.com/v1"

// executeCommand runs the root command with fresh flag state and captures
// its output.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	resetFlags(rootCmd)
	t.Cleanup(func() {
		resetFlags(rootCmd)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// testEnv isolates a test from the user's config, cache and environment.
type testEnv struct {
	configPath string
	cacheDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv(auth.EnvAccessToken, "")
	t.Setenv(auth.EnvTokenType, "")
	t.Setenv(auth.EnvTokenExpiresAt, "")

	dir := t.TempDir()
	return &testEnv{
		configPath: filepath.Join(dir, "config.yaml"),
		cacheDir:   filepath.Join(dir, "credentials"),
	}
}

// args prefixes the isolation flags to the given arguments.
func (e *testEnv) args(args ...string) []string {
	return append([]string{"--config", e.configPath, "--cache-dir", e.cacheDir}, args...)
}

func (e *testEnv) cache(t *testing.T) *auth.FileCache {
	t.Helper()
	cache, err := auth.NewFileCache(auth.FileCacheConfig{Dir: e.cacheDir})
	require.NoError(t, err)
	return cache
}
