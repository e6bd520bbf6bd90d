// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/cartwright/internal/config"
)

// resetForTest clears package state a previous run may have left behind.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	t.Cleanup(func() { cfgFile = "" })
	// Keep a developer's shell from leaking into the assertions.
	for _, key := range []string{"CARTWRIGHT_DATABASE_URL", "POSTGRES_CONN", "CARTWRIGHT_SELECTORS_PATH", "SELECTORS_PATH", "CARTWRIGHT_SERVER_ADDR"} {
		t.Setenv(key, "")
	}
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCmd(t *testing.T) {
	t.Run("should print the version", func(t *testing.T) {
		resetForTest(t)
		out, err := executeCommand(t, "--version")
		require.NoError(t, err)
		assert.Contains(t, out, "cartwright version "+Version)
	})

	t.Run("should print the version without loading config", func(t *testing.T) {
		resetForTest(t)
		out, err := executeCommand(t, "version", "--config", "/does/not/exist.yaml")
		require.NoError(t, err)
		assert.Equal(t, "cartwright version "+Version+"\n", out)
	})

	t.Run("should print help without a subcommand", func(t *testing.T) {
		resetForTest(t)
		out, err := executeCommand(t)
		require.NoError(t, err)
		assert.Contains(t, out, "Cartwright drives dispensary storefronts through cart and checkout.")
		assert.Contains(t, out, "serve")
		assert.Contains(t, out, "variants")
		assert.Contains(t, out, "migrate")
	})

	t.Run("should reject variants without a URL", func(t *testing.T) {
		resetForTest(t)
		_, err := executeCommand(t, "variants")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "accepts 1 arg(s)")
	})

	t.Run("should refuse to migrate without a database URL", func(t *testing.T) {
		resetForTest(t)
		_, err := executeCommand(t, "migrate", "--config", writeConfig(t, "logger:\n  level: fatal\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database URL is not configured")
	})

	t.Run("should surface an invalid configuration", func(t *testing.T) {
		resetForTest(t)
		_, err := executeCommand(t, "migrate", "--config", writeConfig(t, "browser:\n  concurrency: 0\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.concurrency must be a positive integer")
	})
}

func TestInitializeConfig(t *testing.T) {
	t.Run("should layer flags over env over file", func(t *testing.T) {
		resetForTest(t)
		cfgFile = writeConfig(t, `
server:
  addr: ":9000"
selectors:
  path: /from/file
database:
  max_conns: 4
`)
		t.Setenv("CARTWRIGHT_SELECTORS_PATH", "/from/env")
		t.Setenv("POSTGRES_CONN", "postgres://legacy@localhost/carts")

		cmd := newServeCmd()
		require.NoError(t, cmd.Flags().Set("addr", "127.0.0.1:7000"))

		v := viper.New()
		config.SetDefaults(v)
		require.NoError(t, initializeConfig(cmd, v))
		cfg, err := config.NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:7000", cfg.Server().Addr)
		assert.Equal(t, "/from/env", cfg.Selectors().Path)
		assert.Equal(t, int32(4), cfg.Database().MaxConns)
		assert.Equal(t, "postgres://legacy@localhost/carts", cfg.Database().URL)
	})

	t.Run("should fail on a malformed config file", func(t *testing.T) {
		resetForTest(t)
		cfgFile = writeConfig(t, "server: [\n")

		err := initializeConfig(newServeCmd(), viper.New())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})
}

func TestGetConfigFromContext(t *testing.T) {
	t.Run("should fail when no configuration was stored", func(t *testing.T) {
		_, err := getConfigFromContext(context.Background())
		assert.EqualError(t, err, "configuration not found in context")
	})

	t.Run("should return the stored configuration", func(t *testing.T) {
		cfg := config.NewDefaultConfig()
		got, err := getConfigFromContext(context.WithValue(context.Background(), configKey, config.Interface(cfg)))
		require.NoError(t, err)
		assert.Same(t, cfg, got)
	})
}
