package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "protrecon", cmd.Use)
	assert.Contains(t, cmd.Long, "UniProt")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"reconcile", "resolve", "score", "seed", "audit", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	for _, name := range []string{"store", "metrics-addr"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "", flag.DefValue)
	}
}

func TestReconcileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	reconcileCmd, _, err := cmd.Find([]string{"reconcile"})
	require.NoError(t, err)

	assert.NotNil(t, reconcileCmd.Flags().Lookup("registry"))
	assert.NotNil(t, reconcileCmd.Flags().Lookup("auto-fix"))

	batchFlag := reconcileCmd.Flags().Lookup("batch-size")
	require.NotNil(t, batchFlag)
	assert.Equal(t, "0", batchFlag.DefValue)
}

func TestResolveCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	resolveCmd, _, err := cmd.Find([]string{"resolve"})
	require.NoError(t, err)

	taxFlag := resolveCmd.Flags().Lookup("tax-id")
	require.NotNil(t, taxFlag)
	assert.Equal(t, "0", taxFlag.DefValue)
	assert.NotNil(t, resolveCmd.Flags().Lookup("registry"))
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	for _, name := range []string{"update", "filter", "golden"} {
		assert.NotNil(t, testCmd.Flags().Lookup(name), name)
	}
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"score", "AAAA", "AAAA", "--format", "yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("json"))
	assert.True(t, isValidFormat("text"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}

func envFrom(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoadConfigDefaults(t *testing.T) {
	opts := &RootOptions{Getenv: envFrom(nil)}

	cfg, err := opts.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "protrecon.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadConfigLayering(t *testing.T) {
	env := envFrom(map[string]string{
		"PROTRECON_STORE_PATH":           "env.db",
		"PROTRECON_RECONCILE_BATCH_SIZE": "7",
		"PROTRECON_LOG_LEVEL":            "warn",
	})

	t.Run("environment over defaults", func(t *testing.T) {
		opts := &RootOptions{Getenv: env}
		cfg, err := opts.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "env.db", cfg.Store.Path)
		assert.Equal(t, 7, cfg.Reconcile.BatchSize)
		assert.Equal(t, "warn", cfg.Log.Level)
	})

	t.Run("flags over environment", func(t *testing.T) {
		opts := &RootOptions{
			Getenv:      env,
			StorePath:   filepath.Join(t.TempDir(), "flag.db"),
			MetricsAddr: "localhost:9090",
			Verbose:     true,
		}
		cfg, err := opts.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, opts.StorePath, cfg.Store.Path)
		assert.Equal(t, "localhost:9090", cfg.Metrics.Addr)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, 7, cfg.Reconcile.BatchSize)
	})
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		opts *RootOptions
		want string
	}{
		{
			name: "missing config file",
			opts: &RootOptions{ConfigPath: "/nonexistent/protrecon.yaml", Getenv: envFrom(nil)},
			want: "failed to load config",
		},
		{
			name: "malformed environment value",
			opts: &RootOptions{Getenv: envFrom(map[string]string{"PROTRECON_RECONCILE_BATCH_SIZE": "many"})},
			want: "invalid environment override",
		},
		{
			name: "invalid final value",
			opts: &RootOptions{Getenv: envFrom(map[string]string{"PROTRECON_RECONCILE_BATCH_SIZE": "0"})},
			want: "invalid config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Equal(t, CodeConfig, ErrorCode(err))
		})
	}
}

func TestCommandContext(t *testing.T) {
	cmd := &cobra.Command{}
	assert.NotNil(t, commandContext(cmd))

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	cmd.SetContext(ctx)
	assert.Equal(t, "v", commandContext(cmd).Value(key{}))
}
