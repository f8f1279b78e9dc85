// -- cmd/root_test.go --
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRootCmd returns a fresh root command with captured output so
// flag and viper state never leaks between tests.
func newTestRootCmd(t *testing.T) (*cobraCmd, *bytes.Buffer) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	rootCmd := NewRootCommand()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	return &cobraCmd{rootCmd}, &out
}

func TestRootCmd_VersionFlag(t *testing.T) {
	rootCmd, out := newTestRootCmd(t)
	rootCmd.SetArgs([]string{"--version"})

	err := rootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), Version)
}

func TestRootCmd_NoArgs(t *testing.T) {
	rootCmd, out := newTestRootCmd(t)
	rootCmd.SetArgs([]string{})

	err := rootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	// With no subcommand the root prints its own help text.
	assert.Contains(t, out.String(), "vision")
	assert.Contains(t, out.String(), "run")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	rootCmd, _ := newTestRootCmd(t)
	rootCmd.SetArgs([]string{"definitely-not-a-command"})

	err := rootCmd.ExecuteContext(context.Background())

	require.Error(t, err)
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	rootCmd, _ := newTestRootCmd(t)

	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"run", "locate", "click", "service"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestInitializeConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("MARIONETTE_AGENT_MAX_STEPS", "7")

	require.NoError(t, initializeConfig(""))

	assert.Equal(t, 7, viper.GetInt("agent.max_steps"))
}

func TestInitializeConfig_DefaultsApplied(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	require.NoError(t, initializeConfig(""))

	assert.Equal(t, 30, viper.GetInt("agent.max_steps"))
	assert.Equal(t, "127.0.0.1:8081", viper.GetString("service.addr"))
}

func TestInitializeConfig_MissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	err := initializeConfig("/nonexistent/path/config.yaml")

	require.Error(t, err)
}
