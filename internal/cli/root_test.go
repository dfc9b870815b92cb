package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "buyflow", cmd.Use)
	assert.Equal(t, Version, cmd.Version)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"simulate"},
		{"reconcile"},
		{"snapshot", "show"},
		{"snapshot", "clear"},
		{"scenario", "run"},
		{"scenario", "validate"},
		{"history"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
			assert.Equal(t, name, subCmd.Name())
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
	assert.Equal(t, "", configFlag.DefValue)
}

func TestSimulateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	simulate, _, err := cmd.Find([]string{"simulate"})
	require.NoError(t, err)

	defaults := map[string]string{
		"asset":     "BTC",
		"fiat":      "USD",
		"method":    MethodCard,
		"quote-ttl": "30s",
		"duration":  "0s",
		"confirm":   "false",
		"record":    "false",
	}
	for name, want := range defaults {
		flag := simulate.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, want, flag.DefValue, name)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}

func TestFormatValidationIntegration(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.execute(t, "--format", "xml", "snapshot", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBadConfigIsCommandError(t *testing.T) {
	env := newTestEnv(t, "")
	env.config += ".missing"

	out, err := env.execute(t, "snapshot", "show")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "startup failed")
	assert.Contains(t, out, "E_CONFIG")
}
