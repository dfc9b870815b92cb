package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../harness/testdata/scenarios"

func TestScenarioRun_Pass(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.execute(t, "scenario", "run", scenarioDir)

	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ card_purchase_settles")
	assert.Contains(t, out, "Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestScenarioRun_Filter(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.execute(t, "--format", "json", "scenario", "run", scenarioDir, "--filter", "card_*")
	require.NoError(t, err)

	var summary RunSummary
	decodeResponse(t, out, &summary)
	assert.Equal(t, 1, summary.Total)
	require.Len(t, summary.Scenarios, 1)
	assert.Equal(t, "card_purchase_settles", summary.Scenarios[0].Name)
	assert.NotEmpty(t, summary.Scenarios[0].Trace)
}

func TestScenarioRun_GoldenRoundTrip(t *testing.T) {
	env := newTestEnv(t, "")
	golden := filepath.Join(t.TempDir(), "golden")

	out, err := env.execute(t, "scenario", "run", scenarioDir, "--golden", golden, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "(golden updated)")
	assert.FileExists(t, filepath.Join(golden, "card_purchase_settles.golden"))

	out, err = env.execute(t, "scenario", "run", scenarioDir, "--golden", golden)
	require.NoError(t, err, out)
	assert.NotContains(t, out, "✗")
}

func TestScenarioRun_GoldenMismatch(t *testing.T) {
	env := newTestEnv(t, "")
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "card_purchase_settles.golden"), []byte("{}\n"), 0o644))

	out, err := env.execute(t, "scenario", "run", scenarioDir, "--golden", golden, "--filter", "card_*")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ card_purchase_settles")
	assert.Contains(t, out, "run with --update to regenerate")
}

func TestScenarioRun_UpdateNeedsGolden(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.execute(t, "scenario", "run", scenarioDir, "--update")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioRun_NoFiles(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.execute(t, "scenario", "run", t.TempDir())

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioValidate_Valid(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.execute(t, "scenario", "validate", scenarioDir)

	require.NoError(t, err)
	assert.Contains(t, out, "✓ ")
	assert.NotContains(t, out, "✗")
}

func TestScenarioValidate_Invalid(t *testing.T) {
	env := newTestEnv(t, "")
	file := filepath.Join(t.TempDir(), "negative.yaml")
	body := "name: negative\nsteps:\n  - intent: ClearState\nbroker:\n  pending_limit: -1\n"
	require.NoError(t, os.WriteFile(file, []byte(body), 0o644))

	out, err := env.execute(t, "scenario", "validate", file)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+file)
	assert.Contains(t, out, "pending_limit")
}

func TestCollectScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("name: x\n"), 0o644))
	}

	files, err := collectScenarioFiles([]string{dir}, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = collectScenarioFiles([]string{dir}, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yml")}, files)

	_, err = collectScenarioFiles([]string{dir}, "[")
	assert.Error(t, err)

	_, err = collectScenarioFiles([]string{filepath.Join(dir, "missing")}, "")
	assert.Error(t, err)
}
