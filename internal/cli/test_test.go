package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../harness/testdata/scenarios"

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// copyScenario copies one bundled scenario into a fresh scenarios/ dir
// with an empty golden/ sibling.
func copyScenario(t *testing.T, name string) (dir string) {
	t.Helper()
	root := t.TempDir()
	dir = filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	data, err := os.ReadFile(filepath.Join(scenariosDir, name+".yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), data, 0644))
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandBundledScenariosPass(t *testing.T) {
	out, err := runTestCommand(t, "json", scenariosDir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, resp.Data.Failed)
	assert.Equal(t, resp.Data.Total, resp.Data.Passed)
	assert.GreaterOrEqual(t, resp.Data.Total, 7)
}

func TestTestCommandFilter(t *testing.T) {
	out, err := runTestCommand(t, "text", scenariosDir, "--filter", "offline_*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ offline_queue")
	assert.NotContains(t, out, "commit_online")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := copyScenario(t, "offline_queue")
	golden := filepath.Join(filepath.Dir(dir), "golden", "offline_queue.golden")

	_, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err)
	written, err := os.ReadFile(golden)
	require.NoError(t, err)

	bundled, err := os.ReadFile("../harness/testdata/golden/offline_queue.golden")
	require.NoError(t, err)
	assert.Equal(t, string(bytes.TrimSpace(bundled)), string(bytes.TrimSpace(written)))

	out, err := runTestCommand(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "All scenarios passed")

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"offline_queue","trace":[]}`), 0644))
	out, err = runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "TEST_FAILED", errorCode(err))
	assert.Contains(t, out, "✗ offline_queue")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong_expect
description: expects a commit while the authority is down
products:
  - {id: p-tea, name: Tea, price_minor: 250, stock: 5}
setup:
  - do: refresh_catalog
  - do: authority
    online: false
flow:
  - do: add
    product_id: p-tea
  - do: checkout
    expect: {outcome: committed}
assertions:
  - type: pending
`), 0644))

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Empty(t, out, "failures are rendered by Main")

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	result, ok := exitErr.Details.(TestResult)
	require.True(t, ok)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "wrong_expect", result.Scenarios[0].Name)
	assert.NotEmpty(t, result.Scenarios[0].Errors)
}
