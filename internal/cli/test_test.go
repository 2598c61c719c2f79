package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	harnessScenarios = "../harness/testdata/scenarios"
	harnessGolden    = "../harness/testdata/golden"
)

// copyScenario copies a harness scenario into dir.
func copyScenario(t *testing.T, dir, name string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(harnessScenarios, name+".yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), data, 0644))
}

func newTestCmd(format string, verbose bool, args ...string) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format, Verbose: verbose}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := newTestCmd("text", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := newTestCmd("text", false, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf, err := newTestCmd("text", false, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf, err := newTestCmd("json", false, t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandRunsHarnessScenarios(t *testing.T) {
	buf, err := newTestCmd("text", false, harnessScenarios)
	require.NoError(t, err, buf.String())

	output := buf.String()
	assert.Contains(t, output, "✓ merge_duplicates")
	assert.Contains(t, output, "✓ transient_failure")
	assert.Contains(t, output, "0 failed")
	assert.Contains(t, output, "All scenarios passed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	buf, err := newTestCmd("json", false, harnessScenarios, "--filter", "se*")
	require.NoError(t, err, buf.String())

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, 2, response.Data.Total)
	assert.Equal(t, 2, response.Data.Passed)

	names := []string{response.Data.Scenarios[0].Name, response.Data.Scenarios[1].Name}
	assert.ElementsMatch(t, []string{"sequence_update", "severe_change_blocked"}, names)
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	copyScenario(t, scenarios, "sequence_update")

	buf, err := newTestCmd("text", false, scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "golden updated")

	written, err := os.ReadFile(filepath.Join(root, "golden", "sequence_update.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(harnessGolden, "sequence_update.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	// The regenerated golden file now gates the run.
	buf, err = newTestCmd("text", false, scenarios)
	require.NoError(t, err, buf.String())
	assert.Contains(t, buf.String(), "✓ sequence_update")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	scenarios := t.TempDir()
	golden := t.TempDir()
	copyScenario(t, scenarios, "sequence_update")
	require.NoError(t, os.WriteFile(filepath.Join(golden, "sequence_update.golden"), []byte("bogus\n"), 0644))

	buf, err := newTestCmd("text", true, scenarios, "--golden", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, CodeTestFailed, ErrorCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ sequence_update")
	assert.Contains(t, output, "trace does not match golden file")
	assert.Contains(t, output, "- bogus")
	assert.Contains(t, output, `+ {`)
}

func TestTestCommandFailingAssertion(t *testing.T) {
	scenarios := t.TempDir()
	scenario := `name: wrong_terminal
description: "expects the wrong terminal outcome"
registry:
  - primary_accession: P04637
    tax_id: 9606
    sequence: MEEPQSDPSV
records:
  - id: r1
    tax_id: 9606
    accession: P04637
    sequence: MEEPQSDPSV
assertions:
  - type: terminal
    record: r1
    kind: record-deleted
`
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "wrong_terminal.yaml"), []byte(scenario), 0644))

	buf, err := newTestCmd("json", false, scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, CodeTestFailed, response.Error.Code)
	require.Len(t, response.Data.Scenarios, 1)
	assert.False(t, response.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, response.Data.Scenarios[0].Errors)
}

func TestTestCommandLoadError(t *testing.T) {
	scenarios := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "broken.yaml"), []byte("name: broken\n"), 0644))

	buf, err := newTestCmd("text", false, scenarios)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ broken.yaml")
	assert.Contains(t, buf.String(), "failed to load scenario")
}

func TestTestHelpText(t *testing.T) {
	buf, err := newTestCmd("text", false, "--help")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "scenarios")
	assert.Contains(t, output, "--update")
	assert.Contains(t, output, "--filter")
	assert.Contains(t, output, "--golden")
	assert.Contains(t, output, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "merge-test.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "merge-chain.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "resolve-test.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "merge-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	for _, f := range files {
		assert.True(t, strings.HasPrefix(filepath.Base(f), "merge-"), "Expected file to start with 'merge-': %s", f)
	}
}

func TestFindScenarioFilesInvalidFilter(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "a.yaml"), []byte(""), 0644))

	_, err := findScenarioFiles(tmpDir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestWriteTraceDiff(t *testing.T) {
	var buf bytes.Buffer
	writeTraceDiff(&buf, "a\nb\nc\n", "a\nx\nc\n")

	assert.Equal(t, "  - b\n  + x\n", buf.String())
}
