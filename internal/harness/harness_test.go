package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/protrecon/internal/fixture"
	"github.com/roach88/protrecon/internal/protein"
)

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_TransientFailureSummary(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/transient_failure.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.NotNil(t, result.Summary)
	assert.Equal(t, 2, result.Summary.Batches)
	assert.Equal(t, 1, result.Summary.FailedBatches)
	assert.Equal(t, 2, result.Summary.Terminal)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, "b1", result.Trace[0].Record)
	assert.Contains(t, result.Trace[0].Message, "transient-remote")
	assert.Contains(t, result.Trace[0].Message, "after 2 attempts")
}

func TestRun_TraceIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/merge_duplicates.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Summary.PassID, second.Summary.PassID)
}

func TestRun_FailingAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "A wrong expectation fails the result",
		Records:     []fixture.Record{{ID: "r1"}},
		Assertions: []Assertion{
			{Type: AssertTerminal, Record: "r1", Kind: "record-checked"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "terminal outcomes [record-skipped]")
}

func TestRun_ExpectError(t *testing.T) {
	zero := 0
	scenario := &Scenario{
		Name:        "bad_batch_size",
		Description: "A zero batch size aborts before the pass starts",
		Config:      &Settings{BatchSize: &zero},
		Records:     []fixture.Record{{ID: "r1"}},
		Assertions:  []Assertion{{Type: AssertRepairs}},
		ExpectError: "batch size must be positive",
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Nil(t, result.Summary)
	assert.Empty(t, result.Trace)
}

func TestRun_UnexpectedError(t *testing.T) {
	zero := 0
	scenario := &Scenario{
		Name:        "bad_batch_size",
		Description: "An unexpected pass error fails the result",
		Config:      &Settings{BatchSize: &zero},
		Records:     []fixture.Record{{ID: "r1"}},
		Assertions:  []Assertion{{Type: AssertRepairs}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "pass failed")
}

func TestRun_MissingExpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:        "succeeds",
		Description: "A pass that succeeds when an error was expected",
		Records:     []fixture.Record{{ID: "r1"}},
		Assertions:  []Assertion{{Type: AssertRepairs}},
		ExpectError: "invariant-violation",
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected error containing")
}

func TestRun_SeedFailure(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_seed",
		Description: "A record with a repeated participation id cannot be seeded",
		Records: []fixture.Record{
			{ID: "r1", Participations: []protein.Participation{{ID: "p1"}, {ID: "p1"}}},
		},
		Assertions: []Assertion{{Type: AssertRepairs}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to seed records")
}
