package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures a scenario's pass for golden comparison. Wall-clock
// fields of the summary are left out so the snapshot is reproducible.
type TraceSnapshot struct {
	Scenario string          `json:"scenario"`
	Summary  SummarySnapshot `json:"summary"`
	Trace    []TraceEvent    `json:"trace"`
}

// SummarySnapshot is the deterministic part of a reconcile.PassSummary.
type SummarySnapshot struct {
	PassID        string `json:"pass_id"`
	Records       int    `json:"records"`
	Batches       int    `json:"batches"`
	FailedBatches int    `json:"failed_batches"`
	Terminal      int    `json:"terminal"`
	Repairs       int64  `json:"repairs"`
	Stopped       bool   `json:"stopped"`
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	snap := TraceSnapshot{Scenario: name, Trace: result.Trace}
	if s := result.Summary; s != nil {
		snap.Summary = SummarySnapshot{
			PassID:        s.PassID,
			Records:       s.Records,
			Batches:       s.Batches,
			FailedBatches: s.FailedBatches,
			Terminal:      s.Terminal,
			Repairs:       s.Repairs,
			Stopped:       s.Stopped,
		}
	}
	if snap.Trace == nil {
		snap.Trace = []TraceEvent{}
	}
	return snap
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewTraceSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
