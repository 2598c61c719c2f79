package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/protrecon/internal/audit"
	"github.com/roach88/protrecon/internal/fixture"
	"github.com/roach88/protrecon/internal/reconcile"
	"github.com/roach88/protrecon/internal/registry"
	"github.com/roach88/protrecon/internal/repair"
	"github.com/roach88/protrecon/internal/resolve"
	"github.com/roach88/protrecon/internal/store"
	"github.com/roach88/protrecon/internal/testutil"
)

// Harness wires one scenario's collaborators around a reconcile.Driver.
type Harness struct {
	store    *store.Store
	driver   *reconcile.Driver
	recorder *audit.Recorder
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Seed the scenario records and build the static registry
// 3. Run one reconciliation pass
// 4. Check the pass error against expect_error
// 5. Evaluate assertions against the trace and the final store
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(ctx, st, scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	summary, runErr := h.driver.Run(ctx)
	result.Summary = summary
	for _, o := range h.recorder.Outcomes() {
		result.AddOutcome(o)
	}

	switch {
	case scenario.ExpectError == "" && runErr != nil:
		result.AddError(fmt.Sprintf("pass failed: %v", runErr))
	case scenario.ExpectError != "" && runErr == nil:
		result.AddError(fmt.Sprintf("pass succeeded, expected error containing %q", scenario.ExpectError))
	case scenario.ExpectError != "" && !strings.Contains(runErr.Error(), scenario.ExpectError):
		result.AddError(fmt.Sprintf("pass error %q does not contain %q", runErr, scenario.ExpectError))
	}
	if summary == nil {
		// The pass never started; nothing to assert on.
		return result, nil
	}

	actx := &AssertionContext{
		Store:   h.store,
		Ctx:     ctx,
		Summary: summary,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newHarness(ctx context.Context, st *store.Store, scenario *Scenario) (*Harness, error) {
	// Suppress logs in tests
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	doc := &fixture.Document{Entries: scenario.Registry, Records: scenario.Records}
	if _, err := doc.Seed(ctx, st, testutil.DefaultEpoch); err != nil {
		return nil, fmt.Errorf("failed to seed records: %w", err)
	}

	source := doc.Source()
	accessions := make([]string, 0, len(scenario.Failures))
	for acc := range scenario.Failures {
		accessions = append(accessions, acc)
	}
	sort.Strings(accessions)
	for _, acc := range accessions {
		source.FailNext(acc, scenario.Failures[acc])
	}

	client := registry.NewClient(source,
		registry.WithMaxAttempts(scenario.Config.maxAttempts()),
		registry.WithRetryInterval(0),
		registry.WithLogger(logger),
	)

	recorder := &audit.Recorder{}
	clock := testutil.NewStepClock(testutil.DefaultEpoch.Add(24*time.Hour), time.Second)
	driver := reconcile.New(st, resolve.New(client, resolve.WithLogger(logger)),
		reconcile.WithConfig(scenario.Config.apply(reconcile.DefaultConfig())),
		reconcile.WithAuditor(audit.Multi{recorder, audit.NewStoreSink(st)}),
		reconcile.WithRangeRepairer(repair.NewFlagger(st, logger)),
		reconcile.WithIDGenerator(reconcile.NewSequenceGenerator("id")),
		reconcile.WithNow(clock.Now),
		reconcile.WithLogger(logger),
	)

	return &Harness{
		store:    st,
		driver:   driver,
		recorder: recorder,
	}, nil
}
