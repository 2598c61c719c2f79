package harness

import (
	"github.com/roach88/protrecon/internal/reconcile"
)

// TraceEvent is one delivered outcome, flattened for assertions and golden
// comparison.
type TraceEvent struct {
	Seq            int64    `json:"seq"`
	Kind           string   `json:"kind"`
	Record         string   `json:"record"`
	Accession      string   `json:"accession,omitempty"`
	Candidates     []string `json:"candidates,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	RemappedFrom   string   `json:"remapped_from,omitempty"`
	Score          *float64 `json:"score,omitempty"`
	Severe         bool     `json:"severe,omitempty"`
	RepairBlocked  bool     `json:"repair_blocked,omitempty"`
	Consumed       []string `json:"consumed,omitempty"`
	Participations []string `json:"participations,omitempty"`
	Message        string   `json:"message,omitempty"`
}

// Label is the "record kind" form used by outcome_order assertions.
func (e TraceEvent) Label() string {
	return e.Record + " " + e.Kind
}

// NewTraceEvent flattens an outcome.
func NewTraceEvent(o reconcile.Outcome) TraceEvent {
	ev := TraceEvent{
		Seq:            o.Seq,
		Kind:           string(o.Kind),
		Record:         o.RecordID,
		Accession:      o.Accession,
		Candidates:     o.Candidates,
		Reason:         string(o.Reason),
		RemappedFrom:   o.RemappedFrom,
		Participations: o.Participations,
		Message:        o.Message,
	}
	if o.Change != nil {
		ev.Score = o.Change.Score
		ev.Severe = o.Change.Severe
		ev.RepairBlocked = o.Change.RepairBlocked
	}
	if o.Report != nil {
		ev.Consumed = o.Report.ConsumedIDs()
	}
	return ev
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the pass ended as expected and all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains every delivered outcome in delivery order.
	Trace []TraceEvent `json:"trace"`

	// Summary is the pass summary. It is set even when the pass aborted.
	Summary *reconcile.PassSummary `json:"summary,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddOutcome appends an outcome to the trace.
func (r *Result) AddOutcome(o reconcile.Outcome) {
	r.Trace = append(r.Trace, NewTraceEvent(o))
}
