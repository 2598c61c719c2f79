package reconcile

import (
	"github.com/roach88/protrecon/internal/protein"
)

// OutcomeKind is the closed set of notifications a pass emits.
type OutcomeKind string

const (
	OutcomeCreated         OutcomeKind = "record-created"
	OutcomeDeleted         OutcomeKind = "record-deleted"
	OutcomeUpdatedSequence OutcomeKind = "record-updated-sequence"
	OutcomeMerged          OutcomeKind = "duplicates-merged"
	OutcomeDeadAccession   OutcomeKind = "dead-accession-found"
	OutcomeChecked         OutcomeKind = "record-checked"
	OutcomeSkipped         OutcomeKind = "record-skipped"

	OutcomeAmbiguous             OutcomeKind = "ambiguous-match-found"
	OutcomeParticipationsDeleted OutcomeKind = "participations-deleted"
	OutcomeRemapped              OutcomeKind = "accession-remapped"
)

// Terminal reports whether k closes a record's processing for the pass.
func (k OutcomeKind) Terminal() bool {
	switch k {
	case OutcomeCreated, OutcomeDeleted, OutcomeUpdatedSequence, OutcomeMerged,
		OutcomeDeadAccession, OutcomeChecked, OutcomeSkipped:
		return true
	default:
		return false
	}
}

// SequenceChange describes a sequence replaced during the pass. Score is nil
// when the record had no previous sequence to compare.
type SequenceChange struct {
	Previous string   `json:"previous"`
	Current  string   `json:"current"`
	Score    *float64 `json:"score,omitempty"`
	Severe   bool     `json:"severe,omitempty"`

	// RepairBlocked withholds range repair. The change is still persisted;
	// a curator has to review the affected ranges.
	RepairBlocked bool `json:"repair_blocked,omitempty"`
}

// Repairable reports whether range repair should run for the change.
func (c *SequenceChange) Repairable() bool {
	return c != nil && c.Previous != "" && !c.RepairBlocked
}

// Outcome is one notification about one record.
type Outcome struct {
	Seq      int64       `json:"seq"`
	PassID   string      `json:"pass_id"`
	Kind     OutcomeKind `json:"kind"`
	RecordID string      `json:"record_id"`

	Accession string `json:"accession,omitempty"`

	// Ambiguity details.
	Candidates []string                `json:"candidates,omitempty"`
	Excluded   []string                `json:"excluded,omitempty"`
	Reason     protein.AmbiguityReason `json:"reason,omitempty"`

	// RemappedFrom is the accession replaced by an accession-remapped.
	RemappedFrom string `json:"remapped_from,omitempty"`

	Change         *SequenceChange      `json:"change,omitempty"`
	Report         *protein.MergeReport `json:"report,omitempty"`
	Participations []string             `json:"participations,omitempty"`

	// Message explains skipped records and deletions.
	Message string `json:"message,omitempty"`

	// Record is the persisted state after the outcome, when there is one.
	Record *protein.CuratedRecord `json:"-"`
}

// Terminal reports whether the outcome closes its record.
func (o Outcome) Terminal() bool {
	return o.Kind.Terminal()
}
