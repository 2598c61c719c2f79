// Package conservation scores how much a sequence changed between two
// registry versions.
//
// The score is the share of the previous sequence left unchanged by a
// character-level diff:
//
//	score = unchanged runes / runes in previous
//
// Callers compare it against a threshold (DefaultThreshold). A score at or
// below the threshold is a severe change. This package only computes the
// number; raising the caution signal belongs to the caller.
package conservation

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/roach88/protrecon/internal/protein"
)

// DefaultThreshold is the score at or below which a change is severe.
const DefaultThreshold = 0.35

// Score computes the conservation score of current against previous.
// An empty previous sequence is an invariant violation.
func Score(previous, current string) (protein.ConservationScore, error) {
	if previous == "" {
		return protein.ConservationScore{}, protein.NewInvariantViolation("conservation score of an empty previous sequence")
	}
	result := protein.ConservationScore{Previous: previous, Current: current}
	if previous == current {
		result.Value = 1.0
		return result, nil
	}

	unchanged := 0
	for _, d := range diff(previous, current) {
		if d.Type == diffmatchpatch.DiffEqual {
			unchanged += utf8.RuneCountInString(d.Text)
		}
	}
	result.Value = float64(unchanged) / float64(utf8.RuneCountInString(previous))
	return result, nil
}

// IsSevere reports whether score is at or below threshold.
func IsSevere(score, threshold float64) bool {
	return score <= threshold
}

func diff(previous, current string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	// Sequences can be long; a timeout would make the score depend on load.
	dmp.DiffTimeout = 0
	return dmp.DiffMain(previous, current, false)
}
