package merge

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/protrecon/internal/protein"
)

// Canonical selection policy names.
const (
	PolicyEarliestCreated    = "earliest-created"
	PolicyMostParticipations = "most-participations"
)

// ErrNoCanonical is returned when a selector is given no candidates.
var ErrNoCanonical = errors.New("no canonical candidate")

// Selector chooses the canonical member of a set of duplicates.
type Selector interface {
	Select(members []*protein.CuratedRecord) (*protein.CuratedRecord, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(members []*protein.CuratedRecord) (*protein.CuratedRecord, error)

// Select implements Selector.
func (f SelectorFunc) Select(members []*protein.CuratedRecord) (*protein.CuratedRecord, error) {
	return f(members)
}

// EarliestCreated picks the oldest record. Ties go to the smallest id.
var EarliestCreated Selector = SelectorFunc(func(members []*protein.CuratedRecord) (*protein.CuratedRecord, error) {
	return first(members, func(a, b *protein.CuratedRecord) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
})

// MostParticipations picks the record with the most participations, then
// falls back to EarliestCreated ordering.
var MostParticipations Selector = SelectorFunc(func(members []*protein.CuratedRecord) (*protein.CuratedRecord, error) {
	return first(members, func(a, b *protein.CuratedRecord) bool {
		na, nb := len(a.Participations()), len(b.Participations())
		if na != nb {
			return na > nb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
})

// SelectorByName returns the named policy.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", PolicyEarliestCreated:
		return EarliestCreated, nil
	case PolicyMostParticipations:
		return MostParticipations, nil
	default:
		return nil, fmt.Errorf("unknown canonical policy %q", name)
	}
}

func first(members []*protein.CuratedRecord, less func(a, b *protein.CuratedRecord) bool) (*protein.CuratedRecord, error) {
	if len(members) == 0 {
		return nil, ErrNoCanonical
	}
	sorted := append([]*protein.CuratedRecord(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	return sorted[0], nil
}
