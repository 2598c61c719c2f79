package protein

import (
	"fmt"
	"sort"
)

// DuplicateGroup collects primary records that resolved to the same registry
// accession, with the caller-designated canonical member.
type DuplicateGroup struct {
	Accession   string
	Canonical   *CuratedRecord
	Duplicates  []*CuratedRecord
	Transcripts []*CuratedRecord
}

// NewDuplicateGroup validates the group shape: at least two distinct primary
// members and a canonical that is one of them. Duplicates are ordered by id.
func NewDuplicateGroup(accession string, canonicalID string, members, transcripts []*CuratedRecord) (*DuplicateGroup, error) {
	if len(members) < 2 {
		return nil, NewInvariantViolation(fmt.Sprintf("duplicate group %s has %d members", accession, len(members)))
	}
	g := &DuplicateGroup{Accession: accession}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if m == nil || m.Kind != KindPrimary {
			return nil, NewInvariantViolation(fmt.Sprintf("duplicate group %s contains a non-primary member", accession))
		}
		if seen[m.ID] {
			return nil, NewInvariantViolation(fmt.Sprintf("duplicate group %s lists %s twice", accession, m.ID))
		}
		seen[m.ID] = true
		if m.ID == canonicalID {
			g.Canonical = m
			continue
		}
		g.Duplicates = append(g.Duplicates, m)
	}
	if g.Canonical == nil {
		return nil, NewInvariantViolation(fmt.Sprintf("duplicate group %s: canonical %s is not a member", accession, canonicalID))
	}
	sort.Slice(g.Duplicates, func(i, j int) bool { return g.Duplicates[i].ID < g.Duplicates[j].ID })

	for _, t := range transcripts {
		if t == nil || !t.Kind.IsTranscript() {
			return nil, NewInvariantViolation(fmt.Sprintf("duplicate group %s: transcript list holds a primary record", accession))
		}
	}
	g.Transcripts = append([]*CuratedRecord(nil), transcripts...)
	sort.Slice(g.Transcripts, func(i, j int) bool { return g.Transcripts[i].ID < g.Transcripts[j].ID })
	return g, nil
}

// Members returns the canonical followed by the duplicates.
func (g *DuplicateGroup) Members() []*CuratedRecord {
	out := make([]*CuratedRecord, 0, len(g.Duplicates)+1)
	out = append(out, g.Canonical)
	return append(out, g.Duplicates...)
}
