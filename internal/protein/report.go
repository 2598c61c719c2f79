package protein

// MergeConflict records a transcript whose parent links could not be
// rewritten unambiguously.
type MergeConflict struct {
	DuplicateID  string     `json:"duplicate_id"`
	TranscriptID string     `json:"transcript_id"`
	Kind         ParentKind `json:"kind"`
	Message      string     `json:"message"`
}

// MergeReport is the result of merging one DuplicateGroup.
type MergeReport struct {
	Accession string `json:"accession"`

	// Canonical is the merged canonical record. Consumed are the duplicates
	// after their participations were taken; callers delete them.
	Canonical *CuratedRecord   `json:"-"`
	Consumed  []*CuratedRecord `json:"-"`

	// Reparented holds the transcripts whose parent link now points at the
	// canonical record; callers persist them.
	Reparented []*CuratedRecord `json:"-"`

	Moved               []string        `json:"moved"`
	Deleted             []string        `json:"deleted"`
	CopiedXrefs         []string        `json:"copied_xrefs"`
	TouchedInteractions []string        `json:"touched_interactions"`
	Conflicts           []MergeConflict `json:"conflicts,omitempty"`
}

// Partial reports whether some re-parenting was skipped.
func (r *MergeReport) Partial() bool {
	return len(r.Conflicts) > 0
}

// CanonicalID returns the id of the surviving record.
func (r *MergeReport) CanonicalID() string {
	if r.Canonical == nil {
		return ""
	}
	return r.Canonical.ID
}

// ConsumedIDs returns the ids of the merged-away records.
func (r *MergeReport) ConsumedIDs() []string {
	out := make([]string, len(r.Consumed))
	for i, c := range r.Consumed {
		out[i] = c.ID
	}
	return out
}

// ReparentedIDs returns the ids of re-parented transcripts.
func (r *MergeReport) ReparentedIDs() []string {
	out := make([]string, len(r.Reparented))
	for i, c := range r.Reparented {
		out[i] = c.ID
	}
	return out
}

// ConservationScore is the similarity of two sequence versions, in [0,1].
type ConservationScore struct {
	Value    float64 `json:"value"`
	Previous string  `json:"previous"`
	Current  string  `json:"current"`
}
