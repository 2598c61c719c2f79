package protein

// MatchKind enumerates resolution results.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchUnique
	MatchAmbiguous
)

func (k MatchKind) String() string {
	switch k {
	case MatchNone:
		return "no-match"
	case MatchUnique:
		return "unique-match"
	case MatchAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// AmbiguityReason explains why several candidates remain.
type AmbiguityReason string

const (
	SameOrganismMultiple  AmbiguityReason = "same-organism-multiple"
	CrossOrganismMultiple AmbiguityReason = "cross-organism-multiple"
)

// MatchOutcome is the result of resolving one accession.
type MatchOutcome struct {
	Kind MatchKind

	// Entry is set for MatchUnique.
	Entry ExternalEntry

	// Candidates and Reason are set for MatchAmbiguous. Excluded holds the
	// candidates dropped by the organism filter, kept for diagnostics.
	Candidates []ExternalEntry
	Excluded   []ExternalEntry
	Reason     AmbiguityReason
}

// NoMatch returns the empty outcome.
func NoMatch() MatchOutcome {
	return MatchOutcome{Kind: MatchNone}
}

// UniqueMatch wraps the single authoritative entry.
func UniqueMatch(e ExternalEntry) MatchOutcome {
	return MatchOutcome{Kind: MatchUnique, Entry: e}
}

// AmbiguousMatch reports candidates that need a curator decision.
func AmbiguousMatch(candidates, excluded []ExternalEntry, reason AmbiguityReason) MatchOutcome {
	if candidates == nil {
		candidates = []ExternalEntry{}
	}
	return MatchOutcome{
		Kind:       MatchAmbiguous,
		Candidates: candidates,
		Excluded:   excluded,
		Reason:     reason,
	}
}

// CandidateAccessions lists the primary accessions of the remaining
// candidates.
func (o MatchOutcome) CandidateAccessions() []string {
	return Accessions(o.Candidates)
}
