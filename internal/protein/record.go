package protein

import (
	"fmt"
	"sort"
	"time"
)

// CuratedRecord is a locally curated protein, or one of its transcripts and
// chains when Kind says so.
type CuratedRecord struct {
	ID         string
	Kind       RecordKind
	ShortLabel string
	TaxID      int // 0 when the organism is not curated
	Sequence   string
	Checksum   string
	CreatedAt  time.Time

	xrefs          []Xref
	participations []Participation
	parents        []ParentLink
	transcripts    []string
}

// NewRecord creates an empty record of the given kind.
func NewRecord(id string, kind RecordKind) *CuratedRecord {
	return &CuratedRecord{ID: id, Kind: kind}
}

// Accession returns the identity accession, or "" when unresolved.
func (r *CuratedRecord) Accession() string {
	for _, x := range r.xrefs {
		if x.IsIdentity() {
			return x.ID
		}
	}
	return ""
}

// SetIdentity makes accession the record's only identity reference and
// returns the accession it replaced.
func (r *CuratedRecord) SetIdentity(accession string) (previous string) {
	previous = r.Accession()
	kept := r.xrefs[:0:0]
	for _, x := range r.xrefs {
		if !x.IsIdentity() {
			kept = append(kept, x)
		}
	}
	r.xrefs = append(kept, IdentityXref(accession))
	return previous
}

// Xrefs returns a copy of the record's cross-references in insertion order.
func (r *CuratedRecord) Xrefs() []Xref {
	out := make([]Xref, len(r.xrefs))
	copy(out, r.xrefs)
	return out
}

// XrefsWhere returns the cross-references with the given database and
// qualifier.
func (r *CuratedRecord) XrefsWhere(database, qualifier string) []Xref {
	out := []Xref{}
	for _, x := range r.xrefs {
		if x.Database == database && x.Qualifier == qualifier {
			out = append(out, x)
		}
	}
	return out
}

// HasXref reports whether an identical cross-reference is present.
func (r *CuratedRecord) HasXref(x Xref) bool {
	for _, have := range r.xrefs {
		if have == x {
			return true
		}
	}
	return false
}

// AddXref appends x unless an identical one exists. A second identity
// reference on a primary record is rejected.
func (r *CuratedRecord) AddXref(x Xref) (bool, error) {
	if x.Database == "" || x.ID == "" {
		return false, fmt.Errorf("xref on %s: database and id are required", r.ID)
	}
	if r.HasXref(x) {
		return false, nil
	}
	if x.IsIdentity() && r.Kind == KindPrimary && r.Accession() != "" {
		return false, fmt.Errorf("xref on %s: identity already set to %s", r.ID, r.Accession())
	}
	r.xrefs = append(r.xrefs, x)
	return true, nil
}

// RemoveXref deletes an identical cross-reference.
func (r *CuratedRecord) RemoveXref(x Xref) bool {
	for i, have := range r.xrefs {
		if have == x {
			r.xrefs = append(r.xrefs[:i], r.xrefs[i+1:]...)
			return true
		}
	}
	return false
}

// Participations returns deep copies of the record's participations.
func (r *CuratedRecord) Participations() []Participation {
	out := make([]Participation, len(r.participations))
	for i, p := range r.participations {
		out[i] = p.Clone()
	}
	return out
}

// Participation looks up a participation by id.
func (r *CuratedRecord) Participation(id string) (Participation, bool) {
	for _, p := range r.participations {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return Participation{}, false
}

// AddParticipation takes ownership of p. The participation's RecordID is
// rewritten to this record.
func (r *CuratedRecord) AddParticipation(p Participation) error {
	if p.ID == "" {
		return fmt.Errorf("participation on %s: id is required", r.ID)
	}
	for _, have := range r.participations {
		if have.ID == p.ID {
			return fmt.Errorf("participation %s already on %s", p.ID, r.ID)
		}
	}
	p = p.Clone()
	p.RecordID = r.ID
	r.participations = append(r.participations, p)
	return nil
}

// RemoveParticipation detaches the participation with the given id.
func (r *CuratedRecord) RemoveParticipation(id string) (Participation, bool) {
	for i, p := range r.participations {
		if p.ID == id {
			r.participations = append(r.participations[:i], r.participations[i+1:]...)
			return p, true
		}
	}
	return Participation{}, false
}

// ParentLinks returns a copy of the record's parent links.
func (r *CuratedRecord) ParentLinks() []ParentLink {
	out := make([]ParentLink, len(r.parents))
	copy(out, r.parents)
	return out
}

// ParentLinksOf returns the links of one kind.
func (r *CuratedRecord) ParentLinksOf(kind ParentKind) []ParentLink {
	out := []ParentLink{}
	for _, l := range r.parents {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// ParentID returns the parent of a transcript with exactly one link of its
// kind.
func (r *CuratedRecord) ParentID() (string, bool) {
	links := r.ParentLinksOf(ParentKindFor(r.Kind))
	if len(links) != 1 {
		return "", false
	}
	return links[0].ParentID, true
}

// AddParentLink records a parent relation. Only transcripts and chains carry
// parents. Stores may load several links of one kind; ReplaceParent refuses
// to rewrite those.
func (r *CuratedRecord) AddParentLink(l ParentLink) error {
	if !r.Kind.IsTranscript() {
		return fmt.Errorf("parent link on %s: %s records have no parent", r.ID, r.Kind)
	}
	if l.ParentID == "" {
		return fmt.Errorf("parent link on %s: parent id is required", r.ID)
	}
	for _, have := range r.parents {
		if have == l {
			return nil
		}
	}
	r.parents = append(r.parents, l)
	return nil
}

// ReplaceParent rewrites the single link of kind that points at from so it
// points at to. It reports false when no such link exists. More than one link
// of the kind is a structural conflict and nothing is changed.
func (r *CuratedRecord) ReplaceParent(kind ParentKind, from, to string) (bool, error) {
	idx := -1
	count := 0
	for i, l := range r.parents {
		if l.Kind != kind {
			continue
		}
		count++
		if l.ParentID == from {
			idx = i
		}
	}
	if count > 1 {
		return false, NewMergeConflictError(r.ID, fmt.Sprintf("%d %s links", count, kind))
	}
	if idx < 0 {
		return false, nil
	}
	r.parents[idx].ParentID = to
	return true, nil
}

// TranscriptIDs returns the ids of transcripts and chains whose parent is
// this record, sorted.
func (r *CuratedRecord) TranscriptIDs() []string {
	out := make([]string, len(r.transcripts))
	copy(out, r.transcripts)
	return out
}

// AddTranscriptID registers a dependent transcript.
func (r *CuratedRecord) AddTranscriptID(id string) {
	for _, have := range r.transcripts {
		if have == id {
			return
		}
	}
	r.transcripts = append(r.transcripts, id)
	sort.Strings(r.transcripts)
}

// Clone returns a deep copy.
func (r *CuratedRecord) Clone() *CuratedRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.xrefs = append([]Xref(nil), r.xrefs...)
	c.parents = append([]ParentLink(nil), r.parents...)
	c.transcripts = append([]string(nil), r.transcripts...)
	c.participations = make([]Participation, len(r.participations))
	for i, p := range r.participations {
		c.participations[i] = p.Clone()
	}
	return &c
}
