// Package merge folds duplicate curated records into a canonical record.
//
// For every non-canonical member, in id order:
//
//  1. Participations migrate to the canonical record. A participation that
//     is structurally equal to one already on the canonical record is deleted
//     instead when its interaction has more than two participants. In a
//     binary interaction it migrates anyway, since deleting it would remove
//     the interaction's only evidence of the duplicated partner.
//  2. Superseded-local-id markers are copied to the canonical record, plus
//     one marker for the member itself.
//  3. Transcripts and chains pointing at the member are re-parented onto the
//     canonical record. A transcript with several parent links of one kind
//     is a structural conflict: the member's re-parenting is skipped and
//     reported, steps 1 and 2 still apply.
//
// Merge works on clones. The group's records are never mutated, so merging
// the same snapshot twice produces the same report. Persisting the result is
// the caller's job.
package merge

import (
	"fmt"
	"log/slog"

	"github.com/roach88/protrecon/internal/protein"
)

// Merger performs the structural merge of a DuplicateGroup.
type Merger struct {
	logger *slog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Merger) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Merger.
func New(opts ...Option) *Merger {
	m := &Merger{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge folds every duplicate of group into its canonical record.
func (m *Merger) Merge(group *protein.DuplicateGroup) (*protein.MergeReport, error) {
	if group == nil || group.Canonical == nil {
		return nil, protein.NewInvariantViolation("merge of a group without canonical record")
	}

	canonical := group.Canonical.Clone()
	transcripts := make([]*protein.CuratedRecord, len(group.Transcripts))
	for i, t := range group.Transcripts {
		transcripts[i] = t.Clone()
	}

	report := &protein.MergeReport{
		Accession:           group.Accession,
		Moved:               []string{},
		Deleted:             []string{},
		CopiedXrefs:         []string{},
		TouchedInteractions: []string{},
		Consumed:            []*protein.CuratedRecord{},
		Reparented:          []*protein.CuratedRecord{},
	}
	touched := map[string]struct{}{}
	reparented := map[string]*protein.CuratedRecord{}

	for _, member := range group.Duplicates {
		d := member.Clone()

		if err := migrateParticipations(canonical, d, report, touched); err != nil {
			return nil, err
		}
		if err := consolidateXrefs(canonical, d, report); err != nil {
			return nil, err
		}
		conflicts := reparent(canonical, d, transcripts, reparented)
		if len(conflicts) > 0 {
			m.logger.Warn("transcript re-parenting skipped",
				"accession", group.Accession,
				"duplicate", d.ID,
				"canonical", canonical.ID,
				"conflicts", len(conflicts),
			)
			report.Conflicts = append(report.Conflicts, conflicts...)
		}

		report.Consumed = append(report.Consumed, d)
	}

	report.Canonical = canonical
	report.TouchedInteractions = sortedKeys(touched)
	for _, t := range transcripts {
		if r, ok := reparented[t.ID]; ok {
			report.Reparented = append(report.Reparented, r)
		}
	}

	m.logger.Debug("duplicates merged",
		"accession", group.Accession,
		"canonical", canonical.ID,
		"consumed", len(report.Consumed),
		"moved", len(report.Moved),
		"deleted", len(report.Deleted),
		"partial", report.Partial(),
	)
	return report, nil
}

func migrateParticipations(canonical, d *protein.CuratedRecord, report *protein.MergeReport, touched map[string]struct{}) error {
	for _, p := range d.Participations() {
		d.RemoveParticipation(p.ID)
		if p.InteractionID != "" {
			touched[p.InteractionID] = struct{}{}
		}
		if hasEqualParticipation(canonical, p) && !p.Binary() {
			report.Deleted = append(report.Deleted, p.ID)
			continue
		}
		if err := canonical.AddParticipation(p); err != nil {
			return protein.NewInvariantViolation(fmt.Sprintf("migrate %s from %s: %v", p.ID, d.ID, err))
		}
		report.Moved = append(report.Moved, p.ID)
	}
	return nil
}

func hasEqualParticipation(r *protein.CuratedRecord, p protein.Participation) bool {
	for _, have := range r.Participations() {
		if ParticipationsEqual(have, p) {
			return true
		}
	}
	return false
}

func consolidateXrefs(canonical, d *protein.CuratedRecord, report *protein.MergeReport) error {
	markers := d.XrefsWhere(protein.DatabaseLocal, protein.QualifierSuperseded)
	markers = append(markers, protein.SupersededXref(d.ID))
	for _, x := range markers {
		if x.ID == canonical.ID || hasSupersededMarker(canonical, x.ID) {
			continue
		}
		if _, err := canonical.AddXref(protein.SupersededXref(x.ID)); err != nil {
			return protein.NewInvariantViolation(fmt.Sprintf("copy marker %s: %v", x.ID, err))
		}
		report.CopiedXrefs = append(report.CopiedXrefs, x.ID)
	}
	return nil
}

func hasSupersededMarker(r *protein.CuratedRecord, localID string) bool {
	for _, x := range r.XrefsWhere(protein.DatabaseLocal, protein.QualifierSuperseded) {
		if x.ID == localID {
			return true
		}
	}
	return false
}

var parentKinds = []protein.ParentKind{protein.ParentIsoform, protein.ParentChain}

// reparent rewrites the parent links pointing at d. Any conflict cancels
// the whole member's re-parenting.
func reparent(canonical, d *protein.CuratedRecord, transcripts []*protein.CuratedRecord, done map[string]*protein.CuratedRecord) []protein.MergeConflict {
	type rewrite struct {
		t    *protein.CuratedRecord
		kind protein.ParentKind
	}
	var rewrites []rewrite
	var conflicts []protein.MergeConflict

	for _, t := range transcripts {
		for _, kind := range parentKinds {
			links := t.ParentLinksOf(kind)
			if !pointsAt(links, d.ID) {
				continue
			}
			if len(links) > 1 {
				conflicts = append(conflicts, protein.MergeConflict{
					DuplicateID:  d.ID,
					TranscriptID: t.ID,
					Kind:         kind,
					Message:      fmt.Sprintf("%d %s links", len(links), kind),
				})
				continue
			}
			rewrites = append(rewrites, rewrite{t: t, kind: kind})
		}
	}
	if len(conflicts) > 0 {
		return conflicts
	}

	for _, rw := range rewrites {
		// A single link cannot conflict.
		if ok, _ := rw.t.ReplaceParent(rw.kind, d.ID, canonical.ID); ok {
			canonical.AddTranscriptID(rw.t.ID)
			done[rw.t.ID] = rw.t
		}
	}
	return nil
}

func pointsAt(links []protein.ParentLink, id string) bool {
	for _, l := range links {
		if l.ParentID == id {
			return true
		}
	}
	return false
}
