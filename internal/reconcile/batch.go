package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/protrecon/internal/conservation"
	"github.com/roach88/protrecon/internal/protein"
)

// batch processes one unit of record ids and buffers its outcomes until
// the unit commits.
type batch struct {
	p *pass
	d *Driver

	todo    []string
	inBatch map[string]bool

	// touched lists every pre-existing record this batch reached, in order.
	// Each one must end with exactly one terminal outcome.
	touched    []string
	touchedSet map[string]bool
	terminal   map[string]OutcomeKind
	pending    []Outcome
	violation  error
}

// match is a primary record with a unique registry entry.
type match struct {
	record *protein.CuratedRecord
	entry  protein.ExternalEntry
	dirty  bool // modified before refresh (remapped)
}

type resolution struct {
	outcome protein.MatchOutcome
	err     error
}

func newBatch(p *pass, todo []string) *batch {
	b := &batch{
		p:          p,
		d:          p.d,
		todo:       todo,
		inBatch:    make(map[string]bool, len(todo)),
		touchedSet: make(map[string]bool, len(todo)),
		terminal:   make(map[string]OutcomeKind, len(todo)),
	}
	for _, id := range todo {
		b.inBatch[id] = true
		b.touch(id)
	}
	return b
}

func (b *batch) touch(id string) {
	if b.touchedSet[id] {
		return
	}
	b.touchedSet[id] = true
	b.touched = append(b.touched, id)
	b.p.processed[id] = true
}

func (b *batch) emit(o Outcome) {
	if o.Kind.Terminal() {
		if prev, ok := b.terminal[o.RecordID]; ok {
			if b.violation == nil {
				b.violation = protein.NewInvariantViolation(fmt.Sprintf(
					"record %s: terminal outcome %s after %s", o.RecordID, o.Kind, prev))
			}
			return
		}
		b.terminal[o.RecordID] = o.Kind
	}
	b.pending = append(b.pending, o)
}

func (b *batch) skip(recordID, accession, message string) {
	b.emit(Outcome{Kind: OutcomeSkipped, RecordID: recordID, Accession: accession, Message: message})
}

func (b *batch) dead(recordID, accession string) {
	b.emit(Outcome{
		Kind:      OutcomeDeadAccession,
		RecordID:  recordID,
		Accession: accession,
		Message:   protein.NewNoMatchError(recordID, accession).Error(),
	})
}

func (b *batch) ambiguous(recordID, accession string, out protein.MatchOutcome) {
	candidates := out.CandidateAccessions()
	b.emit(Outcome{
		Kind:       OutcomeAmbiguous,
		RecordID:   recordID,
		Accession:  accession,
		Candidates: candidates,
		Excluded:   protein.Accessions(out.Excluded),
		Reason:     out.Reason,
	})
	b.skip(recordID, accession, protein.NewAmbiguousError(recordID, accession, candidates, out.Reason).Error())
}

// skipAll replaces the batch's outcomes after a rollback: every record it
// reached is reported as skipped with the cause.
func (b *batch) skipAll(cause error) []Outcome {
	out := make([]Outcome, 0, len(b.touched))
	for _, id := range b.touched {
		out = append(out, Outcome{Kind: OutcomeSkipped, RecordID: id, Message: cause.Error()})
	}
	return out
}

func (b *batch) process(ctx context.Context) error {
	records, err := b.d.store.LoadBatch(ctx, b.todo)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}

	loaded := make(map[string]bool, len(records))
	var primaries, transcripts []*protein.CuratedRecord
	for _, r := range records {
		loaded[r.ID] = true
		if r.Kind.IsTranscript() {
			transcripts = append(transcripts, r)
		} else {
			primaries = append(primaries, r)
		}
	}
	for _, id := range b.todo {
		if !loaded[id] {
			b.skip(id, "", "record no longer exists")
		}
	}

	results, err := b.resolveAll(ctx, primaries)
	if err != nil {
		return err
	}
	var matches []*match
	for i, r := range primaries {
		m, err := b.classify(ctx, r, results[i])
		if err != nil {
			return err
		}
		if m != nil {
			matches = append(matches, m)
		}
	}

	for _, group := range groupByAccession(matches) {
		if len(group) == 1 {
			err = b.refreshPrimary(ctx, group[0].record, group[0].entry, group[0].dirty, nil, nil)
		} else {
			err = b.mergeGroup(ctx, group)
		}
		if err != nil {
			return err
		}
	}

	// Transcripts not reached through a parent in this batch.
	for _, t := range transcripts {
		if _, done := b.terminal[t.ID]; done {
			continue
		}
		if err := b.processStandalone(ctx, t); err != nil {
			return err
		}
	}

	return b.finish()
}

func (b *batch) finish() error {
	if b.violation != nil {
		return b.violation
	}
	for _, id := range b.touched {
		if _, ok := b.terminal[id]; !ok {
			return protein.NewInvariantViolation(fmt.Sprintf("record %s has no terminal outcome", id))
		}
	}
	return nil
}

// resolveAll resolves the records' accessions, at most ResolveConcurrency
// at a time. Results are stored by index. Errors that abort the batch are
// returned; other errors stay with their record.
func (b *batch) resolveAll(ctx context.Context, records []*protein.CuratedRecord) ([]resolution, error) {
	results := make([]resolution, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.d.cfg.concurrency())

	for i, r := range records {
		accession := r.Accession()
		if accession == "" {
			continue
		}
		i, taxID := i, r.TaxID
		g.Go(func() error {
			out, err := b.d.resolver.Resolve(gctx, accession, taxID)
			if err != nil && escapes(err) {
				return err
			}
			results[i] = resolution{outcome: out, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// escapes reports whether a resolution error fails the whole batch rather
// than only its record.
func escapes(err error) bool {
	return protein.IsTransient(err) ||
		protein.IsInvariantViolation(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// classify turns a primary record's resolution into a match, or emits the
// record's outcomes and returns nil.
func (b *batch) classify(ctx context.Context, r *protein.CuratedRecord, res resolution) (*match, error) {
	accession := r.Accession()
	if accession == "" {
		b.skip(r.ID, "", "no registry identity")
		return nil, nil
	}
	if res.err != nil {
		b.d.logger.Warn("resolution failed",
			"record", r.ID,
			"accession", accession,
			"error", res.err,
		)
		b.skip(r.ID, accession, res.err.Error())
		return nil, nil
	}

	switch res.outcome.Kind {
	case protein.MatchUnique:
		return &match{record: r, entry: res.outcome.Entry}, nil
	case protein.MatchAmbiguous:
		b.ambiguous(r.ID, accession, res.outcome)
		return nil, nil
	default:
		if b.d.cfg.AutoFixDeadAccessions {
			m, err := b.remap(ctx, r, accession)
			if err != nil || m != nil {
				return m, err
			}
		}
		b.dead(r.ID, accession)
		return nil, nil
	}
}

// remap tries the record's secondary accessions in order. The first one
// resolving to a unique entry becomes the identity and the dead accession
// is kept as a secondary reference.
func (b *batch) remap(ctx context.Context, r *protein.CuratedRecord, dead string) (*match, error) {
	for _, x := range r.XrefsWhere(protein.DatabaseUniProt, protein.QualifierSecondary) {
		out, err := b.d.resolver.Resolve(ctx, x.ID, r.TaxID)
		if err != nil {
			if escapes(err) {
				return nil, err
			}
			b.d.logger.Warn("remap candidate failed", "record", r.ID, "candidate", x.ID, "error", err)
			continue
		}
		if out.Kind != protein.MatchUnique {
			continue
		}

		current := out.Entry.PrimaryAccession
		r.SetIdentity(current)
		r.RemoveXref(protein.SecondaryXref(current))
		if _, err := r.AddXref(protein.SecondaryXref(dead)); err != nil {
			return nil, protein.NewInvariantViolation(err.Error())
		}
		b.emit(Outcome{Kind: OutcomeRemapped, RecordID: r.ID, Accession: current, RemappedFrom: dead})
		b.d.logger.Info("dead accession remapped",
			"record", r.ID,
			"from", dead,
			"to", current,
			"via", x.ID,
		)
		return &match{record: r, entry: out.Entry, dirty: true}, nil
	}
	return nil, nil
}

// groupByAccession groups matches by registry entry, in order of first
// appearance.
func groupByAccession(matches []*match) [][]*match {
	var groups [][]*match
	index := make(map[string]int)
	for _, m := range matches {
		acc := m.entry.PrimaryAccession
		if i, ok := index[acc]; ok {
			groups[i] = append(groups[i], m)
			continue
		}
		index[acc] = len(groups)
		groups = append(groups, []*match{m})
	}
	return groups
}

func (b *batch) mergeGroup(ctx context.Context, group []*match) error {
	entry := group[0].entry
	members := make([]*protein.CuratedRecord, len(group))
	dirty := make(map[string]bool, len(group))
	seen := make(map[string]bool)
	var transcriptIDs []string
	for i, m := range group {
		members[i] = m.record
		dirty[m.record.ID] = m.dirty
		for _, id := range m.record.TranscriptIDs() {
			if !seen[id] {
				seen[id] = true
				transcriptIDs = append(transcriptIDs, id)
			}
		}
	}

	canonical, err := b.p.selector.Select(members)
	if err != nil {
		return protein.NewInvariantViolation(fmt.Sprintf("select canonical for %s: %v", entry.PrimaryAccession, err))
	}
	transcripts, err := b.d.store.LoadBatch(ctx, transcriptIDs)
	if err != nil {
		return fmt.Errorf("load transcripts of %s: %w", entry.PrimaryAccession, err)
	}
	dg, err := protein.NewDuplicateGroup(entry.PrimaryAccession, canonical.ID, members, transcripts)
	if err != nil {
		return err
	}
	report, err := b.d.merger.Merge(dg)
	if err != nil {
		return err
	}
	if err := b.persistMerge(ctx, report); err != nil {
		return err
	}

	for _, c := range report.Consumed {
		b.emit(Outcome{
			Kind:      OutcomeDeleted,
			RecordID:  c.ID,
			Accession: entry.PrimaryAccession,
			Message:   "merged into " + report.CanonicalID(),
		})
	}
	if len(report.Deleted) > 0 {
		b.emit(Outcome{
			Kind:           OutcomeParticipationsDeleted,
			RecordID:       report.CanonicalID(),
			Accession:      entry.PrimaryAccession,
			Participations: report.Deleted,
		})
	}
	conflicted := b.reportConflicts(report, transcripts)
	b.d.logger.Info("duplicates merged",
		"accession", entry.PrimaryAccession,
		"canonical", report.CanonicalID(),
		"consumed", report.ConsumedIDs(),
		"moved", len(report.Moved),
		"deleted", len(report.Deleted),
		"partial", report.Partial(),
	)

	return b.refreshPrimary(ctx, report.Canonical, entry, dirty[report.CanonicalID()], report, conflicted)
}

// reportConflicts gives every transcript left out of re-parenting its
// terminal outcome now, so it is never refreshed against another parent's
// entry. It returns those transcripts.
func (b *batch) reportConflicts(report *protein.MergeReport, transcripts []*protein.CuratedRecord) []*protein.CuratedRecord {
	if len(report.Conflicts) == 0 {
		return nil
	}
	byID := make(map[string]*protein.CuratedRecord, len(transcripts))
	for _, t := range transcripts {
		byID[t.ID] = t
	}
	var out []*protein.CuratedRecord
	seen := make(map[string]bool)
	for _, c := range report.Conflicts {
		t, ok := byID[c.TranscriptID]
		if !ok || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
		if b.handled(t.ID) {
			continue
		}
		b.touch(t.ID)
		msg := fmt.Sprintf("%s; parent %s not merged into %s", c.Message, c.DuplicateID, report.CanonicalID())
		b.skip(t.ID, t.Accession(), protein.NewMergeConflictError(t.ID, msg).Error())
	}
	return out
}

// parentConflict reports a transcript carrying several parent links of its
// kind. Such a transcript cannot be attributed to one entry.
func parentConflict(t *protein.CuratedRecord) (string, bool) {
	kind := protein.ParentKindFor(t.Kind)
	links := t.ParentLinksOf(kind)
	if len(links) <= 1 {
		return "", false
	}
	return protein.NewMergeConflictError(t.ID, fmt.Sprintf("%d %s links", len(links), kind)).Error(), true
}

// persistMerge writes a merge report. The canonical record is saved first so
// migrated participations change owner before the consumed records (and
// whatever they still own) are deleted.
func (b *batch) persistMerge(ctx context.Context, report *protein.MergeReport) error {
	if err := b.d.store.Save(ctx, report.Canonical); err != nil {
		return err
	}
	for _, id := range report.Deleted {
		if err := b.d.store.DeleteParticipation(ctx, id); err != nil {
			return err
		}
	}
	for _, t := range report.Reparented {
		if err := b.d.store.Save(ctx, t); err != nil {
			return err
		}
	}
	for _, c := range report.Consumed {
		if err := b.d.store.DeleteRecord(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// refreshPrimary brings a matched primary record up to date with its entry
// and then handles its transcripts. A merged record's terminal outcome is
// duplicates-merged, carrying the sequence change if there was one. known
// lists transcripts that stand for their variant without being r's.
func (b *batch) refreshPrimary(ctx context.Context, r *protein.CuratedRecord, entry protein.ExternalEntry, dirty bool, report *protein.MergeReport, known []*protein.CuratedRecord) error {
	changed := dirty
	accession := r.Accession()
	if accession != entry.PrimaryAccession && entry.HasSecondary(accession) {
		if err := b.promote(r, entry.PrimaryAccession); err != nil {
			return err
		}
		accession = entry.PrimaryAccession
		changed = true
	}

	added, err := addSecondaries(r, entry.SecondaryAccessions)
	if err != nil {
		return err
	}
	changed = changed || added

	if r.TaxID == 0 && entry.TaxID != 0 {
		r.TaxID = entry.TaxID
		changed = true
	}

	change, touched, err := b.applySequence(r, entry.Sequence, entry.Checksum)
	if err != nil {
		return err
	}
	changed = changed || touched

	if changed {
		if err := b.d.store.Save(ctx, r); err != nil {
			return err
		}
	}

	kind := OutcomeChecked
	switch {
	case report != nil:
		kind = OutcomeMerged
	case change != nil:
		kind = OutcomeUpdatedSequence
	}
	b.emit(Outcome{
		Kind:      kind,
		RecordID:  r.ID,
		Accession: accession,
		Change:    change,
		Report:    report,
		Record:    r.Clone(),
	})

	return b.processTranscripts(ctx, r, entry, known)
}

// promote replaces r's identity with current and keeps the old accession as
// a secondary reference.
func (b *batch) promote(r *protein.CuratedRecord, current string) error {
	previous := r.SetIdentity(current)
	r.RemoveXref(protein.SecondaryXref(current))
	if previous != "" {
		if _, err := r.AddXref(protein.SecondaryXref(previous)); err != nil {
			return protein.NewInvariantViolation(err.Error())
		}
	}
	b.emit(Outcome{Kind: OutcomeRemapped, RecordID: r.ID, Accession: current, RemappedFrom: previous})
	return nil
}

// addSecondaries records registry secondary accessions on r.
func addSecondaries(r *protein.CuratedRecord, accessions []string) (bool, error) {
	changed := false
	identity := r.Accession()
	for _, acc := range accessions {
		if acc == "" || acc == identity {
			continue
		}
		added, err := r.AddXref(protein.SecondaryXref(acc))
		if err != nil {
			return false, protein.NewInvariantViolation(err.Error())
		}
		changed = changed || added
	}
	return changed, nil
}

// applySequence installs a new sequence and scores it against the previous
// one. touched reports whether r was modified at all.
func (b *batch) applySequence(r *protein.CuratedRecord, sequence, checksum string) (change *SequenceChange, touched bool, err error) {
	if sequence == "" || sequence == r.Sequence {
		if checksum != "" && checksum != r.Checksum {
			r.Checksum = checksum
			return nil, true, nil
		}
		return nil, false, nil
	}

	change = &SequenceChange{Previous: r.Sequence, Current: sequence}
	if r.Sequence != "" {
		score, err := conservation.Score(r.Sequence, sequence)
		if err != nil {
			return nil, false, err
		}
		value := score.Value
		change.Score = &value
		change.Severe = conservation.IsSevere(value, b.d.cfg.ConservationThreshold)
		change.RepairBlocked = change.Severe && b.d.cfg.BlockRepairOnSevere
		b.d.sequenceScored(value)
		if change.Severe {
			b.d.logger.Warn("severe sequence change",
				"record", r.ID,
				"score", value,
				"threshold", b.d.cfg.ConservationThreshold,
				"repair_blocked", change.RepairBlocked,
			)
		}
	}

	r.Sequence = sequence
	r.Checksum = checksum
	return change, true, nil
}

// handled reports whether a transcript reached through its parent was
// already processed, earlier in the pass or earlier in this batch.
func (b *batch) handled(id string) bool {
	if _, ok := b.terminal[id]; ok {
		return true
	}
	return b.p.processed[id] && !b.inBatch[id]
}

func (b *batch) processTranscripts(ctx context.Context, parent *protein.CuratedRecord, entry protein.ExternalEntry, known []*protein.CuratedRecord) error {
	ids := parent.TranscriptIDs()
	transcripts, err := b.d.store.LoadBatch(ctx, ids)
	if err != nil {
		return fmt.Errorf("load transcripts of %s: %w", parent.ID, err)
	}

	for _, t := range transcripts {
		if b.handled(t.ID) {
			continue
		}
		b.touch(t.ID)
		accession := t.Accession()
		if msg, ok := parentConflict(t); ok {
			b.skip(t.ID, accession, msg)
			continue
		}
		if accession == "" {
			b.skip(t.ID, "", "no registry identity")
			continue
		}
		v, ok := entry.Variant(accession)
		if !ok {
			b.dead(t.ID, accession)
			continue
		}
		if err := b.refreshTranscript(ctx, t, entry, v); err != nil {
			return err
		}
	}

	if !b.d.cfg.CreateMissingTranscripts {
		return nil
	}
	existing := append(append([]*protein.CuratedRecord{}, transcripts...), known...)
	for _, v := range entry.Variants() {
		if v.Canonical || !v.Kind.IsTranscript() || v.Accession == "" || hasVariant(existing, v) {
			continue
		}
		t, err := b.createTranscript(ctx, parent, entry, v)
		if err != nil {
			return err
		}
		existing = append(existing, t)
	}
	return nil
}

func hasVariant(records []*protein.CuratedRecord, v protein.Variant) bool {
	for _, r := range records {
		if acc := r.Accession(); acc != "" && v.Matches(acc) {
			return true
		}
	}
	return false
}

func (b *batch) refreshTranscript(ctx context.Context, t *protein.CuratedRecord, entry protein.ExternalEntry, v protein.Variant) error {
	changed := false
	accession := t.Accession()
	if accession != v.Accession {
		if err := b.promote(t, v.Accession); err != nil {
			return err
		}
		accession = v.Accession
		changed = true
	}

	added, err := addSecondaries(t, v.SecondaryAccessions)
	if err != nil {
		return err
	}
	changed = changed || added

	if t.TaxID == 0 && entry.TaxID != 0 {
		t.TaxID = entry.TaxID
		changed = true
	}

	change, touched, err := b.applySequence(t, v.Sequence, "")
	if err != nil {
		return err
	}
	changed = changed || touched

	if changed {
		if err := b.d.store.Save(ctx, t); err != nil {
			return err
		}
	}

	kind := OutcomeChecked
	if change != nil {
		kind = OutcomeUpdatedSequence
	}
	b.emit(Outcome{Kind: kind, RecordID: t.ID, Accession: accession, Change: change, Record: t.Clone()})
	return nil
}

func (b *batch) createTranscript(ctx context.Context, parent *protein.CuratedRecord, entry protein.ExternalEntry, v protein.Variant) (*protein.CuratedRecord, error) {
	t := protein.NewRecord(b.d.ids.Generate(), v.Kind)
	t.ShortLabel = transcriptLabel(parent.ShortLabel, v.Accession)
	t.TaxID = entry.TaxID
	t.Sequence = v.Sequence
	t.CreatedAt = b.d.now()
	if _, err := t.AddXref(protein.IdentityXref(v.Accession)); err != nil {
		return nil, protein.NewInvariantViolation(err.Error())
	}
	if _, err := addSecondaries(t, v.SecondaryAccessions); err != nil {
		return nil, err
	}
	link := protein.ParentLink{Kind: protein.ParentKindFor(v.Kind), ParentID: parent.ID}
	if err := t.AddParentLink(link); err != nil {
		return nil, protein.NewInvariantViolation(err.Error())
	}
	if err := b.d.store.Save(ctx, t); err != nil {
		return nil, err
	}

	parent.AddTranscriptID(t.ID)
	b.p.processed[t.ID] = true
	b.emit(Outcome{Kind: OutcomeCreated, RecordID: t.ID, Accession: v.Accession, Record: t.Clone()})
	return t, nil
}

// transcriptLabel derives a transcript's short label from its parent's,
// keeping the accession suffix (tp53_human-2).
func transcriptLabel(parentLabel, accession string) string {
	prefix, ok := protein.TranscriptPrefix(accession)
	if !ok || parentLabel == "" {
		return strings.ToLower(accession)
	}
	return parentLabel + accession[len(prefix):]
}

// processStandalone handles a transcript whose parent was not processed in
// this batch by resolving its own accession.
func (b *batch) processStandalone(ctx context.Context, t *protein.CuratedRecord) error {
	accession := t.Accession()
	if msg, ok := parentConflict(t); ok {
		b.skip(t.ID, accession, msg)
		return nil
	}
	if accession == "" {
		b.skip(t.ID, "", "no registry identity")
		return nil
	}
	out, err := b.d.resolver.Resolve(ctx, accession, t.TaxID)
	if err != nil {
		if escapes(err) {
			return err
		}
		b.d.logger.Warn("resolution failed", "record", t.ID, "accession", accession, "error", err)
		b.skip(t.ID, accession, err.Error())
		return nil
	}

	switch out.Kind {
	case protein.MatchUnique:
		v, ok := out.Entry.Variant(accession)
		if !ok {
			b.dead(t.ID, accession)
			return nil
		}
		return b.refreshTranscript(ctx, t, out.Entry, v)
	case protein.MatchAmbiguous:
		b.ambiguous(t.ID, accession, out)
	default:
		b.dead(t.ID, accession)
	}
	return nil
}
