package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/protrecon/internal/protein"
	"github.com/roach88/protrecon/internal/store"
)

func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"negative batch size", func(c *Config) { c.BatchSize = -5 }},
		{"threshold above one", func(c *Config) { c.ConservationThreshold = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(&f.cfg)

			summary, err := f.driver().Run(context.Background())
			require.Error(t, err)
			assert.True(t, protein.IsInvariantViolation(err))
			assert.Nil(t, summary)
		})
	}
}

func TestRun_UnknownCanonicalPolicy(t *testing.T) {
	f := newFixture(t)
	f.cfg.CanonicalPolicy = "coin-flip"

	_, err := f.driver().Run(context.Background())
	assert.ErrorContains(t, err, "coin-flip")
}

func TestRun_EmptyStore(t *testing.T) {
	f := newFixture(t)

	summary, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gen-1", summary.PassID)
	assert.Equal(t, 0, summary.Records)
	assert.Equal(t, 0, summary.Batches)
	assert.Empty(t, f.recorder.outcomes)
}

func TestRun_UpdatesSequence(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P12345", "ABCDE")
	e := entry("P12345", 9606, "ABCXE")
	e.Checksum = "CRC64A"
	e.SecondaryAccessions = []string{"Q11111"}
	f.source.Add(e)

	summary, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1 record-updated-sequence"}, f.recorder.kinds())

	o, ok := f.recorder.find("r1", OutcomeUpdatedSequence)
	require.True(t, ok)
	require.NotNil(t, o.Change)
	require.NotNil(t, o.Change.Score)
	assert.InDelta(t, 0.8, *o.Change.Score, 1e-9)
	assert.False(t, o.Change.Severe)
	assert.Equal(t, "ABCDE", o.Change.Previous)
	assert.Equal(t, "ABCXE", o.Change.Current)

	got := f.get("r1")
	assert.Equal(t, "ABCXE", got.Sequence)
	assert.Equal(t, "CRC64A", got.Checksum)
	assert.True(t, got.HasXref(protein.SecondaryXref("Q11111")))

	require.Len(t, f.recorder.repairs, 1)
	assert.Equal(t, "r1", f.recorder.repairs[0].Record.ID)
	assert.InDelta(t, 0.8, f.recorder.repairs[0].Score, 1e-9)
	assert.Equal(t, int64(1), summary.Repairs)
}

func TestRun_SevereChangeBlocksRepair(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P12345", "AAAAAAAAAA")
	f.source.Add(entry("P12345", 9606, "CCCCCCCCCC"))

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)

	o, ok := f.recorder.find("r1", OutcomeUpdatedSequence)
	require.True(t, ok)
	assert.True(t, o.Change.Severe)
	assert.True(t, o.Change.RepairBlocked)
	assert.Empty(t, f.recorder.repairs)
	assert.Equal(t, "CCCCCCCCCC", f.get("r1").Sequence, "change is still persisted")
}

func TestRun_SevereChangeRepairedWhenNotBlocking(t *testing.T) {
	f := newFixture(t)
	f.cfg.BlockRepairOnSevere = false
	f.primary("r1", "P12345", "AAAAAAAAAA")
	f.source.Add(entry("P12345", 9606, "CCCCCCCCCC"))

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)

	o, ok := f.recorder.find("r1", OutcomeUpdatedSequence)
	require.True(t, ok)
	assert.True(t, o.Change.Severe)
	assert.False(t, o.Change.RepairBlocked)
	assert.Len(t, f.recorder.repairs, 1)
}

func TestRun_SameOrganismAmbiguity(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "Q00000", "MKT")
	a := entry("P11111", 9606, "MKT")
	a.SecondaryAccessions = []string{"Q00000"}
	b := entry("P22222", 9606, "MKT")
	b.SecondaryAccessions = []string{"Q00000"}
	f.source.Add(a, b)

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1 ambiguous-match-found", "r1 record-skipped"}, f.recorder.kinds())

	o, _ := f.recorder.find("r1", OutcomeAmbiguous)
	assert.Equal(t, []string{"P11111", "P22222"}, o.Candidates)
	assert.Equal(t, protein.SameOrganismMultiple, o.Reason)

	skipped, _ := f.recorder.find("r1", OutcomeSkipped)
	assert.Contains(t, skipped.Message, "ambiguous-identity")
}

func TestRun_OrganismFilterPromotesIdentity(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "Q00000", "MKT")
	human := entry("P11111", 9606, "MKT")
	human.SecondaryAccessions = []string{"Q00000"}
	mouse := entry("P22222", 10090, "MKT")
	mouse.SecondaryAccessions = []string{"Q00000"}
	f.source.Add(human, mouse)

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1 accession-remapped", "r1 record-checked"}, f.recorder.kinds())

	got := f.get("r1")
	assert.Equal(t, "P11111", got.Accession())
	assert.True(t, got.HasXref(protein.SecondaryXref("Q00000")))
}

func TestRun_DeadAccession(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P40404", "MKT")

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1 dead-accession-found"}, f.recorder.kinds())

	o, _ := f.recorder.find("r1", OutcomeDeadAccession)
	assert.Equal(t, "P40404", o.Accession)
	assert.Contains(t, o.Message, "no-match")
}

func TestRun_AutoFixRemapsDeadAccession(t *testing.T) {
	f := newFixture(t)
	f.cfg.AutoFixDeadAccessions = true
	r := protein.NewRecord("r1", protein.KindPrimary)
	r.TaxID = 9606
	r.Sequence = "MKT"
	r.CreatedAt = f.tick()
	_, _ = r.AddXref(protein.IdentityXref("P00OLD"))
	_, _ = r.AddXref(protein.SecondaryXref("Q22222"))
	require.NoError(t, f.store.Save(context.Background(), r))

	e := entry("P00NEW", 9606, "MKT")
	e.SecondaryAccessions = []string{"Q22222"}
	f.source.Add(e)

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1 accession-remapped", "r1 record-checked"}, f.recorder.kinds())

	o, _ := f.recorder.find("r1", OutcomeRemapped)
	assert.Equal(t, "P00NEW", o.Accession)
	assert.Equal(t, "P00OLD", o.RemappedFrom)

	got := f.get("r1")
	assert.Equal(t, "P00NEW", got.Accession())
	assert.True(t, got.HasXref(protein.SecondaryXref("P00OLD")))
	assert.True(t, got.HasXref(protein.SecondaryXref("Q22222")))
}

func TestRun_AutoFixWithoutCandidateReportsDead(t *testing.T) {
	f := newFixture(t)
	f.cfg.AutoFixDeadAccessions = true
	f.primary("r1", "P40404", "MKT")

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)

	_, ok := f.recorder.find("r1", OutcomeDeadAccession)
	assert.True(t, ok)
}

func TestRun_MergesDuplicatesInMultiPartyInteraction(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P60952", "MQAIKCVVVG", participation("p1", "i1"))
	f.primary("r2", "P60952", "MQAIKCVVVG", participation("p2", "i1"))
	f.primary("r3", "P99999", "MSTNPKPQRK", participation("p3", "i1"))
	f.source.Add(entry("P60952", 9606, "MQAIKCVVVG"), entry("P99999", 9606, "MSTNPKPQRK"))

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"r2 record-deleted",
		"r1 participations-deleted",
		"r1 duplicates-merged",
		"r3 record-checked",
	}, f.recorder.kinds())

	merged, _ := f.recorder.find("r1", OutcomeMerged)
	require.NotNil(t, merged.Report)
	assert.Equal(t, []string{"p2"}, merged.Report.Deleted)
	assert.Empty(t, merged.Report.Moved)

	_, err = f.store.Get(context.Background(), "r2")
	assert.ErrorIs(t, err, store.ErrNotFound)

	canonical := f.get("r1")
	require.Len(t, canonical.Participations(), 1)
	assert.Equal(t, "p1", canonical.Participations()[0].ID)
	assert.True(t, canonical.HasXref(protein.SupersededXref("r2")))
}

func TestRun_MergeKeepsBinaryInteraction(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P60952", "MQAIKCVVVG", participation("p1", "i1"))
	f.primary("r2", "P60952", "MQAIKCVVVG", participation("p2", "i1"))
	f.source.Add(entry("P60952", 9606, "MQAIKCVVVG"))

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r2 record-deleted", "r1 duplicates-merged"}, f.recorder.kinds())

	canonical := f.get("r1")
	ids := []string{}
	for _, p := range canonical.Participations() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p1", "p2"}, ids)
}

func TestRun_MergeReparentsTranscripts(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P12345", "MEEPQSDPSV")
	f.primary("r2", "P12345", "MEEPQSDPSV")
	f.isoform("r2-2", "P12345-2", "r2", "MEEPQ")
	e := entry("P12345", 9606, "MEEPQSDPSV")
	e.Transcripts = []protein.Variant{{Accession: "P12345-2", Sequence: "MEEPQ", Kind: protein.KindIsoform}}
	f.source.Add(e)

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"r2 record-deleted",
		"r1 duplicates-merged",
		"r2-2 record-checked",
	}, f.recorder.kinds())

	iso := f.get("r2-2")
	parent, ok := iso.ParentID()
	require.True(t, ok)
	assert.Equal(t, "r1", parent)
	assert.Equal(t, []string{"r2-2"}, f.get("r1").TranscriptIDs())
}

func TestRun_ConflictedTranscriptIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P12345", "MEEPQSDPSV")
	f.primary("r2", "P12345", "MEEPQSDPSV")
	f.primary("r9", "Q99999", "MKTAYIAKQR")
	iso := f.isoform("t", "P12345-2", "r2", "MEEPQ")
	require.NoError(t, iso.AddParentLink(protein.ParentLink{Kind: protein.ParentIsoform, ParentID: "r9"}))
	require.NoError(t, f.store.Save(context.Background(), iso))
	e := entry("P12345", 9606, "MEEPQSDPSV")
	e.Transcripts = []protein.Variant{{Accession: "P12345-2", Sequence: "MEEPQ", Kind: protein.KindIsoform}}
	f.source.Add(e)
	f.source.Add(entry("Q99999", 9606, "MKTAYIAKQR"))

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"r2 record-deleted",
		"t record-skipped",
		"r1 duplicates-merged",
		"r9 record-checked",
	}, f.recorder.kinds())

	skipped, ok := f.recorder.find("t", OutcomeSkipped)
	require.True(t, ok)
	assert.Contains(t, skipped.Message, "structural-merge-conflict")
	assert.Equal(t, 1, f.recorder.terminalCounts()["t"])
	_, dead := f.recorder.find("t", OutcomeDeadAccession)
	assert.False(t, dead)
	_, created := f.recorder.find("gen-2", OutcomeCreated)
	assert.False(t, created)
	assert.Empty(t, f.get("r1").TranscriptIDs())
}

func TestRun_TranscriptWithTwoParentsIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P12345", "MEEPQSDPSV")
	f.primary("r9", "Q99999", "MKTAYIAKQR")
	iso := f.isoform("t", "P12345-2", "r1", "MEEPQ")
	require.NoError(t, iso.AddParentLink(protein.ParentLink{Kind: protein.ParentIsoform, ParentID: "r9"}))
	require.NoError(t, f.store.Save(context.Background(), iso))
	e := entry("P12345", 9606, "MEEPQSDPSV")
	e.Transcripts = []protein.Variant{{Accession: "P12345-2", Sequence: "MEEPQSDP", Kind: protein.KindIsoform}}
	f.source.Add(e)
	f.source.Add(entry("Q99999", 9606, "MKTAYIAKQR"))

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	skipped, ok := f.recorder.find("t", OutcomeSkipped)
	require.True(t, ok)
	assert.Contains(t, skipped.Message, "2 isoform")
	assert.Equal(t, 1, f.recorder.terminalCounts()["t"])
	assert.Equal(t, "MEEPQ", f.get("t").Sequence)
}

func TestRun_TranscriptsUpdatedCreatedAndDead(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P12345", "MEEPQSDPSV")
	f.isoform("r1-2", "P12345-2", "r1", "MEEPQ")
	f.isoform("r1-9", "P12345-9", "r1", "MEE")
	e := entry("P12345", 9606, "MEEPQSDPSV")
	e.Transcripts = []protein.Variant{
		{Accession: "P12345-1", Sequence: "MEEPQSDPSV", Canonical: true, Kind: protein.KindIsoform},
		{Accession: "P12345-2", Sequence: "MEEPQSDP", Kind: protein.KindIsoform},
		{Accession: "P12345-3", Sequence: "MEE", Kind: protein.KindIsoform},
	}
	f.source.Add(e)

	summary, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"r1 record-checked",
		"r1-2 record-updated-sequence",
		"r1-9 dead-accession-found",
		"gen-2 record-created",
	}, f.recorder.kinds())
	assert.Equal(t, 4, summary.Terminal)

	created := f.get("gen-2")
	assert.Equal(t, protein.KindIsoform, created.Kind)
	assert.Equal(t, "P12345-3", created.Accession())
	assert.Equal(t, "r1-3", created.ShortLabel)
	assert.Equal(t, "MEE", created.Sequence)
	assert.True(t, created.CreatedAt.Equal(baseTime.Add(time.Hour)))
	parent, ok := created.ParentID()
	require.True(t, ok)
	assert.Equal(t, "r1", parent)

	assert.Equal(t, "MEEPQSDP", f.get("r1-2").Sequence)
	require.Len(t, f.recorder.repairs, 1)
	assert.Equal(t, "r1-2", f.recorder.repairs[0].Record.ID)
}

func TestRun_NoTranscriptCreationWhenDisabled(t *testing.T) {
	f := newFixture(t)
	f.cfg.CreateMissingTranscripts = false
	f.primary("r1", "P12345", "MEEPQSDPSV")
	e := entry("P12345", 9606, "MEEPQSDPSV")
	e.Chains = []protein.Variant{{Accession: "P12345-PRO_1", Sequence: "EPQ", Kind: protein.KindChain}}
	f.source.Add(e)

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1 record-checked"}, f.recorder.kinds())
}

func TestRun_TranscriptReachedTwiceIsProcessedOnce(t *testing.T) {
	f := newFixture(t)
	f.cfg.BatchSize = 1
	f.primary("r1", "P12345", "MEEPQSDPSV")
	f.isoform("r1-2", "P12345-2", "r1", "MEEPQ")
	e := entry("P12345", 9606, "MEEPQSDPSV")
	e.Transcripts = []protein.Variant{{Accession: "P12345-2", Sequence: "MEEPQ", Kind: protein.KindIsoform}}
	f.source.Add(e)

	summary, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"r1": 1, "r1-2": 1}, f.recorder.terminalCounts())
	assert.Equal(t, 1, summary.Batches, "second batch only held an already processed id")
}

func TestRun_StandaloneTranscript(t *testing.T) {
	f := newFixture(t)
	f.isoform("orphan", "P12345-2", "gone", "MEEPQ")
	e := entry("P12345", 9606, "MEEPQSDPSV")
	e.Transcripts = []protein.Variant{{Accession: "P12345-2", Sequence: "MEEPQS", Kind: protein.KindIsoform}}
	f.source.Add(e)

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan record-updated-sequence"}, f.recorder.kinds())
}

func TestRun_TransientFailureSkipsBatch(t *testing.T) {
	f := newFixture(t)
	f.cfg.BatchSize = 1
	f.primary("r1", "P11111", "MKT")
	f.primary("r2", "P22222", "MKT")
	f.source.Add(entry("P11111", 9606, "MKT"), entry("P22222", 9606, "MKT"))
	f.source.FailNext("P11111", -1)

	summary, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1 record-skipped", "r2 record-checked"}, f.recorder.kinds())
	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, 1, summary.FailedBatches)

	skipped, _ := f.recorder.find("r1", OutcomeSkipped)
	assert.Contains(t, skipped.Message, "transient-remote")
}

func TestRun_RollbackDiscardsBatchWrites(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P11111", "AAAA")
	f.isoform("t1", "P77777-2", "gone", "MKT")
	f.source.Add(entry("P11111", 9606, "AAAC"))
	f.source.FailNext("P77777-2", -1)

	_, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1 record-skipped", "t1 record-skipped"}, f.recorder.kinds())
	assert.Equal(t, "AAAA", f.get("r1").Sequence)
	assert.Empty(t, f.recorder.repairs)
}

func TestRun_RequestStopBetweenBatches(t *testing.T) {
	f := newFixture(t)
	f.cfg.BatchSize = 1
	for i := 1; i <= 3; i++ {
		acc := fmt.Sprintf("P0000%d", i)
		f.primary(fmt.Sprintf("r%d", i), acc, "MKT")
		f.source.Add(entry(acc, 9606, "MKT"))
	}

	sr := &stoppingResolver{Resolver: f.resolver()}
	d := f.driverFor(sr)
	sr.driver = d

	summary, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Stopped)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, []string{"r1 record-checked"}, f.recorder.kinds())
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P11111", "MKT")
	f.source.Add(entry("P11111", 9606, "MKT"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.driver().Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_ConcurrentResolutionKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.cfg.ResolveConcurrency = 4
	want := []string{}
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("r%d", i)
		acc := fmt.Sprintf("P1000%d", i)
		f.primary(id, acc, "MKT")
		f.source.Add(entry(acc, 9606, "MKT"))
		want = append(want, id+" record-checked")
	}

	summary, err := f.driver().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, f.recorder.kinds())
	assert.Equal(t, 8, summary.Outcomes[OutcomeChecked])
}

func TestRun_OutcomesAreStamped(t *testing.T) {
	f := newFixture(t)
	f.primary("r1", "P11111", "MKT")
	f.primary("r2", "", "MKT")
	f.source.Add(entry("P11111", 9606, "MKT"))

	summary, err := f.driver().Run(context.Background())
	require.NoError(t, err)

	var last int64
	for _, o := range f.recorder.outcomes {
		assert.Equal(t, "gen-1", o.PassID)
		assert.Greater(t, o.Seq, last)
		last = o.Seq
	}
	assert.Equal(t, int64(len(f.recorder.outcomes)), summary.Delivered)

	skipped, ok := f.recorder.find("r2", OutcomeSkipped)
	require.True(t, ok)
	assert.Equal(t, "no registry identity", skipped.Message)
}

func TestTranscriptLabel(t *testing.T) {
	assert.Equal(t, "tp53_human-2", transcriptLabel("tp53_human", "P04637-2"))
	assert.Equal(t, "tp53_human-PRO_0000185703", transcriptLabel("tp53_human", "P04637-PRO_0000185703"))
	assert.Equal(t, "p04637-2", transcriptLabel("", "P04637-2"))
	assert.Equal(t, "p04637", transcriptLabel("tp53_human", "P04637"))
}
