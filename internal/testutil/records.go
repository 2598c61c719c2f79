package testutil

import (
	"time"

	"github.com/roach88/protrecon/internal/protein"
)

// RecordBuilder assembles curated records for tests. Invalid input panics;
// builders are for fixtures, not for production data.
type RecordBuilder struct {
	r *protein.CuratedRecord
}

// Primary starts a primary record.
func Primary(id string) *RecordBuilder {
	r := protein.NewRecord(id, protein.KindPrimary)
	r.ShortLabel = id
	r.CreatedAt = DefaultEpoch
	return &RecordBuilder{r: r}
}

// Isoform starts an isoform of parent.
func Isoform(id, parent string) *RecordBuilder {
	return transcript(id, parent, protein.KindIsoform)
}

// Chain starts a chain of parent.
func Chain(id, parent string) *RecordBuilder {
	return transcript(id, parent, protein.KindChain)
}

func transcript(id, parent string, kind protein.RecordKind) *RecordBuilder {
	r := protein.NewRecord(id, kind)
	r.ShortLabel = id
	r.CreatedAt = DefaultEpoch
	must(r.AddParentLink(protein.ParentLink{Kind: protein.ParentKindFor(kind), ParentID: parent}))
	return &RecordBuilder{r: r}
}

// Accession sets the identity reference.
func (b *RecordBuilder) Accession(acc string) *RecordBuilder {
	b.r.SetIdentity(acc)
	return b
}

// Secondary adds secondary accession references.
func (b *RecordBuilder) Secondary(accs ...string) *RecordBuilder {
	for _, acc := range accs {
		_, err := b.r.AddXref(protein.SecondaryXref(acc))
		must(err)
	}
	return b
}

// Organism sets the taxon.
func (b *RecordBuilder) Organism(taxID int) *RecordBuilder {
	b.r.TaxID = taxID
	return b
}

// Sequence sets the sequence.
func (b *RecordBuilder) Sequence(seq string) *RecordBuilder {
	b.r.Sequence = seq
	return b
}

// Created sets the creation time.
func (b *RecordBuilder) Created(t time.Time) *RecordBuilder {
	b.r.CreatedAt = t
	return b
}

// Participation adds a participation in interaction with the usual
// defaults (stoichiometry 1, prey).
func (b *RecordBuilder) Participation(id, interaction string) *RecordBuilder {
	must(b.r.AddParticipation(protein.Participation{
		ID:                id,
		InteractionID:     interaction,
		Stoichiometry:     1,
		ExperimentalRoles: []string{"prey"},
	}))
	return b
}

// Build returns the record.
func (b *RecordBuilder) Build() *protein.CuratedRecord {
	return b.r.Clone()
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
