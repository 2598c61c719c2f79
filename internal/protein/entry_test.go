package protein

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscriptPrefix(t *testing.T) {
	tests := []struct {
		accession  string
		wantPrefix string
		wantOK     bool
	}{
		{"P12345-2", "P12345", true},
		{"P12345-PRO_0000021416", "P12345", true},
		{"P12345", "", false},
		{"-2", "", false},
		{"P12345-", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.accession, func(t *testing.T) {
			prefix, ok := TranscriptPrefix(tt.accession)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPrefix, prefix)
		})
	}
}

func TestExternalEntry_Variant(t *testing.T) {
	e := ExternalEntry{
		PrimaryAccession: "P12345",
		Transcripts: []Variant{
			{Accession: "P12345-1", Canonical: true, Kind: KindIsoform},
			{Accession: "P12345-2", SecondaryAccessions: []string{"Q99999-3"}, Kind: KindIsoform},
		},
		Chains: []Variant{{Accession: "P12345-PRO_1", Kind: KindChain}},
	}

	v, ok := e.Variant("Q99999-3")
	assert.True(t, ok)
	assert.Equal(t, "P12345-2", v.Accession)

	v, ok = e.Variant("P12345-PRO_1")
	assert.True(t, ok)
	assert.Equal(t, KindChain, v.Kind)

	_, ok = e.Variant("P12345-9")
	assert.False(t, ok)

	assert.Len(t, e.Variants(), 3)
}

func TestRecordKind(t *testing.T) {
	assert.False(t, KindPrimary.IsTranscript())
	assert.True(t, KindIsoform.IsTranscript())
	assert.True(t, KindChain.IsTranscript())
	assert.False(t, RecordKind("protein").Valid())
	assert.Equal(t, ParentChain, ParentKindFor(KindChain))
	assert.Equal(t, ParentIsoform, ParentKindFor(KindIsoform))
}
