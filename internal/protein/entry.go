package protein

import "strings"

// TranscriptSeparator splits a transcript accession into the primary
// accession prefix and the variant suffix (P12345-2, P12345-PRO_0000021416).
const TranscriptSeparator = "-"

// RecordKind distinguishes primary records from their derived transcripts.
type RecordKind string

const (
	KindPrimary RecordKind = "primary"
	KindIsoform RecordKind = "isoform"
	KindChain   RecordKind = "chain"
)

// IsTranscript reports whether records of this kind hang off a parent.
func (k RecordKind) IsTranscript() bool {
	return k == KindIsoform || k == KindChain
}

// Valid reports whether k is one of the known kinds.
func (k RecordKind) Valid() bool {
	return k == KindPrimary || k.IsTranscript()
}

// Variant is a transcript variant or derived chain of a registry entry.
type Variant struct {
	Accession           string     `json:"accession" yaml:"accession"`
	SecondaryAccessions []string   `json:"secondary_accessions,omitempty" yaml:"secondary_accessions,omitempty"`
	Sequence            string     `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	Canonical           bool       `json:"canonical,omitempty" yaml:"canonical,omitempty"`
	Kind                RecordKind `json:"kind" yaml:"kind"`
}

// Matches reports whether accession is the variant's primary or one of its
// secondary accessions.
func (v Variant) Matches(accession string) bool {
	if v.Accession == accession {
		return true
	}
	for _, s := range v.SecondaryAccessions {
		if s == accession {
			return true
		}
	}
	return false
}

// ExternalEntry is an immutable snapshot of one registry record.
type ExternalEntry struct {
	PrimaryAccession    string    `json:"primary_accession" yaml:"primary_accession"`
	SecondaryAccessions []string  `json:"secondary_accessions,omitempty" yaml:"secondary_accessions,omitempty"`
	TaxID               int       `json:"tax_id" yaml:"tax_id"`
	Sequence            string    `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	Checksum            string    `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Transcripts         []Variant `json:"transcripts,omitempty" yaml:"transcripts,omitempty"`
	Chains              []Variant `json:"chains,omitempty" yaml:"chains,omitempty"`
}

// Variants returns transcripts followed by chains.
func (e ExternalEntry) Variants() []Variant {
	out := make([]Variant, 0, len(e.Transcripts)+len(e.Chains))
	out = append(out, e.Transcripts...)
	out = append(out, e.Chains...)
	return out
}

// Variant finds the transcript or chain matching accession.
func (e ExternalEntry) Variant(accession string) (Variant, bool) {
	for _, v := range e.Variants() {
		if v.Matches(accession) {
			return v, true
		}
	}
	return Variant{}, false
}

// HasSecondary reports whether accession is one of the entry's superseded
// accessions.
func (e ExternalEntry) HasSecondary(accession string) bool {
	for _, s := range e.SecondaryAccessions {
		if s == accession {
			return true
		}
	}
	return false
}

// TranscriptPrefix returns the primary accession part of a transcript
// accession. ok is false when accession has no separator or an empty side.
func TranscriptPrefix(accession string) (prefix string, ok bool) {
	i := strings.Index(accession, TranscriptSeparator)
	if i <= 0 || i == len(accession)-1 {
		return "", false
	}
	return accession[:i], true
}

// IsTranscriptAccession reports whether accession denotes a transcript.
func IsTranscriptAccession(accession string) bool {
	_, ok := TranscriptPrefix(accession)
	return ok
}

// Accessions returns the primary accessions of entries, in order.
func Accessions(entries []ExternalEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.PrimaryAccession
	}
	return out
}
