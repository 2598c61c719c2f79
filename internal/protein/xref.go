package protein

// Databases and qualifiers used on identity cross-references.
const (
	DatabaseUniProt = "uniprotkb"
	DatabaseLocal   = "local"

	QualifierIdentity   = "identity"
	QualifierSecondary  = "secondary-ac"
	QualifierSuperseded = "superseded-local-id"
)

// Xref is one cross-reference from a curated record to an external or local
// database.
type Xref struct {
	Database  string `json:"database" yaml:"database"`
	ID        string `json:"id" yaml:"id"`
	Qualifier string `json:"qualifier" yaml:"qualifier"`
}

// IsIdentity reports whether x is the registry identity reference.
func (x Xref) IsIdentity() bool {
	return x.Database == DatabaseUniProt && x.Qualifier == QualifierIdentity
}

// IsSuperseded reports whether x marks a local record merged into the owner.
func (x Xref) IsSuperseded() bool {
	return x.Database == DatabaseLocal && x.Qualifier == QualifierSuperseded
}

// IdentityXref builds the uniprotkb identity reference for accession.
func IdentityXref(accession string) Xref {
	return Xref{Database: DatabaseUniProt, ID: accession, Qualifier: QualifierIdentity}
}

// SecondaryXref builds a uniprotkb secondary-accession reference.
func SecondaryXref(accession string) Xref {
	return Xref{Database: DatabaseUniProt, ID: accession, Qualifier: QualifierSecondary}
}

// SupersededXref builds the marker recording that localID was merged away.
func SupersededXref(localID string) Xref {
	return Xref{Database: DatabaseLocal, ID: localID, Qualifier: QualifierSuperseded}
}

// ParentKind names the relation between a transcript and its primary record.
type ParentKind string

const (
	ParentIsoform ParentKind = "isoform-parent"
	ParentChain   ParentKind = "chain-parent"
)

// ParentKindFor returns the parent relation used by transcripts of kind k.
func ParentKindFor(k RecordKind) ParentKind {
	if k == KindChain {
		return ParentChain
	}
	return ParentIsoform
}

// ParentLink points a transcript or chain at its primary record.
type ParentLink struct {
	Kind     ParentKind `json:"kind" yaml:"kind"`
	ParentID string     `json:"parent_id" yaml:"parent_id"`
}
