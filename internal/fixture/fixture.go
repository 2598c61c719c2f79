// Package fixture loads curated records and registry entries from YAML
// seed files.
//
// A seed file looks like:
//
//	entries:
//	  - primary_accession: P04637
//	    tax_id: 9606
//	    sequence: MEEPQSDPSV
//	records:
//	  - id: EBI-366083
//	    short_label: p53_human
//	    tax_id: 9606
//	    accession: P04637
//	    sequence: MEEPQSDPSV
//	    participations:
//	      - id: EBI-1
//	        interaction_id: EBI-100
//
// Records default to kind primary. Transcripts name their parent record.
package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/protrecon/internal/protein"
	"github.com/roach88/protrecon/internal/registry"
)

// Document is a parsed seed file.
type Document struct {
	Entries []protein.ExternalEntry `yaml:"entries,omitempty"`
	Records []Record                `yaml:"records,omitempty"`
}

// Record describes one curated record.
type Record struct {
	ID         string             `yaml:"id"`
	Kind       protein.RecordKind `yaml:"kind,omitempty"`
	ShortLabel string             `yaml:"short_label,omitempty"`
	TaxID      int                `yaml:"tax_id,omitempty"`
	Sequence   string             `yaml:"sequence,omitempty"`
	Checksum   string             `yaml:"checksum,omitempty"`
	CreatedAt  time.Time          `yaml:"created_at,omitempty"`

	// Accession becomes the uniprotkb identity reference.
	Accession string `yaml:"accession,omitempty"`
	// Secondary accessions become uniprotkb secondary-ac references.
	Secondary []string       `yaml:"secondary,omitempty"`
	Xrefs     []protein.Xref `yaml:"xrefs,omitempty"`

	// Parent is the primary record of a transcript or chain.
	Parent string `yaml:"parent,omitempty"`

	Participations []protein.Participation `yaml:"participations,omitempty"`
}

// Saver persists records. Implemented by store.Store.
type Saver interface {
	Save(ctx context.Context, r *protein.CuratedRecord) error
}

// Load reads a seed file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a seed document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) validate() error {
	seen := make(map[string]bool, len(d.Records))
	for i, r := range d.Records {
		if r.ID == "" {
			return fmt.Errorf("records[%d]: id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("records[%d]: duplicate id %s", i, r.ID)
		}
		seen[r.ID] = true
		kind := r.kind()
		if !kind.Valid() {
			return fmt.Errorf("records[%d]: unknown kind %q", i, r.Kind)
		}
		if kind.IsTranscript() && r.Parent == "" {
			return fmt.Errorf("records[%d]: %s record %s needs a parent", i, kind, r.ID)
		}
		if !kind.IsTranscript() && r.Parent != "" {
			return fmt.Errorf("records[%d]: primary record %s cannot have a parent", i, r.ID)
		}
	}
	for i, e := range d.Entries {
		if e.PrimaryAccession == "" {
			return fmt.Errorf("entries[%d]: primary_accession is required", i)
		}
	}
	return nil
}

func (r Record) kind() protein.RecordKind {
	if r.Kind == "" {
		return protein.KindPrimary
	}
	return r.Kind
}

// Build converts the description into a record. A zero CreatedAt is
// replaced by created.
func (r Record) Build(created time.Time) (*protein.CuratedRecord, error) {
	rec := protein.NewRecord(r.ID, r.kind())
	rec.ShortLabel = r.ShortLabel
	rec.TaxID = r.TaxID
	rec.Sequence = r.Sequence
	rec.Checksum = r.Checksum
	rec.CreatedAt = r.CreatedAt
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = created
	}

	if r.Accession != "" {
		if _, err := rec.AddXref(protein.IdentityXref(r.Accession)); err != nil {
			return nil, err
		}
	}
	for _, acc := range r.Secondary {
		if _, err := rec.AddXref(protein.SecondaryXref(acc)); err != nil {
			return nil, err
		}
	}
	for _, x := range r.Xrefs {
		if _, err := rec.AddXref(x); err != nil {
			return nil, err
		}
	}
	if r.Parent != "" {
		link := protein.ParentLink{Kind: protein.ParentKindFor(rec.Kind), ParentID: r.Parent}
		if err := rec.AddParentLink(link); err != nil {
			return nil, err
		}
	}
	for _, p := range r.Participations {
		if err := rec.AddParticipation(p); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Build converts every record. Records without a creation time are created
// one minute apart starting at base, in file order, so canonical selection
// stays deterministic.
func (d *Document) Build(base time.Time) ([]*protein.CuratedRecord, error) {
	out := make([]*protein.CuratedRecord, 0, len(d.Records))
	for i, r := range d.Records {
		rec, err := r.Build(base.Add(time.Duration(i+1) * time.Minute))
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Seed saves every record in file order and returns how many were saved.
func (d *Document) Seed(ctx context.Context, s Saver, base time.Time) (int, error) {
	records, err := d.Build(base)
	if err != nil {
		return 0, err
	}
	for i, r := range records {
		if err := s.Save(ctx, r); err != nil {
			return i, fmt.Errorf("seed %s: %w", r.ID, err)
		}
	}
	return len(records), nil
}

// Source returns a static registry serving the document's entries.
func (d *Document) Source() *registry.StaticSource {
	return registry.NewStaticSource(d.Entries...)
}
