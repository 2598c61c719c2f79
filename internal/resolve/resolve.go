// Package resolve turns an accession into a MatchOutcome.
//
// Several registry candidates are narrowed in order by transcript family
// (a P12345-2 accession picks the P12345 candidate when exactly one has that
// primary accession), then by organism. A candidate set spanning a single
// organism is never narrowed: it is reported as same-organism-multiple for a
// curator to decide. Ambiguity is never resolved by picking a candidate
// arbitrarily.
package resolve

import (
	"context"
	"log/slog"

	"github.com/roach88/protrecon/internal/protein"
	"github.com/roach88/protrecon/internal/registry"
)

// Resolver applies the disambiguation rules to registry results.
type Resolver struct {
	fetcher registry.Fetcher
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a resolver reading from fetcher.
func New(fetcher registry.Fetcher, opts ...Option) *Resolver {
	r := &Resolver{fetcher: fetcher, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches accession and disambiguates the candidates. taxID 0 means
// the curated organism is unknown. Fetch errors are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, accession string, taxID int) (protein.MatchOutcome, error) {
	entries, err := r.fetcher.Fetch(ctx, accession)
	if err != nil {
		return protein.MatchOutcome{}, err
	}
	outcome := Disambiguate(accession, taxID, entries)
	r.logger.Debug("accession resolved",
		"accession", accession,
		"tax_id", taxID,
		"candidates", len(entries),
		"outcome", outcome.Kind.String(),
		"reason", string(outcome.Reason),
	)
	return outcome, nil
}

// Disambiguate applies the narrowing rules to an already fetched candidate
// list.
func Disambiguate(accession string, taxID int, entries []protein.ExternalEntry) protein.MatchOutcome {
	switch len(entries) {
	case 0:
		return protein.NoMatch()
	case 1:
		return protein.UniqueMatch(entries[0])
	}

	if e, ok := narrowByTranscript(accession, entries); ok {
		return protein.UniqueMatch(e)
	}

	if distinctTaxa(entries) == 1 {
		return protein.AmbiguousMatch(entries, nil, protein.SameOrganismMultiple)
	}
	if taxID == 0 {
		return protein.AmbiguousMatch(entries, nil, protein.CrossOrganismMultiple)
	}

	kept, excluded := partitionByTaxon(entries, taxID)
	if len(kept) == 1 {
		return protein.UniqueMatch(kept[0])
	}
	if e, ok := narrowByTranscript(accession, kept); ok {
		return protein.UniqueMatch(e)
	}
	return protein.AmbiguousMatch(kept, excluded, protein.CrossOrganismMultiple)
}

// narrowByTranscript picks the single candidate whose primary accession is
// the transcript accession's prefix.
func narrowByTranscript(accession string, entries []protein.ExternalEntry) (protein.ExternalEntry, bool) {
	prefix, ok := protein.TranscriptPrefix(accession)
	if !ok {
		return protein.ExternalEntry{}, false
	}
	var found protein.ExternalEntry
	n := 0
	for _, e := range entries {
		if e.PrimaryAccession == prefix {
			found = e
			n++
		}
	}
	return found, n == 1
}

func distinctTaxa(entries []protein.ExternalEntry) int {
	seen := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		seen[e.TaxID] = struct{}{}
	}
	return len(seen)
}

func partitionByTaxon(entries []protein.ExternalEntry, taxID int) (kept, excluded []protein.ExternalEntry) {
	kept = []protein.ExternalEntry{}
	excluded = []protein.ExternalEntry{}
	for _, e := range entries {
		if e.TaxID == taxID {
			kept = append(kept, e)
		} else {
			excluded = append(excluded, e)
		}
	}
	return kept, excluded
}
