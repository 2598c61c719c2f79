package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/protrecon/internal/protein"
	"github.com/roach88/protrecon/internal/resolve"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions

	TaxID    int
	Registry string
}

// ResolveResult is the JSON shape of a resolution.
type ResolveResult struct {
	Accession  string                  `json:"accession"`
	TaxID      int                     `json:"tax_id"`
	Match      string                  `json:"match"`
	Entry      *protein.ExternalEntry  `json:"entry,omitempty"`
	Candidates []string                `json:"candidates,omitempty"`
	Excluded   []string                `json:"excluded,omitempty"`
	Reason     protein.AmbiguityReason `json:"reason,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <accession>",
		Short: "Resolve one accession against the registry",
		Long: `Resolve one accession against the registry without touching the store.

The accession is looked up as a primary, secondary or transcript accession.
With --tax-id, candidates from other organisms are excluded before deciding
whether the match is unique.

Examples:
  protrecon resolve P04637
  protrecon resolve P04637-2 --tax-id 9606
  protrecon resolve Q00001 --registry ./entries.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.TaxID, "tax-id", 0, "organism taxon of the record (0 means unknown)")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "seed file whose entries replace UniProt")

	return cmd
}

func runResolve(opts *ResolveOptions, cmd *cobra.Command, accession string) error {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := opts.Logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	source, err := registrySource(cfg, opts.Registry, logger)
	if err != nil {
		return err
	}
	resolver := resolve.New(registryClient(cfg, source, logger, nil), resolve.WithLogger(logger))

	ctx := commandContext(cmd)
	out, err := resolver.Resolve(ctx, accession, opts.TaxID)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("failed to resolve %s", accession), err)
	}

	result := newResolveResult(accession, opts.TaxID, out)
	f := opts.Formatter(cmd)
	if f.Format == "json" {
		return f.Success(result)
	}
	writeResolveResult(f, result)
	return nil
}

func newResolveResult(accession string, taxID int, out protein.MatchOutcome) ResolveResult {
	r := ResolveResult{
		Accession: accession,
		TaxID:     taxID,
		Match:     out.Kind.String(),
	}
	switch out.Kind {
	case protein.MatchUnique:
		entry := out.Entry
		r.Entry = &entry
	case protein.MatchAmbiguous:
		r.Candidates = out.CandidateAccessions()
		r.Excluded = protein.Accessions(out.Excluded)
		r.Reason = out.Reason
	}
	return r
}

func writeResolveResult(f *OutputFormatter, r ResolveResult) {
	switch {
	case r.Entry != nil:
		fmt.Fprintf(f.Writer, "%s: unique match %s (taxon %d)\n", r.Accession, r.Entry.PrimaryAccession, r.Entry.TaxID)
		if len(r.Entry.SecondaryAccessions) > 0 {
			fmt.Fprintf(f.Writer, "  secondary: %s\n", strings.Join(r.Entry.SecondaryAccessions, ", "))
		}
		for _, v := range r.Entry.Variants() {
			fmt.Fprintf(f.Writer, "  variant:   %s\n", v.Accession)
		}
	case len(r.Candidates) > 0:
		fmt.Fprintf(f.Writer, "%s: ambiguous (%s): %s\n", r.Accession, r.Reason, strings.Join(r.Candidates, ", "))
		if len(r.Excluded) > 0 {
			f.VerboseLog("  excluded by organism: %s", strings.Join(r.Excluded, ", "))
		}
	default:
		fmt.Fprintf(f.Writer, "%s: no match\n", r.Accession)
	}
}
