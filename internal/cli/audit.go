package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/protrecon/internal/store"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions

	PassID  string
	Reviews string
}

// AuditEventView is the JSON shape of a stored outcome.
type AuditEventView struct {
	Seq        int64     `json:"seq"`
	PassID     string    `json:"pass_id"`
	RecordID   string    `json:"record_id"`
	Kind       string    `json:"kind"`
	Terminal   bool      `json:"terminal"`
	Accession  string    `json:"accession,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RangeReviewView is the JSON shape of a flagged feature range.
type RangeReviewView struct {
	PassID          string  `json:"pass_id"`
	RecordID        string  `json:"record_id"`
	ParticipationID string  `json:"participation_id"`
	FeatureIndex    int     `json:"feature_index"`
	RangeIndex      int     `json:"range_index"`
	PreviousLength  int     `json:"previous_length"`
	CurrentLength   int     `json:"current_length"`
	Score           float64 `json:"score"`
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the stored audit trail",
		Long: `Show outcomes recorded by previous passes.

Without --pass every stored outcome is listed in publication order. With
--reviews, the feature ranges flagged for the given record are listed
instead.

Examples:
  protrecon audit --pass 0192b1c4-...
  protrecon audit --reviews EBI-366083 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.PassID, "pass", "", "only show outcomes of this pass")
	cmd.Flags().StringVar(&opts.Reviews, "reviews", "", "list range reviews flagged for this record")

	return cmd
}

func runAudit(opts *AuditOptions, cmd *cobra.Command) error {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	f := opts.Formatter(cmd)

	if opts.Reviews != "" {
		reviews, err := st.RangeReviews(ctx, opts.Reviews)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read range reviews", err)
		}
		views := make([]RangeReviewView, len(reviews))
		for i, r := range reviews {
			views[i] = newRangeReviewView(r)
		}
		if f.Format == "json" {
			return f.Success(views)
		}
		if len(views) == 0 {
			fmt.Fprintf(f.Writer, "No range reviews for %s\n", opts.Reviews)
			return nil
		}
		for _, v := range views {
			fmt.Fprintf(f.Writer, "%s %s feature %d range %d: length %d -> %d (score %.4f)\n",
				v.PassID, v.ParticipationID, v.FeatureIndex, v.RangeIndex, v.PreviousLength, v.CurrentLength, v.Score)
		}
		return nil
	}

	events, err := st.AuditEvents(ctx, opts.PassID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read audit events", err)
	}
	views := make([]AuditEventView, len(events))
	for i, e := range events {
		views[i] = newAuditEventView(e)
	}
	if f.Format == "json" {
		return f.Success(views)
	}
	if len(views) == 0 {
		fmt.Fprintln(f.Writer, "No audit events")
		return nil
	}
	for _, v := range views {
		marker := " "
		if v.Terminal {
			marker = "*"
		}
		fmt.Fprintf(f.Writer, "[%d]%s %s %s %s", v.Seq, marker, v.PassID, v.RecordID, v.Kind)
		if v.Accession != "" {
			fmt.Fprintf(f.Writer, " %s", v.Accession)
		}
		fmt.Fprintln(f.Writer)
	}
	return nil
}

func newAuditEventView(e store.AuditEvent) AuditEventView {
	return AuditEventView{
		Seq:        e.Seq,
		PassID:     e.PassID,
		RecordID:   e.RecordID,
		Kind:       e.Kind,
		Terminal:   e.Terminal,
		Accession:  e.Accession,
		RecordedAt: e.RecordedAt,
	}
}

func newRangeReviewView(r store.RangeReview) RangeReviewView {
	return RangeReviewView{
		PassID:          r.PassID,
		RecordID:        r.RecordID,
		ParticipationID: r.ParticipationID,
		FeatureIndex:    r.FeatureIndex,
		RangeIndex:      r.RangeIndex,
		PreviousLength:  r.PreviousLength,
		CurrentLength:   r.CurrentLength,
		Score:           r.Score,
	}
}
