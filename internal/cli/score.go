package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/protrecon/internal/conservation"
)

// ScoreOptions holds flags for the score command.
type ScoreOptions struct {
	*RootOptions

	Threshold float64
}

// ScoreResult is the JSON shape of a conservation score.
type ScoreResult struct {
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Severe    bool    `json:"severe"`
}

// NewScoreCommand creates the score command.
func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "score <previous> <current>",
		Short: "Score how conserved a sequence change is",
		Long: `Score how much of the previous sequence survives in the current one.

The score is in [0,1]. A score at or below the threshold marks the change
as severe; feature range repairs are then blocked during a pass.

Examples:
  protrecon score MEEPQSDPSV MEEPQSDPSL
  protrecon score MKTAYIAK MKTA --threshold 0.6 --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().Float64Var(&opts.Threshold, "threshold", -1, "severity threshold (defaults to the configured value)")

	return cmd
}

func runScore(opts *ScoreOptions, cmd *cobra.Command, previous, current string) error {
	threshold := opts.Threshold
	if threshold < 0 {
		cfg, err := opts.LoadConfig()
		if err != nil {
			return err
		}
		threshold = cfg.Reconcile.ConservationThreshold
	}
	if threshold > 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("threshold %v outside [0,1]", threshold))
	}

	score, err := conservation.Score(previous, current)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to score sequences", err)
	}

	result := ScoreResult{
		Value:     score.Value,
		Threshold: threshold,
		Severe:    conservation.IsSevere(score.Value, threshold),
	}

	f := opts.Formatter(cmd)
	if f.Format == "json" {
		return f.Success(result)
	}
	verdict := "conserved"
	if result.Severe {
		verdict = "severe"
	}
	fmt.Fprintf(f.Writer, "%.4f (%s, threshold %.2f)\n", result.Value, verdict, threshold)
	return nil
}
