package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/protrecon/internal/fixture"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load curated records from a seed file into the store",
		Long: `Load curated records from a YAML seed file into the store.

Records without created_at are stamped one minute apart in file order, so
the earliest-created canonical policy follows the file. Registry entries in
the file are ignored; pass the same file to reconcile --registry to use them.

Examples:
  protrecon seed ./records.yaml --store ./curated.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runSeed(opts *RootOptions, cmd *cobra.Command, path string) error {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}

	doc, err := fixture.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load seed file", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	n, err := doc.Seed(ctx, st, time.Now().UTC())
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("seeded %d of %d records", n, len(doc.Records)), err)
	}

	f := opts.Formatter(cmd)
	if f.Format == "json" {
		return f.Success(map[string]any{"store": cfg.Store.Path, "records": n})
	}
	fmt.Fprintf(f.Writer, "Seeded %d records into %s\n", n, cfg.Store.Path)
	return nil
}
